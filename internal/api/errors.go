package api

import (
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"

	"github.com/automixer/automix-go/internal/errors"
)

// errorBody is the structured error shape every failure returns.
type errorBody struct {
	Error    string `json:"error"`
	Category string `json:"category,omitempty"`
}

// categoryStatus maps domain error categories onto HTTP status codes.
var categoryStatus = map[errors.ErrorCategory]int{
	errors.CategoryValidation:    http.StatusBadRequest,
	errors.CategoryAuthorization: http.StatusNotFound, // hide foreign resources
	errors.CategoryQuota:         http.StatusPaymentRequired,
	errors.CategoryNotFound:      http.StatusNotFound,
	errors.CategoryConflict:      http.StatusConflict,
	errors.CategoryTimeout:       http.StatusGatewayTimeout,
}

// fail translates a pipeline error into the structured response.
func (c *Controller) fail(ctx echo.Context, err error) error {
	status := http.StatusInternalServerError
	category := ""

	var ee *errors.EnhancedError
	if errors.As(err, &ee) {
		category = ee.GetCategory()
		if mapped, ok := categoryStatus[ee.ErrorCategory()]; ok {
			status = mapped
		}
	}
	if status >= http.StatusInternalServerError {
		c.logger.Error("request failed", "path", ctx.Path(), "error", err)
		return ctx.JSON(status, errorBody{Error: "internal error", Category: category})
	}
	return ctx.JSON(status, errorBody{Error: err.Error(), Category: category})
}

// badRequest returns a 400 with a validation message.
func badRequest(ctx echo.Context, message string) error {
	return ctx.JSON(http.StatusBadRequest, errorBody{
		Error:    message,
		Category: string(errors.CategoryValidation),
	})
}

// notFound hides both absence and foreign ownership.
func notFound(ctx echo.Context) error {
	return ctx.JSON(http.StatusNotFound, errorBody{
		Error:    "not found",
		Category: string(errors.CategoryNotFound),
	})
}

func statusLabel(code int) string {
	return strconv.Itoa(code)
}
