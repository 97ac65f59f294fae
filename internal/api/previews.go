package api

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/automixer/automix-go/internal/planner"
)

// previewRequest asks for a rendered transition between two tracks.
type previewRequest struct {
	FromTrackID string `json:"fromTrackId"`
	ToTrackID   string `json:"toTrackId"`
	Style       string `json:"transitionStyle,omitempty"`
}

// CreatePreview renders the transition window synchronously and
// returns the object key it was stored under.
func (c *Controller) CreatePreview(ctx echo.Context) error {
	req := new(previewRequest)
	if err := ctx.Bind(req); err != nil {
		return badRequest(ctx, "malformed request body")
	}
	if req.FromTrackID == "" || req.ToTrackID == "" {
		return badRequest(ctx, "fromTrackId and toTrackId are required")
	}
	if req.FromTrackID == req.ToTrackID {
		return badRequest(ctx, "preview requires two distinct tracks")
	}
	style := planner.TransitionStyle(req.Style)
	if req.Style != "" && !planner.ValidTransitionStyle(style) {
		return badRequest(ctx, "unknown transitionStyle "+req.Style)
	}

	key, err := c.Pipeline.RenderPreview(ctx.Request().Context(),
		currentUser(ctx), req.FromTrackID, req.ToTrackID, style)
	if err != nil {
		return c.fail(ctx, err)
	}
	return ctx.JSON(http.StatusCreated, map[string]string{"outputKey": key})
}
