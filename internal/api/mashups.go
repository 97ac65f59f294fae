package api

import (
	"fmt"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/automixer/automix-go/internal/datastore"
	"github.com/automixer/automix-go/internal/planner"
)

// maxMixTracks bounds one mix request.
const maxMixTracks = 50

// mashupResponse is the public view of a mashup row.
type mashupResponse struct {
	ID               string    `json:"id"`
	Name             string    `json:"name"`
	Status           string    `json:"status"`
	DurationSeconds  int       `json:"duration_seconds"`
	MixMode          string    `json:"mix_mode"`
	OutputKey        string    `json:"outputKey,omitempty"`
	GenerationTimeMs int64     `json:"generationTimeMs,omitempty"`
	ErrorMessage     string    `json:"errorMessage,omitempty"`
	CreatedAt        time.Time `json:"created_at"`
	UpdatedAt        time.Time `json:"updated_at"`
}

func toMashupResponse(m *datastore.Mashup) mashupResponse {
	return mashupResponse{
		ID:               m.ID,
		Name:             m.Name,
		Status:           m.Status,
		DurationSeconds:  m.TargetDurationSeconds,
		MixMode:          m.MixMode,
		OutputKey:        m.OutputKey,
		GenerationTimeMs: m.GenerationTimeMs,
		ErrorMessage:     m.ErrorMessage,
		CreatedAt:        m.CreatedAt,
		UpdatedAt:        m.UpdatedAt,
	}
}

// CreateMashup validates a mix request and schedules planning.
func (c *Controller) CreateMashup(ctx echo.Context) error {
	req := new(planner.Request)
	if err := ctx.Bind(req); err != nil {
		return badRequest(ctx, "malformed request body")
	}
	if msg := validateMixRequest(req); msg != "" {
		return badRequest(ctx, msg)
	}

	userID := currentUser(ctx)
	if err := c.quota.CheckMix(userID, req.TargetDurationSeconds); err != nil {
		return c.fail(ctx, err)
	}

	mashup, err := c.Pipeline.SubmitMashup(ctx.Request().Context(), userID, req)
	if err != nil {
		return c.fail(ctx, err)
	}
	return ctx.JSON(http.StatusCreated, toMashupResponse(mashup))
}

// ListMashups pages through the caller's mashups.
func (c *Controller) ListMashups(ctx echo.Context) error {
	limit := queryInt(ctx, "limit", 50)
	offset := queryInt(ctx, "offset", 0)
	if limit < 1 || limit > 200 {
		return badRequest(ctx, "limit must be in [1, 200]")
	}

	mashups, err := c.DS.ListMashups(currentUser(ctx), limit, offset)
	if err != nil {
		return c.fail(ctx, err)
	}
	out := make([]mashupResponse, 0, len(mashups))
	for i := range mashups {
		out = append(out, toMashupResponse(&mashups[i]))
	}
	return ctx.JSON(http.StatusOK, out)
}

// GetMashup returns one owned mashup for status polling.
func (c *Controller) GetMashup(ctx echo.Context) error {
	mashup, err := c.ownedMashup(ctx)
	if err != nil {
		return notFound(ctx)
	}
	return ctx.JSON(http.StatusOK, toMashupResponse(mashup))
}

// StreamMashupAudio streams the rendered mix.
func (c *Controller) StreamMashupAudio(ctx echo.Context) error {
	mashup, err := c.ownedMashup(ctx)
	if err != nil {
		return notFound(ctx)
	}
	if mashup.Status != datastore.MashupStatusCompleted {
		return ctx.JSON(http.StatusConflict, errorBody{
			Error: fmt.Sprintf("mashup is %s, not completed", mashup.Status),
		})
	}

	rc, err := c.Blobs.Get(ctx.Request().Context(), mashup.OutputKey)
	if err != nil {
		return c.fail(ctx, err)
	}
	defer rc.Close()

	ctx.Response().Header().Set("Accept-Ranges", "bytes")
	return ctx.Stream(http.StatusOK, "audio/mpeg", rc)
}

func (c *Controller) ownedMashup(ctx echo.Context) (*datastore.Mashup, error) {
	mashup, err := c.DS.GetMashup(ctx.Param("id"))
	if err != nil {
		return nil, err
	}
	if mashup.UserID != currentUser(ctx) {
		return nil, fmt.Errorf("mashup not owned by caller")
	}
	return mashup, nil
}

// validateMixRequest enforces the documented bounds. An empty return
// means valid.
func validateMixRequest(req *planner.Request) string {
	if len(req.TrackIDs) < 2 {
		return "trackIds must list at least 2 tracks"
	}
	if len(req.TrackIDs) > maxMixTracks {
		return fmt.Sprintf("trackIds must list at most %d tracks", maxMixTracks)
	}
	if req.TargetDurationSeconds < 30 || req.TargetDurationSeconds > 3600 {
		return "targetDurationSeconds must be in [30, 3600]"
	}
	if req.TargetBPM != nil && (*req.TargetBPM < 60 || *req.TargetBPM > 200) {
		return "targetBpm must be in [60, 200]"
	}
	if req.TransitionStyle != "" && !planner.ValidTransitionStyle(req.TransitionStyle) {
		return "unknown transitionStyle " + string(req.TransitionStyle)
	}
	if req.FadeDurationSeconds != nil && (*req.FadeDurationSeconds < 0 || *req.FadeDurationSeconds > 20) {
		return "fadeDurationSeconds must be in [0, 20]"
	}
	if req.EnergyMode != "" && !planner.ValidEnergyMode(req.EnergyMode) {
		return "unknown energyMode " + string(req.EnergyMode)
	}
	if req.EventType != "" && !planner.ValidEventType(req.EventType) {
		return "unknown eventType " + string(req.EventType)
	}
	if len(req.Name) > 255 {
		return "name must be at most 255 characters"
	}
	switch req.LoudnessNormalization {
	case "", "ebu_r128", "peak", "none":
	default:
		return "loudnessNormalization must be one of ebu_r128, peak, none"
	}
	if req.TargetLoudness != nil && (*req.TargetLoudness < -70 || *req.TargetLoudness > -5) {
		return "targetLoudness must be in [-70, -5]"
	}
	if req.TempoRampSeconds < 0 || req.TempoRampSeconds > 10 {
		return "tempoRampSeconds must be in [0, 10]"
	}
	return ""
}
