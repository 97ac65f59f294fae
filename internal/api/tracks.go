package api

import (
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/automixer/automix-go/internal/audio"
	"github.com/automixer/automix-go/internal/datastore"
	"github.com/automixer/automix-go/internal/errors"
)

// maxUploadBytes bounds a single track upload.
const maxUploadBytes = 200 << 20

// trackResponse is the public view of a track row.
type trackResponse struct {
	ID              string    `json:"id"`
	Name            string    `json:"name"`
	Status          string    `json:"status"`
	Genre           string    `json:"genre,omitempty"`
	BPM             *float64  `json:"bpm,omitempty"`
	CamelotKey      *string   `json:"camelotKey,omitempty"`
	KeySignature    *string   `json:"keySignature,omitempty"`
	DurationSeconds float64   `json:"durationSeconds,omitempty"`
	AnalysisError   string    `json:"analysisError,omitempty"`
	CreatedAt       time.Time `json:"created_at"`
	UpdatedAt       time.Time `json:"updated_at"`
}

func toTrackResponse(t *datastore.Track) trackResponse {
	return trackResponse{
		ID:              t.ID,
		Name:            t.Name,
		Status:          t.Status,
		Genre:           t.Genre,
		BPM:             t.BPM,
		CamelotKey:      t.CamelotKey,
		KeySignature:    t.KeySignature,
		DurationSeconds: t.DurationSeconds,
		AnalysisError:   t.AnalysisError,
		CreatedAt:       t.CreatedAt,
		UpdatedAt:       t.UpdatedAt,
	}
}

// UploadTrack accepts a multipart upload and schedules analysis.
func (c *Controller) UploadTrack(ctx echo.Context) error {
	fileHeader, err := ctx.FormFile("file")
	if err != nil {
		return badRequest(ctx, "multipart field 'file' is required")
	}
	if fileHeader.Size > maxUploadBytes {
		return badRequest(ctx, "upload exceeds the size limit")
	}

	mime := fileHeader.Header.Get("Content-Type")
	if !audio.IsSupportedMime(mime) {
		return badRequest(ctx, "unsupported audio format "+mime)
	}

	f, err := fileHeader.Open()
	if err != nil {
		return c.fail(ctx, err)
	}
	defer f.Close()
	data, err := io.ReadAll(io.LimitReader(f, maxUploadBytes+1))
	if err != nil {
		return c.fail(ctx, err)
	}
	if len(data) > maxUploadBytes {
		return badRequest(ctx, "upload exceeds the size limit")
	}
	if len(data) == 0 {
		return badRequest(ctx, "uploaded file is empty")
	}

	track, err := c.Pipeline.SubmitTrack(ctx.Request().Context(),
		currentUser(ctx), fileHeader.Filename, mime, data)
	if err != nil {
		return c.fail(ctx, err)
	}

	if genre := ctx.FormValue("genre"); genre != "" {
		track.Genre = genre
		if err := c.DS.SaveTrack(track); err != nil {
			return c.fail(ctx, err)
		}
	}

	return ctx.JSON(http.StatusCreated, toTrackResponse(track))
}

// ListTracks pages through the caller's tracks.
func (c *Controller) ListTracks(ctx echo.Context) error {
	limit := queryInt(ctx, "limit", 50)
	offset := queryInt(ctx, "offset", 0)
	if limit < 1 || limit > 200 {
		return badRequest(ctx, "limit must be in [1, 200]")
	}

	tracks, err := c.DS.ListTracks(currentUser(ctx), limit, offset)
	if err != nil {
		return c.fail(ctx, err)
	}
	out := make([]trackResponse, 0, len(tracks))
	for i := range tracks {
		out = append(out, toTrackResponse(&tracks[i]))
	}
	return ctx.JSON(http.StatusOK, out)
}

// GetTrack returns one owned track.
func (c *Controller) GetTrack(ctx echo.Context) error {
	track, err := c.ownedTrack(ctx)
	if err != nil {
		return notFound(ctx)
	}
	return ctx.JSON(http.StatusOK, toTrackResponse(track))
}

// SeparateTrack schedules stem separation for an owned track.
func (c *Controller) SeparateTrack(ctx echo.Context) error {
	track, err := c.ownedTrack(ctx)
	if err != nil {
		return notFound(ctx)
	}
	if err := c.Pipeline.RequestSeparation(track.ID); err != nil {
		return c.fail(ctx, err)
	}
	return ctx.JSON(http.StatusAccepted, map[string]string{
		"trackId": track.ID,
		"status":  "separation scheduled",
	})
}

// ownedTrack loads the :id track and enforces ownership.
func (c *Controller) ownedTrack(ctx echo.Context) (*datastore.Track, error) {
	track, err := c.DS.GetTrack(ctx.Param("id"))
	if err != nil {
		return nil, err
	}
	if track.UserID != currentUser(ctx) {
		return nil, errors.Newf("track not owned by caller").
			Category(errors.CategoryAuthorization).
			Build()
	}
	return track, nil
}

func queryInt(ctx echo.Context, name string, fallback int) int {
	raw := ctx.QueryParam(name)
	if raw == "" {
		return fallback
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return fallback
	}
	return v
}
