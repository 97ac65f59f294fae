package api

import (
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"
)

// StreamStemAudio streams one separated stem with range support and a
// private cache policy, so players can seek without re-downloading.
func (c *Controller) StreamStemAudio(ctx echo.Context) error {
	stem, err := c.DS.GetStem(ctx.Param("id"))
	if err != nil {
		return notFound(ctx)
	}
	track, err := c.DS.GetTrack(stem.TrackID)
	if err != nil {
		return notFound(ctx)
	}
	if track.UserID != currentUser(ctx) {
		return notFound(ctx)
	}

	rc, err := c.Blobs.Get(ctx.Request().Context(), stem.StorageKey)
	if err != nil {
		return c.fail(ctx, err)
	}
	defer rc.Close()

	header := ctx.Response().Header()
	header.Set("Accept-Ranges", "bytes")
	header.Set("Cache-Control", "private, max-age=3600")
	return ctx.Stream(http.StatusOK, stemMime(stem.StorageKey), rc)
}

func stemMime(key string) string {
	if strings.HasSuffix(key, ".mp3") {
		return "audio/mpeg"
	}
	return "audio/wav"
}
