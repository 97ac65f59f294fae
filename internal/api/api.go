// Package api is the HTTP surface: uploads, mashup requests, status
// polling, and audio streaming. Handlers validate and authenticate,
// then hand off to the supervisor; no pipeline logic lives here.
package api

import (
	"context"
	"log/slog"
	"time"

	"github.com/labstack/echo/v4"
	gocache "github.com/patrickmn/go-cache"

	"github.com/automixer/automix-go/internal/conf"
	"github.com/automixer/automix-go/internal/datastore"
	"github.com/automixer/automix-go/internal/logging"
	"github.com/automixer/automix-go/internal/objectstore"
	"github.com/automixer/automix-go/internal/observability/metrics"
	"github.com/automixer/automix-go/internal/planner"
)

// Pipeline is the supervisor surface the API needs.
type Pipeline interface {
	SubmitTrack(ctx context.Context, userID, name, mime string, data []byte) (*datastore.Track, error)
	SubmitMashup(ctx context.Context, userID string, req *planner.Request) (*datastore.Mashup, error)
	RequestSeparation(trackID string) error
	RenderPreview(ctx context.Context, userID, fromID, toID string, style planner.TransitionStyle) (string, error)
}

// Controller registers and serves the v1 API.
type Controller struct {
	Group    *echo.Group
	DS       datastore.Interface
	Blobs    objectstore.Store
	Pipeline Pipeline
	Settings *conf.Settings

	auth    Authenticator
	quota   QuotaGate
	metrics *metrics.Metrics
	cache   *gocache.Cache
	logger  *slog.Logger
}

// Option customizes the controller.
type Option func(*Controller)

// WithAuthenticator replaces the default dev authenticator.
func WithAuthenticator(a Authenticator) Option {
	return func(c *Controller) { c.auth = a }
}

// WithQuotaGate replaces the default allow-all quota gate.
func WithQuotaGate(q QuotaGate) Option {
	return func(c *Controller) { c.quota = q }
}

// WithMetrics enables HTTP metrics collection.
func WithMetrics(m *metrics.Metrics) Option {
	return func(c *Controller) { c.metrics = m }
}

// New wires the controller into the echo instance under /api/v1.
func New(e *echo.Echo, ds datastore.Interface, blobs objectstore.Store,
	pipeline Pipeline, settings *conf.Settings, opts ...Option) *Controller {
	c := &Controller{
		DS:       ds,
		Blobs:    blobs,
		Pipeline: pipeline,
		Settings: settings,
		auth:     DevAuthenticator{},
		quota:    AllowAllQuota{},
		cache:    gocache.New(5*time.Minute, 10*time.Minute),
		logger:   logging.ForService("api"),
	}
	for _, opt := range opts {
		opt(c)
	}

	c.Group = e.Group("/api/v1")
	c.Group.Use(c.metricsMiddleware())
	c.Group.Use(c.authMiddleware())
	c.registerRoutes()
	return c
}

func (c *Controller) registerRoutes() {
	c.Group.POST("/tracks", c.UploadTrack)
	c.Group.GET("/tracks", c.ListTracks)
	c.Group.GET("/tracks/:id", c.GetTrack)
	c.Group.POST("/tracks/:id/stems", c.SeparateTrack)

	c.Group.POST("/mashups", c.CreateMashup)
	c.Group.GET("/mashups", c.ListMashups)
	c.Group.GET("/mashups/:id", c.GetMashup)
	c.Group.GET("/mashups/:id/audio", c.StreamMashupAudio)

	c.Group.GET("/stems/:id/audio", c.StreamStemAudio)
	c.Group.GET("/styles", c.GetStyles)
	c.Group.POST("/previews", c.CreatePreview)
}

// metricsMiddleware records request counts and latency by route
// pattern, never by raw URL.
func (c *Controller) metricsMiddleware() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(ctx echo.Context) error {
			if c.metrics == nil {
				return next(ctx)
			}
			start := time.Now()
			err := next(ctx)
			status := ctx.Response().Status
			if err != nil {
				if he, ok := err.(*echo.HTTPError); ok {
					status = he.Code
				}
			}
			c.metrics.ObserveHTTP(ctx.Request().Method, ctx.Path(),
				statusLabel(status), time.Since(start))
			return err
		}
	}
}
