// Package serve implements the serve command, which runs the full
// pipeline: job queue, supervisor, and the HTTP API.
package serve

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"

	"github.com/automixer/automix-go/internal/analysis"
	"github.com/automixer/automix-go/internal/api"
	"github.com/automixer/automix-go/internal/audio"
	"github.com/automixer/automix-go/internal/conf"
	"github.com/automixer/automix-go/internal/datastore"
	"github.com/automixer/automix-go/internal/events"
	"github.com/automixer/automix-go/internal/jobqueue"
	"github.com/automixer/automix-go/internal/logging"
	"github.com/automixer/automix-go/internal/objectstore"
	"github.com/automixer/automix-go/internal/observability/metrics"
	"github.com/automixer/automix-go/internal/planner"
	"github.com/automixer/automix-go/internal/render"
	"github.com/automixer/automix-go/internal/stems"
	"github.com/automixer/automix-go/internal/supervisor"
	"github.com/automixer/automix-go/internal/telemetry"
)

// Command creates the serve command.
func Command(settings *conf.Settings) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the analysis pipeline and HTTP API",
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(cmd.Context(), settings)
		},
	}
}

// cueStore adapts the catalog to the planner's cue point sink.
type cueStore struct {
	ds datastore.Interface
}

func (c cueStore) SaveCuePoints(trackID string, cp planner.CuePoints) error {
	return c.ds.SaveTrackCuePoints(trackID, cp)
}

func run(ctx context.Context, settings *conf.Settings) error {
	logger := logging.ForService("serve")
	if settings.Main.Log.Enabled {
		fileLogger, closeLog, err := logging.NewFileLogger(
			settings.Main.Log.Path, "serve", slog.LevelInfo)
		if err != nil {
			logger.Warn("file logging disabled", "path", settings.Main.Log.Path, "error", err)
		} else {
			defer func() { _ = closeLog() }()
			logger = fileLogger
		}
	}

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	audio.SetBinaryPaths(settings.Analysis.FfmpegPath, settings.Analysis.FfprobePath)
	audio.SetSampleRate(settings.Analysis.SampleRate)
	audio.SetDecodeTimeout(time.Duration(settings.Analysis.DecodeTimeout) * time.Second)
	if err := audio.ValidateFfmpegPath(); err != nil {
		return fmt.Errorf("ffmpeg is required: %w", err)
	}

	reporter, err := telemetry.Init(settings)
	if err != nil {
		logger.Warn("telemetry disabled", "error", err)
	}

	ds, err := datastore.New(settings)
	if err != nil {
		return err
	}
	if err := ds.Open(); err != nil {
		return fmt.Errorf("error opening catalog: %w", err)
	}
	defer func() {
		if err := ds.Close(); err != nil {
			logger.Error("error closing catalog", "error", err)
		}
	}()

	blobs, err := objectstore.New(settings)
	if err != nil {
		return err
	}

	bus := events.NewBus()
	defer bus.Close()
	if settings.MQTT.Enabled {
		pub, err := events.NewMQTTPublisher(settings)
		if err != nil {
			logger.Error("mqtt publisher unavailable", "error", err)
		} else {
			defer pub.Disconnect()
			bus.Subscribe(pub)
		}
	}

	m := metrics.New()

	queue := jobqueue.NewWithOptions(settings.Queue.Concurrency, settings.Queue.MaxQueued, 100)
	queue.SetMetrics(m)

	sup := supervisor.New(supervisor.Config{
		Catalog:  ds,
		Blobs:    blobs,
		Queue:    queue,
		Analyzer: analysis.New(settings.Analysis.Version,
			analysis.WithMaxTrackLength(settings.Analysis.MaxTrackLength),
			analysis.WithCache(settings.Analysis.CacheAnalysis)),
		Planner: planner.New(
			planner.WithFallbackBPM(settings.Planner.TargetBpmDefault),
			planner.WithCueWriter(cueStore{ds: ds}),
		),
		Renderer: render.New(render.Config{
			Timeout:     time.Duration(settings.Render.RenderTimeout) * time.Second,
			Bitrate:     settings.Render.Bitrate,
			FallbackBPM: settings.Planner.TargetBpmDefault,
		}),
		Separator: stems.NewSeparator(settings),
		Bus:       bus,
	})

	queue.Start(ctx)
	if err := sup.Rescan(); err != nil {
		logger.Error("startup rescan incomplete", "error", err)
	}

	// With the API disabled the process still runs the queue, so the
	// startup rescan can drain interrupted work.
	var e *echo.Echo
	errCh := make(chan error, 1)
	if settings.WebServer.Enabled {
		e = echo.New()
		e.HideBanner = true
		e.Use(middleware.Recover())
		if settings.WebServer.Debug {
			e.Use(middleware.Logger())
		}
		e.GET("/metrics", echo.WrapHandler(
			promhttp.HandlerFor(m.Registry(), promhttp.HandlerOpts{})))

		api.New(e, ds, blobs, sup, settings, api.WithMetrics(m))

		go func() {
			addr := ":" + settings.WebServer.Port
			logger.Info("http server starting", "addr", addr)
			if err := e.Start(addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
				errCh <- err
			}
		}()
	} else {
		logger.Info("http server disabled")
	}

	select {
	case <-ctx.Done():
		logger.Info("shutdown signal received")
	case err := <-errCh:
		return fmt.Errorf("http server error: %w", err)
	}

	if e != nil {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := e.Shutdown(shutdownCtx); err != nil {
			logger.Error("http shutdown error", "error", err)
		}
	}

	grace := time.Duration(settings.Queue.ShutdownWait) * time.Second
	if err := queue.StopWithTimeout(grace); err != nil {
		logger.Warn("jobs still running at shutdown", "error", err)
	}

	if reporter != nil {
		reporter.Flush(2 * time.Second)
	}
	logger.Info("shutdown complete")
	return nil
}
