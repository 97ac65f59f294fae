// Package render turns a computed plan and a set of local source files
// into the final encoded mix via an external ffmpeg filter graph. A
// failed main graph falls back to a simplified per-segment graph, so a
// render either produces output or fails loudly.
package render

import (
	"context"
	"log/slog"
	"os"
	"time"

	"github.com/automixer/automix-go/internal/audio"
	"github.com/automixer/automix-go/internal/errors"
	"github.com/automixer/automix-go/internal/logging"
	"github.com/automixer/automix-go/internal/planner"
)

// Result summarizes a finished render.
type Result struct {
	OutputPath       string
	DurationSeconds  float64
	UsedFallback     bool
	GenerationTimeMs int64
}

// Renderer drives ffmpeg for full-mix production.
type Renderer struct {
	timeout     time.Duration
	bitrate     string
	fallbackBPM float64
	logger      *slog.Logger
}

// Config tunes a Renderer; zero values fall back to sane defaults.
type Config struct {
	Timeout     time.Duration
	Bitrate     string
	FallbackBPM float64
}

// New builds a Renderer.
func New(cfg Config) *Renderer {
	r := &Renderer{
		timeout:     cfg.Timeout,
		bitrate:     cfg.Bitrate,
		fallbackBPM: cfg.FallbackBPM,
		logger:      logging.ForService("render"),
	}
	if r.timeout <= 0 {
		r.timeout = 10 * time.Minute
	}
	if r.bitrate == "" {
		r.bitrate = "192k"
	}
	if r.fallbackBPM <= 0 {
		r.fallbackBPM = 120
	}
	return r
}

// Render mixes the inputs per the plan into an MP3 at outputPath. The
// main filter graph is attempted first; any ffmpeg failure triggers one
// retry on the simplified fallback graph before giving up.
func (r *Renderer) Render(ctx context.Context, inputs []Input, plan *planner.Plan, req *planner.Request, outputPath string) (*Result, error) {
	if len(inputs) == 0 {
		return nil, errors.Newf("render requires at least one input track").
			Component("render").
			Category(errors.CategoryValidation).
			Build()
	}

	start := time.Now()
	target := float64(req.TargetDurationSeconds)

	pbs := buildPlaybackPlans(inputs, plan, target, r.fallbackBPM)
	mainGraph := buildFilterGraph(inputs, pbs, plan, req)

	result := &Result{OutputPath: outputPath}

	err := r.runGraph(ctx, inputs, mainGraph, outputPath)
	if err != nil {
		r.logger.Warn("main filter graph failed, retrying with fallback",
			"inputs", len(inputs), "error", err)
		fallbackGraph := buildFallbackGraph(inputs, plan, req, target)
		if err2 := r.runGraph(ctx, inputs, fallbackGraph, outputPath); err2 != nil {
			return nil, errors.New(err2).
				Component("render").
				Category(errors.CategoryRender).
				Context("fallback", true).
				Context("main_error", err.Error()).
				Build()
		}
		result.UsedFallback = true
	}

	duration, err := audio.GetAudioDuration(ctx, outputPath)
	if err != nil {
		r.logger.Warn("could not probe rendered output duration", "error", err)
	}
	result.DurationSeconds = duration
	result.GenerationTimeMs = time.Since(start).Milliseconds()

	r.logger.Info("render complete",
		"output", outputPath,
		"duration_s", result.DurationSeconds,
		"fallback", result.UsedFallback,
		"elapsed_ms", result.GenerationTimeMs)
	return result, nil
}

// runGraph executes one ffmpeg invocation for the given graph, writing
// through a temp file so a killed process never leaves a partial mix.
func (r *Renderer) runGraph(ctx context.Context, inputs []Input, graph, outputPath string) error {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	tempPath := outputPath + ".temp"
	args := renderArgs(inputs, graph, r.bitrate, tempPath)
	if err := audio.RunFFmpegToFile(ctx, args); err != nil {
		os.Remove(tempPath)
		return err
	}
	return os.Rename(tempPath, outputPath)
}

// renderArgs builds the full ffmpeg argument list: one -i per input,
// the filter graph, and MP3 output at 44.1 kHz stereo.
func renderArgs(inputs []Input, graph, bitrate, outputPath string) []string {
	args := []string{"-hide_banner", "-nostdin", "-y"}
	for _, in := range inputs {
		args = append(args, "-i", in.Path)
	}
	args = append(args,
		"-filter_complex", graph,
		"-map", "[out]",
		"-ac", "2",
		"-ar", "44100",
		"-c:a", "libmp3lame",
		"-b:a", bitrate,
		"-f", "mp3",
		outputPath,
	)
	return args
}
