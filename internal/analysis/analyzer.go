// Package analysis extracts BPM, musical key, beat grid, structure, drop
// moments, and a reduced waveform from raw track bytes. The pipeline is a
// pure function of its input modulo logging, so identical bytes always
// yield identical results.
package analysis

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"log/slog"
	"time"

	gocache "github.com/patrickmn/go-cache"

	"github.com/automixer/automix-go/internal/audio"
	"github.com/automixer/automix-go/internal/errors"
	"github.com/automixer/automix-go/internal/logging"
)

// Analyzer runs the track analysis pipeline.
type Analyzer struct {
	version        string
	logger         *slog.Logger
	maxTrackLength float64 // seconds, 0 disables the check

	// Results keyed by content hash; identical uploads skip the DSP work.
	// Nil when caching is disabled.
	cache *gocache.Cache
}

// Option customizes an Analyzer.
type Option func(*Analyzer)

// WithMaxTrackLength rejects tracks longer than the given number of
// seconds. Zero disables the limit.
func WithMaxTrackLength(seconds int) Option {
	return func(a *Analyzer) { a.maxTrackLength = float64(seconds) }
}

// WithCache toggles the content-hash result cache.
func WithCache(enabled bool) Option {
	return func(a *Analyzer) {
		if enabled {
			a.cache = gocache.New(30*time.Minute, 10*time.Minute)
		} else {
			a.cache = nil
		}
	}
}

// New creates an Analyzer stamping results with the given version tag.
func New(version string, opts ...Option) *Analyzer {
	a := &Analyzer{
		version: version,
		logger:  logging.ForService("analysis"),
		cache:   gocache.New(30*time.Minute, 10*time.Minute),
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Analyze decodes the input and runs every analysis stage. Errors in
// decode fail the whole analysis; later stages degrade to null fields
// (nil BPM, nil key) that are persisted as-is.
func (a *Analyzer) Analyze(ctx context.Context, data []byte, mime, name string) (*Result, error) {
	hash := ContentHash(data)
	if a.cache != nil {
		if cached, ok := a.cache.Get(hash); ok {
			a.logger.Debug("analysis cache hit", "name", name, "hash", hash)
			return cached.(*Result), nil
		}
	}

	started := time.Now()

	// Container metadata is the preferred duration source; the sample
	// count serves as the fallback when the probe cannot run.
	containerDuration, err := audio.ProbeDuration(ctx, data, mime)
	if err != nil {
		a.logger.Debug("duration probe failed, using sample count",
			"name", name, "error", err)
		containerDuration = 0
	}

	pcm, err := audio.Decode(ctx, data, mime)
	if err != nil {
		return nil, errors.Wrap(err).
			Component("analysis").
			Category(errors.CategoryDecode).
			Context("name", name).
			Build()
	}

	duration := containerDuration
	if duration <= 0 {
		duration = pcm.Duration()
	}
	if a.maxTrackLength > 0 && duration > a.maxTrackLength {
		return nil, errors.Newf("track runs %.0f s, longer than the %.0f s limit",
			duration, a.maxTrackLength).
			Component("analysis").
			Category(errors.CategoryValidation).
			Context("name", name).
			Build()
	}

	result := a.analyzePCM(pcm, containerDuration)
	result.AnalysisVersion = a.version

	if a.cache != nil {
		a.cache.SetDefault(hash, result)
	}

	a.logger.Info("track analyzed",
		"name", name,
		"duration_s", result.DurationSeconds,
		"bpm", derefOrZero(result.BPM),
		"camelot", derefOrEmpty(result.CamelotKey),
		"phrases", len(result.Phrases),
		"drops", len(result.DropMoments),
		"elapsed_ms", time.Since(started).Milliseconds(),
	)
	return result, nil
}

// analyzePCM runs the DSP stages on decoded samples. A positive
// containerDuration takes precedence over the sample-derived length.
func (a *Analyzer) analyzePCM(pcm *audio.PCMBuffer, containerDuration float64) *Result {
	duration := containerDuration
	if duration <= 0 {
		duration = pcm.Duration()
	}

	energy := energyEnvelope(pcm.Samples)
	onset := onsetEnvelope(energy)

	bpm, bpmConfidence := detectBPM(onset)

	var beatGrid []float64
	if bpm != nil {
		beatGrid = buildBeatGrid(*bpm, duration)
	}

	keySignature, camelotKey, keyConfidence := detectKey(pcm.Samples)

	phrases := detectPhrases(energy)
	drops := detectDrops(energy)
	structure := labelStructure(phrases, drops, duration)

	return &Result{
		BPM:             bpm,
		BPMConfidence:   bpmConfidence,
		KeySignature:    keySignature,
		CamelotKey:      camelotKey,
		KeyConfidence:   keyConfidence,
		DurationSeconds: duration,
		BeatGrid:        beatGrid,
		Phrases:         phrases,
		Structure:       structure,
		DropMoments:     drops,
		WaveformLite:    waveformLite(pcm.Samples),
	}
}

// ContentHash is the dedup key for uploaded bytes, shared with the
// catalog's duplicate-upload check.
func ContentHash(data []byte) string {
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}

func derefOrZero(v *float64) float64 {
	if v == nil {
		return 0
	}
	return *v
}

func derefOrEmpty(v *string) string {
	if v == nil {
		return ""
	}
	return *v
}
