// Package stems splits a track into vocals, drums, bass and other.
// Engines are consulted in configured order; an engine that is down or
// errors falls through to the next one, and a deterministic
// frequency-band engine always terminates the list. Per-stem results
// are independent, so a partial set is a valid outcome.
package stems

import (
	"context"
	"log/slog"

	"github.com/automixer/automix-go/internal/conf"
	"github.com/automixer/automix-go/internal/errors"
	"github.com/automixer/automix-go/internal/logging"
)

// Kind identifies one stem of a track.
type Kind string

const (
	KindVocals Kind = "vocals"
	KindDrums  Kind = "drums"
	KindBass   Kind = "bass"
	KindOther  Kind = "other"
)

// AllKinds lists every stem kind in output order.
var AllKinds = []Kind{KindVocals, KindDrums, KindBass, KindOther}

// Stem is one separated band of audio, encoded and ready for storage.
type Stem struct {
	Data []byte
	Ext  string // container extension, "wav" or "mp3"
}

// Engine is a single separation backend.
type Engine interface {
	// Name identifies the engine in logs and in stem rows.
	Name() string
	// IsAvailable reports whether the engine can accept work right now.
	// Implementations bound this with a short probe deadline.
	IsAvailable(ctx context.Context) bool
	// Separate splits the encoded track into stems. A result missing
	// some kinds is valid.
	Separate(ctx context.Context, data []byte, name string) (map[Kind]Stem, error)
}

// Separator tries an ordered engine list and reports which engine
// produced the result.
type Separator struct {
	engines []Engine
	logger  *slog.Logger
}

// NewSeparator builds the engine list from settings. Unknown engine
// identifiers are skipped with a warning, and the frequency-band
// engine is always appended last so separation can always proceed.
func NewSeparator(settings *conf.Settings) *Separator {
	logger := logging.ForService("stems")

	var engines []Engine
	hasBandsplit := false
	for _, id := range settings.Stems.Engines {
		switch id {
		case "remote":
			if settings.Stems.RemoteURL == "" {
				logger.Warn("remote stem engine configured without stems.remoteurl, skipping")
				continue
			}
			engines = append(engines, NewRemoteEngine(settings.Stems.RemoteURL,
				settings.Stems.ProbeTimeout, settings.Stems.SeparateTimeout))
		case "bandsplit":
			engines = append(engines, NewBandsplitEngine())
			hasBandsplit = true
		default:
			logger.Warn("unknown stem engine in configuration", "engine", id)
		}
	}
	if !hasBandsplit {
		engines = append(engines, NewBandsplitEngine())
	}

	return &Separator{engines: engines, logger: logger}
}

// NewSeparatorWithEngines is the injection point for tests and for
// callers that assemble their own engine list.
func NewSeparatorWithEngines(engines ...Engine) *Separator {
	return &Separator{engines: engines, logger: logging.ForService("stems")}
}

// Separate runs the first available engine and falls through on error.
// It returns the stems together with the name of the engine that
// produced them.
func (s *Separator) Separate(ctx context.Context, data []byte, name string) (map[Kind]Stem, string, error) {
	var lastErr error
	for _, engine := range s.engines {
		if err := ctx.Err(); err != nil {
			return nil, "", err
		}
		if !engine.IsAvailable(ctx) {
			s.logger.Debug("stem engine unavailable, trying next", "engine", engine.Name())
			continue
		}

		out, err := engine.Separate(ctx, data, name)
		if err != nil {
			s.logger.Warn("stem engine failed, trying next",
				"engine", engine.Name(), "track", name, "error", err)
			lastErr = err
			continue
		}
		if len(out) == 0 {
			s.logger.Warn("stem engine returned no stems, trying next",
				"engine", engine.Name(), "track", name)
			continue
		}
		return out, engine.Name(), nil
	}

	if lastErr == nil {
		lastErr = errors.Newf("no stem engine available").Build()
	}
	return nil, "", errors.New(lastErr).
		Component("stems").
		Category(errors.CategoryStemEngine).
		Context("track", name).
		Context("engines", len(s.engines)).
		Build()
}
