// Package planner turns a set of analyzed tracks and a mix request into
// a deterministic transition plan. It is pure and in-memory: malformed
// or partially analyzed tracks are absorbed with safe defaults, and the
// same inputs always produce the same plan.
package planner

import (
	"log/slog"
	"math"

	"github.com/automixer/automix-go/internal/logging"
)

// CueWriter persists cue points that were recomputed during planning.
// The datastore satisfies this; a nil writer disables the write-back.
type CueWriter interface {
	SaveCuePoints(trackID string, cp CuePoints) error
}

// Planner holds the knobs that stay fixed across requests.
type Planner struct {
	fallbackBPM float64
	alignMode   BeatAlignMode
	cueWriter   CueWriter
	logger      *slog.Logger
}

// Option configures a Planner.
type Option func(*Planner)

// WithFallbackBPM overrides the tempo assumed for tracks with no
// detected BPM.
func WithFallbackBPM(bpm float64) Option {
	return func(p *Planner) {
		if bpm > 0 {
			p.fallbackBPM = bpm
		}
	}
}

// WithAlignMode selects which beats participate in offset search.
func WithAlignMode(mode BeatAlignMode) Option {
	return func(p *Planner) { p.alignMode = mode }
}

// WithCueWriter enables persisting healed cue points back to the catalog.
func WithCueWriter(w CueWriter) Option {
	return func(p *Planner) { p.cueWriter = w }
}

// New builds a Planner with the given options.
func New(opts ...Option) *Planner {
	p := &Planner{
		fallbackBPM: 120,
		alignMode:   AlignDownbeat,
	}
	for _, opt := range opts {
		opt(p)
	}
	p.logger = logging.ForService("planner")
	return p
}

// Plan computes the full mix plan. Tracks arrive in request order; the
// slice is not mutated. Fewer than two tracks yields an empty
// transition list with a perfect score.
func (p *Planner) Plan(tracks []*TrackInfo, req *Request) *Plan {
	targetBPM := computeTargetBPM(tracks, req, p.fallbackBPM)
	ordered := orderTracks(tracks, req, targetBPM, p.fallbackBPM)

	plan := &Plan{
		TargetBPM: targetBPM,
		Quality:   Quality{Score: 100},
	}
	for _, t := range ordered {
		plan.Order = append(plan.Order, t.ID)
	}
	if len(ordered) < 2 {
		plan.Transitions = []PlannedTransition{}
		return plan
	}

	style := req.TransitionStyle
	if !ValidTransitionStyle(style) {
		style = StyleSmooth
	}
	preset := CrossfadePresets[style]

	event := req.EventType
	if !ValidEventType(event) {
		event = EventDefault
	}

	cues := make([]CuePoints, len(ordered))
	for i, t := range ordered {
		cp, recomputed := resolveCuePoints(t, p.fallbackBPM)
		cues[i] = cp
		if recomputed && p.cueWriter != nil {
			if err := p.cueWriter.SaveCuePoints(t.ID, cp); err != nil {
				p.logger.Warn("failed to persist recomputed cue points",
					"track_id", t.ID, "error", err)
			}
		}
	}

	genres := make(map[string]string, len(ordered))
	for _, t := range ordered {
		genres[t.ID] = t.Genre
	}

	n := len(ordered)
	for i := 0; i < n-1; i++ {
		from, to := ordered[i], ordered[i+1]
		fromBPM := trackBPMOrDefault(from, p.fallbackBPM)
		toBPM := trackBPMOrDefault(to, p.fallbackBPM)

		baseFade := preset.Duration
		if req.FadeDurationSeconds != nil {
			baseFade = *req.FadeDurationSeconds
		}
		presetFade := math.Min(8, eventAdjust(event, baseFade))
		if presetFade < 0 {
			presetFade = 0
		}

		phase := phaseFor(req.EnergyMode, i, n)
		sel := selectMixIn(to, cues[i+1], style, phase, presetFade, toBPM)

		fromRatio := clamp(targetBPM/fromBPM, 0.75, 1.33)
		toRatio := clamp(targetBPM/toBPM, 0.75, 1.33)

		offset := beatOffset(
			adjustGrid(from.BeatGrid, fromRatio),
			adjustGrid(to.BeatGrid, toRatio),
			bar(targetBPM), p.alignMode)

		mp := buildMixPoint(from, to, cues[i], sel, presetFade,
			targetBPM, p.fallbackBPM, fromRatio, toRatio)

		bpmDiff := math.Abs(fromBPM - toBPM)
		collision := detectVocalCollision(mp.OutSection, mp.InSection, mp.OverlapSeconds, targetBPM)

		plan.Transitions = append(plan.Transitions, PlannedTransition{
			FromID:            from.ID,
			ToID:              to.ID,
			Style:             style,
			FadeDuration:      presetFade,
			BeatOffsetSeconds: offset,
			Curve1:            preset.Curve1,
			Curve2:            preset.Curve2,
			MixPoint:          mp,
			MixInSelection:    sel,
			VocalCollision:    collision,
			BPMDiff:           round3(bpmDiff),
			SuggestedType:     suggestedType(collision, bpmDiff),
		})
	}

	plan.Quality = scorePlan(plan.Transitions, genres)

	p.logger.Debug("plan computed",
		"tracks", len(ordered),
		"target_bpm", targetBPM,
		"transitions", len(plan.Transitions),
		"quality", plan.Quality.Score)
	return plan
}
