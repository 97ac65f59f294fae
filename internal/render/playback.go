package render

import (
	"math"

	"github.com/automixer/automix-go/internal/planner"
)

// Input is one source track on local disk, in plan order.
type Input struct {
	TrackID         string
	Path            string
	BPM             *float64
	DurationSeconds float64
}

// playback places one track on the output timeline. All values are in
// adjusted (post-tempo) seconds except StartOffset's source, which the
// plan carries in track time.
type playback struct {
	TempoRatio       float64
	AdjustedDuration float64
	StartOffset      float64
	FadeInDuration   float64
	StartTime        float64
	FadeOutStart     *float64
	FadeOutDuration  float64
	TrimEnd          float64
}

func bpmOf(in Input, fallback float64) float64 {
	if in.BPM != nil && *in.BPM > 0 {
		return *in.BPM
	}
	return fallback
}

// meanFade averages the plan's fade durations, defaulting to 8 seconds
// for single-track plans so the per-segment formula stays defined.
func meanFade(plan *planner.Plan) float64 {
	if len(plan.Transitions) == 0 {
		return 0
	}
	var total float64
	for i := range plan.Transitions {
		total += plan.Transitions[i].FadeDuration
	}
	return total / float64(len(plan.Transitions))
}

// buildPlaybackPlans derives the per-track timeline. Tracks are trimmed
// so the crossfaded sum covers targetDuration: with N tracks and mean
// fade F, each contributes (targetDuration + (N-1)F)/N of playable
// audio, and the last track absorbs any remainder.
func buildPlaybackPlans(inputs []Input, plan *planner.Plan, targetDuration, fallbackBPM float64) []playback {
	n := len(inputs)
	if n == 0 {
		return nil
	}

	f := meanFade(plan)
	perTrack := (targetDuration + float64(n-1)*f) / float64(n)

	out := make([]playback, n)
	for i := range inputs {
		ratio := clamp(plan.TargetBPM/bpmOf(inputs[i], fallbackBPM), 0.75, 1.33)
		adjusted := inputs[i].DurationSeconds / ratio

		p := playback{
			TempoRatio:       ratio,
			AdjustedDuration: adjusted,
		}

		if i > 0 {
			tr := plan.Transitions[i-1]
			p.StartOffset = clamp(tr.MixInSelection.Point/ratio, 0, math.Max(0, adjusted-1))
			p.FadeInDuration = tr.FadeDuration

			prev := &out[i-1]
			prevPlayable := prev.TrimEnd - prev.StartOffset
			p.StartTime = prev.StartTime + math.Max(0, prevPlayable-tr.FadeDuration)
		}

		p.TrimEnd = math.Min(adjusted, p.StartOffset+perTrack)

		if i < n-1 {
			nextFade := plan.Transitions[i].FadeDuration
			fos := math.Max(p.StartOffset, p.TrimEnd-nextFade)
			p.FadeOutStart = &fos
			p.FadeOutDuration = nextFade
			if p.TrimEnd < fos+nextFade {
				p.TrimEnd = math.Min(adjusted, fos+nextFade)
			}
		} else {
			// Last track runs out the remaining target duration.
			remaining := targetDuration - p.StartTime
			if remaining > 0 {
				p.TrimEnd = math.Min(adjusted, p.StartOffset+remaining)
			}
		}

		out[i] = p
	}
	return out
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
