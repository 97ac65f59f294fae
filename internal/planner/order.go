package planner

import (
	"math"
	"sort"
)

// computeTargetBPM picks the explicit request BPM, the median of known
// track BPMs, or the configured default.
func computeTargetBPM(tracks []*TrackInfo, req *Request, fallback float64) float64 {
	if req.TargetBPM != nil && *req.TargetBPM > 0 {
		return *req.TargetBPM
	}

	var bpms []float64
	for _, t := range tracks {
		if t.BPM != nil && *t.BPM > 0 {
			bpms = append(bpms, *t.BPM)
		}
	}
	if len(bpms) == 0 {
		return fallback
	}

	sort.Float64s(bpms)
	mid := len(bpms) / 2
	if len(bpms)%2 == 1 {
		return bpms[mid]
	}
	return (bpms[mid-1] + bpms[mid]) / 2
}

// orderTracks arranges the set per the energy mode. All sorts are stable
// with the original request order as tiebreak, keeping plans deterministic.
func orderTracks(tracks []*TrackInfo, req *Request, targetBPM, fallbackBPM float64) []*TrackInfo {
	ordered := make([]*TrackInfo, len(tracks))
	copy(ordered, tracks)

	if req.KeepOrder {
		return ordered
	}

	bpmOf := func(t *TrackInfo) float64 {
		return trackBPMOrDefault(t, fallbackBPM)
	}

	switch req.EnergyMode {
	case EnergyBuild:
		sort.SliceStable(ordered, func(i, j int) bool {
			return bpmOf(ordered[i]) < bpmOf(ordered[j])
		})
	case EnergyWave:
		// Split into low and high halves by BPM, then interleave the
		// low half with the reversed high half.
		byBPM := make([]*TrackInfo, len(ordered))
		copy(byBPM, ordered)
		sort.SliceStable(byBPM, func(i, j int) bool {
			return bpmOf(byBPM[i]) < bpmOf(byBPM[j])
		})
		half := len(byBPM) / 2
		low := byBPM[:half]
		high := byBPM[half:]
		for i, j := 0, len(high)-1; i < j; i, j = i+1, j-1 {
			high[i], high[j] = high[j], high[i]
		}
		out := make([]*TrackInfo, 0, len(byBPM))
		for i := 0; i < len(high); i++ {
			if i < len(low) {
				out = append(out, low[i])
			}
			out = append(out, high[i])
		}
		return out
	default:
		sort.SliceStable(ordered, func(i, j int) bool {
			return math.Abs(bpmOf(ordered[i])-targetBPM) < math.Abs(bpmOf(ordered[j])-targetBPM)
		})
	}
	return ordered
}

// energyPhase labels a transition's position in the set's arc.
type energyPhase string

const (
	phaseWarmup   energyPhase = "warmup"
	phaseBuild    energyPhase = "build"
	phasePeak     energyPhase = "peak"
	phaseCooldown energyPhase = "cooldown"
)

// phaseFor derives the phase of transition i out of n-1 for the mode.
func phaseFor(mode EnergyMode, i, n int) energyPhase {
	switch mode {
	case EnergySteady:
		return phaseBuild
	case EnergyWave:
		switch i % 3 {
		case 0:
			return phaseBuild
		case 1:
			return phasePeak
		default:
			return phaseCooldown
		}
	}

	if n <= 1 {
		return phaseBuild
	}
	p := float64(i) / float64(n-1)
	switch {
	case p < 0.25:
		return phaseWarmup
	case p < 0.6:
		return phaseBuild
	case p < 0.9:
		return phasePeak
	default:
		return phaseCooldown
	}
}

// eventAdjust nudges fade durations for the room: longer, gentler blends
// for weddings and birthdays, tighter cuts for clubs.
func eventAdjust(event EventType, fade float64) float64 {
	switch event {
	case EventWedding, EventBirthday:
		return fade + 1.5
	case EventClub:
		return fade - 0.5
	default:
		return fade
	}
}
