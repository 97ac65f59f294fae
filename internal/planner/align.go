package planner

import "math"

// BeatAlignMode selects which beats participate in offset search.
type BeatAlignMode string

const (
	AlignDownbeat BeatAlignMode = "downbeat"
	AlignNearest  BeatAlignMode = "nearest"
)

// downbeats keeps every 4th grid entry, the first beat of each bar.
func downbeats(grid []float64) []float64 {
	if len(grid) == 0 {
		return nil
	}
	out := make([]float64, 0, len(grid)/4+1)
	for i := 0; i < len(grid); i += 4 {
		out = append(out, grid[i])
	}
	return out
}

// adjustGrid maps a track-time beat grid onto the playback axis.
func adjustGrid(grid []float64, ratio float64) []float64 {
	if ratio <= 0 {
		ratio = 1
	}
	out := make([]float64, len(grid))
	for i, t := range grid {
		out[i] = t / ratio
	}
	return out
}

// alignmentCost sums, for each reference beat, the distance to the
// nearest candidate beat shifted by offset. Both grids are sorted.
func alignmentCost(ref, cand []float64, offset float64) float64 {
	var total float64
	j := 0
	for _, r := range ref {
		target := r - offset
		for j+1 < len(cand) && cand[j+1] <= target {
			j++
		}
		best := math.Abs(cand[j] - target)
		if j+1 < len(cand) {
			if d := math.Abs(cand[j+1] - target); d < best {
				best = d
			}
		}
		total += best
	}
	return total
}

// beatOffset searches a half-bar window for the shift of the incoming
// grid that best lines it up with the outgoing one. Grids arrive in
// adjusted (playback) time. A 10 ms step keeps the search deterministic
// and well below audible slop.
func beatOffset(fromGrid, toGrid []float64, barSeconds float64, mode BeatAlignMode) float64 {
	if len(fromGrid) == 0 || len(toGrid) == 0 {
		return 0
	}

	ref := fromGrid
	cand := toGrid
	if mode == AlignDownbeat {
		ref = downbeats(ref)
		cand = downbeats(cand)
		if len(ref) == 0 || len(cand) == 0 {
			return 0
		}
	}

	const step = 0.01
	half := barSeconds / 2
	bestOffset := 0.0
	bestCost := math.Inf(1)
	for offset := -half; offset <= half+1e-9; offset += step {
		cost := alignmentCost(ref, cand, offset)
		if cost < bestCost {
			bestCost = cost
			bestOffset = offset
		}
	}
	return math.Round(bestOffset*1000) / 1000
}
