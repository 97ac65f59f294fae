package analysis

import (
	"math"

	"github.com/automixer/automix-go/internal/audio"
)

// detectBPM estimates tempo from the onset envelope by normalized
// autocorrelation over the lag range corresponding to [minBPM, maxBPM].
// Returns nil when the envelope is too short to correlate.
func detectBPM(onset []float64) (bpm *float64, confidence float64) {
	if len(onset) < 4 {
		return nil, 0
	}

	frameRate := float64(audio.SampleRate) / hopSize
	lagMin := int(math.Round(60.0 / maxBPM * frameRate))
	lagMax := int(math.Round(60.0 / minBPM * frameRate))
	if lagMax >= len(onset) {
		lagMax = len(onset) - 1
	}
	if lagMin < 1 {
		lagMin = 1
	}
	if lagMin > lagMax {
		return nil, 0
	}

	bestLag := 0
	bestCorr := math.Inf(-1)
	for lag := lagMin; lag <= lagMax; lag++ {
		corr := pearson(onset[:len(onset)-lag], onset[lag:])
		if corr > bestCorr {
			bestCorr = corr
			bestLag = lag
		}
	}
	if bestLag == 0 {
		return nil, 0
	}

	value := 60.0 * frameRate / float64(bestLag)
	confidence = clamp01((bestCorr + 1) / 2)
	return &value, confidence
}

// pearson computes the Pearson correlation of two equal-length series.
// Degenerate series (zero variance) correlate to 0.
func pearson(a, b []float64) float64 {
	n := len(a)
	if n == 0 || n != len(b) {
		return 0
	}
	ma := mean(a)
	mb := mean(b)
	var cov, va, vb float64
	for i := 0; i < n; i++ {
		da := a[i] - ma
		db := b[i] - mb
		cov += da * db
		va += da * da
		vb += db * db
	}
	if va == 0 || vb == 0 {
		return 0
	}
	return cov / math.Sqrt(va*vb)
}

// buildBeatGrid lays a regular grid t_k = k*60/bpm over the track,
// truncated at the duration and capped at maxBeatGridEntries. Times carry
// 3-decimal precision.
func buildBeatGrid(bpm float64, durationSeconds float64) []float64 {
	if bpm <= 0 || durationSeconds <= 0 {
		return nil
	}
	interval := 60.0 / bpm
	grid := make([]float64, 0, maxBeatGridEntries)
	for k := 0; ; k++ {
		t := float64(k) * interval
		if t > durationSeconds || len(grid) >= maxBeatGridEntries {
			break
		}
		rounded := math.Round(t*1000) / 1000
		if rounded > durationSeconds {
			break
		}
		grid = append(grid, rounded)
	}
	return grid
}

func clamp01(v float64) float64 {
	return math.Min(1, math.Max(0, v))
}
