package analysis

import "math"

// waveformLite reduces the track to at most 256 mean-magnitude bins in
// [0,1], rounded to 6 decimals, for UI rendering.
func waveformLite(samples []float32) []float64 {
	if len(samples) == 0 {
		return nil
	}
	binSize := len(samples) / waveformBins
	if binSize < 1 {
		binSize = 1
	}

	bins := make([]float64, 0, waveformBins)
	for off := 0; off < len(samples) && len(bins) < waveformBins; off += binSize {
		end := off + binSize
		if end > len(samples) {
			end = len(samples)
		}
		var sum float64
		for _, s := range samples[off:end] {
			sum += math.Abs(float64(s))
		}
		v := sum / float64(end-off)
		bins = append(bins, math.Round(v*1e6)/1e6)
	}
	return bins
}
