package analysis

import "github.com/automixer/automix-go/internal/audio"

// energyEnvelope computes the short-time energy per frame:
// E[i] = sum(samples[i*hop .. i*hop+frame]^2) / frame.
func energyEnvelope(samples []float32) []float64 {
	if len(samples) < frameSize {
		return nil
	}
	frames := 1 + (len(samples)-frameSize)/hopSize
	env := make([]float64, frames)
	for i := 0; i < frames; i++ {
		off := i * hopSize
		var sum float64
		for _, s := range samples[off : off+frameSize] {
			sum += float64(s) * float64(s)
		}
		env[i] = sum / frameSize
	}
	return env
}

// onsetEnvelope is the half-wave rectified first difference of the energy
// envelope. Rising energy marks onsets; falling energy is discarded.
func onsetEnvelope(energy []float64) []float64 {
	if len(energy) == 0 {
		return nil
	}
	onset := make([]float64, len(energy))
	for i := 1; i < len(energy); i++ {
		if d := energy[i] - energy[i-1]; d > 0 {
			onset[i] = d
		}
	}
	return onset
}

// smooth applies a trailing moving average of the given window.
func smooth(env []float64, window int) []float64 {
	if window <= 1 || len(env) == 0 {
		out := make([]float64, len(env))
		copy(out, env)
		return out
	}
	out := make([]float64, len(env))
	var sum float64
	for i := range env {
		sum += env[i]
		if i >= window {
			sum -= env[i-window]
		}
		n := i + 1
		if n > window {
			n = window
		}
		out[i] = sum / float64(n)
	}
	return out
}

// mean returns the arithmetic mean, 0 for empty input.
func mean(v []float64) float64 {
	if len(v) == 0 {
		return 0
	}
	var sum float64
	for _, x := range v {
		sum += x
	}
	return sum / float64(len(v))
}

// frameTime converts a frame index to seconds.
func frameTime(idx int) float64 {
	return float64(idx) * hopSize / float64(audio.SampleRate)
}
