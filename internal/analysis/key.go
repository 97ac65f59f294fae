package analysis

import (
	"fmt"
	"math"

	"github.com/automixer/automix-go/internal/audio"
)

// Key detection: a YIN-style monophonic fundamental detector accumulates
// voiced frames into a 12-bin pitch-class histogram, which is then
// correlated against all 24 rotated Krumhansl-Schmuckler profiles.

const (
	keyFrameSize = 2048
	keyHopSize   = 1024

	// YIN acceptance threshold on the cumulative mean normalized
	// difference. Frames above it are treated as unvoiced.
	yinThreshold = 0.15

	// Plausible f0 range for musical content.
	minF0 = 60.0
	maxF0 = 1600.0
)

// Krumhansl-Schmuckler key profiles (C major / C minor), rotated for the
// other 23 keys during matching.
var (
	majorProfile = [12]float64{6.35, 2.23, 3.48, 2.33, 4.38, 4.09, 2.52, 5.19, 2.39, 3.66, 2.29, 2.88}
	minorProfile = [12]float64{6.33, 2.68, 3.52, 5.38, 2.60, 3.53, 2.54, 4.75, 3.98, 2.69, 3.34, 3.17}
)

var noteNames = [12]string{"C", "C#", "D", "D#", "E", "F", "F#", "G", "G#", "A", "A#", "B"}

// Camelot wheel tables indexed by pitch class (0 = C).
var (
	camelotMajor = [12]string{"8B", "3B", "10B", "5B", "12B", "7B", "2B", "9B", "4B", "11B", "6B", "1B"}
	camelotMinor = [12]string{"5A", "12A", "7A", "2A", "9A", "4A", "11A", "6A", "1A", "8A", "3A", "10A"}
)

// detectKey estimates the musical key of the track. Returns nil values
// when no voiced frames were found.
func detectKey(samples []float32) (keySignature, camelotKey *string, confidence float64) {
	histogram := pitchClassHistogram(samples)

	var total float64
	for _, v := range histogram {
		total += v
	}
	if total == 0 {
		return nil, nil, 0
	}
	for i := range histogram {
		histogram[i] /= total
	}

	root, minor, topScore, secondScore := matchProfiles(histogram)
	if topScore <= 0 {
		return nil, nil, 0
	}

	confidence = clamp01((topScore - math.Max(secondScore, 0)) / topScore)

	sig := noteNames[root]
	camelot := camelotMajor[root]
	if minor {
		sig = fmt.Sprintf("%sm", noteNames[root])
		camelot = camelotMinor[root]
	}
	return &sig, &camelot, confidence
}

// pitchClassHistogram runs the fundamental detector over the track and
// accumulates voiced frames into 12 pitch-class bins.
func pitchClassHistogram(samples []float32) [12]float64 {
	var histogram [12]float64
	for off := 0; off+keyFrameSize <= len(samples); off += keyHopSize {
		f0 := yinF0(samples[off : off+keyFrameSize])
		if f0 <= 0 {
			continue
		}
		midi := 69 + 12*math.Log2(f0/440.0)
		pc := int(math.Round(midi)) % 12
		if pc < 0 {
			pc += 12
		}
		histogram[pc]++
	}
	return histogram
}

// yinF0 implements the core YIN pitch detector: difference function,
// cumulative mean normalization, absolute threshold, parabolic
// interpolation around the chosen lag. Returns 0 for unvoiced frames.
func yinF0(frame []float32) float64 {
	n := len(frame)
	half := n / 2

	diff := make([]float64, half)
	for tau := 1; tau < half; tau++ {
		var sum float64
		for i := 0; i < half; i++ {
			d := float64(frame[i]) - float64(frame[i+tau])
			sum += d * d
		}
		diff[tau] = sum
	}

	// Cumulative mean normalized difference.
	cmnd := make([]float64, half)
	cmnd[0] = 1
	var running float64
	for tau := 1; tau < half; tau++ {
		running += diff[tau]
		if running == 0 {
			cmnd[tau] = 1
		} else {
			cmnd[tau] = diff[tau] * float64(tau) / running
		}
	}

	tauMin := int(float64(audio.SampleRate) / maxF0)
	tauMax := int(float64(audio.SampleRate) / minF0)
	if tauMax >= half {
		tauMax = half - 1
	}
	if tauMin < 2 {
		tauMin = 2
	}

	tau := -1
	for t := tauMin; t <= tauMax; t++ {
		if cmnd[t] < yinThreshold {
			// Walk down to the local minimum of the dip.
			for t+1 <= tauMax && cmnd[t+1] < cmnd[t] {
				t++
			}
			tau = t
			break
		}
	}
	if tau < 0 {
		return 0
	}

	// Parabolic interpolation refines the lag to sub-sample precision.
	better := float64(tau)
	if tau > 0 && tau < half-1 {
		s0, s1, s2 := cmnd[tau-1], cmnd[tau], cmnd[tau+1]
		denom := 2*s1 - s2 - s0
		if denom != 0 {
			better += (s2 - s0) / (2 * denom)
		}
	}
	if better <= 0 {
		return 0
	}
	return float64(audio.SampleRate) / better
}

// matchProfiles correlates the histogram against all 24 rotations of the
// major and minor profiles and returns the winner plus the runner-up score.
func matchProfiles(histogram [12]float64) (root int, minor bool, topScore, secondScore float64) {
	topScore = math.Inf(-1)
	secondScore = math.Inf(-1)

	consider := func(score float64, r int, m bool) {
		if score > topScore {
			secondScore = topScore
			topScore = score
			root = r
			minor = m
		} else if score > secondScore {
			secondScore = score
		}
	}

	for r := 0; r < 12; r++ {
		consider(profileCorrelation(histogram, majorProfile, r), r, false)
		consider(profileCorrelation(histogram, minorProfile, r), r, true)
	}
	return root, minor, topScore, secondScore
}

// profileCorrelation computes the Pearson correlation between the
// histogram and a profile rotated so its tonic sits at pitch class root.
func profileCorrelation(histogram [12]float64, profile [12]float64, root int) float64 {
	a := make([]float64, 12)
	b := make([]float64, 12)
	for i := 0; i < 12; i++ {
		a[i] = histogram[i]
		b[i] = profile[(i-root+12)%12]
	}
	return pearson(a, b)
}
