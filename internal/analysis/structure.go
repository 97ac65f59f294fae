package analysis

import (
	"math"
	"sort"
)

// detectPhrases finds contiguous high-energy spans on the lightly
// smoothed envelope. A span opens when the envelope exceeds 1.15x its
// mean and closes when it falls below 0.75x.
func detectPhrases(energy []float64) []Phrase {
	env := smooth(energy, phraseSmoothingWindow)
	mu := mean(env)
	if mu == 0 {
		return nil
	}

	enter := 1.15 * mu
	exit := 0.75 * mu

	var phrases []Phrase
	active := false
	startIdx := 0
	var sum float64
	var count int

	flush := func(endIdx int) {
		if count == 0 {
			return
		}
		phrases = append(phrases, Phrase{
			Start:  frameTime(startIdx),
			End:    frameTime(endIdx),
			Energy: sum / float64(count),
		})
	}

	for i, v := range env {
		switch {
		case !active && v >= enter:
			active = true
			startIdx = i
			sum = v
			count = 1
		case active && v < exit:
			flush(i)
			active = false
			sum = 0
			count = 0
		case active:
			sum += v
			count++
		}
	}
	if active {
		flush(len(env) - 1)
	}
	return phrases
}

// detectDrops marks energy peaks on the coarsely smoothed envelope:
// a frame qualifies when it jumps more than 10% over its predecessor and
// sits at least 40% above the envelope mean. At most 3 drops are kept,
// in time order, with a minimum spacing of 10 seconds.
func detectDrops(energy []float64) []float64 {
	env := smooth(energy, dropSmoothingWindow)
	mu := mean(env)
	if mu == 0 {
		return nil
	}

	const maxDrops = 3
	const minSpacingSeconds = 10.0

	var drops []float64
	for i := 1; i < len(env)-1; i++ {
		if env[i] <= 1.1*env[i-1] || env[i] < 1.4*mu || env[i] < env[i+1] {
			continue
		}
		t := frameTime(i)
		if len(drops) > 0 && t-drops[len(drops)-1] < minSpacingSeconds {
			continue
		}
		drops = append(drops, math.Round(t*1000)/1000)
		if len(drops) >= maxDrops {
			break
		}
	}
	return drops
}

// labelStructure turns phrases and drops into labeled sections using the
// rule set: first phrase is the intro, later phrases alternate verse and
// chorus, detected drops override their window, a long silent tail
// becomes the outro.
func labelStructure(phrases []Phrase, drops []float64, duration float64) []StructureSegment {
	var segments []StructureSegment

	if len(phrases) == 0 {
		introEnd := math.Min(15, duration)
		segments = append(segments, StructureSegment{Label: LabelIntro, Start: 0, End: introEnd, Confidence: 0.5})
		if duration > introEnd {
			segments = append(segments, StructureSegment{Label: LabelBody, Start: introEnd, End: duration, Confidence: 0.5})
		}
		return segments
	}

	for i, p := range phrases {
		label := LabelIntro
		if i > 0 {
			if i%2 == 1 {
				label = LabelVerse
			} else {
				label = LabelChorus
			}
		}
		segments = append(segments, StructureSegment{
			Label:      label,
			Start:      clampTime(p.Start, duration),
			End:        clampTime(p.End, duration),
			Confidence: 0.6,
		})
	}

	for _, drop := range drops {
		segments = append(segments, StructureSegment{
			Label:      LabelDrop,
			Start:      math.Max(0, drop-1),
			End:        math.Min(duration, drop+6),
			Confidence: 0.8,
		})
	}

	sort.SliceStable(segments, func(i, j int) bool {
		return segments[i].Start < segments[j].Start
	})
	segments = mergeOverlaps(segments)

	// A quiet tail longer than 4 seconds after the last label is an outro.
	if n := len(segments); n > 0 {
		lastEnd := segments[n-1].End
		if duration-lastEnd > 4 {
			segments = append(segments, StructureSegment{
				Label:      LabelOutro,
				Start:      lastEnd,
				End:        duration,
				Confidence: 0.6,
			})
		}
	}

	return segments
}

// mergeOverlaps resolves overlapping segments by earliest start: a
// segment starting inside its predecessor is clipped to begin where the
// predecessor ends, and vanishing segments are dropped.
func mergeOverlaps(segments []StructureSegment) []StructureSegment {
	if len(segments) < 2 {
		return segments
	}
	out := segments[:1]
	for _, seg := range segments[1:] {
		prev := &out[len(out)-1]
		if seg.Start < prev.End {
			if seg.End <= prev.End {
				continue
			}
			seg.Start = prev.End
		}
		out = append(out, seg)
	}
	return out
}

func clampTime(t, duration float64) float64 {
	return math.Min(math.Max(t, 0), duration)
}
