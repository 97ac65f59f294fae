package planner

import (
	"fmt"
	"math"
	"sort"
)

// buildMixPoint computes the crossfade placement for one transition.
// All intermediate positions are in track time; the returned MixPoint is
// projected onto the playback axis by the caller-supplied tempo ratios,
// while section lookups and warnings happen before projection.
func buildMixPoint(
	from, to *TrackInfo,
	fromCues CuePoints,
	sel MixInSelection,
	presetFade, targetBPM, fallbackBPM float64,
	fromRatio, toRatio float64,
) MixPoint {
	fromBPM := trackBPMOrDefault(from, fallbackBPM)
	toBPM := trackBPMOrDefault(to, fallbackBPM)
	targetBar := bar(targetBPM)

	outStart := clamp(snapPhrase(fromCues.MixOut, fromBPM), 0, from.DurationSeconds)
	inStart := clamp(snapPhrase(sel.Point, toBPM), 0, to.DurationSeconds)

	minBars := 4.0
	if sel.Strategy == StrategyDrop {
		minBars = 2.0
	}
	overlapBars := math.Min(16, math.Max(minBars, math.Round(math.Max(presetFade, 1)/targetBar)))
	overlapSeconds := overlapBars * targetBar

	phraseAligned := math.Abs(snapPhrase(sel.Point, toBPM)-sel.Point) < bar(toBPM)/2

	var warnings []string
	outStart, snapFar, w := validateOutStart(from, outStart, fromBPM)
	if snapFar {
		phraseAligned = false
	}
	warnings = append(warnings, w...)
	inStart, w = validateInStart(to, inStart, toBPM, sel.Strategy)
	warnings = append(warnings, w...)

	mp := MixPoint{
		OutStart:       round3(outStart / safeRatio(fromRatio)),
		InStart:        round3(inStart / safeRatio(toRatio)),
		OverlapSeconds: round3(overlapSeconds),
		PhraseAligned:  phraseAligned,
		OutSection:     sectionAt(from, outStart),
		InSection:      sectionAt(to, inStart),
		Warnings:       warnings,
	}
	return mp
}

// validateOutStart moves a mix-out that lands on a forbidden section to
// the start of the next allowed segment, or to 8 bars before the final
// labeled boundary when none follows. The second return reports a snap
// displacement beyond half a bar, which voids phrase alignment.
func validateOutStart(from *TrackInfo, outStart, bpm float64) (float64, bool, []string) {
	label := sectionAt(from, outStart)
	if !MixOutForbidden[label] {
		return outStart, false, nil
	}

	warnings := []string{fmt.Sprintf("mix-out moved off %s section", label)}

	segments := make([]struct{ start float64 }, 0, len(from.Structure))
	lastEnd := from.DurationSeconds
	for i := range from.Structure {
		if from.Structure[i].End > 0 {
			lastEnd = math.Max(lastEnd, from.Structure[i].End)
		}
		if from.Structure[i].Start > outStart && MixOutAllowed[from.Structure[i].Label] {
			segments = append(segments, struct{ start float64 }{from.Structure[i].Start})
		}
	}
	sort.Slice(segments, func(i, j int) bool { return segments[i].start < segments[j].start })

	candidate := lastEnd - 8*bar(bpm)
	if len(segments) > 0 {
		candidate = segments[0].start
	}
	snapped := clamp(snapPhrase(candidate, bpm), 0, from.DurationSeconds)
	snapFar := math.Abs(snapped-candidate) > bar(bpm)/2
	return snapped, snapFar, warnings
}

// validateInStart pushes a forbidden mix-in forward by 4 bars and
// re-snaps. Drop-strategy entries are exempt: landing on the drop is
// the whole point of that style.
func validateInStart(to *TrackInfo, inStart, bpm float64, strategy MixInStrategy) (float64, []string) {
	label := sectionAt(to, inStart)
	if strategy == StrategyDrop || !MixInForbidden[label] {
		return inStart, nil
	}
	moved := clamp(snapPhrase(inStart+4*bar(bpm), bpm), 0, to.DurationSeconds)
	return moved, []string{fmt.Sprintf("mix-in pushed past %s section", label)}
}

func safeRatio(r float64) float64 {
	if r <= 0 {
		return 1
	}
	return r
}

func round3(v float64) float64 {
	return math.Round(v*1000) / 1000
}
