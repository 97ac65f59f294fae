package planner

import "math"

// sectionStart returns the start of the first segment with the label.
func sectionStart(track *TrackInfo, label string) (float64, bool) {
	for i := range track.Structure {
		if track.Structure[i].Label == label {
			return track.Structure[i].Start, true
		}
	}
	return 0, false
}

// sectionEnd returns the end of the first segment with the label.
func sectionEnd(track *TrackInfo, label string) (float64, bool) {
	for i := range track.Structure {
		if track.Structure[i].Label == label {
			return track.Structure[i].End, true
		}
	}
	return 0, false
}

// sectionAt returns the label covering t, or "" when unlabeled.
func sectionAt(track *TrackInfo, t float64) string {
	for i := range track.Structure {
		if t >= track.Structure[i].Start && t < track.Structure[i].End {
			return track.Structure[i].Label
		}
	}
	return ""
}

// trackBPMOrDefault falls back to the planner default for null BPM.
func trackBPMOrDefault(track *TrackInfo, fallback float64) float64 {
	if track.BPM != nil && *track.BPM > 0 {
		return *track.BPM
	}
	return fallback
}

// cuePointsStale applies the heal-on-read rule: a stored mixIn below 4
// seconds on a track longer than a minute was produced by an earlier
// detector and gets recomputed. Other cue fields are left alone.
func cuePointsStale(cp *CuePoints, duration float64) bool {
	if cp == nil {
		return true
	}
	return cp.MixIn < 4 && duration > 60
}

// detectCuePoints derives mix anchors from structure, snapped to the
// track's own 8-bar phrase grid.
func detectCuePoints(track *TrackInfo, fallbackBPM float64) CuePoints {
	bpm := trackBPMOrDefault(track, fallbackBPM)
	b := bar(bpm)
	duration := track.DurationSeconds

	snap := func(t float64) float64 {
		return clamp(snapPhrase(t, bpm), 0, duration)
	}

	cp := CuePoints{Confidence: 0.6}

	// Mix-in: end of intro, start of verse, start of buildup, or a
	// 16-bar guess capped at 10% of the track.
	if end, ok := sectionEnd(track, "intro"); ok && snap(end) > 0 {
		cp.MixIn = snap(end)
		cp.Confidence = 0.8
	} else if start, ok := sectionStart(track, "verse"); ok {
		cp.MixIn = snap(start)
	} else if start, ok := sectionStart(track, "buildup"); ok {
		cp.MixIn = snap(start)
	} else {
		cp.MixIn = math.Min(16*b, duration*0.1)
		cp.Confidence = 0.4
	}

	if start, ok := sectionStart(track, "drop"); ok {
		cp.Drop = &start
	} else if len(track.DropMoments) > 0 {
		d := track.DropMoments[0]
		cp.Drop = &d
	}

	if start, ok := sectionStart(track, "breakdown"); ok {
		cp.Breakdown = &start
	}

	// Mix-out: start of outro, else 32 bars before the end.
	if start, ok := sectionStart(track, "outro"); ok {
		cp.MixOut = snap(start)
	} else {
		cp.MixOut = math.Max(0, duration-32*b)
	}

	return cp
}

// resolveCuePoints returns usable cue points for the track, recomputing
// when missing or stale, and reports whether they were recomputed.
func resolveCuePoints(track *TrackInfo, fallbackBPM float64) (CuePoints, bool) {
	if !cuePointsStale(track.CuePoints, track.DurationSeconds) {
		return *track.CuePoints, false
	}
	return detectCuePoints(track, fallbackBPM), true
}
