package planner

import "fmt"

// scoreTransition grades one transition out of 100 and returns the
// advice strings its deductions imply.
func scoreTransition(t *PlannedTransition, fromGenre, toGenre string) (float64, []string) {
	score := 100.0
	var suggestions []string

	if t.BPMDiff > 8 {
		score -= 15
		suggestions = append(suggestions,
			fmt.Sprintf("%s to %s spans %.1f BPM, consider a tempo ramp", t.FromID, t.ToID, t.BPMDiff))
	}

	switch {
	case t.VocalCollision.Detected && t.VocalCollision.Severity == "major":
		score -= 25
		suggestions = append(suggestions,
			fmt.Sprintf("%s to %s overlaps two vocal sections, try an instrumental bridge", t.FromID, t.ToID))
	case t.VocalCollision.Detected:
		score -= 10
		suggestions = append(suggestions,
			fmt.Sprintf("%s to %s has a brief vocal clash", t.FromID, t.ToID))
	}

	if t.MixPoint.PhraseAligned {
		score += 3
	} else {
		score -= 5
		suggestions = append(suggestions,
			fmt.Sprintf("%s enters off the phrase grid", t.ToID))
	}

	if d, known := genreDistance(fromGenre, toGenre); known && d >= 3 {
		score -= 10
		suggestions = append(suggestions,
			fmt.Sprintf("%s and %s are distant genres", fromGenre, toGenre))
	}

	return clamp(score, 0, 100), suggestions
}

// scorePlan aggregates per-transition grades into a mean overall score.
func scorePlan(transitions []PlannedTransition, genres map[string]string) Quality {
	q := Quality{Score: 100}
	if len(transitions) == 0 {
		return q
	}

	var total float64
	for i := range transitions {
		t := &transitions[i]
		score, suggestions := scoreTransition(t, genres[t.FromID], genres[t.ToID])
		q.PerTransition = append(q.PerTransition, score)
		q.Suggestions = append(q.Suggestions, suggestions...)
		total += score
	}
	q.Score = round3(total / float64(len(transitions)))
	return q
}
