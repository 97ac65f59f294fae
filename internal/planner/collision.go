package planner

// detectVocalCollision flags transitions where both the outgoing and
// incoming sections likely carry a lead vocal while audible together.
// Severity scales with how long the two vocals fight.
func detectVocalCollision(outSection, inSection string, overlapSeconds, targetBPM float64) VocalCollision {
	if overlapSeconds <= 0 {
		return VocalCollision{}
	}
	if !vocalSections[outSection] || !vocalSections[inSection] {
		return VocalCollision{}
	}

	severity := "minor"
	if overlapSeconds > 8*bar(targetBPM) {
		severity = "major"
	}
	return VocalCollision{Detected: true, Severity: severity}
}

// suggestedType advises the renderer: a major vocal clash wants an
// instrumental bridge, a big tempo gap wants a ramp.
func suggestedType(collision VocalCollision, bpmDiff float64) string {
	if collision.Detected && collision.Severity == "major" {
		return SuggestInstrumentalBridge
	}
	if bpmDiff > 8 {
		return SuggestTempoRamp
	}
	return SuggestStandard
}
