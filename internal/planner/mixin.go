package planner

import "fmt"

// selectMixIn chooses where the incoming track enters, in track time.
// The decision ladder prefers musical anchors (drop, buildup) and falls
// back to the healed cue points when none apply to the requested style
// and energy phase.
func selectMixIn(to *TrackInfo, cp CuePoints, style TransitionStyle, phase energyPhase, presetFade, bpm float64) MixInSelection {
	b := bar(bpm)

	if style == StyleDrop && cp.Drop != nil {
		return MixInSelection{
			Point:    *cp.Drop,
			Strategy: StrategyDrop,
			Reason:   "drop style requested and a drop is present",
		}
	}

	if phase == phasePeak {
		if start, ok := sectionStart(to, "buildup"); ok {
			return MixInSelection{
				Point:    snapPhrase(start, bpm),
				Strategy: StrategyBuildup,
				Reason:   "peak phase enters through the buildup",
			}
		}
		if cp.Drop != nil {
			return MixInSelection{
				Point:    *cp.Drop,
				Strategy: StrategyDrop,
				Reason:   "peak phase with no buildup enters at the drop",
			}
		}
	}

	if presetFade < 8*b {
		return MixInSelection{
			Point:    cp.MixIn,
			Strategy: StrategyPostIntro,
			Reason:   fmt.Sprintf("fade %.1fs fits inside 8 bars", presetFade),
		}
	}

	if presetFade >= 16*b {
		return MixInSelection{
			Point:    0,
			Strategy: StrategyIntro,
			Reason:   "long blend starts from the top of the track",
		}
	}

	if start, ok := sectionStart(to, "verse"); ok {
		return MixInSelection{
			Point:    snapPhrase(start, bpm),
			Strategy: StrategyVerse,
			Reason:   "mid-length blend enters at the first verse",
		}
	}

	return MixInSelection{
		Point:    cp.MixIn,
		Strategy: StrategyPostIntro,
		Reason:   "no structural anchor, using the detected mix-in cue",
	}
}
