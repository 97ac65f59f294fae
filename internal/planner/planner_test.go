package planner

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/automixer/automix-go/internal/analysis"
)

func f64(v float64) *float64 { return &v }

func seg(label string, start, end float64) analysis.StructureSegment {
	return analysis.StructureSegment{Label: label, Start: start, End: end, Confidence: 0.8}
}

func trackX() *TrackInfo {
	return &TrackInfo{
		ID:              "X",
		BPM:             f64(120),
		DurationSeconds: 180,
		CamelotKey:      strPtr("8A"),
		Structure: []analysis.StructureSegment{
			seg("intro", 0, 16), seg("verse", 16, 96),
			seg("chorus", 96, 160), seg("outro", 160, 180),
		},
	}
}

func trackY() *TrackInfo {
	return &TrackInfo{
		ID:              "Y",
		BPM:             f64(124),
		DurationSeconds: 200,
		CamelotKey:      strPtr("8A"),
		Structure: []analysis.StructureSegment{
			seg("intro", 0, 20), seg("verse", 20, 100),
			seg("drop", 100, 108), seg("outro", 180, 200),
		},
	}
}

func strPtr(s string) *string { return &s }

func TestTwoTrackSmoothMix(t *testing.T) {
	t.Parallel()

	p := New()
	plan := p.Plan([]*TrackInfo{trackX(), trackY()}, &Request{
		TrackIDs:              []string{"X", "Y"},
		TargetDurationSeconds: 300,
		TransitionStyle:       StyleSmooth,
		EnergyMode:            EnergySteady,
	})

	assert.InDelta(t, 122, plan.TargetBPM, 1e-9)
	assert.Equal(t, []string{"X", "Y"}, plan.Order)
	require.Len(t, plan.Transitions, 1)

	tr := plan.Transitions[0]
	assert.Equal(t, StyleSmooth, tr.Style)

	b := bar(plan.TargetBPM)
	assert.GreaterOrEqual(t, tr.MixPoint.OverlapSeconds, 4*b-1e-3)
	assert.LessOrEqual(t, tr.MixPoint.OverlapSeconds, 8*b+1e-3)
	assert.True(t, tr.MixPoint.PhraseAligned)
	assert.False(t, tr.VocalCollision.Detected)
	assert.GreaterOrEqual(t, plan.Quality.Score, 80.0)
}

func TestPlanDeterministic(t *testing.T) {
	t.Parallel()

	req := &Request{
		TrackIDs:              []string{"X", "Y"},
		TargetDurationSeconds: 300,
		TransitionStyle:       StyleEnergy,
		EnergyMode:            EnergyBuild,
	}
	p := New()
	first := p.Plan([]*TrackInfo{trackX(), trackY()}, req)
	second := p.Plan([]*TrackInfo{trackX(), trackY()}, req)
	assert.Equal(t, first, second)
}

func TestOverlapIsBarMultiple(t *testing.T) {
	t.Parallel()

	p := New()
	for _, style := range AllTransitionStyles {
		plan := p.Plan([]*TrackInfo{trackX(), trackY()}, &Request{
			TrackIDs:              []string{"X", "Y"},
			TargetDurationSeconds: 300,
			TransitionStyle:       style,
		})
		require.Len(t, plan.Transitions, 1, "style %s", style)

		b := bar(plan.TargetBPM)
		bars := plan.Transitions[0].MixPoint.OverlapSeconds / b
		assert.InDelta(t, math.Round(bars), bars, 1e-3/b, "style %s", style)
		assert.GreaterOrEqual(t, bars, 2.0-1e-6, "style %s", style)
		assert.LessOrEqual(t, bars, 16.0+1e-6, "style %s", style)
	}
}

func TestKeepOrderWithDropMixIn(t *testing.T) {
	t.Parallel()

	a := &TrackInfo{ID: "A", BPM: f64(128), DurationSeconds: 180,
		Structure: []analysis.StructureSegment{seg("intro", 0, 16), seg("outro", 160, 180)}}
	b := &TrackInfo{ID: "B", BPM: f64(126), DurationSeconds: 190,
		Structure: []analysis.StructureSegment{seg("intro", 0, 16), seg("outro", 170, 190)}}
	c := &TrackInfo{ID: "C", BPM: f64(124), DurationSeconds: 200,
		Structure: []analysis.StructureSegment{
			seg("intro", 0, 16), seg("buildup", 48, 64),
			seg("drop", 64, 80), seg("outro", 180, 200),
		}}

	p := New()
	plan := p.Plan([]*TrackInfo{a, b, c}, &Request{
		TrackIDs:              []string{"A", "B", "C"},
		TargetDurationSeconds: 240,
		TransitionStyle:       StyleDrop,
		KeepOrder:             true,
	})

	assert.Equal(t, []string{"A", "B", "C"}, plan.Order)
	require.Len(t, plan.Transitions, 2)

	intoC := plan.Transitions[1]
	assert.Equal(t, StrategyDrop, intoC.MixInSelection.Strategy)
	assert.InDelta(t, 64, intoC.MixInSelection.Point, 1e-9)
	assert.LessOrEqual(t, intoC.MixPoint.OverlapSeconds, 4*bar(plan.TargetBPM)+1e-6)
}

func TestVocalCollisionMajor(t *testing.T) {
	t.Parallel()

	targetBPM := 120.0
	overlap := 9 * bar(targetBPM)

	collision := detectVocalCollision("chorus", "chorus", overlap, targetBPM)
	assert.True(t, collision.Detected)
	assert.Equal(t, "major", collision.Severity)
	assert.Equal(t, SuggestInstrumentalBridge, suggestedType(collision, 0))

	tr := &PlannedTransition{
		FromID:         "X",
		ToID:           "Y",
		VocalCollision: collision,
		MixPoint:       MixPoint{OverlapSeconds: overlap, PhraseAligned: true},
	}
	score, suggestions := scoreTransition(tr, "", "")
	assert.LessOrEqual(t, score, 78.0)
	assert.NotEmpty(t, suggestions)
}

func TestVocalCollisionRequiresOverlapAndBothVocal(t *testing.T) {
	t.Parallel()

	assert.False(t, detectVocalCollision("chorus", "chorus", 0, 120).Detected)
	assert.False(t, detectVocalCollision("outro", "chorus", 10, 120).Detected)
	assert.Equal(t, "minor",
		detectVocalCollision("verse", "verse", 4*bar(120), 120).Severity)
}

func TestMissingBPMFallsBackTo120(t *testing.T) {
	t.Parallel()

	a := &TrackInfo{ID: "A", DurationSeconds: 180,
		Structure: []analysis.StructureSegment{seg("intro", 0, 16), seg("outro", 160, 180)}}
	b := &TrackInfo{ID: "B", DurationSeconds: 200,
		Structure: []analysis.StructureSegment{seg("intro", 0, 16), seg("outro", 180, 200)}}

	p := New()
	plan := p.Plan([]*TrackInfo{a, b}, &Request{
		TrackIDs:              []string{"A", "B"},
		TargetDurationSeconds: 240,
	})

	assert.InDelta(t, 120, plan.TargetBPM, 1e-9)
	require.Len(t, plan.Transitions, 1)

	// Fallback tempo equals the target, so no time stretching happens
	// and mix points stay in plain track time.
	tr := plan.Transitions[0]
	assert.GreaterOrEqual(t, tr.MixPoint.OutStart, 0.0)
	assert.LessOrEqual(t, tr.MixPoint.OutStart, a.DurationSeconds)
	assert.Zero(t, tr.BPMDiff)
}

func TestForbiddenMixOutAdvancesToOutro(t *testing.T) {
	t.Parallel()

	from := &TrackInfo{
		ID: "F", BPM: f64(120), DurationSeconds: 160,
		Structure: []analysis.StructureSegment{
			seg("intro", 0, 16), seg("chorus", 16, 60),
			seg("drop", 60, 100), seg("outro", 120, 160),
		},
		CuePoints: &CuePoints{MixIn: 16, MixOut: 64, Confidence: 0.9},
	}

	outStart, snapFar, warnings := validateOutStart(from, 64, 120)
	assert.InDelta(t, 128, outStart, 1e-9) // snap(120) on the 16 s grid
	assert.True(t, snapFar)                // moved 8 s, beyond bar/2
	assert.NotEmpty(t, warnings)
	assert.Equal(t, "outro", sectionAt(from, outStart))
}

func TestForbiddenMixInPushedForward(t *testing.T) {
	t.Parallel()

	to := &TrackInfo{
		ID: "T", BPM: f64(120), DurationSeconds: 200,
		Structure: []analysis.StructureSegment{
			seg("chorus", 0, 48), seg("verse", 48, 120), seg("outro", 180, 200),
		},
	}

	moved, warnings := validateInStart(to, 16, 120, StrategyPostIntro)
	assert.NotEmpty(t, warnings)
	assert.False(t, MixInForbidden[sectionAt(to, moved)])

	// Drop strategy lands wherever the drop is, even on forbidden labels.
	same, none := validateInStart(to, 16, 120, StrategyDrop)
	assert.InDelta(t, 16, same, 1e-9)
	assert.Empty(t, none)
}

func TestStructureRuleCompliance(t *testing.T) {
	t.Parallel()

	p := New()
	for _, mode := range AllEnergyModes {
		plan := p.Plan([]*TrackInfo{trackX(), trackY()}, &Request{
			TrackIDs:              []string{"X", "Y"},
			TargetDurationSeconds: 300,
			EnergyMode:            mode,
		})
		for _, tr := range plan.Transitions {
			assert.False(t, MixOutForbidden[tr.MixPoint.OutSection],
				"mode %s mixes out of %s", mode, tr.MixPoint.OutSection)
			if tr.MixInSelection.Strategy != StrategyDrop {
				assert.False(t, MixInForbidden[tr.MixPoint.InSection],
					"mode %s mixes into %s", mode, tr.MixPoint.InSection)
			}
		}
	}
}

func TestMixPointWithinAdjustedBounds(t *testing.T) {
	t.Parallel()

	x, y := trackX(), trackY()
	p := New()
	plan := p.Plan([]*TrackInfo{x, y}, &Request{
		TrackIDs:              []string{"X", "Y"},
		TargetDurationSeconds: 300,
	})
	require.Len(t, plan.Transitions, 1)

	fromRatio := clamp(plan.TargetBPM / *x.BPM, 0.75, 1.33)
	toRatio := clamp(plan.TargetBPM / *y.BPM, 0.75, 1.33)
	tr := plan.Transitions[0]
	assert.GreaterOrEqual(t, tr.MixPoint.OutStart, 0.0)
	assert.LessOrEqual(t, tr.MixPoint.OutStart, x.DurationSeconds/fromRatio+1e-6)
	assert.GreaterOrEqual(t, tr.MixPoint.InStart, 0.0)
	assert.LessOrEqual(t, tr.MixPoint.InStart, y.DurationSeconds/toRatio+1e-6)
}

func TestQualityMonotonicUnderCollision(t *testing.T) {
	t.Parallel()

	clean := PlannedTransition{FromID: "A", ToID: "B",
		MixPoint: MixPoint{OverlapSeconds: 16, PhraseAligned: true}}
	dirty := clean
	dirty.VocalCollision = VocalCollision{Detected: true, Severity: "major"}

	cleanScore, _ := scoreTransition(&clean, "", "")
	dirtyScore, _ := scoreTransition(&dirty, "", "")
	assert.Less(t, dirtyScore, cleanScore)
}

func TestGenreDistancePenalty(t *testing.T) {
	t.Parallel()

	tr := &PlannedTransition{FromID: "A", ToID: "B",
		MixPoint: MixPoint{PhraseAligned: true}}

	far, _ := scoreTransition(tr, "trance", "hiphop") // distance 5
	near, _ := scoreTransition(tr, "house", "techno") // distance 1
	unknown, _ := scoreTransition(tr, "polka", "techno")
	assert.Less(t, far, near)
	assert.Equal(t, near, unknown) // unknown genres carry no penalty
}

func TestOrderingModes(t *testing.T) {
	t.Parallel()

	mk := func(id string, bpm float64) *TrackInfo {
		return &TrackInfo{ID: id, BPM: f64(bpm), DurationSeconds: 180}
	}
	tracks := []*TrackInfo{mk("a", 128), mk("b", 120), mk("c", 126), mk("d", 124)}

	ids := func(ts []*TrackInfo) []string {
		out := make([]string, len(ts))
		for i, t := range ts {
			out[i] = t.ID
		}
		return out
	}

	build := orderTracks(tracks, &Request{EnergyMode: EnergyBuild}, 124, 120)
	assert.Equal(t, []string{"b", "d", "c", "a"}, ids(build))

	wave := orderTracks(tracks, &Request{EnergyMode: EnergyWave}, 124, 120)
	assert.Equal(t, []string{"b", "a", "d", "c"}, ids(wave))

	closest := orderTracks(tracks, &Request{EnergyMode: EnergySteady}, 124, 120)
	assert.Equal(t, "d", ids(closest)[0])

	kept := orderTracks(tracks, &Request{KeepOrder: true, EnergyMode: EnergyBuild}, 124, 120)
	assert.Equal(t, []string{"a", "b", "c", "d"}, ids(kept))
}

func TestTargetBPMSelection(t *testing.T) {
	t.Parallel()

	tracks := []*TrackInfo{
		{ID: "a", BPM: f64(120)},
		{ID: "b", BPM: f64(124)},
		{ID: "c"},
	}
	assert.InDelta(t, 122, computeTargetBPM(tracks, &Request{}, 120), 1e-9)
	assert.InDelta(t, 128, computeTargetBPM(tracks, &Request{TargetBPM: f64(128)}, 120), 1e-9)
	assert.InDelta(t, 120, computeTargetBPM([]*TrackInfo{{ID: "x"}}, &Request{}, 120), 1e-9)
}

func TestSnapIdempotent(t *testing.T) {
	t.Parallel()

	for _, v := range []float64{0, 3.7, 15.49, 63.2, 128, 199.9} {
		once := snapPhrase(v, 124)
		twice := snapPhrase(once, 124)
		assert.InDelta(t, once, twice, 1e-9, "snap(%v)", v)
	}
}

func TestCuePointHealing(t *testing.T) {
	t.Parallel()

	y := trackY()
	y.CuePoints = &CuePoints{MixIn: 2, MixOut: 180, Confidence: 0.9}

	cp, recomputed := resolveCuePoints(y, 120)
	assert.True(t, recomputed)
	assert.GreaterOrEqual(t, cp.MixIn, 4.0)

	fresh := &CuePoints{MixIn: 16, MixOut: 180, Confidence: 0.9}
	y.CuePoints = fresh
	cp, recomputed = resolveCuePoints(y, 120)
	assert.False(t, recomputed)
	assert.Equal(t, *fresh, cp)
}

type cueRecorder struct {
	saved map[string]CuePoints
}

func (r *cueRecorder) SaveCuePoints(id string, cp CuePoints) error {
	r.saved[id] = cp
	return nil
}

func TestHealedCuePointsArePersisted(t *testing.T) {
	t.Parallel()

	rec := &cueRecorder{saved: map[string]CuePoints{}}
	p := New(WithCueWriter(rec))
	p.Plan([]*TrackInfo{trackX(), trackY()}, &Request{
		TrackIDs:              []string{"X", "Y"},
		TargetDurationSeconds: 300,
	})

	// Neither track carried stored cues, so both get healed and saved.
	assert.Len(t, rec.saved, 2)
	assert.GreaterOrEqual(t, rec.saved["Y"].MixIn, 4.0)
}

func TestBeatOffsetZeroForIdenticalGrids(t *testing.T) {
	t.Parallel()

	grid := make([]float64, 64)
	for i := range grid {
		grid[i] = float64(i) * 0.5 // 120 BPM
	}
	offset := beatOffset(grid, grid, bar(120), AlignDownbeat)
	assert.InDelta(t, 0, offset, 1e-9)
}

func TestBeatOffsetRecoversShift(t *testing.T) {
	t.Parallel()

	from := make([]float64, 64)
	to := make([]float64, 64)
	for i := range from {
		from[i] = float64(i) * 0.5
		to[i] = float64(i)*0.5 + 0.05
	}
	offset := beatOffset(from, to, bar(120), AlignNearest)
	assert.InDelta(t, -0.05, offset, 0.011)
	assert.LessOrEqual(t, math.Abs(offset), bar(120)/2)
}

func TestFewerThanTwoTracks(t *testing.T) {
	t.Parallel()

	p := New()
	plan := p.Plan([]*TrackInfo{trackX()}, &Request{
		TrackIDs: []string{"X"}, TargetDurationSeconds: 120,
	})
	assert.Empty(t, plan.Transitions)
	assert.Equal(t, []string{"X"}, plan.Order)
	assert.InDelta(t, 100, plan.Quality.Score, 1e-9)
}

func TestTempoRampSuggestedForLargeBPMGap(t *testing.T) {
	t.Parallel()

	slow := &TrackInfo{ID: "S", BPM: f64(100), DurationSeconds: 180,
		Structure: []analysis.StructureSegment{seg("intro", 0, 16), seg("outro", 160, 180)}}
	fast := &TrackInfo{ID: "F", BPM: f64(130), DurationSeconds: 180,
		Structure: []analysis.StructureSegment{seg("intro", 0, 16), seg("outro", 160, 180)}}

	p := New()
	plan := p.Plan([]*TrackInfo{slow, fast}, &Request{
		TrackIDs:              []string{"S", "F"},
		TargetDurationSeconds: 240,
		KeepOrder:             true,
	})
	require.Len(t, plan.Transitions, 1)
	assert.Equal(t, SuggestTempoRamp, plan.Transitions[0].SuggestedType)
	assert.InDelta(t, 30, plan.Transitions[0].BPMDiff, 1e-9)
}
