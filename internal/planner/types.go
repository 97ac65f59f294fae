package planner

import "github.com/automixer/automix-go/internal/analysis"

// TrackInfo is the planner's read-only view of an analyzed track.
type TrackInfo struct {
	ID              string
	BPM             *float64
	DurationSeconds float64
	CamelotKey      *string
	Genre           string
	BeatGrid        []float64
	Structure       []analysis.StructureSegment
	Phrases         []analysis.Phrase
	DropMoments     []float64
	CuePoints       *CuePoints
}

// CuePoints are the phrase-snapped mix anchors derived from structure.
type CuePoints struct {
	MixIn      float64  `json:"mixIn"`
	MixOut     float64  `json:"mixOut"`
	Drop       *float64 `json:"drop"`
	Breakdown  *float64 `json:"breakdown"`
	Confidence float64  `json:"confidence"`
}

// MixInStrategy tags how the incoming track's entry point was chosen.
type MixInStrategy string

const (
	StrategyDrop      MixInStrategy = "drop"
	StrategyBuildup   MixInStrategy = "buildup"
	StrategyIntro     MixInStrategy = "intro"
	StrategyVerse     MixInStrategy = "verse"
	StrategyPostIntro MixInStrategy = "post_intro"
)

// MixInSelection records the chosen entry point of the incoming track,
// in track time (the renderer divides by the tempo ratio).
type MixInSelection struct {
	Point    float64       `json:"point"`
	Strategy MixInStrategy `json:"strategy"`
	Reason   string        `json:"reason"`
}

// MixPoint places the crossfade on the adjusted (playback) time axis.
type MixPoint struct {
	OutStart       float64  `json:"outStart"`
	InStart        float64  `json:"inStart"`
	OverlapSeconds float64  `json:"overlapSeconds"`
	PhraseAligned  bool     `json:"phraseAligned"`
	OutSection     string   `json:"outSection,omitempty"`
	InSection      string   `json:"inSection,omitempty"`
	Warnings       []string `json:"warnings,omitempty"`
}

// VocalCollision flags overlapping vocal sections at a transition.
type VocalCollision struct {
	Detected bool   `json:"detected"`
	Severity string `json:"severity,omitempty"` // "minor" or "major"
}

// SuggestedType advises the renderer on transition handling.
const (
	SuggestStandard           = "standard"
	SuggestTempoRamp          = "tempo_ramp"
	SuggestInstrumentalBridge = "instrumental_bridge"
)

// PlannedTransition is one adjacent-pair decision in the plan.
type PlannedTransition struct {
	FromID            string          `json:"fromId"`
	ToID              string          `json:"toId"`
	Style             TransitionStyle `json:"style"`
	FadeDuration      float64         `json:"fadeDuration"`
	BeatOffsetSeconds float64         `json:"beatOffsetSeconds"`
	Curve1            FadeCurve       `json:"curve1"`
	Curve2            FadeCurve       `json:"curve2"`
	MixPoint          MixPoint        `json:"mixPoint"`
	MixInSelection    MixInSelection  `json:"mixInSelection"`
	VocalCollision    VocalCollision  `json:"vocalCollision"`
	BPMDiff           float64         `json:"bpmDiff"`
	SuggestedType     string          `json:"suggestedType"`
}

// Quality grades a plan and explains its deductions.
type Quality struct {
	Score         float64   `json:"score"`
	PerTransition []float64 `json:"perTransition"`
	Suggestions   []string  `json:"suggestions,omitempty"`
}

// Plan is the deterministic output of the planner.
type Plan struct {
	Order       []string            `json:"order"`
	TargetBPM   float64             `json:"targetBpm"`
	Transitions []PlannedTransition `json:"transitions"`
	Quality     Quality             `json:"quality"`
}

// Request carries the user's mix parameters. TrackIDs and
// TargetDurationSeconds are required; everything else has defaults.
type Request struct {
	TrackIDs              []string        `json:"trackIds"`
	TargetDurationSeconds int             `json:"targetDurationSeconds"`
	TargetBPM             *float64        `json:"targetBpm,omitempty"`
	TransitionStyle       TransitionStyle `json:"transitionStyle,omitempty"`
	FadeDurationSeconds   *float64        `json:"fadeDurationSeconds,omitempty"`
	EnergyMode            EnergyMode      `json:"energyMode,omitempty"`
	KeepOrder             bool            `json:"keepOrder,omitempty"`
	PreferStems           bool            `json:"preferStems,omitempty"`
	EventType             EventType       `json:"eventType,omitempty"`
	Name                  string          `json:"name,omitempty"`

	EnableMultibandCompression bool     `json:"enableMultibandCompression,omitempty"`
	EnableSidechainDucking     bool     `json:"enableSidechainDucking,omitempty"`
	EnableDynamicEQ            bool     `json:"enableDynamicEQ,omitempty"`
	EnableFilterSweep          bool     `json:"enableFilterSweep,omitempty"`
	LoudnessNormalization      string   `json:"loudnessNormalization,omitempty"` // ebu_r128 | peak | none
	TargetLoudness             *float64 `json:"targetLoudness,omitempty"`
	TempoRampSeconds           float64  `json:"tempoRampSeconds,omitempty"`
}

// bar returns the length of one 4/4 measure at the given tempo.
func bar(bpm float64) float64 {
	if bpm <= 0 {
		return 2.0 // 120 BPM fallback keeps the math finite
	}
	return 60.0 / bpm * 4
}

// snapTo rounds t to the nearest multiple of grid. Idempotent.
func snapTo(t, grid float64) float64 {
	if grid <= 0 {
		return t
	}
	n := t / grid
	return float64(int64(n+0.5*sign(n))) * grid
}

func sign(v float64) float64 {
	if v < 0 {
		return -1
	}
	return 1
}

// snapPhrase snaps to the 8-bar phrase grid of the given tempo.
func snapPhrase(t, bpm float64) float64 {
	return snapTo(t, 8*bar(bpm))
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
