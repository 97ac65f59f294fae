package analysis

// Structure labels assigned by the rule-based labeler.
const (
	LabelIntro     = "intro"
	LabelVerse     = "verse"
	LabelChorus    = "chorus"
	LabelBuildup   = "buildup"
	LabelBridge    = "bridge"
	LabelHook      = "hook"
	LabelBreakdown = "breakdown"
	LabelDrop      = "drop"
	LabelOutro     = "outro"
	LabelBody      = "body"
)

// Phrase is a contiguous high-energy span of the track.
type Phrase struct {
	Start  float64 `json:"start"`
	End    float64 `json:"end"`
	Energy float64 `json:"energy"`
}

// StructureSegment labels a region of the track.
type StructureSegment struct {
	Label      string  `json:"label"`
	Start      float64 `json:"start"`
	End        float64 `json:"end"`
	Confidence float64 `json:"confidence"`
}

// Result carries everything the analyzer extracts from one track.
type Result struct {
	BPM             *float64           `json:"bpm"`
	BPMConfidence   float64            `json:"bpmConfidence"`
	KeySignature    *string            `json:"keySignature"`
	CamelotKey      *string            `json:"camelotKey"`
	KeyConfidence   float64            `json:"keyConfidence"`
	DurationSeconds float64            `json:"durationSeconds"`
	BeatGrid        []float64          `json:"beatGrid"`
	Phrases         []Phrase           `json:"phrases"`
	Structure       []StructureSegment `json:"structure"`
	DropMoments     []float64          `json:"dropMoments"`
	WaveformLite    []float64          `json:"waveformLite"`
	AnalysisVersion string             `json:"analysisVersion"`
}

// Analyzer frame geometry. Hop of half the frame keeps onset resolution
// at ~12 ms while halving the envelope length.
const (
	frameSize = 1024
	hopSize   = 512

	// Envelope smoothing windows. Phrase detection wants a responsive
	// envelope, drop detection a coarse one.
	phraseSmoothingWindow = 4
	dropSmoothingWindow   = 10

	// BPM search range.
	minBPM = 70.0
	maxBPM = 180.0

	// Beat grid bounds.
	maxBeatGridEntries = 512

	// Waveform reduction bins.
	waveformBins = 256
)
