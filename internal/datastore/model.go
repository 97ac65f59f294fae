package datastore

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"time"

	"github.com/automixer/automix-go/internal/analysis"
	"github.com/automixer/automix-go/internal/planner"
)

// Entity statuses. Tracks move pending -> analyzing -> complete/failed;
// mashups move pending -> generating -> completed/failed.
const (
	TrackStatusPending   = "pending"
	TrackStatusAnalyzing = "analyzing"
	TrackStatusCompleted = "completed"
	TrackStatusFailed    = "failed"

	MashupStatusPending    = "pending"
	MashupStatusGenerating = "generating"
	MashupStatusCompleted  = "completed"
	MashupStatusFailed     = "failed"

	StemStatusPending   = "pending"
	StemStatusSeparated = "separated"
	StemStatusFailed    = "failed"
)

// JSON wraps any serializable value as a TEXT column.
type JSON[T any] struct {
	Data T
}

// Value implements driver.Valuer.
func (j JSON[T]) Value() (driver.Value, error) {
	raw, err := json.Marshal(j.Data)
	if err != nil {
		return nil, err
	}
	return string(raw), nil
}

// Scan implements sql.Scanner.
func (j *JSON[T]) Scan(src any) error {
	if src == nil {
		var zero T
		j.Data = zero
		return nil
	}
	var raw []byte
	switch v := src.(type) {
	case []byte:
		raw = v
	case string:
		raw = []byte(v)
	default:
		return fmt.Errorf("cannot scan %T into JSON column", src)
	}
	if len(raw) == 0 {
		var zero T
		j.Data = zero
		return nil
	}
	return json.Unmarshal(raw, &j.Data)
}

// Track is one uploaded source file plus its analysis results.
type Track struct {
	ID          string `gorm:"primaryKey;type:varchar(36)"`
	UserID      string `gorm:"index"`
	Name        string
	Mime        string
	StorageKey  string
	SizeBytes   int64
	ContentHash string `gorm:"index"`
	Genre       string

	Status          string `gorm:"index"`
	AnalysisVersion string
	AnalysisError   string

	BPM             *float64
	BPMConfidence   float64
	KeySignature    *string
	CamelotKey      *string
	KeyConfidence   float64
	DurationSeconds float64

	BeatGrid     JSON[[]float64]                   `gorm:"type:text"`
	Phrases      JSON[[]analysis.Phrase]           `gorm:"type:text"`
	Structure    JSON[[]analysis.StructureSegment] `gorm:"type:text"`
	DropMoments  JSON[[]float64]                   `gorm:"type:text"`
	WaveformLite JSON[[]float64]                   `gorm:"type:text"`
	CuePoints    JSON[*planner.CuePoints]          `gorm:"type:text"`

	CreatedAt time.Time
	UpdatedAt time.Time
}

// ApplyAnalysis copies an analyzer result onto the row and marks it
// complete.
func (t *Track) ApplyAnalysis(res *analysis.Result) {
	t.BPM = res.BPM
	t.BPMConfidence = res.BPMConfidence
	t.KeySignature = res.KeySignature
	t.CamelotKey = res.CamelotKey
	t.KeyConfidence = res.KeyConfidence
	t.DurationSeconds = res.DurationSeconds
	t.BeatGrid = JSON[[]float64]{Data: res.BeatGrid}
	t.Phrases = JSON[[]analysis.Phrase]{Data: res.Phrases}
	t.Structure = JSON[[]analysis.StructureSegment]{Data: res.Structure}
	t.DropMoments = JSON[[]float64]{Data: res.DropMoments}
	t.WaveformLite = JSON[[]float64]{Data: res.WaveformLite}
	t.AnalysisVersion = res.AnalysisVersion
	t.AnalysisError = ""
	t.Status = TrackStatusCompleted
}

// PlannerView projects the row into the planner's track shape.
func (t *Track) PlannerView() *planner.TrackInfo {
	return &planner.TrackInfo{
		ID:              t.ID,
		BPM:             t.BPM,
		DurationSeconds: t.DurationSeconds,
		CamelotKey:      t.CamelotKey,
		Genre:           t.Genre,
		BeatGrid:        t.BeatGrid.Data,
		Structure:       t.Structure.Data,
		Phrases:         t.Phrases.Data,
		DropMoments:     t.DropMoments.Data,
		CuePoints:       t.CuePoints.Data,
	}
}

// Stem is one separated part of a track.
type Stem struct {
	ID         string `gorm:"primaryKey;type:varchar(36)"`
	TrackID    string `gorm:"index"`
	Kind       string `gorm:"index"` // vocals, drums, bass, other
	StorageKey string
	Status     string
	Engine     string
	Quality    float64
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

// Mashup is one requested mix and, when completed, its rendered output.
type Mashup struct {
	ID                    string `gorm:"primaryKey;type:varchar(36)"`
	UserID                string `gorm:"index"`
	Name                  string
	Status                string `gorm:"index"`
	TargetDurationSeconds int
	MixMode               string
	OutputKey             string
	GenerationTimeMs      int64
	ErrorMessage          string

	Request JSON[*planner.Request] `gorm:"type:text"`
	Plan    JSON[*planner.Plan]    `gorm:"type:text"`

	CreatedAt time.Time
	UpdatedAt time.Time
}
