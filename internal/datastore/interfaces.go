// Package datastore persists the catalog: tracks, stems, and mashups.
// SQLite and MySQL backends share one gorm-based implementation.
package datastore

import (
	"errors"
	"fmt"

	"gorm.io/gorm"

	"github.com/automixer/automix-go/internal/conf"
	"github.com/automixer/automix-go/internal/planner"
)

// ErrNotFound wraps gorm's record-not-found for callers that should not
// import gorm.
var ErrNotFound = errors.New("record not found")

// Interface abstracts catalog access for the rest of the application.
type Interface interface {
	Open() error
	Close() error

	SaveTrack(track *Track) error
	GetTrack(id string) (*Track, error)
	GetTracks(ids []string) ([]Track, error)
	ListTracks(userID string, limit, offset int) ([]Track, error)
	TracksByStatus(status string) ([]Track, error)
	TrackByContentHash(hash string) (*Track, error)
	UpdateTrackStatus(id, status string) error
	SaveTrackCuePoints(id string, cp planner.CuePoints) error
	DeleteTrack(id string) error

	SaveStem(stem *Stem) error
	GetStem(id string) (*Stem, error)
	StemsForTrack(trackID string) ([]Stem, error)

	SaveMashup(mashup *Mashup) error
	GetMashup(id string) (*Mashup, error)
	ListMashups(userID string, limit, offset int) ([]Mashup, error)
	MashupsByStatus(status string) ([]Mashup, error)
	UpdateMashupStatus(id, status string) error
	DeleteMashup(id string) error
}

// New selects the configured backend. Settings validation guarantees
// exactly one of SQLite or MySQL is enabled.
func New(settings *conf.Settings) (Interface, error) {
	switch {
	case settings.Output.SQLite.Enabled:
		return &SQLiteStore{Store: Store{Settings: settings}}, nil
	case settings.Output.MySQL.Enabled:
		return &MySQLStore{Store: Store{Settings: settings}}, nil
	default:
		return nil, fmt.Errorf("no database backend enabled")
	}
}

// translateErr maps gorm sentinel errors onto package sentinels.
func translateErr(err error) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return fmt.Errorf("%w", ErrNotFound)
	}
	return err
}
