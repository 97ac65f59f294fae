package datastore

import (
	"fmt"
	"log/slog"
	"time"

	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/automixer/automix-go/internal/conf"
	"github.com/automixer/automix-go/internal/logging"
	"github.com/automixer/automix-go/internal/planner"
)

// Store is the shared gorm implementation embedded by both backends.
type Store struct {
	DB       *gorm.DB
	Settings *conf.Settings
}

func (s *Store) logger() *slog.Logger {
	return logging.ForService("datastore")
}

// performAutoMigration creates or upgrades the schema.
func performAutoMigration(db *gorm.DB, dbType string) error {
	start := time.Now()
	if err := db.AutoMigrate(&Track{}, &Stem{}, &Mashup{}); err != nil {
		return fmt.Errorf("%s auto-migration failed: %w", dbType, err)
	}
	logging.ForService("datastore").Debug("database migration complete",
		"db_type", dbType, "elapsed", time.Since(start))
	return nil
}

// createGormLogger keeps gorm quiet except for slow queries and errors.
func createGormLogger() gormlogger.Interface {
	return gormlogger.Default.LogMode(gormlogger.Warn)
}

func (s *Store) Close() error {
	if s.DB == nil {
		return nil
	}
	sqlDB, err := s.DB.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

func (s *Store) SaveTrack(track *Track) error {
	if err := s.DB.Save(track).Error; err != nil {
		s.logger().Error("failed to save track", "track_id", track.ID, "error", err)
		return err
	}
	return nil
}

func (s *Store) GetTrack(id string) (*Track, error) {
	var track Track
	if err := s.DB.First(&track, "id = ?", id).Error; err != nil {
		return nil, translateErr(err)
	}
	return &track, nil
}

// GetTracks fetches rows for the given ids, returned in the ids' order.
func (s *Store) GetTracks(ids []string) ([]Track, error) {
	var rows []Track
	if err := s.DB.Where("id IN ?", ids).Find(&rows).Error; err != nil {
		return nil, err
	}
	byID := make(map[string]Track, len(rows))
	for _, r := range rows {
		byID[r.ID] = r
	}
	ordered := make([]Track, 0, len(rows))
	for _, id := range ids {
		if r, ok := byID[id]; ok {
			ordered = append(ordered, r)
		}
	}
	return ordered, nil
}

func (s *Store) ListTracks(userID string, limit, offset int) ([]Track, error) {
	q := s.DB.Order("created_at DESC").Limit(limit).Offset(offset)
	if userID != "" {
		q = q.Where("user_id = ?", userID)
	}
	var rows []Track
	if err := q.Find(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}

func (s *Store) TracksByStatus(status string) ([]Track, error) {
	var rows []Track
	if err := s.DB.Where("status = ?", status).Find(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}

// TrackByContentHash finds an analyzed track with identical bytes, used
// to skip re-analysis on duplicate uploads.
func (s *Store) TrackByContentHash(hash string) (*Track, error) {
	var track Track
	err := s.DB.Where("content_hash = ? AND status = ?", hash, TrackStatusCompleted).
		First(&track).Error
	if err != nil {
		return nil, translateErr(err)
	}
	return &track, nil
}

func (s *Store) UpdateTrackStatus(id, status string) error {
	res := s.DB.Model(&Track{}).Where("id = ?", id).Update("status", status)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return fmt.Errorf("track %s: %w", id, ErrNotFound)
	}
	return nil
}

// SaveTrackCuePoints persists healed cue points, the planner's
// heal-on-read write-back.
func (s *Store) SaveTrackCuePoints(id string, cp planner.CuePoints) error {
	res := s.DB.Model(&Track{}).Where("id = ?", id).
		Update("cue_points", JSON[*planner.CuePoints]{Data: &cp})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return fmt.Errorf("track %s: %w", id, ErrNotFound)
	}
	return nil
}

func (s *Store) DeleteTrack(id string) error {
	return s.DB.Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("track_id = ?", id).Delete(&Stem{}).Error; err != nil {
			return err
		}
		return tx.Delete(&Track{}, "id = ?", id).Error
	})
}

func (s *Store) SaveStem(stem *Stem) error {
	return s.DB.Save(stem).Error
}

func (s *Store) GetStem(id string) (*Stem, error) {
	var stem Stem
	if err := s.DB.First(&stem, "id = ?", id).Error; err != nil {
		return nil, translateErr(err)
	}
	return &stem, nil
}

func (s *Store) StemsForTrack(trackID string) ([]Stem, error) {
	var rows []Stem
	if err := s.DB.Where("track_id = ?", trackID).Order("kind").Find(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}

func (s *Store) SaveMashup(mashup *Mashup) error {
	if err := s.DB.Save(mashup).Error; err != nil {
		s.logger().Error("failed to save mashup", "mashup_id", mashup.ID, "error", err)
		return err
	}
	return nil
}

func (s *Store) GetMashup(id string) (*Mashup, error) {
	var mashup Mashup
	if err := s.DB.First(&mashup, "id = ?", id).Error; err != nil {
		return nil, translateErr(err)
	}
	return &mashup, nil
}

func (s *Store) ListMashups(userID string, limit, offset int) ([]Mashup, error) {
	q := s.DB.Order("created_at DESC").Limit(limit).Offset(offset)
	if userID != "" {
		q = q.Where("user_id = ?", userID)
	}
	var rows []Mashup
	if err := q.Find(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}

func (s *Store) MashupsByStatus(status string) ([]Mashup, error) {
	var rows []Mashup
	if err := s.DB.Where("status = ?", status).Find(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}

func (s *Store) UpdateMashupStatus(id, status string) error {
	res := s.DB.Model(&Mashup{}).Where("id = ?", id).Update("status", status)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return fmt.Errorf("mashup %s: %w", id, ErrNotFound)
	}
	return nil
}

func (s *Store) DeleteMashup(id string) error {
	return s.DB.Delete(&Mashup{}, "id = ?", id).Error
}
