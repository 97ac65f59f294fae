// Package supervisor drives the mashup lifecycle. It owns the gating
// between stages: analyze jobs must complete before a plan is computed,
// and a plan must exist before a render runs. All state lives in the
// catalog; the supervisor only reads statuses and enqueues work, which
// makes a startup rescan sufficient to resurrect interrupted pipelines.
package supervisor

import (
	"context"
	"log/slog"
	"sync"

	"github.com/google/uuid"

	"github.com/automixer/automix-go/internal/analysis"
	"github.com/automixer/automix-go/internal/datastore"
	"github.com/automixer/automix-go/internal/errors"
	"github.com/automixer/automix-go/internal/events"
	"github.com/automixer/automix-go/internal/jobqueue"
	"github.com/automixer/automix-go/internal/logging"
	"github.com/automixer/automix-go/internal/objectstore"
	"github.com/automixer/automix-go/internal/planner"
	"github.com/automixer/automix-go/internal/render"
	"github.com/automixer/automix-go/internal/stems"
)

// Queue is the job dispatch surface the supervisor needs.
type Queue interface {
	Enqueue(kind jobqueue.Kind, payload any) (*jobqueue.Job, error)
	OnKind(kind jobqueue.Kind, handler jobqueue.Handler)
}

// Analyzer extracts metadata from raw track bytes.
type Analyzer interface {
	Analyze(ctx context.Context, data []byte, mime, name string) (*analysis.Result, error)
}

// MixRenderer produces the final mix file from local inputs.
type MixRenderer interface {
	Render(ctx context.Context, inputs []render.Input, plan *planner.Plan, req *planner.Request, outputPath string) (*render.Result, error)
}

// StemSeparator splits a track into stems.
type StemSeparator interface {
	Separate(ctx context.Context, data []byte, name string) (map[stems.Kind]stems.Stem, string, error)
}

// Supervisor wires the pipeline stages together.
type Supervisor struct {
	catalog   datastore.Interface
	blobs     objectstore.Store
	queue     Queue
	analyzer  Analyzer
	planner   *planner.Planner
	renderer  MixRenderer
	separator StemSeparator
	bus       *events.Bus
	logger    *slog.Logger

	// Tracks with an analyze job in flight, so a rescan or repeated
	// upload cannot double-analyze a row.
	analyzeMu sync.Mutex
	analyzing map[string]struct{}
}

// Config carries the supervisor's collaborators. Bus may be nil.
type Config struct {
	Catalog   datastore.Interface
	Blobs     objectstore.Store
	Queue     Queue
	Analyzer  Analyzer
	Planner   *planner.Planner
	Renderer  MixRenderer
	Separator StemSeparator
	Bus       *events.Bus
}

// New builds the supervisor and registers its job handlers.
func New(cfg Config) *Supervisor {
	s := &Supervisor{
		catalog:   cfg.Catalog,
		blobs:     cfg.Blobs,
		queue:     cfg.Queue,
		analyzer:  cfg.Analyzer,
		planner:   cfg.Planner,
		renderer:  cfg.Renderer,
		separator: cfg.Separator,
		bus:       cfg.Bus,
		logger:    logging.ForService("supervisor"),
		analyzing: make(map[string]struct{}),
	}

	s.queue.OnKind(jobqueue.KindAnalyze, s.handleAnalyze)
	s.queue.OnKind(jobqueue.KindSeparate, s.handleSeparate)
	s.queue.OnKind(jobqueue.KindPlan, s.handlePlan)
	s.queue.OnKind(jobqueue.KindRender, s.handleRender)

	return s
}

// SubmitTrack stores an upload and schedules its analysis. Identical
// bytes already analyzed are not re-analyzed: the new row reuses the
// existing blob and analysis results.
func (s *Supervisor) SubmitTrack(ctx context.Context, userID, name, mime string, data []byte) (*datastore.Track, error) {
	hash := analysis.ContentHash(data)

	track := &datastore.Track{
		ID:          uuid.New().String(),
		UserID:      userID,
		Name:        name,
		Mime:        mime,
		SizeBytes:   int64(len(data)),
		ContentHash: hash,
		Status:      datastore.TrackStatusPending,
	}

	if dup, err := s.catalog.TrackByContentHash(hash); err == nil && dup != nil {
		s.logger.Info("duplicate upload, reusing analysis",
			"track", track.ID, "source", dup.ID, "hash", hash)
		copyAnalysis(track, dup)
		if err := s.catalog.SaveTrack(track); err != nil {
			return nil, err
		}
		s.publish(events.TrackStatus(track.ID, userID, track.Status, "duplicate of analyzed upload"))
		return track, nil
	}

	key := objectstore.UploadKey(userID, name)
	if err := s.putBlob(ctx, key, data, mime); err != nil {
		return nil, errors.Wrap(err).
			Component("supervisor").
			Category(errors.CategoryObjectStorage).
			Context("key", key).
			Build()
	}
	track.StorageKey = key

	if err := s.catalog.SaveTrack(track); err != nil {
		return nil, err
	}
	s.publish(events.TrackStatus(track.ID, userID, track.Status, ""))

	if err := s.enqueueAnalyze(track.ID); err != nil {
		return nil, err
	}
	return track, nil
}

// SubmitMashup validates the request against the catalog and schedules
// planning. Every referenced track must be fully analyzed first.
func (s *Supervisor) SubmitMashup(ctx context.Context, userID string, req *planner.Request) (*datastore.Mashup, error) {
	tracks, err := s.catalog.GetTracks(req.TrackIDs)
	if err != nil {
		return nil, err
	}
	if len(tracks) != len(req.TrackIDs) {
		return nil, errors.Newf("request references %d tracks, found %d",
			len(req.TrackIDs), len(tracks)).
			Component("supervisor").
			Category(errors.CategoryNotFound).
			Build()
	}
	for i := range tracks {
		if tracks[i].UserID != userID {
			return nil, errors.Newf("track %s does not belong to the requesting user", tracks[i].ID).
				Component("supervisor").
				Category(errors.CategoryAuthorization).
				Build()
		}
		if tracks[i].Status != datastore.TrackStatusCompleted {
			// Analysis still pending is a state conflict, not a bad
			// request; clients retry after polling the track.
			return nil, errors.Newf("track %s is not analyzed yet (status %s)",
				tracks[i].ID, tracks[i].Status).
				Component("supervisor").
				Category(errors.CategoryConflict).
				Build()
		}
	}

	mashup := &datastore.Mashup{
		ID:                    uuid.New().String(),
		UserID:                userID,
		Name:                  req.Name,
		Status:                datastore.MashupStatusPending,
		TargetDurationSeconds: req.TargetDurationSeconds,
		MixMode:               string(req.TransitionStyle),
		Request:               datastore.JSON[*planner.Request]{Data: req},
	}
	if err := s.catalog.SaveMashup(mashup); err != nil {
		return nil, err
	}
	s.publish(events.MashupStatus(mashup.ID, userID, mashup.Status, ""))

	if _, err := s.queue.Enqueue(jobqueue.KindPlan, planPayload{MashupID: mashup.ID}); err != nil {
		return nil, err
	}
	return mashup, nil
}

// RequestSeparation schedules stem separation for an analyzed or
// still-analyzing track. Separation is independent of analysis.
func (s *Supervisor) RequestSeparation(trackID string) error {
	if _, err := s.catalog.GetTrack(trackID); err != nil {
		return err
	}
	_, err := s.queue.Enqueue(jobqueue.KindSeparate, separatePayload{TrackID: trackID})
	return err
}

// Rescan resurrects jobs for rows left mid-pipeline by a previous
// process. Called once at startup after handlers are registered.
func (s *Supervisor) Rescan() error {
	for _, status := range []string{datastore.TrackStatusPending, datastore.TrackStatusAnalyzing} {
		tracks, err := s.catalog.TracksByStatus(status)
		if err != nil {
			return err
		}
		for i := range tracks {
			if err := s.enqueueAnalyze(tracks[i].ID); err != nil {
				return err
			}
		}
	}

	pending, err := s.catalog.MashupsByStatus(datastore.MashupStatusPending)
	if err != nil {
		return err
	}
	for i := range pending {
		if _, err := s.queue.Enqueue(jobqueue.KindPlan, planPayload{MashupID: pending[i].ID}); err != nil {
			return err
		}
	}

	generating, err := s.catalog.MashupsByStatus(datastore.MashupStatusGenerating)
	if err != nil {
		return err
	}
	for i := range generating {
		if _, err := s.queue.Enqueue(jobqueue.KindRender, renderPayload{MashupID: generating[i].ID}); err != nil {
			return err
		}
	}

	if n := len(pending) + len(generating); n > 0 {
		s.logger.Info("rescan resurrected interrupted mashups", "count", n)
	}
	return nil
}

// enqueueAnalyze schedules analysis unless one is already in flight for
// the track.
func (s *Supervisor) enqueueAnalyze(trackID string) error {
	s.analyzeMu.Lock()
	if _, busy := s.analyzing[trackID]; busy {
		s.analyzeMu.Unlock()
		return nil
	}
	s.analyzing[trackID] = struct{}{}
	s.analyzeMu.Unlock()

	if _, err := s.queue.Enqueue(jobqueue.KindAnalyze, analyzePayload{TrackID: trackID}); err != nil {
		s.clearAnalyzing(trackID)
		return err
	}
	return nil
}

func (s *Supervisor) clearAnalyzing(trackID string) {
	s.analyzeMu.Lock()
	delete(s.analyzing, trackID)
	s.analyzeMu.Unlock()
}

func (s *Supervisor) publish(ev events.Event) {
	if s.bus != nil {
		s.bus.Publish(ev)
	}
}

// copyAnalysis reuses an analyzed row's blob and results on a new row.
func copyAnalysis(dst, src *datastore.Track) {
	dst.StorageKey = src.StorageKey
	dst.Status = datastore.TrackStatusCompleted
	dst.AnalysisVersion = src.AnalysisVersion
	dst.BPM = src.BPM
	dst.BPMConfidence = src.BPMConfidence
	dst.KeySignature = src.KeySignature
	dst.CamelotKey = src.CamelotKey
	dst.KeyConfidence = src.KeyConfidence
	dst.DurationSeconds = src.DurationSeconds
	dst.BeatGrid = src.BeatGrid
	dst.Phrases = src.Phrases
	dst.Structure = src.Structure
	dst.DropMoments = src.DropMoments
	dst.WaveformLite = src.WaveformLite
	dst.CuePoints = src.CuePoints
}
