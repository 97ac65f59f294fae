package supervisor

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"

	"github.com/automixer/automix-go/internal/datastore"
	"github.com/automixer/automix-go/internal/errors"
	"github.com/automixer/automix-go/internal/events"
	"github.com/automixer/automix-go/internal/jobqueue"
	"github.com/automixer/automix-go/internal/objectstore"
	"github.com/automixer/automix-go/internal/planner"
	"github.com/automixer/automix-go/internal/render"
)

// Job payloads. Jobs carry only ids; all other state is read from the
// catalog at execution time, which keeps jobs replayable after restart.
type (
	analyzePayload  struct{ TrackID string }
	separatePayload struct{ TrackID string }
	planPayload     struct{ MashupID string }
	renderPayload   struct{ MashupID string }
)

func (s *Supervisor) handleAnalyze(ctx context.Context, payload any) error {
	p, ok := payload.(analyzePayload)
	if !ok {
		return fmt.Errorf("analyze job: unexpected payload %T", payload)
	}
	defer s.clearAnalyzing(p.TrackID)

	track, err := s.catalog.GetTrack(p.TrackID)
	if err != nil {
		return err
	}
	if track.Status == datastore.TrackStatusCompleted {
		return nil
	}

	if err := s.catalog.UpdateTrackStatus(track.ID, datastore.TrackStatusAnalyzing); err != nil {
		return err
	}
	s.publish(events.TrackStatus(track.ID, track.UserID, datastore.TrackStatusAnalyzing, ""))

	data, err := s.readBlob(ctx, track.StorageKey)
	if err != nil {
		return s.failTrack(track, err)
	}

	res, err := s.analyzer.Analyze(ctx, data, track.Mime, track.Name)
	if err != nil {
		return s.failTrack(track, err)
	}

	track.ApplyAnalysis(res)
	if err := s.catalog.SaveTrack(track); err != nil {
		return err
	}
	s.publish(events.TrackStatus(track.ID, track.UserID, datastore.TrackStatusCompleted, ""))
	return nil
}

func (s *Supervisor) handleSeparate(ctx context.Context, payload any) error {
	p, ok := payload.(separatePayload)
	if !ok {
		return fmt.Errorf("separate job: unexpected payload %T", payload)
	}

	track, err := s.catalog.GetTrack(p.TrackID)
	if err != nil {
		return err
	}
	data, err := s.readBlob(ctx, track.StorageKey)
	if err != nil {
		return err
	}

	out, engine, err := s.separator.Separate(ctx, data, track.Name)
	if err != nil {
		return err
	}

	// Each produced stem is stored independently; a partial set is a
	// valid completion.
	for kind, stem := range out {
		key := objectstore.StemKey(track.ID, string(kind), stem.Ext)
		if err := s.putBlob(ctx, key, stem.Data, stemContentType(stem.Ext)); err != nil {
			s.logger.Error("failed to store stem", "track", track.ID, "kind", kind, "error", err)
			continue
		}
		row := &datastore.Stem{
			ID:         uuid.New().String(),
			TrackID:    track.ID,
			Kind:       string(kind),
			StorageKey: key,
			Status:     datastore.StemStatusSeparated,
			Engine:     engine,
		}
		if err := s.catalog.SaveStem(row); err != nil {
			return err
		}
	}

	s.logger.Info("stems separated",
		"track", track.ID, "engine", engine, "stems", len(out))
	return nil
}

func (s *Supervisor) handlePlan(ctx context.Context, payload any) error {
	p, ok := payload.(planPayload)
	if !ok {
		return fmt.Errorf("plan job: unexpected payload %T", payload)
	}

	mashup, err := s.catalog.GetMashup(p.MashupID)
	if err != nil {
		return err
	}
	if mashup.Status != datastore.MashupStatusPending {
		return nil
	}
	req := mashup.Request.Data
	if req == nil {
		return s.failMashup(mashup, errors.Newf("mashup %s has no stored request", mashup.ID).Build())
	}

	tracks, err := s.catalog.GetTracks(req.TrackIDs)
	if err != nil {
		return err
	}
	trackInfos := make([]*planner.TrackInfo, 0, len(tracks))
	for i := range tracks {
		if tracks[i].Status != datastore.TrackStatusCompleted {
			return s.failMashup(mashup, errors.Newf("track %s regressed to status %s before planning",
				tracks[i].ID, tracks[i].Status).
				Category(errors.CategoryValidation).
				Build())
		}
		trackInfos = append(trackInfos, tracks[i].PlannerView())
	}

	plan := s.planner.Plan(trackInfos, req)

	mashup.Plan = datastore.JSON[*planner.Plan]{Data: plan}
	mashup.Status = datastore.MashupStatusGenerating
	if err := s.catalog.SaveMashup(mashup); err != nil {
		return err
	}
	s.publish(events.MashupStatus(mashup.ID, mashup.UserID, mashup.Status, ""))

	_, err = s.queue.Enqueue(jobqueue.KindRender, renderPayload{MashupID: mashup.ID})
	return err
}

func (s *Supervisor) handleRender(ctx context.Context, payload any) error {
	p, ok := payload.(renderPayload)
	if !ok {
		return fmt.Errorf("render job: unexpected payload %T", payload)
	}

	mashup, err := s.catalog.GetMashup(p.MashupID)
	if err != nil {
		return err
	}
	if mashup.Status != datastore.MashupStatusGenerating {
		return nil
	}
	plan := mashup.Plan.Data
	req := mashup.Request.Data
	if plan == nil || req == nil {
		return s.failMashup(mashup, errors.Newf("mashup %s is generating without a stored plan", mashup.ID).Build())
	}

	workDir, err := os.MkdirTemp("", "automix-render-")
	if err != nil {
		return s.failMashup(mashup, err)
	}
	defer os.RemoveAll(workDir)

	inputs, err := s.materializeInputs(ctx, workDir, plan.Order)
	if err != nil {
		return s.failMashup(mashup, err)
	}

	outputPath := filepath.Join(workDir, "mix.mp3")
	res, err := s.renderer.Render(ctx, inputs, plan, req, outputPath)
	if err != nil {
		return s.failMashup(mashup, err)
	}

	key := objectstore.MixKey(mashup.ID)
	mix, err := os.ReadFile(res.OutputPath)
	if err != nil {
		return s.failMashup(mashup, err)
	}
	if err := s.putBlob(ctx, key, mix, "audio/mpeg"); err != nil {
		return s.failMashup(mashup, err)
	}

	mashup.OutputKey = key
	mashup.GenerationTimeMs = res.GenerationTimeMs
	mashup.Status = datastore.MashupStatusCompleted
	mashup.ErrorMessage = ""
	if err := s.catalog.SaveMashup(mashup); err != nil {
		return err
	}
	s.publish(events.MashupStatus(mashup.ID, mashup.UserID, mashup.Status, ""))

	s.logger.Info("mashup rendered",
		"mashup", mashup.ID,
		"output_key", key,
		"duration_s", res.DurationSeconds,
		"fallback", res.UsedFallback,
		"elapsed_ms", res.GenerationTimeMs,
	)
	return nil
}

// materializeInputs downloads each plan-ordered track to the job's work
// directory and shapes it for the renderer.
func (s *Supervisor) materializeInputs(ctx context.Context, workDir string, order []string) ([]render.Input, error) {
	tracks, err := s.catalog.GetTracks(order)
	if err != nil {
		return nil, err
	}
	if len(tracks) != len(order) {
		return nil, errors.Newf("plan references %d tracks, found %d", len(order), len(tracks)).
			Category(errors.CategoryNotFound).
			Build()
	}

	inputs := make([]render.Input, 0, len(tracks))
	for i := range tracks {
		track := &tracks[i]
		path := filepath.Join(workDir, fmt.Sprintf("%02d-%s%s", i, track.ID, sourceExt(track.Name)))
		if err := s.downloadBlob(ctx, track.StorageKey, path); err != nil {
			return nil, err
		}
		inputs = append(inputs, render.Input{
			TrackID:         track.ID,
			Path:            path,
			BPM:             track.BPM,
			DurationSeconds: track.DurationSeconds,
		})
	}
	return inputs, nil
}

// storageAttempts bounds retries of transient object store failures
// before the error surfaces to the job.
const storageAttempts = 3

// withStorageRetry runs fn up to storageAttempts times with a doubling
// delay, stopping early on context cancellation.
func (s *Supervisor) withStorageRetry(ctx context.Context, op string, fn func() error) error {
	var err error
	delay := 500 * time.Millisecond
	for attempt := 1; attempt <= storageAttempts; attempt++ {
		if err = fn(); err == nil {
			return nil
		}
		if attempt == storageAttempts {
			break
		}
		s.logger.Warn("object store operation failed, retrying",
			"op", op, "attempt", attempt, "error", err)
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(delay):
		}
		delay *= 2
	}
	return err
}

func (s *Supervisor) putBlob(ctx context.Context, key string, data []byte, contentType string) error {
	return s.withStorageRetry(ctx, "put "+key, func() error {
		return s.blobs.Put(ctx, key, bytes.NewReader(data), contentType)
	})
}

func (s *Supervisor) readBlob(ctx context.Context, key string) ([]byte, error) {
	var data []byte
	err := s.withStorageRetry(ctx, "get "+key, func() error {
		rc, err := s.blobs.Get(ctx, key)
		if err != nil {
			return err
		}
		defer rc.Close()
		data, err = io.ReadAll(rc)
		return err
	})
	return data, err
}

func (s *Supervisor) downloadBlob(ctx context.Context, key, path string) error {
	rc, err := s.blobs.Get(ctx, key)
	if err != nil {
		return err
	}
	defer rc.Close()

	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if _, err := io.Copy(f, rc); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

// failTrack records the analysis failure and surfaces the error to the
// queue's failure log.
func (s *Supervisor) failTrack(track *datastore.Track, cause error) error {
	track.Status = datastore.TrackStatusFailed
	track.AnalysisError = cause.Error()
	if err := s.catalog.SaveTrack(track); err != nil {
		s.logger.Error("failed to record track failure", "track", track.ID, "error", err)
	}
	s.publish(events.TrackStatus(track.ID, track.UserID, datastore.TrackStatusFailed, cause.Error()))
	return cause
}

// failMashup is the render-or-failed invariant: any error past the
// pending state marks the mashup failed with the cause.
func (s *Supervisor) failMashup(mashup *datastore.Mashup, cause error) error {
	mashup.Status = datastore.MashupStatusFailed
	mashup.ErrorMessage = cause.Error()
	if err := s.catalog.SaveMashup(mashup); err != nil {
		s.logger.Error("failed to record mashup failure", "mashup", mashup.ID, "error", err)
	}
	s.publish(events.MashupStatus(mashup.ID, mashup.UserID, datastore.MashupStatusFailed, cause.Error()))
	return cause
}

func sourceExt(name string) string {
	ext := filepath.Ext(name)
	if ext == "" {
		return ".mp3"
	}
	return ext
}

func stemContentType(ext string) string {
	if ext == "mp3" {
		return "audio/mpeg"
	}
	return "audio/wav"
}
