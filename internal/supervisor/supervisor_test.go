package supervisor

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"os"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/automixer/automix-go/internal/analysis"
	"github.com/automixer/automix-go/internal/datastore"
	"github.com/automixer/automix-go/internal/errors"
	"github.com/automixer/automix-go/internal/jobqueue"
	"github.com/automixer/automix-go/internal/planner"
	"github.com/automixer/automix-go/internal/render"
	"github.com/automixer/automix-go/internal/stems"
)

// fakeCatalog is an in-memory datastore.Interface.
type fakeCatalog struct {
	mu      sync.Mutex
	tracks  map[string]*datastore.Track
	stems   map[string]*datastore.Stem
	mashups map[string]*datastore.Mashup
}

func newFakeCatalog() *fakeCatalog {
	return &fakeCatalog{
		tracks:  make(map[string]*datastore.Track),
		stems:   make(map[string]*datastore.Stem),
		mashups: make(map[string]*datastore.Mashup),
	}
}

func (f *fakeCatalog) Open() error  { return nil }
func (f *fakeCatalog) Close() error { return nil }

func (f *fakeCatalog) SaveTrack(track *datastore.Track) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	clone := *track
	f.tracks[track.ID] = &clone
	return nil
}

func (f *fakeCatalog) GetTrack(id string) (*datastore.Track, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	track, ok := f.tracks[id]
	if !ok {
		return nil, datastore.ErrNotFound
	}
	clone := *track
	return &clone, nil
}

func (f *fakeCatalog) GetTracks(ids []string) ([]datastore.Track, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]datastore.Track, 0, len(ids))
	for _, id := range ids {
		if track, ok := f.tracks[id]; ok {
			out = append(out, *track)
		}
	}
	return out, nil
}

func (f *fakeCatalog) ListTracks(userID string, limit, offset int) ([]datastore.Track, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []datastore.Track
	for _, track := range f.tracks {
		if track.UserID == userID {
			out = append(out, *track)
		}
	}
	return out, nil
}

func (f *fakeCatalog) TracksByStatus(status string) ([]datastore.Track, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []datastore.Track
	for _, track := range f.tracks {
		if track.Status == status {
			out = append(out, *track)
		}
	}
	return out, nil
}

func (f *fakeCatalog) TrackByContentHash(hash string) (*datastore.Track, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, track := range f.tracks {
		if track.ContentHash == hash && track.Status == datastore.TrackStatusCompleted {
			clone := *track
			return &clone, nil
		}
	}
	return nil, datastore.ErrNotFound
}

func (f *fakeCatalog) UpdateTrackStatus(id, status string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	track, ok := f.tracks[id]
	if !ok {
		return datastore.ErrNotFound
	}
	track.Status = status
	return nil
}

func (f *fakeCatalog) SaveTrackCuePoints(id string, cp planner.CuePoints) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	track, ok := f.tracks[id]
	if !ok {
		return datastore.ErrNotFound
	}
	track.CuePoints = datastore.JSON[*planner.CuePoints]{Data: &cp}
	return nil
}

func (f *fakeCatalog) DeleteTrack(id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.tracks, id)
	return nil
}

func (f *fakeCatalog) SaveStem(stem *datastore.Stem) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	clone := *stem
	f.stems[stem.ID] = &clone
	return nil
}

func (f *fakeCatalog) GetStem(id string) (*datastore.Stem, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	stem, ok := f.stems[id]
	if !ok {
		return nil, datastore.ErrNotFound
	}
	clone := *stem
	return &clone, nil
}

func (f *fakeCatalog) StemsForTrack(trackID string) ([]datastore.Stem, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []datastore.Stem
	for _, stem := range f.stems {
		if stem.TrackID == trackID {
			out = append(out, *stem)
		}
	}
	return out, nil
}

func (f *fakeCatalog) SaveMashup(mashup *datastore.Mashup) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	clone := *mashup
	f.mashups[mashup.ID] = &clone
	return nil
}

func (f *fakeCatalog) GetMashup(id string) (*datastore.Mashup, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	mashup, ok := f.mashups[id]
	if !ok {
		return nil, datastore.ErrNotFound
	}
	clone := *mashup
	return &clone, nil
}

func (f *fakeCatalog) ListMashups(userID string, limit, offset int) ([]datastore.Mashup, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []datastore.Mashup
	for _, mashup := range f.mashups {
		if mashup.UserID == userID {
			out = append(out, *mashup)
		}
	}
	return out, nil
}

func (f *fakeCatalog) MashupsByStatus(status string) ([]datastore.Mashup, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []datastore.Mashup
	for _, mashup := range f.mashups {
		if mashup.Status == status {
			out = append(out, *mashup)
		}
	}
	return out, nil
}

func (f *fakeCatalog) UpdateMashupStatus(id, status string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	mashup, ok := f.mashups[id]
	if !ok {
		return datastore.ErrNotFound
	}
	mashup.Status = status
	return nil
}

func (f *fakeCatalog) DeleteMashup(id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.mashups, id)
	return nil
}

// syncQueue executes handlers inline on Enqueue, so a test observes the
// whole pipeline synchronously.
type syncQueue struct {
	handlers map[jobqueue.Kind]jobqueue.Handler
	kinds    []jobqueue.Kind
	execute  bool
}

func newSyncQueue(execute bool) *syncQueue {
	return &syncQueue{handlers: make(map[jobqueue.Kind]jobqueue.Handler), execute: execute}
}

func (q *syncQueue) OnKind(kind jobqueue.Kind, handler jobqueue.Handler) {
	q.handlers[kind] = handler
}

func (q *syncQueue) Enqueue(kind jobqueue.Kind, payload any) (*jobqueue.Job, error) {
	q.kinds = append(q.kinds, kind)
	if q.execute {
		if handler, ok := q.handlers[kind]; ok {
			// Handler errors are swallowed after logging, same as the
			// real queue.
			_ = handler(context.Background(), payload)
		}
	}
	return &jobqueue.Job{}, nil
}

// fakeBlobs is an in-memory objectstore.Store.
type fakeBlobs struct {
	mu   sync.Mutex
	data map[string][]byte
}

func newFakeBlobs() *fakeBlobs { return &fakeBlobs{data: make(map[string][]byte)} }

func (f *fakeBlobs) Put(_ context.Context, key string, r io.Reader, _ string) error {
	raw, err := io.ReadAll(r)
	if err != nil {
		return err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.data[key] = raw
	return nil
}

func (f *fakeBlobs) Get(_ context.Context, key string) (io.ReadCloser, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	raw, ok := f.data[key]
	if !ok {
		return nil, fmt.Errorf("missing blob %s", key)
	}
	return io.NopCloser(bytes.NewReader(raw)), nil
}

func (f *fakeBlobs) Delete(_ context.Context, key string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.data, key)
	return nil
}

func (f *fakeBlobs) Exists(_ context.Context, key string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	_, ok := f.data[key]
	return ok, nil
}

type fakeAnalyzer struct {
	result *analysis.Result
	err    error
	calls  int
}

func (f *fakeAnalyzer) Analyze(_ context.Context, _ []byte, _, _ string) (*analysis.Result, error) {
	f.calls++
	return f.result, f.err
}

type fakeRenderer struct {
	err   error
	calls int
}

func (f *fakeRenderer) Render(_ context.Context, inputs []render.Input, _ *planner.Plan, _ *planner.Request, outputPath string) (*render.Result, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	if err := os.WriteFile(outputPath, []byte("mp3 bytes"), 0o600); err != nil {
		return nil, err
	}
	return &render.Result{OutputPath: outputPath, DurationSeconds: 300, GenerationTimeMs: 1234}, nil
}

type fakeSeparator struct {
	stems  map[stems.Kind]stems.Stem
	engine string
	err    error
}

func (f *fakeSeparator) Separate(_ context.Context, _ []byte, _ string) (map[stems.Kind]stems.Stem, string, error) {
	return f.stems, f.engine, f.err
}

func sampleResult() *analysis.Result {
	bpm := 120.0
	camelot := "8A"
	keySig := "A minor"
	return &analysis.Result{
		BPM:             &bpm,
		BPMConfidence:   0.9,
		KeySignature:    &keySig,
		CamelotKey:      &camelot,
		KeyConfidence:   0.8,
		DurationSeconds: 180,
		BeatGrid:        []float64{0, 0.5, 1.0, 1.5},
		Structure: []analysis.StructureSegment{
			{Label: "intro", Start: 0, End: 16, Confidence: 0.8},
			{Label: "verse", Start: 16, End: 150, Confidence: 0.7},
			{Label: "outro", Start: 150, End: 180, Confidence: 0.8},
		},
		AnalysisVersion: "v1",
	}
}

type fixture struct {
	catalog   *fakeCatalog
	blobs     *fakeBlobs
	queue     *syncQueue
	analyzer  *fakeAnalyzer
	renderer  *fakeRenderer
	separator *fakeSeparator
	sup       *Supervisor
}

func newFixture(execute bool) *fixture {
	f := &fixture{
		catalog:   newFakeCatalog(),
		blobs:     newFakeBlobs(),
		queue:     newSyncQueue(execute),
		analyzer:  &fakeAnalyzer{result: sampleResult()},
		renderer:  &fakeRenderer{},
		separator: &fakeSeparator{engine: "bandsplit", stems: map[stems.Kind]stems.Stem{}},
	}
	f.sup = New(Config{
		Catalog:   f.catalog,
		Blobs:     f.blobs,
		Queue:     f.queue,
		Analyzer:  f.analyzer,
		Planner:   planner.New(),
		Renderer:  f.renderer,
		Separator: f.separator,
	})
	return f
}

func (f *fixture) completedTrack(id, userID string) *datastore.Track {
	track := &datastore.Track{
		ID:         id,
		UserID:     userID,
		Name:       id + ".mp3",
		Mime:       "audio/mpeg",
		StorageKey: "blob-" + id,
		Status:     datastore.TrackStatusPending,
	}
	track.ApplyAnalysis(sampleResult())
	_ = f.catalog.SaveTrack(track)
	f.blobs.data["blob-"+id] = []byte("audio-" + id)
	return track
}

func TestSubmitTrackEnqueuesAnalyze(t *testing.T) {
	f := newFixture(false)

	track, err := f.sup.SubmitTrack(context.Background(), "u1", "song.mp3", "audio/mpeg", []byte("audio"))
	require.NoError(t, err)

	assert.Equal(t, datastore.TrackStatusPending, track.Status)
	assert.NotEmpty(t, track.StorageKey)
	assert.Equal(t, []jobqueue.Kind{jobqueue.KindAnalyze}, f.queue.kinds)

	stored, err := f.catalog.GetTrack(track.ID)
	require.NoError(t, err)
	assert.Equal(t, track.ContentHash, stored.ContentHash)

	blob, ok := f.blobs.data[track.StorageKey]
	require.True(t, ok)
	assert.Equal(t, []byte("audio"), blob)
}

func TestSubmitTrackDuplicateReusesAnalysis(t *testing.T) {
	f := newFixture(false)
	original := f.completedTrack("orig", "u1")

	dup, err := f.sup.SubmitTrack(context.Background(), "u2", "copy.mp3", "audio/mpeg", []byte("audio"))
	require.NoError(t, err)

	// The duplicate check keys on content hash, so make the original
	// match the uploaded bytes first.
	original.ContentHash = analysis.ContentHash([]byte("audio"))
	require.NoError(t, f.catalog.SaveTrack(original))

	dup2, err := f.sup.SubmitTrack(context.Background(), "u2", "copy2.mp3", "audio/mpeg", []byte("audio"))
	require.NoError(t, err)

	assert.Equal(t, datastore.TrackStatusCompleted, dup2.Status)
	assert.Equal(t, original.StorageKey, dup2.StorageKey)
	assert.NotNil(t, dup2.BPM)

	// First upload had no duplicate and scheduled analysis; the second
	// must not.
	assert.Equal(t, datastore.TrackStatusPending, dup.Status)
	assert.Equal(t, []jobqueue.Kind{jobqueue.KindAnalyze}, f.queue.kinds)
}

func TestAnalyzeJobCompletesTrack(t *testing.T) {
	f := newFixture(true)

	track, err := f.sup.SubmitTrack(context.Background(), "u1", "song.mp3", "audio/mpeg", []byte("audio"))
	require.NoError(t, err)

	stored, err := f.catalog.GetTrack(track.ID)
	require.NoError(t, err)
	assert.Equal(t, datastore.TrackStatusCompleted, stored.Status)
	require.NotNil(t, stored.BPM)
	assert.InDelta(t, 120.0, *stored.BPM, 0.001)
	assert.Equal(t, "v1", stored.AnalysisVersion)
	assert.Equal(t, 1, f.analyzer.calls)
}

func TestAnalyzeFailureMarksTrackFailed(t *testing.T) {
	f := newFixture(true)
	f.analyzer.result = nil
	f.analyzer.err = fmt.Errorf("corrupt header")

	track, err := f.sup.SubmitTrack(context.Background(), "u1", "bad.mp3", "audio/mpeg", []byte("junk"))
	require.NoError(t, err)

	stored, err := f.catalog.GetTrack(track.ID)
	require.NoError(t, err)
	assert.Equal(t, datastore.TrackStatusFailed, stored.Status)
	assert.Contains(t, stored.AnalysisError, "corrupt header")
}

func TestSubmitMashupRejectsUnanalyzedTrack(t *testing.T) {
	f := newFixture(false)
	pending := &datastore.Track{ID: "t1", UserID: "u1", Status: datastore.TrackStatusPending}
	require.NoError(t, f.catalog.SaveTrack(pending))

	_, err := f.sup.SubmitMashup(context.Background(), "u1", &planner.Request{
		TrackIDs:              []string{"t1"},
		TargetDurationSeconds: 300,
	})
	require.Error(t, err)

	// Incomplete analysis is a state conflict so the API answers 409,
	// not 400.
	var ee *errors.EnhancedError
	require.ErrorAs(t, err, &ee)
	assert.Equal(t, string(errors.CategoryConflict), ee.GetCategory())
}

func TestSubmitMashupRejectsForeignTrack(t *testing.T) {
	f := newFixture(false)
	f.completedTrack("t1", "someone-else")

	_, err := f.sup.SubmitMashup(context.Background(), "u1", &planner.Request{
		TrackIDs:              []string{"t1"},
		TargetDurationSeconds: 300,
	})
	assert.Error(t, err)
}

func TestMashupPipelinePlanThenRender(t *testing.T) {
	f := newFixture(true)
	f.completedTrack("t1", "u1")
	f.completedTrack("t2", "u1")

	mashup, err := f.sup.SubmitMashup(context.Background(), "u1", &planner.Request{
		TrackIDs:              []string{"t1", "t2"},
		TargetDurationSeconds: 300,
		Name:                  "friday set",
	})
	require.NoError(t, err)

	stored, err := f.catalog.GetMashup(mashup.ID)
	require.NoError(t, err)
	assert.Equal(t, datastore.MashupStatusCompleted, stored.Status)
	assert.Equal(t, mashup.ID+".mp3", stored.OutputKey)
	assert.Equal(t, int64(1234), stored.GenerationTimeMs)
	require.NotNil(t, stored.Plan.Data)
	assert.Equal(t, []string{"t1", "t2"}, stored.Plan.Data.Order)

	mix, ok := f.blobs.data[stored.OutputKey]
	require.True(t, ok)
	assert.Equal(t, []byte("mp3 bytes"), mix)

	assert.Equal(t, []jobqueue.Kind{jobqueue.KindPlan, jobqueue.KindRender}, f.queue.kinds)
	assert.Equal(t, 1, f.renderer.calls)
}

func TestRenderFailureMarksMashupFailed(t *testing.T) {
	f := newFixture(true)
	f.completedTrack("t1", "u1")
	f.completedTrack("t2", "u1")
	f.renderer.err = fmt.Errorf("ffmpeg exploded")

	mashup, err := f.sup.SubmitMashup(context.Background(), "u1", &planner.Request{
		TrackIDs:              []string{"t1", "t2"},
		TargetDurationSeconds: 300,
	})
	require.NoError(t, err)

	stored, err := f.catalog.GetMashup(mashup.ID)
	require.NoError(t, err)
	assert.Equal(t, datastore.MashupStatusFailed, stored.Status)
	assert.Contains(t, stored.ErrorMessage, "ffmpeg exploded")
	assert.Empty(t, stored.OutputKey)
}

func TestNoDuplicateAnalyzePerTrack(t *testing.T) {
	f := newFixture(false)

	require.NoError(t, f.sup.enqueueAnalyze("t1"))
	require.NoError(t, f.sup.enqueueAnalyze("t1"))

	assert.Equal(t, []jobqueue.Kind{jobqueue.KindAnalyze}, f.queue.kinds)

	// After the job clears the mark a new analyze may be scheduled.
	f.sup.clearAnalyzing("t1")
	require.NoError(t, f.sup.enqueueAnalyze("t1"))
	assert.Len(t, f.queue.kinds, 2)
}

func TestRescanResurrectsInterruptedRows(t *testing.T) {
	f := newFixture(false)

	require.NoError(t, f.catalog.SaveTrack(&datastore.Track{ID: "t1", Status: datastore.TrackStatusPending}))
	require.NoError(t, f.catalog.SaveTrack(&datastore.Track{ID: "t2", Status: datastore.TrackStatusAnalyzing}))
	require.NoError(t, f.catalog.SaveMashup(&datastore.Mashup{ID: "m1", Status: datastore.MashupStatusPending}))
	require.NoError(t, f.catalog.SaveMashup(&datastore.Mashup{ID: "m2", Status: datastore.MashupStatusGenerating}))

	require.NoError(t, f.sup.Rescan())

	counts := map[jobqueue.Kind]int{}
	for _, kind := range f.queue.kinds {
		counts[kind]++
	}
	assert.Equal(t, 2, counts[jobqueue.KindAnalyze])
	assert.Equal(t, 1, counts[jobqueue.KindPlan])
	assert.Equal(t, 1, counts[jobqueue.KindRender])
}

func TestSeparateStoresPartialStemSet(t *testing.T) {
	f := newFixture(true)
	track := f.completedTrack("t1", "u1")
	f.separator.stems = map[stems.Kind]stems.Stem{
		stems.KindVocals: {Data: []byte("v"), Ext: "wav"},
		stems.KindBass:   {Data: []byte("b"), Ext: "wav"},
	}
	f.separator.engine = "remote"

	require.NoError(t, f.sup.RequestSeparation(track.ID))

	rows, err := f.catalog.StemsForTrack(track.ID)
	require.NoError(t, err)
	require.Len(t, rows, 2)
	for _, row := range rows {
		assert.Equal(t, datastore.StemStatusSeparated, row.Status)
		assert.Equal(t, "remote", row.Engine)
		_, ok := f.blobs.data[row.StorageKey]
		assert.True(t, ok, "stem blob %s", row.StorageKey)
	}
}

func TestRenderPreviewStoresPreviewKey(t *testing.T) {
	f := newFixture(false)
	f.completedTrack("a", "u1")
	f.completedTrack("b", "u1")

	key, err := f.sup.RenderPreview(context.Background(), "u1", "a", "b", planner.StyleSmooth)
	require.NoError(t, err)

	assert.Equal(t, "preview-a-b.mp3", key)
	_, ok := f.blobs.data[key]
	assert.True(t, ok)
	assert.Equal(t, 1, f.renderer.calls)
}
