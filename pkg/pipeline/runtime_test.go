package pipeline

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/reveriehq/reverie/pkg/config"
	"github.com/reveriehq/reverie/pkg/journal"
	"github.com/reveriehq/reverie/pkg/queue"
)

// memJournalStore is an in-memory journal.Store for pipeline tests.
type memJournalStore struct {
	mu       sync.Mutex
	journals map[string]*journal.Journal
}

func newMemJournalStore(journals ...*journal.Journal) *memJournalStore {
	s := &memJournalStore{journals: make(map[string]*journal.Journal)}
	for _, j := range journals {
		s.journals[j.ID] = j
	}
	return s
}

func (s *memJournalStore) Create(ctx context.Context, j *journal.Journal) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.journals[j.ID] = j
	return nil
}

func (s *memJournalStore) Get(ctx context.Context, id string) (*journal.Journal, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	j, ok := s.journals[id]
	if !ok {
		return nil, &journal.NotFoundError{ID: id}
	}
	cp := *j
	return &cp, nil
}

func (s *memJournalStore) ListByUser(ctx context.Context, userID string) ([]*journal.Journal, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []*journal.Journal
	for _, j := range s.journals {
		if j.UserID == userID {
			cp := *j
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (s *memJournalStore) SetTranscript(ctx context.Context, id, text, lang string) error {
	return s.update(id, func(j *journal.Journal) {
		j.Transcript = text
		j.TranscriptLang = lang
	})
}

func (s *memJournalStore) SetMood(ctx context.Context, id, mood string) error {
	return s.update(id, func(j *journal.Journal) { j.Mood = mood })
}

func (s *memJournalStore) SetHLS(ctx context.Context, id, status, manifestPath string) error {
	return s.update(id, func(j *journal.Journal) {
		j.HLSStatus = status
		j.HLSManifestPath = manifestPath
	})
}

func (s *memJournalStore) Close() error { return nil }

func (s *memJournalStore) update(id string, mutate func(*journal.Journal)) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	j, ok := s.journals[id]
	if !ok {
		return &journal.NotFoundError{ID: id}
	}
	mutate(j)
	return nil
}

// Fake engines.

type fakeTranscriber struct {
	calls int
	mu    sync.Mutex
	err   error
}

func (f *fakeTranscriber) Transcribe(ctx context.Context, mediaPath string, report queue.ProgressFunc) (*TranscriptionResult, error) {
	f.mu.Lock()
	f.calls++
	f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	return &TranscriptionResult{Text: "today was a good day", Language: "en"}, nil
}

func (f *fakeTranscriber) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

type fakeAnalyzer struct{}

func (fakeAnalyzer) Analyze(ctx context.Context, mediaPath string, report queue.ProgressFunc) (*EmotionResult, error) {
	return &EmotionResult{Dominant: "happy", VoiceScores: map[string]float64{"happy": 0.9}}, nil
}

type fakeTranscoder struct{ err error }

func (f fakeTranscoder) BuildRenditions(ctx context.Context, mediaPath string, report queue.ProgressFunc) (*HLSResult, error) {
	if f.err != nil {
		return nil, f.err
	}
	return &HLSResult{ManifestPath: "/hls/entry/master.m3u8", Renditions: []string{"720p"}}, nil
}

type fakeArchiver struct {
	mu       sync.Mutex
	backups  []string
	restores []string
}

func (f *fakeArchiver) CreateArchive(ctx context.Context, userID, destDir string, report queue.ProgressFunc) (*BackupResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.backups = append(f.backups, userID)
	return &BackupResult{ArchivePath: destDir + "/" + userID + ".tar.gz", SizeBytes: 42}, nil
}

func (f *fakeArchiver) RestoreArchive(ctx context.Context, userID, archivePath string, report queue.ProgressFunc) (*RestoreSummary, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.restores = append(f.restores, archivePath)
	return &RestoreSummary{JournalsRestored: 1}, nil
}

func testConfig(t *testing.T) config.Config {
	cfg := config.DefaultConfig()
	cfg.Backup.Dir = t.TempDir()
	for _, qc := range []*config.QueueConfig{
		&cfg.Queues.Transcription, &cfg.Queues.Emotion, &cfg.Queues.HLS, &cfg.Queues.Archive,
	} {
		qc.PollInterval = 5 * time.Millisecond
	}
	return cfg
}

func newTestRuntime(t *testing.T, cfg config.Config, journals journal.Store) (*Runtime, *fakeTranscriber, *fakeArchiver) {
	t.Helper()
	tr := &fakeTranscriber{}
	ar := &fakeArchiver{}
	rt := New(cfg, Deps{
		Journals:    journals,
		Transcriber: tr,
		Emotion:     fakeAnalyzer{},
		Transcoder:  fakeTranscoder{},
		Archiver:    ar,
	})
	return rt, tr, ar
}

func waitForStatus(t *testing.T, q *queue.Queue, id string, want queue.Status) queue.Job {
	t.Helper()
	var got queue.Job
	require.Eventually(t, func() bool {
		j, ok := q.Job(id)
		if !ok {
			return false
		}
		got = j
		return j.Status == want
	}, 5*time.Second, 5*time.Millisecond, "job %s never reached %s", id, want)
	return got
}

func TestTranscriptionPersistsTranscript(t *testing.T) {
	store := newMemJournalStore(&journal.Journal{ID: "j1", UserID: "u1", MediaPath: "/media/j1.webm"})
	cfg := testConfig(t)
	rt, tr, _ := newTestRuntime(t, cfg, store)
	rt.Start(context.Background())
	defer rt.Stop(context.Background())

	id, err := rt.EnqueueTranscription(context.Background(), "j1")
	require.NoError(t, err)

	job := waitForStatus(t, rt.Transcription, id, queue.StatusCompleted)
	res, ok := job.Result.(*TranscriptionResult)
	require.True(t, ok)
	require.Equal(t, "today was a good day", res.Text)
	require.Equal(t, 1, tr.callCount())

	j, err := store.Get(context.Background(), "j1")
	require.NoError(t, err)
	require.Equal(t, "today was a good day", j.Transcript)
	require.Equal(t, "en", j.TranscriptLang)
}

func TestTranscriptionIdempotencyGuard(t *testing.T) {
	store := newMemJournalStore(&journal.Journal{
		ID: "j1", UserID: "u1", MediaPath: "/media/j1.webm",
		Transcript: "already transcribed", TranscriptLang: "en",
	})
	cfg := testConfig(t)
	rt, tr, _ := newTestRuntime(t, cfg, store)
	rt.Start(context.Background())
	defer rt.Stop(context.Background())

	id, err := rt.EnqueueTranscription(context.Background(), "j1")
	require.NoError(t, err)

	job := waitForStatus(t, rt.Transcription, id, queue.StatusCompleted)
	res, ok := job.Result.(*TranscriptionResult)
	require.True(t, ok)
	require.Equal(t, "already transcribed", res.Text)
	require.Zero(t, tr.callCount(), "engine must not run when a transcript exists")
}

func TestEnqueueRejectsUnknownJournal(t *testing.T) {
	cfg := testConfig(t)
	rt, _, _ := newTestRuntime(t, cfg, newMemJournalStore())

	_, err := rt.EnqueueTranscription(context.Background(), "missing")
	require.ErrorIs(t, err, journal.ErrNotFound)
}

func TestEnqueueRejectsLiveDuplicate(t *testing.T) {
	store := newMemJournalStore(&journal.Journal{ID: "j1", UserID: "u1", MediaPath: "/media/j1.webm"})
	cfg := testConfig(t)
	rt, _, _ := newTestRuntime(t, cfg, store)
	// Queues not started: the first job stays pending, so it is live.

	first, err := rt.EnqueueTranscription(context.Background(), "j1")
	require.NoError(t, err)

	_, err = rt.EnqueueTranscription(context.Background(), "j1")
	require.ErrorIs(t, err, queue.ErrJobInFlight)

	var inflight *queue.InFlightError
	require.ErrorAs(t, err, &inflight)
	require.Equal(t, first, inflight.JobID)
	require.Equal(t, "j1", inflight.ResourceKey)
}

func TestEnqueueAllowedAfterTerminalJob(t *testing.T) {
	store := newMemJournalStore(&journal.Journal{ID: "j1", UserID: "u1", MediaPath: "/media/j1.webm"})
	cfg := testConfig(t)
	rt, _, _ := newTestRuntime(t, cfg, store)
	rt.Start(context.Background())
	defer rt.Stop(context.Background())

	id, err := rt.EnqueueEmotion(context.Background(), "j1")
	require.NoError(t, err)
	waitForStatus(t, rt.Emotion, id, queue.StatusCompleted)

	_, err = rt.EnqueueEmotion(context.Background(), "j1")
	require.NoError(t, err, "terminal jobs do not block re-enqueue")
}

func TestEnqueueHLSAlreadyCompleted(t *testing.T) {
	store := newMemJournalStore(&journal.Journal{
		ID: "j1", UserID: "u1", MediaPath: "/media/j1.webm",
		HLSStatus: journal.HLSStatusCompleted, HLSManifestPath: "/hls/j1/master.m3u8",
	})
	cfg := testConfig(t)
	rt, _, _ := newTestRuntime(t, cfg, store)

	_, err := rt.EnqueueHLS(context.Background(), "j1")
	require.ErrorIs(t, err, ErrAlreadyProcessed)
}

func TestHLSPersistsStateTransitions(t *testing.T) {
	store := newMemJournalStore(&journal.Journal{ID: "j1", UserID: "u1", MediaPath: "/media/j1.webm"})
	cfg := testConfig(t)
	rt, _, _ := newTestRuntime(t, cfg, store)
	rt.Start(context.Background())
	defer rt.Stop(context.Background())

	id, err := rt.EnqueueHLS(context.Background(), "j1")
	require.NoError(t, err)
	waitForStatus(t, rt.HLS, id, queue.StatusCompleted)

	j, err := store.Get(context.Background(), "j1")
	require.NoError(t, err)
	require.Equal(t, journal.HLSStatusCompleted, j.HLSStatus)
	require.Equal(t, "/hls/entry/master.m3u8", j.HLSManifestPath)
}

func TestHLSTerminalFailureRecordedOnJournal(t *testing.T) {
	store := newMemJournalStore(&journal.Journal{ID: "j1", UserID: "u1", MediaPath: "/media/j1.webm"})
	cfg := testConfig(t)
	cfg.Queues.HLS.MaxRetries = 1

	tr := &fakeTranscriber{}
	rt := New(cfg, Deps{
		Journals:    store,
		Transcriber: tr,
		Emotion:     fakeAnalyzer{},
		Transcoder:  fakeTranscoder{err: errors.New("ffmpeg exploded")},
		Archiver:    &fakeArchiver{},
	})
	rt.Start(context.Background())
	defer rt.Stop(context.Background())

	id, err := rt.EnqueueHLS(context.Background(), "j1")
	require.NoError(t, err)
	waitForStatus(t, rt.HLS, id, queue.StatusFailed)

	require.Eventually(t, func() bool {
		j, err := store.Get(context.Background(), "j1")
		return err == nil && j.HLSStatus == journal.HLSStatusFailed
	}, 5*time.Second, 5*time.Millisecond, "terminal HLS failure must land on the journal row")
}

func TestAutoChainEmotionAfterTranscription(t *testing.T) {
	store := newMemJournalStore(&journal.Journal{ID: "j1", UserID: "u1", MediaPath: "/media/j1.webm"})
	cfg := testConfig(t)
	require.True(t, cfg.Pipeline.AutoChain)

	rt, _, _ := newTestRuntime(t, cfg, store)
	rt.Start(context.Background())
	defer rt.Stop(context.Background())

	_, err := rt.EnqueueTranscription(context.Background(), "j1")
	require.NoError(t, err)

	require.Eventually(t, func() bool {
		j, err := store.Get(context.Background(), "j1")
		return err == nil && j.Mood == "happy"
	}, 5*time.Second, 5*time.Millisecond, "emotion job should chain off the completed transcription")
}

func TestAutoChainDisabled(t *testing.T) {
	store := newMemJournalStore(&journal.Journal{ID: "j1", UserID: "u1", MediaPath: "/media/j1.webm"})
	cfg := testConfig(t)
	cfg.Pipeline.AutoChain = false

	rt, _, _ := newTestRuntime(t, cfg, store)
	rt.Start(context.Background())
	defer rt.Stop(context.Background())

	id, err := rt.EnqueueTranscription(context.Background(), "j1")
	require.NoError(t, err)
	waitForStatus(t, rt.Transcription, id, queue.StatusCompleted)

	time.Sleep(50 * time.Millisecond)
	require.Zero(t, rt.Emotion.Stats().Total)
}

func TestArchiveQueueDispatch(t *testing.T) {
	store := newMemJournalStore()
	cfg := testConfig(t)
	rt, _, ar := newTestRuntime(t, cfg, store)
	rt.Start(context.Background())
	defer rt.Stop(context.Background())

	backupID, err := rt.EnqueueBackup(context.Background(), "u1")
	require.NoError(t, err)
	job := waitForStatus(t, rt.Archive, backupID, queue.StatusCompleted)
	res, ok := job.Result.(*BackupResult)
	require.True(t, ok)
	require.Contains(t, res.ArchivePath, "u1")

	restoreID, err := rt.EnqueueRestore(context.Background(), "u1", res.ArchivePath)
	require.NoError(t, err)
	job = waitForStatus(t, rt.Archive, restoreID, queue.StatusCompleted)
	summary, ok := job.Result.(*RestoreSummary)
	require.True(t, ok)
	require.Equal(t, 1, summary.JournalsRestored)

	ar.mu.Lock()
	defer ar.mu.Unlock()
	require.Equal(t, []string{"u1"}, ar.backups)
	require.Equal(t, []string{res.ArchivePath}, ar.restores)
}

func TestRestoreRequiresArchivePath(t *testing.T) {
	cfg := testConfig(t)
	cfg.Queues.Archive.MaxRetries = 1
	rt, _, _ := newTestRuntime(t, cfg, newMemJournalStore())
	rt.Start(context.Background())
	defer rt.Stop(context.Background())

	id, err := rt.EnqueueRestore(context.Background(), "u1", "")
	require.NoError(t, err, "validation happens in the job body")

	job := waitForStatus(t, rt.Archive, id, queue.StatusFailed)
	require.Contains(t, job.Error, "archive_path")
}

func TestRuntimeStatsCoversAllQueues(t *testing.T) {
	cfg := testConfig(t)
	rt, _, _ := newTestRuntime(t, cfg, newMemJournalStore())

	stats := rt.Stats()
	require.Len(t, stats, 4)
	for _, name := range []string{"transcription", "emotion", "hls", "archive"} {
		require.Contains(t, stats, name)
	}
}

func TestRuntimeQueueByType(t *testing.T) {
	cfg := testConfig(t)
	rt, _, _ := newTestRuntime(t, cfg, newMemJournalStore())

	require.Equal(t, rt.Transcription, rt.Queue(queue.TypeTranscription))
	require.Equal(t, rt.Emotion, rt.Queue(queue.TypeEmotion))
	require.Equal(t, rt.HLS, rt.Queue(queue.TypeHLS))
	require.Equal(t, rt.Archive, rt.Queue(queue.TypeBackup))
	require.Equal(t, rt.Archive, rt.Queue(queue.TypeRestore))
	require.Nil(t, rt.Queue(queue.Type("bogus")))
}
