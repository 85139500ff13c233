package pipeline

import (
	"context"
	"errors"
	"fmt"

	"github.com/rs/zerolog/log"

	"github.com/reveriehq/reverie/pkg/config"
	"github.com/reveriehq/reverie/pkg/event"
	"github.com/reveriehq/reverie/pkg/journal"
	"github.com/reveriehq/reverie/pkg/queue"
)

// ErrAlreadyProcessed is returned when enqueueing work whose output already
// exists (e.g. HLS renditions for a journal that has them).
var ErrAlreadyProcessed = errors.New("resource already processed")

// Deps are the external collaborators the pipeline queues close over.
type Deps struct {
	Journals    journal.Store
	Transcriber Transcriber
	Emotion     EmotionAnalyzer
	Transcoder  Transcoder
	Archiver    Archiver
}

// Runtime owns the four job queues and is the single instance route
// handlers share; it is passed explicitly rather than reached through
// package-level singletons so tests get fresh instances.
//
// Runtime is also the producer layer: its Enqueue methods enforce the
// one-live-job-per-resource convention and the synchronous already-done
// checks that keep provably finished work out of the queues.
type Runtime struct {
	Transcription *queue.Queue
	Emotion       *queue.Queue
	HLS           *queue.Queue
	Archive       *queue.Queue

	cfg    config.Config
	deps   Deps
	bus    *event.Bus
	byName map[string]*queue.Queue
}

// queueOptions maps a queue's config block onto queue.Options.
func queueOptions(name string, cfg config.QueueConfig, qs config.QueuesConfig) queue.Options {
	return queue.Options{
		Name:    name,
		Workers: cfg.Workers,
		Retry: queue.RetryPolicy{
			MaxAttempts: cfg.MaxRetries,
			BaseDelay:   queue.DefaultRetryPolicy().BaseDelay,
			MaxDelay:    queue.DefaultRetryPolicy().MaxDelay,
		},
		PollInterval:  cfg.PollInterval,
		JobTTL:        cfg.JobTTL,
		SweepInterval: qs.SweepInterval,
		StopTimeout:   cfg.StopTimeout,
	}
}

// New wires the four queues to their job bodies and the shared event bus.
func New(cfg config.Config, deps Deps) *Runtime {
	bus := event.New()

	r := &Runtime{
		Transcription: newTranscriptionQueue(cfg.Queues.Transcription, cfg.Queues, deps.Journals, deps.Transcriber).WithBus(bus),
		Emotion:       newEmotionQueue(cfg.Queues.Emotion, cfg.Queues, deps.Journals, deps.Emotion).WithBus(bus),
		HLS:           newHLSQueue(cfg.Queues.HLS, cfg.Queues, deps.Journals, deps.Transcoder).WithBus(bus),
		Archive:       newArchiveQueue(cfg.Queues.Archive, cfg.Queues, cfg.Backup.Dir, deps.Archiver).WithBus(bus),
		cfg:           cfg,
		deps:          deps,
		bus:           bus,
	}
	r.byName = map[string]*queue.Queue{
		r.Transcription.Name(): r.Transcription,
		r.Emotion.Name():       r.Emotion,
		r.HLS.Name():           r.HLS,
		r.Archive.Name():       r.Archive,
	}

	if cfg.Pipeline.AutoChain {
		bus.Subscribe(event.TopicJobCompleted, r.chainEmotion)
	}
	bus.Subscribe(event.TopicJobFailed, r.recordHLSFailure)

	return r
}

// Bus exposes the runtime's event bus for additional consumers.
func (r *Runtime) Bus() *event.Bus {
	return r.bus
}

// Queue returns the queue serving the given job type, or nil.
func (r *Runtime) Queue(typ queue.Type) *queue.Queue {
	switch typ {
	case queue.TypeTranscription:
		return r.Transcription
	case queue.TypeEmotion:
		return r.Emotion
	case queue.TypeHLS:
		return r.HLS
	case queue.TypeBackup, queue.TypeRestore:
		return r.Archive
	default:
		return nil
	}
}

// Start starts all queues.
func (r *Runtime) Start(ctx context.Context) {
	for _, q := range r.byName {
		q.Start(ctx)
	}
	log.Info().Str("component", "pipeline").Int("queues", len(r.byName)).Msg("Pipeline started")
}

// Stop drains all queues, each within its own bounded stop timeout.
func (r *Runtime) Stop(ctx context.Context) {
	for _, q := range r.byName {
		q.Stop(ctx)
	}
	log.Info().Str("component", "pipeline").Msg("Pipeline stopped")
}

// Stats returns per-queue record counts.
func (r *Runtime) Stats() map[string]queue.Stats {
	out := make(map[string]queue.Stats, len(r.byName))
	for name, q := range r.byName {
		out[name] = q.Stats()
	}
	return out
}

// EnqueueTranscription queues transcription for a journal. The journal must
// exist, and a journal with a live transcription job is rejected with an
// InFlightError naming the existing job.
func (r *Runtime) EnqueueTranscription(ctx context.Context, journalID string) (string, error) {
	if _, err := r.deps.Journals.Get(ctx, journalID); err != nil {
		return "", err
	}
	if live, ok := r.Transcription.LiveJobByResource(journalID); ok {
		return "", &queue.InFlightError{ResourceKey: journalID, JobID: live.ID}
	}
	return r.Transcription.Enqueue(queue.TypeTranscription, journalID, map[string]any{"journal_id": journalID})
}

// EnqueueEmotion queues emotion detection for a journal.
func (r *Runtime) EnqueueEmotion(ctx context.Context, journalID string) (string, error) {
	if _, err := r.deps.Journals.Get(ctx, journalID); err != nil {
		return "", err
	}
	if live, ok := r.Emotion.LiveJobByResource(journalID); ok {
		return "", &queue.InFlightError{ResourceKey: journalID, JobID: live.ID}
	}
	return r.Emotion.Enqueue(queue.TypeEmotion, journalID, map[string]any{"journal_id": journalID})
}

// EnqueueHLS queues HLS transcoding for a journal. Beyond the in-flight
// check, it refuses synchronously when the journal's persisted state shows
// transcoding already completed, so provably finished work never enters the
// queue.
func (r *Runtime) EnqueueHLS(ctx context.Context, journalID string) (string, error) {
	j, err := r.deps.Journals.Get(ctx, journalID)
	if err != nil {
		return "", err
	}
	if j.HLSStatus == journal.HLSStatusCompleted {
		return "", fmt.Errorf("journal %s: %w", journalID, ErrAlreadyProcessed)
	}
	if live, ok := r.HLS.LiveJobByResource(journalID); ok {
		return "", &queue.InFlightError{ResourceKey: journalID, JobID: live.ID}
	}
	return r.HLS.Enqueue(queue.TypeHLS, journalID, map[string]any{"journal_id": journalID})
}

// EnqueueBackup queues a full backup of a user's journals.
func (r *Runtime) EnqueueBackup(ctx context.Context, userID string) (string, error) {
	if live, ok := r.Archive.LiveJobByResource(userID); ok {
		return "", &queue.InFlightError{ResourceKey: userID, JobID: live.ID}
	}
	return r.Archive.Enqueue(queue.TypeBackup, userID, map[string]any{"user_id": userID})
}

// EnqueueRestore queues a restore of a user's journals from an archive.
func (r *Runtime) EnqueueRestore(ctx context.Context, userID, archivePath string) (string, error) {
	if live, ok := r.Archive.LiveJobByResource(userID); ok {
		return "", &queue.InFlightError{ResourceKey: userID, JobID: live.ID}
	}
	return r.Archive.Enqueue(queue.TypeRestore, userID, map[string]any{
		"user_id":      userID,
		"archive_path": archivePath,
	})
}

// chainEmotion enqueues emotion detection when a transcription completes.
func (r *Runtime) chainEmotion(ctx context.Context, data any) {
	ev, ok := data.(queue.JobEvent)
	if !ok || ev.Job.Type != queue.TypeTranscription {
		return
	}
	journalID := ev.Job.ResourceKey
	if _, err := r.EnqueueEmotion(ctx, journalID); err != nil {
		if errors.Is(err, queue.ErrJobInFlight) {
			return
		}
		log.Warn().
			Str("component", "pipeline").
			Str("journal_id", journalID).
			Err(err).
			Msg("Failed to chain emotion detection after transcription")
	}
}

// recordHLSFailure persists terminal HLS failures onto the journal row so
// the UI can offer a retry.
func (r *Runtime) recordHLSFailure(ctx context.Context, data any) {
	ev, ok := data.(queue.JobEvent)
	if !ok || ev.Job.Type != queue.TypeHLS {
		return
	}
	if err := r.deps.Journals.SetHLS(ctx, ev.Job.ResourceKey, journal.HLSStatusFailed, ""); err != nil {
		log.Warn().
			Str("component", "pipeline").
			Str("journal_id", ev.Job.ResourceKey).
			Err(err).
			Msg("Failed to record HLS failure on journal")
	}
}
