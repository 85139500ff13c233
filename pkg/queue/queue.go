package queue

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/reveriehq/reverie/pkg/event"
	"github.com/reveriehq/reverie/pkg/metrics"
)

// ProgressFunc is handed to a job handler so it can report progress while
// running. Updates are visible immediately through Queue.Job.
type ProgressFunc func(step string, stepIndex, totalSteps, percent int)

// Handler is the job body: the type-specific async operation a queue
// executes for each claimed job. It returns the success payload or an
// error. Handlers must be safe for concurrent use; one handler instance is
// shared by all workers of a queue.
type Handler func(ctx context.Context, job Job, report ProgressFunc) (any, error)

// Options tunes one queue instance.
type Options struct {
	// Name labels logs and metrics, e.g. "transcription".
	Name string

	// Workers is the number of concurrent polling workers. Defaults to 2.
	Workers int

	// Retry governs backoff and terminal failure. Defaults to
	// DefaultRetryPolicy.
	Retry RetryPolicy

	// PollInterval is how long a worker sleeps when no job is claimable.
	// A tuning knob, not a correctness parameter. Defaults to 1s.
	PollInterval time.Duration

	// JobTTL bounds how long records (including terminal ones) stay in the
	// store. Zero disables sweeping. Defaults to 24h.
	JobTTL time.Duration

	// SweepInterval is how often expired records are removed. Defaults to 1h.
	SweepInterval time.Duration

	// StopTimeout bounds how long Stop waits for in-flight jobs. Defaults
	// to 30s.
	StopTimeout time.Duration
}

func (o Options) withDefaults() Options {
	if o.Name == "" {
		o.Name = "default"
	}
	if o.Workers <= 0 {
		o.Workers = 2
	}
	if o.Retry.MaxAttempts == 0 {
		o.Retry = DefaultRetryPolicy()
	}
	if o.PollInterval <= 0 {
		o.PollInterval = 1 * time.Second
	}
	if o.JobTTL < 0 {
		o.JobTTL = 0
	} else if o.JobTTL == 0 {
		o.JobTTL = 24 * time.Hour
	}
	if o.SweepInterval <= 0 {
		o.SweepInterval = 1 * time.Hour
	}
	if o.StopTimeout <= 0 {
		o.StopTimeout = 30 * time.Second
	}
	return o
}

// Queue is the public surface producers and consumers touch: enqueue,
// status reads, stats, and lifecycle control. One Queue owns its Store and
// worker pool; different queues are fully independent.
type Queue struct {
	opts    Options
	store   *Store
	handler Handler
	bus     *event.Bus

	mu      sync.Mutex
	started bool
	stopped bool
	cancel  context.CancelFunc
	wg      sync.WaitGroup
}

// JobEvent is the payload published on the event bus for lifecycle topics.
type JobEvent struct {
	Queue string
	Job   Job
}

// New creates a queue with the given options and job handler. The queue
// accepts jobs immediately; workers run only between Start and Stop.
func New(opts Options, handler Handler) *Queue {
	return &Queue{
		opts:    opts.withDefaults(),
		store:   NewStore(),
		handler: handler,
	}
}

// WithBus attaches an event bus; lifecycle events are published to it.
func (q *Queue) WithBus(b *event.Bus) *Queue {
	q.bus = b
	return q
}

// Name returns the queue's label.
func (q *Queue) Name() string {
	return q.opts.Name
}

// Start spawns the worker pool and the TTL sweeper. Calling Start on a
// running queue is a no-op with a warning.
func (q *Queue) Start(ctx context.Context) {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.started {
		log.Warn().
			Str("component", "queue").
			Str("queue", q.opts.Name).
			Msg("Start called on a running queue, ignoring")
		return
	}

	workerCtx, cancel := context.WithCancel(ctx)
	q.cancel = cancel
	q.started = true
	q.stopped = false

	for i := 0; i < q.opts.Workers; i++ {
		q.wg.Add(1)
		go q.worker(workerCtx, i)
	}
	if q.opts.JobTTL > 0 {
		q.wg.Add(1)
		go q.sweeper(workerCtx)
	}

	log.Info().
		Str("component", "queue").
		Str("queue", q.opts.Name).
		Int("workers", q.opts.Workers).
		Dur("poll_interval", q.opts.PollInterval).
		Msg("Queue started")
}

// Stop halts new claims and waits, up to StopTimeout (or ctx, whichever
// ends first), for in-flight jobs to finish. Jobs still running when the
// wait elapses are logged and abandoned to their own completion; queued
// work stays pending in the store and is never discarded. Stop never fails.
func (q *Queue) Stop(ctx context.Context) {
	q.mu.Lock()
	if !q.started {
		q.stopped = true
		q.mu.Unlock()
		return
	}
	q.started = false
	q.stopped = true
	q.cancel()
	q.mu.Unlock()

	done := make(chan struct{})
	go func() {
		q.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		log.Info().
			Str("component", "queue").
			Str("queue", q.opts.Name).
			Msg("Queue stopped")
	case <-time.After(q.opts.StopTimeout):
		log.Warn().
			Str("component", "queue").
			Str("queue", q.opts.Name).
			Int("processing", q.store.Stats().Processing).
			Msg("Queue stop timed out with jobs still in flight")
	case <-ctx.Done():
		log.Warn().
			Str("component", "queue").
			Str("queue", q.opts.Name).
			Msg("Queue stop canceled with jobs still in flight")
	}
}

// Enqueue validates nothing beyond queue liveness: it records a pending job
// and returns its ID without ever blocking on the job body. Resource-level
// preconditions (no duplicate in-flight work, already-done short-circuits)
// belong to the producer layer.
func (q *Queue) Enqueue(typ Type, resourceKey string, payload map[string]any) (string, error) {
	q.mu.Lock()
	stopped := q.stopped && !q.started
	q.mu.Unlock()
	if stopped {
		return "", ErrStopped
	}

	j := NewJob(typ, resourceKey, payload, q.opts.JobTTL)
	if err := q.store.Insert(j); err != nil {
		return "", err
	}

	metrics.JobsEnqueued.WithLabelValues(q.opts.Name).Inc()
	log.Debug().
		Str("component", "queue").
		Str("queue", q.opts.Name).
		Str("job_id", j.ID).
		Str("resource", resourceKey).
		Msg("Job enqueued")
	return j.ID, nil
}

// Job returns a snapshot of the record by ID.
func (q *Queue) Job(id string) (Job, bool) {
	return q.store.Get(id)
}

// JobByResource returns the first record for the resource key, in insertion
// order.
func (q *Queue) JobByResource(key string) (Job, bool) {
	return q.store.FindByResource(key)
}

// LiveJobByResource returns the first pending or processing record for the
// resource key.
func (q *Queue) LiveJobByResource(key string) (Job, bool) {
	return q.store.FindLiveByResource(key)
}

// Stats counts records by status.
func (q *Queue) Stats() Stats {
	st := q.store.Stats()
	metrics.QueueDepth.WithLabelValues(q.opts.Name, string(StatusPending)).Set(float64(st.Pending))
	metrics.QueueDepth.WithLabelValues(q.opts.Name, string(StatusProcessing)).Set(float64(st.Processing))
	return st
}

// sweeper periodically removes expired records.
func (q *Queue) sweeper(ctx context.Context) {
	defer q.wg.Done()

	ticker := time.NewTicker(q.opts.SweepInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if n := q.store.SweepExpired(time.Now()); n > 0 {
				metrics.JobsSwept.WithLabelValues(q.opts.Name).Add(float64(n))
				log.Debug().
					Str("component", "queue").
					Str("queue", q.opts.Name).
					Int("removed", n).
					Msg("Swept expired job records")
			}
		}
	}
}

func (q *Queue) publish(ctx context.Context, topic string, j Job) {
	if q.bus == nil {
		return
	}
	q.bus.Publish(ctx, topic, JobEvent{Queue: q.opts.Name, Job: j})
}
