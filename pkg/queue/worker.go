package queue

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/reveriehq/reverie/pkg/event"
	"github.com/reveriehq/reverie/pkg/metrics"
)

// worker is one polling loop. It claims the oldest eligible pending job,
// executes the handler, reconciles the outcome, and repeats. After a
// successful claim it polls again immediately; only an empty queue waits
// out the poll interval.
func (q *Queue) worker(ctx context.Context, id int) {
	defer q.wg.Done()

	logger := log.With().
		Str("component", "queue").
		Str("queue", q.opts.Name).
		Int("worker_id", id).
		Logger()
	logger.Debug().Msg("Worker started")

	for {
		select {
		case <-ctx.Done():
			logger.Debug().Msg("Worker stopping")
			return
		default:
		}

		job, ok := q.store.ClaimNextPending(time.Now())
		if !ok {
			select {
			case <-ctx.Done():
				logger.Debug().Msg("Worker stopping")
				return
			case <-time.After(q.opts.PollInterval):
			}
			continue
		}

		q.execute(ctx, logger, job)
	}
}

// execute runs the handler for a claimed job and applies the outcome. Jobs
// are never canceled mid-execution: once claimed they run to completion even
// during shutdown, so the handler gets a context detached from worker
// cancellation.
func (q *Queue) execute(ctx context.Context, logger zerolog.Logger, job Job) {
	start := time.Now()
	jobCtx := context.WithoutCancel(ctx)

	report := func(step string, stepIndex, totalSteps, percent int) {
		q.store.Update(job.ID, func(j *Job) {
			j.Progress = Progress{
				Step:       step,
				StepIndex:  stepIndex,
				TotalSteps: totalSteps,
				Percent:    percent,
			}
		})
		if snap, ok := q.store.Get(job.ID); ok {
			q.publish(jobCtx, event.TopicJobProgress, snap)
		}
	}

	result, err := q.runHandler(jobCtx, job, report)
	metrics.JobDuration.WithLabelValues(q.opts.Name).Observe(time.Since(start).Seconds())

	if err == nil {
		q.store.Update(job.ID, func(j *Job) {
			j.Status = StatusCompleted
			j.Result = result
			j.Error = ""
			j.Progress.Percent = 100
		})
		metrics.JobsProcessed.WithLabelValues(q.opts.Name, metrics.OutcomeSuccess).Inc()
		logger.Info().
			Str("job_id", job.ID).
			Str("resource", job.ResourceKey).
			Dur("duration", time.Since(start)).
			Msg("Job completed")
		if snap, ok := q.store.Get(job.ID); ok {
			q.publish(jobCtx, event.TopicJobCompleted, snap)
		}
		return
	}

	// Attempts counts failed executions; increment before consulting the
	// retry policy.
	var attempts int
	q.store.Update(job.ID, func(j *Job) {
		j.Attempts++
		attempts = j.Attempts
	})

	delay, retry := q.opts.Retry.Decide(attempts)
	if retry {
		eligible := time.Now().Add(delay)
		q.store.Update(job.ID, func(j *Job) {
			j.Status = StatusPending
			j.Error = err.Error()
			j.NextEligibleAt = eligible
		})
		metrics.JobsProcessed.WithLabelValues(q.opts.Name, metrics.OutcomeRetry).Inc()
		logger.Warn().
			Str("job_id", job.ID).
			Int("attempts", attempts).
			Dur("backoff", delay).
			Err(err).
			Msg("Job failed, retry scheduled")
		if snap, ok := q.store.Get(job.ID); ok {
			q.publish(jobCtx, event.TopicJobRetried, snap)
		}
		return
	}

	q.store.Update(job.ID, func(j *Job) {
		j.Status = StatusFailed
		j.Error = err.Error()
	})
	metrics.JobsProcessed.WithLabelValues(q.opts.Name, metrics.OutcomeFailed).Inc()
	logger.Error().
		Str("job_id", job.ID).
		Int("attempts", attempts).
		Err(err).
		Msg("Job failed terminally")
	if snap, ok := q.store.Get(job.ID); ok {
		q.publish(jobCtx, event.TopicJobFailed, snap)
	}
}

// runHandler invokes the job body, converting a panic into an error so a
// misbehaving handler cannot take down its worker.
func (q *Queue) runHandler(ctx context.Context, job Job, report ProgressFunc) (result any, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("job body panic: %v", r)
		}
	}()
	return q.handler(ctx, job, report)
}
