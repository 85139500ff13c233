package queue

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/reveriehq/reverie/pkg/event"
)

func testOptions(name string) Options {
	return Options{
		Name:         name,
		Workers:      2,
		Retry:        RetryPolicy{MaxAttempts: 3, BaseDelay: 5 * time.Millisecond, MaxDelay: 20 * time.Millisecond},
		PollInterval: 5 * time.Millisecond,
		JobTTL:       time.Hour,
		StopTimeout:  2 * time.Second,
	}
}

func waitForStatus(t *testing.T, q *Queue, id string, want Status) Job {
	t.Helper()
	var got Job
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

func TestQueueCompletesJob(t *testing.T) {
	q := New(testOptions("test"), func(ctx context.Context, job Job, report ProgressFunc) (any, error) {
		return "done:" + job.ResourceKey, nil
	})
	q.Start(context.Background())
	defer q.Stop(context.Background())

	id, err := q.Enqueue(TypeTranscription, "journal-1", nil)
	require.NoError(t, err)

	j := waitForStatus(t, q, id, StatusCompleted)
	require.Equal(t, "done:journal-1", j.Result)
	require.Equal(t, 100, j.Progress.Percent)
	require.Zero(t, j.Attempts)
	require.Empty(t, j.Error)
}

func TestQueueEnqueueNeverBlocksOnJobBody(t *testing.T) {
	release := make(chan struct{})
	q := New(testOptions("test"), func(ctx context.Context, job Job, report ProgressFunc) (any, error) {
		<-release
		return nil, nil
	})
	q.Start(context.Background())
	defer func() {
		close(release)
		q.Stop(context.Background())
	}()

	start := time.Now()
	id, err := q.Enqueue(TypeTranscription, "journal-1", nil)
	require.NoError(t, err)
	require.NotEmpty(t, id)
	require.Less(t, time.Since(start), 100*time.Millisecond)

	j, ok := q.Job(id)
	require.True(t, ok)
	require.Contains(t, []Status{StatusPending, StatusProcessing}, j.Status)
}

func TestQueueRetriesThenSucceeds(t *testing.T) {
	var calls atomic.Int32
	q := New(testOptions("test"), func(ctx context.Context, job Job, report ProgressFunc) (any, error) {
		if calls.Add(1) == 1 {
			return nil, errors.New("transient failure")
		}
		return "recovered", nil
	})
	q.Start(context.Background())
	defer q.Stop(context.Background())

	id, err := q.Enqueue(TypeTranscription, "journal-1", nil)
	require.NoError(t, err)

	j := waitForStatus(t, q, id, StatusCompleted)
	require.Equal(t, "recovered", j.Result)
	require.Equal(t, 1, j.Attempts)
	require.EqualValues(t, 2, calls.Load())
}

func TestQueueExhaustsRetries(t *testing.T) {
	var calls atomic.Int32
	q := New(testOptions("test"), func(ctx context.Context, job Job, report ProgressFunc) (any, error) {
		calls.Add(1)
		return nil, errors.New("engine unavailable")
	})
	q.Start(context.Background())
	defer q.Stop(context.Background())

	id, err := q.Enqueue(TypeHLS, "journal-1", nil)
	require.NoError(t, err)

	j := waitForStatus(t, q, id, StatusFailed)
	require.Equal(t, 3, j.Attempts)
	require.Equal(t, "engine unavailable", j.Error)
	require.EqualValues(t, 3, calls.Load(), "one execution per attempt")

	// Terminal records are never claimed again.
	time.Sleep(50 * time.Millisecond)
	require.EqualValues(t, 3, calls.Load())
}

func TestQueuePanicTreatedAsFailure(t *testing.T) {
	q := New(testOptions("test"), func(ctx context.Context, job Job, report ProgressFunc) (any, error) {
		panic("corrupt media")
	})
	q.Start(context.Background())
	defer q.Stop(context.Background())

	id, err := q.Enqueue(TypeEmotion, "journal-1", nil)
	require.NoError(t, err)

	j := waitForStatus(t, q, id, StatusFailed)
	require.Contains(t, j.Error, "panic")
	require.Contains(t, j.Error, "corrupt media")
}

func TestQueueProgressVisibleWhileRunning(t *testing.T) {
	reported := make(chan struct{})
	release := make(chan struct{})
	q := New(testOptions("test"), func(ctx context.Context, job Job, report ProgressFunc) (any, error) {
		report("transcode", 1, 2, 40)
		close(reported)
		<-release
		return nil, nil
	})
	q.Start(context.Background())
	defer q.Stop(context.Background())

	id, err := q.Enqueue(TypeHLS, "journal-1", nil)
	require.NoError(t, err)

	<-reported
	j, ok := q.Job(id)
	require.True(t, ok)
	require.Equal(t, StatusProcessing, j.Status)
	require.Equal(t, "transcode", j.Progress.Step)
	require.Equal(t, 40, j.Progress.Percent)

	close(release)
	waitForStatus(t, q, id, StatusCompleted)
}

func TestQueueSoftFIFOWithSingleWorker(t *testing.T) {
	var mu sync.Mutex
	var order []string

	opts := testOptions("test")
	opts.Workers = 1
	q := New(opts, func(ctx context.Context, job Job, report ProgressFunc) (any, error) {
		mu.Lock()
		order = append(order, job.ResourceKey)
		mu.Unlock()
		return nil, nil
	})

	var ids []string
	for _, key := range []string{"journal-1", "journal-2", "journal-3"} {
		id, err := q.Enqueue(TypeTranscription, key, nil)
		require.NoError(t, err)
		ids = append(ids, id)
	}

	q.Start(context.Background())
	defer q.Stop(context.Background())

	waitForStatus(t, q, ids[2], StatusCompleted)

	mu.Lock()
	defer mu.Unlock()
	require.Equal(t, []string{"journal-1", "journal-2", "journal-3"}, order)
}

func TestQueueStopWaitsForInFlightJob(t *testing.T) {
	started := make(chan struct{})
	release := make(chan struct{})
	q := New(testOptions("test"), func(ctx context.Context, job Job, report ProgressFunc) (any, error) {
		close(started)
		<-release
		return "finished", nil
	})
	q.Start(context.Background())

	id, err := q.Enqueue(TypeBackup, "user-1", nil)
	require.NoError(t, err)
	<-started

	stopDone := make(chan struct{})
	go func() {
		q.Stop(context.Background())
		close(stopDone)
	}()

	select {
	case <-stopDone:
		t.Fatal("Stop returned while a job was still in flight")
	case <-time.After(50 * time.Millisecond):
	}

	close(release)
	<-stopDone

	j, ok := q.Job(id)
	require.True(t, ok)
	require.Equal(t, StatusCompleted, j.Status)
	require.Equal(t, "finished", j.Result)
}

func TestQueueStopTimeoutAbandonsInFlightJob(t *testing.T) {
	started := make(chan struct{})
	release := make(chan struct{})
	defer close(release)

	opts := testOptions("test")
	opts.StopTimeout = 30 * time.Millisecond
	q := New(opts, func(ctx context.Context, job Job, report ProgressFunc) (any, error) {
		close(started)
		<-release
		return nil, nil
	})
	q.Start(context.Background())

	id, err := q.Enqueue(TypeHLS, "journal-1", nil)
	require.NoError(t, err)
	<-started

	start := time.Now()
	q.Stop(context.Background()) // must return despite the stuck job
	require.Less(t, time.Since(start), time.Second)

	j, ok := q.Job(id)
	require.True(t, ok)
	require.Equal(t, StatusProcessing, j.Status, "abandoned job keeps running")
}

func TestQueueStopLeavesPendingJobs(t *testing.T) {
	q := New(testOptions("test"), func(ctx context.Context, job Job, report ProgressFunc) (any, error) {
		return nil, nil
	})

	// Never started: enqueued work stays pending across Stop.
	id, err := q.Enqueue(TypeTranscription, "journal-1", nil)
	require.NoError(t, err)

	q.Stop(context.Background())

	j, ok := q.Job(id)
	require.True(t, ok)
	require.Equal(t, StatusPending, j.Status)
}

func TestQueueEnqueueAfterStop(t *testing.T) {
	q := New(testOptions("test"), func(ctx context.Context, job Job, report ProgressFunc) (any, error) {
		return nil, nil
	})
	q.Start(context.Background())
	q.Stop(context.Background())

	_, err := q.Enqueue(TypeTranscription, "journal-1", nil)
	require.ErrorIs(t, err, ErrStopped)
}

func TestQueueStartIdempotent(t *testing.T) {
	q := New(testOptions("test"), func(ctx context.Context, job Job, report ProgressFunc) (any, error) {
		return nil, nil
	})
	q.Start(context.Background())
	q.Start(context.Background()) // no-op with a warning
	defer q.Stop(context.Background())

	id, err := q.Enqueue(TypeTranscription, "journal-1", nil)
	require.NoError(t, err)
	waitForStatus(t, q, id, StatusCompleted)
}

func TestQueuePublishesLifecycleEvents(t *testing.T) {
	bus := event.New()
	completed := make(chan JobEvent, 1)
	bus.Subscribe(event.TopicJobCompleted, func(ctx context.Context, data any) {
		if ev, ok := data.(JobEvent); ok {
			completed <- ev
		}
	})

	q := New(testOptions("events"), func(ctx context.Context, job Job, report ProgressFunc) (any, error) {
		return nil, nil
	}).WithBus(bus)
	q.Start(context.Background())
	defer q.Stop(context.Background())

	id, err := q.Enqueue(TypeTranscription, "journal-1", nil)
	require.NoError(t, err)

	select {
	case ev := <-completed:
		require.Equal(t, "events", ev.Queue)
		require.Equal(t, id, ev.Job.ID)
		require.Equal(t, StatusCompleted, ev.Job.Status)
	case <-time.After(5 * time.Second):
		t.Fatal("no completion event published")
	}
}

func TestQueueStatsCounts(t *testing.T) {
	q := New(testOptions("test"), func(ctx context.Context, job Job, report ProgressFunc) (any, error) {
		return nil, nil
	})

	for _, key := range []string{"journal-1", "journal-2"} {
		_, err := q.Enqueue(TypeTranscription, key, nil)
		require.NoError(t, err)
	}
	require.Equal(t, Stats{Total: 2, Pending: 2}, q.Stats())

	q.Start(context.Background())
	defer q.Stop(context.Background())

	require.Eventually(t, func() bool {
		return q.Stats().Completed == 2
	}, 5*time.Second, 5*time.Millisecond)
}
