package pipeline

import (
	"context"
	"fmt"

	"github.com/spf13/cast"

	"github.com/reveriehq/reverie/pkg/config"
	"github.com/reveriehq/reverie/pkg/journal"
	"github.com/reveriehq/reverie/pkg/queue"
)

// newTranscriptionQueue builds the transcription queue. The job body checks
// whether a transcript already exists for the journal and short-circuits to
// success before doing any expensive work; otherwise it runs the engine and
// persists the transcript onto the journal row.
func newTranscriptionQueue(cfg config.QueueConfig, sweep config.QueuesConfig, journals journal.Store, engine Transcriber) *queue.Queue {
	handler := func(ctx context.Context, job queue.Job, report queue.ProgressFunc) (any, error) {
		journalID := cast.ToString(job.Payload["journal_id"])
		if journalID == "" {
			journalID = job.ResourceKey
		}

		j, err := journals.Get(ctx, journalID)
		if err != nil {
			return nil, fmt.Errorf("load journal: %w", err)
		}

		// Idempotency guard: a transcript may already exist when the job was
		// enqueued twice or a previous attempt persisted before failing.
		if j.Transcript != "" {
			return &TranscriptionResult{Text: j.Transcript, Language: j.TranscriptLang}, nil
		}

		report("transcribe", 1, 2, 0)
		res, err := engine.Transcribe(ctx, j.MediaPath, report)
		if err != nil {
			return nil, fmt.Errorf("transcribe %s: %w", j.MediaPath, err)
		}

		report("persist", 2, 2, 90)
		if err := journals.SetTranscript(ctx, journalID, res.Text, res.Language); err != nil {
			return nil, fmt.Errorf("persist transcript: %w", err)
		}
		return res, nil
	}

	return queue.New(queueOptions("transcription", cfg, sweep), handler)
}
