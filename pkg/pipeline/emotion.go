package pipeline

import (
	"context"
	"fmt"

	"github.com/spf13/cast"

	"github.com/reveriehq/reverie/pkg/config"
	"github.com/reveriehq/reverie/pkg/journal"
	"github.com/reveriehq/reverie/pkg/queue"
)

// newEmotionQueue builds the emotion detection queue. The job body runs
// face and voice emotion inference over the recording and persists the
// dominant emotion as the journal's mood.
func newEmotionQueue(cfg config.QueueConfig, sweep config.QueuesConfig, journals journal.Store, engine EmotionAnalyzer) *queue.Queue {
	handler := func(ctx context.Context, job queue.Job, report queue.ProgressFunc) (any, error) {
		journalID := cast.ToString(job.Payload["journal_id"])
		if journalID == "" {
			journalID = job.ResourceKey
		}

		j, err := journals.Get(ctx, journalID)
		if err != nil {
			return nil, fmt.Errorf("load journal: %w", err)
		}

		report("analyze", 1, 2, 0)
		res, err := engine.Analyze(ctx, j.MediaPath, report)
		if err != nil {
			return nil, fmt.Errorf("analyze %s: %w", j.MediaPath, err)
		}

		report("persist", 2, 2, 90)
		if err := journals.SetMood(ctx, journalID, res.Dominant); err != nil {
			return nil, fmt.Errorf("persist mood: %w", err)
		}
		return res, nil
	}

	return queue.New(queueOptions("emotion", cfg, sweep), handler)
}
