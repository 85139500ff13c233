package pipeline

import (
	"context"
	"fmt"

	"github.com/spf13/cast"

	"github.com/reveriehq/reverie/pkg/config"
	"github.com/reveriehq/reverie/pkg/journal"
	"github.com/reveriehq/reverie/pkg/queue"
)

// newHLSQueue builds the HLS transcoding queue. Transcoding is the most
// expensive job body, so it runs with a single worker by default and checks
// the journal's persisted HLS state before doing any work: a journal whose
// renditions already exist short-circuits straight to success.
func newHLSQueue(cfg config.QueueConfig, sweep config.QueuesConfig, journals journal.Store, engine Transcoder) *queue.Queue {
	handler := func(ctx context.Context, job queue.Job, report queue.ProgressFunc) (any, error) {
		journalID := cast.ToString(job.Payload["journal_id"])
		if journalID == "" {
			journalID = job.ResourceKey
		}

		j, err := journals.Get(ctx, journalID)
		if err != nil {
			return nil, fmt.Errorf("load journal: %w", err)
		}

		// Idempotency guard against double-enqueued or partially retried work.
		if j.HLSStatus == journal.HLSStatusCompleted {
			return &HLSResult{ManifestPath: j.HLSManifestPath}, nil
		}

		if err := journals.SetHLS(ctx, journalID, journal.HLSStatusProcessing, ""); err != nil {
			return nil, fmt.Errorf("mark hls processing: %w", err)
		}

		report("transcode", 1, 2, 0)
		res, err := engine.BuildRenditions(ctx, j.MediaPath, report)
		if err != nil {
			return nil, fmt.Errorf("transcode %s: %w", j.MediaPath, err)
		}

		report("persist", 2, 2, 90)
		if err := journals.SetHLS(ctx, journalID, journal.HLSStatusCompleted, res.ManifestPath); err != nil {
			return nil, fmt.Errorf("persist hls state: %w", err)
		}
		return res, nil
	}

	return queue.New(queueOptions("hls", cfg, sweep), handler)
}
