package pipeline

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/gofrs/flock"
	"github.com/spf13/cast"

	"github.com/reveriehq/reverie/pkg/config"
	"github.com/reveriehq/reverie/pkg/queue"
)

// newArchiveQueue builds the backup/restore queue. Both job types share one
// queue; the body dispatches on the record's type. A file lock on the
// backup directory serializes archive writes across concurrent workers and
// across processes sharing the same directory.
func newArchiveQueue(cfg config.QueueConfig, sweep config.QueuesConfig, backupDir string, engine Archiver) *queue.Queue {
	lockPath := filepath.Join(backupDir, ".reverie.lock")

	handler := func(ctx context.Context, job queue.Job, report queue.ProgressFunc) (any, error) {
		userID := cast.ToString(job.Payload["user_id"])
		if userID == "" {
			userID = job.ResourceKey
		}

		if err := os.MkdirAll(backupDir, 0o755); err != nil {
			return nil, fmt.Errorf("create backup dir: %w", err)
		}
		lock := flock.New(lockPath)
		if err := lock.Lock(); err != nil {
			return nil, fmt.Errorf("lock backup dir: %w", err)
		}
		defer func() { _ = lock.Unlock() }()

		switch job.Type {
		case queue.TypeBackup:
			res, err := engine.CreateArchive(ctx, userID, backupDir, report)
			if err != nil {
				return nil, fmt.Errorf("create archive for user %s: %w", userID, err)
			}
			return res, nil

		case queue.TypeRestore:
			archivePath := cast.ToString(job.Payload["archive_path"])
			if archivePath == "" {
				return nil, fmt.Errorf("restore job %s has no archive_path", job.ID)
			}
			res, err := engine.RestoreArchive(ctx, userID, archivePath, report)
			if err != nil {
				return nil, fmt.Errorf("restore archive %s: %w", archivePath, err)
			}
			return res, nil

		default:
			return nil, fmt.Errorf("archive queue cannot process job type %q", job.Type)
		}
	}

	return queue.New(queueOptions("archive", cfg, sweep), handler)
}
