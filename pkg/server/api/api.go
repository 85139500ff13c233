package api

import (
	"sync/atomic"

	"github.com/reveriehq/reverie/pkg/journal"
	"github.com/reveriehq/reverie/pkg/pipeline"
)

// Deps holds dependencies for API handlers.
// This pattern enables dependency injection and easier testing.
type Deps struct {
	// Pipeline owns the job queues and is the enqueue/lookup surface.
	Pipeline *pipeline.Runtime

	// Journals is the persistent journal store.
	Journals journal.Store

	// Ready flag for readiness check
	Ready *atomic.Bool
}

// EnqueueResponse is returned when a job is accepted.
type EnqueueResponse struct {
	JobID string `json:"job_id"`
	Queue string `json:"queue"`
}

// QueueStatsEntry summarizes one queue for GET /api/v1/queues.
type QueueStatsEntry struct {
	Pending    int `json:"pending"`
	Processing int `json:"processing"`
	Completed  int `json:"completed"`
	Failed     int `json:"failed"`
	Total      int `json:"total"`
}

// CreateJournalRequest is the body of POST /api/v1/journals.
type CreateJournalRequest struct {
	UserID    string `json:"user_id" validate:"required"`
	Title     string `json:"title" validate:"required,max=256"`
	MediaPath string `json:"media_path" validate:"required"`
}

// CreateBackupRequest is the body of POST /api/v1/backups.
type CreateBackupRequest struct {
	UserID string `json:"user_id" validate:"required"`
}

// CreateRestoreRequest is the body of POST /api/v1/restores.
type CreateRestoreRequest struct {
	UserID      string `json:"user_id" validate:"required"`
	ArchivePath string `json:"archive_path" validate:"required"`
}
