// Package queue implements the in-memory background job queue used by the
// Reverie processing pipeline. A Queue owns a Store of job records and a
// pool of polling workers that claim pending jobs, run the job handler, and
// reconcile the outcome (completion, retry with backoff, or terminal
// failure) back into the store.
//
// Queue state is volatile by design: records live only for the lifetime of
// the process, bounded by a configurable TTL sweep.
package queue

import (
	"time"

	"github.com/google/uuid"
)

// Type identifies which pipeline owns a job record.
type Type string

const (
	TypeTranscription Type = "transcription"
	TypeEmotion       Type = "emotion"
	TypeHLS           Type = "hls"
	TypeBackup        Type = "backup"
	TypeRestore       Type = "restore"
)

// Status is the lifecycle state of a job record.
//
// Valid transitions: pending → processing → {pending, completed, failed}.
// A processing job returns to pending only when a failed attempt is
// scheduled for retry. Completed and failed are absorbing.
type Status string

const (
	StatusPending    Status = "pending"
	StatusProcessing Status = "processing"
	StatusCompleted  Status = "completed"
	StatusFailed     Status = "failed"
)

// IsTerminal returns true for statuses that represent a final state.
func (s Status) IsTerminal() bool {
	return s == StatusCompleted || s == StatusFailed
}

// Progress is structured progress info reported by a running job body.
type Progress struct {
	Step       string `json:"step,omitempty"`
	StepIndex  int    `json:"step_index,omitempty"`
	TotalSteps int    `json:"total_steps,omitempty"`
	Percent    int    `json:"percent"`
	FilesDone  int    `json:"files_done,omitempty"`
	FilesTotal int    `json:"files_total,omitempty"`
}

// Job is one unit of work. Identity fields (ID, Type, ResourceKey, Payload,
// CreatedAt) are immutable after insertion; the rest is mutated exclusively
// through Store.Update so concurrent readers always see a consistent record.
type Job struct {
	ID          string         `json:"id"`
	Type        Type           `json:"type"`
	ResourceKey string         `json:"resource_key"`
	Payload     map[string]any `json:"payload,omitempty"`

	Status   Status   `json:"status"`
	Attempts int      `json:"attempts"`
	Progress Progress `json:"progress"`
	Result   any      `json:"result,omitempty"`
	Error    string   `json:"error,omitempty"`

	CreatedAt   time.Time `json:"created_at"`
	ProcessedAt time.Time `json:"processed_at,omitzero"`
	// NextEligibleAt gates retry backoff: a pending job is invisible to
	// workers until this instant has passed. Zero means immediately eligible.
	NextEligibleAt time.Time `json:"next_eligible_at,omitzero"`
	// ExpiresAt is when the sweep may remove the record. Zero disables expiry.
	ExpiresAt time.Time `json:"expires_at,omitzero"`
}

// NewJob constructs a pending job record with a fresh collision-resistant ID.
// ttl of zero leaves the record exempt from sweeping.
func NewJob(typ Type, resourceKey string, payload map[string]any, ttl time.Duration) Job {
	now := time.Now()
	j := Job{
		ID:          uuid.NewString(),
		Type:        typ,
		ResourceKey: resourceKey,
		Payload:     payload,
		Status:      StatusPending,
		CreatedAt:   now,
	}
	if ttl > 0 {
		j.ExpiresAt = now.Add(ttl)
	}
	return j
}
