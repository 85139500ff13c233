// Package journal is the relational layer for journal entries. The job
// queues treat it as an external collaborator: job bodies read it for
// idempotency guards and write processing results (transcript, mood, HLS
// state) back onto the owning row.
package journal

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// HLS processing states persisted on a journal row.
const (
	HLSStatusNone       = ""
	HLSStatusProcessing = "processing"
	HLSStatusCompleted  = "completed"
	HLSStatusFailed     = "failed"
)

var (
	// ErrNotFound is returned when a journal row does not exist.
	ErrNotFound = errors.New("journal not found")
)

// NotFoundError wraps ErrNotFound with the missing journal's ID.
type NotFoundError struct {
	ID string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("journal not found: %s", e.ID)
}

func (e *NotFoundError) Unwrap() error {
	return ErrNotFound
}

func (e *NotFoundError) Is(target error) bool {
	return target == ErrNotFound
}

// Journal is one recorded video entry.
type Journal struct {
	ID              string    `json:"id"`
	UserID          string    `json:"user_id"`
	Title           string    `json:"title"`
	MediaPath       string    `json:"media_path"`
	Transcript      string    `json:"transcript,omitempty"`
	TranscriptLang  string    `json:"transcript_lang,omitempty"`
	Mood            string    `json:"mood,omitempty"`
	HLSStatus       string    `json:"hls_status,omitempty"`
	HLSManifestPath string    `json:"hls_manifest_path,omitempty"`
	CreatedAt       time.Time `json:"created_at"`
	UpdatedAt       time.Time `json:"updated_at"`
}

// Store persists and retrieves journals.
type Store interface {
	Create(ctx context.Context, j *Journal) error
	Get(ctx context.Context, id string) (*Journal, error)
	ListByUser(ctx context.Context, userID string) ([]*Journal, error)
	SetTranscript(ctx context.Context, id, text, lang string) error
	SetMood(ctx context.Context, id, mood string) error
	SetHLS(ctx context.Context, id, status, manifestPath string) error
	Close() error
}
