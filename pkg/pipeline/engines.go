// Package pipeline wires the four Reverie job queues (transcription,
// emotion detection, HLS transcoding, backup/restore) to their job bodies.
// The media engines themselves are external collaborators behind the
// interfaces below; each queue instantiation is configuration plus a job
// body that runs the idempotency guard, invokes the engine, and persists the
// outcome onto the owning journal row.
package pipeline

import (
	"context"

	"github.com/reveriehq/reverie/pkg/queue"
)

// Transcriber converts a journal's audio track to text.
type Transcriber interface {
	Transcribe(ctx context.Context, mediaPath string, report queue.ProgressFunc) (*TranscriptionResult, error)
}

// TranscriptionResult is the success payload of a transcription job.
type TranscriptionResult struct {
	Text            string  `json:"text"`
	Language        string  `json:"language,omitempty"`
	DurationSeconds float64 `json:"duration_seconds,omitempty"`
}

// EmotionAnalyzer runs facial and voice emotion detection over a recording.
type EmotionAnalyzer interface {
	Analyze(ctx context.Context, mediaPath string, report queue.ProgressFunc) (*EmotionResult, error)
}

// EmotionResult is the success payload of an emotion detection job.
type EmotionResult struct {
	Dominant    string             `json:"dominant"`
	FaceScores  map[string]float64 `json:"face_scores,omitempty"`
	VoiceScores map[string]float64 `json:"voice_scores,omitempty"`
}

// Transcoder builds HLS renditions for a recording.
type Transcoder interface {
	BuildRenditions(ctx context.Context, mediaPath string, report queue.ProgressFunc) (*HLSResult, error)
}

// HLSResult is the success payload of an HLS transcoding job.
type HLSResult struct {
	ManifestPath string   `json:"manifest_path"`
	Renditions   []string `json:"renditions,omitempty"`
}

// Archiver creates and restores per-user backup archives.
type Archiver interface {
	CreateArchive(ctx context.Context, userID, destDir string, report queue.ProgressFunc) (*BackupResult, error)
	RestoreArchive(ctx context.Context, userID, archivePath string, report queue.ProgressFunc) (*RestoreSummary, error)
}

// BackupResult is the success payload of a backup job.
type BackupResult struct {
	ArchivePath string `json:"archive_path"`
	SizeBytes   int64  `json:"size_bytes,omitempty"`
}

// RestoreSummary is the success payload of a restore job.
type RestoreSummary struct {
	JournalsRestored int `json:"journals_restored"`
	FilesRestored    int `json:"files_restored"`
}
