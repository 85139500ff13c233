package engines

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"os"
	"path/filepath"

	"github.com/reveriehq/reverie/pkg/pipeline"
	"github.com/reveriehq/reverie/pkg/queue"
)

// TranscriptionClient speaks to a Whisper-compatible transcription service:
// multipart file upload, JSON response with text/language/duration.
type TranscriptionClient struct {
	BaseURL string
	Client  *http.Client
}

// Transcribe uploads the recording and returns the transcript.
func (c *TranscriptionClient) Transcribe(ctx context.Context, mediaPath string, report queue.ProgressFunc) (*pipeline.TranscriptionResult, error) {
	report("upload", 1, 2, 10)

	var out struct {
		Text            string  `json:"text"`
		Language        string  `json:"language"`
		DurationSeconds float64 `json:"duration"`
	}
	if err := postFile(ctx, c.Client, c.BaseURL+"/v1/audio/transcriptions", "file", mediaPath, &out); err != nil {
		return nil, fmt.Errorf("transcription service: %w", err)
	}

	report("decode", 2, 2, 90)
	return &pipeline.TranscriptionResult{
		Text:            out.Text,
		Language:        out.Language,
		DurationSeconds: out.DurationSeconds,
	}, nil
}

// EmotionClient speaks to the voice-emotion recognition sidecar:
// POST /predict with the audio as multipart "audio_file", JSON response with
// the dominant emotion and per-label scores.
type EmotionClient struct {
	BaseURL string
	Client  *http.Client
}

// Analyze uploads the recording's audio and returns the emotion scores.
func (c *EmotionClient) Analyze(ctx context.Context, mediaPath string, report queue.ProgressFunc) (*pipeline.EmotionResult, error) {
	report("predict", 1, 1, 10)

	var out struct {
		Emotion    string             `json:"emotion"`
		Confidence float64            `json:"confidence"`
		Scores     map[string]float64 `json:"scores"`
	}
	if err := postFile(ctx, c.Client, c.BaseURL+"/predict", "audio_file", mediaPath, &out); err != nil {
		return nil, fmt.Errorf("emotion service: %w", err)
	}
	if out.Emotion == "" {
		return nil, fmt.Errorf("emotion service: empty prediction")
	}

	return &pipeline.EmotionResult{
		Dominant:    out.Emotion,
		VoiceScores: out.Scores,
	}, nil
}

// postFile uploads one file as a multipart form and decodes the JSON reply.
func postFile(ctx context.Context, client *http.Client, url, field, path string, out any) error {
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("open media: %w", err)
	}
	defer f.Close()

	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	part, err := mw.CreateFormFile(field, filepath.Base(path))
	if err != nil {
		return err
	}
	if _, err := io.Copy(part, f); err != nil {
		return fmt.Errorf("read media: %w", err)
	}
	if err := mw.Close(); err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, &body)
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", mw.FormDataContentType())

	resp, err := client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("status %d: %s", resp.StatusCode, bytes.TrimSpace(msg))
	}
	return json.NewDecoder(resp.Body).Decode(out)
}
