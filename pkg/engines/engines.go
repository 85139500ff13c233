// Package engines provides the default media engine implementations behind
// the pipeline interfaces: HTTP clients for the transcription and
// voice-emotion sidecar services, an ffmpeg-based HLS transcoder, and a
// tar.gz archiver for backup/restore.
package engines

import (
	"net/http"

	"github.com/reveriehq/reverie/pkg/config"
	"github.com/reveriehq/reverie/pkg/journal"
	"github.com/reveriehq/reverie/pkg/pipeline"
)

// New builds the default engine set from configuration.
func New(cfg config.EnginesConfig, journals journal.Store) pipeline.Deps {
	client := &http.Client{Timeout: cfg.RequestTimeout}
	return pipeline.Deps{
		Journals:    journals,
		Transcriber: &TranscriptionClient{BaseURL: cfg.TranscriberURL, Client: client},
		Emotion:     &EmotionClient{BaseURL: cfg.EmotionURL, Client: client},
		Transcoder:  &FFmpegTranscoder{BinaryPath: cfg.FFmpegPath, OutputDir: cfg.HLSDir},
		Archiver:    &TarArchiver{Journals: journals},
	}
}
