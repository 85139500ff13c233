package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/pflag"
	"github.com/stretchr/testify/require"
)

func writeConfigFile(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "reverie.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoadDefaults(t *testing.T) {
	m := NewManager()
	require.NoError(t, m.Load(nil, ""))

	cfg := m.Get()
	require.Equal(t, "info", cfg.Log.Level)
	require.Equal(t, 8080, cfg.Server.Port)
	require.True(t, cfg.Server.APIEnabled)
	require.Equal(t, "reverie.db", cfg.Journal.DBPath)
	require.True(t, cfg.Pipeline.AutoChain)

	// HLS is tuned down relative to the other queues.
	require.Equal(t, 1, cfg.Queues.HLS.Workers)
	require.Equal(t, 2, cfg.Queues.HLS.MaxRetries)
	require.Equal(t, 60*time.Second, cfg.Queues.HLS.StopTimeout)
	require.Equal(t, 2, cfg.Queues.Transcription.Workers)
	require.Equal(t, 3, cfg.Queues.Transcription.MaxRetries)
	require.Equal(t, 24*time.Hour, cfg.Queues.Emotion.JobTTL)
	require.Equal(t, time.Hour, cfg.Queues.SweepInterval)
}

func TestLoadFileOverridesDefaults(t *testing.T) {
	path := writeConfigFile(t, `
log:
  level: debug
server:
  port: 9999
queues:
  hls:
    workers: 3
pipeline:
  auto_chain: false
`)

	m := NewManager()
	require.NoError(t, m.Load(nil, path))

	cfg := m.Get()
	require.Equal(t, "debug", cfg.Log.Level)
	require.Equal(t, 9999, cfg.Server.Port)
	require.Equal(t, 3, cfg.Queues.HLS.Workers)
	require.False(t, cfg.Pipeline.AutoChain)

	// Untouched keys keep their defaults.
	require.Equal(t, "127.0.0.1", cfg.Server.Addr)
	require.Equal(t, 2, cfg.Queues.Transcription.Workers)
}

func TestLoadMissingFileFallsBackToDefaults(t *testing.T) {
	m := NewManager()
	require.NoError(t, m.Load(nil, filepath.Join(t.TempDir(), "nope.yaml")))
	require.Equal(t, 8080, m.Get().Server.Port)
}

func TestLoadDebugFlagForcesDebugLevel(t *testing.T) {
	flags := pflag.NewFlagSet("test", pflag.ContinueOnError)
	BindFlags(flags)
	require.NoError(t, flags.Parse([]string{"--debug"}))

	m := NewManager()
	require.NoError(t, m.Load(flags, ""))
	require.Equal(t, "debug", m.Get().Log.Level)
}

func TestReloadPicksUpFileChanges(t *testing.T) {
	path := writeConfigFile(t, "server:\n  port: 9000\n")

	m := NewManager()
	require.NoError(t, m.Load(nil, path))
	require.Equal(t, 9000, m.Get().Server.Port)

	require.NoError(t, os.WriteFile(path, []byte("server:\n  port: 9001\n"), 0o644))
	require.NoError(t, m.Reload(path))
	require.Equal(t, 9001, m.Get().Server.Port)
}

func TestDefaultConfigAsMapCoversQueues(t *testing.T) {
	m := DefaultConfigAsMap()
	for _, name := range []string{"transcription", "emotion", "hls", "archive"} {
		require.Contains(t, m, "queues."+name+".workers")
		require.Contains(t, m, "queues."+name+".max_retries")
		require.Contains(t, m, "queues."+name+".job_ttl")
	}
	require.Contains(t, m, "engines.transcriber_url")
	require.Contains(t, m, "engines.emotion_url")
}
