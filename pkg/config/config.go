package config

import (
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/confmap"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/posflag"
	"github.com/knadh/koanf/v2"
	"github.com/spf13/pflag"
)

// Manager handles loading and accessing application configuration. Sources
// are layered defaults < config file < command-line flags; later sources
// override earlier ones.
type Manager struct {
	koanfInstance *koanf.Koanf
	currentConfig Config
	mu            sync.RWMutex // protects currentConfig during runtime updates
}

// NewManager creates a config Manager with its own koanf instance.
func NewManager() *Manager {
	return &Manager{
		koanfInstance: koanf.New("."),
	}
}

// DefaultConfig returns a Config populated with the baseline values: two
// workers and three retries for most queues, one worker and two retries for
// HLS given its CPU cost, a 24h in-memory TTL everywhere.
func DefaultConfig() Config {
	return Config{
		Log: LogConfig{
			Level:  "info",
			Format: "text",
		},
		Server: ServerConfig{
			Addr:         "127.0.0.1",
			Port:         8080,
			APIEnabled:   true,
			ReadTimeout:  30 * time.Second,
			WriteTimeout: 30 * time.Second,
		},
		Journal: JournalConfig{
			DBPath: "reverie.db",
		},
		Backup: BackupConfig{
			Dir: "backups",
		},
		Queues: QueuesConfig{
			Transcription: QueueConfig{
				Workers:      2,
				MaxRetries:   3,
				PollInterval: 1 * time.Second,
				JobTTL:       24 * time.Hour,
				StopTimeout:  30 * time.Second,
			},
			Emotion: QueueConfig{
				Workers:      2,
				MaxRetries:   3,
				PollInterval: 1 * time.Second,
				JobTTL:       24 * time.Hour,
				StopTimeout:  30 * time.Second,
			},
			HLS: QueueConfig{
				Workers:      1,
				MaxRetries:   2,
				PollInterval: 2 * time.Second,
				JobTTL:       24 * time.Hour,
				StopTimeout:  60 * time.Second,
			},
			Archive: QueueConfig{
				Workers:      2,
				MaxRetries:   3,
				PollInterval: 1 * time.Second,
				JobTTL:       24 * time.Hour,
				StopTimeout:  30 * time.Second,
			},
			SweepInterval: 1 * time.Hour,
		},
		Pipeline: PipelineConfig{
			AutoChain: true,
		},
		Engines: EnginesConfig{
			TranscriberURL: "http://127.0.0.1:9090",
			EmotionURL:     "http://127.0.0.1:8000",
			RequestTimeout: 5 * time.Minute,
			FFmpegPath:     "ffmpeg",
			HLSDir:         "hls",
		},
	}
}

// Load layers configuration from defaults, an optional YAML file, and
// command-line flags, then unmarshals the merged result.
func (m *Manager) Load(flags *pflag.FlagSet, configFilePath string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if err := m.koanfInstance.Load(confmap.Provider(DefaultConfigAsMap(), "."), nil); err != nil {
		return fmt.Errorf("load defaults: %w", err)
	}

	if configFilePath != "" {
		if _, err := os.Stat(configFilePath); err == nil {
			if err := m.koanfInstance.Load(file.Provider(configFilePath), yaml.Parser()); err != nil {
				return fmt.Errorf("load config file %s: %w", configFilePath, err)
			}
		} else if !os.IsNotExist(err) {
			return fmt.Errorf("check config file %s: %w", configFilePath, err)
		}
	}

	if flags != nil {
		if err := m.koanfInstance.Load(posflag.Provider(flags, ".", m.koanfInstance), nil); err != nil {
			return fmt.Errorf("load command-line flags: %w", err)
		}
		if debugFlag := flags.Lookup("debug"); debugFlag != nil && debugFlag.Value.String() == "true" {
			_ = m.koanfInstance.Set("log.level", "debug")
		}
	}

	var newCfg Config
	if err := m.koanfInstance.UnmarshalWithConf("", &newCfg, koanf.UnmarshalConf{Tag: "koanf"}); err != nil {
		return fmt.Errorf("unmarshal config: %w", err)
	}
	m.currentConfig = newCfg
	return nil
}

// Reload re-reads the config file, keeping defaults underneath. Used by the
// watcher for runtime changes; flag overrides do not survive a reload.
func (m *Manager) Reload(configFilePath string) error {
	return m.Load(nil, configFilePath)
}

// Get returns a copy of the current configuration.
func (m *Manager) Get() Config {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.currentConfig
}

// DefaultConfigAsMap converts DefaultConfig to the flat key map koanf's
// confmap provider expects.
func DefaultConfigAsMap() map[string]interface{} {
	def := DefaultConfig()
	out := map[string]interface{}{
		"log.level":  def.Log.Level,
		"log.format": def.Log.Format,

		"server.addr":          def.Server.Addr,
		"server.port":          def.Server.Port,
		"server.api_enabled":   def.Server.APIEnabled,
		"server.read_timeout":  def.Server.ReadTimeout,
		"server.write_timeout": def.Server.WriteTimeout,

		"journal.db_path": def.Journal.DBPath,
		"backup.dir":      def.Backup.Dir,

		"queues.sweep_interval": def.Queues.SweepInterval,
		"pipeline.auto_chain":   def.Pipeline.AutoChain,

		"engines.transcriber_url": def.Engines.TranscriberURL,
		"engines.emotion_url":     def.Engines.EmotionURL,
		"engines.request_timeout": def.Engines.RequestTimeout,
		"engines.ffmpeg_path":     def.Engines.FFmpegPath,
		"engines.hls_dir":         def.Engines.HLSDir,
	}
	for name, qc := range map[string]QueueConfig{
		"transcription": def.Queues.Transcription,
		"emotion":       def.Queues.Emotion,
		"hls":           def.Queues.HLS,
		"archive":       def.Queues.Archive,
	} {
		out["queues."+name+".workers"] = qc.Workers
		out["queues."+name+".max_retries"] = qc.MaxRetries
		out["queues."+name+".poll_interval"] = qc.PollInterval
		out["queues."+name+".job_ttl"] = qc.JobTTL
		out["queues."+name+".stop_timeout"] = qc.StopTimeout
	}
	return out
}

// BindFlags defines command-line flags corresponding to configuration
// settings. Called when setting up the Cobra root command.
func BindFlags(flags *pflag.FlagSet) {
	var flagvar bool
	flags.BoolVar(&flagvar, "debug", false, "Enable debug logging")
}
