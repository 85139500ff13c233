package config

import "time"

// Config is the root configuration structure for the Reverie job service.
type Config struct {
	Log      LogConfig      `description:"Logging configuration" koanf:"log"`
	Server   ServerConfig   `description:"HTTP server configuration" koanf:"server"`
	Journal  JournalConfig  `description:"Journal store configuration" koanf:"journal"`
	Backup   BackupConfig   `description:"Backup and restore configuration" koanf:"backup"`
	Queues   QueuesConfig   `description:"Per-queue tuning" koanf:"queues"`
	Pipeline PipelineConfig `description:"Pipeline behavior" koanf:"pipeline"`
	Engines  EnginesConfig  `description:"Media engine endpoints" koanf:"engines"`
}

// LogConfig holds logging related configuration.
type LogConfig struct {
	Level  string `description:"Log level (debug, info, warn, error)" koanf:"level"`
	Format string `description:"Log format: json | text" koanf:"format"`
}

// ServerConfig holds configuration for the HTTP server runtime.
type ServerConfig struct {
	Addr         string        `description:"Server listen address" koanf:"addr"`
	Port         int           `description:"Server listen port" koanf:"port"`
	APIEnabled   bool          `description:"Enable REST API endpoints" koanf:"api_enabled"`
	ReadTimeout  time.Duration `description:"HTTP read timeout" koanf:"read_timeout"`
	WriteTimeout time.Duration `description:"HTTP write timeout" koanf:"write_timeout"`
}

// JournalConfig holds configuration for the journal store.
type JournalConfig struct {
	DBPath string `description:"SQLite database path" koanf:"db_path"`
}

// BackupConfig holds configuration for backup/restore jobs.
type BackupConfig struct {
	Dir string `description:"Directory where user archives are written" koanf:"dir"`
}

// QueueConfig tunes one job queue.
type QueueConfig struct {
	Workers      int           `description:"Concurrent workers" koanf:"workers"`
	MaxRetries   int           `description:"Failed executions before terminal failure" koanf:"max_retries"`
	PollInterval time.Duration `description:"Worker sleep when the queue is empty" koanf:"poll_interval"`
	JobTTL       time.Duration `description:"How long job records stay in memory" koanf:"job_ttl"`
	StopTimeout  time.Duration `description:"Bounded wait for in-flight jobs on shutdown" koanf:"stop_timeout"`
}

// QueuesConfig tunes the four pipeline queues.
type QueuesConfig struct {
	Transcription QueueConfig   `description:"Transcription queue" koanf:"transcription"`
	Emotion       QueueConfig   `description:"Emotion detection queue" koanf:"emotion"`
	HLS           QueueConfig   `description:"HLS transcoding queue" koanf:"hls"`
	Archive       QueueConfig   `description:"Backup/restore queue" koanf:"archive"`
	SweepInterval time.Duration `description:"How often expired job records are swept" koanf:"sweep_interval"`
}

// EnginesConfig points the job bodies at their media processors: the
// transcription and voice-emotion sidecar services, and the local ffmpeg
// binary used for HLS.
type EnginesConfig struct {
	TranscriberURL string        `description:"Transcription service base URL" koanf:"transcriber_url"`
	EmotionURL     string        `description:"Voice-emotion service base URL" koanf:"emotion_url"`
	RequestTimeout time.Duration `description:"HTTP timeout for engine calls" koanf:"request_timeout"`
	FFmpegPath     string        `description:"ffmpeg binary path" koanf:"ffmpeg_path"`
	HLSDir         string        `description:"Directory where HLS renditions are written" koanf:"hls_dir"`
}

// PipelineConfig holds cross-queue pipeline behavior.
type PipelineConfig struct {
	// AutoChain enqueues emotion detection when a journal's transcription
	// completes.
	AutoChain bool `description:"Chain emotion detection after transcription" koanf:"auto_chain"`
}
