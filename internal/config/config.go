// Package config provides the configuration schema, loader, hot-reload
// watcher, and sink/history registry for the livescribe dictation tool.
package config

import "time"

// LogLevel controls log verbosity.
type LogLevel string

const (
	LogDebug LogLevel = "debug"
	LogInfo  LogLevel = "info"
	LogWarn  LogLevel = "warn"
	LogError LogLevel = "error"
)

// IsValid reports whether l is a recognised log level.
func (l LogLevel) IsValid() bool {
	switch l {
	case LogDebug, LogInfo, LogWarn, LogError:
		return true
	}
	return false
}

// InsertMode selects when stable text reaches the sink.
type InsertMode string

const (
	// InsertIncremental inserts each newly stable tail as soon as it is
	// promoted.
	InsertIncremental InsertMode = "incremental"

	// InsertOnStop inserts the whole session text once, when dictation ends.
	InsertOnStop InsertMode = "on_stop"
)

// IsValid reports whether m is a recognised insertion mode.
func (m InsertMode) IsValid() bool {
	return m == InsertIncremental || m == InsertOnStop
}

// Built-in sink and history backend names.
const (
	SinkStdout    = "stdout"
	SinkClipboard = "clipboard"
	SinkFile      = "file"

	HistoryMemory   = "memory"
	HistoryPostgres = "postgres"
	HistoryNone     = "none"
)

// Defaults applied by [ApplyDefaults] to zero-valued fields.
const (
	DefaultKeepaliveInterval = 15 * time.Second
	DefaultCommitInterval    = time.Second
	DefaultFinalizeTimeout   = 2 * time.Second
	DefaultReconnectBackoff  = time.Second
	DefaultMaxBackoff        = 30 * time.Second
	DefaultChunkMS           = 100
	DefaultSampleRate        = 16000
	DefaultPhoneticThreshold = 0.70
	DefaultFuzzyThreshold    = 0.85
)

// Config is the root configuration structure.
// It is typically loaded from a YAML file using [Load] or [LoadFromReader].
type Config struct {
	Server        ServerConfig        `yaml:"server"`
	Transcription TranscriptionConfig `yaml:"transcription"`
	Audio         AudioConfig         `yaml:"audio"`
	Insertion     InsertionConfig     `yaml:"insertion"`
	Vocabulary    VocabularyConfig    `yaml:"vocabulary"`
	History       HistoryConfig       `yaml:"history"`
}

// ServerConfig holds the admin HTTP server and logging settings.
type ServerConfig struct {
	// ListenAddr is the TCP address of the admin server serving /healthz,
	// /readyz and /metrics (e.g. ":9464"). Empty disables it.
	ListenAddr string `yaml:"listen_addr"`

	// LogLevel controls verbosity. Hot-reloadable.
	LogLevel LogLevel `yaml:"log_level"`
}

// TranscriptionConfig describes the realtime transcription backend.
type TranscriptionConfig struct {
	// Endpoint is the ws:// or wss:// URL of the realtime socket.
	Endpoint string `yaml:"endpoint"`

	// APIKey is sent as a bearer token. ${VAR} references are expanded from
	// the environment at load time.
	APIKey string `yaml:"api_key"`

	// Model is announced in the session.update frame.
	Model string `yaml:"model"`

	// TranscriptionDelayMS is an optional latency hint for the backend.
	TranscriptionDelayMS int `yaml:"transcription_delay_ms"`

	KeepaliveInterval time.Duration `yaml:"keepalive_interval"`

	// CommitInterval is the cadence of non-final commits while audio flows.
	CommitInterval time.Duration `yaml:"commit_interval"`

	// FinalizeTimeout bounds the wait for the final transcript after stop.
	FinalizeTimeout time.Duration `yaml:"finalize_timeout"`

	Reconnect ReconnectConfig `yaml:"reconnect"`
}

// ReconnectConfig controls automatic reconnection after an unexpected
// disconnect during capture.
type ReconnectConfig struct {
	// MaxRetries is the number of reconnect attempts. 0 disables reconnect.
	MaxRetries int           `yaml:"max_retries"`
	Backoff    time.Duration `yaml:"backoff"`
	MaxBackoff time.Duration `yaml:"max_backoff"`
}

// AudioConfig describes the PCM16 input.
type AudioConfig struct {
	// ChunkMS is the duration of each chunk sent to the backend.
	ChunkMS int `yaml:"chunk_ms"`

	// Realtime paces file input at wall-clock speed.
	Realtime bool `yaml:"realtime"`

	// InputSampleRate and InputChannels describe the raw input. Input that
	// differs from 16 kHz mono is converted before it is sent.
	InputSampleRate int `yaml:"input_sample_rate"`
	InputChannels   int `yaml:"input_channels"`
}

// ChunkDuration returns ChunkMS as a [time.Duration].
func (a AudioConfig) ChunkDuration() time.Duration {
	return time.Duration(a.ChunkMS) * time.Millisecond
}

// InsertionConfig selects where and when stable text is delivered.
type InsertionConfig struct {
	Sink string `yaml:"sink"`

	// Path is the output file for sink "file".
	Path string `yaml:"path"`

	Mode InsertMode `yaml:"mode"`

	// Overlay renders committed and unstable text on stderr while dictating.
	Overlay bool `yaml:"overlay"`
}

// VocabularyConfig lists custom terms used to correct inserted text.
// Hot-reloadable.
type VocabularyConfig struct {
	Words             []string `yaml:"words"`
	PhoneticThreshold float64  `yaml:"phonetic_threshold"`
	FuzzyThreshold    float64  `yaml:"fuzzy_threshold"`
}

// HistoryConfig selects the dictation history backend.
type HistoryConfig struct {
	Backend     string `yaml:"backend"`
	PostgresDSN string `yaml:"postgres_dsn"`
}

// ApplyDefaults fills zero-valued fields with their defaults.
func ApplyDefaults(cfg *Config) {
	if cfg.Server.LogLevel == "" {
		cfg.Server.LogLevel = LogInfo
	}

	t := &cfg.Transcription
	if t.KeepaliveInterval == 0 {
		t.KeepaliveInterval = DefaultKeepaliveInterval
	}
	if t.CommitInterval == 0 {
		t.CommitInterval = DefaultCommitInterval
	}
	if t.FinalizeTimeout == 0 {
		t.FinalizeTimeout = DefaultFinalizeTimeout
	}
	if t.Reconnect.Backoff == 0 {
		t.Reconnect.Backoff = DefaultReconnectBackoff
	}
	if t.Reconnect.MaxBackoff == 0 {
		t.Reconnect.MaxBackoff = DefaultMaxBackoff
	}

	if cfg.Audio.ChunkMS == 0 {
		cfg.Audio.ChunkMS = DefaultChunkMS
	}
	if cfg.Audio.InputSampleRate == 0 {
		cfg.Audio.InputSampleRate = DefaultSampleRate
	}
	if cfg.Audio.InputChannels == 0 {
		cfg.Audio.InputChannels = 1
	}

	if cfg.Insertion.Sink == "" {
		cfg.Insertion.Sink = SinkStdout
	}
	if cfg.Insertion.Mode == "" {
		cfg.Insertion.Mode = InsertIncremental
	}

	if cfg.Vocabulary.PhoneticThreshold == 0 {
		cfg.Vocabulary.PhoneticThreshold = DefaultPhoneticThreshold
	}
	if cfg.Vocabulary.FuzzyThreshold == 0 {
		cfg.Vocabulary.FuzzyThreshold = DefaultFuzzyThreshold
	}

	if cfg.History.Backend == "" {
		cfg.History.Backend = HistoryMemory
	}
}
