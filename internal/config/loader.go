package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/url"
	"os"
	"slices"
	"time"

	"gopkg.in/yaml.v3"
)

// ValidSinkNames lists the sinks that ship with livescribe.
var ValidSinkNames = []string{SinkStdout, SinkClipboard, SinkFile}

// ValidHistoryBackends lists the history backends that ship with livescribe.
var ValidHistoryBackends = []string{HistoryMemory, HistoryPostgres, HistoryNone}

// Load reads the YAML configuration file at path and returns a validated [Config].
// It is a convenience wrapper around [LoadFromReader].
func Load(path string) (*Config, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("config: open %q: %w", path, err)
	}
	defer f.Close()

	cfg, err := LoadFromReader(f)
	if err != nil {
		return nil, fmt.Errorf("config: parse %q: %w", path, err)
	}
	return cfg, nil
}

// LoadFromReader decodes a YAML config from r, expands environment
// references in secrets, applies defaults and validates the result.
// Useful in tests where configs are constructed from string literals.
func LoadFromReader(r io.Reader) (*Config, error) {
	cfg := &Config{}
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("config: decode yaml: %w", err)
	}

	cfg.Transcription.APIKey = os.ExpandEnv(cfg.Transcription.APIKey)
	cfg.History.PostgresDSN = os.ExpandEnv(cfg.History.PostgresDSN)

	ApplyDefaults(cfg)
	if err := Validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// loadBytes is [LoadFromReader] over an in-memory document.
func loadBytes(data []byte) (*Config, error) {
	return LoadFromReader(bytes.NewReader(data))
}

// Validate checks that cfg contains a coherent set of values.
// It returns a joined error listing all validation failures found.
func Validate(cfg *Config) error {
	var errs []error

	// Server
	if cfg.Server.LogLevel != "" && !cfg.Server.LogLevel.IsValid() {
		errs = append(errs, fmt.Errorf("server.log_level %q is invalid; valid values: debug, info, warn, error", cfg.Server.LogLevel))
	}

	// Transcription
	t := cfg.Transcription
	if err := validateEndpoint(t.Endpoint); err != nil {
		errs = append(errs, err)
	}
	if t.Model == "" {
		slog.Warn("transcription.model is empty; the backend default model will be used and no session.update is sent")
	}
	if t.TranscriptionDelayMS < 0 {
		errs = append(errs, fmt.Errorf("transcription.transcription_delay_ms %d must not be negative", t.TranscriptionDelayMS))
	}
	for _, d := range []struct {
		name  string
		value time.Duration
	}{
		{"transcription.keepalive_interval", t.KeepaliveInterval},
		{"transcription.commit_interval", t.CommitInterval},
		{"transcription.finalize_timeout", t.FinalizeTimeout},
		{"transcription.reconnect.backoff", t.Reconnect.Backoff},
		{"transcription.reconnect.max_backoff", t.Reconnect.MaxBackoff},
	} {
		if d.value < 0 {
			errs = append(errs, fmt.Errorf("%s %v must not be negative", d.name, d.value))
		}
	}
	if t.Reconnect.MaxRetries < 0 {
		errs = append(errs, fmt.Errorf("transcription.reconnect.max_retries %d must not be negative", t.Reconnect.MaxRetries))
	}
	if t.Reconnect.MaxBackoff > 0 && t.Reconnect.Backoff > t.Reconnect.MaxBackoff {
		errs = append(errs, fmt.Errorf("transcription.reconnect.backoff %v exceeds max_backoff %v", t.Reconnect.Backoff, t.Reconnect.MaxBackoff))
	}

	// Audio
	if cfg.Audio.ChunkMS < 0 {
		errs = append(errs, fmt.Errorf("audio.chunk_ms %d must not be negative", cfg.Audio.ChunkMS))
	}
	if cfg.Audio.InputSampleRate < 0 {
		errs = append(errs, fmt.Errorf("audio.input_sample_rate %d must not be negative", cfg.Audio.InputSampleRate))
	}
	if cfg.Audio.InputChannels < 0 || cfg.Audio.InputChannels > 2 {
		errs = append(errs, fmt.Errorf("audio.input_channels %d is out of range [1, 2]", cfg.Audio.InputChannels))
	}

	// Insertion
	ins := cfg.Insertion
	if ins.Sink != "" && !slices.Contains(ValidSinkNames, ins.Sink) {
		errs = append(errs, fmt.Errorf("insertion.sink %q: %w; valid values: %v", ins.Sink, ErrSinkNotRegistered, ValidSinkNames))
	}
	if ins.Sink == SinkFile && ins.Path == "" {
		errs = append(errs, errors.New("insertion.path is required when sink is file"))
	}
	if ins.Mode != "" && !ins.Mode.IsValid() {
		errs = append(errs, fmt.Errorf("insertion.mode %q is invalid; valid values: incremental, on_stop", ins.Mode))
	}

	// Vocabulary
	v := cfg.Vocabulary
	if v.PhoneticThreshold < 0 || v.PhoneticThreshold > 1 {
		errs = append(errs, fmt.Errorf("vocabulary.phonetic_threshold %.2f is out of range [0, 1]", v.PhoneticThreshold))
	}
	if v.FuzzyThreshold < 0 || v.FuzzyThreshold > 1 {
		errs = append(errs, fmt.Errorf("vocabulary.fuzzy_threshold %.2f is out of range [0, 1]", v.FuzzyThreshold))
	}

	// History
	h := cfg.History
	if h.Backend != "" && !slices.Contains(ValidHistoryBackends, h.Backend) {
		errs = append(errs, fmt.Errorf("history.backend %q is invalid; valid values: %v", h.Backend, ValidHistoryBackends))
	}
	if h.Backend == HistoryPostgres && h.PostgresDSN == "" {
		errs = append(errs, errors.New("history.postgres_dsn is required when backend is postgres"))
	}

	return errors.Join(errs...)
}

// validateEndpoint accepts only absolute ws:// and wss:// URLs with a host.
func validateEndpoint(endpoint string) error {
	if endpoint == "" {
		return errors.New("transcription.endpoint is required")
	}
	u, err := url.Parse(endpoint)
	if err != nil {
		return fmt.Errorf("transcription.endpoint %q: %w", endpoint, err)
	}
	if u.Scheme != "ws" && u.Scheme != "wss" {
		return fmt.Errorf("transcription.endpoint %q: scheme must be ws or wss", endpoint)
	}
	if u.Host == "" {
		return fmt.Errorf("transcription.endpoint %q: missing host", endpoint)
	}
	return nil
}
