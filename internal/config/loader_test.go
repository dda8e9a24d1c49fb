package config_test

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/MrWong99/livescribe/internal/config"
)

const fullYAML = `
server:
  listen_addr: ":9464"
  log_level: debug
transcription:
  endpoint: wss://api.example.com/v1/realtime
  api_key: ${LIVESCRIBE_TEST_TOKEN}
  model: voxtral-mini-transcribe-realtime
  transcription_delay_ms: 480
  keepalive_interval: 10s
  commit_interval: 500ms
  finalize_timeout: 3s
  reconnect:
    max_retries: 3
    backoff: 250ms
    max_backoff: 5s
audio:
  chunk_ms: 40
  realtime: true
  input_sample_rate: 48000
  input_channels: 2
insertion:
  sink: file
  path: /tmp/out.txt
  mode: on_stop
  overlay: true
vocabulary:
  words: ["Kubernetes", "Grafana"]
  phonetic_threshold: 0.6
  fuzzy_threshold: 0.9
history:
  backend: postgres
  postgres_dsn: postgres://localhost/livescribe
`

// Not parallel: uses t.Setenv.
func TestLoadFromReader_Full(t *testing.T) {
	t.Setenv("LIVESCRIBE_TEST_TOKEN", "sekrit")

	cfg, err := config.LoadFromReader(strings.NewReader(fullYAML))
	if err != nil {
		t.Fatalf("LoadFromReader: %v", err)
	}

	if cfg.Server.ListenAddr != ":9464" || cfg.Server.LogLevel != config.LogDebug {
		t.Errorf("server = %+v", cfg.Server)
	}
	tr := cfg.Transcription
	if tr.APIKey != "sekrit" {
		t.Errorf("api_key = %q, want expanded env value", tr.APIKey)
	}
	if tr.Model != "voxtral-mini-transcribe-realtime" || tr.TranscriptionDelayMS != 480 {
		t.Errorf("transcription = %+v", tr)
	}
	if tr.KeepaliveInterval != 10*time.Second || tr.CommitInterval != 500*time.Millisecond || tr.FinalizeTimeout != 3*time.Second {
		t.Errorf("durations = %v %v %v", tr.KeepaliveInterval, tr.CommitInterval, tr.FinalizeTimeout)
	}
	if tr.Reconnect != (config.ReconnectConfig{MaxRetries: 3, Backoff: 250 * time.Millisecond, MaxBackoff: 5 * time.Second}) {
		t.Errorf("reconnect = %+v", tr.Reconnect)
	}
	if cfg.Audio.ChunkDuration() != 40*time.Millisecond || !cfg.Audio.Realtime || cfg.Audio.InputSampleRate != 48000 || cfg.Audio.InputChannels != 2 {
		t.Errorf("audio = %+v", cfg.Audio)
	}
	if cfg.Insertion != (config.InsertionConfig{Sink: "file", Path: "/tmp/out.txt", Mode: config.InsertOnStop, Overlay: true}) {
		t.Errorf("insertion = %+v", cfg.Insertion)
	}
	if len(cfg.Vocabulary.Words) != 2 || cfg.Vocabulary.PhoneticThreshold != 0.6 || cfg.Vocabulary.FuzzyThreshold != 0.9 {
		t.Errorf("vocabulary = %+v", cfg.Vocabulary)
	}
	if cfg.History.Backend != config.HistoryPostgres || cfg.History.PostgresDSN == "" {
		t.Errorf("history = %+v", cfg.History)
	}
}

func TestLoadFromReader_Defaults(t *testing.T) {
	t.Parallel()

	cfg, err := config.LoadFromReader(strings.NewReader(`
transcription:
  endpoint: ws://localhost:8080/v1/realtime
`))
	if err != nil {
		t.Fatalf("LoadFromReader: %v", err)
	}

	if cfg.Server.ListenAddr != "" {
		t.Errorf("listen_addr = %q, want empty (admin server disabled)", cfg.Server.ListenAddr)
	}
	if cfg.Server.LogLevel != config.LogInfo {
		t.Errorf("log_level = %q, want info", cfg.Server.LogLevel)
	}
	tr := cfg.Transcription
	if tr.KeepaliveInterval != config.DefaultKeepaliveInterval ||
		tr.CommitInterval != config.DefaultCommitInterval ||
		tr.FinalizeTimeout != config.DefaultFinalizeTimeout {
		t.Errorf("transcription defaults = %+v", tr)
	}
	if tr.Reconnect.MaxRetries != 0 {
		t.Errorf("max_retries = %d, want 0 (reconnect disabled)", tr.Reconnect.MaxRetries)
	}
	if cfg.Audio.ChunkMS != config.DefaultChunkMS || cfg.Audio.InputSampleRate != 16000 || cfg.Audio.InputChannels != 1 {
		t.Errorf("audio defaults = %+v", cfg.Audio)
	}
	if cfg.Insertion.Sink != config.SinkStdout || cfg.Insertion.Mode != config.InsertIncremental {
		t.Errorf("insertion defaults = %+v", cfg.Insertion)
	}
	if cfg.Vocabulary.PhoneticThreshold != config.DefaultPhoneticThreshold || cfg.Vocabulary.FuzzyThreshold != config.DefaultFuzzyThreshold {
		t.Errorf("vocabulary defaults = %+v", cfg.Vocabulary)
	}
	if cfg.History.Backend != config.HistoryMemory {
		t.Errorf("history backend = %q, want memory", cfg.History.Backend)
	}
}

func TestLoadFromReader_UnknownField(t *testing.T) {
	t.Parallel()

	_, err := config.LoadFromReader(strings.NewReader(`
transcription:
  endpoint: wss://api.example.com/v1/realtime
  endpont: typo
`))
	if err == nil {
		t.Fatal("expected error for unknown field, got nil")
	}
}

func TestValidate_Errors(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		yaml string
		want string
	}{
		{
			name: "missing endpoint",
			yaml: `server: {log_level: info}`,
			want: "transcription.endpoint is required",
		},
		{
			name: "http scheme",
			yaml: `transcription: {endpoint: "https://api.example.com/v1/realtime"}`,
			want: "scheme must be ws or wss",
		},
		{
			name: "missing host",
			yaml: `transcription: {endpoint: "wss:///v1/realtime"}`,
			want: "missing host",
		},
		{
			name: "bad log level",
			yaml: "server: {log_level: loud}\ntranscription: {endpoint: \"wss://h/x\"}",
			want: "server.log_level",
		},
		{
			name: "negative duration",
			yaml: `transcription: {endpoint: "wss://h/x", commit_interval: -1s}`,
			want: "transcription.commit_interval",
		},
		{
			name: "backoff above max",
			yaml: `transcription: {endpoint: "wss://h/x", reconnect: {max_retries: 1, backoff: 10s, max_backoff: 1s}}`,
			want: "exceeds max_backoff",
		},
		{
			name: "file sink without path",
			yaml: "transcription: {endpoint: \"wss://h/x\"}\ninsertion: {sink: file}",
			want: "insertion.path is required",
		},
		{
			name: "bad mode",
			yaml: "transcription: {endpoint: \"wss://h/x\"}\ninsertion: {mode: sometimes}",
			want: "insertion.mode",
		},
		{
			name: "threshold out of range",
			yaml: "transcription: {endpoint: \"wss://h/x\"}\nvocabulary: {fuzzy_threshold: 1.5}",
			want: "vocabulary.fuzzy_threshold",
		},
		{
			name: "postgres without dsn",
			yaml: "transcription: {endpoint: \"wss://h/x\"}\nhistory: {backend: postgres}",
			want: "history.postgres_dsn is required",
		},
		{
			name: "unknown history backend",
			yaml: "transcription: {endpoint: \"wss://h/x\"}\nhistory: {backend: sqlite}",
			want: "history.backend",
		},
		{
			name: "too many channels",
			yaml: "transcription: {endpoint: \"wss://h/x\"}\naudio: {input_channels: 6}",
			want: "audio.input_channels",
		},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			_, err := config.LoadFromReader(strings.NewReader(tc.yaml))
			if err == nil {
				t.Fatalf("expected error containing %q, got nil", tc.want)
			}
			if !strings.Contains(err.Error(), tc.want) {
				t.Errorf("error = %v, want it to contain %q", err, tc.want)
			}
		})
	}
}

func TestValidate_UnknownSinkWrapsSentinel(t *testing.T) {
	t.Parallel()

	_, err := config.LoadFromReader(strings.NewReader("transcription: {endpoint: \"wss://h/x\"}\ninsertion: {sink: printer}"))
	if !errors.Is(err, config.ErrSinkNotRegistered) {
		t.Errorf("err = %v, want ErrSinkNotRegistered", err)
	}
}

func TestValidate_CollectsAllErrors(t *testing.T) {
	t.Parallel()

	_, err := config.LoadFromReader(strings.NewReader(`
server: {log_level: loud}
insertion: {mode: never}
`))
	if err == nil {
		t.Fatal("expected errors, got nil")
	}
	for _, want := range []string{"server.log_level", "transcription.endpoint", "insertion.mode"} {
		if !strings.Contains(err.Error(), want) {
			t.Errorf("joined error %q is missing %q", err, want)
		}
	}
}

func TestLoad_File(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "livescribe.yaml")
	writeDoc(t, path, baseDoc)

	cfg, err := config.Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Transcription.Endpoint != "wss://api.example.com/v1/realtime" {
		t.Errorf("endpoint = %q", cfg.Transcription.Endpoint)
	}

	if _, err := config.Load(filepath.Join(t.TempDir(), "missing.yaml")); !errors.Is(err, os.ErrNotExist) {
		t.Errorf("Load(missing): err = %v, want os.ErrNotExist", err)
	}
}
