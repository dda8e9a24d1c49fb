package realtime

import (
	"encoding/json"
	"fmt"
	"slices"
	"strings"

	"github.com/MrWong99/livescribe/pkg/provider/stt"
)

// ── Outbound frames ─────────────────────────────────────────────────────────

const (
	typeSessionUpdate = "session.update"
	typeAudioAppend   = "input_audio_buffer.append"
	typeAudioCommit   = "input_audio_buffer.commit"
)

type sessionUpdateFrame struct {
	Type                 string `json:"type"`
	Model                string `json:"model"`
	TranscriptionDelayMS int64  `json:"transcription_delay_ms,omitempty"`
}

type audioAppendFrame struct {
	Type  string `json:"type"`
	Audio string `json:"audio"`
}

type audioCommitFrame struct {
	Type  string `json:"type"`
	Final bool   `json:"final,omitempty"`
}

// sessionUpdate returns the configuration frame for cfg, or nil when no
// model is configured.
func sessionUpdate(cfg stt.Config) []byte {
	if cfg.Model == "" {
		return nil
	}
	data, err := json.Marshal(sessionUpdateFrame{
		Type:                 typeSessionUpdate,
		Model:                cfg.Model,
		TranscriptionDelayMS: cfg.TranscriptionDelay.Milliseconds(),
	})
	if err != nil {
		return nil
	}
	return data
}

// ── Inbound events ──────────────────────────────────────────────────────────

var (
	transcriptKeys = []string{"delta", "text", "transcript"}
	errorKeys      = []string{"message", "error", "detail"}
)

const unknownServerError = "unknown server error"

// serverEvent is the decoded form of one inbound frame.
type serverEvent struct {
	// typ is the raw "type" field.
	typ string

	// event is the event to emit; valid only when known is true.
	event stt.Event
	known bool

	// endsGeneration is set for events that finish a pending transcription.
	endsGeneration bool
}

// decodeServerEvent classifies a JSON frame by its "type" field and extracts
// the transcript or error text from wherever the server nested it.
func decodeServerEvent(data []byte) (serverEvent, error) {
	var raw map[string]any
	if err := json.Unmarshal(data, &raw); err != nil {
		return serverEvent{}, fmt.Errorf("decode event: %w", err)
	}
	typ, _ := raw["type"].(string)
	ev := serverEvent{typ: typ}

	switch {
	case typ == "error":
		msg := findString(raw, errorKeys)
		if msg == "" {
			msg = unknownServerError
		}
		ev.event = stt.Event{Kind: stt.EventError, Text: msg}
		ev.known = true
		ev.endsGeneration = true
	case typ == "session.created", typ == "session.updated":
		ev.event = stt.Event{Kind: stt.EventStatus, Text: typ}
		ev.known = true
	case isFinalType(typ):
		ev.event = stt.Event{Kind: stt.EventFinalTranscript, Text: findString(raw, transcriptKeys)}
		ev.known = true
		ev.endsGeneration = true
	case isPartialType(typ):
		text := findString(raw, transcriptKeys)
		ev.event = stt.Event{Kind: stt.EventPartialTranscript, Text: text}
		ev.known = text != ""
	}
	return ev, nil
}

func isFinalType(typ string) bool {
	return strings.HasSuffix(typ, ".done") || strings.HasSuffix(typ, ".completed") || strings.Contains(typ, "final")
}

func isPartialType(typ string) bool {
	return strings.HasSuffix(typ, ".delta") || strings.Contains(typ, "partial")
}

// findString returns the first non-empty string stored under one of keys,
// checking v's own keys in priority order before descending into nested
// objects and arrays. Nested objects are visited in key order so the result
// is deterministic.
func findString(v any, keys []string) string {
	switch v := v.(type) {
	case map[string]any:
		for _, k := range keys {
			if s, ok := v[k].(string); ok && s != "" {
				return s
			}
		}
		names := make([]string, 0, len(v))
		for k := range v {
			names = append(names, k)
		}
		slices.Sort(names)
		for _, k := range names {
			if s := findString(v[k], keys); s != "" {
				return s
			}
		}
	case []any:
		for _, item := range v {
			if s := findString(item, keys); s != "" {
				return s
			}
		}
	}
	return ""
}
