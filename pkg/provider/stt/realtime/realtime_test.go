package realtime_test

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/MrWong99/livescribe/pkg/provider/stt"
	"github.com/MrWong99/livescribe/pkg/provider/stt/realtime"
	"github.com/coder/websocket"
)

// ── Helpers ─────────────────────────────────────────────────────────────────

// wsURL converts an httptest server HTTP URL to a WebSocket URL.
func wsURL(srv *httptest.Server) string {
	return "ws" + strings.TrimPrefix(srv.URL, "http")
}

// startServer launches a test WebSocket server. The server is closed when the
// test finishes.
func startServer(t *testing.T, handler func(conn *websocket.Conn, r *http.Request)) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{
			InsecureSkipVerify: true,
		})
		if err != nil {
			return
		}
		defer conn.Close(websocket.StatusNormalClosure, "done")
		handler(conn, r)
	}))
	t.Cleanup(srv.Close)
	return srv
}

// readJSON reads one text frame into a generic map.
func readJSON(t *testing.T, conn *websocket.Conn) map[string]any {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	_, data, err := conn.Read(ctx)
	if err != nil {
		t.Errorf("readJSON: %v", err)
		return nil
	}
	var m map[string]any
	if err := json.Unmarshal(data, &m); err != nil {
		t.Errorf("readJSON unmarshal: %v", err)
	}
	return m
}

// writeJSON marshals v and sends it as a text frame.
func writeJSON(t *testing.T, conn *websocket.Conn, v any) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	data, _ := json.Marshal(v)
	if err := conn.Write(ctx, websocket.MessageText, data); err != nil {
		t.Logf("writeJSON: %v (may be expected on close)", err)
	}
}

func next(t *testing.T, ch <-chan stt.Event) stt.Event {
	t.Helper()
	select {
	case e, ok := <-ch:
		if !ok {
			t.Fatal("event stream closed")
		}
		return e
	case <-time.After(3 * time.Second):
		t.Fatal("timeout waiting for event")
	}
	return stt.Event{}
}

// ── Tests ───────────────────────────────────────────────────────────────────

func TestClient_EndToEnd(t *testing.T) {
	t.Parallel()

	type received struct {
		auth   string
		frames []map[string]any
	}
	got := make(chan received, 1)

	srv := startServer(t, func(conn *websocket.Conn, r *http.Request) {
		rec := received{auth: r.Header.Get("Authorization")}
		// session.update, append, commit
		for range 3 {
			rec.frames = append(rec.frames, readJSON(t, conn))
		}
		writeJSON(t, conn, map[string]any{"type": "session.updated"})
		writeJSON(t, conn, map[string]any{"type": "transcription.delta", "delta": "hello wor"})
		writeJSON(t, conn, map[string]any{"type": "transcription.delta", "delta": "world"})
		writeJSON(t, conn, map[string]any{"type": "transcription.done", "transcript": "hello world"})
		got <- rec
		<-conn.CloseRead(context.Background()).Done()
	})

	c := realtime.New(realtime.WithKeepaliveInterval(0))
	events, err := c.Connect(context.Background(), stt.Config{
		Endpoint: wsURL(srv),
		APIKey:   "secret",
		Model:    "stream-1",
	})
	if err != nil {
		t.Fatalf("Connect: %v", err)
	}

	// Sent before the handshake completes; must be flushed after session.update.
	c.SendAudioChunk([]byte{0x01, 0x02, 0x03, 0x04})
	c.SendCommit(true)

	if e := next(t, events); e.Kind != stt.EventConnected {
		t.Fatalf("event = %+v, want connected", e)
	}
	if e := next(t, events); e.Kind != stt.EventStatus || e.Text != "session.updated" {
		t.Fatalf("event = %+v, want session.updated status", e)
	}
	want := []stt.Event{
		{Kind: stt.EventPartialTranscript, Text: "hello wor"},
		{Kind: stt.EventPartialTranscript, Text: "world"},
		{Kind: stt.EventFinalTranscript, Text: "hello world"},
	}
	for i, w := range want {
		if e := next(t, events); e != w {
			t.Errorf("event[%d] = %+v, want %+v", i, e, w)
		}
	}

	var rec received
	select {
	case rec = <-got:
	case <-time.After(3 * time.Second):
		t.Fatal("timeout waiting for server")
	}
	if rec.auth != "Bearer secret" {
		t.Errorf("Authorization = %q, want %q", rec.auth, "Bearer secret")
	}
	if len(rec.frames) != 3 {
		t.Fatalf("server got %d frames, want 3", len(rec.frames))
	}
	if rec.frames[0]["type"] != "session.update" || rec.frames[0]["model"] != "stream-1" {
		t.Errorf("frame[0] = %v, want session.update for stream-1", rec.frames[0])
	}
	if rec.frames[1]["type"] != "input_audio_buffer.append" {
		t.Errorf("frame[1] type = %v", rec.frames[1]["type"])
	}
	if audio := rec.frames[1]["audio"]; audio != base64.StdEncoding.EncodeToString([]byte{1, 2, 3, 4}) {
		t.Errorf("frame[1] audio = %v", audio)
	}
	if rec.frames[2]["type"] != "input_audio_buffer.commit" || rec.frames[2]["final"] != true {
		t.Errorf("frame[2] = %v, want final commit", rec.frames[2])
	}

	c.Disconnect()
	for e := range events {
		if e.Kind == stt.EventError {
			t.Errorf("unexpected error event after Disconnect: %q", e.Text)
		}
	}
	if s := c.State(); s != stt.StateDisconnected {
		t.Errorf("State() = %q, want %q", s, stt.StateDisconnected)
	}
}

func TestClient_DebouncedCommitOverSocket(t *testing.T) {
	t.Parallel()

	frames := make(chan []map[string]any, 1)
	srv := startServer(t, func(conn *websocket.Conn, _ *http.Request) {
		got := []map[string]any{readJSON(t, conn)} // session.update
		writeJSON(t, conn, map[string]any{"type": "session.created"})
		// append, append, commit
		for range 3 {
			got = append(got, readJSON(t, conn))
		}
		writeJSON(t, conn, map[string]any{"type": "transcription.delta", "text": "hi"})
		writeJSON(t, conn, map[string]any{"type": "transcription.done", "transcript": "hi there"})
		// The next frame tells whether a second commit slipped through.
		got = append(got, readJSON(t, conn))
		frames <- got
		<-conn.CloseRead(context.Background()).Done()
	})

	c := realtime.New(realtime.WithKeepaliveInterval(0))
	events, err := c.Connect(context.Background(), stt.Config{Endpoint: wsURL(srv), Model: "stream-1"})
	if err != nil {
		t.Fatalf("Connect: %v", err)
	}
	t.Cleanup(c.Disconnect)

	if e := next(t, events); e.Kind != stt.EventConnected {
		t.Fatalf("event = %+v, want connected", e)
	}
	if e := next(t, events); e.Kind != stt.EventStatus || e.Text != "session.created" {
		t.Fatalf("event = %+v, want session.created status", e)
	}

	c.SendAudioChunk([]byte{1, 0})
	c.SendAudioChunk([]byte{2, 0})
	if !c.SendCommit(false) {
		t.Fatal("first commit was suppressed")
	}
	if c.SendCommit(false) {
		t.Fatal("second commit during generation was sent")
	}

	if e := next(t, events); e != (stt.Event{Kind: stt.EventPartialTranscript, Text: "hi"}) {
		t.Errorf("event = %+v, want partial %q", e, "hi")
	}
	if e := next(t, events); e != (stt.Event{Kind: stt.EventFinalTranscript, Text: "hi there"}) {
		t.Errorf("event = %+v, want final %q", e, "hi there")
	}
	if c.Flags().GenerationInProgress {
		t.Error("generation still in progress after done event")
	}

	marker := []byte{9, 9}
	c.SendAudioChunk(marker)

	var got []map[string]any
	select {
	case got = <-frames:
	case <-time.After(3 * time.Second):
		t.Fatal("timeout waiting for server")
	}
	wantTypes := []string{
		"session.update",
		"input_audio_buffer.append",
		"input_audio_buffer.append",
		"input_audio_buffer.commit",
		"input_audio_buffer.append",
	}
	if len(got) != len(wantTypes) {
		t.Fatalf("server got %d frames, want %d", len(got), len(wantTypes))
	}
	for i, typ := range wantTypes {
		if got[i]["type"] != typ {
			t.Errorf("frame[%d] type = %v, want %s", i, got[i]["type"], typ)
		}
	}
	if final, ok := got[3]["final"]; ok && final != false {
		t.Errorf("commit frame final = %v, want non-final", final)
	}
	if audio := got[4]["audio"]; audio != base64.StdEncoding.EncodeToString(marker) {
		t.Errorf("frame after commit = %v, want the marker chunk", got[4])
	}
}

func TestClient_ServerErrorEvent(t *testing.T) {
	t.Parallel()

	srv := startServer(t, func(conn *websocket.Conn, _ *http.Request) {
		writeJSON(t, conn, map[string]any{
			"type":  "error",
			"error": map[string]any{"type": "invalid_request_error", "message": "unsupported model"},
		})
		<-conn.CloseRead(context.Background()).Done()
	})

	c := realtime.New(realtime.WithKeepaliveInterval(0))
	events, err := c.Connect(context.Background(), stt.Config{Endpoint: wsURL(srv)})
	if err != nil {
		t.Fatalf("Connect: %v", err)
	}
	if e := next(t, events); e.Kind != stt.EventConnected {
		t.Fatalf("event = %+v, want connected", e)
	}
	if e := next(t, events); e.Kind != stt.EventError || e.Text != "unsupported model" {
		t.Errorf("event = %+v, want server error", e)
	}
	if s := c.State(); s != stt.StateConnected {
		t.Errorf("server error event changed state to %q", s)
	}
	c.Disconnect()
	for range events {
	}
}

func TestClient_ServerGoesAway(t *testing.T) {
	t.Parallel()

	srv := startServer(t, func(conn *websocket.Conn, _ *http.Request) {
		conn.Close(websocket.StatusInternalError, "crash")
	})

	c := realtime.New(realtime.WithKeepaliveInterval(0))
	events, err := c.Connect(context.Background(), stt.Config{Endpoint: wsURL(srv)})
	if err != nil {
		t.Fatalf("Connect: %v", err)
	}

	var kinds []stt.EventKind
	for e := range events {
		kinds = append(kinds, e.Kind)
	}
	want := []stt.EventKind{stt.EventConnected, stt.EventError, stt.EventDisconnected}
	if len(kinds) != len(want) {
		t.Fatalf("events = %v, want %v", kinds, want)
	}
	for i := range want {
		if kinds[i] != want[i] {
			t.Errorf("events = %v, want %v", kinds, want)
			break
		}
	}
}
