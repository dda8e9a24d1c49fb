package realtime

import (
	"context"
	"net/http"

	"github.com/coder/websocket"
)

// Transport is the subset of a WebSocket connection the client needs.
// *websocket.Conn satisfies it.
type Transport interface {
	Read(ctx context.Context) (websocket.MessageType, []byte, error)
	Write(ctx context.Context, typ websocket.MessageType, p []byte) error
	Ping(ctx context.Context) error
	Close(code websocket.StatusCode, reason string) error
}

// Dialer opens a Transport to endpoint with the given handshake headers.
type Dialer func(ctx context.Context, endpoint string, header http.Header) (Transport, error)

// maxFrameBytes bounds a single inbound frame.
const maxFrameBytes = 1 << 20

// DialWebSocket is the default Dialer, backed by github.com/coder/websocket.
func DialWebSocket(ctx context.Context, endpoint string, header http.Header) (Transport, error) {
	conn, _, err := websocket.Dial(ctx, endpoint, &websocket.DialOptions{
		HTTPHeader: header,
	})
	if err != nil {
		return nil, err
	}
	conn.SetReadLimit(maxFrameBytes)
	return conn, nil
}

var _ Transport = (*websocket.Conn)(nil)
