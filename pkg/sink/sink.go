// Package sink delivers committed dictation text to its destination and
// shows the live transcript while the user speaks.
//
// An [Inserter] receives only committed text, in order, and never sees a
// revision. An [Overlay] is a transient view of the committed text plus the
// unstable tail that may still change.
package sink

import (
	"context"
	"fmt"
	"io"
	"os"
	"sync"

	"github.com/atotto/clipboard"
)

// Inserter appends committed text at the destination.
type Inserter interface {
	Insert(ctx context.Context, text string) error
}

// Overlay displays the live transcript of a session.
type Overlay interface {
	// Update shows the committed text followed by the unstable tail.
	Update(committed, unstable string)

	// Done shows the final text and releases the display.
	Done(final string)
}

// ── Writer ──────────────────────────────────────────────────────────────────

// Writer inserts text by writing it to an io.Writer such as stdout or a file.
type Writer struct {
	mu sync.Mutex
	w  io.Writer
	c  io.Closer
}

// NewWriter returns an Inserter that writes to w. w is never closed.
func NewWriter(w io.Writer) *Writer {
	return &Writer{w: w}
}

// OpenFile returns an Inserter that appends to the file at path, creating it
// if needed. Call Close when done.
func OpenFile(path string) (*Writer, error) {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, fmt.Errorf("sink: open %s: %w", path, err)
	}
	return &Writer{w: f, c: f}, nil
}

// Insert implements [Inserter].
func (w *Writer) Insert(_ context.Context, text string) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if _, err := io.WriteString(w.w, text); err != nil {
		return fmt.Errorf("sink: write: %w", err)
	}
	return nil
}

// Close closes the underlying file, if Writer owns one.
func (w *Writer) Close() error {
	if w.c == nil {
		return nil
	}
	return w.c.Close()
}

// ── Clipboard ───────────────────────────────────────────────────────────────

// Clipboard inserts text by placing everything inserted so far on the system
// clipboard, ready to paste.
type Clipboard struct {
	mu    sync.Mutex
	text  string
	write func(string) error
}

// NewClipboard returns a Clipboard backed by the system clipboard.
func NewClipboard() *Clipboard {
	return &Clipboard{write: clipboard.WriteAll}
}

// Insert implements [Inserter].
func (c *Clipboard) Insert(_ context.Context, text string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	next := c.text + text
	if err := c.write(next); err != nil {
		return fmt.Errorf("sink: clipboard: %w", err)
	}
	c.text = next
	return nil
}

// Text returns everything inserted so far.
func (c *Clipboard) Text() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.text
}

// ClipboardAvailable reports whether a system clipboard backend was found.
func ClipboardAvailable() bool {
	return !clipboard.Unsupported
}

var (
	_ Inserter = (*Writer)(nil)
	_ Inserter = (*Clipboard)(nil)
)
