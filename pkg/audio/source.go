package audio

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"
)

// Source produces PCM audio chunks for a dictation session.
type Source interface {
	// ReadChunk returns the next chunk of audio. It returns io.EOF once the
	// input is exhausted and ctx's error if ctx is done first.
	ReadChunk(ctx context.Context) ([]byte, error)
}

// DefaultChunkDuration is the amount of audio per chunk.
const DefaultChunkDuration = 100 * time.Millisecond

// ReaderSourceOption configures a [ReaderSource].
type ReaderSourceOption func(*ReaderSource)

// WithChunkDuration sets how much audio each chunk carries.
func WithChunkDuration(d time.Duration) ReaderSourceOption {
	return func(s *ReaderSource) {
		if d > 0 {
			s.chunk = d
		}
	}
}

// WithInputFormat declares the format of the underlying reader. Chunks are
// converted to the output format when the two differ.
func WithInputFormat(f Format) ReaderSourceOption {
	return func(s *ReaderSource) {
		s.in = f
	}
}

// WithOutputFormat sets the format chunks are delivered in. Defaults to
// [DefaultFormat].
func WithOutputFormat(f Format) ReaderSourceOption {
	return func(s *ReaderSource) {
		s.out = f
	}
}

// WithRealtime paces chunks at playback speed, as a live microphone would
// deliver them.
func WithRealtime(on bool) ReaderSourceOption {
	return func(s *ReaderSource) {
		s.realtime = on
	}
}

// ReaderSource chunks raw PCM from an io.Reader such as stdin or a file.
// It is not safe for concurrent use.
type ReaderSource struct {
	r        io.Reader
	in, out  Format
	chunk    time.Duration
	realtime bool

	conv *Converter
	next time.Time
}

// NewReaderSource wraps r. By default r is expected to already carry
// [DefaultFormat] audio.
func NewReaderSource(r io.Reader, opts ...ReaderSourceOption) *ReaderSource {
	s := &ReaderSource{
		r:     r,
		in:    DefaultFormat,
		out:   DefaultFormat,
		chunk: DefaultChunkDuration,
	}
	for _, o := range opts {
		o(s)
	}
	s.conv = NewConverter(s.in, s.out)
	return s
}

// ReadChunk implements [Source]. A short final read is returned as a smaller
// chunk; the next call reports io.EOF.
func (s *ReaderSource) ReadChunk(ctx context.Context) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if s.realtime {
		if err := s.pace(ctx); err != nil {
			return nil, err
		}
	}

	buf := make([]byte, s.in.ChunkBytes(s.chunk))
	n, err := io.ReadFull(s.r, buf)
	switch {
	case errors.Is(err, io.EOF):
		return nil, io.EOF
	case errors.Is(err, io.ErrUnexpectedEOF):
		buf = buf[:n-n%s.in.FrameSize()]
		if len(buf) == 0 {
			return nil, io.EOF
		}
	case err != nil:
		return nil, fmt.Errorf("audio: read: %w", err)
	}
	return s.conv.Convert(buf), nil
}

// pace blocks until the next chunk is due.
func (s *ReaderSource) pace(ctx context.Context) error {
	now := time.Now()
	if s.next.IsZero() {
		s.next = now.Add(s.chunk)
		return nil
	}
	wait := s.next.Sub(now)
	s.next = s.next.Add(s.chunk)
	if wait <= 0 {
		return nil
	}
	t := time.NewTimer(wait)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
