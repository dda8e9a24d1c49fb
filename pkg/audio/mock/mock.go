// Package mock provides an in-memory [audio.Source] for unit tests.
//
// Source returns its scripted chunks in order and then either ends the
// stream or, with Hold set, blocks like a live microphone until the read
// context is cancelled:
//
//	src := &mock.Source{Chunks: [][]byte{{1, 2}, {3, 4}}}
//	chunk, err := src.ReadChunk(ctx)
package mock

import (
	"context"
	"io"
	"sync"
	"time"

	"github.com/MrWong99/livescribe/pkg/audio"
)

// Source is a mock implementation of [audio.Source]. Safe for concurrent use.
type Source struct {
	mu sync.Mutex

	// Chunks are returned by successive ReadChunk calls.
	Chunks [][]byte

	// Delay, if positive, is waited before every chunk.
	Delay time.Duration

	// Hold makes ReadChunk block until ctx is done once Chunks is exhausted,
	// instead of returning EndErr.
	Hold bool

	// EndErr is returned once Chunks is exhausted. Defaults to io.EOF.
	EndErr error

	// ReadCalls is the number of ReadChunk calls.
	ReadCalls int
}

// ReadChunk implements [audio.Source].
func (s *Source) ReadChunk(ctx context.Context) ([]byte, error) {
	s.mu.Lock()
	s.ReadCalls++
	delay := s.Delay
	var chunk []byte
	more := len(s.Chunks) > 0
	if more {
		chunk = s.Chunks[0]
		s.Chunks = s.Chunks[1:]
	}
	hold, endErr := s.Hold, s.EndErr
	s.mu.Unlock()

	if more {
		if delay > 0 {
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(delay):
			}
		}
		return chunk, nil
	}
	if hold {
		<-ctx.Done()
		return nil, ctx.Err()
	}
	if endErr != nil {
		return nil, endErr
	}
	return nil, io.EOF
}

var _ audio.Source = (*Source)(nil)
