// Package mock provides recording test doubles for the sink interfaces.
package mock

import (
	"context"
	"strings"
	"sync"

	"github.com/MrWong99/livescribe/pkg/sink"
)

// Inserter is a mock implementation of [sink.Inserter].
type Inserter struct {
	mu sync.Mutex

	// InsertErr, if non-nil, is returned by every Insert call and the text is
	// not recorded.
	InsertErr error

	// Inserts records every successfully inserted text in order.
	Inserts []string
}

// Insert records text and returns InsertErr.
func (m *Inserter) Insert(_ context.Context, text string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.InsertErr != nil {
		return m.InsertErr
	}
	m.Inserts = append(m.Inserts, text)
	return nil
}

// Text returns the concatenation of all inserted text. Thread-safe.
func (m *Inserter) Text() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return strings.Join(m.Inserts, "")
}

// Calls returns a copy of the recorded inserts. Thread-safe.
func (m *Inserter) Calls() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.Inserts...)
}

// OverlayUpdate records one Overlay.Update call.
type OverlayUpdate struct {
	Committed string
	Unstable  string
}

// Overlay is a mock implementation of [sink.Overlay].
type Overlay struct {
	mu sync.Mutex

	// Updates records every Update call in order.
	Updates []OverlayUpdate

	// Final is the text passed to Done.
	Final string

	// DoneCalls is the number of Done calls.
	DoneCalls int
}

// Update records the call.
func (m *Overlay) Update(committed, unstable string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Updates = append(m.Updates, OverlayUpdate{Committed: committed, Unstable: unstable})
}

// Done records the call.
func (m *Overlay) Done(final string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Final = final
	m.DoneCalls++
}

// Snapshot returns a copy of the recorded updates. Thread-safe.
func (m *Overlay) Snapshot() []OverlayUpdate {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]OverlayUpdate(nil), m.Updates...)
}

var (
	_ sink.Inserter = (*Inserter)(nil)
	_ sink.Overlay  = (*Overlay)(nil)
)
