package resilience

import (
	"context"
	"errors"
	"fmt"

	"github.com/MrWong99/livescribe/pkg/sink"
)

// Inserter guards a [sink.Inserter] with a [Breaker]. While the breaker is
// open, Insert fails immediately with an error wrapping [ErrCircuitOpen].
type Inserter struct {
	next    sink.Inserter
	breaker *Breaker
}

var _ sink.Inserter = (*Inserter)(nil)

// Guard wraps next with an existing breaker, so failures carry over between
// inserters for the same sink.
func Guard(next sink.Inserter, b *Breaker) *Inserter {
	return &Inserter{next: next, breaker: b}
}

// Insert implements [sink.Inserter].
func (g *Inserter) Insert(ctx context.Context, text string) error {
	err := g.breaker.Execute(func() error { return g.next.Insert(ctx, text) })
	if errors.Is(err, ErrCircuitOpen) {
		return fmt.Errorf("resilience: skip insert of %d bytes: %w", len(text), err)
	}
	return err
}

// State returns the state of the guarding breaker.
func (g *Inserter) State() State { return g.breaker.State() }
