package config

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"sync"

	"github.com/MrWong99/livescribe/pkg/history"
	"github.com/MrWong99/livescribe/pkg/sink"
)

// ErrSinkNotRegistered is returned when no factory exists for a sink or
// history backend name.
var ErrSinkNotRegistered = errors.New("config: sink not registered")

// SinkFactory builds the inserter for an insertion config.
type SinkFactory func(InsertionConfig) (sink.Inserter, error)

// HistoryFactory builds the history store for a history config.
type HistoryFactory func(context.Context, HistoryConfig) (history.Store, error)

// Registry maps sink and history backend names to their constructors.
// It is safe for concurrent use.
type Registry struct {
	mu      sync.RWMutex
	sinks   map[string]SinkFactory
	history map[string]HistoryFactory
}

// NewRegistry returns an empty, ready-to-use [Registry].
func NewRegistry() *Registry {
	return &Registry{
		sinks:   make(map[string]SinkFactory),
		history: make(map[string]HistoryFactory),
	}
}

// RegisterSink registers a sink factory under name.
// Subsequent calls with the same name overwrite the previous registration.
func (r *Registry) RegisterSink(name string, factory SinkFactory) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sinks[name] = factory
}

// RegisterHistory registers a history backend factory under name.
func (r *Registry) RegisterHistory(name string, factory HistoryFactory) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.history[name] = factory
}

// CreateSink instantiates the sink registered under cfg.Sink.
// Returns [ErrSinkNotRegistered] if no factory has been registered for that name.
func (r *Registry) CreateSink(cfg InsertionConfig) (sink.Inserter, error) {
	r.mu.RLock()
	factory, ok := r.sinks[cfg.Sink]
	r.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: sink/%q", ErrSinkNotRegistered, cfg.Sink)
	}
	return factory(cfg)
}

// CreateHistory instantiates the history store registered under cfg.Backend.
func (r *Registry) CreateHistory(ctx context.Context, cfg HistoryConfig) (history.Store, error) {
	r.mu.RLock()
	factory, ok := r.history[cfg.Backend]
	r.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: history/%q", ErrSinkNotRegistered, cfg.Backend)
	}
	return factory(ctx, cfg)
}

// Sinks returns the registered sink names in sorted order.
func (r *Registry) Sinks() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.sinks))
	for name := range r.sinks {
		names = append(names, name)
	}
	slices.Sort(names)
	return names
}
