// Package correlation provides causality tracking across event handlers.
// Root entry points (project switch, workspace-mode execute, RPC handlers
// that produce cascades) install a correlation context; child work inherits
// it through context.Context, and every emitted event record is annotated
// with the chain's id and depth.
package correlation

import (
	"context"
	"sync"

	"github.com/google/uuid"
)

// contextKey is a private type for context keys to avoid collisions.
type contextKey string

const correlationKey contextKey = "i3pm_correlation"

// Context is one causality chain's position: the chain id, the root event
// that started it, and the current depth for UI indentation.
type Context struct {
	CorrelationID string `json:"correlation_id"`
	RootEventType string `json:"root_event_type"`
	Depth         int    `json:"depth"`
}

// FromContext extracts the correlation context, if any.
func FromContext(ctx context.Context) (Context, bool) {
	if ctx == nil {
		return Context{}, false
	}
	if v, ok := ctx.Value(correlationKey).(Context); ok {
		return v, true
	}
	return Context{}, false
}

// Service manages correlation chains and their statistics.
type Service struct {
	mu    sync.Mutex
	stats Stats
}

// Stats counts correlation activity.
type Stats struct {
	ChainsCreated    int `json:"chains_created"`
	EventsCorrelated int `json:"events_correlated"`
}

// NewService returns a correlation service.
func NewService() *Service {
	return &Service{}
}

// NewRoot starts a new causality chain for a root event and returns the
// derived context.
func (s *Service) NewRoot(ctx context.Context, rootEventType string) (context.Context, Context) {
	cc := Context{
		CorrelationID: uuid.NewString(),
		RootEventType: rootEventType,
	}
	s.mu.Lock()
	s.stats.ChainsCreated++
	s.mu.Unlock()
	return context.WithValue(ctx, correlationKey, cc), cc
}

// EnterChild increments the chain depth for sub-events.
func (s *Service) EnterChild(ctx context.Context) context.Context {
	cc, ok := FromContext(ctx)
	if !ok {
		return ctx
	}
	cc.Depth++
	return context.WithValue(ctx, correlationKey, cc)
}

// ExitChild decrements the chain depth, never below zero.
func (s *Service) ExitChild(ctx context.Context) context.Context {
	cc, ok := FromContext(ctx)
	if !ok || cc.Depth == 0 {
		return ctx
	}
	cc.Depth--
	return context.WithValue(ctx, correlationKey, cc)
}

// RecordCorrelated counts one event annotated with a chain.
func (s *Service) RecordCorrelated() {
	s.mu.Lock()
	s.stats.EventsCorrelated++
	s.mu.Unlock()
}

// Stats returns a snapshot of the counters.
func (s *Service) Stats() Stats {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.stats
}
