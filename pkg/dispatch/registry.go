package dispatch

import (
	"context"
	"fmt"

	"feedpilot/pkg/agent"
	"feedpilot/pkg/logx"
	"feedpilot/pkg/proto"
)

// Registry is the explicit, dependency-injected collection of agents. It is
// constructed once at startup and passed by reference; there is no ambient
// registry lookup anywhere.
//
// Start order is registration order, and the monitor agent must be registered
// first: interaction recording has to be live before any other agent acts.
// Stop runs in reverse so the monitor outlives the agents it records for.
type Registry struct {
	ordered []agent.Agent
	byID    map[string]agent.Agent
	logger  *logx.Logger
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		byID:   make(map[string]agent.Agent),
		logger: logx.NewLogger("registry"),
	}
}

// Register adds an agent. Duplicate IDs are rejected.
func (r *Registry) Register(a agent.Agent) error {
	if _, exists := r.byID[a.ID()]; exists {
		return fmt.Errorf("agent %s already registered", a.ID())
	}
	r.ordered = append(r.ordered, a)
	r.byID[a.ID()] = a
	return nil
}

// Get returns an agent by ID.
func (r *Registry) Get(id string) (agent.Agent, bool) {
	a, ok := r.byID[id]
	return a, ok
}

// StartAll starts every agent in registration order. The first failure stops
// the sweep and shuts down the agents already started.
func (r *Registry) StartAll(ctx context.Context) error {
	for i, a := range r.ordered {
		if err := a.Start(ctx); err != nil {
			r.logger.Error("failed to start agent %s: %v", a.ID(), err)
			r.stopRange(ctx, i-1)
			return fmt.Errorf("failed to start agent %s: %w", a.ID(), err)
		}
		r.logger.Info("started agent %s (%s)", a.ID(), a.Type())
	}
	return nil
}

// StopAll stops every agent in reverse registration order.
func (r *Registry) StopAll(ctx context.Context) {
	r.stopRange(ctx, len(r.ordered)-1)
}

func (r *Registry) stopRange(ctx context.Context, from int) {
	for i := from; i >= 0; i-- {
		a := r.ordered[i]
		if err := a.Stop(ctx); err != nil {
			r.logger.Warn("failed to stop agent %s: %v", a.ID(), err)
		}
	}
}

// Snapshots returns the runtime state of every agent, in registration order.
func (r *Registry) Snapshots() []proto.AgentSnapshot {
	snaps := make([]proto.AgentSnapshot, 0, len(r.ordered))
	for _, a := range r.ordered {
		snaps = append(snaps, a.Snapshot())
	}
	return snaps
}
