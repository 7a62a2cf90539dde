// Package agent provides the agent abstraction shared by every worker in the
// registry: a single polymorphic interface with a start/stop lifecycle plus a
// task handler, per-agent runtime bookkeeping, and a small validated state
// machine for agents that cycle through states.
//
// Capability-specific behavior (scrolling, liking, commenting) is composed
// into agents via strategy values, not subclassing.
package agent

import (
	"context"
	"sync"
	"time"

	"feedpilot/pkg/proto"
)

// Agent is the single interface every registered agent implements.
type Agent interface {
	// ID returns the agent's unique identifier in the registry.
	ID() string

	// Type names the agent's responsibility.
	Type() proto.AgentType

	// Start activates the agent. Long-running agents launch their loop here
	// and tie it to ctx; Start itself must not block.
	Start(ctx context.Context) error

	// Stop deactivates the agent cooperatively. In-flight work observes the
	// cancellation at its next suspension point.
	Stop(ctx context.Context) error

	// Handle executes one task assigned to this agent.
	Handle(ctx context.Context, task *proto.Task) error

	// Snapshot reports the agent's runtime state for Status.
	Snapshot() proto.AgentSnapshot
}

// Runtime tracks the mutable per-agent bookkeeping behind Snapshot. Agents
// embed it and drive it from their lifecycle and task boundaries.
type Runtime struct {
	id        string
	agentType proto.AgentType

	mu            sync.Mutex
	active        bool
	currentTaskID string
	taskCount     int
	lastActivity  time.Time
}

// NewRuntime creates runtime bookkeeping for one agent.
func NewRuntime(id string, agentType proto.AgentType) *Runtime {
	return &Runtime{id: id, agentType: agentType}
}

// ID returns the agent identifier.
func (r *Runtime) ID() string { return r.id }

// Type returns the agent's responsibility.
func (r *Runtime) Type() proto.AgentType { return r.agentType }

// SetActive flips the active flag and touches the activity timestamp.
func (r *Runtime) SetActive(active bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.active = active
	r.lastActivity = time.Now()
}

// Active reports whether the agent is currently started.
func (r *Runtime) Active() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.active
}

// BeginTask records that the agent started working on a task.
func (r *Runtime) BeginTask(taskID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.currentTaskID = taskID
	r.lastActivity = time.Now()
}

// EndTask clears the current task and bumps the completed-task counter.
func (r *Runtime) EndTask() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.currentTaskID = ""
	r.taskCount++
	r.lastActivity = time.Now()
}

// Touch records activity without a task boundary, for loop-driven agents.
func (r *Runtime) Touch() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.lastActivity = time.Now()
}

// Snapshot returns a copy of the runtime state.
func (r *Runtime) Snapshot() proto.AgentSnapshot {
	r.mu.Lock()
	defer r.mu.Unlock()
	return proto.AgentSnapshot{
		ID:            r.id,
		Type:          r.agentType,
		Active:        r.active,
		CurrentTaskID: r.currentTaskID,
		TaskCount:     r.taskCount,
		LastActivity:  r.lastActivity,
	}
}
