package dispatch

import (
	"context"

	"feedpilot/pkg/agent"
	"feedpilot/pkg/logx"
	"feedpilot/pkg/proto"
)

// Strategy is one workflow step bound to an agent: liking, commenting. The
// orchestrator extracts the item once and passes it in; strategies never
// re-extract, which preserves at-most-once processing per item.
type Strategy interface {
	Name() string
	Execute(ctx context.Context, task *proto.Task, item *proto.ContentItem) error
}

// Worker is a task-driven agent composed from runtime bookkeeping and a
// single strategy. Capability behavior differs only by the injected strategy;
// there is no subclassing.
type Worker struct {
	*agent.Runtime

	strategy Strategy
	logger   *logx.Logger
}

// NewWorker creates a worker agent around a strategy.
func NewWorker(id string, agentType proto.AgentType, strategy Strategy) *Worker {
	return &Worker{
		Runtime:  agent.NewRuntime(id, agentType),
		strategy: strategy,
		logger:   logx.NewLogger(id),
	}
}

// Start implements agent.Agent.
func (w *Worker) Start(_ context.Context) error {
	if w.Active() {
		return agent.ErrAlreadyStarted
	}
	w.SetActive(true)
	return nil
}

// Stop implements agent.Agent.
func (w *Worker) Stop(_ context.Context) error {
	w.SetActive(false)
	return nil
}

// Handle implements agent.Agent for callers that only have the task. The
// orchestrator prefers Execute with the already-extracted item.
func (w *Worker) Handle(ctx context.Context, task *proto.Task) error {
	return w.Execute(ctx, task, nil)
}

// Execute runs the strategy for one task within task bookkeeping.
func (w *Worker) Execute(ctx context.Context, task *proto.Task, item *proto.ContentItem) error {
	if !w.Active() {
		return agent.ErrNotActive
	}
	w.BeginTask(task.ID)
	defer w.EndTask()

	w.logger.Debug("running %s for task %s", w.strategy.Name(), task.ID)
	return w.strategy.Execute(ctx, task, item)
}
