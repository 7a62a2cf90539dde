// Package dispatch owns the task queue, the agent registry, and the
// orchestrator that runs the post and reply workflows one task at a time.
package dispatch

import (
	"context"
	"fmt"
	"sync"
	"time"

	"feedpilot/pkg/agent"
	"feedpilot/pkg/config"
	"feedpilot/pkg/feed"
	"feedpilot/pkg/gen"
	"feedpilot/pkg/logx"
	"feedpilot/pkg/proto"
)

// Deps carries everything the orchestrator is wired with at startup. Store is
// the persistence capability; Activity, Metrics, ScrollAgent, and NotifCh are
// optional.
type Deps struct {
	Settings  *config.Settings
	Extractor feed.Extractor
	Liker     feed.Liker
	Injector  feed.Injector
	Store     feed.Recorder
	Activity  ActivityLog
	Metrics   Metrics
	Generator *gen.Generator
	Reviewer  Reviewer

	// ScrollAgent is registered when auto-scroll is enabled. It is built by
	// the caller so it can share NotifCh.
	ScrollAgent agent.Agent
	// NotifCh is the agent state change channel the monitor consumes.
	NotifCh <-chan *proto.StateChangeNotification
}

// Status is the read-only view returned by Orchestrator.Status.
type Status struct {
	CurrentTask *proto.Task           `json:"current_task,omitempty"`
	QueueDepth  int                   `json:"queue_depth"`
	Agents      []proto.AgentSnapshot `json:"agents"`
}

// Orchestrator consumes the task queue from a single goroutine and routes
// workflow steps to the worker agents. At most one task is PROCESSING at any
// time; that invariant replaces all task-level locking.
type Orchestrator struct {
	behavior config.Behavior
	queue    *TaskQueue
	registry *Registry

	extractor feed.Extractor
	monitor   *Monitor
	liker     *Worker
	replier   *Worker
	metrics   Metrics
	logger    *logx.Logger

	// wake signals the run loop that tasks were enqueued.
	wake chan struct{}

	runMu   sync.Mutex
	stateMu sync.Mutex
	current *proto.Task
	started bool

	cancel context.CancelFunc
	done   chan struct{}
}

// New wires an orchestrator and its agent registry. Registration order fixes
// start order: monitor first, then scroll, reply, and like agents.
func New(deps Deps) (*Orchestrator, error) {
	if deps.Settings == nil {
		return nil, fmt.Errorf("settings are required")
	}
	if deps.Settings.Behavior.AutoComments && (deps.Generator == nil || deps.Reviewer == nil) {
		return nil, fmt.Errorf("auto-comments requires a generator and a reviewer")
	}

	monitor := NewMonitor("monitor-001", deps.Store, deps.Activity, deps.Metrics, deps.NotifCh)
	replier := NewWorker("reply-001", proto.AgentTypeReply,
		NewCommentStrategy(deps.Generator, deps.Reviewer, deps.Injector, monitor))
	liker := NewWorker("like-001", proto.AgentTypeLike,
		NewLikeStrategy(deps.Liker, monitor, deps.Settings.Behavior.HeartReaction))

	registry := NewRegistry()
	if err := registry.Register(monitor); err != nil {
		return nil, err
	}
	if deps.ScrollAgent != nil {
		if err := registry.Register(deps.ScrollAgent); err != nil {
			return nil, err
		}
	}
	if err := registry.Register(replier); err != nil {
		return nil, err
	}
	if err := registry.Register(liker); err != nil {
		return nil, err
	}

	return &Orchestrator{
		behavior:  deps.Settings.Behavior,
		queue:     NewTaskQueue(),
		registry:  registry,
		extractor: deps.Extractor,
		monitor:   monitor,
		liker:     liker,
		replier:   replier,
		metrics:   deps.Metrics,
		logger:    logx.NewLogger("orchestrator"),
		wake:      make(chan struct{}, 1),
	}, nil
}

// Recorder returns the monitor, the recording entry point other components
// share.
func (o *Orchestrator) Recorder() feed.Recorder { return o.monitor }

// Start starts every registered agent in order, then the task loop.
func (o *Orchestrator) Start(ctx context.Context) error {
	o.stateMu.Lock()
	if o.started {
		o.stateMu.Unlock()
		return agent.ErrAlreadyStarted
	}
	o.started = true
	o.stateMu.Unlock()

	if err := o.registry.StartAll(ctx); err != nil {
		o.stateMu.Lock()
		o.started = false
		o.stateMu.Unlock()
		return err
	}

	loopCtx, cancel := context.WithCancel(ctx)
	o.cancel = cancel
	o.done = make(chan struct{})
	go o.run(loopCtx)

	o.logger.Info("orchestrator started with %d agents", len(o.registry.ordered))
	return nil
}

// Stop halts the task loop and stops agents in reverse order. In-flight work
// observes the cancellation cooperatively.
func (o *Orchestrator) Stop(ctx context.Context) error {
	o.stateMu.Lock()
	if !o.started {
		o.stateMu.Unlock()
		return nil
	}
	o.started = false
	o.stateMu.Unlock()

	o.cancel()
	select {
	case <-o.done:
	case <-ctx.Done():
		return ctx.Err()
	}
	o.registry.StopAll(ctx)
	o.logger.Info("orchestrator stopped")
	return nil
}

// HandleEvent is the upward event hook. Content and reply events seed the
// queue; user activity reaches the scroll engine through the viewport probe
// instead.
func (o *Orchestrator) HandleEvent(event proto.PageEvent) {
	switch event.Type {
	case proto.EventContentVisible:
		o.Enqueue(proto.NewTask(proto.TaskProcessPost, event.Handle))
	case proto.EventReplyReceived:
		o.Enqueue(proto.NewTask(proto.TaskHandleReply, event.Handle))
	case proto.EventUserActivity:
		// Consumed by the scroll engine via viewport state.
	default:
		o.logger.Debug("ignoring event type %q", event.Type)
	}
}

// Enqueue appends a task and wakes the run loop.
func (o *Orchestrator) Enqueue(task *proto.Task) {
	o.queue.Enqueue(task)
	select {
	case o.wake <- struct{}{}:
	default:
	}
}

// Status returns a read-only snapshot with no side effects.
func (o *Orchestrator) Status() Status {
	o.stateMu.Lock()
	var current *proto.Task
	if o.current != nil {
		copied := *o.current
		current = &copied
	}
	o.stateMu.Unlock()

	return Status{
		CurrentTask: current,
		QueueDepth:  o.queue.Len(),
		Agents:      o.registry.Snapshots(),
	}
}

func (o *Orchestrator) run(ctx context.Context) {
	defer close(o.done)
	for {
		select {
		case <-ctx.Done():
			return
		case <-o.wake:
		}
		for o.RunNext(ctx) {
			if ctx.Err() != nil {
				return
			}
		}
	}
}

// RunNext pops the head task and executes it to completion before any other
// task may run. It reports whether a task was executed. Any panic or error is
// captured on the task; no task failure crashes the loop.
func (o *Orchestrator) RunNext(ctx context.Context) bool {
	o.runMu.Lock()
	defer o.runMu.Unlock()

	task := o.queue.Dequeue()
	if task == nil {
		return false
	}

	task.Status = proto.TaskProcessing
	o.setCurrent(task)
	start := time.Now()

	func() {
		defer func() {
			if r := recover(); r != nil {
				task.Fail(fmt.Errorf("panic: %v", r))
				o.logger.Error("task %s panicked: %v", task.ID, r)
			}
		}()
		if err := o.execute(ctx, task); err != nil {
			task.Fail(err)
			o.logger.Warn("task %s failed: %v", task.ID, err)
		}
	}()

	if !task.Status.IsTerminal() {
		task.Status = proto.TaskCompleted
	}
	if o.metrics != nil {
		o.metrics.RecordTask(task.Type, task.Status, time.Since(start))
	}
	o.setCurrent(nil)
	o.logger.Debug("finished %s", task)
	return true
}

func (o *Orchestrator) execute(ctx context.Context, task *proto.Task) error {
	switch task.Type {
	case proto.TaskProcessPost:
		return o.processPost(ctx, task)
	case proto.TaskHandleReply:
		return o.handleReply(ctx, task)
	default:
		return fmt.Errorf("unknown task type %q", task.Type)
	}
}

// processPost runs the full post workflow: extract, record, optional like,
// optional comment.
func (o *Orchestrator) processPost(ctx context.Context, task *proto.Task) error {
	item := o.extract(ctx, task)
	if item == nil {
		// Expected outcome, not a failure: the task completes as a no-op.
		return nil
	}

	if err := o.monitor.RecordItem(ctx, item); err != nil {
		o.logger.Warn("record item %s failed: %v", item.ID, err)
	}

	if o.behavior.AutoLikes {
		if err := o.liker.Execute(ctx, task, item); err != nil {
			o.logger.Info("like step skipped: %v", err)
		}
	}
	if o.behavior.AutoComments {
		return o.replier.Execute(ctx, task, item)
	}
	return nil
}

// handleReply runs the reply workflow: extract the reply, record it, and
// answer it through the comment flow. Replies are never liked.
func (o *Orchestrator) handleReply(ctx context.Context, task *proto.Task) error {
	item := o.extract(ctx, task)
	if item == nil {
		return nil
	}

	if err := o.monitor.RecordItem(ctx, item); err != nil {
		o.logger.Warn("record item %s failed: %v", item.ID, err)
	}

	if o.behavior.AutoComments {
		return o.replier.Execute(ctx, task, item)
	}
	return nil
}

// extract invokes the extraction capability. A miss (nil item or capability
// error) is recorded and returns nil.
func (o *Orchestrator) extract(ctx context.Context, task *proto.Task) *proto.ContentItem {
	item, err := o.extractor.Extract(ctx, task.Payload)
	if err != nil {
		o.logger.Info("extraction failed for task %s: %v", task.ID, err)
	}
	if err != nil || item == nil {
		if recErr := o.monitor.RecordInteraction(ctx, task.Payload.ItemID, proto.InteractionExtractionMiss, nil); recErr != nil {
			o.logger.Debug("extraction miss record failed: %v", recErr)
		}
		return nil
	}
	return item
}

func (o *Orchestrator) setCurrent(task *proto.Task) {
	o.stateMu.Lock()
	o.current = task
	o.stateMu.Unlock()
}
