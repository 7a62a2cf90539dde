package dispatch

import (
	"context"
	"time"

	"feedpilot/pkg/agent"
	"feedpilot/pkg/feed"
	"feedpilot/pkg/logx"
	"feedpilot/pkg/proto"
)

// ActivityLog receives one entry per workflow event. The daily-rotated JSONL
// log implements it.
type ActivityLog interface {
	Append(event string, fields map[string]any) error
}

// Metrics receives workflow observations. The Prometheus recorder
// implements it.
type Metrics interface {
	RecordTask(taskType proto.TaskType, status proto.TaskStatus, duration time.Duration)
	RecordInteraction(kind proto.InteractionKind)
}

// Monitor is the interaction-recording agent. Every store write, activity
// log entry, and interaction metric flows through it, which is why it starts
// before any other agent and stops after them: recording must be live while
// interactions occur.
//
// It also consumes agent state change notifications into the activity log.
type Monitor struct {
	*agent.Runtime

	store    feed.Recorder
	activity ActivityLog
	metrics  Metrics
	notifCh  <-chan *proto.StateChangeNotification
	logger   *logx.Logger

	cancel context.CancelFunc
	done   chan struct{}
}

// NewMonitor creates the monitor agent. activity and metrics may be nil;
// notifCh may be nil when no agent publishes state changes.
func NewMonitor(id string, store feed.Recorder, activity ActivityLog, metrics Metrics, notifCh <-chan *proto.StateChangeNotification) *Monitor {
	return &Monitor{
		Runtime:  agent.NewRuntime(id, proto.AgentTypeMonitor),
		store:    store,
		activity: activity,
		metrics:  metrics,
		notifCh:  notifCh,
		logger:   logx.NewLogger(id),
	}
}

// Start implements agent.Agent.
func (m *Monitor) Start(ctx context.Context) error {
	if m.Active() {
		return agent.ErrAlreadyStarted
	}
	m.SetActive(true)

	loopCtx, cancel := context.WithCancel(ctx)
	m.cancel = cancel
	m.done = make(chan struct{})
	go m.consumeNotifications(loopCtx)
	return nil
}

// Stop implements agent.Agent.
func (m *Monitor) Stop(ctx context.Context) error {
	if !m.Active() {
		return nil
	}
	m.cancel()
	select {
	case <-m.done:
	case <-ctx.Done():
		return ctx.Err()
	}
	m.SetActive(false)
	return nil
}

// Handle is a no-op: the monitor is event-driven, not task-driven.
func (m *Monitor) Handle(_ context.Context, _ *proto.Task) error {
	return nil
}

// RecordItem implements feed.Recorder. Duplicate ids are no-ops in the store.
func (m *Monitor) RecordItem(ctx context.Context, item *proto.ContentItem) error {
	if !m.Active() {
		return agent.ErrNotActive
	}
	m.Touch()

	if err := m.store.RecordItem(ctx, item); err != nil {
		return err
	}
	m.append("item_seen", map[string]any{
		"item_id":  item.ID,
		"author":   item.Author,
		"language": string(item.Language),
	})
	return nil
}

// RecordInteraction implements feed.Recorder.
func (m *Monitor) RecordInteraction(ctx context.Context, itemID string, kind proto.InteractionKind, payload map[string]any) error {
	if !m.Active() {
		return agent.ErrNotActive
	}
	m.Touch()

	if err := m.store.RecordInteraction(ctx, itemID, kind, payload); err != nil {
		return err
	}
	if m.metrics != nil {
		m.metrics.RecordInteraction(kind)
	}
	fields := map[string]any{"item_id": itemID, "kind": string(kind)}
	for k, v := range payload {
		fields[k] = v
	}
	m.append("interaction", fields)
	return nil
}

func (m *Monitor) consumeNotifications(ctx context.Context) {
	defer close(m.done)
	if m.notifCh == nil {
		<-ctx.Done()
		return
	}
	for {
		select {
		case <-ctx.Done():
			return
		case notification := <-m.notifCh:
			if notification == nil {
				continue
			}
			m.Touch()
			m.append("state_change", map[string]any{
				"agent_id": notification.AgentID,
				"from":     notification.FromState.String(),
				"to":       notification.ToState.String(),
			})
		}
	}
}

func (m *Monitor) append(event string, fields map[string]any) {
	if m.activity == nil {
		return
	}
	if err := m.activity.Append(event, fields); err != nil {
		m.logger.Debug("activity log append failed: %v", err)
	}
}
