package scroll

import (
	"context"
	"time"

	"feedpilot/pkg/agent"
	"feedpilot/pkg/feed"
	"feedpilot/pkg/logx"
	"feedpilot/pkg/proto"
	"feedpilot/pkg/utils"
)

const (
	// pollInterval is the base viewport polling cadence; each tick is
	// jittered so the scroll rhythm does not look mechanical.
	pollInterval = 2 * time.Second
	pollJitter   = 500 * time.Millisecond

	// contentCooldown is how long the agent pauses after handing visible
	// unprocessed content to the workflow before it resumes scrolling.
	contentCooldown = 3 * time.Second
)

// transitionTable lists the legal scroll agent state cycle.
func transitionTable() agent.TransitionTable {
	return agent.TransitionTable{
		proto.StateStopped:          {proto.StateScrolling},
		proto.StateScrolling:        {proto.StatePausedForContent, proto.StateStopped},
		proto.StatePausedForContent: {proto.StateScrolling, proto.StateStopped},
	}
}

// Agent drives the page scroller from engine decisions. It polls the viewport
// on a jittered interval, pauses while unprocessed content is visible, and
// fires the emergency fallback when the scored path stalls.
type Agent struct {
	*agent.Runtime

	engine   *Engine
	probe    feed.ViewportProbe
	scroller feed.Scroller
	recorder feed.Recorder
	rand     *utils.Rand
	sm       *agent.StateMachine
	logger   *logx.Logger

	cancel context.CancelFunc
	done   chan struct{}
}

// NewAgent creates a scroll agent. rand is the injected jitter source so
// tests can make timing deterministic.
func NewAgent(id string, engine *Engine, probe feed.ViewportProbe, scroller feed.Scroller, recorder feed.Recorder, rand *utils.Rand, notifCh chan<- *proto.StateChangeNotification) *Agent {
	return &Agent{
		Runtime:  agent.NewRuntime(id, proto.AgentTypeScroll),
		engine:   engine,
		probe:    probe,
		scroller: scroller,
		recorder: recorder,
		rand:     rand,
		sm:       agent.NewStateMachine(id, proto.StateStopped, transitionTable(), notifCh),
		logger:   logx.NewLogger(id),
	}
}

// State returns the agent's current state machine state.
func (a *Agent) State() proto.State {
	return a.sm.Current()
}

// Start launches the polling loop. It returns immediately.
func (a *Agent) Start(ctx context.Context) error {
	if a.Active() {
		return agent.ErrAlreadyStarted
	}
	if err := a.sm.TransitionTo(proto.StateScrolling, nil); err != nil {
		return err
	}
	a.SetActive(true)

	loopCtx, cancel := context.WithCancel(ctx)
	a.cancel = cancel
	a.done = make(chan struct{})
	go a.loop(loopCtx)

	a.logger.Info("scroll agent started")
	return nil
}

// Stop cancels the loop and waits for it to exit.
func (a *Agent) Stop(ctx context.Context) error {
	if !a.Active() {
		return nil
	}
	a.cancel()
	select {
	case <-a.done:
	case <-ctx.Done():
		return ctx.Err()
	}
	a.SetActive(false)
	if err := a.sm.TransitionTo(proto.StateStopped, nil); err != nil {
		return err
	}
	a.logger.Info("scroll agent stopped")
	return nil
}

// Handle is a no-op: the scroll agent is loop-driven, not task-driven.
func (a *Agent) Handle(_ context.Context, _ *proto.Task) error {
	return nil
}

// Snapshot reports runtime state including the state machine state.
func (a *Agent) Snapshot() proto.AgentSnapshot {
	snap := a.Runtime.Snapshot()
	snap.State = a.sm.Current()
	return snap
}

func (a *Agent) loop(ctx context.Context) {
	defer close(a.done)

	for {
		wait := a.rand.JitterDuration(pollInterval, pollJitter)
		select {
		case <-ctx.Done():
			return
		case <-time.After(wait):
		}
		a.tick(ctx)
	}
}

// tick runs one polling cycle: probe, pause for content, decide, scroll.
func (a *Agent) tick(ctx context.Context) {
	a.Touch()

	viewport, err := a.probe.Viewport(ctx)
	if err != nil {
		a.logger.Warn("viewport probe failed: %v", err)
		return
	}
	now := time.Now()

	// Visible unprocessed content hands control to the content workflow.
	if viewport.UnprocessedCount > 0 {
		if a.sm.Current() == proto.StateScrolling {
			if err := a.sm.TransitionTo(proto.StatePausedForContent, map[string]any{"unprocessed": viewport.UnprocessedCount}); err != nil {
				a.logger.Warn("pause transition failed: %v", err)
			}
		}
		select {
		case <-ctx.Done():
		case <-time.After(contentCooldown):
		}
		return
	}
	if a.sm.Current() == proto.StatePausedForContent {
		if err := a.sm.TransitionTo(proto.StateScrolling, nil); err != nil {
			a.logger.Warn("resume transition failed: %v", err)
			return
		}
	}

	decision := a.engine.Decide(now, viewport, NeutralQuality)
	if !decision.ShouldScroll {
		if emergency, ok := a.engine.Emergency(now, viewport); ok {
			decision = emergency
		} else {
			a.record(ctx, proto.InteractionScrollSuppressed, decision)
			return
		}
	}

	if err := a.scroller.ScrollBy(ctx, decision.AmountPx); err != nil {
		a.logger.Warn("scroll failed: %v", err)
		return
	}
	a.engine.MarkScrolled(time.Now())
	a.record(ctx, proto.InteractionScrollPerformed, decision)
	a.logger.Debug("scrolled %dpx (%s, confidence %.2f)", decision.AmountPx, decision.Reason, decision.Confidence)
}

func (a *Agent) record(ctx context.Context, kind proto.InteractionKind, decision proto.ScrollDecision) {
	if a.recorder == nil {
		return
	}
	payload := map[string]any{
		"reason":     decision.Reason,
		"amount_px":  decision.AmountPx,
		"confidence": decision.Confidence,
	}
	if err := a.recorder.RecordInteraction(ctx, "", kind, payload); err != nil {
		a.logger.Debug("interaction record failed: %v", err)
	}
}
