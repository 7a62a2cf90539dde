package agent

import (
	"fmt"
	"sync"
	"time"

	"feedpilot/pkg/logx"
	"feedpilot/pkg/proto"
)

// TransitionTable lists the valid successor states for each state.
type TransitionTable map[proto.State][]proto.State

// StateMachine is a small validated state machine for agents that cycle
// through runtime states. Transitions are checked against an instance-local
// table; every successful transition is published on the notification channel
// with a non-blocking send so a slow consumer can never stall an agent.
type StateMachine struct {
	agentID string
	table   TransitionTable
	logger  *logx.Logger

	mu      sync.Mutex
	current proto.State

	notifCh chan<- *proto.StateChangeNotification
}

// NewStateMachine creates a state machine starting in initial. notifCh may be
// nil when nobody observes transitions.
func NewStateMachine(agentID string, initial proto.State, table TransitionTable, notifCh chan<- *proto.StateChangeNotification) *StateMachine {
	return &StateMachine{
		agentID: agentID,
		table:   table,
		logger:  logx.NewLogger(agentID),
		current: initial,
		notifCh: notifCh,
	}
}

// Current returns the current state.
func (sm *StateMachine) Current() proto.State {
	sm.mu.Lock()
	defer sm.mu.Unlock()
	return sm.current
}

// TransitionTo moves to next if the table allows it. Transitioning to the
// current state is a no-op.
func (sm *StateMachine) TransitionTo(next proto.State, metadata map[string]any) error {
	sm.mu.Lock()
	from := sm.current
	if from == next {
		sm.mu.Unlock()
		return nil
	}
	if !sm.isValidLocked(from, next) {
		sm.mu.Unlock()
		return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, from, next)
	}
	sm.current = next
	sm.mu.Unlock()

	sm.logger.Debug("state transition %s -> %s", from, next)

	if sm.notifCh != nil {
		notification := &proto.StateChangeNotification{
			AgentID:   sm.agentID,
			FromState: from,
			ToState:   next,
			Timestamp: time.Now(),
			Metadata:  metadata,
		}
		select {
		case sm.notifCh <- notification:
		default:
			sm.logger.Warn("state notification channel full, dropping %s -> %s", from, next)
		}
	}
	return nil
}

func (sm *StateMachine) isValidLocked(from, to proto.State) bool {
	for _, allowed := range sm.table[from] {
		if allowed == to {
			return true
		}
	}
	return false
}
