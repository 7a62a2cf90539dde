package proto

import "time"

// State is an agent state machine state.
type State string

func (s State) String() string { return string(s) }

// Scroll agent states. The scroll agent cycles Scrolling <-> PausedForContent
// while active and returns to Stopped on explicit stop.
const (
	StateStopped          State = "STOPPED"
	StateScrolling        State = "SCROLLING"
	StatePausedForContent State = "PAUSED_FOR_CONTENT"
)

// AgentType names the responsibility of an agent in the registry.
type AgentType string

const (
	AgentTypeMonitor AgentType = "monitor"
	AgentTypeScroll  AgentType = "scroll"
	AgentTypeReply   AgentType = "reply"
	AgentTypeLike    AgentType = "like"
)

// AgentSnapshot is the externally visible runtime state of one agent,
// reported by Status(). It is a copy; mutating it has no effect.
type AgentSnapshot struct {
	ID            string    `json:"id"`
	Type          AgentType `json:"type"`
	Active        bool      `json:"active"`
	State         State     `json:"state,omitempty"`
	CurrentTaskID string    `json:"current_task_id,omitempty"`
	TaskCount     int       `json:"task_count"`
	LastActivity  time.Time `json:"last_activity"`
}

// StateChangeNotification is sent on the orchestrator's notification channel
// whenever an agent transitions between states.
type StateChangeNotification struct {
	AgentID   string         `json:"agent_id"`
	FromState State          `json:"from_state"`
	ToState   State          `json:"to_state"`
	Timestamp time.Time      `json:"timestamp"`
	Metadata  map[string]any `json:"metadata,omitempty"`
}
