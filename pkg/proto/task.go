// Package proto defines the shared data model and protocol types exchanged
// between the orchestrator, agents, and the page bridge.
package proto

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// TaskType identifies the workflow a task runs.
type TaskType string

const (
	// TaskProcessPost runs the full post workflow: extract, like, comment.
	TaskProcessPost TaskType = "PROCESS_POST"
	// TaskHandleReply runs the reply workflow for a comment on our content.
	TaskHandleReply TaskType = "HANDLE_REPLY"
)

// TaskStatus tracks a task through its lifecycle. Completed and Failed are
// terminal; a task is never reopened.
type TaskStatus string

const (
	TaskPending    TaskStatus = "PENDING"
	TaskProcessing TaskStatus = "PROCESSING"
	TaskCompleted  TaskStatus = "COMPLETED"
	TaskFailed     TaskStatus = "FAILED"
)

// IsTerminal reports whether the status is final.
func (s TaskStatus) IsTerminal() bool {
	return s == TaskCompleted || s == TaskFailed
}

// Task is one unit of work for the orchestrator. Tasks are created on a
// trigger event, mutated only by the orchestrator while it executes them, and
// never shared across workers: at most one task is PROCESSING system-wide.
type Task struct {
	ID        string     `json:"id"`
	Type      TaskType   `json:"type"`
	Payload   Handle     `json:"payload"`
	Status    TaskStatus `json:"status"`
	CreatedAt time.Time  `json:"created_at"`
	Error     string     `json:"error,omitempty"`
}

// NewTask creates a pending task for the given handle.
func NewTask(taskType TaskType, payload Handle) *Task {
	return &Task{
		ID:        uuid.New().String(),
		Type:      taskType,
		Payload:   payload,
		Status:    TaskPending,
		CreatedAt: time.Now().UTC(),
	}
}

// Fail marks the task failed with the given reason.
func (t *Task) Fail(err error) {
	t.Status = TaskFailed
	if err != nil {
		t.Error = err.Error()
	}
}

func (t *Task) String() string {
	return fmt.Sprintf("%s[%s] %s", t.Type, t.ID[:8], t.Status)
}

// Handle is an opaque reference to a page element the capabilities can act
// on. The core never inspects page structure; it only passes handles through
// to the extraction, like, and injection capabilities.
type Handle struct {
	// Ref is the bridge-side element reference.
	Ref string `json:"ref"`
	// ItemID is the stable content ID when already known (reply tasks).
	ItemID string `json:"item_id,omitempty"`
}
