package dispatch

import (
	"sync"

	"feedpilot/pkg/proto"
)

// TaskQueue is a strictly ordered FIFO of pending tasks. Tasks execute in
// enqueue order with no priority scheme; the queue grows without bound if
// enqueues outpace processing, which is accepted for a single-session tool.
type TaskQueue struct {
	mu    sync.Mutex
	tasks []*proto.Task
}

// NewTaskQueue creates an empty queue.
func NewTaskQueue() *TaskQueue {
	return &TaskQueue{}
}

// Enqueue appends a task to the tail.
func (q *TaskQueue) Enqueue(task *proto.Task) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.tasks = append(q.tasks, task)
}

// Dequeue pops the head task, or nil when the queue is empty.
func (q *TaskQueue) Dequeue() *proto.Task {
	q.mu.Lock()
	defer q.mu.Unlock()
	if len(q.tasks) == 0 {
		return nil
	}
	task := q.tasks[0]
	q.tasks = q.tasks[1:]
	return task
}

// Len returns the number of pending tasks.
func (q *TaskQueue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.tasks)
}
