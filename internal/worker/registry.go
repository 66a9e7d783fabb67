package worker

import (
	"context"
	"sync"
)

// taskRegistry maps a generating conversation to its cancel function. An
// entry exists exactly while the conversation's generating flag is set; both
// are flipped together by the engine.
type taskRegistry struct {
	mu    sync.Mutex
	tasks map[int64]context.CancelFunc
}

func newTaskRegistry() *taskRegistry {
	return &taskRegistry{tasks: make(map[int64]context.CancelFunc)}
}

func (r *taskRegistry) add(conversationID int64, cancel context.CancelFunc) {
	r.mu.Lock()
	r.tasks[conversationID] = cancel
	r.mu.Unlock()
}

func (r *taskRegistry) remove(conversationID int64) {
	r.mu.Lock()
	delete(r.tasks, conversationID)
	r.mu.Unlock()
}

// cancel fires the conversation's cancel function if a generation is in
// flight. Unknown or finished conversations are a no-op.
func (r *taskRegistry) cancel(conversationID int64) bool {
	r.mu.Lock()
	cancel, ok := r.tasks[conversationID]
	r.mu.Unlock()
	if ok {
		cancel()
	}
	return ok
}

func (r *taskRegistry) active(conversationID int64) bool {
	r.mu.Lock()
	_, ok := r.tasks[conversationID]
	r.mu.Unlock()
	return ok
}
