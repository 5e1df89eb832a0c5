package burst

import (
	"sync"

	"feagi/internal/model"
)

// ParameterUpdateQueue is the mailbox between API threads and the burst
// loop. Enqueue is callable from any goroutine, never blocks for longer
// than the append under the mutex, and never fails; DrainAll is called only
// by the scheduler and swaps the whole backlog out in one step, so
// producers enqueuing concurrently land in the next drain.
type ParameterUpdateQueue struct {
	mu      sync.Mutex
	pending []model.ParameterUpdate
}

func NewParameterUpdateQueue() *ParameterUpdateQueue {
	return &ParameterUpdateQueue{}
}

func (q *ParameterUpdateQueue) Enqueue(update model.ParameterUpdate) {
	q.mu.Lock()
	q.pending = append(q.pending, update)
	q.mu.Unlock()
}

// DrainAll removes and returns all queued updates in FIFO order.
func (q *ParameterUpdateQueue) DrainAll() []model.ParameterUpdate {
	q.mu.Lock()
	pending := q.pending
	q.pending = nil
	q.mu.Unlock()
	return pending
}

func (q *ParameterUpdateQueue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.pending)
}
