package queue

import (
	"context"

	"github.com/google/uuid"
)

const defaultCapacity = 1000

// memoryQueue is a bounded in-process queue. Tasks do not survive a restart,
// which the staleness monitor turns into FAILED runs.
type memoryQueue struct {
	tasks chan *Lease
}

// NewMemoryQueue creates an in-memory queue holding at most capacity tasks
func NewMemoryQueue(capacity int) Queue {
	if capacity <= 0 {
		capacity = defaultCapacity
	}
	return &memoryQueue{tasks: make(chan *Lease, capacity)}
}

func (q *memoryQueue) Enqueue(_ context.Context, stage string, syncRunID uuid.UUID, payload []byte) error {
	lease := &Lease{
		ID:        uuid.New(),
		Stage:     stage,
		SyncRunID: syncRunID,
		Payload:   append([]byte(nil), payload...),
	}
	select {
	case q.tasks <- lease:
		return nil
	default:
		return ErrQueueFull
	}
}

func (q *memoryQueue) Dequeue(ctx context.Context) (*Lease, error) {
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case lease := <-q.tasks:
		lease.Attempts++
		return lease, nil
	}
}

// Ack is a no-op: a dequeued task already left the channel
func (*memoryQueue) Ack(context.Context, *Lease) error {
	return nil
}

func (q *memoryQueue) Depth(context.Context) (int, error) {
	return len(q.tasks), nil
}
