package notifications

import (
	"sync"
	"time"

	"github.com/bissquit/mediahook/internal/domain"
	"github.com/google/uuid"
)

// Message is a rendered notification ready for delivery.
type Message struct {
	Text     string
	ImageURL string
	Source   domain.SourceTag
	ItemType domain.ItemType
}

// Entry is a message held in the queue.
type Entry struct {
	ID         string
	Message    Message
	EnqueuedAt time.Time
}

// Queue is an ordered in-memory buffer shared by ingest and the scheduler.
// Push and Drain serialize on one mutex so a push is never lost between a
// drain reading the buffer and resetting it.
type Queue struct {
	mu     sync.Mutex
	items  []Entry
	closed bool
	now    func() time.Time
}

// NewQueue creates an empty queue.
func NewQueue() *Queue {
	return &Queue{now: time.Now}
}

// Push appends msg and returns the stored entry.
func (q *Queue) Push(msg Message) (Entry, error) {
	entry := Entry{
		ID:      uuid.NewString(),
		Message: msg,
	}

	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed {
		return Entry{}, ErrQueueClosed
	}
	entry.EnqueuedAt = q.now()
	q.items = append(q.items, entry)
	return entry, nil
}

// Drain removes and returns every queued entry in enqueue order.
func (q *Queue) Drain() []Entry {
	q.mu.Lock()
	items := q.items
	q.items = nil
	q.mu.Unlock()
	return items
}

// Close makes further pushes fail with ErrQueueClosed. Queued entries stay
// available to Drain.
func (q *Queue) Close() {
	q.mu.Lock()
	q.closed = true
	q.mu.Unlock()
}

// Len returns the number of queued entries.
func (q *Queue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.items)
}
