package stream

import (
	"errors"
	"sync"
)

// ErrQueueClosed is returned by Push after Close
var ErrQueueClosed = errors.New("chunk queue closed")

// ChunkQueue is a bounded FIFO between the capture path and the
// transcription worker. A full queue never blocks the producer: the oldest
// chunk is dropped and reported through the drop callback instead.
type ChunkQueue struct {
	mu     sync.Mutex
	cond   *sync.Cond
	items  []Chunk
	depth  int
	closed bool
	onDrop func(Chunk)
}

// NewChunkQueue creates a queue holding at most depth chunks. onDrop may be
// nil; it is called without the queue lock held.
func NewChunkQueue(depth int, onDrop func(Chunk)) *ChunkQueue {
	if depth < 1 {
		depth = 1
	}
	q := &ChunkQueue{
		items:  make([]Chunk, 0, depth),
		depth:  depth,
		onDrop: onDrop,
	}
	q.cond = sync.NewCond(&q.mu)
	return q
}

// Push enqueues c, evicting the oldest chunk when the queue is full.
// It reports whether an eviction happened.
func (q *ChunkQueue) Push(c Chunk) (bool, error) {
	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		return false, ErrQueueClosed
	}

	var (
		dropped Chunk
		evicted bool
	)
	if len(q.items) >= q.depth {
		dropped = q.items[0]
		q.items[0] = Chunk{}
		q.items = q.items[1:]
		evicted = true
	}
	q.items = append(q.items, c)
	q.cond.Signal()
	q.mu.Unlock()

	if evicted && q.onDrop != nil {
		q.onDrop(dropped)
	}
	return evicted, nil
}

// Pop blocks until a chunk is available. It returns false once the queue
// is closed and every remaining chunk has been handed out.
func (q *ChunkQueue) Pop() (Chunk, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()

	for len(q.items) == 0 && !q.closed {
		q.cond.Wait()
	}
	if len(q.items) == 0 {
		return Chunk{}, false
	}

	c := q.items[0]
	q.items[0] = Chunk{}
	q.items = q.items[1:]
	return c, true
}

// Close stops accepting chunks and wakes any waiting consumer.
func (q *ChunkQueue) Close() {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.closed {
		return
	}
	q.closed = true
	q.cond.Broadcast()
}

// Len returns the number of queued chunks
func (q *ChunkQueue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.items)
}

// Depth returns the configured capacity
func (q *ChunkQueue) Depth() int {
	return q.depth
}
