// Package hostqueue implements the per-host priority queue of pending
// events and the barrier-clamping rule that keeps cross-worker delivery
// causally sound.
package hostqueue

import (
	"container/heap"
	"sync"

	"github.com/vnetsim/vnetsim-core/event"
	"github.com/vnetsim/vnetsim-core/vtime"
)

// WorkerID identifies the worker a host is currently assigned to. Two
// events pushed from hosts with different WorkerIDs are "cross-worker".
type WorkerID int32

// heapData is the container/heap backing store, ordered by event.Less.
type heapData []*event.Event

func (h heapData) Len() int            { return len(h) }
func (h heapData) Less(i, j int) bool  { return event.Less(h[i], h[j]) }
func (h heapData) Swap(i, j int)       { h[i], h[j] = h[j], h[i] }
func (h *heapData) Push(x interface{}) { *h = append(*h, x.(*event.Event)) }
func (h *heapData) Pop() interface{} {
	old := *h
	n := len(old)
	item := old[n-1]
	old[n-1] = nil
	*h = old[:n-1]
	return item
}

// Queue is a min-heap of events for exactly one host. Push, Peek, and Pop
// all take the internal mutex, so a cross-worker Push racing with the
// owning worker's drain loop is safe regardless of what higher-level
// locking (e.g. the host facade's round-ownership lock) is in effect.
type Queue struct {
	mu   sync.Mutex
	data heapData
}

// New creates an empty host queue.
func New() *Queue {
	q := &Queue{data: make(heapData, 0)}
	heap.Init(&q.data)
	return q
}

// PushResult reports the fate of a pushed event.
type PushResult int

const (
	// Accepted means the event is now in the queue with its time
	// unchanged.
	Accepted PushResult = iota
	// Clamped means the event is now in the queue, but its time was
	// raised to the round barrier because sender and receiver run on
	// different workers.
	Clamped
	// Discarded means the event arrived at or after the simulation's
	// end_time and was dropped without being queued.
	Discarded
)

// Push inserts e into the queue, thread-safe. endTime is the simulation's
// absolute cutoff: an event whose time is >= endTime is discarded rather
// than queued. barrier is the current round's end_time;
// senderWorker/receiverWorker identify the workers the sending and
// receiving hosts are assigned to.
//
// Clamping rule: if the event's time is before the barrier and sender and
// receiver run on different workers, the event's time is raised to the
// barrier. The receiver's worker may already have advanced past the
// original time within the current round, so observation is deferred to
// the round that starts at the barrier, which that worker cannot have
// passed.
func (q *Queue) Push(e *event.Event, senderWorker, receiverWorker WorkerID, barrier vtime.SimulationTime, endTime vtime.SimulationTime) PushResult {
	if e.Time >= endTime {
		return Discarded
	}
	res := Accepted
	if e.Time < barrier && senderWorker != receiverWorker {
		e.Time = barrier
		res = Clamped
	}
	q.mu.Lock()
	heap.Push(&q.data, e)
	q.mu.Unlock()
	return res
}

// Peek returns the earliest event without removing it, or nil if empty.
func (q *Queue) Peek() *event.Event {
	q.mu.Lock()
	defer q.mu.Unlock()
	if len(q.data) == 0 {
		return nil
	}
	return q.data[0]
}

// Pop removes and returns the earliest event, or nil if empty.
func (q *Queue) Pop() *event.Event {
	q.mu.Lock()
	defer q.mu.Unlock()
	if len(q.data) == 0 {
		return nil
	}
	return heap.Pop(&q.data).(*event.Event)
}

// Len reports the number of pending events.
func (q *Queue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.data)
}
