// Package lp implements the logical-processor pool: a fixed array of LPs,
// each with a pinned CPU and ready/done worker queues, that supports work
// stealing across a round.
package lp

import (
	"sync"

	"github.com/vnetsim/vnetsim-core/hostqueue"
)

// WorkerID is re-exported from hostqueue so callers don't need both
// imports for the common case of naming a worker.
type WorkerID = hostqueue.WorkerID

// concurrentQueue is a mutex-guarded FIFO of WorkerIDs with a front-push
// for the done queue's cache-locality ordering. The ready/done queues are
// touched by worker goroutines during a round (tryPop/push) and by the
// scheduler thread between rounds (FinishTask's swap, while every worker
// is parked on the completion latch), so a plain mutex suffices.
type concurrentQueue struct {
	mu    sync.Mutex
	items []WorkerID
}

// pushBack appends to the tail.
func (q *concurrentQueue) pushBack(w WorkerID) {
	q.mu.Lock()
	q.items = append(q.items, w)
	q.mu.Unlock()
}

// pushFront prepends, used by DonePush so the freshest workers run first
// in the next task.
func (q *concurrentQueue) pushFront(w WorkerID) {
	q.mu.Lock()
	q.items = append([]WorkerID{w}, q.items...)
	q.mu.Unlock()
}

// tryPop removes and returns the head, or false if empty.
func (q *concurrentQueue) tryPop() (WorkerID, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if len(q.items) == 0 {
		return 0, false
	}
	w := q.items[0]
	q.items = q.items[1:]
	return w, true
}

func (q *concurrentQueue) len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.items)
}

// LogicalProcessor is one scheduling slot: a pinned CPU plus the
// ready/done queues of workers currently assigned to run on it.
type LogicalProcessor struct {
	CPUID int
	ready *concurrentQueue
	done  *concurrentQueue
}

// Pool is the fixed array of LogicalProcessors, one per worker.
type Pool struct {
	lps []*LogicalProcessor
}

// NewPool builds a pool of n LPs, distributing worker indices across
// nCPUs available CPUs by worker_id % n_cpus. Every queue starts empty;
// ReadyAll seeds the ready queues.
func NewPool(n int, nCPUs int) *Pool {
	if nCPUs < 1 {
		nCPUs = 1
	}
	lps := make([]*LogicalProcessor, n)
	for i := 0; i < n; i++ {
		lps[i] = &LogicalProcessor{
			CPUID: i % nCPUs,
			ready: &concurrentQueue{},
			done:  &concurrentQueue{},
		}
	}
	return &Pool{lps: lps}
}

// Len returns the number of logical processors.
func (p *Pool) Len() int { return len(p.lps) }

// CPUID returns the CPU a worker running on LP i should pin to.
func (p *Pool) CPUID(lpi int) int { return p.lps[lpi].CPUID }

// ReadyAll seeds every LP's ready queue with worker i (one worker per
// LP). The round scheduler calls it once, before its first task; after
// that FinishTask's swap refills the ready queues.
func (p *Pool) ReadyAll() {
	for i, l := range p.lps {
		l.ready.pushBack(WorkerID(i))
	}
}

// PopWorkerToRunOn is the work-stealing pop: try lpi's own ready queue,
// then round-robin over its peers, returning false only if every LP's
// ready queue is empty.
func (p *Pool) PopWorkerToRunOn(lpi int) (WorkerID, bool) {
	n := len(p.lps)
	for i := 0; i < n; i++ {
		idx := (lpi + i) % n
		if w, ok := p.lps[idx].ready.tryPop(); ok {
			return w, true
		}
	}
	return 0, false
}

// PopOwnWorker pops only lpi's own ready queue, never a peer's. The
// non-stealing host policy drains with this, so each worker runs exactly
// its own share.
func (p *Pool) PopOwnWorker(lpi int) (WorkerID, bool) {
	return p.lps[lpi].ready.tryPop()
}

// DonePush pushes worker w to the front of lpi's done queue. Front order
// is a cache-locality heuristic, not a correctness requirement: the
// freshest workers run first next task.
func (p *Pool) DonePush(lpi int, w WorkerID) {
	p.lps[lpi].done.pushFront(w)
}

// FinishTask swaps ready <-> done on every LP. Scheduler-thread only, not
// thread-safe: every worker is parked on the completion latch when this
// runs, so no worker touches the queues concurrently.
func (p *Pool) FinishTask() {
	for _, l := range p.lps {
		if l.ready.len() != 0 {
			panic("lp: FinishTask called with a non-empty ready queue")
		}
		l.ready, l.done = l.done, l.ready
	}
}
