// Package workerpool implements the fixed set of worker threads that
// execute TaskFns across the logical-processor pool and report a
// per-round minimum next-event time.
package workerpool

import (
	"runtime"
	"sync"
	"sync/atomic"

	"github.com/vnetsim/vnetsim-core/lp"
	"github.com/vnetsim/vnetsim-core/vtime"
)

// TaskFn is the unit of work a worker runs once per round. worker is the
// calling worker's own index, which is also its LP index: there is one
// worker per logical processor.
type TaskFn func(worker lp.WorkerID)

// Pool is a fixed set of worker goroutines pinned one-per-LP, driven by a
// start/await/join protocol: StartTask unparks every worker, AwaitTask
// parks the scheduler until all report done, JoinAll ends the loops.
type Pool struct {
	n       int
	lps     *lp.Pool
	start   []chan TaskFn
	doneWG  sync.WaitGroup
	joinWG  sync.WaitGroup
	closed  bool

	nextEventTimeNextRound atomic.Uint64
}

// New spawns n worker goroutines, one per logical processor in lps.
// n_workers == 0 is not handled here: in that mode the caller becomes
// the sole worker, so the round scheduler never constructs a Pool.
func New(n int, lps *lp.Pool) *Pool {
	p := &Pool{n: n, lps: lps, start: make([]chan TaskFn, n)}
	p.nextEventTimeNextRound.Store(vtime.Invalid)
	for i := 0; i < n; i++ {
		p.start[i] = make(chan TaskFn)
		p.joinWG.Add(1)
		go p.workerLoop(i)
	}
	return p
}

func (p *Pool) workerLoop(i int) {
	defer p.joinWG.Done()
	runtime.LockOSThread()
	lp.PinCurrentThread(p.lps.CPUID(i))
	for fn := range p.start[i] {
		fn(lp.WorkerID(i))
		p.doneWG.Done()
	}
}

// StartTask assigns fn to every worker and unparks them. Non-blocking.
func (p *Pool) StartTask(fn TaskFn) {
	p.doneWG.Add(p.n)
	for i := 0; i < p.n; i++ {
		p.start[i] <- fn
	}
}

// AwaitTask blocks until every worker has finished the task started by the
// most recent StartTask call.
func (p *Pool) AwaitTask() {
	p.doneWG.Wait()
}

// JoinAll signals permanent exit: each worker leaves its loop, and JoinAll
// returns only after all have joined.
func (p *Pool) JoinAll() {
	if p.closed {
		return
	}
	p.closed = true
	for _, ch := range p.start {
		close(ch)
	}
	p.joinWG.Wait()
}

// NWorkers reports the pool's fixed worker count.
func (p *Pool) NWorkers() int { return p.n }

// ResetNextEventTimeNextRound sets the global fetch-min back to the
// Invalid sentinel, its value at the start of each round.
func (p *Pool) ResetNextEventTimeNextRound() {
	p.nextEventTimeNextRound.Store(vtime.Invalid)
}

// FetchMinNextEventTime monotonically decreases the shared
// next-event-time value. Compare-and-swap keeps the decrease atomic
// against concurrent reporters.
func (p *Pool) FetchMinNextEventTime(t vtime.SimulationTime) {
	for {
		cur := p.nextEventTimeNextRound.Load()
		if uint64(t) >= cur {
			return
		}
		if p.nextEventTimeNextRound.CompareAndSwap(cur, uint64(t)) {
			return
		}
	}
}

// NextEventTimeNextRound reads the round's reported minimum. Valid only
// after AwaitTask has returned for that round.
func (p *Pool) NextEventTimeNextRound() vtime.SimulationTime {
	return vtime.SimulationTime(p.nextEventTimeNextRound.Load())
}
