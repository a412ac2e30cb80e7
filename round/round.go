// Package round implements the per-round scheduler: the state machine
// that assigns hosts to workers, boots them, and then drives repeated
// bounded-time rounds across the logical-processor pool, each one
// draining every host's pending events up to a shared barrier and
// reporting the smallest next pending event time seen anywhere.
package round

import (
	"fmt"
	"math/rand"

	"github.com/sirupsen/logrus"

	"github.com/vnetsim/vnetsim-core/event"
	"github.com/vnetsim/vnetsim-core/host"
	"github.com/vnetsim/vnetsim-core/hostqueue"
	"github.com/vnetsim/vnetsim-core/lp"
	"github.com/vnetsim/vnetsim-core/policy"
	"github.com/vnetsim/vnetsim-core/vtime"
	"github.com/vnetsim/vnetsim-core/workerpool"
)

// State is one node of the round scheduler's lifecycle.
type State int

const (
	Created State = iota
	HostsAssigned
	Ready
	Running
	Finished
)

func (s State) String() string {
	switch s {
	case Created:
		return "CREATED"
	case HostsAssigned:
		return "HOSTS_ASSIGNED"
	case Ready:
		return "READY"
	case Running:
		return "RUNNING"
	case Finished:
		return "FINISHED"
	default:
		return "UNKNOWN"
	}
}

// OnFinish is called once per worker, from inside worker context, when
// the scheduler finishes. Some managed-code libraries crash if torn down
// from a thread other than the one that initialized them, so hosts'
// attached resources must be released where they ran. A nil hook is fine.
type OnFinish func()

// Options bundles the construction parameters of a Scheduler.
type Options struct {
	// NWorkers is the worker thread count; 0 means the calling goroutine
	// does all the work itself, with no worker pool or CPU pinning.
	NWorkers int
	// NCPUs is how many CPUs worker pinning distributes over.
	NCPUs int
	// Steal lets a worker whose ready queue is empty take over a peer
	// worker's host share for the rest of the round.
	Steal bool
	// ShuffleRNG, when non-nil, shuffles host order before the
	// round-robin worker assignment, so that a pathological add order
	// does not pile the busiest hosts onto one worker. Seed it from the
	// run's master seed to keep the assignment reproducible.
	ShuffleRNG *rand.Rand
	// Barrier must be the same pointer embedded in the policy.Config the
	// policy was built with, so barrier updates here are visible to the
	// policy's clamping logic.
	Barrier *vtime.SimulationTime
	// EndTime is the absolute simulation cutoff.
	EndTime vtime.SimulationTime
	// OnFinish is the per-worker teardown hook described above.
	OnFinish OnFinish
}

// Scheduler drives the round protocol. It is built once per simulation
// run and is not reusable after Finish.
type Scheduler struct {
	registry *host.Registry
	pol      policy.Policy
	src      policy.EventSource // non-nil for global/per-thread-queue variants
	lps      *lp.Pool
	pool     *workerpool.Pool // nil when NWorkers == 0
	opts     Options

	state  State
	rounds int
	seeded bool

	// standaloneMin tracks the round minimum when there is no Pool to do
	// it atomically; safe unguarded because NWorkers == 0 means exactly
	// one goroutine ever touches it.
	standaloneMin vtime.SimulationTime
}

// New builds a Scheduler over the given host registry and policy.
func New(registry *host.Registry, pol policy.Policy, opts Options) *Scheduler {
	lpCount := opts.NWorkers
	if lpCount < 1 {
		lpCount = 1
	}
	src, _ := pol.(policy.EventSource)
	s := &Scheduler{
		registry: registry,
		pol:      pol,
		src:      src,
		lps:      lp.NewPool(lpCount, opts.NCPUs),
		opts:     opts,
		state:    Created,
	}
	if opts.NWorkers > 0 {
		s.pool = workerpool.New(opts.NWorkers, s.lps)
	}
	return s
}

// Start assigns every host in the registry to a worker — round-robin over
// the (optionally shuffled) host order — and transitions
// CREATED -> HOSTS_ASSIGNED.
func (s *Scheduler) Start() error {
	if s.state != Created {
		return fmt.Errorf("round: Start called in state %s, want %s", s.state, Created)
	}
	hosts := s.registry.All()
	if s.opts.ShuffleRNG != nil {
		s.opts.ShuffleRNG.Shuffle(len(hosts), func(i, j int) {
			hosts[i], hosts[j] = hosts[j], hosts[i]
		})
	}
	n := s.opts.NWorkers
	if n < 1 {
		n = 1
	}
	for i, h := range hosts {
		if err := s.pol.AssignHost(h, hostqueue.WorkerID(i%n)); err != nil {
			return err
		}
	}
	s.state = HostsAssigned
	logrus.Debugf("round: assigned %d hosts across %d workers", len(hosts), n)
	return nil
}

// BootHosts dispatches a task that runs every host's one-time startup in
// worker context, and transitions HOSTS_ASSIGNED -> READY. The barrier is
// 0 during boot, so nothing a Boot handler emits is clamped or observed
// early.
func (s *Scheduler) BootHosts() error {
	if s.state != HostsAssigned {
		return fmt.Errorf("round: BootHosts called in state %s, want %s", s.state, HostsAssigned)
	}
	*s.opts.Barrier = 0
	s.runTask(s.bootWorker)
	s.state = Ready
	return nil
}

// ContinueRound starts one bounded round ending at wEnd, transitioning
// READY -> RUNNING. With a worker pool it returns without waiting for the
// round; with NWorkers == 0 the round runs to completion inside this call.
// Either way, call AwaitRound to collect its result. wStart is recorded
// for diagnostics; the round body only needs wEnd as the barrier.
func (s *Scheduler) ContinueRound(wStart, wEnd vtime.SimulationTime) error {
	if s.state != Ready {
		return fmt.Errorf("round: ContinueRound called in state %s, want %s", s.state, Ready)
	}
	*s.opts.Barrier = wEnd
	s.state = Running
	logrus.Debugf("round %d: window [%d, %d)", s.rounds, wStart, wEnd)
	s.startTask(s.runWorker)
	return nil
}

// AwaitRound blocks until the round started by ContinueRound finishes,
// transitions RUNNING -> READY, and returns the smallest next-event time
// pending anywhere, or the Invalid sentinel if nothing is pending.
func (s *Scheduler) AwaitRound() (vtime.SimulationTime, error) {
	if s.state != Running {
		return 0, fmt.Errorf("round: AwaitRound called in state %s, want %s", s.state, Running)
	}
	min := s.awaitTask()
	s.rounds++
	s.state = Ready
	return min, nil
}

// Finish tears down the worker pool, runs the release hook from worker
// context, and transitions to FINISHED. Valid from READY only.
func (s *Scheduler) Finish() error {
	if s.state != Ready {
		return fmt.Errorf("round: Finish called in state %s, want %s", s.state, Ready)
	}
	if s.opts.OnFinish != nil {
		if s.pool != nil {
			s.pool.StartTask(func(lp.WorkerID) { s.opts.OnFinish() })
			s.pool.AwaitTask()
		} else {
			s.opts.OnFinish()
		}
	}
	if s.pool != nil {
		s.pool.JoinAll()
	}
	s.state = Finished
	return nil
}

// State reports the scheduler's current lifecycle state.
func (s *Scheduler) State() State { return s.state }

// Rounds reports how many ContinueRound/AwaitRound cycles have completed.
func (s *Scheduler) Rounds() int { return s.rounds }

// runTask runs one full task synchronously (start + await).
func (s *Scheduler) runTask(fn workerpool.TaskFn) {
	s.startTask(fn)
	s.awaitTask()
}

// startTask launches fn across the workers. The LP ready queues are
// seeded once, before the first task; after that each task's FinishTask
// swap carries the done workers back to ready, preserving the
// freshest-first order DonePush established.
func (s *Scheduler) startTask(fn workerpool.TaskFn) {
	if !s.seeded {
		s.lps.ReadyAll()
		s.seeded = true
	}
	if s.pool != nil {
		s.pool.ResetNextEventTimeNextRound()
		s.pool.StartTask(fn)
		return
	}
	s.standaloneMin = vtime.SimulationTime(vtime.Invalid)
	fn(0)
}

// awaitTask parks until every worker finishes, swaps the LP queues for
// the next task, and folds the policy-wide queue-head minimum into the
// workers' reported minimum. The policy read happens after the barrier,
// so it also catches events pushed to a share after its owner had already
// reported.
func (s *Scheduler) awaitTask() vtime.SimulationTime {
	var min vtime.SimulationTime
	if s.pool != nil {
		s.pool.AwaitTask()
		min = s.pool.NextEventTimeNextRound()
	} else {
		min = s.standaloneMin
	}
	if polMin := s.pol.NextTime(); polMin < min {
		min = polMin
	}
	s.lps.FinishTask()
	return min
}

// popShare picks the next worker share for the worker on LP lpi to run:
// its own share, or a peer's when stealing is on.
func (s *Scheduler) popShare(lpi int) (lp.WorkerID, bool) {
	if s.opts.Steal {
		return s.lps.PopWorkerToRunOn(lpi)
	}
	return s.lps.PopOwnWorker(lpi)
}

// bootWorker runs the one-time startup of every host in each share this
// worker picks up.
func (s *Scheduler) bootWorker(w lp.WorkerID) {
	lpi := int(w)
	for {
		owner, ok := s.popShare(lpi)
		if !ok {
			return
		}
		for _, h := range s.pol.AssignedHosts(owner) {
			h.Lock()
			h.Boot(s.pol)
			h.Unlock()
		}
		s.lps.DonePush(lpi, owner)
	}
}

// runWorker is the per-round worker inner loop: pop a share of hosts from
// the LP pool, drain it up to the round barrier, and fold each host's
// next pending time into the round's reported minimum.
func (s *Scheduler) runWorker(w lp.WorkerID) {
	lpi := int(w)
	for {
		owner, ok := s.popShare(lpi)
		if !ok {
			return
		}
		if s.src != nil {
			s.drainEvents(owner)
		} else {
			s.drainHosts(owner)
		}
		s.lps.DonePush(lpi, owner)
	}
}

// drainHosts runs one worker share's hosts in merged time order: always
// the host whose queue head is globally earliest within the share, one
// event at a time. Interleaving keeps every host's clock behind every
// event the share has left to run, so an event emitted mid-round to a
// same-worker peer lands ahead of that peer's clock and fires this round.
func (s *Scheduler) drainHosts(owner lp.WorkerID) {
	barrier := *s.opts.Barrier
	hosts := s.pol.AssignedHosts(owner)
	for {
		var best *host.Host
		var bestHead *event.Event
		for _, h := range hosts {
			head := h.Queue.Peek()
			if head == nil || head.Time >= barrier {
				continue
			}
			if bestHead == nil || event.Less(head, bestHead) {
				best, bestHead = h, head
			}
		}
		if best == nil {
			break
		}
		best.Lock()
		best.ExecuteNext(barrier, s.pol)
		best.Unlock()
	}
	for _, h := range hosts {
		h.Lock()
		next := h.NextEventTime()
		h.Unlock()
		if next.IsValid() {
			s.reportNext(vtime.ToSimulation(next))
		}
	}
}

// drainEvents is the drain loop for policies that route events into
// shared queues instead of per-host queues: pop the share's earliest
// ready event and run it directly on its receiver.
func (s *Scheduler) drainEvents(owner lp.WorkerID) {
	barrier := *s.opts.Barrier
	for {
		e := s.src.PopForWorker(owner, barrier)
		if e == nil {
			return
		}
		h := s.registry.Get(e.Receiver)
		if h == nil {
			continue
		}
		h.Lock()
		h.RunEvent(e, s.pol)
		h.Unlock()
	}
}

func (s *Scheduler) reportNext(t vtime.SimulationTime) {
	if s.pool != nil {
		s.pool.FetchMinNextEventTime(t)
		return
	}
	if uint64(t) < uint64(s.standaloneMin) {
		s.standaloneMin = t
	}
}
