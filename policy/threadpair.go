// Legacy policy variants, preserved for lock-contention comparison
// against hostPolicy and semantically equivalent to it. Instead of one
// queue per host, they route events into shared locked queues keyed at
// three granularities, from coarsest (most contention) to finest:
//   - thread-single:      one queue per receiving worker
//   - thread-per-thread:  one queue per (sending worker, receiving worker)
//   - thread-per-host:    one queue per (sending worker, receiving host)
//
// The round scheduler drains them through the EventSource interface, one
// event at a time, rather than through the per-host execute loop.
package policy

import (
	"container/heap"
	"sync"
	"sync/atomic"

	"github.com/vnetsim/vnetsim-core/event"
	"github.com/vnetsim/vnetsim-core/host"
	"github.com/vnetsim/vnetsim-core/hostqueue"
	"github.com/vnetsim/vnetsim-core/vtime"
)

// lockedHeap is a mutex-guarded serialHeap, the shared building block for
// every legacy variant below.
type lockedHeap struct {
	mu   sync.Mutex
	heap serialHeap
}

func newLockedHeap() *lockedHeap {
	h := &lockedHeap{heap: make(serialHeap, 0)}
	heap.Init(&h.heap)
	return h
}

func (l *lockedHeap) push(e *event.Event) {
	l.mu.Lock()
	heap.Push(&l.heap, e)
	l.mu.Unlock()
}

func (l *lockedHeap) popBefore(barrier vtime.SimulationTime) *event.Event {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.heap.Len() == 0 || l.heap[0].Time >= barrier {
		return nil
	}
	return heap.Pop(&l.heap).(*event.Event)
}

func (l *lockedHeap) peekTime() (vtime.SimulationTime, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.heap.Len() == 0 {
		return 0, false
	}
	return l.heap[0].Time, true
}

// threadQueueKey identifies one shared queue. ReceiverWorker is always
// set; SenderWorker and ReceiverHost are included only at finer
// granularities.
type threadQueueKey struct {
	SenderWorker   hostqueue.WorkerID
	ReceiverWorker hostqueue.WorkerID
	ReceiverHost   event.HostID
}

// threadKeyedPolicy is the shared implementation behind all three legacy
// tags; includeSender/includeHost select the key granularity.
type threadKeyedPolicy struct {
	cfg           Config
	includeSender bool
	includeHost   bool

	mu         sync.Mutex
	queues     map[threadQueueKey]*lockedHeap
	assignedTo map[hostqueue.WorkerID][]*host.Host
	extSeq     atomic.Uint64
	counters   statCounters
}

func newThreadKeyedPolicy(cfg Config, includeSender, includeHost bool) *threadKeyedPolicy {
	return &threadKeyedPolicy{
		cfg:           cfg,
		includeSender: includeSender,
		includeHost:   includeHost,
		queues:        make(map[threadQueueKey]*lockedHeap),
		assignedTo:    make(map[hostqueue.WorkerID][]*host.Host),
	}
}

func newThreadSinglePolicy(cfg Config) *threadKeyedPolicy { return newThreadKeyedPolicy(cfg, false, false) }
func newThreadPerPairPolicy(cfg Config) *threadKeyedPolicy { return newThreadKeyedPolicy(cfg, true, false) }
func newThreadPerHostPolicy(cfg Config) *threadKeyedPolicy { return newThreadKeyedPolicy(cfg, true, true) }

func (p *threadKeyedPolicy) key(senderWorker, receiverWorker hostqueue.WorkerID, receiverHost event.HostID) threadQueueKey {
	k := threadQueueKey{ReceiverWorker: receiverWorker}
	if p.includeSender {
		k.SenderWorker = senderWorker
	}
	if p.includeHost {
		k.ReceiverHost = receiverHost
	}
	return k
}

func (p *threadKeyedPolicy) AssignHost(h *host.Host, w hostqueue.WorkerID) error {
	if err := h.AssignWorker(w); err != nil {
		return err
	}
	p.assignedTo[w] = append(p.assignedTo[w], h)
	return nil
}

func (p *threadKeyedPolicy) AssignedHosts(w hostqueue.WorkerID) []*host.Host {
	return p.assignedTo[w]
}

func (p *threadKeyedPolicy) queueFor(k threadQueueKey) *lockedHeap {
	p.mu.Lock()
	defer p.mu.Unlock()
	q, ok := p.queues[k]
	if !ok {
		q = newLockedHeap()
		p.queues[k] = q
	}
	return q
}

func (p *threadKeyedPolicy) Push(sender, receiver event.HostID, t vtime.SimulationTime, payload any) {
	if t >= p.cfg.EndTime {
		p.counters.record(hostqueue.Discarded)
		return
	}
	recvHost := p.cfg.Registry.Get(receiver)
	if recvHost == nil {
		return
	}
	senderWorker := recvHost.Worker
	var seq uint64
	var senderPtr *event.HostID
	if sender == event.ExternalSenderID {
		seq = p.extSeq.Add(1)
	} else if senderHost := p.cfg.Registry.Get(sender); senderHost != nil {
		senderWorker = senderHost.Worker
		seq = senderHost.NextSequence()
		s := sender
		senderPtr = &s
	} else {
		seq = p.extSeq.Add(1)
	}
	res := hostqueue.Accepted
	if t < p.cfg.barrierOf() && senderWorker != recvHost.Worker {
		t = p.cfg.barrierOf()
		res = hostqueue.Clamped
	}
	e := &event.Event{Time: t, Sequence: seq, Sender: senderPtr, Receiver: receiver, Payload: payload}
	p.queueFor(p.key(senderWorker, recvHost.Worker, receiver)).push(e)
	p.counters.record(res)
}

// PopForWorker returns the earliest event under event.Less, across every
// queue addressed to worker w, whose time is < barrier, or nil if none is
// ready.
func (p *threadKeyedPolicy) PopForWorker(w hostqueue.WorkerID, barrier vtime.SimulationTime) *event.Event {
	p.mu.Lock()
	candidates := make([]*lockedHeap, 0, len(p.queues))
	for k, q := range p.queues {
		if k.ReceiverWorker == w {
			candidates = append(candidates, q)
		}
	}
	p.mu.Unlock()

	var best *lockedHeap
	var bestHead *event.Event
	for _, q := range candidates {
		q.mu.Lock()
		var head *event.Event
		if q.heap.Len() > 0 {
			head = q.heap[0]
		}
		q.mu.Unlock()
		if head == nil || head.Time >= barrier {
			continue
		}
		if bestHead == nil || event.Less(head, bestHead) {
			best, bestHead = q, head
		}
	}
	if best == nil {
		return nil
	}
	return best.popBefore(barrier)
}

func (p *threadKeyedPolicy) NextTime() vtime.SimulationTime {
	p.mu.Lock()
	qs := make([]*lockedHeap, 0, len(p.queues))
	for _, q := range p.queues {
		qs = append(qs, q)
	}
	p.mu.Unlock()

	best := vtime.SimulationTime(vtime.Invalid)
	for _, q := range qs {
		if t, ok := q.peekTime(); ok && t < best {
			best = t
		}
	}
	return best
}

func (p *threadKeyedPolicy) Stats() Stats {
	return p.counters.snapshot()
}
