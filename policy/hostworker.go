package policy

import (
	"sync/atomic"

	"github.com/vnetsim/vnetsim-core/event"
	"github.com/vnetsim/vnetsim-core/host"
	"github.com/vnetsim/vnetsim-core/hostqueue"
	"github.com/vnetsim/vnetsim-core/vtime"
)

// hostPolicy implements both the "host" and "steal" tags: each host
// belongs to exactly one worker for its whole lifetime, and owns its own
// hostqueue.Queue. The two tags differ only in whether a worker with an
// empty ready queue may take over a peer's share for the round (see the
// lp package); the routing rule here is identical, so "steal" is
// constructed from the same type.
type hostPolicy struct {
	cfg         Config
	assignedTo  map[hostqueue.WorkerID][]*host.Host
	externalSeq atomic.Uint64
	counters    statCounters
}

func newHostPolicy(cfg Config) *hostPolicy {
	return &hostPolicy{
		cfg:        cfg,
		assignedTo: make(map[hostqueue.WorkerID][]*host.Host),
	}
}

func (p *hostPolicy) AssignHost(h *host.Host, w hostqueue.WorkerID) error {
	if err := h.AssignWorker(w); err != nil {
		return err
	}
	p.assignedTo[w] = append(p.assignedTo[w], h)
	return nil
}

func (p *hostPolicy) AssignedHosts(w hostqueue.WorkerID) []*host.Host {
	return p.assignedTo[w]
}

func (p *hostPolicy) Push(sender, receiver event.HostID, time vtime.SimulationTime, payload any) {
	recvHost := p.cfg.Registry.Get(receiver)
	if recvHost == nil {
		return
	}
	senderWorker := recvHost.Worker // external pushes count as same-worker: no clamp
	var seq uint64
	if sender == event.ExternalSenderID {
		seq = p.externalSeq.Add(1)
	} else if senderHost := p.cfg.Registry.Get(sender); senderHost != nil {
		senderWorker = senderHost.Worker
		seq = senderHost.NextSequence()
	} else {
		seq = p.externalSeq.Add(1)
	}
	var senderPtr *event.HostID
	if sender != event.ExternalSenderID {
		s := sender
		senderPtr = &s
	}
	e := &event.Event{
		Time:     time,
		Sequence: seq,
		Sender:   senderPtr,
		Receiver: receiver,
		Payload:  payload,
	}
	res := recvHost.Queue.Push(e, senderWorker, recvHost.Worker, p.cfg.barrierOf(), p.cfg.EndTime)
	p.counters.record(res)
}

func (p *hostPolicy) NextTime() vtime.SimulationTime {
	best := vtime.SimulationTime(vtime.Invalid)
	for _, hosts := range p.assignedTo {
		for _, h := range hosts {
			if head := h.Queue.Peek(); head != nil && head.Time < best {
				best = head.Time
			}
		}
	}
	return best
}

func (p *hostPolicy) Stats() Stats {
	return p.counters.snapshot()
}
