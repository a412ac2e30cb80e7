// Package workload generates external packet arrivals as a Poisson
// process, injecting them into a scheduling policy the same way any other
// host-to-host event is injected, just with no sender host behind them.
package workload

import (
	"math/rand"

	"gonum.org/v1/gonum/stat/distuv"
	exprand "golang.org/x/exp/rand"

	"github.com/vnetsim/vnetsim-core/event"
	"github.com/vnetsim/vnetsim-core/vtime"
)

// expRandSource adapts a math/rand.Source to the golang.org/x/exp/rand.Source
// interface that gonum's distuv package requires.
type expRandSource struct {
	src rand.Source
}

func (s expRandSource) Uint64() uint64 {
	return uint64(s.src.Int63())
}

func (s expRandSource) Seed(seed uint64) {
	s.src.Seed(int64(seed))
}

var _ exprand.Source = expRandSource{}

// Pusher is the subset of policy.Policy the generator needs; kept narrow so
// tests can supply a recording fake without building a full policy.
type Pusher interface {
	Push(sender, receiver event.HostID, time vtime.SimulationTime, payload any)
}

// Generator produces arrivals for a single receiving host at a fixed mean
// rate (arrivals per nanosecond of simulation time).
type Generator struct {
	pusher   Pusher
	receiver event.HostID
	rate     float64
	endTime  vtime.SimulationTime
	src      rand.Source
}

// New builds a Generator. src should come from an rng.Partitioned stream
// dedicated to workload generation, so runs with the same master seed
// reproduce the same arrival sequence regardless of what else draws
// randomness.
func New(pusher Pusher, receiver event.HostID, ratePerNS float64, endTime vtime.SimulationTime, src rand.Source) *Generator {
	return &Generator{pusher: pusher, receiver: receiver, rate: ratePerNS, endTime: endTime, src: src}
}

// Generate produces arrivals until the running clock reaches end_time,
// calling payloadFn once per arrival (with a zero-based sequence number) to
// build that arrival's payload, and returns how many were produced.
//
// Arrival times are strictly increasing: an exponential gap that rounds
// below one nanosecond is bumped to the next nanosecond.
func (g *Generator) Generate(payloadFn func(n int) any) int {
	dist := distuv.Exponential{Rate: g.rate, Src: expRandSource{g.src}}
	var clock float64
	var last vtime.SimulationTime
	n := 0
	for {
		clock += dist.Rand()
		t := vtime.SimulationTime(clock)
		if n > 0 && t <= last {
			t = last + 1
		}
		if t >= g.endTime {
			return n
		}
		g.pusher.Push(event.ExternalSenderID, g.receiver, t, payloadFn(n))
		last = t
		n++
	}
}
