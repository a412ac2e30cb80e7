// Package rng provides deterministic, order-independent random streams
// partitioned by subsystem, so that re-running a simulation with the same
// master seed reproduces the same topology, workload, and tie-breaking
// decisions regardless of what order subsystems first ask for a stream.
package rng

import (
	"hash/fnv"
	"math/rand"
	"sync"
)

// Subsystem name constants for the streams this module draws on.
const (
	SubsystemTopology = "topology"
	SubsystemWorkload = "workload"
	SubsystemShuffle  = "shuffle"
)

// Partitioned hands out one *rand.Rand per subsystem name, each seeded
// deterministically from a master seed XORed with a hash of the name, so
// the seed for "workload" never depends on whether "topology" was drawn
// from first.
type Partitioned struct {
	masterSeed int64

	mu         sync.Mutex
	subsystems map[string]*rand.Rand
}

// New creates a partitioned RNG rooted at masterSeed.
func New(masterSeed int64) *Partitioned {
	return &Partitioned{
		masterSeed: masterSeed,
		subsystems: make(map[string]*rand.Rand),
	}
}

// ForSubsystem returns the RNG for name, creating it on first use. Repeated
// calls with the same name return the same instance, so callers that draw
// multiple values across a run see a single continuing stream.
func (p *Partitioned) ForSubsystem(name string) *rand.Rand {
	p.mu.Lock()
	defer p.mu.Unlock()
	if r, ok := p.subsystems[name]; ok {
		return r
	}
	r := rand.New(rand.NewSource(p.deriveSeed(name)))
	p.subsystems[name] = r
	return r
}

// ForHost is a convenience wrapper for per-host streams (e.g. jitter on an
// individual host's workload), namespaced under "host_<name>".
func (p *Partitioned) ForHost(name string) *rand.Rand {
	return p.ForSubsystem("host_" + name)
}

func (p *Partitioned) deriveSeed(name string) int64 {
	h := fnv.New64a()
	_, _ = h.Write([]byte(name))
	return p.masterSeed ^ int64(h.Sum64())
}
