// Package topology models the host/edge graph backing the controller's
// window-growth bound: the minimum one-way edge latency anywhere in the
// network, which no causal chain of events can cross faster than. The
// package does no shortest-path routing between specific host pairs; the
// window bound only needs a conservative lower bound, and the smallest
// edge latency in the whole graph always is one.
package topology

import (
	"fmt"

	"github.com/vnetsim/vnetsim-core/event"
	"github.com/vnetsim/vnetsim-core/vtime"
)

// Edge is a one-way link between two hosts with a fixed latency.
type Edge struct {
	From      event.HostID
	To        event.HostID
	LatencyNS vtime.SimulationTime
}

// Graph is an adjacency list of latency-weighted directed edges.
type Graph struct {
	edges []Edge
	byHost map[event.HostID][]Edge
}

// New returns an empty graph.
func New() *Graph {
	return &Graph{byHost: make(map[event.HostID][]Edge)}
}

// AddEdge adds a one-way link. Latency must be positive: a zero-latency
// edge would let causal chains propagate instantaneously, breaking the
// window bound this package exists to compute.
func (g *Graph) AddEdge(from, to event.HostID, latency vtime.SimulationTime) error {
	if latency == 0 {
		return fmt.Errorf("topology: edge %d->%d has zero latency", from, to)
	}
	e := Edge{From: from, To: to, LatencyNS: latency}
	g.edges = append(g.edges, e)
	g.byHost[from] = append(g.byHost[from], e)
	return nil
}

// EdgesFrom returns the outbound edges of host h, in the order they were
// added.
func (g *Graph) EdgesFrom(h event.HostID) []Edge {
	return g.byHost[h]
}

// Len reports the number of edges in the graph.
func (g *Graph) Len() int { return len(g.edges) }

// MinPathLatency returns the smallest edge latency anywhere in the graph:
// a conservative lower bound on how quickly any causal effect can cross the
// network. If the graph has no edges (a single-host simulation, or one
// whose hosts never communicate), there is no such bound; callers should
// treat that as "grow the window straight to end_time".
func (g *Graph) MinPathLatency() (vtime.SimulationTime, bool) {
	if len(g.edges) == 0 {
		return 0, false
	}
	min := g.edges[0].LatencyNS
	for _, e := range g.edges[1:] {
		if e.LatencyNS < min {
			min = e.LatencyNS
		}
	}
	return min, true
}
