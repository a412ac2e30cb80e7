// Package vtime provides the two disjoint nanosecond time types used
// throughout the simulation core: SimulationTime (virtual clock since sim
// start) and EmulatedTime (the wall-clock-shaped time exposed to managed
// hosts). See time.go for the arithmetic and invariants.
package vtime
