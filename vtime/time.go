package vtime

import "fmt"

// SimulationTime is virtual time since the simulation started, in
// nanoseconds. Valid range is [0, Invalid).
type SimulationTime uint64

// EmulatedTime is the time exposed to managed hosts: nanoseconds since the
// Unix epoch, offset so hosts observe a plausible wall-clock timestamp
// rather than a clock that starts at zero. Valid range is [Offset, Invalid).
type EmulatedTime uint64

// Offset is added to SimulationTime to produce EmulatedTime: nanoseconds
// between the Unix epoch and 2000-01-01 00:00:00 UTC.
const Offset EmulatedTime = 946_684_800 * 1_000_000_000

// Invalid is the sentinel shared by both time types. It is disjoint from
// every valid SimulationTime and every valid EmulatedTime (Offset > 0, so
// the two ranges never reach MaxUint64).
const Invalid uint64 = ^uint64(0)

// SimMax is the largest representable SimulationTime that still leaves room
// for the Offset when converted to EmulatedTime.
const SimMax SimulationTime = SimulationTime(Invalid) - SimulationTime(Offset)

// ToEmulated converts a SimulationTime to the EmulatedTime a host observes.
func ToEmulated(t SimulationTime) EmulatedTime {
	return Offset + EmulatedTime(t)
}

// ToSimulation is the inverse of ToEmulated. The Invalid sentinel maps to
// itself rather than underflowing against Offset.
func ToSimulation(t EmulatedTime) SimulationTime {
	if !t.IsValid() {
		return SimulationTime(Invalid)
	}
	return Sub(t, Offset)
}

// Sub returns the SimulationTime elapsed between two EmulatedTimes.
// Panics if minuend < subtrahend: time never runs backwards in this model.
func Sub(a, b EmulatedTime) SimulationTime {
	if a < b {
		panic(fmt.Sprintf("vtime: Sub(%d, %d): minuend precedes subtrahend", a, b))
	}
	return SimulationTime(a - b)
}

// Add returns the EmulatedTime reached after d has elapsed since t.
func Add(t EmulatedTime, d SimulationTime) EmulatedTime {
	return t + EmulatedTime(d)
}

// IsValid reports whether t is a real SimulationTime (not the sentinel).
func (t SimulationTime) IsValid() bool {
	return uint64(t) != Invalid
}

// IsValid reports whether t is a real EmulatedTime (not the sentinel, and
// at or past the epoch offset).
func (t EmulatedTime) IsValid() bool {
	return uint64(t) != Invalid && t >= Offset
}
