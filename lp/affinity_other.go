//go:build !linux

package lp

// PinCurrentThread is a no-op on non-Linux platforms: sched_setaffinity
// has no portable equivalent, and pinning is advisory everywhere.
func PinCurrentThread(cpuID int) {}
