package host

import (
	"runtime"
	"sync"
	"sync/atomic"
)

// goid returns the calling goroutine's id, parsed from the runtime stack
// header ("goroutine N [running]:"). Ids start at 1, so 0 is free as the
// no-owner sentinel.
func goid() uint64 {
	var buf [64]byte
	n := runtime.Stack(buf[:], false)
	s := buf[len("goroutine "):n]
	var id uint64
	for i := 0; i < len(s) && s[i] >= '0' && s[i] <= '9'; i++ {
		id = id*10 + uint64(s[i]-'0')
	}
	return id
}

// recursiveMutex is a reentrant mutex: the goroutine holding it may lock
// it again without deadlocking, and the lock is released once Unlock has
// been called as many times as Lock.
type recursiveMutex struct {
	mu    sync.Mutex
	owner atomic.Uint64
	depth int
}

func (m *recursiveMutex) Lock() {
	id := goid()
	if m.owner.Load() == id {
		m.depth++
		return
	}
	m.mu.Lock()
	m.owner.Store(id)
	m.depth = 1
}

func (m *recursiveMutex) Unlock() {
	if m.owner.Load() != goid() {
		panic("host: Unlock called by a goroutine that does not hold the lock")
	}
	m.depth--
	if m.depth == 0 {
		m.owner.Store(0)
		m.mu.Unlock()
	}
}
