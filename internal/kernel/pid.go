package kernel

import (
	"fmt"
	"sync"
)

// PID identifies a process within one Runtime instance.
type PID uint32

// InvalidPID is the sentinel returned by lookups and spawn failures.
const InvalidPID PID = 0xFFFFFFFF

// String renders the PID the way log lines and the admin API expect it.
func (p PID) String() string {
	if p == InvalidPID {
		return "invalid"
	}
	return fmt.Sprintf("%d", uint32(p))
}

// pidAllocator hands out strictly increasing PIDs starting at 1. Unlike the
// OS-process allocator this is adapted from, it never reuses a released
// PID within the lifetime of a Runtime: PIDs must stay unique for the
// process's entire run so stale references (e.g. a "finished" awaiter
// capturing a pid slice) can never be confused with a later, unrelated
// process that happens to reuse the same number.
type pidAllocator struct {
	mu   sync.Mutex
	next uint32
}

func newPIDAllocator() *pidAllocator {
	return &pidAllocator{next: 1}
}

// alloc returns the next PID, or InvalidPID if the 32-bit space (minus the
// reserved sentinel) is exhausted.
func (a *pidAllocator) alloc() PID {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.next == uint32(InvalidPID) {
		return InvalidPID
	}
	pid := PID(a.next)
	a.next++
	return pid
}
