package kernel

import (
	"runtime"
	"strconv"
	"sync/atomic"
)

// getGoroutineID parses this goroutine's id out of its own stack trace
// header ("goroutine N [running]:..."), the usual way Go code approximates
// goroutine-local identity since the runtime exposes no public handle for
// it. Used only to compare against previously-recorded ids, never
// persisted across a goroutine's lifetime.
func getGoroutineID() uint64 {
	var buf [64]byte
	n := runtime.Stack(buf[:], false)
	field := buf[len("goroutine "):n]
	for i, b := range field {
		if b < '0' || b > '9' {
			field = field[:i]
			break
		}
	}
	id, _ := strconv.ParseUint(string(field), 10, 64)
	return id
}

// mainThreadGuard enforces the invariant that spawn is only permitted
// from the scheduler's main thread: the goroutine that first ticks MAIN is
// latched as that thread, and the goroutine currently resumed as part of a
// MAIN-queue handoff (a TaskFunc calling SubSpawn on itself, say) is
// latched too, for the duration of that handoff only.
type mainThreadGuard struct {
	mainGoroutine   atomic.Uint64
	activeGoroutine atomic.Uint64
}

// recordMain latches the calling goroutine as the main one, once; later
// calls from a different goroutine never move it.
func (g *mainThreadGuard) recordMain() {
	g.mainGoroutine.CompareAndSwap(0, getGoroutineID())
}

func (g *mainThreadGuard) setActive(id uint64)   { g.activeGoroutine.Store(id) }
func (g *mainThreadGuard) clearActive(id uint64) { g.activeGoroutine.CompareAndSwap(id, 0) }

// allows reports whether the goroutine id may call Spawn directly: either
// no MAIN tick has happened yet (nothing to protect), id is the recorded
// main goroutine, or id is the goroutine currently running as part of a
// MAIN-queue task handoff. Anything else must go through
// Kernel.RunOnMainThread.
func (g *mainThreadGuard) allows(id uint64) bool {
	main := g.mainGoroutine.Load()
	if main == 0 || id == main {
		return true
	}
	return id != 0 && id == g.activeGoroutine.Load()
}

// mainThreadJob is one closure submitted via Kernel.RunOnMainThread from a
// goroutine the guard doesn't already allow; it waits in Kernel.mailbox
// until the next MAIN tick drains it.
type mainThreadJob struct {
	fn   func()
	done chan struct{}
}
