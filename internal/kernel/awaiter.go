package kernel

import "time"

// AwaiterResult is returned to a task whenever it resumes from suspension.
type AwaiterResult int

const (
	// Success means the awaiter's predicate became true on its own terms.
	Success AwaiterResult = iota
	// SignalInterrupt means the task was resumed early because SIG_INTERRUPT
	// was latched on its process; the predicate was never consulted.
	SignalInterrupt
	// SignalTerminate is the SIG_TERMINATE analogue of SignalInterrupt.
	SignalTerminate
	// EndOfStream means an I/O awaiter (HasData, ReadLine) observed that its
	// stream will produce no further bytes.
	EndOfStream
	// UnknownError is reserved for predicate-reported failures outside the
	// above cases; the standard awaiters in this package never produce it.
	UnknownError
)

func (r AwaiterResult) String() string {
	switch r {
	case Success:
		return "Success"
	case SignalInterrupt:
		return "SignalInterrupt"
	case SignalTerminate:
		return "SignalTerminate"
	case EndOfStream:
		return "EndOfStream"
	default:
		return "UnknownError"
	}
}

// Awaiter is a reified suspension point: a readiness predicate evaluated by
// the scheduler draining TargetQueue, plus the result the predicate (or the
// signal short-circuit) leaves for the resuming task.
//
// Predicate is called with the awaiter itself so it may stash extra state
// (e.g. a byte count) across polls of a single suspension.
type Awaiter struct {
	PID         PID
	Predicate   func(*Awaiter) bool
	TargetQueue string
	Result      AwaiterResult

	// set by standard constructors that need to carry extra closure state
	// across repeated predicate polls (e.g. a deadline, a line buffer).
	state any
}

// Ready evaluates the signal short-circuit followed by the predicate. It is
// the scheduler's sole entry point for polling an awaiter — user code never
// calls this directly.
func (a *Awaiter) Ready(sig int32) bool {
	switch sig {
	case sigInterrupt:
		a.Result = SignalInterrupt
		return true
	case sigTerminate:
		a.Result = SignalTerminate
		return true
	}
	return a.Predicate(a)
}

// --- standard awaiter constructors -----------------------------------------

// yieldAwaiter resolves false on its first poll and true on every poll
// after that, guaranteeing exactly one scheduler sweep of delay.
func yieldAwaiter(pid PID, queue string) *Awaiter {
	polled := false
	return &Awaiter{
		PID:         pid,
		TargetQueue: queue,
		Predicate: func(a *Awaiter) bool {
			if !polled {
				polled = true
				return false
			}
			a.Result = Success
			return true
		},
	}
}

// yieldForAwaiter resolves once the wall clock passes deadline.
func yieldForAwaiter(pid PID, queue string, d time.Duration, now func() time.Time) *Awaiter {
	deadline := now().Add(d)
	return &Awaiter{
		PID:         pid,
		TargetQueue: queue,
		Predicate: func(a *Awaiter) bool {
			if now().Before(deadline) {
				return false
			}
			a.Result = Success
			return true
		},
	}
}

// hasDataAwaiter resolves Success once s has a buffered byte, or EndOfStream
// once s is effectively closed and empty.
func hasDataAwaiter(pid PID, queue string, s *Stream) *Awaiter {
	return &Awaiter{
		PID:         pid,
		TargetQueue: queue,
		Predicate: func(a *Awaiter) bool {
			if s.HasBufferedData() {
				a.Result = Success
				return true
			}
			if s.IsEffectivelyClosed() {
				a.Result = EndOfStream
				return true
			}
			return false
		},
	}
}

// readLineAwaiter drains s into buf across polls, resolving Success once a
// full line (newline stripped) has accumulated, or EndOfStream once s
// closes with a partial (possibly empty) trailing line.
func readLineAwaiter(pid PID, queue string, s *Stream, buf *[]byte) *Awaiter {
	return &Awaiter{
		PID:         pid,
		TargetQueue: queue,
		Predicate: func(a *Awaiter) bool {
			switch s.ReadLine(buf) {
			case ReadLineFound:
				a.Result = Success
				return true
			case ReadLineEndOfStream:
				a.Result = EndOfStream
				return true
			default: // ReadLinePending
				return false
			}
		},
	}
}

// finishedAwaiter resolves once every pid in pids is no longer running.
func finishedAwaiter(pid PID, queue string, table *ProcessTable, pids []PID) *Awaiter {
	return &Awaiter{
		PID:         pid,
		TargetQueue: queue,
		Predicate: func(a *Awaiter) bool {
			for _, p := range pids {
				if table.IsRunning(p) {
					return false
				}
			}
			a.Result = Success
			return true
		},
	}
}
