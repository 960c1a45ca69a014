package kernel

// Signal numbers, matching the familiar POSIX values so exit codes stay
// recognizable to anyone who has shelled into a Unix box.
const (
	sigInterrupt int32 = 2
	sigTerminate int32 = 15
)

// Signal is a signal number delivered through Process.Signal /
// Runtime-level signal helpers. Any value is latched verbatim; only
// SigInterrupt and SigTerminate short-circuit a pending awaiter.
type Signal int32

const (
	SigInterrupt Signal = Signal(sigInterrupt)
	SigTerminate Signal = Signal(sigTerminate)
)

func (s Signal) String() string {
	switch s {
	case SigInterrupt:
		return "SIGINT"
	case SigTerminate:
		return "SIGTERM"
	default:
		return "SIG?"
	}
}

// Exit codes a task sees reflected back once its process finalizes after
// being resumed with SignalInterrupt/SignalTerminate and choosing to honor
// it (128+signal, the common shell convention).
const (
	ExitInterrupted int32 = 130
	ExitTerminated  int32 = 143
)

// SignalHandler decides what happens when a signal reaches a process.
// Every process starts with DefaultSignalHandler; a task may install its
// own via Process.SetSignalHandler, which replaces the default outright, so
// children are signaled only if the replacement calls DefaultSignalHandler
// itself.
type SignalHandler func(p *Process, sig Signal)

// DefaultSignalHandler forwards the signal to every direct child, mirroring
// what a process-group-less shell does: nothing stops at the parent.
func DefaultSignalHandler(p *Process, sig Signal) {
	for _, childPID := range p.Children() {
		if child, ok := p.table.Get(childPID); ok {
			child.Signal(sig)
		}
	}
}
