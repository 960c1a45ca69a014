package kernel

import (
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/rkvdev/pnix/pkg/logbuffer"
)

// logBufferCapacity bounds the per-process ring buffer the admin API's
// log-tail endpoint reads from, a fixed-capacity circular buffer sized the
// same as the one every process kept historically, just generalized to a
// named constant instead of an inline literal.
const logBufferCapacity = 500

// ExitKilled is the exit code recorded for a process torn down via Kill,
// which never gives the task a chance to choose its own exit code.
const ExitKilled int32 = -1

// TaskFunc is the body of a process. It receives the Process itself as its
// suspension/IO handle and runs until it returns (or is resumed with a
// signal result it chooses to honor and unwind from). Unlike an OS thread,
// a TaskFunc is never preempted: it holds the single cooperative "CPU"
// until it calls one of Process's Yield/YieldFor/AwaitData/AwaitLine/
// AwaitFinished methods or returns.
type TaskFunc func(p *Process) int32

// exitCell is the shared, write-once exit code cell a process and anything
// waiting on it (a "finished" awaiter, a parent reading a child's result)
// observe in common.
type exitCell struct {
	mu    sync.Mutex
	valid bool
	code  int32
}

func (c *exitCell) set(code int32) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.valid {
		c.valid = true
		c.code = code
	}
}

func (c *exitCell) get() (int32, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.code, c.valid
}

// Process is one entry in the process table: its arguments, environment,
// pipe endpoints, family tree and run state, plus the channel pair that
// implements the suspend/resume handoff with its task goroutine.
//
// A Process's task runs in its own goroutine, but only one of {that
// goroutine, the scheduler goroutine driving it} is ever actually running
// at a time — resume() and suspend() rendezvous on unbuffered channels, so
// control passes back and forth exactly like a coroutine yielding to its
// caller. Go has no stackful coroutine primitive, so a parked goroutine
// blocked on a channel receive stands in for a suspended frame.
type Process struct {
	pid       PID
	parentPID PID
	args      []string
	env       map[string]string

	in  *Stream
	out *Stream

	queueName string
	queueMu   sync.RWMutex

	childrenMu sync.Mutex
	children   []PID

	exitCode        *exitCell
	lastSignal      atomic.Int32
	isComplete      atomic.Bool
	forceTerminate  atomic.Bool
	shouldRemove    atomic.Bool
	hasBeenSignaled atomic.Bool

	signalMu      sync.RWMutex
	signalHandler SignalHandler

	log   *zap.Logger
	table *ProcessTable
	now   func() time.Time
	logs  *logbuffer.Buffer
	guard *mainThreadGuard

	task     TaskFunc
	started  bool
	resumeCh chan AwaiterResult
	stepCh   chan *Awaiter
}

func newProcess(pid, parentPID PID, args []string, env map[string]string, in, out *Stream, queue string, task TaskFunc, table *ProcessTable, log *zap.Logger, guard *mainThreadGuard) *Process {
	return &Process{
		pid:           pid,
		parentPID:     parentPID,
		args:          args,
		env:           env,
		in:            in,
		out:           out,
		queueName:     queue,
		exitCode:      &exitCell{},
		signalHandler: DefaultSignalHandler,
		log:           log,
		table:         table,
		now:           time.Now,
		logs:          logbuffer.New(logBufferCapacity),
		guard:         guard,
		task:          task,
		resumeCh:      make(chan AwaiterResult),
		stepCh:        make(chan *Awaiter),
	}
}

// --- accessors used by task bodies ------------------------------------------

func (p *Process) PID() PID            { return p.pid }
func (p *Process) ParentPID() PID      { return p.parentPID }
func (p *Process) Args() []string      { return p.args }
func (p *Process) Stdin() *Stream      { return p.in }
func (p *Process) Stdout() *Stream     { return p.out }
func (p *Process) Logger() *zap.Logger { return p.log }

// Logs returns the ring buffer of lines this process has written via
// Println, for the admin API's log-tail endpoint. It is populated only by
// Println, not by raw Stdout().Put calls — a task that writes directly to
// its stream bypasses log capture.
func (p *Process) Logs() *logbuffer.Buffer { return p.logs }

// Println writes line plus a trailing newline to stdout and records line
// in the log ring buffer in one call, the usual way a task body produces
// output that should also be visible through the admin API without the
// caller threading both writes through separately.
func (p *Process) Println(line string) {
	p.out.PutString(line)
	p.out.Put('\n')
	p.logs.Append(line)
}

func (p *Process) Env(key string) (string, bool) {
	v, ok := p.env[key]
	return v, ok
}

func (p *Process) EnvAll() map[string]string {
	out := make(map[string]string, len(p.env))
	for k, v := range p.env {
		out[k] = v
	}
	return out
}

func (p *Process) QueueName() string {
	p.queueMu.RLock()
	defer p.queueMu.RUnlock()
	return p.queueName
}

func (p *Process) setQueueName(name string) {
	p.queueMu.Lock()
	p.queueName = name
	p.queueMu.Unlock()
}

func (p *Process) Children() []PID {
	p.childrenMu.Lock()
	defer p.childrenMu.Unlock()
	out := make([]PID, len(p.children))
	copy(out, p.children)
	return out
}

func (p *Process) addChild(pid PID) {
	p.childrenMu.Lock()
	p.children = append(p.children, pid)
	p.childrenMu.Unlock()
}

func (p *Process) removeChild(pid PID) {
	p.childrenMu.Lock()
	defer p.childrenMu.Unlock()
	for i, c := range p.children {
		if c == pid {
			p.children = append(p.children[:i], p.children[i+1:]...)
			return
		}
	}
}

// SetSignalHandler overrides the default propagate-to-children behavior.
func (p *Process) SetSignalHandler(h SignalHandler) {
	p.signalMu.Lock()
	p.signalHandler = h
	p.signalMu.Unlock()
}

func (p *Process) signalHandlerFn() SignalHandler {
	p.signalMu.RLock()
	defer p.signalMu.RUnlock()
	return p.signalHandler
}

// LastSignal reports the most recently latched signal, if any.
func (p *Process) LastSignal() (Signal, bool) {
	v := p.lastSignal.Load()
	if v == 0 {
		return 0, false
	}
	return Signal(v), true
}

func (p *Process) lastSignalValue() int32 { return p.lastSignal.Load() }

// Signal latches sig on this process and invokes its signal handler,
// guarded by hasBeenSignaled against reentry: if the handler (directly, or
// via something it calls) signals this same process again before
// returning, that nested call only updates last_signal and does not
// re-invoke the handler. It does not by itself wake a suspended task — the
// scheduler's next poll of that task's pending awaiter observes the latch
// via Awaiter.Ready and short-circuits to SignalInterrupt/SignalTerminate.
func (p *Process) Signal(sig Signal) {
	p.lastSignal.Store(int32(sig))
	if !p.hasBeenSignaled.CompareAndSwap(false, true) {
		return
	}
	p.signalHandlerFn()(p, sig)
	p.hasBeenSignaled.Store(false)
}

// HasBeenSignaled reports whether this process's signal handler is
// currently running (true only for the dynamic extent of a Signal call,
// not a sticky historical flag — see LastSignal for that).
func (p *Process) HasBeenSignaled() bool { return p.hasBeenSignaled.Load() }

// Kill forces termination without resuming the task: the scheduler's reap
// pass finalizes the process directly and the task's goroutine, if it is
// parked mid-suspend, is simply abandoned there. This mirrors the absence
// of any "destroy this coroutine frame" operation in the originating
// model; an abandoned goroutine stays blocked on its resume channel for
// the rest of the program's life.
func (p *Process) Kill() {
	p.forceTerminate.Store(true)
	p.shouldRemove.Store(true)
}

func (p *Process) ForceTerminate() bool { return p.forceTerminate.Load() }
func (p *Process) ShouldRemove() bool   { return p.shouldRemove.Load() }
func (p *Process) IsComplete() bool     { return p.isComplete.Load() }

// Finished reports whether this process will never run again, whether it
// got there by returning from its task or by being killed. Anything
// waiting on it via AwaitFinished treats both the same way.
func (p *Process) Finished() bool {
	return p.isComplete.Load() || p.forceTerminate.Load()
}

// finalizeKilled records a forced exit code (if the task hadn't already
// set one on its own, which can race a Kill delivered just as the task
// was returning) and releases the output stream, without ever touching
// the suspend/resume channel pair — the task's goroutine, if any is
// parked mid-suspend, is simply abandoned.
func (p *Process) finalizeKilled() {
	p.exitCode.set(ExitKilled)
	p.out.Release()
}

// ExitCode returns the process's exit code once it has completed.
func (p *Process) ExitCode() (int32, bool) { return p.exitCode.get() }

// --- suspension protocol -----------------------------------------------------

// suspend hands aw to the scheduler and blocks until resumed. It clears
// this goroutine's main-thread-guard "active" mark before blocking (it is
// no longer running) and re-marks it, if the queue it's about to resume on
// is MAIN, once woken.
func (p *Process) suspend(aw *Awaiter) AwaiterResult {
	p.guard.clearActive(getGoroutineID())
	p.stepCh <- aw
	result := <-p.resumeCh
	p.markActiveIfMain()
	return result
}

// markActiveIfMain flags this goroutine as the one currently permitted to
// call Spawn, but only when it is about to run a handoff on MAIN — the one
// queue the process table's invariants assume a single thread drives.
func (p *Process) markActiveIfMain() {
	if p.QueueName() == MainQueue {
		p.guard.setActive(getGoroutineID())
	}
}

// Yield suspends for exactly one scheduler sweep of queue.
func (p *Process) Yield(queue string) AwaiterResult {
	p.setQueueName(queue)
	return p.suspend(yieldAwaiter(p.pid, queue))
}

// YieldFor suspends until the wall clock advances by at least d.
func (p *Process) YieldFor(queue string, d time.Duration) AwaiterResult {
	p.setQueueName(queue)
	return p.suspend(yieldForAwaiter(p.pid, queue, d, p.now))
}

// AwaitData suspends until s has a buffered byte or reaches end-of-stream.
func (p *Process) AwaitData(queue string, s *Stream) AwaiterResult {
	p.setQueueName(queue)
	return p.suspend(hasDataAwaiter(p.pid, queue, s))
}

// AwaitLine suspends until a full line has accumulated in buf, or s
// reaches end-of-stream with a partial trailing line.
func (p *Process) AwaitLine(queue string, s *Stream, buf *[]byte) AwaiterResult {
	p.setQueueName(queue)
	return p.suspend(readLineAwaiter(p.pid, queue, s, buf))
}

// AwaitFinished suspends until every listed pid is no longer running.
func (p *Process) AwaitFinished(queue string, pids ...PID) AwaiterResult {
	p.setQueueName(queue)
	return p.suspend(finishedAwaiter(p.pid, queue, p.table, pids))
}

// start launches the task goroutine the first time this process is
// scheduled, and blocks for its first handoff (first suspend, or an
// immediate return). Subsequent handoffs go through resume.
func (p *Process) start() *Awaiter {
	p.started = true
	go func() {
		p.markActiveIfMain()
		code := p.task(p)
		p.guard.clearActive(getGoroutineID())
		p.finish(code)
		p.stepCh <- nil
	}()
	return <-p.stepCh
}

// resume wakes a suspended task with result and blocks for its next
// handoff (its next suspend, or completion).
func (p *Process) resume(result AwaiterResult) *Awaiter {
	p.resumeCh <- result
	return <-p.stepCh
}

// finish records the exit code and releases the output stream's hold,
// letting a downstream pipeline neighbor observe implicit closure.
func (p *Process) finish(code int32) {
	p.exitCode.set(code)
	p.isComplete.Store(true)
	p.shouldRemove.Store(true)
	p.out.Release()
}
