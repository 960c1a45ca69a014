// Package kernel implements the cooperative process table, scheduler and
// signal/pipe machinery of an embeddable pseudo-OS: named ready queues, a
// reified suspension protocol (Awaiter), single-producer/single-consumer
// byte streams with EOF semantics, and process spawn/pipeline wiring. It
// has no knowledge of the virtual filesystem layered on top by package
// vfs, nor of the HTTP admin surface in package httpapi — both build on
// the exported Kernel facade in this file.
package kernel

import (
	"errors"
	"time"

	"go.uber.org/zap"
)

// ErrCommandNotFound is returned by Spawn when args[0] has no registered
// TaskFunc.
var ErrCommandNotFound = errors.New("kernel: command not found")

// ErrPIDSpaceExhausted is returned by Spawn once the 32-bit PID space
// (minus the reserved sentinel) has been fully allocated for the lifetime
// of this Kernel.
var ErrPIDSpaceExhausted = errors.New("kernel: pid space exhausted")

// ErrWrongThread is returned by Spawn when it is called from a goroutine
// other than the scheduler's recorded main thread (or the goroutine of a
// task currently resumed as part of a MAIN handoff). Callers outside that
// set must go through Kernel.RunOnMainThread instead.
var ErrWrongThread = errors.New("kernel: spawn called from a thread other than the scheduler's main thread")

// PreExecHook lets an embedder rewrite (or reject) a process's argv/env
// just before it is registered, e.g. to inject ambient environment
// variables or enforce an allowlist. Returning a non-nil error aborts the
// spawn before any PID is consumed.
type PreExecHook func(args []string, env map[string]string) ([]string, map[string]string, error)

// Kernel is the owning struct for one pseudo-OS instance: its process
// table, named queues, PID space and command registry, plus the global
// command map and pre-exec hook as fields rather than package-level
// globals, so more than one Kernel can exist in a process. Runtime (see
// the runtime package) layers the embedding-facing API and VFS on top of
// this.
type Kernel struct {
	Table    *ProcessTable
	Queues   *QueueSet
	Commands *CommandRegistry

	pids      *pidAllocator
	scheduler *Scheduler
	log       *zap.Logger

	guard   *mainThreadGuard
	mailbox chan mainThreadJob

	preExec PreExecHook
}

// New constructs an empty Kernel: a table with nothing registered, the
// MAIN queue, and no commands. log is scoped per-process as each Process
// is created.
func New(log *zap.Logger) *Kernel {
	table := newProcessTable()
	queues := newQueueSet()
	pids := newPIDAllocator()
	guard := &mainThreadGuard{}
	mailbox := make(chan mainThreadJob, 64)
	return &Kernel{
		Table:     table,
		Queues:    queues,
		Commands:  newCommandRegistry(),
		pids:      pids,
		scheduler: newScheduler(table, queues, pids, log, guard, mailbox),
		log:       log,
		guard:     guard,
		mailbox:   mailbox,
	}
}

// SetPreExecHook installs (or, with nil, clears) the spawn-time argv/env
// rewrite hook.
func (k *Kernel) SetPreExecHook(hook PreExecHook) { k.preExec = hook }

// Tick drains one sweep of queueName. See Scheduler.Tick.
func (k *Kernel) Tick(queueName string) { k.scheduler.Tick(queueName) }

// TickMain is shorthand for Tick(MainQueue), the sweep that also reaps.
func (k *Kernel) TickMain() { k.scheduler.Tick(MainQueue) }

// TickFor repeats TickMain until d elapses or maxIterations sweeps have
// run (maxIterations <= 0 means time is the only budget), returning the
// number of processes still resident when it stops.
func (k *Kernel) TickFor(d time.Duration, maxIterations int) int {
	return k.scheduler.TickFor(MainQueue, d, maxIterations)
}

// RunOnMainThread runs fn on the goroutine the scheduler has recorded as
// the main one — the only goroutine permitted to call Spawn once a MAIN
// tick has happened. Called from that goroutine itself (or before any
// MAIN tick has occurred at all, when there is nothing yet to protect),
// fn runs inline. Called from any other goroutine — an HTTP handler's own
// goroutine, say — fn is queued and this call blocks until the next MAIN
// tick drains and runs it. This is the fast-path/slow-path dispatch a
// single-threaded event loop uses to let foreign goroutines submit work
// safely, applied here so embedders outside the tick loop (httpapi) can
// still call Spawn-family methods without tripping ErrWrongThread.
func (k *Kernel) RunOnMainThread(fn func()) {
	if k.guard.allows(getGoroutineID()) {
		fn()
		return
	}
	done := make(chan struct{})
	k.mailbox <- mainThreadJob{fn: fn, done: done}
	<-done
}

// Bgrunner starts a dedicated "host thread" goroutine that drains
// queueName whenever it is nonempty, blocking on that queue's wake
// semaphore between drains. This is the one way a queue other than MAIN
// gets ticked without the embedding host's own loop doing it. A task
// migrated onto such a queue must not touch data owned by the main thread
// except through the Stream mutex or by hopping back via RunOnMainThread;
// Bgrunner itself only ever calls Tick, never Spawn, so it never needs the
// main-thread guard's allowance. The returned stop func halts the worker;
// it does not drain or reassign whatever awaiters remain queued.
func (k *Kernel) Bgrunner(queueName string) (stop func()) {
	k.Queues.Create(queueName)
	q := k.Queues.get(queueName)
	done := make(chan struct{})
	go func() {
		for {
			select {
			case <-done:
				return
			case <-q.wake:
				k.Tick(queueName)
				for k.Queues.Len(queueName) > 0 {
					select {
					case <-done:
						return
					default:
						k.Tick(queueName)
					}
				}
			}
		}
	}()
	return func() { close(done) }
}

// SpawnOptions configures a single Spawn call. Queue defaults to MainQueue
// and In/Out default to freshly allocated streams when left nil.
type SpawnOptions struct {
	Parent PID
	Queue  string
	Env    map[string]string
	In     *Stream
	Out    *Stream
}

// Spawn registers a new process and schedules its bootstrap awaiter onto
// opts.Queue (MainQueue if unset). args may lead with NAME=VALUE tokens
// (see SplitArgsEnv); those are stripped into the process's environment,
// merged over opts.Env (a token wins over the same key in opts.Env),
// before argv[0] is looked up in the command
// registry. If, after stripping, argv is empty, the spawn still succeeds:
// the resulting process runs a no-op task that returns 0 immediately, the
// "set env only" case. It does not itself run any task code — the task's
// goroutine is only started the first time the scheduler polls the
// bootstrap awaiter.
//
// Spawn may only be called from the scheduler's recorded main thread (or
// the goroutine of a task currently resumed via a MAIN handoff, the usual
// case of a TaskFunc calling SubSpawn on itself); any other caller gets
// ErrWrongThread and should route through Kernel.RunOnMainThread instead.
func (k *Kernel) Spawn(args []string, opts SpawnOptions) (PID, error) {
	if !k.guard.allows(getGoroutineID()) {
		return InvalidPID, ErrWrongThread
	}

	stripped, argv := SplitArgsEnv(args)
	env := mergeEnv(opts.Env, stripped)

	if k.preExec != nil {
		rewritten, rewrittenEnv, err := k.preExec(argv, env)
		if err != nil {
			return InvalidPID, err
		}
		argv, env = rewritten, rewrittenEnv
	}

	var task TaskFunc
	if len(argv) == 0 {
		task = noopTask
	} else {
		found, ok := k.Commands.Lookup(argv[0])
		if !ok {
			return InvalidPID, ErrCommandNotFound
		}
		task = found
	}

	pid := k.pids.alloc()
	if pid == InvalidPID {
		return InvalidPID, ErrPIDSpaceExhausted
	}

	queue := opts.Queue
	if queue == "" {
		queue = MainQueue
	}

	in := opts.In
	if in == nil {
		in = NewStream()
	}
	out := opts.Out
	if out == nil {
		out = NewStream()
	}

	proc := newProcess(pid, opts.Parent, argv, env, in, out, queue, task, k.Table, k.procLogger(pid), k.guard)
	k.Table.register(proc)

	if parent, ok := k.Table.Get(opts.Parent); ok {
		parent.addChild(pid)
	}

	k.Queues.enqueue(bootstrapAwaiter(pid, queue))
	return pid, nil
}

// noopTask is the task a process with an empty argv (after env-stripping)
// runs: it does nothing and exits 0 on its very first scheduling, the
// "set env only" boundary case.
func noopTask(p *Process) int32 { return 0 }

func (k *Kernel) procLogger(pid PID) *zap.Logger {
	if k.log == nil {
		return zap.NewNop()
	}
	return k.log.Named("proc").With(zap.Uint32("pid", uint32(pid)))
}

// bootstrapAwaiter is always immediately ready; it exists purely so a
// freshly spawned process enters the normal poll-then-start path on its
// very first queue sweep instead of needing a special case in Tick.
func bootstrapAwaiter(pid PID, queue string) *Awaiter {
	return &Awaiter{
		PID:         pid,
		TargetQueue: queue,
		Predicate:   func(a *Awaiter) bool { a.Result = Success; return true },
	}
}

// PipelineStage is one command in a SpawnPipeline call.
type PipelineStage struct {
	Args []string
	Env  map[string]string
}

// SpawnPipeline spawns len(stages) processes, wiring each stage's stdout
// directly to the next stage's stdin (the same *Stream object — there is
// no intermediate copy). The first stage always gets a fresh stdin and the
// last stage a fresh stdout; the caller cannot supply its own streams for
// either end.
func (k *Kernel) SpawnPipeline(stages []PipelineStage, parent PID, queue string) ([]PID, error) {
	if len(stages) == 0 {
		return nil, errors.New("kernel: pipeline requires at least one stage")
	}

	pids := make([]PID, 0, len(stages))
	var prevOut *Stream

	for i, stage := range stages {
		in := prevOut
		if in == nil {
			in = NewStream()
		}

		var out *Stream
		if i == len(stages)-1 {
			out = NewStream()
		} else {
			out = NewStream()
			out.AddRef() // held by this stage and the next stage's stdin
		}

		pid, err := k.Spawn(stage.Args, SpawnOptions{
			Parent: parent,
			Queue:  queue,
			Env:    stage.Env,
			In:     in,
			Out:    out,
		})
		if err != nil {
			return pids, err
		}
		pids = append(pids, pid)
		prevOut = out
	}

	return pids, nil
}

// SubSpawn spawns args as a child of parent, inheriting parent's queue
// unless overridden. It is the convenience a TaskFunc calls to fork work
// without reaching back into the owning Kernel directly.
func (k *Kernel) SubSpawn(parent *Process, args []string, env map[string]string) (PID, error) {
	return k.Spawn(args, SpawnOptions{Parent: parent.pid, Queue: parent.QueueName(), Env: env})
}

// Signal delivers sig to pid, if it is still resident.
func (k *Kernel) Signal(pid PID, sig Signal) bool {
	p, ok := k.Table.Get(pid)
	if !ok {
		return false
	}
	p.Signal(sig)
	return true
}

// Kill forcibly terminates pid without giving its task a chance to unwind.
func (k *Kernel) Kill(pid PID) bool {
	p, ok := k.Table.Get(pid)
	if !ok {
		return false
	}
	p.Kill()
	return true
}

// TerminateAll delivers SIG_TERMINATE to every resident process.
func (k *Kernel) TerminateAll() {
	for _, p := range k.Table.Snapshot() {
		p.Signal(SigTerminate)
	}
}

// Destroy tears the whole process table down: it repeatedly delivers
// SIG_TERMINATE and ticks MAIN, giving cooperative tasks a chance to
// unwind, then force-kills whatever is still resident after maxTicks
// sweeps. Intended for embedder shutdown, not for routine use.
func (k *Kernel) Destroy(maxTicks int) {
	for i := 0; i < maxTicks && k.Table.Len() > 0; i++ {
		k.TerminateAll()
		k.TickMain()
	}
	for _, p := range k.Table.Snapshot() {
		p.Kill()
	}
	k.TickMain()
}
