// Package runtime is the embedding-facing facade over the cooperative
// kernel and virtual filesystem: the one owning struct an embedder
// constructs, configures, and drives. See cmd/pnixd for a reference host.
package runtime

import (
	"time"

	"go.uber.org/zap"

	"github.com/rkvdev/pnix/internal/kernel"
	"github.com/rkvdev/pnix/internal/vfs"
)

// Runtime owns one kernel.Kernel and one vfs.VFS and exposes the surface
// an embedder (or the httpapi admin layer) needs, without handing out the
// internal packages directly.
type Runtime struct {
	cfg Config
	k   *kernel.Kernel
	fs  *vfs.VFS
}

// New constructs a Runtime. With no options, it gets a development zap
// logger and picks up PNIX_HTTP_ADDR / PNIX_ADMIN_TOKEN / PNIX_REDIS_ADDR
// from the environment for anything an Option didn't already set.
func New(opts ...Option) *Runtime {
	cfg := Config{}
	for _, opt := range opts {
		opt(&cfg)
	}
	envDefaults(&cfg)
	if cfg.Logger == nil {
		cfg.Logger, _ = zap.NewDevelopment()
	}

	return &Runtime{
		cfg: cfg,
		k:   kernel.New(cfg.Logger),
		fs:  vfs.New(),
	}
}

// Kernel exposes the underlying process table/scheduler for callers (such
// as cmd/pnixd's tick loop) that need lower-level access than this facade
// provides.
func (rt *Runtime) Kernel() *kernel.Kernel { return rt.k }

// VFS exposes the underlying virtual filesystem.
func (rt *Runtime) VFS() *vfs.VFS { return rt.fs }

// Config returns the configuration this Runtime was built with.
func (rt *Runtime) Config() Config { return rt.cfg }

// Logger returns the logger every process and the admin API log through.
func (rt *Runtime) Logger() *zap.Logger { return rt.cfg.Logger }

// RegisterCommand installs fn under name in the command registry so later
// Spawn/SpawnPipeline calls can launch it.
func (rt *Runtime) RegisterCommand(name string, fn kernel.TaskFunc) {
	rt.k.Commands.Register(name, fn)
}

// Spawn launches args[0] (which must be a registered command) as a new,
// parentless process on the MAIN queue. args may lead with NAME=VALUE
// tokens, which are stripped into the process's environment (see
// kernel.SplitArgsEnv); argv may end up empty, the "set env only" case.
// Marshaled onto the scheduler's main thread via Kernel.RunOnMainThread,
// so it is safe to call from any goroutine (e.g. an httpapi handler),
// not just the one driving Tick/TickMain/Run.
func (rt *Runtime) Spawn(args ...string) (pid kernel.PID, err error) {
	rt.k.RunOnMainThread(func() {
		pid, err = rt.k.Spawn(args, kernel.SpawnOptions{Parent: kernel.InvalidPID})
	})
	return
}

// SpawnWithEnv is Spawn plus an explicit environment map, merged under
// whatever NAME=VALUE prefix args itself carries.
func (rt *Runtime) SpawnWithEnv(args []string, env map[string]string) (pid kernel.PID, err error) {
	rt.k.RunOnMainThread(func() {
		pid, err = rt.k.Spawn(args, kernel.SpawnOptions{Parent: kernel.InvalidPID, Env: env})
	})
	return
}

// SpawnPipeline wires each stage's stdout directly into the next stage's
// stdin and launches every stage as a parentless process on MAIN.
func (rt *Runtime) SpawnPipeline(stages ...[]string) (pids []kernel.PID, err error) {
	specs := make([]kernel.PipelineStage, len(stages))
	for i, args := range stages {
		specs[i] = kernel.PipelineStage{Args: args}
	}
	rt.k.RunOnMainThread(func() {
		pids, err = rt.k.SpawnPipeline(specs, kernel.InvalidPID, kernel.MainQueue)
	})
	return
}

// Tick drains one sweep of the named queue.
func (rt *Runtime) Tick(queue string) { rt.k.Tick(queue) }

// TickMain drains one sweep of MAIN, including the reap pass.
func (rt *Runtime) TickMain() { rt.k.TickMain() }

// TickFor repeats TickMain until d elapses or maxIterations sweeps have
// run (maxIterations <= 0 means no iteration cap), returning the number
// of processes still resident in the table when the budget runs out.
func (rt *Runtime) TickFor(d time.Duration, maxIterations int) int {
	return rt.k.TickFor(d, maxIterations)
}

// Bgrunner starts a dedicated goroutine draining name whenever it is
// nonempty, the one way a non-MAIN queue gets ticked without this
// Runtime's own Tick/Run loop doing it. The returned stop func halts it.
func (rt *Runtime) Bgrunner(name string) (stop func()) { return rt.k.Bgrunner(name) }

// Run repeatedly ticks MAIN and every other registered queue until the
// process table is empty or d elapses, whichever comes first — the
// simplest possible drive loop for a host that just wants to run a
// pipeline to completion.
func (rt *Runtime) Run(d time.Duration) {
	deadline := time.Now().Add(d)
	for time.Now().Before(deadline) && rt.k.Table.Len() > 0 {
		for _, name := range rt.k.Queues.Names() {
			rt.k.Tick(name)
		}
		rt.k.TickMain()
	}
}

// Signal delivers sig to pid.
func (rt *Runtime) Signal(pid kernel.PID, sig kernel.Signal) bool { return rt.k.Signal(pid, sig) }

// Interrupt delivers SIGINT to pid.
func (rt *Runtime) Interrupt(pid kernel.PID) bool { return rt.k.Signal(pid, kernel.SigInterrupt) }

// Terminate delivers SIGTERM to pid.
func (rt *Runtime) Terminate(pid kernel.PID) bool { return rt.k.Signal(pid, kernel.SigTerminate) }

// Kill forcibly terminates pid without letting its task unwind.
func (rt *Runtime) Kill(pid kernel.PID) bool { return rt.k.Kill(pid) }

// TerminateAll signals SIGTERM to every resident process.
func (rt *Runtime) TerminateAll() { rt.k.TerminateAll() }

// Destroy tears down every resident process, by signal first and by
// force after maxTicks sweeps.
func (rt *Runtime) Destroy(maxTicks int) { rt.k.Destroy(maxTicks) }

// CreateQueue registers a new named ready-queue. A no-op if name already
// exists, so an embedder can call it unconditionally before a Spawn that
// targets it.
func (rt *Runtime) CreateQueue(name string) { rt.k.Queues.Create(name) }

// QueueExists reports whether name has been created, whether explicitly
// via CreateQueue or implicitly by an awaiter already targeting it.
func (rt *Runtime) QueueExists(name string) bool { return rt.k.Queues.Exists(name) }

// SetPreExecHook installs (or, with nil, clears) a hook that rewrites or
// rejects every process's argv/env just before Spawn registers it.
func (rt *Runtime) SetPreExecHook(hook kernel.PreExecHook) { rt.k.SetPreExecHook(hook) }

// Process returns the process record for pid, if resident.
func (rt *Runtime) Process(pid kernel.PID) (*kernel.Process, bool) { return rt.k.Table.Get(pid) }

// Processes returns every resident process in ascending PID order.
func (rt *Runtime) Processes() []*kernel.Process { return rt.k.Table.Snapshot() }
