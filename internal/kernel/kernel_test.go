package kernel

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

func reverseStr(s string) string {
	r := []rune(s)
	for i, j := 0, len(r)-1; i < j; i, j = i+1, j-1 {
		r[i], r[j] = r[j], r[i]
	}
	return string(r)
}

func echoTask(p *Process) int32 {
	args := p.Args()[1:]
	newline := true
	if len(args) > 0 && args[0] == "-n" {
		newline = false
		args = args[1:]
	}
	p.Stdout().PutString(strings.Join(args, " "))
	if newline {
		p.Stdout().Put('\n')
	}
	return 0
}

func revTask(p *Process) int32 {
	var buf []byte
	for {
		result := p.AwaitLine(p.QueueName(), p.Stdin(), &buf)
		if len(buf) > 0 {
			p.Stdout().PutString(reverseStr(string(buf)))
			p.Stdout().Put('\n')
			buf = buf[:0]
		}
		if result == EndOfStream {
			return 0
		}
	}
}

// tickUntilEmpty drains MAIN until every spawned process has been reaped or
// maxTicks sweeps have run, whichever comes first.
func tickUntilEmpty(k *Kernel, maxTicks int) {
	for i := 0; i < maxTicks && k.Table.Len() > 0; i++ {
		k.TickMain()
	}
}

func TestEchoPipelineSeedScenario(t *testing.T) {
	k := New(zaptest.NewLogger(t))
	k.Commands.Register("echo", echoTask)
	k.Commands.Register("rev", revTask)

	pids, err := k.SpawnPipeline([]PipelineStage{
		{Args: []string{"echo", "-n", "Hello", "world"}},
		{Args: []string{"rev"}},
	}, InvalidPID, MainQueue)
	require.NoError(t, err)
	require.Len(t, pids, 2)

	lastProc, ok := k.Table.Get(pids[1])
	require.True(t, ok)
	lastOut := lastProc.Stdout()

	tickUntilEmpty(k, 50)

	var got []byte
	for {
		r := lastOut.Get()
		if r.Status != StatusSuccess {
			break
		}
		got = append(got, r.Byte)
	}
	assert.Equal(t, "dlrow olleH\n", string(got))

	for _, pid := range pids {
		assert.False(t, k.Table.IsRunning(pid))
	}

	code, valid := lastProc.ExitCode()
	assert.True(t, valid)
	assert.Equal(t, int32(0), code)
}

func TestInterruptCancellation(t *testing.T) {
	k := New(zaptest.NewLogger(t))
	k.Commands.Register("loop", yesForeverTask)

	pid, err := k.Spawn([]string{"loop"}, SpawnOptions{Parent: InvalidPID})
	require.NoError(t, err)
	proc, ok := k.Table.Get(pid)
	require.True(t, ok)

	k.TickMain() // starts the task and parks it on its first Yield
	assert.True(t, k.Table.IsRunning(pid))

	require.True(t, k.Signal(pid, SigInterrupt))

	k.TickMain() // the parked awaiter's next poll short-circuits on the signal
	k.TickMain() // idempotent: already reaped, nothing pending

	assert.False(t, k.Table.IsRunning(pid))
	code, valid := proc.ExitCode()
	require.True(t, valid)
	assert.Equal(t, ExitInterrupted, code)
}

func yesForeverTask(p *Process) int32 {
	for {
		switch p.Yield(p.QueueName()) {
		case SignalInterrupt:
			return ExitInterrupted
		case SignalTerminate:
			return ExitTerminated
		}
	}
}

func TestForceKillSkipsCleanup(t *testing.T) {
	var cleanupRan bool
	loop := func(p *Process) int32 {
		for {
			switch p.Yield(p.QueueName()) {
			case SignalInterrupt:
				cleanupRan = true
				return ExitInterrupted
			case SignalTerminate:
				return ExitTerminated
			}
		}
	}

	k := New(zaptest.NewLogger(t))
	k.Commands.Register("loop", loop)

	pid, err := k.Spawn([]string{"loop"}, SpawnOptions{Parent: InvalidPID})
	require.NoError(t, err)
	k.TickMain()

	k.Kill(pid)
	k.TickMain()

	assert.False(t, k.Table.IsRunning(pid))
	assert.False(t, cleanupRan, "a killed task is never resumed, so it never reaches its own cleanup path")

	// Same task body, but signaled instead of killed: this time the task
	// observes SIG_INTERRUPT and chooses to unwind through its own code.
	cleanupRan = false
	pid2, err := k.Spawn([]string{"loop"}, SpawnOptions{Parent: InvalidPID})
	require.NoError(t, err)
	proc2, ok := k.Table.Get(pid2)
	require.True(t, ok)
	k.TickMain()

	require.True(t, k.Signal(pid2, SigInterrupt))
	k.TickMain()

	assert.True(t, cleanupRan)
	code, valid := proc2.ExitCode()
	require.True(t, valid)
	assert.Equal(t, ExitInterrupted, code)
}

func TestEOFPropagationThroughPipeline(t *testing.T) {
	writeThree := func(p *Process) int32 {
		p.Stdout().Put('a')
		p.Stdout().Put('b')
		p.Stdout().Put('c')
		return 0
	}

	var consumerResult AwaiterResult
	consume := func(p *Process) int32 {
		var buf []byte
		for {
			consumerResult = p.AwaitLine(p.QueueName(), p.Stdin(), &buf)
			if consumerResult == EndOfStream {
				return 0
			}
		}
	}

	k := New(zaptest.NewLogger(t))
	k.Commands.Register("producer", writeThree)
	k.Commands.Register("consumer", consume)

	pids, err := k.SpawnPipeline([]PipelineStage{
		{Args: []string{"producer"}},
		{Args: []string{"consumer"}},
	}, InvalidPID, MainQueue)
	require.NoError(t, err)

	tickUntilEmpty(k, 20)

	assert.False(t, k.Table.IsRunning(pids[0]))
	assert.False(t, k.Table.IsRunning(pids[1]))
	assert.Equal(t, EndOfStream, consumerResult)
}

func TestSubProcessWaitBlocksUntilChildFinishes(t *testing.T) {
	sleep := func(p *Process) int32 {
		p.YieldFor(p.QueueName(), 30*time.Millisecond)
		return 0
	}

	var parentWrote bool
	var spawnErr error
	k := New(zaptest.NewLogger(t))
	k.Commands.Register("sleep", sleep)
	k.Commands.Register("parent", func(p *Process) int32 {
		childPID, err := k.SubSpawn(p, []string{"sleep"}, nil)
		if err != nil {
			spawnErr = err
			return 1
		}
		p.AwaitFinished(p.QueueName(), childPID)
		parentWrote = true
		return 0
	})

	start := time.Now()
	_, err := k.Spawn([]string{"parent"}, SpawnOptions{Parent: InvalidPID})
	require.NoError(t, err)

	deadline := start.Add(2 * time.Second)
	for time.Now().Before(deadline) && k.Table.Len() > 0 {
		k.TickMain()
		time.Sleep(time.Millisecond)
	}

	require.NoError(t, spawnErr)
	assert.True(t, parentWrote)
	assert.GreaterOrEqual(t, time.Since(start), 30*time.Millisecond)
}

func TestSpawnUnknownCommandReturnsInvalidPID(t *testing.T) {
	k := New(zaptest.NewLogger(t))
	pid, err := k.Spawn([]string{"nope"}, SpawnOptions{Parent: InvalidPID})
	assert.Equal(t, InvalidPID, pid)
	assert.ErrorIs(t, err, ErrCommandNotFound)
}

func TestSignalPropagatesToChildrenWithinOneTick(t *testing.T) {
	var k *Kernel
	var childSignaled Signal
	var childSignaledOK bool

	childTask := func(p *Process) int32 {
		for {
			p.Yield(p.QueueName())
			if sig, ok := p.LastSignal(); ok {
				childSignaled, childSignaledOK = sig, ok
				return 0
			}
		}
	}

	parentTask := func(p *Process) int32 {
		if _, err := k.SubSpawn(p, []string{"child"}, nil); err != nil {
			return 1
		}
		for {
			p.Yield(p.QueueName())
		}
	}

	k = New(zaptest.NewLogger(t))
	k.Commands.Register("child", childTask)
	k.Commands.Register("parent", parentTask)

	parentPID, err := k.Spawn([]string{"parent"}, SpawnOptions{Parent: InvalidPID})
	require.NoError(t, err)

	k.TickMain() // parent starts and spawns its child, both park on Yield
	k.TickMain() // child's bootstrap awaiter resolves; child parks on Yield too

	require.True(t, k.Signal(parentPID, SigTerminate))
	k.TickMain()

	assert.True(t, childSignaledOK)
	assert.Equal(t, SigTerminate, childSignaled)
}

func TestSpawnSplitsLeadingEnvTokensFromArgv(t *testing.T) {
	k := New(zaptest.NewLogger(t))
	var gotEnv map[string]string
	var gotArgv []string
	k.Commands.Register("echo", func(p *Process) int32 {
		gotEnv = p.EnvAll()
		gotArgv = p.Args()
		return 0
	})

	pid, err := k.Spawn([]string{"FOO=bar", "BAZ=qux", "echo", "a", "b"}, SpawnOptions{Parent: InvalidPID})
	require.NoError(t, err)
	tickUntilEmpty(k, 10)

	assert.False(t, k.Table.IsRunning(pid))
	assert.Equal(t, map[string]string{"FOO": "bar", "BAZ": "qux"}, gotEnv)
	assert.Equal(t, []string{"echo", "a", "b"}, gotArgv)
}

func TestSpawnMergesEnvOptionUnderLeadingTokens(t *testing.T) {
	k := New(zaptest.NewLogger(t))
	var gotEnv map[string]string
	k.Commands.Register("echo", func(p *Process) int32 {
		gotEnv = p.EnvAll()
		return 0
	})

	pid, err := k.Spawn([]string{"FOO=override", "echo"}, SpawnOptions{
		Parent: InvalidPID,
		Env:    map[string]string{"FOO": "base", "KEPT": "1"},
	})
	require.NoError(t, err)
	tickUntilEmpty(k, 10)

	assert.False(t, k.Table.IsRunning(pid))
	assert.Equal(t, map[string]string{"FOO": "override", "KEPT": "1"}, gotEnv)
}

func TestSpawnWithEmptyArgvAfterEnvStrippingIsSetEnvOnlyNoop(t *testing.T) {
	k := New(zaptest.NewLogger(t))

	pid, err := k.Spawn([]string{"FOO=bar"}, SpawnOptions{Parent: InvalidPID})
	require.NoError(t, err)
	require.NotEqual(t, InvalidPID, pid)

	tickUntilEmpty(k, 10)

	assert.False(t, k.Table.IsRunning(pid))
	_, ok := k.Table.Get(pid)
	assert.False(t, ok, "a reaped process is no longer resident")
}

func TestSpawnWithTrulyEmptyArgsIsAlsoSetEnvOnlyNoop(t *testing.T) {
	k := New(zaptest.NewLogger(t))

	pid, err := k.Spawn(nil, SpawnOptions{Parent: InvalidPID})
	require.NoError(t, err)
	require.NotEqual(t, InvalidPID, pid)
	tickUntilEmpty(k, 10)
	assert.False(t, k.Table.IsRunning(pid))
}

func TestArgumentParsingRoundTrip(t *testing.T) {
	env, argv := SplitArgsEnv([]string{"FOO=bar", "BAZ=qux", "cmd", "arg1"})
	require.Equal(t, map[string]string{"FOO": "bar", "BAZ": "qux"}, env)
	require.Equal(t, []string{"cmd", "arg1"}, argv)

	// Re-parsing the concatenation of env entries plus argv yields the same
	// (env, argv) back.
	reconstructed := append([]string{"FOO=bar", "BAZ=qux"}, argv...)
	env2, argv2 := SplitArgsEnv(reconstructed)
	assert.Equal(t, env, env2)
	assert.Equal(t, argv, argv2)

	// An '=' inside argv, once argv has begun, does not get re-absorbed
	// into the environment.
	_, argv3 := SplitArgsEnv([]string{"FOO=bar", "cmd", "k=v"})
	assert.Equal(t, []string{"cmd", "k=v"}, argv3)

	// Empty NAME ("=value") does not match and begins argv immediately.
	env4, argv4 := SplitArgsEnv([]string{"=novalue", "cmd"})
	assert.Nil(t, env4)
	assert.Equal(t, []string{"=novalue", "cmd"}, argv4)
}

func TestTickForRespectsMaxIterationsBudget(t *testing.T) {
	k := New(zaptest.NewLogger(t))
	k.Commands.Register("loop", func(p *Process) int32 {
		for {
			p.Yield(p.QueueName())
		}
	})
	_, err := k.Spawn([]string{"loop"}, SpawnOptions{Parent: InvalidPID})
	require.NoError(t, err)

	// A generous time budget but a tight iteration cap: TickFor must
	// return once the iteration cap is hit, well before the time budget.
	start := time.Now()
	live := k.TickFor(time.Second, 5)
	elapsed := time.Since(start)

	assert.Equal(t, 1, live, "the looping process is still resident (never finishes)")
	assert.Less(t, elapsed, 500*time.Millisecond, "maxIterations should cut the run short of the time budget")
}

func TestTickForReturnsZeroOnceTableDrains(t *testing.T) {
	k := New(zaptest.NewLogger(t))
	k.Commands.Register("noop", func(p *Process) int32 { return 0 })
	_, err := k.Spawn([]string{"noop"}, SpawnOptions{Parent: InvalidPID})
	require.NoError(t, err)

	live := k.TickFor(time.Second, 50)
	assert.Equal(t, 0, live)
}

func TestSignalHandlerReentryIsSuppressed(t *testing.T) {
	k := New(zaptest.NewLogger(t))
	k.Commands.Register("loop", yesForeverTask)

	pid, err := k.Spawn([]string{"loop"}, SpawnOptions{Parent: InvalidPID})
	require.NoError(t, err)
	k.TickMain()

	proc, ok := k.Table.Get(pid)
	require.True(t, ok)

	var handlerInvocations int
	proc.SetSignalHandler(func(p *Process, sig Signal) {
		handlerInvocations++
		if handlerInvocations == 1 {
			// Reentrant self-signal: must not trigger a second invocation.
			p.Signal(sig)
		}
	})

	proc.Signal(SigInterrupt)
	assert.Equal(t, 1, handlerInvocations, "a handler that signals its own process must not reenter itself")

	// The guard only suppresses reentry during the dynamic extent of the
	// handler call above; a later, independent Signal still invokes it.
	proc.Signal(SigInterrupt)
	assert.Equal(t, 2, handlerInvocations)
}

func TestSpawnRejectsCallFromForeignGoroutine(t *testing.T) {
	k := New(zaptest.NewLogger(t))
	k.Commands.Register("echo", func(p *Process) int32 { return 0 })

	// Latch the test goroutine as the main thread.
	k.TickMain()

	errCh := make(chan error, 1)
	go func() {
		_, err := k.Spawn([]string{"echo"}, SpawnOptions{Parent: InvalidPID})
		errCh <- err
	}()
	assert.ErrorIs(t, <-errCh, ErrWrongThread)

	// RunOnMainThread marshals the same call safely from that foreign
	// goroutine, by queuing it for the next MAIN tick that drains it.
	done := make(chan PID, 1)
	go func() {
		var pid PID
		k.RunOnMainThread(func() {
			pid, _ = k.Spawn([]string{"echo"}, SpawnOptions{Parent: InvalidPID})
		})
		done <- pid
	}()

	deadline := time.Now().Add(2 * time.Second)
	var pid PID
	for time.Now().Before(deadline) {
		select {
		case pid = <-done:
			assert.NotEqual(t, InvalidPID, pid)
			return
		default:
			k.TickMain()
			time.Sleep(time.Millisecond)
		}
	}
	t.Fatal("RunOnMainThread submission was never drained by a MAIN tick")
}

func TestKillDetachesFromParentOnReap(t *testing.T) {
	k := New(zaptest.NewLogger(t))
	k.Commands.Register("loop", yesForeverTask)

	parentPID, err := k.Spawn([]string{"loop"}, SpawnOptions{Parent: InvalidPID})
	require.NoError(t, err)
	k.TickMain()

	childPID, err := k.Spawn([]string{"loop"}, SpawnOptions{Parent: parentPID})
	require.NoError(t, err)

	parent, ok := k.Table.Get(parentPID)
	require.True(t, ok)
	assert.Contains(t, parent.Children(), childPID)

	k.Kill(childPID)
	k.TickMain()

	assert.NotContains(t, parent.Children(), childPID)
}
