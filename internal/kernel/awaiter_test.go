package kernel

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestYieldAwaiterResolvesOnSecondPoll(t *testing.T) {
	aw := yieldAwaiter(1, MainQueue)
	assert.False(t, aw.Predicate(aw), "first poll must not resolve, guaranteeing one full sweep of delay")
	assert.True(t, aw.Predicate(aw))
	assert.Equal(t, Success, aw.Result)
}

func TestYieldForAwaiterWaitsOutTheDuration(t *testing.T) {
	now := time.Now()
	clock := func() time.Time { return now }

	aw := yieldForAwaiter(1, MainQueue, 10*time.Millisecond, clock)
	assert.False(t, aw.Predicate(aw))

	now = now.Add(11 * time.Millisecond)
	assert.True(t, aw.Predicate(aw))
	assert.Equal(t, Success, aw.Result)
}

func TestHasDataAwaiterResolvesOnBufferedByte(t *testing.T) {
	s := NewStream()
	s.AddRef() // a second holder (the writer) keeps the stream open
	aw := hasDataAwaiter(1, MainQueue, s)
	assert.False(t, aw.Predicate(aw))

	s.Put('x')
	assert.True(t, aw.Predicate(aw))
	assert.Equal(t, Success, aw.Result)
}

func TestHasDataAwaiterResolvesEndOfStreamOnClosure(t *testing.T) {
	s := NewStream()
	aw := hasDataAwaiter(1, MainQueue, s)
	s.SetEOF()
	require.True(t, aw.Predicate(aw))
	assert.Equal(t, EndOfStream, aw.Result)
}

func TestReadLineAwaiterAccumulatesAcrossPolls(t *testing.T) {
	s := NewStream()
	s.AddRef() // a second holder (the writer) keeps the stream open
	var buf []byte
	aw := readLineAwaiter(1, MainQueue, s, &buf)

	s.PutString("partial")
	assert.False(t, aw.Predicate(aw))
	assert.Equal(t, "partial", string(buf))

	s.PutString(" line\n")
	require.True(t, aw.Predicate(aw))
	assert.Equal(t, Success, aw.Result)
	assert.Equal(t, "partial line", string(buf))
}

func TestReadLineAwaiterResolvesEndOfStreamWithPartialLine(t *testing.T) {
	s := NewStream()
	s.PutString("trailing")
	s.SetEOF()

	var buf []byte
	aw := readLineAwaiter(1, MainQueue, s, &buf)
	require.True(t, aw.Predicate(aw))
	assert.Equal(t, EndOfStream, aw.Result)
	assert.Equal(t, "trailing", string(buf))
}

func TestFinishedAwaiterWaitsForEveryPID(t *testing.T) {
	k := New(nil)
	k.Commands.Register("loop", yesForeverTask)

	pidA, err := k.Spawn([]string{"loop"}, SpawnOptions{Parent: InvalidPID})
	require.NoError(t, err)
	pidB, err := k.Spawn([]string{"loop"}, SpawnOptions{Parent: InvalidPID})
	require.NoError(t, err)
	k.TickMain()

	aw := finishedAwaiter(InvalidPID, MainQueue, k.Table, []PID{pidA, pidB})
	assert.False(t, aw.Predicate(aw), "both processes are still resident and running")

	k.Kill(pidA)
	k.TickMain()
	assert.False(t, aw.Predicate(aw), "pidB is still running")

	k.Kill(pidB)
	k.TickMain()
	assert.True(t, aw.Predicate(aw))
	assert.Equal(t, Success, aw.Result)
}

func TestAwaiterReadySignalShortCircuitsThePredicate(t *testing.T) {
	predicateCalled := false
	aw := &Awaiter{
		PID:         1,
		TargetQueue: MainQueue,
		Predicate: func(a *Awaiter) bool {
			predicateCalled = true
			return false
		},
	}

	assert.True(t, aw.Ready(sigInterrupt))
	assert.Equal(t, SignalInterrupt, aw.Result)
	assert.False(t, predicateCalled, "a latched signal must bypass the predicate entirely")

	aw2 := &Awaiter{
		PID:         1,
		TargetQueue: MainQueue,
		Predicate:   func(a *Awaiter) bool { return false },
	}
	assert.True(t, aw2.Ready(sigTerminate))
	assert.Equal(t, SignalTerminate, aw2.Result)

	aw3 := &Awaiter{
		PID:         1,
		TargetQueue: MainQueue,
		Predicate:   func(a *Awaiter) bool { a.Result = Success; return true },
	}
	assert.True(t, aw3.Ready(0))
	assert.Equal(t, Success, aw3.Result)
}
