package kernel

import (
	"time"

	"go.uber.org/zap"
)

// Scheduler drives the process table forward one named-queue sweep at a
// time. It holds no goroutine of its own — a host embeds it by calling
// Tick (or TickFor) from whatever loop it already runs, rather than this
// pseudo-OS driving itself.
type Scheduler struct {
	table *ProcessTable
	queue *QueueSet
	pids  *pidAllocator
	log   *zap.Logger

	guard   *mainThreadGuard
	mailbox chan mainThreadJob
}

func newScheduler(table *ProcessTable, queue *QueueSet, pids *pidAllocator, log *zap.Logger, guard *mainThreadGuard, mailbox chan mainThreadJob) *Scheduler {
	return &Scheduler{table: table, queue: queue, pids: pids, log: log, guard: guard, mailbox: mailbox}
}

// Tick drains exactly the awaiters that were pending on queueName at the
// moment Tick was called (the double-buffer swap), polling each once.
// Awaiters whose predicate isn't ready yet (and whose owning process
// wasn't signal-short-circuited) are put back for the next sweep. If
// queueName is MainQueue, Tick first latches the calling goroutine as the
// scheduler's main thread and drains anything queued via
// Kernel.RunOnMainThread, then — after the sweep — runs the reap pass:
// every process that finished or was killed since the last MAIN tick is
// detached from its parent and dropped from the table.
func (s *Scheduler) Tick(queueName string) {
	q := s.queue.get(queueName)
	if q == nil {
		return
	}

	if queueName == MainQueue {
		s.guard.recordMain()
		s.drainMailbox()
	}

	for _, aw := range q.swap() {
		s.pollOne(aw, q)
	}

	if queueName == MainQueue {
		s.reap()
	}
}

// drainMailbox runs every job submitted via Kernel.RunOnMainThread from a
// goroutine the guard doesn't already allow, now that this goroutine is
// recorded (or already was) the main one. Jobs run synchronously, in
// submission order, before this tick's own queue sweep.
func (s *Scheduler) drainMailbox() {
	for {
		select {
		case job := <-s.mailbox:
			job.fn()
			close(job.done)
		default:
			return
		}
	}
}

func (s *Scheduler) pollOne(aw *Awaiter, q *queue) {
	proc, ok := s.table.Get(aw.PID)
	if !ok || proc.Finished() {
		// Dropped: the process was killed or already reaped out from
		// under this pending awaiter. It is never resumed.
		return
	}

	if !aw.Ready(proc.lastSignalValue()) {
		q.requeue(aw)
		return
	}

	var next *Awaiter
	if !proc.started {
		next = proc.start()
	} else {
		next = proc.resume(aw.Result)
	}

	if next == nil {
		// Task returned; proc.finish already ran inside its goroutine.
		// The MAIN reap pass removes it from the table.
		return
	}
	s.queue.enqueue(next)
}

// reap drops every finished/killed process from the table, detaching it
// from its parent so the parent's Children() no longer lists it.
func (s *Scheduler) reap() {
	for _, proc := range s.table.Snapshot() {
		if !proc.ShouldRemove() && !proc.Finished() {
			continue
		}
		if proc.ForceTerminate() && !proc.IsComplete() {
			proc.finalizeKilled()
		}
		if parent, ok := s.table.Get(proc.parentPID); ok {
			parent.removeChild(proc.pid)
		}
		s.table.remove(proc.pid)
	}
}

// TickFor repeatedly ticks queueName until d has elapsed or maxIterations
// sweeps have run, whichever comes first (maxIterations <= 0 means no
// iteration cap, only the time budget), sleeping briefly between sweeps
// that find nothing to do so an idle runtime doesn't spin. Returns the
// number of processes still resident in the table when the budget runs
// out. Intended for a host that wants a simple blocking "run for a while"
// call rather than driving Tick from its own loop.
func (s *Scheduler) TickFor(queueName string, d time.Duration, maxIterations int) int {
	deadline := time.Now().Add(d)
	for i := 0; (maxIterations <= 0 || i < maxIterations) && time.Now().Before(deadline); i++ {
		before := s.queue.Len(queueName)
		s.Tick(queueName)
		if before == 0 {
			time.Sleep(time.Millisecond)
		}
	}
	return s.table.Len()
}
