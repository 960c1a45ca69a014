package kernel

import "github.com/rkvdev/pnix/pkg/orderedstore"

// ProcessTable is the authoritative map from PID to live Process. It is the
// Go-generics specialization of the same ordered-store pattern the admin
// API's process-list cache and the VFS directory nodes both build on.
type ProcessTable struct {
	store *orderedstore.Store[PID, *Process]
}

func newProcessTable() *ProcessTable {
	return &ProcessTable{store: orderedstore.New[PID, *Process]()}
}

func (t *ProcessTable) register(p *Process) { t.store.Upsert(p.pid, p) }

func (t *ProcessTable) remove(pid PID) { t.store.Delete(pid) }

// Get returns the process for pid, if it is still resident in the table.
func (t *ProcessTable) Get(pid PID) (*Process, bool) { return t.store.Get(pid) }

// IsRunning reports whether pid refers to a process still in the table and
// not yet finished (neither complete nor killed). A pid absent from the table (already reaped) is
// reported as not running.
func (t *ProcessTable) IsRunning(pid PID) bool {
	p, ok := t.store.Get(pid)
	if !ok {
		return false
	}
	return !p.Finished()
}

// Len returns the number of resident processes, running or pending reap.
func (t *ProcessTable) Len() int { return t.store.Len() }

// Snapshot returns every resident process in ascending PID order, for the
// admin API's process listing and the debug dump endpoint.
func (t *ProcessTable) Snapshot() []*Process {
	_, vals := t.store.List()
	return vals
}
