package httpapi

import (
	"github.com/rkvdev/pnix/internal/kernel"
	"github.com/rkvdev/pnix/pkg/jsonx"
)

// processSummary is the JSON shape returned by GET /api/ps and
// GET /api/ps/:pid, a flattened read-only view over *kernel.Process —
// the admin surface never hands out the Process handle itself.
type processSummary struct {
	PID      uint32   `json:"pid"`
	Parent   uint32   `json:"parent_pid"`
	Args     []string `json:"args"`
	Queue    string   `json:"queue"`
	Running  bool     `json:"running"`
	ExitCode *int32   `json:"exit_code,omitempty"`
	Children []uint32 `json:"children"`
}

func newProcessSummary(p *kernel.Process) processSummary {
	children := p.Children()
	out := processSummary{
		PID:      uint32(p.PID()),
		Parent:   uint32(p.ParentPID()),
		Args:     p.Args(),
		Queue:    p.QueueName(),
		Running:  !p.Finished(),
		Children: make([]uint32, len(children)),
	}
	for i, c := range children {
		out.Children[i] = uint32(c)
	}
	if code, ok := p.ExitCode(); ok {
		out.ExitCode = &code
	}
	return out
}

// spawnRequest is the strict-JSON body of POST /api/spawn. Args may lead
// with NAME=VALUE tokens, which the kernel strips into the spawned
// process's environment before looking up argv[0] as a command (see
// kernel.SplitArgsEnv); Env is merged underneath whatever the leading
// tokens set, so a token always wins over the same key in Env. Args may
// end up empty after stripping, which spawns a no-op "set env only"
// process rather than an error — min=1 here only rejects the body
// shape, not that post-stripping case.
type spawnRequest struct {
	Args []string          `json:"args" validate:"required,min=1"`
	Env  map[string]string `json:"env"`
}

// signalRequest is the strict-JSON body of POST /api/ps/:pid/signal.
type signalRequest struct {
	Signal int32 `json:"signal" validate:"required"`
}

// mkfileRequest is the strict-JSON body of POST /api/vfs/mkfile.
type mkfileRequest struct {
	Path string `json:"path" validate:"required"`
	Data string `json:"data"`
}

// mkdirRequest is the strict-JSON body of POST /api/vfs/mkdir.
type mkdirRequest struct {
	Path string `json:"path" validate:"required"`
}

// writeRequest is the strict-JSON body of POST /api/vfs/write.
type writeRequest struct {
	Path string `json:"path" validate:"required"`
	Data string `json:"data"`
}

// moveCopyRequest is the strict-JSON body shared by /api/vfs/move and
// /api/vfs/copy.
type moveCopyRequest struct {
	Src string `json:"src" validate:"required"`
	Dst string `json:"dst" validate:"required"`
}

// vfsAttrsRequest is the strict-JSON body of POST /api/vfs/attrs.
// ReadOnly is tri-state rather than a plain bool so a caller that omits it
// gets a clear 400 instead of silently toggling read-only off; validator
// only checks Path since a zero-value Field[bool] is a legitimate "unset".
type vfsAttrsRequest struct {
	Path     string            `json:"path" validate:"required"`
	ReadOnly jsonx.Field[bool] `json:"read_only"`
}
