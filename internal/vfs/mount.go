package vfs

// Mount is the capability interface a virtual directory can delegate to
// instead of holding real in-memory children, keeping the virtual tree
// itself backend-agnostic: a host directory mount, an archive mount, or
// (as shipped here) nothing beyond the in-memory default all satisfy the
// same handful of operations.
//
// Paths passed to a Mount are always relative to the mount point itself
// (an empty string names the mount root), never the full virtual path.
type Mount interface {
	// Name identifies the mount for diagnostics (the admin debug dump,
	// log fields) — it is never used for path resolution.
	Name() string

	ReadFile(relPath string) ([]byte, Result)
	WriteFile(relPath string, data []byte) Result
	ListDir(relPath string) ([]string, Result)
	MkDir(relPath string) Result
	Remove(relPath string) Result
	Exists(relPath string) bool
}
