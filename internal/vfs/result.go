package vfs

// Result is the outcome of every VFS operation, a plain enum rather than a
// Go error: callers (including the HTTP layer) switch on it directly
// instead of doing string/sentinel matching, and a Result carries no
// stack or wrapped-cause baggage to serialize.
type Result int

const (
	OK Result = iota
	NotFound
	AlreadyExists
	NotADirectory
	NotAFile
	ReadOnly
	InvalidPath
	MountError
	NotEmpty
)

func (r Result) String() string {
	switch r {
	case OK:
		return "OK"
	case NotFound:
		return "NotFound"
	case AlreadyExists:
		return "AlreadyExists"
	case NotADirectory:
		return "NotADirectory"
	case NotAFile:
		return "NotAFile"
	case ReadOnly:
		return "ReadOnly"
	case InvalidPath:
		return "InvalidPath"
	case MountError:
		return "MountError"
	case NotEmpty:
		return "NotEmpty"
	default:
		return "Unknown"
	}
}

// Ok reports whether r is the success value, the common one-line check at
// an HTTP handler's call site.
func (r Result) Ok() bool { return r == OK }
