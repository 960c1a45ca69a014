package vfs

import "strings"

// splitPath turns a "/"-rooted path into its non-empty segments. Both
// "/a/b" and "a/b/" and "a//b" split to ["a","b"]. The root path "/" (or
// "") splits to an empty, non-nil slice.
func splitPath(path string) []string {
	raw := strings.Split(path, "/")
	segments := make([]string, 0, len(raw))
	for _, s := range raw {
		if s != "" {
			segments = append(segments, s)
		}
	}
	return segments
}

// joinPath renders segments back into a canonical "/"-rooted path.
func joinPath(segments []string) string {
	if len(segments) == 0 {
		return "/"
	}
	return "/" + strings.Join(segments, "/")
}

// splitParent divides path into its parent directory's segments and the
// final component name. Used by operations that must look up the parent
// directory before acting on the leaf (Mkdir, Mkfile, Remove, Move...).
func splitParent(path string) (parent []string, name string) {
	segs := splitPath(path)
	if len(segs) == 0 {
		return nil, ""
	}
	return segs[:len(segs)-1], segs[len(segs)-1]
}
