// Package vfs implements an in-memory virtual filesystem: a path-indexed
// node tree of directories and files, with pluggable Mount backends a
// directory can delegate to instead of holding real children. Every
// operation returns a Result value rather than a Go error — see result.go
// for why.
package vfs

import (
	"sync"
)

// VFS is one virtual filesystem instance, rooted at "/".
type VFS struct {
	mu   sync.RWMutex
	root *node
}

// New returns an empty VFS containing just the root directory.
func New() *VFS {
	return &VFS{root: newDirNode("")}
}

// resolved describes where path resolution landed: either a concrete
// in-memory node, or a Mount plus the path remaining to hand it, relative
// to the mount point.
type resolved struct {
	n         *node
	mount     Mount
	mountPath string
}

// findLastValidVirtualNode walks segments from the root as far as the
// in-memory tree goes, stopping either at full resolution, at a mounted
// directory (handing remaining resolution to that Mount), or at the
// deepest node still reachable before a missing/wrong-kind component.
//
// This is the one resolution primitive every operation below builds on.
func (v *VFS) findLastValidVirtualNode(segments []string) (resolved, Result) {
	cur := v.root
	for i, seg := range segments {
		cur.mu.RLock()
		kind := cur.kind
		mount := cur.mount
		cur.mu.RUnlock()

		if mount != nil {
			return resolved{mount: mount, mountPath: joinPath(segments[i:])[1:]}, OK
		}
		if kind != KindDirectory {
			return resolved{}, NotADirectory
		}

		child, ok := cur.children.Get(seg)
		if !ok {
			return resolved{}, NotFound
		}
		cur = child
	}

	cur.mu.RLock()
	mount := cur.mount
	cur.mu.RUnlock()
	if mount != nil {
		return resolved{mount: mount, mountPath: ""}, OK
	}
	return resolved{n: cur}, OK
}

func (v *VFS) resolve(path string) (resolved, Result) {
	v.mu.RLock()
	defer v.mu.RUnlock()
	return v.findLastValidVirtualNode(splitPath(path))
}

// GetType reports whether path names a directory or a file.
func (v *VFS) GetType(path string) (Kind, Result) {
	r, res := v.resolve(path)
	if res != OK {
		return 0, res
	}
	if r.mount != nil {
		if r.mountPath == "" {
			return KindDirectory, OK
		}
		if !r.mount.Exists(r.mountPath) {
			return 0, NotFound
		}
		if _, res := r.mount.ListDir(r.mountPath); res == OK {
			return KindDirectory, OK
		}
		return KindFile, OK
	}
	r.n.mu.RLock()
	defer r.n.mu.RUnlock()
	return r.n.kind, OK
}

// Exists reports whether anything exists at path, asking the mount when
// path lies inside one.
func (v *VFS) Exists(path string) bool {
	r, res := v.resolve(path)
	if res != OK {
		return false
	}
	if r.mount != nil && r.mountPath != "" {
		return r.mount.Exists(r.mountPath)
	}
	return true
}

// Mkdir creates an empty directory at path. The parent must already exist
// and be writable; AlreadyExists if path is already occupied.
func (v *VFS) Mkdir(path string) Result {
	return v.createLeaf(path, func(parent *node, name string) Result {
		if _, ok := parent.children.Get(name); ok {
			return AlreadyExists
		}
		parent.children.Upsert(name, newDirNode(name))
		return OK
	}, func(mount Mount, rel string) Result {
		return mount.MkDir(rel)
	})
}

// Mkfile creates a file at path with the given initial contents.
func (v *VFS) Mkfile(path string, data []byte) Result {
	return v.createLeaf(path, func(parent *node, name string) Result {
		if _, ok := parent.children.Get(name); ok {
			return AlreadyExists
		}
		parent.children.Upsert(name, newFileNode(name, data))
		return OK
	}, func(mount Mount, rel string) Result {
		return mount.WriteFile(rel, data)
	})
}

// createLeaf resolves path's parent directory and invokes either inMem or
// viaMount depending on where resolution landed, after checking the
// parent isn't read-only.
func (v *VFS) createLeaf(path string, inMem func(parent *node, name string) Result, viaMount func(mount Mount, rel string) Result) Result {
	parentSegs, name := splitParent(path)
	if name == "" {
		return InvalidPath
	}

	v.mu.Lock()
	defer v.mu.Unlock()

	r, res := v.findLastValidVirtualNode(parentSegs)
	if res != OK {
		return res
	}
	if r.mount != nil {
		rel := name
		if r.mountPath != "" {
			rel = r.mountPath + "/" + name
		}
		return viaMount(r.mount, rel)
	}

	r.n.mu.RLock()
	kind := r.n.kind
	ro := r.n.readOnly
	r.n.mu.RUnlock()
	if kind != KindDirectory {
		return NotADirectory
	}
	if ro {
		return ReadOnly
	}
	return inMem(r.n, name)
}

// Remove deletes the file or empty directory at path.
func (v *VFS) Remove(path string) Result {
	parentSegs, name := splitParent(path)
	if name == "" {
		return InvalidPath
	}

	v.mu.Lock()
	defer v.mu.Unlock()

	r, res := v.findLastValidVirtualNode(parentSegs)
	if res != OK {
		return res
	}
	if r.mount != nil {
		rel := name
		if r.mountPath != "" {
			rel = r.mountPath + "/" + name
		}
		return r.mount.Remove(rel)
	}

	r.n.mu.RLock()
	ro := r.n.readOnly
	r.n.mu.RUnlock()
	if ro {
		return ReadOnly
	}

	child, ok := r.n.children.Get(name)
	if !ok {
		return NotFound
	}
	child.mu.RLock()
	childIsDir := child.kind == KindDirectory
	childLen := 0
	if childIsDir && child.children != nil {
		childLen = child.children.Len()
	}
	child.mu.RUnlock()
	if childIsDir && childLen > 0 {
		return NotEmpty
	}

	r.n.children.Delete(name)
	return OK
}

// Read returns the full contents of the file at path.
func (v *VFS) Read(path string) ([]byte, Result) {
	r, res := v.resolve(path)
	if res != OK {
		return nil, res
	}
	if r.mount != nil {
		return r.mount.ReadFile(r.mountPath)
	}
	r.n.mu.RLock()
	kind := r.n.kind
	r.n.mu.RUnlock()
	if kind != KindFile {
		return nil, NotAFile
	}
	return r.n.readData(), OK
}

// Write overwrites the file at path with data. The file must already
// exist (use Mkfile to create one).
func (v *VFS) Write(path string, data []byte) Result {
	r, res := v.resolve(path)
	if res != OK {
		return res
	}
	if r.mount != nil {
		return r.mount.WriteFile(r.mountPath, data)
	}
	r.n.mu.RLock()
	kind := r.n.kind
	ro := r.n.readOnly
	r.n.mu.RUnlock()
	if kind != KindFile {
		return NotAFile
	}
	if ro {
		return ReadOnly
	}
	r.n.writeData(data)
	return OK
}

// ListDir returns the names of path's direct children.
func (v *VFS) ListDir(path string) ([]string, Result) {
	r, res := v.resolve(path)
	if res != OK {
		return nil, res
	}
	if r.mount != nil {
		return r.mount.ListDir(r.mountPath)
	}
	r.n.mu.RLock()
	kind := r.n.kind
	r.n.mu.RUnlock()
	if kind != KindDirectory {
		return nil, NotADirectory
	}
	names, _ := r.n.children.List()
	return names, OK
}

// SetReadOnly toggles the read-only flag on the directory or file at path.
// A read-only directory refuses Mkdir/Mkfile/Remove of its direct
// children; a read-only file refuses Write.
func (v *VFS) SetReadOnly(path string, ro bool) Result {
	r, res := v.resolve(path)
	if res != OK {
		return res
	}
	if r.mount != nil {
		return MountError
	}
	r.n.setReadOnly(ro)
	return OK
}

// Copy duplicates the file at src to dst. Directory copy is not
// supported at file granularity across a mount boundary; copying an
// in-memory directory recurses over its children.
func (v *VFS) Copy(src, dst string) Result {
	r, res := v.resolve(src)
	if res != OK {
		return res
	}
	if r.mount != nil {
		data, res := r.mount.ReadFile(r.mountPath)
		if res != OK {
			return res
		}
		return v.Mkfile(dst, data)
	}

	r.n.mu.RLock()
	kind := r.n.kind
	r.n.mu.RUnlock()

	if kind == KindFile {
		return v.Mkfile(dst, r.n.readData())
	}
	return v.copyDir(r.n, dst)
}

func (v *VFS) copyDir(src *node, dst string) Result {
	if res := v.Mkdir(dst); res != OK && res != AlreadyExists {
		return res
	}
	names, vals := src.children.List()
	for i, name := range names {
		child := vals[i]
		childDst := dst + "/" + name

		child.mu.RLock()
		kind := child.kind
		data := append([]byte(nil), child.data...)
		child.mu.RUnlock()

		var res Result
		if kind == KindFile {
			res = v.Mkfile(childDst, data)
		} else {
			res = v.copyDir(child, childDst)
		}
		if res != OK {
			return res
		}
	}
	return OK
}

// Move relocates the node at src to dst: a copy followed by removing the
// source. There is no atomic rename across the mount boundary.
func (v *VFS) Move(src, dst string) Result {
	if res := v.Copy(src, dst); res != OK {
		return res
	}
	return v.Remove(src)
}

// Mount attaches backend at path, which must currently be an empty,
// unoccupied directory (created with Mkdir first, or the root itself).
func (v *VFS) Mount(path string, backend Mount) Result {
	v.mu.Lock()
	defer v.mu.Unlock()

	segs := splitPath(path)
	if len(segs) == 0 {
		v.root.mu.Lock()
		v.root.mount = backend
		v.root.mu.Unlock()
		return OK
	}

	r, res := v.findLastValidVirtualNode(segs)
	if res != OK {
		return res
	}
	if r.mount != nil {
		return AlreadyExists
	}
	r.n.mu.Lock()
	defer r.n.mu.Unlock()
	if r.n.kind != KindDirectory {
		return NotADirectory
	}
	if r.n.mount != nil {
		return AlreadyExists
	}
	if r.n.children.Len() > 0 {
		return AlreadyExists
	}
	r.n.mount = backend
	return OK
}

// Unmount detaches whatever Mount is attached at path. Unlike most
// operations here, it cannot resolve path through
// findLastValidVirtualNode directly: that helper hands resolution off to a
// node's own mount as soon as it finds one, which is exactly the node
// Unmount needs to reach. Instead it resolves path's parent normally and
// fetches the named child itself.
func (v *VFS) Unmount(path string) Result {
	v.mu.Lock()
	defer v.mu.Unlock()

	segs := splitPath(path)
	if len(segs) == 0 {
		v.root.mu.Lock()
		defer v.root.mu.Unlock()
		if v.root.mount == nil {
			return NotFound
		}
		v.root.mount = nil
		return OK
	}

	parentSegs, name := segs[:len(segs)-1], segs[len(segs)-1]
	r, res := v.findLastValidVirtualNode(parentSegs)
	if res != OK {
		return res
	}
	if r.mount != nil {
		return MountError
	}

	target, ok := r.n.children.Get(name)
	if !ok {
		return NotFound
	}

	target.mu.Lock()
	defer target.mu.Unlock()
	if target.mount == nil {
		return NotFound
	}
	target.mount = nil
	return OK
}
