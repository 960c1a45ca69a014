package vfs

import (
	"sync"

	"github.com/rkvdev/pnix/pkg/orderedstore"
)

// Kind distinguishes the two node variants the virtual tree can hold.
type Kind int

const (
	KindDirectory Kind = iota
	KindFile
)

// node is one entry in the virtual tree. A directory either holds its own
// children (the in-memory default) or delegates entirely to a Mount; a
// file holds its bytes directly — there is no mount indirection for files
// themselves, only for the directories that can contain them.
type node struct {
	mu   sync.RWMutex
	name string
	kind Kind

	// directory fields
	children *orderedstore.Store[string, *node]
	mount    Mount

	// file fields
	data []byte

	readOnly bool
}

func newDirNode(name string) *node {
	return &node{
		name:     name,
		kind:     KindDirectory,
		children: orderedstore.New[string, *node](),
	}
}

func newFileNode(name string, data []byte) *node {
	return &node{
		name: name,
		kind: KindFile,
		data: append([]byte(nil), data...),
	}
}

func (n *node) isMounted() bool {
	n.mu.RLock()
	defer n.mu.RUnlock()
	return n.mount != nil
}

func (n *node) getMount() Mount {
	n.mu.RLock()
	defer n.mu.RUnlock()
	return n.mount
}

func (n *node) setReadOnly(ro bool) {
	n.mu.Lock()
	n.readOnly = ro
	n.mu.Unlock()
}

func (n *node) isReadOnly() bool {
	n.mu.RLock()
	defer n.mu.RUnlock()
	return n.readOnly
}

func (n *node) readData() []byte {
	n.mu.RLock()
	defer n.mu.RUnlock()
	out := make([]byte, len(n.data))
	copy(out, n.data)
	return out
}

func (n *node) writeData(data []byte) {
	n.mu.Lock()
	n.data = append([]byte(nil), data...)
	n.mu.Unlock()
}
