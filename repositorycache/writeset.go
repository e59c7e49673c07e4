package repositorycache

import (
	"sort"
	"sync"
)

// WriteSet records the namespaces written during one scope.
type WriteSet struct {
	mu sync.Mutex
	ns map[string]struct{}
}

// NewWriteSet returns an empty set.
func NewWriteSet() *WriteSet {
	return &WriteSet{ns: make(map[string]struct{})}
}

// Mark adds namespace to the set.
func (w *WriteSet) Mark(namespace string) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.ns[namespace] = struct{}{}
}

// Dirty reports whether namespace was written.
func (w *WriteSet) Dirty(namespace string) bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	_, ok := w.ns[namespace]
	return ok
}

// Namespaces returns the written namespaces in sorted order.
func (w *WriteSet) Namespaces() []string {
	w.mu.Lock()
	defer w.mu.Unlock()
	out := make([]string, 0, len(w.ns))
	for ns := range w.ns {
		out = append(out, ns)
	}
	sort.Strings(out)
	return out
}
