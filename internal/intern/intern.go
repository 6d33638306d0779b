// Package intern maps string content to small stable ids.
//
// A Table is an owned service: the entry point builds one and hands it to
// the compiler and the VM, so independent programs (and tests) never share
// ids by accident.
package intern

import "sync"

type ID uint32

type Table struct {
	mu   sync.RWMutex
	ids  map[string]ID
	strs []string
}

func New() *Table {
	return &Table{ids: map[string]ID{}}
}

// Intern returns the id for s, allocating one on first sight.
func (t *Table) Intern(s string) ID {
	t.mu.RLock()
	id, ok := t.ids[s]
	t.mu.RUnlock()
	if ok {
		return id
	}

	t.mu.Lock()
	defer t.mu.Unlock()
	if id, ok := t.ids[s]; ok {
		return id
	}
	id = ID(len(t.strs))
	t.strs = append(t.strs, s)
	t.ids[s] = id
	return id
}

// Find returns the id for s without allocating one.
func (t *Table) Find(s string) (ID, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	id, ok := t.ids[s]
	return id, ok
}

// Lookup returns the content for id. Unknown ids yield "".
func (t *Table) Lookup(id ID) string {
	t.mu.RLock()
	defer t.mu.RUnlock()
	if int(id) >= len(t.strs) {
		return ""
	}
	return t.strs[id]
}

func (t *Table) Len() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return len(t.strs)
}
