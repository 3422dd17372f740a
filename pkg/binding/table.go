// Package binding holds the run-time mapping from query identifiers to their
// latest result payloads.
package binding

import (
	"sort"
	"sync"
)

// Reader is the read side of a binding table. Live tables and frozen copies
// both satisfy it.
type Reader interface {
	Get(key string) (any, bool)
}

// Contents is a plain key to payload mapping used to seed or export a table.
type Contents map[string]any

// Update is one delivery from a live source.
type Update struct {
	Key     string
	Payload any
}

// Table maps query keys to payloads. Each key is replaced as a unit: readers
// observe either the previous payload or the new one, never a mixture.
// Payloads are treated as immutable once stored.
type Table struct {
	mu      sync.RWMutex
	entries map[string]any
}

// NewTable returns a table seeded with a copy of contents.
func NewTable(contents Contents) *Table {
	t := &Table{entries: make(map[string]any, len(contents))}
	for k, v := range contents {
		t.entries[k] = v
	}
	return t
}

// Set stores payload under key, replacing any previous value.
func (t *Table) Set(key string, payload any) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.entries == nil {
		t.entries = make(map[string]any)
	}
	t.entries[key] = payload
}

// Get returns the payload stored under key.
func (t *Table) Get(key string) (any, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	v, ok := t.entries[key]
	return v, ok
}

// Invalidate clears key and reports whether an entry was present.
func (t *Table) Invalidate(key string) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	_, ok := t.entries[key]
	delete(t.entries, key)
	return ok
}

// Replace swaps the whole table for contents in one step.
func (t *Table) Replace(contents Contents) {
	next := make(map[string]any, len(contents))
	for k, v := range contents {
		next[k] = v
	}
	t.mu.Lock()
	t.entries = next
	t.mu.Unlock()
}

// Len returns the number of entries.
func (t *Table) Len() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return len(t.entries)
}

// Keys returns the sorted keys currently present.
func (t *Table) Keys() []string {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return sortedKeys(t.entries)
}

// Freeze captures the current contents as an immutable copy. JSON-like
// payloads (maps and slices) are deep-copied.
func (t *Table) Freeze() Frozen {
	t.mu.RLock()
	defer t.mu.RUnlock()
	entries := make(map[string]any, len(t.entries))
	for k, v := range t.entries {
		entries[k] = deepCopy(v)
	}
	return Frozen{entries: entries}
}

// Frozen is a read-only copy of a table taken at one point in time.
type Frozen struct {
	entries map[string]any
}

// NewFrozen builds a frozen copy directly from contents, as read back from a
// snapshot store.
func NewFrozen(contents Contents) Frozen {
	entries := make(map[string]any, len(contents))
	for k, v := range contents {
		entries[k] = deepCopy(v)
	}
	return Frozen{entries: entries}
}

// Get returns the frozen payload for key.
func (f Frozen) Get(key string) (any, bool) {
	v, ok := f.entries[key]
	return v, ok
}

// Keys returns the sorted frozen keys.
func (f Frozen) Keys() []string {
	return sortedKeys(f.entries)
}

// Len returns the number of frozen entries.
func (f Frozen) Len() int { return len(f.entries) }

// Contents returns a deep copy suitable for serialization.
func (f Frozen) Contents() Contents {
	out := make(Contents, len(f.entries))
	for k, v := range f.entries {
		out[k] = deepCopy(v)
	}
	return out
}

func sortedKeys(m map[string]any) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func deepCopy(v any) any {
	switch t := v.(type) {
	case map[string]any:
		out := make(map[string]any, len(t))
		for k, inner := range t {
			out[k] = deepCopy(inner)
		}
		return out
	case []any:
		out := make([]any, len(t))
		for i, inner := range t {
			out[i] = deepCopy(inner)
		}
		return out
	case []map[string]any:
		out := make([]map[string]any, len(t))
		for i, inner := range t {
			out[i], _ = deepCopy(inner).(map[string]any)
		}
		return out
	default:
		return v
	}
}
