package concurrency

import (
	"sync"

	"github.com/lumenlang/lumen/internal/dispatch"
	"github.com/lumenlang/lumen/internal/gc"
	"github.com/lumenlang/lumen/internal/value"
)

// watchEntry is one add-watch registration, keyed by an arbitrary Value
// (conventionally a keyword) compared by this runtime's own structural
// equality rather than Go identity.
type watchEntry struct {
	key value.Value
	fn  value.Value
}

// watchList is the watch table shared by atoms and refs (spec §4.6: both
// carry "a watch list"). Entries are few in practice, so a linear scan
// under a short-held mutex is used, the same ≤~8-entries-linear-search
// shape internal/collections's array_map already uses for small tables.
type watchList struct {
	mu      sync.Mutex
	entries []watchEntry
}

func (w *watchList) add(key, fn value.Value) {
	w.mu.Lock()
	defer w.mu.Unlock()
	for i, e := range w.entries {
		if value.Equal(e.key, key) {
			w.entries[i].fn = fn
			return
		}
	}
	w.entries = append(w.entries, watchEntry{key: key, fn: fn})
}

func (w *watchList) remove(key value.Value) {
	w.mu.Lock()
	defer w.mu.Unlock()
	for i, e := range w.entries {
		if value.Equal(e.key, key) {
			w.entries = append(w.entries[:i], w.entries[i+1:]...)
			return
		}
	}
}

// fire invokes every watch fn as (key, ref, old, new), called only after
// the caller has released whatever lock guarded the update (spec §4.6: "A
// watch list fires after every successful update, outside any lock").
// A watch fn's own error is swallowed: a misbehaving observer must not be
// able to turn a successful swap!/commit into a failed one.
func (w *watchList) fire(vt *dispatch.VTable, ref, old, nv value.Value) {
	w.mu.Lock()
	snapshot := append([]watchEntry(nil), w.entries...)
	w.mu.Unlock()
	for _, e := range snapshot {
		_, _ = vt.Call(e.fn, []value.Value{e.key, ref, old, nv})
	}
}

func (w *watchList) traceChildren(visit func(gc.Object)) {
	w.mu.Lock()
	defer w.mu.Unlock()
	for _, e := range w.entries {
		if e.key.Obj() != nil {
			visit(e.key.Obj())
		}
		if e.fn.Obj() != nil {
			visit(e.fn.Obj())
		}
	}
}
