package reader

import (
	"sync"

	"github.com/lumenlang/lumen/internal/collections"
	"github.com/lumenlang/lumen/internal/gc"
	"github.com/lumenlang/lumen/internal/value"
)

// MetaTable associates reader-attached metadata with a heap-backed Value
// by object identity, the same identity-keyed-registry idiom
// value.KeywordIntern uses for keyword interning. Value is kept
// deliberately small and copyable (spec §3.1), so metadata — present on
// an arbitrary subset of symbols, collections, and fn forms — lives in
// its own side table rather than as a field every Value pays for.
type MetaTable struct {
	mu    sync.Mutex
	table map[value.Heaped]value.Value
}

func NewMetaTable() *MetaTable {
	return &MetaTable{table: make(map[value.Heaped]value.Value)}
}

// Set attaches meta to v, merging with any metadata v already carries
// (spec §4.1 "^meta x": "Metadata attaches to the next form by merging
// with any existing metadata"). Scalar values (nil, bool, int, float,
// char) cannot carry metadata and are returned unchanged.
func (mt *MetaTable) Set(h *gc.Heap, v value.Value, meta value.Value) value.Value {
	obj := v.Obj()
	if obj == nil {
		return v
	}
	mt.mu.Lock()
	defer mt.mu.Unlock()
	if existing, ok := mt.table[obj]; ok {
		meta = mergeMeta(h, existing, meta)
	}
	mt.table[obj] = meta
	return v
}

// mergeMeta folds fresh's entries over existing, fresh winning on
// conflicting keys (reader sugar normalizes keyword/symbol/string ^meta
// shorthand to maps before calling Set, so both sides are map-shaped here).
func mergeMeta(h *gc.Heap, existing, fresh value.Value) value.Value {
	if existing.Tag() != value.ArrayMap && existing.Tag() != value.HashMap {
		return fresh
	}
	if fresh.Tag() != value.ArrayMap && fresh.Tag() != value.HashMap {
		return fresh
	}
	merged := existing
	for _, pair := range collections.ToSlice(fresh) {
		k := collections.First(pair)
		v := collections.First(collections.Rest(pair))
		merged = collections.Assoc(h, merged, k, v)
	}
	return merged
}

// Get returns v's attached metadata, or Nil if none was ever set. This is
// the function internal/dispatch's VTable.GetMeta installs at bootstrap.
func (mt *MetaTable) Get(v value.Value) value.Value {
	obj := v.Obj()
	if obj == nil {
		return value.Nil_()
	}
	mt.mu.Lock()
	defer mt.mu.Unlock()
	if m, ok := mt.table[obj]; ok {
		return m
	}
	return value.Nil_()
}
