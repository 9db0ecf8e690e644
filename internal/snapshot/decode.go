package snapshot

import (
	"errors"
	"fmt"

	"github.com/hashicorp/go-hclog"
	"github.com/hashicorp/go-version"
	"github.com/lumenlang/lumen/internal/collections"
	"github.com/lumenlang/lumen/internal/gc"
	"github.com/lumenlang/lumen/internal/nsenv"
	"github.com/lumenlang/lumen/internal/value"
)

// FormatVersion is this runtime's snapshot format version tag (spec §6.3).
// Bumped whenever wireValue/wireVar/wireNamespace's shape changes in a way
// that breaks a previously written snapshot.
const FormatVersion = "1.0.0"

// ErrFormatMismatch signals a snapshot whose version tag this runtime does
// not understand. Per spec §6.3 ("Format is versioned; mismatch triggers a
// rebuild"), the caller's only documented response is to fall back to a
// normal bootstrap compile, not to attempt a partial restore.
var ErrFormatMismatch = errors.New("snapshot: format version mismatch")

func checkVersion(tag string) error {
	got, err := version.NewVersion(tag)
	if err != nil {
		return fmt.Errorf("%w: unparseable version %q", ErrFormatMismatch, tag)
	}
	want, _ := version.NewVersion(FormatVersion)
	if !got.Equal(want) {
		return fmt.Errorf("%w: snapshot is %s, runtime wants %s", ErrFormatMismatch, got, want)
	}
	return nil
}

// Restore rebuilds an Environment from a Snapshot (spec §6.3): every
// namespace is recreated, every var re-interned and rebound, and every
// captured value materialized onto heap. Callers should fall back to a
// normal bootstrap compile on any returned error.
func Restore(heap *gc.Heap, log hclog.Logger, snap *Snapshot) (*nsenv.Environment, error) {
	if err := checkVersion(snap.FormatVersion); err != nil {
		return nil, err
	}

	env := nsenv.NewEnvironment(heap, log)
	dec := &decoder{
		heap:     heap,
		keywords: env.Keywords,
		values:   make([]value.Value, len(snap.Values)),
		built:    make([]bool, len(snap.Values)),
	}

	for _, wns := range snap.Namespaces {
		ns := env.FindOrCreateNamespace(wns.Name)
		ns.SetDoc(wns.Doc)
		ns.SetLifecycle(nsenv.LifecycleState(wns.Lifecycle))
		for short, full := range wns.Aliases {
			ns.AddAlias(short, full)
		}
	}

	for _, wv := range snap.Vars {
		ns := env.FindOrCreateNamespace(wv.NS)
		v := ns.Intern(wv.Name)
		v.SetDynamic(wv.Dynamic)
		v.SetMacro(wv.Macro)
		if wv.Value >= 0 {
			val, err := dec.resolve(wv.Value, snap)
			if err != nil {
				return nil, err
			}
			v.BindRoot(val)
		}
		if wv.Meta >= 0 {
			meta, err := dec.resolve(wv.Meta, snap)
			if err != nil {
				return nil, err
			}
			v.SetMeta(meta)
		}
	}

	return env, nil
}

// decoder materializes the snapshot's value table on demand, memoizing each
// index so a value referenced by several vars (or nested inside several
// collections) is allocated exactly once — the decode-side mirror of
// encoder.encodeValue's dedup.
type decoder struct {
	heap     *gc.Heap
	keywords *value.KeywordIntern
	values   []value.Value
	built    []bool
}

func (d *decoder) resolve(idx int, snap *Snapshot) (value.Value, error) {
	if idx < 0 || idx >= len(snap.Values) {
		return value.Nil_(), fmt.Errorf("snapshot: value index %d out of range", idx)
	}
	if d.built[idx] {
		return d.values[idx], nil
	}

	wv := snap.Values[idx]
	var out value.Value
	switch wv.Kind {
	case wNil:
		out = value.Nil_()
	case wBool:
		out = value.NewBool(wv.Bool)
	case wInt:
		out = value.NewInt(wv.Int)
	case wFloat:
		out = value.NewFloat(wv.Float)
	case wChar:
		out = value.NewChar(rune(wv.Char))
	case wString:
		out = value.NewString(d.heap, wv.Str)
	case wSymbol:
		out = value.NewSymbol(d.heap, wv.NS, wv.Name)
	case wKeyword:
		out = d.keywords.Intern(wv.NS, wv.Name)
	case wList, wVector, wSet:
		items, err := d.resolveAll(wv.Children, snap)
		if err != nil {
			return value.Nil_(), err
		}
		switch wv.Kind {
		case wList:
			out = collections.NewList(d.heap, items...)
		case wVector:
			out = collections.NewVector(d.heap, items...)
		default:
			out = collections.NewSet(d.heap, items...)
		}
	case wArrayMap, wHashMap:
		if len(wv.Pairs)%2 != 0 {
			return value.Nil_(), fmt.Errorf("snapshot: odd pair count at value index %d", idx)
		}
		kvs, err := d.resolveAll(wv.Pairs, snap)
		if err != nil {
			return value.Nil_(), err
		}
		if wv.Kind == wArrayMap {
			out = collections.NewArrayMap(d.heap, kvs...)
		} else {
			m := collections.EmptyHashMap()
			for i := 0; i+1 < len(kvs); i += 2 {
				m = collections.Assoc(d.heap, m, kvs[i], kvs[i+1])
			}
			out = m
		}
	default:
		return value.Nil_(), fmt.Errorf("snapshot: unknown wire tag %d at value index %d", wv.Kind, idx)
	}

	d.values[idx] = out
	d.built[idx] = true
	return out, nil
}

func (d *decoder) resolveAll(indices []int, snap *Snapshot) ([]value.Value, error) {
	out := make([]value.Value, len(indices))
	for i, idx := range indices {
		v, err := d.resolve(idx, snap)
		if err != nil {
			return nil, err
		}
		out[i] = v
	}
	return out, nil
}
