package stdlib

import (
	"github.com/lumenlang/lumen/internal/collections"
	"github.com/lumenlang/lumen/internal/concurrency"
	"github.com/lumenlang/lumen/internal/lumenerr"
	"github.com/lumenlang/lumen/internal/nsenv"
	"github.com/lumenlang/lumen/internal/value"
	"github.com/lumenlang/lumen/internal/vm"
)

func builtinConj(vmArg *vm.VM, args []value.Value) (value.Value, error) {
	if len(args) < 1 {
		return value.Nil_(), arityErr("conj", len(args))
	}
	coll := args[0]
	heap := vmArg.Env().Heap
	for _, x := range args[1:] {
		switch coll.Tag() {
		case value.Vector:
			coll = collections.Conj(heap, coll, x)
		case value.Set:
			coll = collections.SetConj(heap, coll, x)
		case value.List, value.Nil:
			if coll.Tag() == value.Nil {
				coll = collections.EmptyList()
			}
			coll = collections.Cons(heap, x, coll)
		default:
			return value.Nil_(), lumenerr.Runtime(lumenerr.KindType, nil, "conj: not a collection: %s", coll.Tag())
		}
	}
	return coll, nil
}

// builtinAssoc implements `(assoc coll k v & kvs)`: associative maps dispatch
// through collections.Assoc (array-map/hash-map, auto-promoting past the
// array-map size threshold); vectors assoc by index via collections.AssocN.
func builtinAssoc(vmArg *vm.VM, args []value.Value) (value.Value, error) {
	if len(args) < 3 || len(args)%2 != 1 {
		return value.Nil_(), arityErr("assoc", len(args))
	}
	coll := args[0]
	heap := vmArg.Env().Heap
	for i := 1; i < len(args); i += 2 {
		k, v := args[i], args[i+1]
		switch coll.Tag() {
		case value.ArrayMap, value.HashMap:
			coll = collections.Assoc(heap, coll, k, v)
		case value.Vector:
			if k.Tag() != value.Int {
				return value.Nil_(), typeErr("assoc", k)
			}
			next, ok := collections.AssocN(heap, coll, int(k.AsInt()), v)
			if !ok {
				return value.Nil_(), lumenerr.Runtime(lumenerr.KindIndex, nil, "assoc: index %d out of bounds", k.AsInt())
			}
			coll = next
		default:
			return value.Nil_(), lumenerr.Runtime(lumenerr.KindType, nil, "assoc: not associative: %s", coll.Tag())
		}
	}
	return coll, nil
}

// builtinGet implements `(get coll k)` / `(get coll k default)` across
// associative maps, vectors (index lookup), and sets (membership-as-value).
func builtinGet(vmArg *vm.VM, args []value.Value) (value.Value, error) {
	if len(args) < 2 || len(args) > 3 {
		return value.Nil_(), arityErr("get", len(args))
	}
	coll, k := args[0], args[1]
	fallback := value.Nil_()
	if len(args) == 3 {
		fallback = args[2]
	}
	switch coll.Tag() {
	case value.ArrayMap, value.HashMap:
		if v, ok := collections.Get(coll, k); ok {
			return v, nil
		}
	case value.Vector:
		if k.Tag() == value.Int {
			if v, ok := collections.VectorNth(coll, int(k.AsInt())); ok {
				return v, nil
			}
		}
	case value.Set:
		if collections.SetContains(coll, k) {
			return k, nil
		}
	}
	return fallback, nil
}

func builtinFirst(vmArg *vm.VM, args []value.Value) (value.Value, error) {
	if len(args) != 1 {
		return value.Nil_(), arityErr("first", len(args))
	}
	return collections.First(args[0]), nil
}

func builtinRest(vmArg *vm.VM, args []value.Value) (value.Value, error) {
	if len(args) != 1 {
		return value.Nil_(), arityErr("rest", len(args))
	}
	return collections.Rest(args[0]), nil
}

func builtinCons(vmArg *vm.VM, args []value.Value) (value.Value, error) {
	if len(args) != 2 {
		return value.Nil_(), arityErr("cons", len(args))
	}
	tail := args[1]
	if tail.Tag() == value.Nil {
		tail = collections.EmptyList()
	}
	return collections.Cons(vmArg.Env().Heap, args[0], tail), nil
}

// builtinSeq returns nil for an empty or nil collection and the collection
// itself otherwise; every seq-consuming builtin here (first/rest/count/
// reduce/map/filter) already accepts any seqable tag uniformly, so a
// dedicated seq-view adapter isn't needed to make `(seq coll)` useful.
func builtinSeq(vmArg *vm.VM, args []value.Value) (value.Value, error) {
	if len(args) != 1 {
		return value.Nil_(), arityErr("seq", len(args))
	}
	if collections.IsEmptySeq(args[0]) {
		return value.Nil_(), nil
	}
	return args[0], nil
}

func builtinCount(vmArg *vm.VM, args []value.Value) (value.Value, error) {
	if len(args) != 1 {
		return value.Nil_(), arityErr("count", len(args))
	}
	return value.NewInt(int64(collections.Count(args[0]))), nil
}

// builtinReduce implements `(reduce f coll)` / `(reduce f init coll)`.
// Early termination via `reduced` is out of scope for this illustrative
// builtin set (spec §6.5 names reduce among the illustrative entries, not
// among the reducers/transducers machinery).
func builtinReduce(vmArg *vm.VM, args []value.Value) (value.Value, error) {
	switch len(args) {
	case 2:
		f, coll := args[0], args[1]
		items := collections.ToSlice(coll)
		if len(items) == 0 {
			return vmArg.Call(f, nil)
		}
		return reduceOver(vmArg, f, items[0], items[1:])
	case 3:
		f, init, coll := args[0], args[1], args[2]
		return reduceOver(vmArg, f, init, collections.ToSlice(coll))
	default:
		return value.Nil_(), arityErr("reduce", len(args))
	}
}

func reduceOver(vmArg *vm.VM, f, acc value.Value, items []value.Value) (value.Value, error) {
	for _, it := range items {
		next, err := vmArg.Call(f, []value.Value{acc, it})
		if err != nil {
			return value.Nil_(), err
		}
		acc = next
	}
	return acc, nil
}

// builtinMap eagerly materializes `(map f coll)` into a list; the teacher's
// lazy-seq machinery needs a VM-bound thunk to defer realization, which is
// out of scope for this illustrative builtin set.
func builtinMap(vmArg *vm.VM, args []value.Value) (value.Value, error) {
	if len(args) != 2 {
		return value.Nil_(), arityErr("map", len(args))
	}
	f, coll := args[0], args[1]
	items := collections.ToSlice(coll)
	out := make([]value.Value, len(items))
	for i, it := range items {
		r, err := vmArg.Call(f, []value.Value{it})
		if err != nil {
			return value.Nil_(), err
		}
		out[i] = r
	}
	return collections.NewList(vmArg.Env().Heap, out...), nil
}

func builtinFilter(vmArg *vm.VM, args []value.Value) (value.Value, error) {
	if len(args) != 2 {
		return value.Nil_(), arityErr("filter", len(args))
	}
	pred, coll := args[0], args[1]
	var out []value.Value
	for _, it := range collections.ToSlice(coll) {
		keep, err := vmArg.Call(pred, []value.Value{it})
		if err != nil {
			return value.Nil_(), err
		}
		if keep.Truthy() {
			out = append(out, it)
		}
	}
	return collections.NewList(vmArg.Env().Heap, out...), nil
}

func builtinAtom(vmArg *vm.VM, args []value.Value) (value.Value, error) {
	if len(args) != 1 {
		return value.Nil_(), arityErr("atom", len(args))
	}
	return concurrency.NewAtom(vmArg.Env().Heap, args[0]), nil
}

// builtinSwapBang implements `(swap! atom f & args)`.
func builtinSwapBang(vmArg *vm.VM, args []value.Value) (value.Value, error) {
	if len(args) < 2 {
		return value.Nil_(), arityErr("swap!", len(args))
	}
	target, f := args[0], args[1]
	if target.Tag() != value.Atom {
		return value.Nil_(), typeErr("swap!", target)
	}
	return concurrency.AtomSwap(vmArg.Env().Dispatch, target, f, args[2:])
}

// builtinDeref dispatches `(deref ref)` across every reference tag the
// runtime defines: atoms, refs, volatiles, promises, and vars (the last
// preferring a thread-local binding over the root, per Var.Deref).
func builtinDeref(vmArg *vm.VM, args []value.Value) (value.Value, error) {
	if len(args) != 1 {
		return value.Nil_(), arityErr("deref", len(args))
	}
	r := args[0]
	switch r.Tag() {
	case value.Atom:
		return concurrency.AtomDeref(r), nil
	case value.Ref:
		return concurrency.RefDeref(r), nil
	case value.Volatile:
		return concurrency.VolatileDeref(r), nil
	case value.Promise:
		return concurrency.PromiseDeref(r), nil
	case value.VarRef:
		return nsenv.AsVar(r).Deref(vmArg.ThreadID()), nil
	default:
		return value.Nil_(), lumenerr.Runtime(lumenerr.KindType, nil, "deref: not a reference type: %s", r.Tag())
	}
}
