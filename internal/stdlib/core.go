package stdlib

// CoreEntry returns the `lumen.core` NamespaceEntry: the illustrative set
// of builtins spec §6.5 names (+, -, conj, assoc, get, first, rest, cons,
// seq, count, =, reduce, map, filter, atom, swap!, deref), bound eagerly at
// Bootstrap time. A real standard library would split these across several
// namespaces and add hundreds more entries; this table demonstrates the
// registration mechanism end to end rather than reimplementing Clojure's
// core in full.
func CoreEntry() NamespaceEntry {
	return NamespaceEntry{
		Name:    "lumen.core",
		Loading: Eager,
		Builtins: []BuiltinEntry{
			{Name: "+", Fn: builtinAdd, Doc: "Returns the sum of nums.", Arglists: []string{"[& nums]"}, Added: "1.0"},
			{Name: "-", Fn: builtinSub, Doc: "Subtracts the rest from the first, or negates a single num.", Arglists: []string{"[x]", "[x & ys]"}, Added: "1.0"},
			{Name: "=", Fn: builtinEq, Doc: "Structural equality across every argument.", Arglists: []string{"[x & ys]"}, Added: "1.0"},
			{Name: "conj", Fn: builtinConj, Doc: "Adds xs to coll, returning a new collection of the same kind.", Arglists: []string{"[coll & xs]"}, Added: "1.0"},
			{Name: "assoc", Fn: builtinAssoc, Doc: "Associates key-value pairs into an associative collection or vector.", Arglists: []string{"[coll k v & kvs]"}, Added: "1.0"},
			{Name: "get", Fn: builtinGet, Doc: "Looks up k in coll, returning default (nil if unspecified) on a miss.", Arglists: []string{"[coll k]", "[coll k default]"}, Added: "1.0"},
			{Name: "first", Fn: builtinFirst, Doc: "Returns the first item of a seqable collection, or nil.", Arglists: []string{"[coll]"}, Added: "1.0"},
			{Name: "rest", Fn: builtinRest, Doc: "Returns a possibly-empty seq of everything after the first item.", Arglists: []string{"[coll]"}, Added: "1.0"},
			{Name: "cons", Fn: builtinCons, Doc: "Prepends x onto coll.", Arglists: []string{"[x coll]"}, Added: "1.0"},
			{Name: "seq", Fn: builtinSeq, Doc: "Returns nil on an empty collection, coll otherwise.", Arglists: []string{"[coll]"}, Added: "1.0"},
			{Name: "count", Fn: builtinCount, Doc: "Returns the number of items in coll.", Arglists: []string{"[coll]"}, Added: "1.0"},
			{Name: "reduce", Fn: builtinReduce, Doc: "Folds f over coll, seeded by init when given.", Arglists: []string{"[f coll]", "[f init coll]"}, Added: "1.0"},
			{Name: "map", Fn: builtinMap, Doc: "Applies f to every item of coll, returning a new list.", Arglists: []string{"[f coll]"}, Added: "1.0"},
			{Name: "filter", Fn: builtinFilter, Doc: "Returns a list of coll's items for which (pred item) is truthy.", Arglists: []string{"[pred coll]"}, Added: "1.0"},
			{Name: "atom", Fn: builtinAtom, Doc: "Creates an atom wrapping init.", Arglists: []string{"[init]"}, Added: "1.0"},
			{Name: "swap!", Fn: builtinSwapBang, Doc: "Atomically applies f to the atom's current value plus args, storing and returning the result.", Arglists: []string{"[atom f & args]"}, Added: "1.0"},
			{Name: "deref", Fn: builtinDeref, Doc: "Dereferences an atom, ref, volatile, promise, or var.", Arglists: []string{"[ref]"}, Added: "1.0"},
		},
	}
}

// DefaultRegistry builds a Registry pre-loaded with CoreEntry, the table a
// fresh runtime boots against.
func DefaultRegistry() *Registry {
	r := NewRegistry()
	r.Register(CoreEntry())
	return r
}
