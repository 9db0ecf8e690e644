package analyzer

// buildRecordConstructorBody builds the single-expression body of a
// deftype* constructor: an array-map literal tagged with a
// `:__reify_type` entry (the dispatch vtable's TypeKey consults this
// tag for protocol/multimethod dispatch on record instances) plus one
// entry per field, each referencing its bound local.
func (a *Analyzer) buildRecordConstructorBody(typeName string, fieldNames []string, c ctx) (Node, error) {
	typeTagKw := a.env.Keywords.Intern("", "__reify_type")
	typeNameKw := a.env.Keywords.Intern(a.ns.Name(), typeName)

	args := []Node{
		LiteralNode{base: base{noPos, false}, Value: typeTagKw},
		LiteralNode{base: base{noPos, false}, Value: typeNameKw},
	}
	for _, fname := range fieldNames {
		isLocal, idx, ok := resolveLocalOrUpvalue(c.sc, c.fr, fname)
		if !ok {
			return nil, fieldResolutionBug(fname)
		}
		kw := a.env.Keywords.Intern("", fname)
		args = append(args, LiteralNode{base: base{noPos, false}, Value: kw})
		if isLocal {
			args = append(args, LocalRefNode{base: base{noPos, false}, Name: fname, Slot: idx})
		} else {
			args = append(args, UpvalRefNode{base: base{noPos, false}, Name: fname, Index: idx})
		}
	}
	ctor := GlobalRefNode{base: base{noPos, false}, Ns: "lumen.core", Name: "array-map"}
	return InvokeNode{base: base{noPos, true}, Fn: ctor, Args: args}, nil
}

func fieldResolutionBug(name string) error {
	return &recordFieldError{name}
}

type recordFieldError struct{ name string }

func (e *recordFieldError) Error() string {
	return "deftype* internal error: field " + e.name + " not found in constructor scope"
}
