package vm

import (
	"github.com/lumenlang/lumen/internal/collections"
	"github.com/lumenlang/lumen/internal/compiler"
	"github.com/lumenlang/lumen/internal/lumenerr"
	"github.com/lumenlang/lumen/internal/nsenv"
	"github.com/lumenlang/lumen/internal/value"
)

// runFrame is the opcode dispatch loop of spec §4.4: one Go-stack call per
// non-tail Lisp call, frame fields swapped in place (not recursed into) on
// a tail call to a Fn so `recur`-free mutual tail recursion still runs in
// constant Go-stack depth. Every push_handler/pop_handler/throw in fr's own
// unit is handled locally; an error that no handler in fr catches is
// normalized and returned to whichever call site (OpCall/OpTailCall or an
// enclosing runFrame) is waiting on this frame.
func (vm *VM) runFrame(fr *Frame) (value.Value, error) {
	vm.pushFrame(fr)
	defer vm.popFrame()

	code := fr.unit.Code
	for {
		if fr.pc >= len(code) {
			return value.Nil_(), lumenerr.Runtime(lumenerr.KindCompile, nil, "pc ran past the end of unit %q", fr.unit.Name)
		}
		opStart := fr.pc
		op := compiler.Op(code[opStart])

		switch op {
		case compiler.OpConst:
			fr.push(fr.unit.Consts[readI32(code, opStart+1)])
			fr.pc = opStart + 5

		case compiler.OpNil:
			fr.push(value.Nil_())
			fr.pc = opStart + 1

		case compiler.OpTrue:
			fr.push(value.NewBool(true))
			fr.pc = opStart + 1

		case compiler.OpFalse:
			fr.push(value.NewBool(false))
			fr.pc = opStart + 1

		case compiler.OpPop:
			fr.pop()
			fr.pc = opStart + 1

		case compiler.OpDup:
			fr.push(fr.top())
			fr.pc = opStart + 1

		case compiler.OpLoadLocal:
			fr.push(fr.locals[readI32(code, opStart+1)])
			fr.pc = opStart + 5

		case compiler.OpStoreLocal:
			fr.locals[readI32(code, opStart+1)] = fr.pop()
			fr.pc = opStart + 5

		case compiler.OpLoadUp:
			fr.push(fr.fn.upvalues[readI32(code, opStart+1)])
			fr.pc = opStart + 5

		case compiler.OpStoreUp:
			fr.fn.upvalues[readI32(code, opStart+1)] = fr.pop()
			fr.pc = opStart + 5

		case compiler.OpLoadVar:
			ref := fr.unit.GlobalRefs[readI32(code, opStart+1)]
			v, err := vm.resolveVar(fr, ref)
			if err != nil {
				handled, werr := vm.unwind(fr, err)
				if handled {
					code = fr.unit.Code
					continue
				}
				return value.Nil_(), werr
			}
			if !v.IsBound() {
				handled, werr := vm.unwind(fr, lumenerr.Runtime(lumenerr.KindUnboundVar, nil, "unbound var: %s/%s", v.Namespace(), v.Name()))
				if handled {
					code = fr.unit.Code
					continue
				}
				return value.Nil_(), werr
			}
			fr.push(v.Deref(vm.threadID))
			fr.pc = opStart + 5

		case compiler.OpSetVar:
			ref := fr.unit.GlobalRefs[readI32(code, opStart+1)]
			v := vm.internVar(fr, ref)
			v.BindRoot(fr.pop())
			fr.pc = opStart + 5

		case compiler.OpPushVarRef:
			ref := fr.unit.GlobalRefs[readI32(code, opStart+1)]
			v := vm.internVar(fr, ref)
			fr.push(nsenv.NewVarRefValue(vm.heap, v))
			fr.pc = opStart + 5

		case compiler.OpJmp:
			fr.pc = readI32(code, opStart+1) + opStart + 5

		case compiler.OpJmpIfFalse:
			target := readI32(code, opStart+1) + opStart + 5
			if fr.pop().Truthy() {
				fr.pc = opStart + 5
			} else {
				fr.pc = target
			}

		case compiler.OpJmpIfTrue:
			target := readI32(code, opStart+1) + opStart + 5
			if fr.pop().Truthy() {
				fr.pc = target
			} else {
				fr.pc = opStart + 5
			}

		case compiler.OpLoopEntry:
			fr.pc = opStart + 1

		case compiler.OpRecur:
			rel := readI32(code, opStart+9)
			fr.pc = rel + opStart + 13

		case compiler.OpCall:
			argc := int(readI32(code, opStart+1))
			args := fr.popN(argc)
			callee := fr.pop()
			result, err := vm.invoke(callee, args)
			if err != nil {
				handled, werr := vm.unwind(fr, err)
				if handled {
					code = fr.unit.Code
					continue
				}
				return value.Nil_(), werr
			}
			fr.push(result)
			fr.pc = opStart + 5

		case compiler.OpTailCall:
			argc := int(readI32(code, opStart+1))
			args := fr.popN(argc)
			callee := fr.pop()
			if callee.Tag() == value.Fn {
				nfr, err := vm.prepareCallFrame(callee, args)
				if err != nil {
					handled, werr := vm.unwind(fr, err)
					if handled {
						code = fr.unit.Code
						continue
					}
					return value.Nil_(), werr
				}
				*fr = *nfr
				code = fr.unit.Code
				continue
			}
			result, err := vm.invoke(callee, args)
			if err != nil {
				handled, werr := vm.unwind(fr, err)
				if handled {
					code = fr.unit.Code
					continue
				}
				return value.Nil_(), werr
			}
			fr.push(result)
			fr.pc = opStart + 5

		case compiler.OpApply:
			argc := int(readI32(code, opStart+1))
			args := fr.popN(argc)
			callee := fr.pop()
			if n := len(args); n > 0 {
				spread := collections.ToSlice(args[n-1])
				args = append(append([]value.Value{}, args[:n-1]...), spread...)
			}
			result, err := vm.invoke(callee, args)
			if err != nil {
				handled, werr := vm.unwind(fr, err)
				if handled {
					code = fr.unit.Code
					continue
				}
				return value.Nil_(), werr
			}
			fr.push(result)
			fr.pc = opStart + 5

		case compiler.OpMakeFn:
			tmpl := fr.unit.FnTemplates[readI32(code, opStart+1)]
			fo := &fnObj{template: tmpl, upvalues: make([]value.Value, len(tmpl.Upvalues)), ns: fr.ns}
			obj := vm.heap.Alloc(fo).(*fnObj)
			fr.push(value.WithHeaped(value.Fn, obj))
			fr.captureFill = 0
			fr.pc = opStart + 5

		case compiler.OpCapture:
			fromLocal := readI32(code, opStart+1) != 0
			idx := int(readI32(code, opStart+5))
			fo := fr.top().Obj().(*fnObj)
			if fromLocal {
				fo.upvalues[fr.captureFill] = fr.locals[idx]
			} else {
				fo.upvalues[fr.captureFill] = fr.fn.upvalues[idx]
			}
			fr.captureFill++
			fr.pc = opStart + 9

		case compiler.OpThrow:
			v := fr.pop()
			handled, werr := vm.unwind(fr, &thrownSignal{val: v})
			if handled {
				code = fr.unit.Code
				continue
			}
			return value.Nil_(), werr

		case compiler.OpPushHandler:
			rel := readI32(code, opStart+1)
			target := rel + opStart + 5
			classConst := readI32(code, opStart+5)
			fr.handlers = append(fr.handlers, handlerEntry{sp: len(fr.stack), targetPC: target, classConst: classConst})
			fr.pc = opStart + 9

		case compiler.OpPopHandler:
			fr.handlers = fr.handlers[:len(fr.handlers)-1]
			fr.pc = opStart + 1

		case compiler.OpProtocolCall, compiler.OpMultifnDispatch, compiler.OpKeywordInvoke:
			// Not currently emitted by the compiler (compile_invoke always
			// lowers to the generic call/tail_call); kept behaviorally
			// identical to op_call so the catalogue is complete for a
			// future specializing pass (see DESIGN.md).
			argc := int(readI32(code, opStart+1))
			args := fr.popN(argc)
			callee := fr.pop()
			result, err := vm.invoke(callee, args)
			if err != nil {
				handled, werr := vm.unwind(fr, err)
				if handled {
					code = fr.unit.Code
					continue
				}
				return value.Nil_(), werr
			}
			fr.push(result)
			fr.pc = opStart + 5

		case compiler.OpCaseSwitchInt:
			table := fr.unit.CaseTables[readI32(code, opStart+1)]
			test := fr.pop()
			target := table.Default
			if test.Tag() == value.Int {
				idx := int(test.AsInt() - table.Base)
				if idx >= 0 && idx < len(table.DenseJumps) {
					target = table.DenseJumps[idx]
				}
			}
			fr.pc = target

		case compiler.OpCaseSwitchHash:
			table := fr.unit.CaseTables[readI32(code, opStart+1)]
			test := fr.pop()
			target := table.Default
			if pc, ok := table.HashJumps[value.Hash(test)]; ok && value.Equal(table.HashKeys[value.Hash(test)], test) {
				target = pc
			}
			fr.pc = target

		case compiler.OpRet:
			if len(fr.stack) == 0 {
				return value.Nil_(), nil
			}
			return fr.pop(), nil

		case compiler.OpAddInt:
			b, a := fr.pop(), fr.pop()
			fr.push(value.NewInt(a.AsInt() + b.AsInt()))
			fr.pc = opStart + 1

		case compiler.OpSubInt:
			b, a := fr.pop(), fr.pop()
			fr.push(value.NewInt(a.AsInt() - b.AsInt()))
			fr.pc = opStart + 1

		case compiler.OpMulInt:
			b, a := fr.pop(), fr.pop()
			fr.push(value.NewInt(a.AsInt() * b.AsInt()))
			fr.pc = opStart + 1

		case compiler.OpLtInt:
			b, a := fr.pop(), fr.pop()
			fr.push(value.NewBool(a.AsInt() < b.AsInt()))
			fr.pc = opStart + 1

		case compiler.OpGtInt:
			b, a := fr.pop(), fr.pop()
			fr.push(value.NewBool(a.AsInt() > b.AsInt()))
			fr.pc = opStart + 1

		case compiler.OpEqInt:
			b, a := fr.pop(), fr.pop()
			fr.push(value.NewBool(a.AsInt() == b.AsInt()))
			fr.pc = opStart + 1

		case compiler.OpHostNew:
			classConst := int(readI32(code, opStart+1))
			argc := int(readI32(code, opStart+5))
			args := fr.popN(argc)
			className := value.StringVal(fr.unit.Consts[classConst])
			ctor, ok := vm.HostNew[className]
			if !ok {
				handled, werr := vm.unwind(fr, lumenerr.Runtime(lumenerr.KindValue, nil, "no host constructor registered for %q", className))
				if handled {
					code = fr.unit.Code
					continue
				}
				return value.Nil_(), werr
			}
			result, err := ctor(vm, args)
			if err != nil {
				handled, werr := vm.unwind(fr, err)
				if handled {
					code = fr.unit.Code
					continue
				}
				return value.Nil_(), werr
			}
			fr.push(result)
			fr.pc = opStart + 9

		case compiler.OpHostDot:
			memberConst := int(readI32(code, opStart+1))
			argc := int(readI32(code, opStart+5))
			args := fr.popN(argc)
			target := fr.pop()
			member := value.StringVal(fr.unit.Consts[memberConst])
			tk := vm.typeKey(target)
			fn, ok := vm.HostDot[tk][member]
			if !ok {
				handled, werr := vm.unwind(fr, lumenerr.Runtime(lumenerr.KindValue, nil, "no host member %q registered for %s", member, tk))
				if handled {
					code = fr.unit.Code
					continue
				}
				return value.Nil_(), werr
			}
			result, err := fn(vm, target, args)
			if err != nil {
				handled, werr := vm.unwind(fr, err)
				if handled {
					code = fr.unit.Code
					continue
				}
				return value.Nil_(), werr
			}
			fr.push(result)
			fr.pc = opStart + 9

		default:
			return value.Nil_(), lumenerr.Runtime(lumenerr.KindCompile, nil, "vm: unhandled opcode %s", op)
		}
	}
}

// resolveVar looks up a GlobalRef against fr's defining namespace, the
// same (ns == "" delegates to the current namespace) resolution order
// the reader/analyzer use (spec §3.2).
func (vm *VM) resolveVar(fr *Frame, ref compiler.GlobalRef) (*nsenv.Var, error) {
	v, ok := vm.env.Resolve(fr.ns, ref.Ns, ref.Name)
	if !ok {
		full := ref.Name
		if ref.Ns != "" {
			full = ref.Ns + "/" + ref.Name
		}
		return nil, lumenerr.Runtime(lumenerr.KindUnboundVar, nil, "unable to resolve var: %s", full)
	}
	return v, nil
}

// internVar is resolveVar's create-if-absent counterpart, used by def
// (set_var/push_var_ref): an unqualified ref interns directly into fr's
// own namespace; a qualified ref must already name a real namespace, since
// `def` never implicitly creates one on another namespace's behalf.
func (vm *VM) internVar(fr *Frame, ref compiler.GlobalRef) *nsenv.Var {
	if ref.Ns == "" {
		return fr.ns.Intern(ref.Name)
	}
	target := vm.env.FindOrCreateNamespace(ref.Ns)
	return target.Intern(ref.Name)
}
