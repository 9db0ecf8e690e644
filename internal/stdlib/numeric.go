package stdlib

import (
	"github.com/lumenlang/lumen/internal/lumenerr"
	"github.com/lumenlang/lumen/internal/value"
	"github.com/lumenlang/lumen/internal/vm"
)

func arityErr(name string, n int) error {
	return lumenerr.Runtime(lumenerr.KindArity, nil, "%s: wrong number of arguments (%d)", name, n)
}

func typeErr(name string, v value.Value) error {
	return lumenerr.Runtime(lumenerr.KindType, nil, "%s: not a number: %s", name, v.String())
}

// numBinOp applies iop/fop to a and b with the numeric contagion spec
// §3.1 requires: an all-Int pair stays an Int, any Float operand promotes
// the result to Float.
func numBinOp(name string, a, b value.Value, iop func(int64, int64) int64, fop func(float64, float64) float64) (value.Value, error) {
	if a.Tag() == value.Int && b.Tag() == value.Int {
		return value.NewInt(iop(a.AsInt(), b.AsInt())), nil
	}
	fa, err := asFloat(name, a)
	if err != nil {
		return value.Nil_(), err
	}
	fb, err := asFloat(name, b)
	if err != nil {
		return value.Nil_(), err
	}
	return value.NewFloat(fop(fa, fb)), nil
}

func asFloat(name string, v value.Value) (float64, error) {
	switch v.Tag() {
	case value.Int:
		return float64(v.AsInt()), nil
	case value.Float:
		return v.AsFloat(), nil
	default:
		return 0, typeErr(name, v)
	}
}

func builtinAdd(vmArg *vm.VM, args []value.Value) (value.Value, error) {
	acc := value.NewInt(0)
	for _, a := range args {
		var err error
		acc, err = numBinOp("+", acc, a, func(x, y int64) int64 { return x + y }, func(x, y float64) float64 { return x + y })
		if err != nil {
			return value.Nil_(), err
		}
	}
	return acc, nil
}

func builtinSub(vmArg *vm.VM, args []value.Value) (value.Value, error) {
	if len(args) == 0 {
		return value.Nil_(), arityErr("-", 0)
	}
	sub := func(x, y int64) int64 { return x - y }
	fsub := func(x, y float64) float64 { return x - y }
	if len(args) == 1 {
		return numBinOp("-", value.NewInt(0), args[0], sub, fsub)
	}
	acc := args[0]
	for _, a := range args[1:] {
		var err error
		acc, err = numBinOp("-", acc, a, sub, fsub)
		if err != nil {
			return value.Nil_(), err
		}
	}
	return acc, nil
}

// builtinEq compares every argument to the first for structural equality
// (spec §3.1), including the numeric-contagion rule value.Equal already
// implements.
func builtinEq(vmArg *vm.VM, args []value.Value) (value.Value, error) {
	for i := 1; i < len(args); i++ {
		if !value.Equal(args[0], args[i]) {
			return value.NewBool(false), nil
		}
	}
	return value.NewBool(true), nil
}
