package compiler

import (
	"github.com/lumenlang/lumen/internal/analyzer"
	"github.com/lumenlang/lumen/internal/value"
)

// compileTry lowers `(try body... (catch Class e body...)* (finally
// body...)?)` (spec §4.3 "Exception frames"). One push_handler is emitted
// per catch clause, in reverse declaration order so the first-declared
// catch ends up nearest the top of the runtime handler stack and is
// tried first on an unwind; a `finally` is additionally protected by one
// more catch-all handler beneath all the named catches, whose job is to
// run the finally body once more and re-throw (spec: "finally clauses are
// compiled as duplicated code along normal and exceptional paths").
func (c *Compiler) compileTry(n analyzer.TryNode, cc cctx) error {
	e := cc.e
	hasFinally := len(n.Finally) > 0

	var finallyHandlerJump int
	if hasFinally {
		finallyHandlerJump = e.emitJump(OpPushHandler)
		e.emitI32(-1) // no class filter: catches everything
	}

	handlerJumps := make([]int, len(n.Catches))
	for i := len(n.Catches) - 1; i >= 0; i-- {
		k := e.addConst(value.NewString(c.heap, n.Catches[i].ClassName))
		handlerJumps[i] = e.emitJump(OpPushHandler)
		e.emitI32(k)
	}

	if err := c.compileDo(n.Body, cc); err != nil {
		return err
	}

	for range n.Catches {
		e.emitOp(OpPopHandler)
	}
	if hasFinally {
		e.emitOp(OpPopHandler)
		if err := c.compileDiscard(n.Finally, cc); err != nil {
			return err
		}
	}

	var toEnd []int
	toEnd = append(toEnd, e.emitJump(OpJmp))

	for i, catch := range n.Catches {
		e.patchJump(handlerJumps[i])
		e.track(1) // thrown value pushed by the VM's unwind
		e.emitOpI32(OpStoreLocal, catch.BindSlot)
		e.track(-1)
		if err := c.compileDo(catch.Body, cc); err != nil {
			return err
		}
		if hasFinally {
			if err := c.compileDiscard(n.Finally, cc); err != nil {
				return err
			}
		}
		toEnd = append(toEnd, e.emitJump(OpJmp))
	}

	if hasFinally {
		e.patchJump(finallyHandlerJump)
		e.track(1)
		if err := c.compileDiscard(n.Finally, cc); err != nil {
			return err
		}
		e.emitOp(OpThrow)
	}

	for _, j := range toEnd {
		e.patchJump(j)
	}
	return nil
}

// compileDiscard compiles a body purely for its side effects, popping
// every value it produces including the last (used for `finally`, whose
// own value is never observed).
func (c *Compiler) compileDiscard(body []analyzer.Node, cc cctx) error {
	for _, stmt := range body {
		if err := c.compileNode(stmt, cc); err != nil {
			return err
		}
		cc.e.emitOp(OpPop)
		cc.e.track(-1)
	}
	return nil
}

