package concurrency

import (
	"sort"
	"sync"
	"sync/atomic"

	"github.com/lumenlang/lumen/internal/dispatch"
	"github.com/lumenlang/lumen/internal/lumenerr"
	"github.com/lumenlang/lumen/internal/metrics"
	"github.com/lumenlang/lumen/internal/nsenv"
	"github.com/lumenlang/lumen/internal/value"
)

// globalCommitPoint is the monotonic counter every ref's history entries
// and every transaction's read_point are stamped against (spec §4.6).
var globalCommitPoint uint64

// retrySignal is the internal sentinel doGet/doSet/doEnsure/commit return
// to ask RunTransaction to restart the body. It deliberately implements
// error rather than being a raw value so == comparison against the single
// package-level instance is all a caller ever needs; nothing outside this
// package constructs or inspects one.
type retrySignal struct{}

func (retrySignal) Error() string { return "stm transaction retry" }

var errRetry error = retrySignal{}

// IsRetry reports whether err is the STM retry sentinel, for callers
// (namely the bytecode wiring that drives a dosync body) that need to
// distinguish "restart the body" from every other failure without being
// able to compare against an unexported type directly.
func IsRetry(err error) bool {
	_, ok := err.(retrySignal)
	return ok
}

// maxRetries is the STM retry bound (spec §4.6: "a fixed bound (10,000)").
// It is a package variable rather than a constant so cmd/lumen's bootstrap
// can override it from config.Config.STMRetryLimit without this package
// importing internal/config directly — the same setter-not-import seam
// dispatch.Install uses to let higher layers configure a lower one.
var maxRetries int32 = 10000

// SetMaxRetries overrides the STM transaction retry bound. Called once at
// bootstrap with the configured internal/config.Config.STMRetryLimit.
func SetMaxRetries(n int) {
	atomic.StoreInt32(&maxRetries, int32(n))
}

// Transaction tracks one in-flight STM transaction's state (spec §4.6).
type Transaction struct {
	readPoint uint64
	overrides map[*refObj]value.Value
	written   map[*refObj]bool
	commutes  map[*refObj][]commuteOp
	ensures   map[*refObj]bool
}

// txnRegistry maps the calling thread to its outermost active
// Transaction, so a dosync nested inside another reuses the outer
// transaction's state rather than starting a fresh one (spec §4.6
// "Nested transactions").
var txnRegistry sync.Map // nsenv.ThreadID -> *Transaction

func newTransaction() *Transaction {
	return &Transaction{
		readPoint: atomic.LoadUint64(&globalCommitPoint),
		overrides: make(map[*refObj]value.Value),
		written:   make(map[*refObj]bool),
		commutes:  make(map[*refObj][]commuteOp),
		ensures:   make(map[*refObj]bool),
	}
}

// CurrentTransaction returns the transaction already running on tid, if
// any, so that doGet/doSet/doCommute/doEnsure called by a nested dosync
// body operate on the same outer Transaction instead of one of their own.
func CurrentTransaction(tid nsenv.ThreadID) (*Transaction, bool) {
	tx, ok := txnRegistry.Load(tid)
	if !ok {
		return nil, false
	}
	return tx.(*Transaction), true
}

// DoGet implements spec §4.6's doGet(ref).
func DoGet(tx *Transaction, rv value.Value) (value.Value, error) {
	r := asRef(rv)
	if v, ok := tx.overrides[r]; ok {
		return v, nil
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, h := range r.history {
		if h.point <= tx.readPoint {
			return h.val, nil
		}
	}
	return value.Nil_(), errRetry
}

// DoSet implements spec §4.6's doSet(ref, v).
func DoSet(tx *Transaction, rv value.Value, v value.Value) error {
	r := asRef(rv)
	r.mu.Lock()
	newest := r.history[0].point
	r.mu.Unlock()
	if newest > tx.readPoint {
		return errRetry
	}
	tx.overrides[r] = v
	tx.written[r] = true
	return nil
}

// DoCommute implements spec §4.6's doCommute(ref, f, args…): it applies f
// to the current in-transaction value immediately (so later doGets in the
// same transaction observe the commuted result), and separately queues
// (f, args) for replay against the ref's committed value at commit time.
func DoCommute(vt *dispatch.VTable, tx *Transaction, rv value.Value, f value.Value, args []value.Value) (value.Value, error) {
	r := asRef(rv)
	cur, err := DoGet(tx, rv)
	if err != nil {
		return value.Nil_(), err
	}
	callArgs := make([]value.Value, 0, len(args)+1)
	callArgs = append(callArgs, cur)
	callArgs = append(callArgs, args...)
	nv, err := vt.Call(f, callArgs)
	if err != nil {
		return value.Nil_(), err
	}
	tx.overrides[r] = nv
	tx.written[r] = true
	tx.commutes[r] = append(tx.commutes[r], commuteOp{fn: f, args: args})
	return nv, nil
}

// DoEnsure implements spec §4.6's doEnsure(ref).
func DoEnsure(tx *Transaction, rv value.Value) error {
	r := asRef(rv)
	r.mu.Lock()
	newest := r.history[0].point
	r.mu.Unlock()
	if newest > tx.readPoint {
		return errRetry
	}
	tx.ensures[r] = true
	return nil
}

// fireRecord is one watch firing deferred until after commit's locks are
// released (spec §4.6 commit step 6).
type fireRecord struct {
	list *watchList
	ref  value.Value
	old  value.Value
	nv   value.Value
}

// RunTransaction drives one dosync body to completion: it runs body
// against a fresh Transaction, commits, and on a retry signal (either from
// the body itself or from commit's own re-verification) starts over with
// a new read_point, up to maxRetries times. A dosync nested inside an
// already-running transaction on the same thread reuses that outer
// Transaction and runs body exactly once, deferring its commit to the
// outermost RunTransaction call (spec §4.6 "Nested transactions").
func RunTransaction(vt *dispatch.VTable, tid nsenv.ThreadID, body func(tx *Transaction) (value.Value, error)) (value.Value, error) {
	if outer, ok := txnRegistry.Load(tid); ok {
		return body(outer.(*Transaction))
	}
	limit := int(atomic.LoadInt32(&maxRetries))
	for attempt := 0; attempt < limit; attempt++ {
		tx := newTransaction()
		txnRegistry.Store(tid, tx)
		result, err := body(tx)
		if err == nil {
			fires, cerr := commit(vt, tx)
			txnRegistry.Delete(tid)
			if cerr == nil {
				metrics.IncRefCommit()
				for _, f := range fires {
					f.list.fire(vt, f.ref, f.old, f.nv)
				}
				return result, nil
			}
			if !IsRetry(cerr) {
				return value.Nil_(), cerr
			}
			metrics.IncSTMRetry()
			continue
		}
		txnRegistry.Delete(tid)
		if !IsRetry(err) {
			return value.Nil_(), err
		}
		metrics.IncSTMRetry()
	}
	return value.Nil_(), lumenerr.Runtime(lumenerr.KindSTMRetry, nil, "transaction exceeded %d retries", limit)
}

// commit runs the six-step algorithm of spec §4.6 under every involved
// ref's lock, acquired in ascending id order so two transactions
// contending for the same ref set can never deadlock against each other.
func commit(vt *dispatch.VTable, tx *Transaction) ([]fireRecord, error) {
	refSet := make(map[*refObj]bool, len(tx.written)+len(tx.ensures))
	for r := range tx.written {
		refSet[r] = true
	}
	for r := range tx.ensures {
		refSet[r] = true
	}
	if len(refSet) == 0 {
		return nil, nil
	}
	refs := make([]*refObj, 0, len(refSet))
	for r := range refSet {
		refs = append(refs, r)
	}
	sort.Slice(refs, func(i, j int) bool { return refs[i].id < refs[j].id })

	for _, r := range refs {
		r.mu.Lock()
	}
	defer func() {
		for _, r := range refs {
			r.mu.Unlock()
		}
	}()

	// Step 1: replay queued commutes against each ref's current committed value.
	for r, ops := range tx.commutes {
		cur := r.history[0].val
		for _, op := range ops {
			args := make([]value.Value, 0, len(op.args)+1)
			args = append(args, cur)
			args = append(args, op.args...)
			nv, err := vt.Call(op.fn, args)
			if err != nil {
				return nil, err
			}
			cur = nv
		}
		tx.overrides[r] = cur
		tx.written[r] = true
	}

	// Step 2: every written ref must still be at the read_point we started from.
	for r := range tx.written {
		if r.history[0].point > tx.readPoint {
			return nil, errRetry
		}
	}

	// Step 3: every ensured-but-not-written ref must be unchanged too.
	for r := range tx.ensures {
		if tx.written[r] {
			continue
		}
		if r.history[0].point > tx.readPoint {
			return nil, errRetry
		}
	}

	// Step 4: validators run before anything is actually committed.
	var verrs []error
	for r := range tx.written {
		if r.validator.Tag() == value.Nil {
			continue
		}
		ok, err := vt.Call(r.validator, []value.Value{tx.overrides[r]})
		if err != nil {
			verrs = append(verrs, err)
			continue
		}
		if !ok.AsBool() {
			verrs = append(verrs, lumenerr.Runtime(lumenerr.KindValidationError, nil, "invalid reference state"))
		}
	}
	if len(verrs) > 0 {
		return nil, lumenerr.Aggregate(verrs...)
	}

	// Step 5: stamp a fresh commit point and prepend new history entries.
	point := atomic.AddUint64(&globalCommitPoint, 1)
	fires := make([]fireRecord, 0, len(tx.written))
	for r := range tx.written {
		old := r.history[0].val
		nv := tx.overrides[r]
		r.history = append([]historyEntry{{val: nv, point: point}}, r.history...)
		if max := r.maxHist; max > 0 && len(r.history) > max {
			r.history = r.history[:max]
		}
		fires = append(fires, fireRecord{list: &r.watches, ref: r.self, old: old, nv: nv})
	}
	// Step 6 (firing the watches gathered above, outside any lock) is left
	// to the caller: the deferred unlock above hasn't run yet at this point.
	return fires, nil
}
