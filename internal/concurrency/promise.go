package concurrency

import (
	"fmt"
	"sync"
	"time"

	"github.com/lumenlang/lumen/internal/gc"
	"github.com/lumenlang/lumen/internal/metrics"
	"github.com/lumenlang/lumen/internal/value"
)

// promiseObj backs value.Promise (spec §4.6 "Promises"): a cell with a
// mutex, a condvar, and a delivered flag. sync.Cond is used rather than a
// channel because deref-with-timeout needs to wait on the condition and
// time out independently, which a plain channel receive with a select
// handles just as well but a condvar matches the spec's own vocabulary
// ("a mutex, a condvar, and a delivered flag") directly.
type promiseObj struct {
	mu        sync.Mutex
	cond      *sync.Cond
	val       value.Value
	delivered bool
	id        uint64
}

// NewPromise allocates an undelivered promise.
func NewPromise(heap *gc.Heap) value.Value {
	p := &promiseObj{id: nextID()}
	p.cond = sync.NewCond(&p.mu)
	obj := heap.Alloc(p).(*promiseObj)
	return value.WithHeaped(value.Promise, obj)
}

func asPromise(v value.Value) *promiseObj { return v.Obj().(*promiseObj) }

// PromiseDeliver sets a promise's value iff it has not already been
// delivered, waking every blocked deref. Reports whether this call was
// the one that delivered it (spec: "sets the value... iff not yet
// delivered"; a second deliver is a harmless no-op, matching Clojure).
func PromiseDeliver(pv value.Value, v value.Value) bool {
	p := asPromise(pv)
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.delivered {
		return false
	}
	p.val = v
	p.delivered = true
	p.cond.Broadcast()
	metrics.IncPromiseDelivery()
	return true
}

// PromiseIsDelivered reports whether deliver has been called yet.
func PromiseIsDelivered(pv value.Value) bool {
	p := asPromise(pv)
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.delivered
}

// PromiseDeref blocks until the promise is delivered and returns its
// value (spec: "deref blocks on the condvar until delivered").
func PromiseDeref(pv value.Value) value.Value {
	p := asPromise(pv)
	p.mu.Lock()
	defer p.mu.Unlock()
	for !p.delivered {
		p.cond.Wait()
	}
	return p.val
}

// PromiseDerefTimeout blocks until delivered or timeout elapses, in which
// case it returns defaultVal (spec: "a timeout overload returns a
// caller-supplied default"). sync.Cond has no native timed wait, so the
// wait is moved onto a goroutine that signals a channel on wake, and the
// timeout races that channel against a timer — the broadcast from a late
// deliver still reaches the goroutine and lets it exit instead of leaking.
func PromiseDerefTimeout(pv value.Value, timeout time.Duration, defaultVal value.Value) value.Value {
	p := asPromise(pv)
	p.mu.Lock()
	if p.delivered {
		v := p.val
		p.mu.Unlock()
		return v
	}
	p.mu.Unlock()

	done := make(chan value.Value, 1)
	go func() {
		p.mu.Lock()
		for !p.delivered {
			p.cond.Wait()
		}
		v := p.val
		p.mu.Unlock()
		done <- v
	}()

	select {
	case v := <-done:
		return v
	case <-time.After(timeout):
		return defaultVal
	}
}

func (p *promiseObj) TraceChildren(visit func(gc.Object)) {
	p.mu.Lock()
	v := p.val
	delivered := p.delivered
	p.mu.Unlock()
	if delivered && v.Obj() != nil {
		visit(v.Obj())
	}
}

func (p *promiseObj) Equal(o value.Value) bool {
	op, ok := o.Obj().(*promiseObj)
	return ok && op == p
}

func (p *promiseObj) Hash() uint64 { return p.id*31 ^ 0x70726f6d }

func (p *promiseObj) String() string { return fmt.Sprintf("#<promise 0x%x>", p.id) }
