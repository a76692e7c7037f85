// Package promise implements the chainable asynchronous operation graph
// that drives every device-side operation in rasterkernel: Event, Promise,
// and the append/merge/wait combinators. The concrete operations
// (push, pull, fill, run, call, callc) live in ops.go.
package promise

import (
	"fmt"

	"github.com/gogpu/rasterkernel/device"
)

// Event is an opaque completion handle. It is produced by exactly one
// operation and may be waited on by any number of successors; the
// happens-after ordering a promise chain encodes is expressed as one
// event depending (transitively, through Wait) on the events that
// preceded it.
type Event struct {
	done     chan struct{}
	err      error
	panicVal any
}

func newEvent() *Event {
	return &Event{done: make(chan struct{})}
}

func (e *Event) finish(err error) {
	e.err = err
	close(e.done)
}

func (e *Event) finishPanic(v any) {
	e.panicVal = v
	close(e.done)
}

// Wait blocks until e completes. A panic captured from the operation that
// produced e is re-raised here, in the waiting goroutine: this is how a
// failure inside a call/callc body propagates to the host thread that
// invoked wait without the producing goroutine itself crashing the
// process.
func (e *Event) Wait() error {
	<-e.done
	if e.panicVal != nil {
		panic(e.panicVal)
	}
	return e.err
}

func waitAll(events []*Event) error {
	for _, e := range events {
		if err := e.Wait(); err != nil {
			return err
		}
	}
	return nil
}

// Promise carries a set of dependency events and the Context (and hence
// command queue) they were enqueued on.
type Promise struct {
	ctx    *device.Context
	events []*Event
}

// New returns an empty Promise bound to ctx's command queue.
func New(ctx *device.Context) *Promise {
	return &Promise{ctx: ctx}
}

// Ctx exposes the Promise's bound Context, for operation bodies.
func (p *Promise) Ctx() *device.Context { return p.ctx }

// Merge flattens the event sets of ps into one Promise. All inputs must
// share the same queue context, else ErrQueueMismatch.
func Merge(ps ...*Promise) (*Promise, error) {
	if len(ps) == 0 {
		return &Promise{}, nil
	}
	ctx := ps[0].ctx
	var events []*Event
	for _, p := range ps {
		if p.ctx != ctx {
			return nil, fmt.Errorf("%w", ErrQueueMismatch)
		}
		events = append(events, p.events...)
	}
	return &Promise{ctx: ctx, events: events}, nil
}

// Listener is the optional pre/post hook an Op may install around its
// body: promise -> promise.
type Listener func(*Promise) *Promise

// Body is an operation's core action: given the Context to enqueue onto
// and the dependency events it must wait on first, it returns the event
// that will resolve once the operation's work completes. A nil return is
// the null-event case: the operation reported no work.
type Body func(ctx *device.Context, deps []*Event) *Event

// Op is the Runnable contract every operation implements: a pre-listener,
// a body, and a post-listener, each optional.
type Op struct {
	Pre  Listener
	Run  Body
	Post Listener
}

// Then appends op to p: conceptually p << op. The returned Promise's
// event set is exactly the event op.Run produced (or empty, for a null
// event), which itself waited on every event in p.
func (p *Promise) Then(op Op) *Promise {
	cur := p
	if op.Pre != nil {
		cur = op.Pre(cur)
	}
	ev := op.Run(cur.ctx, cur.events)
	var next *Promise
	if ev == nil {
		next = &Promise{ctx: cur.ctx}
	} else {
		next = &Promise{ctx: cur.ctx, events: []*Event{ev}}
	}
	if op.Post != nil {
		next = op.Post(next)
	}
	return next
}

// Wait blocks until every event in p's dependency set completes, then
// returns a new empty Promise on the same queue: wait is itself one of
// the chainable operations, and appending it at the end of a driver's
// chain is what makes a frame observably synchronous to its caller.
// The first error encountered (in event order) is returned; a
// panic from a call/callc body propagates instead of returning.
func (p *Promise) Wait() (*Promise, error) {
	var firstErr error
	for _, e := range p.events {
		if err := e.Wait(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return &Promise{ctx: p.ctx}, firstErr
}
