package promise

import (
	"github.com/gogpu/rasterkernel/buffer"
	"github.com/gogpu/rasterkernel/device"
)

func enqueue(run func(ctx *device.Context) error) Body {
	return func(ctx *device.Context, deps []*Event) *Event {
		ev := newEvent()
		ctx.Queue().Go(func() {
			defer func() {
				if r := recover(); r != nil {
					ev.finishPanic(r)
				}
			}()
			if err := waitAll(deps); err != nil {
				ev.finish(err)
				return
			}
			ev.finish(run(ctx))
		})
		return ev
	}
}

// Push builds the push(B) operation: map for write, run the H->D
// converter against the host shadow, then write the converted bytes to
// the device buffer.
func Push[H, D any](b *buffer.Buffer[H, D]) Op {
	return Op{Run: enqueue(func(ctx *device.Context) error { return b.Push(ctx) })}
}

// Pull builds the pull(B) operation: read the device bytes back, then
// run the D->H converter into the host shadow.
func Pull[H, D any](b *buffer.Buffer[H, D]) Op {
	return Op{Run: enqueue(func(ctx *device.Context) error { return b.Pull(ctx) })}
}

// Fill builds the fill(B, pattern) operation.
func Fill[H, D any](b *buffer.Buffer[H, D], pattern H) Op {
	return Op{Run: enqueue(func(ctx *device.Context) error { return b.Fill(ctx, pattern) })}
}

// Run builds the run(K, n) operation: launch kernel k with global size n,
// or k.Range() when n is zero.
func Run(k *device.Kernel, n int) Op {
	return Op{Run: enqueue(func(ctx *device.Context) error { return k.Dispatch(n) })}
}

// Call builds the call(fn) operation: insert a barrier on the promise's
// current dependencies, then on barrier completion invoke fn inline on
// the queue worker, then signal the returned event.
func Call(fn func() error) Op {
	return Op{Run: enqueue(func(ctx *device.Context) error { return fn() })}
}

// Callc builds the callc(fn) operation: like Call, but fn returns a
// sub-promise; the operation's event resolves only once that
// sub-promise's own dependencies have completed too, as if its
// trailing call had been appended directly to the returned promise.
func Callc(fn func() (*Promise, error)) Op {
	return Op{Run: func(ctx *device.Context, deps []*Event) *Event {
		ev := newEvent()
		ctx.Queue().Go(func() {
			defer func() {
				if r := recover(); r != nil {
					ev.finishPanic(r)
				}
			}()
			if err := waitAll(deps); err != nil {
				ev.finish(err)
				return
			}
			sub, err := fn()
			if err != nil {
				ev.finish(err)
				return
			}
			if sub == nil {
				ev.finish(nil)
				return
			}
			ev.finish(waitAll(sub.events))
		})
		return ev
	}}
}
