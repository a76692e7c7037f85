package promise

import (
	"errors"
	"testing"

	"github.com/gogpu/rasterkernel/device"
)

func testContext(t *testing.T) *device.Context {
	t.Helper()
	devices := device.Devices(device.Platforms(), device.KindCPU)
	if len(devices) == 0 {
		t.Fatal("no software device registered")
	}
	ctx, err := device.NewContext(devices[0])
	if err != nil {
		t.Fatalf("new context: %v", err)
	}
	t.Cleanup(ctx.Close)
	return ctx
}

func TestPromiseOrdering(t *testing.T) {
	ctx := testContext(t)
	var trace []int

	p := New(ctx)
	p = p.Then(Call(func() error { trace = append(trace, 1); return nil }))
	p = p.Then(Call(func() error { trace = append(trace, 2); return nil }))
	p = p.Then(Call(func() error { trace = append(trace, 3); return nil }))

	if _, err := p.Wait(); err != nil {
		t.Fatalf("wait: %v", err)
	}
	if len(trace) != 3 || trace[0] != 1 || trace[1] != 2 || trace[2] != 3 {
		t.Fatalf("observed order %v, want [1 2 3]", trace)
	}
}

func TestPromiseMergeQueueMismatch(t *testing.T) {
	ctx1 := testContext(t)
	ctx2 := testContext(t)

	if _, err := Merge(New(ctx1), New(ctx2)); !errors.Is(err, ErrQueueMismatch) {
		t.Fatalf("got %v, want ErrQueueMismatch", err)
	}
}

func TestPromiseErrorPropagation(t *testing.T) {
	ctx := testContext(t)
	wantErr := errors.New("boom")

	p := New(ctx).Then(Call(func() error { return wantErr }))
	if _, err := p.Wait(); !errors.Is(err, wantErr) {
		t.Fatalf("got %v, want %v", err, wantErr)
	}
}

func TestPromiseCallPanicPropagatesToWaiter(t *testing.T) {
	ctx := testContext(t)

	p := New(ctx).Then(Call(func() error { panic("kaboom") }))

	defer func() {
		r := recover()
		if r == nil {
			t.Fatal("expected panic to propagate to the waiting goroutine")
		}
	}()
	p.Wait()
}

func TestNullEventYieldsEmptyEventSet(t *testing.T) {
	ctx := testContext(t)
	p := New(ctx).Then(Op{Run: func(ctx *device.Context, deps []*Event) *Event { return nil }})
	if len(p.events) != 0 {
		t.Fatalf("expected empty event set, got %d events", len(p.events))
	}
}
