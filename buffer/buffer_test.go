package buffer

import (
	"math"
	"testing"

	"github.com/gogpu/rasterkernel/device"
	"github.com/gogpu/rasterkernel/xform"
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

func TestBufferRoundtripIdentity(t *testing.T) {
	ctx := testContext(t)

	want := []float32{1, -2, 3.5, 0, 1e6, -1e-6}
	b := FromLiteral[float32, float32](want, Identity[float32]())

	if err := b.Push(ctx); err != nil {
		t.Fatalf("push: %v", err)
	}
	for i := range b.HostData() {
		_ = b.Set(i, 0) // scramble host side to prove Pull actually repopulates it
	}
	if err := b.Pull(ctx); err != nil {
		t.Fatalf("pull: %v", err)
	}
	got := b.HostData()
	for i, w := range want {
		if got[i] != w {
			t.Errorf("index %d: got %v want %v", i, got[i], w)
		}
	}
}

func TestBufferRoundtripVec4Converter(t *testing.T) {
	ctx := testContext(t)

	want := []xform.Vec4{
		{X: 1, Y: 2, Z: 3, W: 1},
		{X: -1, Y: 0.5, Z: 0, W: 1},
	}
	b := FromLiteral[xform.Vec4, [4]float32](want, Vec4Converter{})

	if err := b.Push(ctx); err != nil {
		t.Fatalf("push: %v", err)
	}
	if err := b.Pull(ctx); err != nil {
		t.Fatalf("pull: %v", err)
	}
	got := b.HostData()
	for i, w := range want {
		if got[i] != w {
			t.Errorf("index %d: got %+v want %+v", i, got[i], w)
		}
	}
}

func TestBufferGetSetOutOfRange(t *testing.T) {
	b := WithCapacity[float32, float32](4, Identity[float32]())
	if _, err := b.Get(4); err == nil {
		t.Fatal("expected out-of-range error")
	}
	if err := b.Set(-1, 1); err == nil {
		t.Fatal("expected out-of-range error")
	}
	if err := b.Set(2, 42); err != nil {
		t.Fatalf("set: %v", err)
	}
	v, err := b.Get(2)
	if err != nil || v != 42 {
		t.Fatalf("get(2) = %v, %v; want 42, nil", v, err)
	}
}

func TestBufferFillPattern(t *testing.T) {
	ctx := testContext(t)
	b := WithCapacity[uint32, uint32](8, Identity[uint32]())
	if err := b.Fill(ctx, math.MaxInt32); err != nil {
		t.Fatalf("fill: %v", err)
	}
	if err := b.Pull(ctx); err != nil {
		t.Fatalf("pull: %v", err)
	}
	for i, v := range b.HostData() {
		if v != math.MaxInt32 {
			t.Errorf("index %d: got %d want %d", i, v, math.MaxInt32)
		}
	}
}
