package gpu

import (
	"errors"
	"math"
	"testing"
)

// The backend registry is process-global, so tests in this file do not run
// in parallel. Each test registers the backend it needs and restores the
// mock afterwards.

func withBackend(t *testing.T, b Backend) {
	t.Helper()
	RegisterBackend(b)
	t.Cleanup(RegisterMockBackend)
}

func TestNewScanner_NoBackend(t *testing.T) {
	withBackend(t, nil)

	if _, err := NewScanner[float32](16, OpAdd, ScannerOptions{}); !errors.Is(err, ErrNoBackend) {
		t.Fatalf("NewScanner without backend: err = %v, want ErrNoBackend", err)
	}
}

func TestNewScanner_Validation(t *testing.T) {
	withBackend(t, NewMockBackend())

	if _, err := NewScanner[float32](0, OpAdd, ScannerOptions{}); !errors.Is(err, ErrInvalidLength) {
		t.Errorf("NewScanner(0): err = %v, want ErrInvalidLength", err)
	}
	if _, err := NewScanner[float32](16, OpKind(99), ScannerOptions{}); !errors.Is(err, ErrInvalidOp) {
		t.Errorf("NewScanner(bad op): err = %v, want ErrInvalidOp", err)
	}
	if _, err := NewScanner[float32](16, OpAdd, ScannerOptions{DeviceIndex: 3}); err == nil {
		t.Error("NewScanner(device 3): expected error from mock backend")
	}
}

func TestMockBackend_Devices(t *testing.T) {
	withBackend(t, NewMockBackend())

	info, ok := CurrentBackendInfo()
	if !ok {
		t.Fatal("CurrentBackendInfo: no backend registered")
	}
	if info.Name != "mock" {
		t.Errorf("backend name = %q, want %q", info.Name, "mock")
	}

	devs, err := NewMockBackend().Devices()
	if err != nil {
		t.Fatalf("Devices: %v", err)
	}
	if len(devs) != 1 {
		t.Fatalf("Devices: got %d devices, want 1", len(devs))
	}
	if devs[0].Name != "MockGPU" {
		t.Errorf("device name = %q, want %q", devs[0].Name, "MockGPU")
	}
}

func TestMockScanner_InclusiveSum(t *testing.T) {
	withBackend(t, NewMockBackend())

	const n = 4097
	scanner, err := NewScanner[int32](n, OpAdd, ScannerOptions{})
	if err != nil {
		t.Fatalf("NewScanner: %v", err)
	}
	defer scanner.Close()

	if scanner.Len() != n || scanner.Elem() != ElemInt32 || scanner.Op() != OpAdd {
		t.Fatalf("scanner shape = (%d, %v, %v), want (%d, int32, add)", scanner.Len(), scanner.Elem(), scanner.Op(), n)
	}

	src := make([]int32, n)
	for i := range src {
		src[i] = int32(i%7 - 3)
	}
	dst := make([]int32, n)
	if err := scanner.Inclusive(dst, src); err != nil {
		t.Fatalf("Inclusive: %v", err)
	}

	var acc int32
	for i, v := range src {
		acc += v
		if dst[i] != acc {
			t.Fatalf("Inclusive: dst[%d] = %d, want %d", i, dst[i], acc)
		}
	}
}

func TestMockScanner_Operators(t *testing.T) {
	withBackend(t, NewMockBackend())

	const n = 1300
	src := make([]float32, n)
	for i := range src {
		src[i] = float32((i*37)%19) - 9
	}

	refs := map[OpKind]func(a, b float32) float32{
		OpAdd: func(a, b float32) float32 { return a + b },
		OpMin: func(a, b float32) float32 { return float32(math.Min(float64(a), float64(b))) },
		OpMax: func(a, b float32) float32 { return float32(math.Max(float64(a), float64(b))) },
	}
	for op, ref := range refs {
		scanner, err := NewScanner[float32](n, op, ScannerOptions{})
		if err != nil {
			t.Fatalf("NewScanner(%v): %v", op, err)
		}
		dst := make([]float32, n)
		if err := scanner.Inclusive(dst, src); err != nil {
			t.Fatalf("Inclusive(%v): %v", op, err)
		}
		acc := src[0]
		for i := 1; i < n; i++ {
			acc = ref(acc, src[i])
			if dst[i] != acc {
				t.Fatalf("Inclusive(%v): dst[%d] = %v, want %v", op, i, dst[i], acc)
			}
		}
		scanner.Close()
	}
}

func TestMockScanner_ExclusiveIdentity(t *testing.T) {
	withBackend(t, NewMockBackend())

	tests := []struct {
		op   OpKind
		want uint32
	}{
		{op: OpAdd, want: 0},
		{op: OpMul, want: 1},
		{op: OpMin, want: math.MaxUint32},
		{op: OpMax, want: 0},
	}
	for _, tc := range tests {
		scanner, err := NewScanner[uint32](64, tc.op, ScannerOptions{})
		if err != nil {
			t.Fatalf("NewScanner(%v): %v", tc.op, err)
		}
		src := make([]uint32, 64)
		for i := range src {
			src[i] = uint32(i + 2)
		}
		dst := make([]uint32, 64)
		if err := scanner.Exclusive(dst, src); err != nil {
			t.Fatalf("Exclusive(%v): %v", tc.op, err)
		}
		if dst[0] != tc.want {
			t.Errorf("Exclusive(%v): dst[0] = %d, want identity %d", tc.op, dst[0], tc.want)
		}
		scanner.Close()
	}
}

func TestMockScanner_ExclusiveFloatIdentity(t *testing.T) {
	withBackend(t, NewMockBackend())

	// Float min/max seed with the extreme finite values, matching the
	// constants the device kernels use, never infinities.
	tests := []struct {
		op   OpKind
		want float32
	}{
		{op: OpAdd, want: 0},
		{op: OpMul, want: 1},
		{op: OpMin, want: math.MaxFloat32},
		{op: OpMax, want: -math.MaxFloat32},
	}
	for _, tc := range tests {
		scanner, err := NewScanner[float32](16, tc.op, ScannerOptions{})
		if err != nil {
			t.Fatalf("NewScanner(%v): %v", tc.op, err)
		}
		src := make([]float32, 16)
		for i := range src {
			src[i] = float32(i) - 8
		}
		dst := make([]float32, 16)
		if err := scanner.Exclusive(dst, src); err != nil {
			t.Fatalf("Exclusive(%v): %v", tc.op, err)
		}
		if dst[0] != tc.want {
			t.Errorf("Exclusive(%v): dst[0] = %v, want identity %v", tc.op, dst[0], tc.want)
		}
		scanner.Close()
	}
}

func TestMockScanner_ExclusiveShiftsInclusive(t *testing.T) {
	withBackend(t, NewMockBackend())

	const n = 2049
	scanner, err := NewScanner[int32](n, OpAdd, ScannerOptions{})
	if err != nil {
		t.Fatalf("NewScanner: %v", err)
	}
	defer scanner.Close()

	src := make([]int32, n)
	for i := range src {
		src[i] = int32(i + 1)
	}
	inc := make([]int32, n)
	exc := make([]int32, n)
	if err := scanner.Inclusive(inc, src); err != nil {
		t.Fatalf("Inclusive: %v", err)
	}
	if err := scanner.Exclusive(exc, src); err != nil {
		t.Fatalf("Exclusive: %v", err)
	}
	if exc[0] != 0 {
		t.Fatalf("Exclusive: exc[0] = %d, want 0", exc[0])
	}
	for i := 1; i < n; i++ {
		if exc[i] != inc[i-1] {
			t.Fatalf("Exclusive: exc[%d] = %d, want inc[%d] = %d", i, exc[i], i-1, inc[i-1])
		}
	}
}

func TestMockScanner_InPlace(t *testing.T) {
	withBackend(t, NewMockBackend())

	const n = 1111
	scanner, err := NewScanner[float32](n, OpAdd, ScannerOptions{})
	if err != nil {
		t.Fatalf("NewScanner: %v", err)
	}
	defer scanner.Close()

	data := make([]float32, n)
	want := make([]float32, n)
	var acc float32
	for i := range data {
		data[i] = 0.5
		acc += 0.5
		want[i] = acc
	}
	if err := scanner.InclusiveInPlace(data); err != nil {
		t.Fatalf("InclusiveInPlace: %v", err)
	}
	for i := range data {
		if data[i] != want[i] {
			t.Fatalf("InclusiveInPlace: data[%d] = %v, want %v", i, data[i], want[i])
		}
	}
}

func TestMockScanner_ArgErrors(t *testing.T) {
	withBackend(t, NewMockBackend())

	scanner, err := NewScanner[float32](32, OpAdd, ScannerOptions{})
	if err != nil {
		t.Fatalf("NewScanner: %v", err)
	}
	defer scanner.Close()

	if err := scanner.Inclusive(nil, make([]float32, 32)); !errors.Is(err, ErrNilSlice) {
		t.Errorf("Inclusive(nil dst): err = %v, want ErrNilSlice", err)
	}
	if err := scanner.Inclusive(make([]float32, 32), make([]float32, 16)); !errors.Is(err, ErrLengthMismatch) {
		t.Errorf("Inclusive(short src): err = %v, want ErrLengthMismatch", err)
	}

	var nilScanner *Scanner[float32]
	if nilScanner.Len() != 0 {
		t.Error("nil scanner Len != 0")
	}
	if err := nilScanner.Close(); err != nil {
		t.Errorf("nil scanner Close: %v", err)
	}
}

func TestMockBuffer_Roundtrip(t *testing.T) {
	withBackend(t, NewMockBackend())

	backend := NewMockBackend()
	ctx, err := backend.NewContext(0)
	if err != nil {
		t.Fatalf("NewContext: %v", err)
	}
	defer ctx.Close()

	buf, err := ctx.NewBuffer(8, ElemFloat32)
	if err != nil {
		t.Fatalf("NewBuffer: %v", err)
	}
	defer buf.Close()

	if buf.Len() != 8 || buf.Elem() != ElemFloat32 {
		t.Fatalf("buffer shape = (%d, %v), want (8, float32)", buf.Len(), buf.Elem())
	}

	src := []float32{1, 2, 3, 4, 5, 6, 7, 8}
	if err := buf.Upload(src); err != nil {
		t.Fatalf("Upload: %v", err)
	}
	dst := make([]float32, 8)
	if err := buf.Download(dst); err != nil {
		t.Fatalf("Download: %v", err)
	}
	for i := range src {
		if dst[i] != src[i] {
			t.Fatalf("roundtrip: dst[%d] = %v, want %v", i, dst[i], src[i])
		}
	}

	if err := buf.Upload([]float32{1, 2}); !errors.Is(err, ErrLengthMismatch) {
		t.Errorf("Upload(short): err = %v, want ErrLengthMismatch", err)
	}
	if err := buf.Upload([]int32{1, 2, 3, 4, 5, 6, 7, 8}); err == nil {
		t.Error("Upload(wrong element type): expected error")
	}

	if _, err := ctx.NewBuffer(-1, ElemFloat32); !errors.Is(err, ErrInvalidLength) {
		t.Errorf("NewBuffer(-1): err = %v, want ErrInvalidLength", err)
	}
}

func TestElemKind_String(t *testing.T) {
	if ElemFloat32.String() != "float32" || ElemInt32.String() != "int32" || ElemUint32.String() != "uint32" {
		t.Errorf("ElemKind strings = %q, %q, %q", ElemFloat32, ElemInt32, ElemUint32)
	}
	if OpAdd.String() != "add" || OpMax.String() != "max" {
		t.Errorf("OpKind strings = %q, %q", OpAdd, OpMax)
	}
}
