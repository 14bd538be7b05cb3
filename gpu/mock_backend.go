package gpu

import (
	"fmt"
	"math"

	algoscan "github.com/cwbudde/algo-scan"
	"github.com/cwbudde/algo-scan/internal/cpu"
)

// MockBackend is a CPU-backed device backend for development and tests.
// It satisfies the backend interfaces but executes scans on the host engine.
type MockBackend struct {
	device DeviceInfo
}

// NewMockBackend returns a mock backend with a single fake device.
func NewMockBackend() *MockBackend {
	return &MockBackend{
		device: DeviceInfo{
			Name:       "MockGPU",
			Vendor:     "algoscan",
			Driver:     "mock",
			MemoryMB:   0,
			ComputeCap: cpu.DetectFeatures().String(),
		},
	}
}

func (b *MockBackend) Info() BackendInfo {
	return BackendInfo{
		Name:        "mock",
		Version:     "0.1",
		Description: "CPU-backed mock device backend",
	}
}

func (b *MockBackend) Available() bool {
	return true
}

func (b *MockBackend) Devices() ([]DeviceInfo, error) {
	return []DeviceInfo{b.device}, nil
}

func (b *MockBackend) NewContext(deviceIndex int) (Context, error) {
	if deviceIndex != 0 {
		return nil, fmt.Errorf("mock backend: device index %d out of range", deviceIndex)
	}
	dev, err := algoscan.NewDevice(algoscan.DeviceOptions{})
	if err != nil {
		return nil, err
	}
	return &mockContext{device: b.device, dev: dev}, nil
}

// RegisterMockBackend registers the mock backend as the active backend.
func RegisterMockBackend() {
	RegisterBackend(NewMockBackend())
}

type mockContext struct {
	device DeviceInfo
	dev    *algoscan.Device
}

func (c *mockContext) Device() DeviceInfo {
	return c.device
}

func (c *mockContext) NewBuffer(elemCount int, kind ElemKind) (Buffer, error) {
	if elemCount < 0 {
		return nil, ErrInvalidLength
	}
	switch kind {
	case ElemFloat32:
		return &mockBuffer{kind: kind, len: elemCount, dataF32: make([]float32, elemCount)}, nil
	case ElemInt32:
		return &mockBuffer{kind: kind, len: elemCount, dataI32: make([]int32, elemCount)}, nil
	case ElemUint32:
		return &mockBuffer{kind: kind, len: elemCount, dataU32: make([]uint32, elemCount)}, nil
	default:
		return nil, ErrNotImplemented
	}
}

func (c *mockContext) NewStream() (Stream, error) {
	return &mockStream{}, nil
}

func (c *mockContext) NewScanner(n int, elem ElemKind, op OpKind, _ ScannerOptions) (ScannerImpl, error) {
	if n < 1 {
		return nil, ErrInvalidLength
	}
	switch elem {
	case ElemFloat32:
		return newMockScan[float32](c.dev, n, elem, op)
	case ElemInt32:
		return newMockScan[int32](c.dev, n, elem, op)
	case ElemUint32:
		return newMockScan[uint32](c.dev, n, elem, op)
	default:
		return nil, ErrNotImplemented
	}
}

func (c *mockContext) Close() error {
	return c.dev.Close()
}

type mockBuffer struct {
	kind    ElemKind
	len     int
	dataF32 []float32
	dataI32 []int32
	dataU32 []uint32
}

func (b *mockBuffer) Len() int {
	return b.len
}

func (b *mockBuffer) Elem() ElemKind {
	return b.kind
}

func (b *mockBuffer) Upload(src any) error {
	switch b.kind {
	case ElemFloat32:
		return uploadInto(b.dataF32, src, b.len)
	case ElemInt32:
		return uploadInto(b.dataI32, src, b.len)
	case ElemUint32:
		return uploadInto(b.dataU32, src, b.len)
	default:
		return ErrNotImplemented
	}
}

func (b *mockBuffer) Download(dst any) error {
	switch b.kind {
	case ElemFloat32:
		return downloadFrom(b.dataF32, dst, b.len)
	case ElemInt32:
		return downloadFrom(b.dataI32, dst, b.len)
	case ElemUint32:
		return downloadFrom(b.dataU32, dst, b.len)
	default:
		return ErrNotImplemented
	}
}

func uploadInto[T Element](dev []T, src any, n int) error {
	data, ok := src.([]T)
	if !ok {
		return ErrNotImplemented
	}
	if len(data) < n {
		return ErrLengthMismatch
	}
	copy(dev, data[:n])
	return nil
}

func downloadFrom[T Element](dev []T, dst any, n int) error {
	data, ok := dst.([]T)
	if !ok {
		return ErrNotImplemented
	}
	if len(data) < n {
		return ErrLengthMismatch
	}
	copy(data[:n], dev)
	return nil
}

func (b *mockBuffer) Close() error {
	b.dataF32 = nil
	b.dataI32 = nil
	b.dataU32 = nil
	b.len = 0
	return nil
}

type mockStream struct{}

// The mock executes synchronously, so the stream has nothing to wait for.
func (s *mockStream) Synchronize() error { return nil }
func (s *mockStream) Close() error       { return nil }

type mockScan[T Element] struct {
	dev      *algoscan.Device
	stream   *algoscan.Stream
	n        int
	elem     ElemKind
	opKind   OpKind
	op       algoscan.BinaryOp[T]
	identity T
	scratch  []T
}

func newMockScan[T Element](dev *algoscan.Device, n int, elem ElemKind, opKind OpKind) (ScannerImpl, error) {
	op, err := opFor[T](opKind)
	if err != nil {
		return nil, err
	}
	need, err := dev.ScratchLen(n)
	if err != nil {
		return nil, ErrInvalidLength
	}
	stream, err := dev.NewStream()
	if err != nil {
		return nil, err
	}
	return &mockScan[T]{
		dev:      dev,
		stream:   stream,
		n:        n,
		elem:     elem,
		opKind:   opKind,
		op:       op,
		identity: identityFor[T](opKind),
		scratch:  make([]T, need),
	}, nil
}

func (p *mockScan[T]) Len() int       { return p.n }
func (p *mockScan[T]) Elem() ElemKind { return p.elem }
func (p *mockScan[T]) Op() OpKind     { return p.opKind }

func (p *mockScan[T]) Inclusive(dst, src any) error {
	out, in, err := p.slices(dst, src)
	if err != nil {
		return err
	}
	if err := algoscan.InclusiveScan(p.stream, out, in, p.op, p.scratch); err != nil {
		return err
	}
	return p.stream.Synchronize()
}

func (p *mockScan[T]) Exclusive(dst, src any) error {
	out, in, err := p.slices(dst, src)
	if err != nil {
		return err
	}
	if err := algoscan.ExclusiveScanSeed(p.stream, out, in, p.identity, p.op, p.scratch); err != nil {
		return err
	}
	return p.stream.Synchronize()
}

func (p *mockScan[T]) slices(dst, src any) ([]T, []T, error) {
	out, ok := dst.([]T)
	if !ok {
		return nil, nil, ErrNotImplemented
	}
	in, ok := src.([]T)
	if !ok {
		return nil, nil, ErrNotImplemented
	}
	if len(out) < p.n || len(in) < p.n {
		return nil, nil, ErrLengthMismatch
	}
	return out[:p.n], in[:p.n], nil
}

func (p *mockScan[T]) Close() error {
	err := p.stream.Close()
	p.scratch = nil
	return err
}

// opFor resolves an operator kind to its host combiner.
func opFor[T Element](k OpKind) (algoscan.BinaryOp[T], error) {
	switch k {
	case OpAdd:
		return func(a, b T) T { return a + b }, nil
	case OpMul:
		return func(a, b T) T { return a * b }, nil
	case OpMin:
		return func(a, b T) T {
			if b < a {
				return b
			}
			return a
		}, nil
	case OpMax:
		return func(a, b T) T {
			if b > a {
				return b
			}
			return a
		}, nil
	default:
		return nil, ErrInvalidOp
	}
}

// identityFor returns the operator identity used to seed exclusive scans.
// Float min/max use the extreme finite f32 values rather than infinities,
// the same convention the generated device kernels bake into their IDENT
// constants, so every backend agrees at dst[0].
func identityFor[T Element](k OpKind) T {
	var zero T
	switch k {
	case OpMul:
		return zero + 1
	case OpMin:
		switch any(zero).(type) {
		case float32:
			return any(float32(math.MaxFloat32)).(T)
		case int32:
			return any(int32(math.MaxInt32)).(T)
		case uint32:
			return any(uint32(math.MaxUint32)).(T)
		}
	case OpMax:
		switch any(zero).(type) {
		case float32:
			return any(float32(-math.MaxFloat32)).(T)
		case int32:
			return any(int32(math.MinInt32)).(T)
		}
	}
	return zero
}
