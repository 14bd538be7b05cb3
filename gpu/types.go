package gpu

// Element is the set of element types device scanners support. Device
// kernels are monomorphic, so the set is closed; arbitrary element types
// and operators are served by the host engine in the root package.
type Element interface {
	float32 | int32 | uint32
}

// ElemKind identifies the element type of a device buffer or scanner.
type ElemKind uint8

const (
	ElemFloat32 ElemKind = iota
	ElemInt32
	ElemUint32
)

func (k ElemKind) String() string {
	switch k {
	case ElemFloat32:
		return "float32"
	case ElemInt32:
		return "int32"
	case ElemUint32:
		return "uint32"
	default:
		return "unknown"
	}
}

// Size returns the element size in bytes.
func (k ElemKind) Size() int { return 4 }

// OpKind identifies the binary operator a device scanner combines with.
// Exclusive scans seed position 0 with the operator's identity.
type OpKind uint8

const (
	OpAdd OpKind = iota
	OpMul
	OpMin
	OpMax
)

func (k OpKind) String() string {
	switch k {
	case OpAdd:
		return "add"
	case OpMul:
		return "mul"
	case OpMin:
		return "min"
	case OpMax:
		return "max"
	default:
		return "unknown"
	}
}

// DeviceInfo describes a compute device.
type DeviceInfo struct {
	Name       string
	Vendor     string
	Driver     string
	MemoryMB   int
	ComputeCap string
}

// BackendInfo describes a backend implementation.
type BackendInfo struct {
	Name        string
	Version     string
	Description string
}

// ScannerOptions controls device scanner creation.
type ScannerOptions struct {
	// DeviceIndex selects which device to use (0 = default).
	DeviceIndex int

	// StreamCount requests a number of execution streams/queues.
	StreamCount int
}
