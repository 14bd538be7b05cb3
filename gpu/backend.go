package gpu

import "sync"

// Backend is implemented by device backends (WebGPU, CUDA, the CPU mock).
// It is responsible for device discovery, buffer allocation, and execution.
type Backend interface {
	Info() BackendInfo
	Available() bool
	Devices() ([]DeviceInfo, error)
	NewContext(deviceIndex int) (Context, error)
}

// Context represents a backend-specific execution context tied to a device.
type Context interface {
	Device() DeviceInfo
	// NewBuffer allocates a device buffer of elemCount elements.
	NewBuffer(elemCount int, kind ElemKind) (Buffer, error)
	// NewStream creates an execution stream/queue.
	NewStream() (Stream, error)
	// NewScanner creates a backend-specific scanner implementation.
	NewScanner(n int, elem ElemKind, op OpKind, opts ScannerOptions) (ScannerImpl, error)
	Close() error
}

// Buffer is a device buffer.
type Buffer interface {
	Len() int
	Elem() ElemKind
	// Upload copies from host to device.
	Upload(src any) error
	// Download copies from device to host.
	Download(dst any) error
	Close() error
}

// Stream represents an execution queue/stream. Work submitted to the device
// is ordered by its stream; Synchronize blocks until everything previously
// submitted has completed and reports any device failure.
type Stream interface {
	Synchronize() error
	Close() error
}

// ScannerImpl is a backend-specific scanner implementation.
// It is intentionally untyped to avoid leaking backend-specific buffer types.
type ScannerImpl interface {
	Len() int
	Elem() ElemKind
	Op() OpKind
	Inclusive(dst, src any) error
	Exclusive(dst, src any) error
	Close() error
}

var (
	backendMu sync.RWMutex
	backend   Backend
)

// RegisterBackend registers a device backend. Passing nil clears the backend.
func RegisterBackend(b Backend) {
	backendMu.Lock()
	backend = b
	backendMu.Unlock()
}

// CurrentBackendInfo reports the currently registered backend, if any.
func CurrentBackendInfo() (BackendInfo, bool) {
	backendMu.RLock()
	b := backend
	backendMu.RUnlock()
	if b == nil {
		return BackendInfo{}, false
	}
	return b.Info(), true
}

func getBackend() Backend {
	backendMu.RLock()
	b := backend
	backendMu.RUnlock()
	return b
}
