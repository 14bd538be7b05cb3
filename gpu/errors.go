package gpu

import "errors"

var (
	// ErrNoBackend is returned when no device backend is registered.
	ErrNoBackend = errors.New("algoscan/gpu: no backend registered")

	// ErrBackendUnavailable is returned when the backend is registered but not
	// available on the current system (e.g., no device, driver missing).
	ErrBackendUnavailable = errors.New("algoscan/gpu: backend unavailable")

	// ErrNotImplemented is returned by stubbed operations and for unsupported
	// element/operator combinations.
	ErrNotImplemented = errors.New("algoscan/gpu: not implemented")

	// ErrInvalidLength is returned for invalid scanner sizes.
	ErrInvalidLength = errors.New("algoscan/gpu: invalid length")

	// ErrNilSlice is returned when dst or src is nil.
	ErrNilSlice = errors.New("algoscan/gpu: nil slice")

	// ErrLengthMismatch is returned when dst or src lengths are not as required.
	ErrLengthMismatch = errors.New("algoscan/gpu: length mismatch")

	// ErrInvalidOp is returned for an unknown operator kind.
	ErrInvalidOp = errors.New("algoscan/gpu: invalid operator")
)
