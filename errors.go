package algoscan

import "errors"

// Sentinel errors returned by scan operations. All precondition violations
// are reported synchronously, before any work is enqueued on a stream.
var (
	// ErrInvalidLength is returned when an element count is negative.
	ErrInvalidLength = errors.New("algoscan: invalid length")

	// ErrLengthOverflow is returned when the scratch layout for a length
	// cannot be represented without integer overflow.
	ErrLengthOverflow = errors.New("algoscan: length overflows scratch layout")

	// ErrNilOperator is returned when the binary operator is nil.
	ErrNilOperator = errors.New("algoscan: nil operator")

	// ErrNilTransform is returned when a transform-scan variant is given a
	// nil unary transform.
	ErrNilTransform = errors.New("algoscan: nil transform")

	// ErrInvalidTile is returned when DeviceOptions.Tile is set below the
	// minimum of 2 elements per block.
	ErrInvalidTile = errors.New("algoscan: invalid tile size")

	// ErrLengthMismatch is returned when dst and src lengths differ.
	ErrLengthMismatch = errors.New("algoscan: slice length mismatch")

	// ErrScratchTooSmall is returned when the scratch slice is shorter than
	// the value reported by ScratchLen (or Device.ScratchLen) for the input
	// length.
	ErrScratchTooSmall = errors.New("algoscan: scratch buffer too small")

	// ErrStreamClosed is returned when work is submitted to a closed stream.
	ErrStreamClosed = errors.New("algoscan: stream is closed")

	// ErrDeviceClosed is returned when a stream is requested from a closed
	// device, or when a scan is submitted after the device shut down.
	ErrDeviceClosed = errors.New("algoscan: device is closed")
)
