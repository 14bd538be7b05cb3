package algoscan

import (
	"unsafe"

	"github.com/cwbudde/algo-scan/internal/layout"
)

// ScratchLen returns the number of scratch elements a scan of n elements
// requires on a device with the default tile. It is pure, deterministic and
// monotonically non-decreasing in n; n == 0 needs no scratch.
//
// Devices configured with a custom tile or tuning report their sizes via
// Device.ScratchLen instead.
func ScratchLen(n int) (int, error) {
	if n < 0 {
		return 0, ErrInvalidLength
	}
	return layout.New(n, layout.DefaultTile).Elems(), nil
}

// BufferSize returns ScratchLen(n) expressed in bytes for element type T,
// guarding the multiplication against overflow on pathological n.
func BufferSize[T any](n int) (int, error) {
	if n < 0 {
		return 0, ErrInvalidLength
	}
	var zero T
	b, err := layout.New(n, layout.DefaultTile).Bytes(unsafe.Sizeof(zero))
	if err != nil {
		return 0, ErrLengthOverflow
	}
	return b, nil
}
