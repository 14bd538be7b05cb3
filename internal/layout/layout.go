// Package layout computes the scratch-buffer layout shared by the scan
// buffer-size estimator and the scan engine. Both must derive sizes and
// offsets from the same Plan so they can never drift apart.
package layout

import (
	"errors"
	"math/bits"
)

// DefaultTile is the number of elements each block processes when the
// device does not override it.
const DefaultTile = 1024

// MinTile is the smallest accepted tile. Each decomposition level must
// shrink the partial count, which requires at least two elements per block.
const MinTile = 2

// ErrBytesOverflow is reported when a layout's byte size does not fit in int.
var ErrBytesOverflow = errors.New("layout: byte size overflows int")

// Plan describes the block decomposition of an n-element scan with a given
// tile, and the scratch arena that holds per-block partial reductions for
// every decomposition level.
//
// Level 0 holds one partial per input tile. Each further level holds one
// partial per tile of the level below it, and levels are added while the
// count still exceeds one tile (the last level is scanned within a single
// block). A scan that fits in one block (Blocks <= 1) needs no scratch.
type Plan struct {
	N      int
	Tile   int
	Blocks int   // ceil(N/Tile); 0 when N == 0
	Counts []int // partials per level; nil when Blocks <= 1
	offs   []int // arena offset of each level
	elems  int
}

// New computes the decomposition of n elements with the given tile.
// n must be non-negative and tile at least MinTile; callers validate both.
func New(n, tile int) Plan {
	p := Plan{N: n, Tile: tile}
	if n <= 0 {
		return p
	}
	p.Blocks = ceilDiv(n, tile)
	if p.Blocks <= 1 {
		return p
	}
	for c := p.Blocks; ; c = ceilDiv(c, tile) {
		p.Counts = append(p.Counts, c)
		p.offs = append(p.offs, p.elems)
		p.elems += c
		if c <= tile {
			break
		}
	}
	return p
}

// Elems returns the total scratch size in elements.
func (p Plan) Elems() int { return p.elems }

// Off returns the arena element offset of the given level's partials.
func (p Plan) Off(level int) int { return p.offs[level] }

// Bytes returns the scratch size in bytes for elements of the given size,
// guarding against integer overflow on pathological inputs.
func (p Plan) Bytes(elemSize uintptr) (int, error) {
	hi, lo := bits.Mul64(uint64(p.elems), uint64(elemSize))
	if hi != 0 || lo > uint64(maxInt) {
		return 0, ErrBytesOverflow
	}
	return int(lo), nil
}

const maxInt = int(^uint(0) >> 1)

func ceilDiv(n, d int) int {
	return (n-1)/d + 1
}
