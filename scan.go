package algoscan

import (
	"github.com/cwbudde/algo-scan/internal/layout"
)

// InclusiveScan enqueues a prefix scan of src into dst on the stream:
// dst[i] combines src[0..i] under op. dst must have the same length as src
// and may alias it; scratch must hold at least Device.ScratchLen(len(src))
// elements and must not overlap dst. The call validates its preconditions
// synchronously and returns before any scan work has run; results are valid
// once the stream has been synchronized.
func InclusiveScan[T any](s *Stream, dst, src []T, op BinaryOp[T], scratch []T) error {
	var zero T
	return enqueueScan(s, dst, src, op, nil, scratch, false, zero)
}

// ExclusiveScan enqueues a prefix scan where dst[i] combines src[0..i-1]
// and dst[0] is the zero value of T. The seed is written directly, never
// passed to op, so T needs no identity element under op. Use
// ExclusiveScanSeed to choose a different first element.
func ExclusiveScan[T any](s *Stream, dst, src []T, op BinaryOp[T], scratch []T) error {
	var zero T
	return enqueueScan(s, dst, src, op, nil, scratch, true, zero)
}

// ExclusiveScanSeed is ExclusiveScan with an explicit first element.
func ExclusiveScanSeed[T any](s *Stream, dst, src []T, seed T, op BinaryOp[T], scratch []T) error {
	return enqueueScan(s, dst, src, op, nil, scratch, true, seed)
}

// TransformInclusiveScan applies f to each input element before it enters
// the scan combination: dst[i] combines f(src[0])..f(src[i]).
func TransformInclusiveScan[T any](s *Stream, dst, src []T, op BinaryOp[T], f UnaryOp[T], scratch []T) error {
	if f == nil {
		return ErrNilTransform
	}
	var zero T
	return enqueueScan(s, dst, src, op, f, scratch, false, zero)
}

// TransformExclusiveScan applies f to each input element before the
// exclusive scan combination; dst[0] is the zero value of T.
func TransformExclusiveScan[T any](s *Stream, dst, src []T, op BinaryOp[T], f UnaryOp[T], scratch []T) error {
	if f == nil {
		return ErrNilTransform
	}
	var zero T
	return enqueueScan(s, dst, src, op, f, scratch, true, zero)
}

// TransformExclusiveScanSeed is TransformExclusiveScan with an explicit
// first element.
func TransformExclusiveScanSeed[T any](s *Stream, dst, src []T, seed T, op BinaryOp[T], f UnaryOp[T], scratch []T) error {
	if f == nil {
		return ErrNilTransform
	}
	return enqueueScan(s, dst, src, op, f, scratch, true, seed)
}

// enqueueScan performs the synchronous precondition checks shared by all
// scan variants and, if they pass, queues the multi-pass engine run.
func enqueueScan[T any](s *Stream, dst, src []T, op BinaryOp[T], f UnaryOp[T], scratch []T, exclusive bool, seed T) error {
	if s == nil {
		return ErrStreamClosed
	}
	if op == nil {
		return ErrNilOperator
	}
	if len(dst) != len(src) {
		return ErrLengthMismatch
	}
	n := len(src)
	if n == 0 {
		return nil
	}
	lay := layout.New(n, s.dev.tileFor(n))
	if len(scratch) < lay.Elems() {
		return ErrScratchTooSmall
	}
	if f == nil {
		f = func(v T) T { return v }
	}
	scratch = scratch[:lay.Elems()]
	return s.submit(func() error {
		return runScan(s.dev, lay, dst, src, op, f, scratch, exclusive, seed)
	})
}

// runScan executes the decomposed scan on the device workers. Passes run in
// order; blocks within a pass run concurrently.
//
//  1. Each block reduces its tile (after f) into the level-0 partials.
//  2. The partials are scanned inclusively, level by level, so partial b
//     ends up holding the combination of all tiles up to and including b.
//  3. Each block rescans its tile, carrying in the combination of all
//     preceding tiles, and writes the finished slice of dst.
//
// The operator only ever combines adjacent ranges in index order, so the
// result is exact for any associative operator, commutative or not.
func runScan[T any](d *Device, lay layout.Plan, dst, src []T, op BinaryOp[T], f UnaryOp[T], scratch []T, exclusive bool, seed T) error {
	if lay.Blocks <= 1 {
		scanSeg(dst, src, op, f, seed, false, seed, exclusive)
		return nil
	}

	tile := lay.Tile
	partials := scratch[lay.Off(0) : lay.Off(0)+lay.Counts[0]]

	err := d.disp.Run(lay.Blocks, func(b int) {
		lo, hi := tileBounds(b, tile, lay.N)
		partials[b] = reduceSeg(src[lo:hi], op, f)
	})
	if err != nil {
		return err
	}

	if err := scanPartials(d, lay, scratch, op); err != nil {
		return err
	}

	return d.disp.Run(lay.Blocks, func(b int) {
		lo, hi := tileBounds(b, tile, lay.N)
		if b == 0 {
			scanSeg(dst[lo:hi], src[lo:hi], op, f, seed, false, seed, exclusive)
		} else {
			scanSeg(dst[lo:hi], src[lo:hi], op, f, partials[b-1], true, seed, exclusive)
		}
	})
}

// scanPartials converts every level of block reductions into its inclusive
// scan, deepest level first. Levels are walked iteratively, not recursively,
// so the work per launch stays bounded by the layout.
func scanPartials[T any](d *Device, lay layout.Plan, scratch []T, op BinaryOp[T]) error {
	levels := len(lay.Counts)
	level := func(k int) []T {
		return scratch[lay.Off(k) : lay.Off(k)+lay.Counts[k]]
	}

	// Down-sweep: reduce each level's tiles into the level above it. The
	// deepest level always fits in a single tile.
	for k := 0; k+1 < levels; k++ {
		cur, next := level(k), level(k+1)
		err := d.disp.Run(len(next), func(j int) {
			lo, hi := tileBounds(j, lay.Tile, len(cur))
			next[j] = reduceSegValues(cur[lo:hi], op)
		})
		if err != nil {
			return err
		}
	}

	base := level(levels - 1)
	for i := 1; i < len(base); i++ {
		base[i] = op(base[i-1], base[i])
	}

	// Up-sweep: rescan each level in place, carrying in the already-scanned
	// prefix from the level above.
	for k := levels - 2; k >= 0; k-- {
		cur, next := level(k), level(k+1)
		err := d.disp.Run(len(next), func(j int) {
			lo, hi := tileBounds(j, lay.Tile, len(cur))
			seg := cur[lo:hi]
			carry, has := seg[0], false
			if j > 0 {
				carry, has = next[j-1], true
			}
			for i := range seg {
				if has {
					carry = op(carry, seg[i])
				} else {
					has = true
				}
				seg[i] = carry
			}
		})
		if err != nil {
			return err
		}
	}
	return nil
}

// scanSeg scans one tile of src into dst sequentially. prefix, when valid,
// is the combination of every element before the tile. In exclusive mode
// each position receives its predecessor's inclusive value; the first
// position of the whole range receives seed without op ever seeing it.
func scanSeg[T any](dst, src []T, op BinaryOp[T], f UnaryOp[T], prefix T, hasPrefix bool, seed T, exclusive bool) {
	carry, has := prefix, hasPrefix
	if exclusive {
		for i := range src {
			v := f(src[i])
			if has {
				dst[i] = carry
				carry = op(carry, v)
			} else {
				dst[i] = seed
				carry, has = v, true
			}
		}
		return
	}
	for i := range src {
		v := f(src[i])
		if has {
			carry = op(carry, v)
		} else {
			carry, has = v, true
		}
		dst[i] = carry
	}
}

// reduceSeg folds one non-empty tile of input left to right, applying f to
// each element as it is loaded.
func reduceSeg[T any](seg []T, op BinaryOp[T], f UnaryOp[T]) T {
	acc := f(seg[0])
	for i := 1; i < len(seg); i++ {
		acc = op(acc, f(seg[i]))
	}
	return acc
}

// reduceSegValues folds already-transformed partials left to right.
func reduceSegValues[T any](seg []T, op BinaryOp[T]) T {
	acc := seg[0]
	for i := 1; i < len(seg); i++ {
		acc = op(acc, seg[i])
	}
	return acc
}

func tileBounds(b, tile, n int) (lo, hi int) {
	lo = b * tile
	hi = lo + tile
	if hi > n {
		hi = n
	}
	return lo, hi
}
