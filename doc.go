// Package algoscan implements stream-ordered parallel prefix scans
// (cumulative combinations) over contiguous slices.
//
// Given a slice of N elements and an associative binary operator, a scan
// produces an output slice where each element holds the combination of a
// prefix of the input, either including the element itself (inclusive) or
// excluding it (exclusive), optionally after applying a unary transform
// to each input element first.
//
// Scans are enqueued on a Stream and execute asynchronously: the call
// returns as soon as the work is queued, and results are valid only after
// Stream.Synchronize returns. Callers size the scratch buffer up front via
// ScratchLen (or Device.ScratchLen for devices with a custom tile) and keep
// it alive and untouched until the scan has completed.
//
// The operator is applied in a data-dependent tree order, never crossing
// segment boundaries out of sequence, so non-commutative (but associative)
// operators are safe. Floating-point results may differ in rounding from a
// strictly sequential left-to-right scan.
package algoscan
