package algoscan

// BinaryOp combines two values of T. It must be associative: the engine
// applies it in a data-dependent tree order, and only associativity is
// guaranteed to be respected. Grouping never crosses segment boundaries out
// of sequence, so non-commutative operators (matrix products, function
// composition) are safe. The operator must be pure: it runs concurrently
// on multiple goroutines and may be invoked more than once per element
// position across passes.
type BinaryOp[T any] func(a, b T) T

// UnaryOp transforms a single input element before it enters the scan
// combination. It must be pure and context-free.
type UnaryOp[T any] func(v T) T
