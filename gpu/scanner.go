package gpu

// Scanner is a device-backed prefix-scan plan for a fixed length, element
// type and operator.
//
// The scanner owns device buffers and streams and is safe for concurrent
// use only if the underlying backend is thread-safe.
type Scanner[T Element] struct {
	n       int
	elem    ElemKind
	op      OpKind
	ctx     Context
	streams []Stream
	options ScannerOptions
	impl    ScannerImpl
}

// NewScanner creates a device scanner using the registered backend.
func NewScanner[T Element](n int, op OpKind, opts ScannerOptions) (*Scanner[T], error) {
	if n < 1 {
		return nil, ErrInvalidLength
	}
	if op > OpMax {
		return nil, ErrInvalidOp
	}

	backend := getBackend()
	if backend == nil {
		return nil, ErrNoBackend
	}

	if !backend.Available() {
		return nil, ErrBackendUnavailable
	}

	ctx, err := backend.NewContext(opts.DeviceIndex)
	if err != nil {
		return nil, err
	}

	elem := elemKindOf[T]()

	streamCount := opts.StreamCount
	if streamCount <= 0 {
		streamCount = 1
	}

	streams := make([]Stream, 0, streamCount)
	for i := 0; i < streamCount; i++ {
		stream, err := ctx.NewStream()
		if err != nil {
			for _, s := range streams {
				_ = s.Close()
			}
			_ = ctx.Close()
			return nil, err
		}
		streams = append(streams, stream)
	}

	impl, err := ctx.NewScanner(n, elem, op, opts)
	if err != nil {
		for _, s := range streams {
			_ = s.Close()
		}
		_ = ctx.Close()
		return nil, err
	}

	return &Scanner[T]{
		n:       n,
		elem:    elem,
		op:      op,
		ctx:     ctx,
		streams: streams,
		options: opts,
		impl:    impl,
	}, nil
}

// Len returns the scan length (number of elements) for this Scanner.
func (p *Scanner[T]) Len() int {
	if p == nil {
		return 0
	}
	return p.n
}

// Elem returns the scanner element kind.
func (p *Scanner[T]) Elem() ElemKind {
	if p == nil {
		return ElemFloat32
	}
	return p.elem
}

// Op returns the scanner operator kind.
func (p *Scanner[T]) Op() OpKind {
	if p == nil {
		return OpAdd
	}
	return p.op
}

// Inclusive computes the inclusive scan of src into dst on the device.
func (p *Scanner[T]) Inclusive(dst, src []T) error {
	if err := p.check(dst, src); err != nil {
		return err
	}
	return p.impl.Inclusive(dst, src)
}

// Exclusive computes the exclusive scan of src into dst on the device.
// Position 0 receives the operator's identity element.
func (p *Scanner[T]) Exclusive(dst, src []T) error {
	if err := p.check(dst, src); err != nil {
		return err
	}
	return p.impl.Exclusive(dst, src)
}

// InclusiveInPlace computes the inclusive scan in-place.
func (p *Scanner[T]) InclusiveInPlace(data []T) error {
	return p.Inclusive(data, data)
}

// ExclusiveInPlace computes the exclusive scan in-place.
func (p *Scanner[T]) ExclusiveInPlace(data []T) error {
	return p.Exclusive(data, data)
}

func (p *Scanner[T]) check(dst, src []T) error {
	if p == nil || p.impl == nil {
		return ErrNotImplemented
	}
	if dst == nil || src == nil {
		return ErrNilSlice
	}
	if len(dst) < p.n || len(src) < p.n {
		return ErrLengthMismatch
	}
	return nil
}

// Close releases device resources associated with the scanner.
func (p *Scanner[T]) Close() error {
	if p == nil {
		return nil
	}
	if p.impl != nil {
		_ = p.impl.Close()
		p.impl = nil
	}
	var firstErr error
	for _, s := range p.streams {
		if s == nil {
			continue
		}
		if err := s.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	p.streams = nil
	if p.ctx != nil {
		if err := p.ctx.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
		p.ctx = nil
	}
	return firstErr
}

func elemKindOf[T Element]() ElemKind {
	var zero T
	switch any(zero).(type) {
	case int32:
		return ElemInt32
	case uint32:
		return ElemUint32
	default:
		return ElemFloat32
	}
}
