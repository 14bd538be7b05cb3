package algoscan

import (
	"runtime"
	"sync"

	"github.com/cwbudde/algo-scan/internal/exec"
	"github.com/cwbudde/algo-scan/internal/layout"
)

// DeviceOptions configures a Device.
type DeviceOptions struct {
	// Workers is the number of goroutines that execute blocks. Values <= 0
	// select runtime.NumCPU().
	Workers int

	// Tile is the number of elements each block processes. Zero selects the
	// default (1024, or the tuned value for the scan length when Tuning is
	// set). Values below 2 are rejected.
	Tile int

	// Tuning optionally supplies measured per-length tile sizes, consulted
	// when Tile is zero. See Tuning.
	Tuning *Tuning
}

// Device owns the worker pool that executes scan passes. Scratch sizing
// depends on the device's tile, so scratch buffers for a device with a
// non-default tile must be sized with Device.ScratchLen rather than the
// package-level ScratchLen.
//
// A Device is safe for concurrent use. Streams created from it execute
// concurrently with each other on the shared workers.
type Device struct {
	disp   *exec.Dispatcher
	tile   int
	tuning *Tuning

	mu      sync.Mutex
	streams []*Stream
	closed  bool
}

// NewDevice creates a device with the given options.
func NewDevice(opts DeviceOptions) (*Device, error) {
	if opts.Tile != 0 && opts.Tile < layout.MinTile {
		return nil, ErrInvalidTile
	}
	workers := opts.Workers
	if workers <= 0 {
		workers = runtime.NumCPU()
	}
	return &Device{
		disp:   exec.NewDispatcher(workers),
		tile:   opts.Tile,
		tuning: opts.Tuning,
	}, nil
}

// tileFor reports the tile the engine will use for an n-element scan.
// ScratchLen and the scan passes both go through here, so the estimator and
// the engine always agree on the layout.
func (d *Device) tileFor(n int) int {
	if d.tile > 0 {
		return d.tile
	}
	if d.tuning != nil {
		if tile, ok := d.tuning.Lookup(n); ok {
			return tile
		}
	}
	return layout.DefaultTile
}

// ScratchLen returns the scratch size, in elements, that a scan of n
// elements requires on this device. It is pure and monotonically
// non-decreasing in n for a fixed tile.
func (d *Device) ScratchLen(n int) (int, error) {
	if n < 0 {
		return 0, ErrInvalidLength
	}
	return layout.New(n, d.tileFor(n)).Elems(), nil
}

// NewStream creates an ordered asynchronous execution stream. Work enqueued
// on the stream runs in submission order; submission itself never blocks on
// device work.
func (d *Device) NewStream() (*Stream, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.closed {
		return nil, ErrDeviceClosed
	}
	s := newStream(d)
	d.streams = append(d.streams, s)
	return s, nil
}

// Close drains and closes every stream created from the device, then stops
// the workers. It returns the first latched stream error, if any.
func (d *Device) Close() error {
	d.mu.Lock()
	if d.closed {
		d.mu.Unlock()
		return nil
	}
	d.closed = true
	streams := d.streams
	d.streams = nil
	d.mu.Unlock()

	var firstErr error
	for _, s := range streams {
		if err := s.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	d.disp.Close()
	return firstErr
}

// Stream is an ordered queue of asynchronous scan work. Scans enqueued on
// the same stream execute one after another; the enqueueing call returns
// immediately. Results are valid only after Synchronize returns.
//
// The first error produced by enqueued work latches: subsequent work on the
// stream is skipped and every later Synchronize call reports the same
// error, mirroring an execution context stuck in an error state.
type Stream struct {
	dev *Device

	mu      sync.Mutex
	cond    *sync.Cond
	queue   []func() error
	pending int
	err     error
	closed  bool
}

func newStream(d *Device) *Stream {
	s := &Stream{dev: d}
	s.cond = sync.NewCond(&s.mu)
	go s.loop()
	return s
}

// submit appends work to the stream without blocking on its execution.
func (s *Stream) submit(task func() error) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrStreamClosed
	}
	s.queue = append(s.queue, task)
	s.pending++
	s.cond.Broadcast()
	return nil
}

func (s *Stream) loop() {
	for {
		s.mu.Lock()
		for len(s.queue) == 0 && !s.closed {
			s.cond.Wait()
		}
		if len(s.queue) == 0 {
			s.mu.Unlock()
			return
		}
		task := s.queue[0]
		s.queue = s.queue[1:]
		skip := s.err != nil
		s.mu.Unlock()

		var err error
		if !skip {
			err = runTask(task)
		}

		s.mu.Lock()
		if err != nil && s.err == nil {
			s.err = err
		}
		s.pending--
		s.cond.Broadcast()
		s.mu.Unlock()
	}
}

// runTask executes one queued task on the stream goroutine. Passes routed
// through the dispatcher recover callback panics on the workers; single-block
// scans and the serial base-level scan run here directly, so the same
// conversion has to happen at this level too.
func runTask(task func() error) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = exec.NewPanicError(r)
		}
	}()
	return task()
}

// Synchronize blocks until all previously enqueued work has completed and
// returns the stream's latched error, if any. It is the only point at which
// asynchronous failures become observable.
func (s *Stream) Synchronize() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for s.pending > 0 {
		s.cond.Wait()
	}
	return s.err
}

// Close rejects further submissions, drains the work already enqueued and
// returns the stream's latched error. Close is idempotent.
func (s *Stream) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	s.cond.Broadcast()
	for s.pending > 0 {
		s.cond.Wait()
	}
	return s.err
}
