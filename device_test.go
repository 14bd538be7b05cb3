package algoscan

import (
	"strings"
	"sync"
	"testing"
)

func TestStream_OperatorPanicLatches(t *testing.T) {
	t.Parallel()

	dev, err := NewDevice(DeviceOptions{Tile: 8})
	if err != nil {
		t.Fatalf("NewDevice: %v", err)
	}
	defer dev.Close()
	s, err := dev.NewStream()
	if err != nil {
		t.Fatalf("NewStream: %v", err)
	}

	n := 100
	src := make([]int, n)
	dst := make([]int, n)
	scratch := scratchFor[int](t, s, n)

	boom := func(a, b int) int { panic("operator exploded") }
	if err := InclusiveScan(s, dst, src, boom, scratch); err != nil {
		t.Fatalf("enqueue: %v", err)
	}

	err = s.Synchronize()
	if err == nil {
		t.Fatal("Synchronize: expected latched panic error")
	}
	if !strings.Contains(err.Error(), "operator exploded") {
		t.Errorf("error %q does not mention the panic value", err)
	}

	// Work enqueued after the failure is skipped; the stream keeps
	// reporting the first error.
	sum := func(a, b int) int { return a + b }
	probe := make([]int, n)
	if enqErr := InclusiveScan(s, probe, src, sum, scratch); enqErr != nil {
		t.Fatalf("enqueue after error: %v", enqErr)
	}
	if second := s.Synchronize(); second != err {
		t.Errorf("second Synchronize = %v, want latched %v", second, err)
	}
}

func TestStream_SingleBlockPanicLatches(t *testing.T) {
	t.Parallel()

	// A scan that fits in one block bypasses the worker pool and runs on
	// the stream goroutine; a panicking operator there must latch the same
	// way, not crash the process.
	dev, err := NewDevice(DeviceOptions{})
	if err != nil {
		t.Fatalf("NewDevice: %v", err)
	}
	defer dev.Close()
	s, err := dev.NewStream()
	if err != nil {
		t.Fatalf("NewStream: %v", err)
	}

	n := 10
	src := make([]int, n)
	dst := make([]int, n)
	boom := func(a, b int) int { panic("single-block boom") }
	if err := InclusiveScan(s, dst, src, boom, nil); err != nil {
		t.Fatalf("enqueue: %v", err)
	}

	err = s.Synchronize()
	if err == nil {
		t.Fatal("Synchronize: expected latched panic error")
	}
	if !strings.Contains(err.Error(), "single-block boom") {
		t.Errorf("error %q does not mention the panic value", err)
	}
}

func TestStream_SubmitAfterClose(t *testing.T) {
	t.Parallel()

	dev, err := NewDevice(DeviceOptions{})
	if err != nil {
		t.Fatalf("NewDevice: %v", err)
	}
	defer dev.Close()
	s, err := dev.NewStream()
	if err != nil {
		t.Fatalf("NewStream: %v", err)
	}
	if err := s.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	sum := func(a, b int) int { return a + b }
	src := make([]int, 10)
	if err := InclusiveScan(s, make([]int, 10), src, sum, nil); err != ErrStreamClosed {
		t.Errorf("scan on closed stream = %v, want ErrStreamClosed", err)
	}
	if err := s.Close(); err != nil {
		t.Errorf("second Close = %v, want nil", err)
	}
}

func TestDevice_Close(t *testing.T) {
	t.Parallel()

	dev, err := NewDevice(DeviceOptions{})
	if err != nil {
		t.Fatalf("NewDevice: %v", err)
	}
	s, err := dev.NewStream()
	if err != nil {
		t.Fatalf("NewStream: %v", err)
	}

	sum := func(a, b int) int { return a + b }
	const n = 4096
	src := make([]int, n)
	for i := range src {
		src[i] = 1
	}
	dst := make([]int, n)
	scratch := scratchFor[int](t, s, n)
	if err := InclusiveScan(s, dst, src, sum, scratch); err != nil {
		t.Fatalf("InclusiveScan: %v", err)
	}

	// Close drains in-flight work before stopping the workers.
	if err := dev.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	if dst[n-1] != n {
		t.Errorf("dst[%d] = %d, want %d", n-1, dst[n-1], n)
	}

	if _, err := dev.NewStream(); err != ErrDeviceClosed {
		t.Errorf("NewStream after Close = %v, want ErrDeviceClosed", err)
	}
	if err := dev.Close(); err != nil {
		t.Errorf("second Close = %v, want nil", err)
	}
}

func TestNewDevice_InvalidTile(t *testing.T) {
	t.Parallel()

	if _, err := NewDevice(DeviceOptions{Tile: 1}); err != ErrInvalidTile {
		t.Errorf("NewDevice(Tile: 1) = %v, want ErrInvalidTile", err)
	}
	if _, err := NewDevice(DeviceOptions{Tile: -4}); err != ErrInvalidTile {
		t.Errorf("NewDevice(Tile: -4) = %v, want ErrInvalidTile", err)
	}
}

func TestStreams_RunConcurrently(t *testing.T) {
	t.Parallel()

	dev, err := NewDevice(DeviceOptions{Tile: 64})
	if err != nil {
		t.Fatalf("NewDevice: %v", err)
	}
	defer dev.Close()

	sum := func(a, b int64) int64 { return a + b }
	const n = 50000
	const streams = 8

	var wg sync.WaitGroup
	errs := make([]error, streams)
	outs := make([][]int64, streams)

	for k := 0; k < streams; k++ {
		s, err := dev.NewStream()
		if err != nil {
			t.Fatalf("NewStream: %v", err)
		}
		wg.Add(1)
		go func(k int, s *Stream) {
			defer wg.Done()
			src := make([]int64, n)
			for i := range src {
				src[i] = int64(k + 1)
			}
			dst := make([]int64, n)
			need, err := dev.ScratchLen(n)
			if err != nil {
				errs[k] = err
				return
			}
			scratch := make([]int64, need)
			if err := InclusiveScan(s, dst, src, sum, scratch); err != nil {
				errs[k] = err
				return
			}
			errs[k] = s.Synchronize()
			outs[k] = dst
		}(k, s)
	}
	wg.Wait()

	for k := 0; k < streams; k++ {
		if errs[k] != nil {
			t.Fatalf("stream %d: %v", k, errs[k])
		}
		if got, want := outs[k][n-1], int64(k+1)*n; got != want {
			t.Errorf("stream %d: total = %d, want %d", k, got, want)
		}
	}
}
