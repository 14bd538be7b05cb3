// Package exec runs the block-parallel passes of the scan engine on a
// fixed set of worker goroutines and converts operator panics into errors.
package exec

import (
	"fmt"
	"runtime"
	"sync"
	"sync/atomic"
)

// PanicError wraps a value recovered from a panicking operator or transform
// together with the stack captured at the point of the panic.
type PanicError struct {
	Value any
	Stack string
}

func (e *PanicError) Error() string {
	return fmt.Sprintf("algoscan: panic in scan callback: %v\n\n%s", e.Value, e.Stack)
}

// NewPanicError captures the current stack for a value recovered from a
// scan callback. Callers invoke it from inside the deferred recover.
func NewPanicError(v any) *PanicError {
	buf := make([]byte, 8192)
	n := runtime.Stack(buf, false)
	panicsRecovered.Inc()
	return &PanicError{Value: v, Stack: string(buf[:n])}
}

// Dispatcher owns a fixed pool of workers shared by all streams of one
// device. A Run call corresponds to one kernel launch: it fans a pass out
// over its blocks and waits for the whole pass to finish.
type Dispatcher struct {
	jobs    chan job
	workers int
	wg      sync.WaitGroup
	closed  atomic.Bool
}

type job struct {
	fn    func(block int)
	block int
	done  *passState
}

type passState struct {
	wg  sync.WaitGroup
	err atomic.Pointer[PanicError]
}

// NewDispatcher starts workers goroutines. workers must be positive.
func NewDispatcher(workers int) *Dispatcher {
	d := &Dispatcher{
		jobs:    make(chan job, workers*2),
		workers: workers,
	}
	d.wg.Add(workers)
	for i := 0; i < workers; i++ {
		go d.worker()
	}
	return d
}

// Workers returns the fixed worker count.
func (d *Dispatcher) Workers() int { return d.workers }

func (d *Dispatcher) worker() {
	defer d.wg.Done()
	for j := range d.jobs {
		runBlock(j)
	}
}

func runBlock(j job) {
	defer func() {
		if r := recover(); r != nil {
			j.done.err.CompareAndSwap(nil, NewPanicError(r))
		}
		j.done.wg.Done()
	}()
	j.fn(j.block)
}

// Run executes fn for every block in [0, blocks) and waits for all of them.
// The first panic recovered from fn is returned as a *PanicError; remaining
// blocks of the pass still run to completion so no goroutine is leaked.
// Blocks run concurrently; fn must not assume any ordering between them.
func (d *Dispatcher) Run(blocks int, fn func(block int)) error {
	if blocks <= 0 {
		return nil
	}
	launches.Inc()
	blocksDispatched.Add(float64(blocks))

	st := &passState{}
	st.wg.Add(blocks)
	if blocks == 1 || d.workers == 1 {
		for b := 0; b < blocks; b++ {
			runBlock(job{fn: fn, block: b, done: st})
		}
	} else {
		for b := 0; b < blocks; b++ {
			d.jobs <- job{fn: fn, block: b, done: st}
		}
		st.wg.Wait()
	}
	if err := st.err.Load(); err != nil {
		return err
	}
	return nil
}

// Close stops the workers after in-flight jobs finish. Run must not be
// called after Close.
func (d *Dispatcher) Close() {
	if d.closed.CompareAndSwap(false, true) {
		close(d.jobs)
		d.wg.Wait()
	}
}
