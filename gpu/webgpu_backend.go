//go:build webgpu

package gpu

import (
	"fmt"
	"time"

	"github.com/openfluke/webgpu/wgpu"

	"github.com/cwbudde/algo-scan/internal/layout"
)

// WebGPUBackend executes scans as WGSL compute kernels through wgpu.
// Enable it with the "webgpu" build tag; the default build stays free of
// native GPU dependencies.
type WebGPUBackend struct{}

// NewWebGPUBackend returns the WebGPU backend.
func NewWebGPUBackend() *WebGPUBackend {
	return &WebGPUBackend{}
}

// RegisterWebGPUBackend registers the WebGPU backend as the active backend.
func RegisterWebGPUBackend() {
	RegisterBackend(NewWebGPUBackend())
}

func (b *WebGPUBackend) Info() BackendInfo {
	return BackendInfo{
		Name:        "webgpu",
		Version:     "0.1",
		Description: "WebGPU compute backend (wgpu)",
	}
}

func (b *WebGPUBackend) Available() bool {
	instance := wgpu.CreateInstance(nil)
	if instance == nil {
		return false
	}
	return len(instance.EnumerateAdapters(nil)) > 0
}

func (b *WebGPUBackend) Devices() ([]DeviceInfo, error) {
	instance := wgpu.CreateInstance(nil)
	if instance == nil {
		return nil, ErrBackendUnavailable
	}
	adapters := instance.EnumerateAdapters(nil)
	if len(adapters) == 0 {
		return nil, ErrBackendUnavailable
	}
	devices := make([]DeviceInfo, 0, len(adapters))
	for _, a := range adapters {
		devices = append(devices, adapterDeviceInfo(a))
	}
	return devices, nil
}

func (b *WebGPUBackend) NewContext(deviceIndex int) (Context, error) {
	instance := wgpu.CreateInstance(nil)
	if instance == nil {
		return nil, ErrBackendUnavailable
	}
	adapters := instance.EnumerateAdapters(nil)
	if len(adapters) == 0 {
		return nil, ErrBackendUnavailable
	}
	if deviceIndex < 0 || deviceIndex >= len(adapters) {
		return nil, fmt.Errorf("webgpu backend: device index %d out of range", deviceIndex)
	}
	adapter := adapters[deviceIndex]
	device, err := adapter.RequestDevice(nil)
	if err != nil {
		return nil, fmt.Errorf("webgpu backend: request device: %w", err)
	}
	return &webgpuContext{
		info:   adapterDeviceInfo(adapter),
		device: device,
		queue:  device.GetQueue(),
	}, nil
}

func adapterDeviceInfo(a *wgpu.Adapter) DeviceInfo {
	info := a.GetInfo()
	return DeviceInfo{
		Name:       info.Name,
		Vendor:     info.VendorName,
		Driver:     "wgpu",
		ComputeCap: fmt.Sprintf("adapter-type=%d", info.AdapterType),
	}
}

type webgpuContext struct {
	info   DeviceInfo
	device *wgpu.Device
	queue  *wgpu.Queue
}

func (c *webgpuContext) Device() DeviceInfo {
	return c.info
}

func (c *webgpuContext) NewBuffer(elemCount int, kind ElemKind) (Buffer, error) {
	if elemCount < 0 {
		return nil, ErrInvalidLength
	}
	switch kind {
	case ElemFloat32, ElemInt32, ElemUint32:
	default:
		return nil, ErrNotImplemented
	}
	buf, err := c.device.CreateBuffer(&wgpu.BufferDescriptor{
		Label: "algoscan_buffer",
		Size:  uint64(elemCount * kind.Size()),
		Usage: wgpu.BufferUsageStorage | wgpu.BufferUsageCopyDst | wgpu.BufferUsageCopySrc,
	})
	if err != nil {
		return nil, err
	}
	return &webgpuBuffer{ctx: c, kind: kind, len: elemCount, buf: buf}, nil
}

func (c *webgpuContext) NewStream() (Stream, error) {
	return &webgpuStream{ctx: c}, nil
}

func (c *webgpuContext) NewScanner(n int, elem ElemKind, op OpKind, _ ScannerOptions) (ScannerImpl, error) {
	if n < 1 {
		return nil, ErrInvalidLength
	}
	return newWebGPUScan(c, n, elem, op)
}

func (c *webgpuContext) Close() error {
	// The adapter and instance have process lifetime under wgpu; the
	// device's buffers and pipelines are released by their owners.
	return nil
}

type webgpuStream struct {
	ctx *webgpuContext
}

// Synchronize waits for all work submitted to the device queue.
func (s *webgpuStream) Synchronize() error {
	s.ctx.device.Poll(true, nil)
	return nil
}

func (s *webgpuStream) Close() error { return nil }

type webgpuBuffer struct {
	ctx  *webgpuContext
	kind ElemKind
	len  int
	buf  *wgpu.Buffer
}

func (b *webgpuBuffer) Len() int       { return b.len }
func (b *webgpuBuffer) Elem() ElemKind { return b.kind }

func (b *webgpuBuffer) Upload(src any) error {
	data, err := hostBytes(b.kind, src, b.len)
	if err != nil {
		return err
	}
	b.ctx.queue.WriteBuffer(b.buf, 0, data)
	return nil
}

func (b *webgpuBuffer) Download(dst any) error {
	raw, err := readDeviceBuffer(b.ctx, b.buf, b.len*b.kind.Size())
	if err != nil {
		return err
	}
	return hostCopyBack(b.kind, dst, raw, b.len)
}

func (b *webgpuBuffer) Close() error {
	if b.buf != nil {
		b.buf.Destroy()
		b.buf = nil
	}
	b.len = 0
	return nil
}

// hostBytes views a host slice of the buffer's element kind as bytes.
func hostBytes(kind ElemKind, src any, n int) ([]byte, error) {
	switch kind {
	case ElemFloat32:
		data, ok := src.([]float32)
		if !ok {
			return nil, ErrNotImplemented
		}
		if len(data) < n {
			return nil, ErrLengthMismatch
		}
		return wgpu.ToBytes(data[:n]), nil
	case ElemInt32:
		data, ok := src.([]int32)
		if !ok {
			return nil, ErrNotImplemented
		}
		if len(data) < n {
			return nil, ErrLengthMismatch
		}
		return wgpu.ToBytes(data[:n]), nil
	case ElemUint32:
		data, ok := src.([]uint32)
		if !ok {
			return nil, ErrNotImplemented
		}
		if len(data) < n {
			return nil, ErrLengthMismatch
		}
		return wgpu.ToBytes(data[:n]), nil
	default:
		return nil, ErrNotImplemented
	}
}

func hostCopyBack(kind ElemKind, dst any, raw []byte, n int) error {
	switch kind {
	case ElemFloat32:
		data, ok := dst.([]float32)
		if !ok {
			return ErrNotImplemented
		}
		if len(data) < n {
			return ErrLengthMismatch
		}
		copy(data[:n], wgpu.FromBytes[float32](raw))
		return nil
	case ElemInt32:
		data, ok := dst.([]int32)
		if !ok {
			return ErrNotImplemented
		}
		if len(data) < n {
			return ErrLengthMismatch
		}
		copy(data[:n], wgpu.FromBytes[int32](raw))
		return nil
	case ElemUint32:
		data, ok := dst.([]uint32)
		if !ok {
			return ErrNotImplemented
		}
		if len(data) < n {
			return ErrLengthMismatch
		}
		copy(data[:n], wgpu.FromBytes[uint32](raw))
		return nil
	default:
		return ErrNotImplemented
	}
}

// readDeviceBuffer copies a storage buffer into a fresh staging buffer and
// maps it for reading, polling the device until the map completes.
func readDeviceBuffer(c *webgpuContext, buf *wgpu.Buffer, sizeBytes int) ([]byte, error) {
	staging, err := c.device.CreateBuffer(&wgpu.BufferDescriptor{
		Label: "algoscan_read_staging",
		Size:  uint64(sizeBytes),
		Usage: wgpu.BufferUsageMapRead | wgpu.BufferUsageCopyDst,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create staging buffer: %w", err)
	}
	defer staging.Destroy()

	encoder, err := c.device.CreateCommandEncoder(nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create command encoder: %w", err)
	}
	encoder.CopyBufferToBuffer(buf, 0, staging, 0, uint64(sizeBytes))
	cmd, err := encoder.Finish(nil)
	if err != nil {
		return nil, fmt.Errorf("failed to finish command: %w", err)
	}
	c.queue.Submit(cmd)

	done := make(chan struct{})
	var mapErr error
	err = staging.MapAsync(wgpu.MapModeRead, 0, uint64(sizeBytes), func(status wgpu.BufferMapAsyncStatus) {
		if status != wgpu.BufferMapAsyncStatusSuccess {
			mapErr = fmt.Errorf("map failed: %v", status)
		}
		close(done)
	})
	if err != nil {
		return nil, fmt.Errorf("MapAsync failed: %w", err)
	}

	timeout := time.After(5 * time.Second)
poll:
	for {
		c.device.Poll(false, nil)
		select {
		case <-done:
			break poll
		case <-timeout:
			return nil, fmt.Errorf("algoscan/gpu: buffer readback timed out")
		default:
			time.Sleep(time.Millisecond)
		}
	}
	if mapErr != nil {
		return nil, mapErr
	}

	mapped := staging.GetMappedRange(0, uint(sizeBytes))
	if mapped == nil {
		return nil, fmt.Errorf("failed to get mapped range")
	}
	out := make([]byte, sizeBytes)
	copy(out, mapped)
	staging.Unmap()
	return out, nil
}

// scanPass is one compiled kernel launch of the multi-pass scan.
type scanPass struct {
	pipeline   *wgpu.ComputePipeline
	bindGroup  *wgpu.BindGroup
	workgroups uint32
}

// webgpuScan owns the device buffers and compiled pipelines for one scan
// shape. The pass sequence mirrors the host engine: block reduce per level
// on the way down, single-workgroup scan at the deepest level, in-place
// rescan with carried prefixes on the way up, and a final pass that writes
// dst. Pipelines bake the level lengths as shader constants, so each level
// gets its own small set of pipelines.
type webgpuScan struct {
	ctx  *webgpuContext
	n    int
	elem ElemKind
	op   OpKind
	lay  layout.Plan

	input  *wgpu.Buffer
	output *wgpu.Buffer
	levels []*wgpu.Buffer

	shared    []scanPass // reduce + down-sweep + base + up-sweep
	inclusive scanPass   // final pass, inclusive write
	exclusive scanPass   // final pass, exclusive write

	pipelines  []*wgpu.ComputePipeline
	bindGroups []*wgpu.BindGroup
}

func newWebGPUScan(c *webgpuContext, n int, elem ElemKind, op OpKind) (*webgpuScan, error) {
	switch elem {
	case ElemFloat32, ElemInt32, ElemUint32:
	default:
		return nil, ErrNotImplemented
	}
	if op > OpMax {
		return nil, ErrInvalidOp
	}

	p := &webgpuScan{
		ctx:  c,
		n:    n,
		elem: elem,
		op:   op,
		lay:  layout.New(n, wgTile),
	}
	if err := p.build(); err != nil {
		_ = p.Close()
		return nil, err
	}
	return p, nil
}

func (p *webgpuScan) build() error {
	var err error
	size := uint64(p.n * p.elem.Size())
	usage := wgpu.BufferUsageStorage | wgpu.BufferUsageCopyDst | wgpu.BufferUsageCopySrc

	p.input, err = p.ctx.device.CreateBuffer(&wgpu.BufferDescriptor{
		Label: "algoscan_in", Size: size, Usage: usage,
	})
	if err != nil {
		return err
	}
	p.output, err = p.ctx.device.CreateBuffer(&wgpu.BufferDescriptor{
		Label: "algoscan_out", Size: size, Usage: usage,
	})
	if err != nil {
		return err
	}
	for k := range p.lay.Counts {
		buf, err := p.ctx.device.CreateBuffer(&wgpu.BufferDescriptor{
			Label: fmt.Sprintf("algoscan_partials_%d", k),
			Size:  uint64(p.lay.Counts[k] * p.elem.Size()),
			Usage: usage,
		})
		if err != nil {
			return err
		}
		p.levels = append(p.levels, buf)
	}

	levels := len(p.lay.Counts)

	// Block reduce of the input into level-0 partials, then each level into
	// the one above it.
	if levels > 0 {
		pass, err := p.compile(wgslReduce(p.elem, p.op, p.n),
			[]*wgpu.Buffer{p.input, p.levels[0]}, uint32(p.lay.Blocks))
		if err != nil {
			return err
		}
		p.shared = append(p.shared, pass)
	}
	for k := 0; k+1 < levels; k++ {
		pass, err := p.compile(wgslReduce(p.elem, p.op, p.lay.Counts[k]),
			[]*wgpu.Buffer{p.levels[k], p.levels[k+1]}, workgroupsFor(p.lay.Counts[k]))
		if err != nil {
			return err
		}
		p.shared = append(p.shared, pass)
	}

	// Deepest level fits in one workgroup: scan it in place.
	if levels > 0 {
		base := levels - 1
		pass, err := p.compile(wgslScanApply(p.elem, p.op, p.lay.Counts[base], scanInPlace, false),
			[]*wgpu.Buffer{p.levels[base]}, 1)
		if err != nil {
			return err
		}
		p.shared = append(p.shared, pass)
	}

	// Up-sweep: rescan each level in place with the scanned prefixes above it.
	for k := levels - 2; k >= 0; k-- {
		pass, err := p.compile(wgslScanApply(p.elem, p.op, p.lay.Counts[k], scanInPlace, true),
			[]*wgpu.Buffer{p.levels[k], p.levels[k+1]}, workgroupsFor(p.lay.Counts[k]))
		if err != nil {
			return err
		}
		p.shared = append(p.shared, pass)
	}

	// Final passes write dst from src plus the level-0 prefixes.
	finalBufs := []*wgpu.Buffer{p.input, p.output}
	hasPrefix := levels > 0
	if hasPrefix {
		finalBufs = append(finalBufs, p.levels[0])
	}
	blocks := p.lay.Blocks
	if blocks == 0 {
		blocks = 1
	}
	p.inclusive, err = p.compile(wgslScanApply(p.elem, p.op, p.n, scanInclusiveOut, hasPrefix),
		finalBufs, uint32(blocks))
	if err != nil {
		return err
	}
	p.exclusive, err = p.compile(wgslScanApply(p.elem, p.op, p.n, scanExclusiveOut, hasPrefix),
		finalBufs, uint32(blocks))
	return err
}

// compile builds a pipeline from generated WGSL and binds the given buffers
// to consecutive bindings of group 0.
func (p *webgpuScan) compile(shader string, bufs []*wgpu.Buffer, workgroups uint32) (scanPass, error) {
	module, err := p.ctx.device.CreateShaderModule(&wgpu.ShaderModuleDescriptor{
		Label:          "algoscan_kernel",
		WGSLDescriptor: &wgpu.ShaderModuleWGSLDescriptor{Code: shader},
	})
	if err != nil {
		return scanPass{}, err
	}
	pipeline, err := p.ctx.device.CreateComputePipeline(&wgpu.ComputePipelineDescriptor{
		Label:   "algoscan_pipe",
		Compute: wgpu.ProgrammableStageDescriptor{Module: module, EntryPoint: "main"},
	})
	if err != nil {
		return scanPass{}, err
	}
	p.pipelines = append(p.pipelines, pipeline)

	entries := make([]wgpu.BindGroupEntry, 0, len(bufs))
	for i, buf := range bufs {
		entries = append(entries, wgpu.BindGroupEntry{
			Binding: uint32(i), Buffer: buf, Size: buf.GetSize(),
		})
	}
	bindGroup, err := p.ctx.device.CreateBindGroup(&wgpu.BindGroupDescriptor{
		Label:   "algoscan_bind",
		Layout:  pipeline.GetBindGroupLayout(0),
		Entries: entries,
	})
	if err != nil {
		return scanPass{}, err
	}
	p.bindGroups = append(p.bindGroups, bindGroup)

	return scanPass{pipeline: pipeline, bindGroup: bindGroup, workgroups: workgroups}, nil
}

func workgroupsFor(n int) uint32 {
	return uint32((n + wgTile - 1) / wgTile)
}

func (p *webgpuScan) Len() int       { return p.n }
func (p *webgpuScan) Elem() ElemKind { return p.elem }
func (p *webgpuScan) Op() OpKind     { return p.op }

func (p *webgpuScan) Inclusive(dst, src any) error {
	return p.run(dst, src, p.inclusive)
}

func (p *webgpuScan) Exclusive(dst, src any) error {
	return p.run(dst, src, p.exclusive)
}

func (p *webgpuScan) run(dst, src any, final scanPass) error {
	data, err := hostBytes(p.elem, src, p.n)
	if err != nil {
		return err
	}
	p.ctx.queue.WriteBuffer(p.input, 0, data)

	encoder, err := p.ctx.device.CreateCommandEncoder(nil)
	if err != nil {
		return err
	}
	for _, pass := range append(append([]scanPass(nil), p.shared...), final) {
		cp := encoder.BeginComputePass(nil)
		cp.SetPipeline(pass.pipeline)
		cp.SetBindGroup(0, pass.bindGroup, nil)
		cp.DispatchWorkgroups(pass.workgroups, 1, 1)
		cp.End()
	}
	cmd, err := encoder.Finish(nil)
	if err != nil {
		return err
	}
	p.ctx.queue.Submit(cmd)

	raw, err := readDeviceBuffer(p.ctx, p.output, p.n*p.elem.Size())
	if err != nil {
		return err
	}
	return hostCopyBack(p.elem, dst, raw, p.n)
}

func (p *webgpuScan) Close() error {
	for _, bg := range p.bindGroups {
		bg.Release()
	}
	p.bindGroups = nil
	for _, pl := range p.pipelines {
		pl.Release()
	}
	p.pipelines = nil
	if p.input != nil {
		p.input.Destroy()
		p.input = nil
	}
	if p.output != nil {
		p.output.Destroy()
		p.output = nil
	}
	for _, buf := range p.levels {
		buf.Destroy()
	}
	p.levels = nil
	return nil
}
