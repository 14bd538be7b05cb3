// Package gpu provides device backends for algoscan.
//
// This package defines a dedicated device scanner API that mirrors the host
// scan surface for a fixed set of element types and operators, the shape a
// compute shader can be generated for. Backends are registered at runtime;
// the mock backend executes on the CPU through the host engine, and the
// WebGPU backend (behind the "webgpu" build tag) runs WGSL compute kernels.
package gpu
