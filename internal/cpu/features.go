// Package cpu reports host CPU capabilities for device descriptions and
// benchmark output.
package cpu

import (
	"runtime"
	"strings"

	"golang.org/x/sys/cpu"
)

// Features describes the CPU features relevant to block-parallel scans.
type Features struct {
	HasAVX2      bool
	HasAVX512    bool
	HasSSE2      bool
	HasNEON      bool
	Architecture string
	Cores        int
}

// DetectFeatures reports the available CPU features for the current process.
func DetectFeatures() Features {
	return Features{
		HasAVX2:      cpu.X86.HasAVX2,
		HasAVX512:    cpu.X86.HasAVX512,
		HasSSE2:      cpu.X86.HasSSE2,
		HasNEON:      cpu.ARM64.HasASIMD,
		Architecture: runtime.GOARCH,
		Cores:        runtime.NumCPU(),
	}
}

// String returns a compact tag like "amd64/avx2+sse2" for logs and
// device descriptions.
func (f Features) String() string {
	var tags []string
	if f.HasAVX512 {
		tags = append(tags, "avx512")
	}
	if f.HasAVX2 {
		tags = append(tags, "avx2")
	}
	if f.HasSSE2 {
		tags = append(tags, "sse2")
	}
	if f.HasNEON {
		tags = append(tags, "neon")
	}
	if len(tags) == 0 {
		return f.Architecture
	}
	return f.Architecture + "/" + strings.Join(tags, "+")
}
