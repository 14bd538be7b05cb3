//go:build webgpu

package gpu

import "fmt"

// Kernel tiling: each workgroup of wgSize threads processes wgTile
// contiguous elements, elemsPerThread per thread. The scratch layout in
// internal/layout must be computed with the same tile.
const (
	wgSize         = 256
	elemsPerThread = 4
	wgTile         = wgSize * elemsPerThread
)

func wgslType(k ElemKind) string {
	switch k {
	case ElemInt32:
		return "i32"
	case ElemUint32:
		return "u32"
	default:
		return "f32"
	}
}

// wgslCombine renders the operator application for the generated kernels.
func wgslCombine(op OpKind, a, b string) string {
	switch op {
	case OpMul:
		return fmt.Sprintf("(%s * %s)", a, b)
	case OpMin:
		return fmt.Sprintf("min(%s, %s)", a, b)
	case OpMax:
		return fmt.Sprintf("max(%s, %s)", a, b)
	default:
		return fmt.Sprintf("(%s + %s)", a, b)
	}
}

// wgslIdentity renders the operator identity literal. Min/max use the type's
// extreme finite values, matching what the scanners document for the
// exclusive seed.
func wgslIdentity(elem ElemKind, op OpKind) string {
	switch elem {
	case ElemInt32:
		switch op {
		case OpMul:
			return "1"
		case OpMin:
			return "2147483647"
		case OpMax:
			return "-2147483648"
		default:
			return "0"
		}
	case ElemUint32:
		switch op {
		case OpMul:
			return "1u"
		case OpMin:
			return "4294967295u"
		default:
			return "0u"
		}
	default:
		switch op {
		case OpMul:
			return "1.0"
		case OpMin:
			return "3.402823466e+38"
		case OpMax:
			return "-3.402823466e+38"
		default:
			return "0.0"
		}
	}
}

// wgslReduce generates the block-reduce kernel: each workgroup folds its
// tile of src (length n) into one partial. Threads fold contiguous
// sub-ranges in index order; the shared-memory stride-halving tree then
// combines thread totals out of index order, which requires the operator to
// be commutative. Every OpKind is, so this holds for the closed device set;
// the host engine serves non-commutative operators.
func wgslReduce(elem ElemKind, op OpKind, n int) string {
	ty := wgslType(elem)
	return fmt.Sprintf(`
@group(0) @binding(0) var<storage, read> src : array<%[1]s>;
@group(0) @binding(1) var<storage, read_write> partials : array<%[1]s>;

const N: u32 = %[2]du;
const IDENT: %[1]s = %[3]s;

var<workgroup> shared_val: array<%[1]s, %[4]d>;

@compute @workgroup_size(%[4]d)
fn main(
	@builtin(workgroup_id) wg_id: vec3<u32>,
	@builtin(local_invocation_id) local_id: vec3<u32>
) {
	let tid = local_id.x;
	let base = wg_id.x * %[5]du + tid * %[6]du;

	var acc: %[1]s = IDENT;
	for (var i: u32 = 0u; i < %[6]du; i++) {
		let idx = base + i;
		if (idx < N) {
			acc = %[7]s;
		}
	}
	shared_val[tid] = acc;
	workgroupBarrier();

	for (var s: u32 = %[8]du; s > 0u; s = s >> 1u) {
		if (tid < s) {
			shared_val[tid] = %[9]s;
		}
		workgroupBarrier();
	}
	if (tid == 0u) {
		partials[wg_id.x] = shared_val[0];
	}
}
`, ty, n, wgslIdentity(elem, op), wgSize, wgTile, elemsPerThread,
		wgslCombine(op, "acc", "src[idx]"), wgSize/2,
		wgslCombine(op, "shared_val[tid]", "shared_val[tid + s]"))
}

// scanMode selects what the scan-apply kernel writes.
type scanMode int

const (
	scanInclusiveOut scanMode = iota // src -> dst, inclusive
	scanExclusiveOut                 // src -> dst, shifted by one, dst[0] = IDENT
	scanInPlace                      // data scanned in place (partial levels)
)

// wgslScanApply generates the scan kernel: each workgroup computes the
// inclusive scan of its tile (thread-sequential over registers, then a
// Hillis-Steele pass over the thread totals) and folds in the combination
// of all preceding tiles read from the prefix array.
func wgslScanApply(elem ElemKind, op OpKind, n int, mode scanMode, hasPrefix bool) string {
	ty := wgslType(elem)

	// Bindings are always consecutive from 0; compile binds the buffers it
	// is handed in the same order.
	bindings := ""
	loadExpr := "src[idx]"
	prefixExpr := ""
	prefixBinding := 2
	switch mode {
	case scanInPlace:
		bindings = fmt.Sprintf("@group(0) @binding(0) var<storage, read_write> data : array<%s>;\n", ty)
		loadExpr = "data[idx]"
		prefixBinding = 1
	default:
		bindings = fmt.Sprintf(
			"@group(0) @binding(0) var<storage, read> src : array<%[1]s>;\n"+
				"@group(0) @binding(1) var<storage, read_write> data : array<%[1]s>;\n", ty)
	}
	if hasPrefix {
		bindings += fmt.Sprintf("@group(0) @binding(%d) var<storage, read> prefixes : array<%s>;\n", prefixBinding, ty)
		prefixExpr = `
	if (wg_id.x > 0u) {
		carry = ` + wgslCombine(op, "prefixes[wg_id.x - 1u]", "carry") + `;
	}`
	}

	var writeBlock string
	switch mode {
	case scanExclusiveOut:
		writeBlock = `
	if (idx == 0u) {
		data[0] = IDENT;
	}
	if (idx + 1u < N) {
		data[idx + 1u] = v;
	}`
	default:
		writeBlock = `
	data[idx] = v;`
	}

	return fmt.Sprintf(`
%[1]s
const N: u32 = %[2]du;
const IDENT: %[3]s = %[4]s;

var<workgroup> shared_val: array<%[3]s, %[5]d>;

@compute @workgroup_size(%[5]d)
fn main(
	@builtin(workgroup_id) wg_id: vec3<u32>,
	@builtin(local_invocation_id) local_id: vec3<u32>
) {
	let tid = local_id.x;
	let base = wg_id.x * %[6]du + tid * %[7]du;

	// Thread-sequential inclusive scan of the thread's contiguous elements.
	var vals: array<%[3]s, %[7]d>;
	var acc: %[3]s = IDENT;
	for (var i: u32 = 0u; i < %[7]du; i++) {
		let idx = base + i;
		var v: %[3]s = IDENT;
		if (idx < N) {
			v = %[8]s;
		}
		acc = %[9]s;
		vals[i] = acc;
	}
	shared_val[tid] = acc;
	workgroupBarrier();

	// Hillis-Steele inclusive scan over the thread totals.
	for (var offset: u32 = 1u; offset < %[5]du; offset = offset << 1u) {
		var t: %[3]s = shared_val[tid];
		if (tid >= offset) {
			t = %[10]s;
		}
		workgroupBarrier();
		shared_val[tid] = t;
		workgroupBarrier();
	}

	// Carry = everything before this thread, within and before the tile.
	var carry: %[3]s = IDENT;
	if (tid > 0u) {
		carry = shared_val[tid - 1u];
	}%[11]s

	for (var i: u32 = 0u; i < %[7]du; i++) {
		let idx = base + i;
		if (idx < N) {
			let v = %[12]s;%[13]s
		}
	}
}
`, bindings, n, ty, wgslIdentity(elem, op), wgSize, wgTile, elemsPerThread,
		loadExpr,
		wgslCombine(op, "acc", "v"),
		wgslCombine(op, "shared_val[tid - offset]", "t"),
		prefixExpr,
		wgslCombine(op, "carry", "vals[i]"),
		writeBlock)
}
