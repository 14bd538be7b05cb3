package algoscan

import "testing"

func TestScratchLen_KnownValues(t *testing.T) {
	t.Parallel()

	// Default tile is 1024: a single block needs no scratch, one partial
	// per block after that, plus higher levels once the partial count
	// itself exceeds a tile.
	cases := []struct {
		n    int
		want int
	}{
		{0, 0},
		{1, 0},
		{1024, 0},
		{1025, 2},
		{2048, 2},
		{1 << 20, 1024},
		{1<<20 + 1, 1025 + 2},
	}
	for _, tc := range cases {
		got, err := ScratchLen(tc.n)
		if err != nil {
			t.Fatalf("ScratchLen(%d): %v", tc.n, err)
		}
		if got != tc.want {
			t.Errorf("ScratchLen(%d) = %d, want %d", tc.n, got, tc.want)
		}
	}
}

func TestScratchLen_MonotonicAndIdempotent(t *testing.T) {
	t.Parallel()

	prev := 0
	for n := 0; n <= 1<<15; n += 137 {
		a, err := ScratchLen(n)
		if err != nil {
			t.Fatalf("ScratchLen(%d): %v", n, err)
		}
		b, err := ScratchLen(n)
		if err != nil {
			t.Fatalf("ScratchLen(%d) second call: %v", n, err)
		}
		if a != b {
			t.Fatalf("ScratchLen(%d) not idempotent: %d vs %d", n, a, b)
		}
		if a < prev {
			t.Fatalf("ScratchLen(%d) = %d decreased below %d", n, a, prev)
		}
		prev = a
	}
}

func TestScratchLen_Negative(t *testing.T) {
	t.Parallel()

	if _, err := ScratchLen(-1); err != ErrInvalidLength {
		t.Errorf("ScratchLen(-1) = %v, want ErrInvalidLength", err)
	}
	if _, err := BufferSize[int64](-1); err != ErrInvalidLength {
		t.Errorf("BufferSize(-1) = %v, want ErrInvalidLength", err)
	}
}

func TestBufferSize_MatchesElementSize(t *testing.T) {
	t.Parallel()

	for _, n := range []int{0, 1025, 1 << 20} {
		elems, err := ScratchLen(n)
		if err != nil {
			t.Fatalf("ScratchLen(%d): %v", n, err)
		}
		b32, err := BufferSize[int32](n)
		if err != nil {
			t.Fatalf("BufferSize[int32](%d): %v", n, err)
		}
		b64, err := BufferSize[int64](n)
		if err != nil {
			t.Fatalf("BufferSize[int64](%d): %v", n, err)
		}
		if b32 != elems*4 {
			t.Errorf("BufferSize[int32](%d) = %d, want %d", n, b32, elems*4)
		}
		if b64 != elems*8 {
			t.Errorf("BufferSize[int64](%d) = %d, want %d", n, b64, elems*8)
		}
	}
}

func TestDeviceScratchLen_TracksTile(t *testing.T) {
	t.Parallel()

	dev, err := NewDevice(DeviceOptions{Tile: 4})
	if err != nil {
		t.Fatalf("NewDevice: %v", err)
	}
	defer dev.Close()

	// n=17, tile=4: 5 blocks, then 2 second-level partials.
	got, err := dev.ScratchLen(17)
	if err != nil {
		t.Fatalf("ScratchLen: %v", err)
	}
	if want := 5 + 2; got != want {
		t.Errorf("ScratchLen(17) with tile 4 = %d, want %d", got, want)
	}

	// The same length on a default device needs no scratch at all.
	def, err := NewDevice(DeviceOptions{})
	if err != nil {
		t.Fatalf("NewDevice: %v", err)
	}
	defer def.Close()
	got, err = def.ScratchLen(17)
	if err != nil {
		t.Fatalf("ScratchLen: %v", err)
	}
	if got != 0 {
		t.Errorf("ScratchLen(17) with default tile = %d, want 0", got)
	}
}
