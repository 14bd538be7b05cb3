package algoscan

import (
	"bytes"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTuning_RecordLookup(t *testing.T) {
	t.Parallel()

	tu := NewTuning()
	_, ok := tu.Lookup(1500)
	assert.False(t, ok)

	require.NoError(t, tu.Record(1500, 512))

	// 1500 lands in the (1024, 2048] bucket, shared by every length there.
	for _, n := range []int{1025, 1500, 2048} {
		tile, ok := tu.Lookup(n)
		assert.True(t, ok, "n=%d", n)
		assert.Equal(t, 512, tile, "n=%d", n)
	}
	_, ok = tu.Lookup(1024)
	assert.False(t, ok, "adjacent bucket must stay empty")
	_, ok = tu.Lookup(2049)
	assert.False(t, ok, "adjacent bucket must stay empty")

	assert.Equal(t, 1, tu.Len())
	tu.Clear()
	assert.Equal(t, 0, tu.Len())
}

func TestTuning_RejectsInvalid(t *testing.T) {
	t.Parallel()

	tu := NewTuning()
	assert.ErrorIs(t, tu.Record(0, 512), ErrInvalidLength)
	assert.ErrorIs(t, tu.Record(1500, 1), ErrInvalidTile)
}

func TestTuning_ExportImportRoundtrip(t *testing.T) {
	t.Parallel()

	tu := NewTuning()
	require.NoError(t, tu.Record(1000, 256))
	require.NoError(t, tu.Record(1<<20, 4096))

	var buf bytes.Buffer
	require.NoError(t, tu.Export(&buf))

	loaded := NewTuning()
	require.NoError(t, loaded.Import(&buf))
	assert.Equal(t, tu.Len(), loaded.Len())

	tile, ok := loaded.Lookup(1000)
	require.True(t, ok)
	assert.Equal(t, 256, tile)
	tile, ok = loaded.Lookup(1 << 20)
	require.True(t, ok)
	assert.Equal(t, 4096, tile)
}

func TestTuning_ImportRejectsGarbage(t *testing.T) {
	t.Parallel()

	tu := NewTuning()
	err := tu.Import(bytes.NewReader([]byte("not cbor at all")))
	assert.Error(t, err)
	assert.Equal(t, 0, tu.Len())
}

func TestTuning_FileRoundtrip(t *testing.T) {
	t.Parallel()

	tu := NewTuning()
	require.NoError(t, tu.Record(4096, 2048))

	path := filepath.Join(t.TempDir(), "scan.tuning")
	require.NoError(t, ExportTuning(path, tu))

	loaded := NewTuning()
	require.NoError(t, ImportTuning(path, loaded))
	tile, ok := loaded.Lookup(4096)
	require.True(t, ok)
	assert.Equal(t, 2048, tile)
}

func TestTuning_DrivesDeviceLayout(t *testing.T) {
	t.Parallel()

	tu := NewTuning()
	require.NoError(t, tu.Record(1000, 16))

	dev, err := NewDevice(DeviceOptions{Tuning: tu})
	require.NoError(t, err)
	defer dev.Close()

	// Tuned bucket: tile 16 over 1000 elements gives 63 blocks and then
	// 4 second-level partials.
	got, err := dev.ScratchLen(1000)
	require.NoError(t, err)
	assert.Equal(t, 63+4, got)

	// Untuned lengths fall back to the default tile.
	got, err = dev.ScratchLen(1 << 20)
	require.NoError(t, err)
	assert.Equal(t, 1024, got)

	// The engine and the estimator agree: a scan sized by ScratchLen runs.
	stream, err := dev.NewStream()
	require.NoError(t, err)
	src := make([]int, 1000)
	for i := range src {
		src[i] = 1
	}
	dst := make([]int, 1000)
	scratch := make([]int, 63+4)
	sum := func(a, b int) int { return a + b }
	require.NoError(t, InclusiveScan(stream, dst, src, sum, scratch))
	require.NoError(t, stream.Synchronize())
	assert.Equal(t, 1000, dst[999])
}
