package algoscan

import (
	"fmt"
	"io"
	"math/bits"
	"os"
	"sort"
	"sync"

	"github.com/fxamacker/cbor/v2"

	"github.com/cwbudde/algo-scan/internal/layout"
)

// tuningVersion is the on-disk format version accepted by Import.
const tuningVersion = 1

// Tuning stores measured tile sizes keyed by scan length, bucketed by
// power of two. A Device created with DeviceOptions.Tuning consults it per
// scan; Device.ScratchLen consults the same entry, so engine and estimator
// stay in agreement. Tuning data is produced by cmd/scanbench and can be
// exported for reuse across runs.
//
// Tuning is safe for concurrent use.
type Tuning struct {
	mu    sync.RWMutex
	tiles map[int]int // ceil(log2(n)) -> tile
}

// NewTuning creates an empty tuning cache.
func NewTuning() *Tuning {
	return &Tuning{tiles: make(map[int]int)}
}

// DefaultTuning is the process-wide tuning cache used by callers that share
// one set of measurements.
var DefaultTuning = NewTuning()

// Record stores tile as the measured-best block size for scans of roughly
// n elements. Entries are bucketed by power of two, so a recording for
// n=1500 applies to all lengths in (1024, 2048].
func (t *Tuning) Record(n, tile int) error {
	if n < 1 {
		return ErrInvalidLength
	}
	if tile < layout.MinTile {
		return ErrInvalidTile
	}
	t.mu.Lock()
	t.tiles[bucketOf(n)] = tile
	t.mu.Unlock()
	return nil
}

// Lookup returns the recorded tile for scans of n elements.
func (t *Tuning) Lookup(n int) (int, bool) {
	if n < 1 {
		return 0, false
	}
	t.mu.RLock()
	tile, ok := t.tiles[bucketOf(n)]
	t.mu.RUnlock()
	return tile, ok
}

// Len returns the number of recorded buckets.
func (t *Tuning) Len() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return len(t.tiles)
}

// Clear removes all entries.
func (t *Tuning) Clear() {
	t.mu.Lock()
	t.tiles = make(map[int]int)
	t.mu.Unlock()
}

type tuningFile struct {
	Version int           `cbor:"version"`
	Entries []tuningEntry `cbor:"entries"`
}

type tuningEntry struct {
	Bucket int `cbor:"bucket"`
	Tile   int `cbor:"tile"`
}

// Export writes the cache in its portable CBOR format.
func (t *Tuning) Export(w io.Writer) error {
	t.mu.RLock()
	file := tuningFile{Version: tuningVersion}
	for b, tile := range t.tiles {
		file.Entries = append(file.Entries, tuningEntry{Bucket: b, Tile: tile})
	}
	t.mu.RUnlock()
	sort.Slice(file.Entries, func(i, j int) bool {
		return file.Entries[i].Bucket < file.Entries[j].Bucket
	})
	return cbor.NewEncoder(w).Encode(file)
}

// Import merges entries from a reader in the format produced by Export.
// Entries with invalid tiles are rejected; existing buckets are overwritten.
func (t *Tuning) Import(r io.Reader) error {
	var file tuningFile
	if err := cbor.NewDecoder(r).Decode(&file); err != nil {
		return fmt.Errorf("failed to decode tuning data: %w", err)
	}
	if file.Version != tuningVersion {
		return fmt.Errorf("unsupported tuning format version %d", file.Version)
	}
	for _, e := range file.Entries {
		if e.Bucket < 0 || e.Tile < layout.MinTile {
			return fmt.Errorf("invalid tuning entry (bucket %d, tile %d): %w", e.Bucket, e.Tile, ErrInvalidTile)
		}
	}
	t.mu.Lock()
	for _, e := range file.Entries {
		t.tiles[e.Bucket] = e.Tile
	}
	t.mu.Unlock()
	return nil
}

// ExportTuning saves a tuning cache to a file for later ImportTuning.
func ExportTuning(filename string, t *Tuning) error {
	f, err := os.Create(filename)
	if err != nil {
		return fmt.Errorf("failed to create tuning file: %w", err)
	}
	defer f.Close()

	if err := t.Export(f); err != nil {
		return fmt.Errorf("failed to export tuning: %w", err)
	}
	return nil
}

// ImportTuning merges a tuning file into the given cache.
func ImportTuning(filename string, t *Tuning) error {
	f, err := os.Open(filename)
	if err != nil {
		return fmt.Errorf("failed to open tuning file: %w", err)
	}
	defer f.Close()

	if err := t.Import(f); err != nil {
		return fmt.Errorf("failed to import tuning: %w", err)
	}
	return nil
}

// bucketOf maps a length to its power-of-two bucket: ceil(log2(n)).
func bucketOf(n int) int {
	return bits.Len(uint(n - 1))
}
