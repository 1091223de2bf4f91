// Package fsindex implements the persistent index (C7): an in-memory
// vector of FileEntry plus a secondary path map and an accumulated
// bad-sector log, with atomic zstd-compressed binary save/load.
package fsindex

import (
	"bytes"
	"encoding/gob"
	"fmt"
	"os"
	"path/filepath"

	"github.com/klauspost/compress/zstd"

	"github.com/forensics/diskrecover/internal/model"
)

// CurrentVersion is bumped whenever the on-disk envelope changes shape.
// A version mismatch on Load triggers a clean-start, never
// a partial load.
const CurrentVersion = 1

// Index owns the entry set, a path->position map, and the bad-sector
// log. It holds no lock; its methods are not safe for concurrent use.
type Index struct {
	entries    []model.FileEntry
	byPath     map[string]int
	badSectors []model.BadSector
	totalBytes int64
}

// New returns an empty index.
func New() *Index {
	return &Index{byPath: make(map[string]int)}
}

// envelope is the on-disk shape, version-tagged.
type envelope struct {
	Version    int
	Entries    []model.FileEntry
	BadSectors []model.BadSector
}

// AddEntry is idempotent by path: a duplicate path overwrites the prior
// entry and adjusts the running total-bytes counter.
func (idx *Index) AddEntry(e model.FileEntry) {
	if pos, ok := idx.byPath[e.Path]; ok {
		idx.totalBytes += e.Size - idx.entries[pos].Size
		idx.entries[pos] = e
		return
	}
	idx.byPath[e.Path] = len(idx.entries)
	idx.entries = append(idx.entries, e)
	idx.totalBytes += e.Size
}

// SetBadSectors replaces the full bad-sector log, used by the scanner to
// avoid accumulating duplicates across re-indexes.
func (idx *Index) SetBadSectors(bs []model.BadSector) {
	idx.badSectors = append([]model.BadSector(nil), bs...)
}

// AddBadSectors appends to the bad-sector log.
func (idx *Index) AddBadSectors(bs []model.BadSector) {
	idx.badSectors = append(idx.badSectors, bs...)
}

// Entries returns a read-only snapshot of the entry set.
func (idx *Index) Entries() []model.FileEntry {
	out := make([]model.FileEntry, len(idx.entries))
	copy(out, idx.entries)
	return out
}

// BadSectors returns a read-only snapshot of the bad-sector log.
func (idx *Index) BadSectors() []model.BadSector {
	out := make([]model.BadSector, len(idx.badSectors))
	copy(out, idx.badSectors)
	return out
}

// Get looks up an entry by exact path.
func (idx *Index) Get(path string) (model.FileEntry, bool) {
	pos, ok := idx.byPath[path]
	if !ok {
		return model.FileEntry{}, false
	}
	return idx.entries[pos], true
}

// TotalBytes is the cached sum of all entry sizes.
func (idx *Index) TotalBytes() int64 { return idx.totalBytes }

// Len is the number of entries.
func (idx *Index) Len() int { return len(idx.entries) }

// Save writes the index as a single zstd-compressed gob blob, atomically
// via write-then-rename.
func (idx *Index) Save(path string) error {
	env := envelope{Version: CurrentVersion, Entries: idx.entries, BadSectors: idx.badSectors}

	var raw bytes.Buffer
	if err := gob.NewEncoder(&raw).Encode(env); err != nil {
		return fmt.Errorf("fsindex: encode: %w", err)
	}

	enc, err := zstd.NewWriter(nil)
	if err != nil {
		return fmt.Errorf("fsindex: zstd writer: %w", err)
	}
	defer enc.Close()
	compressed := enc.EncodeAll(raw.Bytes(), nil)

	tmp := path + ".tmp"
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("fsindex: create parent: %w", err)
	}
	if err := os.WriteFile(tmp, compressed, 0o644); err != nil {
		return fmt.Errorf("fsindex: write temp: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		return fmt.Errorf("fsindex: rename temp: %w", err)
	}
	return nil
}

// Load reconstructs an Index from disk. A version mismatch or any
// decode error results in a clean-start signal (ErrCleanStart), never a
// partially-populated index.
func Load(path string) (*Index, error) {
	compressed, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	dec, err := zstd.NewReader(nil)
	if err != nil {
		return nil, fmt.Errorf("fsindex: zstd reader: %w", err)
	}
	defer dec.Close()
	raw, err := dec.DecodeAll(compressed, nil)
	if err != nil {
		return nil, ErrCleanStart
	}

	var env envelope
	if err := gob.NewDecoder(bytes.NewReader(raw)).Decode(&env); err != nil {
		return nil, ErrCleanStart
	}
	if env.Version != CurrentVersion {
		return nil, ErrCleanStart
	}

	idx := New()
	for _, e := range env.Entries {
		idx.AddEntry(e)
	}
	idx.SetBadSectors(env.BadSectors)
	return idx, nil
}

// ErrCleanStart signals that the persisted index could not be loaded
// (version mismatch or corruption) and the caller should warn and start
// fresh rather than load partial state.
var ErrCleanStart = fmt.Errorf("fsindex: incompatible or corrupt index, starting fresh")
