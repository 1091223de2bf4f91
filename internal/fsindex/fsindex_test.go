package fsindex

import (
	"os"
	"path/filepath"
	"reflect"
	"sort"
	"testing"

	"github.com/forensics/diskrecover/internal/model"
)

func TestAddEntry_IdempotentByPath(t *testing.T) {
	idx := New()
	idx.AddEntry(model.FileEntry{Path: "/a", Size: 100})
	idx.AddEntry(model.FileEntry{Path: "/a", Size: 150})

	if idx.Len() != 1 {
		t.Fatalf("Len() = %d, want 1", idx.Len())
	}
	if idx.TotalBytes() != 150 {
		t.Fatalf("TotalBytes() = %d, want 150", idx.TotalBytes())
	}
	e, ok := idx.Get("/a")
	if !ok || e.Size != 150 {
		t.Fatalf("Get(/a) = (%+v, %v), want size 150", e, ok)
	}
}

func TestSetBadSectors_Replaces(t *testing.T) {
	idx := New()
	idx.AddBadSectors([]model.BadSector{{FilePath: "/a"}, {FilePath: "/b"}})
	idx.SetBadSectors([]model.BadSector{{FilePath: "/c"}})

	bs := idx.BadSectors()
	if len(bs) != 1 || bs[0].FilePath != "/c" {
		t.Fatalf("BadSectors() = %+v, want single /c entry", bs)
	}
}

func TestAddBadSectors_Appends(t *testing.T) {
	idx := New()
	idx.AddBadSectors([]model.BadSector{{FilePath: "/a"}})
	idx.AddBadSectors([]model.BadSector{{FilePath: "/b"}})

	if len(idx.BadSectors()) != 2 {
		t.Fatalf("BadSectors() len = %d, want 2", len(idx.BadSectors()))
	}
}

// Invariant 6: load(save(index)) == index as a set of entries and bad sectors.
func TestSaveLoad_RoundTrip(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "index.bin")

	idx := New()
	idx.AddEntry(model.FileEntry{Path: "/a", Size: 10, Extension: "txt"})
	idx.AddEntry(model.FileEntry{Path: "/b", Size: 20, Extension: "jpg"})
	idx.SetBadSectors([]model.BadSector{{FilePath: "/a", Offset: 0, Length: 512}})

	if err := idx.Save(path); err != nil {
		t.Fatalf("Save: %v", err)
	}

	loaded, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	if loaded.Len() != idx.Len() {
		t.Fatalf("loaded Len() = %d, want %d", loaded.Len(), idx.Len())
	}
	if loaded.TotalBytes() != idx.TotalBytes() {
		t.Fatalf("loaded TotalBytes() = %d, want %d", loaded.TotalBytes(), idx.TotalBytes())
	}

	wantEntries := idx.Entries()
	gotEntries := loaded.Entries()
	sort.Slice(wantEntries, func(i, j int) bool { return wantEntries[i].Path < wantEntries[j].Path })
	sort.Slice(gotEntries, func(i, j int) bool { return gotEntries[i].Path < gotEntries[j].Path })
	if !reflect.DeepEqual(wantEntries, gotEntries) {
		t.Fatalf("entries mismatch after round-trip: got %+v, want %+v", gotEntries, wantEntries)
	}
	if !reflect.DeepEqual(loaded.BadSectors(), idx.BadSectors()) {
		t.Fatalf("bad sectors mismatch after round-trip: got %+v, want %+v", loaded.BadSectors(), idx.BadSectors())
	}
}

func TestLoad_CorruptBlobIsCleanStart(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "index.bin")

	idx := New()
	idx.AddEntry(model.FileEntry{Path: "/a", Size: 1})
	if err := idx.Save(path); err != nil {
		t.Fatalf("Save: %v", err)
	}

	// Corrupt the file to force a decode failure, simulating an
	// incompatible envelope.
	corruptPath := filepath.Join(dir, "corrupt.bin")
	if err := os.WriteFile(corruptPath, []byte("not a valid zstd/gob blob"), 0o644); err != nil {
		t.Fatalf("write garbage: %v", err)
	}
	if _, err := Load(corruptPath); err != ErrCleanStart {
		t.Fatalf("Load(corrupt) error = %v, want ErrCleanStart", err)
	}
}
