package checkpoint

import (
	"os"
	"path/filepath"
	"testing"
)

func TestSourceHash_Deterministic(t *testing.T) {
	a := SourceHash("/mnt/image.raw")
	b := SourceHash("/mnt/image.raw")
	if a != b {
		t.Fatalf("SourceHash not deterministic: %q vs %q", a, b)
	}
	if len(a) != 16 { // 8 bytes hex-encoded
		t.Fatalf("SourceHash length = %d, want 16", len(a))
	}
}

func TestSourceHash_DiffersByPath(t *testing.T) {
	if SourceHash("/a") == SourceHash("/b") {
		t.Fatalf("SourceHash should differ for different source paths")
	}
}

func TestNew_InitializesMaps(t *testing.T) {
	c := New("/src", Indexing, 10)
	if c.ProcessedPaths == nil || c.HashesComputed == nil {
		t.Fatalf("New() left a nil map: %+v", c)
	}
	if c.Version != CurrentVersion {
		t.Fatalf("Version = %d, want %d", c.Version, CurrentVersion)
	}
}

func TestMarkProcessed_AutoSaveOnInterval(t *testing.T) {
	dir := t.TempDir()
	c := New("/src", Exporting, 2)

	if err := c.MarkProcessed(dir, "/src/a"); err != nil {
		t.Fatalf("MarkProcessed: %v", err)
	}
	path := filepath.Join(dir, c.SourceHash+"_Exporting.checkpoint.json")
	if fileExists(path) {
		t.Fatalf("checkpoint saved early, want no save until interval reached")
	}

	if err := c.MarkProcessed(dir, "/src/b"); err != nil {
		t.Fatalf("MarkProcessed: %v", err)
	}
	if !fileExists(path) {
		t.Fatalf("checkpoint not saved after reaching autosave interval")
	}
	if c.ItemsSinceSave != 0 {
		t.Fatalf("ItemsSinceSave = %d, want reset to 0 after autosave", c.ItemsSinceSave)
	}
}

func TestIsProcessed(t *testing.T) {
	c := New("/src", Dedup, 0)
	c.ProcessedPaths["/src/a"] = true
	if !c.IsProcessed("/src/a") {
		t.Fatalf("IsProcessed(/src/a) = false, want true")
	}
	if c.IsProcessed("/src/b") {
		t.Fatalf("IsProcessed(/src/b) = true, want false")
	}
}

func TestResume_NoExistingCheckpoint(t *testing.T) {
	dir := t.TempDir()
	_, ok, err := Resume(dir, "/src", Indexing)
	if err != nil {
		t.Fatalf("Resume: %v", err)
	}
	if ok {
		t.Fatalf("Resume ok = true, want false when nothing was saved")
	}
}

func TestSaveThenResume_RoundTrip(t *testing.T) {
	dir := t.TempDir()
	c := New("/src/image.raw", Indexing, 100)
	c.ProcessedPaths["/src/a"] = true
	c.HashesComputed["/src/a"] = "deadbeef"
	c.BadSectorsFound = 3

	if err := c.Save(dir); err != nil {
		t.Fatalf("Save: %v", err)
	}

	loaded, ok, err := Resume(dir, "/src/image.raw", Indexing)
	if err != nil || !ok {
		t.Fatalf("Resume = (%v, %v, %v), want success", loaded, ok, err)
	}
	if !loaded.IsProcessed("/src/a") {
		t.Fatalf("resumed checkpoint lost processed path")
	}
	if loaded.HashesComputed["/src/a"] != "deadbeef" {
		t.Fatalf("resumed checkpoint lost computed hash")
	}
	if loaded.BadSectorsFound != 3 {
		t.Fatalf("BadSectorsFound = %d, want 3", loaded.BadSectorsFound)
	}
}

func fileExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}
