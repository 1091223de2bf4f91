package fsscan

import (
	"context"
	"os"
	"path/filepath"
	"sort"
	"testing"

	"github.com/forensics/diskrecover/internal/forensiccfg"
	"github.com/forensics/diskrecover/internal/model"
)

func TestRun_ProducesEntriesForRegularFiles(t *testing.T) {
	dir := t.TempDir()
	mustWrite(t, filepath.Join(dir, "a.txt"), "hello")
	mustWrite(t, filepath.Join(dir, "b.jpg"), "fake jpeg bytes")
	if err := os.Mkdir(filepath.Join(dir, "sub"), 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	mustWrite(t, filepath.Join(dir, "sub", "c.txt"), "nested")

	res, err := Run(context.Background(), forensiccfg.IndexArgs{Source: dir, Workers: 2, BlockSize: 4096})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if len(res.Entries) != 3 {
		t.Fatalf("len(Entries) = %d, want 3: %+v", len(res.Entries), res.Entries)
	}

	var paths []string
	for _, e := range res.Entries {
		paths = append(paths, e.Path)
	}
	sort.Strings(paths)
	want := []string{
		filepath.Join(dir, "a.txt"),
		filepath.Join(dir, "b.jpg"),
		filepath.Join(dir, "sub", "c.txt"),
	}
	sort.Strings(want)
	for i := range want {
		if paths[i] != want[i] {
			t.Fatalf("paths = %v, want %v", paths, want)
		}
	}
}

func TestRun_SkipsHiddenFiles(t *testing.T) {
	dir := t.TempDir()
	mustWrite(t, filepath.Join(dir, "visible.txt"), "v")
	mustWrite(t, filepath.Join(dir, ".hidden.txt"), "h")

	res, err := Run(context.Background(), forensiccfg.IndexArgs{Source: dir, Workers: 2, BlockSize: 4096, SkipHidden: true})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if len(res.Entries) != 1 || filepath.Base(res.Entries[0].Path) != "visible.txt" {
		t.Fatalf("Entries = %+v, want only visible.txt", res.Entries)
	}
}

func TestRun_ExtensionWhitelist(t *testing.T) {
	dir := t.TempDir()
	mustWrite(t, filepath.Join(dir, "a.txt"), "t")
	mustWrite(t, filepath.Join(dir, "b.jpg"), "j")

	res, err := Run(context.Background(), forensiccfg.IndexArgs{
		Source: dir, Workers: 2, BlockSize: 4096, Extensions: []string{"jpg"},
	})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if len(res.Entries) != 1 || res.Entries[0].Extension != "jpg" {
		t.Fatalf("Entries = %+v, want only the jpg file", res.Entries)
	}
}

func TestRun_MaxDepth(t *testing.T) {
	dir := t.TempDir()
	deep := filepath.Join(dir, "a", "b", "c")
	if err := os.MkdirAll(deep, 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	mustWrite(t, filepath.Join(dir, "top.txt"), "top")
	mustWrite(t, filepath.Join(deep, "deep.txt"), "deep")

	depth := 1
	res, err := Run(context.Background(), forensiccfg.IndexArgs{
		Source: dir, Workers: 2, BlockSize: 4096, MaxDepth: &depth,
	})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	for _, e := range res.Entries {
		if filepath.Base(e.Path) == "deep.txt" {
			t.Fatalf("MaxDepth should have excluded deep.txt: %+v", res.Entries)
		}
	}
}

func TestClassify(t *testing.T) {
	tests := []struct {
		path string
		want model.FileType
	}{
		{"a.jpg", model.FileTypeImage},
		{"a.mp4", model.FileTypeVideo},
		{"a.mp3", model.FileTypeAudio},
		{"a.pdf", model.FileTypeDocument},
		{"a.zip", model.FileTypeArchive},
		{"a.go", model.FileTypeCode},
		{"a.exe", model.FileTypeExecutable},
		{"a.sqlite", model.FileTypeDatabase},
		{"a.xyz", model.FileTypeOther},
	}
	for _, tt := range tests {
		if got := classify(tt.path); got != tt.want {
			t.Errorf("classify(%q) = %q, want %q", tt.path, got, tt.want)
		}
	}
}

func mustWrite(t *testing.T, path, content string) {
	t.Helper()
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write %s: %v", path, err)
	}
}
