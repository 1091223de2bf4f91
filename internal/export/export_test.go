package export

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/forensics/diskrecover/internal/forensiccfg"
	"github.com/forensics/diskrecover/internal/model"
)

func writeSrc(t *testing.T, dir, name string, content []byte) model.FileEntry {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, content, 0o644); err != nil {
		t.Fatalf("write %s: %v", name, err)
	}
	return model.FileEntry{Path: path, Size: int64(len(content))}
}

func TestRun_CopiesAndHashes(t *testing.T) {
	srcDir := t.TempDir()
	destDir := t.TempDir()
	e := writeSrc(t, srcDir, "a.txt", []byte("hello forensic world"))

	res, err := Run(context.Background(), []model.FileEntry{e}, forensiccfg.ExportOptions{Dest: destDir})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if res.Failed != 0 || len(res.Successful) != 1 {
		t.Fatalf("res = %+v, want 1 success / 0 failed", res)
	}
	got, err := os.ReadFile(res.Successful[0].DestPath)
	if err != nil {
		t.Fatalf("read dest: %v", err)
	}
	if string(got) != "hello forensic world" {
		t.Fatalf("dest content = %q, want original content", got)
	}
	if res.Successful[0].Blake3Hash == "" {
		t.Fatalf("expected non-empty hash")
	}
}

func TestRun_PreserveStructure(t *testing.T) {
	srcDir := t.TempDir()
	destDir := t.TempDir()
	sub := filepath.Join(srcDir, "nested")
	if err := os.MkdirAll(sub, 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	path := filepath.Join(sub, "b.txt")
	if err := os.WriteFile(path, []byte("x"), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	e := model.FileEntry{Path: path, Size: 1}

	res, err := Run(context.Background(), []model.FileEntry{e}, forensiccfg.ExportOptions{Dest: destDir, PreserveStructure: true})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if len(res.Successful) != 1 {
		t.Fatalf("res = %+v, want 1 success", res)
	}
	want := filepath.Join(destDir, path)
	if res.Successful[0].DestPath != want {
		t.Fatalf("DestPath = %q, want %q", res.Successful[0].DestPath, want)
	}
}

func TestRun_VerifyHashSucceedsWithoutTampering(t *testing.T) {
	srcDir := t.TempDir()
	destDir := t.TempDir()
	e := writeSrc(t, srcDir, "c.txt", []byte("verify me"))

	res, err := Run(context.Background(), []model.FileEntry{e}, forensiccfg.ExportOptions{Dest: destDir, VerifyHash: true})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if res.Failed != 0 || !res.Successful[0].Verified {
		t.Fatalf("res = %+v, want verified success", res)
	}
}

func TestRun_DryRunCopiesNothing(t *testing.T) {
	srcDir := t.TempDir()
	destDir := t.TempDir()
	e := writeSrc(t, srcDir, "d.txt", []byte("dry"))

	res, err := Run(context.Background(), []model.FileEntry{e}, forensiccfg.ExportOptions{Dest: destDir, DryRun: true, CreateManifest: true})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if len(res.Successful) != 1 || res.Successful[0].DestPath != "" || res.Successful[0].Size != e.Size {
		t.Fatalf("res.Successful = %+v, want one entry with source size and no dest path", res.Successful)
	}
	if res.Bytes != e.Size {
		t.Fatalf("res.Bytes = %d, want %d", res.Bytes, e.Size)
	}
	entries, err := os.ReadDir(destDir)
	if err != nil {
		t.Fatalf("readdir: %v", err)
	}
	if len(entries) != 0 {
		t.Fatalf("dest dir has %d entries, want 0 after dry run", len(entries))
	}
}

func TestRun_ManifestWrittenOnSuccess(t *testing.T) {
	srcDir := t.TempDir()
	destDir := t.TempDir()
	e := writeSrc(t, srcDir, "e.txt", []byte("manifest me"))

	res, err := Run(context.Background(), []model.FileEntry{e}, forensiccfg.ExportOptions{Dest: destDir, CreateManifest: true})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if res.ManifestPath == "" {
		t.Fatalf("expected ManifestPath to be set")
	}
	b, err := os.ReadFile(res.ManifestPath)
	if err != nil {
		t.Fatalf("read manifest: %v", err)
	}
	var m Manifest
	if err := json.Unmarshal(b, &m); err != nil {
		t.Fatalf("manifest is not valid JSON: %v", err)
	}
	if len(m.Entries) != 1 {
		t.Fatalf("manifest entries = %d, want 1", len(m.Entries))
	}
}

func TestRun_ContinueOnErrorSkipsMissingSource(t *testing.T) {
	destDir := t.TempDir()
	missing := model.FileEntry{Path: "/does/not/exist", Size: 10}

	res, err := Run(context.Background(), []model.FileEntry{missing}, forensiccfg.ExportOptions{Dest: destDir, ContinueOnError: true})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if res.Failed != 1 {
		t.Fatalf("res.Failed = %d, want 1", res.Failed)
	}
}

func TestDestinationFor_BasenameOnly(t *testing.T) {
	e := model.FileEntry{Path: "/a/b/c.txt"}
	got := destinationFor(e, forensiccfg.ExportOptions{Dest: "/out"})
	want := filepath.Join("/out", "c.txt")
	if got != want {
		t.Fatalf("destinationFor = %q, want %q", got, want)
	}
}
