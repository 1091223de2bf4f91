package badsectorreport

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/forensics/diskrecover/internal/model"
)

func TestWrite_JSONExtension(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "report.json")
	sectors := []model.BadSector{{FilePath: "/a", Offset: 100, Length: 50, Error: "read failed"}}

	if err := Write(sectors, path); err != nil {
		t.Fatalf("Write: %v", err)
	}

	b, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read report: %v", err)
	}
	var got []model.BadSector
	if err := json.Unmarshal(b, &got); err != nil {
		t.Fatalf("report is not valid JSON: %v", err)
	}
	if len(got) != 1 || got[0].FilePath != "/a" {
		t.Fatalf("got = %+v, want the single bad sector", got)
	}
}

func TestWrite_NonJSONExtensionIsYAML(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "report.yaml")
	sectors := []model.BadSector{{FilePath: "/b", Offset: 0, Length: 10}}

	if err := Write(sectors, path); err != nil {
		t.Fatalf("Write: %v", err)
	}
	b, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read report: %v", err)
	}
	if !strings.Contains(string(b), "filepath: /b") {
		t.Fatalf("expected YAML-rendered report, got: %s", b)
	}
}

func TestWrite_CreatesParentDirectory(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "nested", "deep", "report.json")
	if err := Write(nil, path); err != nil {
		t.Fatalf("Write: %v", err)
	}
	if _, err := os.Stat(path); err != nil {
		t.Fatalf("expected report file to exist: %v", err)
	}
}
