// Package badsectorreport writes the bad-sector log (§6) as JSON or as a
// human-readable YAML dump, selected purely by the requested output
// path's extension.
package badsectorreport

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/forensics/diskrecover/internal/model"
)

// Write renders sectors to path as JSON if path ends in ".json", else as
// YAML for human readability.
func Write(sectors []model.BadSector, path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("badsectorreport: create parent: %w", err)
	}

	ext := strings.ToLower(filepath.Ext(path))
	var b []byte
	var err error
	if ext == ".json" {
		b, err = json.MarshalIndent(sectors, "", "  ")
	} else {
		b, err = yaml.Marshal(sectors)
	}
	if err != nil {
		return fmt.Errorf("badsectorreport: marshal: %w", err)
	}
	return os.WriteFile(path, b, 0o644)
}
