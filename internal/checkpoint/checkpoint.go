// Package checkpoint implements the §6 checkpoint file: a JSON,
// human-debuggable record keyed by an 8-byte BLAKE3 prefix of the
// source path plus the operation phase, auto-saved on an item interval.
package checkpoint

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"lukechampine.com/blake3"
)

// Phase is one of the three operations that can be checkpointed.
type Phase string

const (
	Indexing  Phase = "Indexing"
	Exporting Phase = "Exporting"
	Dedup     Phase = "Dedup"
)

// CurrentVersion is the checkpoint file schema version.
const CurrentVersion = 1

// Checkpoint tracks progress through a long-running operation so it can
// resume after an interruption.
type Checkpoint struct {
	SourceHash        string            `json:"sourceHash"`
	SourcePath        string            `json:"sourcePath"`
	Phase             Phase             `json:"phase"`
	ProcessedPaths    map[string]bool   `json:"processedPaths"`
	HashesComputed    map[string]string `json:"hashesComputed"`
	BadSectorsFound   int               `json:"badSectorsFound"`
	AutoSaveInterval  int               `json:"autoSaveInterval"`
	ItemsSinceSave    int               `json:"itemsSinceSave"`
	CreatedAt         time.Time         `json:"createdAt"`
	UpdatedAt         time.Time         `json:"updatedAt"`
	Version           int               `json:"version"`
}

// SourceHash is the 8-byte BLAKE3 prefix of sourcePath, hex-encoded.
func SourceHash(sourcePath string) string {
	h := blake3.New(32, nil)
	h.Write([]byte(sourcePath))
	return fmt.Sprintf("%x", h.Sum(nil)[:8])
}

// New starts a fresh checkpoint for one (source, phase) pair.
func New(sourcePath string, phase Phase, autoSaveInterval int) *Checkpoint {
	now := time.Now().UTC()
	return &Checkpoint{
		SourceHash: SourceHash(sourcePath), SourcePath: sourcePath, Phase: phase,
		ProcessedPaths: make(map[string]bool), HashesComputed: make(map[string]string),
		AutoSaveInterval: autoSaveInterval, CreatedAt: now, UpdatedAt: now, Version: CurrentVersion,
	}
}

// pathFor derives the on-disk checkpoint path from its source hash and
// phase, so Resume and Save agree on where to look.
func pathFor(dir string, sourceHash string, phase Phase) string {
	return filepath.Join(dir, fmt.Sprintf("%s_%s.checkpoint.json", sourceHash, phase))
}

// MarkProcessed records one completed path and, once ItemsSinceSave
// reaches AutoSaveInterval, autosaves and resets the counter.
func (c *Checkpoint) MarkProcessed(dir, path string) error {
	c.ProcessedPaths[path] = true
	c.ItemsSinceSave++
	c.UpdatedAt = time.Now().UTC()
	if c.AutoSaveInterval > 0 && c.ItemsSinceSave >= c.AutoSaveInterval {
		if err := c.Save(dir); err != nil {
			return err
		}
		c.ItemsSinceSave = 0
	}
	return nil
}

// IsProcessed reports whether path was already completed, letting a
// resumed run skip it.
func (c *Checkpoint) IsProcessed(path string) bool {
	return c.ProcessedPaths[path]
}

// Save writes the checkpoint as JSON.
func (c *Checkpoint) Save(dir string) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("checkpoint: create dir: %w", err)
	}
	b, err := json.MarshalIndent(c, "", "  ")
	if err != nil {
		return fmt.Errorf("checkpoint: marshal: %w", err)
	}
	path := pathFor(dir, c.SourceHash, c.Phase)
	return os.WriteFile(path, b, 0o644)
}

// Resume loads an existing checkpoint for (sourcePath, phase) from dir,
// or returns (nil, false) if none exists.
func Resume(dir, sourcePath string, phase Phase) (*Checkpoint, bool, error) {
	hash := SourceHash(sourcePath)
	path := pathFor(dir, hash, phase)
	b, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, false, nil
		}
		return nil, false, err
	}
	var c Checkpoint
	if err := json.Unmarshal(b, &c); err != nil {
		return nil, false, fmt.Errorf("checkpoint: unmarshal: %w", err)
	}
	if c.ProcessedPaths == nil {
		c.ProcessedPaths = make(map[string]bool)
	}
	if c.HashesComputed == nil {
		c.HashesComputed = make(map[string]string)
	}
	return &c, true, nil
}
