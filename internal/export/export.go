// Package export implements the exporter (C9): bounded-concurrency copy
// of FileEntry values to a destination, optional post-copy rehash
// verification, and manifest assembly.
package export

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/schollz/progressbar/v3"
	"golang.org/x/sync/errgroup"
	"lukechampine.com/blake3"

	"github.com/forensics/diskrecover/internal/forensiccfg"
	"github.com/forensics/diskrecover/internal/forensiclog"
	"github.com/forensics/diskrecover/internal/model"
)

// MaxConcurrentCopies bounds the in-flight copy count.
const MaxConcurrentCopies = 8

const copyBufferSize = 64 * 1024

// ManifestFileName is the fixed name the export manifest is written
// under inside the destination directory.
const ManifestFileName = "diamond-drill-manifest.json"

// ExportedEntry is one line item in the export manifest.
type ExportedEntry struct {
	SourcePath string    `json:"sourcePath"`
	DestPath   string    `json:"destPath"`
	Size       int64     `json:"size"`
	Blake3Hash string    `json:"blake3Hash"`
	ExportedAt time.Time `json:"exportedAt"`
	Verified   bool      `json:"verified"`
}

// Manifest is the JSON document written to dest/diamond-drill-manifest.json.
type Manifest struct {
	ID      string          `json:"id"`
	Version int             `json:"version"`
	Entries []ExportedEntry `json:"entries"`
}

// Result summarizes an export run.
type Result struct {
	Successful   []ExportedEntry
	Failed       int
	Bytes        int64
	ManifestPath string
	Errors       []string
}

// Run copies every entry to opts.Dest under a bounded semaphore,
// optionally rehashing for verification, and writes the export manifest
// when CreateManifest is set and DryRun is not.
func Run(ctx context.Context, entries []model.FileEntry, opts forensiccfg.ExportOptions) (*Result, error) {
	log := forensiclog.Logger()

	type copyOutcome struct {
		entry ExportedEntry
		err   error
	}

	outcomes := make([]copyOutcome, len(entries))
	eg, egCtx := errgroup.WithContext(ctx)
	eg.SetLimit(MaxConcurrentCopies)

	bar := progressbar.Default(int64(len(entries)), "exporting")

	for i, e := range entries {
		i, e := i, e
		eg.Go(func() error {
			defer bar.Add(1)
			ee, err := copyOne(egCtx, e, opts)
			outcomes[i] = copyOutcome{entry: ee, err: err}
			if err != nil && !opts.ContinueOnError {
				return err
			}
			return nil
		})
	}
	if err := eg.Wait(); err != nil && !opts.ContinueOnError {
		// Partial outcomes are still useful to the caller for reporting.
		log.Warnf("export: aborting after error: %v", err)
	}

	res := &Result{}
	for _, o := range outcomes {
		if o.err != nil {
			res.Failed++
			res.Errors = append(res.Errors, o.err.Error())
			continue
		}
		res.Successful = append(res.Successful, o.entry)
		res.Bytes += o.entry.Size
	}

	if opts.CreateManifest && !opts.DryRun {
		manifestPath := filepath.Join(opts.Dest, ManifestFileName)
		m := Manifest{ID: uuid.NewString(), Version: 1, Entries: res.Successful}
		b, err := json.MarshalIndent(m, "", "  ")
		if err != nil {
			return res, fmt.Errorf("export: marshal manifest: %w", err)
		}
		if err := os.WriteFile(manifestPath, b, 0o644); err != nil {
			return res, fmt.Errorf("export: write manifest: %w", err)
		}
		res.ManifestPath = manifestPath
	}

	return res, nil
}

func copyOne(ctx context.Context, e model.FileEntry, opts forensiccfg.ExportOptions) (ExportedEntry, error) {
	if opts.DryRun {
		return ExportedEntry{SourcePath: e.Path, Size: e.Size}, nil
	}

	destPath := destinationFor(e, opts)
	if err := os.MkdirAll(filepath.Dir(destPath), 0o755); err != nil {
		return ExportedEntry{}, fmt.Errorf("export: mkdir for %s: %w", destPath, err)
	}

	src, err := os.Open(e.Path)
	if err != nil {
		return ExportedEntry{}, fmt.Errorf("export: open %s: %w", e.Path, err)
	}
	defer src.Close()

	dst, err := os.Create(destPath)
	if err != nil {
		return ExportedEntry{}, fmt.Errorf("export: create %s: %w", destPath, err)
	}

	hasher := blake3.New(32, nil)
	buf := make([]byte, copyBufferSize)
	written, err := io.CopyBuffer(io.MultiWriter(dst, hasher), src, buf)
	closeErr := dst.Close()
	if err != nil {
		os.Remove(destPath)
		return ExportedEntry{}, fmt.Errorf("export: copy %s: %w", e.Path, err)
	}
	if closeErr != nil {
		os.Remove(destPath)
		return ExportedEntry{}, fmt.Errorf("export: close %s: %w", destPath, closeErr)
	}
	select {
	case <-ctx.Done():
		os.Remove(destPath)
		return ExportedEntry{}, ctx.Err()
	default:
	}

	hash := fmt.Sprintf("%x", hasher.Sum(nil))
	verified := false
	if opts.VerifyHash {
		rehash, err := rehashFile(destPath)
		if err != nil || rehash != hash {
			os.Remove(destPath)
			return ExportedEntry{}, fmt.Errorf("export: hash mismatch for %s", destPath)
		}
		verified = true
	}

	return ExportedEntry{
		SourcePath: e.Path, DestPath: destPath, Size: written,
		Blake3Hash: hash, ExportedAt: time.Now().UTC(), Verified: verified,
	}, nil
}

func destinationFor(e model.FileEntry, opts forensiccfg.ExportOptions) string {
	if opts.PreserveStructure {
		rel := strings.TrimPrefix(e.Path, string(filepath.Separator))
		return filepath.Join(opts.Dest, rel)
	}
	return filepath.Join(opts.Dest, filepath.Base(e.Path))
}

func rehashFile(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer f.Close()
	h := blake3.New(32, nil)
	if _, err := io.Copy(h, f); err != nil {
		return "", err
	}
	return fmt.Sprintf("%x", h.Sum(nil)), nil
}
