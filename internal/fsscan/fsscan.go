// Package fsscan implements the filesystem scanner (C6): a serial
// directory walk followed by a parallel metadata/readability pass that
// produces FileEntry values. A failed readability probe is recorded as a
// single BadSector spanning the whole file; the sector reader (C4) is not
// invoked.
package fsscan

import (
	"context"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/forensics/diskrecover/internal/forensiccfg"
	"github.com/forensics/diskrecover/internal/model"
	"github.com/forensics/diskrecover/internal/volume"
)

// Result is the outcome of a scan: the entries channel is already fully
// drained into Entries by Run, plus error/bad-sector counters.
type Result struct {
	Entries     []model.FileEntry
	BadSectors  []model.BadSector
	ErrorCount  int
	ScannedDirs int
}

// Run walks args.Source, filters by hidden/extension policy, then probes
// each surviving path on a bounded worker pool. When args.AsVolume is
// set, Source is opened as a partitioned disk image instead of a live
// directory and walked partition by partition.
func Run(ctx context.Context, args forensiccfg.IndexArgs) (*Result, error) {
	if args.AsVolume {
		return runVolume(args)
	}

	paths, dirCount, err := walk(args)
	if err != nil {
		return nil, err
	}

	workers := args.Workers
	if workers < 1 {
		workers = 1
	}
	blockSize := args.BlockSize
	if blockSize < 512 {
		blockSize = 4096
	}

	entriesCh := make(chan model.FileEntry, workers*4)
	badSectorsCh := make(chan model.BadSector, workers*4)

	eg, egCtx := errgroup.WithContext(ctx)
	sem := make(chan struct{}, workers)
	errCount := int64(0)

	go func() {
		for _, p := range paths {
			p := p
			sem <- struct{}{}
			eg.Go(func() error {
				defer func() { <-sem }()
				processPath(egCtx, p, blockSize, entriesCh, badSectorsCh, &errCount)
				return nil
			})
		}
		_ = eg.Wait()
		close(entriesCh)
		close(badSectorsCh)
	}()

	res := &Result{ScannedDirs: dirCount}
	done := false
	for !done {
		select {
		case e, ok := <-entriesCh:
			if !ok {
				entriesCh = nil
				break
			}
			res.Entries = append(res.Entries, e)
		case bs, ok := <-badSectorsCh:
			if !ok {
				badSectorsCh = nil
				break
			}
			res.BadSectors = append(res.BadSectors, bs)
		}
		if entriesCh == nil && badSectorsCh == nil {
			done = true
		}
	}
	res.ErrorCount = int(errCount)
	return res, nil
}

// runVolume opens args.Source through the volume package and walks every
// recognized partition's filesystem, applying the same extension
// whitelist the directory walk applies.
func runVolume(args forensiccfg.IndexArgs) (*Result, error) {
	maxPartitions := args.MaxPartitions
	if maxPartitions < 1 {
		maxPartitions = 8
	}
	blockSize := args.BlockSize
	if blockSize < 512 {
		blockSize = 4096
	}

	vol, err := volume.Open(args.Source, maxPartitions)
	if err != nil {
		return nil, err
	}
	defer vol.Close()

	entries, badSectors, err := vol.Walk(blockSize)
	if err != nil {
		return nil, err
	}

	var extSet map[string]bool
	if len(args.Extensions) > 0 {
		extSet = make(map[string]bool, len(args.Extensions))
		for _, e := range args.Extensions {
			extSet[strings.ToLower(strings.TrimPrefix(e, "."))] = true
		}
	}

	res := &Result{ScannedDirs: len(vol.Partitions)}
	for _, e := range entries {
		if extSet != nil && !extSet[e.Extension] {
			continue
		}
		e.FileType = classify(e.Path)
		res.Entries = append(res.Entries, e)
	}
	res.BadSectors = badSectors
	return res, nil
}

// walk performs the serial traversal (Phase A): depth limiting, hidden
// filtering, extension whitelist.
func walk(args forensiccfg.IndexArgs) ([]string, int, error) {
	var paths []string
	dirCount := 0
	rootDepth := strings.Count(filepath.Clean(args.Source), string(os.PathSeparator))

	var extSet map[string]bool
	if len(args.Extensions) > 0 {
		extSet = make(map[string]bool, len(args.Extensions))
		for _, e := range args.Extensions {
			extSet[strings.ToLower(strings.TrimPrefix(e, "."))] = true
		}
	}

	err := filepath.Walk(args.Source, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return nil //nolint:nilerr // per-path walk errors are non-fatal
		}
		base := filepath.Base(path)
		if args.SkipHidden && strings.HasPrefix(base, ".") && path != args.Source {
			if info.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}
		if info.IsDir() {
			dirCount++
			if args.MaxDepth != nil {
				depth := strings.Count(filepath.Clean(path), string(os.PathSeparator)) - rootDepth
				if depth >= *args.MaxDepth {
					return filepath.SkipDir
				}
			}
			return nil
		}
		if !info.Mode().IsRegular() {
			return nil
		}
		if extSet != nil {
			ext := strings.ToLower(strings.TrimPrefix(filepath.Ext(path), "."))
			if !extSet[ext] {
				return nil
			}
		}
		paths = append(paths, path)
		return nil
	})
	if err != nil {
		return nil, dirCount, err
	}
	return paths, dirCount, nil
}

// processPath implements Phase B for one path: metadata with a single
// retry on failure, then a bounded readability probe.
func processPath(ctx context.Context, path string, blockSize int, entriesCh chan<- model.FileEntry, badSectorsCh chan<- model.BadSector, errCount *int64) {
	info, err := os.Stat(path)
	if err != nil {
		badSectorsCh <- model.BadSector{
			FilePath: path, Offset: 0, Length: 0,
			Error: err.Error(), DetectedAt: time.Now().UTC(), BlockSize: blockSize,
		}
		info, err = os.Stat(path)
		if err != nil {
			*errCount++
			return
		}
	}

	entry := model.FileEntry{
		Path:      path,
		Size:      info.Size(),
		Extension: strings.ToLower(strings.TrimPrefix(filepath.Ext(path), ".")),
		FileType:  classify(path),
	}
	modTime := info.ModTime().UTC()
	entry.Modified = &modTime

	hasBad, bs := probeReadability(path, info.Size(), blockSize)
	entry.HasBadSectors = hasBad
	if bs != nil {
		badSectorsCh <- *bs
	}

	select {
	case entriesCh <- entry:
	case <-ctx.Done():
	}
}

// probeReadability attempts to read up to 4096 bytes; an EOF on a file
// shorter than that is success.
func probeReadability(path string, size int64, blockSize int) (bool, *model.BadSector) {
	f, err := os.Open(path)
	if err != nil {
		return true, &model.BadSector{
			FilePath: path, Offset: 0, Length: size,
			Error: err.Error(), DetectedAt: time.Now().UTC(), BlockSize: blockSize,
		}
	}
	defer f.Close()

	buf := make([]byte, 4096)
	_, err = io.ReadFull(f, buf)
	if err == nil || err == io.ErrUnexpectedEOF || err == io.EOF {
		return false, nil
	}
	return true, &model.BadSector{
		FilePath: path, Offset: 0, Length: size,
		Error: err.Error(), DetectedAt: time.Now().UTC(), BlockSize: blockSize,
	}
}

func classify(path string) model.FileType {
	ext := strings.ToLower(strings.TrimPrefix(filepath.Ext(path), "."))
	switch ext {
	case "jpg", "jpeg", "png", "gif", "bmp", "webp", "tiff":
		return model.FileTypeImage
	case "mp4", "mov", "avi", "mkv", "webm", "m4v", "3gp":
		return model.FileTypeVideo
	case "mp3", "wav", "flac", "m4a", "ogg", "aac":
		return model.FileTypeAudio
	case "pdf", "doc", "docx", "txt", "odt", "rtf", "md":
		return model.FileTypeDocument
	case "zip", "tar", "gz", "7z", "rar", "iso", "bz2", "xz":
		return model.FileTypeArchive
	case "go", "py", "js", "ts", "c", "cpp", "rs", "java", "rb":
		return model.FileTypeCode
	case "exe", "dll", "so", "bin", "app":
		return model.FileTypeExecutable
	case "db", "sqlite", "sqlite3", "mdb":
		return model.FileTypeDatabase
	default:
		return model.FileTypeOther
	}
}
