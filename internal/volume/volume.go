// Package volume opens a raw disk image as a byte-addressable volume via
// go-diskfs, and walks any recognized partition's filesystem the way
// fsscan walks a live directory tree. It is the index scan's entry point
// (fsscan with IndexArgs.AsVolume) for an image that carries a real
// partition table and filesystem; carving does not go through it and
// reads the bare byte stream directly.
package volume

import (
	"fmt"
	"os"
	"path"
	"strings"
	"time"

	"github.com/diskfs/go-diskfs"
	diskpkg "github.com/diskfs/go-diskfs/disk"
	"github.com/diskfs/go-diskfs/filesystem"

	"github.com/forensics/diskrecover/internal/model"
)

// PartitionFS describes one partition that go-diskfs could mount a
// filesystem driver on.
type PartitionFS struct {
	Number int
	Type   string
	Label  string
}

// Volume wraps an opened disk image and its recognized partitions.
type Volume struct {
	Path       string
	disk       *diskpkg.Disk
	Partitions []PartitionFS
}

// Open reads imagePath's partition table and probes every partition slot
// for a mountable filesystem, up to maxPartitions (go-diskfs has no
// direct "count partitions" call, so probing stops early after four
// consecutive slots without a filesystem).
func Open(imagePath string, maxPartitions int) (*Volume, error) {
	disk, err := diskfs.Open(imagePath)
	if err != nil {
		return nil, fmt.Errorf("volume: open %s: %w", imagePath, err)
	}

	v := &Volume{Path: imagePath, disk: disk}
	misses := 0
	for pn := 1; pn <= maxPartitions && misses < 4; pn++ {
		fs, err := disk.GetFilesystem(pn)
		if err != nil || fs == nil {
			misses++
			continue
		}
		misses = 0
		v.Partitions = append(v.Partitions, PartitionFS{
			Number: pn,
			Type:   string(fs.Type()),
			Label:  strings.TrimSpace(fs.Label()),
		})
	}
	return v, nil
}

// Close releases the underlying image file handle.
func (v *Volume) Close() error {
	if v.disk == nil {
		return nil
	}
	return v.disk.Close()
}

// Walk recursively lists every regular file on every recognized
// partition and probes it for readability, producing the same
// FileEntry/BadSector shape fsscan.Run produces for a live directory, so
// both sources feed the same index and downstream components.
func (v *Volume) Walk(blockSize int) ([]model.FileEntry, []model.BadSector, error) {
	var entries []model.FileEntry
	var badSectors []model.BadSector

	for _, p := range v.Partitions {
		fs, err := v.disk.GetFilesystem(p.Number)
		if err != nil {
			continue
		}
		e, bs, err := walkFS(fs, p.Number, "/", blockSize)
		if err != nil {
			return nil, nil, fmt.Errorf("volume: walk partition %d: %w", p.Number, err)
		}
		entries = append(entries, e...)
		badSectors = append(badSectors, bs...)
	}
	return entries, badSectors, nil
}

// volumePath namespaces a path within a partition so two partitions'
// identically-named files never collide in the index.
func volumePath(partition int, p string) string {
	return fmt.Sprintf("part%d:%s", partition, p)
}

func walkFS(fs filesystem.FileSystem, partition int, dir string, blockSize int) ([]model.FileEntry, []model.BadSector, error) {
	infos, err := fs.ReadDir(dir)
	if err != nil {
		return nil, nil, fmt.Errorf("readdir %s: %w", dir, err)
	}

	var entries []model.FileEntry
	var badSectors []model.BadSector
	for _, info := range infos {
		full := path.Join(dir, info.Name())
		if info.IsDir() {
			e, bs, err := walkFS(fs, partition, full, blockSize)
			if err != nil {
				continue // unreadable subdirectory: skip, don't abort the whole walk
			}
			entries = append(entries, e...)
			badSectors = append(badSectors, bs...)
			continue
		}

		vp := volumePath(partition, full)
		entry := model.FileEntry{
			Path:      vp,
			Size:      info.Size(),
			Extension: strings.ToLower(strings.TrimPrefix(path.Ext(full), ".")),
			FileType:  model.FileTypeOther,
		}
		modTime := info.ModTime().UTC()
		entry.Modified = &modTime

		if hasBad, bs := probeFile(fs, full, vp, info.Size(), blockSize); hasBad {
			entry.HasBadSectors = true
			badSectors = append(badSectors, bs)
		}
		entries = append(entries, entry)
	}
	return entries, badSectors, nil
}

// probeFile attempts to open and read the start of a file through the
// filesystem driver; a failure here is the volume-backed analogue of
// fsscan's probeReadability.
func probeFile(fs filesystem.FileSystem, path, reportPath string, size int64, blockSize int) (bool, model.BadSector) {
	f, err := fs.OpenFile(path, os.O_RDONLY)
	if err != nil {
		return true, model.BadSector{
			FilePath: reportPath, Offset: 0, Length: size,
			Error: err.Error(), DetectedAt: time.Now().UTC(), BlockSize: blockSize,
		}
	}
	defer f.Close()

	buf := make([]byte, 4096)
	if _, err := f.Read(buf); err != nil && err.Error() != "EOF" {
		return true, model.BadSector{
			FilePath: reportPath, Offset: 0, Length: size,
			Error: err.Error(), DetectedAt: time.Now().UTC(), BlockSize: blockSize,
		}
	}
	return false, model.BadSector{}
}
