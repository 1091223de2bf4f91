// Package carve implements the signature-driven file carver (C3): a
// parallel mmap scan over a raw byte stream, per-format boundary
// resolution, and sequential extraction with BLAKE3 hashing.
package carve

import (
	"bytes"
	"context"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"sort"

	mmap "github.com/edsrzf/mmap-go"
	"golang.org/x/sync/errgroup"
	"lukechampine.com/blake3"

	"github.com/forensics/diskrecover/internal/forensiccfg"
	"github.com/forensics/diskrecover/internal/forensiclog"
	"github.com/forensics/diskrecover/internal/model"
	"github.com/forensics/diskrecover/internal/scanplan"
	"github.com/forensics/diskrecover/internal/signature"
)

// BoundaryMethod records which of the three resolution strategies
// produced a carved file's size, for audit.
type BoundaryMethod string

const (
	InternalSize BoundaryMethod = "internal_size"
	FooterScan   BoundaryMethod = "footer_scan"
	NextHeader   BoundaryMethod = "next_header"
)

// CarvedFile is one successfully-bounded and (unless dry-run) written
// carved file.
type CarvedFile struct {
	Index          int
	Offset         int64
	Size           int64
	Extension      string
	FileType       model.FileType
	BoundaryMethod BoundaryMethod
	Hash           string
	OutputPath     string
}

// Result summarizes a carve run.
type Result struct {
	Carved      []CarvedFile
	FilesFailed int
	Errors      []string
}

type hit struct {
	offset int64
	sigIdx int
}

// Sniffer optionally refines a carved file's extension by inspecting its
// leading bytes. Used only when CarveOptions.Verify is set.
type Sniffer func(data []byte) (extension string, ok bool)

// DefaultSniffer wraps the standard library's MIME sniffer; it is the
// fallback used when no pack-provided content-sniffing library applies
// (see DESIGN.md).
func DefaultSniffer(data []byte) (string, bool) {
	ct := http.DetectContentType(data)
	switch ct {
	case "image/jpeg":
		return "jpg", true
	case "image/png":
		return "png", true
	case "image/gif":
		return "gif", true
	case "image/webp":
		return "webp", true
	case "application/pdf":
		return "pdf", true
	case "application/zip":
		return "zip", true
	default:
		return "", false
	}
}

// Run scans opts.Source for every registered signature and extracts each
// resolved hit into opts.OutputDir (unless DryRun). The image is opened
// read-only and mmap'd once; it is never mutated.
func Run(ctx context.Context, opts forensiccfg.CarveOptions, sniff Sniffer) (*Result, error) {
	log := forensiclog.Logger()

	f, err := os.Open(opts.Source)
	if err != nil {
		return nil, fmt.Errorf("carve: open source: %w", err)
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return nil, fmt.Errorf("carve: stat source: %w", err)
	}
	imageSize := info.Size()
	if imageSize == 0 {
		return nil, fmt.Errorf("carve: source image is empty")
	}

	data, err := mmap.Map(f, mmap.RDONLY, 0)
	if err != nil {
		return nil, fmt.Errorf("carve: mmap source: %w", err)
	}
	defer data.Unmap()

	workers := opts.Workers
	if workers < 1 {
		workers = 1
	}
	sigs := signature.Registry
	if len(opts.FileTypes) > 0 {
		sigs = filterSignatures(sigs, opts.FileTypes)
	}
	plan := scanplan.Build(sigs, imageSize, workers)

	step := 1
	if opts.SectorAligned {
		step = 512
	}

	hitsByChunk := make([][]hit, len(plan.Chunks))
	eg, egCtx := errgroup.WithContext(ctx)
	for i, chunk := range plan.Chunks {
		i, chunk := i, chunk
		eg.Go(func() error {
			hitsByChunk[i] = scanChunk(egCtx, []byte(data), chunk, plan, step)
			return nil
		})
	}
	if err := eg.Wait(); err != nil {
		return nil, err
	}

	var all []hit
	for _, h := range hitsByChunk {
		all = append(all, h...)
	}
	sort.Slice(all, func(i, j int) bool { return all[i].offset < all[j].offset })
	all = dedupByOffset(all)

	if err := os.MkdirAll(opts.OutputDir, 0o755); err != nil && !opts.DryRun {
		return nil, fmt.Errorf("carve: create output dir: %w", err)
	}

	res := &Result{}
	for i, h := range all {
		var nextOffset int64 = -1
		if i+1 < len(all) {
			nextOffset = all[i+1].offset
		}
		cf, skipped := resolveAndExtract(log, sigs, []byte(data), h, nextOffset, imageSize, opts, i, sniff)
		if skipped {
			continue
		}
		if cf == nil {
			res.FilesFailed++
			continue
		}
		res.Carved = append(res.Carved, *cf)
	}
	return res, nil
}

// filterSignatures keeps only the registry entries whose Name appears in
// names, preserving registry order.
func filterSignatures(sigs []*signature.Signature, names []string) []*signature.Signature {
	want := make(map[string]bool, len(names))
	for _, n := range names {
		want[n] = true
	}
	out := make([]*signature.Signature, 0, len(sigs))
	for _, s := range sigs {
		if want[s.Name] {
			out = append(out, s)
		}
	}
	return out
}

func scanChunk(ctx context.Context, data []byte, chunk scanplan.Chunk, plan *scanplan.Plan, step int) []hit {
	var hits []hit
	for p := chunk.Start; p < chunk.End; p += int64(step) {
		select {
		case <-ctx.Done():
			return hits
		default:
		}
		if p >= int64(len(data)) {
			break
		}
		found := false
		b := data[p]
		for _, sigIdx := range plan.FirstByteIndex[b] {
			s := plan.Signatures[sigIdx]
			if matchAt(data, p, s.Header) {
				hits = append(hits, hit{offset: p, sigIdx: sigIdx})
				found = true
				break
			}
		}
		if found {
			continue
		}
		for _, osig := range plan.OffsetSigs {
			s := plan.Signatures[osig.Index]
			if matchAt(data, p+osig.Offset, s.Header) {
				hits = append(hits, hit{offset: p, sigIdx: osig.Index})
				break
			}
		}
	}
	return hits
}

func matchAt(data []byte, pos int64, pattern []byte) bool {
	if pos < 0 || pos+int64(len(pattern)) > int64(len(data)) {
		return false
	}
	return bytes.Equal(data[pos:pos+int64(len(pattern))], pattern)
}

func dedupByOffset(hits []hit) []hit {
	out := hits[:0]
	var lastOffset int64 = -1
	for _, h := range hits {
		if h.offset == lastOffset {
			continue
		}
		out = append(out, h)
		lastOffset = h.offset
	}
	return out
}

// resolveAndExtract resolves a hit's boundary (internal size field,
// footer scan, or next header; the last hit of a format with neither a
// size parser nor a footer runs to the end of the image, capped at
// MaxSize) and extracts it. Returns (nil, false)
// on a write/range failure that should count against FilesFailed, or
// (nil, true) when the hit carried no valid boundary and should simply
// be dropped.
func resolveAndExtract(log interface{ Warnf(string, ...interface{}) }, sigs []*signature.Signature, data []byte, h hit, nextOffset, imageSize int64, opts forensiccfg.CarveOptions, idx int, sniff Sniffer) (*CarvedFile, bool) {
	sig := sigs[h.sigIdx]
	end := nextOffset
	if end < 0 {
		end = imageSize
	}

	var size int64
	var method BoundaryMethod
	var resolved bool
	minSize := opts.MinSize

	if sig.SizeParser != nil {
		cap := h.offset + sig.MaxSize
		if cap > imageSize {
			cap = imageSize
		}
		if n, ok := sig.SizeParser(data[h.offset:cap]); ok && n >= minSize && h.offset+n <= imageSize {
			size, method, resolved = n, InternalSize, true
		}
	}
	if !resolved && sig.Footer != nil {
		scanLimit := h.offset + sig.MaxSize
		if scanLimit > imageSize {
			scanLimit = imageSize
		}
		if nextOffset >= 0 && nextOffset < scanLimit {
			scanLimit = nextOffset
		}
		searchStart := h.offset + minSize
		if searchStart < scanLimit {
			rel := bytes.Index(data[searchStart:scanLimit], sig.Footer)
			if rel >= 0 {
				size = (searchStart + int64(rel) + int64(len(sig.Footer))) - h.offset
				method, resolved = FooterScan, true
			}
		}
	}
	if !resolved {
		// The last hit of a format with neither a size parser nor a footer
		// is bounded by the end of the image instead of a next header.
		bound := nextOffset
		if bound < 0 && sig.SizeParser == nil && sig.Footer == nil {
			bound = end
		}
		if bound >= 0 && bound-h.offset >= minSize {
			size = bound - h.offset
			if size > sig.MaxSize {
				size = sig.MaxSize
			}
			method, resolved = NextHeader, true
		}
	}
	if !resolved || size < minSize {
		return nil, true
	}
	if h.offset < 0 || h.offset+size > imageSize {
		return nil, false
	}

	extension := sig.Extension
	sniffLen := int64(64)
	if sniffLen > size {
		sniffLen = size
	}
	head := data[h.offset : h.offset+sniffLen]
	switch sig.Name {
	case "riff":
		extension = signature.RIFFSubtype(head)
	case "mp4":
		extension = signature.FtypBrand(head)
	}
	if opts.Verify && sniff != nil {
		if ext, ok := sniff(head); ok {
			extension = ext
		}
	}

	region := data[h.offset : h.offset+size]
	hasher := blake3.New(32, nil)
	hasher.Write(region)
	hash := fmt.Sprintf("%x", hasher.Sum(nil))

	cf := &CarvedFile{
		Index: idx, Offset: h.offset, Size: size,
		Extension: extension, FileType: sig.FileType,
		BoundaryMethod: method, Hash: hash,
	}

	if opts.DryRun {
		return cf, false
	}

	name := fmt.Sprintf("%08d_%012x.%s", idx, h.offset, extension)
	outPath := filepath.Join(opts.OutputDir, name)
	if err := os.WriteFile(outPath, region, 0o644); err != nil {
		log.Warnf("carve: write %s: %v", outPath, err)
		return nil, false
	}
	cf.OutputPath = outPath
	return cf, false
}
