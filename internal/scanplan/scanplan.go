// Package scanplan builds the two lookup indices and the chunk partition
// the carver (C3) uses to scan a raw byte stream in parallel.
package scanplan

import "github.com/forensics/diskrecover/internal/signature"

// OffsetSig is one non-zero-offset signature paired with its index into
// the registry passed to Build.
type OffsetSig struct {
	Index  int
	Offset int64
}

// Chunk is one worker's scan window, clamped to the image bounds and
// overlapping its neighbor by Overlap bytes so that a hit straddling a
// chunk boundary is still found. A hit inside the overlap is found by
// both workers; the carver dedups hits by offset afterward.
type Chunk struct {
	Start int64
	End   int64 // exclusive, already includes overlap, clamped to image size
}

// Plan is the immutable output of Build: ready for concurrent, lock-free
// consumption by every carve worker.
type Plan struct {
	Signatures     []*signature.Signature
	FirstByteIndex [256][]int // signature indices keyed by header[0], offset-zero only
	OffsetSigs     []OffsetSig
	Overlap        int64
	Chunks         []Chunk
}

// Build partitions [0, imageSize) into workerCount contiguous chunks and
// indexes the signature registry for O(1) first-byte lookups.
func Build(sigs []*signature.Signature, imageSize int64, workerCount int) *Plan {
	if workerCount < 1 {
		workerCount = 1
	}

	p := &Plan{Signatures: sigs}

	for i, s := range sigs {
		if s.HeaderOffset == 0 {
			b := s.Header[0]
			p.FirstByteIndex[b] = append(p.FirstByteIndex[b], i)
			continue
		}
		p.OffsetSigs = append(p.OffsetSigs, OffsetSig{Index: i, Offset: s.HeaderOffset})
	}

	maxHeaderEnd := signature.MaxHeaderEnd()
	overlap := maxHeaderEnd
	if overlap < 512 {
		overlap = 512
	}
	p.Overlap = overlap

	if imageSize <= 0 {
		return p
	}

	chunkSize := imageSize / int64(workerCount)
	if chunkSize < 1 {
		chunkSize = imageSize
		workerCount = 1
	}

	for i := 0; i < workerCount; i++ {
		start := int64(i) * chunkSize
		if start >= imageSize {
			break
		}
		end := start + chunkSize + overlap
		if i == workerCount-1 {
			end = imageSize
		}
		if end > imageSize {
			end = imageSize
		}
		p.Chunks = append(p.Chunks, Chunk{Start: start, End: end})
	}
	return p
}
