// Package recovery implements the recovery copier (C5): it streams a
// file through a pre-computed SectorMap and writes a destination where
// bad blocks become zero-fill, hashing the result with BLAKE3.
package recovery

import (
	"fmt"
	"os"

	"lukechampine.com/blake3"

	"github.com/forensics/diskrecover/internal/model"
)

// Result reports the outcome of a recovery copy. BytesCopied+BytesZeroed
// always equals TotalBytes.
type Result struct {
	BytesCopied int64
	BytesZeroed int64
	TotalBytes  int64
	Blake3Hash  string
}

// Copy streams src to dest using sm to decide, per block, whether to copy
// real bytes or write zeros. A block that was previously marked good but
// fails to read now also falls through to zero-fill.
func Copy(src, dest string, sm *model.SectorMap) (*Result, error) {
	badOffsets := make(map[int64]bool, len(sm.BadBlocks))
	for _, b := range sm.BadBlocks {
		badOffsets[b.Offset] = true
	}

	in, err := os.Open(src)
	if err != nil {
		return nil, fmt.Errorf("recovery: open source: %w", err)
	}
	defer in.Close()

	out, err := os.Create(dest)
	if err != nil {
		return nil, fmt.Errorf("recovery: create destination: %w", err)
	}
	defer out.Close()

	hasher := blake3.New(32, nil)
	res := &Result{TotalBytes: sm.FileSize}

	buf := make([]byte, sm.BlockSize)
	for offset := int64(0); offset < sm.FileSize; offset += int64(sm.BlockSize) {
		length := int64(sm.BlockSize)
		if remaining := sm.FileSize - offset; remaining < length {
			length = remaining
		}

		if badOffsets[offset] {
			if err := writeZeros(out, hasher, length); err != nil {
				return nil, err
			}
			res.BytesZeroed += length
			continue
		}

		n, rerr := in.ReadAt(buf[:length], offset)
		if rerr != nil && int64(n) < length {
			if err := writeZeros(out, hasher, length); err != nil {
				return nil, err
			}
			res.BytesZeroed += length
			continue
		}

		chunk := buf[:length]
		if _, err := out.Write(chunk); err != nil {
			return nil, fmt.Errorf("recovery: write destination: %w", err)
		}
		hasher.Write(chunk)
		res.BytesCopied += length
	}

	res.Blake3Hash = fmt.Sprintf("%x", hasher.Sum(nil))
	return res, nil
}

func writeZeros(out *os.File, hasher interface{ Write([]byte) (int, error) }, length int64) error {
	zero := make([]byte, length)
	if _, err := out.Write(zero); err != nil {
		return fmt.Errorf("recovery: write zero-fill: %w", err)
	}
	hasher.Write(zero)
	return nil
}
