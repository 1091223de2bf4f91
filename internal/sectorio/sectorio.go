// Package sectorio implements the bad-sector-aware block reader (C4): a
// block-aligned read loop with bounded retry and exponential backoff,
// producing a per-file SectorMap.
package sectorio

import (
	"context"
	"errors"
	"io"
	"os"
	"strings"
	"time"

	"github.com/forensics/diskrecover/internal/model"
)

const (
	DefaultBlockSize = 4096
	MinBlockSize     = 512
	DefaultRetries   = 3
	baseBackoff      = 100 * time.Millisecond
)

// Config tunes the reader. Zero values fall back to the documented
// defaults in Read.
type Config struct {
	BlockSize  int
	MaxRetries int
}

func (c Config) resolved() Config {
	if c.BlockSize < MinBlockSize {
		c.BlockSize = DefaultBlockSize
	}
	if c.MaxRetries <= 0 {
		c.MaxRetries = DefaultRetries
	}
	return c
}

// Read walks path block by block, classifying every read failure as
// transient (retried with exponential backoff) or permanent (recorded
// and skipped). At most one SectorMap is produced per call.
func Read(ctx context.Context, path string, cfg Config) (*model.SectorMap, error) {
	cfg = cfg.resolved()

	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return nil, err
	}
	fileSize := info.Size()
	totalBlocks := (fileSize + int64(cfg.BlockSize) - 1) / int64(cfg.BlockSize)

	sm := &model.SectorMap{
		Path:        path,
		BlockSize:   cfg.BlockSize,
		FileSize:    fileSize,
		TotalBlocks: totalBlocks,
	}

	buf := make([]byte, cfg.BlockSize)
	for b := int64(0); b < totalBlocks; b++ {
		select {
		case <-ctx.Done():
			return sm, ctx.Err()
		default:
		}

		offset := b * int64(cfg.BlockSize)
		want := int64(cfg.BlockSize)
		if remaining := fileSize - offset; remaining < want {
			want = remaining
		}

		_, retries, err := readBlockWithRetry(ctx, f, buf[:want], offset, cfg.MaxRetries)
		if err == nil || (errors.Is(err, io.ErrUnexpectedEOF) || errors.Is(err, io.EOF)) {
			sm.GoodBytes += want
			continue
		}

		sm.BadBlocks = append(sm.BadBlocks, model.BlockInfo{
			Offset:     offset,
			Length:     want,
			Error:      err.Error(),
			RetryCount: retries + 1,
		})
		sm.BadBytes += want
	}

	return sm, nil
}

// readBlockWithRetry performs one block's read, retrying transient
// failures with base*4^attempt backoff up to maxRetries times. An
// end-of-file shorter than requested is treated as success for the final
// block.
func readBlockWithRetry(ctx context.Context, f *os.File, buf []byte, offset int64, maxRetries int) (int, int, error) {
	var lastErr error
	for attempt := 0; attempt <= maxRetries; attempt++ {
		n, err := f.ReadAt(buf, offset)
		if err == nil {
			return n, attempt, nil
		}
		if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
			return n, attempt, err
		}
		lastErr = err
		if !isTransient(err) {
			return n, attempt, err
		}
		if attempt == maxRetries {
			break
		}
		backoff := baseBackoff * time.Duration(pow4(attempt))
		select {
		case <-ctx.Done():
			return n, attempt, ctx.Err()
		case <-time.After(backoff):
		}
	}
	return 0, maxRetries, lastErr
}

func pow4(attempt int) int64 {
	v := int64(1)
	for i := 0; i < attempt; i++ {
		v *= 4
	}
	return v
}

// isTransient classifies interrupted/timed-out/would-block errors as
// retryable. Matching is by message substring since
// the underlying syscall errors vary by platform.
func isTransient(err error) bool {
	if err == nil {
		return false
	}
	msg := strings.ToLower(err.Error())
	for _, s := range []string{"interrupted", "timed out", "timeout", "would block", "temporarily unavailable", "try again"} {
		if strings.Contains(msg, s) {
			return true
		}
	}
	return false
}
