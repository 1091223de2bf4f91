package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/forensics/diskrecover/internal/badsectorreport"
	"github.com/forensics/diskrecover/internal/checkpoint"
	"github.com/forensics/diskrecover/internal/forensiccfg"
	"github.com/forensics/diskrecover/internal/forensiclog"
	"github.com/forensics/diskrecover/internal/fsindex"
	"github.com/forensics/diskrecover/internal/fsscan"
)

// scanner lets tests inject a fake filesystem scan without touching disk.
var scanner = fsscan.Run

var (
	indexSkipHidden         bool
	indexMaxDepth           int
	indexExtensions         []string
	indexWorkers            int
	indexCheckpointInterval int
	indexBlockSize          int
	indexSameFS             bool
	indexBadSectorReport    string
	indexOut                string
	indexCheckpointDir      string
	indexResume             bool
	indexAsVolume           bool
	indexMaxPartitions      int
	indexFormat             string
	indexPretty             bool
)

func createIndexCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "index [flags] SOURCE_DIR",
		Short: "scans a directory and builds a persistent file index",
		Long: `Index walks SOURCE_DIR, probes every file's readability, and writes
a compressed index of everything found plus a log of unreadable regions.
A resumed run (--resume) loads the existing checkpoint for this source and
keeps recording into it; every path is still scanned.`,
		Args:              cobra.ExactArgs(1),
		PreRunE:           func(cmd *cobra.Command, args []string) error { return validateFormat(indexFormat) },
		RunE:              executeIndex,
		ValidArgsFunction: pathCompletion,
	}

	cmd.Flags().BoolVar(&indexSkipHidden, "skip-hidden", true, "skip dotfiles and dotdirs")
	cmd.Flags().IntVar(&indexMaxDepth, "max-depth", -1, "maximum directory depth to descend (-1 = unlimited)")
	cmd.Flags().StringSliceVar(&indexExtensions, "ext", nil, "restrict to these extensions (comma-separated, no leading dot)")
	cmd.Flags().IntVar(&indexWorkers, "workers", 8, "parallel readability-probe workers")
	cmd.Flags().IntVar(&indexCheckpointInterval, "checkpoint-interval", 500, "items processed between checkpoint autosaves (0 disables)")
	cmd.Flags().IntVar(&indexBlockSize, "block-size", 4096, "block size used when reporting bad sectors")
	cmd.Flags().BoolVar(&indexSameFS, "same-filesystem", false, "reserved: restrict the walk to SOURCE_DIR's filesystem")
	cmd.Flags().StringVar(&indexBadSectorReport, "bad-sector-report", "", "write unreadable regions to this path (.json or .yaml)")
	cmd.Flags().StringVar(&indexOut, "out", "", "save the built index to this path")
	cmd.Flags().StringVar(&indexCheckpointDir, "checkpoint-dir", ".diskrecover", "directory for checkpoint files")
	cmd.Flags().BoolVar(&indexResume, "resume", false, "resume from an existing checkpoint for this source")
	cmd.Flags().BoolVar(&indexAsVolume, "volume", false, "treat SOURCE_DIR as a partitioned disk image instead of a live directory")
	cmd.Flags().IntVar(&indexMaxPartitions, "max-partitions", 8, "partition slots to probe when --volume is set")
	cmd.Flags().StringVar(&indexFormat, "format", "text", "output format: text, json, yaml")
	cmd.Flags().BoolVar(&indexPretty, "pretty", false, "pretty-print JSON output")

	return cmd
}

func executeIndex(cmd *cobra.Command, args []string) error {
	log := forensiclog.Logger()
	source := args[0]

	iargs := forensiccfg.IndexArgs{
		Source:             source,
		SkipHidden:         indexSkipHidden,
		Extensions:         indexExtensions,
		Workers:            indexWorkers,
		CheckpointInterval: indexCheckpointInterval,
		BadSectorReport:    indexBadSectorReport,
		BlockSize:          indexBlockSize,
		SameFileSystem:     indexSameFS,
		AsVolume:           indexAsVolume,
		MaxPartitions:      indexMaxPartitions,
	}
	if indexMaxDepth >= 0 {
		iargs.MaxDepth = &indexMaxDepth
	}
	if err := forensiccfg.Validate("IndexArgs", iargs); err != nil {
		return err
	}

	var cp *checkpoint.Checkpoint
	if indexResume {
		existing, found, err := checkpoint.Resume(indexCheckpointDir, source, checkpoint.Indexing)
		if err != nil {
			return fmt.Errorf("index: resume checkpoint: %w", err)
		}
		if found {
			cp = existing
			log.Infof("index: resuming from checkpoint, %d paths already processed", len(cp.ProcessedPaths))
		}
	}
	if cp == nil {
		cp = checkpoint.New(source, checkpoint.Indexing, indexCheckpointInterval)
	}

	log.Infof("index: scanning %s", source)
	result, err := scanner(context.Background(), iargs)
	if err != nil {
		return fmt.Errorf("index: scan failed: %w", err)
	}

	idx := fsindex.New()
	for _, e := range result.Entries {
		idx.AddEntry(e)
		if err := cp.MarkProcessed(indexCheckpointDir, e.Path); err != nil {
			log.Warnf("index: checkpoint autosave: %v", err)
		}
	}
	idx.SetBadSectors(result.BadSectors)

	if indexOut != "" {
		if err := idx.Save(indexOut); err != nil {
			return fmt.Errorf("index: save: %w", err)
		}
	}
	if indexBadSectorReport != "" {
		if err := badsectorreport.Write(result.BadSectors, indexBadSectorReport); err != nil {
			return fmt.Errorf("index: bad-sector report: %w", err)
		}
	}
	if err := cp.Save(indexCheckpointDir); err != nil {
		log.Warnf("index: final checkpoint save: %v", err)
	}

	summary := struct {
		ScannedDirs int    `json:"scannedDirs"`
		Files       int    `json:"files"`
		TotalBytes  int64  `json:"totalBytes"`
		BadSectors  int    `json:"badSectors"`
		Errors      int    `json:"errors"`
		IndexPath   string `json:"indexPath,omitempty"`
	}{
		ScannedDirs: result.ScannedDirs,
		Files:       len(result.Entries),
		TotalBytes:  idx.TotalBytes(),
		BadSectors:  len(result.BadSectors),
		Errors:      result.ErrorCount,
		IndexPath:   indexOut,
	}

	if indexFormat == "text" {
		out := cmd.OutOrStdout()
		fmt.Fprintf(out, "scanned %d directories, indexed %d files (%d bytes)\n", summary.ScannedDirs, summary.Files, summary.TotalBytes)
		fmt.Fprintf(out, "bad sectors: %d, errors: %d\n", summary.BadSectors, summary.Errors)
		if summary.IndexPath != "" {
			fmt.Fprintf(out, "index written to %s\n", summary.IndexPath)
		}
		return nil
	}
	return writeStructured(cmd, summary, indexFormat, indexPretty)
}
