package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/forensics/diskrecover/internal/dedup"
	"github.com/forensics/diskrecover/internal/forensiccfg"
	"github.com/forensics/diskrecover/internal/forensiclog"
	"github.com/forensics/diskrecover/internal/fsindex"
)

// dedupRunner lets tests inject a fake dedup pass.
var dedupRunner = dedup.Run

var (
	dedupStrategy       string
	dedupFuzzy          bool
	dedupFuzzyThreshold int
	dedupMinSize        int64
	dedupPurge          bool
	dedupDryRun         bool
	dedupFormat         string
	dedupPretty         bool
)

func createDedupCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "dedup [flags] INDEX_FILE",
		Short: "finds and optionally purges duplicate files recorded in an index",
		Long: `Dedup reads a saved index, groups files by exact content hash (and
optionally by fuzzy filename/size similarity), and picks one master per
group per --strategy. With --purge, every non-master duplicate is deleted.`,
		Args:              cobra.ExactArgs(1),
		PreRunE:           func(cmd *cobra.Command, args []string) error { return validateFormat(dedupFormat) },
		RunE:              executeDedup,
		ValidArgsFunction: pathCompletion,
	}

	cmd.Flags().StringVar(&dedupStrategy, "strategy", "cleanest", "master-selection policy: newest, largest, oldest, cleanest")
	cmd.Flags().BoolVar(&dedupFuzzy, "fuzzy", false, "also cluster by normalized filename and size proximity")
	cmd.Flags().IntVar(&dedupFuzzyThreshold, "fuzzy-threshold", 85, "minimum size-similarity percentage for a fuzzy cluster")
	cmd.Flags().Int64Var(&dedupMinSize, "min-size", 0, "ignore files smaller than this many bytes")
	cmd.Flags().BoolVar(&dedupPurge, "purge", false, "delete every non-master duplicate")
	cmd.Flags().BoolVar(&dedupDryRun, "dry-run", false, "report what --purge would delete without deleting")
	cmd.Flags().StringVar(&dedupFormat, "format", "text", "output format: text, json, yaml")
	cmd.Flags().BoolVar(&dedupPretty, "pretty", false, "pretty-print JSON output")

	return cmd
}

func executeDedup(cmd *cobra.Command, args []string) error {
	log := forensiclog.Logger()
	indexPath := args[0]

	idx, err := fsindex.Load(indexPath)
	if err != nil {
		return fmt.Errorf("dedup: load index: %w", err)
	}

	opts := forensiccfg.DedupOptions{
		Strategy:       dedupStrategy,
		Fuzzy:          dedupFuzzy,
		FuzzyThreshold: dedupFuzzyThreshold,
		MinSize:        dedupMinSize,
	}
	if err := forensiccfg.Validate("DedupOptions", opts); err != nil {
		return err
	}

	entries := idx.Entries()
	log.Infof("dedup: analyzing %d entries from %s", len(entries), indexPath)
	report, err := dedupRunner(entries, opts)
	if err != nil {
		return fmt.Errorf("dedup: %w", err)
	}

	var purgeResult *dedup.PurgeResult
	if dedupPurge {
		sizeByPath := make(map[string]int64, len(entries))
		for _, e := range entries {
			sizeByPath[e.Path] = e.Size
		}
		pr := dedup.Purge(report.Groups, sizeByPath, dedupDryRun)
		purgeResult = &pr
	}

	if dedupFormat == "text" {
		out := cmd.OutOrStdout()
		var totalWasted int64
		for _, g := range report.Groups {
			totalWasted += g.WastedBytes
			fmt.Fprintf(out, "master=%s duplicates=%d wasted=%d similarity=%d%%\n",
				g.Master, len(g.Duplicates), g.WastedBytes, g.Similarity)
		}
		fmt.Fprintf(out, "%d groups, %d bytes wasted\n", len(report.Groups), totalWasted)
		if purgeResult != nil {
			fmt.Fprintf(out, "purge: %d files, %d bytes freed, %d errors\n",
				purgeResult.FilesDeleted, purgeResult.BytesFreed, len(purgeResult.Errors))
		}
		return nil
	}

	payload := struct {
		Groups interface{}        `json:"groups"`
		Purge  *dedup.PurgeResult `json:"purge,omitempty"`
	}{Groups: report.Groups, Purge: purgeResult}
	return writeStructured(cmd, payload, dedupFormat, dedupPretty)
}
