package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/forensics/diskrecover/internal/carve"
	"github.com/forensics/diskrecover/internal/forensiccfg"
	"github.com/forensics/diskrecover/internal/forensiclog"
)

// carveRunner lets tests inject a fake carve without touching disk.
var carveRunner = carve.Run

var (
	carveOutputDir     string
	carveSectorAligned bool
	carveMinSize       int64
	carveFileTypes     []string
	carveWorkers       int
	carveDryRun        bool
	carveVerify        bool
	carveFormat        string
	carvePretty        bool
)

func createCarveCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "carve [flags] IMAGE_FILE",
		Short: "carves recoverable files out of a raw disk image by signature",
		Long: `Carve scans IMAGE_FILE for known file-type signatures, resolves each
hit's boundary (internal size field, footer scan, or next header), and
writes every recovered region to --output-dir.`,
		Args:              cobra.ExactArgs(1),
		PreRunE:           func(cmd *cobra.Command, args []string) error { return validateFormat(carveFormat) },
		RunE:              executeCarve,
		ValidArgsFunction: pathCompletion,
	}

	cmd.Flags().StringVar(&carveOutputDir, "output-dir", "./carved", "directory to write carved files into")
	cmd.Flags().BoolVar(&carveSectorAligned, "sector-aligned", false, "only test signature matches at 512-byte sector boundaries")
	cmd.Flags().Int64Var(&carveMinSize, "min-size", 0, "discard carved files smaller than this many bytes")
	cmd.Flags().StringSliceVar(&carveFileTypes, "file-types", nil, "restrict carving to these signature names (comma-separated)")
	cmd.Flags().IntVar(&carveWorkers, "workers", 8, "parallel scan workers")
	cmd.Flags().BoolVar(&carveDryRun, "dry-run", false, "resolve boundaries without writing carved files")
	cmd.Flags().BoolVar(&carveVerify, "verify", false, "refine extensions with content sniffing after carving")
	cmd.Flags().StringVar(&carveFormat, "format", "text", "output format: text, json, yaml")
	cmd.Flags().BoolVar(&carvePretty, "pretty", false, "pretty-print JSON output")

	return cmd
}

func executeCarve(cmd *cobra.Command, args []string) error {
	log := forensiclog.Logger()
	source := args[0]

	opts := forensiccfg.CarveOptions{
		Source:        source,
		OutputDir:     carveOutputDir,
		SectorAligned: carveSectorAligned,
		MinSize:       carveMinSize,
		FileTypes:     carveFileTypes,
		Workers:       carveWorkers,
		DryRun:        carveDryRun,
		Verify:        carveVerify,
	}
	if err := forensiccfg.Validate("CarveOptions", opts); err != nil {
		return err
	}

	log.Infof("carve: scanning %s", source)
	var sniff carve.Sniffer
	if carveVerify {
		sniff = carve.DefaultSniffer
	}
	result, err := carveRunner(context.Background(), opts, sniff)
	if err != nil {
		return fmt.Errorf("carve: %w", err)
	}

	if carveFormat == "text" {
		out := cmd.OutOrStdout()
		fmt.Fprintf(out, "carved %d files, %d failures\n", len(result.Carved), result.FilesFailed)
		for _, cf := range result.Carved {
			fmt.Fprintf(out, "  %08d  off=%d size=%d type=%s method=%s %s\n",
				cf.Index, cf.Offset, cf.Size, cf.FileType, cf.BoundaryMethod, cf.OutputPath)
		}
		for _, e := range result.Errors {
			fmt.Fprintf(out, "  error: %s\n", e)
		}
		return nil
	}
	return writeStructured(cmd, result, carveFormat, carvePretty)
}
