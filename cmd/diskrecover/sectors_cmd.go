package main

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/forensics/diskrecover/internal/badsectorreport"
	"github.com/forensics/diskrecover/internal/model"
	"github.com/forensics/diskrecover/internal/recovery"
	"github.com/forensics/diskrecover/internal/sectorio"
)

var (
	sectorsBlockSize  int
	sectorsMaxRetries int
	sectorsReportPath string
	sectorsHeatmap    int
	sectorsFormat     string
	sectorsPretty     bool
)

func createSectorsCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "sectors",
		Short: "read a file block by block and report or recover around bad sectors",
	}
	cmd.PersistentFlags().IntVar(&sectorsBlockSize, "block-size", sectorio.DefaultBlockSize, "block size in bytes")
	cmd.PersistentFlags().IntVar(&sectorsMaxRetries, "max-retries", sectorio.DefaultRetries, "retry attempts for a transient read failure")
	cmd.PersistentFlags().StringVar(&sectorsFormat, "format", "text", "output format: text, json, yaml")
	cmd.PersistentFlags().BoolVar(&sectorsPretty, "pretty", false, "pretty-print JSON output")

	cmd.AddCommand(createSectorsScanCommand())
	cmd.AddCommand(createSectorsRecoverCommand())
	return cmd
}

func createSectorsScanCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:               "scan [flags] FILE",
		Short:             "block-reads FILE and reports its sector map",
		Args:              cobra.ExactArgs(1),
		PreRunE:           func(cmd *cobra.Command, args []string) error { return validateFormat(sectorsFormat) },
		RunE:              executeSectorsScan,
		ValidArgsFunction: pathCompletion,
	}
	cmd.Flags().StringVar(&sectorsReportPath, "report", "", "also write bad sectors to this path (.json or .yaml)")
	cmd.Flags().IntVar(&sectorsHeatmap, "heatmap-width", 64, "width of the text heatmap (0 disables it)")
	return cmd
}

func createSectorsRecoverCommand() *cobra.Command {
	return &cobra.Command{
		Use:               "recover [flags] SRC DEST",
		Short:             "copies SRC to DEST, zero-filling any bad blocks",
		Args:              cobra.ExactArgs(2),
		PreRunE:           func(cmd *cobra.Command, args []string) error { return validateFormat(sectorsFormat) },
		RunE:              executeSectorsRecover,
		ValidArgsFunction: pathCompletion,
	}
}

func executeSectorsScan(cmd *cobra.Command, args []string) error {
	cfg := sectorio.Config{BlockSize: sectorsBlockSize, MaxRetries: sectorsMaxRetries}
	sm, err := sectorio.Read(context.Background(), args[0], cfg)
	if err != nil {
		return fmt.Errorf("sectors scan: %w", err)
	}

	if sectorsReportPath != "" {
		if err := badsectorreport.Write(badSectorsFromMap(args[0], sm), sectorsReportPath); err != nil {
			return fmt.Errorf("sectors scan: report: %w", err)
		}
	}

	if sectorsFormat == "text" {
		out := cmd.OutOrStdout()
		fmt.Fprintf(out, "%s: %d/%d blocks bad, %d good bytes, %d bad bytes\n",
			sm.Path, len(sm.BadBlocks), sm.TotalBlocks, sm.GoodBytes, sm.BadBytes)
		if sectorsHeatmap > 0 {
			fmt.Fprintln(out, sm.Heatmap(sectorsHeatmap))
		}
		return nil
	}
	return writeStructured(cmd, sm, sectorsFormat, sectorsPretty)
}

func executeSectorsRecover(cmd *cobra.Command, args []string) error {
	cfg := sectorio.Config{BlockSize: sectorsBlockSize, MaxRetries: sectorsMaxRetries}
	src, dest := args[0], args[1]

	sm, err := sectorio.Read(context.Background(), src, cfg)
	if err != nil {
		return fmt.Errorf("sectors recover: scan: %w", err)
	}
	result, err := recovery.Copy(src, dest, sm)
	if err != nil {
		return fmt.Errorf("sectors recover: copy: %w", err)
	}

	if sectorsFormat == "text" {
		out := cmd.OutOrStdout()
		fmt.Fprintf(out, "recovered %s -> %s: %d bytes copied, %d zero-filled, hash=%s\n",
			src, dest, result.BytesCopied, result.BytesZeroed, result.Blake3Hash)
		return nil
	}
	return writeStructured(cmd, result, sectorsFormat, sectorsPretty)
}

// badSectorsFromMap projects a SectorMap's BlockInfo records into the
// BadSector shape the report writer expects.
func badSectorsFromMap(path string, sm *model.SectorMap) []model.BadSector {
	now := time.Now().UTC()
	out := make([]model.BadSector, 0, len(sm.BadBlocks))
	for _, b := range sm.BadBlocks {
		out = append(out, model.BadSector{
			FilePath: path, Offset: b.Offset, Length: b.Length,
			Error: b.Error, DetectedAt: now, RetryCount: b.RetryCount,
			BlockSize: sm.BlockSize,
		})
	}
	return out
}
