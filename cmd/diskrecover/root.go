package main

import (
	"os"

	"github.com/spf13/cobra"

	"github.com/forensics/diskrecover/internal/forensiclog"
)

var rootCmd = &cobra.Command{
	Use:   "diskrecover",
	Short: "forensic recovery toolkit for carving, scanning, and exporting recovered files",
	Long: `diskrecover scans raw disk images and live filesystems for recoverable
files, builds a persistent index, deduplicates near-identical copies, and
exports a cryptographically verifiable chain-of-custody manifest.`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	rootCmd.AddCommand(createIndexCommand())
	rootCmd.AddCommand(createCarveCommand())
	rootCmd.AddCommand(createDedupCommand())
	rootCmd.AddCommand(createExportCommand())
	rootCmd.AddCommand(createProofCommand())
	rootCmd.AddCommand(createSectorsCommand())
}

// Execute runs the root command, logging and exiting non-zero on error.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		forensiclog.Logger().Errorf("%v", err)
		os.Exit(1)
	}
}

// pathCompletion restricts shell completion for positional file/dir
// arguments to the filesystem rather than cobra's default word list.
func pathCompletion(cmd *cobra.Command, args []string, toComplete string) ([]string, cobra.ShellCompDirective) {
	return nil, cobra.ShellCompDirectiveDefault
}
