package main

import (
	"context"
	"fmt"
	"os"
	"os/user"
	"runtime"
	"time"

	"github.com/spf13/cobra"

	"github.com/ProtonMail/go-crypto/openpgp"

	"github.com/forensics/diskrecover/internal/export"
	"github.com/forensics/diskrecover/internal/forensiccfg"
	"github.com/forensics/diskrecover/internal/forensiclog"
	"github.com/forensics/diskrecover/internal/fsindex"
	"github.com/forensics/diskrecover/internal/proof"
)

// exportRunner lets tests inject a fake export without touching disk.
var exportRunner = export.Run

var (
	exportDest              string
	exportPreserveStructure bool
	exportVerifyHash        bool
	exportContinueOnError   bool
	exportNoManifest        bool
	exportDryRun            bool
	exportProofOut          string
	exportSignKeyPath       string
	exportFormat            string
	exportPretty            bool
)

func createExportCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "export [flags] INDEX_FILE",
		Short: "copies every indexed file to a destination with a verifiable manifest",
		Long: `Export streams every entry in INDEX_FILE to --dest under a bounded
worker pool, hashing each copy with BLAKE3 as it streams and, with
--proof-out, building a chain-of-custody proof manifest over the whole run.`,
		Args:              cobra.ExactArgs(1),
		PreRunE:           func(cmd *cobra.Command, args []string) error { return validateFormat(exportFormat) },
		RunE:              executeExport,
		ValidArgsFunction: pathCompletion,
	}

	cmd.Flags().StringVar(&exportDest, "dest", "", "destination directory (required)")
	cmd.Flags().BoolVar(&exportPreserveStructure, "preserve-structure", true, "mirror source paths under --dest")
	cmd.Flags().BoolVar(&exportVerifyHash, "verify-hash", true, "rehash each destination file and reject on mismatch")
	cmd.Flags().BoolVar(&exportContinueOnError, "continue-on-error", true, "keep exporting after a per-file failure")
	cmd.Flags().BoolVar(&exportNoManifest, "no-manifest", false, "skip writing the export manifest")
	cmd.Flags().BoolVar(&exportDryRun, "dry-run", false, "report what would be exported without copying")
	cmd.Flags().StringVar(&exportProofOut, "proof-out", "", "also build and save a proof manifest to this path (signed when --sign-key is set)")
	cmd.Flags().StringVar(&exportSignKeyPath, "sign-key", "", "armored OpenPGP private key to sign the proof manifest's root hash")
	cmd.Flags().StringVar(&exportFormat, "format", "text", "output format: text, json, yaml")
	cmd.Flags().BoolVar(&exportPretty, "pretty", false, "pretty-print JSON output")

	cmd.MarkFlagRequired("dest")
	return cmd
}

func executeExport(cmd *cobra.Command, args []string) error {
	log := forensiclog.Logger()
	indexPath := args[0]

	idx, err := fsindex.Load(indexPath)
	if err != nil {
		return fmt.Errorf("export: load index: %w", err)
	}

	opts := forensiccfg.ExportOptions{
		Dest:              exportDest,
		PreserveStructure: exportPreserveStructure,
		VerifyHash:        exportVerifyHash,
		ContinueOnError:   exportContinueOnError,
		CreateManifest:    !exportNoManifest,
		DryRun:            exportDryRun,
	}
	if err := forensiccfg.Validate("ExportOptions", opts); err != nil {
		return err
	}

	entries := idx.Entries()
	started := time.Now().UTC()
	log.Infof("export: copying %d entries to %s", len(entries), exportDest)
	result, err := exportRunner(context.Background(), entries, opts)
	if err != nil {
		return fmt.Errorf("export: %w", err)
	}

	var proofPath string
	if exportProofOut != "" {
		custody := buildChainOfCustody(started)
		m := proof.Build(indexPath, exportDest, "diskrecover", result.Successful, custody)
		if exportSignKeyPath != "" {
			key, err := loadSigningKey(exportSignKeyPath)
			if err != nil {
				return fmt.Errorf("export: load signing key: %w", err)
			}
			if err := proof.Sign(m, key); err != nil {
				return fmt.Errorf("export: sign proof: %w", err)
			}
		}
		if err := proof.Save(m, exportProofOut); err != nil {
			return fmt.Errorf("export: save proof: %w", err)
		}
		proofPath = exportProofOut
	}

	if exportFormat == "text" {
		out := cmd.OutOrStdout()
		fmt.Fprintf(out, "exported %d files (%d bytes), %d failed\n", len(result.Successful), result.Bytes, result.Failed)
		if result.ManifestPath != "" {
			fmt.Fprintf(out, "manifest: %s\n", result.ManifestPath)
		}
		if proofPath != "" {
			fmt.Fprintf(out, "proof manifest: %s\n", proofPath)
		}
		for _, e := range result.Errors {
			fmt.Fprintf(out, "  error: %s\n", e)
		}
		return nil
	}

	payload := struct {
		*export.Result
		ProofPath string `json:"proofPath,omitempty"`
	}{Result: result, ProofPath: proofPath}
	return writeStructured(cmd, payload, exportFormat, exportPretty)
}

// buildChainOfCustody captures the operator/machine/OS metadata that
// gives a proof manifest an auditable custody trail.
func buildChainOfCustody(started time.Time) proof.ChainOfCustody {
	operator := "unknown"
	if u, err := user.Current(); err == nil {
		operator = u.Username
	}
	machine, _ := os.Hostname()
	return proof.ChainOfCustody{
		Operator:    operator,
		Machine:     machine,
		OS:          runtime.GOOS,
		StartedAt:   started,
		CompletedAt: time.Now().UTC(),
		Options: map[string]string{
			"dest":              exportDest,
			"preserveStructure": fmt.Sprintf("%t", exportPreserveStructure),
			"verifyHash":        fmt.Sprintf("%t", exportVerifyHash),
		},
	}
}

func loadSigningKey(path string) (*openpgp.Entity, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	ring, err := openpgp.ReadArmoredKeyRing(f)
	if err != nil {
		return nil, err
	}
	if len(ring) == 0 {
		return nil, fmt.Errorf("no keys found in %s", path)
	}
	return ring[0], nil
}
