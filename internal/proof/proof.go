// Package proof implements the verifiable export proof manifest (C10):
// a deterministic BLAKE3 root over per-file hashes, save/load, and
// offline verification against disk, plus an optional detached OpenPGP
// signature over the root hash.
package proof

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/ProtonMail/go-crypto/openpgp"
	"lukechampine.com/blake3"

	"github.com/forensics/diskrecover/internal/export"
)

// Version is the on-disk manifest schema version.
const Version = 1

// Entry is one file's record inside a ProofManifest.
type Entry struct {
	SourcePath string `json:"sourcePath"`
	DestPath   string `json:"destPath"`
	Size       int64  `json:"size"`
	Blake3Hash string `json:"blake3Hash"`
}

// ChainOfCustody is captured once at manifest build time.
type ChainOfCustody struct {
	Operator    string            `json:"operator"`
	Machine     string            `json:"machine"`
	OS          string            `json:"os"`
	StartedAt   time.Time         `json:"startedAt"`
	CompletedAt time.Time         `json:"completedAt"`
	Options     map[string]string `json:"options"`
}

// Manifest is the full proof record.
type Manifest struct {
	Version        int            `json:"version"`
	Tool           string         `json:"tool"`
	ToolVersion    string         `json:"toolVersion"`
	CreatedAt      time.Time      `json:"createdAt"`
	SourceRoot     string         `json:"sourceRoot"`
	DestRoot       string         `json:"destRoot"`
	RootHash       string         `json:"rootHash"`
	TotalFiles     int            `json:"totalFiles"`
	TotalBytes     int64          `json:"totalBytes"`
	Entries        []Entry        `json:"entries"`
	ChainOfCustody ChainOfCustody `json:"chainOfCustody"`
	Signature      string         `json:"signature,omitempty"`
}

// emptyRootSeed is hashed verbatim when a manifest has zero entries.
const emptyRootSeed = "empty"

// RootHash is a pure function of the multiset of entries' Blake3Hash
// values: entries are sorted by SourcePath, then each hash's ASCII bytes
// are fed in order to one BLAKE3 hasher.
func RootHash(entries []Entry) string {
	if len(entries) == 0 {
		h := blake3.New(32, nil)
		h.Write([]byte(emptyRootSeed))
		return fmt.Sprintf("%x", h.Sum(nil))
	}
	sorted := make([]Entry, len(entries))
	copy(sorted, entries)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].SourcePath < sorted[j].SourcePath })

	h := blake3.New(32, nil)
	for _, e := range sorted {
		h.Write([]byte(e.Blake3Hash))
	}
	return fmt.Sprintf("%x", h.Sum(nil))
}

// Build assembles a Manifest from a completed export result.
func Build(sourceRoot, destRoot, toolVersion string, exported []export.ExportedEntry, custody ChainOfCustody) *Manifest {
	entries := make([]Entry, 0, len(exported))
	var totalBytes int64
	for _, e := range exported {
		entries = append(entries, Entry{
			SourcePath: e.SourcePath, DestPath: e.DestPath,
			Size: e.Size, Blake3Hash: e.Blake3Hash,
		})
		totalBytes += e.Size
	}
	return &Manifest{
		Version: Version, Tool: "diskrecover", ToolVersion: toolVersion,
		CreatedAt: time.Now().UTC(), SourceRoot: sourceRoot, DestRoot: destRoot,
		RootHash: RootHash(entries), TotalFiles: len(entries), TotalBytes: totalBytes,
		Entries: entries, ChainOfCustody: custody,
	}
}

// Sign attaches a detached, armored OpenPGP signature of the manifest's
// root hash using the provided private key. A manifest without a
// configured signing key is simply left unsigned.
func Sign(m *Manifest, signingKey *openpgp.Entity) error {
	var buf bytes.Buffer
	if err := openpgp.ArmoredDetachSignText(&buf, signingKey, strings.NewReader(m.RootHash), nil); err != nil {
		return fmt.Errorf("proof: sign: %w", err)
	}
	m.Signature = buf.String()
	return nil
}

// Save writes the manifest as pretty-printed JSON, creating parents.
func Save(m *Manifest, path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("proof: create parent: %w", err)
	}
	b, err := json.MarshalIndent(m, "", "  ")
	if err != nil {
		return fmt.Errorf("proof: marshal: %w", err)
	}
	return os.WriteFile(path, b, 0o644)
}

// Load reads a manifest back from disk.
func Load(path string) (*Manifest, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var m Manifest
	if err := json.Unmarshal(b, &m); err != nil {
		return nil, fmt.Errorf("proof: unmarshal: %w", err)
	}
	return &m, nil
}

// TamperKind classifies a per-file verification failure.
type TamperKind string

const (
	Missing      TamperKind = "missing"
	SizeChanged  TamperKind = "size_changed"
	HashMismatch TamperKind = "hash_mismatch"
)

// Tampered is one entry that failed verification.
type Tampered struct {
	SourcePath string     `json:"sourcePath"`
	Issue      TamperKind `json:"issue"`
}

// VerifyResult is the outcome of Verify. IsClean is true iff there were
// no failures, no missing files, and the recomputed root hash matches.
type VerifyResult struct {
	Failed        int        `json:"failed"`
	Missing       int        `json:"missing"`
	Tampered      []Tampered `json:"tampered"`
	RootHashValid bool       `json:"rootHashValid"`
	IsClean       bool       `json:"isClean"`
}

// Verify re-reads every entry's destination file, recomputes its hash,
// and recomputes the manifest's own root hash to guard against
// manifest-internal tampering.
func Verify(m *Manifest) (*VerifyResult, error) {
	res := &VerifyResult{}
	for _, e := range m.Entries {
		info, err := os.Stat(e.DestPath)
		if err != nil {
			res.Missing++
			res.Failed++
			res.Tampered = append(res.Tampered, Tampered{SourcePath: e.SourcePath, Issue: Missing})
			continue
		}
		if info.Size() != e.Size {
			res.Failed++
			res.Tampered = append(res.Tampered, Tampered{SourcePath: e.SourcePath, Issue: SizeChanged})
			continue
		}
		hash, err := rehash(e.DestPath)
		if err != nil || hash != e.Blake3Hash {
			res.Failed++
			res.Tampered = append(res.Tampered, Tampered{SourcePath: e.SourcePath, Issue: HashMismatch})
			continue
		}
	}

	res.RootHashValid = RootHash(m.Entries) == m.RootHash
	res.IsClean = res.Failed == 0 && res.Missing == 0 && res.RootHashValid
	return res, nil
}

func rehash(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer f.Close()
	h := blake3.New(32, nil)
	if _, err := io.Copy(h, f); err != nil {
		return "", err
	}
	return fmt.Sprintf("%x", h.Sum(nil)), nil
}
