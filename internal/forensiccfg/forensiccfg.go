// Package forensiccfg holds the option records the CLI layer assembles
// and hands to the core, plus JSON Schema validation for
// each of them.
package forensiccfg

import (
	"encoding/json"
	"fmt"

	"github.com/santhosh-tekuri/jsonschema/v5"
)

// IndexArgs configures a filesystem-scan / index-build run (C6, C7).
type IndexArgs struct {
	Source             string   `json:"source"`
	SkipHidden         bool     `json:"skipHidden"`
	MaxDepth           *int     `json:"maxDepth,omitempty"`
	Extensions         []string `json:"extensions,omitempty"`
	Workers            int      `json:"workers"`
	CheckpointInterval int      `json:"checkpointInterval"`
	BadSectorReport    string   `json:"badSectorReport,omitempty"`
	BlockSize          int      `json:"blockSize"`
	SameFileSystem     bool     `json:"sameFileSystem"`

	// AsVolume treats Source as a partitioned disk image rather than a
	// live directory: the scan opens it through the volume package and
	// walks each recognized partition's filesystem instead of calling
	// filepath.Walk directly.
	AsVolume      bool `json:"asVolume"`
	MaxPartitions int  `json:"maxPartitions,omitempty"`
}

// CarveOptions configures a raw-image carve run (C2, C3).
type CarveOptions struct {
	Source        string   `json:"source"`
	OutputDir     string   `json:"outputDir"`
	SectorAligned bool     `json:"sectorAligned"`
	MinSize       int64    `json:"minSize"`
	FileTypes     []string `json:"fileTypes,omitempty"`
	Workers       int      `json:"workers"`
	DryRun        bool     `json:"dryRun"`
	Verify        bool     `json:"verify"`
}

// DedupOptions configures a deduplication pass (C8).
type DedupOptions struct {
	Strategy       string `json:"strategy"` // newest|largest|oldest|cleanest
	Fuzzy          bool   `json:"fuzzy"`
	FuzzyThreshold int    `json:"fuzzyThreshold"` // 0..100
	MinSize        int64  `json:"minSize"`
}

// ExportOptions configures an export run (C9, C10).
type ExportOptions struct {
	Dest              string `json:"dest"`
	PreserveStructure bool   `json:"preserveStructure"`
	VerifyHash        bool   `json:"verifyHash"`
	ContinueOnError   bool   `json:"continueOnError"`
	CreateManifest    bool   `json:"createManifest"`
	DryRun            bool   `json:"dryRun"`
}

// schemas are compiled once from the embedded definitions below and
// reused by Validate.
var schemas = map[string]*jsonschema.Schema{}

func init() {
	c := jsonschema.NewCompiler()
	defs := map[string]string{
		"IndexArgs":     indexArgsSchema,
		"CarveOptions":  carveOptionsSchema,
		"DedupOptions":  dedupOptionsSchema,
		"ExportOptions": exportOptionsSchema,
	}
	for name, raw := range defs {
		url := "mem://" + name + ".json"
		if err := c.AddResource(url, mustDecode(raw)); err != nil {
			panic(fmt.Sprintf("forensiccfg: bad schema %s: %v", name, err))
		}
		s, err := c.Compile(url)
		if err != nil {
			panic(fmt.Sprintf("forensiccfg: compile %s: %v", name, err))
		}
		schemas[name] = s
	}
}

func mustDecode(raw string) interface{} {
	var v interface{}
	if err := json.Unmarshal([]byte(raw), &v); err != nil {
		panic(err)
	}
	return v
}

// Validate checks an already-decoded options value (one of the four
// structs above, marshaled back to a generic map) against its schema.
func Validate(kind string, v interface{}) error {
	s, ok := schemas[kind]
	if !ok {
		return fmt.Errorf("forensiccfg: unknown options kind %q", kind)
	}
	b, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("forensiccfg: marshal %s: %w", kind, err)
	}
	var doc interface{}
	if err := json.Unmarshal(b, &doc); err != nil {
		return fmt.Errorf("forensiccfg: remarshal %s: %w", kind, err)
	}
	if err := s.Validate(doc); err != nil {
		return fmt.Errorf("forensiccfg: %s failed validation: %w", kind, err)
	}
	return nil
}

const indexArgsSchema = `{
  "type": "object",
  "required": ["source", "workers", "blockSize"],
  "properties": {
    "source": {"type": "string", "minLength": 1},
    "workers": {"type": "integer", "minimum": 1},
    "blockSize": {"type": "integer", "minimum": 512},
    "checkpointInterval": {"type": "integer", "minimum": 0}
  }
}`

const carveOptionsSchema = `{
  "type": "object",
  "required": ["source", "outputDir", "minSize", "workers"],
  "properties": {
    "source": {"type": "string", "minLength": 1},
    "outputDir": {"type": "string", "minLength": 1},
    "minSize": {"type": "integer", "minimum": 0},
    "workers": {"type": "integer", "minimum": 1}
  }
}`

const dedupOptionsSchema = `{
  "type": "object",
  "required": ["strategy"],
  "properties": {
    "strategy": {"type": "string", "enum": ["newest", "largest", "oldest", "cleanest"]},
    "fuzzyThreshold": {"type": "integer", "minimum": 0, "maximum": 100},
    "minSize": {"type": "integer", "minimum": 0}
  }
}`

const exportOptionsSchema = `{
  "type": "object",
  "required": ["dest"],
  "properties": {
    "dest": {"type": "string", "minLength": 1}
  }
}`
