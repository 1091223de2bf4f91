// Package dedup implements the content-addressed deduplicator (C8):
// size-bucketed BLAKE3 exact dedup with partial-hash optimization for
// large files, an optional fuzzy pass over normalized filenames, and
// policy-driven master selection.
package dedup

import (
	"encoding/binary"
	"fmt"
	"io"
	"os"
	"regexp"
	"sort"
	"strings"
	"sync"

	"golang.org/x/sync/errgroup"
	"golang.org/x/text/unicode/norm"
	"lukechampine.com/blake3"

	"github.com/forensics/diskrecover/internal/forensiccfg"
	"github.com/forensics/diskrecover/internal/model"
)

// partialHashThreshold: files at or below this size are hashed in full;
// larger files use the head+tail+size partial fingerprint. Not tunable.
const partialHashThreshold = 8 * 1024 * 1024

const partialHashSpan = 4 * 1024 * 1024

// Strategy selects which member of a duplicate group is preserved.
type Strategy string

const (
	Newest   Strategy = "newest"
	Largest  Strategy = "largest"
	Oldest   Strategy = "oldest"
	Cleanest Strategy = "cleanest"
)

// Report is the full output of a dedup pass: exact and fuzzy groups
// together in one list, sorted by WastedBytes descending.
type Report struct {
	Groups []model.DupGroup
}

// Run executes the exact pass and, if requested, the fuzzy pass over
// whatever entries the exact pass left ungrouped.
func Run(entries []model.FileEntry, opts forensiccfg.DedupOptions) (*Report, error) {
	strategy := Strategy(strings.ToLower(opts.Strategy))
	if strategy == "" {
		strategy = Cleanest
	}

	var candidates []model.FileEntry
	for _, e := range entries {
		if e.Size >= opts.MinSize {
			candidates = append(candidates, e)
		}
	}

	exactGroups, grouped, err := exactPass(candidates, strategy)
	if err != nil {
		return nil, err
	}

	var report Report
	report.Groups = append(report.Groups, exactGroups...)

	if opts.Fuzzy {
		threshold := opts.FuzzyThreshold
		if threshold <= 0 {
			threshold = 85
		}
		var remaining []model.FileEntry
		for _, e := range candidates {
			if !grouped[e.Path] {
				remaining = append(remaining, e)
			}
		}
		fuzzyGroups := fuzzyPass(remaining, threshold, strategy)
		report.Groups = append(report.Groups, fuzzyGroups...)
	}

	sort.SliceStable(report.Groups, func(i, j int) bool {
		return report.Groups[i].WastedBytes > report.Groups[j].WastedBytes
	})
	return &report, nil
}

// exactPass buckets by exact size, fingerprints each candidate in
// parallel, then groups by fingerprint.
func exactPass(candidates []model.FileEntry, strategy Strategy) ([]model.DupGroup, map[string]bool, error) {
	bySize := make(map[int64][]model.FileEntry)
	for _, e := range candidates {
		bySize[e.Size] = append(bySize[e.Size], e)
	}

	type fingerprinted struct {
		entry model.FileEntry
		hash  string
	}
	var allFingerprints []fingerprinted
	var mu sync.Mutex

	eg := new(errgroup.Group)
	eg.SetLimit(16)
	for _, group := range bySize {
		if len(group) < 2 {
			continue
		}
		group := group
		for _, e := range group {
			e := e
			eg.Go(func() error {
				hash, err := fingerprint(e.Path, e.Size)
				if err != nil {
					return nil // per-item read failure: drop from dedup, not fatal
				}
				mu.Lock()
				allFingerprints = append(allFingerprints, fingerprinted{entry: e, hash: hash})
				mu.Unlock()
				return nil
			})
		}
	}
	if err := eg.Wait(); err != nil {
		return nil, nil, err
	}

	byHash := make(map[string][]model.FileEntry)
	for _, fp := range allFingerprints {
		byHash[fp.hash] = append(byHash[fp.hash], fp.entry)
	}

	grouped := make(map[string]bool)
	var groups []model.DupGroup
	for hash, members := range byHash {
		if len(members) < 2 {
			continue
		}
		master, dups := selectMaster(members, strategy)
		wasted := master.Size * int64(len(dups))
		var dupPaths []string
		for _, d := range dups {
			dupPaths = append(dupPaths, d.Path)
			grouped[d.Path] = true
		}
		grouped[master.Path] = true
		groups = append(groups, model.DupGroup{
			Hash: hash, Similarity: 100, Master: master.Path,
			Duplicates: dupPaths, WastedBytes: wasted,
		})
	}
	return groups, grouped, nil
}

// fingerprint hashes a file fully when size<=partialHashThreshold, else
// hashes size||first4MiB||last4MiB. This is collision-safe for
// practical duplicate detection, not for adversarial inputs.
func fingerprint(path string, size int64) (string, error) {
	if size <= partialHashThreshold {
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

	f, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer f.Close()

	h := blake3.New(32, nil)
	var sizeBuf [8]byte
	binary.LittleEndian.PutUint64(sizeBuf[:], uint64(size))
	h.Write(sizeBuf[:])

	head := make([]byte, partialHashSpan)
	if _, err := io.ReadFull(f, head); err != nil {
		return "", err
	}
	h.Write(head)

	tail := make([]byte, partialHashSpan)
	if _, err := f.ReadAt(tail, size-partialHashSpan); err != nil {
		return "", err
	}
	h.Write(tail)

	return fmt.Sprintf("%x", h.Sum(nil)), nil
}

var tempBackupRE = regexp.MustCompile(`(?i)(~$|\.bak$|\.tmp$|\.swp$|\.orig$|_old|_backup|_copy| - copy|\(\d+\)|^~\$)`)

func isTempOrBackupName(basename string) bool {
	return tempBackupRE.MatchString(basename)
}

// selectMaster scores every member under strategy and returns
// (master, everyone else), highest score first.
func selectMaster(members []model.FileEntry, strategy Strategy) (model.FileEntry, []model.FileEntry) {
	type scored struct {
		entry model.FileEntry
		score float64
	}
	scoredMembers := make([]scored, len(members))
	for i, e := range members {
		scoredMembers[i] = scored{entry: e, score: score(e, strategy)}
	}
	sort.SliceStable(scoredMembers, func(i, j int) bool { return scoredMembers[i].score > scoredMembers[j].score })

	master := scoredMembers[0].entry
	dups := make([]model.FileEntry, 0, len(members)-1)
	for _, s := range scoredMembers[1:] {
		dups = append(dups, s.entry)
	}
	return master, dups
}

func score(e model.FileEntry, strategy Strategy) float64 {
	base := filenameBase(e.Path)
	tempy := isTempOrBackupName(base)

	var modEpoch float64
	if e.Modified != nil {
		modEpoch = float64(e.Modified.Unix())
	}

	switch strategy {
	case Newest:
		s := modEpoch
		if !tempy {
			s += 1
		}
		return s
	case Largest:
		s := float64(e.Size)
		if !tempy {
			s += 1
		}
		return s
	case Oldest:
		s := -modEpoch
		if !tempy {
			s += 1
		}
		return s
	case Cleanest:
		fallthrough
	default:
		s := 0.0
		if !tempy {
			s = 1000
		}
		return s + modEpoch/1e15
	}
}

func filenameBase(path string) string {
	idx := strings.LastIndexAny(path, `/\`)
	if idx < 0 {
		return path
	}
	return path[idx+1:]
}

var (
	stripSubstrings = []string{"_old", "_backup", "_bak", "_copy", " - Copy", " - copy", "_final", "_FINAL", "_draft", "-draft", "~"}
	stripPatterns   = []*regexp.Regexp{
		regexp.MustCompile(`\s*\(\d+\)`),
		regexp.MustCompile(`_v\d+`),
		regexp.MustCompile(`_rev\d+`),
		regexp.MustCompile(`_\d{4}-\d{2}-\d{2}`),
		regexp.MustCompile(`_\d{8}_\d{6}`),
		regexp.MustCompile(`_\d{8}`),
		regexp.MustCompile(`\s*-\s*\d+$`),
		regexp.MustCompile(`_copy\d*`),
	}
)

// normalizeName applies NFC, strips known suffixes/markers, trims,
// lowercases, and recombines with the lowercased extension.
func normalizeName(path string) string {
	base := filenameBase(path)
	ext := ""
	if dot := strings.LastIndex(base, "."); dot > 0 {
		ext = strings.ToLower(base[dot+1:])
		base = base[:dot]
	}

	name := norm.NFC.String(base)
	for _, s := range stripSubstrings {
		name = strings.ReplaceAll(name, s, "")
	}
	for _, re := range stripPatterns {
		name = re.ReplaceAllString(name, "")
	}
	name = strings.TrimSpace(name)
	name = strings.ToLower(name)
	if ext != "" {
		return name + "." + ext
	}
	return name
}

type sizeCluster struct {
	referenceSize int64
	members       []model.FileEntry
}

func sizeSimilarity(a, b int64) int {
	if a == 0 && b == 0 {
		return 100
	}
	min, max := a, b
	if min > max {
		min, max = max, min
	}
	if max == 0 {
		return 0
	}
	return int(float64(min) / float64(max) * 100)
}

// fuzzyPass groups by normalized basename, then clusters each group by
// size proximity against the *first* member of a cluster.
func fuzzyPass(entries []model.FileEntry, threshold int, strategy Strategy) []model.DupGroup {
	byName := make(map[string][]model.FileEntry)
	var order []string
	for _, e := range entries {
		name := normalizeName(e.Path)
		if _, ok := byName[name]; !ok {
			order = append(order, name)
		}
		byName[name] = append(byName[name], e)
	}

	var groups []model.DupGroup
	for _, name := range order {
		members := byName[name]
		var clusters []*sizeCluster
		for _, e := range members {
			placed := false
			for _, c := range clusters {
				if sizeSimilarity(e.Size, c.referenceSize) >= threshold {
					c.members = append(c.members, e)
					placed = true
					break
				}
			}
			if !placed {
				clusters = append(clusters, &sizeCluster{referenceSize: e.Size, members: []model.FileEntry{e}})
			}
		}
		for _, c := range clusters {
			if len(c.members) < 2 {
				continue
			}
			master, dups := selectMaster(c.members, strategy)
			var wasted int64
			var dupPaths []string
			for _, d := range dups {
				wasted += d.Size
				dupPaths = append(dupPaths, d.Path)
			}
			avgSim := 0
			for _, m := range c.members {
				avgSim += sizeSimilarity(m.Size, c.referenceSize)
			}
			if len(c.members) > 0 {
				avgSim /= len(c.members)
			}
			groups = append(groups, model.DupGroup{
				Similarity: avgSim, Master: master.Path,
				Duplicates: dupPaths, WastedBytes: wasted,
			})
		}
	}
	return groups
}

// PurgeResult reports what Purge deleted (or, in a dry run, would delete).
type PurgeResult struct {
	FilesDeleted int
	BytesFreed   int64
	Errors       []string
}

// Purge deletes every duplicate named in groups, never a master. It
// reports the number of files deleted and the total bytes freed, and
// continues past individual delete errors, recording each one.
func Purge(groups []model.DupGroup, sizeByPath map[string]int64, dryRun bool) PurgeResult {
	var res PurgeResult
	for _, g := range groups {
		for _, dup := range g.Duplicates {
			size := sizeByPath[dup]
			if dryRun {
				res.FilesDeleted++
				res.BytesFreed += size
				continue
			}
			if err := os.Remove(dup); err != nil {
				res.Errors = append(res.Errors, fmt.Sprintf("%s: %v", dup, err))
				continue
			}
			res.FilesDeleted++
			res.BytesFreed += size
		}
	}
	return res
}
