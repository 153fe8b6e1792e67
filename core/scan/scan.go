// Package scan walks a media library and pairs every source file with
// its converted output through a match key, so a rerun only converts
// what is still missing. The index built here is the sole source of
// idempotence: no state is carried between runs.
package scan

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/karrick/godirwalk"
	"go.uber.org/zap"
)

// MediaFile is one classified file from the walk. Read-only after the
// scan.
type MediaFile struct {
	Path    string
	RelPath string
	Ext     string
	Size    int64
	Key     string
}

// MatchEntry pairs the two sides of one match key. At most one file
// per slot; extra arrivals make the entry ambiguous and are kept so
// the collision can be reported instead of silently resolved.
type MatchEntry struct {
	Key       string
	Original  *MediaFile
	Converted *MediaFile

	DupOriginals []*MediaFile
	DupConverted []*MediaFile
}

// Ambiguous reports whether this key saw a naming collision.
func (e *MatchEntry) Ambiguous() bool {
	return len(e.DupOriginals) > 0 || len(e.DupConverted) > 0
}

// Options selects what the scanner recognizes. Extension sets come
// from the tool catalog; an empty set disables that media type for
// the run.
type Options struct {
	IncludeSubdirs bool
	ExcludeDirs    []string

	// MinFileSize excludes placeholder files at or below this size.
	MinFileSize int64

	ImageExts map[string]struct{}
	VideoExts map[string]struct{}

	// ImageOutputExt / VideoOutputExt mark converted outputs. Empty
	// disables recognition for that category.
	ImageOutputExt string
	VideoOutputExt string
}

// Index is the result of one scan.
type Index struct {
	Root    string
	entries map[string]*MatchEntry

	skipped []MediaFile
	tiny    int
	ignored int
	scanned int
}

// Summary are the scan counters shown to the user.
type Summary struct {
	Scanned   int
	Matched   int
	Pending   int
	Skipped   int
	Orphans   int
	Ambiguous int
	Tiny      int
	Ignored   int
}

// Scan walks root and builds the match index. The walk is unsorted
// and symlinks are not followed; per-file problems are logged and
// skipped, only an unreadable root fails the scan.
func Scan(root string, opts Options, logger *zap.Logger) (*Index, error) {
	absRoot, err := filepath.Abs(root)
	if err != nil {
		return nil, err
	}
	info, err := os.Stat(absRoot)
	if err != nil {
		return nil, fmt.Errorf("source directory: %w", err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("source directory: %s is not a directory", absRoot)
	}

	idx := &Index{
		Root:    absRoot,
		entries: make(map[string]*MatchEntry),
	}

	excludes := normalizeExcludes(absRoot, opts.ExcludeDirs)

	err = godirwalk.Walk(absRoot, &godirwalk.Options{
		Unsorted:            true,
		FollowSymbolicLinks: false,
		Callback: func(path string, de *godirwalk.Dirent) error {
			if de.IsDir() {
				if path == absRoot {
					return nil
				}
				if !opts.IncludeSubdirs || excluded(excludes, path) {
					return filepath.SkipDir
				}
				return nil
			}
			if !de.IsRegular() {
				return nil
			}
			idx.add(path, opts, logger)
			return nil
		},
		ErrorCallback: func(path string, err error) godirwalk.ErrorAction {
			logger.Warn("unreadable path skipped", zap.String("path", path), zap.Error(err))
			return godirwalk.SkipNode
		},
	})
	if err != nil {
		return nil, err
	}
	return idx, nil
}

// add classifies one regular file into the index.
func (idx *Index) add(path string, opts Options, logger *zap.Logger) {
	idx.scanned++
	name := filepath.Base(path)

	k, stem := classifyName(name, opts)
	if k == kindIgnored {
		idx.ignored++
		return
	}

	info, err := os.Stat(path)
	if err != nil {
		logger.Warn("stat failed, file skipped", zap.String("path", path), zap.Error(err))
		idx.ignored++
		return
	}
	if info.Size() <= opts.MinFileSize {
		idx.tiny++
		return
	}

	rel, err := filepath.Rel(idx.Root, path)
	if err != nil {
		rel = name
	}
	file := MediaFile{
		Path:    path,
		RelPath: rel,
		Ext:     strings.ToLower(filepath.Ext(name)),
		Size:    info.Size(),
		Key:     matchKey(filepath.Dir(path), stem),
	}

	switch k {
	case kindSkipped:
		idx.skipped = append(idx.skipped, file)
	case kindSource:
		entry := idx.entry(file.Key)
		if entry.Original != nil {
			logger.Warn("match key collision between originals",
				zap.String("key", file.Key),
				zap.String("kept", entry.Original.RelPath),
				zap.String("also", file.RelPath))
			entry.DupOriginals = append(entry.DupOriginals, &file)
			return
		}
		entry.Original = &file
	case kindConverted:
		entry := idx.entry(file.Key)
		if entry.Converted != nil {
			logger.Warn("match key collision between converted outputs",
				zap.String("key", file.Key),
				zap.String("kept", entry.Converted.RelPath),
				zap.String("also", file.RelPath))
			entry.DupConverted = append(entry.DupConverted, &file)
			return
		}
		entry.Converted = &file
	}
}

func (idx *Index) entry(key string) *MatchEntry {
	e, ok := idx.entries[key]
	if !ok {
		e = &MatchEntry{Key: key}
		idx.entries[key] = e
	}
	return e
}

// Pending returns the sources with no converted output yet, sorted by
// relative path so every run sees the same order.
func (idx *Index) Pending() []MediaFile {
	var out []MediaFile
	for _, e := range idx.entries {
		if e.Ambiguous() || e.Original == nil || e.Converted != nil {
			continue
		}
		out = append(out, *e.Original)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].RelPath < out[j].RelPath })
	return out
}

// Orphans returns converted outputs with no source. Reported only,
// never acted on.
func (idx *Index) Orphans() []MediaFile {
	var out []MediaFile
	for _, e := range idx.entries {
		if e.Ambiguous() || e.Converted == nil || e.Original != nil {
			continue
		}
		out = append(out, *e.Converted)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].RelPath < out[j].RelPath })
	return out
}

// Ambiguous returns the entries that saw naming collisions. They are
// excluded from Pending and Matched and must be surfaced to the user.
func (idx *Index) Ambiguous() []*MatchEntry {
	var out []*MatchEntry
	for _, e := range idx.entries {
		if e.Ambiguous() {
			out = append(out, e)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Key < out[j].Key })
	return out
}

// Skipped returns the files excluded by their skip marker.
func (idx *Index) Skipped() []MediaFile {
	out := make([]MediaFile, len(idx.skipped))
	copy(out, idx.skipped)
	sort.Slice(out, func(i, j int) bool { return out[i].RelPath < out[j].RelPath })
	return out
}

// Summary computes the scan counters.
func (idx *Index) Summary() Summary {
	s := Summary{
		Scanned: idx.scanned,
		Skipped: len(idx.skipped),
		Tiny:    idx.tiny,
		Ignored: idx.ignored,
	}
	for _, e := range idx.entries {
		switch {
		case e.Ambiguous():
			s.Ambiguous++
		case e.Original != nil && e.Converted != nil:
			s.Matched++
		case e.Original != nil:
			s.Pending++
		default:
			s.Orphans++
		}
	}
	return s
}

// normalizeExcludes resolves exclude entries against the root. Entries
// may be absolute or root-relative.
func normalizeExcludes(root string, dirs []string) []string {
	out := make([]string, 0, len(dirs))
	for _, d := range dirs {
		if d == "" {
			continue
		}
		if !filepath.IsAbs(d) {
			d = filepath.Join(root, d)
		}
		out = append(out, filepath.Clean(d))
	}
	return out
}

func excluded(excludes []string, dir string) bool {
	for _, e := range excludes {
		if dir == e || strings.HasPrefix(dir, e+string(filepath.Separator)) {
			return true
		}
	}
	return false
}
