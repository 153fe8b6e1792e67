package scan

import (
	"path/filepath"
	"strings"
)

// kind is the name-level classification of a directory entry.
type kind int

const (
	kindIgnored kind = iota
	kindSource
	kindConverted
	kindSkipped
)

// classifyName decides what a filename is and returns the stem its
// match key is built from. Order matters: converted-output suffixes
// win over source extensions, so "x.h265.mp4" is never mistaken for
// an .mp4 source.
func classifyName(name string, opts Options) (kind, string) {
	lower := strings.ToLower(name)

	for _, suffix := range []string{opts.VideoOutputExt, opts.ImageOutputExt} {
		if suffix == "" {
			continue
		}
		if strings.HasSuffix(lower, strings.ToLower(suffix)) {
			stem := name[:len(name)-len(suffix)]
			if stem == "" {
				return kindIgnored, ""
			}
			return kindConverted, stem
		}
	}

	ext := filepath.Ext(lower)
	if ext == "" {
		return kindIgnored, ""
	}
	_, image := opts.ImageExts[ext]
	_, video := opts.VideoExts[ext]
	if !image && !video {
		return kindIgnored, ""
	}
	stem := name[:len(name)-len(ext)]
	if stem == "" {
		return kindIgnored, ""
	}
	if strings.HasSuffix(strings.ToLower(stem), skipMarker) {
		return kindSkipped, stem
	}
	return kindSource, stem
}

// skipMarker excludes a file when it sits immediately before the final
// extension: "photo.skip.jpg" is left alone, and the marker survives
// rescans because nothing ever renames it away.
const skipMarker = ".skip"

// matchKey pairs a source with its converted output: the directory
// joined with the suffix-stripped basename. Identical for both sides
// of a pair regardless of traversal order.
func matchKey(dir, stem string) string {
	return filepath.Join(dir, stem)
}
