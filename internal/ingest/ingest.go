// Package ingest discovers PDF contracts on disk for batch extraction: a
// one-shot directory scan and a watcher for drop folders.
package ingest

import (
	"path/filepath"
	"strings"
)

// FileResult is the per-file scan outcome.
type FileResult struct {
	Path         string
	HashHex      string
	Size         int64
	Deduplicated bool // same content as an earlier file in this scan
	Err          string
}

// DirStats summarizes a directory scan.
type DirStats struct {
	Scanned      uint32
	Matched      uint32
	Succeeded    uint32
	Deduplicated uint32
	Failed       uint32
}

var defaultExts = map[string]struct{}{"pdf": {}}

// IsHidden checks if a file or directory is hidden (starts with '.').
func IsHidden(path string) bool {
	base := filepath.Base(path)
	return strings.HasPrefix(base, ".") && base != "." && base != ".."
}

func allowed(path string, exts map[string]struct{}) bool {
	if exts == nil {
		exts = defaultExts
	}
	ext := strings.TrimPrefix(strings.ToLower(filepath.Ext(path)), ".")
	_, ok := exts[ext]
	return ok
}
