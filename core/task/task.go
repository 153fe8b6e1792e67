// Package task turns pending files into executable conversion tasks:
// concrete paths, expanded candidate commands in priority order, and
// the metadata the executor and scheduler need.
package task

import (
	"time"

	"github.com/jaco00/media-transcode/core/catalog"
)

// ResolvedCommand is one ready-to-run candidate: an absolute program
// path and fully expanded arguments.
type ResolvedCommand struct {
	// Tool is the catalog name, used as the attempt label in logs.
	Tool string
	Path string
	Args []string
}

// Task is one file conversion. Built once, handed to exactly one
// worker, never mutated concurrently.
type Task struct {
	ID        string
	MediaType catalog.Category

	SourcePath string
	RelPath    string
	SourceSize int64

	// TempOutputPath sits next to FinalOutputPath so promotion is a
	// same-directory rename. The random suffix keeps concurrent or
	// interrupted runs from clobbering each other's temp files.
	TempOutputPath  string
	FinalOutputPath string

	// BackupPath mirrors RelPath under the backup root; empty when no
	// backup is configured. Parent directories are created at
	// execution time, not build time.
	BackupDir  string
	BackupPath string

	// Commands are the candidates in priority order. Empty means
	// nothing usable resolved; the executor reports that as a
	// configuration failure instead of crashing.
	Commands []ResolvedCommand

	// DurationSec is the probed video duration, 0 when unknown.
	// Progress only, never correctness.
	DurationSec float64

	// AllowParallel routes the task into the worker pool or the
	// sequential lane.
	AllowParallel bool
}

// Result is the outcome of one task, immutable once produced.
type Result struct {
	TaskID    string
	RelPath   string
	MediaType catalog.Category

	Success  bool
	ToolUsed string
	ErrMsg   string

	SrcBytes int64
	NewBytes int64

	// FinalPath is where the output actually landed, which differs
	// from the planned path after a collision rename.
	FinalPath  string
	Conflicted bool

	Started time.Time
	Elapsed time.Duration
}
