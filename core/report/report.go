// Package report aggregates per-task results into the run summary.
package report

import (
	"time"

	"github.com/jaco00/media-transcode/core/catalog"
	"github.com/jaco00/media-transcode/core/scan"
	"github.com/jaco00/media-transcode/core/task"
)

// CategoryStats accumulates outcomes for one media category.
// Byte counters cover successful conversions only, so the space
// arithmetic is never skewed by partial failures.
type CategoryStats struct {
	Attempted int
	Succeeded int
	Failed    int
	SrcBytes  int64
	NewBytes  int64
}

func (c CategoryStats) add(r task.Result) CategoryStats {
	c.Attempted++
	if r.Success {
		c.Succeeded++
		c.SrcBytes += r.SrcBytes
		c.NewBytes += r.NewBytes
	} else {
		c.Failed++
	}
	return c
}

// Saved returns bytes reclaimed. Negative when outputs grew.
func (c CategoryStats) Saved() int64 { return c.SrcBytes - c.NewBytes }

// SavedPercent returns the relative reduction of converted sources.
func (c CategoryStats) SavedPercent() float64 {
	if c.SrcBytes == 0 {
		return 0
	}
	return float64(c.Saved()) / float64(c.SrcBytes) * 100
}

func (c CategoryStats) merge(o CategoryStats) CategoryStats {
	c.Attempted += o.Attempted
	c.Succeeded += o.Succeeded
	c.Failed += o.Failed
	c.SrcBytes += o.SrcBytes
	c.NewBytes += o.NewBytes
	return c
}

// Report is the full outcome of one run: what the scan saw, what the
// executor did, and how long it all took.
type Report struct {
	Scan      scan.Summary
	Images    CategoryStats
	Videos    CategoryStats
	Conflicts int
	Elapsed   time.Duration

	// FailLogPath points at the daily failure log. Empty when no
	// attempt failed.
	FailLogPath string
}

// Build folds results into a report. Results for tasks dropped by
// cancellation simply never arrive and are not counted.
func Build(sum scan.Summary, results []task.Result, elapsed time.Duration) *Report {
	r := &Report{Scan: sum, Elapsed: elapsed}
	for _, res := range results {
		switch res.MediaType {
		case catalog.Video:
			r.Videos = r.Videos.add(res)
		default:
			r.Images = r.Images.add(res)
		}
		if res.Conflicted {
			r.Conflicts++
		}
	}
	return r
}

// Total merges both categories.
func (r *Report) Total() CategoryStats { return r.Images.merge(r.Videos) }

// Failures returns the count of tasks that did not succeed.
func (r *Report) Failures() int { return r.Images.Failed + r.Videos.Failed }
