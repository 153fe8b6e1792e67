// Package display owns everything the user sees on a terminal:
// per-file result lines, the batch progress bar, the final summary
// and the confirmation prompt for destructive modes.
package display

import (
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/c2h5oh/datasize"
	"github.com/fatih/color"
	"github.com/manifoldco/promptui"
	"github.com/pterm/pterm"
	"golang.org/x/term"
	"golang.org/x/text/language"
	"golang.org/x/text/message"

	"github.com/jaco00/media-transcode/core/executor"
	"github.com/jaco00/media-transcode/core/report"
	"github.com/jaco00/media-transcode/core/task"
)

var (
	okMark   = color.New(color.FgGreen).Sprint("✓")
	failMark = color.New(color.FgRed).Sprint("✗")
)

// UI serializes all terminal output. Worker goroutines call TaskDone
// and Progress concurrently; the mutex keeps lines and bar redraws
// from interleaving.
type UI struct {
	quiet bool
	tty   bool
	width int
	p     *message.Printer

	mu        sync.Mutex
	bar       *pterm.ProgressbarPrinter
	lastTitle time.Time
}

func New(quiet bool) *UI {
	return &UI{
		quiet: quiet,
		tty:   term.IsTerminal(int(os.Stdout.Fd())),
		width: terminalWidth(),
		p:     message.NewPrinter(language.English),
	}
}

func terminalWidth() int {
	if term.IsTerminal(int(os.Stdout.Fd())) {
		if width, _, err := term.GetSize(int(os.Stdout.Fd())); err == nil && width > 0 {
			if width > 120 {
				width = 120
			}
			return width
		}
	}
	return 80
}

// Infof prints an informational line. Suppressed in quiet mode.
func (u *UI) Infof(format string, args ...interface{}) {
	if u.quiet {
		return
	}
	pterm.Info.Printfln(format, args...)
}

// Warnf prints a warning. Warnings survive quiet mode.
func (u *UI) Warnf(format string, args ...interface{}) {
	pterm.Warning.Printfln(format, args...)
}

// Errorf prints an error line. Never suppressed.
func (u *UI) Errorf(format string, args ...interface{}) {
	pterm.Error.Printfln(format, args...)
}

// Confirm asks a yes/no question and returns true only on an explicit
// yes. Any error (including a plain "n") counts as a refusal.
func (u *UI) Confirm(label string) bool {
	prompt := promptui.Prompt{Label: label, IsConfirm: true}
	_, err := prompt.Run()
	return err == nil
}

// StartProgress opens the batch progress bar. No-op when quiet or not
// attached to a terminal.
func (u *UI) StartProgress(total int) {
	if u.quiet || !u.tty || total == 0 {
		return
	}
	u.mu.Lock()
	defer u.mu.Unlock()
	bar, err := pterm.DefaultProgressbar.WithTotal(total).WithTitle("converting").Start()
	if err != nil {
		return
	}
	bar.ShowCount = true
	bar.ShowElapsedTime = true
	u.bar = bar
}

// Progress retitles the bar with the loudest in-flight encode. Pure
// cosmetics, so updates are throttled and drops are fine.
func (u *UI) Progress(ev executor.ProgressEvent) {
	u.mu.Lock()
	defer u.mu.Unlock()
	if u.bar == nil || time.Since(u.lastTitle) < 200*time.Millisecond {
		return
	}
	u.lastTitle = time.Now()
	title := ev.RelPath
	if ev.Percent > 0 {
		title = fmt.Sprintf("%s [%.0f%%]", ev.RelPath, ev.Percent)
	}
	if ev.Speed != "" {
		title += " " + ev.Speed
	}
	u.bar.UpdateTitle(truncate(title, u.width/2))
}

// TaskDone prints the per-file outcome and advances the bar.
func (u *UI) TaskDone(r task.Result) {
	u.mu.Lock()
	defer u.mu.Unlock()
	if u.bar != nil {
		u.bar.Increment()
	}
	if u.quiet {
		return
	}
	pterm.Println(resultLine(r))
}

// StopProgress closes the bar before the summary prints.
func (u *UI) StopProgress() {
	u.mu.Lock()
	defer u.mu.Unlock()
	if u.bar != nil {
		_, _ = u.bar.Stop()
		u.bar = nil
	}
}

// Summary prints the final run report. This is the one thing quiet
// mode keeps.
func (u *UI) Summary(rep *report.Report) {
	for _, line := range u.summaryLines(rep) {
		pterm.Println(line)
	}
}

func (u *UI) summaryLines(rep *report.Report) []string {
	total := rep.Total()
	lines := []string{
		"",
		u.p.Sprintf("Scanned %d files: %d pending, %d already converted, %d marked skip, %d below size floor",
			rep.Scan.Scanned, rep.Scan.Pending, rep.Scan.Matched, rep.Scan.Skipped, rep.Scan.Tiny),
	}
	if rep.Scan.Ambiguous > 0 {
		lines = append(lines, u.p.Sprintf("  %d ambiguous name collisions were left untouched", rep.Scan.Ambiguous))
	}
	if rep.Scan.Orphans > 0 {
		lines = append(lines, u.p.Sprintf("  %d converted outputs have no source", rep.Scan.Orphans))
	}
	if rep.Images.Attempted > 0 {
		lines = append(lines, categoryLine(u.p, "Images", rep.Images))
	}
	if rep.Videos.Attempted > 0 {
		lines = append(lines, categoryLine(u.p, "Videos", rep.Videos))
	}
	if total.Succeeded > 0 {
		lines = append(lines, fmt.Sprintf("Space: %s in, %s out (saved %s, %.1f%%)",
			humanBytes(total.SrcBytes), humanBytes(total.NewBytes),
			humanBytes(total.Saved()), total.SavedPercent()))
	}
	if rep.Conflicts > 0 {
		lines = append(lines, u.p.Sprintf("%d outputs kept under conflict names", rep.Conflicts))
	}
	if rep.Failures() > 0 && rep.FailLogPath != "" {
		lines = append(lines, fmt.Sprintf("Failures are listed in %s", rep.FailLogPath))
	}
	lines = append(lines, fmt.Sprintf("Done in %s", rep.Elapsed.Round(100*time.Millisecond)))
	return lines
}

func categoryLine(p *message.Printer, label string, c report.CategoryStats) string {
	return p.Sprintf("%s: %d converted, %d failed of %d attempted",
		label, c.Succeeded, c.Failed, c.Attempted)
}

// resultLine renders one finished task.
func resultLine(r task.Result) string {
	if r.Success {
		line := fmt.Sprintf("%s %s  %s → %s (%s)",
			okMark, r.RelPath, humanBytes(r.SrcBytes), humanBytes(r.NewBytes), r.ToolUsed)
		if r.Conflicted {
			line += " " + color.YellowString("[conflict name]")
		}
		return line
	}
	return fmt.Sprintf("%s %s  %s", failMark, r.RelPath, r.ErrMsg)
}

func humanBytes(n int64) string {
	if n < 0 {
		return "-" + datasize.ByteSize(-n).HumanReadable()
	}
	return datasize.ByteSize(n).HumanReadable()
}

func truncate(s string, max int) string {
	if max < 8 {
		max = 8
	}
	if len(s) <= max {
		return s
	}
	return "…" + s[len(s)-max+1:]
}

// Banner prints the run header before conversion starts.
func (u *UI) Banner(root string, pending, workers int, gpu bool) {
	if u.quiet {
		return
	}
	mode := "cpu"
	if gpu {
		mode = "gpu"
	}
	u.Infof("%s pending under %s (%d workers, %s templates)",
		u.p.Sprintf("%d files", pending), root, workers, mode)
}
