package executor

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os/exec"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/jaco00/media-transcode/core/task"
)

// AttemptError is one failed tool invocation: the trigger for trying
// the next candidate.
type AttemptError struct {
	Tool string
	Err  error

	// Tail holds the last stderr lines for diagnostics.
	Tail []string
}

func (e *AttemptError) Error() string {
	msg := fmt.Sprintf("%s: %v", e.Tool, e.Err)
	if last := lastInformative(e.Tail); last != "" {
		msg += ": " + last
	}
	return msg
}

func (e *AttemptError) Unwrap() error { return e.Err }

// lastInformative picks the most recent stderr line that is not a
// progress pulse.
func lastInformative(tail []string) string {
	for i := len(tail) - 1; i >= 0; i-- {
		line := strings.TrimSpace(tail[i])
		if line == "" || progressTimeRx.MatchString(line) {
			continue
		}
		return line
	}
	return ""
}

// ProgressEvent is a cosmetic pulse parsed from an encoder's stderr.
type ProgressEvent struct {
	TaskID  string
	RelPath string

	// Seconds of media encoded so far.
	Seconds float64

	// Percent is Seconds over the probed duration, 0 when unknown.
	Percent float64

	// Speed is the encoder's own throughput figure ("1.3x").
	Speed string
}

var (
	progressTimeRx  = regexp.MustCompile(`time=\s*(\d+):(\d+):(\d+(?:\.\d+)?)`)
	progressSpeedRx = regexp.MustCompile(`speed=\s*([\d.]+x)`)
)

// parseProgress extracts the time=/speed= markers ffmpeg-style tools
// stream on stderr. Returns false for lines without a time marker.
func parseProgress(line string) (seconds float64, speed string, ok bool) {
	m := progressTimeRx.FindStringSubmatch(line)
	if m == nil {
		return 0, "", false
	}
	h, _ := strconv.ParseFloat(m[1], 64)
	min, _ := strconv.ParseFloat(m[2], 64)
	sec, _ := strconv.ParseFloat(m[3], 64)
	if sm := progressSpeedRx.FindStringSubmatch(line); sm != nil {
		speed = sm[1]
	}
	return h*3600 + min*60 + sec, speed, true
}

// scanCRLines splits on \n or \r so ffmpeg's carriage-return progress
// rewrites arrive as individual lines.
func scanCRLines(data []byte, atEOF bool) (advance int, token []byte, err error) {
	if atEOF && len(data) == 0 {
		return 0, nil, nil
	}
	if i := bytes.IndexAny(data, "\r\n"); i >= 0 {
		return i + 1, data[:i], nil
	}
	if atEOF {
		return len(data), data, nil
	}
	return 0, nil, nil
}

const (
	stderrTailSize = 20
	waitDelay      = 5 * time.Second
)

// tailBuffer keeps the last N non-empty lines.
type tailBuffer struct {
	lines []string
}

func (t *tailBuffer) add(line string) {
	if strings.TrimSpace(line) == "" {
		return
	}
	t.lines = append(t.lines, line)
	if len(t.lines) > stderrTailSize {
		t.lines = t.lines[1:]
	}
}

// runCommand invokes one candidate and streams its stderr. The child
// is killed on context cancellation; WaitDelay reaps it even when a
// grandchild holds the pipe open.
func (e *Executor) runCommand(ctx context.Context, t *task.Task, cmd task.ResolvedCommand) *AttemptError {
	runCtx := ctx
	var cancel context.CancelFunc
	if e.opts.TaskTimeout > 0 {
		runCtx, cancel = context.WithTimeout(ctx, e.opts.TaskTimeout)
		defer cancel()
	}

	child := exec.CommandContext(runCtx, cmd.Path, cmd.Args...)
	child.Stdout = io.Discard
	child.WaitDelay = waitDelay

	stderr, err := child.StderrPipe()
	if err != nil {
		return &AttemptError{Tool: cmd.Tool, Err: err}
	}
	if err := child.Start(); err != nil {
		return &AttemptError{Tool: cmd.Tool, Err: err}
	}

	var tail tailBuffer
	scanner := bufio.NewScanner(stderr)
	scanner.Buffer(make([]byte, 64*1024), 1024*1024)
	scanner.Split(scanCRLines)
	for scanner.Scan() {
		line := scanner.Text()
		tail.add(line)
		if e.opts.OnProgress == nil {
			continue
		}
		seconds, speed, ok := parseProgress(line)
		if !ok {
			continue
		}
		ev := ProgressEvent{TaskID: t.ID, RelPath: t.RelPath, Seconds: seconds, Speed: speed}
		if t.DurationSec > 0 {
			ev.Percent = seconds / t.DurationSec * 100
			if ev.Percent > 100 {
				ev.Percent = 100
			}
		}
		e.opts.OnProgress(ev)
	}

	waitErr := child.Wait()
	if waitErr == nil {
		return nil
	}

	reason := waitErr
	switch {
	case errors.Is(runCtx.Err(), context.DeadlineExceeded):
		reason = fmt.Errorf("timed out after %s", e.opts.TaskTimeout)
	case errors.Is(ctx.Err(), context.Canceled):
		reason = context.Canceled
	}
	return &AttemptError{Tool: cmd.Tool, Err: reason, Tail: tail.lines}
}
