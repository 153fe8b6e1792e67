package executor

import (
	"bufio"
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/jaco00/media-transcode/core/task"
)

func TestParseProgress(t *testing.T) {
	cases := []struct {
		line    string
		seconds float64
		speed   string
		ok      bool
	}{
		{"frame= 240 fps= 48 time=00:00:10.00 bitrate= 901.2kbits/s speed=1.92x", 10, "1.92x", true},
		{"frame= 501 time=00:01:30.50 speed= 0.8x", 90.5, "0.8x", true},
		{"time=01:00:00.00", 3600, "", true},
		{"size=  1024kB bitrate= 901.2kbits/s", 0, "", false},
		{"encoded 120 frames", 0, "", false},
	}
	for _, tc := range cases {
		seconds, speed, ok := parseProgress(tc.line)
		if ok != tc.ok || seconds != tc.seconds || speed != tc.speed {
			t.Errorf("parseProgress(%q) = %v %q %v, want %v %q %v",
				tc.line, seconds, speed, ok, tc.seconds, tc.speed, tc.ok)
		}
	}
}

func TestScanCRLines(t *testing.T) {
	input := "first line\nprogress a\rprogress b\rlast line\n"
	sc := bufio.NewScanner(strings.NewReader(input))
	sc.Split(scanCRLines)

	var got []string
	for sc.Scan() {
		got = append(got, sc.Text())
	}
	want := []string{"first line", "progress a", "progress b", "last line"}
	if len(got) != len(want) {
		t.Fatalf("lines = %q", got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("line %d = %q, want %q", i, got[i], want[i])
		}
	}
}

func TestTailBufferKeepsLastLines(t *testing.T) {
	var tb tailBuffer
	tb.add("   ")
	for i := 0; i < stderrTailSize+5; i++ {
		tb.add("line")
	}
	if len(tb.lines) != stderrTailSize {
		t.Errorf("tail size = %d, want %d", len(tb.lines), stderrTailSize)
	}
}

func TestAttemptErrorPrefersInformativeLine(t *testing.T) {
	err := &AttemptError{
		Tool: "ffmpeg",
		Err:  errors.New("exit status 1"),
		Tail: []string{
			"Error while decoding stream #0:0: Invalid data found",
			"frame= 100 time=00:00:04.00 speed=1.0x",
		},
	}
	msg := err.Error()
	if !strings.Contains(msg, "Invalid data found") {
		t.Errorf("informative stderr line missing: %q", msg)
	}
	if strings.Contains(msg, "speed=1.0x") {
		t.Errorf("progress noise leaked into message: %q", msg)
	}
}

func TestRunCommandEmitsProgressEvents(t *testing.T) {
	root := t.TempDir()
	tk := imageTask(t, root)
	tk.DurationSec = 20
	// ffmpeg rewrites its status line with carriage returns.
	tool := script(t, t.TempDir(), "chatty", strings.Join([]string{
		`printf 'frame=1 time=00:00:05.00 speed=1.0x\r' >&2`,
		`printf 'frame=2 time=00:00:10.00 speed=1.1x\r' >&2`,
		`cat "$1" > "$2"`,
	}, "\n"))
	tk.Commands = []task.ResolvedCommand{{Tool: "chatty", Path: tool, Args: []string{tk.SourcePath, tk.TempOutputPath}}}

	var events []ProgressEvent
	ex := New(Options{OnProgress: func(ev ProgressEvent) { events = append(events, ev) }},
		NewFailLog(t.TempDir()), zap.NewNop())
	res := ex.Run(context.Background(), tk)

	if !res.Success {
		t.Fatalf("result = %+v", res)
	}
	if len(events) != 2 {
		t.Fatalf("events = %+v", events)
	}
	last := events[len(events)-1]
	if last.Seconds != 10 || last.Speed != "1.1x" {
		t.Errorf("last event = %+v", last)
	}
	if last.Percent != 50 {
		t.Errorf("percent = %v, want 50", last.Percent)
	}
	if last.RelPath != "photo.jpg" {
		t.Errorf("relPath = %q", last.RelPath)
	}
}

func TestRunCommandTimeout(t *testing.T) {
	root := t.TempDir()
	tk := imageTask(t, root)
	tool := script(t, t.TempDir(), "stuck", `sleep 30`)
	tk.Commands = []task.ResolvedCommand{{Tool: "stuck", Path: tool, Args: []string{tk.SourcePath, tk.TempOutputPath}}}

	ex, _ := newExecutor(t, Options{TaskTimeout: 50 * time.Millisecond})
	res := ex.Run(context.Background(), tk)

	if res.Success {
		t.Fatal("stuck tool reported success")
	}
	if !strings.Contains(res.ErrMsg, "timed out") {
		t.Errorf("errMsg = %q", res.ErrMsg)
	}
}
