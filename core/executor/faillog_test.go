package executor

import (
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"
)

func TestFailLogFormatAndDailyFile(t *testing.T) {
	dir := t.TempDir()
	fl := NewFailLog(dir)
	fl.now = func() time.Time {
		return time.Date(2026, 3, 14, 9, 26, 53, 0, time.Local)
	}

	if err := fl.Record("clips/a.mov", "ffmpeg-x265", "exit status 1"); err != nil {
		t.Fatal(err)
	}

	want := filepath.Join(dir, "failed-2026-03-14.log")
	if fl.Path() != want {
		t.Errorf("path = %s, want %s", fl.Path(), want)
	}
	data, err := os.ReadFile(want)
	if err != nil {
		t.Fatal(err)
	}
	line := strings.TrimSpace(string(data))
	if line != "[09:26:53] FAILED: clips/a.mov | Attempt: ffmpeg-x265 | Reason: exit status 1" {
		t.Errorf("line = %q", line)
	}
}

func TestFailLogAppends(t *testing.T) {
	dir := t.TempDir()
	fl := NewFailLog(dir)

	for i := 0; i < 3; i++ {
		if err := fl.Record("x.jpg", "avifenc", "boom"); err != nil {
			t.Fatal(err)
		}
	}
	data, err := os.ReadFile(fl.Path())
	if err != nil {
		t.Fatal(err)
	}
	if n := strings.Count(string(data), "FAILED:"); n != 3 {
		t.Errorf("entries = %d, want 3", n)
	}
}

func TestFailLogConcurrentWritesStayWhole(t *testing.T) {
	dir := t.TempDir()
	fl := NewFailLog(dir)

	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_ = fl.Record("p.png", "nconvert", "some long failure reason to interleave")
		}()
	}
	wg.Wait()

	data, err := os.ReadFile(fl.Path())
	if err != nil {
		t.Fatal(err)
	}
	lines := strings.Split(strings.TrimSpace(string(data)), "\n")
	if len(lines) != 16 {
		t.Fatalf("lines = %d, want 16", len(lines))
	}
	for _, l := range lines {
		if !strings.HasSuffix(l, "| Reason: some long failure reason to interleave") {
			t.Errorf("torn line: %q", l)
		}
	}
}

func TestFailLogCreatesDirectory(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "deep", "logs")
	fl := NewFailLog(dir)
	if err := fl.Record("a.jpg", "avifenc", "r"); err != nil {
		t.Fatal(err)
	}
	if _, err := os.Stat(fl.Path()); err != nil {
		t.Error(err)
	}
}
