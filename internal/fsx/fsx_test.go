package fsx

import (
	"os"
	"path/filepath"
	"syscall"
	"testing"
)

func TestMoveSameFilesystem(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(dir, "a.bin")
	dst := filepath.Join(dir, "b.bin")
	if err := os.WriteFile(src, []byte("payload"), 0o644); err != nil {
		t.Fatal(err)
	}

	if err := Move(src, dst); err != nil {
		t.Fatalf("Move: %v", err)
	}
	if Exists(src) {
		t.Error("source still present after move")
	}
	got, err := os.ReadFile(dst)
	if err != nil {
		t.Fatal(err)
	}
	if string(got) != "payload" {
		t.Errorf("destination content = %q", got)
	}
}

func TestMoveCrossDeviceFallback(t *testing.T) {
	orig := renameFunc
	calls := 0
	renameFunc = func(src, dst string) error {
		calls++
		if calls == 1 {
			return &os.LinkError{Op: "rename", Old: src, New: dst, Err: syscall.EXDEV}
		}
		return orig(src, dst)
	}
	defer func() { renameFunc = orig }()

	dir := t.TempDir()
	src := filepath.Join(dir, "src", "clip.mov")
	dst := filepath.Join(dir, "dst", "clip.mov")
	if err := EnsureDir(filepath.Dir(src)); err != nil {
		t.Fatal(err)
	}
	if err := EnsureDir(filepath.Dir(dst)); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(src, []byte("frames"), 0o644); err != nil {
		t.Fatal(err)
	}

	if err := Move(src, dst); err != nil {
		t.Fatalf("Move with EXDEV: %v", err)
	}
	if Exists(src) {
		t.Error("source survived cross-device move")
	}
	got, err := os.ReadFile(dst)
	if err != nil {
		t.Fatal(err)
	}
	if string(got) != "frames" {
		t.Errorf("destination content = %q", got)
	}
	if Exists(dst + ".part") {
		t.Error("partial copy left behind")
	}
}

func TestMoveMissingSource(t *testing.T) {
	dir := t.TempDir()
	err := Move(filepath.Join(dir, "absent"), filepath.Join(dir, "out"))
	if err == nil {
		t.Fatal("expected error for missing source")
	}
}

func TestNonEmptyFile(t *testing.T) {
	dir := t.TempDir()

	empty := filepath.Join(dir, "empty")
	if err := os.WriteFile(empty, nil, 0o644); err != nil {
		t.Fatal(err)
	}
	full := filepath.Join(dir, "full")
	if err := os.WriteFile(full, []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}

	if NonEmptyFile(empty) {
		t.Error("empty file reported non-empty")
	}
	if !NonEmptyFile(full) {
		t.Error("non-empty file reported empty")
	}
	if NonEmptyFile(filepath.Join(dir, "absent")) {
		t.Error("missing file reported non-empty")
	}
	if NonEmptyFile(dir) {
		t.Error("directory reported as non-empty file")
	}
}

func TestEnsureDirIdempotent(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "a", "b", "c")
	if err := EnsureDir(dir); err != nil {
		t.Fatal(err)
	}
	if err := EnsureDir(dir); err != nil {
		t.Fatalf("second EnsureDir: %v", err)
	}
}
