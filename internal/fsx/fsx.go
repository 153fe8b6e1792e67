// Package fsx provides the small set of filesystem primitives the
// conversion pipeline relies on: durable moves, same-directory renames
// and existence probes. Everything here is safe to call concurrently.
package fsx

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"runtime"
)

// renameFunc is swappable so tests can simulate EXDEV without mounting
// a second filesystem.
var renameFunc = os.Rename

// Rename renames src to dst and reports cross-device failures as
// ErrCrossDevice so callers can decide whether to degrade to a copy.
func Rename(src, dst string) error {
	if err := renameFunc(src, dst); err != nil {
		if isEXDEV(err) {
			return &CrossDeviceError{Src: src, Dst: dst, Err: err}
		}
		return err
	}
	return nil
}

// CrossDeviceError marks a rename that failed with EXDEV.
type CrossDeviceError struct {
	Src string
	Dst string
	Err error
}

func (e *CrossDeviceError) Error() string {
	return fmt.Sprintf("cross-device rename %q -> %q: %v", e.Src, e.Dst, e.Err)
}

func (e *CrossDeviceError) Unwrap() error { return e.Err }

// Move relocates src to dst. Same-filesystem moves are a single rename.
// Across filesystems the file is copied next to dst, synced, renamed
// into place and only then is src removed, so an interrupted move never
// loses the original.
func Move(src, dst string) error {
	err := Rename(src, dst)
	if err == nil {
		return nil
	}
	var xdev *CrossDeviceError
	if !errors.As(err, &xdev) {
		return err
	}

	tmp := dst + ".part"
	if err := copyFile(src, tmp); err != nil {
		_ = os.Remove(tmp)
		return fmt.Errorf("copy for cross-device move: %w", err)
	}
	if err := os.Rename(tmp, dst); err != nil {
		_ = os.Remove(tmp)
		return err
	}
	_ = SyncDir(filepath.Dir(dst))
	if err := os.Remove(src); err != nil {
		return fmt.Errorf("remove source after cross-device move: %w", err)
	}
	return nil
}

func copyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	info, err := in.Stat()
	if err != nil {
		return err
	}

	out, err := os.OpenFile(dst, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, info.Mode().Perm())
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		return err
	}
	if err := out.Sync(); err != nil {
		out.Close()
		return err
	}
	return out.Close()
}

// EnsureDir creates dir and any missing parents.
func EnsureDir(dir string) error {
	return os.MkdirAll(dir, 0o755)
}

// FileSize returns the size of a regular file, or an error when the
// path is missing or not a regular file.
func FileSize(path string) (int64, error) {
	info, err := os.Stat(path)
	if err != nil {
		return 0, err
	}
	if !info.Mode().IsRegular() {
		return 0, fmt.Errorf("%s: not a regular file", path)
	}
	return info.Size(), nil
}

// NonEmptyFile reports whether path exists as a regular file with at
// least one byte. Used as the cheap success test after an encoder run.
func NonEmptyFile(path string) bool {
	size, err := FileSize(path)
	return err == nil && size > 0
}

// Exists reports whether path exists at all.
func Exists(path string) bool {
	_, err := os.Lstat(path)
	return err == nil
}

// SyncDir fsyncs a directory. Best effort: some platforms refuse to
// sync directory handles, and a failed directory sync should not fail
// a conversion that already renamed its output into place.
func SyncDir(dir string) error {
	if runtime.GOOS == "windows" {
		return nil
	}
	f, err := os.Open(dir)
	if err != nil {
		return err
	}
	defer f.Close()
	return f.Sync()
}
