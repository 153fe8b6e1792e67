package catalog

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"runtime"
	"sync"
	"time"

	"go.uber.org/zap"
)

// ToolNotFoundError reports an executable that could not be resolved,
// or resolved but failed its version probe. Fatal for the tool, not
// for the run: tasks simply lose this candidate.
type ToolNotFoundError struct {
	Tool string
	Err  error
}

func (e *ToolNotFoundError) Error() string {
	return fmt.Sprintf("tool %q not usable: %v", e.Tool, e.Err)
}

func (e *ToolNotFoundError) Unwrap() error { return e.Err }

const probeTimeout = 3 * time.Second

// Resolver locates executables and verifies they run. Results are
// cached per executable name; safe for concurrent use.
type Resolver struct {
	binDir string
	logger *zap.Logger

	mu    sync.RWMutex
	cache map[string]resolution
}

type resolution struct {
	path string
	err  error
}

// NewResolver builds a resolver that checks binDir before PATH.
func NewResolver(binDir string, logger *zap.Logger) *Resolver {
	return &Resolver{
		binDir: binDir,
		logger: logger,
		cache:  make(map[string]resolution),
	}
}

// Resolve finds the executable for name and confirms it responds to a
// version probe. probe is the argv to use; nil tries -version then
// --version, which covers ffmpeg-family and most encoders.
func (r *Resolver) Resolve(ctx context.Context, name string, probe []string) (string, error) {
	r.mu.RLock()
	if res, ok := r.cache[name]; ok {
		r.mu.RUnlock()
		return res.path, res.err
	}
	r.mu.RUnlock()

	path, err := r.locate(name)
	if err == nil {
		err = r.verify(ctx, path, probe)
	}
	if err != nil {
		err = &ToolNotFoundError{Tool: name, Err: err}
		path = ""
		r.logger.Debug("tool unusable", zap.String("tool", name), zap.Error(err))
	} else {
		r.logger.Debug("tool resolved", zap.String("tool", name), zap.String("path", path))
	}

	r.mu.Lock()
	r.cache[name] = resolution{path: path, err: err}
	r.mu.Unlock()
	return path, err
}

// locate searches the local bin directory first, then PATH. Absolute
// and relative paths are used as given.
func (r *Resolver) locate(name string) (string, error) {
	if filepath.IsAbs(name) || len(filepath.Dir(name)) > 1 {
		if isExecutable(name) {
			return name, nil
		}
		return "", fmt.Errorf("no executable at %s", name)
	}
	if r.binDir != "" {
		local := filepath.Join(r.binDir, name)
		if runtime.GOOS == "windows" {
			local += ".exe"
		}
		if isExecutable(local) {
			abs, err := filepath.Abs(local)
			if err == nil {
				return abs, nil
			}
			return local, nil
		}
	}
	path, err := exec.LookPath(name)
	if err != nil {
		return "", err
	}
	return path, nil
}

// verify runs the version probe. Some tools only accept one of the
// two conventional flags, so both are tried before giving up.
func (r *Resolver) verify(ctx context.Context, path string, probe []string) error {
	attempts := [][]string{probe}
	if len(probe) == 0 {
		attempts = [][]string{{"-version"}, {"--version"}}
	}
	var err error
	for _, args := range attempts {
		probeCtx, cancel := context.WithTimeout(ctx, probeTimeout)
		cmd := exec.CommandContext(probeCtx, path, args...)
		cmd.Stdout = nil
		cmd.Stderr = nil
		err = cmd.Run()
		cancel()
		if err == nil {
			return nil
		}
	}
	return fmt.Errorf("version probe failed: %w", err)
}

func isExecutable(path string) bool {
	info, err := os.Stat(path)
	if err != nil || info.IsDir() {
		return false
	}
	if runtime.GOOS == "windows" {
		return true
	}
	return info.Mode().Perm()&0o111 != 0
}
