package executor

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"
)

// FailLog appends one line per failed conversion attempt to a daily
// log file. Workers share one instance by reference; the mutex is the
// only thing that keeps concurrent appends whole.
type FailLog struct {
	mu  sync.Mutex
	dir string

	// now is swappable for tests.
	now func() time.Time
}

// NewFailLog writes under dir, creating it on first use.
func NewFailLog(dir string) *FailLog {
	return &FailLog{dir: dir, now: time.Now}
}

// Record appends a failure line:
//
//	[HH:mm:ss] FAILED: <relativePath> | Attempt: <toolLabel> | Reason: <message>
//
// The file rolls over daily by name (failed-YYYY-MM-DD.log).
func (fl *FailLog) Record(relPath, toolLabel, reason string) error {
	fl.mu.Lock()
	defer fl.mu.Unlock()

	if err := os.MkdirAll(fl.dir, 0o755); err != nil {
		return err
	}
	now := fl.now()
	path := filepath.Join(fl.dir, "failed-"+now.Format("2006-01-02")+".log")

	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return err
	}
	defer f.Close()

	line := fmt.Sprintf("[%s] FAILED: %s | Attempt: %s | Reason: %s\n",
		now.Format("15:04:05"), relPath, toolLabel, reason)
	_, err = f.WriteString(line)
	return err
}

// Path returns today's log file path, whether or not it exists yet.
func (fl *FailLog) Path() string {
	return filepath.Join(fl.dir, "failed-"+fl.now().Format("2006-01-02")+".log")
}
