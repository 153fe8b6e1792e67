// Package executor runs one conversion task at a time: it tries the
// task's candidate commands in priority order, verifies the output,
// promotes it atomically next to the source and then, and only then,
// touches the source. Every failure either falls through to the next
// candidate or leaves the source exactly as it was.
package executor

import (
	"context"
	"os"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/jaco00/media-transcode/core/task"
	"github.com/jaco00/media-transcode/internal/fsx"
)

// Options configures an Executor shared by all workers.
type Options struct {
	// DeleteSource removes the source after a durable promotion.
	// Ignored when the task carries a backup path.
	DeleteSource bool

	// VerifyOutput additionally checks the output's magic bytes
	// against the task's media type before accepting it.
	VerifyOutput bool

	// TaskTimeout bounds one tool invocation. 0 disables.
	TaskTimeout time.Duration

	// OnProgress receives cosmetic progress pulses. May be nil.
	OnProgress func(ProgressEvent)
}

// Executor is safe for concurrent use; one instance serves the whole
// worker pool.
type Executor struct {
	opts    Options
	failLog *FailLog
	logger  *zap.Logger

	promoteMu sync.Mutex
	backupMu  sync.Mutex
}

// New builds an executor. failLog is shared by reference: its mutex
// is what keeps concurrent failure lines whole.
func New(opts Options, failLog *FailLog, logger *zap.Logger) *Executor {
	return &Executor{opts: opts, failLog: failLog, logger: logger}
}

// Run executes one task to completion. It never returns an error:
// every outcome, including cancellation, is a Result.
func (e *Executor) Run(ctx context.Context, t task.Task) task.Result {
	res := task.Result{
		TaskID:    t.ID,
		RelPath:   t.RelPath,
		MediaType: t.MediaType,
		SrcBytes:  t.SourceSize,
		Started:   time.Now(),
	}
	defer func() {
		res.Elapsed = time.Since(res.Started)
		e.removeTemp(t.TempOutputPath)
	}()

	if len(t.Commands) == 0 {
		res.ErrMsg = "no usable tool for this file"
		e.recordFailure(t.RelPath, "none", res.ErrMsg)
		return res
	}

	for _, cmd := range t.Commands {
		if err := ctx.Err(); err != nil {
			res.ErrMsg = err.Error()
			return res
		}

		attemptErr := e.attempt(ctx, &t, cmd)
		if attemptErr != nil {
			e.removeTemp(t.TempOutputPath)
			res.ErrMsg = attemptErr.Error()
			e.recordFailure(t.RelPath, cmd.Tool, attemptErr.Error())
			e.logger.Debug("attempt failed, trying next candidate",
				zap.String("file", t.RelPath),
				zap.String("tool", cmd.Tool),
				zap.Error(attemptErr))
			continue
		}

		finalPath, conflicted, err := e.promote(&t)
		if err != nil {
			e.removeTemp(t.TempOutputPath)
			res.ErrMsg = err.Error()
			e.recordFailure(t.RelPath, cmd.Tool, err.Error())
			return res
		}
		res.FinalPath = finalPath
		res.Conflicted = conflicted
		res.ToolUsed = cmd.Tool
		if size, err := fsx.FileSize(finalPath); err == nil {
			res.NewBytes = size
		}

		if err := e.finalize(&t); err != nil {
			// The converted output stays; the source stays. A rerun
			// sees the pair as already converted and nothing is lost,
			// but this run must not count it as a success.
			res.ErrMsg = err.Error()
			e.recordFailure(t.RelPath, cmd.Tool, err.Error())
			e.logger.Error("source handling failed after promotion",
				zap.String("file", t.RelPath), zap.Error(err))
			return res
		}

		res.Success = true
		return res
	}

	// All candidates failed; the source was never touched.
	e.logger.Warn("all tools failed", zap.String("file", t.RelPath), zap.String("reason", res.ErrMsg))
	return res
}

// attempt runs one candidate and applies the success tests: zero exit,
// non-empty output, and optionally a magic-byte check. On success the
// temp file is left in place for promotion.
func (e *Executor) attempt(ctx context.Context, t *task.Task, cmd task.ResolvedCommand) *AttemptError {
	if err := e.runCommand(ctx, t, cmd); err != nil {
		return err
	}
	if !fsx.NonEmptyFile(t.TempOutputPath) {
		return &AttemptError{Tool: cmd.Tool, Err: errEmptyOutput}
	}
	if e.opts.VerifyOutput {
		if err := verifyOutput(t.TempOutputPath, t.MediaType); err != nil {
			return &AttemptError{Tool: cmd.Tool, Err: err}
		}
	}
	return nil
}

func (e *Executor) removeTemp(path string) {
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		e.logger.Warn("temp file cleanup failed", zap.String("path", path), zap.Error(err))
	}
}

func (e *Executor) recordFailure(relPath, tool, reason string) {
	if err := e.failLog.Record(relPath, tool, reason); err != nil {
		e.logger.Warn("failure log write failed", zap.Error(err))
	}
}
