package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/term"

	"github.com/jaco00/media-transcode/config"
	"github.com/jaco00/media-transcode/core/catalog"
	"github.com/jaco00/media-transcode/core/executor"
	"github.com/jaco00/media-transcode/core/report"
	"github.com/jaco00/media-transcode/core/scan"
	"github.com/jaco00/media-transcode/core/scheduler"
	"github.com/jaco00/media-transcode/core/task"
	"github.com/jaco00/media-transcode/internal/display"
	"github.com/jaco00/media-transcode/internal/sysres"
)

var (
	flagTools     string
	flagBackupDir string
	flagDelete    bool
	flagParallel  int
	flagGPU       bool
	flagMedia     string
	flagNoRecurse bool
	flagExcludes  []string
	flagParams    []string
	flagDryRun    bool
	flagYes       bool
)

var runCmd = &cobra.Command{
	Use:   "run [directory]",
	Short: "Convert everything pending under a directory",
	Long: `Scan a directory, pair sources with already-converted outputs, and
convert the rest. Re-running after an interruption picks up exactly
where the last run stopped.

Examples:
  mtc run ~/Pictures
  mtc run --media video --gpu --parallel 1 /mnt/footage
  mtc run --backup-dir /mnt/originals --yes ~/Pictures
  mtc run --dry-run --param crf=23 .`,
	Args: cobra.MaximumNArgs(1),
	RunE: runRun,
}

func init() {
	fl := runCmd.Flags()
	fl.StringVar(&flagTools, "tools", "", "tool catalog file (overrides config)")
	fl.StringVar(&flagBackupDir, "backup-dir", "", "move originals here after conversion")
	fl.BoolVar(&flagDelete, "delete-source", false, "delete originals after conversion")
	fl.IntVarP(&flagParallel, "parallel", "p", 0, "worker count (0 = auto)")
	fl.BoolVar(&flagGPU, "gpu", false, "prefer gpu command templates for video")
	fl.StringVarP(&flagMedia, "media", "m", "", "restrict to one category: image or video")
	fl.BoolVar(&flagNoRecurse, "no-recurse", false, "do not descend into subdirectories")
	fl.StringArrayVar(&flagExcludes, "exclude", nil, "directory to skip (repeatable)")
	fl.StringArrayVar(&flagParams, "param", nil, "template parameter KEY=VALUE (repeatable)")
	fl.BoolVarP(&flagDryRun, "dry-run", "n", false, "plan only, convert nothing")
	fl.BoolVarP(&flagYes, "yes", "y", false, "skip the confirmation prompt")
	rootCmd.AddCommand(runCmd)
}

func runRun(cmd *cobra.Command, args []string) error {
	if err := setup(); err != nil {
		return err
	}
	if err := applyRunFlags(cmd, cfg); err != nil {
		return err
	}

	root := "."
	if len(args) > 0 {
		root = args[0]
	}
	absRoot, err := filepath.Abs(root)
	if err != nil {
		return err
	}

	ui := display.New(cfg.Logging.Quiet)

	cat, err := catalog.Load(cfg.Tools.Catalog)
	if err != nil {
		return err
	}

	snap, warnings := sysres.Check(absRoot, cfg.Resources.MinFreeDisk, cfg.Resources.MinFreeMemory)
	for _, w := range warnings {
		ui.Warnf("%s", w)
		log.Warn("resource threshold violated", zap.String("detail", w))
	}
	if len(warnings) > 0 && cfg.Resources.Abort {
		return fmt.Errorf("resource preflight failed: %s", strings.Join(warnings, "; "))
	}
	log.Debug("preflight",
		zap.Uint64("disk_free", snap.DiskFree),
		zap.Uint64("mem_available", snap.MemAvailable),
		zap.Int("cpus", snap.CPUCount))

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	idx, err := scan.Scan(absRoot, scanOptions(cfg, cat), log)
	if err != nil {
		return err
	}
	for _, e := range idx.Ambiguous() {
		ui.Warnf("ambiguous match %q: %d files share one name, all left untouched",
			relKey(absRoot, e.Key), entrySize(e))
	}

	sum := idx.Summary()
	pending := idx.Pending()
	if len(pending) == 0 {
		ui.Infof("nothing to convert under %s", absRoot)
		ui.Summary(report.Build(sum, nil, 0))
		return nil
	}

	backupRoot := cfg.Run.BackupDir
	if backupRoot != "" {
		if backupRoot, err = filepath.Abs(backupRoot); err != nil {
			return err
		}
	}

	resolver := catalog.NewResolver(cfg.Tools.BinDir, log)
	builder := task.NewBuilder(cat, resolver, task.Options{
		Params:      cfg.Params,
		GPU:         cfg.Run.GPU,
		BackupRoot:  backupRoot,
		FFprobePath: ffprobePath(ctx, resolver),
	}, log)

	tasks, issues := builder.Build(ctx, pending)
	for _, is := range issues {
		ui.Warnf("%s: %s", is.RelPath, is.Reason)
	}

	usable := 0
	for i := range tasks {
		if len(tasks[i].Commands) > 0 {
			usable++
		}
	}
	if len(tasks) > 0 && usable == 0 {
		return fmt.Errorf("none of the catalog tools is usable for the %d pending files, check the catalog and PATH", len(tasks))
	}

	if flagDryRun {
		for _, line := range planLines(tasks) {
			ui.Infof("%s", line)
		}
		ui.Infof("dry run: %d conversions planned, nothing executed", len(tasks))
		return nil
	}

	if !confirmDestructive(ui, len(tasks), backupRoot) {
		ui.Infof("aborted, nothing converted")
		return nil
	}

	workers := cfg.Run.Parallel
	if workers == 0 {
		workers = sysres.SuggestWorkers()
	}

	failLog := executor.NewFailLog(cfg.Logging.LogDir)
	exec := executor.New(executor.Options{
		DeleteSource: cfg.Run.DeleteSource,
		VerifyOutput: cfg.Run.VerifyOutput,
		TaskTimeout:  cfg.Run.TaskTimeout,
		OnProgress:   ui.Progress,
	}, failLog, log)

	ui.Banner(absRoot, len(tasks), workers, cfg.Run.GPU)
	ui.StartProgress(len(tasks))
	started := time.Now()

	sched := scheduler.New(scheduler.Options{
		Parallel: workers,
		OnResult: func(r task.Result) {
			ui.TaskDone(r)
			if r.Success {
				log.Info("converted",
					zap.String("file", r.RelPath),
					zap.String("tool", r.ToolUsed),
					zap.Int64("src_bytes", r.SrcBytes),
					zap.Int64("new_bytes", r.NewBytes),
					zap.Duration("elapsed", r.Elapsed))
			}
		},
	}, exec.Run, log)

	results := sched.Run(ctx, tasks)
	ui.StopProgress()

	rep := report.Build(sum, results, time.Since(started))
	if rep.Failures() > 0 {
		rep.FailLogPath = failLog.Path()
	}
	ui.Summary(rep)
	log.Info("run complete",
		zap.Int("attempted", rep.Total().Attempted),
		zap.Int("succeeded", rep.Total().Succeeded),
		zap.Int("failed", rep.Failures()),
		zap.Duration("elapsed", rep.Elapsed))
	return nil
}

// applyRunFlags folds command line overrides into the loaded config
// and validates the merged result. Only flags the user actually set
// override the file.
func applyRunFlags(cmd *cobra.Command, cfg *config.Config) error {
	fl := cmd.Flags()
	if fl.Changed("tools") {
		cfg.Tools.Catalog = flagTools
	}
	if fl.Changed("backup-dir") {
		cfg.Run.BackupDir = flagBackupDir
	}
	if fl.Changed("delete-source") {
		cfg.Run.DeleteSource = flagDelete
	}
	if fl.Changed("parallel") {
		cfg.Run.Parallel = flagParallel
	}
	if fl.Changed("gpu") {
		cfg.Run.GPU = flagGPU
	}
	if fl.Changed("media") {
		cfg.Run.Media = flagMedia
	}
	if fl.Changed("no-recurse") {
		cfg.Scan.IncludeSubdirs = !flagNoRecurse
	}
	cfg.Scan.ExcludeDirs = append(cfg.Scan.ExcludeDirs, flagExcludes...)

	params, err := parseParams(flagParams)
	if err != nil {
		return err
	}
	if len(params) > 0 && cfg.Params == nil {
		cfg.Params = make(map[string]string, len(params))
	}
	for k, v := range params {
		cfg.Params[k] = v
	}
	return cfg.Validate()
}

// parseParams turns repeated KEY=VALUE flags into a map. Keys are
// lowercased to match template placeholder lookup.
func parseParams(pairs []string) (map[string]string, error) {
	if len(pairs) == 0 {
		return nil, nil
	}
	out := make(map[string]string, len(pairs))
	for _, p := range pairs {
		k, v, ok := strings.Cut(p, "=")
		if !ok || k == "" {
			return nil, fmt.Errorf("%w: --param %q is not KEY=VALUE", config.ErrInvalid, p)
		}
		out[strings.ToLower(k)] = v
	}
	return out, nil
}

// scanOptions shapes the scanner from config and catalog. A media
// filter blanks the other category completely so its files are
// neither converted nor reported as orphans.
func scanOptions(cfg *config.Config, cat *catalog.Catalog) scan.Options {
	opts := scan.Options{
		IncludeSubdirs: cfg.Scan.IncludeSubdirs,
		ExcludeDirs:    cfg.Scan.ExcludeDirs,
		MinFileSize:    cfg.Scan.MinFileSize,
	}
	if cfg.Run.Media != config.MediaVideo {
		opts.ImageExts = cat.SourceExtensions(catalog.Image)
		opts.ImageOutputExt = cat.ImageOutputExt
	}
	if cfg.Run.Media != config.MediaImage {
		opts.VideoExts = cat.SourceExtensions(catalog.Video)
		opts.VideoOutputExt = cat.VideoOutputExt
	}
	if cfg.Run.BackupDir != "" {
		if abs, err := filepath.Abs(cfg.Run.BackupDir); err == nil {
			opts.ExcludeDirs = append(opts.ExcludeDirs, abs)
		}
	}
	return opts
}

// confirmDestructive prompts before a run that moves or deletes
// sources. Skipped with --yes and when stdin is not a terminal.
func confirmDestructive(ui *display.UI, n int, backupRoot string) bool {
	if !cfg.Run.DeleteSource && backupRoot == "" {
		return true
	}
	if flagYes || !term.IsTerminal(int(os.Stdin.Fd())) {
		return true
	}
	label := fmt.Sprintf("Move %d originals into %s after conversion", n, backupRoot)
	if cfg.Run.DeleteSource {
		label = fmt.Sprintf("Permanently delete %d originals after conversion", n)
	}
	return ui.Confirm(label)
}

// planLines renders the dry-run plan, one line per task.
func planLines(tasks []task.Task) []string {
	lines := make([]string, 0, len(tasks))
	for _, t := range tasks {
		if len(t.Commands) == 0 {
			lines = append(lines, fmt.Sprintf("%s → %s (no usable tool)",
				t.RelPath, filepath.Base(t.FinalOutputPath)))
			continue
		}
		tools := make([]string, len(t.Commands))
		for i, c := range t.Commands {
			tools[i] = c.Tool
		}
		lines = append(lines, fmt.Sprintf("%s → %s via %s",
			t.RelPath, filepath.Base(t.FinalOutputPath), strings.Join(tools, ", ")))
	}
	return lines
}

// ffprobePath resolves ffprobe for duration probing. Optional: when
// missing, video progress has no percentage and nothing else changes.
func ffprobePath(ctx context.Context, resolver *catalog.Resolver) string {
	path, err := resolver.Resolve(ctx, "ffprobe", nil)
	if err != nil {
		return ""
	}
	return path
}

func relKey(root, key string) string {
	if rel, err := filepath.Rel(root, key); err == nil && !strings.HasPrefix(rel, "..") {
		return rel
	}
	return key
}

func entrySize(e *scan.MatchEntry) int {
	n := len(e.DupOriginals) + len(e.DupConverted)
	if e.Original != nil {
		n++
	}
	if e.Converted != nil {
		n++
	}
	return n
}
