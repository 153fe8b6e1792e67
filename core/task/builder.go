package task

import (
	"context"
	"path/filepath"
	"strings"

	"github.com/lithammer/shortuuid/v4"
	"go.uber.org/zap"

	"github.com/jaco00/media-transcode/core/catalog"
	"github.com/jaco00/media-transcode/core/probe"
	"github.com/jaco00/media-transcode/core/scan"
)

// Issue is a non-fatal problem found while building: a candidate that
// could not be resolved or expanded. The task keeps its remaining
// candidates; a task losing all of them fails later with a clear
// message instead of aborting the run.
type Issue struct {
	RelPath string
	Tool    string
	Reason  string
}

// Options configures a Builder.
type Options struct {
	// Params are resolved tunables (quality, crf, ...) layered over
	// the catalog's defaults.
	Params map[string]string

	// GPU prefers gpu command templates for video. When no video tool
	// offers one the cpu templates are used instead.
	GPU bool

	// BackupRoot mirrors sources after conversion; empty disables.
	BackupRoot string

	// FFprobePath enables duration probing when non-empty.
	FFprobePath string
}

// Builder expands pending files into Tasks.
type Builder struct {
	cat      *catalog.Catalog
	resolver *catalog.Resolver
	opts     Options
	logger   *zap.Logger

	imageExts map[string]struct{}
	videoExts map[string]struct{}

	gpuFallbackLogged bool
}

// NewBuilder wires a builder against an immutable catalog.
func NewBuilder(cat *catalog.Catalog, resolver *catalog.Resolver, opts Options, logger *zap.Logger) *Builder {
	return &Builder{
		cat:       cat,
		resolver:  resolver,
		opts:      opts,
		logger:    logger,
		imageExts: cat.SourceExtensions(catalog.Image),
		videoExts: cat.SourceExtensions(catalog.Video),
	}
}

// Build produces one Task per pending file, in input order. Files
// whose extension no tool claims are dropped silently; per-candidate
// problems come back as Issues.
func (b *Builder) Build(ctx context.Context, pending []scan.MediaFile) ([]Task, []Issue) {
	tasks := make([]Task, 0, len(pending))
	var issues []Issue
	for _, file := range pending {
		if ctx.Err() != nil {
			break
		}
		t, ok := b.buildOne(ctx, file, &issues)
		if !ok {
			continue
		}
		tasks = append(tasks, t)
	}
	return tasks, issues
}

func (b *Builder) buildOne(ctx context.Context, file scan.MediaFile, issues *[]Issue) (Task, bool) {
	mediaType, ok := b.mediaTypeOf(file.Ext)
	if !ok {
		return Task{}, false
	}

	stem := strings.TrimSuffix(file.Path, filepath.Ext(file.Path))
	final := stem + b.cat.OutputFor(mediaType)
	temp := final + ".tmp-" + shortuuid.New()

	t := Task{
		ID:              shortuuid.New(),
		MediaType:       mediaType,
		SourcePath:      file.Path,
		RelPath:         file.RelPath,
		SourceSize:      file.Size,
		TempOutputPath:  temp,
		FinalOutputPath: final,
	}
	if b.opts.BackupRoot != "" {
		t.BackupDir = b.opts.BackupRoot
		t.BackupPath = filepath.Join(b.opts.BackupRoot, file.RelPath)
	}

	mode := catalog.ModeCPU
	if mediaType == catalog.Video && b.opts.GPU {
		mode = catalog.ModeGPU
	}
	t.Commands = b.resolveCandidates(ctx, file, temp, mediaType, mode, issues)

	if len(t.Commands) > 0 {
		t.AllowParallel = b.toolByName(t.Commands[0].Tool).AllowParallel()
	} else {
		t.AllowParallel = mediaType == catalog.Image
	}

	if mediaType == catalog.Video && b.opts.FFprobePath != "" {
		seconds, err := probe.Duration(ctx, b.opts.FFprobePath, file.Path)
		if err != nil {
			b.logger.Debug("duration probe failed", zap.String("file", file.RelPath), zap.Error(err))
		} else {
			t.DurationSec = seconds
		}
	}

	return t, true
}

// resolveCandidates expands every usable tool for the file, falling
// back to cpu templates when gpu was requested but nothing offers it.
func (b *Builder) resolveCandidates(ctx context.Context, file scan.MediaFile, tempOut string, mediaType catalog.Category, mode catalog.Mode, issues *[]Issue) []ResolvedCommand {
	tools := b.cat.ToolsFor(file.Ext, mediaType)

	cmds := b.expandAll(ctx, tools, file, tempOut, mode, issues)
	if len(cmds) == 0 && mode == catalog.ModeGPU && b.anyHasTemplate(tools, catalog.ModeCPU) {
		if !b.gpuFallbackLogged {
			b.logger.Warn("no gpu-capable tool resolved, using cpu templates")
			b.gpuFallbackLogged = true
		}
		cmds = b.expandAll(ctx, tools, file, tempOut, catalog.ModeCPU, issues)
	}
	return cmds
}

func (b *Builder) expandAll(ctx context.Context, tools []*catalog.ToolDefinition, file scan.MediaFile, tempOut string, mode catalog.Mode, issues *[]Issue) []ResolvedCommand {
	var cmds []ResolvedCommand
	for _, tool := range tools {
		tpl, ok := tool.TemplateFor(mode)
		if !ok || len(tpl) == 0 {
			continue
		}

		path, err := b.resolver.Resolve(ctx, tpl[0], tool.Probe)
		if err != nil {
			*issues = append(*issues, Issue{RelPath: file.RelPath, Tool: tool.Name, Reason: err.Error()})
			continue
		}

		args, err := catalog.Template(tpl[1:]).Expand(b.templateVars(file.Path, tempOut))
		if err != nil {
			*issues = append(*issues, Issue{RelPath: file.RelPath, Tool: tool.Name, Reason: err.Error()})
			continue
		}
		cmds = append(cmds, ResolvedCommand{Tool: tool.Name, Path: path, Args: args})
	}
	return cmds
}

// templateVars layers catalog defaults under run params; in/out are
// set last so nothing can redirect a command's input or output.
func (b *Builder) templateVars(in, out string) map[string]string {
	vars := make(map[string]string, len(b.cat.Params)+len(b.opts.Params)+2)
	for k, v := range b.cat.Params {
		vars[strings.ToLower(k)] = v
	}
	for k, v := range b.opts.Params {
		vars[strings.ToLower(k)] = v
	}
	vars["in"] = in
	vars["out"] = out
	return vars
}

func (b *Builder) anyHasTemplate(tools []*catalog.ToolDefinition, mode catalog.Mode) bool {
	for _, tool := range tools {
		if tpl, ok := tool.TemplateFor(mode); ok && len(tpl) > 0 {
			return true
		}
	}
	return false
}

func (b *Builder) mediaTypeOf(ext string) (catalog.Category, bool) {
	if _, ok := b.imageExts[ext]; ok {
		return catalog.Image, true
	}
	if _, ok := b.videoExts[ext]; ok {
		return catalog.Video, true
	}
	return "", false
}

func (b *Builder) toolByName(name string) *catalog.ToolDefinition {
	for i := range b.cat.Tools {
		if b.cat.Tools[i].Name == name {
			return &b.cat.Tools[i]
		}
	}
	return &catalog.ToolDefinition{}
}
