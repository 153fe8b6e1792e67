// Package catalog loads the declarative tool catalog: which external
// encoders exist, what they accept, how to invoke them and in which
// order to try them. The catalog is parsed once at startup and stays
// immutable for the whole run; components receive it by reference.
package catalog

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"sort"
	"strings"
)

// ErrCatalog wraps every catalog load or validation failure. It is
// fatal: the run aborts before any file is touched.
var ErrCatalog = errors.New("invalid tool catalog")

// Category says what kind of media a tool converts.
type Category string

const (
	Image Category = "image"
	Video Category = "video"
)

func (c Category) valid() bool { return c == Image || c == Video }

// Mode selects between alternate command templates of a video tool.
type Mode string

const (
	ModeGPU Mode = "gpu"
	ModeCPU Mode = "cpu"
)

// ToolDefinition describes one external encoder.
type ToolDefinition struct {
	// Name identifies the tool and is the executable looked up when
	// the command template's first token does not override it.
	Name string `json:"name"`

	// Category is image or video.
	Category Category `json:"category"`

	// Formats are the source extensions this tool accepts, lowercase
	// and dot-prefixed after normalization.
	Formats []string `json:"formats"`

	// Priority orders candidates; lower runs first. Tools sharing a
	// priority keep their declaration order.
	Priority int `json:"priority"`

	// Command is the argument template: a shell-style string or a
	// JSON array of tokens, with $IN$/$OUT$/$PARAM$ placeholders.
	// The first token is the executable.
	Command Template `json:"command"`

	// Modes optionally carries gpu/cpu alternates (video only). When
	// present it replaces Command for the selected mode.
	Modes map[Mode]Template `json:"modes,omitempty"`

	// Parallel overrides the category default (image true, video
	// false) for routing into the concurrent worker pool.
	Parallel *bool `json:"parallel,omitempty"`

	// Probe is the argv used to verify the executable works. Empty
	// means try -version, then --version.
	Probe []string `json:"probe,omitempty"`
}

// Executable returns the program this tool runs for the given mode.
func (t *ToolDefinition) Executable(mode Mode) string {
	if tpl, ok := t.template(mode); ok && len(tpl) > 0 {
		return tpl[0]
	}
	return t.Name
}

// template picks the argument template for mode. For tools without
// alternates the base command is used regardless of mode. The second
// return is false when the tool offers alternates but not this one.
func (t *ToolDefinition) template(mode Mode) (Template, bool) {
	if len(t.Modes) == 0 {
		return t.Command, len(t.Command) > 0
	}
	tpl, ok := t.Modes[mode]
	return tpl, ok
}

// TemplateFor is the exported form of template.
func (t *ToolDefinition) TemplateFor(mode Mode) (Template, bool) {
	return t.template(mode)
}

// AllowParallel reports whether tasks run by this tool may share the
// worker pool. Video encoders saturate the machine on their own, so
// they default to the sequential lane.
func (t *ToolDefinition) AllowParallel() bool {
	if t.Parallel != nil {
		return *t.Parallel
	}
	return t.Category == Image
}

// Catalog is the parsed tool configuration.
type Catalog struct {
	// ImageOutputExt names converted images: sibling of the source,
	// basename + this extension (".avif").
	ImageOutputExt string `json:"image_output_ext"`

	// VideoOutputExt names converted video. It is a compound suffix
	// (".h265.mp4") so converted outputs are recognizable on rescan.
	VideoOutputExt string `json:"video_output_ext"`

	// Params are default values for template placeholders; the
	// application config and flags override them.
	Params map[string]string `json:"params,omitempty"`

	Tools []ToolDefinition `json:"tools"`

	// Checker is the quality-metric section consumed by the external
	// comparison tool. Parsed losslessly, never interpreted here.
	Checker json.RawMessage `json:"checker,omitempty"`
}

// Load reads and validates the catalog JSON at path.
func Load(path string) (*Catalog, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCatalog, err)
	}
	var cat Catalog
	if err := json.Unmarshal(data, &cat); err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrCatalog, path, err)
	}
	if err := cat.normalize(); err != nil {
		return nil, err
	}
	return &cat, nil
}

func (c *Catalog) normalize() error {
	if c.ImageOutputExt == "" {
		c.ImageOutputExt = ".avif"
	}
	if c.VideoOutputExt == "" {
		c.VideoOutputExt = ".h265.mp4"
	}
	if !strings.HasPrefix(c.ImageOutputExt, ".") || !strings.HasPrefix(c.VideoOutputExt, ".") {
		return fmt.Errorf("%w: output extensions must start with a dot", ErrCatalog)
	}
	if len(c.Tools) == 0 {
		return fmt.Errorf("%w: no tools defined", ErrCatalog)
	}

	seen := make(map[string]struct{}, len(c.Tools))
	for i := range c.Tools {
		t := &c.Tools[i]
		if t.Name == "" {
			return fmt.Errorf("%w: tool #%d has no name", ErrCatalog, i)
		}
		if _, dup := seen[t.Name]; dup {
			return fmt.Errorf("%w: duplicate tool name %q", ErrCatalog, t.Name)
		}
		seen[t.Name] = struct{}{}
		if !t.Category.valid() {
			return fmt.Errorf("%w: tool %q: category must be image or video, got %q", ErrCatalog, t.Name, t.Category)
		}
		if len(t.Formats) == 0 {
			return fmt.Errorf("%w: tool %q: no formats", ErrCatalog, t.Name)
		}
		for j, ext := range t.Formats {
			ext = strings.ToLower(strings.TrimSpace(ext))
			if !strings.HasPrefix(ext, ".") {
				ext = "." + ext
			}
			t.Formats[j] = ext
		}
		if len(t.Command) == 0 && len(t.Modes) == 0 {
			return fmt.Errorf("%w: tool %q: no command template", ErrCatalog, t.Name)
		}
		for mode, tpl := range t.Modes {
			if mode != ModeGPU && mode != ModeCPU {
				return fmt.Errorf("%w: tool %q: unknown mode %q", ErrCatalog, t.Name, mode)
			}
			if len(tpl) == 0 {
				return fmt.Errorf("%w: tool %q: empty %s template", ErrCatalog, t.Name, mode)
			}
		}
	}

	// An extension claimed by both categories would make source
	// classification ambiguous.
	images := c.SourceExtensions(Image)
	for ext := range c.SourceExtensions(Video) {
		if _, ok := images[ext]; ok {
			return fmt.Errorf("%w: extension %s is claimed by both image and video tools", ErrCatalog, ext)
		}
	}
	return nil
}

// ToolsFor returns the tools of a category accepting ext, sorted by
// ascending priority with declaration order breaking ties.
func (c *Catalog) ToolsFor(ext string, cat Category) []*ToolDefinition {
	ext = strings.ToLower(ext)
	var out []*ToolDefinition
	for i := range c.Tools {
		t := &c.Tools[i]
		if t.Category != cat {
			continue
		}
		for _, f := range t.Formats {
			if f == ext {
				out = append(out, t)
				break
			}
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Priority < out[j].Priority })
	return out
}

// SourceExtensions returns the union of formats for a category. The
// scanner uses it to recognize convertible files.
func (c *Catalog) SourceExtensions(cat Category) map[string]struct{} {
	set := make(map[string]struct{})
	for i := range c.Tools {
		if c.Tools[i].Category != cat {
			continue
		}
		for _, f := range c.Tools[i].Formats {
			set[f] = struct{}{}
		}
	}
	return set
}

// OutputFor returns the output extension or suffix for a category.
func (c *Catalog) OutputFor(cat Category) string {
	if cat == Video {
		return c.VideoOutputExt
	}
	return c.ImageOutputExt
}
