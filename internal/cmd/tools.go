package cmd

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/fatih/color"
	"github.com/pterm/pterm"
	"github.com/spf13/cobra"

	"github.com/jaco00/media-transcode/core/catalog"
)

var toolsCatalogFlag string

var toolsCmd = &cobra.Command{
	Use:   "tools",
	Short: "List catalog tools and whether they resolve",
	Long: `Load the tool catalog, locate every executable it references and
print the result. Use this to see which conversion paths a run would
actually have available on this machine.`,
	Args: cobra.NoArgs,
	RunE: runTools,
}

func init() {
	toolsCmd.Flags().StringVar(&toolsCatalogFlag, "tools", "", "tool catalog file (overrides config)")
	rootCmd.AddCommand(toolsCmd)
}

func runTools(cmd *cobra.Command, args []string) error {
	if err := setup(); err != nil {
		return err
	}
	if cmd.Flags().Changed("tools") {
		cfg.Tools.Catalog = toolsCatalogFlag
	}

	cat, err := catalog.Load(cfg.Tools.Catalog)
	if err != nil {
		return err
	}
	resolver := catalog.NewResolver(cfg.Tools.BinDir, log)

	data := pterm.TableData{{"TOOL", "CATEGORY", "PRIORITY", "FORMATS", "STATUS"}}
	available := 0
	for i := range cat.Tools {
		td := &cat.Tools[i]
		status, usable := toolStatus(cmd, resolver, td)
		if usable {
			available++
		}
		data = append(data, []string{
			td.Name,
			string(td.Category),
			strconv.Itoa(td.Priority),
			strings.Join(td.Formats, " "),
			status,
		})
	}

	if err := pterm.DefaultTable.WithHasHeader().WithData(data).Render(); err != nil {
		return err
	}
	fmt.Printf("\n%d of %d tools available (outputs: %s images, %s videos)\n",
		available, len(cat.Tools), cat.ImageOutputExt, cat.VideoOutputExt)
	return nil
}

// toolStatus resolves every distinct executable a tool can invoke and
// folds the outcomes into one cell. A tool counts as usable when at
// least one of its executables resolves.
func toolStatus(cmd *cobra.Command, resolver *catalog.Resolver, td *catalog.ToolDefinition) (string, bool) {
	var parts []string
	usable := false
	for _, name := range executables(td) {
		path, err := resolver.Resolve(cmd.Context(), name, td.Probe)
		if err != nil {
			parts = append(parts, color.RedString("missing %s", name))
			continue
		}
		usable = true
		parts = append(parts, color.GreenString("ok %s", path))
	}
	if len(parts) == 0 {
		return color.RedString("no command template"), false
	}
	return strings.Join(parts, ", "), usable
}

// executables lists the distinct binaries across a tool's templates.
// Mode variants usually share one binary and differ only in arguments.
func executables(td *catalog.ToolDefinition) []string {
	seen := make(map[string]struct{}, 2)
	var out []string
	for _, mode := range []catalog.Mode{catalog.ModeCPU, catalog.ModeGPU} {
		tpl, ok := td.TemplateFor(mode)
		if !ok || len(tpl) == 0 {
			continue
		}
		if _, dup := seen[tpl[0]]; dup {
			continue
		}
		seen[tpl[0]] = struct{}{}
		out = append(out, tpl[0])
	}
	return out
}
