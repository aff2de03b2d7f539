package cli

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/matzehuels/ercanvas/pkg/diagram"
	"github.com/matzehuels/ercanvas/pkg/geometry"
	"github.com/matzehuels/ercanvas/pkg/render"
)

// exportOptions holds the flags of the export command.
type exportOptions struct {
	formats string
	output  string
	layout  geometry.Metrics
}

// exportCommand creates the "export" command.
func (c *CLI) exportCommand() *cobra.Command {
	var opts exportOptions

	cmd := &cobra.Command{
		Use:   "export <model.json>",
		Short: "Render a model file to images and documents",
		Long: `Render a model file in one or more formats.

Visual formats (svg, png, pdf) draw the canvas at natural scale without
selection or editing controls. graphviz lays the model out automatically.

Formats: ` + formatList(),
		Example: `  ercanvas export school.json
  ercanvas export school.json -f svg,png,csv -o out/school`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := c.loadConfig()
			if err != nil {
				return err
			}
			opts.layout = cfg.Layout
			m, err := readModel(args[0])
			if err != nil {
				return err
			}
			paths, err := exportAll(cmd.Context(), m, outputBase(args[0], opts.output), opts)
			if err != nil {
				return err
			}
			printSuccess("Exported %d file(s)", len(paths))
			printModelStats(m)
			for _, p := range paths {
				printFile(p)
			}
			return nil
		},
	}

	cmd.Flags().StringVarP(&opts.formats, "format", "f", "svg", "comma-separated output formats")
	cmd.Flags().StringVarP(&opts.output, "output", "o", "", "output path stem (default: input name)")
	_ = cmd.RegisterFlagCompletionFunc("format", func(*cobra.Command, []string, string) ([]string, cobra.ShellCompDirective) {
		var out []string
		for _, f := range render.Formats() {
			out = append(out, string(f))
		}
		return out, cobra.ShellCompDirectiveNoFileComp
	})
	return cmd
}

// exportAll renders every requested format concurrently and writes
// base.<ext> for each. Returned paths are sorted.
func exportAll(ctx context.Context, m diagram.Model, base string, opts exportOptions) ([]string, error) {
	formats, err := parseFormats(opts.formats)
	if err != nil {
		return nil, err
	}
	if dir := filepath.Dir(base); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, err
		}
	}

	logger := loggerFromContext(ctx)
	prog := newProgress(logger)
	paths := make([]string, len(formats))

	g, gctx := errgroup.WithContext(ctx)
	for i, f := range formats {
		g.Go(func() error {
			data, err := render.Export(gctx, m, opts.layout, f)
			if err != nil {
				return fmt.Errorf("%s: %w", f, err)
			}
			path := base + "." + f.Extension()
			if f == render.FormatGraphviz {
				path = base + ".graphviz.svg"
			}
			if err := os.WriteFile(path, data, 0o644); err != nil {
				return err
			}
			logger.Debug("wrote export", "format", f, "path", path, "bytes", len(data))
			paths[i] = path
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	prog.done(fmt.Sprintf("Rendered %s", strings.Join(stringsOf(formats), ", ")))
	sort.Strings(paths)
	return paths, nil
}

// dictionaryCommand creates the "dictionary" command.
func (c *CLI) dictionaryCommand() *cobra.Command {
	var format string

	cmd := &cobra.Command{
		Use:   "dictionary <model.json>",
		Short: "Print the data dictionary of a model",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			m, err := readModel(args[0])
			if err != nil {
				return err
			}
			switch format {
			case "table":
				rows := render.DataDictionary(m)
				if len(rows) == 0 {
					printWarning("No entities modeled yet")
					return nil
				}
				fmt.Println(dictionaryTable(rows))
			case "csv":
				data, err := render.DictionaryCSV(m)
				if err != nil {
					return err
				}
				_, err = os.Stdout.Write(data)
				return err
			case "md", "markdown":
				fmt.Print(render.DictionaryMarkdown(m))
			default:
				return fmt.Errorf("unknown dictionary format %q (want table, csv or md)", format)
			}
			return nil
		},
	}

	cmd.Flags().StringVarP(&format, "format", "f", "table", "table, csv or md")
	return cmd
}

func formatList() string { return strings.Join(stringsOf(render.Formats()), ", ") }
