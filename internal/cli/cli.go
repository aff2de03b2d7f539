package cli

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/charmbracelet/log"
	"github.com/spf13/cobra"

	"github.com/matzehuels/ercanvas/internal/config"
	"github.com/matzehuels/ercanvas/pkg/buildinfo"
	"github.com/matzehuels/ercanvas/pkg/cache"
	"github.com/matzehuels/ercanvas/pkg/diagram"
	"github.com/matzehuels/ercanvas/pkg/httputil"
	pkgio "github.com/matzehuels/ercanvas/pkg/io"
	"github.com/matzehuels/ercanvas/pkg/render"
	"github.com/matzehuels/ercanvas/pkg/tutor"
)

// =============================================================================
// Constants
// =============================================================================

// appName is the application name used for directories and display.
const appName = "ercanvas"

// Log levels exported for use in main.go.
const (
	LogDebug = log.DebugLevel
	LogInfo  = log.InfoLevel
)

// =============================================================================
// CLI - Central CLI State
// =============================================================================

// CLI holds shared state for all commands.
type CLI struct {
	Logger *log.Logger

	configPath string
	noCache    bool
}

// New creates a new CLI instance with a default logger.
func New(w io.Writer, level log.Level) *CLI {
	return &CLI{Logger: newLogger(w, level)}
}

// SetLogLevel updates the logger's level.
func (c *CLI) SetLogLevel(level log.Level) {
	c.Logger.SetLevel(level)
}

// RootCommand creates the root cobra command with all subcommands registered.
func (c *CLI) RootCommand() *cobra.Command {
	root := &cobra.Command{
		Use:          appName,
		Short:        "ercanvas edits entity-relationship diagrams",
		Long:         `ercanvas is an entity-relationship diagram editor for data-modeling practice. It renders diagrams, exports them, serves the canvas API, and asks a text service for case studies, feedback and SQL.`,
		Version:      buildinfo.Current().Version,
		SilenceUsage: true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			cmd.SetContext(withLogger(cmd.Context(), c.Logger))
		},
	}

	root.SetVersionTemplate(buildinfo.Template())
	root.PersistentFlags().StringVar(&c.configPath, "config", "", "config file (default ~/.config/ercanvas/config.toml)")
	root.PersistentFlags().BoolVar(&c.noCache, "no-cache", false, "bypass the response cache")

	root.AddCommand(c.scenarioCommand())
	root.AddCommand(c.evaluateCommand())
	root.AddCommand(c.sqlCommand())
	root.AddCommand(c.hintCommand())
	root.AddCommand(c.exportCommand())
	root.AddCommand(c.dictionaryCommand())
	root.AddCommand(c.serveCommand())
	root.AddCommand(c.editCommand())
	root.AddCommand(c.cacheCommand())
	root.AddCommand(c.completionCommand())
	registerCompletions(root)

	return root
}

// =============================================================================
// Factories
// =============================================================================

func (c *CLI) loadConfig() (config.Config, error) {
	cfg, err := config.Load(c.configPath)
	if err != nil {
		return config.Config{}, err
	}
	c.Logger.Debug("config loaded", "path", c.configPath, "storage", cfg.Storage.Backend, "cache", cfg.Cache.Backend)
	return cfg, nil
}

// newCache opens the configured response cache. A file cache that cannot be
// created degrades to no caching.
func (c *CLI) newCache(ctx context.Context, cfg config.Config) (cache.Cache, error) {
	if c.noCache {
		return cache.NewNullCache(), nil
	}
	switch cfg.Cache.Backend {
	case "none":
		return cache.NewNullCache(), nil
	case "redis":
		return cache.NewRedisCache(ctx, cache.RedisConfig{
			Addr:     cfg.Cache.Addr,
			Password: cfg.Cache.Password,
			DB:       cfg.Cache.DB,
		})
	case "", "file":
		dir := cfg.Cache.Dir
		if dir == "" {
			d, err := cacheDir()
			if err != nil {
				return cache.NewNullCache(), nil
			}
			dir = d
		}
		fc, err := cache.NewFileCache(dir)
		if err != nil {
			c.Logger.Warn("cache disabled", "dir", dir, "err", err)
			return cache.NewNullCache(), nil
		}
		return fc, nil
	}
	return nil, fmt.Errorf("unknown cache backend %q", cfg.Cache.Backend)
}

// newTutor builds the cached text-service client.
func (c *CLI) newTutor(cfg config.Config, ch cache.Cache) tutor.Service {
	t := cfg.Tutor
	client := tutor.NewClient(t.APIKey,
		tutor.WithEndpoint(t.Endpoint),
		tutor.WithModels(t.FastModel, t.ReasoningModel),
		tutor.WithLanguage(t.Language),
		tutor.WithRetry(t.Attempts, tutor.DefaultRetryDelay),
		tutor.WithHTTPClient(httputil.NewHTTPClient(t.Timeout.Duration)),
		tutor.WithLogger(c.Logger),
	)
	return tutor.NewCached(client, ch, tutor.WithTTL(cfg.Cache.TTL.Duration))
}

// =============================================================================
// Paths
// =============================================================================

// cacheDir returns the cache directory using XDG standard (~/.cache/ercanvas/).
func cacheDir() (string, error) {
	if cacheHome := os.Getenv("XDG_CACHE_HOME"); cacheHome != "" {
		return filepath.Join(cacheHome, appName), nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, ".cache", appName), nil
}

// =============================================================================
// Helpers
// =============================================================================

// readModel loads a model file, or stdin when path is "-".
func readModel(path string) (diagram.Model, error) {
	if path == "-" {
		return pkgio.ReadModel(os.Stdin)
	}
	return pkgio.ImportModel(path)
}

// parseFormats parses a comma-separated format list.
func parseFormats(s string) ([]render.Format, error) {
	if strings.TrimSpace(s) == "" {
		return []render.Format{render.FormatSVG}, nil
	}
	var out []render.Format
	seen := make(map[render.Format]bool)
	for _, part := range strings.Split(s, ",") {
		f, err := render.ParseFormat(part)
		if err != nil {
			return nil, err
		}
		if !seen[f] {
			seen[f] = true
			out = append(out, f)
		}
	}
	return out, nil
}

// outputBase returns the output path stem for a model file.
func outputBase(input, output string) string {
	if output != "" {
		return strings.TrimSuffix(output, filepath.Ext(output))
	}
	if input == "-" {
		return "diagram"
	}
	return strings.TrimSuffix(input, filepath.Ext(input))
}
