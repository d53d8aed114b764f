package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/qingchenyouforcc/neuroSangSpider-sub000/internal/app"
	"github.com/qingchenyouforcc/neuroSangSpider-sub000/internal/config"
)

var version = "dev"

var (
	configPath string
	jsonOutput bool
	logLevel   string
)

var rootCmd = &cobra.Command{
	Use:   "songcat",
	Short: "Catalog, download and play song covers",
	Long: `songcat - local song-cover catalog

Crawls uploaders' video lists into local catalog fragments, searches them
(falling back to the platform), downloads audio through an external command
such as yt-dlp and keeps a persistent playback queue.`,
	SilenceUsage: true,
}

func Execute() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	if err := rootCmd.ExecuteContext(ctx); err != nil {
		stop()
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "Config file (default: discovered)")
	rootCmd.PersistentFlags().BoolVar(&jsonOutput, "json", false, "Output as JSON")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "Override log level (debug, info, warn, error)")

	rootCmd.Version = version
	rootCmd.SetVersionTemplate("songcat {{.Version}}\n")
}

// loadConfig resolves --config, then discovery, then built-in defaults.
func loadConfig() (*config.Config, error) {
	path := configPath
	if path == "" {
		found, err := config.Discover()
		if err != nil {
			if os.Getenv(config.EnvConfig) != "" {
				return nil, err
			}
			cfg := config.Default()
			applyOverrides(cfg)
			return cfg, nil
		}
		path = found
	}

	cfg, err := config.Load(path)
	if err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}
	applyOverrides(cfg)
	return cfg, nil
}

func applyOverrides(cfg *config.Config) {
	if logLevel != "" {
		cfg.Log.Level = logLevel
	}
}

// openApp loads the config and opens the application context. Logs go to
// stderr so JSON output on stdout stays parseable.
func openApp(opts ...app.Option) (*app.App, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, err
	}
	logger := app.NewLogger(os.Stderr, cfg.Log.Level, cfg.Log.Format)
	return app.Open(cfg, logger, append(appOptions, opts...)...)
}

// appOptions lets tests swap collaborators.
var appOptions []app.Option

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
