package main

import (
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/qingchenyouforcc/neuroSangSpider-sub000/internal/config"
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Configuration management",
}

var configInitCmd = &cobra.Command{
	Use:   "init [path]",
	Short: "Write an example config file",
	Args:  cobra.MaximumNArgs(1),
	RunE:  runConfigInit,
}

var configTestCmd = &cobra.Command{
	Use:   "test [path]",
	Short: "Validate configuration file",
	Long:  "Validates config.toml syntax, required fields, and environment variable substitution.",
	Args:  cobra.MaximumNArgs(1),
	RunE:  runConfigTest,
}

func init() {
	rootCmd.AddCommand(configCmd)
	configCmd.AddCommand(configInitCmd, configTestCmd)
	configInitCmd.Flags().Bool("force", false, "Overwrite an existing file")
}

func runConfigInit(cmd *cobra.Command, args []string) error {
	force, _ := cmd.Flags().GetBool("force")
	path := config.DefaultPath()
	if len(args) > 0 {
		path = args[0]
	}

	if _, err := os.Stat(path); err == nil && !force {
		return fmt.Errorf("%s already exists (use --force to overwrite)", path)
	}
	if err := config.WriteDefault(path); err != nil {
		return fmt.Errorf("write config: %w", err)
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Wrote %s\n", path)
	return nil
}

func runConfigTest(cmd *cobra.Command, args []string) error {
	path := configPath
	if len(args) > 0 {
		path = args[0]
	}
	if path == "" {
		found, err := config.Discover()
		if err != nil {
			return err
		}
		path = found
	}

	w := cmd.OutOrStdout()
	fmt.Fprintf(w, "Validating %s...\n\n", path)

	cfg, err := config.Load(path)
	if err != nil {
		var configErr *config.ConfigError
		if errors.As(err, &configErr) {
			printConfigErrors(w, configErr)
			return fmt.Errorf("configuration invalid")
		}
		return fmt.Errorf("failed to load config: %w", err)
	}

	printConfigSummary(w, cfg)
	colorSuccess.Fprintln(w, "\nConfiguration valid!")
	return nil
}

func printConfigErrors(w io.Writer, e *config.ConfigError) {
	if len(e.Missing) > 0 {
		colorError.Fprintln(w, "Missing environment variables:")
		for _, m := range e.Missing {
			fmt.Fprintf(w, "  - %s\n", m)
		}
		fmt.Fprintln(w)
	}

	if len(e.Errors) > 0 {
		colorError.Fprintln(w, "Validation errors:")
		for _, err := range e.Errors {
			fmt.Fprintf(w, "  - %s\n", err)
		}
		fmt.Fprintln(w)
	}
}

func printConfigSummary(w io.Writer, cfg *config.Config) {
	fmt.Fprintln(w, "Configuration Summary:")
	fmt.Fprintf(w, "  Log:        %s (%s)\n", cfg.Log.Level, cfg.Log.Format)
	fmt.Fprintf(w, "  Data:       %s\n", cfg.Paths.DataDir)
	fmt.Fprintf(w, "  Music:      %s\n", cfg.Paths.MusicDir)
	fmt.Fprintf(w, "  Database:   %s\n", cfg.Paths.Database)
	fmt.Fprintf(w, "  Download:   %d workers, %s via %s\n", cfg.Download.Workers, cfg.Download.FileType, cfg.Download.Command[0])
	fmt.Fprintf(w, "  Search:     %d pages, %.1f req/s, blacklist on %s (%d words)\n",
		cfg.Search.Pages, cfg.Search.RequestsPerSecond, cfg.Search.BlacklistField, len(cfg.Search.Blacklist))

	names := make([]string, len(cfg.Crawl.Sources))
	for i, s := range cfg.Crawl.Sources {
		names[i] = s.Name
	}
	if len(names) > 0 {
		fmt.Fprintf(w, "  Sources:    %s\n", strings.Join(names, ", "))
	}
	if len(cfg.Crawl.Keywords) > 0 {
		fmt.Fprintf(w, "  Keywords:   %s\n", strings.Join(cfg.Crawl.Keywords, ", "))
	}
}
