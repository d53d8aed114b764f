package config

import (
	"fmt"
	"os"
	"slices"
	"strings"

	"github.com/qingchenyouforcc/neuroSangSpider-sub000/internal/catalog"
	"github.com/qingchenyouforcc/neuroSangSpider-sub000/internal/library"
)

var validLogLevels = map[string]bool{
	"debug": true, "info": true, "warn": true, "error": true, "": true,
}

var validLogFormats = map[string]bool{
	"text": true, "json": true, "": true,
}

// Validate checks the configuration for errors.
// Returns a slice of error messages (empty if valid).
func (c *Config) Validate() []string {
	var errs []string

	if !validLogLevels[c.Log.Level] {
		errs = append(errs, fmt.Sprintf("log.level: must be one of debug, info, warn, error; got %q", c.Log.Level))
	}
	if !validLogFormats[c.Log.Format] {
		errs = append(errs, fmt.Sprintf("log.format: must be text or json; got %q", c.Log.Format))
	}

	if c.Paths.DataDir == "" {
		errs = append(errs, "paths.data_dir: required")
	}
	if c.Paths.MusicDir == "" {
		errs = append(errs, "paths.music_dir: required")
	}

	if c.Download.Workers < 1 || c.Download.Workers > 32 {
		errs = append(errs, fmt.Sprintf("download.workers: must be between 1 and 32, got %d", c.Download.Workers))
	}
	if c.Download.FileType != "" && !library.IsAudio("x."+c.Download.FileType) {
		errs = append(errs, fmt.Sprintf("download.file_type: unsupported audio format %q", c.Download.FileType))
	}
	if len(c.Download.Command) == 0 || c.Download.Command[0] == "" {
		errs = append(errs, "download.command: required")
	} else if !slices.ContainsFunc(c.Download.Command, hasURLPlaceholder) {
		errs = append(errs, "download.command: must reference {url} or {bv}")
	}
	if c.Download.PollInterval < 0 {
		errs = append(errs, "download.poll_interval: must not be negative")
	}
	if c.Download.StopTimeout < 0 {
		errs = append(errs, "download.stop_timeout: must not be negative")
	}

	if _, err := catalog.ParseField(c.Search.BlacklistField); c.Search.BlacklistField != "" && err != nil {
		errs = append(errs, fmt.Sprintf("search.blacklist_field: must be title or author; got %q", c.Search.BlacklistField))
	}
	if c.Search.Pages < 1 || c.Search.Pages > 10 {
		errs = append(errs, fmt.Sprintf("search.pages: must be between 1 and 10, got %d", c.Search.Pages))
	}
	if c.Search.RequestsPerSecond < 0 {
		errs = append(errs, "search.requests_per_second: must not be negative")
	}

	w := c.Ranking
	if w.FullQuery < 0 || w.PrefixToken < 0 || w.Token < 0 || w.RepeatToken < 0 ||
		w.RepeatCap < 0 || w.AuthorToken < 0 || w.LengthBonus < 0 || w.LengthBonusMax < 0 {
		errs = append(errs, "ranking: weights must not be negative")
	}

	if c.Crawl.MaxPages < 1 {
		errs = append(errs, fmt.Sprintf("crawl.max_pages: must be at least 1, got %d", c.Crawl.MaxPages))
	}
	if c.Crawl.Concurrency < 1 {
		errs = append(errs, fmt.Sprintf("crawl.concurrency: must be at least 1, got %d", c.Crawl.Concurrency))
	}
	seen := make(map[string]bool)
	for i, src := range c.Crawl.Sources {
		if src.Name == "" {
			errs = append(errs, fmt.Sprintf("crawl.sources[%d].name: required", i))
		} else if seen[src.Name] {
			errs = append(errs, fmt.Sprintf("crawl.sources[%d].name: duplicate source %q", i, src.Name))
		}
		seen[src.Name] = true
		if src.UserID == "" {
			errs = append(errs, fmt.Sprintf("crawl.sources[%d].user_id: required", i))
		}
	}

	// A missing music dir is created on first download.
	if c.Paths.MusicDir != "" {
		if info, err := os.Stat(c.Paths.MusicDir); err == nil && !info.IsDir() {
			errs = append(errs, fmt.Sprintf("paths.music_dir: %q is not a directory", c.Paths.MusicDir))
		}
	}

	return errs
}

func hasURLPlaceholder(arg string) bool {
	return strings.Contains(arg, "{url}") || strings.Contains(arg, "{bv}")
}
