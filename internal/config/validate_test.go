package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/qingchenyouforcc/neuroSangSpider-sub000/internal/crawl"
)

func containsError(errs []string, substr string) bool {
	for _, e := range errs {
		if strings.Contains(e, substr) {
			return true
		}
	}
	return false
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
		want   string
	}{
		{"log level", func(c *Config) { c.Log.Level = "verbose" }, "log.level"},
		{"log format", func(c *Config) { c.Log.Format = "xml" }, "log.format"},
		{"no data dir", func(c *Config) { c.Paths.DataDir = "" }, "paths.data_dir"},
		{"zero workers", func(c *Config) { c.Download.Workers = 0 }, "download.workers"},
		{"file type", func(c *Config) { c.Download.FileType = "exe" }, "download.file_type"},
		{"empty command", func(c *Config) { c.Download.Command = nil }, "download.command: required"},
		{"command without url", func(c *Config) { c.Download.Command = []string{"true"} }, "{url}"},
		{"blacklist field", func(c *Config) { c.Search.BlacklistField = "date" }, "search.blacklist_field"},
		{"pages", func(c *Config) { c.Search.Pages = 0 }, "search.pages"},
		{"negative rate", func(c *Config) { c.Search.RequestsPerSecond = -1 }, "requests_per_second"},
		{"negative weight", func(c *Config) { c.Ranking.Token = -2 }, "ranking"},
		{"max pages", func(c *Config) { c.Crawl.MaxPages = 0 }, "crawl.max_pages"},
		{"source without id", func(c *Config) {
			c.Crawl.Sources = []crawl.Source{{Name: "neuro"}}
		}, "crawl.sources[0].user_id"},
		{"duplicate source", func(c *Config) {
			c.Crawl.Sources = []crawl.Source{{Name: "neuro", UserID: "1"}, {Name: "neuro", UserID: "2"}}
		}, "duplicate source"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(cfg)
			errs := cfg.Validate()
			assert.True(t, containsError(errs, tt.want), "expected %q in %v", tt.want, errs)
		})
	}
}

func TestValidate_MusicDirIsFile(t *testing.T) {
	file := filepath.Join(t.TempDir(), "music")
	require.NoError(t, os.WriteFile(file, nil, 0644))

	cfg := Default()
	cfg.Paths.MusicDir = file
	assert.True(t, containsError(cfg.Validate(), "not a directory"))
}

func TestValidate_MultipleErrors(t *testing.T) {
	cfg := Default()
	cfg.Download.Workers = -1
	cfg.Search.Pages = 50
	assert.Len(t, cfg.Validate(), 2)
}
