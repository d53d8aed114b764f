// Package config loads the songcat TOML configuration.
package config

import (
	"fmt"
	"os"
	"regexp"
	"strings"
	"time"

	"github.com/BurntSushi/toml"

	"github.com/qingchenyouforcc/neuroSangSpider-sub000/internal/crawl"
	"github.com/qingchenyouforcc/neuroSangSpider-sub000/internal/ranking"
)

type Config struct {
	Log      LogConfig       `toml:"log"`
	Paths    PathsConfig     `toml:"paths"`
	Download DownloadConfig  `toml:"download"`
	Search   SearchConfig    `toml:"search"`
	Ranking  ranking.Weights `toml:"ranking"`
	Crawl    CrawlConfig     `toml:"crawl"`
	Library  LibraryConfig   `toml:"library"`
}

type LogConfig struct {
	Level  string `toml:"level"`
	Format string `toml:"format"` // text or json
}

type PathsConfig struct {
	DataDir   string `toml:"data_dir"`   // catalog fragments (*data.json, *extend.json)
	MusicDir  string `toml:"music_dir"`  // downloaded audio
	StateFile string `toml:"state_file"` // playback session
	Database  string `toml:"database"`   // event log and task history
}

type DownloadConfig struct {
	Workers      int           `toml:"workers"`
	FileType     string        `toml:"file_type"`
	Command      []string      `toml:"command"`
	PollInterval time.Duration `toml:"poll_interval"`
	StopTimeout  time.Duration `toml:"stop_timeout"`
}

type SearchConfig struct {
	Blacklist         []string      `toml:"blacklist"`
	BlacklistField    string        `toml:"blacklist_field"`
	Pages             int           `toml:"pages"`
	RequestsPerSecond float64       `toml:"requests_per_second"`
	Burst             int           `toml:"burst"`
	Scraper           string        `toml:"scraper"` // yt-dlp binary used for metadata
	CacheTTL          time.Duration `toml:"cache_ttl"` // unset means 6h, negative disables the response cache
}

type CrawlConfig struct {
	Keywords    []string       `toml:"keywords"`
	MaxPages    int            `toml:"max_pages"`
	Concurrency int            `toml:"concurrency"`
	Sources     []crawl.Source `toml:"sources"`
}

type LibraryConfig struct {
	FFProbe string `toml:"ffprobe"`
}

// Default download command. Placeholders are expanded per task.
var defaultCommand = []string{
	"yt-dlp", "--no-progress", "-x",
	"--audio-format", "{format}",
	"-o", "{output}",
	"{url}",
}

// Load reads, substitutes, defaults and validates the configuration file.
// Missing environment variables and validation failures are reported
// together as a *ConfigError.
func Load(path string) (*Config, error) {
	cfg, missing, err := load(path)
	if err != nil {
		return nil, err
	}

	cfgErr := &ConfigError{Path: path, Missing: missing, Errors: cfg.Validate()}
	if cfgErr.HasErrors() {
		return nil, cfgErr
	}
	return cfg, nil
}

// LoadWithoutValidation loads the configuration without validating it or
// failing on unresolved environment variables.
func LoadWithoutValidation(path string) (*Config, error) {
	cfg, _, err := load(path)
	return cfg, err
}

func load(path string) (*Config, []string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, nil, fmt.Errorf("reading config: %w", err)
	}

	content, missing := substituteEnvVars(string(data))

	var cfg Config
	if _, err := toml.Decode(content, &cfg); err != nil {
		return nil, nil, fmt.Errorf("parsing config: %w", err)
	}
	cfg.applyDefaults()
	return &cfg, missing, nil
}

// Default returns a configuration with every default applied.
func Default() *Config {
	var cfg Config
	cfg.applyDefaults()
	return &cfg
}

func (c *Config) applyDefaults() {
	if c.Log.Level == "" {
		c.Log.Level = "info"
	}
	if c.Log.Format == "" {
		c.Log.Format = "text"
	}

	if c.Paths.DataDir == "" {
		c.Paths.DataDir = "./data"
	}
	if c.Paths.MusicDir == "" {
		c.Paths.MusicDir = "./music"
	}
	if c.Paths.StateFile == "" {
		c.Paths.StateFile = c.Paths.DataDir + "/session.toml"
	}
	if c.Paths.Database == "" {
		c.Paths.Database = c.Paths.DataDir + "/songcat.db"
	}

	if c.Download.Workers == 0 {
		c.Download.Workers = 3
	}
	if c.Download.FileType == "" {
		c.Download.FileType = "mp3"
	}
	if len(c.Download.Command) == 0 {
		c.Download.Command = append([]string(nil), defaultCommand...)
	}
	if c.Download.PollInterval == 0 {
		c.Download.PollInterval = 500 * time.Millisecond
	}
	if c.Download.StopTimeout == 0 {
		c.Download.StopTimeout = 30 * time.Second
	}

	if c.Search.BlacklistField == "" {
		c.Search.BlacklistField = "title"
	}
	if c.Search.Pages == 0 {
		c.Search.Pages = 2
	}
	if c.Search.RequestsPerSecond == 0 {
		c.Search.RequestsPerSecond = 2
	}
	if c.Search.Burst == 0 {
		c.Search.Burst = 1
	}
	if c.Search.Scraper == "" {
		c.Search.Scraper = "yt-dlp"
	}
	if c.Search.CacheTTL == 0 {
		c.Search.CacheTTL = 6 * time.Hour
	}

	if c.Ranking == (ranking.Weights{}) {
		c.Ranking = ranking.DefaultWeights()
	}

	if c.Crawl.MaxPages == 0 {
		c.Crawl.MaxPages = 5
	}
	if c.Crawl.Concurrency == 0 {
		c.Crawl.Concurrency = 2
	}

	if c.Library.FFProbe == "" {
		c.Library.FFProbe = "ffprobe"
	}
}

// envVarPattern matches ${VAR}, ${VAR:-default} and ${VAR:?message}.
var envVarPattern = regexp.MustCompile(`\$\{([A-Za-z_][A-Za-z0-9_]*)(?:(:-|:\?)([^}]*))?\}`)

// substituteEnvVars replaces environment references in content. Unresolved
// references are left in place and reported; a ${VAR:?message} reference is
// reported as "VAR: message". An empty variable counts as unset for both
// the :- and :? forms.
func substituteEnvVars(content string) (string, []string) {
	var missing []string
	out := envVarPattern.ReplaceAllStringFunc(content, func(match string) string {
		m := envVarPattern.FindStringSubmatch(match)
		name, op, arg := m[1], m[2], m[3]

		value, ok := os.LookupEnv(name)
		switch op {
		case ":-":
			if !ok || value == "" {
				return arg
			}
			return value
		case ":?":
			if !ok || value == "" {
				missing = append(missing, name+": "+strings.TrimSpace(arg))
				return match
			}
			return value
		default:
			if !ok {
				missing = append(missing, name)
				return match
			}
			return value
		}
	})
	return out, missing
}
