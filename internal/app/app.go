// Package app wires the songcat components from a loaded configuration.
// An *App is passed explicitly to whatever needs it; there is no global
// configuration.
package app

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	_ "modernc.org/sqlite"

	"github.com/qingchenyouforcc/neuroSangSpider-sub000/internal/catalog"
	"github.com/qingchenyouforcc/neuroSangSpider-sub000/internal/config"
	"github.com/qingchenyouforcc/neuroSangSpider-sub000/internal/crawl"
	"github.com/qingchenyouforcc/neuroSangSpider-sub000/internal/download"
	"github.com/qingchenyouforcc/neuroSangSpider-sub000/internal/events"
	"github.com/qingchenyouforcc/neuroSangSpider-sub000/internal/library"
	"github.com/qingchenyouforcc/neuroSangSpider-sub000/internal/migrations"
	"github.com/qingchenyouforcc/neuroSangSpider-sub000/internal/playqueue"
	"github.com/qingchenyouforcc/neuroSangSpider-sub000/internal/ranking"
	"github.com/qingchenyouforcc/neuroSangSpider-sub000/internal/search"
	"github.com/qingchenyouforcc/neuroSangSpider-sub000/internal/server"
)

// App holds the long-lived components.
type App struct {
	Config *config.Config
	Logger *slog.Logger

	DB      *sql.DB
	Events  *events.EventLog
	Bus     *events.Bus
	History *download.HistoryStore
	Queue   *download.Queue

	Play    *playqueue.Queue
	Session playqueue.Store

	Ranker  *ranking.Ranker
	Scraper search.Scraper
	Cache   *search.Cache
	Search  *search.Service
	Library *library.Scanner
}

// Option overrides a collaborator, mainly for tests.
type Option func(*options)

type options struct {
	downloader download.Downloader
	scraper    search.Scraper
	prober     library.Prober
}

// WithDownloader replaces the command downloader.
func WithDownloader(d download.Downloader) Option {
	return func(o *options) { o.downloader = d }
}

// WithScraper replaces the yt-dlp scraper. The replacement is still rate
// limited and cached.
func WithScraper(s search.Scraper) Option {
	return func(o *options) { o.scraper = s }
}

// WithProber replaces the ffprobe duration prober.
func WithProber(p library.Prober) Option {
	return func(o *options) { o.prober = p }
}

// Open builds an App from cfg: it opens and migrates the database, loads the
// catalog fragments under the data dir and restores the playback session.
func Open(cfg *config.Config, logger *slog.Logger, opts ...Option) (*App, error) {
	if logger == nil {
		logger = slog.Default()
	}
	var o options
	for _, opt := range opts {
		opt(&o)
	}

	for _, dir := range []string{cfg.Paths.DataDir, filepath.Dir(cfg.Paths.Database)} {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("create data dir: %w", err)
		}
	}

	db, err := sql.Open("sqlite", cfg.Paths.Database)
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}
	db.SetMaxOpenConns(1)
	if err := migrations.Apply(db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}

	a := &App{
		Config: cfg,
		Logger: logger,
		DB:     db,
	}
	a.Events = events.NewEventLog(db)
	a.Bus = events.NewBus(a.Events, logger.With("component", "bus"))
	a.History = download.NewHistoryStore(db)

	downloader := o.downloader
	if downloader == nil {
		cmd, err := download.NewCommandDownloader(cfg.Download.Command, logger)
		if err != nil {
			_ = a.Close()
			return nil, err
		}
		downloader = cmd
	}
	a.Queue = download.NewQueue(downloader, a.Bus, a.History, download.Options{
		PollInterval:    cfg.Download.PollInterval,
		OutputDir:       cfg.Paths.MusicDir,
		DefaultFileType: cfg.Download.FileType,
	}, logger)
	if err := a.seedQueue(); err != nil {
		_ = a.Close()
		return nil, err
	}

	scraper := o.scraper
	if scraper == nil {
		scraper = search.NewYTDLP(cfg.Search.Scraper, logger)
	}
	a.Cache = search.NewCache(db)
	a.Scraper = search.NewCached(
		search.NewRateLimited(scraper, cfg.Search.RequestsPerSecond, cfg.Search.Burst),
		a.Cache, cfg.Search.CacheTTL, logger,
	)
	a.Ranker = ranking.NewRanker(cfg.Ranking, nil)

	local, err := a.LoadCatalog()
	if err != nil {
		// A broken fragment dir should not keep the CLI from starting.
		logger.Warn("failed to load catalog", "dir", cfg.Paths.DataDir, "error", err)
		local = catalog.New()
	}
	a.Search, err = search.NewService(local, a.Scraper, a.Ranker, search.Options{
		Blacklist:      cfg.Search.Blacklist,
		BlacklistField: catalog.Field(cfg.Search.BlacklistField),
		Pages:          cfg.Search.Pages,
	}, logger)
	if err != nil {
		_ = a.Close()
		return nil, err
	}

	prober := o.prober
	if prober == nil {
		prober = library.NewFFProbe(cfg.Library.FFProbe)
	}
	a.Library = library.NewScanner(prober, logger)

	a.Play = playqueue.New(logger)
	a.Session = playqueue.NewFileStore(cfg.Paths.StateFile)
	if ok, err := a.Play.Restore(a.Session, cfg.Paths.MusicDir); err != nil {
		logger.Warn("failed to restore playback session", "path", cfg.Paths.StateFile, "error", err)
	} else if ok {
		logger.Debug("playback session restored", "items", a.Play.Len())
	}

	return a, nil
}

// seedQueue marks every bv in the task history as finished so a new process
// does not download it again until the history is cleared.
func (a *App) seedQueue() error {
	rows, err := a.History.List(context.Background(), download.HistoryFilter{})
	if err != nil {
		return fmt.Errorf("load task history: %w", err)
	}
	tasks := make([]download.Task, 0, len(rows))
	for _, t := range rows {
		tasks = append(tasks, *t)
	}
	if n := a.Queue.Seed(tasks); n > 0 {
		a.Logger.Debug("download history loaded", "tasks", n)
	}
	return nil
}

// LoadCatalog merges every catalog fragment in the data dir.
func (a *App) LoadCatalog() (*catalog.Catalog, error) {
	c, err := catalog.LoadMerged(a.Config.Paths.DataDir)
	if errors.Is(err, os.ErrNotExist) {
		return catalog.New(), nil
	}
	return c, err
}

// ReloadCatalog reloads the fragments into the search service.
func (a *App) ReloadCatalog() (*catalog.Catalog, error) {
	c, err := a.LoadCatalog()
	if err != nil {
		return nil, err
	}
	a.Search.SetCatalog(c)
	return c, nil
}

// Crawler returns a crawler writing into the data dir.
func (a *App) Crawler() (*crawl.Crawler, error) {
	cfg := a.Config
	return crawl.New(a.Scraper, cfg.Paths.DataDir, crawl.Options{
		Keywords:       cfg.Crawl.Keywords,
		Blacklist:      cfg.Search.Blacklist,
		BlacklistField: catalog.Field(cfg.Search.BlacklistField),
		MaxPages:       cfg.Crawl.MaxPages,
		Concurrency:    cfg.Crawl.Concurrency,
	}, a.Logger)
}

// Runner returns a runner for one download run.
func (a *App) Runner() *server.Runner {
	return server.NewRunner(a.Queue, a.Bus, server.Config{
		Workers:     a.Config.Download.Workers,
		StopTimeout: a.Config.Download.StopTimeout,
	}, a.Logger)
}

// Enqueue submits every record to the download queue, tagged with source.
// An empty fileType uses the configured default. It returns how many were new.
func (a *App) Enqueue(records []catalog.Record, source, fileType string) int {
	n := 0
	for _, r := range records {
		if a.Queue.Submit(download.Task{
			BV:       r.BV,
			Title:    r.Title,
			Source:   source,
			FileType: fileType,
		}) {
			n++
		}
	}
	return n
}

// Close persists the playback session and releases the database.
func (a *App) Close() error {
	var errs []error
	if a.Play != nil && a.Session != nil {
		if err := a.Play.Persist(a.Session, a.Config.Paths.MusicDir); err != nil {
			errs = append(errs, fmt.Errorf("persist session: %w", err))
		}
	}
	if a.Bus != nil {
		errs = append(errs, a.Bus.Close())
	}
	if a.DB != nil {
		errs = append(errs, a.DB.Close())
	}
	return errors.Join(errs...)
}

// NewLogger builds the process logger.
func NewLogger(w io.Writer, level, format string) *slog.Logger {
	opts := &slog.HandlerOptions{Level: ParseLogLevel(level)}
	if strings.EqualFold(format, "json") {
		return slog.New(slog.NewJSONHandler(w, opts))
	}
	return slog.New(slog.NewTextHandler(w, opts))
}

// ParseLogLevel maps a config level name to a slog level, defaulting to info.
func ParseLogLevel(s string) slog.Level {
	switch strings.ToLower(s) {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
