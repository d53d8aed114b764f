// Package crawl refreshes the on-disk catalog fragments from the video
// platform: one fragment per configured uploader plus one for the ids listed
// in extend files.
package crawl

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/qingchenyouforcc/neuroSangSpider-sub000/internal/catalog"
	"github.com/qingchenyouforcc/neuroSangSpider-sub000/internal/search"
)

// ResolvedExtendName is the fragment name ResolveExtend writes to.
const ResolvedExtendName = "extend_resolved"

// ErrInvalidSource is returned for a source without a name or user id.
var ErrInvalidSource = errors.New("invalid crawl source")

// Source is one uploader whose videos are crawled.
type Source struct {
	Name   string `toml:"name"`
	UserID string `toml:"user_id"`
}

func (s Source) validate() error {
	if strings.TrimSpace(s.Name) == "" || strings.TrimSpace(s.UserID) == "" {
		return fmt.Errorf("%w: name=%q user_id=%q", ErrInvalidSource, s.Name, s.UserID)
	}
	if strings.ContainsAny(s.Name, `/\`) {
		return fmt.Errorf("%w: name %q contains a path separator", ErrInvalidSource, s.Name)
	}
	return nil
}

// Options configures a Crawler.
type Options struct {
	Keywords       []string // titles must contain one of these; empty keeps everything
	Blacklist      []string
	BlacklistField catalog.Field
	MaxPages       int
	Concurrency    int
}

// Report summarizes one source's crawl.
type Report struct {
	Source   string        `json:"source"`
	Pages    int           `json:"pages"`
	Fetched  int           `json:"fetched"`
	Kept     int           `json:"kept"`
	Duration time.Duration `json:"duration"`
	Err      error         `json:"-"`
}

// Crawler writes catalog fragments into Dir.
type Crawler struct {
	scraper search.Scraper
	dir     string
	opts    Options
	log     *slog.Logger
}

// New creates a crawler writing into dir.
func New(scraper search.Scraper, dir string, opts Options, logger *slog.Logger) (*Crawler, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if opts.BlacklistField == "" {
		opts.BlacklistField = catalog.FieldTitle
	}
	field, err := catalog.ParseField(string(opts.BlacklistField))
	if err != nil {
		return nil, err
	}
	opts.BlacklistField = field
	if opts.MaxPages < 1 {
		opts.MaxPages = 1
	}
	if opts.Concurrency < 1 {
		opts.Concurrency = 1
	}
	return &Crawler{
		scraper: scraper,
		dir:     dir,
		opts:    opts,
		log:     logger.With("component", "crawl"),
	}, nil
}

// CrawlSources crawls every source concurrently and writes <name>data.json for
// each one that succeeds. A failing source is reported and logged but does not
// stop the others. The returned error is non-nil only if ctx was cancelled.
func (c *Crawler) CrawlSources(ctx context.Context, sources []Source) ([]Report, error) {
	reports := make([]Report, len(sources))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(c.opts.Concurrency)
	for i, src := range sources {
		g.Go(func() error {
			reports[i] = c.crawlSource(gctx, src)
			return nil
		})
	}
	_ = g.Wait()

	if err := ctx.Err(); err != nil {
		return reports, err
	}
	return reports, nil
}

func (c *Crawler) crawlSource(ctx context.Context, src Source) Report {
	start := time.Now()
	rep := Report{Source: src.Name}
	log := c.log.With("source", src.Name)

	if err := src.validate(); err != nil {
		rep.Err = err
		log.Error("skipping source", "error", err)
		return rep
	}

	frag := catalog.New()
	for page := 1; page <= c.opts.MaxPages; page++ {
		items, err := c.scraper.ListUserVideos(ctx, src.UserID, page)
		if err != nil {
			rep.Err = fmt.Errorf("list %s page %d: %w", src.Name, page, err)
			log.Error("crawl failed", "page", page, "error", err)
			return rep
		}
		if len(items) == 0 {
			break
		}
		rep.Pages++
		rep.Fetched += len(items)
		for _, m := range items {
			if err := frag.AppendMap(m); err != nil {
				log.Debug("skipping invalid video", "error", err)
			}
		}
	}

	if err := c.filter(frag); err != nil {
		rep.Err = err
		return rep
	}
	if err := catalog.SaveFragment(c.dir, src.Name, frag); err != nil {
		rep.Err = err
		log.Error("failed to save fragment", "error", err)
		return rep
	}

	rep.Kept = frag.Len()
	rep.Duration = time.Since(start)
	log.Info("source crawled", "pages", rep.Pages, "fetched", rep.Fetched, "kept", rep.Kept, "duration_ms", rep.Duration.Milliseconds())
	return rep
}

func (c *Crawler) filter(frag *catalog.Catalog) error {
	if len(c.opts.Keywords) > 0 {
		if err := frag.FilterKeep(c.opts.Keywords, catalog.FieldTitle); err != nil {
			return err
		}
	}
	if err := frag.RemoveBlacklist(c.opts.Blacklist, c.opts.BlacklistField); err != nil {
		return err
	}
	frag.Dedupe()
	return nil
}

// ResolveExtend fetches every id listed in the extend files and writes the
// results to extend_resolveddata.json. Ids that fail or no longer exist are
// skipped. It returns the number of records written.
//
// Extend entries are hand-picked, so keyword filtering does not apply.
func (c *Crawler) ResolveExtend(ctx context.Context) (int, error) {
	ids, err := catalog.LoadExtendIDs(c.dir)
	if err != nil {
		return 0, err
	}

	results := make([]map[string]any, len(ids))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(c.opts.Concurrency)
	for i, id := range ids {
		g.Go(func() error {
			m, err := c.scraper.FetchByID(gctx, id)
			if err != nil {
				c.log.Warn("extend lookup failed", "bv", id, "error", err)
				return nil
			}
			results[i] = m
			return nil
		})
	}
	_ = g.Wait()
	if err := ctx.Err(); err != nil {
		return 0, err
	}

	frag := catalog.New()
	for i, m := range results {
		if m == nil {
			continue
		}
		if err := frag.AppendMap(m); err != nil {
			c.log.Debug("skipping invalid extend video", "bv", ids[i], "error", err)
		}
	}
	if err := frag.RemoveBlacklist(c.opts.Blacklist, c.opts.BlacklistField); err != nil {
		return 0, err
	}
	frag.Dedupe()

	if err := catalog.SaveFragment(c.dir, ResolvedExtendName, frag); err != nil {
		return 0, err
	}
	c.log.Info("extend list resolved", "ids", len(ids), "kept", frag.Len())
	return frag.Len(), nil
}
