// Package search answers a user query from the local catalog first and falls
// back to the video platform.
package search

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"regexp"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/qingchenyouforcc/neuroSangSpider-sub000/internal/catalog"
	"github.com/qingchenyouforcc/neuroSangSpider-sub000/internal/ranking"
)

// bvPattern matches a bare video id such as BV1xx411c7mD.
var bvPattern = regexp.MustCompile(`(?i)^bv[0-9a-z]{10}$`)

// IsBV reports whether q looks like a video id.
func IsBV(q string) bool {
	return bvPattern.MatchString(strings.TrimSpace(q))
}

// Source says where a result came from.
type Source string

const (
	SourceLookup  Source = "lookup"
	SourceLocal   Source = "local"
	SourceNetwork Source = "network"
)

// Result is a ranked search result.
type Result struct {
	Query   string
	Source  Source
	Records []catalog.Record
}

// Options configures a Service.
type Options struct {
	Blacklist      []string
	BlacklistField catalog.Field
	Pages          int // network pages fetched per query
}

// Service runs searches. It is safe for concurrent use.
type Service struct {
	scraper Scraper
	ranker  *ranking.Ranker
	opts    Options
	log     *slog.Logger

	mu    sync.RWMutex
	local *catalog.Catalog
}

// NewService creates a search service over local. scraper may be nil, in
// which case only the local catalog is searched.
func NewService(local *catalog.Catalog, scraper Scraper, ranker *ranking.Ranker, opts Options, logger *slog.Logger) (*Service, error) {
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
	if opts.Pages < 1 {
		opts.Pages = 1
	}
	if local == nil {
		local = catalog.New()
	}
	if ranker == nil {
		ranker = ranking.NewRanker(ranking.DefaultWeights(), nil)
	}
	return &Service{
		scraper: scraper,
		ranker:  ranker,
		opts:    opts,
		log:     logger.With("component", "search"),
		local:   local,
	}, nil
}

// SetCatalog swaps the local catalog, e.g. after a crawl.
func (s *Service) SetCatalog(c *catalog.Catalog) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.local = c
}

func (s *Service) snapshot() *catalog.Catalog {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.local.Clone()
}

// Search resolves query. A video id is looked up exactly and never
// blacklisted. Anything else is matched against local titles, then against
// the network when nothing local survives the blacklist.
//
// It returns ErrNoResults when every source came up empty and an error
// wrapping ErrSearchFailed when the network collaborator failed.
func (s *Service) Search(ctx context.Context, query string) (*Result, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return nil, ErrEmptyQuery
	}
	start := time.Now()

	if IsBV(query) {
		return s.lookup(ctx, "BV"+query[2:])
	}

	c := s.snapshot()
	c.SearchByTitle(query)
	if err := c.RemoveBlacklist(s.opts.Blacklist, s.opts.BlacklistField); err != nil {
		return nil, err
	}
	if c.Len() > 0 {
		s.ranker.SortByRelevance(c, query)
		s.log.Debug("local search hit", "query", query, "results", c.Len(), "duration_ms", time.Since(start).Milliseconds())
		return &Result{Query: query, Source: SourceLocal, Records: c.Records()}, nil
	}

	if s.scraper == nil {
		return nil, ErrNoResults
	}

	c, err := s.network(ctx, query)
	if err != nil {
		return nil, err
	}
	if err := c.RemoveBlacklist(s.opts.Blacklist, s.opts.BlacklistField); err != nil {
		return nil, err
	}
	if c.Len() == 0 {
		return nil, ErrNoResults
	}
	s.ranker.SortByRelevance(c, query)
	s.log.Info("network search complete", "query", query, "results", c.Len(), "duration_ms", time.Since(start).Milliseconds())
	return &Result{Query: query, Source: SourceNetwork, Records: c.Records()}, nil
}

func (s *Service) lookup(ctx context.Context, bv string) (*Result, error) {
	c := s.snapshot()
	c.FilterByBV(bv)
	if c.Len() > 0 {
		return &Result{Query: bv, Source: SourceLookup, Records: c.Records()}, nil
	}
	if s.scraper == nil {
		return nil, ErrNoResults
	}

	m, err := s.scraper.FetchByID(ctx, bv)
	if err != nil {
		s.log.Warn("lookup failed", "bv", bv, "error", err)
		return nil, fmt.Errorf("%w: %w", ErrSearchFailed, err)
	}
	if m == nil {
		return nil, ErrNoResults
	}
	r, err := catalog.FromMap(m)
	if err != nil {
		s.log.Debug("lookup returned invalid record", "bv", bv, "error", err)
		return nil, ErrNoResults
	}
	return &Result{Query: bv, Source: SourceLookup, Records: []catalog.Record{r}}, nil
}

// network fetches the configured number of result pages concurrently.
// A page that fails is skipped; the search only fails if every page did.
func (s *Service) network(ctx context.Context, query string) (*catalog.Catalog, error) {
	pages := make([][]map[string]any, s.opts.Pages)
	errs := make([]error, s.opts.Pages)

	g, gctx := errgroup.WithContext(ctx)
	for i := range s.opts.Pages {
		g.Go(func() error {
			items, err := s.scraper.Search(gctx, query, i+1)
			if err != nil {
				s.log.Warn("search page failed", "query", query, "page", i+1, "error", err)
				errs[i] = err
				return nil
			}
			pages[i] = items
			return nil
		})
	}
	_ = g.Wait()

	c := catalog.New()
	failed := 0
	for i, items := range pages {
		if errs[i] != nil {
			failed++
			continue
		}
		for _, m := range items {
			if err := c.AppendMap(m); err != nil {
				s.log.Debug("skipping invalid search result", "error", err)
			}
		}
	}
	if failed == len(pages) {
		return nil, fmt.Errorf("%w: %w", ErrSearchFailed, errors.Join(errs...))
	}
	c.Dedupe()
	return c, nil
}

// Suggest returns near matches from the local catalog, for "did you mean"
// after ErrNoResults.
func (s *Service) Suggest(query string, n int) []ranking.Suggestion {
	return ranking.Suggest(s.snapshot(), query, n)
}
