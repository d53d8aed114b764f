package search

//go:generate mockgen -source=scraper.go -destination=mocks/mock_scraper.go -package=mocks

import (
	"context"

	"golang.org/x/time/rate"
)

// Scraper is the video platform client. Results are record-like maps with
// title, author, date, url and bv keys; extra keys are ignored.
type Scraper interface {
	// Search returns one page of results for a keyword query.
	Search(ctx context.Context, query string, page int) ([]map[string]any, error)
	// FetchByID returns one video, or nil if it does not exist.
	FetchByID(ctx context.Context, bv string) (map[string]any, error)
	// ListUserVideos returns one page of an uploader's videos.
	ListUserVideos(ctx context.Context, userID string, page int) ([]map[string]any, error)
}

// RateLimited paces every call to the wrapped Scraper.
type RateLimited struct {
	next    Scraper
	limiter *rate.Limiter
}

// NewRateLimited allows rps calls per second with the given burst.
// A non-positive rps disables pacing.
func NewRateLimited(s Scraper, rps float64, burst int) *RateLimited {
	limit := rate.Inf
	if rps > 0 {
		limit = rate.Limit(rps)
	}
	if burst < 1 {
		burst = 1
	}
	return &RateLimited{next: s, limiter: rate.NewLimiter(limit, burst)}
}

func (r *RateLimited) Search(ctx context.Context, query string, page int) ([]map[string]any, error) {
	if err := r.limiter.Wait(ctx); err != nil {
		return nil, err
	}
	return r.next.Search(ctx, query, page)
}

func (r *RateLimited) FetchByID(ctx context.Context, bv string) (map[string]any, error) {
	if err := r.limiter.Wait(ctx); err != nil {
		return nil, err
	}
	return r.next.FetchByID(ctx, bv)
}

func (r *RateLimited) ListUserVideos(ctx context.Context, userID string, page int) ([]map[string]any, error) {
	if err := r.limiter.Wait(ctx); err != nil {
		return nil, err
	}
	return r.next.ListUserVideos(ctx, userID, page)
}
