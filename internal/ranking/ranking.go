// Package ranking orders catalogs by upload date or by relevance to a query.
package ranking

import (
	"cmp"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/qingchenyouforcc/neuroSangSpider-sub000/internal/catalog"
	"github.com/qingchenyouforcc/neuroSangSpider-sub000/pkg/songtitle"
)

// Weights tunes the relevance formula.
type Weights struct {
	FullQuery      float64 `toml:"full_query"`      // whole query is a substring of the title
	PrefixToken    float64 `toml:"prefix_token"`    // title starts with the first token
	Token          float64 `toml:"token"`           // per distinct token found in the title
	RepeatToken    float64 `toml:"repeat_token"`    // per extra occurrence of a found token
	RepeatCap      float64 `toml:"repeat_cap"`      // cap on the summed repeat bonus
	AuthorToken    float64 `toml:"author_token"`    // per token found in the author
	LengthBonus    float64 `toml:"length_bonus"`    // largest short-title bonus, shrinking linearly with length
	LengthBonusMax int     `toml:"length_bonus_max"` // title length (runes) where the bonus reaches zero
}

// DefaultWeights returns the stock tuning.
func DefaultWeights() Weights {
	return Weights{
		FullQuery:      5.0,
		PrefixToken:    2.0,
		Token:          1.0,
		RepeatToken:    0.3,
		RepeatCap:      0.9,
		AuthorToken:    0.3,
		LengthBonus:    1.5,
		LengthBonusMax: 120,
	}
}

// Ranker scores and sorts catalogs. It has no mutable state and is safe for
// concurrent use.
type Ranker struct {
	weights Weights
	now     func() time.Time
}

// NewRanker creates a Ranker. A nil now uses time.Now; it anchors relative
// dates such as "3小时前".
func NewRanker(w Weights, now func() time.Time) *Ranker {
	if now == nil {
		now = time.Now
	}
	return &Ranker{weights: w, now: now}
}

// Score rates how well r matches query. Blank queries score 0.
func (k *Ranker) Score(r catalog.Record, query string) float64 {
	full := songtitle.Fold(strings.TrimSpace(query))
	tokens := songtitle.Tokens(query)
	if len(tokens) == 0 {
		return 0
	}
	w := k.weights
	title := songtitle.Fold(r.Title)
	author := songtitle.Fold(r.Author)

	score := 0.0
	if strings.Contains(title, full) {
		score += w.FullQuery
	}
	if strings.HasPrefix(title, tokens[0]) {
		score += w.PrefixToken
	}

	seen := make(map[string]bool, len(tokens))
	repeat := 0.0
	for _, tok := range tokens {
		if seen[tok] {
			continue
		}
		seen[tok] = true
		if n := strings.Count(title, tok); n > 0 {
			score += w.Token
			repeat += float64(n-1) * w.RepeatToken
		}
		if strings.Contains(author, tok) {
			score += w.AuthorToken
		}
	}
	score += min(repeat, w.RepeatCap)
	score += k.lengthBonus(r.Title)
	return score
}

func (k *Ranker) lengthBonus(title string) float64 {
	limit := k.weights.LengthBonusMax
	if limit <= 0 {
		return 0
	}
	n := utf8.RuneCountInString(title)
	if n >= limit {
		return 0
	}
	return k.weights.LengthBonus * float64(limit-n) / float64(limit)
}

// SortByDateDesc orders c newest first. Records with unparsable dates sort last.
func (k *Ranker) SortByDateDesc(c *catalog.Catalog) {
	dates := k.dateKeys(c)
	c.SortStable(func(a, b catalog.Record) int {
		return dates[b].Compare(dates[a])
	})
}

// SortByRelevance orders c by descending score, then by descending date.
// A blank query falls back to SortByDateDesc.
func (k *Ranker) SortByRelevance(c *catalog.Catalog, query string) {
	if strings.TrimSpace(query) == "" {
		k.SortByDateDesc(c)
		return
	}
	dates := k.dateKeys(c)
	scores := make(map[catalog.Record]float64, c.Len())
	for _, r := range c.Records() {
		scores[r] = k.Score(r, query)
	}
	c.SortStable(func(a, b catalog.Record) int {
		if s := cmp.Compare(scores[b], scores[a]); s != 0 {
			return s
		}
		return dates[b].Compare(dates[a])
	})
}

func (k *Ranker) dateKeys(c *catalog.Catalog) map[catalog.Record]time.Time {
	now := k.now()
	keys := make(map[catalog.Record]time.Time, c.Len())
	for _, r := range c.Records() {
		keys[r] = ParseDate(r.Date, now)
	}
	return keys
}
