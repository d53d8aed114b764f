package ranking

import (
	"cmp"
	"slices"

	"github.com/hbollon/go-edlib"

	"github.com/qingchenyouforcc/neuroSangSpider-sub000/internal/catalog"
	"github.com/qingchenyouforcc/neuroSangSpider-sub000/pkg/songtitle"
)

// minSuggestScore drops candidates that share little more than a prefix.
const minSuggestScore = 0.70

// Suggestion is a catalog title close to a query that matched nothing.
type Suggestion struct {
	Record catalog.Record
	Score  float64 // Jaro-Winkler similarity, 0.0-1.0
}

// Suggest returns up to n records whose titles are most similar to query.
// Jaro-Winkler favors shared prefixes, which suits song titles typed from memory.
func Suggest(c *catalog.Catalog, query string, n int) []Suggestion {
	q := songtitle.Fold(query)
	if q == "" || n <= 0 {
		return nil
	}

	var out []Suggestion
	for _, r := range c.Records() {
		score := float64(edlib.JaroWinklerSimilarity(q, songtitle.Fold(r.Title)))
		if score >= minSuggestScore {
			out = append(out, Suggestion{Record: r, Score: score})
		}
	}
	slices.SortStableFunc(out, func(a, b Suggestion) int {
		return cmp.Compare(b.Score, a.Score)
	})
	if len(out) > n {
		out = out[:n]
	}
	return out
}
