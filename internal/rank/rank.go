package rank

import (
	"sort"
	"time"

	"github.com/TobiSchelling/newsrelay/internal/article"
)

// Rank scores every article with policy and returns a new slice sorted by
// score descending, then by publication time descending.
func Rank(articles []article.Article, policy Policy, now time.Time) []article.Article {
	out := article.Clone(articles)
	for i := range out {
		out[i].QualityScore = clamp(policy.Score(out[i], now))
	}

	sort.SliceStable(out, func(i, j int) bool {
		if out[i].QualityScore != out[j].QualityScore {
			return out[i].QualityScore > out[j].QualityScore
		}
		return out[i].PublishedAt.After(out[j].PublishedAt)
	})
	return out
}

// Truncate returns at most limit articles. A non-positive limit returns the
// input unchanged.
func Truncate(articles []article.Article, limit int) []article.Article {
	if limit <= 0 || len(articles) <= limit {
		return articles
	}
	return articles[:limit]
}
