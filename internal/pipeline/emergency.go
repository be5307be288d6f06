package pipeline

import (
	"fmt"
	"time"

	"github.com/TobiSchelling/newsrelay/internal/article"
	"github.com/TobiSchelling/newsrelay/internal/cache"
)

var emergencyItems = []struct {
	title       string
	description string
}{
	{
		title:       "News sources are temporarily unavailable",
		description: "None of the configured news providers returned results for this request. This notice is generated content, not a news article.",
	},
	{
		title:       "Results will refresh automatically",
		description: "Provider requests are retried on the next request once the cache window has passed. Try again in a few minutes.",
	},
	{
		title:       "Check source configuration",
		description: "Run `newsrelay sources` to see which providers are active and whether their API keys are set.",
	},
}

// emergencyArticles returns the fixed, clearly labelled filler set served when
// every source failed.
func emergencyArticles(key cache.Key, now time.Time) []article.Article {
	out := make([]article.Article, 0, len(emergencyItems))
	for i, item := range emergencyItems {
		out = append(out, article.Article{
			ID:          fmt.Sprintf("emergency-%d", i+1),
			Title:       item.title,
			Description: item.description,
			Source:      "newsrelay",
			PublishedAt: now,
			Region:      key.Region,
			Category:    "general",
			Provenance:  article.EmergencyProvenance,
		})
	}
	return out
}
