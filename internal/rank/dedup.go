// Package rank removes duplicate articles and orders them with a pluggable
// scoring policy.
package rank

import (
	"strings"

	"github.com/TobiSchelling/newsrelay/internal/article"
)

// Deduplicate drops articles with empty titles and any article whose
// normalized title or canonical URL was already seen. The first occurrence
// wins, so callers control precedence through input order.
func Deduplicate(articles []article.Article) []article.Article {
	seenTitles := make(map[string]struct{}, len(articles))
	seenURLs := make(map[string]struct{}, len(articles))
	out := make([]article.Article, 0, len(articles))

	for _, a := range articles {
		if strings.TrimSpace(a.Title) == "" {
			continue
		}
		title := article.NormalizeTitle(a.Title)
		if _, dup := seenTitles[title]; dup {
			continue
		}
		u := article.CanonicalURL(a.URL)
		if u != "" {
			if _, dup := seenURLs[u]; dup {
				continue
			}
			seenURLs[u] = struct{}{}
		}
		seenTitles[title] = struct{}{}
		out = append(out, a)
	}

	return out
}
