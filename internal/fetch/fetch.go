// Package fetch backfills missing article descriptions from the article page.
package fetch

import (
	"context"
	"fmt"
	"io"
	"log"
	"net/http"
	"net/url"
	"strings"
	"time"
	"unicode/utf8"

	readability "github.com/go-shiori/go-readability"

	"github.com/TobiSchelling/newsrelay/internal/article"
	"github.com/TobiSchelling/newsrelay/internal/collect"
)

const (
	// DescriptionLimit is the maximum backfilled description length in characters.
	DescriptionLimit = 300
	minContentLength = 50
	maxPageBytes     = 2 << 20
)

// Result holds the results of a backfill run.
type Result struct {
	Filled  int
	Skipped int
	Failed  int
}

// Enricher fills empty descriptions via HTTP + readability extraction.
type Enricher struct {
	client      *http.Client
	maxArticles int
}

// NewEnricher creates an enricher that touches at most maxArticles per run.
func NewEnricher(maxArticles int, timeout time.Duration) *Enricher {
	if timeout == 0 {
		timeout = 15 * time.Second
	}
	if maxArticles <= 0 {
		maxArticles = 5
	}
	return &Enricher{
		maxArticles: maxArticles,
		client: &http.Client{
			Timeout: timeout,
			CheckRedirect: func(req *http.Request, via []*http.Request) error {
				if len(via) >= 10 {
					return http.ErrUseLastResponse
				}
				return nil
			},
		},
	}
}

// Enrich fills descriptions in place for articles that have none.
func (e *Enricher) Enrich(ctx context.Context, articles []article.Article) *Result {
	result := &Result{}
	failedDomains := make(map[string]struct{})
	attempts := 0

	for i := range articles {
		a := &articles[i]
		if a.Description != "" || a.IsEmergency() || a.URL == "" {
			continue
		}
		if attempts >= e.maxArticles {
			result.Skipped++
			continue
		}
		if ctx.Err() != nil {
			result.Skipped++
			continue
		}

		domain := ""
		if u, err := url.Parse(a.URL); err == nil {
			domain = strings.ToLower(u.Host)
		}
		if _, failed := failedDomains[domain]; failed {
			result.Skipped++
			continue
		}

		attempts++
		text, err := e.extract(ctx, a.URL)
		if err != nil {
			result.Failed++
			if domain != "" {
				failedDomains[domain] = struct{}{}
			}
			log.Printf("Backfill failed for %s, skipping remaining from %s: %v", a.URL, domain, err)
			continue
		}
		if text == "" {
			result.Failed++
			continue
		}

		a.Description = truncate(text, DescriptionLimit)
		result.Filled++
	}

	if result.Filled > 0 || result.Failed > 0 {
		log.Printf("Backfill complete: %d filled, %d failed, %d skipped", result.Filled, result.Failed, result.Skipped)
	}
	return result
}

func (e *Enricher) extract(ctx context.Context, articleURL string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, articleURL, nil)
	if err != nil {
		return "", err
	}
	req.Header.Set("User-Agent", collect.UserAgent)

	resp, err := e.client.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		return "", &httpError{code: resp.StatusCode}
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxPageBytes))
	if err != nil {
		return "", err
	}

	parsedURL, _ := url.Parse(articleURL)
	page, err := readability.FromReader(strings.NewReader(string(body)), parsedURL)
	if err != nil {
		return "", nil
	}

	text := strings.Join(strings.Fields(page.TextContent), " ")
	if len(text) < minContentLength {
		return "", nil
	}
	return text, nil
}

// truncate cuts s to at most n runes.
func truncate(s string, n int) string {
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	runes := []rune(s)
	return strings.TrimSpace(string(runes[:n]))
}

type httpError struct {
	code int
}

func (e *httpError) Error() string {
	return fmt.Sprintf("HTTP %d %s", e.code, http.StatusText(e.code))
}
