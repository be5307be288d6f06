// Package collect holds the source adapters that pull articles from news
// providers and the registry that arranges them into tiers.
package collect

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/TobiSchelling/newsrelay/internal/article"
)

// Tier groups adapters by priority.
type Tier string

const (
	TierPrimary  Tier = "primary"
	TierFallback Tier = "fallback"
)

// Request describes what an adapter should fetch.
type Request struct {
	Query  string
	Region string
	Limit  int
}

// Adapter fetches articles from a single provider and maps them to the
// canonical Article. It returns either a complete list or a *SourceError.
type Adapter interface {
	Name() string
	Fetch(ctx context.Context, req Request) ([]article.Article, error)
}

// SourceError reports a failed provider request.
type SourceError struct {
	Provider   string
	StatusCode int // 0 when the request never got a response
	Err        error
}

func (e *SourceError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("source %s: HTTP %d %s: %v", e.Provider, e.StatusCode, http.StatusText(e.StatusCode), e.Err)
	}
	return fmt.Sprintf("source %s: %v", e.Provider, e.Err)
}

func (e *SourceError) Unwrap() error {
	return e.Err
}

// IsTimeout reports whether the failure came from a deadline.
func (e *SourceError) IsTimeout() bool {
	return errors.Is(e.Err, context.DeadlineExceeded)
}

func sourceErr(provider string, status int, err error) *SourceError {
	return &SourceError{Provider: provider, StatusCode: status, Err: err}
}

var categoryTerms = []struct {
	category string
	terms    []string
}{
	{"ai", []string{"ai", "artificial intelligence", "machine learning", "llm", "chatgpt", "openai", "neural"}},
	{"technology", []string{"tech", "software", "startup", "chip", "semiconductor", "cloud", "cyber", "robot"}},
	{"business", []string{"market", "economy", "stock", "jobs", "hiring", "layoff", "finance"}},
}

// categoryFor tags an article with a coarse topic derived from the query that
// produced it.
func categoryFor(query string) string {
	words := strings.Fields(strings.ToLower(query))
	joined := " " + strings.Join(words, " ") + " "
	for _, ct := range categoryTerms {
		for _, term := range ct.terms {
			if strings.Contains(joined, " "+term+" ") {
				return ct.category
			}
		}
	}
	return "general"
}
