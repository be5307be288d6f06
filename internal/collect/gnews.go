package collect

import (
	"context"
	"errors"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/TobiSchelling/newsrelay/internal/article"
)

const gNewsBaseURL = "https://gnews.io/api/v4/search"

// GNewsAdapter fetches articles from GNews. The key travels in the apikey
// query parameter.
type GNewsAdapter struct {
	name     string
	endpoint string
	apiKey   string
	req      *requester
}

// NewGNewsAdapter creates a GNews adapter.
func NewGNewsAdapter(name, endpoint, apiKey string, client *http.Client, ratePerMinute int) *GNewsAdapter {
	if endpoint == "" {
		endpoint = gNewsBaseURL
	}
	return &GNewsAdapter{
		name:     name,
		endpoint: endpoint,
		apiKey:   apiKey,
		req:      newRequester(name, client, ratePerMinute),
	}
}

func (c *GNewsAdapter) Name() string { return c.name }

// Fetch runs a GNews search.
func (c *GNewsAdapter) Fetch(ctx context.Context, r Request) ([]article.Article, error) {
	params := url.Values{
		"q":      {r.Query},
		"lang":   {"en"},
		"max":    {strconv.Itoa(clampLimit(r.Limit, 100))},
		"apikey": {c.apiKey},
	}
	if r.Region != "" {
		params.Set("country", strings.ToLower(r.Region))
	}

	var result struct {
		Errors   []string `json:"errors"`
		Articles []struct {
			Title       string `json:"title"`
			Description string `json:"description"`
			Content     string `json:"content"`
			URL         string `json:"url"`
			PublishedAt string `json:"publishedAt"`
			Source      struct {
				Name string `json:"name"`
			} `json:"source"`
		} `json:"articles"`
	}

	if err := c.req.getJSON(ctx, c.endpoint+"?"+params.Encode(), nil, &result); err != nil {
		return nil, err
	}
	if len(result.Errors) > 0 {
		return nil, sourceErr(c.name, 0, errors.New(strings.Join(result.Errors, "; ")))
	}

	articles := make([]article.Article, 0, len(result.Articles))
	for _, a := range result.Articles {
		title := strings.TrimSpace(a.Title)
		if title == "" || a.URL == "" {
			continue
		}

		desc := strings.TrimSpace(a.Description)
		if desc == "" {
			desc = strings.TrimSpace(a.Content)
		}

		articles = append(articles, article.Article{
			ID:          article.NewID(a.URL, title),
			Title:       title,
			Description: desc,
			URL:         a.URL,
			Source:      a.Source.Name,
			PublishedAt: parseTime(a.PublishedAt, time.RFC3339),
			Region:      r.Region,
			Category:    categoryFor(r.Query),
			Provenance:  c.name,
		})
	}

	return articles, nil
}
