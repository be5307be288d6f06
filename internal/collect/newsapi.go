package collect

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/TobiSchelling/newsrelay/internal/article"
)

const newsAPIBaseURL = "https://newsapi.org/v2/everything"

// NewsAPIAdapter fetches articles from NewsAPI. The key travels in the
// X-Api-Key header.
type NewsAPIAdapter struct {
	name     string
	endpoint string
	apiKey   string
	req      *requester
}

// NewNewsAPIAdapter creates a NewsAPI adapter. An empty endpoint uses the
// public API.
func NewNewsAPIAdapter(name, endpoint, apiKey string, client *http.Client, ratePerMinute int) *NewsAPIAdapter {
	if endpoint == "" {
		endpoint = newsAPIBaseURL
	}
	return &NewsAPIAdapter{
		name:     name,
		endpoint: endpoint,
		apiKey:   apiKey,
		req:      newRequester(name, client, ratePerMinute),
	}
}

func (c *NewsAPIAdapter) Name() string { return c.name }

// Fetch searches NewsAPI for the query.
func (c *NewsAPIAdapter) Fetch(ctx context.Context, r Request) ([]article.Article, error) {
	params := url.Values{
		"q":        {r.Query},
		"language": {"en"},
		"pageSize": {strconv.Itoa(clampLimit(r.Limit, 100))},
		"sortBy":   {"publishedAt"},
	}
	header := http.Header{"X-Api-Key": {c.apiKey}}

	var result struct {
		Status   string `json:"status"`
		Code     string `json:"code"`
		Message  string `json:"message"`
		Articles []struct {
			URL         string `json:"url"`
			Title       string `json:"title"`
			Author      string `json:"author"`
			PublishedAt string `json:"publishedAt"`
			Description string `json:"description"`
			Content     string `json:"content"`
			Source      struct {
				Name string `json:"name"`
			} `json:"source"`
		} `json:"articles"`
	}

	if err := c.req.getJSON(ctx, c.endpoint+"?"+params.Encode(), header, &result); err != nil {
		return nil, err
	}
	if result.Status != "ok" {
		return nil, sourceErr(c.name, 0, fmt.Errorf("status %q: %s", result.Status, result.Message))
	}

	articles := make([]article.Article, 0, len(result.Articles))
	for _, a := range result.Articles {
		title := strings.TrimSpace(a.Title)
		if a.URL == "" || title == "" {
			continue
		}
		if title == "[Removed]" || a.URL == "https://removed.com" {
			continue
		}

		desc := strings.TrimSpace(a.Description)
		if desc == "" {
			desc = strings.TrimSpace(a.Content)
		}

		source := "NewsAPI"
		if a.Source.Name != "" {
			source = a.Source.Name
		}

		articles = append(articles, article.Article{
			ID:          article.NewID(a.URL, title),
			Title:       title,
			Description: desc,
			URL:         a.URL,
			Source:      source,
			Author:      strings.TrimSpace(a.Author),
			PublishedAt: parseTime(a.PublishedAt, time.RFC3339),
			Region:      r.Region,
			Category:    categoryFor(r.Query),
			Provenance:  c.name,
		})
	}

	return articles, nil
}
