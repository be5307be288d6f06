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

const mediaStackBaseURL = "http://api.mediastack.com/v1/news"

// MediaStackAdapter fetches articles from mediastack. The key travels in the
// access_key query parameter.
type MediaStackAdapter struct {
	name     string
	endpoint string
	apiKey   string
	req      *requester
}

// NewMediaStackAdapter creates a mediastack adapter.
func NewMediaStackAdapter(name, endpoint, apiKey string, client *http.Client, ratePerMinute int) *MediaStackAdapter {
	if endpoint == "" {
		endpoint = mediaStackBaseURL
	}
	return &MediaStackAdapter{
		name:     name,
		endpoint: endpoint,
		apiKey:   apiKey,
		req:      newRequester(name, client, ratePerMinute),
	}
}

func (c *MediaStackAdapter) Name() string { return c.name }

// Fetch queries the news endpoint sorted by publication date.
func (c *MediaStackAdapter) Fetch(ctx context.Context, r Request) ([]article.Article, error) {
	params := url.Values{
		"access_key": {c.apiKey},
		"keywords":   {r.Query},
		"languages":  {"en"},
		"sort":       {"published_desc"},
		"limit":      {strconv.Itoa(clampLimit(r.Limit, 100))},
	}
	if r.Region != "" {
		params.Set("countries", strings.ToLower(r.Region))
	}

	var result struct {
		Error *struct {
			Code    string `json:"code"`
			Message string `json:"message"`
		} `json:"error"`
		Data []struct {
			Author      string `json:"author"`
			Title       string `json:"title"`
			Description string `json:"description"`
			URL         string `json:"url"`
			Source      string `json:"source"`
			Category    string `json:"category"`
			PublishedAt string `json:"published_at"`
		} `json:"data"`
	}

	if err := c.req.getJSON(ctx, c.endpoint+"?"+params.Encode(), nil, &result); err != nil {
		return nil, err
	}
	if result.Error != nil {
		return nil, sourceErr(c.name, 0, fmt.Errorf("%s: %s", result.Error.Code, result.Error.Message))
	}

	articles := make([]article.Article, 0, len(result.Data))
	for _, a := range result.Data {
		title := strings.TrimSpace(a.Title)
		if title == "" || a.URL == "" {
			continue
		}

		category := categoryFor(r.Query)
		if a.Category != "" && a.Category != "general" {
			category = strings.ToLower(a.Category)
		}

		articles = append(articles, article.Article{
			ID:          article.NewID(a.URL, title),
			Title:       title,
			Description: strings.TrimSpace(a.Description),
			URL:         a.URL,
			Source:      a.Source,
			Author:      strings.TrimSpace(a.Author),
			PublishedAt: parseTime(a.PublishedAt, time.RFC3339, "2006-01-02T15:04:05-0700"),
			Region:      r.Region,
			Category:    category,
			Provenance:  c.name,
		})
	}

	return articles, nil
}
