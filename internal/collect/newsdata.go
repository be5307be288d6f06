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

const newsDataBaseURL = "https://newsdata.io/api/1/news"

// NewsDataAdapter fetches articles from NewsData.io. The key travels in the
// apikey query parameter.
type NewsDataAdapter struct {
	name     string
	endpoint string
	apiKey   string
	req      *requester
}

// NewNewsDataAdapter creates a NewsData adapter.
func NewNewsDataAdapter(name, endpoint, apiKey string, client *http.Client, ratePerMinute int) *NewsDataAdapter {
	if endpoint == "" {
		endpoint = newsDataBaseURL
	}
	return &NewsDataAdapter{
		name:     name,
		endpoint: endpoint,
		apiKey:   apiKey,
		req:      newRequester(name, client, ratePerMinute),
	}
}

func (c *NewsDataAdapter) Name() string { return c.name }

// Fetch queries the latest news endpoint.
func (c *NewsDataAdapter) Fetch(ctx context.Context, r Request) ([]article.Article, error) {
	params := url.Values{
		"apikey":   {c.apiKey},
		"q":        {r.Query},
		"language": {"en"},
		"size":     {strconv.Itoa(clampLimit(r.Limit, 50))},
	}
	if r.Region != "" {
		params.Set("country", strings.ToLower(r.Region))
	}

	var result struct {
		Status  string `json:"status"`
		Results []struct {
			Title       string   `json:"title"`
			Link        string   `json:"link"`
			Description string   `json:"description"`
			PubDate     string   `json:"pubDate"`
			SourceID    string   `json:"source_id"`
			Creator     []string `json:"creator"`
			Category    []string `json:"category"`
		} `json:"results"`
	}

	if err := c.req.getJSON(ctx, c.endpoint+"?"+params.Encode(), nil, &result); err != nil {
		return nil, err
	}
	if result.Status != "success" {
		return nil, sourceErr(c.name, 0, fmt.Errorf("status %q", result.Status))
	}

	articles := make([]article.Article, 0, len(result.Results))
	for _, a := range result.Results {
		title := strings.TrimSpace(a.Title)
		if title == "" || a.Link == "" {
			continue
		}

		category := categoryFor(r.Query)
		if len(a.Category) > 0 && a.Category[0] != "" {
			category = strings.ToLower(a.Category[0])
		}

		articles = append(articles, article.Article{
			ID:          article.NewID(a.Link, title),
			Title:       title,
			Description: strings.TrimSpace(a.Description),
			URL:         a.Link,
			Source:      a.SourceID,
			Author:      strings.Join(a.Creator, ", "),
			PublishedAt: parseTime(a.PubDate, time.DateTime, time.RFC3339),
			Region:      r.Region,
			Category:    category,
			Provenance:  c.name,
		})
	}

	return articles, nil
}
