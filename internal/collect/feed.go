package collect

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/mmcdole/gofeed"

	"github.com/TobiSchelling/newsrelay/internal/article"
)

const (
	// googleNewsRSS is a search feed template; {query} and {region} are expanded per request.
	googleNewsRSS = "https://news.google.com/rss/search?q={query}&hl=en-{region}&gl={region}&ceid={region}:en"
	maxPerFeed    = 50
)

// FeedAdapter reads an RSS or Atom feed. It needs no credentials.
type FeedAdapter struct {
	name     string
	template string
	req      *requester
	parser   *gofeed.Parser
}

// NewFeedAdapter creates a feed adapter. The endpoint may contain {query} and
// {region} placeholders; an empty endpoint uses the Google News search feed.
func NewFeedAdapter(name, endpoint string, client *http.Client, ratePerMinute int) *FeedAdapter {
	if endpoint == "" {
		endpoint = googleNewsRSS
	}
	return &FeedAdapter{
		name:     name,
		template: endpoint,
		req:      newRequester(name, client, ratePerMinute),
		parser:   gofeed.NewParser(),
	}
}

func (f *FeedAdapter) Name() string { return f.name }

// Fetch downloads and parses the feed for the request.
func (f *FeedAdapter) Fetch(ctx context.Context, r Request) ([]article.Article, error) {
	resp, err := f.req.get(ctx, f.expand(r), nil)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	feed, err := f.parser.Parse(resp.Body)
	if err != nil {
		return nil, sourceErr(f.name, 0, fmt.Errorf("parsing feed: %w", err))
	}

	limit := clampLimit(r.Limit, maxPerFeed)
	articles := make([]article.Article, 0, min(len(feed.Items), limit))
	for _, item := range feed.Items {
		if len(articles) >= limit {
			break
		}
		a, ok := f.parseItem(item, r)
		if !ok {
			continue
		}
		articles = append(articles, a)
	}

	return articles, nil
}

func (f *FeedAdapter) expand(r Request) string {
	region := strings.ToUpper(r.Region)
	if region == "" {
		region = "US"
	}
	return strings.NewReplacer(
		"{query}", url.QueryEscape(r.Query),
		"{region}", url.QueryEscape(region),
	).Replace(f.template)
}

func (f *FeedAdapter) parseItem(item *gofeed.Item, r Request) (article.Article, bool) {
	link := item.Link
	if link == "" {
		link = item.GUID
	}
	title := strings.TrimSpace(item.Title)
	if link == "" || title == "" {
		return article.Article{}, false
	}

	var published time.Time
	if item.PublishedParsed != nil {
		published = item.PublishedParsed.UTC()
	} else if item.UpdatedParsed != nil {
		published = item.UpdatedParsed.UTC()
	}

	desc := item.Description
	if desc == "" {
		desc = item.Content
	}

	source := f.name
	if item.Author != nil && item.Author.Name != "" {
		source = item.Author.Name
	}

	return article.Article{
		ID:          article.NewID(link, title),
		Title:       title,
		Description: stripHTML(desc),
		URL:         link,
		Source:      source,
		PublishedAt: published,
		Region:      r.Region,
		Category:    categoryFor(r.Query),
		Provenance:  f.name,
	}, true
}

func stripHTML(text string) string {
	var result strings.Builder
	inTag := false
	for _, r := range text {
		if r == '<' {
			inTag = true
			result.WriteRune(' ')
			continue
		}
		if r == '>' {
			inTag = false
			continue
		}
		if !inTag {
			result.WriteRune(r)
		}
	}

	s := strings.NewReplacer(
		"&nbsp;", " ",
		"&amp;", "&",
		"&lt;", "<",
		"&gt;", ">",
		"&quot;", `"`,
		"&#39;", "'",
	).Replace(result.String())

	return strings.Join(strings.Fields(s), " ")
}
