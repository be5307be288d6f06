package collect

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/TobiSchelling/newsrelay/internal/config"
)

func serveJSON(t *testing.T, check func(r *http.Request), body string) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if check != nil {
			check(r)
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(body))
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestNewsAPIAdapter(t *testing.T) {
	srv := serveJSON(t, func(r *http.Request) {
		if r.Header.Get("X-Api-Key") != "secret" {
			t.Errorf("expected key in X-Api-Key header, got %q", r.Header.Get("X-Api-Key"))
		}
		if r.URL.Query().Get("apiKey") != "" {
			t.Error("expected no key in query string")
		}
		if r.URL.Query().Get("q") != "AI" {
			t.Errorf("expected q=AI, got %q", r.URL.Query().Get("q"))
		}
		if r.Header.Get("User-Agent") != UserAgent {
			t.Errorf("expected user agent %q, got %q", UserAgent, r.Header.Get("User-Agent"))
		}
	}, `{"status":"ok","articles":[
		{"url":"https://a.com/1","title":" First ","author":"Ann","publishedAt":"2026-02-06T10:00:00Z","description":"Desc","source":{"name":"Reuters"}},
		{"url":"https://a.com/2","title":"Second","publishedAt":"bad","content":"Body only","source":{"name":""}},
		{"url":"https://removed.com","title":"[Removed]"},
		{"url":"","title":"No link"}
	]}`)

	a := NewNewsAPIAdapter("newsapi", srv.URL, "secret", nil, 0)
	articles, err := a.Fetch(context.Background(), Request{Query: "AI", Region: "US", Limit: 10})
	if err != nil {
		t.Fatalf("Fetch: %v", err)
	}
	if len(articles) != 2 {
		t.Fatalf("expected 2 articles, got %d", len(articles))
	}

	first := articles[0]
	if first.Title != "First" || first.Source != "Reuters" || first.Author != "Ann" {
		t.Errorf("unexpected mapping: %+v", first)
	}
	if !first.PublishedAt.Equal(time.Date(2026, 2, 6, 10, 0, 0, 0, time.UTC)) {
		t.Errorf("unexpected publishedAt: %v", first.PublishedAt)
	}
	if first.Provenance != "newsapi" || first.Region != "US" || first.Category != "ai" {
		t.Errorf("unexpected tags: %+v", first)
	}
	if first.ID == "" {
		t.Error("expected ID to be set")
	}

	second := articles[1]
	if second.Description != "Body only" {
		t.Errorf("expected content fallback for description, got %q", second.Description)
	}
	if second.Source != "NewsAPI" {
		t.Errorf("expected default source name, got %q", second.Source)
	}
	if !second.PublishedAt.IsZero() {
		t.Errorf("expected zero time for unparseable date, got %v", second.PublishedAt)
	}
}

func TestNewsAPIAdapterProviderError(t *testing.T) {
	srv := serveJSON(t, nil, `{"status":"error","code":"apiKeyInvalid","message":"bad key"}`)
	a := NewNewsAPIAdapter("newsapi", srv.URL, "secret", nil, 0)
	_, err := a.Fetch(context.Background(), Request{Query: "AI"})

	var se *SourceError
	if !errors.As(err, &se) {
		t.Fatalf("expected SourceError, got %v", err)
	}
	if se.Provider != "newsapi" {
		t.Errorf("expected provider newsapi, got %q", se.Provider)
	}
}

func TestNewsDataAdapter(t *testing.T) {
	srv := serveJSON(t, func(r *http.Request) {
		q := r.URL.Query()
		if q.Get("apikey") != "k" {
			t.Errorf("expected apikey query param, got %q", q.Get("apikey"))
		}
		if q.Get("country") != "gb" {
			t.Errorf("expected country=gb, got %q", q.Get("country"))
		}
	}, `{"status":"success","results":[
		{"title":"Story","link":"https://b.com/1","description":"D","pubDate":"2026-02-06 08:30:00","source_id":"bbc","creator":["X","Y"],"category":["Technology"]}
	]}`)

	a := NewNewsDataAdapter("newsdata", srv.URL, "k", nil, 0)
	articles, err := a.Fetch(context.Background(), Request{Query: "markets", Region: "GB"})
	if err != nil {
		t.Fatalf("Fetch: %v", err)
	}
	if len(articles) != 1 {
		t.Fatalf("expected 1 article, got %d", len(articles))
	}
	got := articles[0]
	if got.Source != "bbc" || got.Author != "X, Y" || got.Category != "technology" {
		t.Errorf("unexpected mapping: %+v", got)
	}
	if !got.PublishedAt.Equal(time.Date(2026, 2, 6, 8, 30, 0, 0, time.UTC)) {
		t.Errorf("unexpected pubDate: %v", got.PublishedAt)
	}
}

func TestMediaStackAdapter(t *testing.T) {
	srv := serveJSON(t, func(r *http.Request) {
		if r.URL.Query().Get("access_key") != "k" {
			t.Error("expected access_key query param")
		}
		if r.URL.Query().Get("keywords") != "chips" {
			t.Error("expected keywords param")
		}
	}, `{"data":[
		{"author":"","title":"Chip news","description":"D","url":"https://c.com/1","source":"CNBC","category":"general","published_at":"2026-02-06T07:00:00+00:00"}
	]}`)

	a := NewMediaStackAdapter("mediastack", srv.URL, "k", nil, 0)
	articles, err := a.Fetch(context.Background(), Request{Query: "chips", Region: "US"})
	if err != nil {
		t.Fatalf("Fetch: %v", err)
	}
	if len(articles) != 1 || articles[0].Source != "CNBC" {
		t.Fatalf("unexpected articles: %+v", articles)
	}
	if articles[0].PublishedAt.IsZero() {
		t.Error("expected published_at to parse")
	}
}

func TestMediaStackAdapterErrorObject(t *testing.T) {
	srv := serveJSON(t, nil, `{"error":{"code":"usage_limit_reached","message":"limit"}}`)
	a := NewMediaStackAdapter("mediastack", srv.URL, "k", nil, 0)
	if _, err := a.Fetch(context.Background(), Request{Query: "x"}); err == nil {
		t.Error("expected error for mediastack error object")
	}
}

func TestGNewsAdapter(t *testing.T) {
	srv := serveJSON(t, func(r *http.Request) {
		if r.URL.Query().Get("apikey") != "k" {
			t.Error("expected apikey query param")
		}
		if r.URL.Query().Get("max") != "100" {
			t.Errorf("expected max clamped to 100, got %q", r.URL.Query().Get("max"))
		}
	}, `{"totalArticles":1,"articles":[
		{"title":"G","description":"","content":"Full","url":"https://d.com/1","publishedAt":"2026-02-06T06:00:00Z","source":{"name":"Wired"}}
	]}`)

	a := NewGNewsAdapter("gnews", srv.URL, "k", nil, 0)
	articles, err := a.Fetch(context.Background(), Request{Query: "cloud outage", Limit: 500})
	if err != nil {
		t.Fatalf("Fetch: %v", err)
	}
	if len(articles) != 1 || articles[0].Source != "Wired" || articles[0].Description != "Full" {
		t.Fatalf("unexpected articles: %+v", articles)
	}
	if articles[0].Category != "technology" {
		t.Errorf("expected technology category, got %q", articles[0].Category)
	}
}

func TestGNewsAdapterErrors(t *testing.T) {
	srv := serveJSON(t, nil, `{"errors":["You did not provide an API key."]}`)
	a := NewGNewsAdapter("gnews", srv.URL, "", nil, 0)
	if _, err := a.Fetch(context.Background(), Request{Query: "x"}); err == nil {
		t.Error("expected error for gnews errors array")
	}
}

func TestNon2xxIsSourceError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "rate limited", http.StatusTooManyRequests)
	}))
	defer srv.Close()

	a := NewGNewsAdapter("gnews", srv.URL, "k", nil, 0)
	articles, err := a.Fetch(context.Background(), Request{Query: "x"})
	if articles != nil {
		t.Errorf("expected no articles on failure, got %d", len(articles))
	}
	var se *SourceError
	if !errors.As(err, &se) {
		t.Fatalf("expected SourceError, got %v", err)
	}
	if se.StatusCode != http.StatusTooManyRequests {
		t.Errorf("expected 429, got %d", se.StatusCode)
	}
}

func TestMalformedBodyIsSourceError(t *testing.T) {
	srv := serveJSON(t, nil, `{"status":"ok","articles":[`)
	a := NewNewsAPIAdapter("newsapi", srv.URL, "k", nil, 0)
	_, err := a.Fetch(context.Background(), Request{Query: "x"})
	var se *SourceError
	if !errors.As(err, &se) {
		t.Fatalf("expected SourceError, got %v", err)
	}
}

func TestTimeoutIsSourceError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-time.After(2 * time.Second):
		}
	}))
	defer srv.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	a := NewNewsDataAdapter("newsdata", srv.URL, "k", nil, 0)
	_, err := a.Fetch(ctx, Request{Query: "x"})
	var se *SourceError
	if !errors.As(err, &se) {
		t.Fatalf("expected SourceError, got %v", err)
	}
	if !se.IsTimeout() {
		t.Errorf("expected timeout, got %v", se.Err)
	}
}

func TestFeedAdapter(t *testing.T) {
	const rss = `<?xml version="1.0" encoding="UTF-8"?>
<rss version="2.0"><channel><title>Test</title>
<item><title>Feed story</title><link>https://e.com/1</link><description>&lt;b&gt;Bold&lt;/b&gt; text</description><pubDate>Fri, 06 Feb 2026 09:00:00 GMT</pubDate></item>
<item><title></title><link>https://e.com/2</link></item>
<item><title>Second story</title><link>https://e.com/3</link></item>
</channel></rss>`

	var gotPath string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.RawQuery
		w.Header().Set("Content-Type", "application/rss+xml")
		w.Write([]byte(rss))
	}))
	defer srv.Close()

	a := NewFeedAdapter("rss", srv.URL+"/search?q={query}&gl={region}", nil, 0)
	articles, err := a.Fetch(context.Background(), Request{Query: "open ai", Region: "de"})
	if err != nil {
		t.Fatalf("Fetch: %v", err)
	}
	if gotPath != "q=open+ai&gl=DE" {
		t.Errorf("expected expanded template, got %q", gotPath)
	}
	if len(articles) != 2 {
		t.Fatalf("expected 2 articles, got %d", len(articles))
	}
	if articles[0].Description != "Bold text" {
		t.Errorf("expected stripped HTML, got %q", articles[0].Description)
	}
	if articles[0].PublishedAt.IsZero() {
		t.Error("expected pubDate to parse")
	}
	if articles[0].Provenance != "rss" || articles[0].Source != "rss" {
		t.Errorf("unexpected provenance/source: %+v", articles[0])
	}
}

func TestFeedAdapterBadFeed(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("definitely not xml"))
	}))
	defer srv.Close()

	a := NewFeedAdapter("rss", srv.URL, nil, 0)
	if _, err := a.Fetch(context.Background(), Request{Query: "x"}); err == nil {
		t.Error("expected parse error")
	}
}

func TestRateLimitedWaitHonoursContext(t *testing.T) {
	srv := serveJSON(t, nil, `{"status":"ok","articles":[]}`)
	a := NewNewsAPIAdapter("newsapi", srv.URL, "k", nil, 1)

	if _, err := a.Fetch(context.Background(), Request{Query: "x"}); err != nil {
		t.Fatalf("first fetch: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	_, err := a.Fetch(ctx, Request{Query: "x"})
	var se *SourceError
	if !errors.As(err, &se) {
		t.Fatalf("expected SourceError from limiter, got %v", err)
	}
}

func TestCategoryFor(t *testing.T) {
	cases := map[string]string{
		"AI":                      "ai",
		"Artificial Intelligence": "ai",
		"tech layoffs":            "technology",
		"stock market":            "business",
		"football":                "general",
		"maize":                   "general",
	}
	for q, want := range cases {
		if got := categoryFor(q); got != want {
			t.Errorf("categoryFor(%q): expected %q, got %q", q, want, got)
		}
	}
}

func TestNewRegistry(t *testing.T) {
	env := map[string]string{"NEWSAPI_KEY": "a", "GNEWS_API_KEY": "  "}
	lookup := func(k string) (string, bool) {
		v, ok := env[k]
		return v, ok
	}
	sources := []config.Source{
		{Name: "newsapi", Kind: "newsapi", Tier: "primary", APIKeyEnv: "NEWSAPI_KEY"},
		{Name: "newsdata", Kind: "newsdata", Tier: "primary", APIKeyEnv: "NEWSDATA_API_KEY"},
		{Name: "gnews", Kind: "gnews", Tier: "fallback", APIKeyEnv: "GNEWS_API_KEY"},
		{Name: "rss", Kind: "rss", Tier: "fallback"},
		{Name: "off", Kind: "rss", Tier: "fallback", Disabled: true},
	}

	reg, err := NewRegistry(sources, lookup, nil)
	if err != nil {
		t.Fatalf("NewRegistry: %v", err)
	}

	if got := len(reg.Entries()); got != 5 {
		t.Errorf("expected 5 entries, got %d", got)
	}
	if got := reg.ActiveCount(); got != 2 {
		t.Errorf("expected 2 active, got %d", got)
	}

	primary := reg.Tier(TierPrimary)
	if len(primary) != 1 || primary[0].Name() != "newsapi" {
		t.Errorf("unexpected primary tier: %v", names(primary))
	}
	fallback := reg.Tier(TierFallback)
	if len(fallback) != 1 || fallback[0].Name() != "rss" {
		t.Errorf("unexpected fallback tier: %v", names(fallback))
	}

	for _, e := range reg.Entries() {
		if !e.Active && e.Reason == "" {
			t.Errorf("expected reason for inactive entry %s", e.Name)
		}
	}
}

func TestNewRegistryRejectsUnknown(t *testing.T) {
	lookup := func(string) (string, bool) { return "", false }
	if _, err := NewRegistry([]config.Source{{Name: "x", Kind: "carrier-pigeon"}}, lookup, nil); err == nil {
		t.Error("expected error for unknown kind")
	}
	if _, err := NewRegistry([]config.Source{{Name: "x", Kind: "rss", Tier: "tertiary"}}, lookup, nil); err == nil {
		t.Error("expected error for unknown tier")
	}
}

func TestRegistryDefaultsTierToPrimary(t *testing.T) {
	lookup := func(string) (string, bool) { return "", false }
	reg, err := NewRegistry([]config.Source{{Kind: "rss"}}, lookup, nil)
	if err != nil {
		t.Fatalf("NewRegistry: %v", err)
	}
	primary := reg.Tier(TierPrimary)
	if len(primary) != 1 || primary[0].Name() != "rss" {
		t.Errorf("expected rss in primary tier, got %v", names(primary))
	}
}

func names(adapters []Adapter) []string {
	var out []string
	for _, a := range adapters {
		out = append(out, a.Name())
	}
	return out
}
