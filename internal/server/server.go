package server

import (
	"bytes"
	"context"
	"embed"
	"encoding/json"
	"errors"
	"fmt"
	"html/template"
	"io/fs"
	"log"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/yuin/goldmark"
	"golang.org/x/sync/errgroup"

	"github.com/TobiSchelling/newsrelay/internal/article"
	"github.com/TobiSchelling/newsrelay/internal/digest"
	"github.com/TobiSchelling/newsrelay/internal/metrics"
	"github.com/TobiSchelling/newsrelay/internal/pipeline"
	"github.com/TobiSchelling/newsrelay/internal/region"
)

//go:embed templates/*.html
var templateFS embed.FS

//go:embed static/*
var staticFS embed.FS

var md = goldmark.New()

const (
	maxLimit          = 100
	defaultRegionSize = 10
	defaultTopic      = "technology"
)

var suggestedTopics = []string{"ai", "technology", "business", "cybersecurity", "climate"}

// NewsFetcher produces aggregated news.
type NewsFetcher interface {
	FetchAggregatedNews(ctx context.Context, query, region string, limit int) (*pipeline.Response, error)
}

// Server is the HTTP server for the aggregation API and digests.
type Server struct {
	news    NewsFetcher
	regions *region.Filter
	metrics *metrics.Metrics
	health  func() map[string]any
	pages   map[string]*template.Template
	mux     *http.ServeMux
	now     func() time.Time
}

// Option configures a Server.
type Option func(*Server)

// WithMetrics exposes m on /metrics.
func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Server) { s.metrics = m }
}

// WithHealth adds fields to the /healthz body.
func WithHealth(fn func() map[string]any) Option {
	return func(s *Server) { s.health = fn }
}

// New creates a new Server.
func New(news NewsFetcher, regions *region.Filter, opts ...Option) (*Server, error) {
	funcMap := template.FuncMap{
		"markdown": renderMarkdown,
		"join":     strings.Join,
	}

	// Parse base template first
	base, err := template.New("base.html").Funcs(funcMap).ParseFS(templateFS, "templates/base.html")
	if err != nil {
		return nil, fmt.Errorf("parsing base template: %w", err)
	}

	// Each page gets its own clone of base so "content" and "title" do not collide.
	pageNames := []string{"index.html", "digest.html"}
	pages := make(map[string]*template.Template, len(pageNames))
	for _, name := range pageNames {
		clone, err := base.Clone()
		if err != nil {
			return nil, fmt.Errorf("cloning base for %s: %w", name, err)
		}
		_, err = clone.ParseFS(templateFS, "templates/"+name)
		if err != nil {
			return nil, fmt.Errorf("parsing template %s: %w", name, err)
		}
		pages[name] = clone
	}

	s := &Server{
		news:    news,
		regions: regions,
		pages:   pages,
		mux:     http.NewServeMux(),
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	s.routes()
	return s, nil
}

// Handler returns the HTTP handler for the server.
func (s *Server) Handler() http.Handler {
	return s.mux
}

func (s *Server) routes() {
	staticSub, _ := fs.Sub(staticFS, "static")
	s.mux.Handle("GET /static/", http.StripPrefix("/static/", http.FileServer(http.FS(staticSub))))

	s.mux.HandleFunc("GET /{$}", s.handleIndex)
	s.mux.HandleFunc("GET /digest", s.handleDigest)
	s.mux.HandleFunc("GET /api/news", s.handleNews)
	s.mux.HandleFunc("GET /api/regions/{code}", s.handleRegion)
	s.mux.HandleFunc("GET /healthz", s.handleHealth)
	s.mux.Handle("GET /metrics", s.metrics.Handler())
}

// newsParams are the validated query parameters shared by the news routes.
type newsParams struct {
	query  string
	region string
	limit  int
}

func (s *Server) parseNewsParams(r *http.Request, requireQuery bool) (newsParams, error) {
	q := r.URL.Query()
	p := newsParams{
		query:  strings.TrimSpace(q.Get("q")),
		region: strings.ToUpper(strings.TrimSpace(q.Get("region"))),
	}
	if p.query == "" && requireQuery {
		return p, errors.New("missing query parameter q")
	}
	if len(p.query) > 200 {
		return p, errors.New("query parameter q is too long")
	}
	if p.region != "" && !s.regions.Known(p.region) {
		return p, fmt.Errorf("unknown region %q", p.region)
	}
	if raw := q.Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 || n > maxLimit {
			return p, fmt.Errorf("limit must be an integer between 1 and %d", maxLimit)
		}
		p.limit = n
	}
	return p, nil
}

func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	s.render(w, "index.html", map[string]any{
		"Topics":  suggestedTopics,
		"Query":   "",
		"Region":  "",
		"Regions": s.regions.Codes(),
	})
}

func (s *Server) handleNews(w http.ResponseWriter, r *http.Request) {
	p, err := s.parseNewsParams(r, true)
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}

	resp, err := s.news.FetchAggregatedNews(r.Context(), p.query, p.region, p.limit)
	if err != nil {
		log.Printf("Aggregation failed for %q/%q: %v", p.query, p.region, err)
		writeError(w, http.StatusBadGateway, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

// regionView is the body of /api/regions/{code}.
type regionView struct {
	Success   bool              `json:"success"`
	Region    string            `json:"region"`
	Query     string            `json:"query"`
	Articles  []article.Article `json:"articles"`
	Cached    bool              `json:"cached"`
	Stale     bool              `json:"stale"`
	Emergency bool              `json:"emergency"`
	Timestamp time.Time         `json:"timestamp"`
}

func (s *Server) handleRegion(w http.ResponseWriter, r *http.Request) {
	code := strings.ToUpper(r.PathValue("code"))
	if !s.regions.Known(code) {
		writeError(w, http.StatusNotFound, fmt.Errorf("unknown region %q", code))
		return
	}

	query := strings.TrimSpace(r.URL.Query().Get("q"))
	if query == "" {
		query = defaultTopic
	}
	n := defaultRegionSize
	if raw := r.URL.Query().Get("n"); raw != "" {
		v, err := strconv.Atoi(raw)
		if err != nil || v < 1 || v > maxLimit {
			writeError(w, http.StatusBadRequest, fmt.Errorf("n must be an integer between 1 and %d", maxLimit))
			return
		}
		n = v
	}

	// The pool is fetched without a region so the filter sees every source's articles.
	resp, err := s.news.FetchAggregatedNews(r.Context(), query, "", maxLimit)
	if err != nil {
		log.Printf("Aggregation failed for region %s: %v", code, err)
		writeError(w, http.StatusBadGateway, err)
		return
	}

	articles := s.regions.View(resp.Articles, code, n, s.now())
	if articles == nil {
		articles = []article.Article{}
	}
	writeJSON(w, http.StatusOK, regionView{
		Success:   true,
		Region:    code,
		Query:     resp.Query,
		Articles:  articles,
		Cached:    resp.Cached,
		Stale:     resp.Stale,
		Emergency: resp.Emergency,
		Timestamp: resp.Timestamp,
	})
}

func (s *Server) handleDigest(w http.ResponseWriter, r *http.Request) {
	p, err := s.parseNewsParams(r, false)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	if p.query == "" {
		p.query = defaultTopic
	}

	resp, err := s.news.FetchAggregatedNews(r.Context(), p.query, p.region, p.limit)
	if err != nil {
		log.Printf("Aggregation failed for digest %q/%q: %v", p.query, p.region, err)
		http.Error(w, "News sources are unavailable", http.StatusBadGateway)
		return
	}

	d := digest.Build(resp)
	s.render(w, "digest.html", map[string]any{
		"Digest":      d,
		"Markdown":    d.Markdown(),
		"Query":       p.query,
		"Region":      p.region,
		"Regions":     s.regions.Codes(),
		"Sources":     resp.Sources,
		"SourcesUsed": resp.SourcesUsed,
		"Cached":      resp.Cached,
		"Stale":       resp.Stale,
		"Emergency":   resp.Emergency,
	})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	body := map[string]any{"status": "ok"}
	if s.health != nil {
		for k, v := range s.health() {
			body[k] = v
		}
	}
	writeJSON(w, http.StatusOK, body)
}

func (s *Server) render(w http.ResponseWriter, name string, data any) {
	tmpl, ok := s.pages[name]
	if !ok {
		log.Printf("Template %s not found", name)
		http.Error(w, "Internal server error", http.StatusInternalServerError)
		return
	}

	var buf bytes.Buffer
	if err := tmpl.ExecuteTemplate(&buf, "base.html", data); err != nil {
		log.Printf("Error rendering template %s: %v", name, err)
		http.Error(w, "Internal server error", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Write(buf.Bytes())
}

func renderMarkdown(text string) template.HTML {
	var buf bytes.Buffer
	if err := md.Convert([]byte(text), &buf); err != nil {
		return template.HTML(template.HTMLEscapeString(text))
	}
	return template.HTML(buf.String()) //nolint: gosec
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Printf("Error encoding response: %v", err)
	}
}

func writeError(w http.ResponseWriter, status int, err error) {
	writeJSON(w, status, map[string]any{"success": false, "error": err.Error()})
}

// Serve listens on port until ctx is cancelled, then shuts down gracefully.
func (s *Server) Serve(ctx context.Context, port int) error {
	addr := fmt.Sprintf("127.0.0.1:%d", port)
	httpServer := &http.Server{
		Addr:              addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
		WriteTimeout:      60 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		log.Printf("Server listening on http://%s", addr)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		log.Println("Shutting down server...")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return httpServer.Shutdown(shutdownCtx)
	})
	return g.Wait()
}
