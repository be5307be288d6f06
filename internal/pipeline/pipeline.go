// Package pipeline aggregates news for a (query, region) pair across source
// tiers, then deduplicates, ranks and caches the result.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/singleflight"

	"github.com/TobiSchelling/newsrelay/internal/article"
	"github.com/TobiSchelling/newsrelay/internal/audit"
	"github.com/TobiSchelling/newsrelay/internal/cache"
	"github.com/TobiSchelling/newsrelay/internal/collect"
	"github.com/TobiSchelling/newsrelay/internal/config"
	"github.com/TobiSchelling/newsrelay/internal/fetch"
	"github.com/TobiSchelling/newsrelay/internal/metrics"
	"github.com/TobiSchelling/newsrelay/internal/rank"
)

// ErrAggregationExhausted is returned when no tier produced an article, no
// cached result exists and emergency content is disabled.
var ErrAggregationExhausted = errors.New("aggregation exhausted: no source returned articles")

// PipelineFailure wraps an unexpected failure while processing fetched articles.
type PipelineFailure struct {
	Stage string
	Err   error
}

func (e *PipelineFailure) Error() string {
	return fmt.Sprintf("pipeline failed during %s: %v", e.Stage, e.Err)
}

func (e *PipelineFailure) Unwrap() error {
	return e.Err
}

// Response is the result of one aggregation request.
type Response struct {
	Success       bool              `json:"success"`
	Articles      []article.Article `json:"articles"`
	TotalArticles int               `json:"totalArticles"`
	SourcesUsed   int               `json:"sourcesUsed"`
	Sources       []string          `json:"sources"`
	Cached        bool              `json:"cached"`
	Stale         bool              `json:"stale"`
	Emergency     bool              `json:"emergency"`
	Timestamp     time.Time         `json:"timestamp"`
	Query         string            `json:"query"`
	Region        string            `json:"region"`
}

// Sources yields the active adapters of a tier in configuration order.
type Sources interface {
	Tier(t collect.Tier) []collect.Adapter
}

// Enricher fills in missing article fields in place.
type Enricher interface {
	Enrich(ctx context.Context, articles []article.Article) *fetch.Result
}

// Settings controls aggregation behaviour.
type Settings struct {
	FallbackFloor    int
	DefaultLimit     int
	SourceTimeout    time.Duration
	EmergencyContent bool
}

// SettingsFromConfig maps the aggregation config section.
func SettingsFromConfig(c config.Aggregation) Settings {
	return Settings{
		FallbackFloor:    c.FallbackFloor,
		DefaultLimit:     c.DefaultLimit,
		SourceTimeout:    c.SourceTimeout,
		EmergencyContent: c.EmergencyContent,
	}
}

// Option configures optional collaborators.
type Option func(*Aggregator)

func WithEnricher(e Enricher) Option {
	return func(a *Aggregator) { a.enricher = e }
}

func WithRecorder(r audit.Recorder) Option {
	return func(a *Aggregator) { a.recorder = r }
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(a *Aggregator) { a.metrics = m }
}

func WithClock(now func() time.Time) Option {
	return func(a *Aggregator) { a.now = now }
}

// Aggregator orchestrates tiered fetching. It is safe for concurrent use.
type Aggregator struct {
	sources  Sources
	cache    *cache.Cache
	policy   rank.Policy
	settings Settings
	enricher Enricher
	recorder audit.Recorder
	metrics  *metrics.Metrics
	now      func() time.Time
	group    singleflight.Group
}

// New creates an aggregator.
func New(sources Sources, c *cache.Cache, policy rank.Policy, settings Settings, opts ...Option) *Aggregator {
	if settings.FallbackFloor < 0 {
		settings.FallbackFloor = 0
	}
	if settings.DefaultLimit <= 0 {
		settings.DefaultLimit = 50
	}
	if settings.SourceTimeout <= 0 {
		settings.SourceTimeout = 10 * time.Second
	}
	a := &Aggregator{
		sources:  sources,
		cache:    c,
		policy:   policy,
		settings: settings,
		recorder: audit.Nop{},
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Settings returns the effective settings.
func (a *Aggregator) Settings() Settings {
	return a.settings
}

// outcome is the shared result of one upstream aggregation.
type outcome struct {
	articles    []article.Article
	sources     []string
	storedAt    time.Time
	attempted   int
	failed      int
	cached      bool
	stale       bool
	emergency   bool
	fallbackRan bool
}

func (o *outcome) mode() string {
	switch {
	case o.emergency:
		return metrics.DeliveryEmergency
	case o.stale:
		return metrics.DeliveryStale
	case o.cached:
		return metrics.DeliveryCached
	default:
		return metrics.DeliveryFresh
	}
}

// FetchAggregatedNews returns ranked articles for query and region. A limit of
// zero or less means the configured default.
func (a *Aggregator) FetchAggregatedNews(ctx context.Context, query, region string, limit int) (*Response, error) {
	key := cache.NewKey(query, region)
	if limit <= 0 {
		limit = a.settings.DefaultLimit
	}

	if entry, ok := a.cache.Get(key); ok {
		out := &outcome{
			articles: entry.Articles,
			sources:  entry.Sources,
			storedAt: entry.StoredAt,
			cached:   true,
		}
		a.observe(key, limit, out, nil)
		return a.respond(key, limit, out), nil
	}

	// A cancelled caller must not fail the other requests sharing this fetch.
	fetchCtx := context.WithoutCancel(ctx)
	v, err, shared := a.group.Do(key.String(), func() (any, error) {
		return a.aggregate(fetchCtx, key)
	})
	if shared {
		a.metrics.Coalesced()
	}
	if err != nil {
		a.observe(key, limit, nil, err)
		return nil, err
	}

	out := v.(*outcome)
	a.observe(key, limit, out, nil)
	return a.respond(key, limit, out), nil
}

func (a *Aggregator) aggregate(ctx context.Context, key cache.Key) (*outcome, error) {
	req := collect.Request{Query: key.Query, Region: key.Region, Limit: a.settings.DefaultLimit}

	result := a.runTier(ctx, collect.TierPrimary, req)
	if n := len(result.articles); n == 0 || n < a.settings.FallbackFloor {
		log.Printf("Primary tier yielded %d articles for %q (floor %d), trying fallback tier", n, key.String(), a.settings.FallbackFloor)
		a.metrics.FallbackTierUsed()
		result.merge(a.runTier(ctx, collect.TierFallback, req))
		result.fallbackRan = true
	}

	if len(result.articles) == 0 {
		return a.exhausted(key, result)
	}

	ranked, err := a.process(ctx, key, result.articles, result.sources)
	if err != nil {
		log.Printf("Error processing articles for %q: %v", key.String(), err)
		if entry, ok := a.cache.GetLenient(key); ok {
			log.Printf("Serving last cached result for %q after pipeline failure", key.String())
			return &outcome{
				articles:  entry.Articles,
				sources:   entry.Sources,
				storedAt:  entry.StoredAt,
				attempted: result.attempted,
				failed:    result.failed,
				cached:    true,
				stale:     a.cache.IsExpired(entry),
			}, nil
		}
		return nil, err
	}

	return &outcome{
		articles:    ranked,
		sources:     result.sources,
		storedAt:    a.now(),
		attempted:   result.attempted,
		failed:      result.failed,
		fallbackRan: result.fallbackRan,
	}, nil
}

// exhausted handles a fetch in which every tier came back empty.
func (a *Aggregator) exhausted(key cache.Key, result tierResult) (*outcome, error) {
	if entry, ok := a.cache.GetLenient(key); ok {
		log.Printf("All sources empty for %q, serving stale cache from %s", key.String(), entry.StoredAt.Format(time.RFC3339))
		return &outcome{
			articles:  entry.Articles,
			sources:   entry.Sources,
			storedAt:  entry.StoredAt,
			attempted: result.attempted,
			failed:    result.failed,
			cached:    true,
			stale:     true,
		}, nil
	}

	if !a.settings.EmergencyContent {
		return nil, fmt.Errorf("%w (%d of %d sources failed)", ErrAggregationExhausted, result.failed, result.attempted)
	}

	log.Printf("All sources empty for %q, serving emergency content", key.String())
	now := a.now()
	return &outcome{
		articles:  emergencyArticles(key, now),
		storedAt:  now,
		attempted: result.attempted,
		failed:    result.failed,
		emergency: true,
	}, nil
}

// process deduplicates, backfills, ranks and caches. Panics become a
// *PipelineFailure.
func (a *Aggregator) process(ctx context.Context, key cache.Key, articles []article.Article, sources []string) (ranked []article.Article, err error) {
	stage := "dedup"
	defer func() {
		if r := recover(); r != nil {
			ranked = nil
			err = &PipelineFailure{Stage: stage, Err: fmt.Errorf("panic: %v", r)}
		}
	}()

	deduped := rank.Deduplicate(articles)

	if a.enricher != nil {
		stage = "backfill"
		a.enricher.Enrich(ctx, deduped)
	}

	stage = "rank"
	ranked = rank.Rank(deduped, a.policy, a.now())

	stage = "cache"
	a.cache.Set(key, ranked, sources)
	return ranked, nil
}

// respond builds a caller-owned response from a shared outcome.
func (a *Aggregator) respond(key cache.Key, limit int, out *outcome) *Response {
	articles := rank.Truncate(article.Clone(out.articles), limit)
	sources := append([]string{}, out.sources...)
	return &Response{
		Success:       true,
		Articles:      articles,
		TotalArticles: len(articles),
		SourcesUsed:   len(sources),
		Sources:       sources,
		Cached:        out.cached,
		Stale:         out.stale,
		Emergency:     out.emergency,
		Timestamp:     out.storedAt,
		Query:         key.Query,
		Region:        key.Region,
	}
}

// observe records metrics and emits an audit event for one request.
func (a *Aggregator) observe(key cache.Key, limit int, out *outcome, err error) {
	mode := metrics.DeliveryFailed
	if out != nil {
		mode = out.mode()
	}
	a.metrics.ObserveDelivery(mode)
	a.recorder.Emit(auditEvent(key, limit, mode, out, err, a.now()))
}

func auditEvent(key cache.Key, limit int, mode string, out *outcome, err error, now time.Time) audit.Event {
	e := audit.Event{
		SessionID:       uuid.NewString(),
		RequestedAction: "fetch_aggregated_news",
		BusinessContext: fmt.Sprintf("query=%q region=%q limit=%d", key.Query, key.Region, limit),
		Decision:        mode,
		CreatedAt:       now,
	}

	if out == nil {
		e.TechnicalContext = fmt.Sprintf("error=%v", err)
		e.Rationale = "No source returned articles and no fallback was available."
		return e
	}

	e.TechnicalContext = fmt.Sprintf("attempted=%d failed=%d sources=%v articles=%d fallback_tier=%t",
		out.attempted, out.failed, out.sources, len(out.articles), out.fallbackRan)
	if out.attempted > 0 {
		e.RiskScore = float64(out.failed) / float64(out.attempted)
	}

	switch mode {
	case metrics.DeliveryEmergency:
		e.UrgencyScore = 1
		e.Rationale = "Every source failed or returned nothing; served labelled emergency content."
	case metrics.DeliveryStale:
		e.UrgencyScore = 0.5
		e.Rationale = "Live fetch produced nothing usable; served an expired cached result."
	case metrics.DeliveryCached:
		e.Rationale = "Served a cached result within its TTL."
	default:
		e.Rationale = fmt.Sprintf("Aggregated %d articles from %d sources.", len(out.articles), len(out.sources))
	}
	return e
}
