package main

import (
	"fmt"
	"log"
	"net/http"
	"os"
	"time"

	"github.com/TobiSchelling/newsrelay/internal/audit"
	"github.com/TobiSchelling/newsrelay/internal/cache"
	"github.com/TobiSchelling/newsrelay/internal/collect"
	"github.com/TobiSchelling/newsrelay/internal/config"
	"github.com/TobiSchelling/newsrelay/internal/database"
	"github.com/TobiSchelling/newsrelay/internal/fetch"
	"github.com/TobiSchelling/newsrelay/internal/metrics"
	"github.com/TobiSchelling/newsrelay/internal/pipeline"
	"github.com/TobiSchelling/newsrelay/internal/rank"
	"github.com/TobiSchelling/newsrelay/internal/region"
)

// app holds the collaborators shared by the fetch, regions and serve commands.
type app struct {
	registry   *collect.Registry
	cache      *cache.Cache
	aggregator *pipeline.Aggregator
	regions    *region.Filter
	metrics    *metrics.Metrics
	db         *database.DB
	dispatcher *audit.Dispatcher
}

func newApp(cfg *config.Config) (*app, error) {
	collect.UserAgent = "newsrelay/" + version

	client := &http.Client{Timeout: 30 * time.Second}
	registry, err := collect.NewRegistry(cfg.Sources, os.LookupEnv, client)
	if err != nil {
		return nil, fmt.Errorf("building source registry: %w", err)
	}
	if registry.ActiveCount() == 0 {
		log.Println("No active sources; set an API key or enable an RSS source")
	}

	c, err := cache.New(cfg.Cache.TTL, cfg.Cache.MaxEntries)
	if err != nil {
		return nil, fmt.Errorf("creating cache: %w", err)
	}

	regions, err := region.NewFilter(region.DefaultProfiles)
	if err != nil {
		return nil, fmt.Errorf("building region filter: %w", err)
	}

	credible := cfg.Ranking.CredibleSources
	if len(credible) == 0 {
		credible = rank.DefaultCredibleSources
	}

	a := &app{registry: registry, cache: c, regions: regions, metrics: metrics.New()}

	opts := []pipeline.Option{pipeline.WithMetrics(a.metrics)}
	if cfg.Backfill.Enabled {
		opts = append(opts, pipeline.WithEnricher(fetch.NewEnricher(cfg.Backfill.MaxArticles, cfg.Backfill.Timeout)))
	}
	if cfg.Audit.Enabled {
		db, err := openDB()
		if err != nil {
			log.Printf("Audit store unavailable, logging audit events instead: %v", err)
			a.dispatcher = audit.NewDispatcher(audit.LogSink{}, cfg.Audit.Buffer)
		} else {
			a.db = db
			a.dispatcher = audit.NewDispatcher(db, cfg.Audit.Buffer)
		}
		opts = append(opts, pipeline.WithRecorder(a.dispatcher))
	}

	a.aggregator = pipeline.New(
		registry,
		c,
		rank.NewHeuristicPolicy(credible),
		pipeline.SettingsFromConfig(cfg.Aggregation),
		opts...,
	)
	return a, nil
}

// Close flushes pending audit events and closes the store.
func (a *app) Close() {
	if a.dispatcher != nil {
		a.dispatcher.Close()
	}
	if a.db != nil {
		a.db.Close()
	}
}
