package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/TobiSchelling/newsrelay/internal/article"
	"github.com/TobiSchelling/newsrelay/internal/collect"
	"github.com/TobiSchelling/newsrelay/internal/metrics"
)

// tierResult is the combined yield of one or more tiers.
type tierResult struct {
	articles    []article.Article
	sources     []string // adapters that returned at least one article
	attempted   int
	failed      int
	fallbackRan bool
}

func (r *tierResult) merge(other tierResult) {
	r.articles = append(r.articles, other.articles...)
	r.sources = append(r.sources, other.sources...)
	r.attempted += other.attempted
	r.failed += other.failed
}

// runTier calls every adapter of a tier concurrently. Failures are logged and
// counted. Results are combined in registry order.
func (a *Aggregator) runTier(ctx context.Context, tier collect.Tier, req collect.Request) tierResult {
	adapters := a.sources.Tier(tier)
	if len(adapters) == 0 {
		return tierResult{}
	}

	lists := make([][]article.Article, len(adapters))
	errs := make([]error, len(adapters))

	var g errgroup.Group
	for i, adapter := range adapters {
		g.Go(func() error {
			lists[i], errs[i] = a.callAdapter(ctx, adapter, req)
			return nil
		})
	}
	_ = g.Wait()

	result := tierResult{attempted: len(adapters)}
	for i, adapter := range adapters {
		if errs[i] != nil {
			result.failed++
			log.Printf("Error fetching from %s: %v", adapter.Name(), errs[i])
			continue
		}
		if len(lists[i]) == 0 {
			continue
		}
		for j := range lists[i] {
			if lists[i][j].Provenance == "" {
				lists[i][j].Provenance = adapter.Name()
			}
		}
		result.articles = append(result.articles, lists[i]...)
		result.sources = append(result.sources, adapter.Name())
	}

	log.Printf("%s tier: %d articles from %d/%d sources (%d failed)",
		tier, len(result.articles), len(result.sources), result.attempted, result.failed)
	return result
}

// callAdapter runs one adapter under the per-source timeout.
func (a *Aggregator) callAdapter(ctx context.Context, adapter collect.Adapter, req collect.Request) (list []article.Article, err error) {
	ctx, cancel := context.WithTimeout(ctx, a.settings.SourceTimeout)
	defer cancel()

	start := time.Now()
	defer func() {
		if r := recover(); r != nil {
			list = nil
			err = &collect.SourceError{Provider: adapter.Name(), Err: fmt.Errorf("panic: %v", r)}
		}
		a.metrics.ObserveSource(adapter.Name(), sourceOutcome(err), len(list), time.Since(start))
	}()

	list, err = adapter.Fetch(ctx, req)
	if err != nil {
		return nil, err
	}
	return list, nil
}

func sourceOutcome(err error) string {
	var se *collect.SourceError
	switch {
	case err == nil:
		return metrics.OutcomeOK
	case errors.As(err, &se) && se.IsTimeout(), errors.Is(err, context.DeadlineExceeded):
		return metrics.OutcomeTimeout
	default:
		return metrics.OutcomeError
	}
}
