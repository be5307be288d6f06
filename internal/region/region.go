// Package region scores how relevant an article is to a country and builds
// per-region views from a general article pool.
package region

import (
	"errors"
	"fmt"
	"math"
	"regexp"
	"sort"
	"strings"
	"time"

	"github.com/TobiSchelling/newsrelay/internal/article"
)

const (
	exactTagBoost = 50
	keywordHit    = 10
	keywordCap    = 40
	techBoost     = 10

	relevanceWeight = 0.6
	recencyWeight   = 0.4
)

type matcher struct {
	code  string
	terms []*regexp.Regexp
}

// Filter scores articles against a table of region profiles.
type Filter struct {
	regions map[string]matcher
	codes   []string
	tech    *regexp.Regexp
}

// NewFilter compiles the given profiles. Nil uses DefaultProfiles.
func NewFilter(profiles []Profile) (*Filter, error) {
	if profiles == nil {
		profiles = DefaultProfiles
	}

	f := &Filter{regions: make(map[string]matcher, len(profiles))}
	for _, p := range profiles {
		code := strings.ToUpper(strings.TrimSpace(p.Code))
		if code == "" {
			return nil, errors.New("region profile without code")
		}
		m := matcher{code: code}
		for _, term := range append(append([]string(nil), p.Names...), p.Keywords...) {
			re, err := wordPattern(term)
			if err != nil {
				return nil, fmt.Errorf("region %s term %q: %w", code, term, err)
			}
			m.terms = append(m.terms, re)
		}
		f.regions[code] = m
		f.codes = append(f.codes, code)
	}

	tech, err := wordPattern(techTerms...)
	if err != nil {
		return nil, fmt.Errorf("tech terms: %w", err)
	}
	f.tech = tech
	return f, nil
}

// wordPattern matches any of the terms as whole words, case-insensitively.
func wordPattern(terms ...string) (*regexp.Regexp, error) {
	quoted := make([]string, len(terms))
	for i, t := range terms {
		quoted[i] = regexp.QuoteMeta(strings.ToLower(strings.TrimSpace(t)))
	}
	return regexp.Compile(`(?i)(?:^|[^\pL\pN])(?:` + strings.Join(quoted, "|") + `)(?:$|[^\pL\pN])`)
}

// Codes lists the known region codes in table order.
func (f *Filter) Codes() []string {
	return append([]string(nil), f.codes...)
}

// Known reports whether code has a profile.
func (f *Filter) Known(code string) bool {
	_, ok := f.regions[strings.ToUpper(strings.TrimSpace(code))]
	return ok
}

// Score returns the relevance of a to the region, in [0,100]. Unknown regions
// only earn the exact-tag and tech boosts.
func (f *Filter) Score(a article.Article, code string) float64 {
	code = strings.ToUpper(strings.TrimSpace(code))
	text := a.Title + " \n " + a.Description

	score := 0.0
	if code != "" && strings.EqualFold(a.Region, code) {
		score += exactTagBoost
	}

	if m, ok := f.regions[code]; ok {
		hits := 0.0
		for _, re := range m.terms {
			if re.MatchString(text) {
				hits += keywordHit
			}
		}
		score += math.Min(hits, keywordCap)
	}

	if f.tech.MatchString(text) {
		score += techBoost
	}

	return math.Min(score, 100)
}

// Tag returns a copy of the pool with RegionRelevance set for the region.
func (f *Filter) Tag(pool []article.Article, code string) []article.Article {
	out := article.Clone(pool)
	for i := range out {
		out[i].RegionRelevance = f.Score(out[i], code)
	}
	return out
}

// View returns the top n articles relevant to the region, ordered by a blend
// of relevance and recency. Articles with zero relevance are dropped and
// emergency content is never promoted into a region view.
func (f *Filter) View(pool []article.Article, code string, n int, now time.Time) []article.Article {
	tagged := f.Tag(pool, code)

	type scored struct {
		a     article.Article
		value float64
	}
	var candidates []scored
	for _, a := range tagged {
		if a.RegionRelevance <= 0 || a.IsEmergency() {
			continue
		}
		value := relevanceWeight*a.RegionRelevance + recencyWeight*recencyScore(a.PublishedAt, now)
		candidates = append(candidates, scored{a: a, value: value})
	}

	sort.SliceStable(candidates, func(i, j int) bool {
		return candidates[i].value > candidates[j].value
	})

	if n > 0 && len(candidates) > n {
		candidates = candidates[:n]
	}
	out := make([]article.Article, len(candidates))
	for i, c := range candidates {
		out[i] = c.a
	}
	return out
}

// Buckets builds a view for each region code.
func (f *Filter) Buckets(pool []article.Article, codes []string, n int, now time.Time) map[string][]article.Article {
	out := make(map[string][]article.Article, len(codes))
	for _, code := range codes {
		code = strings.ToUpper(strings.TrimSpace(code))
		out[code] = f.View(pool, code, n, now)
	}
	return out
}

// recencyScore decays from 100 at publish time to ~50 after a day.
func recencyScore(published, now time.Time) float64 {
	if published.IsZero() {
		return 0
	}
	hours := now.Sub(published).Hours()
	if hours < 0 {
		hours = 0
	}
	return 100 * math.Exp(-0.02888*hours)
}
