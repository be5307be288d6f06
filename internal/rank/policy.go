package rank

import (
	"math"
	"strings"
	"time"

	"github.com/TobiSchelling/newsrelay/internal/article"
)

// Policy assigns a quality score to an article. Scores outside [0,100] are
// clamped by Rank.
type Policy interface {
	Score(a article.Article, now time.Time) float64
}

// PolicyFunc adapts a plain function to Policy.
type PolicyFunc func(a article.Article, now time.Time) float64

// Score calls f.
func (f PolicyFunc) Score(a article.Article, now time.Time) float64 {
	return f(a, now)
}

// DefaultCredibleSources is the allow-list used when none is configured.
var DefaultCredibleSources = []string{
	"Reuters",
	"Associated Press",
	"BBC News",
	"The Guardian",
	"The New York Times",
	"The Washington Post",
	"Bloomberg",
	"Financial Times",
	"The Wall Street Journal",
	"TechCrunch",
	"The Verge",
	"Wired",
	"Ars Technica",
	"MIT Technology Review",
	"CNBC",
	"NPR",
}

const baseScore = 40

// HeuristicPolicy scores articles from structural signals: title and
// description length, membership of the source in an allow-list, and recency.
type HeuristicPolicy struct {
	credible map[string]struct{}
}

// NewHeuristicPolicy builds a policy with the given credible source names.
// An empty list falls back to DefaultCredibleSources.
func NewHeuristicPolicy(credible []string) *HeuristicPolicy {
	if len(credible) == 0 {
		credible = DefaultCredibleSources
	}
	p := &HeuristicPolicy{credible: make(map[string]struct{}, len(credible))}
	for _, name := range credible {
		p.credible[strings.ToLower(strings.TrimSpace(name))] = struct{}{}
	}
	return p
}

// IsCredible reports whether source is on the allow-list (case-insensitive).
func (p *HeuristicPolicy) IsCredible(source string) bool {
	_, ok := p.credible[strings.ToLower(strings.TrimSpace(source))]
	return ok
}

// Score implements Policy.
func (p *HeuristicPolicy) Score(a article.Article, now time.Time) float64 {
	score := float64(baseScore)

	titleLen := len([]rune(strings.TrimSpace(a.Title)))
	switch {
	case titleLen >= 50:
		score += 15
	case titleLen >= 20:
		score += 10
	case titleLen < 10:
		score -= 10
	}

	descLen := len([]rune(strings.TrimSpace(a.Description)))
	switch {
	case descLen >= 150:
		score += 15
	case descLen >= 50:
		score += 10
	}

	if p.IsCredible(a.Source) {
		score += 15
	}

	if !a.PublishedAt.IsZero() {
		age := now.Sub(a.PublishedAt)
		switch {
		case age < 24*time.Hour:
			score += 15
		case age < 48*time.Hour:
			score += 8
		}
	}

	return clamp(score)
}

func clamp(score float64) float64 {
	switch {
	case math.IsNaN(score):
		return 0
	case score < 0:
		return 0
	case score > 100:
		return 100
	}
	return score
}
