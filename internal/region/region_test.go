package region

import (
	"testing"
	"time"

	"github.com/TobiSchelling/newsrelay/internal/article"
)

var now = time.Date(2026, 2, 6, 12, 0, 0, 0, time.UTC)

func newTestFilter(t *testing.T) *Filter {
	t.Helper()
	f, err := NewFilter(nil)
	if err != nil {
		t.Fatalf("NewFilter: %v", err)
	}
	return f
}

func TestScoreSignals(t *testing.T) {
	f := newTestFilter(t)

	tagged := article.Article{Title: "Local weather update", Region: "US"}
	if got := f.Score(tagged, "US"); got != exactTagBoost {
		t.Errorf("expected exact tag boost %d, got %v", exactTagBoost, got)
	}

	keyword := article.Article{Title: "Samsung opens new plant in Seoul"}
	if got := f.Score(keyword, "KR"); got != 2*keywordHit {
		t.Errorf("expected two keyword hits, got %v", got)
	}

	tech := article.Article{Title: "New AI model released"}
	if got := f.Score(tech, "FR"); got != techBoost {
		t.Errorf("expected tech boost only, got %v", got)
	}

	none := article.Article{Title: "Cooking with lentils"}
	if got := f.Score(none, "DE"); got != 0 {
		t.Errorf("expected zero relevance, got %v", got)
	}
}

func TestScoreWordBoundaries(t *testing.T) {
	f := newTestFilter(t)
	// "maid" contains "ai" and "sapphire" contains "sap" but neither is a whole word.
	a := article.Article{Title: "Maid of sapphire"}
	if got := f.Score(a, "DE"); got != 0 {
		t.Errorf("expected no partial-word matches, got %v", got)
	}
	b := article.Article{Title: "SAP shares rise", Description: "Berlin-based analysts cheer"}
	if got := f.Score(b, "de"); got != 2*keywordHit {
		t.Errorf("expected case-insensitive whole-word hits, got %v", got)
	}
}

func TestScoreBounded(t *testing.T) {
	f := newTestFilter(t)
	a := article.Article{
		Title:       "OpenAI, Google, Microsoft, Apple and Nvidia in Silicon Valley AI race",
		Description: "American firms in San Francisco and New York",
		Region:      "US",
	}
	got := f.Score(a, "US")
	want := float64(exactTagBoost + keywordCap + techBoost)
	if got != want {
		t.Errorf("expected capped score %v, got %v", want, got)
	}
	if got > 100 {
		t.Errorf("expected score <= 100, got %v", got)
	}
}

func TestUnknownRegion(t *testing.T) {
	f := newTestFilter(t)
	if f.Known("ZZ") {
		t.Error("expected ZZ to be unknown")
	}
	if !f.Known(" gb ") {
		t.Error("expected gb to be known")
	}
	a := article.Article{Title: "Something", Region: "ZZ"}
	if got := f.Score(a, "ZZ"); got != exactTagBoost {
		t.Errorf("expected only tag boost for unknown region, got %v", got)
	}
}

func TestViewOrdersAndFilters(t *testing.T) {
	f := newTestFilter(t)
	pool := []article.Article{
		{ID: "old", Title: "Toyota results", PublishedAt: now.Add(-72 * time.Hour)},
		{ID: "fresh", Title: "Toyota results again", PublishedAt: now.Add(-1 * time.Hour)},
		{ID: "unrelated", Title: "Lentil prices"},
		{ID: "tagged", Title: "Tokyo startup raises money in Japan", Region: "JP", PublishedAt: now.Add(-2 * time.Hour)},
		{ID: "filler", Title: "Sony news unavailable", Provenance: article.EmergencyProvenance},
	}

	view := f.View(pool, "JP", 10, now)
	var ids []string
	for _, a := range view {
		ids = append(ids, a.ID)
	}
	want := []string{"tagged", "fresh", "old"}
	if len(ids) != len(want) {
		t.Fatalf("expected %v, got %v", want, ids)
	}
	for i := range want {
		if ids[i] != want[i] {
			t.Errorf("position %d: expected %s, got %s", i, want[i], ids[i])
		}
	}
	if view[0].RegionRelevance == 0 {
		t.Error("expected RegionRelevance to be set on view items")
	}
	if pool[0].RegionRelevance != 0 {
		t.Error("expected pool to be left untouched")
	}

	if got := len(f.View(pool, "JP", 1, now)); got != 1 {
		t.Errorf("expected view truncated to 1, got %d", got)
	}
}

func TestBuckets(t *testing.T) {
	f := newTestFilter(t)
	pool := []article.Article{
		{ID: "uk", Title: "London fintech news"},
		{ID: "in", Title: "Infosys hiring in Bengaluru"},
	}
	b := f.Buckets(pool, []string{"gb", "IN", "BR"}, 5, now)
	if len(b["GB"]) != 1 || b["GB"][0].ID != "uk" {
		t.Errorf("unexpected GB bucket: %+v", b["GB"])
	}
	if len(b["IN"]) != 1 || b["IN"][0].ID != "in" {
		t.Errorf("unexpected IN bucket: %+v", b["IN"])
	}
	if len(b["BR"]) != 0 {
		t.Errorf("expected empty BR bucket, got %+v", b["BR"])
	}
}

func TestNewFilterRejectsEmptyCode(t *testing.T) {
	if _, err := NewFilter([]Profile{{Code: " "}}); err == nil {
		t.Error("expected error for empty region code")
	}
}
