package cache

import (
	"testing"
	"time"

	"github.com/TobiSchelling/newsrelay/internal/article"
)

type fakeClock struct{ t time.Time }

func (f *fakeClock) Now() time.Time          { return f.t }
func (f *fakeClock) Advance(d time.Duration) { f.t = f.t.Add(d) }

func newTestCache(t *testing.T) (*Cache, *fakeClock) {
	t.Helper()
	clock := &fakeClock{t: time.Date(2026, 2, 6, 9, 0, 0, 0, time.UTC)}
	c, err := New(30*time.Minute, 8, WithClock(clock.Now))
	if err != nil {
		t.Fatalf("failed to create cache: %v", err)
	}
	return c, clock
}

func sample() []article.Article {
	return []article.Article{{ID: "1", Title: "One"}, {ID: "2", Title: "Two"}}
}

func TestNewKeyNormalizes(t *testing.T) {
	if NewKey("  AI ", "us") != NewKey("ai", " US") {
		t.Error("expected equivalent keys to match")
	}
	if got := NewKey("AI", "us").String(); got != "ai|US" {
		t.Errorf("expected 'ai|US', got %q", got)
	}
}

func TestTTLBoundary(t *testing.T) {
	c, clock := newTestCache(t)
	key := NewKey("AI", "US")
	c.Set(key, sample(), []string{"newsapi"})

	clock.Advance(29 * time.Minute)
	e, ok := c.Get(key)
	if !ok {
		t.Fatal("expected entry to be valid at T+29m")
	}
	if c.IsExpired(e) {
		t.Error("expected IsExpired=false at T+29m")
	}

	clock.Advance(2 * time.Minute)
	if _, ok := c.Get(key); ok {
		t.Error("expected strict read to miss at T+31m")
	}

	e, ok = c.GetLenient(key)
	if !ok {
		t.Fatal("expected lenient read to return expired entry")
	}
	if len(e.Articles) != 2 || e.Articles[0].Title != "One" {
		t.Errorf("expected original articles, got %+v", e.Articles)
	}
	if !c.IsExpired(e) {
		t.Error("expected lenient entry to report expired")
	}
}

func TestStrictReadEvictsExpiredFromLiveSet(t *testing.T) {
	c, clock := newTestCache(t)
	key := NewKey("AI", "US")
	c.Set(key, sample(), nil)

	clock.Advance(31 * time.Minute)
	c.Get(key)
	if c.Len() != 0 {
		t.Errorf("expected expired entry removed from live set, got %d entries", c.Len())
	}
	if _, ok := c.GetLenient(key); !ok {
		t.Error("expected evicted entry to remain available to lenient reads")
	}
}

func TestSetReplacesStale(t *testing.T) {
	c, clock := newTestCache(t)
	key := NewKey("AI", "US")
	c.Set(key, sample(), nil)
	clock.Advance(31 * time.Minute)
	c.Get(key)

	c.Set(key, []article.Article{{ID: "3", Title: "Three"}}, nil)
	e, ok := c.Get(key)
	if !ok {
		t.Fatal("expected fresh entry after Set")
	}
	if len(e.Articles) != 1 || e.Articles[0].ID != "3" {
		t.Errorf("expected replaced articles, got %+v", e.Articles)
	}
}

func TestEntriesAreCopies(t *testing.T) {
	c, _ := newTestCache(t)
	key := NewKey("AI", "US")
	src := sample()
	c.Set(key, src, nil)
	src[0].Title = "mutated"

	e, _ := c.Get(key)
	e.Articles[1].Title = "mutated too"

	again, _ := c.Get(key)
	if again.Articles[0].Title != "One" || again.Articles[1].Title != "Two" {
		t.Errorf("expected cache contents unaffected by caller mutation, got %+v", again.Articles)
	}
}

func TestMissAndPurge(t *testing.T) {
	c, _ := newTestCache(t)
	if _, ok := c.Get(NewKey("none", "US")); ok {
		t.Error("expected miss for unknown key")
	}
	if _, ok := c.GetLenient(NewKey("none", "US")); ok {
		t.Error("expected lenient miss for unknown key")
	}

	c.Set(NewKey("AI", "US"), sample(), nil)
	c.Purge()
	if _, ok := c.GetLenient(NewKey("AI", "US")); ok {
		t.Error("expected purge to drop entries")
	}
}

func TestDefaults(t *testing.T) {
	c, err := New(0, 0)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if c.TTL() != DefaultTTL {
		t.Errorf("expected default TTL %v, got %v", DefaultTTL, c.TTL())
	}
	if !c.IsExpired(nil) {
		t.Error("expected nil entry to count as expired")
	}
}
