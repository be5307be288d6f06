package collect

import (
	"fmt"
	"log"
	"net/http"
	"strings"

	"github.com/TobiSchelling/newsrelay/internal/config"
)

// Source kinds understood by NewRegistry.
const (
	KindNewsAPI    = "newsapi"
	KindNewsData   = "newsdata"
	KindMediaStack = "mediastack"
	KindGNews      = "gnews"
	KindRSS        = "rss"
)

// Entry is one configured source and whether it can be used.
type Entry struct {
	Name    string
	Kind    string
	Tier    Tier
	Active  bool
	Reason  string // why the entry is inactive
	Adapter Adapter
}

// Registry holds adapters in configuration order, split into tiers.
type Registry struct {
	entries []Entry
}

// NewRegistry builds adapters for the configured sources. A source whose API
// key environment variable is unset is kept but marked inactive.
func NewRegistry(sources []config.Source, lookupEnv func(string) (string, bool), client *http.Client) (*Registry, error) {
	r := &Registry{}
	for _, src := range sources {
		e, err := buildEntry(src, lookupEnv, client)
		if err != nil {
			return nil, err
		}
		if !e.Active {
			log.Printf("Source %s inactive: %s", e.Name, e.Reason)
		}
		r.entries = append(r.entries, e)
	}
	return r, nil
}

func buildEntry(src config.Source, lookupEnv func(string) (string, bool), client *http.Client) (Entry, error) {
	kind := strings.ToLower(strings.TrimSpace(src.Kind))
	name := src.Name
	if name == "" {
		name = kind
	}

	tier := Tier(strings.ToLower(strings.TrimSpace(src.Tier)))
	switch tier {
	case "":
		tier = TierPrimary
	case TierPrimary, TierFallback:
	default:
		return Entry{}, fmt.Errorf("source %s: unknown tier %q", name, src.Tier)
	}

	e := Entry{Name: name, Kind: kind, Tier: tier}

	var apiKey string
	if kind != KindRSS {
		if src.APIKeyEnv == "" {
			e.Reason = "no api_key_env configured"
		} else if v, ok := lookupEnv(src.APIKeyEnv); !ok || strings.TrimSpace(v) == "" {
			e.Reason = fmt.Sprintf("%s not set", src.APIKeyEnv)
		} else {
			apiKey = strings.TrimSpace(v)
		}
	}

	switch kind {
	case KindNewsAPI:
		e.Adapter = NewNewsAPIAdapter(name, src.Endpoint, apiKey, client, src.RatePerMinute)
	case KindNewsData:
		e.Adapter = NewNewsDataAdapter(name, src.Endpoint, apiKey, client, src.RatePerMinute)
	case KindMediaStack:
		e.Adapter = NewMediaStackAdapter(name, src.Endpoint, apiKey, client, src.RatePerMinute)
	case KindGNews:
		e.Adapter = NewGNewsAdapter(name, src.Endpoint, apiKey, client, src.RatePerMinute)
	case KindRSS:
		e.Adapter = NewFeedAdapter(name, src.Endpoint, client, src.RatePerMinute)
	default:
		return Entry{}, fmt.Errorf("source %s: unknown kind %q", name, src.Kind)
	}

	switch {
	case src.Disabled:
		e.Reason = "disabled in config"
	case e.Reason == "":
		e.Active = true
	}
	return e, nil
}

// Add appends an active adapter to a tier.
func (r *Registry) Add(tier Tier, a Adapter) {
	r.entries = append(r.entries, Entry{Name: a.Name(), Tier: tier, Active: true, Adapter: a})
}

// Tier returns the active adapters of a tier in configuration order.
func (r *Registry) Tier(t Tier) []Adapter {
	var out []Adapter
	for _, e := range r.entries {
		if e.Active && e.Tier == t {
			out = append(out, e.Adapter)
		}
	}
	return out
}

// Entries returns every configured source, active or not.
func (r *Registry) Entries() []Entry {
	return append([]Entry(nil), r.entries...)
}

// ActiveCount returns the number of usable adapters across tiers.
func (r *Registry) ActiveCount() int {
	n := 0
	for _, e := range r.entries {
		if e.Active {
			n++
		}
	}
	return n
}
