// Package article defines the canonical news record shared by every stage of
// the aggregation pipeline.
package article

import (
	"crypto/sha256"
	"fmt"
	"net/url"
	"strings"
	"time"
)

// EmergencyProvenance marks filler articles produced when every source failed.
const EmergencyProvenance = "emergency-content"

// Article is a normalized news record produced by a source adapter.
type Article struct {
	ID              string    `json:"id"`
	Title           string    `json:"title"`
	Description     string    `json:"description,omitempty"`
	URL             string    `json:"url"`
	Source          string    `json:"source"`
	Author          string    `json:"author,omitempty"`
	PublishedAt     time.Time `json:"publishedAt"`
	Region          string    `json:"region"`
	Category        string    `json:"category"`
	QualityScore    float64   `json:"qualityScore"`
	RegionRelevance float64   `json:"regionRelevance"`
	Provenance      string    `json:"provenance"`
}

// IsEmergency reports whether the article is synthetic filler rather than sourced news.
func (a Article) IsEmergency() bool {
	return a.Provenance == EmergencyProvenance
}

// NewID derives a content hash from the canonical URL, falling back to the
// normalized title when the URL is empty.
func NewID(rawURL, title string) string {
	basis := CanonicalURL(rawURL)
	if basis == "" {
		basis = "title:" + NormalizeTitle(title)
	}
	h := sha256.Sum256([]byte(basis))
	return fmt.Sprintf("%x", h[:16])
}

// NormalizeTitle lower-cases a title and collapses all whitespace runs.
func NormalizeTitle(title string) string {
	return strings.Join(strings.Fields(strings.ToLower(title)), " ")
}

// CanonicalURL lower-cases scheme and host and drops fragments and trailing
// slashes. Unparseable input is returned trimmed.
func CanonicalURL(rawURL string) string {
	rawURL = strings.TrimSpace(rawURL)
	if rawURL == "" {
		return ""
	}
	u, err := url.Parse(rawURL)
	if err != nil || u.Host == "" {
		return strings.TrimRight(rawURL, "/")
	}
	u.Scheme = strings.ToLower(u.Scheme)
	u.Host = strings.ToLower(u.Host)
	u.Fragment = ""
	u.Path = strings.TrimRight(u.Path, "/")
	return u.String()
}

// Clone returns a copy of the slice so callers can mutate it freely.
func Clone(articles []Article) []Article {
	if articles == nil {
		return nil
	}
	out := make([]Article, len(articles))
	copy(out, articles)
	return out
}
