// Package digest renders an aggregation response as a markdown briefing.
package digest

import (
	"fmt"
	"strings"
	"time"

	"github.com/TobiSchelling/newsrelay/internal/article"
	"github.com/TobiSchelling/newsrelay/internal/pipeline"
)

const (
	tldrSize       = 3
	noticesLabel   = "Notices"
	otherLabel     = "General"
	timeFormat     = "2006-01-02 15:04 MST"
	noticePrefix   = "**[Notice]** "
	emptyDigestMsg = "No articles are available for this request."
)

// Digest is a rendered briefing for one response.
type Digest struct {
	Title        string
	Banner       string
	TLDR         string
	Body         string
	ArticleCount int
	GeneratedAt  time.Time
}

// Build assembles a digest from resp.
func Build(resp *pipeline.Response) *Digest {
	d := &Digest{
		Title:        title(resp),
		Banner:       banner(resp),
		ArticleCount: len(resp.Articles),
		GeneratedAt:  resp.Timestamp,
	}
	d.TLDR = buildTLDR(resp.Articles)
	d.Body = assembleBody(resp.Articles)
	return d
}

// Markdown returns the full document.
func (d *Digest) Markdown() string {
	var b strings.Builder
	fmt.Fprintf(&b, "# %s\n\n", d.Title)
	if d.Banner != "" {
		fmt.Fprintf(&b, "> %s\n\n", d.Banner)
	}
	fmt.Fprintf(&b, "*%d articles, aggregated %s*\n\n", d.ArticleCount, d.GeneratedAt.UTC().Format(timeFormat))
	b.WriteString("## TL;DR\n\n")
	b.WriteString(d.TLDR)
	b.WriteString("\n\n")
	b.WriteString(d.Body)
	b.WriteString("\n")
	return b.String()
}

func title(resp *pipeline.Response) string {
	t := "News digest"
	if resp.Query != "" {
		t += ": " + escape(resp.Query)
	}
	if resp.Region != "" {
		t += " (" + resp.Region + ")"
	}
	return t
}

func banner(resp *pipeline.Response) string {
	stamp := resp.Timestamp.UTC().Format(timeFormat)
	switch {
	case resp.Emergency:
		return "**Emergency content.** No news source returned results. The items below are generated notices, not news."
	case resp.Stale:
		return fmt.Sprintf("**Stale result.** Live sources failed; showing cached articles from %s.", stamp)
	case resp.Cached:
		return fmt.Sprintf("**Cached result** from %s.", stamp)
	}
	return ""
}

func buildTLDR(articles []article.Article) string {
	var bullets []string
	for _, a := range articles {
		if a.IsEmergency() {
			continue
		}
		bullets = append(bullets, "- "+escape(a.Title))
		if len(bullets) == tldrSize {
			break
		}
	}
	if len(bullets) == 0 {
		return "- " + emptyDigestMsg
	}
	return strings.Join(bullets, "\n")
}

// assembleBody groups articles by category in ranked order. Emergency items
// go into their own section.
func assembleBody(articles []article.Article) string {
	var order []string
	groups := make(map[string][]article.Article)
	var notices []article.Article

	for _, a := range articles {
		if a.IsEmergency() {
			notices = append(notices, a)
			continue
		}
		label := categoryLabel(a.Category)
		if _, ok := groups[label]; !ok {
			order = append(order, label)
		}
		groups[label] = append(groups[label], a)
	}

	var sections []string
	if len(notices) > 0 {
		var lines []string
		for _, a := range notices {
			lines = append(lines, fmt.Sprintf("- %s%s: %s", noticePrefix, escape(a.Title), a.Description))
		}
		sections = append(sections, fmt.Sprintf("## %s\n\n%s", noticesLabel, strings.Join(lines, "\n")))
	}
	for _, label := range order {
		var lines []string
		for _, a := range groups[label] {
			lines = append(lines, articleLine(a))
		}
		sections = append(sections, fmt.Sprintf("## %s\n\n%s", label, strings.Join(lines, "\n\n")))
	}

	if len(sections) == 0 {
		return emptyDigestMsg
	}
	return strings.Join(sections, "\n\n---\n\n")
}

func articleLine(a article.Article) string {
	heading := escape(a.Title)
	if a.URL != "" {
		heading = fmt.Sprintf("[%s](%s)", heading, a.URL)
	}

	meta := []string{}
	if a.Source != "" {
		meta = append(meta, escape(a.Source))
	}
	if !a.PublishedAt.IsZero() {
		meta = append(meta, a.PublishedAt.UTC().Format("Jan 2, 15:04"))
	}
	meta = append(meta, fmt.Sprintf("score %.0f", a.QualityScore))

	line := fmt.Sprintf("- **%s**  \n  *%s*", heading, strings.Join(meta, " · "))
	if a.Description != "" {
		line += "  \n  " + escape(a.Description)
	}
	return line
}

func categoryLabel(category string) string {
	switch category {
	case "ai":
		return "AI"
	case "":
		return otherLabel
	default:
		return strings.ToUpper(category[:1]) + category[1:]
	}
}

var mdEscaper = strings.NewReplacer(
	`\`, `\\`,
	"*", `\*`,
	"_", `\_`,
	"[", `\[`,
	"]", `\]`,
	"`", "\\`",
	"<", "&lt;",
)

func escape(s string) string {
	return mdEscaper.Replace(strings.TrimSpace(s))
}
