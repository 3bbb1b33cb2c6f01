// Package htmlsanitize cleans admin-authored HTML (cohort welcome copy,
// text lesson bodies) before it is rendered to learners.
package htmlsanitize

import (
	"html"
	"strings"

	"github.com/microcosm-cc/bluemonday"
)

var (
	policy = newPolicy()
	strict = bluemonday.StrictPolicy()
)

func newPolicy() *bluemonday.Policy {
	p := bluemonday.UGCPolicy()
	p.AllowElements("u", "s", "mark", "sub", "sup")
	p.AllowAttrs("colspan", "rowspan").OnElements("td", "th")
	p.AllowAttrs("class").OnElements("table", "tr", "td", "th", "code", "pre")
	p.RequireNoFollowOnLinks(true)
	p.AddTargetBlankToFullyQualifiedLinks(true)
	return p
}

// Sanitize strips scripts, event handlers, iframes and unsafe URLs while
// keeping formatting, lists, tables and links.
func Sanitize(s string) string {
	if s == "" {
		return ""
	}
	return policy.Sanitize(s)
}

// StripTags removes all markup, leaving text.
func StripTags(s string) string {
	return strict.Sanitize(s)
}

// IsHTML reports whether s looks like markup rather than plain text.
func IsHTML(s string) bool {
	s = strings.TrimSpace(s)
	return strings.HasPrefix(s, "<") && strings.Contains(s, ">")
}

// TextToHTML escapes plain text and turns blank-line separated blocks into
// paragraphs and single newlines into line breaks.
func TextToHTML(s string) string {
	s = strings.TrimSpace(strings.ReplaceAll(s, "\r\n", "\n"))
	if s == "" {
		return ""
	}

	var b strings.Builder
	for _, para := range strings.Split(s, "\n\n") {
		para = strings.TrimSpace(para)
		if para == "" {
			continue
		}
		lines := strings.Split(para, "\n")
		for i, line := range lines {
			lines[i] = html.EscapeString(strings.TrimSpace(line))
		}
		b.WriteString("<p>")
		b.WriteString(strings.Join(lines, "<br>"))
		b.WriteString("</p>")
	}
	return b.String()
}

// Render returns safe HTML for a body that may be either HTML or plain text.
func Render(body string) string {
	if IsHTML(body) {
		return Sanitize(body)
	}
	return TextToHTML(body)
}
