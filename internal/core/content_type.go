package core

import (
	"net/url"
	"strings"
)

// hostTypes maps a host (or its parent domain) to the content type of links
// pointing there. Hosts are matched on the registrable suffix so
// "www.loom.com" and "loom.com" behave the same.
var hostTypes = []struct {
	host string
	typ  ContentType
}{
	{"youtube.com", ContentVideo},
	{"youtu.be", ContentVideo},
	{"loom.com", ContentVideo},
	{"gamma.app", ContentSlideDeck},
	{"guidde.com", ContentGuide},
	{"clay.com", ContentClayTable},
}

// InferContentType guesses the content type of a curriculum row from its
// URL. Rows without a URL are text.
func InferContentType(rawURL string) ContentType {
	rawURL = strings.TrimSpace(rawURL)
	if rawURL == "" {
		return ContentText
	}

	host := urlHost(rawURL)
	for _, ht := range hostTypes {
		if host == ht.host || strings.HasSuffix(host, "."+ht.host) {
			return ht.typ
		}
	}
	return ContentExternalLink
}

// NormalizeURL trims the URL, adds https:// when the scheme is missing and
// rewrites share links from the video and slide hosts into their embeddable
// form. Already-normalized URLs come back unchanged.
func NormalizeURL(rawURL string) string {
	rawURL = strings.TrimSpace(rawURL)
	if rawURL == "" {
		return ""
	}
	if !strings.Contains(rawURL, "://") {
		rawURL = "https://" + strings.TrimPrefix(rawURL, "//")
	}

	u, err := url.Parse(rawURL)
	if err != nil || u.Host == "" {
		return rawURL
	}

	host := strings.ToLower(strings.TrimPrefix(u.Host, "www."))
	path := strings.Trim(u.Path, "/")
	segments := strings.Split(path, "/")

	switch {
	case host == "youtu.be" && path != "":
		return youtubeEmbed(segments[0], u.Query())

	case host == "youtube.com" || host == "m.youtube.com":
		switch {
		case segments[0] == "watch" && u.Query().Get("v") != "":
			return youtubeEmbed(u.Query().Get("v"), u.Query())
		case (segments[0] == "shorts" || segments[0] == "live") && len(segments) > 1:
			return youtubeEmbed(segments[1], u.Query())
		}

	case host == "loom.com":
		if segments[0] == "share" && len(segments) > 1 {
			return "https://www.loom.com/embed/" + segments[1]
		}

	case host == "gamma.app":
		if segments[0] == "docs" && len(segments) > 1 {
			return "https://gamma.app/embed/" + gammaDocID(segments[1])
		}
	}

	return u.String()
}

// youtubeEmbed builds an embed URL, carrying over a start offset if present.
func youtubeEmbed(id string, q url.Values) string {
	embed := "https://www.youtube.com/embed/" + id
	start := q.Get("t")
	if start == "" {
		start = q.Get("start")
	}
	start = strings.TrimSuffix(start, "s")
	if start != "" && isDigits(start) {
		embed += "?start=" + start
	}
	return embed
}

// gammaDocID extracts the document id from a docs slug. Gamma slugs look
// like "Title-Words-abc123xyz"; the id is the part after the last hyphen.
func gammaDocID(slug string) string {
	if i := strings.LastIndex(slug, "-"); i >= 0 && i < len(slug)-1 {
		return slug[i+1:]
	}
	return slug
}

func urlHost(rawURL string) string {
	if !strings.Contains(rawURL, "://") {
		rawURL = "https://" + rawURL
	}
	u, err := url.Parse(rawURL)
	if err != nil {
		return ""
	}
	return strings.ToLower(strings.TrimPrefix(u.Hostname(), "www."))
}

func isDigits(s string) bool {
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return s != ""
}
