package enrich

import (
	"net/url"
	"regexp"
	"strings"
)

var (
	titleRe = regexp.MustCompile(`(?i)<title>(.*?)</title>`)
	linkRe  = regexp.MustCompile(`(?i)<link\b[^>]*>`)
	relRe   = regexp.MustCompile(`(?i)\srel\s*=\s*(?:"([^"]*)"|'([^']*)'|([^\s"'>]+))`)
	hrefRe  = regexp.MustCompile(`(?i)\shref\s*=\s*(?:"([^"]*)"|'([^']*)'|([^\s"'>]+))`)
)

var iconRels = map[string]bool{
	"shortcut icon":    true,
	"icon":             true,
	"apple-touch-icon": true,
}

// ExtractTitle returns the trimmed content of the first <title> element,
// matched case-insensitively on a single line.
func ExtractTitle(body string) (string, bool) {
	m := titleRe.FindStringSubmatch(body)
	if m == nil {
		return "", false
	}
	return strings.TrimSpace(m[1]), true
}

// ExtractFaviconHref returns the href of the first <link> tag whose rel is
// "shortcut icon", "icon" or "apple-touch-icon" (case-insensitive). Tags after
// the first matching one are never looked at.
func ExtractFaviconHref(body string) (string, bool) {
	for _, tag := range linkRe.FindAllString(body, -1) {
		rel, ok := attr(relRe, tag)
		if !ok || !iconRels[strings.ToLower(strings.TrimSpace(rel))] {
			continue
		}
		href, ok := attr(hrefRe, tag)
		if !ok || href == "" {
			return "", false
		}
		return href, true
	}
	return "", false
}

func attr(re *regexp.Regexp, tag string) (string, bool) {
	m := re.FindStringSubmatch(tag)
	if m == nil {
		return "", false
	}
	for _, v := range m[1:] {
		if v != "" {
			return v, true
		}
	}
	return "", true
}

// Origin returns scheme://host of rawURL.
func Origin(rawURL string) (string, bool) {
	u, err := url.Parse(rawURL)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return "", false
	}
	return u.Scheme + "://" + u.Host, true
}

// DefaultFavicon is scheme://host/favicon.ico, or "" when rawURL has no
// scheme and host.
func DefaultFavicon(rawURL string) string {
	origin, ok := Origin(rawURL)
	if !ok {
		return ""
	}
	return origin + "/favicon.ico"
}

// ResolveFavicon makes a root-relative href absolute against the origin of
// pageURL. Scheme-relative hrefs ("//cdn/x.ico") take the page scheme. Any
// other href is returned unchanged.
func ResolveFavicon(pageURL, href string) string {
	switch {
	case strings.HasPrefix(href, "//"):
		u, err := url.Parse(pageURL)
		if err != nil || u.Scheme == "" {
			return ""
		}
		return u.Scheme + ":" + href
	case strings.HasPrefix(href, "/"):
		origin, ok := Origin(pageURL)
		if !ok {
			return ""
		}
		return origin + href
	default:
		return href
	}
}
