package download

import (
	"bytes"
	"net/url"
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

var metaRefreshURL = regexp.MustCompile(`(?i)url\s*=\s*['"]?([^'";]+)`)

// extractDocumentURL scans an HTML viewer page for an embedded direct
// document link: iframe/embed/object sources, a meta refresh target, or
// an anchor pointing at a PDF. Relative links are resolved against base.
// Returns "" when nothing usable is found.
func extractDocumentURL(body []byte, base *url.URL) string {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		return ""
	}

	if src, ok := firstAttr(doc, "iframe[src], embed[src]", "src"); ok {
		return resolveRef(base, src)
	}
	if data, ok := firstAttr(doc, "object[data]", "data"); ok {
		return resolveRef(base, data)
	}

	if content, ok := doc.Find(`meta[http-equiv="refresh"]`).Attr("content"); ok {
		if m := metaRefreshURL.FindStringSubmatch(content); m != nil {
			return resolveRef(base, strings.TrimSpace(m[1]))
		}
	}

	var pdfHref string
	doc.Find("a[href]").EachWithBreak(func(_ int, s *goquery.Selection) bool {
		href, _ := s.Attr("href")
		if strings.Contains(strings.ToLower(href), ".pdf") {
			pdfHref = href
			return false
		}
		return true
	})
	if pdfHref != "" {
		return resolveRef(base, pdfHref)
	}

	return ""
}

func firstAttr(doc *goquery.Document, selector, attr string) (string, bool) {
	val, ok := doc.Find(selector).First().Attr(attr)
	val = strings.TrimSpace(val)
	return val, ok && val != ""
}

func resolveRef(base *url.URL, ref string) string {
	refURL, err := url.Parse(ref)
	if err != nil {
		return ""
	}
	if base != nil {
		return base.ResolveReference(refURL).String()
	}
	return refURL.String()
}
