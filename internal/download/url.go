package download

import (
	"net/url"
	"strings"
)

// tiRedirectPrefix marks TI's product-info redirector, which wraps the
// real datasheet link in a gotoUrl query parameter.
const tiRedirectPrefix = "https://www.ti.com/general/docs/suppproductinfo.tsp?"

// NormalizeURL repairs the malformed URL shapes the upstream is known to
// emit: TI redirector links, protocol-relative URLs, and paths containing
// characters that need percent-encoding.
func NormalizeURL(raw string) string {
	raw = strings.TrimSpace(raw)

	raw = resolveTIRedirect(raw)

	if strings.HasPrefix(raw, "//") {
		raw = "https:" + raw
	}

	if u, err := url.Parse(raw); err == nil {
		// Re-encoding through url.URL percent-escapes spaces and other
		// unsafe characters left raw by the upstream.
		return u.String()
	}
	return raw
}

// resolveTIRedirect unwraps TI's suppproductinfo redirector to the direct
// symlink PDF for the referenced part.
func resolveTIRedirect(raw string) string {
	if !strings.HasPrefix(raw, tiRedirectPrefix) {
		return raw
	}

	u, err := url.Parse(raw)
	if err != nil {
		return raw
	}
	gotoURL := u.Query().Get("gotoUrl")
	if gotoURL == "" {
		return raw
	}
	if unescaped, err := url.QueryUnescape(gotoURL); err == nil {
		gotoURL = unescaped
	}

	segments := strings.Split(strings.TrimRight(gotoURL, "/"), "/")
	part := segments[len(segments)-1]
	if part == "" {
		return raw
	}
	return "https://www.ti.com/lit/ds/symlink/" + part + ".pdf"
}
