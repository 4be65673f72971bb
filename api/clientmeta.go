package api

import (
	"net/http"
	"strings"

	"golang.org/x/text/language"
)

// Outbound identity header names. The backend uses these for audit rows and
// localization; they are advisory data, not access-control inputs.
const (
	headerClientIP     = "X-Client-Ip"
	headerClientOS     = "X-Client-Os"
	headerClientLocale = "X-Client-Locale"
)

// supportedLocales are the dashboard's translation languages. The first
// entry is the fallback.
var supportedLocales = []language.Tag{
	language.English,
	language.German,
	language.French,
	language.Spanish,
	language.Russian,
}

var localeMatcher = language.NewMatcher(supportedLocales)

// clientMeta is the per-request client identity forwarded to the backend.
// It is derived fresh from the inbound headers on every request and never
// stored. Every field resolves to "" when its source header is absent —
// downstream header construction must never see a missing value.
type clientMeta struct {
	IP             string
	UserAgent      string
	AcceptLanguage string
	Locale         string
	ClientOS       string
}

// clientMetaFromRequest builds the identity context. It never fails.
func clientMetaFromRequest(r *http.Request) clientMeta {
	al := r.Header.Get("Accept-Language")
	return clientMeta{
		IP:             forwardedClientIP(r.Header),
		UserAgent:      r.Header.Get("User-Agent"),
		AcceptLanguage: al,
		Locale:         normalizeLocale(al),
		ClientOS:       r.Header.Get(headerClientOS),
	}
}

// apply sets the identity headers on an outbound header set. Empty fields
// are skipped so the backend never receives blank headers.
func (m clientMeta) apply(h http.Header) {
	if m.IP != "" {
		h.Set(headerClientIP, m.IP)
	}
	if m.UserAgent != "" {
		h.Set("User-Agent", m.UserAgent)
	}
	if m.AcceptLanguage != "" {
		h.Set("Accept-Language", m.AcceptLanguage)
	}
	if m.Locale != "" {
		h.Set(headerClientLocale, m.Locale)
	}
	if m.ClientOS != "" {
		h.Set(headerClientOS, m.ClientOS)
	}
}

// forwardedClientIP resolves the client address from proxy headers with the
// precedence X-Forwarded-For (first entry) → CF-Connecting-IP → X-Real-IP.
// The result is normalized: IPv6-mapped-IPv4 prefix stripped, trailing port
// stripped, brackets removed. Returns "" when nothing usable is present.
//
// This deliberately trusts proxy headers without a trusted-proxy check: the
// value is forwarded to the backend as advisory identity data. Rate limiting
// uses the stricter extraction in ratelimit.go instead.
func forwardedClientIP(h http.Header) string {
	candidate := ""
	if xff := h.Get("X-Forwarded-For"); xff != "" {
		candidate = strings.TrimSpace(strings.SplitN(xff, ",", 2)[0])
	}
	if candidate == "" {
		candidate = strings.TrimSpace(h.Get("Cf-Connecting-Ip"))
	}
	if candidate == "" {
		candidate = strings.TrimSpace(h.Get("X-Real-Ip"))
	}
	if candidate == "" {
		return ""
	}
	return normalizeIP(candidate)
}

// normalizeIP strips the decorations proxies add around addresses.
func normalizeIP(s string) string {
	// Bracketed IPv6, possibly with a port: [::1]:8080
	if strings.HasPrefix(s, "[") {
		end := strings.IndexByte(s, ']')
		if end < 0 {
			return strings.TrimPrefix(s, "[")
		}
		return s[1:end]
	}
	// IPv6-mapped IPv4: ::ffff:192.168.1.5
	if rest, ok := strings.CutPrefix(s, "::ffff:"); ok && strings.Contains(rest, ".") {
		s = rest
	}
	// Trailing port on an IPv4 or hostname-style candidate. A bare IPv6
	// literal contains multiple colons and carries no port at this point.
	if i := strings.LastIndexByte(s, ':'); i >= 0 && strings.Count(s, ":") == 1 {
		s = s[:i]
	}
	return s
}

// normalizeLocale matches an Accept-Language value against the dashboard's
// supported languages and returns the base language tag, or "" when the
// header is absent or unparseable.
func normalizeLocale(acceptLanguage string) string {
	if acceptLanguage == "" {
		return ""
	}
	tags, _, err := language.ParseAcceptLanguage(acceptLanguage)
	if err != nil || len(tags) == 0 {
		return ""
	}
	_, idx, conf := localeMatcher.Match(tags...)
	if conf == language.No {
		return ""
	}
	base, _ := supportedLocales[idx].Base()
	return base.String()
}
