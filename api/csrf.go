package api

import (
	"bytes"
	"crypto/subtle"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/avancel/dashgate/internal/uuid"
)

const (
	csrfHeaderName = "X-CSRF-Token"
	csrfFormField  = "csrf_token"
)

// csrfToken is the result of reading (and possibly reissuing) the
// anti-forgery secret for a visitor.
type csrfToken struct {
	// Secret is the value the client must echo on mutating requests.
	Secret string
	// SetCookies is true when the caller must write both cookies — either
	// no secret existed or the remaining lifetime fell below the refresh
	// threshold.
	SetCookies bool
}

// issueOrReadToken implements the double-submit token lifecycle. The secret
// lives in an httpOnly cookie; a paired tracking cookie stores the absolute
// expiry in epoch milliseconds so the remaining lifetime is known without
// decoding the secret itself. Within the refresh window the existing secret
// is returned unchanged; near expiry a fresh secret is minted.
func (a *API) issueOrReadToken(r *http.Request) csrfToken {
	secret := cookieValue(r, a.cfg.CSRFCookieName)
	if secret == "" {
		return csrfToken{Secret: uuid.New(), SetCookies: true}
	}

	tracking := cookieValue(r, a.cfg.csrfTrackingCookieName())
	expiresMs, err := strconv.ParseInt(tracking, 10, 64)
	if err != nil {
		// Tracking cookie missing or mangled: reissue rather than guess.
		return csrfToken{Secret: uuid.New(), SetCookies: true}
	}

	remaining := time.Until(time.UnixMilli(expiresMs))
	if remaining < a.cfg.CSRFRefreshThreshold {
		return csrfToken{Secret: uuid.New(), SetCookies: true}
	}
	return csrfToken{Secret: secret}
}

// validateCSRF reports whether the submitted value matches the stored
// secret. An empty submission is rejected before any cookie read.
func (a *API) validateCSRF(r *http.Request, submitted string) bool {
	if submitted == "" {
		return false
	}
	secret := cookieValue(r, a.cfg.CSRFCookieName)
	if secret == "" {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(secret), []byte(submitted)) == 1
}

// submittedCSRFToken extracts the client-supplied token: the header wins,
// the form field is the fallback for plain form posts. ParseForm consumes
// the request body, so it is buffered and restored here — the handler
// behind the middleware must still forward the original bytes.
func submittedCSRFToken(r *http.Request) string {
	if h := r.Header.Get(csrfHeaderName); h != "" {
		return h
	}
	if r.Method != http.MethodPost && r.Method != http.MethodPut && r.Method != http.MethodPatch {
		return ""
	}

	buf, err := io.ReadAll(r.Body)
	if err != nil {
		return ""
	}
	r.Body = io.NopCloser(bytes.NewReader(buf))
	parseErr := r.ParseForm()
	r.Body = io.NopCloser(bytes.NewReader(buf))
	if parseErr != nil {
		return ""
	}
	return r.PostForm.Get(csrfFormField)
}

// CSRFMiddleware enforces double-submit validation on every mutating
// request. Safe methods are exempt. Unlike header-authenticated APIs, the
// login form itself is protected too — login CSRF is a real attack against
// cookie-based dashboards.
func (a *API) CSRFMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodGet || r.Method == http.MethodHead || r.Method == http.MethodOptions {
			next.ServeHTTP(w, r)
			return
		}

		if !a.validateCSRF(r, submittedCSRFToken(r)) {
			a.audit.logFailure(AuditCSRFRejected, r, "token mismatch")
			writeCSRFError(w)
			return
		}

		next.ServeHTTP(w, r)
	})
}

// CSRFToken handles GET /csrf: the guard endpoint the dashboard calls
// before rendering any form. The response is never cacheable — the token
// is visitor-specific.
func (a *API) CSRFToken(w http.ResponseWriter, r *http.Request) {
	tok := a.issueOrReadToken(r)
	if tok.SetCookies {
		a.writeCSRFCookies(w, r, tok.Secret)
	}

	w.Header().Set("Cache-Control", "no-store, max-age=0")
	writeJSON(w, http.StatusOK, CSRFTokenResponse{
		Data:    CSRFTokenData{CSRFToken: tok.Secret},
		Success: true,
	})
}

// writeCSRFCookies sets the secret cookie and its expiry-tracking twin with
// identical security attributes. Cookie writes are whole-value replacements.
func (a *API) writeCSRFCookies(w http.ResponseWriter, r *http.Request, secret string) {
	secure := a.cookieSecure(r)
	maxAge := int(a.cfg.CSRFTTL.Seconds())
	expiresAt := time.Now().Add(a.cfg.CSRFTTL)

	http.SetCookie(w, &http.Cookie{
		Name:     a.cfg.CSRFCookieName,
		Value:    secret,
		Path:     "/",
		HttpOnly: true,
		Secure:   secure,
		SameSite: http.SameSiteLaxMode,
		MaxAge:   maxAge,
	})
	http.SetCookie(w, &http.Cookie{
		Name:     a.cfg.csrfTrackingCookieName(),
		Value:    strconv.FormatInt(expiresAt.UnixMilli(), 10),
		Path:     "/",
		HttpOnly: true,
		Secure:   secure,
		SameSite: http.SameSiteLaxMode,
		MaxAge:   maxAge,
	})
}

// clearCSRFCookies removes both CSRF cookies on logout.
func (a *API) clearCSRFCookies(w http.ResponseWriter, r *http.Request) {
	secure := a.cookieSecure(r)
	for _, name := range []string{a.cfg.CSRFCookieName, a.cfg.csrfTrackingCookieName()} {
		http.SetCookie(w, &http.Cookie{
			Name:     name,
			Value:    "",
			Path:     "/",
			HttpOnly: true,
			Secure:   secure,
			SameSite: http.SameSiteLaxMode,
			Expires:  time.Unix(0, 0),
			MaxAge:   -1,
		})
	}
}

// cookieValue returns the named cookie's value or "".
func cookieValue(r *http.Request, name string) string {
	c, err := r.Cookie(name)
	if err != nil {
		return ""
	}
	return c.Value
}
