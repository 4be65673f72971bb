package api

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/avancel/dashgate/upstream"
)

// sessionToken returns the bearer token from the httpOnly session cookie,
// or "" for anonymous visitors. Presence of this cookie is the sole signal
// of authenticated state.
func (a *API) sessionToken(r *http.Request) string {
	return cookieValue(r, a.cfg.SessionCookieName)
}

// writeSessionCookie stores the backend-issued bearer token. Re-setting an
// existing token with the same value extends its max-age.
func (a *API) writeSessionCookie(w http.ResponseWriter, r *http.Request, token string) {
	http.SetCookie(w, &http.Cookie{
		Name:     a.cfg.SessionCookieName,
		Value:    token,
		Path:     "/",
		HttpOnly: true,
		Secure:   a.cookieSecure(r),
		SameSite: http.SameSiteLaxMode,
		MaxAge:   int(a.cfg.SessionTTL.Seconds()),
	})
}

// clearSessionCookie removes the session cookie. Called on logout and when
// the backend reports the credential invalid.
func (a *API) clearSessionCookie(w http.ResponseWriter, r *http.Request) {
	http.SetCookie(w, &http.Cookie{
		Name:     a.cfg.SessionCookieName,
		Value:    "",
		Path:     "/",
		HttpOnly: true,
		Secure:   a.cookieSecure(r),
		SameSite: http.SameSiteLaxMode,
		Expires:  time.Unix(0, 0),
		MaxAge:   -1,
	})
}

// Session handles GET /auth/session: the identity check the dashboard runs
// at startup and after navigation. A backend 401 clears the cookie exactly
// once and reports unauthenticated without error; a successful check
// refreshes the cookie with an extended max-age.
func (a *API) Session(w http.ResponseWriter, r *http.Request) {
	token := a.sessionToken(r)
	if token == "" {
		writeJSON(w, http.StatusOK, SessionResponse{Authenticated: false})
		return
	}

	id, err := a.upstream.CheckIdentity(r.Context(), token)
	switch {
	case errors.Is(err, upstream.ErrUnauthorized):
		a.clearSessionCookie(w, r)
		a.audit.logEvent(AuditSessionInvalidated, r, "")
		writeJSON(w, http.StatusOK, SessionResponse{Authenticated: false})
		return
	case err != nil:
		mapUpstreamError(w, err)
		return
	}

	a.writeSessionCookie(w, r, token)
	a.audit.logEvent(AuditSessionRefreshed, r, id.ID)
	writeJSON(w, http.StatusOK, SessionResponse{Authenticated: true, User: id})
}

// cookieSecure decides the Secure attribute: forced by configuration or
// derived from how the request arrived.
func (a *API) cookieSecure(r *http.Request) bool {
	return a.cfg.SecureCookies || requestIsSecure(r)
}

func requestIsSecure(r *http.Request) bool {
	if r.TLS != nil {
		return true
	}
	if strings.EqualFold(r.Header.Get("X-Forwarded-Proto"), "https") {
		return true
	}
	return strings.Contains(strings.ToLower(r.Header.Get("Forwarded")), "proto=https")
}
