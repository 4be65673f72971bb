package api

import (
	"bytes"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"

	"github.com/avancel/dashgate/internal/uuid"
)

// Backend resource paths for the account flows. The gateway adds no
// semantics of its own here — it forwards the form payload and manages the
// cookie side effects the browser cannot be trusted with.
const (
	backendLoginPath          = "auth/login"
	backendLogoutPath         = "auth/logout"
	backendRegisterPath       = "auth/register"
	backendConfirmPath        = "auth/confirm"
	backendRecoverPath        = "auth/password/recover"
	backendPasswordUpdatePath = "auth/password/update"
)

// tokenEnvelope extracts the bearer token from a successful backend
// authentication response.
type tokenEnvelope struct {
	Data struct {
		Token string `json:"token"`
	} `json:"data"`
	Success bool `json:"success"`
}

// forwardAccountAction sends the size-limited inbound body to a backend
// auth resource with identity headers attached, and returns the backend's
// status and body for relaying. ok=false means the error response has
// already been written.
func (a *API) forwardAccountAction(w http.ResponseWriter, r *http.Request, path string, withBearer bool) (int, []byte, bool) {
	inBody, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxAuthBodySize))
	if err != nil {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			writeError(w, http.StatusRequestEntityTooLarge, "request body too large")
		} else {
			writeError(w, http.StatusBadRequest, "unreadable request body")
		}
		return 0, nil, false
	}

	outHeader := make(http.Header)
	outHeader.Set("Content-Type", "application/json")
	clientMetaFromRequest(r).apply(outHeader)
	if withBearer {
		if token := a.sessionToken(r); token != "" {
			outHeader.Set("Authorization", "Bearer "+token)
		}
	}

	resp, err := a.upstream.Forward(r.Context(), http.MethodPost, path, "", outHeader, bytes.NewReader(inBody))
	if err != nil {
		a.audit.logFailure(AuditProxyError, r, err.Error())
		mapUpstreamError(w, err)
		return 0, nil, false
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(io.LimitReader(resp.Body, maxAuthBodySize))
	if err != nil {
		mapUpstreamError(w, err)
		return 0, nil, false
	}
	return resp.StatusCode, respBody, true
}

// relayBackend writes a backend response through unchanged. Auth responses
// are always JSON.
func relayBackend(w http.ResponseWriter, status int, body []byte) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	w.Write(body)
}

// establishSession parses the bearer token out of a successful auth
// response and sets the session cookie plus a fresh CSRF secret. Returns
// false when the backend reported success but the token is missing — that
// is a contract violation we refuse to paper over.
func (a *API) establishSession(w http.ResponseWriter, r *http.Request, body []byte) bool {
	var env tokenEnvelope
	if err := json.Unmarshal(body, &env); err != nil || env.Data.Token == "" {
		return false
	}
	a.writeSessionCookie(w, r, env.Data.Token)
	// Rotate the anti-forgery secret on privilege change.
	a.writeCSRFCookies(w, r, uuid.New())
	return true
}

// Login handles POST /auth/login. Credentials go to the backend; on success
// the issued bearer token is stored in the httpOnly session cookie and the
// CSRF secret is rotated. Backend validation errors pass through for the
// UI to localize.
func (a *API) Login(w http.ResponseWriter, r *http.Request) {
	clientIP := a.extractClientIP(r)
	if blocked, retryAfter := a.globalLimiter.check(); blocked {
		a.audit.logFailure(AuditLoginRateLimited, r, "global rate limited")
		writeRateLimited(w, retryAfter)
		return
	}
	if blocked, retryAfter := a.ipLimiter.check(clientIP); blocked {
		a.audit.logFailure(AuditLoginRateLimited, r, "ip rate limited",
			slog.String("client_ip", clientIP))
		writeRateLimited(w, retryAfter)
		return
	}

	status, body, ok := a.forwardAccountAction(w, r, backendLoginPath, false)
	if !ok {
		return
	}

	if status >= 200 && status < 300 {
		if !a.establishSession(w, r, body) {
			writeError(w, http.StatusBadGateway, "backend login response missing token")
			return
		}
		a.ipLimiter.recordSuccess(clientIP)
		a.audit.logEvent(AuditLoginSuccess, r, "")
	} else {
		a.globalLimiter.recordFailure()
		a.ipLimiter.recordFailure(clientIP)
		a.audit.logFailure(AuditLoginFailure, r, "backend rejected credentials",
			slog.Int("status", status))
	}

	relayBackend(w, status, body)
}

// Logout handles POST /auth/logout. The backend is told best-effort; the
// cookies are cleared regardless.
func (a *API) Logout(w http.ResponseWriter, r *http.Request) {
	if token := a.sessionToken(r); token != "" {
		outHeader := make(http.Header)
		outHeader.Set("Content-Type", "application/json")
		outHeader.Set("Authorization", "Bearer "+token)
		if resp, err := a.upstream.Forward(r.Context(), http.MethodPost, backendLogoutPath, "", outHeader, nil); err == nil {
			resp.Body.Close()
		}
	}

	a.clearSessionCookie(w, r)
	a.clearCSRFCookies(w, r)
	a.audit.logEvent(AuditLogout, r, "")
	writeJSON(w, http.StatusOK, struct{}{})
}

// Register handles POST /auth/register. No cookies are issued — the
// account activates through the email confirmation flow.
func (a *API) Register(w http.ResponseWriter, r *http.Request) {
	status, body, ok := a.forwardAccountAction(w, r, backendRegisterPath, false)
	if !ok {
		return
	}
	if status >= 200 && status < 300 {
		a.audit.logEvent(AuditRegister, r, "")
	}
	relayBackend(w, status, body)
}

// ConfirmEmail handles POST /auth/confirm. A successful confirmation logs
// the account in, so it carries the same cookie side effects as login.
func (a *API) ConfirmEmail(w http.ResponseWriter, r *http.Request) {
	status, body, ok := a.forwardAccountAction(w, r, backendConfirmPath, false)
	if !ok {
		return
	}
	if status >= 200 && status < 300 {
		if !a.establishSession(w, r, body) {
			writeError(w, http.StatusBadGateway, "backend confirm response missing token")
			return
		}
		a.audit.logEvent(AuditEmailConfirmed, r, "")
	}
	relayBackend(w, status, body)
}

// RecoverPassword handles POST /auth/password/recover. Rate limited per IP
// because recovery triggers outbound mail; the response is uniform whether
// or not the account exists.
func (a *API) RecoverPassword(w http.ResponseWriter, r *http.Request) {
	clientIP := a.extractClientIP(r)
	if blocked, retryAfter := a.ipLimiter.check(clientIP); blocked {
		a.audit.logFailure(AuditLoginRateLimited, r, "recovery ip rate limited",
			slog.String("client_ip", clientIP))
		writeRateLimited(w, retryAfter)
		return
	}
	a.ipLimiter.recordFailure(clientIP)

	status, body, ok := a.forwardAccountAction(w, r, backendRecoverPath, false)
	if !ok {
		return
	}
	a.audit.logEvent(AuditPasswordRecovery, r, "")
	relayBackend(w, status, body)
}

// UpdatePassword handles POST /auth/password/update: the reset-token flow.
// Success re-authenticates, so it sets cookies like login does.
func (a *API) UpdatePassword(w http.ResponseWriter, r *http.Request) {
	status, body, ok := a.forwardAccountAction(w, r, backendPasswordUpdatePath, false)
	if !ok {
		return
	}
	if status >= 200 && status < 300 {
		if !a.establishSession(w, r, body) {
			writeError(w, http.StatusBadGateway, "backend password update response missing token")
			return
		}
		a.audit.logEvent(AuditPasswordUpdated, r, "")
	}
	relayBackend(w, status, body)
}
