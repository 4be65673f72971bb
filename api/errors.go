package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/avancel/dashgate/upstream"
)

// Error kinds let the UI distinguish failure classes that need different
// handling. A csrf_error prompts a page reload; field-level validation
// errors come straight from the backend and are localized client-side.
const (
	KindCSRF                = "csrf_error"
	KindUpstreamUnreachable = "upstream_unreachable"
)

// maxAuthBodySize bounds the request bodies accepted by the auth endpoints.
const maxAuthBodySize = 16 * 1024

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, ErrorResponse{Error: msg})
}

func writeErrorKind(w http.ResponseWriter, status int, kind, msg string) {
	writeJSON(w, status, ErrorResponse{Error: msg, Kind: kind})
}

// writeCSRFError reports a CSRF validation failure. Never merged with
// ordinary validation errors — the UI prompts a reload instead of showing
// field messages.
func writeCSRFError(w http.ResponseWriter) {
	writeErrorKind(w, http.StatusForbidden, KindCSRF, "invalid or missing CSRF token; reload and try again")
}

// mapUpstreamError converts an outbound-call failure into a response.
// Transport failures become a typed 502; everything else is an internal
// error with no detail leaked.
func mapUpstreamError(w http.ResponseWriter, err error) {
	if errors.Is(err, upstream.ErrUnreachable) {
		writeErrorKind(w, http.StatusBadGateway, KindUpstreamUnreachable, "backend is unreachable")
		return
	}
	writeError(w, http.StatusInternalServerError, "internal error")
}
