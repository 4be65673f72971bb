package api

import (
	"context"
	"errors"
	"io"
	"net/http"

	"github.com/go-chi/chi/v5"
)

// proxyMethods is the set of HTTP methods the proxy relays. Anything else
// is rejected by the router before the handler runs.
var proxyMethods = []string{
	http.MethodGet,
	http.MethodHead,
	http.MethodPost,
	http.MethodPut,
	http.MethodPatch,
	http.MethodDelete,
}

// Proxy handles ALL /proxy/{...path}: it forwards the inbound request to
// the backend API with the caller's bearer credential and identity headers
// attached, then relays the backend response byte-for-byte. The proxy never
// retries, never caches, and never reinterprets backend status codes.
func (a *API) Proxy(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet, http.MethodPost, http.MethodPut, http.MethodDelete, http.MethodPatch, http.MethodHead:
	default:
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	path := chi.URLParam(r, "*")

	outHeader := make(http.Header)
	outHeader.Set("Content-Type", "application/json")
	outHeader.Set("Cache-Control", "no-cache")
	clientMetaFromRequest(r).apply(outHeader)
	if token := a.sessionToken(r); token != "" {
		outHeader.Set("Authorization", "Bearer "+token)
	}

	// GET and HEAD never forward a body, even if the client attached one.
	var body io.Reader
	if r.Method != http.MethodGet && r.Method != http.MethodHead {
		body = r.Body
	}

	resp, err := a.upstream.Forward(r.Context(), r.Method, path, r.URL.RawQuery, outHeader, body)
	if err != nil {
		if errors.Is(err, context.Canceled) {
			// Client went away; nothing useful to write.
			return
		}
		a.audit.logFailure(AuditProxyError, r, err.Error())
		mapUpstreamError(w, err)
		return
	}
	defer resp.Body.Close()

	// Relay the backend response unchanged: content type, status, body.
	if ct := resp.Header.Get("Content-Type"); ct != "" {
		w.Header().Set("Content-Type", ct)
	}
	w.Header().Set("Cache-Control", "no-store, max-age=0")
	w.WriteHeader(resp.StatusCode)
	io.Copy(w, resp.Body)
}
