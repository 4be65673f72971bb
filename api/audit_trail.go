package api

import (
	"errors"
	"net/http"
	"time"

	"github.com/avancel/dashgate/upstream"
)

// ListAuditTrail handles GET /audit: the gateway's own security trail,
// newest first. Registered unconditionally so the router stays
// dependency-free; without a configured store it reports 404. The session
// token is resolved against the backend — a cookie merely being present
// proves nothing.
func (a *API) ListAuditTrail(w http.ResponseWriter, r *http.Request) {
	if a.trail == nil {
		writeError(w, http.StatusNotFound, "audit trail is not enabled")
		return
	}

	token := a.sessionToken(r)
	if token == "" {
		writeError(w, http.StatusUnauthorized, "authentication required")
		return
	}
	if _, err := a.upstream.CheckIdentity(r.Context(), token); err != nil {
		if errors.Is(err, upstream.ErrUnauthorized) {
			writeError(w, http.StatusUnauthorized, "authentication required")
			return
		}
		mapUpstreamError(w, err)
		return
	}

	entries, err := a.trail.List()
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to read audit trail")
		return
	}

	limit, offset := pageQuery(r)
	start, end, meta := pageBounds(len(entries), limit, offset)
	page := entries[start:end]

	views := make([]AuditEntryView, 0, len(page))
	for _, e := range page {
		views = append(views, AuditEntryView{
			ID:        e.ID,
			Event:     e.Event,
			ClientIP:  e.ClientIP,
			Detail:    e.Detail,
			CreatedAt: e.CreatedAt.UTC().Format(time.RFC3339),
		})
	}

	writeJSON(w, http.StatusOK, ListAuditResponse{Entries: views, PaginationMeta: meta})
}
