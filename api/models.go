package api

import "github.com/avancel/dashgate/upstream"

// CSRFTokenData carries the anti-forgery token inside the guard envelope.
type CSRFTokenData struct {
	CSRFToken string `json:"csrfToken"`
}

// CSRFTokenResponse is returned from GET /csrf. The envelope shape is part
// of the contract with the dashboard client.
type CSRFTokenResponse struct {
	Data    CSRFTokenData `json:"data"`
	Success bool          `json:"success"`
	Message string        `json:"message"`
}

// SessionResponse is returned from GET /auth/session.
type SessionResponse struct {
	Authenticated bool               `json:"authenticated"`
	User          *upstream.Identity `json:"user,omitempty"`
}

// AuditEntryView is one row of the gateway's own audit trail.
type AuditEntryView struct {
	ID        string `json:"id"`
	Event     string `json:"event"`
	ClientIP  string `json:"client_ip,omitempty"`
	Detail    string `json:"detail,omitempty"`
	CreatedAt string `json:"created_at"`
}

// ListAuditResponse is returned from GET /audit.
type ListAuditResponse struct {
	Entries []AuditEntryView `json:"entries"`
	PaginationMeta
}

// ErrorResponse is returned for all error cases.
type ErrorResponse struct {
	Error string `json:"error"`
	Kind  string `json:"kind,omitempty"`
}
