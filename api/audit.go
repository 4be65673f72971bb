package api

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/avancel/dashgate/auditlog"
)

// AuditEvent identifies the type of security-relevant action being logged.
type AuditEvent string

const (
	AuditLoginSuccess       AuditEvent = "login_success"
	AuditLoginFailure       AuditEvent = "login_failure"
	AuditLoginRateLimited   AuditEvent = "login_rate_limited"
	AuditLogout             AuditEvent = "logout"
	AuditRegister           AuditEvent = "register"
	AuditEmailConfirmed     AuditEvent = "email_confirmed"
	AuditPasswordRecovery   AuditEvent = "password_recovery_requested"
	AuditPasswordUpdated    AuditEvent = "password_updated"
	AuditSessionRefreshed   AuditEvent = "session_refreshed"
	AuditSessionInvalidated AuditEvent = "session_invalidated"
	AuditCSRFRejected       AuditEvent = "csrf_rejected"
	AuditProxyError         AuditEvent = "proxy_error"
)

// auditLogger wraps slog.Logger for structured security audit logging and
// fans events out to the anomaly collector and the persistent trail.
type auditLogger struct {
	logger  *slog.Logger
	metrics *metricsCollector
	trail   *auditlog.Store
}

func newAuditLogger(logger *slog.Logger) *auditLogger {
	return &auditLogger{
		logger: logger.With("component", "audit"),
	}
}

// log writes a structured audit log entry and records it on the trail.
func (al *auditLogger) log(event AuditEvent, r *http.Request, detail string, attrs ...slog.Attr) {
	baseAttrs := []slog.Attr{
		slog.String("event", string(event)),
		slog.String("remote_addr", r.RemoteAddr),
		slog.String("timestamp", time.Now().UTC().Format(time.RFC3339)),
	}
	baseAttrs = append(baseAttrs, attrs...)

	al.logger.LogAttrs(r.Context(), slog.LevelInfo, "audit", baseAttrs...)
	if al.metrics != nil {
		al.metrics.recordEvent(event)
	}
	if al.trail != nil {
		if err := al.trail.Append(auditlog.Entry{
			Event:     string(event),
			ClientIP:  extractClientIPWithProxies(r, nil),
			Detail:    detail,
			CreatedAt: time.Now().UTC(),
		}); err != nil {
			al.logger.Warn("audit trail append failed", "error", err)
		}
	}
}

// logEvent records a successful action, optionally tagged with the backend
// account ID.
func (al *auditLogger) logEvent(event AuditEvent, r *http.Request, accountID string, extra ...slog.Attr) {
	attrs := extra
	if accountID != "" {
		attrs = append([]slog.Attr{slog.String("account_id", accountID)}, extra...)
	}
	al.log(event, r, "", attrs...)
}

// logFailure logs a failed or rejected request with its reason.
func (al *auditLogger) logFailure(event AuditEvent, r *http.Request, reason string, extra ...slog.Attr) {
	attrs := []slog.Attr{
		slog.String("reason", reason),
	}
	attrs = append(attrs, extra...)
	al.log(event, r, reason, attrs...)
}
