package api

import (
	"fmt"
	"net/netip"
	"time"
)

// Default cookie names and lifetimes. All of them are configuration, not
// contract — deployments override them via flags or environment.
const (
	defaultSessionCookieName = "dashgate_session"
	defaultCSRFCookieName    = "dashgate_csrf"

	defaultSessionTTL = 3 * time.Hour
	defaultCSRFTTL    = 1 * time.Hour

	// defaultCSRFRefreshThreshold is the remaining lifetime below which a
	// read of the CSRF guard endpoint mints a fresh secret.
	defaultCSRFRefreshThreshold = 15 * time.Minute
)

// Config holds the externally supplied configuration surface of the gateway.
type Config struct {
	// SessionCookieName is the httpOnly cookie carrying the backend bearer
	// token.
	SessionCookieName string
	// SessionTTL is the session cookie max-age.
	SessionTTL time.Duration

	// CSRFCookieName is the httpOnly cookie carrying the anti-forgery
	// secret. The paired expiry-tracking cookie is named
	// CSRFCookieName + "_expiry".
	CSRFCookieName string
	// CSRFTTL is the anti-forgery secret lifetime.
	CSRFTTL time.Duration
	// CSRFRefreshThreshold triggers reissue when the remaining lifetime
	// drops below it.
	CSRFRefreshThreshold time.Duration

	// SecureCookies forces the Secure attribute on all cookies regardless
	// of how the inbound request arrived. When false, Secure is derived
	// from the request (TLS or X-Forwarded-Proto).
	SecureCookies bool

	// TrustedProxies lists CIDR ranges whose proxy headers are honored for
	// rate-limit IP extraction. Empty means proxy headers are ignored.
	TrustedProxies []netip.Prefix
}

// DefaultConfig returns a Config with all defaults filled in.
func DefaultConfig() Config {
	return Config{
		SessionCookieName:    defaultSessionCookieName,
		SessionTTL:           defaultSessionTTL,
		CSRFCookieName:       defaultCSRFCookieName,
		CSRFTTL:              defaultCSRFTTL,
		CSRFRefreshThreshold: defaultCSRFRefreshThreshold,
	}
}

// normalize fills zero values with defaults and validates the lifetimes.
func (c *Config) normalize() error {
	if c.SessionCookieName == "" {
		c.SessionCookieName = defaultSessionCookieName
	}
	if c.CSRFCookieName == "" {
		c.CSRFCookieName = defaultCSRFCookieName
	}
	if c.SessionTTL <= 0 {
		c.SessionTTL = defaultSessionTTL
	}
	if c.CSRFTTL <= 0 {
		c.CSRFTTL = defaultCSRFTTL
	}
	if c.CSRFRefreshThreshold <= 0 {
		c.CSRFRefreshThreshold = defaultCSRFRefreshThreshold
	}
	if c.CSRFRefreshThreshold >= c.CSRFTTL {
		return fmt.Errorf("csrf refresh threshold (%s) must be below the token lifetime (%s)",
			c.CSRFRefreshThreshold, c.CSRFTTL)
	}
	return nil
}

// csrfTrackingCookieName returns the name of the cookie that records the
// absolute expiry of the anti-forgery secret.
func (c *Config) csrfTrackingCookieName() string {
	return c.CSRFCookieName + "_expiry"
}
