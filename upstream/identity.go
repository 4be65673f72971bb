package upstream

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"github.com/hashicorp/go-retryablehttp"
)

// identityPath is the backend resource that resolves a bearer token to the
// account it belongs to.
const identityPath = "auth/whoami"

// maxIdentityBodySize bounds the identity response we are willing to parse.
const maxIdentityBodySize = 64 * 1024

// Identity describes the authenticated account behind a bearer token.
type Identity struct {
	ID    string `json:"id"`
	Email string `json:"email"`
	Name  string `json:"name"`
	Role  string `json:"role"`
}

// identityEnvelope matches the backend's standard response wrapper.
type identityEnvelope struct {
	Data    Identity `json:"data"`
	Success bool     `json:"success"`
	Message string   `json:"message"`
}

// CheckIdentity resolves the bearer token against the backend. A 401
// returns ErrUnauthorized so the caller can clear the session cookie; any
// transport failure returns ErrUnreachable. The call is an idempotent GET
// and goes through the retrying client.
func (c *Client) CheckIdentity(ctx context.Context, token string) (*Identity, error) {
	req, err := retryablehttp.NewRequestWithContext(ctx, http.MethodGet, c.buildURL(identityPath, ""), nil)
	if err != nil {
		return nil, fmt.Errorf("building identity request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.retry.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, fmt.Errorf("%w: %v", ErrUnreachable, err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusUnauthorized:
		return nil, ErrUnauthorized
	case resp.StatusCode < 200 || resp.StatusCode >= 300:
		return nil, fmt.Errorf("identity check returned status %d", resp.StatusCode)
	}

	var env identityEnvelope
	if err := json.NewDecoder(io.LimitReader(resp.Body, maxIdentityBodySize)).Decode(&env); err != nil {
		return nil, fmt.Errorf("decoding identity response: %w", err)
	}
	if env.Data.ID == "" {
		return nil, fmt.Errorf("identity response missing account id")
	}
	return &env.Data, nil
}
