// Package uuid wraps the external UUID dependency behind the one function
// the rest of the codebase needs.
package uuid

import "github.com/google/uuid"

// New returns a random (version 4) UUID string. UUIDv4 carries 122 bits of
// entropy, enough for unguessable anti-forgery secrets and record IDs.
func New() string {
	return uuid.NewString()
}
