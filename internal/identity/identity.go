// Package identity establishes the opaque user identity stamped onto created
// documents. The upstream system signs in anonymously against a managed auth
// service; here that degrades to a provider interface with an anonymous
// implementation, so a real identity service can be swapped in without
// touching callers.
package identity

import (
	"context"

	"github.com/google/uuid"
)

// Identity is an established user identity.
type Identity struct {
	userID string
}

func (i *Identity) UserID() string { return i.userID }

// Provider establishes an identity. Establishment must complete, or be
// known-failed, before the live subscription starts.
type Provider interface {
	Establish(ctx context.Context) (*Identity, error)
}

// Anonymous mints a fresh opaque user ID per session, the way anonymous
// sign-in does upstream.
type Anonymous struct{}

func (Anonymous) Establish(_ context.Context) (*Identity, error) {
	return &Identity{userID: uuid.NewString()}, nil
}
