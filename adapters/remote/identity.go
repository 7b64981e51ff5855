package remote

import (
	"context"
	"fmt"

	"github.com/artpar/usagemeter/ports"
)

// IdentityVerifier resolves bearer tokens against the user-profile
// service.
//
// API Contract:
//
//	GET /api/users/profile
//	Authorization: Bearer {token}
//	Response: {"_id": "...", "email": "...", "name": "..."}
type IdentityVerifier struct {
	client *Client
}

// NewIdentityVerifier creates an identity verifier backed by the
// user-profile service.
func NewIdentityVerifier(client *Client) *IdentityVerifier {
	return &IdentityVerifier{client: client}
}

type profileResponse struct {
	ID    string `json:"_id"`
	Email string `json:"email"`
	Name  string `json:"name"`
}

// Verify resolves a raw bearer token to a user identity. A token the
// profile service rejects yields ports.ErrIdentityRejected; any other
// failure is surfaced as-is so the caller can distinguish an unreachable
// collaborator from a bad token.
func (v *IdentityVerifier) Verify(ctx context.Context, token string) (ports.Identity, error) {
	var profile profileResponse
	if err := v.client.get(ctx, "/api/users/profile", token, &profile); err != nil {
		if IsAuthFailure(err) {
			return ports.Identity{}, ports.ErrIdentityRejected
		}
		return ports.Identity{}, fmt.Errorf("verify token: %w", err)
	}

	if profile.ID == "" {
		return ports.Identity{}, ports.ErrIdentityRejected
	}

	return ports.Identity{
		ID:    profile.ID,
		Email: profile.Email,
		Name:  profile.Name,
	}, nil
}

// Ensure interface compliance.
var _ ports.IdentityVerifier = (*IdentityVerifier)(nil)
