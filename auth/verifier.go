package auth

import (
	"context"
	"fmt"

	"chathub/contract"
	"chathub/domain"
	"chathub/errors"
)

// RoleSource resolves the durable capability set of a user. The user
// repository implements it.
type RoleSource interface {
	RolesOf(userID domain.UserID) ([]domain.Capability, error)
}

// Verifier is the auth and permission collaborator of the runtime.
// VerifyIdentity is called once per connection admission; HasCapability is
// consulted for open-community room authorization and reads the durable
// record rather than the token snapshot.
type Verifier struct {
	secret []byte
	roles  RoleSource
}

var _ contract.IdentityVerifier = (*Verifier)(nil)
var _ contract.CapabilityChecker = (*Verifier)(nil)

func NewVerifier(secret []byte, roles RoleSource) *Verifier {
	return &Verifier{secret: secret, roles: roles}
}

func (v *Verifier) VerifyIdentity(ctx context.Context, credential string) (domain.Identity, error) {
	if credential == "" {
		return domain.Identity{}, fmt.Errorf("%w: missing credential", errors.ErrAuthentication)
	}
	identity, err := ValidateToken(credential, v.secret)
	if err != nil {
		return domain.Identity{}, fmt.Errorf("%w: %v", errors.ErrAuthentication, err)
	}
	return identity, nil
}

func (v *Verifier) HasCapability(ctx context.Context, userID domain.UserID, capability domain.Capability) (bool, error) {
	roles, err := v.roles.RolesOf(userID)
	if err != nil {
		return false, err
	}
	for _, r := range roles {
		if r == capability {
			return true, nil
		}
	}
	return false, nil
}
