// Copyright (c) 2026 Stokria. All rights reserved.

package auth

import (
	"context"

	"github.com/stokria/stokria/internal/platform/sec"
)

// IdentityDirectory adapts a [UserRepository] to the authentication gate's
// user lookup, projecting the full account row down to the fields the gate
// is allowed to see. The password hash never crosses this boundary.
type IdentityDirectory struct {
	users UserRepository
}

// NewIdentityDirectory wraps a user repository for use by the gates.
func NewIdentityDirectory(users UserRepository) *IdentityDirectory {
	return &IdentityDirectory{users: users}
}

// FindByID resolves a verified token's user_id claim into a live account
// snapshot.
func (directory *IdentityDirectory) FindByID(ctx context.Context, id string) (*sec.Identity, error) {
	user, err := directory.users.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}

	return &sec.Identity{
		ID:     user.ID,
		Email:  user.Email,
		Name:   user.Name,
		Phone:  user.Phone,
		Active: user.IsActive,
	}, nil
}
