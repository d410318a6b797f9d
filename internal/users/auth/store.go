// Copyright (c) 2026 Stokria. All rights reserved.

package auth

import (
	"context"
	"errors"
	"time"
)

// ErrRefreshNotFound indicates a refresh token that is absent from the store:
// expired, already consumed, revoked, or never issued. Callers must not be
// able to tell these apart.
var ErrRefreshNotFound = errors.New("auth: refresh token not found")

// RefreshGrant is the server-side record behind one refresh token. It pins
// the company the original login selected, so rotation reissues access tokens
// for the same tenant.
type RefreshGrant struct {
	UserID    string `json:"user_id"`
	CompanyID string `json:"company_id"`
}

// # User Data Access

// UserRepository defines the data access contract for user accounts.
type UserRepository interface {

	/*
		FindByID returns the account with the given ID.

		Parameters:
		  - context: context.Context
		  - id: string

		Returns:
		  - *User: Hydrated entity
		  - error: Database retrieval failures
	*/
	FindByID(context context.Context, id string) (*User, error)

	/*
		FindByEmail returns the account with the given email.

		Parameters:
		  - context: context.Context
		  - email: string

		Returns:
		  - *User: Hydrated entity
		  - error: Database retrieval failures
	*/
	FindByEmail(context context.Context, email string) (*User, error)

	/*
		Create persists a brand-new user account to the storage.

		Parameters:
		  - context: context.Context
		  - user: *User

		Returns:
		  - error: Persistence failures
	*/
	Create(context context.Context, user *User) error
}

// # Company Data Access

// CompanyRepository defines the data access contract for tenants.
type CompanyRepository interface {

	/*
		Create persists a brand-new company to the storage.

		Parameters:
		  - context: context.Context
		  - company: *Company

		Returns:
		  - error: Persistence failures
	*/
	Create(context context.Context, company *Company) error

	/*
		FindByID returns the company with the given ID.

		Parameters:
		  - context: context.Context
		  - id: string

		Returns:
		  - *Company: Hydrated entity
		  - error: Database retrieval failures
	*/
	FindByID(context context.Context, id string) (*Company, error)
}

// # Membership Data Access

// MembershipRepository defines the data access contract for the user/company
// role bindings.
type MembershipRepository interface {

	/*
		FindByUser returns every membership held by the given user, oldest first.

		Parameters:
		  - context: context.Context
		  - userID: string

		Returns:
		  - []Membership: Hydrated bindings (may be empty)
		  - error: Database retrieval failures
	*/
	FindByUser(context context.Context, userID string) ([]Membership, error)

	/*
		FindByUserAndCompany returns the single membership binding a user to a company.

		Parameters:
		  - context: context.Context
		  - userID: string
		  - companyID: string

		Returns:
		  - *Membership: Hydrated binding
		  - error: apperr.NotFound when the user holds no role in that company
	*/
	FindByUserAndCompany(context context.Context, userID, companyID string) (*Membership, error)

	/*
		Create persists a new user/company role binding.

		Parameters:
		  - context: context.Context
		  - membership: *Membership

		Returns:
		  - error: Persistence failures
	*/
	Create(context context.Context, membership *Membership) error
}

// # Volatile Data Access

// RefreshTokenStore defines the contract for the server-side refresh token
// records. Tokens are always keyed by their SHA-256 hash, never stored raw.
type RefreshTokenStore interface {

	/*
		Save stores a refresh grant under a token hash for a limited duration.

		Parameters:
		  - context: context.Context
		  - tokenHash: string
		  - grant: RefreshGrant
		  - ttl: time.Duration

		Returns:
		  - error: Persistence failures
	*/
	Save(context context.Context, tokenHash string, grant RefreshGrant, ttl time.Duration) error

	/*
		Consume atomically retrieves AND deletes the grant for a token hash.

		Description: The retrieve-and-delete must be a single operation so that
		of N concurrent callers presenting the same token, exactly one receives
		the grant; every other caller gets ErrRefreshNotFound.

		Parameters:
		  - context: context.Context
		  - tokenHash: string

		Returns:
		  - *RefreshGrant: The consumed grant
		  - error: ErrRefreshNotFound or connectivity errors
	*/
	Consume(context context.Context, tokenHash string) (*RefreshGrant, error)

	/*
		Revoke removes the grant for a token hash, if present.

		Parameters:
		  - context: context.Context
		  - tokenHash: string

		Returns:
		  - error: Deletion failures (an absent token is not an error)
	*/
	Revoke(context context.Context, tokenHash string) error
}
