// Copyright (c) 2026 Stokria. All rights reserved.

/*
Service layer for the identity and access domain.

It handles tenant provisioning, credential verification, and the full session
lifecycle: access token issuance, refresh token rotation, and revocation.

Architecture:

  - Service: Orchestrates business logic (Register, Login, Refresh, Switch).
  - Repository: Abstracted interfaces for Postgres (identity) and Redis (grants).
  - Security: Leverages bcrypt hashes and HMAC-signed JWTs via [TokenIssuer].

The package ensures that identity data remains consistent and secure throughout
the platform's lifecycle.
*/
package auth

import (
	"context"
	"fmt"
	"time"

	"github.com/stokria/stokria/internal/platform/apperr"
	"github.com/stokria/stokria/internal/platform/audit"
	"github.com/stokria/stokria/internal/platform/metrics"
	"github.com/stokria/stokria/internal/platform/sec"
	"github.com/stokria/stokria/pkg/uuid"
)

// # Contracts & Types

// TokenIssuer defines the contract for minting access tokens.
//
// Satisfied by [sec.TokenService]; abstracted so tests can observe issuance
// without a signing secret.
type TokenIssuer interface {
	// IssueAccessToken creates a signed JWT binding a user to one company
	// and the role they hold there.
	IssueAccessToken(userID, email, companyID string, role sec.Role) (string, error)

	// AccessTokenTTL reports the configured access token lifetime.
	AccessTokenTTL() time.Duration
}

// Service implements the authentication and tenant-selection use cases.
//
// # Review Process
//
// This service is critical for security. Any changes to credential checks,
// token issuance, or rotation logic must be reviewed by the security team.
type Service struct {
	userRepository       UserRepository
	companyRepository    CompanyRepository
	membershipRepository MembershipRepository
	refreshTokens        RefreshTokenStore
	tokenIssuer          TokenIssuer
	events               audit.Recorder
}

// NewService constructs a new [Service] with necessary dependencies.
func NewService(
	userRepo UserRepository,
	companyRepo CompanyRepository,
	membershipRepo MembershipRepository,
	refreshTokens RefreshTokenStore,
	tokenIssuer TokenIssuer,
	events audit.Recorder,
) *Service {
	return &Service{
		userRepository:       userRepo,
		companyRepository:    companyRepo,
		membershipRepository: membershipRepo,
		refreshTokens:        refreshTokens,
		tokenIssuer:          tokenIssuer,
		events:               events,
	}
}

// # Provisioning Flow

// RegisterInput holds the data required to provision a new tenant.
type RegisterInput struct {
	Email       string
	Password    string
	Name        string
	Phone       string
	CompanyName string
}

/*
Register provisions a brand-new tenant: a user account, its company, and the
owner membership binding them.

Description: The first user of a company is always its owner; further members
are invited with lesser roles by management later.

Parameters:
  - context: context.Context
  - input: RegisterInput

Returns:
  - *LoginSession: A ready-to-use session for the fresh owner
  - error: Conflict (if the email exists) or storage errors
*/
func (service *Service) Register(context context.Context, input RegisterInput) (*LoginSession, error) {

	// Verify email uniqueness. Return a client-safe Conflict error.
	_, err := service.userRepository.FindByEmail(context, input.Email)
	if err == nil {
		return nil, apperr.Conflict("Email is already registered")
	}

	// Prevent storing plain-text passwords. Default cost is used for balance
	// between security and CPU utilization during registration spikes.
	hashedPassword, err := sec.HashPassword(input.Password)
	if err != nil {
		return nil, fmt.Errorf("auth_service_hash_failed: %w", err)
	}

	// Construct the entities. Time-sortable IDs to prevent PG index fragmentation.
	user := &User{
		ID:           uuid.New(),
		Email:        input.Email,
		Name:         input.Name,
		Phone:        input.Phone,
		PasswordHash: hashedPassword,
		IsActive:     true,
	}
	company := &Company{
		ID:   uuid.New(),
		Name: input.CompanyName,
	}
	membership := &Membership{
		UserID:    user.ID,
		CompanyID: company.ID,
		Role:      sec.RoleOwner,
	}

	// Persist user, company, then the binding between them
	if err := service.userRepository.Create(context, user); err != nil {
		return nil, fmt.Errorf("auth_service_register_user_failed: %w", err)
	}
	if err := service.companyRepository.Create(context, company); err != nil {
		return nil, fmt.Errorf("auth_service_register_company_failed: %w", err)
	}
	if err := service.membershipRepository.Create(context, membership); err != nil {
		return nil, fmt.Errorf("auth_service_register_membership_failed: %w", err)
	}

	service.events.Access(context, "company_provisioned", map[string]any{
		"user_id":    user.ID,
		"company_id": company.ID,
	})

	// The owner is logged in immediately after provisioning
	return service.issueSession(context, user, membership)
}

// # Authentication Flow

// LoginInput defines credentials for an authentication attempt.
type LoginInput struct {
	Email     string
	Password  string
	CompanyID string // Optional: defaults to the user's oldest membership.
	IPAddress string
}

// LoginSession represents a successfully established user session.
type LoginSession struct {
	AccessToken           string
	RefreshToken          string
	RefreshTokenExpiresAt time.Time
	User                  *User
	CompanyID             string
	Role                  sec.Role
}

/*
Login validates user credentials and issues security tokens.

Description: Verifies identity, performs constant-time password comparison,
resolves the membership the session will act under, and issues a rotated
token pair bound to that company.

Parameters:
  - context: context.Context
  - input: LoginInput

Returns:
  - *LoginSession: Transport-ready session identifiers
  - error: Unauthorized, Forbidden, or internal failures
*/
func (service *Service) Login(context context.Context, input LoginInput) (*LoginSession, error) {

	// Look up the account by email
	user, err := service.userRepository.FindByEmail(context, input.Email)

	// If (err != nil) the user does not exist. Generic message to prevent enumeration.
	if err != nil {
		service.events.Security(context, "login_failed", audit.SeverityMedium, map[string]any{
			"ip":     input.IPAddress,
			"email":  input.Email,
			"reason": "unknown_email",
		})
		return nil, apperr.Unauthorized("Invalid login credentials")
	}

	// Verify password hash using bcrypt's constant-time comparison to prevent timing attacks
	if !sec.CheckPasswordHash(input.Password, user.PasswordHash) {
		service.events.Security(context, "login_failed", audit.SeverityMedium, map[string]any{
			"ip":     input.IPAddress,
			"email":  input.Email,
			"reason": "bad_password",
		})
		return nil, apperr.Unauthorized("Invalid login credentials")
	}

	// Deactivated accounts authenticate correctly but are refused a session
	if !user.IsActive {
		service.events.Security(context, "login_rejected_inactive", audit.SeverityMedium, map[string]any{
			"ip":      input.IPAddress,
			"user_id": user.ID,
		})
		return nil, apperr.Unauthorized("Account is inactive")
	}

	// Resolve the membership this session will act under
	membership, err := service.resolveMembership(context, user.ID, input.CompanyID)
	if err != nil {
		return nil, err
	}

	service.events.Access(context, "login_succeeded", map[string]any{
		"ip":         input.IPAddress,
		"user_id":    user.ID,
		"company_id": membership.CompanyID,
	})

	return service.issueSession(context, user, membership)
}

/*
Logout permanently revokes the presented refresh token.

Description: Ensures a refresh token can never be used again. Logout of an
unknown or already-revoked token succeeds silently (idempotent operation).

Parameters:
  - context: context.Context
  - refreshToken: string

Returns:
  - error: Revocation failures
*/
func (service *Service) Logout(context context.Context, refreshToken string) error {

	// Hash the refresh token; the store never sees raw token material
	tokenHash := sec.HashToken(refreshToken)

	if err := service.refreshTokens.Revoke(context, tokenHash); err != nil {
		return fmt.Errorf("auth_service_logout_failed: %w", err)
	}

	return nil
}

// # Session Management

/*
RefreshSession implements the refresh token rotation mechanism.

Description: Atomically consumes the presented refresh token (exactly one of
N concurrent callers can win), re-checks that the account is still active and
the membership still exists, and issues a fresh rotated token pair.

Parameters:
  - context: context.Context
  - refreshToken: string

Returns:
  - *LoginSession: New session credentials
  - error: Unauthorized or storage failures
*/
func (service *Service) RefreshSession(context context.Context, refreshToken string) (*LoginSession, error) {

	// Consume is retrieve-and-delete in one atomic store operation; a token
	// that was already spent looks identical to one that never existed.
	tokenHash := sec.HashToken(refreshToken)
	grant, err := service.refreshTokens.Consume(context, tokenHash)
	if err != nil {
		metrics.ObserveRefresh("replayed")
		service.events.Security(context, "refresh_token_replayed", audit.SeverityMedium, nil)
		return nil, apperr.Unauthorized("Invalid or expired refresh token")
	}

	// The account may have been deactivated since the grant was issued.
	// Only an absent row is a credential verdict; a broken lookup is not.
	user, err := service.userRepository.FindByID(context, grant.UserID)
	if err != nil {
		if apperr.IsNotFound(err) {
			return nil, apperr.Unauthorized("User not found")
		}
		return nil, fmt.Errorf("auth_service_refresh_user_lookup_failed: %w", err)
	}
	if !user.IsActive {
		return nil, apperr.Unauthorized("Account is inactive")
	}

	// Re-fetch the membership so a role change takes effect on rotation
	membership, err := service.membershipRepository.FindByUserAndCompany(context, grant.UserID, grant.CompanyID)
	if err != nil {
		return nil, apperr.Unauthorized("Invalid or expired refresh token")
	}

	metrics.ObserveRefresh("rotated")
	return service.issueSession(context, user, membership)
}

// # Tenant Selection

/*
SwitchCompany reissues a session for another company the user belongs to.

Description: The natural multi-tenant operation: the same person may be an
owner in one company and a seller in another. The new session snapshots the
membership of the target company; the old session's tokens are untouched and
simply age out.

Parameters:
  - context: context.Context
  - userID: string
  - companyID: string

Returns:
  - *LoginSession: Credentials scoped to the target company
  - error: Forbidden when no membership exists, or storage failures
*/
func (service *Service) SwitchCompany(context context.Context, userID, companyID string) (*LoginSession, error) {

	user, err := service.userRepository.FindByID(context, userID)
	if err != nil {
		if apperr.IsNotFound(err) {
			return nil, apperr.Unauthorized("User not found")
		}
		return nil, fmt.Errorf("auth_service_switch_user_lookup_failed: %w", err)
	}
	if !user.IsActive {
		return nil, apperr.Unauthorized("Account is inactive")
	}

	// The switch is only as trustworthy as the membership behind it
	membership, err := service.membershipRepository.FindByUserAndCompany(context, userID, companyID)
	if err != nil {
		service.events.Security(context, "company_switch_denied", audit.SeverityMedium, map[string]any{
			"user_id":    userID,
			"company_id": companyID,
		})
		return nil, apperr.Forbidden("Access to this company is not permitted")
	}

	service.events.Access(context, "company_switched", map[string]any{
		"user_id":    userID,
		"company_id": companyID,
	})

	return service.issueSession(context, user, membership)
}

// # Internals

// resolveMembership picks the membership a login acts under: the requested
// company when named, otherwise the user's oldest membership.
func (service *Service) resolveMembership(context context.Context, userID, companyID string) (*Membership, error) {
	if companyID != "" {
		membership, err := service.membershipRepository.FindByUserAndCompany(context, userID, companyID)
		if err != nil {
			return nil, apperr.Forbidden("Access to this company is not permitted")
		}
		return membership, nil
	}

	memberships, err := service.membershipRepository.FindByUser(context, userID)
	if err != nil {
		return nil, fmt.Errorf("auth_service_membership_lookup_failed: %w", err)
	}
	if len(memberships) == 0 {
		return nil, apperr.Forbidden("User has no company membership")
	}

	return &memberships[0], nil
}

// issueSession mints the access token and a fresh refresh grant for one
// user/membership pair.
func (service *Service) issueSession(context context.Context, user *User, membership *Membership) (*LoginSession, error) {

	// Short-lived access token snapshotting the membership
	accessToken, err := service.tokenIssuer.IssueAccessToken(user.ID, user.Email, membership.CompanyID, membership.Role)
	if err != nil {
		return nil, fmt.Errorf("auth_service_token_generation_failed: %w", err)
	}

	// Long-lived opaque refresh token, stored hashed
	refreshToken, err := sec.GenerateSecureToken(RefreshTokenLength)
	if err != nil {
		return nil, fmt.Errorf("auth_service_refresh_token_failed: %w", err)
	}

	expiresAt := time.Now().Add(RefreshTokenTTL)
	grant := RefreshGrant{UserID: user.ID, CompanyID: membership.CompanyID}

	if err := service.refreshTokens.Save(context, sec.HashToken(refreshToken), grant, RefreshTokenTTL); err != nil {
		return nil, fmt.Errorf("auth_service_grant_save_failed: %w", err)
	}

	return &LoginSession{
		AccessToken:           accessToken,
		RefreshToken:          refreshToken,
		RefreshTokenExpiresAt: expiresAt,
		User:                  user,
		CompanyID:             membership.CompanyID,
		Role:                  membership.Role,
	}, nil
}
