// Copyright (c) 2026 Stokria. All rights reserved.

// PostgreSQL implementations of the auth repositories.
//
// # Architecture
//
// Repositories in this file are strictly separated from domain logic. They
// implement domain-defined interfaces (e.g., [UserRepository]) using the
// [pgxpool.Pool] connection manager.
//
// # Error Mapping
//
// Storage-specific errors (like pgx.ErrNoRows) are mapped to domain-friendly
// [apperr.AppError] types to avoid leaking storage implementation details.
package auth

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/stokria/stokria/internal/platform/apperr"
	"github.com/stokria/stokria/internal/platform/dberr"
	"github.com/stokria/stokria/internal/platform/sec"
)

// # User Repository

// PostgresUserRepository implements the UserRepository interface using pgx.
type PostgresUserRepository struct {
	pool *pgxpool.Pool
}

// NewUserRepository creates a new PostgreSQL implementation of the UserRepository.
func NewUserRepository(pool *pgxpool.Pool) *PostgresUserRepository {
	return &PostgresUserRepository{pool: pool}
}

/*
Create persists a new user record into the iam.account table.

Description: Deep-persists account metadata, ensuring timestamps are initialized
if not provided.

Parameters:
  - context: context.Context
  - user: *User (Entity to persist)

Returns:
  - error: Database constraint violations or connectivity errors
*/
func (repository *PostgresUserRepository) Create(context context.Context, user *User) error {
	const query = `
		INSERT INTO iam.account (
			id, email, name, phone, passwordhash, isactive, createdat, updatedat
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`

	now := time.Now()
	if user.CreatedAt.IsZero() {
		user.CreatedAt = now
	}
	user.UpdatedAt = now

	_, err := repository.pool.Exec(context, query,
		user.ID,
		user.Email,
		user.Name,
		user.Phone,
		user.PasswordHash,
		user.IsActive,
		user.CreatedAt,
		user.UpdatedAt,
	)

	if err != nil {
		return dberr.Wrap(err, "postgres_user_repo_create")
	}

	return nil
}

/*
FindByEmail retrieves a user record by their unique email address.

Description: Credential lookup for the login flow.

Parameters:
  - context: context.Context
  - email: string

Returns:
  - *User: Hydrated account entity
  - error: apperr.NotFound or database errors
*/
func (repository *PostgresUserRepository) FindByEmail(context context.Context, email string) (*User, error) {
	const query = `
		SELECT id, email, name, phone, passwordhash, isactive, createdat, updatedat
		FROM iam.account
		WHERE email = $1`

	user := &User{}
	err := repository.pool.QueryRow(context, query, email).Scan(
		&user.ID,
		&user.Email,
		&user.Name,
		&user.Phone,
		&user.PasswordHash,
		&user.IsActive,
		&user.CreatedAt,
		&user.UpdatedAt,
	)

	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperr.NotFound("User")
		}
		return nil, fmt.Errorf("postgres_user_repo_find_by_email_failed: %w", err)
	}

	return user, nil
}

/*
FindByID retrieves a user record by their unique ID.

Description: Primary key resolution; also serves the authentication gate's
per-request active-flag check.

Parameters:
  - context: context.Context
  - id: string (UUIDv7)

Returns:
  - *User: Hydrated account entity
  - error: Not found or execution errors
*/
func (repository *PostgresUserRepository) FindByID(context context.Context, id string) (*User, error) {
	const query = `
		SELECT id, email, name, phone, passwordhash, isactive, createdat, updatedat
		FROM iam.account
		WHERE id = $1`

	user := &User{}
	err := repository.pool.QueryRow(context, query, id).Scan(
		&user.ID,
		&user.Email,
		&user.Name,
		&user.Phone,
		&user.PasswordHash,
		&user.IsActive,
		&user.CreatedAt,
		&user.UpdatedAt,
	)

	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperr.NotFound("User")
		}
		return nil, fmt.Errorf("postgres_user_repo_find_by_id_failed: %w", err)
	}

	return user, nil
}

// # Company Repository

// PostgresCompanyRepository implements the CompanyRepository interface.
type PostgresCompanyRepository struct {
	pool *pgxpool.Pool
}

// NewCompanyRepository creates a new PostgreSQL implementation of CompanyRepository.
func NewCompanyRepository(pool *pgxpool.Pool) *PostgresCompanyRepository {
	return &PostgresCompanyRepository{pool: pool}
}

/*
Create persists a new company record into the iam.company table.

Parameters:
  - context: context.Context
  - company: *Company

Returns:
  - error: Storage failures
*/
func (repository *PostgresCompanyRepository) Create(context context.Context, company *Company) error {
	const query = `
		INSERT INTO iam.company (id, name, createdat)
		VALUES ($1, $2, $3)`

	if company.CreatedAt.IsZero() {
		company.CreatedAt = time.Now()
	}

	_, err := repository.pool.Exec(context, query, company.ID, company.Name, company.CreatedAt)
	if err != nil {
		return dberr.Wrap(err, "postgres_company_repo_create")
	}

	return nil
}

/*
FindByID retrieves a company record by its unique ID.

Parameters:
  - context: context.Context
  - id: string

Returns:
  - *Company: Hydrated entity
  - error: apperr.NotFound or execution errors
*/
func (repository *PostgresCompanyRepository) FindByID(context context.Context, id string) (*Company, error) {
	const query = `
		SELECT id, name, createdat
		FROM iam.company
		WHERE id = $1`

	company := &Company{}
	err := repository.pool.QueryRow(context, query, id).Scan(
		&company.ID,
		&company.Name,
		&company.CreatedAt,
	)

	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperr.NotFound("Company")
		}
		return nil, fmt.Errorf("postgres_company_repo_find_by_id_failed: %w", err)
	}

	return company, nil
}

// # Membership Repository

// PostgresMembershipRepository implements the MembershipRepository interface.
type PostgresMembershipRepository struct {
	pool *pgxpool.Pool
}

// NewMembershipRepository creates a new PostgreSQL implementation of MembershipRepository.
func NewMembershipRepository(pool *pgxpool.Pool) *PostgresMembershipRepository {
	return &PostgresMembershipRepository{pool: pool}
}

/*
Create persists a new user/company role binding into the iam.membership table.

Parameters:
  - context: context.Context
  - membership: *Membership

Returns:
  - error: Constraint violations or connectivity errors
*/
func (repository *PostgresMembershipRepository) Create(context context.Context, membership *Membership) error {
	const query = `
		INSERT INTO iam.membership (userid, companyid, role, createdat)
		VALUES ($1, $2, $3, $4)`

	if membership.CreatedAt.IsZero() {
		membership.CreatedAt = time.Now()
	}

	_, err := repository.pool.Exec(context, query,
		membership.UserID,
		membership.CompanyID,
		string(membership.Role),
		membership.CreatedAt,
	)

	if err != nil {
		return dberr.Wrap(err, "postgres_membership_repo_create")
	}

	return nil
}

/*
FindByUser retrieves every membership held by a user, oldest first.

Description: The ordering makes "first membership" a stable default tenant
for logins that do not name a company.

Parameters:
  - context: context.Context
  - userID: string

Returns:
  - []Membership: Hydrated bindings (possibly empty)
  - error: Query or scan failures
*/
func (repository *PostgresMembershipRepository) FindByUser(context context.Context, userID string) ([]Membership, error) {
	const query = `
		SELECT userid, companyid, role, createdat
		FROM iam.membership
		WHERE userid = $1
		ORDER BY createdat ASC`

	rows, err := repository.pool.Query(context, query, userID)
	if err != nil {
		return nil, fmt.Errorf("postgres_membership_repo_find_by_user_failed: %w", err)
	}
	defer rows.Close()

	var memberships []Membership
	for rows.Next() {
		var membership Membership
		var role string

		if err := rows.Scan(&membership.UserID, &membership.CompanyID, &role, &membership.CreatedAt); err != nil {
			return nil, fmt.Errorf("postgres_membership_repo_scan_failed: %w", err)
		}

		// Unknown roles in storage are a data problem, surfaced loudly rather
		// than silently coerced.
		parsed, ok := sec.ParseRole(role)
		if !ok {
			return nil, fmt.Errorf("postgres_membership_repo_unknown_role: %q", role)
		}
		membership.Role = parsed

		memberships = append(memberships, membership)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("postgres_membership_repo_rows_failed: %w", err)
	}

	return memberships, nil
}

/*
FindByUserAndCompany retrieves the single binding between a user and a company.

Parameters:
  - context: context.Context
  - userID: string
  - companyID: string

Returns:
  - *Membership: Hydrated binding
  - error: apperr.NotFound or execution errors
*/
func (repository *PostgresMembershipRepository) FindByUserAndCompany(context context.Context, userID, companyID string) (*Membership, error) {
	const query = `
		SELECT userid, companyid, role, createdat
		FROM iam.membership
		WHERE userid = $1 AND companyid = $2`

	membership := &Membership{}
	var role string

	err := repository.pool.QueryRow(context, query, userID, companyID).Scan(
		&membership.UserID,
		&membership.CompanyID,
		&role,
		&membership.CreatedAt,
	)

	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperr.NotFound("Membership")
		}
		return nil, fmt.Errorf("postgres_membership_repo_find_failed: %w", err)
	}

	parsed, ok := sec.ParseRole(role)
	if !ok {
		return nil, fmt.Errorf("postgres_membership_repo_unknown_role: %q", role)
	}
	membership.Role = parsed

	return membership, nil
}
