// Copyright (c) 2026 Stokria. All rights reserved.

/*
Package auth implements the identity and multi-tenant access layer.

It defines the core domain entities (User, Company, Membership) and the logic
for authentication, session rotation, and tenant selection.

# Architecture

This layer is the "Truth" of the system. Entities defined here have no external
dependencies and encapsulate all business rules related to identity and the
company a user acts in.
*/
package auth

import (
	"time"

	"github.com/stokria/stokria/internal/platform/sec"
)

// # Domain Entities

// User represents a registered account on the Stokria platform.
//
// A user holds no role of their own: roles exist only on memberships, scoped
// to one company each.
type User struct {
	ID           string    `json:"id"`
	Email        string    `json:"email"`
	Name         string    `json:"name"`
	Phone        string    `json:"phone,omitempty"`
	PasswordHash string    `json:"-"` // Explicitly omitted from JSON for security.
	IsActive     bool      `json:"is_active"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// Company represents one tenant. Every piece of inventory and sales data in
// the wider system is scoped to exactly one company.
type Company struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	CreatedAt time.Time `json:"created_at"`
}

// Membership binds a user to a company with a single role.
//
// The same user may hold different roles in different companies; the access
// token always snapshots exactly one membership.
type Membership struct {
	UserID    string    `json:"user_id"`
	CompanyID string    `json:"company_id"`
	Role      sec.Role  `json:"role"`
	CreatedAt time.Time `json:"created_at"`
}

// # Field Identifiers

// Global field names for validation and identity mapping in the auth domain.
const (
	FieldEmail        = "email"
	FieldPassword     = "password"
	FieldName         = "name"
	FieldPhone        = "phone"
	FieldCompanyName  = "company_name"
	FieldCompanyID    = "companyId"
	FieldRefreshToken = "refresh_token"
	FieldAccessToken  = "access_token"
	FieldTokenType    = "token_type"
	FieldExpiresIn    = "expires_in"
	FieldUser         = "user"
	FieldRole         = "role"
	FieldMessage      = "message"
)
