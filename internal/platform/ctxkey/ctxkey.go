// Copyright (c) 2026 Stokria. All rights reserved.

// Package ctxkey defines typed context keys used by middleware and handlers.
//
// # Safety
//
// It is used to store and retrieve per-request values (user identity, tenant
// context, request ID, logger). Using a private, unexported type for keys
// prevents collisions with third-party packages that might also use context
// for storage.
package ctxkey

// key is an unexported type used for context keys to ensure type safety.
//
// # Collision Prevention
//
// Even if another package uses "request_id" as a string key, it will not
// collide with this key type because Go's [context.Context] uses both the
// value AND the type for lookups.
type key string

const (
	// KeyRequestID is the context key for the X-Request-ID correlation value.
	KeyRequestID key = "request_id"

	// KeyClaims is the context key for the verified access token claims ([*sec.Claims]).
	KeyClaims key = "claims"

	// KeyIdentity is the context key for the authenticated user snapshot ([*sec.Identity]).
	KeyIdentity key = "identity"

	// KeyUserHint is the context key for the best-effort, UNVERIFIED token decode.
	// Telemetry only — never a trust decision input.
	KeyUserHint key = "user_from_token"

	// KeyCompanyID is the context key for the resolved tenant (company) ID.
	KeyCompanyID key = "company_id"

	// KeyUserRole is the context key for the requester's role within the resolved company.
	KeyUserRole key = "user_role"

	// KeyResourcePermission is the context key for the granted [sec.ResourcePermission].
	KeyResourcePermission key = "resource_permission"

	// KeyLogger is the context key for the per-request [*log/slog.Logger].
	KeyLogger key = "logger"
)
