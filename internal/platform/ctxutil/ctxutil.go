// Copyright (c) 2026 Stokria. All rights reserved.

// Package ctxutil provides helpers for interacting with values stored in [context.Context].
package ctxutil

import (
	"context"
	"log/slog"

	"github.com/stokria/stokria/internal/platform/ctxkey"
	"github.com/stokria/stokria/internal/platform/sec"
)

// # Request Tracing

// WithRequestID returns a new context with the provided request ID attached.
func WithRequestID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, ctxkey.KeyRequestID, id)
}

// GetRequestID retrieves the request ID from the context.
// Returns an empty string if not found.
func GetRequestID(ctx context.Context) string {
	id, _ := ctx.Value(ctxkey.KeyRequestID).(string)
	return id
}

// # Structured Logging

// WithLogger returns a new context with the provided logger attached.
func WithLogger(ctx context.Context, logger *slog.Logger) context.Context {
	return context.WithValue(ctx, ctxkey.KeyLogger, logger)
}

// GetLogger retrieves the logger from the context.
// If no logger is found, it returns the global default logger.
func GetLogger(ctx context.Context) *slog.Logger {
	logger, ok := ctx.Value(ctxkey.KeyLogger).(*slog.Logger)
	if !ok {
		return slog.Default()
	}
	return logger
}

// # Identity & Access

// WithClaims returns a new context with the verified token claims attached.
func WithClaims(ctx context.Context, claims *sec.Claims) context.Context {
	return context.WithValue(ctx, ctxkey.KeyClaims, claims)
}

// GetClaims retrieves the verified [*sec.Claims] from the context.
// Returns nil for anonymous requests.
func GetClaims(ctx context.Context) *sec.Claims {
	claims, ok := ctx.Value(ctxkey.KeyClaims).(*sec.Claims)
	if !ok {
		return nil
	}
	return claims
}

// WithIdentity returns a new context with the authenticated user snapshot attached.
func WithIdentity(ctx context.Context, identity *sec.Identity) context.Context {
	return context.WithValue(ctx, ctxkey.KeyIdentity, identity)
}

// GetIdentity retrieves the [*sec.Identity] from the context.
// Returns nil for anonymous requests.
func GetIdentity(ctx context.Context) *sec.Identity {
	identity, ok := ctx.Value(ctxkey.KeyIdentity).(*sec.Identity)
	if !ok {
		return nil
	}
	return identity
}

// WithUserHint stores an UNVERIFIED best-effort token decode.
//
// Telemetry and logging only — never read this for a trust decision.
func WithUserHint(ctx context.Context, claims *sec.Claims) context.Context {
	return context.WithValue(ctx, ctxkey.KeyUserHint, claims)
}

// GetUserHint retrieves the unverified token decode, if any.
func GetUserHint(ctx context.Context) *sec.Claims {
	claims, ok := ctx.Value(ctxkey.KeyUserHint).(*sec.Claims)
	if !ok {
		return nil
	}
	return claims
}

// # Tenant Context

// WithCompanyID returns a new context carrying the resolved tenant ID.
func WithCompanyID(ctx context.Context, companyID string) context.Context {
	return context.WithValue(ctx, ctxkey.KeyCompanyID, companyID)
}

// GetCompanyID retrieves the resolved company ID, or "" if no tenant
// context has been established.
func GetCompanyID(ctx context.Context) string {
	companyID, _ := ctx.Value(ctxkey.KeyCompanyID).(string)
	return companyID
}

// WithUserRole returns a new context carrying the requester's role in the
// resolved company.
func WithUserRole(ctx context.Context, role sec.Role) context.Context {
	return context.WithValue(ctx, ctxkey.KeyUserRole, role)
}

// GetUserRole retrieves the requester's role. ok=false means the request is
// unauthenticated or no role was resolved.
func GetUserRole(ctx context.Context) (sec.Role, bool) {
	role, ok := ctx.Value(ctxkey.KeyUserRole).(sec.Role)
	return role, ok
}

// # Resource Permissions

// WithResourcePermission returns a new context carrying the granted
// resource permission.
func WithResourcePermission(ctx context.Context, permission sec.ResourcePermission) context.Context {
	return context.WithValue(ctx, ctxkey.KeyResourcePermission, permission)
}

// GetResourcePermission retrieves the granted resource permission, if any.
func GetResourcePermission(ctx context.Context) (sec.ResourcePermission, bool) {
	permission, ok := ctx.Value(ctxkey.KeyResourcePermission).(sec.ResourcePermission)
	return permission, ok
}
