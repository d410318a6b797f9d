// Copyright (c) 2026 Stokria. All rights reserved.

package middleware

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/stokria/stokria/internal/platform/apperr"
	"github.com/stokria/stokria/internal/platform/audit"
	"github.com/stokria/stokria/internal/platform/constants"
	"github.com/stokria/stokria/internal/platform/ctxutil"
	"github.com/stokria/stokria/internal/platform/metrics"
	"github.com/stokria/stokria/internal/platform/respond"
	"github.com/stokria/stokria/internal/platform/sec"
)

// # Contracts

// TokenVerifier defines the interface needed to verify access tokens.
//
// # Why an interface?
//
// Defining TokenVerifier here decouples the gate from the [sec.TokenService]
// implementation, allowing us to easily inject mocks during unit testing.
type TokenVerifier interface {
	VerifyAccessToken(tokenString string) (*sec.Claims, error)
}

// UserDirectory resolves the current account snapshot for verified claims.
//
// This is the only blocking I/O on the authentication path: tokens are
// stateless except for the user's live active flag, which must be fetched
// at verification time.
type UserDirectory interface {
	FindByID(ctx context.Context, id string) (*sec.Identity, error)
}

// rejection is a terminal authentication failure with its audit metadata.
type rejection struct {
	message  string
	event    string
	severity audit.Severity
}

// The authentication state machine. Every rejection is a 401; the message
// is the only detail the client ever sees.
var (
	rejectNoToken      = rejection{"No token provided", "auth_missing_token", audit.SeverityLow}
	rejectBadScheme    = rejection{"Invalid token format", "auth_malformed_header", audit.SeverityLow}
	rejectExpired      = rejection{"Access token expired", "auth_token_expired", audit.SeverityLow}
	rejectInvalid      = rejection{"Invalid token", "auth_token_invalid", audit.SeverityMedium}
	rejectUserNotFound = rejection{"User not found", "auth_user_not_found", audit.SeverityMedium}
	rejectUserInactive = rejection{"Account is inactive", "auth_user_inactive", audit.SeverityMedium}
)

// # Strict Gate

// AuthenticateJWT verifies the bearer token and loads the live account.
//
// # Flow
//  1. Require 'Authorization: Bearer <token>'.
//  2. Verify signature + expiry via [TokenVerifier].
//  3. Load the user by the token's user_id; require an existing, active account.
//  4. Inject [*sec.Claims] and [*sec.Identity] into the request context.
//
// Any authentication failure is terminal (401). An infrastructure fault
// during the user lookup is not an authentication verdict and surfaces as
// a 500 instead. Every rejection and every success is reported to the
// security event log.
func AuthenticateJWT(verifier TokenVerifier, users UserDirectory, events audit.Recorder) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(writer http.ResponseWriter, request *http.Request) {
			claims, identity, failure, err := authenticate(request, verifier, users)
			if err != nil {
				metrics.ObserveGate("authn", "errored")
				respond.Error(writer, request, apperr.Internal(err))
				return
			}
			if failure != nil {
				rejectAuth(writer, request, events, *failure, claims)
				return
			}

			ctx := ctxutil.WithClaims(request.Context(), claims)
			ctx = ctxutil.WithIdentity(ctx, identity)

			metrics.ObserveGate("authn", "forwarded")
			events.Access(ctx, "request_authenticated", map[string]any{
				"ip":         RealIP(request),
				"path":       request.URL.Path,
				"user_id":    identity.ID,
				"company_id": claims.CompanyID,
			})

			next.ServeHTTP(writer, request.WithContext(ctx))
		})
	}
}

// # Optional Gate

// OptionalAuth runs the exact same verification as [AuthenticateJWT] but
// never rejects: any failure forwards the request unauthenticated.
//
// Used by endpoints serving both anonymous and authenticated callers.
// Failures are still audited so probing does not go unnoticed.
func OptionalAuth(verifier TokenVerifier, users UserDirectory, events audit.Recorder) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(writer http.ResponseWriter, request *http.Request) {
			// Anonymous access is the expected case here; only audit when a
			// credential was presented and failed.
			if request.Header.Get(constants.HeaderAuthorization) == "" {
				next.ServeHTTP(writer, request)
				return
			}

			claims, identity, failure, err := authenticate(request, verifier, users)
			if err != nil {
				// Not an auth verdict: forwarding anonymously would silently
				// downgrade authenticated callers during an outage.
				metrics.ObserveGate("authn", "errored")
				respond.Error(writer, request, apperr.Internal(err))
				return
			}
			if failure != nil {
				events.Security(request.Context(), failure.event, failure.severity, auditFields(request, claims))
				next.ServeHTTP(writer, request)
				return
			}

			ctx := ctxutil.WithClaims(request.Context(), claims)
			ctx = ctxutil.WithIdentity(ctx, identity)
			next.ServeHTTP(writer, request.WithContext(ctx))
		})
	}
}

// # Passive Decode

// ExtractUserFromToken decodes the bearer token WITHOUT verification and
// attaches the result as an untrusted hint for telemetry.
//
// It never rejects and never attaches a trusted identity. Trust decisions
// read [ctxutil.GetIdentity], never the hint.
func ExtractUserFromToken() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(writer http.ResponseWriter, request *http.Request) {
			token, ok := sec.ExtractTokenFromHeader(request.Header.Get(constants.HeaderAuthorization))
			if !ok {
				next.ServeHTTP(writer, request)
				return
			}

			claims, err := sec.DecodeUnverified(token)
			if err != nil {
				next.ServeHTTP(writer, request)
				return
			}

			ctx := ctxutil.WithUserHint(request.Context(), claims)
			next.ServeHTTP(writer, request.WithContext(ctx))
		})
	}
}

// # Presence Check

// RequireAuth blocks requests that did not pass an authentication gate.
//
// Must be registered AFTER [AuthenticateJWT] or [OptionalAuth]; it only
// checks presence, it performs no verification of its own.
func RequireAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(writer http.ResponseWriter, request *http.Request) {
		if ctxutil.GetIdentity(request.Context()) == nil {
			respond.Error(writer, request, apperr.Unauthorized("Authentication required"))
			return
		}
		next.ServeHTTP(writer, request)
	})
}

// # Shared Evaluation

// authenticate runs the full verification sequence for one request.
// On failure the partially decoded claims (if any) are returned alongside the
// rejection so audit entries can name the attempted identity. A non-nil error
// means the user lookup itself broke (unreachable store, query fault): the
// caller must answer 500, never a credential rejection.
func authenticate(request *http.Request, verifier TokenVerifier, users UserDirectory) (*sec.Claims, *sec.Identity, *rejection, error) {
	header := request.Header.Get(constants.HeaderAuthorization)
	if header == "" {
		return nil, nil, &rejectNoToken, nil
	}

	token, ok := sec.ExtractTokenFromHeader(header)
	if !ok {
		return nil, nil, &rejectBadScheme, nil
	}

	claims, err := verifier.VerifyAccessToken(token)
	if err != nil {
		if errors.Is(err, sec.ErrTokenExpired) {
			return nil, nil, &rejectExpired, nil
		}
		return nil, nil, &rejectInvalid, nil
	}

	identity, err := users.FindByID(request.Context(), claims.UserID)
	if err != nil {
		if apperr.IsNotFound(err) {
			return claims, nil, &rejectUserNotFound, nil
		}
		return claims, nil, nil, fmt.Errorf("auth_gate_user_lookup_failed: %w", err)
	}
	if identity == nil {
		return claims, nil, &rejectUserNotFound, nil
	}

	if !identity.Active {
		return claims, nil, &rejectUserInactive, nil
	}

	return claims, identity, nil, nil
}

// rejectAuth writes the terminal 401 and reports the security event.
func rejectAuth(writer http.ResponseWriter, request *http.Request, events audit.Recorder, failure rejection, claims *sec.Claims) {
	metrics.ObserveGate("authn", "rejected_"+failure.event)
	events.Security(request.Context(), failure.event, failure.severity, auditFields(request, claims))
	respond.Error(writer, request, apperr.Unauthorized(failure.message))
}

// auditFields builds the operator-visible diagnostic detail for an auth event.
// Full detail lives here even though the client response stays coarse.
func auditFields(request *http.Request, claims *sec.Claims) map[string]any {
	fields := map[string]any{
		"ip":     RealIP(request),
		"path":   request.URL.Path,
		"method": request.Method,
	}
	if claims != nil {
		fields["attempted_user_id"] = claims.UserID
		fields["attempted_company_id"] = claims.CompanyID
	}
	return fields
}
