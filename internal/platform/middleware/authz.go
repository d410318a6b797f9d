// Copyright (c) 2026 Stokria. All rights reserved.

package middleware

import (
	"net/http"
	"strings"

	"github.com/stokria/stokria/internal/platform/apperr"
	"github.com/stokria/stokria/internal/platform/audit"
	"github.com/stokria/stokria/internal/platform/ctxutil"
	"github.com/stokria/stokria/internal/platform/metrics"
	"github.com/stokria/stokria/internal/platform/respond"
	"github.com/stokria/stokria/internal/platform/sec"
)

// # Ordering

// The authorization gates assume their invariants are already established:
// AuthenticateJWT ran first (identity verified) and ResolveCompanyContext ran
// second (company ID validated). They re-check presence — never validity.

// # Role-List Gate

// AuthorizeRoles is the coarse authorization check.
//
// # Flow
//  1. Identity must be present (401 otherwise).
//  2. A company context must be resolved (400 otherwise).
//  3. The token's tenant must match the resolved tenant (403 otherwise,
//     audited at high severity — see cross-tenant note below).
//  4. The requester's role must be in the allowed set (403 otherwise).
//
// # Cross-Tenant Guard
//
// A token's role is only meaningful inside the company the token was issued
// for. When a route parameter or body field resolves the context to a
// DIFFERENT company, the role cannot be trusted there, so the gate denies and
// raises a high-severity event rather than letting a company-A credential
// operate on company B.
func AuthorizeRoles(events audit.Recorder, allowedRoles ...sec.Role) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(writer http.ResponseWriter, request *http.Request) {
			ctx := request.Context()

			// ── 1. Authentication Check ───────────────────────────────────────
			identity := ctxutil.GetIdentity(ctx)
			if identity == nil {
				metrics.ObserveGate("authz", "rejected_unauthenticated")
				respond.Error(writer, request, apperr.Unauthorized("Authentication required"))
				return
			}

			// ── 2. Tenant Presence Check ──────────────────────────────────────
			companyID := ctxutil.GetCompanyID(ctx)
			if companyID == "" {
				metrics.ObserveGate("authz", "rejected_no_company")
				respond.Error(writer, request, apperr.MissingCompanyContext())
				return
			}

			// ── 3. Cross-Tenant Guard ─────────────────────────────────────────
			if denied := rejectCrossTenant(writer, request, events, companyID); denied {
				return
			}

			// ── 4. Role Check ─────────────────────────────────────────────────
			role, ok := ctxutil.GetUserRole(ctx)
			if !ok || !role.In(allowedRoles...) {
				metrics.ObserveGate("authz", "rejected_role")
				events.Security(ctx, "insufficient_role", audit.SeverityMedium, map[string]any{
					"ip":           RealIP(request),
					"path":         request.URL.Path,
					"user_id":      identity.ID,
					"company_id":   companyID,
					"current_role": string(role),
				})
				respond.Error(writer, request, apperr.Forbidden("Insufficient permissions"))
				return
			}

			metrics.ObserveGate("authz", "forwarded")
			next.ServeHTTP(writer, request)
		})
	}
}

// # Convenience Specializations

// RequireOwner restricts a route to company owners.
func RequireOwner(events audit.Recorder) func(http.Handler) http.Handler {
	return AuthorizeRoles(events, sec.RoleOwner)
}

// RequireOwnerOrAdmin restricts a route to company management.
func RequireOwnerOrAdmin(events audit.Recorder) func(http.Handler) http.Handler {
	return AuthorizeRoles(events, sec.RoleOwner, sec.RoleAdmin)
}

// RequireSellerAccess admits the sales-side roles.
func RequireSellerAccess(events audit.Recorder) func(http.Handler) http.Handler {
	return AuthorizeRoles(events, sec.RoleOwner, sec.RoleAdmin, sec.RoleSeller)
}

// RequireInventoryAccess admits the stock-side roles.
func RequireInventoryAccess(events audit.Recorder) func(http.Handler) http.Handler {
	return AuthorizeRoles(events, sec.RoleOwner, sec.RoleAdmin, sec.RoleInventory)
}

// # Resource-Permission Gate

// permissionDeniedPayload is the response body for a fine-grained denial.
// It names the action the caller lacked and the role they hold.
type permissionDeniedPayload struct {
	Error       string `json:"error"`
	Resource    string `json:"resource"`
	Required    string `json:"required"`
	CurrentRole string `json:"currentRole"`
}

// CheckResourcePermission is the fine-grained authorization check against
// the static permission matrix.
//
// # Decisions
//   - Unknown resource type -> 400; a configuration error, logged at warn.
//   - Role absent from the resource's row -> 403 with a distinct
//     high-severity 'role_not_found_in_permissions' event: the matrix was
//     never designed for this role, which must never silently default to
//     permit — or to an unlogged deny.
//   - Action not in the role's allowed set -> 403 naming the required
//     action and the current role.
//   - Allowed -> the granted permission is attached to context.
func CheckResourcePermission(matrix *sec.Matrix, events audit.Recorder, resource sec.ResourceType, action sec.Action) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(writer http.ResponseWriter, request *http.Request) {
			ctx := request.Context()

			identity := ctxutil.GetIdentity(ctx)
			if identity == nil {
				metrics.ObserveGate("authz", "rejected_unauthenticated")
				respond.Error(writer, request, apperr.Unauthorized("Authentication required"))
				return
			}

			companyID := ctxutil.GetCompanyID(ctx)
			if companyID == "" {
				metrics.ObserveGate("authz", "rejected_no_company")
				respond.Error(writer, request, apperr.MissingCompanyContext())
				return
			}

			if denied := rejectCrossTenant(writer, request, events, companyID); denied {
				return
			}

			role, _ := ctxutil.GetUserRole(ctx)

			switch matrix.Decide(resource, role, action) {
			case sec.DecisionResourceUnknown:
				metrics.ObserveGate("authz", "rejected_unknown_resource")
				ctxutil.GetLogger(ctx).WarnContext(ctx, "permission_matrix_missing_resource",
					"resource", string(resource),
				)
				respond.Error(writer, request, apperr.UnknownResourceType(string(resource)))
				return

			case sec.DecisionRoleUnknown:
				metrics.ObserveGate("authz", "rejected_role_unknown")
				events.Security(ctx, "role_not_found_in_permissions", audit.SeverityHigh, map[string]any{
					"ip":         RealIP(request),
					"path":       request.URL.Path,
					"user_id":    identity.ID,
					"company_id": companyID,
					"resource":   string(resource),
					"role":       string(role),
				})
				respond.JSON(writer, http.StatusForbidden, permissionDeniedPayload{
					Error:       "Permission denied",
					Resource:    string(resource),
					Required:    string(action),
					CurrentRole: string(role),
				})
				return

			case sec.DecisionDeniedAction:
				metrics.ObserveGate("authz", "rejected_action")
				events.Security(ctx, "permission_denied", audit.SeverityMedium, map[string]any{
					"ip":         RealIP(request),
					"path":       request.URL.Path,
					"user_id":    identity.ID,
					"company_id": companyID,
					"resource":   string(resource),
					"required":   string(action),
					"role":       string(role),
				})
				respond.JSON(writer, http.StatusForbidden, permissionDeniedPayload{
					Error:       "Permission denied",
					Resource:    string(resource),
					Required:    string(action),
					CurrentRole: string(role),
				})
				return
			}

			// DecisionAllowed — enrich and forward.
			granted := sec.ResourcePermission{Resource: resource, Action: action, Allowed: true}
			metrics.ObserveGate("authz", "forwarded")
			next.ServeHTTP(writer, request.WithContext(ctxutil.WithResourcePermission(ctx, granted)))
		})
	}
}

// rejectCrossTenant denies requests whose token was issued for a different
// company than the one the context resolved to. Reports true when the
// request was terminated.
func rejectCrossTenant(writer http.ResponseWriter, request *http.Request, events audit.Recorder, companyID string) bool {
	claims := ctxutil.GetClaims(request.Context())
	if claims == nil || claims.CompanyID == "" || strings.EqualFold(claims.CompanyID, companyID) {
		return false
	}

	metrics.ObserveGate("authz", "rejected_cross_tenant")
	events.Security(request.Context(), "cross_tenant_access_attempt", audit.SeverityHigh, map[string]any{
		"ip":               RealIP(request),
		"path":             request.URL.Path,
		"user_id":          claims.UserID,
		"token_company_id": claims.CompanyID,
		"target_company":   companyID,
	})
	respond.Error(writer, request, apperr.Forbidden("Access to this company is not permitted"))
	return true
}
