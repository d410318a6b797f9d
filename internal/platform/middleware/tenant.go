// Copyright (c) 2026 Stokria. All rights reserved.

package middleware

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/stokria/stokria/internal/platform/apperr"
	"github.com/stokria/stokria/internal/platform/audit"
	"github.com/stokria/stokria/internal/platform/constants"
	"github.com/stokria/stokria/internal/platform/ctxutil"
	"github.com/stokria/stokria/internal/platform/metrics"
	"github.com/stokria/stokria/internal/platform/respond"
	"github.com/stokria/stokria/internal/platform/sec"
	"github.com/stokria/stokria/internal/platform/validate"
)

// maxBodyPeekBytes bounds how much of the body the resolver will buffer when
// looking for a companyId field.
const maxBodyPeekBytes = 1 << 20 // 1 MiB

// ResolveCompanyContext determines which tenant a request acts on.
//
// # Source Priority (first non-empty wins)
//  1. Route parameter 'companyId'.
//  2. JSON body field 'companyId' (the body is re-buffered so downstream
//     handlers can still decode it).
//  3. The authenticated token's 'company_id' claim.
//
// # Contract
//
// No source -> 400 MISSING_COMPANY_CONTEXT. A value that is not UUID-shaped
// (case-insensitive 8-4-4-4-12) -> 400 INVALID_COMPANY_ID. Otherwise the
// company ID and the requester's role are attached to the context.
//
// The resolver deliberately performs NO membership check: tenant resolution
// and tenant authorization are separate concerns. The authorization gates
// own the question of whether this user may act in this company.
func ResolveCompanyContext(events audit.Recorder) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(writer http.ResponseWriter, request *http.Request) {

			// ── 1. Ordered source resolution ─────────────────────────────────
			companyID := chi.URLParam(request, constants.CompanyIDParam)

			if companyID == "" {
				companyID = companyIDFromBody(request)
			}

			claims := ctxutil.GetClaims(request.Context())
			if companyID == "" && claims != nil {
				companyID = claims.CompanyID
			}

			// ── 2. Presence & format validation ──────────────────────────────
			if companyID == "" {
				metrics.ObserveGate("tenant", "rejected_missing")
				events.Security(request.Context(), "company_context_missing", audit.SeverityLow, map[string]any{
					"ip":   RealIP(request),
					"path": request.URL.Path,
				})
				respond.Error(writer, request, apperr.MissingCompanyContext())
				return
			}

			if !validate.IsUUID(companyID) {
				metrics.ObserveGate("tenant", "rejected_format")
				events.Security(request.Context(), "company_id_malformed", audit.SeverityLow, map[string]any{
					"ip":       RealIP(request),
					"path":     request.URL.Path,
					"supplied": companyID,
				})
				respond.Error(writer, request, apperr.InvalidCompanyID())
				return
			}

			// ── 3. Context enrichment ────────────────────────────────────────
			ctx := ctxutil.WithCompanyID(request.Context(), strings.ToLower(companyID))

			// Role is attached when authenticated; anonymous requests (behind
			// OptionalAuth) simply carry no role.
			if claims != nil {
				if role, ok := sec.ParseRole(claims.Role); ok {
					ctx = ctxutil.WithUserRole(ctx, role)
				}
			}

			metrics.ObserveGate("tenant", "forwarded")
			next.ServeHTTP(writer, request.WithContext(ctx))
		})
	}
}

// companyIDFromBody peeks at a JSON request body for a 'companyId' field,
// restoring the body afterwards so handlers can still read it.
func companyIDFromBody(request *http.Request) string {
	if request.Body == nil || request.Body == http.NoBody {
		return ""
	}

	contentType := request.Header.Get("Content-Type")
	if contentType != "" && !strings.HasPrefix(contentType, "application/json") {
		return ""
	}

	bodyBytes, err := io.ReadAll(io.LimitReader(request.Body, maxBodyPeekBytes))
	// Restore what was consumed and chain the unread remainder, so bodies
	// larger than the peek cap still reach handlers intact.
	request.Body = io.NopCloser(io.MultiReader(bytes.NewReader(bodyBytes), request.Body))
	if err != nil || len(bodyBytes) == 0 {
		return ""
	}

	var payload struct {
		CompanyID string `json:"companyId"`
	}
	if err := json.Unmarshal(bodyBytes, &payload); err != nil {
		return ""
	}
	return payload.CompanyID
}
