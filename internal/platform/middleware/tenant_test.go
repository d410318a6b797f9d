// Copyright (c) 2026 Stokria. All rights reserved.

package middleware_test

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/stokria/stokria/internal/platform/audit"
	"github.com/stokria/stokria/internal/platform/ctxutil"
	"github.com/stokria/stokria/internal/platform/middleware"
	"github.com/stokria/stokria/internal/platform/sec"
)

const otherCompanyID = "0192f4a1-0000-7000-8000-00000000c002"

// withClaims pre-attaches verified claims, standing in for the auth gate.
func withClaims(claims *sec.Claims) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(writer http.ResponseWriter, request *http.Request) {
			ctx := ctxutil.WithClaims(request.Context(), claims)
			next.ServeHTTP(writer, request.WithContext(ctx))
		})
	}
}

// decodeCode pulls the machine-readable code out of the error envelope.
func decodeCode(t *testing.T, recorder *httptest.ResponseRecorder) string {
	t.Helper()
	var envelope struct {
		Code string `json:"code"`
	}
	require.NoError(t, json.Unmarshal(recorder.Body.Bytes(), &envelope))
	return envelope.Code
}

/*
TestResolveCompanyContext_SourcePriority verifies the route-param > body >
claim resolution order.
*/
func TestResolveCompanyContext_SourcePriority(t *testing.T) {
	events := audit.NewMemoryRecorder()

	var resolved string
	capture := http.HandlerFunc(func(_ http.ResponseWriter, request *http.Request) {
		resolved = ctxutil.GetCompanyID(request.Context())
	})

	router := chi.NewRouter()
	router.With(withClaims(testClaims()), middleware.ResolveCompanyContext(events)).
		Post("/companies/{companyId}/products", capture)
	router.With(withClaims(testClaims()), middleware.ResolveCompanyContext(events)).
		Post("/reports", capture)

	t.Run("route_param_beats_body_and_claim", func(t *testing.T) {
		body := strings.NewReader(`{"companyId":"` + otherCompanyID + `"}`)
		request := httptest.NewRequest(http.MethodPost, "/companies/"+testCompanyID+"/products", body)
		request.Header.Set("Content-Type", "application/json")

		router.ServeHTTP(httptest.NewRecorder(), request)
		assert.Equal(t, testCompanyID, resolved)
	})

	t.Run("body_beats_claim", func(t *testing.T) {
		body := strings.NewReader(`{"companyId":"` + otherCompanyID + `"}`)
		request := httptest.NewRequest(http.MethodPost, "/reports", body)
		request.Header.Set("Content-Type", "application/json")

		router.ServeHTTP(httptest.NewRecorder(), request)
		assert.Equal(t, otherCompanyID, resolved)
	})

	t.Run("claim_is_the_fallback", func(t *testing.T) {
		request := httptest.NewRequest(http.MethodPost, "/reports", nil)
		router.ServeHTTP(httptest.NewRecorder(), request)
		assert.Equal(t, testCompanyID, resolved)
	})
}

/*
TestResolveCompanyContext_Rejections verifies the missing and malformed
failure modes, each with its own error code and a low-severity event.
*/
func TestResolveCompanyContext_Rejections(t *testing.T) {
	t.Run("no_source_anywhere", func(t *testing.T) {
		events := audit.NewMemoryRecorder()
		handler := middleware.ResolveCompanyContext(events)(
			http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
				t.Fatal("handler must not run")
			}),
		)

		recorder := httptest.NewRecorder()
		handler.ServeHTTP(recorder, httptest.NewRequest(http.MethodGet, "/reports", nil))

		assert.Equal(t, http.StatusBadRequest, recorder.Code)
		assert.Equal(t, "MISSING_COMPANY_CONTEXT", decodeCode(t, recorder))

		event, found := events.Find("company_context_missing")
		require.True(t, found)
		assert.Equal(t, audit.SeverityLow, event.Severity)
	})

	t.Run("malformed_company_id", func(t *testing.T) {
		events := audit.NewMemoryRecorder()

		router := chi.NewRouter()
		router.With(middleware.ResolveCompanyContext(events)).
			Get("/companies/{companyId}/products", func(http.ResponseWriter, *http.Request) {
				t.Fatal("handler must not run")
			})

		recorder := httptest.NewRecorder()
		router.ServeHTTP(recorder, httptest.NewRequest(http.MethodGet, "/companies/not-a-uuid/products", nil))

		assert.Equal(t, http.StatusBadRequest, recorder.Code)
		assert.Equal(t, "INVALID_COMPANY_ID", decodeCode(t, recorder))

		event, found := events.Find("company_id_malformed")
		require.True(t, found)
		assert.Equal(t, audit.SeverityLow, event.Severity)
		assert.Equal(t, "not-a-uuid", event.Fields["supplied"])
	})
}

/*
TestResolveCompanyContext_BodyRestored verifies the body peek leaves the
request body fully readable for downstream handlers.
*/
func TestResolveCompanyContext_BodyRestored(t *testing.T) {
	events := audit.NewMemoryRecorder()
	payload := `{"companyId":"` + testCompanyID + `","note":"keep me"}`

	var downstreamBody string
	handler := middleware.ResolveCompanyContext(events)(
		http.HandlerFunc(func(_ http.ResponseWriter, request *http.Request) {
			raw, err := io.ReadAll(request.Body)
			require.NoError(t, err)
			downstreamBody = string(raw)
		}),
	)

	request := httptest.NewRequest(http.MethodPost, "/reports", bytes.NewReader([]byte(payload)))
	request.Header.Set("Content-Type", "application/json")
	handler.ServeHTTP(httptest.NewRecorder(), request)

	assert.Equal(t, payload, downstreamBody)
}

/*
TestResolveCompanyContext_OversizedBodyIntact verifies a body larger than the
peek cap still reaches the handler in full; the resolver falls back to the
claim when the truncated peek cannot be parsed.
*/
func TestResolveCompanyContext_OversizedBodyIntact(t *testing.T) {
	events := audit.NewMemoryRecorder()
	payload := `{"padding":"` + strings.Repeat("x", 2<<20) + `","companyId":"` + testCompanyID + `"}`

	var downstreamLen int
	var resolved string
	inner := http.HandlerFunc(func(_ http.ResponseWriter, request *http.Request) {
		raw, err := io.ReadAll(request.Body)
		require.NoError(t, err)
		downstreamLen = len(raw)
		resolved = ctxutil.GetCompanyID(request.Context())
	})
	handler := withClaims(testClaims())(middleware.ResolveCompanyContext(events)(inner))

	request := httptest.NewRequest(http.MethodPost, "/reports", strings.NewReader(payload))
	request.Header.Set("Content-Type", "application/json")
	recorder := httptest.NewRecorder()
	handler.ServeHTTP(recorder, request)

	assert.Equal(t, http.StatusOK, recorder.Code)
	assert.Equal(t, len(payload), downstreamLen)
	assert.Equal(t, testCompanyID, resolved)
}

/*
TestResolveCompanyContext_Enrichment verifies normalization and role
attachment on the happy path.
*/
func TestResolveCompanyContext_Enrichment(t *testing.T) {
	events := audit.NewMemoryRecorder()

	var gotCompanyID string
	var gotRole sec.Role
	var roleAttached bool

	router := chi.NewRouter()
	router.With(withClaims(testClaims()), middleware.ResolveCompanyContext(events)).
		Get("/companies/{companyId}/products", func(_ http.ResponseWriter, request *http.Request) {
			gotCompanyID = ctxutil.GetCompanyID(request.Context())
			gotRole, roleAttached = ctxutil.GetUserRole(request.Context())
		})

	t.Run("company_id_lowercased", func(t *testing.T) {
		upper := strings.ToUpper(testCompanyID)
		router.ServeHTTP(httptest.NewRecorder(),
			httptest.NewRequest(http.MethodGet, "/companies/"+upper+"/products", nil))
		assert.Equal(t, testCompanyID, gotCompanyID)
	})

	t.Run("role_parsed_from_claims", func(t *testing.T) {
		router.ServeHTTP(httptest.NewRecorder(),
			httptest.NewRequest(http.MethodGet, "/companies/"+testCompanyID+"/products", nil))
		require.True(t, roleAttached)
		assert.Equal(t, sec.RoleOwner, gotRole)
	})

	t.Run("anonymous_request_carries_no_role", func(t *testing.T) {
		anonymous := chi.NewRouter()
		anonymous.With(middleware.ResolveCompanyContext(events)).
			Get("/companies/{companyId}/products", func(_ http.ResponseWriter, request *http.Request) {
				_, roleAttached = ctxutil.GetUserRole(request.Context())
			})

		anonymous.ServeHTTP(httptest.NewRecorder(),
			httptest.NewRequest(http.MethodGet, "/companies/"+testCompanyID+"/products", nil))
		assert.False(t, roleAttached)
	})
}
