// Copyright (c) 2026 Stokria. All rights reserved.

package middleware_test

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/stokria/stokria/internal/platform/apperr"
	"github.com/stokria/stokria/internal/platform/audit"
	"github.com/stokria/stokria/internal/platform/ctxutil"
	"github.com/stokria/stokria/internal/platform/middleware"
	"github.com/stokria/stokria/internal/platform/sec"
)

const (
	testUserID    = "0192f4a1-0000-7000-8000-000000000001"
	testCompanyID = "0192f4a1-0000-7000-8000-00000000c001"
)

// # Test Doubles

type stubVerifier struct {
	claims *sec.Claims
	err    error
}

func (s *stubVerifier) VerifyAccessToken(string) (*sec.Claims, error) {
	return s.claims, s.err
}

type stubDirectory struct {
	identity *sec.Identity
	err      error
}

func (s *stubDirectory) FindByID(context.Context, string) (*sec.Identity, error) {
	return s.identity, s.err
}

func testClaims() *sec.Claims {
	return &sec.Claims{
		UserID:    testUserID,
		Email:     "owner@example.com",
		CompanyID: testCompanyID,
		Role:      "owner",
	}
}

func activeIdentity() *sec.Identity {
	return &sec.Identity{ID: testUserID, Email: "owner@example.com", Active: true}
}

// decodeError pulls the client-visible message out of the error envelope.
func decodeError(t *testing.T, recorder *httptest.ResponseRecorder) string {
	t.Helper()
	var envelope struct {
		Error string `json:"error"`
	}
	require.NoError(t, json.Unmarshal(recorder.Body.Bytes(), &envelope))
	return envelope.Error
}

/*
TestAuthenticateJWT_StateMachine walks the strict gate through every
rejection state and asserts the exact client message and audit severity.
*/
func TestAuthenticateJWT_StateMachine(t *testing.T) {
	tests := []struct {
		name         string
		header       string
		verifier     *stubVerifier
		directory    *stubDirectory
		wantMessage  string
		wantEvent    string
		wantSeverity audit.Severity
	}{
		{
			name:         "missing_header",
			header:       "",
			verifier:     &stubVerifier{},
			directory:    &stubDirectory{},
			wantMessage:  "No token provided",
			wantEvent:    "auth_missing_token",
			wantSeverity: audit.SeverityLow,
		},
		{
			name:         "wrong_scheme",
			header:       "Basic dXNlcjpwYXNz",
			verifier:     &stubVerifier{},
			directory:    &stubDirectory{},
			wantMessage:  "Invalid token format",
			wantEvent:    "auth_malformed_header",
			wantSeverity: audit.SeverityLow,
		},
		{
			name:         "expired_token",
			header:       "Bearer some.jwt.token",
			verifier:     &stubVerifier{err: sec.ErrTokenExpired},
			directory:    &stubDirectory{},
			wantMessage:  "Access token expired",
			wantEvent:    "auth_token_expired",
			wantSeverity: audit.SeverityLow,
		},
		{
			name:         "invalid_signature",
			header:       "Bearer some.jwt.token",
			verifier:     &stubVerifier{err: sec.ErrTokenInvalid},
			directory:    &stubDirectory{},
			wantMessage:  "Invalid token",
			wantEvent:    "auth_token_invalid",
			wantSeverity: audit.SeverityMedium,
		},
		{
			name:         "user_not_found",
			header:       "Bearer some.jwt.token",
			verifier:     &stubVerifier{claims: testClaims()},
			directory:    &stubDirectory{err: apperr.NotFound("User")},
			wantMessage:  "User not found",
			wantEvent:    "auth_user_not_found",
			wantSeverity: audit.SeverityMedium,
		},
		{
			name:         "inactive_account",
			header:       "Bearer some.jwt.token",
			verifier:     &stubVerifier{claims: testClaims()},
			directory:    &stubDirectory{identity: &sec.Identity{ID: testUserID, Active: false}},
			wantMessage:  "Account is inactive",
			wantEvent:    "auth_user_inactive",
			wantSeverity: audit.SeverityMedium,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			events := audit.NewMemoryRecorder()
			gate := middleware.AuthenticateJWT(tt.verifier, tt.directory, events)

			nextCalled := false
			handler := gate(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
				nextCalled = true
			}))

			request := httptest.NewRequest(http.MethodGet, "/protected", nil)
			if tt.header != "" {
				request.Header.Set("Authorization", tt.header)
			}
			recorder := httptest.NewRecorder()

			handler.ServeHTTP(recorder, request)

			assert.False(t, nextCalled)
			assert.Equal(t, http.StatusUnauthorized, recorder.Code)
			assert.Equal(t, tt.wantMessage, decodeError(t, recorder))

			event, found := events.Find(tt.wantEvent)
			require.True(t, found, "expected audit event %q", tt.wantEvent)
			assert.Equal(t, tt.wantSeverity, event.Severity)
		})
	}
}

/*
TestAuthenticateJWT_Success verifies that a valid token attaches claims and
identity to the downstream context and records an access event.
*/
func TestAuthenticateJWT_Success(t *testing.T) {
	events := audit.NewMemoryRecorder()
	gate := middleware.AuthenticateJWT(
		&stubVerifier{claims: testClaims()},
		&stubDirectory{identity: activeIdentity()},
		events,
	)

	var gotClaims *sec.Claims
	var gotIdentity *sec.Identity
	handler := gate(http.HandlerFunc(func(_ http.ResponseWriter, request *http.Request) {
		gotClaims = ctxutil.GetClaims(request.Context())
		gotIdentity = ctxutil.GetIdentity(request.Context())
	}))

	request := httptest.NewRequest(http.MethodGet, "/protected", nil)
	request.Header.Set("Authorization", "Bearer some.jwt.token")
	recorder := httptest.NewRecorder()

	handler.ServeHTTP(recorder, request)

	assert.Equal(t, http.StatusOK, recorder.Code)
	require.NotNil(t, gotClaims)
	require.NotNil(t, gotIdentity)
	assert.Equal(t, testUserID, gotClaims.UserID)
	assert.Equal(t, testUserID, gotIdentity.ID)

	event, found := events.Find("request_authenticated")
	require.True(t, found)
	assert.Equal(t, "access", event.Kind)
}

/*
TestAuthenticateJWT_LookupFault verifies that a broken user lookup surfaces
as a 500, never as a credential rejection.
*/
func TestAuthenticateJWT_LookupFault(t *testing.T) {
	events := audit.NewMemoryRecorder()
	gate := middleware.AuthenticateJWT(
		&stubVerifier{claims: testClaims()},
		&stubDirectory{err: errors.New("connection refused")},
		events,
	)

	nextCalled := false
	handler := gate(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
		nextCalled = true
	}))

	request := httptest.NewRequest(http.MethodGet, "/protected", nil)
	request.Header.Set("Authorization", "Bearer some.jwt.token")
	recorder := httptest.NewRecorder()

	handler.ServeHTTP(recorder, request)

	assert.False(t, nextCalled)
	assert.Equal(t, http.StatusInternalServerError, recorder.Code)
	assert.Equal(t, "An unexpected error occurred", decodeError(t, recorder))

	// The outage must not masquerade as an auth rejection in the event log.
	_, found := events.Find("auth_user_not_found")
	assert.False(t, found)
}

/*
TestOptionalAuth verifies the lenient gate forwards on every failure and only
audits when a credential was actually presented.
*/
func TestOptionalAuth(t *testing.T) {
	t.Run("anonymous_forwarded_silently", func(t *testing.T) {
		events := audit.NewMemoryRecorder()
		gate := middleware.OptionalAuth(&stubVerifier{}, &stubDirectory{}, events)

		nextCalled := false
		handler := gate(http.HandlerFunc(func(_ http.ResponseWriter, request *http.Request) {
			nextCalled = true
			assert.Nil(t, ctxutil.GetIdentity(request.Context()))
		}))

		recorder := httptest.NewRecorder()
		handler.ServeHTTP(recorder, httptest.NewRequest(http.MethodGet, "/feed", nil))

		assert.True(t, nextCalled)
		assert.Equal(t, http.StatusOK, recorder.Code)
		assert.Empty(t, events.Events())
	})

	t.Run("bad_token_forwarded_but_audited", func(t *testing.T) {
		events := audit.NewMemoryRecorder()
		gate := middleware.OptionalAuth(&stubVerifier{err: sec.ErrTokenInvalid}, &stubDirectory{}, events)

		nextCalled := false
		handler := gate(http.HandlerFunc(func(_ http.ResponseWriter, request *http.Request) {
			nextCalled = true
			assert.Nil(t, ctxutil.GetIdentity(request.Context()))
		}))

		request := httptest.NewRequest(http.MethodGet, "/feed", nil)
		request.Header.Set("Authorization", "Bearer bad.token.here")
		recorder := httptest.NewRecorder()
		handler.ServeHTTP(recorder, request)

		assert.True(t, nextCalled)
		_, found := events.Find("auth_token_invalid")
		assert.True(t, found)
	})

	t.Run("lookup_fault_is_not_forwarded", func(t *testing.T) {
		events := audit.NewMemoryRecorder()
		gate := middleware.OptionalAuth(
			&stubVerifier{claims: testClaims()},
			&stubDirectory{err: errors.New("connection refused")},
			events,
		)

		nextCalled := false
		handler := gate(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
			nextCalled = true
		}))

		request := httptest.NewRequest(http.MethodGet, "/feed", nil)
		request.Header.Set("Authorization", "Bearer good.token.here")
		recorder := httptest.NewRecorder()
		handler.ServeHTTP(recorder, request)

		// Forwarding anonymously here would downgrade an authenticated caller
		// during an outage.
		assert.False(t, nextCalled)
		assert.Equal(t, http.StatusInternalServerError, recorder.Code)
	})

	t.Run("valid_token_attaches_identity", func(t *testing.T) {
		events := audit.NewMemoryRecorder()
		gate := middleware.OptionalAuth(
			&stubVerifier{claims: testClaims()},
			&stubDirectory{identity: activeIdentity()},
			events,
		)

		handler := gate(http.HandlerFunc(func(_ http.ResponseWriter, request *http.Request) {
			assert.NotNil(t, ctxutil.GetIdentity(request.Context()))
		}))

		request := httptest.NewRequest(http.MethodGet, "/feed", nil)
		request.Header.Set("Authorization", "Bearer good.token.here")
		handler.ServeHTTP(httptest.NewRecorder(), request)
	})
}

/*
TestExtractUserFromToken verifies the passive decode attaches only the
untrusted hint and never a trusted identity.
*/
func TestExtractUserFromToken(t *testing.T) {
	service, err := sec.NewTokenService("hint-test-secret-32-bytes-long!!", "stokria.app", time.Minute)
	require.NoError(t, err)
	token, err := service.IssueAccessToken(testUserID, "a@b.com", testCompanyID, sec.RoleSeller)
	require.NoError(t, err)

	gate := middleware.ExtractUserFromToken()

	t.Run("valid_token_becomes_hint", func(t *testing.T) {
		handler := gate(http.HandlerFunc(func(_ http.ResponseWriter, request *http.Request) {
			hint := ctxutil.GetUserHint(request.Context())
			require.NotNil(t, hint)
			assert.Equal(t, testUserID, hint.UserID)
			assert.Nil(t, ctxutil.GetIdentity(request.Context()))
		}))

		request := httptest.NewRequest(http.MethodGet, "/any", nil)
		request.Header.Set("Authorization", "Bearer "+token)
		handler.ServeHTTP(httptest.NewRecorder(), request)
	})

	t.Run("garbage_token_no_hint_no_rejection", func(t *testing.T) {
		nextCalled := false
		handler := gate(http.HandlerFunc(func(_ http.ResponseWriter, request *http.Request) {
			nextCalled = true
			assert.Nil(t, ctxutil.GetUserHint(request.Context()))
		}))

		request := httptest.NewRequest(http.MethodGet, "/any", nil)
		request.Header.Set("Authorization", "Bearer not-a-jwt")
		recorder := httptest.NewRecorder()
		handler.ServeHTTP(recorder, request)

		assert.True(t, nextCalled)
		assert.Equal(t, http.StatusOK, recorder.Code)
	})
}

/*
TestRequireAuth verifies the presence check used behind optional gates.
*/
func TestRequireAuth(t *testing.T) {
	handler := middleware.RequireAuth(http.HandlerFunc(func(writer http.ResponseWriter, _ *http.Request) {
		writer.WriteHeader(http.StatusOK)
	}))

	t.Run("anonymous_rejected", func(t *testing.T) {
		recorder := httptest.NewRecorder()
		handler.ServeHTTP(recorder, httptest.NewRequest(http.MethodPost, "/logout", nil))
		assert.Equal(t, http.StatusUnauthorized, recorder.Code)
	})

	t.Run("authenticated_forwarded", func(t *testing.T) {
		request := httptest.NewRequest(http.MethodPost, "/logout", nil)
		ctx := ctxutil.WithIdentity(request.Context(), activeIdentity())
		recorder := httptest.NewRecorder()
		handler.ServeHTTP(recorder, request.WithContext(ctx))
		assert.Equal(t, http.StatusOK, recorder.Code)
	})
}
