// Copyright (c) 2026 Stokria. All rights reserved.

/*
HTTP delivery layer for the identity and access domain.

It implements the gateway for the authentication lifecycle, from tenant
provisioning to session rotation and company switching.

# Architecture

The handler acts as a thin mediation layer between the web and domain services:
  - Protocol: Standard RESTful JSON interface.
  - Security: Refresh tokens travel in JSON bodies; the API serves programmatic
    clients, not browsers, so no cookie orchestration is involved.
  - Verification: Enforces strict input validation before passing to [Service].

This layer is strictly responsible for transport concerns (status codes, headers, JSON).
*/
package auth

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/stokria/stokria/internal/platform/middleware"
	requestutil "github.com/stokria/stokria/internal/platform/request"
	"github.com/stokria/stokria/internal/platform/respond"
	"github.com/stokria/stokria/internal/platform/validate"
)

// # Definitions & Constructors

// Handler implements authentication-related HTTP endpoints.
//
// # Scope
//
// This handler manages everything related to the session lifecycle entry
// points (Registration, Login, Refresh, Logout, Company Switch).
type Handler struct {
	authService *Service
}

// NewHandler constructs a new [Handler] with its service dependency.
func NewHandler(service *Service) *Handler {
	return &Handler{authService: service}
}

// Routes returns a [chi.Router] configured with authentication routes.
//
// The strict authentication gate is injected rather than constructed here:
// the handler must not know about token verification internals.
//
// # Endpoints
//   - POST /register       : Provisions a company and its owner account.
//   - POST /login          : Authenticates and returns a token pair.
//   - POST /refresh        : Rotates a refresh token.
//   - POST /logout         : Revokes a refresh token.
//   - POST /switch-company : Reissues tokens for another membership (protected).
func (handler *Handler) Routes(authGate func(http.Handler) http.Handler) chi.Router {
	router := chi.NewRouter()

	// Public endpoints
	router.Post("/register", handler.register)
	router.Post("/login", handler.login)
	router.Post("/refresh", handler.refresh)
	router.Post("/logout", handler.logout)

	// Protected endpoints
	router.Group(func(r chi.Router) {
		r.Use(authGate)
		r.Use(middleware.RequireAuth)
		r.Post("/switch-company", handler.switchCompany)
	})

	return router
}

// # Request Payloads

type registerRequest struct {
	Email       string `json:"email"`
	Password    string `json:"password"`
	Name        string `json:"name"`
	Phone       string `json:"phone"`
	CompanyName string `json:"company_name"`
}

type loginRequest struct {
	Email     string `json:"email"`
	Password  string `json:"password"`
	CompanyID string `json:"companyId"`
}

type refreshRequest struct {
	RefreshToken string `json:"refresh_token"`
}

type logoutRequest struct {
	RefreshToken string `json:"refresh_token"`
}

type switchCompanyRequest struct {
	CompanyID string `json:"companyId"`
}

// sessionPayload converts a [LoginSession] into the transport shape shared by
// every token-issuing endpoint.
func sessionPayload(session *LoginSession, ttl time.Duration) map[string]any {
	return map[string]any{
		FieldAccessToken:  session.AccessToken,
		FieldTokenType:    "Bearer",
		FieldExpiresIn:    int64(ttl / time.Second),
		FieldRefreshToken: session.RefreshToken,
		FieldUser:         session.User,
		FieldCompanyID:    session.CompanyID,
		FieldRole:         string(session.Role),
	}
}

/*
Register provisions a new company with its owner account.

POST /api/v1/auth/register

Description: Validates input, checks for identity conflicts, and persists the
user, company, and owner membership. The fresh owner is logged in immediately.

Request:
  - Body: registerRequest (Email, Password, Name, Phone, CompanyName)

Response:
  - 201: Session: Token pair and owner profile
  - 400: ErrInvalidJSON: Bad input or validation failure
  - 409: ErrConflict: Email already registered
*/
func (handler *Handler) register(writer http.ResponseWriter, request *http.Request) {
	var input registerRequest

	if err := requestutil.DecodeJSON(request, &input); err != nil {
		respond.Error(writer, request, validate.ErrInvalidJSON)
		return
	}

	validator := &validate.Validator{}
	validator.Required(FieldEmail, input.Email).
		Email(FieldEmail, input.Email).
		Required(FieldPassword, input.Password).
		MinLen(FieldPassword, input.Password, 8).
		Required(FieldName, input.Name).
		Required(FieldCompanyName, input.CompanyName)

	if err := validator.Err(); err != nil {
		respond.Error(writer, request, err)
		return
	}

	session, err := handler.authService.Register(request.Context(), RegisterInput{
		Email:       input.Email,
		Password:    input.Password,
		Name:        input.Name,
		Phone:       input.Phone,
		CompanyName: input.CompanyName,
	})

	if err != nil {
		respond.Error(writer, request, err)
		return
	}

	respond.Created(writer, sessionPayload(session, handler.authService.tokenIssuer.AccessTokenTTL()))
}

/*
Login authenticates a user and establishes a session.

POST /api/v1/auth/login

Description: Verifies credentials and issues an access/refresh token pair
bound to one of the user's company memberships.

Request:
  - Body: loginRequest (Email, Password, optional CompanyID)

Response:
  - 200: Session: Token pair, user profile, active company and role
  - 401: ErrUnauthorized: Invalid credentials or inactive account
  - 403: ErrForbidden: No membership in the requested company
*/
func (handler *Handler) login(writer http.ResponseWriter, request *http.Request) {
	var input loginRequest

	if err := requestutil.DecodeJSON(request, &input); err != nil {
		respond.Error(writer, request, validate.ErrInvalidJSON)
		return
	}

	validator := &validate.Validator{}
	validator.Required(FieldEmail, input.Email)
	validator.Required(FieldPassword, input.Password)

	if err := validator.Err(); err != nil {
		respond.Error(writer, request, err)
		return
	}

	session, err := handler.authService.Login(request.Context(), LoginInput{
		Email:     input.Email,
		Password:  input.Password,
		CompanyID: input.CompanyID,
		IPAddress: middleware.RealIP(request),
	})
	if err != nil {
		respond.Error(writer, request, err)
		return
	}

	respond.OK(writer, sessionPayload(session, handler.authService.tokenIssuer.AccessTokenTTL()))
}

/*
Refresh rotates a refresh token into a new token pair.

POST /api/v1/auth/refresh

Description: Atomically consumes the presented refresh token and issues a
fresh pair. A replayed token is indistinguishable from an unknown one.

Request:
  - Body: refreshRequest (RefreshToken)

Response:
  - 200: Session: New token pair
  - 401: ErrUnauthorized: Missing, invalid, expired, or replayed token
*/
func (handler *Handler) refresh(writer http.ResponseWriter, request *http.Request) {
	var input refreshRequest

	if err := requestutil.DecodeJSON(request, &input); err != nil {
		respond.Error(writer, request, validate.ErrInvalidJSON)
		return
	}

	if input.RefreshToken == "" {
		respond.Error(writer, request, validate.RequiredError(FieldRefreshToken, "is required"))
		return
	}

	session, err := handler.authService.RefreshSession(request.Context(), input.RefreshToken)
	if err != nil {
		respond.Error(writer, request, err)
		return
	}

	respond.OK(writer, sessionPayload(session, handler.authService.tokenIssuer.AccessTokenTTL()))
}

/*
Logout revokes the presented refresh token.

POST /api/v1/auth/logout

Description: Invalidates the refresh token if it exists. Always succeeds, so
clients can log out safely regardless of session state.

Request:
  - Body: logoutRequest (RefreshToken)

Response:
  - 204: No Content: Session terminated
*/
func (handler *Handler) logout(writer http.ResponseWriter, request *http.Request) {
	var input logoutRequest

	// A malformed or empty body still results in a successful logout
	_ = requestutil.DecodeJSON(request, &input)

	if input.RefreshToken != "" {
		_ = handler.authService.Logout(request.Context(), input.RefreshToken)
	}

	respond.NoContent(writer)
}

/*
SwitchCompany reissues tokens for another company the user belongs to.

POST /api/v1/auth/switch-company

Description: Validates that the authenticated user holds a membership in the
target company and issues a token pair snapshotting that membership.

Request:
  - Body: switchCompanyRequest (CompanyID)

Response:
  - 200: Session: Token pair scoped to the target company
  - 401: ErrUnauthorized: Authentication required
  - 403: ErrForbidden: No membership in the target company
*/
func (handler *Handler) switchCompany(writer http.ResponseWriter, request *http.Request) {
	claims, err := requestutil.RequiredClaims(request)
	if err != nil {
		respond.Error(writer, request, err)
		return
	}

	var input switchCompanyRequest
	if err := requestutil.DecodeJSON(request, &input); err != nil {
		respond.Error(writer, request, validate.ErrInvalidJSON)
		return
	}

	validator := &validate.Validator{}
	validator.Required(FieldCompanyID, input.CompanyID).
		UUID(FieldCompanyID, input.CompanyID)

	if err := validator.Err(); err != nil {
		respond.Error(writer, request, err)
		return
	}

	session, err := handler.authService.SwitchCompany(request.Context(), claims.UserID, input.CompanyID)
	if err != nil {
		respond.Error(writer, request, err)
		return
	}

	respond.OK(writer, sessionPayload(session, handler.authService.tokenIssuer.AccessTokenTTL()))
}
