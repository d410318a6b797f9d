// Copyright (c) 2026 Stokria. All rights reserved.

// Package sec provides cryptographic primitives, token management, and the
// static permission matrix.
//
// # Architecture
//
// This package isolates security-sensitive code (hashing, JWT signing, the
// role/resource/action enums) from the domain logic. It acts as an
// Infrastructure service injected into the Application layer. The token
// service is the sole owner of the signing secret and the expiry policy;
// every cryptographic trust decision lives here.
package sec

import (
	"errors"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// # Failure Taxonomy

var (
	// ErrTokenExpired indicates the signature verified but 'exp' has passed.
	ErrTokenExpired = errors.New("sec: access token expired")

	// ErrTokenInvalid indicates a bad signature, malformed structure, or
	// unusable claims. Every verification failure that is not an expiry
	// collapses into this error so callers cannot leak finer detail.
	ErrTokenInvalid = errors.New("sec: invalid access token")
)

// Claims represents the payload embedded inside a JWT access token.
//
// # Why custom claims?
//
// By embedding the user ID, email, company and role directly inside the JWT,
// the authentication gate can establish the active tenant context WITHOUT a
// membership query on every single API request. Only the user's current
// active flag is fetched at verification time.
type Claims struct {
	jwt.RegisteredClaims

	UserID    string `json:"user_id"`
	Email     string `json:"email"`
	CompanyID string `json:"company_id"`
	Role      string `json:"role"`
}

// TokenService issues and verifies HS256-signed access tokens.
//
// The service is immutable after construction and safe for concurrent use;
// it is built once in main and shared by every request.
type TokenService struct {
	secret    []byte
	issuer    string
	accessTTL time.Duration
}

// NewTokenService creates a TokenService around an injected signing secret.
//
// The secret is never read from the environment here — configuration loading
// is the caller's concern (dependency injection, no hidden globals).
func NewTokenService(secret, issuer string, accessTTL time.Duration) (*TokenService, error) {
	if strings.TrimSpace(secret) == "" {
		return nil, errors.New("sec: signing secret is required")
	}
	if accessTTL <= 0 {
		return nil, errors.New("sec: access token TTL must be positive")
	}

	return &TokenService{
		secret:    []byte(secret),
		issuer:    issuer,
		accessTTL: accessTTL,
	}, nil
}

// AccessTokenTTL exposes the configured access token lifetime for response
// metadata (expires_in). Not a trust input.
func (service *TokenService) AccessTokenTTL() time.Duration {
	return service.accessTTL
}

// IssueAccessToken creates a signed, short-lived access token binding the
// user to one company and the role they hold there.
func (service *TokenService) IssueAccessToken(userID, email, companyID string, role Role) (string, error) {
	currentTime := time.Now()
	claims := Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   userID,
			Issuer:    service.issuer,
			IssuedAt:  jwt.NewNumericDate(currentTime),
			ExpiresAt: jwt.NewNumericDate(currentTime.Add(service.accessTTL)),
		},
		UserID:    userID,
		Email:     email,
		CompanyID: companyID,
		Role:      string(role),
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signedToken, err := token.SignedString(service.secret)
	if err != nil {
		return "", errors.Join(ErrTokenInvalid, err)
	}

	return signedToken, nil
}

// VerifyAccessToken checks the signature and validity of a JWT string.
//
// # Contract
//
// Every failure maps to exactly [ErrTokenExpired] or [ErrTokenInvalid];
// no other error shape escapes, regardless of how malformed the input is.
func (service *TokenService) VerifyAccessToken(tokenString string) (*Claims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(token *jwt.Token) (interface{}, error) {
		// Reject algorithm-confusion attempts: only HMAC is ever acceptable.
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, ErrTokenInvalid
		}
		return service.secret, nil
	})

	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, ErrTokenExpired
		}
		return nil, ErrTokenInvalid
	}

	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid {
		return nil, ErrTokenInvalid
	}

	// A token without a subject or an unknown role is structurally unusable.
	if strings.TrimSpace(claims.UserID) == "" {
		return nil, ErrTokenInvalid
	}
	if _, ok := ParseRole(claims.Role); !ok {
		return nil, ErrTokenInvalid
	}

	return claims, nil
}

// # Unverified Inspection

// DecodeUnverified parses claims WITHOUT verifying the signature or expiry.
//
// Display and telemetry only. The returned claims must never be used for a
// trust decision — that is what [TokenService.VerifyAccessToken] is for.
func DecodeUnverified(tokenString string) (*Claims, error) {
	parser := jwt.NewParser()
	token, _, err := parser.ParseUnverified(tokenString, &Claims{})
	if err != nil {
		return nil, ErrTokenInvalid
	}

	claims, ok := token.Claims.(*Claims)
	if !ok {
		return nil, ErrTokenInvalid
	}
	return claims, nil
}

// TokenExpiration returns the 'exp' timestamp via a pure decode, with no
// signature check. Used for client display only.
func TokenExpiration(tokenString string) (time.Time, error) {
	claims, err := DecodeUnverified(tokenString)
	if err != nil {
		return time.Time{}, err
	}
	if claims.ExpiresAt == nil {
		return time.Time{}, ErrTokenInvalid
	}
	return claims.ExpiresAt.Time, nil
}

// # Header Extraction

// ExtractTokenFromHeader pulls the raw token out of an Authorization header.
//
// Only the 'Bearer <token>' scheme is accepted. Any other scheme, an empty
// header, or a malformed value yields ok=false rather than an error, so
// callers can distinguish "no token" from "bad token".
func ExtractTokenFromHeader(headerValue string) (token string, ok bool) {
	headerValue = strings.TrimSpace(headerValue)
	if headerValue == "" {
		return "", false
	}

	parts := strings.SplitN(headerValue, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "bearer") {
		return "", false
	}

	token = strings.TrimSpace(parts[1])
	if token == "" {
		return "", false
	}
	return token, true
}
