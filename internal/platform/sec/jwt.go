// Copyright (c) 2026 Yomira. All rights reserved.
// Author: tai.buivan.jp@gmail.com

// Package sec provides token handling, password hashing and role definitions.
//
// # Architecture
//
// The client never holds a signing key for production tokens. It only inspects
// the access token it was given (to report expiry) via [ParseClaims]. The
// [TokenIssuer] exists for the in-memory fake API used by tests, which mints
// HS256 tokens in the same shape the task service issues.
package sec

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// AccessClaims represents the payload embedded inside an access or refresh token.
//
// The task service issues SimpleJWT tokens: the user id travels as "user_id"
// and "token_type" distinguishes access from refresh tokens.
type AccessClaims struct {
	jwt.RegisteredClaims

	UserID    int64  `json:"user_id"`
	TokenType string `json:"token_type"`
}

// Token types carried in the token_type claim.
const (
	TokenTypeAccess  = "access"
	TokenTypeRefresh = "refresh"
)

// ErrNoExpiry is returned by [ExpiresAt] when the token carries no exp claim.
var ErrNoExpiry = errors.New("sec: token has no expiry claim")

// # Client-side Inspection

// ParseClaims extracts the claims of a token WITHOUT verifying its signature.
//
// The result is only ever used for display (e.g. "session expires in 4m").
// It must never be used to grant access: the remote service is the verifier.
func ParseClaims(tokenString string) (*AccessClaims, error) {
	claims := &AccessClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(tokenString, claims); err != nil {
		return nil, fmt.Errorf("sec: malformed token: %w", err)
	}
	return claims, nil
}

// ExpiresAt returns the expiry time encoded in the token.
func ExpiresAt(tokenString string) (time.Time, error) {
	claims, err := ParseClaims(tokenString)
	if err != nil {
		return time.Time{}, err
	}
	if claims.ExpiresAt == nil {
		return time.Time{}, ErrNoExpiry
	}
	return claims.ExpiresAt.Time, nil
}

// # Token Issuing (fake API)

// TokenIssuer signs and verifies HS256 tokens.
type TokenIssuer struct {
	signingKey []byte
	issuer     string
	now        func() time.Time
}

// NewTokenIssuer creates a new TokenIssuer.
func NewTokenIssuer(signingKey []byte, issuer string) *TokenIssuer {
	return &TokenIssuer{
		signingKey: signingKey,
		issuer:     issuer,
		now:        time.Now,
	}
}

// WithClock overrides the time source, letting tests mint already-expired tokens.
func (issuer *TokenIssuer) WithClock(now func() time.Time) *TokenIssuer {
	issuer.now = now
	return issuer
}

// Issue creates a signed token of the given type for a user.
func (issuer *TokenIssuer) Issue(userID int64, tokenType string, timeToLive time.Duration) (string, error) {
	currentTime := issuer.now()
	claims := AccessClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   fmt.Sprintf("%d", userID),
			Issuer:    issuer.issuer,
			IssuedAt:  jwt.NewNumericDate(currentTime),
			ExpiresAt: jwt.NewNumericDate(currentTime.Add(timeToLive)),
			ID:        fmt.Sprintf("%d-%s-%d", userID, tokenType, currentTime.UnixNano()),
		},
		UserID:    userID,
		TokenType: tokenType,
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signedToken, err := token.SignedString(issuer.signingKey)
	if err != nil {
		return "", fmt.Errorf("sec: failed to sign token: %w", err)
	}

	return signedToken, nil
}

// Verify checks the signature, expiry and type of a token.
func (issuer *TokenIssuer) Verify(tokenString, tokenType string) (*AccessClaims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &AccessClaims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("sec: unexpected signing method: %v", token.Header["alg"])
		}
		return issuer.signingKey, nil
	}, jwt.WithTimeFunc(issuer.now), jwt.WithIssuer(issuer.issuer))

	if err != nil {
		return nil, fmt.Errorf("sec: invalid token: %w", err)
	}

	claims, ok := token.Claims.(*AccessClaims)
	if !ok || !token.Valid {
		return nil, fmt.Errorf("sec: invalid token claims")
	}
	if claims.TokenType != tokenType {
		return nil, fmt.Errorf("sec: expected %s token, got %q", tokenType, claims.TokenType)
	}

	return claims, nil
}
