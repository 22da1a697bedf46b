// Package auth signs and verifies the two kinds of tokens the service
// issues: short-lived email-verification tokens and longer-lived session
// tokens. Both share one HS256 signing secret but carry a purpose tag, so a
// verification token is never accepted where a session token is expected.
package auth

import (
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/sgalindo-dev/veriauth/internal/common"
)

const (
	purposeVerification = "email_verification"
	purposeSession      = "session"
)

// VerificationClaims proves control of an email/account pairing as recorded
// at issuance time.
type VerificationClaims struct {
	jwt.RegisteredClaims
	Purpose   string `json:"purpose"`
	AccountID string `json:"account_id"`
	Email     string `json:"email"`
}

// SessionClaims proves a successful prior login and carries a snapshot of
// the profile fields at issuance time. Callers must not assume freshness.
type SessionClaims struct {
	jwt.RegisteredClaims
	Purpose   string `json:"purpose"`
	AccountID string `json:"account_id"`
	Username  string `json:"username"`
	Email     string `json:"email"`
}

// GenerateVerificationToken signs a verification claim for the given
// email/account pairing. Fails only with common.ErrMissingSecret when no
// signing secret is configured.
func GenerateVerificationToken(email, accountID string, secretKey []byte, validityDuration time.Duration) (string, error) {
	if len(secretKey) == 0 {
		return "", common.ErrMissingSecret
	}

	now := time.Now()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, VerificationClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			// unique ID so every issued token is distinct, even within
			// the one-second IssuedAt resolution
			ID:        uuid.NewString(),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(validityDuration)),
		},
		Purpose:   purposeVerification,
		AccountID: accountID,
		Email:     email,
	})

	return token.SignedString(secretKey)
}

// ParseVerificationToken verifies the signature, expiry and purpose of a
// verification token. Any failure is reported as common.ErrInvalidToken so
// callers can map it to a single user-facing error.
func ParseVerificationToken(tokenString string, secretKey []byte) (*VerificationClaims, error) {
	claims := &VerificationClaims{}

	token, err := jwt.ParseWithClaims(tokenString, claims, func(t *jwt.Token) (interface{}, error) {
		return secretKey, nil
	}, jwt.WithValidMethods([]string{"HS256"}))
	if err != nil || !token.Valid {
		return nil, common.ErrInvalidToken
	}
	if claims.Purpose != purposeVerification {
		return nil, common.ErrInvalidToken
	}

	return claims, nil
}

// GenerateSessionToken signs a session claim for a freshly logged-in
// account. Fails only with common.ErrMissingSecret when no signing secret is
// configured.
func GenerateSessionToken(accountID, username, email string, secretKey []byte, validityDuration time.Duration) (string, error) {
	if len(secretKey) == 0 {
		return "", common.ErrMissingSecret
	}

	now := time.Now()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, SessionClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(validityDuration)),
		},
		Purpose:   purposeSession,
		AccountID: accountID,
		Username:  username,
		Email:     email,
	})

	return token.SignedString(secretKey)
}

// ParseSessionToken verifies the signature, expiry and purpose of a session
// token, returning common.ErrInvalidToken on any failure.
func ParseSessionToken(tokenString string, secretKey []byte) (*SessionClaims, error) {
	claims := &SessionClaims{}

	token, err := jwt.ParseWithClaims(tokenString, claims, func(t *jwt.Token) (interface{}, error) {
		return secretKey, nil
	}, jwt.WithValidMethods([]string{"HS256"}))
	if err != nil || !token.Valid {
		return nil, common.ErrInvalidToken
	}
	if claims.Purpose != purposeSession {
		return nil, common.ErrInvalidToken
	}

	return claims, nil
}
