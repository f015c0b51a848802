// Package auth provides JWT token management for dashboard sessions.
// Report endpoints are authenticated with short-lived access tokens
// whose subject is the dashboard user requesting the report.
package auth

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// Token type constants for the typ claim.
const (
	TokenTypeAccess  = "access"
	TokenTypeRefresh = "refresh"
)

// Token expiration durations.
const (
	AccessTokenExpiry  = 15 * time.Minute
	RefreshTokenExpiry = 7 * 24 * time.Hour
)

// Default leeway for token validation.
const DefaultLeeway = 30 * time.Second

// ErrInvalidToken is returned when token validation fails.
var ErrInvalidToken = errors.New("invalid token")

// ErrExpiredToken is returned when the token has expired.
var ErrExpiredToken = errors.New("token has expired")

// ErrEmptyUserID is returned when userID is empty.
var ErrEmptyUserID = errors.New("userID cannot be empty")

// Claims represents custom JWT claims for the application. Email
// carries the account email on access tokens so the engine can exclude
// a team member's own visits from their reports without a user lookup.
type Claims struct {
	jwt.RegisteredClaims
	Email string `json:"email,omitempty"`
	Type  string `json:"typ"` // "access" or "refresh"
}

// JWTService signs and validates tokens. It supports dual-key
// rotation: tokens are signed with currentSecret but accepted under
// either currentSecret or previousSecret, so a secret can be rotated
// without invalidating sessions issued before the rotation.
type JWTService struct {
	currentSecret  []byte
	previousSecret []byte
	leeway         time.Duration
}

// NewJWTService creates a JWTService with a single signing secret and
// the default leeway.
func NewJWTService(secret string) *JWTService {
	return NewJWTServiceWithRotationAndLeeway(secret, "", DefaultLeeway)
}

// NewJWTServiceWithLeeway creates a JWTService with a single signing
// secret and a custom leeway.
func NewJWTServiceWithLeeway(secret string, leeway time.Duration) *JWTService {
	return NewJWTServiceWithRotationAndLeeway(secret, "", leeway)
}

// NewJWTServiceWithRotation creates a JWTService with dual-key support
// for zero-downtime rotation. Pass an empty previousSecret when no
// rotation is in progress.
func NewJWTServiceWithRotation(currentSecret, previousSecret string) *JWTService {
	return NewJWTServiceWithRotationAndLeeway(currentSecret, previousSecret, DefaultLeeway)
}

// NewJWTServiceWithRotationAndLeeway creates a JWTService with
// dual-key support and a custom leeway.
func NewJWTServiceWithRotationAndLeeway(currentSecret, previousSecret string, leeway time.Duration) *JWTService {
	svc := &JWTService{
		currentSecret: []byte(currentSecret),
		leeway:        leeway,
	}
	if previousSecret != "" {
		svc.previousSecret = []byte(previousSecret)
	}
	return svc
}

// GenerateAccessToken creates an access token (15m expiry) carrying
// the user ID as subject and the account email.
func (s *JWTService) GenerateAccessToken(userID, email string) (string, error) {
	if userID == "" {
		return "", ErrEmptyUserID
	}

	now := time.Now()
	claims := Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   userID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(AccessTokenExpiry)),
		},
		Email: email,
		Type:  TokenTypeAccess,
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(s.currentSecret)
}

// GenerateRefreshToken creates a refresh token (7d expiry) carrying
// only the user ID.
func (s *JWTService) GenerateRefreshToken(userID string) (string, error) {
	if userID == "" {
		return "", ErrEmptyUserID
	}

	now := time.Now()
	claims := Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   userID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(RefreshTokenExpiry)),
		},
		Type: TokenTypeRefresh,
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(s.currentSecret)
}

// parseWithSecret validates tokenString against a single secret,
// rejecting anything not signed with HS256.
func (s *JWTService) parseWithSecret(tokenString string, secret []byte) (*Claims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(token *jwt.Token) (interface{}, error) {
		if token.Method.Alg() != jwt.SigningMethodHS256.Alg() {
			return nil, ErrInvalidToken
		}
		return secret, nil
	}, jwt.WithLeeway(s.leeway))
	if err != nil {
		return nil, err
	}

	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid {
		return nil, ErrInvalidToken
	}
	return claims, nil
}

// ValidateToken parses and validates a JWT token, returning the claims
// if valid. It tries currentSecret first and falls back to
// previousSecret when a rotation is in progress.
func (s *JWTService) ValidateToken(tokenString string) (*Claims, error) {
	claims, err := s.parseWithSecret(tokenString, s.currentSecret)
	if err == nil {
		return claims, nil
	}

	if s.previousSecret != nil {
		claims, prevErr := s.parseWithSecret(tokenString, s.previousSecret)
		if prevErr == nil {
			return claims, nil
		}
		// A token signed with the previous secret fails the first
		// attempt on signature alone, so classify on this error.
		err = prevErr
	}

	if errors.Is(err, jwt.ErrTokenExpired) {
		return nil, ErrExpiredToken
	}
	return nil, ErrInvalidToken
}
