package security

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"authgrid/api/internal/clock"
)

// TokenKind is embedded in the signed payload so a token presented for the
// wrong purpose fails verification exactly like a forgery would.
type TokenKind string

const (
	TokenAccess            TokenKind = "access"
	TokenRefresh           TokenKind = "refresh"
	TokenPasswordReset     TokenKind = "password_reset"
	TokenEmailVerification TokenKind = "email_verification"
)

var (
	// ErrTokenSignature covers forged, tampered, and malformed tokens.
	ErrTokenSignature = errors.New("invalid token signature")
	// ErrTokenExpired indicates a valid signature past its expiry.
	ErrTokenExpired = errors.New("token expired")
	// ErrTokenKind indicates a valid token presented for the wrong purpose.
	ErrTokenKind = errors.New("token kind mismatch")
)

// Claims is the full signed payload. Email, Role and SessionID are only set
// on access tokens; RegisteredClaims.ID (jti) only on refresh tokens.
type Claims struct {
	Kind      string `json:"type"`
	Email     string `json:"email,omitempty"`
	Role      string `json:"role,omitempty"`
	SessionID string `json:"session_id,omitempty"`
	jwt.RegisteredClaims
}

// AccessClaims are the kind-specific claims carried by an access token so a
// request can be correlated to a session without a store lookup.
type AccessClaims struct {
	Email     string
	Role      string
	SessionID string
}

// TokenManager signs and verifies every token kind with a single HS256
// secret. The clock is injected so expiry is testable.
type TokenManager struct {
	secret []byte
	clock  clock.Clock
}

func NewTokenManager(secret string, clk clock.Clock) *TokenManager {
	return &TokenManager{secret: []byte(secret), clock: clk}
}

// Create signs a token of the given kind. extra may be nil for kinds that
// carry no additional claims.
func (m *TokenManager) Create(kind TokenKind, subject string, ttl time.Duration, extra *AccessClaims) (string, error) {
	now := m.clock.Now().Truncate(time.Second)

	claims := Claims{
		Kind: string(kind),
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   subject,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}
	if extra != nil {
		claims.Email = extra.Email
		claims.Role = extra.Role
		claims.SessionID = extra.SessionID
	}
	if kind == TokenRefresh {
		jti, err := randomToken(32)
		if err != nil {
			return "", err
		}
		claims.ID = jti
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(m.secret)
	if err != nil {
		return "", fmt.Errorf("sign token: %w", err)
	}
	return signed, nil
}

// Verify parses and validates a token, requiring the embedded kind to match.
// It never panics on malformed input; every failure maps to one of the
// package's typed errors.
func (m *TokenManager) Verify(tokenStr string, expected TokenKind) (*Claims, error) {
	token, err := jwt.ParseWithClaims(tokenStr, &Claims{}, func(token *jwt.Token) (any, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return m.secret, nil
	}, jwt.WithTimeFunc(m.clock.Now))
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, ErrTokenExpired
		}
		return nil, ErrTokenSignature
	}

	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid {
		return nil, ErrTokenSignature
	}
	if claims.Kind != string(expected) {
		return nil, ErrTokenKind
	}
	return claims, nil
}

// HashToken is the at-rest form of a refresh token. Only the hash is stored;
// a leaked sessions table cannot be replayed.
func HashToken(token string) []byte {
	sum := sha256.Sum256([]byte(token))
	return sum[:]
}

func randomToken(length int) (string, error) {
	buf := make([]byte, length)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("generate random token: %w", err)
	}
	return base64.RawURLEncoding.EncodeToString(buf), nil
}
