package main

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

const defaultTokenExpiry = 7 * 24 * time.Hour

// Auth issues and validates player identity tokens. Tokens are HS256 JWTs
// whose subject is the player id.
type Auth struct {
	secret []byte
	expiry time.Duration
	clock  Clock
}

// NewAuth creates an Auth keyed by secret. An empty secret generates a
// random one, so tokens only survive until restart.
func NewAuth(secret string, expiry time.Duration, clock Clock) (*Auth, error) {
	key := []byte(secret)
	if len(key) == 0 {
		key = make([]byte, 32)
		if _, err := rand.Read(key); err != nil {
			return nil, fmt.Errorf("generate token secret: %w", err)
		}
	}
	if expiry <= 0 {
		expiry = defaultTokenExpiry
	}
	return &Auth{secret: key, expiry: expiry, clock: clock}, nil
}

// IssueToken signs a token for playerID
func (a *Auth) IssueToken(playerID string) (string, error) {
	now := a.clock.Now()
	claims := jwt.RegisteredClaims{
		Subject:   playerID,
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(a.expiry)),
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(a.secret)
}

// PlayerID validates tokenStr and returns its subject
func (a *Auth) PlayerID(tokenStr string) (string, error) {
	var claims jwt.RegisteredClaims
	token, err := jwt.ParseWithClaims(tokenStr, &claims, func(t *jwt.Token) (interface{}, error) {
		return a.secret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}), jwt.WithTimeFunc(a.clock.Now))
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrUnauthorized, err)
	}
	if !token.Valid || claims.Subject == "" {
		return "", fmt.Errorf("%w: invalid token claims", ErrUnauthorized)
	}
	return claims.Subject, nil
}

// GenerateGuestName creates a unique guest id like "guest-a3f2c1"
func GenerateGuestName() string {
	b := make([]byte, 3)
	rand.Read(b)
	return "guest-" + hex.EncodeToString(b)
}
