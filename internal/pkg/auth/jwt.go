// Package auth issues and verifies the console's own session tokens. A console
// token only names a session; the upstream bearer token never leaves the server
// after the handoff.
package auth

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v4"
)

// ErrMissingSession is returned for tokens that verify but carry no session id.
var ErrMissingSession = errors.New("auth: token carries no session")

// Claims represents the console JWT claims: the session id plus the standard claims.
type Claims struct {
	SessionID string `json:"sid"`
	jwt.RegisteredClaims
}

// Issuer signs and parses HS256 console tokens.
type Issuer struct {
	secret []byte
	ttl    time.Duration
	now    func() time.Time
}

func NewIssuer(secret string, ttl time.Duration) *Issuer {
	return &Issuer{secret: []byte(secret), ttl: ttl, now: time.Now}
}

// TTL is the lifetime of issued tokens.
func (issuer *Issuer) TTL() time.Duration {
	return issuer.ttl
}

// GenerateToken creates a token for sessionID and returns it with its expiry.
func (issuer *Issuer) GenerateToken(sessionID string) (string, time.Time, error) {
	issuedAt := issuer.now()
	expiresAt := issuedAt.Add(issuer.ttl)
	claims := Claims{
		SessionID: sessionID,
		RegisteredClaims: jwt.RegisteredClaims{
			IssuedAt:  jwt.NewNumericDate(issuedAt),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(issuer.secret)
	if err != nil {
		return "", time.Time{}, err
	}
	return signed, expiresAt, nil
}

// ParseToken validates tokenStr and returns its claims.
func (issuer *Issuer) ParseToken(tokenStr string) (*Claims, error) {
	token, err := jwt.ParseWithClaims(tokenStr, &Claims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, jwt.ErrSignatureInvalid
		}
		return issuer.secret, nil
	})
	if err != nil {
		return nil, err
	}
	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid {
		return nil, jwt.ErrSignatureInvalid
	}
	if claims.SessionID == "" {
		return nil, ErrMissingSession
	}
	return claims, nil
}
