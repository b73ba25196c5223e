// Package collab issues signed session tokens for the external real-time
// collaboration service. The sync protocol itself runs on that service; this
// package only vouches for who may join which brief.
package collab

import (
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/GeorgeStrakhov/briefboarder/pkg/briefs"
	"github.com/GeorgeStrakhov/briefboarder/pkg/errors"
)

// SessionClaims binds a user to a brief for the token's lifetime.
type SessionClaims struct {
	UserName string `json:"user_name"`
	BriefID  string `json:"brief_id"`
	jwt.RegisteredClaims
}

// Session is an issued collaboration session.
type Session struct {
	Token     string    `json:"token"`
	UserName  string    `json:"userName"`
	BriefID   string    `json:"briefId"`
	ExpiresAt time.Time `json:"expiresAt"`
}

// Issuer signs and verifies collaboration session tokens.
type Issuer struct {
	secret []byte
	issuer string
	ttl    time.Duration
}

// NewIssuer creates an issuer. The signing secret must be at least 32 bytes.
func NewIssuer(secret string, ttl time.Duration) (*Issuer, error) {
	if len(secret) < 32 {
		return nil, errors.New(errors.InvalidInput, "collaboration signing secret must be at least 32 bytes")
	}
	if ttl <= 0 {
		ttl = time.Hour
	}
	return &Issuer{
		secret: []byte(secret),
		issuer: "briefboarder",
		ttl:    ttl,
	}, nil
}

// Issue creates a signed session token for a user on a brief.
func (i *Issuer) Issue(userName, briefID string) (*Session, error) {
	if userName == "" {
		return nil, errors.New(errors.InvalidInput, "user name required for collaboration session")
	}
	if err := briefs.ValidateID(briefID); err != nil {
		return nil, err
	}

	now := time.Now()
	expiresAt := now.Add(i.ttl)

	claims := SessionClaims{
		UserName: userName,
		BriefID:  briefID,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    i.issuer,
			Subject:   userName,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(i.secret)
	if err != nil {
		return nil, errors.Wrap(err, errors.Unknown, "failed to sign collaboration token")
	}

	return &Session{
		Token:     signed,
		UserName:  userName,
		BriefID:   briefID,
		ExpiresAt: expiresAt,
	}, nil
}

// Verify parses a session token and returns its claims.
func (i *Issuer) Verify(tokenString string) (*SessionClaims, error) {
	claims := &SessionClaims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, errors.New(errors.Unauthorized, "unexpected token signing method")
		}
		return i.secret, nil
	}, jwt.WithIssuer(i.issuer), jwt.WithExpirationRequired())
	if err != nil {
		return nil, errors.Wrap(err, errors.Unauthorized, "invalid collaboration token")
	}
	if !token.Valid {
		return nil, errors.New(errors.Unauthorized, "invalid collaboration token")
	}
	return claims, nil
}
