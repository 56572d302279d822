// Package utils issues and verifies the access tokens that identify seat
// occupants.
package utils

import (
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/juju/errors"
)

// ErrInvalidToken is returned for tokens that fail signature, expiry or
// claim checks.
const ErrInvalidToken = errors.ConstError("invalid token")

// AccessToken represents a signed JWT access token along with its expiry.
type AccessToken struct {
	Token string    // the serialized JWT string
	Exp   time.Time // the UTC expiration time
}

// NewAccessToken builds and signs an HS256 JWT whose subject is the
// occupant. The token expires ttlMin minutes from now.
func NewAccessToken(secret, occupant string, ttlMin int) (AccessToken, error) {
	if secret == "" {
		return AccessToken{}, errors.NotValidf("empty signing secret")
	}
	if strings.TrimSpace(occupant) == "" {
		return AccessToken{}, errors.NotValidf("empty occupant")
	}
	if ttlMin <= 0 {
		return AccessToken{}, errors.NotValidf("token ttl %d", ttlMin)
	}
	now := time.Now().UTC()
	exp := now.Add(time.Duration(ttlMin) * time.Minute)
	claims := jwt.RegisteredClaims{
		Subject:   occupant,
		ExpiresAt: jwt.NewNumericDate(exp),
		IssuedAt:  jwt.NewNumericDate(now),
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
	if err != nil {
		return AccessToken{}, errors.Annotate(err, "signing access token")
	}
	return AccessToken{Token: signed, Exp: exp}, nil
}

// ParseAccessToken verifies raw against secret and returns the occupant it
// was issued for.
func ParseAccessToken(secret, raw string) (string, error) {
	var claims jwt.RegisteredClaims
	tok, err := jwt.ParseWithClaims(raw, &claims, func(t *jwt.Token) (interface{}, error) {
		return []byte(secret), nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}), jwt.WithExpirationRequired())
	if err != nil || !tok.Valid {
		return "", errors.Annotatef(ErrInvalidToken, "%v", err)
	}
	if strings.TrimSpace(claims.Subject) == "" {
		return "", errors.Annotate(ErrInvalidToken, "missing subject")
	}
	return claims.Subject, nil
}
