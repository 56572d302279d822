package utils

import (
	"testing"
	"time"

	qt "github.com/frankban/quicktest"
	"github.com/golang-jwt/jwt/v5"
	"github.com/juju/errors"
)

func TestAccessTokenRoundTrip(t *testing.T) {
	c := qt.New(t)
	tok, err := NewAccessToken("s3cret", "alice", 15)
	c.Assert(err, qt.IsNil)
	c.Assert(tok.Exp.After(time.Now()), qt.IsTrue)

	occupant, err := ParseAccessToken("s3cret", tok.Token)
	c.Assert(err, qt.IsNil)
	c.Assert(occupant, qt.Equals, "alice")
}

func TestParseAccessTokenRejects(t *testing.T) {
	c := qt.New(t)
	tok, err := NewAccessToken("s3cret", "alice", 15)
	c.Assert(err, qt.IsNil)

	_, err = ParseAccessToken("other", tok.Token)
	c.Assert(errors.Is(err, ErrInvalidToken), qt.IsTrue)

	_, err = ParseAccessToken("s3cret", "not-a-token")
	c.Assert(errors.Is(err, ErrInvalidToken), qt.IsTrue)

	expired, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.RegisteredClaims{
		Subject:   "alice",
		ExpiresAt: jwt.NewNumericDate(time.Now().Add(-time.Minute)),
	}).SignedString([]byte("s3cret"))
	c.Assert(err, qt.IsNil)
	_, err = ParseAccessToken("s3cret", expired)
	c.Assert(errors.Is(err, ErrInvalidToken), qt.IsTrue)

	noSubject, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.RegisteredClaims{
		ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Minute)),
	}).SignedString([]byte("s3cret"))
	c.Assert(err, qt.IsNil)
	_, err = ParseAccessToken("s3cret", noSubject)
	c.Assert(errors.Is(err, ErrInvalidToken), qt.IsTrue)
}

func TestNewAccessTokenValidates(t *testing.T) {
	c := qt.New(t)
	_, err := NewAccessToken("", "alice", 15)
	c.Assert(errors.Is(err, errors.NotValid), qt.IsTrue)
	_, err = NewAccessToken("s3cret", " ", 15)
	c.Assert(errors.Is(err, errors.NotValid), qt.IsTrue)
	_, err = NewAccessToken("s3cret", "alice", 0)
	c.Assert(errors.Is(err, errors.NotValid), qt.IsTrue)
}
