package session

import (
	"context"
	"time"

	"github.com/go-faster/errors"
	"github.com/golang-jwt/jwt/v5"
)

// ErrTokenExpired is returned by IDToken once its expiry has passed.
var ErrTokenExpired = errors.New("id token expired")

// IDToken is a TokenSource over a single identity-provider token. Signature
// verification is left to the backend that receives the token.
type IDToken struct {
	raw     string
	user    User
	expires time.Time

	now func() time.Time
}

var _ TokenSource = (*IDToken)(nil)

// ParseIDToken reads the user claims out of a JWT ID token.
//
// The user id is taken from "user_id" when present and "sub" otherwise.
func ParseIDToken(raw string) (*IDToken, error) {
	claims := jwt.MapClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(raw, claims); err != nil {
		return nil, errors.Wrap(err, "parse id token")
	}

	t := &IDToken{raw: raw, now: time.Now}
	t.user.ID = stringClaim(claims, "user_id")
	if t.user.ID == "" {
		sub, err := claims.GetSubject()
		if err != nil {
			return nil, errors.Wrap(err, "subject claim")
		}
		t.user.ID = sub
	}
	if t.user.ID == "" {
		return nil, errors.New("id token has no subject")
	}
	t.user.Email = stringClaim(claims, "email")
	t.user.Name = stringClaim(claims, "name")

	exp, err := claims.GetExpirationTime()
	if err != nil {
		return nil, errors.Wrap(err, "expiration claim")
	}
	if exp != nil {
		t.expires = exp.Time
	}
	return t, nil
}

func stringClaim(claims jwt.MapClaims, name string) string {
	v, _ := claims[name].(string)
	return v
}

// User identified by the token.
func (t *IDToken) User() User { return t.user }

// Expires returns the token expiry, zero when the token carries none.
func (t *IDToken) Expires() time.Time { return t.expires }

// Token returns the raw token until it expires.
func (t *IDToken) Token(context.Context) (string, error) {
	if !t.expires.IsZero() && !t.now().Before(t.expires) {
		return "", ErrTokenExpired
	}
	return t.raw, nil
}
