package token

import (
	"errors"
	"time"

	"github.com/vantor/authd/snowflake"
)

// Claims is the claim set every minted token carries. P is the
// token-kind-specific extension payload; it round-trips losslessly
// through Issue and Verify.
type Claims[P any] struct {
	Issuer    string
	Subject   snowflake.Snowflake
	Audience  string
	IssuedAt  time.Time
	NotBefore time.Time
	ExpiresAt time.Time
	TokenID   snowflake.Snowflake
	Data      P
}

// Issue seals claims into a wire token under the codec's scheme. Issuer
// and audience default from the codec config; issued-at and not-before
// default to now. Subject, token id and expiration are required.
func Issue[P any](c *Codec, claims Claims[P]) (string, error) {
	if claims.Subject == 0 {
		return "", errors.New("token: missing subject")
	}
	if claims.TokenID == 0 {
		return "", errors.New("token: missing token id")
	}
	if claims.ExpiresAt.IsZero() {
		return "", errors.New("token: missing expiration")
	}

	now := time.Now()
	if claims.Issuer == "" {
		claims.Issuer = c.config.Issuer
	}
	if claims.Audience == "" {
		claims.Audience = c.config.Audience
	}
	if claims.IssuedAt.IsZero() {
		claims.IssuedAt = now
	}
	if claims.NotBefore.IsZero() {
		claims.NotBefore = claims.IssuedAt
	}

	switch c.config.Scheme {
	case SchemeJWT:
		return signJWT(c, claims)
	default:
		return sealLocal(c, claims)
	}
}

// Verify opens a wire token and returns its claims. Checks run in a fixed
// order: cryptographic validity first, then expiration as an independent
// check, then not-before and the issuer/audience pins. Every failure
// except expiry reports ErrInvalidToken.
func Verify[P any](c *Codec, raw string) (Claims[P], error) {
	var (
		claims Claims[P]
		err    error
	)
	switch c.config.Scheme {
	case SchemeJWT:
		claims, err = openJWT[P](c, raw)
	default:
		claims, err = openLocal[P](c, raw)
	}
	if err != nil {
		return Claims[P]{}, err
	}

	now := time.Now()
	if now.After(claims.ExpiresAt) {
		return Claims[P]{}, ErrTokenExpired
	}
	if !claims.NotBefore.IsZero() && now.Before(claims.NotBefore) {
		return Claims[P]{}, ErrInvalidToken
	}
	if c.config.Issuer != "" && claims.Issuer != c.config.Issuer {
		return Claims[P]{}, ErrInvalidToken
	}
	if c.config.Audience != "" && claims.Audience != c.config.Audience {
		return Claims[P]{}, ErrInvalidToken
	}

	return claims, nil
}
