package token

import (
	"github.com/golang-jwt/jwt/v5"
	"github.com/vantor/authd/snowflake"
)

type jwtWire[P any] struct {
	Issuer    string              `json:"iss,omitempty"`
	Subject   snowflake.Snowflake `json:"sub"`
	Audience  string              `json:"aud,omitempty"`
	IssuedAt  *jwt.NumericDate    `json:"iat,omitempty"`
	NotBefore *jwt.NumericDate    `json:"nbf,omitempty"`
	ExpiresAt *jwt.NumericDate    `json:"exp,omitempty"`
	TokenID   snowflake.Snowflake `json:"jti"`
	Data      P                   `json:"data"`
}

func (w jwtWire[P]) GetExpirationTime() (*jwt.NumericDate, error) { return w.ExpiresAt, nil }
func (w jwtWire[P]) GetIssuedAt() (*jwt.NumericDate, error)       { return w.IssuedAt, nil }
func (w jwtWire[P]) GetNotBefore() (*jwt.NumericDate, error)      { return w.NotBefore, nil }
func (w jwtWire[P]) GetIssuer() (string, error)                   { return w.Issuer, nil }
func (w jwtWire[P]) GetSubject() (string, error)                  { return w.Subject.String(), nil }

func (w jwtWire[P]) GetAudience() (jwt.ClaimStrings, error) {
	if w.Audience == "" {
		return nil, nil
	}
	return jwt.ClaimStrings{w.Audience}, nil
}

func signJWT[P any](c *Codec, claims Claims[P]) (string, error) {
	wire := jwtWire[P]{
		Issuer:    claims.Issuer,
		Subject:   claims.Subject,
		Audience:  claims.Audience,
		IssuedAt:  jwt.NewNumericDate(claims.IssuedAt),
		NotBefore: jwt.NewNumericDate(claims.NotBefore),
		ExpiresAt: jwt.NewNumericDate(claims.ExpiresAt),
		TokenID:   claims.TokenID,
		Data:      claims.Data,
	}

	tok := jwt.NewWithClaims(c.jwtMethod(), wire)
	key, err := c.jwtSignKey()
	if err != nil {
		return "", err
	}
	return tok.SignedString(key)
}

// openJWT checks the signature only; expiry, not-before and the
// issuer/audience pins run afterwards in Verify, in the codec's fixed
// order, so both schemes classify failures identically.
func openJWT[P any](c *Codec, raw string) (Claims[P], error) {
	parser := jwt.NewParser(
		jwt.WithValidMethods([]string{c.jwtMethod().Alg()}),
		jwt.WithoutClaimsValidation(),
	)

	var wire jwtWire[P]
	tok, err := parser.ParseWithClaims(raw, &wire, func(t *jwt.Token) (interface{}, error) {
		return c.jwtVerifyKey()
	})
	if err != nil || !tok.Valid {
		return Claims[P]{}, ErrInvalidToken
	}

	claims := Claims[P]{
		Issuer:   wire.Issuer,
		Subject:  wire.Subject,
		Audience: wire.Audience,
		TokenID:  wire.TokenID,
		Data:     wire.Data,
	}
	if wire.IssuedAt != nil {
		claims.IssuedAt = wire.IssuedAt.Time
	}
	if wire.NotBefore != nil {
		claims.NotBefore = wire.NotBefore.Time
	}
	if wire.ExpiresAt == nil {
		return Claims[P]{}, ErrInvalidToken
	}
	claims.ExpiresAt = wire.ExpiresAt.Time

	return claims, nil
}

func (c *Codec) jwtMethod() jwt.SigningMethod {
	if c.config.SigningMethod == MethodEd25519 {
		return jwt.SigningMethodEdDSA
	}
	return jwt.SigningMethodHS256
}

func (c *Codec) jwtSignKey() (interface{}, error) {
	if c.config.SigningMethod == MethodEd25519 {
		return parseEdPrivateKey(c.config.PrivateKey)
	}
	return c.config.Key, nil
}

func (c *Codec) jwtVerifyKey() (interface{}, error) {
	if c.config.SigningMethod == MethodEd25519 {
		return parseEdPublicKey(c.config.PublicKey)
	}
	return c.config.Key, nil
}
