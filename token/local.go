package token

import (
	"crypto/rand"
	"encoding/base64"
	"encoding/json"
	"io"
	"strings"
	"time"

	"github.com/vantor/authd/snowflake"
	"golang.org/x/crypto/chacha20poly1305"
)

// localPrefix versions the opaque wire format so the key or construction
// can rotate without ambiguity.
const localPrefix = "v1.local."

type localWire[P any] struct {
	Issuer    string              `json:"iss,omitempty"`
	Subject   snowflake.Snowflake `json:"sub"`
	Audience  string              `json:"aud,omitempty"`
	IssuedAt  int64               `json:"iat"`
	NotBefore int64               `json:"nbf"`
	ExpiresAt int64               `json:"exp"`
	TokenID   snowflake.Snowflake `json:"jti"`
	Data      P                   `json:"data"`
}

func sealLocal[P any](c *Codec, claims Claims[P]) (string, error) {
	wire := localWire[P]{
		Issuer:    claims.Issuer,
		Subject:   claims.Subject,
		Audience:  claims.Audience,
		IssuedAt:  claims.IssuedAt.Unix(),
		NotBefore: claims.NotBefore.Unix(),
		ExpiresAt: claims.ExpiresAt.Unix(),
		TokenID:   claims.TokenID,
		Data:      claims.Data,
	}
	plaintext, err := json.Marshal(wire)
	if err != nil {
		return "", err
	}

	nonce := make([]byte, chacha20poly1305.NonceSizeX)
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return "", err
	}

	sealed := c.aead.Seal(nonce, nonce, plaintext, []byte(localPrefix))
	return localPrefix + base64.RawURLEncoding.EncodeToString(sealed), nil
}

func openLocal[P any](c *Codec, raw string) (Claims[P], error) {
	body, ok := strings.CutPrefix(raw, localPrefix)
	if !ok {
		return Claims[P]{}, ErrInvalidToken
	}

	sealed, err := base64.RawURLEncoding.DecodeString(body)
	if err != nil || len(sealed) < chacha20poly1305.NonceSizeX {
		return Claims[P]{}, ErrInvalidToken
	}

	nonce, ciphertext := sealed[:chacha20poly1305.NonceSizeX], sealed[chacha20poly1305.NonceSizeX:]
	plaintext, err := c.aead.Open(nil, nonce, ciphertext, []byte(localPrefix))
	if err != nil {
		return Claims[P]{}, ErrInvalidToken
	}

	var wire localWire[P]
	if err := json.Unmarshal(plaintext, &wire); err != nil {
		return Claims[P]{}, ErrInvalidToken
	}

	return Claims[P]{
		Issuer:    wire.Issuer,
		Subject:   wire.Subject,
		Audience:  wire.Audience,
		IssuedAt:  time.Unix(wire.IssuedAt, 0),
		NotBefore: time.Unix(wire.NotBefore, 0),
		ExpiresAt: time.Unix(wire.ExpiresAt, 0),
		TokenID:   wire.TokenID,
		Data:      wire.Data,
	}, nil
}
