// Package token implements the codec for every token the engine mints:
// access, refresh, and short-lived flow tokens. One Codec serves a
// deployment, and the deployment picks a scheme at construction. The
// default local scheme encrypts claims so tokens are opaque outside the
// issuing service; the jwt scheme signs them for setups where other
// services must read claims without holding the key.
package token

import (
	"crypto/cipher"
	"crypto/ed25519"
	"errors"

	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/crypto/chacha20poly1305"
)

// Scheme selects how claims are sealed on the wire.
type Scheme string

const (
	// SchemeLocal encrypts claims with XChaCha20-Poly1305 under a shared
	// 32-byte key. Tokens are opaque: only key holders mint or read them.
	SchemeLocal Scheme = "local"
	// SchemeJWT signs claims as a JWS (HS256 or EdDSA).
	SchemeJWT Scheme = "jwt"
)

// SigningMethod selects the jwt scheme's algorithm.
type SigningMethod string

const (
	// MethodHS256 signs with HMAC-SHA256 using Config.Key.
	MethodHS256 SigningMethod = "hs256"
	// MethodEd25519 signs with EdDSA using Config.PrivateKey/PublicKey.
	MethodEd25519 SigningMethod = "ed25519"
)

var (
	// ErrInvalidToken covers every verification failure that is not an
	// expiry: bad encoding, failed decryption or signature check, claim
	// mismatch, binding mismatch. Callers get no detail about which.
	ErrInvalidToken = errors.New("token: invalid")
	// ErrTokenExpired is returned for tokens that verified
	// cryptographically but whose expiration has passed.
	ErrTokenExpired = errors.New("token: expired")
)

// Config carries the codec's key material and issuer identity.
type Config struct {
	// Scheme defaults to SchemeLocal.
	Scheme Scheme
	// Key is the 32-byte symmetric key: the AEAD key for SchemeLocal,
	// the HMAC secret for SchemeJWT with MethodHS256.
	Key []byte
	// SigningMethod applies to SchemeJWT only; defaults to MethodHS256.
	SigningMethod SigningMethod
	// PrivateKey and PublicKey carry ed25519 keys, raw or PEM.
	PrivateKey []byte
	PublicKey  []byte

	Issuer   string
	Audience string
}

// Codec mints and verifies tokens. Construct once via NewCodec and share;
// a Codec is immutable after construction.
type Codec struct {
	config Config
	aead   cipher.AEAD
}

// NewCodec validates the key material for the configured scheme and
// returns a ready Codec.
func NewCodec(cfg Config) (*Codec, error) {
	if cfg.Scheme == "" {
		cfg.Scheme = SchemeLocal
	}

	c := &Codec{config: cfg}

	switch cfg.Scheme {
	case SchemeLocal:
		if len(cfg.Key) != chacha20poly1305.KeySize {
			return nil, errors.New("token: local scheme requires a 32-byte key")
		}
		aead, err := chacha20poly1305.NewX(cfg.Key)
		if err != nil {
			return nil, err
		}
		c.aead = aead
	case SchemeJWT:
		if cfg.SigningMethod == "" {
			c.config.SigningMethod = MethodHS256
		}
		switch c.config.SigningMethod {
		case MethodHS256:
			if len(cfg.Key) == 0 {
				return nil, errors.New("token: hs256 requires a key")
			}
		case MethodEd25519:
			if _, err := parseEdPrivateKey(cfg.PrivateKey); err != nil {
				return nil, err
			}
			if _, err := parseEdPublicKey(cfg.PublicKey); err != nil {
				return nil, err
			}
		default:
			return nil, errors.New("token: unsupported signing method")
		}
	default:
		return nil, errors.New("token: unsupported scheme")
	}

	return c, nil
}

func parseEdPrivateKey(key []byte) (ed25519.PrivateKey, error) {
	if len(key) == ed25519.PrivateKeySize {
		return ed25519.PrivateKey(key), nil
	}
	parsed, err := jwt.ParseEdPrivateKeyFromPEM(key)
	if err != nil {
		return nil, errors.New("token: invalid ed25519 private key")
	}
	edKey, ok := parsed.(ed25519.PrivateKey)
	if !ok {
		return nil, errors.New("token: invalid ed25519 private key type")
	}
	return edKey, nil
}

func parseEdPublicKey(key []byte) (ed25519.PublicKey, error) {
	if len(key) == ed25519.PublicKeySize {
		return ed25519.PublicKey(key), nil
	}
	parsed, err := jwt.ParseEdPublicKeyFromPEM(key)
	if err != nil {
		return nil, errors.New("token: invalid ed25519 public key")
	}
	edKey, ok := parsed.(ed25519.PublicKey)
	if !ok {
		return nil, errors.New("token: invalid ed25519 public key type")
	}
	return edKey, nil
}
