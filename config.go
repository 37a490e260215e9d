package authd

import (
	"errors"
	"time"

	"github.com/vantor/authd/password"
	"github.com/vantor/authd/token"
)

// Config is the engine's full configuration. Start from DefaultConfig
// and override; Build validates the result once and the Engine treats
// it as immutable afterwards.
type Config struct {
	// Issuer names this deployment in tokens, audit events and
	// otpauth URIs.
	Issuer string

	Snowflake SnowflakeConfig
	Token     TokenConfig
	TOTP      TOTPConfig
	Password  PasswordConfig
	RateLimit RateLimitConfig
	Audit     AuditConfig
	Metrics   MetricsConfig
}

// SnowflakeConfig identifies this node in issued IDs. Both fields must
// stay below 32 and the pair must be unique across the fleet.
type SnowflakeConfig struct {
	WorkerID  uint8
	ProcessID uint8
}

// TokenConfig configures the codec and the lifetime of each token kind.
type TokenConfig struct {
	// Scheme and key material, passed through to token.NewCodec.
	Scheme        token.Scheme
	Key           []byte
	SigningMethod token.SigningMethod
	PrivateKey    []byte
	PublicKey     []byte
	Audience      string

	AccessTTL       time.Duration
	RefreshTTL      time.Duration
	FlowTTL         time.Duration
	VerificationTTL time.Duration
}

// TOTPConfig tunes code verification. Period is in seconds; Skew is the
// number of adjacent periods accepted on each side of now.
type TOTPConfig struct {
	Issuer    string
	Digits    int
	Period    int
	Algorithm string
	Skew      int

	// BackupCodeCount is how many recovery codes a setup mints.
	BackupCodeCount int
}

// PasswordConfig couples hashing costs with the default acceptance
// policy. Applications can override Requirements per tenant.
type PasswordConfig struct {
	Hash         password.Config
	Requirements password.Requirements
}

// RateLimitConfig tunes the Redis-backed attempt counters. The limiter
// only runs when the builder is given a Redis client.
type RateLimitConfig struct {
	MaxLoginAttempts     int
	LoginCooldown        time.Duration
	EnableIPThrottle     bool
	MaxFlowAttempts      int
	MaxRegistrationPerIP int
	RegistrationCooldown time.Duration
}

// AuditConfig controls the buffered audit dispatcher.
type AuditConfig struct {
	Enabled    bool
	BufferSize int
	// DropIfFull sheds events instead of blocking the hot path when
	// the sink cannot keep up.
	DropIfFull bool
}

// MetricsConfig toggles in-process counters.
type MetricsConfig struct {
	Enabled bool
	// EnableLatencyHistograms additionally samples login wall time.
	EnableLatencyHistograms bool
}

// DefaultConfig returns the recommended production configuration. Key
// material and node identity still have to be filled in.
func DefaultConfig() Config {
	return Config{
		Issuer: "authd",
		Token: TokenConfig{
			Scheme:          token.SchemeLocal,
			AccessTTL:       time.Hour,
			RefreshTTL:      30 * 24 * time.Hour,
			FlowTTL:         5 * time.Minute,
			VerificationTTL: 24 * time.Hour,
		},
		TOTP: TOTPConfig{
			Issuer:          "authd",
			Digits:          6,
			Period:          30,
			Algorithm:       "SHA1",
			Skew:            1,
			BackupCodeCount: 10,
		},
		Password: PasswordConfig{
			Hash:         password.DefaultConfig(),
			Requirements: password.DefaultRequirements(),
		},
		RateLimit: RateLimitConfig{
			MaxLoginAttempts:     10,
			LoginCooldown:        15 * time.Minute,
			EnableIPThrottle:     true,
			MaxFlowAttempts:      5,
			MaxRegistrationPerIP: 20,
			RegistrationCooldown: time.Hour,
		},
		Audit: AuditConfig{
			Enabled:    true,
			BufferSize: 256,
			DropIfFull: true,
		},
		Metrics: MetricsConfig{Enabled: true},
	}
}

// Validate checks cross-field consistency; Build calls it before wiring
// anything.
func (c Config) Validate() error {
	if c.Issuer == "" {
		return errors.New("config: issuer required")
	}
	if c.Token.AccessTTL <= 0 || c.Token.RefreshTTL <= 0 {
		return errors.New("config: token TTLs must be positive")
	}
	if c.Token.FlowTTL <= 0 || c.Token.FlowTTL > time.Hour {
		return errors.New("config: flow TTL must be in (0, 1h]")
	}
	if c.Token.AccessTTL >= c.Token.RefreshTTL {
		return errors.New("config: access TTL must be shorter than refresh TTL")
	}
	if c.TOTP.Digits < 6 || c.TOTP.Digits > 10 {
		return errors.New("config: totp digits must be in [6, 10]")
	}
	if c.TOTP.Period <= 0 {
		return errors.New("config: totp period must be positive")
	}
	if c.TOTP.Skew < 0 || c.TOTP.Skew > 4 {
		return errors.New("config: totp skew must be in [0, 4]")
	}
	if c.TOTP.BackupCodeCount <= 0 {
		return errors.New("config: backup code count must be positive")
	}
	return nil
}
