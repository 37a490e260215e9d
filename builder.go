package authd

import (
	"errors"

	"github.com/redis/go-redis/v9"
	"github.com/vantor/authd/internal/audit"
	"github.com/vantor/authd/internal/rate"
	"github.com/vantor/authd/password"
	"github.com/vantor/authd/snowflake"
	"github.com/vantor/authd/token"
)

// Builder assembles an Engine. Configure it during initialization and
// call Build exactly once; a builder is not safe for concurrent use.
type Builder struct {
	config   Config
	provider DataProvider
	mailer   Mailer
	redis    redis.UniversalClient
	sink     AuditSink

	built bool
}

// NewBuilder starts from DefaultConfig.
func NewBuilder() *Builder {
	return &Builder{config: DefaultConfig()}
}

// WithConfig replaces the whole configuration.
func (b *Builder) WithConfig(cfg Config) *Builder {
	b.config = cfg
	return b
}

// WithProvider sets the persistence backend. Required.
func (b *Builder) WithProvider(provider DataProvider) *Builder {
	b.provider = provider
	return b
}

// WithMailer sets the verification mail transport. Optional; without it
// registration succeeds but never sends mail.
func (b *Builder) WithMailer(mailer Mailer) *Builder {
	b.mailer = mailer
	return b
}

// WithRedis enables the rate limiter. Optional; without a client the
// engine enforces no attempt budgets.
func (b *Builder) WithRedis(client redis.UniversalClient) *Builder {
	b.redis = client
	return b
}

// WithAuditSink sets the audit event consumer. Optional; without it
// audit events go to a no-op sink.
func (b *Builder) WithAuditSink(sink AuditSink) *Builder {
	b.sink = sink
	return b
}

// Build validates the configuration and wires the engine.
func (b *Builder) Build() (*Engine, error) {
	if b.built {
		return nil, errors.New("builder already used")
	}
	if b.provider == nil {
		return nil, errors.New("data provider required")
	}

	cfg := b.config
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if cfg.TOTP.Issuer == "" {
		cfg.TOTP.Issuer = cfg.Issuer
	}

	ids, err := snowflake.New(cfg.Snowflake.WorkerID, cfg.Snowflake.ProcessID)
	if err != nil {
		return nil, err
	}

	codec, err := token.NewCodec(token.Config{
		Scheme:        cfg.Token.Scheme,
		Key:           cloneBytes(cfg.Token.Key),
		SigningMethod: cfg.Token.SigningMethod,
		PrivateKey:    cloneBytes(cfg.Token.PrivateKey),
		PublicKey:     cloneBytes(cfg.Token.PublicKey),
		Issuer:        cfg.Issuer,
		Audience:      cfg.Token.Audience,
	})
	if err != nil {
		return nil, err
	}

	passwordHash, err := password.NewArgon2(cfg.Password.Hash)
	if err != nil {
		return nil, err
	}

	engine := &Engine{
		config:       cfg,
		provider:     b.provider,
		mailer:       b.mailer,
		ids:          ids,
		codec:        codec,
		passwordHash: passwordHash,
		totp:         newTOTPManager(cfg.TOTP),
		metrics:      NewMetrics(cfg.Metrics),
	}

	if b.redis != nil {
		engine.limiter = rate.New(b.redis, rate.Config{
			EnableIPThrottle:     cfg.RateLimit.EnableIPThrottle,
			MaxLoginAttempts:     cfg.RateLimit.MaxLoginAttempts,
			LoginCooldown:        cfg.RateLimit.LoginCooldown,
			MaxFlowAttempts:      cfg.RateLimit.MaxFlowAttempts,
			FlowWindow:           cfg.Token.FlowTTL,
			MaxRegistrationPerIP: cfg.RateLimit.MaxRegistrationPerIP,
			RegistrationCooldown: cfg.RateLimit.RegistrationCooldown,
		})
	}

	engine.audit = audit.NewDispatcher(audit.Config{
		Enabled:    cfg.Audit.Enabled,
		BufferSize: cfg.Audit.BufferSize,
		DropIfFull: cfg.Audit.DropIfFull,
	}, b.sink)

	b.built = true
	return engine, nil
}

func cloneBytes(in []byte) []byte {
	if in == nil {
		return nil
	}
	out := make([]byte, len(in))
	copy(out, in)
	return out
}
