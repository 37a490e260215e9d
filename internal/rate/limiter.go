package rate

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// Config holds rate limiter tuning parameters.
type Config struct {
	EnableIPThrottle     bool
	MaxLoginAttempts     int
	LoginCooldown        time.Duration
	MaxFlowAttempts      int
	FlowWindow           time.Duration
	MaxRegistrationPerIP int
	RegistrationCooldown time.Duration
}

// Limiter enforces attempt budgets with Redis counters: per-identifier
// and per-IP for login, per-flow-token for second factor exchanges, and
// per-IP for registration. Counters use fixed windows; the TTL is set on
// the first hit in a window.
type Limiter struct {
	redis  redis.UniversalClient
	config Config
}

// New creates a [Limiter] backed by the given Redis client.
func New(redisClient redis.UniversalClient, cfg Config) *Limiter {
	return &Limiter{
		redis:  redisClient,
		config: cfg,
	}
}

// CheckLogin reports whether the identifier+IP pair still has login
// budget. Missing counters pass, so Redis data loss fails open on reads.
func (l *Limiter) CheckLogin(ctx context.Context, identifier, ip string) error {
	if err := l.checkCounter(ctx, loginUserKey(identifier), l.config.MaxLoginAttempts); err != nil {
		return err
	}

	if l.config.EnableIPThrottle && ip != "" {
		if err := l.checkCounter(ctx, loginIPKey(ip), l.config.MaxLoginAttempts); err != nil {
			return err
		}
	}

	return nil
}

// IncrementLogin records a failed login attempt for the identifier+IP
// pair.
func (l *Limiter) IncrementLogin(ctx context.Context, identifier, ip string) error {
	count, err := l.incrementWithTTL(ctx, loginUserKey(identifier), l.config.LoginCooldown)
	if err != nil {
		return err
	}
	if count > int64(l.config.MaxLoginAttempts) {
		return ErrRateLimited
	}

	if l.config.EnableIPThrottle && ip != "" {
		count, err = l.incrementWithTTL(ctx, loginIPKey(ip), l.config.LoginCooldown)
		if err != nil {
			return err
		}
		if count > int64(l.config.MaxLoginAttempts) {
			return ErrRateLimited
		}
	}

	return nil
}

// ResetLogin clears the failed-login counters after a successful login.
func (l *Limiter) ResetLogin(ctx context.Context, identifier, ip string) error {
	keys := []string{loginUserKey(identifier)}
	if l.config.EnableIPThrottle && ip != "" {
		keys = append(keys, loginIPKey(ip))
	}

	if err := l.redis.Del(ctx, keys...).Err(); err != nil {
		return fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}

	return nil
}

// IncrementFlow spends one attempt on a flow token. The counter lives
// exactly as long as the flow token can, so a burned token leaves no
// residue.
func (l *Limiter) IncrementFlow(ctx context.Context, tokenID string) error {
	if l.config.MaxFlowAttempts <= 0 {
		return nil
	}

	count, err := l.incrementWithTTL(ctx, flowKey(tokenID), l.config.FlowWindow)
	if err != nil {
		return err
	}
	if count > int64(l.config.MaxFlowAttempts) {
		return ErrRateLimited
	}

	return nil
}

// IncrementRegistration records a registration attempt from the IP.
func (l *Limiter) IncrementRegistration(ctx context.Context, ip string) error {
	if l.config.MaxRegistrationPerIP <= 0 || ip == "" {
		return nil
	}

	count, err := l.incrementWithTTL(ctx, registrationKey(ip), l.config.RegistrationCooldown)
	if err != nil {
		return err
	}
	if count > int64(l.config.MaxRegistrationPerIP) {
		return ErrRateLimited
	}

	return nil
}

// LoginAttempts returns the current attempt counter for an identifier.
// Missing keys return zero and do not reveal account existence.
func (l *Limiter) LoginAttempts(ctx context.Context, identifier string) (int, error) {
	count, err := l.redis.Get(ctx, loginUserKey(identifier)).Int64()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return 0, nil
		}
		return 0, fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}
	if count < 0 {
		return 0, nil
	}
	return int(count), nil
}

func (l *Limiter) checkCounter(ctx context.Context, key string, maxAttempts int) error {
	count, err := l.redis.Get(ctx, key).Int64()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil
		}
		return fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}

	if count > int64(maxAttempts) {
		return ErrRateLimited
	}

	return nil
}

func (l *Limiter) incrementWithTTL(ctx context.Context, key string, ttl time.Duration) (int64, error) {
	count, err := l.redis.Incr(ctx, key).Result()
	if err != nil {
		return 0, fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}

	// Fixed-window semantics: set TTL only for the first hit in the window.
	if count == 1 {
		if err := l.redis.Expire(ctx, key, ttl).Err(); err != nil {
			return 0, fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
		}
	}

	return count, nil
}

func loginUserKey(identifier string) string {
	return "authd:rl:login:user:" + identifier
}

func loginIPKey(ip string) string {
	return "authd:rl:login:ip:" + ip
}

func flowKey(tokenID string) string {
	return "authd:rl:flow:" + tokenID
}

func registrationKey(ip string) string {
	return "authd:rl:register:ip:" + ip
}
