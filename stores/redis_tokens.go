package stores

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	authd "github.com/vantor/authd"
	"github.com/vantor/authd/snowflake"
)

// RedisTokens decorates a DataProvider, moving the short-lived token
// records (second-factor flows, email verification) into Redis with a
// TTL matching the token expiry. Refresh tokens and everything else
// stay on the inner provider. Redis expiring a key early is harmless:
// the engine reads an absent record as a revoked token.
type RedisTokens struct {
	inner authd.DataProvider
	redis redis.UniversalClient
}

// NewRedisTokens wraps inner with Redis-backed flow token storage.
func NewRedisTokens(inner authd.DataProvider, client redis.UniversalClient) *RedisTokens {
	return &RedisTokens{inner: inner, redis: client}
}

func flowTokenKind(kind authd.TokenKind) bool {
	return kind == authd.TokenTOTPFlow || kind == authd.TokenEmailVerification
}

func redisTokenKey(userID snowflake.Snowflake, kind authd.TokenKind, tokenID snowflake.Snowflake) string {
	return fmt.Sprintf("authd:tok:%s:%s:%s", userID, kind, tokenID)
}

func redisTokenPattern(userID snowflake.Snowflake, kind authd.TokenKind) string {
	return fmt.Sprintf("authd:tok:%s:%s:*", userID, kind)
}

func (r *RedisTokens) CreateToken(ctx context.Context, record authd.TokenRecord) error {
	if !flowTokenKind(record.Kind) {
		return r.inner.CreateToken(ctx, record)
	}

	data, err := json.Marshal(record)
	if err != nil {
		return err
	}
	ttl := time.Until(record.ExpiresAt)
	if ttl <= 0 {
		return errors.New("stores: token already expired")
	}

	key := redisTokenKey(record.UserID, record.Kind, record.ID)
	ok, err := r.redis.SetNX(ctx, key, data, ttl).Result()
	if err != nil {
		return err
	}
	if !ok {
		return authd.ErrProviderDuplicate
	}
	return nil
}

func (r *RedisTokens) GetToken(ctx context.Context, userID, tokenID snowflake.Snowflake, kind authd.TokenKind) (authd.TokenRecord, error) {
	if !flowTokenKind(kind) {
		return r.inner.GetToken(ctx, userID, tokenID, kind)
	}

	data, err := r.redis.Get(ctx, redisTokenKey(userID, kind, tokenID)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return authd.TokenRecord{}, authd.ErrProviderNotFound
		}
		return authd.TokenRecord{}, err
	}

	var record authd.TokenRecord
	if err := json.Unmarshal(data, &record); err != nil {
		return authd.TokenRecord{}, err
	}
	return record, nil
}

func (r *RedisTokens) DeleteToken(ctx context.Context, userID, tokenID snowflake.Snowflake, kind authd.TokenKind) error {
	if !flowTokenKind(kind) {
		return r.inner.DeleteToken(ctx, userID, tokenID, kind)
	}

	deleted, err := r.redis.Del(ctx, redisTokenKey(userID, kind, tokenID)).Result()
	if err != nil {
		return err
	}
	if deleted == 0 {
		return authd.ErrProviderNotFound
	}
	return nil
}

func (r *RedisTokens) DeleteTokensByUser(ctx context.Context, userID snowflake.Snowflake, kinds ...authd.TokenKind) (int, error) {
	if len(kinds) == 0 {
		kinds = []authd.TokenKind{authd.TokenRefresh, authd.TokenTOTPFlow, authd.TokenEmailVerification}
	}

	var innerKinds []authd.TokenKind
	deleted := 0
	for _, kind := range kinds {
		if !flowTokenKind(kind) {
			innerKinds = append(innerKinds, kind)
			continue
		}
		n, err := r.deleteByPattern(ctx, redisTokenPattern(userID, kind))
		if err != nil {
			return deleted, err
		}
		deleted += n
	}

	if len(innerKinds) > 0 {
		n, err := r.inner.DeleteTokensByUser(ctx, userID, innerKinds...)
		deleted += n
		if err != nil {
			return deleted, err
		}
	}
	return deleted, nil
}

func (r *RedisTokens) deleteByPattern(ctx context.Context, pattern string) (int, error) {
	deleted := 0
	iter := r.redis.Scan(ctx, 0, pattern, 100).Iterator()
	for iter.Next(ctx) {
		n, err := r.redis.Del(ctx, iter.Val()).Result()
		if err != nil {
			return deleted, err
		}
		deleted += int(n)
	}
	return deleted, iter.Err()
}

// Everything below delegates straight to the inner provider.

func (r *RedisTokens) InTx(ctx context.Context, fn func(ctx context.Context) error) error {
	return r.inner.InTx(ctx, fn)
}

func (r *RedisTokens) GetApplication(ctx context.Context, id snowflake.Snowflake) (authd.ApplicationRecord, error) {
	return r.inner.GetApplication(ctx, id)
}

func (r *RedisTokens) GetUserByIdentifier(ctx context.Context, applicationID snowflake.Snowflake, identifier string) (authd.UserRecord, error) {
	return r.inner.GetUserByIdentifier(ctx, applicationID, identifier)
}

func (r *RedisTokens) GetUserByID(ctx context.Context, id snowflake.Snowflake) (authd.UserRecord, error) {
	return r.inner.GetUserByID(ctx, id)
}

func (r *RedisTokens) CreateUser(ctx context.Context, in authd.CreateUserInput) error {
	return r.inner.CreateUser(ctx, in)
}

func (r *RedisTokens) UpdatePasswordHash(ctx context.Context, userID snowflake.Snowflake, hash string) error {
	return r.inner.UpdatePasswordHash(ctx, userID, hash)
}

func (r *RedisTokens) RecordLogin(ctx context.Context, userID snowflake.Snowflake, at time.Time, ip string) error {
	return r.inner.RecordLogin(ctx, userID, at, ip)
}

func (r *RedisTokens) MarkEmailVerified(ctx context.Context, userID snowflake.Snowflake) error {
	return r.inner.MarkEmailVerified(ctx, userID)
}

func (r *RedisTokens) SetTOTPEnabled(ctx context.Context, userID snowflake.Snowflake, enabled bool) error {
	return r.inner.SetTOTPEnabled(ctx, userID, enabled)
}

func (r *RedisTokens) GetTOTP(ctx context.Context, userID snowflake.Snowflake) (authd.TOTPRecord, error) {
	return r.inner.GetTOTP(ctx, userID)
}

func (r *RedisTokens) CreateTOTP(ctx context.Context, record authd.TOTPRecord, codes []authd.BackupCodeRecord) error {
	return r.inner.CreateTOTP(ctx, record, codes)
}

func (r *RedisTokens) DeleteTOTP(ctx context.Context, userID snowflake.Snowflake) error {
	return r.inner.DeleteTOTP(ctx, userID)
}

func (r *RedisTokens) GetBackupCodes(ctx context.Context, totpID snowflake.Snowflake) ([]authd.BackupCodeRecord, error) {
	return r.inner.GetBackupCodes(ctx, totpID)
}

func (r *RedisTokens) ExpireBackupCode(ctx context.Context, codeID snowflake.Snowflake) error {
	return r.inner.ExpireBackupCode(ctx, codeID)
}

func (r *RedisTokens) ReplaceBackupCodes(ctx context.Context, totpID snowflake.Snowflake, codes []authd.BackupCodeRecord) error {
	return r.inner.ReplaceBackupCodes(ctx, totpID, codes)
}
