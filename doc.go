// Package authd is an embeddable multi-tenant authentication engine.
//
// It covers the credential core of a login system: password
// verification with argon2id, a two-phase TOTP login with single-use
// backup codes, refresh/access token pairs with server-side revocation,
// and email verification. Persistence is behind the DataProvider
// interface; stores provides a reference in-memory implementation and
// a Redis decorator for short-lived flow tokens.
//
// Construct an Engine with a Builder:
//
//	engine, err := authd.NewBuilder().
//		WithConfig(cfg).
//		WithProvider(provider).
//		WithRedis(redisClient).
//		Build()
//
// All Engine methods are safe for concurrent use. Request-scoped client
// context (IP, user agent, device) travels via WithClientIP and
// friends on the context.
package authd
