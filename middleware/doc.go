// Package middleware exposes HTTP adapters for the engine.
//
// [Guard] reads the Authorization header, verifies the access token and
// injects the identity into the request context. [ClientContext] stamps
// client IP, User-Agent and device ID so the engine can bind flow
// tokens and rate-limit per IP.
//
// The package only translates HTTP semantics into engine calls; every
// authentication decision is the engine's.
package middleware
