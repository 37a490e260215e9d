// Package rate provides the Redis-backed attempt counters behind login,
// second-factor flow, and registration throttling.
//
// # Window semantics
//
// Fixed-window counters: INCR + conditional EXPIRE on first hit. Key prefixes:
//   - authd:rl:login:user:  — login per-identifier
//   - authd:rl:login:ip:    — login per-IP
//   - authd:rl:flow:        — second-factor attempts per flow token
//   - authd:rl:register:ip: — registration per-IP
//
// # What this package must NOT do
//
//   - Decide which operations are throttled (the Engine does).
//   - Be imported outside this module.
package rate
