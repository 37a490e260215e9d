// Package password covers credential hashing and acceptance policy.
//
// # Output format
//
// Hashes are argon2id encoded in PHC string format:
//
//	$argon2id$v=19$m=<memory>,t=<time>,p=<threads>$<salt>$<hash>
//
// [Argon2.NeedsUpgrade] reports when a stored hash was produced with
// weaker parameters than the current config, so callers can re-hash on
// the next successful login.
//
// # Policy
//
// [Validate] checks a candidate password against per-application
// [Requirements]: length bounds, optional character-class minimums, and
// a zxcvbn strength score. All violations are collected and reported
// together rather than stopping at the first.
package password
