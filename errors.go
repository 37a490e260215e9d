package authd

import "errors"

// Domain errors surfaced by Engine operations. Callers classify with
// errors.Is; anything outside this set wraps ErrInternal.
var (
	// ErrApplicationNotFound reports an unknown application id. It is
	// the one lookup failure reported precisely, since application ids
	// are operator configuration, not user data.
	ErrApplicationNotFound = errors.New("application not found")

	// ErrUserNotFound reports that no user matched the identifier
	// within the application.
	ErrUserNotFound = errors.New("user not found")

	// ErrWrongCredentials covers both a wrong password and an account
	// with no password credential. The two cases are indistinguishable
	// to the caller.
	ErrWrongCredentials = errors.New("wrong credentials")

	// ErrWrongSecondFactor reports a TOTP or backup code that did not
	// verify.
	ErrWrongSecondFactor = errors.New("wrong second factor")

	// ErrAlreadyExists reports a registration that collides with an
	// existing user in the same application.
	ErrAlreadyExists = errors.New("already exists")

	// ErrInvalidInput reports a request that failed validation before
	// touching any credential.
	ErrInvalidInput = errors.New("invalid input")

	// ErrMissingField reports a record assembled without one of its
	// required fields.
	ErrMissingField = errors.New("missing required field")

	// ErrTokenInvalid covers every token verification failure that is
	// not an expiry or a revocation: bad crypto, claim mismatch,
	// binding mismatch, wrong flow type.
	ErrTokenInvalid = errors.New("token invalid")

	// ErrTokenExpired reports a cryptographically valid token whose
	// expiration has passed.
	ErrTokenExpired = errors.New("token expired")

	// ErrTokenRevoked reports a cryptographically valid, unexpired
	// token whose backing record is gone.
	ErrTokenRevoked = errors.New("token revoked")

	// ErrRateLimited reports that the attempt budget for the
	// identifier, IP or flow is exhausted.
	ErrRateLimited = errors.New("rate limited")

	// ErrTOTPNotConfigured reports a second-factor operation on a user
	// without a TOTP secret.
	ErrTOTPNotConfigured = errors.New("totp not configured")

	// ErrTOTPAlreadyConfigured reports a setup attempt for a user that
	// already has a secret.
	ErrTOTPAlreadyConfigured = errors.New("totp already configured")

	// ErrInternal wraps provider and dependency failures. The cause is
	// attached for logs but carries no user-facing detail.
	ErrInternal = errors.New("internal error")
)

// Provider-level sentinels. DataProvider implementations return these;
// the engine maps them to domain errors at each call site.
var (
	// ErrProviderNotFound means the requested record does not exist.
	ErrProviderNotFound = errors.New("provider: record not found")

	// ErrProviderDuplicate means a uniqueness constraint was violated.
	ErrProviderDuplicate = errors.New("provider: duplicate record")
)
