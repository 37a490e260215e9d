package authd

import (
	"context"
	"fmt"
	"time"

	"github.com/vantor/authd/password"
	"github.com/vantor/authd/snowflake"
)

// TokenKind discriminates stored token records. The kind participates in
// every lookup, so a flow token can never stand in for a refresh token.
type TokenKind uint8

const (
	// TokenRefresh is a long-lived refresh token record.
	TokenRefresh TokenKind = iota + 1
	// TokenTOTPFlow bridges the two phases of a second-factor login.
	TokenTOTPFlow
	// TokenEmailVerification proves control of a registered address.
	TokenEmailVerification
)

func (k TokenKind) String() string {
	switch k {
	case TokenRefresh:
		return "refresh"
	case TokenTOTPFlow:
		return "totp_flow"
	case TokenEmailVerification:
		return "email_verification"
	default:
		return "unknown"
	}
}

// ApplicationRecord is one tenant. Users, credentials and uniqueness are
// all scoped to an application.
type ApplicationRecord struct {
	ID   snowflake.Snowflake
	Name string
	// PasswordPolicy overrides the engine default when non-nil.
	PasswordPolicy *password.Requirements
}

// UserRecord is the stored user. PasswordHash empty means the account
// has no password credential; login treats that the same as a wrong
// password.
type UserRecord struct {
	ID            snowflake.Snowflake
	ApplicationID snowflake.Snowflake
	Email         string
	Username      string
	PasswordHash  string
	EmailVerified bool
	TOTPEnabled   bool
	CreatedAt     time.Time
	LastLoginAt   time.Time
	LastLoginIP   string
}

// TokenRecord is the stored half of an issued token. Verification looks
// the record up by (UserID, ID, Kind) after the cryptographic check;
// deleting the record revokes the token regardless of its expiry.
type TokenRecord struct {
	ID        snowflake.Snowflake
	UserID    snowflake.Snowflake
	Kind      TokenKind
	ExpiresAt time.Time
	IPAddress string
	UserAgent string
	CreatedAt time.Time
}

// TOTPRecord is a user's second-factor secret. Secret is base32 without
// padding.
type TOTPRecord struct {
	ID        snowflake.Snowflake
	UserID    snowflake.Snowflake
	Secret    string
	CreatedAt time.Time
}

// BackupCodeRecord is one single-use recovery code tied to a TOTP
// secret. Expired flips exactly once, in the same transaction that
// reports the code as accepted.
type BackupCodeRecord struct {
	ID        snowflake.Snowflake
	TOTPID    snowflake.Snowflake
	Code      string
	Expired   bool
	CreatedAt time.Time
}

// CreateUserInput carries everything CreateUser persists atomically.
type CreateUserInput struct {
	User UserRecord
}

// DataProvider is the persistence boundary. Implementations decide the
// storage engine; the engine only requires that InTx gives
// all-or-nothing semantics for the provider calls made inside fn, and
// that lookups return ErrProviderNotFound / ErrProviderDuplicate for
// the engine to map.
type DataProvider interface {
	// InTx runs fn inside one transaction. Provider methods called with
	// the ctx passed to fn join that transaction.
	InTx(ctx context.Context, fn func(ctx context.Context) error) error

	GetApplication(ctx context.Context, id snowflake.Snowflake) (ApplicationRecord, error)

	// GetUserByIdentifier resolves an email or username within one
	// application.
	GetUserByIdentifier(ctx context.Context, applicationID snowflake.Snowflake, identifier string) (UserRecord, error)
	GetUserByID(ctx context.Context, id snowflake.Snowflake) (UserRecord, error)
	CreateUser(ctx context.Context, in CreateUserInput) error
	UpdatePasswordHash(ctx context.Context, userID snowflake.Snowflake, hash string) error
	RecordLogin(ctx context.Context, userID snowflake.Snowflake, at time.Time, ip string) error
	MarkEmailVerified(ctx context.Context, userID snowflake.Snowflake) error
	SetTOTPEnabled(ctx context.Context, userID snowflake.Snowflake, enabled bool) error

	CreateToken(ctx context.Context, record TokenRecord) error
	GetToken(ctx context.Context, userID, tokenID snowflake.Snowflake, kind TokenKind) (TokenRecord, error)
	DeleteToken(ctx context.Context, userID, tokenID snowflake.Snowflake, kind TokenKind) error
	DeleteTokensByUser(ctx context.Context, userID snowflake.Snowflake, kinds ...TokenKind) (int, error)

	GetTOTP(ctx context.Context, userID snowflake.Snowflake) (TOTPRecord, error)
	CreateTOTP(ctx context.Context, record TOTPRecord, codes []BackupCodeRecord) error
	DeleteTOTP(ctx context.Context, userID snowflake.Snowflake) error
	GetBackupCodes(ctx context.Context, totpID snowflake.Snowflake) ([]BackupCodeRecord, error)
	ExpireBackupCode(ctx context.Context, codeID snowflake.Snowflake) error
	ReplaceBackupCodes(ctx context.Context, totpID snowflake.Snowflake, codes []BackupCodeRecord) error
}

// Mailer delivers verification mail. Delivery is best-effort from the
// engine's point of view; failures are logged, never surfaced to the
// registering user.
type Mailer interface {
	SendVerificationEmail(ctx context.Context, to, token string) error
}

// LoginRequest starts a login. SecondFactorCode is optional on the
// first call; a code containing '-' is treated as a backup code.
type LoginRequest struct {
	ApplicationID    snowflake.Snowflake
	Identifier       string
	Password         string
	SecondFactorCode string
}

// LoginResult is either a completed login (token pair) or a second
// factor challenge (flow token), never both.
type LoginResult struct {
	AccessToken  string
	RefreshToken string

	SecondFactorRequired bool
	FlowToken            string
}

// RegistrationRequest creates a user inside an application.
type RegistrationRequest struct {
	ApplicationID snowflake.Snowflake
	Email         string
	Username      string
	Password      string
}

// RegistrationResult reports the created user. VerificationSent is
// false when no mailer is configured or delivery failed softly.
type RegistrationResult struct {
	User             UserRecord
	VerificationSent bool
}

// TOTPSetup is the provisioning material handed to the user exactly
// once at setup.
type TOTPSetup struct {
	Secret      string
	URI         string
	BackupCodes []string
}

// AccessIdentity is the verified subject of an access token.
type AccessIdentity struct {
	UserID         snowflake.Snowflake
	TokenID        snowflake.Snowflake
	RefreshTokenID snowflake.Snowflake
	ExpiresAt      time.Time
}

// tokenRecordSpec assembles a TokenRecord, enforcing the required
// fields at build time instead of scattering nil checks through the
// engine.
type tokenRecordSpec struct {
	id        snowflake.Snowflake
	userID    snowflake.Snowflake
	kind      TokenKind
	expiresAt time.Time
	ipAddress string
	userAgent string
}

func (s tokenRecordSpec) build() (TokenRecord, error) {
	if s.id == 0 {
		return TokenRecord{}, fmt.Errorf("%w: token id", ErrMissingField)
	}
	if s.userID == 0 {
		return TokenRecord{}, fmt.Errorf("%w: user id", ErrMissingField)
	}
	if s.kind == 0 {
		return TokenRecord{}, fmt.Errorf("%w: token kind", ErrMissingField)
	}
	if s.expiresAt.IsZero() {
		return TokenRecord{}, fmt.Errorf("%w: expiry", ErrMissingField)
	}

	return TokenRecord{
		ID:        s.id,
		UserID:    s.userID,
		Kind:      s.kind,
		ExpiresAt: s.expiresAt,
		IPAddress: s.ipAddress,
		UserAgent: s.userAgent,
		CreatedAt: time.Now(),
	}, nil
}
