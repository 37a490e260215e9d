package internaldefs

import (
	authd "github.com/vantor/authd"
)

// CounterDef names one engine counter for the exporters.
type CounterDef struct {
	ID   authd.MetricID
	Name string
	Help string
}

// HistogramDef names one engine histogram for the exporters.
type HistogramDef struct {
	ID   authd.MetricID
	Name string
	Help string
}

// CounterDefs maps every engine counter to its exported name. Both
// exporters iterate this slice, so the set stays identical across
// Prometheus and OTel.
var CounterDefs = []CounterDef{
	{ID: authd.MetricLoginSuccess, Name: "authd_login_success_total", Help: "Successful login attempts."},
	{ID: authd.MetricLoginFailure, Name: "authd_login_failure_total", Help: "Failed login attempts."},
	{ID: authd.MetricLoginRateLimited, Name: "authd_login_rate_limited_total", Help: "Rate-limited login attempts."},
	{ID: authd.MetricSecondFactorRequired, Name: "authd_second_factor_required_total", Help: "Logins answered with a second-factor challenge."},
	{ID: authd.MetricSecondFactorSuccess, Name: "authd_second_factor_success_total", Help: "Successful second-factor verifications."},
	{ID: authd.MetricSecondFactorFailure, Name: "authd_second_factor_failure_total", Help: "Failed second-factor verifications."},
	{ID: authd.MetricBackupCodeUsed, Name: "authd_backup_code_used_total", Help: "Successful backup-code authentications."},
	{ID: authd.MetricBackupCodeFailed, Name: "authd_backup_code_failed_total", Help: "Failed backup-code authentications."},
	{ID: authd.MetricBackupCodeRegenerated, Name: "authd_backup_code_regenerated_total", Help: "Backup-code regeneration operations."},
	{ID: authd.MetricRegistrationSuccess, Name: "authd_registration_success_total", Help: "Successful registrations."},
	{ID: authd.MetricRegistrationDuplicate, Name: "authd_registration_duplicate_total", Help: "Registrations rejected as duplicate."},
	{ID: authd.MetricRegistrationRateLimited, Name: "authd_registration_rate_limited_total", Help: "Rate-limited registration attempts."},
	{ID: authd.MetricRefreshSuccess, Name: "authd_refresh_success_total", Help: "Successful refresh operations."},
	{ID: authd.MetricRefreshFailure, Name: "authd_refresh_failure_total", Help: "Failed refresh operations."},
	{ID: authd.MetricTokenIssued, Name: "authd_token_issued_total", Help: "Issued token pairs."},
	{ID: authd.MetricTokenRevoked, Name: "authd_token_revoked_total", Help: "Revoked tokens."},
	{ID: authd.MetricTokenRejected, Name: "authd_token_rejected_total", Help: "Tokens rejected at verification."},
	{ID: authd.MetricLogout, Name: "authd_logout_total", Help: "Single-session logout operations."},
	{ID: authd.MetricLogoutAll, Name: "authd_logout_all_total", Help: "Logout-all operations."},
	{ID: authd.MetricEmailVerificationIssued, Name: "authd_email_verification_issued_total", Help: "Issued email verification tokens."},
	{ID: authd.MetricEmailVerificationSuccess, Name: "authd_email_verification_success_total", Help: "Successful email verifications."},
	{ID: authd.MetricEmailVerificationFailure, Name: "authd_email_verification_failure_total", Help: "Failed email verifications."},
	{ID: authd.MetricTOTPEnabled, Name: "authd_totp_enabled_total", Help: "TOTP enrollments."},
	{ID: authd.MetricTOTPDisabled, Name: "authd_totp_disabled_total", Help: "TOTP removals."},
}

// HistogramDefs lists the engine histograms.
var HistogramDefs = []HistogramDef{
	{ID: authd.MetricLoginLatency, Name: "authd_login_latency_seconds", Help: "End-to-end login latency histogram."},
}

// HistogramBounds are the upper bounds of the engine's fixed latency
// buckets, rendered as Prometheus le labels.
var HistogramBounds = []string{
	"0.005",
	"0.01",
	"0.025",
	"0.05",
	"0.1",
	"0.25",
	"0.5",
	"+Inf",
}

// HistogramBoundSuffix mirrors HistogramBounds with characters legal in
// OTel instrument names.
var HistogramBoundSuffix = []string{
	"0_005",
	"0_01",
	"0_025",
	"0_05",
	"0_1",
	"0_25",
	"0_5",
	"inf",
}

// NormalizeBuckets pads or truncates a raw snapshot slice to the fixed
// bucket count.
func NormalizeBuckets(raw []uint64) [8]uint64 {
	var out [8]uint64
	for i := 0; i < len(out) && i < len(raw); i++ {
		out[i] = raw[i]
	}
	return out
}

// CumulativeBuckets converts per-bucket counts to the cumulative form
// both exposition formats expect.
func CumulativeBuckets(raw [8]uint64) [8]uint64 {
	var out [8]uint64
	var running uint64
	for i := 0; i < len(raw); i++ {
		running += raw[i]
		out[i] = running
	}
	return out
}
