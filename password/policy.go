package password

import (
	"fmt"
	"unicode"

	"github.com/nbutton23/zxcvbn-go"
)

// Requirements is the per-application password acceptance policy.
// Applications that leave it nil get DefaultRequirements.
type Requirements struct {
	MinLength int
	MaxLength int

	// StrictClasses turns on the character-class minimums below.
	StrictClasses bool
	MinLowercase  int
	MinUppercase  int
	MinDigits     int
	MinSymbols    int

	// MinScore is the zxcvbn score (0-4) a password must reach. Set to
	// a negative value to skip strength scoring.
	MinScore int
}

// DefaultRequirements follows NIST SP 800-63B: length bounds and a
// strength score, no composition rules.
func DefaultRequirements() Requirements {
	return Requirements{
		MinLength: 8,
		MaxLength: 128,
		MinScore:  2,
	}
}

// Violation is one way a candidate password failed the policy.
type Violation struct {
	Code string
	Got  int
	Want int
}

func (v Violation) Error() string {
	if v.Code == ViolationWeak {
		return "password not strong enough"
	}
	return fmt.Sprintf("%s: got %d, want %d", v.Code, v.Got, v.Want)
}

// Violation codes.
const (
	ViolationTooShort  = "password too short"
	ViolationTooLong   = "password too long"
	ViolationLowercase = "not enough lowercase letters"
	ViolationUppercase = "not enough uppercase letters"
	ViolationDigits    = "not enough digits"
	ViolationSymbols   = "not enough symbols"
	ViolationWeak      = "password not strong enough"
)

// Validate checks a candidate against req and returns every violation.
// userInputs carries strings the password must not lean on for strength,
// such as the email and username; they feed the zxcvbn dictionary.
func Validate(password string, userInputs []string, req Requirements) []Violation {
	var violations []Violation

	if len(password) < req.MinLength {
		violations = append(violations, Violation{ViolationTooShort, len(password), req.MinLength})
	}
	if req.MaxLength > 0 && len(password) > req.MaxLength {
		violations = append(violations, Violation{ViolationTooLong, len(password), req.MaxLength})
	}

	if req.StrictClasses {
		var lower, upper, digits, symbols int
		for _, r := range password {
			switch {
			case unicode.IsLower(r):
				lower++
			case unicode.IsUpper(r):
				upper++
			case unicode.IsDigit(r):
				digits++
			default:
				symbols++
			}
		}
		if lower < req.MinLowercase {
			violations = append(violations, Violation{ViolationLowercase, lower, req.MinLowercase})
		}
		if upper < req.MinUppercase {
			violations = append(violations, Violation{ViolationUppercase, upper, req.MinUppercase})
		}
		if digits < req.MinDigits {
			violations = append(violations, Violation{ViolationDigits, digits, req.MinDigits})
		}
		if symbols < req.MinSymbols {
			violations = append(violations, Violation{ViolationSymbols, symbols, req.MinSymbols})
		}
	}

	if req.MinScore >= 0 {
		score := zxcvbn.PasswordStrength(password, userInputs).Score
		if score < req.MinScore {
			violations = append(violations, Violation{Code: ViolationWeak, Got: score, Want: req.MinScore})
		}
	}

	return violations
}
