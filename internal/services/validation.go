package services

import (
	"net/mail"
	"regexp"
	"strings"

	"github.com/ahmetcoskunkizilkaya/identity-profile-api/internal/dto"
)

const (
	minNameLength     = 3
	minPasswordLength = 8
	// bcrypt ignores input past 72 bytes.
	maxPasswordBytes = 72
)

var phonePattern = regexp.MustCompile(`^\+\d{10,15}$`)

// rule is a single check; rules run in order and the first failure wins.
type rule struct {
	check func() bool
	err   *ValidationError
}

func apply(rules ...rule) error {
	for _, r := range rules {
		if !r.check() {
			return r.err
		}
	}
	return nil
}

func required(fields ...string) rule {
	return rule{
		check: func() bool {
			for _, f := range fields {
				if strings.TrimSpace(f) == "" {
					return false
				}
			}
			return true
		},
		err: &ValidationError{Message: "Missing required fields"},
	}
}

func minLength(field, value string, n int) rule {
	return rule{
		check: func() bool { return len([]rune(value)) >= n },
		err:   newValidationError(field, "%q length must be at least %d characters long", field, n),
	}
}

func maxBytes(field, value string, n int) rule {
	return rule{
		check: func() bool { return len(value) <= n },
		err:   newValidationError(field, "%q length must be less than or equal to %d bytes long", field, n),
	}
}

func validEmail(field, value string) rule {
	return rule{
		check: func() bool { return isEmail(value) },
		err:   newValidationError(field, "%q must be a valid email", field),
	}
}

func validPhone(field, value string) rule {
	return rule{
		check: func() bool { return phonePattern.MatchString(value) },
		err:   newValidationError(field, "%q must be in international format, e.g. +12345678901", field),
	}
}

// isEmail accepts bare user@domain.tld addresses only.
func isEmail(value string) bool {
	addr, err := mail.ParseAddress(value)
	if err != nil || addr.Address != value || addr.Name != "" {
		return false
	}
	at := strings.LastIndex(value, "@")
	domain := value[at+1:]
	dot := strings.LastIndex(domain, ".")
	return dot > 0 && dot < len(domain)-1
}

// ValidateRegistration checks a registration payload. Missing fields are
// reported before any format rule runs.
func ValidateRegistration(req *dto.RegisterRequest) error {
	return apply(
		required(req.Name, req.Email, req.PhoneNumber, req.Password),
		minLength("name", req.Name, minNameLength),
		validEmail("email", req.Email),
		validPhone("phoneNumber", req.PhoneNumber),
		minLength("password", req.Password, minPasswordLength),
		maxBytes("password", req.Password, maxPasswordBytes),
	)
}

// ValidateUpdate checks a profile update payload.
func ValidateUpdate(req *dto.UpdateProfileRequest) error {
	return apply(
		required(req.Name, req.Email, req.PhoneNumber),
		minLength("name", req.Name, minNameLength),
		validEmail("email", req.Email),
		validPhone("phoneNumber", req.PhoneNumber),
	)
}

func ValidateLogin(req *dto.LoginRequest) error {
	return apply(required(req.Email, req.Password))
}
