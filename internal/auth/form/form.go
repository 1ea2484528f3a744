// Package form normalizes and validates raw credential input before it is
// handed to the session controller. Everything here is pure.
package form

import (
	"regexp"
	"strings"
	"unicode/utf8"

	"github.com/scrum0/scrum0/internal/auth/domain"
)

const (
	MinPasswordLength = 6
	MinUsernameLength = 3
)

const (
	MsgRequired         = "Email and password are required"
	MsgInvalidEmail     = "Please enter a valid email address"
	MsgPasswordTooShort = "Password must be at least 6 characters"
	MsgUsernameRequired = "Username is required for sign up"
	MsgUsernameTooShort = "Username must be at least 3 characters"
)

var reEmail = regexp.MustCompile(`^[^\s@]+@[^\s@]+\.[^\s@]+$`)

// NormalizeEmail trims surrounding whitespace.
func NormalizeEmail(email string) string {
	return strings.TrimSpace(email)
}

// NormalizeUsername trims and lower-cases a username.
func NormalizeUsername(username string) string {
	return strings.ToLower(strings.TrimSpace(username))
}

// SignIn validates and normalizes a sign-in credential.
func SignIn(c domain.Credential) (domain.Credential, error) {
	c.Email = NormalizeEmail(c.Email)
	if msg := checkCredential(c); msg != "" {
		return c, invalid(msg)
	}
	return c, nil
}

// SignUp validates and normalizes a sign-up request. Checks run in a fixed
// order so the user always sees the same first problem.
func SignUp(in domain.SignUpInput) (domain.SignUpInput, error) {
	in.Email = NormalizeEmail(in.Email)
	in.Username = NormalizeUsername(in.Username)
	in.FullName = strings.TrimSpace(in.FullName)

	if msg := checkCredential(in.Credential); msg != "" {
		return in, invalid(msg)
	}
	if msg := checkUsername(in.Username); msg != "" {
		return in, invalid(msg)
	}
	return in, nil
}

// ProfileUpdate validates and normalizes a profile mutation.
func ProfileUpdate(u domain.ProfileUpdate) (domain.ProfileUpdate, error) {
	if u.Username != nil {
		name := NormalizeUsername(*u.Username)
		if msg := checkUsername(name); msg != "" {
			return u, invalid(msg)
		}
		u.Username = &name
	}
	if u.FullName != nil {
		name := strings.TrimSpace(*u.FullName)
		u.FullName = &name
	}
	return u, nil
}

func checkCredential(c domain.Credential) string {
	switch {
	case c.Email == "" || c.Password == "":
		return MsgRequired
	case !reEmail.MatchString(c.Email):
		return MsgInvalidEmail
	case utf8.RuneCountInString(c.Password) < MinPasswordLength:
		return MsgPasswordTooShort
	}
	return ""
}

func checkUsername(username string) string {
	switch {
	case username == "":
		return MsgUsernameRequired
	case utf8.RuneCountInString(username) < MinUsernameLength:
		return MsgUsernameTooShort
	}
	return ""
}

func invalid(msg string) error {
	return domain.NewError(domain.KindValidation, msg, nil)
}
