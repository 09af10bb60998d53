package domain

import (
	"net/mail"
	"regexp"
	"strings"
	"time"
)

const (
	maxNameLength     = 150
	minPasswordLength = 8
)

var usernamePattern = regexp.MustCompile(`^[\w.@+-]+$`)

// User is an account that owns activities.
type User struct {
	ID           string
	Username     string
	Email        string
	FirstName    string
	LastName     string
	PasswordHash string
	DateJoined   time.Time
}

// UserPayload is the client-supplied representation of an account.
type UserPayload struct {
	Username  Field[string] `json:"username"`
	Email     Field[string] `json:"email"`
	Password  Field[string] `json:"password"`
	FirstName Field[string] `json:"first_name"`
	LastName  Field[string] `json:"last_name"`
}

// userChanges is the validated subset of a UserPayload.
type userChanges struct {
	username  *string
	email     *string
	password  *string
	firstName *string
	lastName  *string
}

// validate checks p. requireCore enforces username and email; requirePassword
// additionally enforces password (registration). Valid fields are returned even
// when others fail so callers can add their own checks to the same error.
func (p UserPayload) validate(requireCore, requirePassword bool) (userChanges, *ValidationError) {
	verr := &ValidationError{}
	var out userChanges

	partial := !requireCore
	if required(verr, "username", p.Username.Set, p.Username.Null, partial) {
		name := strings.TrimSpace(p.Username.Value)
		switch {
		case p.Username.Invalid:
			verr.Add("username", msgInvalidString)
		case name == "":
			verr.Add("username", "This field may not be blank.")
		case len(name) > maxNameLength:
			verr.Add("username", "Ensure this field has no more than 150 characters.")
		case !usernamePattern.MatchString(name):
			verr.Add("username", "Enter a valid username. This value may contain only letters, numbers, and @/./+/-/_ characters.")
		default:
			out.username = &name
		}
	}

	if required(verr, "email", p.Email.Set, p.Email.Null, partial) {
		email := strings.TrimSpace(p.Email.Value)
		if p.Email.Invalid || !validEmail(email) {
			verr.Add("email", "Enter a valid email address.")
		} else {
			out.email = &email
		}
	}

	if required(verr, "password", p.Password.Set, p.Password.Null, !requirePassword) {
		switch {
		case p.Password.Invalid:
			verr.Add("password", msgInvalidString)
		case len(p.Password.Value) < minPasswordLength:
			verr.Add("password", "Ensure this field has at least 8 characters.")
		default:
			pw := p.Password.Value
			out.password = &pw
		}
	}

	out.firstName = optionalName(verr, "first_name", p.FirstName)
	out.lastName = optionalName(verr, "last_name", p.LastName)

	return out, verr
}

func optionalName(verr *ValidationError, field string, f Field[string]) *string {
	switch {
	case !f.Set:
		return nil
	case f.Null:
		empty := ""
		return &empty
	case f.Invalid:
		verr.Add(field, msgInvalidString)
		return nil
	case len(f.Value) > maxNameLength:
		verr.Add(field, "Ensure this field has no more than 150 characters.")
		return nil
	default:
		v := strings.TrimSpace(f.Value)
		return &v
	}
}

func validEmail(value string) bool {
	if value == "" {
		return false
	}
	addr, err := mail.ParseAddress(value)
	return err == nil && addr.Address == value
}
