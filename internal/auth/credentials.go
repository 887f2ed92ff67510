package auth

import (
	"crypto/subtle"
	"errors"
	"regexp"
)

// ErrBadCredentials is returned for an unknown username or wrong password.
// The two cases are deliberately indistinguishable to the caller.
var ErrBadCredentials = errors.New("auth: bad credentials")

// usernamePattern is the accepted username shape: 3-24 characters of
// letters, digits, underscore or hyphen.
var usernamePattern = regexp.MustCompile(`^[A-Za-z0-9_-]{3,24}$`)

// ValidUsername reports whether the username has an acceptable shape.
func ValidUsername(username string) bool {
	return usernamePattern.MatchString(username)
}

// CredentialStore checks a username/password pair. Implementations must be
// safe for concurrent use.
type CredentialStore interface {
	Authenticate(username, password string) error
}

// DemoStore is a fixed in-memory credential set. Production deployments
// must replace this with verified, hashed credentials behind the same
// interface; nothing else in the system depends on how passwords are kept.
type DemoStore struct {
	users map[string]string
}

// NewDemoStore returns a store preloaded with the demo accounts.
func NewDemoStore() *DemoStore {
	return &DemoStore{
		users: map[string]string{
			"alice": "wonderland",
			"bob":   "builder",
			"carol": "christmas",
		},
	}
}

// Authenticate implements CredentialStore.
func (s *DemoStore) Authenticate(username, password string) error {
	want, ok := s.users[username]
	if !ok {
		return ErrBadCredentials
	}
	if subtle.ConstantTimeCompare([]byte(want), []byte(password)) != 1 {
		return ErrBadCredentials
	}
	return nil
}
