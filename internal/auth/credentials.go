package auth

import (
	"context"
	"crypto/subtle"
	"errors"
	"fmt"

	"golang.org/x/crypto/bcrypt"
)

// ErrInvalidCredentials is returned for a wrong username or password alike.
var ErrInvalidCredentials = errors.New("auth: invalid credentials")

// Identity is an authenticated principal.
type Identity struct {
	Username string
	Role     string
}

// CredentialStore checks a username and password.
type CredentialStore interface {
	Authenticate(ctx context.Context, username, password string) (Identity, error)
}

// ConfigCredentials is a CredentialStore holding the single admin pair from
// configuration. The password is only kept as a bcrypt hash.
type ConfigCredentials struct {
	username string
	hash     []byte
}

// NewConfigCredentials builds the admin credential store. passwordHash, when
// set, must be a bcrypt hash and takes precedence over password.
func NewConfigCredentials(username, password, passwordHash string) (*ConfigCredentials, error) {
	if username == "" {
		return nil, errors.New("auth: admin username is required")
	}
	if passwordHash != "" {
		if _, err := bcrypt.Cost([]byte(passwordHash)); err != nil {
			return nil, fmt.Errorf("auth: invalid admin password hash: %w", err)
		}
		return &ConfigCredentials{username: username, hash: []byte(passwordHash)}, nil
	}
	if password == "" {
		return nil, errors.New("auth: admin password or password hash is required")
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return nil, fmt.Errorf("auth: failed to hash admin password: %w", err)
	}
	return &ConfigCredentials{username: username, hash: hash}, nil
}

func (c *ConfigCredentials) Authenticate(_ context.Context, username, password string) (Identity, error) {
	userOK := subtle.ConstantTimeCompare([]byte(username), []byte(c.username)) == 1
	// The hash is compared even for an unknown user so both failures cost the same.
	passErr := bcrypt.CompareHashAndPassword(c.hash, []byte(password))
	if !userOK || passErr != nil {
		return Identity{}, ErrInvalidCredentials
	}
	return Identity{Username: c.username, Role: RoleAdmin}, nil
}
