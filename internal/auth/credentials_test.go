package auth

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

func TestConfigCredentials_PlainPassword(t *testing.T) {
	creds, err := NewConfigCredentials("admin", "admin123", "")
	require.NoError(t, err)

	id, err := creds.Authenticate(context.Background(), "admin", "admin123")
	require.NoError(t, err)
	assert.Equal(t, Identity{Username: "admin", Role: RoleAdmin}, id)
}

func TestConfigCredentials_HashTakesPrecedence(t *testing.T) {
	hash, err := bcrypt.GenerateFromPassword([]byte("from-hash"), bcrypt.MinCost)
	require.NoError(t, err)

	creds, err := NewConfigCredentials("admin", "ignored", string(hash))
	require.NoError(t, err)

	_, err = creds.Authenticate(context.Background(), "admin", "from-hash")
	assert.NoError(t, err)
	_, err = creds.Authenticate(context.Background(), "admin", "ignored")
	assert.ErrorIs(t, err, ErrInvalidCredentials)
}

func TestConfigCredentials_FailuresAreUniform(t *testing.T) {
	creds, err := NewConfigCredentials("admin", "admin123", "")
	require.NoError(t, err)

	_, wrongUser := creds.Authenticate(context.Background(), "root", "admin123")
	_, wrongPass := creds.Authenticate(context.Background(), "admin", "nope")
	_, both := creds.Authenticate(context.Background(), "", "")

	assert.ErrorIs(t, wrongUser, ErrInvalidCredentials)
	assert.ErrorIs(t, wrongPass, ErrInvalidCredentials)
	assert.ErrorIs(t, both, ErrInvalidCredentials)
	assert.Equal(t, wrongUser.Error(), wrongPass.Error())
}

func TestNewConfigCredentials_Validation(t *testing.T) {
	_, err := NewConfigCredentials("", "pw", "")
	assert.Error(t, err)
	_, err = NewConfigCredentials("admin", "", "")
	assert.Error(t, err)
	_, err = NewConfigCredentials("admin", "", "not-a-bcrypt-hash")
	assert.Error(t, err)
}
