package bookmarket_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	bm "github.com/vallury/bookmarket"
)

func TestEnsureOAuthUserCreatesAccount(t *testing.T) {
	auth, users, _ := newTestAuth()

	user, err := auth.EnsureOAuthUser("google-1", "new@example.com", "New Person")
	require.NoError(t, err)
	assert.Equal(t, "new@example.com", user.Email)
	assert.Equal(t, "New Person", user.Name)
	assert.Equal(t, bm.RoleBuyer, user.Role)
	assert.Nil(t, user.PasswordHash, "oauth accounts carry no password")
	require.NotNil(t, user.GoogleID)
	assert.Equal(t, "google-1", *user.GoogleID)

	stored, err := users.GetUserByGoogleID("google-1")
	require.NoError(t, err)
	assert.Equal(t, user.ID, stored.ID)
}

func TestEnsureOAuthUserDefaultsNameFromEmail(t *testing.T) {
	auth, _, _ := newTestAuth()

	user, err := auth.EnsureOAuthUser("google-1", "jdoe@example.com", "")
	require.NoError(t, err)
	assert.Equal(t, "jdoe", user.Name)
}

func TestEnsureOAuthUserLinksExistingEmail(t *testing.T) {
	auth, users, _ := newTestAuth()

	hash := "some-bcrypt-hash"
	require.NoError(t, users.CreateUser(&bm.User{
		ID: "u1", Name: "Ann", Email: "ann@example.com",
		PasswordHash: &hash, Role: bm.RoleSeller,
	}))

	user, err := auth.EnsureOAuthUser("google-1", "ann@example.com", "Ann From Google")
	require.NoError(t, err)

	// linked onto the existing row, nothing else touched
	assert.Equal(t, "u1", user.ID)
	assert.Equal(t, "Ann", user.Name)
	assert.Equal(t, bm.RoleSeller, user.Role)
	require.NotNil(t, user.GoogleID)
	assert.Equal(t, "google-1", *user.GoogleID)
	require.NotNil(t, user.PasswordHash, "linking must not drop the password")
}

func TestEnsureOAuthUserRepeatLoginNoDuplicate(t *testing.T) {
	auth, users, _ := newTestAuth()

	first, err := auth.EnsureOAuthUser("google-1", "ann@example.com", "Ann")
	require.NoError(t, err)

	// same provider id again, even with a changed email upstream
	second, err := auth.EnsureOAuthUser("google-1", "renamed@example.com", "Ann Renamed")
	require.NoError(t, err)
	assert.Equal(t, first.ID, second.ID)

	_, err = users.GetUserByEmail("renamed@example.com")
	assert.ErrorIs(t, err, bm.ErrUserNotFound, "no second row should exist")
}

func TestEnsureOAuthUserRejectsEmptyProfile(t *testing.T) {
	auth, _, _ := newTestAuth()

	_, err := auth.EnsureOAuthUser("", "ann@example.com", "Ann")
	assert.Error(t, err)
	_, err = auth.EnsureOAuthUser("google-1", "", "Ann")
	assert.Error(t, err)
}
