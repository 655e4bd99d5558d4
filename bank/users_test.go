package bank

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"bankd/models"
)

func TestAddCustomerCreatesAccount(t *testing.T) {
	b := newTestBank(t)
	user, err := b.AddUser("alice", "secret", models.RoleCustomer)
	require.NoError(t, err)
	assert.Equal(t, int32(1), user.ID)

	acct, err := b.Account(user.ID)
	require.NoError(t, err)
	assert.Equal(t, user.ID, acct.Number)
	assert.Equal(t, float32(0), acct.Balance)
	assert.Equal(t, int32(1), acct.Active)
}

func TestAddStaffHasNoAccount(t *testing.T) {
	b := newTestBank(t)
	user, err := b.AddUser("bob", "secret", models.RoleEmployee)
	require.NoError(t, err)
	_, err = b.Account(user.ID)
	assert.ErrorIs(t, err, ErrAccountNotFound)
}

func TestUserIDsNeverReused(t *testing.T) {
	b := newTestBank(t)
	u1, err := b.AddUser("a", "pw", models.RoleEmployee)
	require.NoError(t, err)
	u2, err := b.AddUser("b", "pw", models.RoleEmployee)
	require.NoError(t, err)
	assert.Equal(t, u1.ID+1, u2.ID)
}

func TestAuthenticate(t *testing.T) {
	b := newTestBank(t)
	user, err := b.AddUser("alice", "secret", models.RoleCustomer)
	require.NoError(t, err)

	got, err := b.Authenticate(user.ID, "secret")
	require.NoError(t, err)
	assert.Equal(t, "alice", models.CString(got.Name[:]))

	_, err = b.Authenticate(user.ID, "wrong")
	assert.ErrorIs(t, err, ErrBadCredentials)

	require.NoError(t, b.SetUserActive(user.ID, false))
	_, err = b.Authenticate(user.ID, "secret")
	assert.ErrorIs(t, err, ErrUserInactive)
}

func TestModifyUser(t *testing.T) {
	b := newTestBank(t)
	user, err := b.AddUser("alice", "secret", models.RoleCustomer)
	require.NoError(t, err)

	require.NoError(t, b.ModifyUser(user.ID, "alicia", ""))
	got, err := b.User(user.ID)
	require.NoError(t, err)
	assert.Equal(t, "alicia", models.CString(got.Name[:]))
	// Password untouched by the empty argument.
	_, err = b.Authenticate(user.ID, "secret")
	assert.NoError(t, err)
}

func TestEnsureAdminBootstrapsOnce(t *testing.T) {
	b := newTestBank(t)
	require.NoError(t, b.EnsureAdmin("admin", "admin"))
	require.NoError(t, b.EnsureAdmin("admin", "admin"))
	users, err := b.Users()
	require.NoError(t, err)
	require.Len(t, users, 1)
	assert.Equal(t, models.RoleAdmin, users[0].Role)
}

func TestSessions(t *testing.T) {
	b := newTestBank(t)
	user, err := b.AddUser("alice", "secret", models.RoleCustomer)
	require.NoError(t, err)

	token, got, err := b.Login(user.ID, "secret")
	require.NoError(t, err)
	assert.Equal(t, user.ID, got.ID)

	id, ok := b.Sessions.Lookup(token)
	require.True(t, ok)
	assert.Equal(t, user.ID, id)

	// One live session per user.
	_, _, err = b.Login(user.ID, "secret")
	assert.ErrorIs(t, err, ErrAlreadyLoggedIn)

	require.NoError(t, b.Logout(token))
	_, ok = b.Sessions.Lookup(token)
	assert.False(t, ok)
	assert.ErrorIs(t, b.Logout(token), ErrSessionUnknown)

	_, _, err = b.Login(user.ID, "secret")
	assert.NoError(t, err)
}

func TestSessionCapacity(t *testing.T) {
	r := NewSessionRegistry(2)
	_, err := r.Add(1)
	require.NoError(t, err)
	_, err = r.Add(2)
	require.NoError(t, err)
	_, err = r.Add(3)
	assert.ErrorIs(t, err, ErrSessionsFull)
}
