package bank

import (
	"strings"

	"bankd/models"
)

// EnsureAdmin bootstraps the first administrator when the user store is
// empty, so a fresh data directory is immediately operable.
func (b *Bank) EnsureAdmin(name, password string) error {
	b.userMu.RLock()
	empty := len(b.userIdx) == 0
	b.userMu.RUnlock()
	if !empty {
		return nil
	}
	_, err := b.AddUser(name, password, models.RoleAdmin)
	return err
}

// AddUser appends a new active user with an id from the durable user
// sequence. Customers also get a zero-balance account whose number equals
// their user id.
func (b *Bank) AddUser(name, password string, role models.Role) (models.User, error) {
	name = strings.TrimSpace(name)
	if name == "" || password == "" {
		return models.User{}, ErrBadCredentials
	}

	b.userMu.Lock()
	id, err := b.userSeq.Next()
	if err != nil {
		b.userMu.Unlock()
		return models.User{}, err
	}
	user := models.User{ID: int32(id), Role: role, Active: 1}
	models.PutCString(user.Name[:], name)
	models.PutCString(user.Password[:], password)
	idx, err := b.users.Append(user)
	if err != nil {
		b.userMu.Unlock()
		return models.User{}, err
	}
	b.userIdx[user.ID] = idx
	b.userMu.Unlock()

	if role == models.RoleCustomer {
		if err := b.CreateAccount(user.ID); err != nil {
			return models.User{}, err
		}
	}
	return user, nil
}

// User returns the user record for id.
func (b *Bank) User(id int32) (models.User, error) {
	b.userMu.RLock()
	defer b.userMu.RUnlock()
	return b.readUser(id)
}

func (b *Bank) readUser(id int32) (models.User, error) {
	idx, ok := b.userIdx[id]
	if !ok {
		return models.User{}, ErrUserNotFound
	}
	var user models.User
	if err := b.users.ReadAt(idx, &user); err != nil {
		return models.User{}, err
	}
	return user, nil
}

// Users returns every user record in file order.
func (b *Bank) Users() ([]models.User, error) {
	b.userMu.RLock()
	defer b.userMu.RUnlock()
	var out []models.User
	var user models.User
	err := b.users.Scan(&user, func(int64) error {
		out = append(out, user)
		return nil
	})
	return out, err
}

// ModifyUser updates name and/or password; empty arguments leave the field
// unchanged.
func (b *Bank) ModifyUser(id int32, name, password string) error {
	b.userMu.Lock()
	defer b.userMu.Unlock()
	user, err := b.readUser(id)
	if err != nil {
		return err
	}
	if name = strings.TrimSpace(name); name != "" {
		models.PutCString(user.Name[:], name)
	}
	if password != "" {
		models.PutCString(user.Password[:], password)
	}
	return b.users.WriteAt(b.userIdx[id], user)
}

// SetUserActive flips the user's active flag. Deactivated users cannot
// authenticate; their records and accounts are retained.
func (b *Bank) SetUserActive(id int32, active bool) error {
	b.userMu.Lock()
	defer b.userMu.Unlock()
	user, err := b.readUser(id)
	if err != nil {
		return err
	}
	user.Active = 0
	if active {
		user.Active = 1
	}
	return b.users.WriteAt(b.userIdx[id], user)
}

// Authenticate checks the password of an active user.
func (b *Bank) Authenticate(id int32, password string) (models.User, error) {
	b.userMu.RLock()
	defer b.userMu.RUnlock()
	user, err := b.readUser(id)
	if err != nil {
		return models.User{}, ErrBadCredentials
	}
	if user.Active == 0 {
		return models.User{}, ErrUserInactive
	}
	if models.CString(user.Password[:]) != password {
		return models.User{}, ErrBadCredentials
	}
	return user, nil
}
