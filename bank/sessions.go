package bank

import (
	"sync"

	"github.com/google/uuid"

	"bankd/models"
)

const defaultSessionCap = 10

// SessionRegistry tracks live logins: one session per user, bounded
// capacity, opaque uuid tokens. It replaces the fixed global array the
// original design guarded with a single spinlock.
type SessionRegistry struct {
	mu      sync.Mutex
	cap     int
	byToken map[string]int32
	byUser  map[int32]string
}

func NewSessionRegistry(capacity int) *SessionRegistry {
	return &SessionRegistry{
		cap:     capacity,
		byToken: make(map[string]int32),
		byUser:  make(map[int32]string),
	}
}

// Add registers a session for userID and returns its token.
func (r *SessionRegistry) Add(userID int32) (string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, live := r.byUser[userID]; live {
		return "", ErrAlreadyLoggedIn
	}
	if len(r.byToken) >= r.cap {
		return "", ErrSessionsFull
	}
	token := uuid.NewString()
	r.byToken[token] = userID
	r.byUser[userID] = token
	return token, nil
}

// Remove ends the session identified by token.
func (r *SessionRegistry) Remove(token string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	userID, ok := r.byToken[token]
	if !ok {
		return ErrSessionUnknown
	}
	delete(r.byToken, token)
	delete(r.byUser, userID)
	return nil
}

// Lookup resolves a token to its user id.
func (r *SessionRegistry) Lookup(token string) (int32, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	userID, ok := r.byToken[token]
	return userID, ok
}

// Login authenticates the user and opens a session.
func (b *Bank) Login(id int32, password string) (string, models.User, error) {
	user, err := b.Authenticate(id, password)
	if err != nil {
		return "", models.User{}, err
	}
	token, err := b.Sessions.Add(id)
	if err != nil {
		return "", models.User{}, err
	}
	return token, user, nil
}

// Logout closes the session identified by token.
func (b *Bank) Logout(token string) error {
	return b.Sessions.Remove(token)
}
