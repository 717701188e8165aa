package session

import (
	"context"
	"sync"

	"github.com/pkg/errors"

	"github.com/trezcool/masomo-portal/core/user"
)

// ErrProfileNotFound is returned by a ProfileCache that holds nothing for a token.
var ErrProfileNotFound = errors.New("profile not found")

// State is the resolution state of a Store.
type State int

const (
	// Pending means restore is in flight: nobody knows yet whether there is a session.
	Pending State = iota
	Anonymous
	Authenticated
)

func (s State) String() string {
	switch s {
	case Pending:
		return "pending"
	case Anonymous:
		return "anonymous"
	case Authenticated:
		return "authenticated"
	}
	return "unknown"
}

// Session is the currently authenticated actor.
type Session struct {
	User  user.User
	Token string
}

// Snapshot is a point-in-time view of a Store. Session is non-nil iff State is Authenticated.
type Snapshot struct {
	State   State
	Session *Session
}

func (s Snapshot) Role() (user.Role, bool) {
	if s.State != Authenticated || s.Session == nil {
		return 0, false
	}
	return s.Session.User.Role, true
}

func (s Snapshot) User() (user.User, bool) {
	if s.State != Authenticated || s.Session == nil {
		return user.User{}, false
	}
	return s.Session.User, true
}

type (
	// Authenticator talks to the authentication endpoints of the backend.
	Authenticator interface {
		// Login exchanges credentials for the user's profile and a bearer token.
		Login(ctx context.Context, email, password string) (user.User, string, error)
		// Me returns the profile the token belongs to.
		Me(ctx context.Context, token string) (user.User, error)
	}

	// TokenStorage persists the bearer token on the client. Token returns "" when nothing is stored.
	TokenStorage interface {
		Token() (string, error)
		SetToken(token string) error
		ClearToken() error
	}

	// ProfileCache keeps the last confirmed profile of a token so restore does not need a round-trip.
	ProfileCache interface {
		Get(ctx context.Context, token string) (user.User, error)
		Set(ctx context.Context, token string, usr user.User) error
		Delete(ctx context.Context, token string) error
	}
)

// MemoryTokens is an in-memory TokenStorage.
type MemoryTokens struct {
	mu    sync.Mutex
	token string
}

var _ TokenStorage = (*MemoryTokens)(nil)

func NewMemoryTokens(token string) *MemoryTokens {
	return &MemoryTokens{token: token}
}

func (m *MemoryTokens) Token() (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.token, nil
}

func (m *MemoryTokens) SetToken(token string) error {
	m.mu.Lock()
	m.token = token
	m.mu.Unlock()
	return nil
}

func (m *MemoryTokens) ClearToken() error {
	return m.SetToken("")
}

type noCache struct{}

func (noCache) Get(context.Context, string) (user.User, error) { return user.User{}, ErrProfileNotFound }
func (noCache) Set(context.Context, string, user.User) error   { return nil }
func (noCache) Delete(context.Context, string) error           { return nil }
