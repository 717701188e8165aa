package profile

import (
	"context"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"

	"github.com/trezcool/masomo-portal/core/session"
	"github.com/trezcool/masomo-portal/core/user"
)

// memorySize bounds the profiles held by one process; the least recently used go first.
const memorySize = 10000

// Memory is a process-local ProfileCache.
type Memory struct {
	entries *expirable.LRU[string, user.User]
}

var _ session.ProfileCache = (*Memory)(nil)

// NewMemory returns a Memory whose entries expire after ttl, never when ttl <= 0.
func NewMemory(ttl time.Duration) *Memory {
	if ttl < 0 {
		ttl = 0
	}
	return &Memory{entries: expirable.NewLRU[string, user.User](memorySize, nil, ttl)}
}

func (m *Memory) Get(_ context.Context, token string) (user.User, error) {
	usr, ok := m.entries.Get(key(token))
	if !ok {
		return user.User{}, session.ErrProfileNotFound
	}
	return usr, nil
}

func (m *Memory) Set(_ context.Context, token string, usr user.User) error {
	m.entries.Add(key(token), usr)
	return nil
}

func (m *Memory) Delete(_ context.Context, token string) error {
	m.entries.Remove(key(token))
	return nil
}
