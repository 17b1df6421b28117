package session

import (
	"context"
	"sync"

	"github.com/xenking/wello-store/internal/domain/ledger"
)

var _ Snapshots = (*MemorySnapshots)(nil)

// MemorySnapshots is an in-process Snapshots.
type MemorySnapshots struct {
	mu    sync.Mutex
	users map[string]ledger.User
}

func NewMemorySnapshots() *MemorySnapshots {
	return &MemorySnapshots{users: make(map[string]ledger.User)}
}

func (m *MemorySnapshots) Save(_ context.Context, tokenHash string, user ledger.User) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.users[tokenHash] = user.Clone()
	return nil
}

func (m *MemorySnapshots) Load(_ context.Context, tokenHash string) (ledger.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.users[tokenHash]
	if !ok {
		return ledger.User{}, ErrNotFound
	}
	return u.Clone(), nil
}

func (m *MemorySnapshots) Delete(_ context.Context, tokenHash string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.users, tokenHash)
	return nil
}

func (m *MemorySnapshots) DeleteByEmail(_ context.Context, email string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for k, u := range m.users {
		if u.Email == email {
			delete(m.users, k)
		}
	}
	return nil
}
