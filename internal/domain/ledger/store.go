package ledger

import (
	"context"
	"encoding/json"
	"sync"

	"github.com/go-faster/errors"
)

// Store persists the whole user collection as one record. Load returns the
// collection together with its version; Save writes the full collection
// only if the stored version still equals expected and returns the new
// version. An absent collection loads as empty with version 0.
type Store interface {
	Load(ctx context.Context) (Collection, int64, error)
	Save(ctx context.Context, users Collection, expected int64) (int64, error)
}

var _ Store = (*MemoryStore)(nil)

// MemoryStore keeps the collection as an encoded blob in memory, so loaded
// values never alias stored state.
type MemoryStore struct {
	mu      sync.Mutex
	blob    []byte
	version int64
}

// NewMemoryStore returns an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{}
}

func (s *MemoryStore) Load(context.Context) (Collection, int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.blob == nil {
		return Collection{}, s.version, nil
	}
	var users Collection
	if err := json.Unmarshal(s.blob, &users); err != nil {
		return nil, 0, errors.Wrap(err, "decode users")
	}
	return users, s.version, nil
}

func (s *MemoryStore) Save(_ context.Context, users Collection, expected int64) (int64, error) {
	blob, err := json.Marshal(users)
	if err != nil {
		return 0, errors.Wrap(err, "encode users")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.version != expected {
		return 0, ErrVersionConflict
	}
	s.blob = blob
	s.version++
	return s.version, nil
}
