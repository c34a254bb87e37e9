package account

import (
	"fmt"
	"sync"

	"go.etcd.io/bbolt"
)

var (
	tokenBucket = []byte("session")
	tokenKey    = []byte("token")
)

// BoltTokenStore persists the active session token across process restarts,
// backed by a BBolt database. It implements TokenStore.
type BoltTokenStore struct {
	db *bbolt.DB
}

var _ TokenStore = (*BoltTokenStore)(nil)

// NewBoltTokenStore returns a TokenStore backed by the given BBolt database.
func NewBoltTokenStore(db *bbolt.DB) *BoltTokenStore {
	return &BoltTokenStore{db: db}
}

// NewBoltTokenStoreFromFile opens a BBolt database at the given path and
// returns a new token store.
func NewBoltTokenStoreFromFile(path string, options *bbolt.Options) (*BoltTokenStore, error) {
	db, err := bbolt.Open(path, 0600, options)
	if err != nil {
		return nil, fmt.Errorf("opening bbolt db: %w", err)
	}
	return NewBoltTokenStore(db), nil
}

// Close closes the underlying BBolt database.
func (s *BoltTokenStore) Close() error {
	return s.db.Close()
}

// Save stores the session token, replacing any previous one.
func (s *BoltTokenStore) Save(token string) error {
	return s.db.Update(func(tx *bbolt.Tx) error {
		b, err := tx.CreateBucketIfNotExists(tokenBucket)
		if err != nil {
			return err
		}
		return b.Put(tokenKey, []byte(token))
	})
}

// Load returns the stored session token, empty when none is stored.
func (s *BoltTokenStore) Load() (string, error) {
	var token string
	err := s.db.View(func(tx *bbolt.Tx) error {
		b := tx.Bucket(tokenBucket)
		if b == nil {
			return nil
		}
		if data := b.Get(tokenKey); data != nil {
			token = string(data)
		}
		return nil
	})
	return token, err
}

// Clear removes the stored session token. Clearing an empty store is a no-op.
func (s *BoltTokenStore) Clear() error {
	return s.db.Update(func(tx *bbolt.Tx) error {
		b := tx.Bucket(tokenBucket)
		if b == nil {
			return nil
		}
		return b.Delete(tokenKey)
	})
}

// MemoryTokenStore keeps the session token in process memory. Useful for
// tests and short-lived tools that do not need persistence.
type MemoryTokenStore struct {
	mu    sync.RWMutex
	token string
}

var _ TokenStore = (*MemoryTokenStore)(nil)

// NewMemoryTokenStore returns an in-memory TokenStore.
func NewMemoryTokenStore() *MemoryTokenStore {
	return &MemoryTokenStore{}
}

func (s *MemoryTokenStore) Save(token string) error {
	s.mu.Lock()
	s.token = token
	s.mu.Unlock()
	return nil
}

func (s *MemoryTokenStore) Load() (string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.token, nil
}

func (s *MemoryTokenStore) Clear() error {
	s.mu.Lock()
	s.token = ""
	s.mu.Unlock()
	return nil
}
