package memory

import (
	"context"
	"sync"
	"time"

	"github.com/parleyhq/parley/core"
	"github.com/parleyhq/parley/logging"
)

// record is the persisted form: ciphertext plus key identifier only.
type record struct {
	blob        []byte
	keyID       string
	lastUpdated time.Time
}

// InMemoryStore is a process-local Store. Records and keys live in maps
// guarded by an RWMutex; each user's key is created lazily on first append.
// Suitable for tests and single-process deployments; use the sqlite
// subpackage for durable storage.
type InMemoryStore struct {
	mu      sync.RWMutex
	records map[string]record
	keys    map[string]Key
	limit   int
	logger  logging.Logger
}

// InMemoryOptions configures an InMemoryStore.
type InMemoryOptions struct {
	// Limit bounds the retained window per user (DefaultLimit if 0).
	Limit  int
	Logger logging.Logger
}

// NewInMemoryStore creates an empty in-memory store.
func NewInMemoryStore(optFns ...func(o *InMemoryOptions)) *InMemoryStore {
	opts := InMemoryOptions{Limit: DefaultLimit, Logger: logging.NoOpLogger{}}
	for _, fn := range optFns {
		fn(&opts)
	}
	if opts.Limit <= 0 {
		opts.Limit = DefaultLimit
	}
	if opts.Logger == nil {
		opts.Logger = logging.NoOpLogger{}
	}
	return &InMemoryStore{
		records: make(map[string]record),
		keys:    make(map[string]Key),
		limit:   opts.Limit,
		logger:  opts.Logger,
	}
}

// AppendTurn implements Store.
func (s *InMemoryStore) AppendTurn(_ context.Context, userID string, messages []core.Message) error {
	if len(messages) == 0 {
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	key, ok := s.keys[userID]
	if !ok {
		var err error
		key, err = NewKey()
		if err != nil {
			return err
		}
		s.keys[userID] = key
		s.logger.Info("memory.key.created", "user_id", userID, "key_id", key.ID)
	}

	history := []core.Message{}
	if rec, exists := s.records[userID]; exists {
		var err error
		history, err = Open(key, userID, rec.blob)
		if err != nil {
			return err
		}
	}

	history = Trim(append(history, messages...), s.limit)

	blob, err := Seal(key, history)
	if err != nil {
		return err
	}

	s.records[userID] = record{blob: blob, keyID: key.ID, lastUpdated: time.Now().UTC()}
	return nil
}

// Recall implements Store. A user without a record gets an empty history.
func (s *InMemoryStore) Recall(_ context.Context, userID string) ([]core.Message, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rec, exists := s.records[userID]
	if !exists {
		return []core.Message{}, nil
	}

	key, ok := s.keys[userID]
	if !ok || key.ID != rec.keyID {
		return nil, &AccessError{UserID: userID, Reason: "no key for record"}
	}

	return Open(key, userID, rec.blob)
}

// RotateKey implements Store. The old record becomes unrecoverable; that is
// the point of the operation.
func (s *InMemoryStore) RotateKey(_ context.Context, userID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	key, err := NewKey()
	if err != nil {
		return err
	}

	old := s.keys[userID]
	s.keys[userID] = key
	delete(s.records, userID)
	s.logger.Warn("memory.key.rotated", "user_id", userID, "old_key_id", old.ID, "new_key_id", key.ID)
	return nil
}
