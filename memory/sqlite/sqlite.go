// Package sqlite provides a durable memory.Store backed by SQLite. Records
// are stored as opaque ciphertext with their key identifier; keys live in a
// separate table so a wiped key renders the record unrecoverable.
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	_ "modernc.org/sqlite"

	"github.com/parleyhq/parley/core"
	"github.com/parleyhq/parley/logging"
	"github.com/parleyhq/parley/memory"
)

const schemaDDL = `
CREATE TABLE IF NOT EXISTS memory_keys (
	user_id    TEXT PRIMARY KEY,
	key_id     TEXT NOT NULL,
	key_bytes  BLOB NOT NULL,
	created_at TIMESTAMP NOT NULL
);
CREATE TABLE IF NOT EXISTS memory_records (
	user_id      TEXT PRIMARY KEY,
	key_id       TEXT NOT NULL,
	blob         BLOB NOT NULL,
	last_updated TIMESTAMP NOT NULL
);`

// Store is a SQLite-backed memory.Store.
type Store struct {
	db     *sql.DB
	limit  int
	logger logging.Logger
}

// Options configures a Store.
type Options struct {
	// Limit bounds the retained window per user (memory.DefaultLimit if 0).
	Limit  int
	Logger logging.Logger
}

// Open opens (creating if needed) a store at the given SQLite path.
func Open(path string, optFns ...func(o *Options)) (*Store, error) {
	opts := Options{Limit: memory.DefaultLimit, Logger: logging.NoOpLogger{}}
	for _, fn := range optFns {
		fn(&opts)
	}
	if opts.Limit <= 0 {
		opts.Limit = memory.DefaultLimit
	}
	if opts.Logger == nil {
		opts.Logger = logging.NoOpLogger{}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("opening memory db: %w", err)
	}
	if _, err := db.Exec(schemaDDL); err != nil {
		db.Close()
		return nil, fmt.Errorf("initializing memory schema: %w", err)
	}

	return &Store{db: db, limit: opts.Limit, logger: opts.Logger}, nil
}

// Close releases the underlying database handle.
func (s *Store) Close() error { return s.db.Close() }

// AppendTurn implements memory.Store.
func (s *Store) AppendTurn(ctx context.Context, userID string, messages []core.Message) error {
	if len(messages) == 0 {
		return nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	key, err := s.keyTx(ctx, tx, userID)
	if err != nil {
		return err
	}

	history := []core.Message{}
	var blob []byte
	var keyID string
	err = tx.QueryRowContext(ctx,
		`SELECT key_id, blob FROM memory_records WHERE user_id = ?`, userID,
	).Scan(&keyID, &blob)
	switch {
	case err == nil:
		if keyID != key.ID {
			return &memory.AccessError{UserID: userID, Reason: "record sealed under rotated key"}
		}
		history, err = memory.Open(key, userID, blob)
		if err != nil {
			return err
		}
	case errors.Is(err, sql.ErrNoRows):
		// first turn for this user
	default:
		return err
	}

	history = memory.Trim(append(history, messages...), s.limit)

	sealed, err := memory.Seal(key, history)
	if err != nil {
		return err
	}

	if _, err := tx.ExecContext(ctx,
		`INSERT INTO memory_records (user_id, key_id, blob, last_updated)
		 VALUES (?, ?, ?, ?)
		 ON CONFLICT(user_id) DO UPDATE SET key_id = excluded.key_id,
		   blob = excluded.blob, last_updated = excluded.last_updated`,
		userID, key.ID, sealed, time.Now().UTC(),
	); err != nil {
		return err
	}

	return tx.Commit()
}

// Recall implements memory.Store.
func (s *Store) Recall(ctx context.Context, userID string) ([]core.Message, error) {
	var keyID string
	var blob []byte
	err := s.db.QueryRowContext(ctx,
		`SELECT key_id, blob FROM memory_records WHERE user_id = ?`, userID,
	).Scan(&keyID, &blob)
	if errors.Is(err, sql.ErrNoRows) {
		return []core.Message{}, nil
	}
	if err != nil {
		return nil, err
	}

	key, err := s.key(ctx, userID)
	if err != nil {
		return nil, err
	}
	if key.ID != keyID {
		return nil, &memory.AccessError{UserID: userID, Reason: "record sealed under rotated key"}
	}

	return memory.Open(key, userID, blob)
}

// RotateKey implements memory.Store. Prior records are deleted; even if one
// survived it would be sealed under the retired key.
func (s *Store) RotateKey(ctx context.Context, userID string) error {
	key, err := memory.NewKey()
	if err != nil {
		return err
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx,
		`INSERT INTO memory_keys (user_id, key_id, key_bytes, created_at)
		 VALUES (?, ?, ?, ?)
		 ON CONFLICT(user_id) DO UPDATE SET key_id = excluded.key_id,
		   key_bytes = excluded.key_bytes, created_at = excluded.created_at`,
		userID, key.ID, key.Bytes, time.Now().UTC(),
	); err != nil {
		return err
	}
	if _, err := tx.ExecContext(ctx,
		`DELETE FROM memory_records WHERE user_id = ?`, userID,
	); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return err
	}

	s.logger.Warn("memory.key.rotated", "user_id", userID, "new_key_id", key.ID)
	return nil
}

// key loads the user's key outside a transaction.
func (s *Store) key(ctx context.Context, userID string) (memory.Key, error) {
	var key memory.Key
	err := s.db.QueryRowContext(ctx,
		`SELECT key_id, key_bytes FROM memory_keys WHERE user_id = ?`, userID,
	).Scan(&key.ID, &key.Bytes)
	if errors.Is(err, sql.ErrNoRows) {
		return memory.Key{}, &memory.AccessError{UserID: userID, Reason: "no key for record"}
	}
	if err != nil {
		return memory.Key{}, err
	}
	return key, nil
}

// keyTx loads (or lazily creates) the user's key inside a transaction.
func (s *Store) keyTx(ctx context.Context, tx *sql.Tx, userID string) (memory.Key, error) {
	var key memory.Key
	err := tx.QueryRowContext(ctx,
		`SELECT key_id, key_bytes FROM memory_keys WHERE user_id = ?`, userID,
	).Scan(&key.ID, &key.Bytes)
	if err == nil {
		return key, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return memory.Key{}, err
	}

	key, err = memory.NewKey()
	if err != nil {
		return memory.Key{}, err
	}
	if _, err := tx.ExecContext(ctx,
		`INSERT INTO memory_keys (user_id, key_id, key_bytes, created_at) VALUES (?, ?, ?, ?)`,
		userID, key.ID, key.Bytes, time.Now().UTC(),
	); err != nil {
		return memory.Key{}, err
	}
	s.logger.Info("memory.key.created", "user_id", userID, "key_id", key.ID)
	return key, nil
}
