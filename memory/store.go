package memory

import (
	"context"
	"fmt"

	"github.com/parleyhq/parley/core"
)

// DefaultLimit is the bounded window of messages retained per user.
const DefaultLimit = 20

// AccessError reports a record that could not be decrypted with the user's
// key (wrong key, missing key, or tampered ciphertext). Callers degrade to
// "no memory available" rather than crashing the turn.
type AccessError struct {
	UserID string
	Reason string
}

func (e *AccessError) Error() string {
	return fmt.Sprintf("memory access denied for user %s: %s", e.UserID, e.Reason)
}

// Store is the per-user encrypted conversation memory.
//
// AppendTurn encrypts the serialized batch with the user's key and appends it
// to the persisted record, trimming to the bounded window. Recall returns the
// history oldest-to-newest, or an empty slice when no record exists (not an
// error). RotateKey replaces the user's key, invalidating prior recall by
// design; implementations log the rotation for auditing.
//
// Implementations never mutate the same user's record concurrently; the
// caller holds a per-scope single-writer lock around whole turns.
type Store interface {
	AppendTurn(ctx context.Context, userID string, messages []core.Message) error
	Recall(ctx context.Context, userID string) ([]core.Message, error)
	RotateKey(ctx context.Context, userID string) error
}
