package memory

import (
	"crypto/rand"
	"encoding/json"

	"golang.org/x/crypto/chacha20poly1305"

	"github.com/parleyhq/parley/core"
)

// Key is a per-user symmetric key. ID travels with every record so a store
// can detect recall against a rotated or foreign key before attempting to
// decrypt.
type Key struct {
	ID    string
	Bytes []byte
}

// NewKey generates a fresh XChaCha20-Poly1305 key.
func NewKey() (Key, error) {
	bytes := make([]byte, chacha20poly1305.KeySize)
	if _, err := rand.Read(bytes); err != nil {
		return Key{}, err
	}
	return Key{ID: core.NewID(), Bytes: bytes}, nil
}

// Seal serializes the messages and encrypts them with the key. The random
// nonce is prepended to the returned ciphertext.
func Seal(key Key, messages []core.Message) ([]byte, error) {
	plaintext, err := json.Marshal(messages)
	if err != nil {
		return nil, err
	}

	aead, err := chacha20poly1305.NewX(key.Bytes)
	if err != nil {
		return nil, err
	}

	nonce := make([]byte, aead.NonceSize())
	if _, err := rand.Read(nonce); err != nil {
		return nil, err
	}

	return aead.Seal(nonce, nonce, plaintext, nil), nil
}

// Open decrypts a sealed record. Any failure (short blob, wrong key,
// tampering) surfaces as *AccessError attributed to userID.
func Open(key Key, userID string, blob []byte) ([]core.Message, error) {
	aead, err := chacha20poly1305.NewX(key.Bytes)
	if err != nil {
		return nil, &AccessError{UserID: userID, Reason: "invalid key material"}
	}

	if len(blob) < aead.NonceSize() {
		return nil, &AccessError{UserID: userID, Reason: "ciphertext too short"}
	}

	nonce, ciphertext := blob[:aead.NonceSize()], blob[aead.NonceSize():]
	plaintext, err := aead.Open(nil, nonce, ciphertext, nil)
	if err != nil {
		return nil, &AccessError{UserID: userID, Reason: "decryption failed"}
	}

	var messages []core.Message
	if err := json.Unmarshal(plaintext, &messages); err != nil {
		return nil, &AccessError{UserID: userID, Reason: "corrupt record"}
	}

	return messages, nil
}

// Trim keeps the most recent limit messages, dropping oldest first.
func Trim(messages []core.Message, limit int) []core.Message {
	if limit <= 0 || len(messages) <= limit {
		return messages
	}
	return messages[len(messages)-limit:]
}
