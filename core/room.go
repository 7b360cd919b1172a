package core

import "context"

// Participant identifies a member of a room for labeling purposes.
type Participant struct {
	UserID      string `json:"user_id"`
	DisplayName string `json:"display_name"`
}

// RoomConfig is the read-only room configuration consumed from the hosting
// application. An empty ParticipantIDs slice denotes a private thread.
type RoomConfig struct {
	AgentEnabled   bool     `json:"agent_enabled"`
	ParticipantIDs []string `json:"participant_ids,omitempty"`
}

// IsRoom reports whether the config describes a multi-participant room.
func (rc RoomConfig) IsRoom() bool { return len(rc.ParticipantIDs) > 0 }

// MessageStore is the persistence collaborator owned by the hosting
// application. RecentMessages returns at most limit entries in chronological
// order (oldest first).
type MessageStore interface {
	RecentMessages(ctx context.Context, scopeID string, limit int) ([]Message, error)
	SaveMessage(ctx context.Context, scopeID string, msg Message) (Message, error)
}

// UserDirectory resolves user identifiers to display metadata.
type UserDirectory interface {
	User(ctx context.Context, userID string) (Participant, error)
}
