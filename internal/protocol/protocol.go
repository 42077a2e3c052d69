// Package protocol defines the JSON wire format for the listen-together
// relay. Messages are single JSON texts over the websocket connection.
package protocol

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/attunefm/attune/internal/models"
)

// Message type constants for the room protocol wire format.
const (
	TypeCreateRoom         = "create_room"
	TypeRoomCreated        = "room_created"
	TypeJoinRequest        = "join_request"
	TypeJoinRequested      = "join_requested"
	TypeJoinDecision       = "join_decision"
	TypeJoinResult         = "join_result"
	TypeStateSync          = "state_sync"
	TypeResyncRequest      = "resync_request"
	TypeSuggestSong        = "suggest_song"
	TypeSuggestionDecision = "suggestion_decision"
	TypeParticipants       = "participants"
	TypeLeave              = "leave"
	TypeEndSession         = "end_session"
	TypeError              = "error"
)

// Error codes carried by ErrorPayload.
const (
	CodeRoomNotFound = "room_not_found"
	CodeRoomFull     = "room_full"
	CodeNotHost      = "not_host"
	CodeBadMessage   = "bad_message"
	CodeRateLimited  = "rate_limited"
)

// Message is the JSON wire format for room protocol messages.
type Message struct {
	Type    string          `json:"type"`
	Room    string          `json:"room,omitempty"`
	From    string          `json:"from,omitempty"`
	Payload json.RawMessage `json:"payload,omitempty"`
	TS      int64           `json:"ts,omitempty"`
}

// New builds a message with an encoded payload and current timestamp.
func New(msgType, room, from string, payload any) (Message, error) {
	msg := Message{Type: msgType, Room: room, From: from, TS: NowMillis()}
	if payload != nil {
		raw, err := json.Marshal(payload)
		if err != nil {
			return Message{}, fmt.Errorf("failed to encode %s payload: %w", msgType, err)
		}
		msg.Payload = raw
	}
	return msg, nil
}

// DecodePayload unmarshals the message payload into out.
func (m Message) DecodePayload(out any) error {
	if len(m.Payload) == 0 {
		return fmt.Errorf("%s message has no payload", m.Type)
	}
	if err := json.Unmarshal(m.Payload, out); err != nil {
		return fmt.Errorf("failed to decode %s payload: %w", m.Type, err)
	}
	return nil
}

// CreateRoomPayload opens a new room with the sender as host.
type CreateRoomPayload struct {
	Username string `json:"username"`
}

// RoomCreatedPayload acknowledges room creation with the shareable code.
type RoomCreatedPayload struct {
	RoomCode string `json:"room_code"`
	UserID   string `json:"user_id"`
}

// JoinRequestPayload asks to enter a room; the relay forwards it to the host.
type JoinRequestPayload struct {
	RoomCode string `json:"room_code"`
	Username string `json:"username"`
}

// JoinRequestedPayload notifies the host of a pending join.
type JoinRequestedPayload struct {
	UserID      string `json:"user_id"`
	DisplayName string `json:"display_name"`
}

// JoinDecisionPayload carries the host's approve/reject verdict.
type JoinDecisionPayload struct {
	UserID  string `json:"user_id"`
	Approve bool   `json:"approve"`
}

// JoinResultPayload tells the requester how the join ended.
type JoinResultPayload struct {
	Approved bool        `json:"approved"`
	Reason   string      `json:"reason,omitempty"`
	UserID   string      `json:"user_id,omitempty"`
	Room     models.Room `json:"room,omitempty"`
}

// StateSyncPayload replaces a guest's shadow state wholesale.
// Sequence numbers increase monotonically; stale or duplicate sequences are
// dropped by the receiver.
type StateSyncPayload struct {
	Sequence uint64               `json:"sequence"`
	Queue    models.QueueSnapshot `json:"queue"`
	State    models.PlaybackState `json:"state"`
}

// ResyncRequestPayload asks the host for a fresh full state_sync after a
// sequence desync.
type ResyncRequestPayload struct {
	LastSequence uint64 `json:"last_sequence"`
}

// SuggestSongPayload proposes a track for the host's queue.
type SuggestSongPayload struct {
	Track models.Track `json:"track"`
}

// SuggestionDecisionPayload resolves a pending suggestion.
type SuggestionDecisionPayload struct {
	SuggestionID string `json:"suggestion_id"`
	Accept       bool   `json:"accept"`
}

// ParticipantsPayload is broadcast when room membership changes.
type ParticipantsPayload struct {
	Participants []models.Participant `json:"participants"`
}

// LeavePayload announces a participant leaving the room.
type LeavePayload struct {
	UserID string `json:"user_id"`
}

// ErrorPayload is sent when a request cannot be served.
type ErrorPayload struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// NowMillis returns the current wall-clock time in milliseconds.
func NowMillis() int64 { return time.Now().UnixMilli() }
