package protocol

import (
	"strings"
	"testing"

	"github.com/attunefm/attune/internal/models"
)

func TestNew(t *testing.T) {
	t.Run("encodes payload and stamps time", func(t *testing.T) {
		msg, err := New(TypeSuggestSong, "ABCDEF", "user-1", SuggestSongPayload{
			Track: models.Track{ID: "t1", Title: "Song"},
		})
		if err != nil {
			t.Fatalf("expected no error, got %v", err)
		}

		if msg.Type != TypeSuggestSong {
			t.Errorf("expected type %s, got %s", TypeSuggestSong, msg.Type)
		}
		if msg.Room != "ABCDEF" || msg.From != "user-1" {
			t.Errorf("unexpected envelope: %+v", msg)
		}
		if msg.TS == 0 {
			t.Error("expected timestamp to be set")
		}

		var payload SuggestSongPayload
		if err := msg.DecodePayload(&payload); err != nil {
			t.Fatalf("failed to decode payload: %v", err)
		}
		if payload.Track.ID != "t1" {
			t.Errorf("expected track t1, got %s", payload.Track.ID)
		}
	})

	t.Run("nil payload leaves payload empty", func(t *testing.T) {
		msg, err := New(TypeLeave, "ABCDEF", "user-1", nil)
		if err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		if len(msg.Payload) != 0 {
			t.Errorf("expected empty payload, got %s", msg.Payload)
		}
	})
}

func TestDecodePayload(t *testing.T) {
	t.Run("missing payload is an error", func(t *testing.T) {
		msg := Message{Type: TypeStateSync}

		var payload StateSyncPayload
		err := msg.DecodePayload(&payload)

		if err == nil {
			t.Fatal("expected error for missing payload")
		}
		if !strings.Contains(err.Error(), "no payload") {
			t.Errorf("unexpected error: %v", err)
		}
	})

	t.Run("malformed payload is an error", func(t *testing.T) {
		msg := Message{Type: TypeStateSync, Payload: []byte(`{broken`)}

		var payload StateSyncPayload
		if err := msg.DecodePayload(&payload); err == nil {
			t.Fatal("expected error for malformed payload")
		}
	})
}
