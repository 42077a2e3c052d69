package shared

import (
	"errors"
	"strings"
	"testing"
)

func TestGenerateRoomCode(t *testing.T) {
	t.Run("has the documented length and alphabet", func(t *testing.T) {
		code := GenerateRoomCode()

		if len(code) != RoomCodeLength {
			t.Errorf("expected length %d, got %d", RoomCodeLength, len(code))
		}
		for _, c := range code {
			if !strings.ContainsRune(roomCodeAlphabet, c) {
				t.Errorf("unexpected character %q in code %s", c, code)
			}
		}
	})

	t.Run("codes differ between calls", func(t *testing.T) {
		seen := map[string]bool{}
		for range 20 {
			seen[GenerateRoomCode()] = true
		}
		if len(seen) < 2 {
			t.Error("expected distinct codes across calls")
		}
	})
}

func TestNormalizeRoomCode(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		want    string
		wantErr bool
	}{
		{"already canonical", "ABC234", "ABC234", false},
		{"lowercase input", "abc234", "ABC234", false},
		{"surrounding whitespace", "  abc234\n", "ABC234", false},
		{"too short", "ABC", "", true},
		{"too long", "ABC2345", "", true},
		{"confusable characters rejected", "ABC10O", "", true},
		{"empty", "", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := NormalizeRoomCode(tt.input)

			if tt.wantErr {
				if err == nil {
					t.Fatalf("expected error for %q", tt.input)
				}
				if !errors.Is(err, ErrInvalidRoomCode) {
					t.Errorf("expected ErrInvalidRoomCode, got %v", err)
				}
				return
			}

			if err != nil {
				t.Fatalf("expected no error, got %v", err)
			}
			if got != tt.want {
				t.Errorf("expected %q, got %q", tt.want, got)
			}
		})
	}
}
