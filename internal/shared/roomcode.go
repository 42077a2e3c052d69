package shared

import (
	"crypto/rand"
	"fmt"
	"strings"
)

// roomCodeAlphabet excludes easily confused characters (0/O, 1/I/L).
const roomCodeAlphabet = "ABCDEFGHJKMNPQRSTUVWXYZ23456789"

// RoomCodeLength is the number of characters in a generated room code.
const RoomCodeLength = 6

// GenerateRoomCode returns a short human-shareable room code.
func GenerateRoomCode() string {
	buf := make([]byte, RoomCodeLength)
	if _, err := rand.Read(buf); err != nil {
		panic(fmt.Sprintf("failed to read random bytes: %v", err))
	}
	for i, b := range buf {
		buf[i] = roomCodeAlphabet[int(b)%len(roomCodeAlphabet)]
	}
	return string(buf)
}

// NormalizeRoomCode canonicalizes user input of a room code.
// Codes are case-insensitive and may be pasted with surrounding whitespace.
func NormalizeRoomCode(code string) (string, error) {
	code = strings.ToUpper(strings.TrimSpace(code))
	if len(code) != RoomCodeLength {
		return "", fmt.Errorf("%w: %q", ErrInvalidRoomCode, code)
	}
	for _, c := range code {
		if !strings.ContainsRune(roomCodeAlphabet, c) {
			return "", fmt.Errorf("%w: %q", ErrInvalidRoomCode, code)
		}
	}
	return code, nil
}
