package session

import (
	"strings"
	"unicode/utf8"
)

const RoomCodeLength = 6

const (
	minNameLength = 3
	maxNameLength = 50
)

func NormalizeRoomCode(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}

// ValidateRoomCode expects a normalized code.
func ValidateRoomCode(code string) error {
	if len(code) != RoomCodeLength {
		return ErrInvalidRoomCode
	}
	for _, ch := range code {
		if (ch < 'A' || ch > 'Z') && (ch < '0' || ch > '9') {
			return ErrInvalidRoomCode
		}
	}
	return nil
}

func NormalizeName(name string) (string, error) {
	name = strings.TrimSpace(name)
	n := utf8.RuneCountInString(name)
	if n < minNameLength || n > maxNameLength {
		return "", ErrInvalidName
	}
	return name, nil
}
