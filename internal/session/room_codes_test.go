package session

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidateRoomCode(t *testing.T) {
	tests := []struct {
		in   string
		want error
	}{
		{"ABC123", nil},
		{" abc123 ", nil},
		{"ZZZZZZ", nil},
		{"ABC12", ErrInvalidRoomCode},
		{"ABC1234", ErrInvalidRoomCode},
		{"AB C12", ErrInvalidRoomCode},
		{"ÄBC123", ErrInvalidRoomCode},
		{"", ErrInvalidRoomCode},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			err := ValidateRoomCode(NormalizeRoomCode(tt.in))
			if tt.want == nil {
				assert.NoError(t, err)
				return
			}
			assert.ErrorIs(t, err, tt.want)
		})
	}
}

func TestNormalizeName(t *testing.T) {
	name, err := NormalizeName("  Ada  ")
	require.NoError(t, err)
	assert.Equal(t, "Ada", name)

	// limits count characters, not bytes
	name, err = NormalizeName("Zoë")
	require.NoError(t, err)
	assert.Equal(t, "Zoë", name)

	for _, bad := range []string{"", "ab", "   ab   ", strings.Repeat("é", 51)} {
		_, err := NormalizeName(bad)
		assert.ErrorIs(t, err, ErrInvalidName, "%q", bad)
	}
	_, err = NormalizeName(strings.Repeat("é", 50))
	assert.NoError(t, err)
}
