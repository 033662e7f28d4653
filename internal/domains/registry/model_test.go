package registry

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDeriveTokenID(t *testing.T) {
	// Deterministic: the same username always derives the same id.
	assert.Equal(t, DeriveTokenID("alice"), DeriveTokenID("alice"))
	assert.NotEqual(t, DeriveTokenID("alice"), DeriveTokenID("alicf"))

	// Well-formed: 0x plus 64 lowercase hex chars.
	id := DeriveTokenID("alice")
	parsed, err := ParseTokenID(string(id))
	require.NoError(t, err)
	assert.Equal(t, id, parsed)
}

func TestParseAddress(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		want    Address
		wantErr bool
	}{
		{name: "canonical lowercase", input: "0x00000000000000000000000000000000000000a1", want: "0x00000000000000000000000000000000000000a1"},
		{name: "mixed case is lowered", input: "0x00000000000000000000000000000000000000A1", want: "0x00000000000000000000000000000000000000a1"},
		{name: "missing prefix", input: "00000000000000000000000000000000000000a1", wantErr: true},
		{name: "too short", input: "0xa1", wantErr: true},
		{name: "non-hex", input: "0x00000000000000000000000000000000000000zz", wantErr: true},
		{name: "empty", input: "", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseAddress(tt.input)
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrInvalidAddress)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestAddressIsZero(t *testing.T) {
	assert.True(t, ZeroAddress.IsZero())
	assert.True(t, Address("").IsZero())
	assert.False(t, Address("0x00000000000000000000000000000000000000a1").IsZero())
}

func TestParseTokenID(t *testing.T) {
	valid := string(DeriveTokenID("alice"))

	_, err := ParseTokenID(valid)
	assert.NoError(t, err)

	// Uppercase hex is canonicalized.
	upper, err := ParseTokenID("0xABCDEF" + valid[8:])
	require.NoError(t, err)
	assert.Equal(t, "0xabcdef"+valid[8:], string(upper))

	_, err = ParseTokenID("0x1234")
	assert.ErrorIs(t, err, ErrInvalidTokenID)
	_, err = ParseTokenID("")
	assert.ErrorIs(t, err, ErrInvalidTokenID)
}

func TestUsernamePattern(t *testing.T) {
	valid := []string{"abc", "alice", "a1b2c3", "user_name", "user-name", "0leading"}
	for _, username := range valid {
		assert.True(t, UsernamePattern.MatchString(username), username)
	}

	invalid := []string{"", "ab", "Alice", "has space", "_leading", "-leading", "UPPER", "emoji😀", "waytoolongusernamethatgoespast32chars"}
	for _, username := range invalid {
		assert.False(t, UsernamePattern.MatchString(username), username)
	}
}

func TestIdentityExpiredAt(t *testing.T) {
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

	perpetual := &Identity{}
	assert.False(t, perpetual.ExpiredAt(now))

	past := now.Add(-time.Hour)
	expired := &Identity{ExpiresAt: &past}
	assert.True(t, expired.ExpiredAt(now))

	future := now.Add(time.Hour)
	live := &Identity{ExpiresAt: &future}
	assert.False(t, live.ExpiredAt(now))

	// Exactly at the boundary the binding is still live.
	boundary := &Identity{ExpiresAt: &now}
	assert.False(t, boundary.ExpiredAt(now))
}
