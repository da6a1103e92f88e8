package dispatch

import (
	"encoding/json"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNormalize(t *testing.T) {
	tests := []struct {
		name       string
		raw        string
		digits     string
		kind       AddressKind
		platformID string
	}{
		{"local number gets country code", "3791470016", "553791470016", Individual, "553791470016@c.us"},
		{"full number kept", "553791470016", "553791470016", Individual, "553791470016@c.us"},
		{"formatting stripped", "(37) 9147-0016", "553791470016", Individual, "553791470016@c.us"},
		{"plus sign stripped", "+55 37 9147 0016", "553791470016", Individual, "553791470016@c.us"},
		{"group length", "120363142926103927", "120363142926103927", Group, "120363142926103927@g.us"},
		{"group with suffix", "120363142926103927@g.us", "120363142926103927", Group, "120363142926103927@g.us"},
		{"sixteen digits is a group", "1234567890123456", "1234567890123456", Group, "1234567890123456@g.us"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			addr, err := Normalize(tt.raw)
			require.NoError(t, err)
			assert.Equal(t, tt.digits, addr.Digits)
			assert.Equal(t, tt.kind, addr.Kind)
			assert.Equal(t, tt.platformID, addr.PlatformID)
		})
	}
}

func TestNormalizeRejects(t *testing.T) {
	for _, raw := range []string{"", "abc", "12345", "123456789", "12345678901", "1234567890123", "123456789012345"} {
		t.Run(raw, func(t *testing.T) {
			_, err := Normalize(raw)
			require.Error(t, err)
			assert.Equal(t, InvalidAddress, KindOf(err))
			assert.Contains(t, err.Error(), "DDNNNNNNNN")
		})
	}
}

func TestNormalizeLengthClassification(t *testing.T) {
	for n := 16; n <= 30; n++ {
		addr, err := Normalize(strings.Repeat("7", n))
		require.NoError(t, err)
		assert.Equal(t, Group, addr.Kind)
		assert.True(t, strings.HasSuffix(addr.PlatformID, GroupSuffix))
	}
	for _, n := range []int{10, 12} {
		addr, err := Normalize(strings.Repeat("7", n))
		require.NoError(t, err)
		assert.Equal(t, Individual, addr.Kind)
		assert.True(t, strings.HasSuffix(addr.PlatformID, ContactSuffix))
	}
}

func TestNormalizerCountryCode(t *testing.T) {
	addr, err := Normalizer{CountryCode: "+01"}.Normalize("3791470016")
	require.NoError(t, err)
	assert.Equal(t, "013791470016", addr.Digits)
}

func TestNormalizeIsDeterministic(t *testing.T) {
	a, err := Normalize("37 9147-0016")
	require.NoError(t, err)
	b, err := Normalize("3791470016")
	require.NoError(t, err)
	assert.Equal(t, a, b)
}

func TestParsePlatformID(t *testing.T) {
	addr, ok := ParsePlatformID("120363142926103927@g.us")
	require.True(t, ok)
	assert.Equal(t, Group, addr.Kind)

	addr, ok = ParsePlatformID("553791470016@c.us")
	require.True(t, ok)
	assert.Equal(t, Individual, addr.Kind)
	assert.Equal(t, "553791470016", addr.Digits)

	_, ok = ParsePlatformID("553791470016@s.whatsapp.net")
	assert.False(t, ok)
}

func TestDestinationUnmarshal(t *testing.T) {
	var body struct {
		Destination Destination `json:"destination"`
	}

	require.NoError(t, json.Unmarshal([]byte(`{"destination": 120363142926103927}`), &body))
	assert.Equal(t, "120363142926103927", body.Destination.String())

	require.NoError(t, json.Unmarshal([]byte(`{"destination": " 3791470016 "}`), &body))
	assert.Equal(t, "3791470016", body.Destination.String())

	require.NoError(t, json.Unmarshal([]byte(`{"destination": null}`), &body))
	assert.Empty(t, body.Destination)

	assert.Error(t, json.Unmarshal([]byte(`{"destination": {"a": 1}}`), &body))
}
