package notification

import (
	"encoding/base64"
	"encoding/json"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDecodeRecoversAllEncodings(t *testing.T) {
	payload := map[string]interface{}{
		"emailAddress": "user@example.com",
		"historyId":    float64(12345),
	}
	raw, err := json.Marshal(payload)
	require.NoError(t, err)

	encodings := map[string]string{
		"standard":        base64.StdEncoding.EncodeToString(raw),
		"url-safe":        base64.URLEncoding.EncodeToString(raw),
		"standard-no-pad": strings.TrimRight(base64.StdEncoding.EncodeToString(raw), "="),
		"url-safe-no-pad": base64.RawURLEncoding.EncodeToString(raw),
	}

	for name, encoded := range encodings {
		decoded, ok := Decode([]byte(encoded))
		assert.True(t, ok, "encoding %s should decode", name)
		assert.Equal(t, payload, decoded, "encoding %s should round-trip", name)
	}
}

func TestDecodeGarbage(t *testing.T) {
	decoded, ok := Decode([]byte("!!! not base64 at all !!!"))
	assert.False(t, ok)
	assert.Nil(t, decoded)
}

func TestDecodeValidBase64NotJSON(t *testing.T) {
	encoded := base64.StdEncoding.EncodeToString([]byte("plain text, not json"))
	decoded, ok := Decode([]byte(encoded))
	assert.False(t, ok)
	assert.Nil(t, decoded)
}

func TestDecodeEmptyPayload(t *testing.T) {
	_, ok := Decode([]byte(""))
	assert.False(t, ok)
}
