package notification

import (
	"encoding/base64"
	"encoding/json"
	"strings"
	"unicode/utf8"

	"github.com/sirupsen/logrus"
)

// Decode decodes a Gmail push payload with multiple fallback strategies.
// Payloads arrive base64 encoded but the variant and padding are not
// consistent across delivery paths, so each combination is tried in a
// fixed order. The first strategy whose output is valid UTF-8 JSON wins.
// Returns nil and false when no strategy succeeds; this is never fatal to
// the notification cycle.
func Decode(payload []byte) (map[string]interface{}, bool) {
	strategies := []func([]byte) ([]byte, error){
		func(b []byte) ([]byte, error) {
			return base64.StdEncoding.DecodeString(string(b))
		},
		func(b []byte) ([]byte, error) {
			return base64.URLEncoding.DecodeString(string(b))
		},
		func(b []byte) ([]byte, error) {
			return base64.StdEncoding.DecodeString(pad(string(b)))
		},
		func(b []byte) ([]byte, error) {
			return base64.URLEncoding.DecodeString(pad(string(b)))
		},
	}

	for _, decode := range strategies {
		raw, err := decode(payload)
		if err != nil {
			continue
		}
		if !utf8.Valid(raw) {
			continue
		}

		var data map[string]interface{}
		if err := json.Unmarshal(raw, &data); err != nil {
			continue
		}
		return data, true
	}

	preview := payload
	if len(preview) > 100 {
		preview = preview[:100]
	}
	logrus.Warnf("All decode strategies failed, raw data: %s", preview)
	return nil, false
}

// pad appends '=' until the length is a multiple of 4
func pad(s string) string {
	if rem := len(s) % 4; rem != 0 {
		return s + strings.Repeat("=", 4-rem)
	}
	return s
}
