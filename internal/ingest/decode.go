package ingest

import (
	"encoding/base64"
	"encoding/json"
	"errors"
	"strings"
)

// ParseDataURI decodes the base64 body of a data URI. Everything up to the
// first comma is treated as the header and ignored; a string without a comma
// is decoded whole. Padded and unpadded encodings are accepted.
func ParseDataURI(s string) ([]byte, error) {
	if idx := strings.IndexByte(s, ','); idx >= 0 {
		s = s[idx+1:]
	}
	s = strings.TrimSpace(s)
	if s == "" {
		return nil, &DecodeFailure{Err: errors.New("empty payload")}
	}
	data, err := base64.StdEncoding.DecodeString(s)
	if err == nil {
		return data, nil
	}
	data, rawErr := base64.RawStdEncoding.DecodeString(strings.TrimRight(s, "="))
	if rawErr != nil {
		return nil, &DecodeFailure{Err: err}
	}
	return data, nil
}

// DecodePayload accepts a JSON string holding a data URI or bare base64 data.
// Any other JSON value is rejected.
func DecodePayload(raw json.RawMessage) ([]byte, error) {
	var s string
	if err := json.Unmarshal(raw, &s); err != nil {
		return nil, &DecodeFailure{Err: err}
	}
	return ParseDataURI(s)
}
