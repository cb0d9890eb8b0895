package session

import (
	"encoding/json"
	"errors"
	"fmt"
)

// Payload is the wire form of an attendance session, carried as the text
// inside the rendered QR code. Field order is fixed and doubles as the
// canonical key order of the encoded form.
type Payload struct {
	SessionID string `json:"sessionId"`
	SubjectID string `json:"subjectId"`
	Period    int    `json:"period"`
	IssuerID  string `json:"issuerId"`
	IssuedAt  int64  `json:"issuedAt"`  // unix milliseconds
	ExpiresAt int64  `json:"expiresAt"` // unix milliseconds
	Signature string `json:"signature"`
}

var (
	ErrMalformedPayload = errors.New("malformed payload")
	ErrMissingField     = errors.New("missing field")
)

// requiredFields are the keys a decodable token must carry.
var requiredFields = []string{"sessionId", "subjectId", "period", "issuedAt", "expiresAt", "signature"}

// Encode serializes a payload to its transport text form.
func Encode(p Payload) (string, error) {
	b, err := json.Marshal(p)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrMalformedPayload, err)
	}
	return string(b), nil
}

// Decode parses token text back into a payload. It is purely structural:
// expiry and signature are checked by the caller, not here.
func Decode(text string) (Payload, error) {
	var keys map[string]json.RawMessage
	if err := json.Unmarshal([]byte(text), &keys); err != nil {
		return Payload{}, fmt.Errorf("%w: not valid JSON", ErrMalformedPayload)
	}
	for _, f := range requiredFields {
		raw, ok := keys[f]
		if !ok || string(raw) == "null" || string(raw) == `""` {
			return Payload{}, fmt.Errorf("%w: %s", ErrMissingField, f)
		}
	}
	var p Payload
	if err := json.Unmarshal([]byte(text), &p); err != nil {
		return Payload{}, fmt.Errorf("%w: %v", ErrMalformedPayload, err)
	}
	return p, nil
}
