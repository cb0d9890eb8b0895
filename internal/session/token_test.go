package session

import (
	"errors"
	"testing"
)

func validPayload() Payload {
	return Payload{
		SessionID: "c2Vzc2lvbi1pZC1vbmU",
		SubjectID: "sub1",
		Period:    2,
		IssuerID:  "faculty-1",
		IssuedAt:  1700000000000,
		ExpiresAt: 1700000045000,
		Signature: "c2ln",
	}
}

func TestEncodeDecodeRoundTrip(t *testing.T) {
	p := validPayload()
	text, err := Encode(p)
	if err != nil {
		t.Fatalf("Encode() error = %v", err)
	}
	got, err := Decode(text)
	if err != nil {
		t.Fatalf("Decode() error = %v", err)
	}
	if got != p {
		t.Errorf("round trip mismatch: got %+v, want %+v", got, p)
	}
}

func TestDecodeErrors(t *testing.T) {
	tests := []struct {
		name    string
		text    string
		wantErr error
	}{
		{name: "empty", text: "", wantErr: ErrMalformedPayload},
		{name: "not json", text: "lol not json", wantErr: ErrMalformedPayload},
		{name: "json array", text: `[1,2,3]`, wantErr: ErrMalformedPayload},
		{name: "wrong type for period", text: `{"sessionId":"a","subjectId":"s","period":"two","issuerId":"f","issuedAt":1,"expiresAt":2,"signature":"x"}`, wantErr: ErrMalformedPayload},
		{name: "missing sessionId", text: `{"subjectId":"s","period":2,"issuedAt":1,"expiresAt":2,"signature":"x"}`, wantErr: ErrMissingField},
		{name: "missing subjectId", text: `{"sessionId":"a","period":2,"issuedAt":1,"expiresAt":2,"signature":"x"}`, wantErr: ErrMissingField},
		{name: "missing period", text: `{"sessionId":"a","subjectId":"s","issuedAt":1,"expiresAt":2,"signature":"x"}`, wantErr: ErrMissingField},
		{name: "missing issuedAt", text: `{"sessionId":"a","subjectId":"s","period":2,"expiresAt":2,"signature":"x"}`, wantErr: ErrMissingField},
		{name: "missing expiresAt", text: `{"sessionId":"a","subjectId":"s","period":2,"issuedAt":1,"signature":"x"}`, wantErr: ErrMissingField},
		{name: "missing signature", text: `{"sessionId":"a","subjectId":"s","period":2,"issuedAt":1,"expiresAt":2}`, wantErr: ErrMissingField},
		{name: "null field", text: `{"sessionId":null,"subjectId":"s","period":2,"issuedAt":1,"expiresAt":2,"signature":"x"}`, wantErr: ErrMissingField},
		{name: "empty string field", text: `{"sessionId":"","subjectId":"s","period":2,"issuedAt":1,"expiresAt":2,"signature":"x"}`, wantErr: ErrMissingField},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := Decode(tt.text); !errors.Is(err, tt.wantErr) {
				t.Errorf("Decode() error = %v, want %v", err, tt.wantErr)
			}
		})
	}
}

func TestDecodeIgnoresSemantics(t *testing.T) {
	// Decode is structural only: an expired payload with a junk signature
	// must still decode.
	p := validPayload()
	p.ExpiresAt = 1 // long past
	text, _ := Encode(p)
	if _, err := Decode(text); err != nil {
		t.Errorf("Decode() error = %v, want nil", err)
	}
}
