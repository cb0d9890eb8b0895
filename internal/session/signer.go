package session

import (
	"crypto/hmac"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/base64"
	"strconv"
	"time"
)

var signSalt = []byte("attend-snap.session.signer")

// Signer computes and verifies the integrity tag on session payloads.
//
// The key is derived from (subjectId, issuerId, issue date), not from a
// server-held secret. That is a deliberate trade: a leaked or observed token
// is only forgeable for that one class session on that one day. It is not
// production-grade secrecy and is documented as such.
type Signer struct {
	salt []byte
}

// NewSigner builds a signer. An empty salt falls back to the package default.
func NewSigner(salt string) *Signer {
	s := signSalt
	if salt != "" {
		s = []byte(salt)
	}
	return &Signer{salt: s}
}

// Sign computes the integrity tag over every payload field except the
// signature itself.
func (s *Signer) Sign(p Payload) string {
	mac := hmac.New(sha256.New, s.deriveKey(p))
	mac.Write(canonical(p))
	return base64.RawURLEncoding.EncodeToString(mac.Sum(nil))
}

// Verify recomputes the tag from the received fields and compares in
// constant time. Malformed or incomplete payloads simply verify false.
func (s *Signer) Verify(p Payload) bool {
	if p.SessionID == "" || p.SubjectID == "" || p.Signature == "" {
		return false
	}
	want := s.Sign(p)
	return subtle.ConstantTimeCompare([]byte(want), []byte(p.Signature)) == 1
}

// deriveKey binds the signing key to the subject, the issuer, and the issue
// day so a captured token's blast radius stays within that class session.
func (s *Signer) deriveKey(p Payload) []byte {
	day := time.UnixMilli(p.IssuedAt).UTC().Format("2006-01-02")
	h := sha256.New()
	h.Write(s.salt)
	h.Write([]byte("|" + p.SubjectID + "|" + p.IssuerID + "|" + day))
	return h.Sum(nil)
}

// canonical renders the signed fields with fixed order and separators so
// verification recomputes byte-identically.
func canonical(p Payload) []byte {
	return []byte(p.SessionID + "|" +
		p.SubjectID + "|" +
		strconv.Itoa(p.Period) + "|" +
		p.IssuerID + "|" +
		strconv.FormatInt(p.IssuedAt, 10) + "|" +
		strconv.FormatInt(p.ExpiresAt, 10))
}
