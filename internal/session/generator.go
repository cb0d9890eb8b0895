package session

import (
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"
	"strconv"
	"sync"
	"time"
)

// NowFunc returns the current time; mockable in tests.
var NowFunc = time.Now

var (
	ErrGeneration      = errors.New("session id generation failed")
	ErrInvalidArgs     = errors.New("subject, period and issuer required")
	ErrInvalidValidity = errors.New("validity must be positive")
	ErrUnknownSession  = errors.New("unknown session")
	ErrConsumed        = errors.New("session already consumed")
	ErrSuperseded      = errors.New("session superseded")
	ErrExpired         = errors.New("session expired")
)

// State tracks a session through its lifecycle. Every state but Active is
// terminal.
type State int

const (
	StateActive State = iota
	StateConsumed
	StateExpired
	StateSuperseded
)

func (s State) String() string {
	switch s {
	case StateActive:
		return "active"
	case StateConsumed:
		return "consumed"
	case StateExpired:
		return "expired"
	case StateSuperseded:
		return "superseded"
	}
	return "unknown"
}

// Session is an issued, signed, time-boxed attendance invitation. The
// generator owns it for its whole lifetime; callers only see the payload.
type Session struct {
	Payload
	state State
	timer *time.Timer
}

// Generator issues sessions and is the arena of record for their states.
// All state transitions happen under its lock; Consume in particular is a
// compare-and-set so duplicate scans of the same code cannot both win.
type Generator struct {
	signer          *Signer
	defaultValidity time.Duration

	mu          sync.Mutex
	sessions    map[string]*Session
	outstanding map[string]string // slot key -> active session id
}

// NewGenerator builds a generator. defaultValidity <= 0 falls back to 45s.
func NewGenerator(signer *Signer, defaultValidity time.Duration) *Generator {
	if defaultValidity <= 0 {
		defaultValidity = 45 * time.Second
	}
	return &Generator{
		signer:          signer,
		defaultValidity: defaultValidity,
		sessions:        make(map[string]*Session),
		outstanding:     make(map[string]string),
	}
}

// Create issues a fresh session for (subject, period, issuer). Any still
// outstanding session for the same slot is superseded immediately, so a
// regenerated code invalidates the previous one even before it expires.
func (g *Generator) Create(subjectID string, period int, issuerID string, validity time.Duration) (Payload, error) {
	if subjectID == "" || issuerID == "" || period <= 0 {
		return Payload{}, ErrInvalidArgs
	}
	if validity == 0 {
		validity = g.defaultValidity
	}
	if validity < 0 {
		return Payload{}, ErrInvalidValidity
	}

	id, err := newSessionID()
	if err != nil {
		return Payload{}, err
	}

	now := NowFunc()
	p := Payload{
		SessionID: id,
		SubjectID: subjectID,
		Period:    period,
		IssuerID:  issuerID,
		IssuedAt:  now.UnixMilli(),
		ExpiresAt: now.Add(validity).UnixMilli(),
	}
	p.Signature = g.signer.Sign(p)

	s := &Session{Payload: p, state: StateActive}

	g.mu.Lock()
	slot := slotKey(subjectID, period, issuerID)
	if prevID, ok := g.outstanding[slot]; ok {
		if prev, ok := g.sessions[prevID]; ok && prev.state == StateActive {
			prev.state = StateSuperseded
			stopTimer(prev)
		}
	}
	g.sessions[id] = s
	g.outstanding[slot] = id
	s.timer = time.AfterFunc(validity, func() { g.expire(id) })
	g.mu.Unlock()

	return p, nil
}

// Regenerate supersedes an existing session and issues a new one for the
// same slot with the same validity window.
func (g *Generator) Regenerate(sessionID string) (Payload, error) {
	g.mu.Lock()
	s, ok := g.sessions[sessionID]
	g.mu.Unlock()
	if !ok {
		return Payload{}, ErrUnknownSession
	}
	validity := time.Duration(s.ExpiresAt-s.IssuedAt) * time.Millisecond
	return g.Create(s.SubjectID, s.Period, s.IssuerID, validity)
}

// Consume transitions a session Active -> Consumed. It is the replay
// barrier: exactly one caller ever gets a nil error for a given id.
func (g *Generator) Consume(sessionID string) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	s, ok := g.sessions[sessionID]
	if !ok {
		return ErrUnknownSession
	}
	switch s.state {
	case StateActive:
		s.state = StateConsumed
		stopTimer(s)
		delete(g.outstanding, slotKey(s.SubjectID, s.Period, s.IssuerID))
		return nil
	case StateConsumed:
		return ErrConsumed
	case StateSuperseded:
		return ErrSuperseded
	default:
		return ErrExpired
	}
}

// Lookup reports the current state of a session id.
func (g *Generator) Lookup(sessionID string) (State, bool) {
	g.mu.Lock()
	defer g.mu.Unlock()
	s, ok := g.sessions[sessionID]
	if !ok {
		return 0, false
	}
	return s.state, true
}

// Prune drops terminal sessions whose expiry is older than the retention
// window. Replay checks only need a consumed id for as long as its token
// could still be floating around.
func (g *Generator) Prune(retention time.Duration) int {
	cutoff := NowFunc().Add(-retention).UnixMilli()
	g.mu.Lock()
	defer g.mu.Unlock()
	removed := 0
	for id, s := range g.sessions {
		if s.state != StateActive && s.ExpiresAt < cutoff {
			delete(g.sessions, id)
			removed++
		}
	}
	return removed
}

// Close cancels every pending expiry timer.
func (g *Generator) Close() {
	g.mu.Lock()
	defer g.mu.Unlock()
	for _, s := range g.sessions {
		stopTimer(s)
	}
}

func (g *Generator) expire(id string) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if s, ok := g.sessions[id]; ok && s.state == StateActive {
		s.state = StateExpired
		delete(g.outstanding, slotKey(s.SubjectID, s.Period, s.IssuerID))
	}
}

func stopTimer(s *Session) {
	if s.timer != nil {
		s.timer.Stop()
	}
}

func slotKey(subjectID string, period int, issuerID string) string {
	return subjectID + "|" + strconv.Itoa(period) + "|" + issuerID
}

// newSessionID draws 18 bytes from the system entropy source. Session ids
// must be unguessable, never counters.
func newSessionID() (string, error) {
	buf := make([]byte, 18)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("%w: %v", ErrGeneration, err)
	}
	return base64.RawURLEncoding.EncodeToString(buf), nil
}
