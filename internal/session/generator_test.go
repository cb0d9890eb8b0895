package session

import (
	"errors"
	"sync"
	"testing"
	"time"
)

func newTestGenerator() *Generator {
	return NewGenerator(NewSigner(""), 45*time.Second)
}

func TestCreate(t *testing.T) {
	g := newTestGenerator()
	defer g.Close()

	fixed := time.Date(2026, time.March, 9, 10, 0, 0, 0, time.UTC)
	NowFunc = func() time.Time { return fixed }
	defer func() { NowFunc = time.Now }()

	p, err := g.Create("sub1", 2, "faculty-1", 45*time.Second)
	if err != nil {
		t.Fatalf("Create() error = %v", err)
	}
	if p.IssuedAt != fixed.UnixMilli() {
		t.Errorf("IssuedAt = %d, want %d", p.IssuedAt, fixed.UnixMilli())
	}
	if want := fixed.Add(45 * time.Second).UnixMilli(); p.ExpiresAt != want {
		t.Errorf("ExpiresAt = %d, want %d", p.ExpiresAt, want)
	}
	if len(p.SessionID) < 22 {
		t.Errorf("SessionID %q too short", p.SessionID)
	}
	if !g.signer.Verify(p) {
		t.Error("created payload does not verify")
	}
	if st, ok := g.Lookup(p.SessionID); !ok || st != StateActive {
		t.Errorf("Lookup() = %v, %v, want active, true", st, ok)
	}
}

func TestCreateValidation(t *testing.T) {
	g := newTestGenerator()
	defer g.Close()

	tests := []struct {
		name     string
		subject  string
		period   int
		issuer   string
		validity time.Duration
		wantErr  error
	}{
		{name: "no subject", subject: "", period: 1, issuer: "f", wantErr: ErrInvalidArgs},
		{name: "no issuer", subject: "s", period: 1, issuer: "", wantErr: ErrInvalidArgs},
		{name: "zero period", subject: "s", period: 0, issuer: "f", wantErr: ErrInvalidArgs},
		{name: "negative validity", subject: "s", period: 1, issuer: "f", validity: -time.Second, wantErr: ErrInvalidValidity},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := g.Create(tt.subject, tt.period, tt.issuer, tt.validity); !errors.Is(err, tt.wantErr) {
				t.Errorf("Create() error = %v, want %v", err, tt.wantErr)
			}
		})
	}
}

func TestCreateDefaultValidity(t *testing.T) {
	g := newTestGenerator()
	defer g.Close()
	p, err := g.Create("sub1", 1, "faculty-1", 0)
	if err != nil {
		t.Fatalf("Create() error = %v", err)
	}
	if got := p.ExpiresAt - p.IssuedAt; got != 45000 {
		t.Errorf("validity = %dms, want 45000", got)
	}
}

func TestSessionIDsUnique(t *testing.T) {
	g := newTestGenerator()
	defer g.Close()
	seen := make(map[string]bool)
	for i := 0; i < 100; i++ {
		p, err := g.Create("sub1", 1, "faculty-"+string(rune('a'+i%26)), time.Minute)
		if err != nil {
			t.Fatalf("Create() error = %v", err)
		}
		if seen[p.SessionID] {
			t.Fatalf("duplicate session id %q", p.SessionID)
		}
		seen[p.SessionID] = true
	}
}

func TestRegenerationSupersedesPrevious(t *testing.T) {
	g := newTestGenerator()
	defer g.Close()

	first, err := g.Create("sub1", 2, "faculty-1", time.Minute)
	if err != nil {
		t.Fatalf("Create() error = %v", err)
	}
	second, err := g.Create("sub1", 2, "faculty-1", time.Minute)
	if err != nil {
		t.Fatalf("Create() error = %v", err)
	}

	// First session is rejected immediately, even though still time-valid.
	if st, _ := g.Lookup(first.SessionID); st != StateSuperseded {
		t.Errorf("first session state = %v, want superseded", st)
	}
	if err := g.Consume(first.SessionID); !errors.Is(err, ErrSuperseded) {
		t.Errorf("Consume(first) error = %v, want %v", err, ErrSuperseded)
	}
	if err := g.Consume(second.SessionID); err != nil {
		t.Errorf("Consume(second) error = %v, want nil", err)
	}
}

func TestRegenerateByID(t *testing.T) {
	g := newTestGenerator()
	defer g.Close()

	first, _ := g.Create("sub1", 2, "faculty-1", time.Minute)
	next, err := g.Regenerate(first.SessionID)
	if err != nil {
		t.Fatalf("Regenerate() error = %v", err)
	}
	if next.SubjectID != first.SubjectID || next.Period != first.Period || next.IssuerID != first.IssuerID {
		t.Errorf("Regenerate() slot mismatch: %+v", next)
	}
	if next.SessionID == first.SessionID {
		t.Error("Regenerate() reused the session id")
	}
	if st, _ := g.Lookup(first.SessionID); st != StateSuperseded {
		t.Errorf("first session state = %v, want superseded", st)
	}

	if _, err := g.Regenerate("no-such-session"); !errors.Is(err, ErrUnknownSession) {
		t.Errorf("Regenerate(unknown) error = %v, want %v", err, ErrUnknownSession)
	}
}

func TestDistinctSlotsDoNotSupersede(t *testing.T) {
	g := newTestGenerator()
	defer g.Close()

	a, _ := g.Create("sub1", 2, "faculty-1", time.Minute)
	b, _ := g.Create("sub1", 3, "faculty-1", time.Minute) // different period
	c, _ := g.Create("sub2", 2, "faculty-1", time.Minute) // different subject

	for _, p := range []Payload{a, b, c} {
		if st, _ := g.Lookup(p.SessionID); st != StateActive {
			t.Errorf("session %s state = %v, want active", p.SessionID, st)
		}
	}
}

func TestConsumeIsCompareAndSet(t *testing.T) {
	g := newTestGenerator()
	defer g.Close()

	p, _ := g.Create("sub1", 2, "faculty-1", time.Minute)

	const n = 16
	var wg sync.WaitGroup
	wins := make(chan struct{}, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if g.Consume(p.SessionID) == nil {
				wins <- struct{}{}
			}
		}()
	}
	wg.Wait()
	close(wins)

	won := 0
	for range wins {
		won++
	}
	if won != 1 {
		t.Errorf("Consume() succeeded %d times, want exactly 1", won)
	}
}

func TestConsumeTerminalStates(t *testing.T) {
	g := newTestGenerator()
	defer g.Close()

	p, _ := g.Create("sub1", 2, "faculty-1", time.Minute)
	if err := g.Consume(p.SessionID); err != nil {
		t.Fatalf("first Consume() error = %v", err)
	}
	if err := g.Consume(p.SessionID); !errors.Is(err, ErrConsumed) {
		t.Errorf("second Consume() error = %v, want %v", err, ErrConsumed)
	}
	if err := g.Consume("ghost"); !errors.Is(err, ErrUnknownSession) {
		t.Errorf("Consume(unknown) error = %v, want %v", err, ErrUnknownSession)
	}
}

func TestExpiryTimerMarksSession(t *testing.T) {
	g := newTestGenerator()
	defer g.Close()

	p, _ := g.Create("sub1", 2, "faculty-1", 10*time.Millisecond)
	deadline := time.Now().Add(2 * time.Second)
	for {
		st, _ := g.Lookup(p.SessionID)
		if st == StateExpired {
			break
		}
		if time.Now().After(deadline) {
			t.Fatalf("session state = %v, want expired", st)
		}
		time.Sleep(5 * time.Millisecond)
	}
	if err := g.Consume(p.SessionID); !errors.Is(err, ErrExpired) {
		t.Errorf("Consume(expired) error = %v, want %v", err, ErrExpired)
	}
}

func TestPrune(t *testing.T) {
	g := newTestGenerator()
	defer g.Close()

	p, _ := g.Create("sub1", 2, "faculty-1", time.Minute)
	active, _ := g.Create("sub1", 3, "faculty-1", time.Minute)
	_ = g.Consume(p.SessionID)

	NowFunc = func() time.Time { return time.Now().Add(time.Hour) }
	defer func() { NowFunc = time.Now }()

	if removed := g.Prune(10 * time.Minute); removed != 1 {
		t.Errorf("Prune() = %d, want 1", removed)
	}
	if _, ok := g.Lookup(p.SessionID); ok {
		t.Error("consumed session survived pruning")
	}
	if st, ok := g.Lookup(active.SessionID); !ok || st != StateActive {
		t.Error("active session was pruned")
	}
}
