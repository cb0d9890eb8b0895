package record

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Record is one accepted attendance mark. Records are append-only: a later
// scan for the same session and student is rejected upstream, never turned
// into an update.
type Record struct {
	ID                    string    `json:"id"`
	StudentID             string    `json:"student_id"`
	SubjectID             string    `json:"subject_id"`
	Date                  string    `json:"date"` // YYYY-MM-DD, UTC
	Period                int       `json:"period"`
	Present               bool      `json:"present"`
	ScanTimestamp         time.Time `json:"scan_timestamp"`
	DeviceID              string    `json:"device_id"`
	NetworkVerifiedAtScan bool      `json:"network_verified_at_scan"`
	SessionID             string    `json:"session_id"`
}

// Sink is the external attendance store. At-least-once delivery is
// acceptable; sinks deduplicate on (student, subject, date, period).
type Sink interface {
	Append(ctx context.Context, rec Record) error
}

// Filter narrows List results. Zero values mean no constraint.
type Filter struct {
	StudentID string
	SubjectID string
	Date      string
	Limit     int
	Offset    int
}

// Lister exposes read access for the history endpoint.
type Lister interface {
	List(ctx context.Context, f Filter) ([]Record, error)
}

// Memory is an in-memory append-only sink for dev and tests.
type Memory struct {
	mu   sync.Mutex
	recs []Record
}

// NewMemory creates an empty sink.
func NewMemory() *Memory {
	return &Memory{}
}

// Append stores a record, assigning an id when absent.
func (m *Memory) Append(ctx context.Context, rec Record) error {
	if rec.ID == "" {
		rec.ID = uuid.NewString()
	}
	m.mu.Lock()
	m.recs = append(m.recs, rec)
	m.mu.Unlock()
	return nil
}

// List returns records matching the filter, newest first.
func (m *Memory) List(ctx context.Context, f Filter) ([]Record, error) {
	limit := f.Limit
	if limit <= 0 {
		limit = 50
	}
	offset := f.Offset
	if offset < 0 {
		offset = 0
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	var matched []Record
	for i := len(m.recs) - 1; i >= 0; i-- {
		r := m.recs[i]
		if f.StudentID != "" && r.StudentID != f.StudentID {
			continue
		}
		if f.SubjectID != "" && r.SubjectID != f.SubjectID {
			continue
		}
		if f.Date != "" && r.Date != f.Date {
			continue
		}
		matched = append(matched, r)
	}
	if offset >= len(matched) {
		return nil, nil
	}
	matched = matched[offset:]
	if len(matched) > limit {
		matched = matched[:limit]
	}
	return matched, nil
}

// Len reports the number of stored records.
func (m *Memory) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.recs)
}
