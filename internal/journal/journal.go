// Package journal keeps an audit trail of transmission status changes.
package journal

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Direction tells which way a document travelled
type Direction string

const (
	Outbound Direction = "outbound"
	Inbound  Direction = "inbound"
)

// Entry is one recorded transition or import
type Entry struct {
	ID        uuid.UUID `json:"id"`
	RunID     string    `json:"run_id"`
	Profile   string    `json:"profile"`
	Direction Direction `json:"direction"`
	Record    string    `json:"record"`
	From      string    `json:"from,omitempty"`
	To        string    `json:"to,omitempty"`
	Event     string    `json:"event"`
	Message   string    `json:"message,omitempty"`
	At        time.Time `json:"at"`
}

// Recorder persists journal entries
type Recorder interface {
	Record(ctx context.Context, e Entry) error
}

// Reader lists recorded entries
type Reader interface {
	Recent(ctx context.Context, profile string, limit int) ([]Entry, error)
}

// Store records and lists entries
type Store interface {
	Recorder
	Reader
}

// Discard drops every entry
type Discard struct{}

func (Discard) Record(context.Context, Entry) error { return nil }

// Memory keeps entries in process
type Memory struct {
	mu      sync.Mutex
	entries []Entry
}

// NewMemory creates an empty in-memory journal
func NewMemory() *Memory {
	return &Memory{}
}

// Record appends e, filling ID and timestamp when unset
func (m *Memory) Record(_ context.Context, e Entry) error {
	stamp(&e)
	m.mu.Lock()
	m.entries = append(m.entries, e)
	m.mu.Unlock()
	return nil
}

// Entries returns a copy of all entries in insertion order
func (m *Memory) Entries() []Entry {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]Entry, len(m.entries))
	copy(out, m.entries)
	return out
}

// Recent returns up to limit newest entries for profile, newest first
func (m *Memory) Recent(_ context.Context, profile string, limit int) ([]Entry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []Entry
	for i := len(m.entries) - 1; i >= 0 && (limit <= 0 || len(out) < limit); i-- {
		if profile == "" || m.entries[i].Profile == profile {
			out = append(out, m.entries[i])
		}
	}
	return out, nil
}

func stamp(e *Entry) {
	if e.ID == uuid.Nil {
		e.ID = uuid.New()
	}
	if e.At.IsZero() {
		e.At = time.Now().UTC()
	}
}
