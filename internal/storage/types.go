package storage

import (
	"errors"
	"time"
)

// ErrClosed is returned by a store after Close.
var ErrClosed = errors.New("storage closed")

// Config configures storage.
//
// Driver values:
//   - "file": directory with a rotated audit.jsonl and dedup.json
//   - "sqlite": SQLite database file
//
// If Driver is empty or "none", storage is disabled.
type Config struct {
	Driver      string
	Path        string
	BusyTimeout time.Duration // sqlite only; 0 means default
}

// AuditEntry records one notification delivery outcome.
// Keep it compact and schema-stable.
type AuditEntry struct {
	At       time.Time `json:"at"`
	CycleID  string    `json:"cycle_id,omitempty"`
	Kind     string    `json:"kind"` // "status" | "failure"
	ChatID   int64     `json:"chat_id"`
	ThreadID int       `json:"thread_id,omitempty"`
	Text     string    `json:"text"`
	OK       bool      `json:"ok"`
	Deduped  bool      `json:"deduped,omitempty"`
	Attempts int       `json:"attempts"`
	Error    string    `json:"err,omitempty"`
	TookMS   int64     `json:"took_ms"`
}
