package notifier

import (
	"time"

	kit "homeworkbot/internal/transport"
)

type Kind string

const (
	KindStatus  Kind = "status"
	KindFailure Kind = "failure"
)

// Message is one notification.
type Message struct {
	Kind    Kind
	Text    string
	CycleID string
}

// Config controls delivery.
type Config struct {
	Target kit.ChatTarget

	RatePerSec      int
	RetryMax        int
	RetryBase       time.Duration
	RetryMaxDelay   time.Duration
	SendTimeout     time.Duration
	DedupWindow     time.Duration
	DedupMaxEntries int
	PersistDedup    bool
	HistorySize     int
}

type HistoryItem struct {
	At   time.Time
	Kind Kind
	Text string
}

// NotificationEvent is published on the event bus for delivery outcomes.
type NotificationEvent struct {
	Kind     Kind      `json:"kind"`
	CycleID  string    `json:"cycle_id,omitempty"`
	ChatID   int64     `json:"chat_id"`
	ThreadID int       `json:"thread_id,omitempty"`
	Key      string    `json:"key"`
	Attempts int       `json:"attempts"`
	At       time.Time `json:"at"`
	Error    string    `json:"error,omitempty"`
}
