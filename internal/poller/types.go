package poller

import "time"

type Outcome string

const (
	OutcomeNotified  Outcome = "notified"
	OutcomeNoUpdates Outcome = "no_updates"
	OutcomeFailed    Outcome = "failed"
)

// CycleResult describes one finished cycle.
type CycleResult struct {
	ID           string
	Outcome      Outcome
	Message      string
	CursorBefore int64
	CursorAfter  int64
	Started      time.Time
	Took         time.Duration
	Err          error
}

// CycleEvent is published on the bus after every cycle.
type CycleEvent struct {
	ID      string        `json:"id"`
	Outcome Outcome       `json:"outcome"`
	Cursor  int64         `json:"cursor"`
	Took    time.Duration `json:"took"`
	Error   string        `json:"error,omitempty"`
}
