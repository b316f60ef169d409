package config

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
)

type Config struct {
	Practicum PracticumConfig `json:"practicum"`
	Telegram  TelegramConfig  `json:"telegram"`
	Poll      PollConfig      `json:"poll"`
	Notifier  NotifierConfig  `json:"notifier"`
	Storage   StorageConfig   `json:"storage"`
	Logging   LoggingConfig   `json:"logging"`

	// ShutdownTimeout bounds how long the app waits for the in-flight cycle
	// after a signal. Go duration string, default "15s".
	ShutdownTimeout string `json:"shutdown_timeout,omitempty"`
}

// PracticumConfig points the client at the homework_statuses endpoint.
type PracticumConfig struct {
	Endpoint string `json:"endpoint,omitempty" env:"PRACTICUM_ENDPOINT" validate:"omitempty,url"`
	Token    string `json:"token,omitempty" env:"PRACTICUM_TOKEN" validate:"required"`
	// Timeout is a Go duration string (e.g. "30s").
	Timeout string `json:"timeout,omitempty"`
}

type TelegramConfig struct {
	Token    string `json:"token,omitempty" env:"TELEGRAM_TOKEN" validate:"required"`
	ChatID   ChatID `json:"chat_id,omitempty" env:"TELEGRAM_CHAT_ID" validate:"required"`
	ThreadID int    `json:"thread_id,omitempty" validate:"gte=0"`
	// APIURL overrides the Bot API base URL (self-hosted bot API servers).
	APIURL string `json:"api_url,omitempty" validate:"omitempty,url"`
}

// PollConfig controls the cadence and the starting cursor.
//
// Every accepts a Go duration ("10m"), "HH:MM", "interval:"/"every:"
// prefixed values or a cron expression.
// FromDate is a Unix timestamp; 0 means "start from now".
type PollConfig struct {
	Every    string `json:"every,omitempty" env:"POLL_EVERY"`
	FromDate int64  `json:"from_date,omitempty" validate:"gte=0"`
}

// NotifierConfig controls delivery of chat messages.
//
// All durations are Go duration strings (e.g. "500ms", "10s", "1m").
type NotifierConfig struct {
	RatePerSec    int    `json:"rate_per_sec,omitempty" validate:"gte=0"`
	RetryMax      *int   `json:"retry_max,omitempty" validate:"omitempty,gte=0,lte=10"`
	RetryBase     string `json:"retry_base,omitempty"`
	RetryMaxDelay string `json:"retry_max_delay,omitempty"`
	SendTimeout   string `json:"send_timeout,omitempty"`
	DedupWindow   string `json:"dedup_window,omitempty"`
	PersistDedup  bool   `json:"persist_dedup,omitempty"`
}

// StorageConfig controls the optional persistence layer.
//
// Example:
//
//	"storage": { "driver": "sqlite", "path": "./homeworkbot.db" }
type StorageConfig struct {
	Driver      string `json:"driver,omitempty" validate:"omitempty,oneof=none file sqlite sqlite3"`
	Path        string `json:"path,omitempty"`
	BusyTimeout string `json:"busy_timeout,omitempty"` // Go duration string (sqlite)
}

type LoggingConfig struct {
	Level   string      `json:"level,omitempty" env:"LOG_LEVEL" validate:"omitempty,oneof=trace debug info warn warning error"`
	Console *bool       `json:"console,omitempty"`
	File    LoggingFile `json:"file"`
}

type LoggingFile struct {
	Enabled bool   `json:"enabled"`
	Path    string `json:"path,omitempty"`
}

// ChatID is the destination chat id. Config files may carry it as a JSON
// number or a string; environment variables always provide a string.
type ChatID string

func (c *ChatID) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if len(b) > 0 && b[0] == '"' {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		*c = ChatID(strings.TrimSpace(s))
		return nil
	}
	var n json.Number
	dec := json.NewDecoder(bytes.NewReader(b))
	dec.UseNumber()
	if err := dec.Decode(&n); err != nil {
		return fmt.Errorf("chat_id: %w", err)
	}
	*c = ChatID(n.String())
	return nil
}
