package storage

import (
	"context"
	"fmt"
	"strings"
	"time"

	logx "homeworkbot/pkg/logx"
)

// Store persists the notifier's delivery audit and dedup keys.
type Store interface {
	AppendAudit(ctx context.Context, e AuditEntry) error
	// ListAudit returns up to limit most recent entries, oldest first.
	// limit <= 0 returns everything.
	ListAudit(ctx context.Context, limit int) ([]AuditEntry, error)
	PutDedup(ctx context.Context, key string, until time.Time) error
	// GetDedup reports the suppression deadline stored for key.
	GetDedup(ctx context.Context, key string) (until time.Time, ok bool, err error)
	Close() error
}

// Open returns (nil, nil) when the driver is empty or "none".
func Open(cfg Config, log logx.Logger) (Store, error) {
	if log.IsZero() {
		log = logx.Nop()
	}
	switch driver := strings.ToLower(strings.TrimSpace(cfg.Driver)); driver {
	case "", "none":
		return nil, nil
	case "file":
		return openFile(cfg, log)
	case "sqlite", "sqlite3":
		return openSQLite(cfg, log)
	default:
		return nil, fmt.Errorf("unknown storage driver: %q", cfg.Driver)
	}
}
