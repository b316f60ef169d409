package app

import (
	"context"
	"errors"

	"homeworkbot/internal/config"
	"homeworkbot/internal/storage"
	logx "homeworkbot/pkg/logx"
)

// ErrStorageDisabled is returned by RecentAudit when storage.driver is none.
var ErrStorageDisabled = errors.New("storage is disabled")

// RecentAudit opens the configured store read-side and returns up to limit
// of the newest delivery records, oldest first. limit <= 0 returns all.
func RecentAudit(ctx context.Context, cfg *config.Config, limit int, log logx.Logger) ([]storage.AuditEntry, error) {
	if err := config.Validate(cfg); err != nil {
		return nil, err
	}
	sc, on, err := mapStorageConfig(cfg)
	if err != nil {
		return nil, err
	}
	if !on {
		return nil, ErrStorageDisabled
	}
	if log.IsZero() {
		log = logx.Nop()
	}
	st, err := storage.Open(sc, log.With(logx.String("comp", "storage")))
	if err != nil {
		return nil, err
	}
	defer st.Close()
	return st.ListAudit(ctx, limit)
}
