package app

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"homeworkbot/internal/config"
	"homeworkbot/internal/storage"
	logx "homeworkbot/pkg/logx"
)

func TestRecentAuditReadsConfiguredStore(t *testing.T) {
	cfg := testConfig(t, "http://127.0.0.1:1", "http://127.0.0.1:1")
	sc, _, err := mapStorageConfig(cfg)
	if err != nil {
		t.Fatal(err)
	}
	st, err := storage.Open(sc, logx.Nop())
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	ctx := context.Background()
	for _, text := range []string{"a", "b", "c"} {
		if err := st.AppendAudit(ctx, storage.AuditEntry{Kind: "status", ChatID: 42, Text: text, OK: true, Attempts: 1}); err != nil {
			t.Fatalf("AppendAudit: %v", err)
		}
	}
	if err := st.Close(); err != nil {
		t.Fatal(err)
	}

	got, err := RecentAudit(ctx, cfg, 2, logx.Nop())
	if err != nil {
		t.Fatalf("RecentAudit: %v", err)
	}
	if len(got) != 2 || got[0].Text != "b" || got[1].Text != "c" {
		t.Fatalf("entries = %+v", got)
	}
}

func TestRecentAuditStorageDisabled(t *testing.T) {
	cfg := testConfig(t, "http://127.0.0.1:1", "http://127.0.0.1:1")
	cfg.Storage = config.StorageConfig{Driver: "none", Path: filepath.Join(t.TempDir(), "x")}
	if _, err := RecentAudit(context.Background(), cfg, 0, logx.Logger{}); !errors.Is(err, ErrStorageDisabled) {
		t.Fatalf("RecentAudit = %v, want ErrStorageDisabled", err)
	}
}
