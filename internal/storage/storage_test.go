package storage

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	logx "homeworkbot/pkg/logx"
)

func TestOpenDisabled(t *testing.T) {
	for _, driver := range []string{"", "none", " NONE "} {
		st, err := Open(Config{Driver: driver}, logx.Nop())
		if err != nil || st != nil {
			t.Fatalf("Open(%q) = %v, %v; want nil, nil", driver, st, err)
		}
	}
	if _, err := Open(Config{Driver: "redis"}, logx.Nop()); err == nil {
		t.Fatal("expected error for unknown driver")
	}
}

func TestStoreDrivers(t *testing.T) {
	drivers := map[string]string{
		"file":   "bot.store",
		"sqlite": "bot.db",
	}
	for driver, name := range drivers {
		driver, name := driver, name
		t.Run(driver, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), name)
			ctx := context.Background()

			st, err := Open(Config{Driver: driver, Path: path, BusyTimeout: time.Second}, logx.Nop())
			if err != nil {
				t.Fatalf("Open: %v", err)
			}

			for i, text := range []string{"first", "second", "third"} {
				err := st.AppendAudit(ctx, AuditEntry{
					CycleID:  "c" + text,
					Kind:     "status",
					ChatID:   42,
					Text:     text,
					OK:       i != 1,
					Attempts: i + 1,
				})
				if err != nil {
					t.Fatalf("AppendAudit: %v", err)
				}
			}
			got, err := st.ListAudit(ctx, 2)
			if err != nil {
				t.Fatalf("ListAudit: %v", err)
			}
			if len(got) != 2 || got[0].Text != "second" || got[1].Text != "third" {
				t.Fatalf("unexpected audit tail: %+v", got)
			}
			if got[0].OK || !got[1].OK || got[1].Attempts != 3 || got[1].CycleID != "cthird" {
				t.Fatalf("audit fields not round-tripped: %+v", got)
			}

			until := time.Now().Add(time.Hour).Truncate(time.Millisecond)
			if err := st.PutDedup(ctx, "k1", until); err != nil {
				t.Fatalf("PutDedup: %v", err)
			}
			if err := st.Close(); err != nil {
				t.Fatalf("Close: %v", err)
			}

			// Dedup state survives reopen.
			st, err = Open(Config{Driver: driver, Path: path}, logx.Nop())
			if err != nil {
				t.Fatalf("reopen: %v", err)
			}
			defer st.Close()
			gotUntil, ok, err := st.GetDedup(ctx, "k1")
			if err != nil || !ok {
				t.Fatalf("GetDedup = %v, %v, %v", gotUntil, ok, err)
			}
			if !gotUntil.Equal(until) {
				t.Fatalf("until = %v, want %v", gotUntil, until)
			}
			if _, ok, _ := st.GetDedup(ctx, "missing"); ok {
				t.Fatal("unexpected dedup hit")
			}
		})
	}
}

func TestFileAuditRotation(t *testing.T) {
	ctx := context.Background()
	dir := filepath.Join(t.TempDir(), "store")
	st, err := Open(Config{Driver: "file", Path: dir}, logx.Nop())
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer st.Close()
	st.(*fileStore).rotateAt = 1

	for _, text := range []string{"one", "two", "three"} {
		if err := st.AppendAudit(ctx, AuditEntry{Kind: "status", Text: text, OK: true}); err != nil {
			t.Fatalf("AppendAudit: %v", err)
		}
	}
	got, err := st.ListAudit(ctx, 0)
	if err != nil {
		t.Fatalf("ListAudit: %v", err)
	}
	// one rotated generation is kept
	if len(got) != 2 || got[0].Text != "two" || got[1].Text != "three" {
		t.Fatalf("unexpected audit after rotation: %+v", got)
	}
}

func TestStoreClosed(t *testing.T) {
	ctx := context.Background()
	for _, driver := range []string{"file", "sqlite"} {
		st, err := Open(Config{Driver: driver, Path: filepath.Join(t.TempDir(), "s.db")}, logx.Nop())
		if err != nil {
			t.Fatalf("Open(%s): %v", driver, err)
		}
		if err := st.Close(); err != nil {
			t.Fatalf("Close(%s): %v", driver, err)
		}
		if err := st.Close(); err != nil {
			t.Fatalf("second Close(%s): %v", driver, err)
		}
		if err := st.AppendAudit(ctx, AuditEntry{Text: "x"}); !errors.Is(err, ErrClosed) {
			t.Fatalf("%s AppendAudit after close = %v", driver, err)
		}
	}
}

func TestExpiredDedupIsIgnored(t *testing.T) {
	ctx := context.Background()
	for _, driver := range []string{"file", "sqlite"} {
		path := filepath.Join(t.TempDir(), "s.db")
		st, err := Open(Config{Driver: driver, Path: path}, logx.Nop())
		if err != nil {
			t.Fatalf("Open(%s): %v", driver, err)
		}
		_ = st.PutDedup(ctx, "old", time.Now().Add(-time.Minute))
		_ = st.Close()

		st, err = Open(Config{Driver: driver, Path: path}, logx.Nop())
		if err != nil {
			t.Fatalf("reopen(%s): %v", driver, err)
		}
		if _, ok, err := st.GetDedup(ctx, "old"); ok || err != nil {
			t.Fatalf("%s: expired key returned (ok=%v err=%v)", driver, ok, err)
		}
		_ = st.Close()
	}
}
