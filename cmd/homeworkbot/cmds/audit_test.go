package cmds

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"homeworkbot/internal/storage"
	logx "homeworkbot/pkg/logx"
)

func TestAuditPrintsRecentEntries(t *testing.T) {
	t.Setenv("PRACTICUM_TOKEN", "p")
	t.Setenv("TELEGRAM_TOKEN", "123:t")
	t.Setenv("TELEGRAM_CHAT_ID", "42")
	t.Cleanup(func() { configPath, auditLimit = "", 20 })

	dir := t.TempDir()
	dataDir := filepath.Join(dir, "data")
	st, err := storage.Open(storage.Config{Driver: "file", Path: dataDir}, logx.Nop())
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	for _, text := range []string{"old", "new"} {
		if err := st.AppendAudit(context.Background(), storage.AuditEntry{Kind: "status", ChatID: 42, Text: text, OK: true}); err != nil {
			t.Fatalf("AppendAudit: %v", err)
		}
	}
	_ = st.Close()

	cfgFile := filepath.Join(dir, "config.json")
	body, _ := json.Marshal(map[string]any{"storage": map[string]string{"driver": "file", "path": dataDir}})
	if err := os.WriteFile(cfgFile, body, 0o600); err != nil {
		t.Fatal(err)
	}

	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetArgs([]string{"audit", "--limit", "1", "--config", cfgFile, "--env-file", filepath.Join(dir, "none.env")})
	if err := Execute(context.Background()); err != nil {
		t.Fatalf("audit: %v", err)
	}
	lines := strings.Split(strings.TrimSpace(out.String()), "\n")
	if len(lines) != 1 {
		t.Fatalf("output = %q", out.String())
	}
	var e storage.AuditEntry
	if err := json.Unmarshal([]byte(lines[0]), &e); err != nil || e.Text != "new" {
		t.Fatalf("entry = %+v, %v", e, err)
	}
}
