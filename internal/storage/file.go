package storage

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	logx "homeworkbot/pkg/logx"
)

// fileStore keeps everything under one directory:
//   - audit.jsonl    append-only JSON Lines, rotated to audit.jsonl.1 past auditRotateBytes
//   - dedup.json     full dedup map, rewritten atomically on every change
//
// The bot sends at most a couple of messages per poll interval, so
// rewriting dedup.json on each put stays cheap.
type fileStore struct {
	log logx.Logger
	dir string

	mu        sync.Mutex
	audit     *os.File
	auditSize int64
	rotateAt  int64
	dedup     map[string]time.Time
	closed    bool
}

const (
	auditFileName    = "audit.jsonl"
	dedupFileName    = "dedup.json"
	auditRotateBytes = 4 << 20
)

func openFile(cfg Config, log logx.Logger) (Store, error) {
	dir := strings.TrimSpace(cfg.Path)
	if dir == "" {
		return nil, errors.New("storage.path is required for file driver")
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("storage dir: %w", err)
	}

	s := &fileStore{log: log, dir: dir, rotateAt: auditRotateBytes, dedup: map[string]time.Time{}}
	if err := s.loadDedup(); err != nil {
		log.Warn("dedup state unreadable; starting empty", logx.String("path", s.path(dedupFileName)), logx.Err(err))
	}
	if err := s.openAudit(); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *fileStore) path(name string) string { return filepath.Join(s.dir, name) }

func (s *fileStore) openAudit() error {
	f, err := os.OpenFile(s.path(auditFileName), os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o600)
	if err != nil {
		return err
	}
	st, err := f.Stat()
	if err != nil {
		_ = f.Close()
		return err
	}
	s.audit = f
	s.auditSize = st.Size()
	return nil
}

func (s *fileStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	s.closed = true
	if s.audit == nil {
		return nil
	}
	err := s.audit.Close()
	s.audit = nil
	return err
}

func (s *fileStore) AppendAudit(ctx context.Context, e AuditEntry) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if e.At.IsZero() {
		e.At = time.Now()
	}
	line, err := json.Marshal(e)
	if err != nil {
		return err
	}
	line = append(line, '\n')

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrClosed
	}
	if s.auditSize > 0 && s.auditSize+int64(len(line)) > s.rotateAt {
		if err := s.rotateLocked(); err != nil {
			s.log.Warn("audit rotate failed", logx.Err(err))
		}
	}
	n, err := s.audit.Write(line)
	s.auditSize += int64(n)
	return err
}

func (s *fileStore) rotateLocked() error {
	if err := s.audit.Close(); err != nil {
		return err
	}
	cur := s.path(auditFileName)
	if err := os.Rename(cur, cur+".1"); err != nil {
		// keep appending to the current file
		_ = s.openAudit()
		return err
	}
	return s.openAudit()
}

// ListAudit reads the rotated file first so entries stay oldest first.
func (s *fileStore) ListAudit(ctx context.Context, limit int) ([]AuditEntry, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil, ErrClosed
	}

	var out []AuditEntry
	for _, name := range []string{auditFileName + ".1", auditFileName} {
		err := readAudit(s.path(name), func(e AuditEntry) {
			out = append(out, e)
			if limit > 0 && len(out) > limit {
				out = out[1:]
			}
		})
		if err != nil && !errors.Is(err, os.ErrNotExist) {
			return out, err
		}
	}
	return out, nil
}

func readAudit(path string, fn func(AuditEntry)) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()
	sc := bufio.NewScanner(f)
	sc.Buffer(make([]byte, 0, 64*1024), 1<<20)
	for sc.Scan() {
		var e AuditEntry
		if err := json.Unmarshal(sc.Bytes(), &e); err != nil {
			continue
		}
		fn(e)
	}
	return sc.Err()
}

func (s *fileStore) PutDedup(ctx context.Context, key string, until time.Time) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	key = strings.TrimSpace(key)
	if key == "" {
		return nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrClosed
	}
	now := time.Now()
	for k, v := range s.dedup {
		if v.Before(now) {
			delete(s.dedup, k)
		}
	}
	s.dedup[key] = until
	return s.saveDedupLocked()
}

func (s *fileStore) GetDedup(ctx context.Context, key string) (time.Time, bool, error) {
	if err := ctx.Err(); err != nil {
		return time.Time{}, false, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return time.Time{}, false, ErrClosed
	}
	until, ok := s.dedup[strings.TrimSpace(key)]
	return until, ok, nil
}

// dedup.json stores unix milliseconds.
func (s *fileStore) saveDedupLocked() error {
	m := make(map[string]int64, len(s.dedup))
	for k, v := range s.dedup {
		m[k] = v.UnixMilli()
	}
	b, err := json.Marshal(m)
	if err != nil {
		return err
	}
	dst := s.path(dedupFileName)
	tmp := dst + ".tmp"
	if err := os.WriteFile(tmp, b, 0o600); err != nil {
		return err
	}
	return os.Rename(tmp, dst)
}

func (s *fileStore) loadDedup() error {
	b, err := os.ReadFile(s.path(dedupFileName))
	if errors.Is(err, os.ErrNotExist) {
		return nil
	}
	if err != nil {
		return err
	}
	var m map[string]int64
	if err := json.Unmarshal(b, &m); err != nil {
		return err
	}
	now := time.Now()
	for k, ms := range m {
		if until := time.UnixMilli(ms); until.After(now) {
			s.dedup[k] = until
		}
	}
	return nil
}
