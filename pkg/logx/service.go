package logx

import (
	"bytes"
	"fmt"
	"io"
	"os"
	"strings"
	"sync"

	"github.com/rs/zerolog"
)

type Config struct {
	Level   string
	Console bool
	File    FileConfig
	// Secrets are masked in every line written by the Service.
	Secrets []string
}

type FileConfig struct {
	Enabled bool
	Path    string
}

const defaultLogFile = "./homeworkbot.log"

// Service owns the configured sinks. Outputs are fixed at construction.
type Service struct {
	mu   sync.Mutex
	file *os.File
}

// New opens the sinks described by cfg and returns a root Logger writing to
// them. With neither console nor file enabled it falls back to the console.
func New(cfg Config) (*Service, Logger, error) {
	s := &Service{}
	var writers []io.Writer
	if cfg.Console {
		writers = append(writers, consoleWriter(Stdout()))
	}
	if cfg.File.Enabled {
		path := strings.TrimSpace(cfg.File.Path)
		if path == "" {
			path = defaultLogFile
		}
		f, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
		if err != nil {
			return nil, Logger{}, fmt.Errorf("log file %q: %w", path, err)
		}
		s.file = f
		writers = append(writers, zerolog.SyncWriter(f))
	}
	if len(writers) == 0 {
		writers = append(writers, consoleWriter(Stdout()))
	}

	var w io.Writer = zerolog.MultiLevelWriter(writers...)
	if r := newRedactor(w, cfg.Secrets); r != nil {
		w = r
	}
	return s, newLogger(w, cfg.Level), nil
}

func (s *Service) Close() error {
	if s == nil {
		return nil
	}
	s.mu.Lock()
	f := s.file
	s.file = nil
	s.mu.Unlock()
	if f != nil {
		return f.Close()
	}
	return nil
}

// redactor masks secret values before they reach a sink.
type redactor struct {
	w       io.Writer
	secrets [][]byte
}

var mask = []byte("****")

func newRedactor(w io.Writer, secrets []string) *redactor {
	var bs [][]byte
	for _, s := range secrets {
		if s = strings.TrimSpace(s); len(s) >= 4 {
			bs = append(bs, []byte(s))
		}
	}
	if len(bs) == 0 {
		return nil
	}
	return &redactor{w: w, secrets: bs}
}

// Write reports len(p) on success so zerolog does not treat masking as a short write.
func (r *redactor) Write(p []byte) (int, error) {
	out := p
	for _, s := range r.secrets {
		if bytes.Contains(out, s) {
			out = bytes.ReplaceAll(out, s, mask)
		}
	}
	if _, err := r.w.Write(out); err != nil {
		return 0, err
	}
	return len(p), nil
}

func consoleWriter(w io.Writer) io.Writer {
	cw := zerolog.ConsoleWriter{Out: w, TimeFormat: timeFormat}
	cw.FormatCaller = func(i any) string {
		s, _ := i.(string)
		return s
	}
	return cw
}

// Stdout returns the stdout sink.
func Stdout() io.Writer { return os.Stdout }

// Stderr returns the stderr sink.
func Stderr() io.Writer { return os.Stderr }
