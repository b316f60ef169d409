package config

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"reflect"
	"strings"

	"github.com/joho/godotenv"

	logx "homeworkbot/pkg/logx"
)

// DefaultEnvFile is read when no --env-file is given. A missing file is not an error.
const DefaultEnvFile = ".env"

// Options selects the sources Load reads.
//
// Precedence, low to high: defaults, config file, env file, process environment.
type Options struct {
	// Path is an optional JSON or YAML config file.
	Path string
	// EnvFile is an optional dotenv file; empty means DefaultEnvFile.
	EnvFile string
	// LookupEnv replaces os.LookupEnv (tests).
	LookupEnv func(key string) (string, bool)

	Log logx.Logger
}

// Load builds the configuration once and validates it. The result is not
// mutated afterwards.
func Load(opts Options) (*Config, error) {
	log := opts.Log
	if log.IsZero() {
		log = logx.Nop()
	}
	log = log.With(logx.String("comp", "config"))

	cfg := Default()
	if p := strings.TrimSpace(opts.Path); p != "" {
		if err := parseFile(p, cfg); err != nil {
			return nil, fmt.Errorf("config %s: %w", p, err)
		}
		log.Debug("config file loaded", logx.String("path", p))
	}

	dotenv, err := readEnvFile(opts.EnvFile)
	if err != nil {
		return nil, err
	}
	if len(dotenv) > 0 {
		log.Debug("env file loaded", logx.Int("keys", len(dotenv)))
	}

	lookup := opts.LookupEnv
	if lookup == nil {
		lookup = os.LookupEnv
	}
	applyEnv(cfg, func(key string) (string, bool) {
		if v, ok := lookup(key); ok {
			return v, true
		}
		v, ok := dotenv[key]
		return v, ok
	})
	cfg.Logging.Level = strings.ToLower(strings.TrimSpace(cfg.Logging.Level))
	// Blank credentials from the file count as missing.
	cfg.Practicum.Token = strings.TrimSpace(cfg.Practicum.Token)
	cfg.Telegram.Token = strings.TrimSpace(cfg.Telegram.Token)
	cfg.Telegram.ChatID = ChatID(strings.TrimSpace(string(cfg.Telegram.ChatID)))

	if err := Validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Default returns the built-in defaults.
func Default() *Config {
	console := true
	return &Config{
		Poll:    PollConfig{Every: "10m"},
		Storage: StorageConfig{Driver: "none"},
		Logging: LoggingConfig{Level: "info", Console: &console},
	}
}

func parseFile(path string, cfg *Config) error {
	b, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	jb, err := toJSON(path, b)
	if err != nil {
		return err
	}

	dec := json.NewDecoder(bytes.NewReader(jb))
	dec.DisallowUnknownFields()
	if err := dec.Decode(cfg); err != nil {
		return err
	}
	// reject trailing tokens (e.g. concatenated JSON)
	if err := dec.Decode(&struct{}{}); err != io.EOF {
		if err == nil {
			return fmt.Errorf("invalid config: trailing data")
		}
		return err
	}
	return nil
}

func readEnvFile(path string) (map[string]string, error) {
	explicit := strings.TrimSpace(path) != ""
	if !explicit {
		path = DefaultEnvFile
	}
	m, err := godotenv.Read(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("env file %s: %w", path, err)
	}
	return m, nil
}

// applyEnv overrides every string field carrying an `env` tag with a
// non-empty value from lookup.
func applyEnv(cfg *Config, lookup func(string) (string, bool)) {
	walkEnv(reflect.ValueOf(cfg).Elem(), lookup)
}

func walkEnv(v reflect.Value, lookup func(string) (string, bool)) {
	t := v.Type()
	for i := 0; i < t.NumField(); i++ {
		f := v.Field(i)
		sf := t.Field(i)
		if sf.Type.Kind() == reflect.Struct {
			walkEnv(f, lookup)
			continue
		}
		key := sf.Tag.Get("env")
		if key == "" || f.Kind() != reflect.String {
			continue
		}
		if val, ok := lookup(key); ok && strings.TrimSpace(val) != "" {
			f.SetString(strings.TrimSpace(val))
		}
	}
}
