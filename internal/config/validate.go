package config

import (
	"errors"
	"fmt"
	"reflect"
	"strconv"
	"strings"
	"sync"

	"github.com/go-playground/validator/v10"
)

// ErrConfigurationMissing reports required settings that are absent or empty.
var ErrConfigurationMissing = errors.New("configuration missing")

// MissingError names the missing settings by their environment variable.
type MissingError struct {
	Settings []string
}

func (e *MissingError) Error() string {
	return fmt.Sprintf("%s: %s", ErrConfigurationMissing, strings.Join(e.Settings, ", "))
}

func (e *MissingError) Unwrap() error { return ErrConfigurationMissing }

var (
	validateOnce sync.Once
	validate     *validator.Validate
)

// Field names in validation errors follow the env tag when present, then the json tag.
func validatorInstance() *validator.Validate {
	validateOnce.Do(func() {
		validate = validator.New(validator.WithRequiredStructEnabled())
		validate.RegisterTagNameFunc(func(field reflect.StructField) string {
			if env := field.Tag.Get("env"); env != "" {
				return env
			}
			name := strings.SplitN(field.Tag.Get("json"), ",", 2)[0]
			if name == "-" {
				return ""
			}
			return name
		})
	})
	return validate
}

// Validate checks required credentials first, then value constraints.
func Validate(cfg *Config) error {
	if cfg == nil {
		return &MissingError{Settings: []string{"PRACTICUM_TOKEN", "TELEGRAM_TOKEN", "TELEGRAM_CHAT_ID"}}
	}
	if err := validatorInstance().Struct(cfg); err != nil {
		var verrs validator.ValidationErrors
		if !errors.As(err, &verrs) {
			return fmt.Errorf("invalid config: %w", err)
		}
		var missing, invalid []string
		for _, fe := range verrs {
			if fe.Tag() == "required" {
				missing = append(missing, fe.Field())
				continue
			}
			invalid = append(invalid, fmt.Sprintf("%s: failed %q", fe.Namespace(), fe.Tag()))
		}
		if len(missing) > 0 {
			return &MissingError{Settings: missing}
		}
		return fmt.Errorf("invalid config: %s", strings.Join(invalid, "; "))
	}
	if _, err := cfg.Telegram.ChatIDInt(); err != nil {
		return err
	}
	if _, err := ParseDurationField("shutdown_timeout", cfg.ShutdownTimeout); err != nil {
		return err
	}
	return nil
}

// ChatIDInt parses the chat id as a non-zero signed 64-bit integer.
func (t TelegramConfig) ChatIDInt() (int64, error) {
	id, err := strconv.ParseInt(strings.TrimSpace(string(t.ChatID)), 10, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid config: TELEGRAM_CHAT_ID must be an integer, got %q", t.ChatID)
	}
	if id == 0 {
		return 0, errors.New("invalid config: TELEGRAM_CHAT_ID must be non-zero")
	}
	return id, nil
}

// Redacted returns a copy safe to print: tokens are masked.
func (c Config) Redacted() Config {
	c.Practicum.Token = mask(c.Practicum.Token)
	c.Telegram.Token = mask(c.Telegram.Token)
	return c
}

func mask(s string) string {
	if s == "" {
		return ""
	}
	if len(s) <= 4 {
		return "****"
	}
	return s[:2] + "****" + s[len(s)-2:]
}
