package app

import (
	"fmt"
	"strings"
	"time"

	"homeworkbot/internal/config"
	"homeworkbot/internal/notifier"
	"homeworkbot/internal/poller"
	"homeworkbot/internal/practicum"
	"homeworkbot/internal/schedule"
	"homeworkbot/internal/storage"
	kit "homeworkbot/internal/transport"
	telegram "homeworkbot/internal/transport/telegram/adapter"
	logx "homeworkbot/pkg/logx"
)

// settings holds every component config derived from config.Config.
type settings struct {
	practicum practicum.Config
	telegram  telegram.Config
	notifier  notifier.Config
	storage   storage.Config
	storageOn bool
	poll      poller.Config
	logging   logx.Config
	shutdown  time.Duration
	// cycleDeadline is the longest a healthy cycle can take; the systemd
	// watchdog stops pinging once a cycle runs past it.
	cycleDeadline time.Duration
}

// Check resolves all derived settings without opening storage or touching
// the network.
func Check(cfg *config.Config) error {
	_, err := resolve(cfg)
	return err
}

func resolve(cfg *config.Config) (settings, error) {
	var s settings
	if err := config.Validate(cfg); err != nil {
		return s, err
	}

	timeout, err := config.ParseDurationField("practicum.timeout", cfg.Practicum.Timeout)
	if err != nil {
		return s, err
	}
	s.practicum = practicum.Config{
		Endpoint: strings.TrimSpace(cfg.Practicum.Endpoint),
		Token:    cfg.Practicum.Token,
		Timeout:  timeout,
	}

	if s.notifier, err = mapNotifierConfig(cfg); err != nil {
		return s, err
	}
	s.telegram = telegram.Config{
		Token:   cfg.Telegram.Token,
		APIURL:  strings.TrimSpace(cfg.Telegram.APIURL),
		Timeout: s.notifier.SendTimeout,
	}

	if s.storage, s.storageOn, err = mapStorageConfig(cfg); err != nil {
		return s, err
	}

	sched, err := schedule.Parse(cfg.Poll.Every)
	if err != nil {
		return s, fmt.Errorf("poll.every: %w", err)
	}
	s.poll = poller.Config{Schedule: sched, Cursor: cfg.Poll.FromDate}

	console := true
	if cfg.Logging.Console != nil {
		console = *cfg.Logging.Console
	}
	s.logging = logx.Config{
		Level:   cfg.Logging.Level,
		Console: console,
		File: logx.FileConfig{
			Enabled: cfg.Logging.File.Enabled,
			Path:    cfg.Logging.File.Path,
		},
		Secrets: []string{cfg.Practicum.Token, cfg.Telegram.Token},
	}
	s.shutdown = cfg.Shutdown()
	s.cycleDeadline = cycleDeadline(s.practicum.Timeout, s.notifier)
	return s, nil
}

// cycleDeadline is one fetch plus two fully retried sends (status and
// failure report) plus slack.
func cycleDeadline(fetch time.Duration, nc notifier.Config) time.Duration {
	if fetch <= 0 {
		fetch = 30 * time.Second
	}
	attempts := time.Duration(nc.RetryMax + 1)
	send := attempts*nc.SendTimeout + time.Duration(nc.RetryMax)*nc.RetryMaxDelay
	return fetch + 2*send + 30*time.Second
}

func mapNotifierConfig(cfg *config.Config) (notifier.Config, error) {
	nc := cfg.Notifier
	chatID, err := cfg.Telegram.ChatIDInt()
	if err != nil {
		return notifier.Config{}, err
	}

	retryMax := 2
	if nc.RetryMax != nil {
		retryMax = *nc.RetryMax
	}
	base, err := config.ParseDurationOrDefault("notifier.retry_base", nc.RetryBase, 500*time.Millisecond)
	if err != nil {
		return notifier.Config{}, err
	}
	maxDelay, err := config.ParseDurationOrDefault("notifier.retry_max_delay", nc.RetryMaxDelay, 10*time.Second)
	if err != nil {
		return notifier.Config{}, err
	}
	sendTimeout, err := config.ParseDurationOrDefault("notifier.send_timeout", nc.SendTimeout, 10*time.Second)
	if err != nil {
		return notifier.Config{}, err
	}
	dedup, err := config.ParseDurationField("notifier.dedup_window", nc.DedupWindow)
	if err != nil {
		return notifier.Config{}, err
	}

	return notifier.Config{
		Target:        kit.ChatTarget{ChatID: chatID, ThreadID: cfg.Telegram.ThreadID},
		RatePerSec:    nc.RatePerSec,
		RetryMax:      retryMax,
		RetryBase:     base,
		RetryMaxDelay: maxDelay,
		SendTimeout:   sendTimeout,
		DedupWindow:   dedup,
		PersistDedup:  nc.PersistDedup,
	}, nil
}

func mapStorageConfig(cfg *config.Config) (storage.Config, bool, error) {
	sc := cfg.Storage
	driver := strings.ToLower(strings.TrimSpace(sc.Driver))
	if driver == "" || driver == "none" {
		return storage.Config{}, false, nil
	}
	path := strings.TrimSpace(sc.Path)

	switch driver {
	case "file":
		return storage.Config{Driver: "file", Path: path}, true, nil
	case "sqlite", "sqlite3":
		if path == "" {
			return storage.Config{}, false, fmt.Errorf("storage.path is required when storage.driver=sqlite")
		}
		busy, err := config.ParseDurationOrDefault("storage.busy_timeout", sc.BusyTimeout, time.Second)
		if err != nil {
			return storage.Config{}, false, err
		}
		return storage.Config{Driver: driver, Path: path, BusyTimeout: busy}, true, nil
	default:
		return storage.Config{}, false, fmt.Errorf("unknown storage.driver: %s", sc.Driver)
	}
}
