package notifier

import (
	"context"
	"errors"
	"fmt"
	"hash/fnv"
	"sync"
	"time"

	"github.com/sethvargo/go-retry"
	"golang.org/x/time/rate"

	"homeworkbot/internal/eventbus"
	"homeworkbot/internal/storage"
	kit "homeworkbot/internal/transport"
	logx "homeworkbot/pkg/logx"
)

// ErrDelivery means the transport rejected a message after all attempts.
var ErrDelivery = errors.New("notification delivery failed")

// Service is safe for concurrent use, although the poll loop calls it from
// a single goroutine.
type Service struct {
	cfg     Config
	sender  kit.Sender
	log     logx.Logger
	bus     eventbus.Bus
	store   storage.Store
	limiter *rate.Limiter

	dmu   sync.Mutex
	dedup map[string]time.Time

	hmu     sync.Mutex
	history []HistoryItem

	now func() time.Time
}

func New(cfg Config, sender kit.Sender, log logx.Logger, bus eventbus.Bus, store storage.Store) *Service {
	if log.IsZero() {
		log = logx.Nop()
	}
	if bus == nil {
		bus = eventbus.Nop{}
	}
	cfg = withDefaults(cfg)
	return &Service{
		cfg:    cfg,
		sender: sender,
		log:    log,
		bus:    bus,
		store:  store,
		// Token bucket: burst = rate per sec, so short spikes don't block.
		limiter: rate.NewLimiter(rate.Limit(cfg.RatePerSec), cfg.RatePerSec),
		dedup:   map[string]time.Time{},
		now:     time.Now,
	}
}

func withDefaults(cfg Config) Config {
	if cfg.RatePerSec <= 0 {
		cfg.RatePerSec = 1
	}
	if cfg.RetryMax < 0 {
		cfg.RetryMax = 0
	}
	if cfg.RetryBase <= 0 {
		cfg.RetryBase = 500 * time.Millisecond
	}
	if cfg.RetryMaxDelay <= 0 {
		cfg.RetryMaxDelay = 10 * time.Second
	}
	if cfg.SendTimeout <= 0 {
		cfg.SendTimeout = 10 * time.Second
	}
	if cfg.DedupWindow < 0 {
		cfg.DedupWindow = 0
	}
	if cfg.DedupMaxEntries <= 0 {
		cfg.DedupMaxEntries = 2000
	}
	if cfg.HistorySize <= 0 {
		cfg.HistorySize = 100
	}
	return cfg
}

// Send delivers m to the configured target and blocks until it is accepted,
// suppressed by dedup, or given up. Failures match ErrDelivery.
func (s *Service) Send(ctx context.Context, m Message) error {
	if s.sender == nil {
		return fmt.Errorf("%w: no transport configured", ErrDelivery)
	}
	if m.Text == "" {
		return nil
	}
	if m.Kind == "" {
		m.Kind = KindStatus
	}

	target := s.cfg.Target
	key := dedupKey(target, m.Text)
	start := s.now()

	if s.cfg.DedupWindow > 0 && s.suppressed(ctx, key) {
		s.log.Info("notification suppressed (dedup)", logx.String("kind", string(m.Kind)), logx.String("cycle", m.CycleID))
		s.publish(eventbus.TypeNotifierDeduped, m, key, 0, nil)
		s.audit(ctx, m, true, true, 0, nil, start)
		return nil
	}

	attempts := 0
	err := retry.Do(ctx, s.backoff(), func(ctx context.Context) error {
		attempts++
		if err := s.limiter.Wait(ctx); err != nil {
			return err
		}
		callCtx, cancel := context.WithTimeout(ctx, s.cfg.SendTimeout)
		_, err := s.sender.SendText(callCtx, target, m.Text, &kit.SendOptions{DisablePreview: true})
		cancel()
		if err != nil {
			s.log.Debug("notify send failed", logx.Err(err), logx.Int("attempt", attempts), logx.Int("max", s.cfg.RetryMax+1))
			return retry.RetryableError(err)
		}
		return nil
	})
	if err != nil {
		s.publish(eventbus.TypeNotifierFailed, m, key, attempts, err)
		s.audit(ctx, m, false, false, attempts, err, start)
		return fmt.Errorf("%w after %d attempt(s): %w", ErrDelivery, attempts, err)
	}

	s.log.Info("notification sent", logx.String("kind", string(m.Kind)), logx.String("cycle", m.CycleID), logx.Int("attempts", attempts))
	if s.cfg.DedupWindow > 0 {
		s.remember(ctx, key)
	}
	s.appendHistory(m)
	s.publish(eventbus.TypeNotifierSent, m, key, attempts, nil)
	s.audit(ctx, m, true, false, attempts, nil, start)
	return nil
}

func (s *Service) backoff() retry.Backoff {
	b := retry.NewExponential(s.cfg.RetryBase)
	b = retry.WithJitterPercent(30, b)
	b = retry.WithCappedDuration(s.cfg.RetryMaxDelay, b)
	return retry.WithMaxRetries(uint64(s.cfg.RetryMax), b)
}

// Snapshot returns delivered messages, oldest first.
func (s *Service) Snapshot() []HistoryItem {
	s.hmu.Lock()
	out := append([]HistoryItem(nil), s.history...)
	s.hmu.Unlock()
	return out
}

func (s *Service) appendHistory(m Message) {
	s.hmu.Lock()
	s.history = append(s.history, HistoryItem{At: s.now(), Kind: m.Kind, Text: m.Text})
	if n := s.cfg.HistorySize; len(s.history) > n {
		s.history = s.history[len(s.history)-n:]
	}
	s.hmu.Unlock()
}

func (s *Service) publish(typ string, m Message, key string, attempts int, err error) {
	now := s.now()
	ev := NotificationEvent{
		Kind:     m.Kind,
		CycleID:  m.CycleID,
		ChatID:   s.cfg.Target.ChatID,
		ThreadID: s.cfg.Target.ThreadID,
		Key:      key,
		Attempts: attempts,
		At:       now,
	}
	if err != nil {
		ev.Error = err.Error()
	}
	s.bus.Publish(eventbus.Event{Type: typ, Time: now, Data: ev})
}

func (s *Service) audit(ctx context.Context, m Message, ok, deduped bool, attempts int, err error, start time.Time) {
	if s.store == nil {
		return
	}
	e := storage.AuditEntry{
		At:       s.now(),
		CycleID:  m.CycleID,
		Kind:     string(m.Kind),
		ChatID:   s.cfg.Target.ChatID,
		ThreadID: s.cfg.Target.ThreadID,
		Text:     m.Text,
		OK:       ok,
		Deduped:  deduped,
		Attempts: attempts,
		TookMS:   s.now().Sub(start).Milliseconds(),
	}
	if err != nil {
		e.Error = err.Error()
	}
	// Audit must not depend on the caller's remaining deadline.
	actx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 250*time.Millisecond)
	defer cancel()
	if aerr := s.store.AppendAudit(actx, e); aerr != nil {
		s.log.Warn("audit append failed", logx.Err(aerr))
	}
}

func dedupKey(to kit.ChatTarget, text string) string {
	h := fnv.New64a()
	_, _ = fmt.Fprintf(h, "%d:%d|", to.ChatID, to.ThreadID)
	_, _ = h.Write([]byte(text))
	return fmt.Sprintf("%x", h.Sum64())
}

func (s *Service) suppressed(ctx context.Context, key string) bool {
	now := s.now()

	s.dmu.Lock()
	until, ok := s.dedup[key]
	s.dmu.Unlock()
	if ok && now.Before(until) {
		return true
	}

	if s.cfg.PersistDedup && s.store != nil {
		cctx, cancel := context.WithTimeout(ctx, 100*time.Millisecond)
		until, ok, err := s.store.GetDedup(cctx, key)
		cancel()
		if err != nil {
			s.log.Debug("dedup lookup failed", logx.Err(err))
			return false
		}
		if ok && now.Before(until) {
			s.dmu.Lock()
			s.dedup[key] = until
			s.dmu.Unlock()
			return true
		}
	}
	return false
}

func (s *Service) remember(ctx context.Context, key string) {
	now := s.now()
	until := now.Add(s.cfg.DedupWindow)

	s.dmu.Lock()
	s.dedup[key] = until
	for k, t := range s.dedup {
		if !now.Before(t) {
			delete(s.dedup, k)
		}
	}
	// Evict earliest expiries until within cap.
	for len(s.dedup) > s.cfg.DedupMaxEntries {
		var (
			minKey string
			minT   time.Time
		)
		for k, t := range s.dedup {
			if minKey == "" || t.Before(minT) {
				minKey, minT = k, t
			}
		}
		delete(s.dedup, minKey)
	}
	s.dmu.Unlock()

	if s.cfg.PersistDedup && s.store != nil {
		cctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 250*time.Millisecond)
		if err := s.store.PutDedup(cctx, key, until); err != nil {
			s.log.Debug("dedup persist failed", logx.Err(err))
		}
		cancel()
	}
}
