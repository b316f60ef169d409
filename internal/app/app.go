package app

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/coreos/go-systemd/v22/daemon"

	"homeworkbot/internal/config"
	"homeworkbot/internal/eventbus"
	"homeworkbot/internal/notifier"
	"homeworkbot/internal/poller"
	"homeworkbot/internal/practicum"
	"homeworkbot/internal/runtime/supervisor"
	"homeworkbot/internal/storage"
	telegram "homeworkbot/internal/transport/telegram/adapter"
	logx "homeworkbot/pkg/logx"
)

// sdNotifier matches daemon.SdNotify.
type sdNotifier func(unsetEnvironment bool, state string) (bool, error)

type Option func(*App)

// WithSystemd replaces the systemd hooks (tests).
func WithSystemd(notify sdNotifier, watchdog func() (time.Duration, error)) Option {
	return func(a *App) {
		if notify != nil {
			a.sdNotify = notify
		}
		if watchdog != nil {
			a.sdWatchdog = watchdog
		}
	}
}

// WithLogger bypasses the configured log sinks.
func WithLogger(log logx.Logger) Option {
	return func(a *App) { a.log = log }
}

type App struct {
	log   logx.Logger
	logs  *logx.Service
	bus   eventbus.Bus
	store storage.Store

	notif *notifier.Service
	loop  *poller.Loop

	shutdown      time.Duration
	cycleDeadline time.Duration

	sdNotify   sdNotifier
	sdWatchdog func() (time.Duration, error)
}

// NewApp builds every component from a validated configuration. It performs
// no network I/O.
func NewApp(cfg *config.Config, opts ...Option) (*App, error) {
	s, err := resolve(cfg)
	if err != nil {
		return nil, err
	}

	a := &App{
		shutdown:      s.shutdown,
		cycleDeadline: s.cycleDeadline,
		sdNotify:      daemon.SdNotify,
		sdWatchdog:    func() (time.Duration, error) { return daemon.SdWatchdogEnabled(false) },
	}
	for _, o := range opts {
		o(a)
	}
	if a.log.IsZero() {
		a.logs, a.log, err = logx.New(s.logging)
		if err != nil {
			return nil, err
		}
	}
	log := a.log
	a.log = log.With(logx.String("comp", "app"))
	a.bus = eventbus.New()

	if s.storageOn {
		st, err := storage.Open(s.storage, log.With(logx.String("comp", "storage")))
		if err != nil {
			a.closeLogs()
			return nil, err
		}
		a.store = st
		a.log.Info("storage enabled", logx.String("driver", s.storage.Driver))
	}

	ad, err := telegram.New(s.telegram, log.With(logx.String("comp", "telegram")))
	if err != nil {
		a.closeResources()
		return nil, err
	}
	a.notif = notifier.New(s.notifier, ad, log.With(logx.String("comp", "notifier")), a.bus, a.store)

	client, err := practicum.New(s.practicum, log.With(logx.String("comp", "practicum")))
	if err != nil {
		a.closeResources()
		return nil, err
	}
	a.loop = poller.New(s.poll, client, a.notif, log.With(logx.String("comp", "poller")), a.bus)
	return a, nil
}

func (a *App) Loop() *poller.Loop          { return a.loop }
func (a *App) Notifier() *notifier.Service { return a.notif }
func (a *App) Bus() eventbus.Bus           { return a.bus }

// Run polls until ctx is canceled or the loop fails. A signal-driven stop
// returns nil; a panic or unexpected loop error is returned after shutdown.
func (a *App) Run(ctx context.Context) error {
	defer a.closeResources()

	sup := supervisor.NewSupervisor(ctx, supervisor.WithLogger(a.log.With(logx.String("comp", "supervisor"))), supervisor.WithCancelOnError(true))

	events, unsubscribe := a.bus.Subscribe(16)
	defer unsubscribe()

	loopDone := make(chan struct{})
	sup.Go("poller", func(c context.Context) error {
		defer close(loopDone)
		if err := a.loop.Run(c); err != nil {
			return err
		}
		if ctx.Err() == nil {
			return errors.New("poll loop exited unexpectedly")
		}
		return nil
	})
	sup.Go0("systemd", func(c context.Context) { a.watchdog(c, events, loopDone) })

	a.notifySystemd(daemon.SdNotifyReady)
	a.log.Info("app started", logx.Duration("shutdown_timeout", a.shutdown))

	reason := "signal"
	select {
	case <-ctx.Done():
	case <-loopDone:
		reason = "fatal"
	}
	a.log.Info("stopping", logx.String("reason", reason))
	a.notifySystemd(daemon.SdNotifyStopping)

	// The poll loop finishes its in-flight cycle on an uncancelable context.
	sup.Cancel()
	waitCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), a.shutdown)
	defer cancel()
	if err := sup.Wait(waitCtx); err != nil && waitCtx.Err() != nil && errors.Is(err, waitCtx.Err()) {
		a.log.Warn("in-flight cycle did not finish before shutdown timeout", logx.Duration("timeout", a.shutdown))
	}

	err := sup.Err()
	if err != nil {
		a.log.Error("stopped with error", logx.Err(err))
		return fmt.Errorf("app: %w", err)
	}
	a.log.Info("stopped", logx.Int64("cursor", a.loop.Cursor()), logx.Int64("cycles", int64(a.loop.Cycles())))
	return nil
}

// watchdog reports each finished cycle in STATUS and, when WatchdogSec is
// set, pings systemd every interval/2 while the poll loop is alive. Pings
// stop if the loop exits or a cycle runs past cycleDeadline, so systemd
// restarts a wedged process.
func (a *App) watchdog(ctx context.Context, events <-chan eventbus.Event, loopDone <-chan struct{}) {
	interval, err := a.sdWatchdog()
	if err != nil {
		a.log.Warn("systemd watchdog check failed", logx.Err(err))
	}

	var tick <-chan time.Time
	if interval > 0 {
		a.log.Info("systemd watchdog enabled", logx.Duration("interval", interval), logx.Duration("cycle_deadline", a.cycleDeadline))
		t := time.NewTicker(interval / 2)
		defer t.Stop()
		tick = t.C
		a.notifySystemd(daemon.SdNotifyWatchdog)
	}

	var (
		cycleStarted time.Time
		stalled      bool
	)
	for {
		select {
		case <-ctx.Done():
			return
		case <-loopDone:
			return
		case now := <-tick:
			if !cycleStarted.IsZero() && a.cycleDeadline > 0 && now.Sub(cycleStarted) > a.cycleDeadline {
				if !stalled {
					stalled = true
					a.log.Error("poll cycle overran its deadline; withholding watchdog pings",
						logx.Duration("running", now.Sub(cycleStarted)), logx.Duration("deadline", a.cycleDeadline))
				}
				continue
			}
			a.notifySystemd(daemon.SdNotifyWatchdog)
		case e, ok := <-events:
			if !ok {
				return
			}
			switch e.Type {
			case eventbus.TypeCycleStarted:
				cycleStarted = time.Now()
			case eventbus.TypeCycle:
				cycleStarted, stalled = time.Time{}, false
				ce, _ := e.Data.(poller.CycleEvent)
				a.notifySystemd(fmt.Sprintf("STATUS=last cycle %s, cursor %d", ce.Outcome, ce.Cursor))
			}
		}
	}
}

func (a *App) notifySystemd(state string) {
	sent, err := a.sdNotify(false, state)
	if err != nil {
		a.log.Warn("systemd notify failed", logx.String("state", state), logx.Err(err))
		return
	}
	if sent {
		a.log.Debug("systemd notified", logx.String("state", state))
	}
}

func (a *App) closeResources() {
	if a.store != nil {
		if err := a.store.Close(); err != nil {
			a.log.Warn("storage close failed", logx.Err(err))
		}
		a.store = nil
	}
	a.closeLogs()
}

func (a *App) closeLogs() {
	if a.logs != nil {
		_ = a.logs.Close()
		a.logs = nil
	}
}
