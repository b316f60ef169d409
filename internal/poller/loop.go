package poller

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"homeworkbot/internal/eventbus"
	"homeworkbot/internal/homework"
	"homeworkbot/internal/notifier"
	"homeworkbot/internal/schedule"
	logx "homeworkbot/pkg/logx"
)

// FailurePrefix starts every failure report sent to the chat.
const FailurePrefix = "Сбой в работе программы: "

type Fetcher interface {
	Fetch(ctx context.Context, cursor int64) (homework.Response, error)
}

type Notifier interface {
	Send(ctx context.Context, m notifier.Message) error
}

type Config struct {
	Schedule schedule.Schedule
	// Cursor is the initial from_date; 0 means "now".
	Cursor int64
}

// Loop polls the API on a schedule and notifies about the latest submission.
//
// The cursor is owned by the goroutine calling Run/RunCycle; Cursor() may be
// called concurrently.
type Loop struct {
	fetch  Fetcher
	notify Notifier
	sched  schedule.Schedule
	log    logx.Logger
	bus    eventbus.Bus

	cursor atomic.Int64
	cycles atomic.Uint64

	now func() time.Time
}

func New(cfg Config, fetch Fetcher, notify Notifier, log logx.Logger, bus eventbus.Bus) *Loop {
	if log.IsZero() {
		log = logx.Nop()
	}
	if bus == nil {
		bus = eventbus.Nop{}
	}
	sched := cfg.Schedule
	if sched.Kind == schedule.KindInterval && sched.Every <= 0 {
		sched = schedule.MustParse(schedule.Default)
	}
	l := &Loop{fetch: fetch, notify: notify, sched: sched, log: log, bus: bus, now: time.Now}
	cursor := cfg.Cursor
	if cursor <= 0 {
		cursor = l.now().Unix()
	}
	l.cursor.Store(cursor)
	return l
}

// Cursor returns the current from_date.
func (l *Loop) Cursor() int64 { return l.cursor.Load() }

// Cycles returns the number of completed cycles.
func (l *Loop) Cycles() uint64 { return l.cycles.Load() }

// Run executes cycles until ctx is canceled. A cycle in flight when ctx is
// canceled runs to completion; Run then returns nil.
func (l *Loop) Run(ctx context.Context) error {
	l.log.Info("poll loop started", logx.String("schedule", l.sched.String()), logx.Int64("cursor", l.Cursor()))
	for {
		if ctx.Err() != nil {
			l.log.Info("poll loop stopped", logx.Int64("cursor", l.Cursor()))
			return nil
		}

		_, _ = l.RunCycle(context.WithoutCancel(ctx))

		wait := l.sched.Next(l.now()).Sub(l.now())
		if wait < 0 {
			wait = 0
		}
		t := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			t.Stop()
			l.log.Info("poll loop stopped", logx.Int64("cursor", l.Cursor()))
			return nil
		case <-t.C:
		}
	}
}

// RunCycle performs one fetch/validate/resolve/notify attempt. The returned
// error is the cycle failure, already logged and reported to the chat.
func (l *Loop) RunCycle(ctx context.Context) (CycleResult, error) {
	res := CycleResult{ID: uuid.NewString(), Started: l.now(), CursorBefore: l.Cursor()}
	log := l.log.With(logx.String("cycle", res.ID))
	l.bus.Publish(eventbus.Event{Type: eventbus.TypeCycleStarted, Time: res.Started, Data: res.ID})

	next, msg, err := l.process(ctx, res.ID, res.CursorBefore)
	switch {
	case err != nil:
		res.Outcome = OutcomeFailed
		res.Err = err
		l.reportFailure(ctx, log, res.ID, err)
	case msg == "":
		res.Outcome = OutcomeNoUpdates
		log.Debug("no status updates", logx.Int64("from_date", res.CursorBefore))
	default:
		res.Outcome = OutcomeNotified
		res.Message = msg
	}
	if err == nil && next > res.CursorBefore {
		l.cursor.Store(next)
	}
	res.CursorAfter = l.Cursor()
	res.Took = l.now().Sub(res.Started)
	l.cycles.Add(1)

	ev := CycleEvent{ID: res.ID, Outcome: res.Outcome, Cursor: res.CursorAfter, Took: res.Took}
	if err != nil {
		ev.Error = err.Error()
	}
	l.bus.Publish(eventbus.Event{Type: eventbus.TypeCycle, Data: ev})
	return res, err
}

// process returns the cursor to commit and the delivered message ("" when
// there was nothing to send).
func (l *Loop) process(ctx context.Context, cycleID string, cursor int64) (int64, string, error) {
	resp, err := l.fetch.Fetch(ctx, cursor)
	if err != nil {
		return 0, "", err
	}
	subs, err := homework.ValidateResponse(resp)
	if err != nil {
		return 0, "", err
	}
	next, err := homework.CurrentDate(resp)
	if err != nil {
		return 0, "", err
	}
	if len(subs) == 0 {
		return next, "", nil
	}

	msg, err := homework.Resolve(subs[0])
	if err != nil {
		return 0, "", err
	}
	if err := l.notify.Send(ctx, notifier.Message{Kind: notifier.KindStatus, Text: msg, CycleID: cycleID}); err != nil {
		return 0, "", fmt.Errorf("send status: %w", err)
	}
	return next, msg, nil
}

func (l *Loop) reportFailure(ctx context.Context, log logx.Logger, cycleID string, cause error) {
	log.Error("poll cycle failed", logx.Err(cause), logx.String("kind", Classify(cause)), logx.Int64("cursor", l.Cursor()))
	err := l.notify.Send(ctx, notifier.Message{Kind: notifier.KindFailure, Text: FailurePrefix + cause.Error(), CycleID: cycleID})
	if err != nil {
		log.Warn("failure report not delivered", logx.Err(err))
	}
}

// Classify names the error kind of a cycle failure for logs.
func Classify(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, homework.ErrRemoteUnavailable):
		return "remote_unavailable"
	case errors.Is(err, homework.ErrMissingKey):
		return "malformed_response.missing_key"
	case errors.Is(err, homework.ErrWrongShape):
		return "malformed_response.wrong_shape"
	case errors.Is(err, homework.ErrMalformedResponse):
		return "malformed_response"
	case errors.Is(err, homework.ErrMissingField):
		return "missing_field"
	case errors.Is(err, homework.ErrUnknownStatus):
		return "unknown_status"
	case errors.Is(err, notifier.ErrDelivery):
		return "notifier_failure"
	default:
		return "unexpected"
	}
}
