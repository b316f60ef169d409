package schedule

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/robfig/cron/v3"
)

// Kind describes the normalized kind of a cadence string.
type Kind int

const (
	KindInterval Kind = iota
	KindCron
)

func (k Kind) String() string {
	if k == KindCron {
		return "cron"
	}
	return "interval"
}

// Default matches the upstream recommendation of one request per ten minutes.
const Default = "10m"

// Schedule yields poll times.
//
// Supported forms:
//   - Interval duration: "10m", "1h30m"
//   - Interval HH:MM: "00:10" (10 minutes), "02:30" (2 hours 30 minutes)
//   - Cron: "*/10 * * * *", "@hourly", "@every 10m"
//
// Optional prefixes:
//   - "cron:" forces cron parsing
//   - "interval:" or "every:" forces interval parsing
type Schedule struct {
	Kind  Kind
	Every time.Duration // KindInterval
	Expr  string        // KindCron
	Raw   string

	sched cron.Schedule
}

var reHHMM = regexp.MustCompile(`^\s*(\d{1,3}):(\d{2})\s*$`)

var cronParser = cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor)

// Parse parses a cadence string. An empty string yields Default.
func Parse(raw string) (Schedule, error) {
	s := strings.TrimSpace(raw)
	if s == "" {
		s = Default
	}

	low := strings.ToLower(s)
	switch {
	case strings.HasPrefix(low, "cron:"):
		return parseCron(strings.TrimSpace(s[len("cron:"):]), raw)
	case strings.HasPrefix(low, "interval:"):
		return parseInterval(strings.TrimSpace(s[len("interval:"):]), raw)
	case strings.HasPrefix(low, "every:"):
		return parseInterval(strings.TrimSpace(s[len("every:"):]), raw)
	case strings.ContainsAny(s, " \t\n\r") || strings.HasPrefix(s, "@"):
		return parseCron(s, raw)
	default:
		return parseInterval(s, raw)
	}
}

// MustParse is Parse for constants; it panics on error.
func MustParse(raw string) Schedule {
	s, err := Parse(raw)
	if err != nil {
		panic(err)
	}
	return s
}

// Next returns the next poll time strictly after t.
func (s Schedule) Next(t time.Time) time.Time {
	if s.sched == nil {
		return t.Add(s.Every)
	}
	return s.sched.Next(t)
}

func (s Schedule) String() string {
	if s.Kind == KindCron {
		return "cron:" + s.Expr
	}
	return s.Every.String()
}

func parseCron(expr, raw string) (Schedule, error) {
	if expr == "" {
		return Schedule{}, fmt.Errorf("cron schedule required after 'cron:'")
	}
	cs, err := cronParser.Parse(expr)
	if err != nil {
		return Schedule{}, fmt.Errorf("invalid cron schedule %q: %w", expr, err)
	}
	return Schedule{Kind: KindCron, Expr: expr, Raw: raw, sched: cs}, nil
}

func parseInterval(v, raw string) (Schedule, error) {
	if v == "" {
		return Schedule{}, fmt.Errorf("interval required")
	}
	var (
		d   time.Duration
		err error
	)
	if reHHMM.MatchString(v) {
		d, err = parseHHMM(v)
	} else {
		d, err = time.ParseDuration(v)
		if err != nil {
			err = fmt.Errorf("invalid schedule %q (use a duration like '10m', HH:MM like '00:10', or cron like '*/10 * * * *')", v)
		}
	}
	if err != nil {
		return Schedule{}, err
	}
	if d <= 0 {
		return Schedule{}, fmt.Errorf("interval must be > 0")
	}
	return Schedule{Kind: KindInterval, Every: d, Raw: raw}, nil
}

func parseHHMM(v string) (time.Duration, error) {
	m := reHHMM.FindStringSubmatch(v)
	if len(m) != 3 {
		return 0, fmt.Errorf("invalid HH:MM %q", v)
	}
	hh, _ := strconv.Atoi(m[1])
	mm, _ := strconv.Atoi(m[2])
	if mm > 59 {
		return 0, fmt.Errorf("invalid minutes in %q", v)
	}
	return time.Duration(hh)*time.Hour + time.Duration(mm)*time.Minute, nil
}
