package practicum

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"
	"unicode/utf8"

	"homeworkbot/internal/homework"
	logx "homeworkbot/pkg/logx"
)

const (
	DefaultEndpoint = "https://practicum.yandex.ru/api/user_api/homework_statuses/"
	defaultTimeout  = 30 * time.Second

	// maxBody bounds how much of an answer we read; the API returns small JSON.
	maxBody = 4 << 20
)

type Config struct {
	Endpoint string
	Token    string
	Timeout  time.Duration
}

// Client fetches homework statuses. It never retries; the poll loop owns cadence.
type Client struct {
	endpoint *url.URL
	token    string
	http     *http.Client
	log      logx.Logger
}

type Option func(*Client)

// WithHTTPClient replaces the underlying HTTP client (tests, proxies).
func WithHTTPClient(c *http.Client) Option {
	return func(cl *Client) {
		if c != nil {
			cl.http = c
		}
	}
}

func New(cfg Config, log logx.Logger, opts ...Option) (*Client, error) {
	raw := strings.TrimSpace(cfg.Endpoint)
	if raw == "" {
		raw = DefaultEndpoint
	}
	u, err := url.Parse(raw)
	if err != nil {
		return nil, fmt.Errorf("practicum endpoint: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, fmt.Errorf("practicum endpoint: unsupported scheme %q", u.Scheme)
	}
	if strings.TrimSpace(cfg.Token) == "" {
		return nil, errors.New("practicum token is empty")
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	if log.IsZero() {
		log = logx.Nop()
	}
	c := &Client{
		endpoint: u,
		token:    cfg.Token,
		http:     &http.Client{Timeout: timeout},
		log:      log,
	}
	for _, o := range opts {
		o(c)
	}
	return c, nil
}

// Fetch requests statuses changed since cursor (unix seconds).
// Every failure matches homework.ErrRemoteUnavailable.
func (c *Client) Fetch(ctx context.Context, cursor int64) (homework.Response, error) {
	u := *c.endpoint
	q := u.Query()
	q.Set("from_date", strconv.FormatInt(cursor, 10))
	u.RawQuery = q.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return nil, unavailable("build request: %v", err)
	}
	req.Header.Set("Authorization", "OAuth "+c.token)
	req.Header.Set("Accept", "application/json")

	start := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, unavailable("request %s: %v", c.endpoint.Redacted(), err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBody))
	if err != nil {
		return nil, unavailable("read body: %v", err)
	}
	c.log.Debug("api answered",
		logx.Int("http", resp.StatusCode),
		logx.Int64("from_date", cursor),
		logx.Duration("took", time.Since(start)),
	)

	if resp.StatusCode != http.StatusOK {
		return nil, unavailable("http status %d: %s", resp.StatusCode, excerpt(body))
	}

	dec := json.NewDecoder(bytes.NewReader(body))
	dec.UseNumber()
	var out homework.Response
	if err := dec.Decode(&out); err != nil {
		return nil, unavailable("decode body: %v", err)
	}
	if err := dec.Decode(&struct{}{}); err != io.EOF {
		return nil, unavailable("decode body: trailing data after JSON object")
	}
	// "null" decodes into a nil map without error.
	if out == nil {
		return nil, unavailable("decode body: not a JSON object")
	}
	return out, nil
}

func unavailable(format string, args ...any) error {
	return fmt.Errorf("%w: %s", homework.ErrRemoteUnavailable, fmt.Sprintf(format, args...))
}

func excerpt(b []byte) string {
	s := strings.TrimSpace(string(b))
	if s == "" {
		return "<empty body>"
	}
	const n = 200
	if len(s) <= n {
		return s
	}
	cut := n
	for cut > 0 && !utf8.RuneStart(s[cut]) {
		cut--
	}
	return s[:cut] + "..."
}
