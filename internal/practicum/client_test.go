package practicum

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
	"unicode/utf8"

	"homeworkbot/internal/homework"
	logx "homeworkbot/pkg/logx"
)

func newTestClient(t *testing.T, h http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)
	c, err := New(Config{Endpoint: srv.URL + "/api/user_api/homework_statuses/", Token: "secret", Timeout: 2 * time.Second}, logx.Nop())
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return c
}

func TestFetchSendsAuthAndCursor(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			t.Errorf("method = %s", r.Method)
		}
		if got := r.Header.Get("Authorization"); got != "OAuth secret" {
			t.Errorf("Authorization = %q", got)
		}
		if got := r.URL.Query().Get("from_date"); got != "1700000000" {
			t.Errorf("from_date = %q", got)
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"homeworks":[{"homework_name":"hw","status":"approved"}],"current_date":1700000600}`))
	})

	resp, err := c.Fetch(context.Background(), 1700000000)
	if err != nil {
		t.Fatalf("Fetch: %v", err)
	}
	subs, err := homework.ValidateResponse(resp)
	if err != nil {
		t.Fatalf("ValidateResponse: %v", err)
	}
	if len(subs) != 1 || subs[0][homework.FieldName] != "hw" {
		t.Fatalf("unexpected submissions: %v", subs)
	}
	if ts, _ := homework.CurrentDate(resp); ts != 1700000600 {
		t.Fatalf("current_date = %d", ts)
	}
}

func TestFetchFailuresAreRemoteUnavailable(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name    string
		status  int
		body    string
		wantMsg string
	}{
		{name: "503", status: http.StatusServiceUnavailable, body: "down for maintenance", wantMsg: "http status 503"},
		{name: "401", status: http.StatusUnauthorized, body: `{"code":"not_authenticated"}`, wantMsg: "http status 401"},
		{name: "not json", status: http.StatusOK, body: "<html>", wantMsg: "decode body"},
		{name: "json array", status: http.StatusOK, body: "[]", wantMsg: "decode body"},
		{name: "json null", status: http.StatusOK, body: "null", wantMsg: "not a JSON object"},
		{name: "trailing data", status: http.StatusOK, body: `{"homeworks":[],"current_date":5} <html>proxy error</html>`, wantMsg: "trailing data"},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				_, _ = w.Write([]byte(tt.body))
			})
			resp, err := c.Fetch(context.Background(), 0)
			if resp != nil {
				t.Fatalf("expected nil response, got %v", resp)
			}
			if !errors.Is(err, homework.ErrRemoteUnavailable) {
				t.Fatalf("err = %v, want ErrRemoteUnavailable", err)
			}
			if !strings.Contains(err.Error(), tt.wantMsg) {
				t.Fatalf("err = %q, want it to contain %q", err, tt.wantMsg)
			}
		})
	}
}

func TestFetchConnectionRefused(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	endpoint := srv.URL
	srv.Close()

	c, err := New(Config{Endpoint: endpoint, Token: "t", Timeout: time.Second}, logx.Nop())
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	_, err = c.Fetch(context.Background(), 0)
	if !errors.Is(err, homework.ErrRemoteUnavailable) {
		t.Fatalf("err = %v, want ErrRemoteUnavailable", err)
	}
}

func TestFetchTimeout(t *testing.T) {
	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
		}
	}))
	t.Cleanup(srv.Close)
	t.Cleanup(func() { close(release) })

	c, err := New(Config{Endpoint: srv.URL, Token: "t", Timeout: 50 * time.Millisecond}, logx.Nop())
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	_, err = c.Fetch(context.Background(), 0)
	if !errors.Is(err, homework.ErrRemoteUnavailable) {
		t.Fatalf("err = %v, want ErrRemoteUnavailable", err)
	}
}

func TestNewRejectsBadConfig(t *testing.T) {
	t.Parallel()
	if _, err := New(Config{Token: ""}, logx.Nop()); err == nil {
		t.Fatal("expected error for empty token")
	}
	if _, err := New(Config{Endpoint: "ftp://example.com", Token: "t"}, logx.Nop()); err == nil {
		t.Fatal("expected error for unsupported scheme")
	}
	c, err := New(Config{Token: "t"}, logx.Nop())
	if err != nil {
		t.Fatalf("New default endpoint: %v", err)
	}
	if c.endpoint.String() != DefaultEndpoint {
		t.Fatalf("endpoint = %s", c.endpoint)
	}
}

func TestExcerptKeepsRunesWhole(t *testing.T) {
	body := []byte(strings.Repeat("€", 100)) // 3-byte runes, 300 bytes
	got := excerpt(body)
	if !utf8.ValidString(got) {
		t.Fatalf("excerpt produced invalid UTF-8: %q", got)
	}
	if !strings.HasSuffix(got, "...") || len(got) > 203 {
		t.Fatalf("excerpt = %q (%d bytes)", got, len(got))
	}
	if excerpt([]byte("  short  ")) != "short" {
		t.Fatalf("short body should be returned trimmed")
	}
}
