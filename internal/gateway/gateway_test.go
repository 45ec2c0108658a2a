package gateway

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"
	"time"
)

// scriptedServer replies with the queued status codes in order, then 200.
type scriptedServer struct {
	*httptest.Server
	hits    int
	queue   []int
	headers map[string]string
}

func newScriptedServer(statuses ...int) *scriptedServer {
	s := &scriptedServer{queue: statuses}
	s.Server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		status := http.StatusOK
		if s.hits < len(s.queue) {
			status = s.queue[s.hits]
		}
		s.hits++
		for k, v := range s.headers {
			w.Header().Set(k, v)
		}
		w.WriteHeader(status)
		if status == http.StatusOK {
			w.Write([]byte(`{"ok":true}`))
		}
	}))
	return s
}

func newTestGateway(now *time.Time) *Gateway {
	gw := New(Options{
		Timeout:        2 * time.Second,
		RequestsPerSec: 100,
		BackoffBase:    10 * time.Second,
		BackoffCap:     45 * time.Second,
		BanCooldown:    90 * time.Second,
	})
	gw.now = func() time.Time { return *now }
	return gw
}

func TestBackoffSequenceDoublesToCap(t *testing.T) {
	srv := newScriptedServer(429, 429, 429, 429, 429)
	defer srv.Close()

	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	gw := newTestGateway(&now)

	want := []time.Duration{
		10 * time.Second,
		20 * time.Second,
		40 * time.Second,
		45 * time.Second,
		45 * time.Second,
	}
	for i, expected := range want {
		_, err := gw.Do(context.Background(), Request{URL: srv.URL})
		var rl *RateLimitedError
		if !errors.As(err, &rl) {
			t.Fatalf("call %d: want RateLimitedError, got %v", i+1, err)
		}
		if rl.RetryAfter != expected {
			t.Errorf("call %d: backoff = %s, want %s", i+1, rl.RetryAfter, expected)
		}
		// Step past the window so the next call reaches the network.
		now = now.Add(expected + time.Second)
	}
	if srv.hits != len(want) {
		t.Errorf("server hits = %d, want %d", srv.hits, len(want))
	}
}

func TestFailFastWhileBackedOff(t *testing.T) {
	srv := newScriptedServer(429)
	defer srv.Close()

	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	gw := newTestGateway(&now)

	if _, err := gw.Do(context.Background(), Request{URL: srv.URL}); err == nil {
		t.Fatal("want error on 429")
	}
	if srv.hits != 1 {
		t.Fatalf("server hits = %d, want 1", srv.hits)
	}

	// Clock unchanged, still inside the 10s window.
	_, err := gw.Do(context.Background(), Request{URL: srv.URL})
	var rl *RateLimitedError
	if !errors.As(err, &rl) {
		t.Fatalf("want RateLimitedError, got %v", err)
	}
	if rl.RetryAfter <= 0 || rl.RetryAfter > 10*time.Second {
		t.Errorf("remaining = %s, want within (0s, 10s]", rl.RetryAfter)
	}
	if srv.hits != 1 {
		t.Errorf("server hits = %d after fail-fast, want 1", srv.hits)
	}
}

func TestRetryAfterHeader(t *testing.T) {
	tests := []struct {
		name       string
		retryAfter string
		want       time.Duration
	}{
		{"server value larger wins", "120", 120 * time.Second},
		{"computed value larger wins", "1", 10 * time.Second},
		{"garbage ignored", "soon", 10 * time.Second},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := newScriptedServer(429)
			srv.headers = map[string]string{"Retry-After": tt.retryAfter}
			defer srv.Close()

			now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
			gw := newTestGateway(&now)

			_, err := gw.Do(context.Background(), Request{URL: srv.URL})
			var rl *RateLimitedError
			if !errors.As(err, &rl) {
				t.Fatalf("want RateLimitedError, got %v", err)
			}
			if rl.RetryAfter != tt.want {
				t.Errorf("backoff = %s, want %s", rl.RetryAfter, tt.want)
			}
		})
	}
}

func TestTeapotFixedCooldown(t *testing.T) {
	srv := newScriptedServer(418)
	defer srv.Close()

	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	gw := newTestGateway(&now)

	_, err := gw.Do(context.Background(), Request{URL: srv.URL})
	var banned *BannedError
	if !errors.As(err, &banned) {
		t.Fatalf("want BannedError, got %v", err)
	}
	if banned.Cooldown != 90*time.Second {
		t.Errorf("cooldown = %s, want 90s", banned.Cooldown)
	}

	// Still banned just before the cooldown elapses.
	now = now.Add(89 * time.Second)
	if _, err := gw.Do(context.Background(), Request{URL: srv.URL}); err == nil {
		t.Fatal("want fail-fast inside cooldown")
	}
	if srv.hits != 1 {
		t.Errorf("server hits = %d, want 1", srv.hits)
	}

	// Past the cooldown the request goes out again (and now succeeds).
	now = now.Add(2 * time.Second)
	resp, err := gw.Do(context.Background(), Request{URL: srv.URL})
	if err != nil {
		t.Fatalf("after cooldown: %v", err)
	}
	resp.Body.Close()
}

func TestSuccessResetsBackoff(t *testing.T) {
	srv := newScriptedServer(429, 429, 200, 429)
	defer srv.Close()

	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	gw := newTestGateway(&now)
	ctx := context.Background()

	for _, wait := range []time.Duration{10 * time.Second, 20 * time.Second} {
		_, err := gw.Do(ctx, Request{URL: srv.URL})
		var rl *RateLimitedError
		if !errors.As(err, &rl) {
			t.Fatalf("want RateLimitedError, got %v", err)
		}
		if rl.RetryAfter != wait {
			t.Fatalf("backoff = %s, want %s", rl.RetryAfter, wait)
		}
		now = now.Add(wait + time.Second)
	}

	resp, err := gw.Do(ctx, Request{URL: srv.URL})
	if err != nil {
		t.Fatalf("expected success: %v", err)
	}
	resp.Body.Close()

	u, _ := url.Parse(srv.URL)
	if h := gw.Health()[u.Host]; h.ConsecutiveFailures != 0 || h.Status != "ok" {
		t.Errorf("health after success = %+v, want ok with 0 failures", h)
	}

	// The next 429 starts the ladder over at the base interval.
	_, err = gw.Do(ctx, Request{URL: srv.URL})
	var rl *RateLimitedError
	if !errors.As(err, &rl) {
		t.Fatalf("want RateLimitedError, got %v", err)
	}
	if rl.RetryAfter != 10*time.Second {
		t.Errorf("backoff after reset = %s, want 10s", rl.RetryAfter)
	}
}

func TestHealthReportsBackoffWindow(t *testing.T) {
	srv := newScriptedServer(429)
	defer srv.Close()

	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	gw := newTestGateway(&now)

	if _, err := gw.Do(context.Background(), Request{URL: srv.URL}); err == nil {
		t.Fatal("want error on 429")
	}

	u, _ := url.Parse(srv.URL)
	h, ok := gw.Health()[u.Host]
	if !ok {
		t.Fatalf("no health entry for %s", u.Host)
	}
	if h.Status != "backoff" || h.ConsecutiveFailures != 1 || h.BackoffRemainingSec != 10 {
		t.Errorf("health = %+v, want backoff/1/10", h)
	}

	now = now.Add(11 * time.Second)
	if h := gw.Health()[u.Host]; h.Status != "ok" || h.BackoffRemainingSec != 0 {
		t.Errorf("health after window = %+v, want ok with remaining 0", h)
	}
}

func TestGetJSONDecodesAndReportsMeta(t *testing.T) {
	srv := newScriptedServer()
	defer srv.Close()

	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	gw := newTestGateway(&now)

	var out struct {
		OK bool `json:"ok"`
	}
	meta, err := gw.GetJSON(context.Background(), Request{URL: srv.URL}, &out)
	if err != nil {
		t.Fatalf("GetJSON: %v", err)
	}
	if !out.OK {
		t.Error("decoded ok = false, want true")
	}
	u, _ := url.Parse(srv.URL)
	if meta.Source != u.Host {
		t.Errorf("meta source = %q, want %q", meta.Source, u.Host)
	}
}

func TestGetJSONParseError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("<html>not json</html>"))
	}))
	defer srv.Close()

	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	gw := newTestGateway(&now)

	var out map[string]any
	_, err := gw.GetJSON(context.Background(), Request{URL: srv.URL}, &out)
	var pe *ParseError
	if !errors.As(err, &pe) {
		t.Fatalf("want ParseError, got %v", err)
	}
}
