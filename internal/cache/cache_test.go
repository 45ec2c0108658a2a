package cache

import (
	"testing"
	"time"

	"github.com/ryzm/terminal/internal/model"
)

func TestGetUnknownKey(t *testing.T) {
	s := New()
	if _, ok := s.Get("quotes"); ok {
		t.Error("unknown key returned ok = true")
	}
}

func TestRegisteredButNeverFetched(t *testing.T) {
	s := New()
	s.Register("quotes", time.Minute)

	r, ok := s.Get("quotes")
	if !ok {
		t.Fatal("registered key returned ok = false")
	}
	if r.Value != nil {
		t.Errorf("value = %v, want nil before first fetch", r.Value)
	}
	if !r.LastRefreshed.IsZero() {
		t.Errorf("lastRefreshed = %v, want zero", r.LastRefreshed)
	}
	if !s.Stale("quotes", time.Now()) {
		t.Error("never-fetched series reported fresh")
	}
}

func TestStaleness(t *testing.T) {
	base := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	tests := []struct {
		name    string
		ttl     time.Duration
		age     time.Duration
		stale   bool
	}{
		{"fresh well within ttl", time.Minute, 10 * time.Second, false},
		{"age equal to ttl still fresh", time.Minute, time.Minute, false},
		{"just past ttl", time.Minute, time.Minute + time.Second, true},
		{"long past ttl", time.Minute, time.Hour, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := New()
			s.Register("fear_greed", tt.ttl)
			s.Put("fear_greed", model.FearGreed{Score: 50}, base)

			if got := s.Stale("fear_greed", base.Add(tt.age)); got != tt.stale {
				t.Errorf("Stale at age %s = %v, want %v", tt.age, got, tt.stale)
			}
		})
	}
}

func TestPutOverwrites(t *testing.T) {
	s := New()
	s.Register("quotes", time.Minute)

	t0 := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	s.Put("quotes", model.Quotes{"BTC": {Price: 100}}, t0)
	s.Put("quotes", model.Quotes{"BTC": {Price: 200}}, t0.Add(time.Minute))

	r, ok := s.Get("quotes")
	if !ok {
		t.Fatal("key missing after Put")
	}
	quotes, ok := r.Value.(model.Quotes)
	if !ok {
		t.Fatalf("value type = %T, want model.Quotes", r.Value)
	}
	if quotes["BTC"].Price != 200 {
		t.Errorf("price = %v, want 200", quotes["BTC"].Price)
	}
	if !r.LastRefreshed.Equal(t0.Add(time.Minute)) {
		t.Errorf("lastRefreshed = %v, want %v", r.LastRefreshed, t0.Add(time.Minute))
	}
}

func TestGetReportsAge(t *testing.T) {
	refreshed := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	current := refreshed.Add(45 * time.Second)

	s := New()
	s.now = func() time.Time { return current }
	s.Register("quotes", time.Minute)
	s.Put("quotes", model.Quotes{"BTC": {Price: 100}}, refreshed)

	r, ok := s.Get("quotes")
	if !ok {
		t.Fatal("key missing")
	}
	if r.Age != 45*time.Second {
		t.Errorf("age = %s, want 45s", r.Age)
	}

	current = refreshed.Add(10 * time.Minute)
	if r, _ = s.Get("quotes"); r.Age != 10*time.Minute {
		t.Errorf("age = %s, want 10m", r.Age)
	}
}

func TestRegisterIsIdempotent(t *testing.T) {
	s := New()
	s.Register("forex", 10*time.Minute)
	s.Put("forex", model.ForexRates{KRW: 1350}, time.Now())
	s.Register("forex", 10*time.Minute)

	r, _ := s.Get("forex")
	if r.Value == nil {
		t.Error("re-registering dropped the stored value")
	}
}

func TestKeys(t *testing.T) {
	s := New()
	s.Register("quotes", time.Minute)
	s.Register("heatmap", 10*time.Minute)

	if got := len(s.Keys()); got != 2 {
		t.Errorf("len(Keys()) = %d, want 2", got)
	}
}
