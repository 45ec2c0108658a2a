package gateway

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"golang.org/x/time/rate"
)

// Gateway wraps outbound GETs with per-domain failure tracking and backoff.
// Rate limits in practice are host-scoped, so all state is keyed by domain,
// and a domain known to be inside its backoff window fails fast without
// spending any timeout budget on the network.
type Gateway struct {
	client  *http.Client
	limiter *rate.Limiter

	base        time.Duration
	cap         time.Duration
	banCooldown time.Duration
	timeout     time.Duration

	mu      sync.Mutex
	domains map[string]*domainState

	logger zerolog.Logger
	now    func() time.Time
}

// domainState tracks one upstream host. Created lazily on first failure.
type domainState struct {
	failures     int
	backoffUntil time.Time
	schedule     *backoff.ExponentialBackOff
}

// Options holds options for creating a new Gateway
type Options struct {
	Timeout        time.Duration
	RequestsPerSec int
	BackoffBase    time.Duration
	BackoffCap     time.Duration
	BanCooldown    time.Duration
}

// New creates a Gateway with outbound pacing and per-domain backoff state
func New(opts Options) *Gateway {
	// Set default values if not provided
	if opts.Timeout == 0 {
		opts.Timeout = 10 * time.Second
	}
	if opts.RequestsPerSec == 0 {
		opts.RequestsPerSec = 5
	}
	if opts.BackoffBase == 0 {
		opts.BackoffBase = 10 * time.Second
	}
	if opts.BackoffCap == 0 {
		opts.BackoffCap = 45 * time.Second
	}
	if opts.BanCooldown == 0 {
		opts.BanCooldown = 90 * time.Second
	}

	return &Gateway{
		client:      &http.Client{Timeout: opts.Timeout},
		limiter:     rate.NewLimiter(rate.Every(time.Second), opts.RequestsPerSec),
		base:        opts.BackoffBase,
		cap:         opts.BackoffCap,
		banCooldown: opts.BanCooldown,
		timeout:     opts.Timeout,
		domains:     make(map[string]*domainState),
		logger:      log.With().Str("component", "gateway").Logger(),
		now:         time.Now,
	}
}

// Request describes one outbound GET.
type Request struct {
	URL     string
	Timeout time.Duration
	Headers map[string]string
}

// Meta describes where and when a successful fetch came from.
type Meta struct {
	Source    string
	FetchedAt time.Time
	LatencyMS int64
}

// DomainHealth is the observable backoff state of one upstream host.
type DomainHealth struct {
	Status              string // "ok" or "backoff"
	ConsecutiveFailures int
	BackoffRemainingSec int
}

// Do performs a GET against req.URL. While the target domain is inside its
// backoff window the call fails fast with *RateLimitedError and no network
// request is made.
func (g *Gateway) Do(ctx context.Context, req Request) (*http.Response, error) {
	u, err := url.Parse(req.URL)
	if err != nil {
		return nil, &NetworkError{Domain: req.URL, Err: err}
	}
	domain := u.Host

	now := g.now()
	g.mu.Lock()
	if st, ok := g.domains[domain]; ok && now.Before(st.backoffUntil) {
		remaining := st.backoffUntil.Sub(now)
		g.mu.Unlock()
		g.logger.Warn().
			Str("domain", domain).
			Dur("remaining", remaining).
			Msg("Domain in backoff, skipping request")
		return nil, &RateLimitedError{Domain: domain, RetryAfter: remaining}
	}
	g.mu.Unlock()

	// Wait for rate limiter
	if err := g.limiter.Wait(ctx); err != nil {
		return nil, &NetworkError{Domain: domain, Err: err}
	}

	timeout := req.Timeout
	if timeout == 0 {
		timeout = g.timeout
	}
	reqCtx, cancel := context.WithTimeout(ctx, timeout)
	httpReq, err := http.NewRequestWithContext(reqCtx, http.MethodGet, req.URL, nil)
	if err != nil {
		cancel()
		return nil, &NetworkError{Domain: domain, Err: err}
	}
	for k, v := range req.Headers {
		httpReq.Header.Set(k, v)
	}

	resp, err := g.client.Do(httpReq)
	if err != nil {
		cancel()
		g.countFailure(domain)
		return nil, &NetworkError{Domain: domain, Err: err}
	}

	switch {
	case resp.StatusCode == http.StatusTooManyRequests:
		resp.Body.Close()
		cancel()
		wait := g.applyRateLimit(domain, resp.Header.Get("Retry-After"))
		return nil, &RateLimitedError{Domain: domain, RetryAfter: wait}

	case resp.StatusCode == http.StatusTeapot:
		resp.Body.Close()
		cancel()
		g.applyBan(domain)
		return nil, &BannedError{Domain: domain, Cooldown: g.banCooldown}

	case resp.StatusCode < 200 || resp.StatusCode > 299:
		resp.Body.Close()
		cancel()
		g.countFailure(domain)
		return nil, &StatusError{Domain: domain, StatusCode: resp.StatusCode}
	}

	g.markSuccess(domain)
	// Caller closes the body; the context must outlive the read.
	resp.Body = &cancelReadCloser{ReadCloser: resp.Body, cancel: cancel}
	return resp, nil
}

// GetJSON performs Do and decodes the body into target.
func (g *Gateway) GetJSON(ctx context.Context, req Request, target any) (*Meta, error) {
	start := g.now()

	resp, err := g.Do(ctx, req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	domain := resp.Request.URL.Host
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &NetworkError{Domain: domain, Err: err}
	}
	if err := json.Unmarshal(body, target); err != nil {
		g.logger.Error().Err(err).Str("domain", domain).Msg("Error parsing JSON")
		return nil, &ParseError{Domain: domain, Err: err}
	}

	return &Meta{
		Source:    domain,
		FetchedAt: g.now().UTC(),
		LatencyMS: g.now().Sub(start).Milliseconds(),
	}, nil
}

// Health reports per-domain backoff and failure state for monitoring.
func (g *Gateway) Health() map[string]DomainHealth {
	now := g.now()
	g.mu.Lock()
	defer g.mu.Unlock()

	health := make(map[string]DomainHealth, len(g.domains))
	for domain, st := range g.domains {
		status := "ok"
		remaining := 0
		if now.Before(st.backoffUntil) {
			status = "backoff"
			remaining = int(st.backoffUntil.Sub(now).Round(time.Second) / time.Second)
		}
		health[domain] = DomainHealth{
			Status:              status,
			ConsecutiveFailures: st.failures,
			BackoffRemainingSec: remaining,
		}
	}
	return health
}

// ensureState returns the state for domain, creating it lazily.
// Caller must hold g.mu.
func (g *Gateway) ensureState(domain string) *domainState {
	st, ok := g.domains[domain]
	if !ok {
		sched := backoff.NewExponentialBackOff()
		sched.InitialInterval = g.base
		sched.RandomizationFactor = 0
		sched.Multiplier = 2
		sched.MaxInterval = g.cap
		sched.MaxElapsedTime = 0 // schedule never stops on its own
		sched.Reset()
		st = &domainState{schedule: sched}
		g.domains[domain] = st
	}
	return st
}

// applyRateLimit advances the domain's exponential schedule after a 429 and
// returns the computed wait. A larger server Retry-After wins.
func (g *Gateway) applyRateLimit(domain, retryAfter string) time.Duration {
	g.mu.Lock()
	defer g.mu.Unlock()

	st := g.ensureState(domain)
	st.failures++

	wait := st.schedule.NextBackOff()
	if retryAfter != "" {
		if ra, err := strconv.Atoi(retryAfter); err == nil {
			if server := time.Duration(ra) * time.Second; server > wait {
				wait = server
			}
		}
	}
	st.backoffUntil = g.now().Add(wait)

	g.logger.Warn().
		Str("domain", domain).
		Int("failures", st.failures).
		Dur("backoff", wait).
		Msg("429 received, backing off")
	return wait
}

// applyBan sets the fixed short cooldown after a 418. On shared egress IPs
// the ban rotates quickly, so the cooldown is much shorter than a full
// exponential ramp.
func (g *Gateway) applyBan(domain string) {
	g.mu.Lock()
	defer g.mu.Unlock()

	st := g.ensureState(domain)
	st.failures++
	st.backoffUntil = g.now().Add(g.banCooldown)

	g.logger.Error().
		Str("domain", domain).
		Dur("cooldown", g.banCooldown).
		Msg("418 IP ban received")
}

// countFailure records a failure that was not already counted as 429/418.
func (g *Gateway) countFailure(domain string) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.ensureState(domain).failures++
}

// markSuccess resets the failure counter and schedule after any 2xx.
func (g *Gateway) markSuccess(domain string) {
	g.mu.Lock()
	defer g.mu.Unlock()

	st, ok := g.domains[domain]
	if !ok || st.failures == 0 {
		return
	}
	st.failures = 0
	st.schedule.Reset()
	g.logger.Info().Str("domain", domain).Msg("Domain recovered from rate limit")
}

// cancelReadCloser releases the request context when the body is closed.
type cancelReadCloser struct {
	io.ReadCloser
	cancel context.CancelFunc
}

func (c *cancelReadCloser) Close() error {
	err := c.ReadCloser.Close()
	c.cancel()
	return err
}
