package scheduler

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/go-co-op/gocron"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/ryzm/terminal/internal/cache"
	"github.com/ryzm/terminal/internal/model"
)

// Series is one independently-TTLed data series: a cache key, its TTL,
// and the fetch that refreshes it.
type Series struct {
	Key   string
	TTL   time.Duration
	Fetch func(ctx context.Context) (model.SeriesValue, error)
}

// Analyzer is the opaque analysis collaborator. The scheduler persists
// whatever prediction it emits and never inspects its content.
type Analyzer interface {
	Analyze(ctx context.Context, quotes model.Quotes) (*model.Prediction, error)
}

// Store is the persistence surface the scheduler itself writes to.
type Store interface {
	RecordSnapshot(snap model.Snapshot) error
	SavePrediction(p *model.Prediction) (int64, error)
}

// PriceFetcher supplies the snapshot side-task's price sample.
type PriceFetcher interface {
	SpotPrice(ctx context.Context, symbol string) (float64, error)
}

// Grader evaluates due predictions; satisfied by *evaluator.Evaluator.
type Grader interface {
	Run(now time.Time)
}

// AlertChecker sweeps threshold alerts; satisfied by *alerts.Checker.
type AlertChecker interface {
	Check(quotes model.Quotes, now time.Time) []model.AlertEvent
}

// Cleaner garbage-collects rate-limit bookkeeping.
type Cleaner interface {
	Cleanup(now time.Time) int
}

// Exactly one scheduler may run per process; a second one would
// double-fetch every series and double-grade every prediction.
var (
	startMu sync.Mutex
	started bool
)

// Scheduler is the single cooperative refresh loop. Per tick it refreshes
// every stale series in registration order, then runs the fixed-cadence
// side-tasks, then sleeps until the next tick.
type Scheduler struct {
	cache  *cache.Store
	series []Series

	store    Store
	prices   PriceFetcher
	grader   Grader
	alerts   AlertChecker
	limiter  Cleaner
	analyzer Analyzer

	tickInterval     time.Duration
	fetchTimeout     time.Duration
	analysisInterval time.Duration
	gcEvery          int
	snapshotSymbol   string
	snapshotSource   string

	cron         *gocron.Scheduler
	tickCount    int
	lastAnalysis time.Time
	now          func() time.Time
	logger       zerolog.Logger
}

// Options holds options for creating a new Scheduler
type Options struct {
	Cache    *cache.Store
	Series   []Series
	Store    Store
	Prices   PriceFetcher
	Grader   Grader
	Alerts   AlertChecker
	Limiter  Cleaner
	Analyzer Analyzer

	TickInterval     time.Duration
	FetchTimeout     time.Duration
	AnalysisInterval time.Duration
	GCEvery          int
	SnapshotSymbol   string
	SnapshotSource   string
}

// New creates a Scheduler
func New(opts Options) *Scheduler {
	// Set default values if not provided
	if opts.TickInterval == 0 {
		opts.TickInterval = 60 * time.Second
	}
	if opts.FetchTimeout == 0 {
		opts.FetchTimeout = 15 * time.Second
	}
	if opts.AnalysisInterval == 0 {
		opts.AnalysisInterval = time.Hour
	}
	if opts.GCEvery == 0 {
		opts.GCEvery = 10
	}
	if opts.SnapshotSymbol == "" {
		opts.SnapshotSymbol = "BTC"
	}
	if opts.SnapshotSource == "" {
		opts.SnapshotSource = "binance"
	}

	return &Scheduler{
		cache:            opts.Cache,
		series:           opts.Series,
		store:            opts.Store,
		prices:           opts.Prices,
		grader:           opts.Grader,
		alerts:           opts.Alerts,
		limiter:          opts.Limiter,
		analyzer:         opts.Analyzer,
		tickInterval:     opts.TickInterval,
		fetchTimeout:     opts.FetchTimeout,
		analysisInterval: opts.AnalysisInterval,
		gcEvery:          opts.GCEvery,
		snapshotSymbol:   opts.SnapshotSymbol,
		snapshotSource:   opts.SnapshotSource,
		now:              time.Now,
		logger:           log.With().Str("component", "scheduler").Logger(),
	}
}

// Start registers all series and launches the background loop. Calling
// Start twice in one process returns an error; the guard is never released
// so a crashed loop is not silently restarted alongside a live one.
func (s *Scheduler) Start() error {
	startMu.Lock()
	defer startMu.Unlock()
	if started {
		return errors.New("scheduler already started in this process")
	}
	started = true

	for _, sr := range s.series {
		s.cache.Register(sr.Key, sr.TTL)
	}

	s.cron = gocron.NewScheduler(time.UTC)
	_, err := s.cron.Every(s.tickInterval).SingletonMode().Do(func() {
		s.runTick(context.Background())
	})
	if err != nil {
		return err
	}
	s.cron.StartAsync()

	s.logger.Info().
		Dur("tick", s.tickInterval).
		Int("series", len(s.series)).
		Msg("Background refresh loop started")
	return nil
}

// Stop halts the loop. A tick in flight finishes first.
func (s *Scheduler) Stop() {
	if s.cron != nil {
		s.cron.Stop()
	}
}

// runTick is one pass of the loop. Series refresh in fixed order, each
// behind its own timeout; one series failing or timing out never blocks
// another, and side-tasks always run after all series were considered.
func (s *Scheduler) runTick(ctx context.Context) {
	s.tickCount++
	now := s.now()

	for _, sr := range s.series {
		if !s.cache.Stale(sr.Key, now) {
			continue
		}
		fetchCtx, cancel := context.WithTimeout(ctx, s.fetchTimeout)
		value, err := sr.Fetch(fetchCtx)
		cancel()
		if err != nil {
			// Previous value stays; next attempt is the next stale tick.
			s.logger.Error().Err(err).Str("series", sr.Key).Msg("Series refresh failed")
			continue
		}
		s.cache.Put(sr.Key, value, s.now())
		s.logger.Info().Str("series", sr.Key).Msg("Series refreshed")
	}

	s.runAnalysis(ctx, now)
	s.captureSnapshot(ctx)
	if s.grader != nil {
		s.grader.Run(s.now())
	}
	s.checkAlerts()
	if s.limiter != nil && s.tickCount%s.gcEvery == 0 {
		if removed := s.limiter.Cleanup(s.now()); removed > 0 {
			s.logger.Debug().Int("removed", removed).Msg("Rate-limit bookkeeping cleaned")
		}
	}
}

// runAnalysis invokes the analysis collaborator on its own slower cadence
// and persists the emitted prediction.
func (s *Scheduler) runAnalysis(ctx context.Context, now time.Time) {
	if s.analyzer == nil || s.store == nil {
		return
	}
	if !s.lastAnalysis.IsZero() && now.Sub(s.lastAnalysis) < s.analysisInterval {
		return
	}
	quotes, ok := s.currentQuotes()
	if !ok {
		return
	}

	prediction, err := s.analyzer.Analyze(ctx, quotes)
	if err != nil {
		s.logger.Error().Err(err).Msg("Analysis collaborator failed")
		return
	}
	if prediction == nil {
		return
	}

	if prediction.CreatedAt.IsZero() {
		prediction.CreatedAt = now
	}
	if prediction.Symbol == "" {
		prediction.Symbol = s.snapshotSymbol
	}
	if prediction.BasePrice == 0 {
		prediction.BasePrice = quotes[s.snapshotSymbol].Price
	}

	id, err := s.store.SavePrediction(prediction)
	if err != nil {
		s.logger.Error().Err(err).Msg("Persisting prediction failed")
		return
	}
	s.lastAnalysis = now
	s.logger.Info().
		Int64("prediction_id", id).
		Str("direction", string(prediction.Direction)).
		Float64("base_price", prediction.BasePrice).
		Msg("Prediction recorded")
}

// captureSnapshot appends one ground-truth price sample for the grading
// pipeline. Duplicate (second, symbol) writes are no-ops downstream.
func (s *Scheduler) captureSnapshot(ctx context.Context) {
	if s.store == nil || s.prices == nil {
		return
	}
	price, err := s.prices.SpotPrice(ctx, s.snapshotSymbol)
	if err != nil {
		s.logger.Error().Err(err).Msg("Snapshot price fetch failed")
		return
	}
	err = s.store.RecordSnapshot(model.Snapshot{
		CapturedAt: s.now(),
		Symbol:     s.snapshotSymbol,
		Price:      price,
		Source:     s.snapshotSource,
	})
	if err != nil {
		s.logger.Error().Err(err).Msg("Snapshot store failed")
	}
}

// checkAlerts sweeps thresholds against this tick's freshest quotes.
func (s *Scheduler) checkAlerts() {
	if s.alerts == nil {
		return
	}
	quotes, ok := s.currentQuotes()
	if !ok {
		return
	}
	s.alerts.Check(quotes, s.now())
}

func (s *Scheduler) currentQuotes() (model.Quotes, bool) {
	reading, ok := s.cache.Get(model.SeriesQuotes)
	if !ok || reading.Value == nil {
		return nil, false
	}
	quotes, ok := reading.Value.(model.Quotes)
	return quotes, ok && len(quotes) > 0
}
