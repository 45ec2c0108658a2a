package evaluator

import (
	"sort"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/ryzm/terminal/internal/model"
)

// Store is the persistence surface the evaluator needs.
type Store interface {
	UnevaluatedPredictions(horizonMin int, cutoff time.Time, limit int) ([]model.Prediction, error)
	NearestSnapshot(symbol string, target time.Time, window time.Duration) (*model.Snapshot, error)
	SaveEvaluations(evals []model.Evaluation, backfillSummary bool, priceSource string) error
}

// Evaluator grades pending predictions against captured price snapshots.
// Each (prediction, horizon) pair moves PENDING → HIT/MISS/EXCLUDED exactly
// once; a pair whose grading window holds no snapshot stays PENDING and is
// reconsidered every run under the same selection criterion.
type Evaluator struct {
	store       Store
	horizonsMin []int
	window      time.Duration
	batchSize   int
	priceSource string
	logger      zerolog.Logger
}

// Options holds options for creating a new Evaluator
type Options struct {
	HorizonsMin []int
	Window      time.Duration
	BatchSize   int
	PriceSource string
}

// New creates an Evaluator over the given store
func New(store Store, opts Options) *Evaluator {
	if len(opts.HorizonsMin) == 0 {
		opts.HorizonsMin = []int{60}
	}
	if opts.Window == 0 {
		opts.Window = 10 * time.Minute
	}
	if opts.BatchSize == 0 {
		opts.BatchSize = 50
	}

	horizons := make([]int, len(opts.HorizonsMin))
	copy(horizons, opts.HorizonsMin)
	sort.Ints(horizons)

	return &Evaluator{
		store:       store,
		horizonsMin: horizons,
		window:      opts.Window,
		batchSize:   opts.BatchSize,
		priceSource: opts.PriceSource,
		logger:      log.With().Str("component", "evaluator").Logger(),
	}
}

// Run grades every due, ungraded (prediction, horizon) pair. Failures are
// per-pair: a bad row is skipped and retried next run, never aborting the
// batch. Grades for one horizon persist as a single batch write.
func (e *Evaluator) Run(now time.Time) {
	shortest := e.horizonsMin[0]

	for _, h := range e.horizonsMin {
		horizon := time.Duration(h) * time.Minute
		cutoff := now.Add(-horizon)

		pending, err := e.store.UnevaluatedPredictions(h, cutoff, e.batchSize)
		if err != nil {
			e.logger.Error().Err(err).Int("horizon_min", h).Msg("Selecting due predictions failed")
			continue
		}
		if len(pending) == 0 {
			continue
		}

		var batch []model.Evaluation
		for _, p := range pending {
			target := p.CreatedAt.Add(horizon)
			snap, err := e.store.NearestSnapshot(p.Symbol, target, e.window)
			if err != nil {
				e.logger.Error().Err(err).Int64("prediction_id", p.ID).Msg("Snapshot lookup failed")
				continue
			}
			if snap == nil {
				// No sample near target yet; stays PENDING.
				continue
			}
			batch = append(batch, grade(p, h, snap.Price, now))
		}

		if len(batch) == 0 {
			continue
		}
		if err := e.store.SaveEvaluations(batch, h == shortest, e.priceSource); err != nil {
			e.logger.Error().Err(err).Int("horizon_min", h).Msg("Persisting evaluations failed")
			continue
		}
		e.logger.Info().
			Int("horizon_min", h).
			Int("count", len(batch)).
			Msg("Predictions evaluated")
	}
}

// grade produces the terminal outcome for one (prediction, horizon) pair.
// NEUTRAL always grades EXCLUDED regardless of price movement; otherwise
// the realized direction is BULL iff the price rose above base.
func grade(p model.Prediction, horizonMin int, priceAfter float64, now time.Time) model.Evaluation {
	eval := model.Evaluation{
		PredictionID: p.ID,
		HorizonMin:   horizonMin,
		PriceAfter:   priceAfter,
		ReturnPct:    (priceAfter - p.BasePrice) / p.BasePrice * 100,
		EvaluatedAt:  now,
	}

	if p.Direction == model.DirectionNeutral {
		eval.Outcome = model.OutcomeExcluded
		return eval
	}

	actual := model.DirectionBear
	if priceAfter > p.BasePrice {
		actual = model.DirectionBull
	}
	if actual == p.Direction {
		eval.Outcome = model.OutcomeHit
	} else {
		eval.Outcome = model.OutcomeMiss
	}
	return eval
}
