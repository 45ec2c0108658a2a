package evaluator

import (
	"errors"
	"testing"
	"time"

	"github.com/ryzm/terminal/internal/model"
)

type savedBatch struct {
	evals    []model.Evaluation
	backfill bool
	source   string
}

type fakeStore struct {
	pending map[int][]model.Prediction
	snap    *model.Snapshot
	snapErr error
	saved   []savedBatch
}

func (f *fakeStore) UnevaluatedPredictions(horizonMin int, cutoff time.Time, limit int) ([]model.Prediction, error) {
	var due []model.Prediction
	for _, p := range f.pending[horizonMin] {
		if !p.CreatedAt.After(cutoff) {
			due = append(due, p)
		}
	}
	if len(due) > limit {
		due = due[:limit]
	}
	return due, nil
}

func (f *fakeStore) NearestSnapshot(symbol string, target time.Time, window time.Duration) (*model.Snapshot, error) {
	if f.snapErr != nil {
		return nil, f.snapErr
	}
	if f.snap != nil && f.snap.Symbol == symbol {
		return f.snap, nil
	}
	return nil, nil
}

func (f *fakeStore) SaveEvaluations(evals []model.Evaluation, backfillSummary bool, priceSource string) error {
	f.saved = append(f.saved, savedBatch{evals: evals, backfill: backfillSummary, source: priceSource})
	// Saved pairs drop out of the pending set, like the LEFT JOIN does.
	for _, e := range evals {
		remaining := f.pending[e.HorizonMin][:0]
		for _, p := range f.pending[e.HorizonMin] {
			if p.ID != e.PredictionID {
				remaining = append(remaining, p)
			}
		}
		f.pending[e.HorizonMin] = remaining
	}
	return nil
}

func prediction(id int64, createdAt time.Time, dir model.Direction, base float64) model.Prediction {
	return model.Prediction{ID: id, CreatedAt: createdAt, Symbol: "BTC", BasePrice: base, Direction: dir}
}

func TestGradeOutcomes(t *testing.T) {
	now := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	created := now.Add(-2 * time.Hour)

	tests := []struct {
		name       string
		direction  model.Direction
		base       float64
		priceAfter float64
		want       model.Outcome
	}{
		{"bull call and price rose", model.DirectionBull, 100, 110, model.OutcomeHit},
		{"bull call and price fell", model.DirectionBull, 100, 90, model.OutcomeMiss},
		{"bear call and price fell", model.DirectionBear, 100, 90, model.OutcomeHit},
		{"bear call and price rose", model.DirectionBear, 100, 110, model.OutcomeMiss},
		{"unchanged price counts as bear", model.DirectionBear, 100, 100, model.OutcomeHit},
		{"unchanged price fails a bull call", model.DirectionBull, 100, 100, model.OutcomeMiss},
		{"neutral is excluded on a rise", model.DirectionNeutral, 100, 150, model.OutcomeExcluded},
		{"neutral is excluded on a fall", model.DirectionNeutral, 100, 50, model.OutcomeExcluded},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := prediction(1, created, tt.direction, tt.base)
			eval := grade(p, 60, tt.priceAfter, now)
			if eval.Outcome != tt.want {
				t.Errorf("outcome = %s, want %s", eval.Outcome, tt.want)
			}
			wantReturn := (tt.priceAfter - tt.base) / tt.base * 100
			if eval.ReturnPct != wantReturn {
				t.Errorf("return = %v, want %v", eval.ReturnPct, wantReturn)
			}
			if eval.HorizonMin != 60 || eval.PredictionID != 1 {
				t.Errorf("eval identity = (%d, %d), want (1, 60)", eval.PredictionID, eval.HorizonMin)
			}
		})
	}
}

func TestRunGradesDuePredictions(t *testing.T) {
	now := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	store := &fakeStore{
		pending: map[int][]model.Prediction{
			60: {prediction(1, now.Add(-90*time.Minute), model.DirectionBull, 100)},
		},
		snap: &model.Snapshot{CapturedAt: now.Add(-30 * time.Minute), Symbol: "BTC", Price: 105},
	}

	e := New(store, Options{HorizonsMin: []int{60}, Window: 10 * time.Minute, PriceSource: "binance"})
	e.Run(now)

	if len(store.saved) != 1 {
		t.Fatalf("batches saved = %d, want 1", len(store.saved))
	}
	batch := store.saved[0]
	if len(batch.evals) != 1 {
		t.Fatalf("evals in batch = %d, want 1", len(batch.evals))
	}
	if batch.evals[0].Outcome != model.OutcomeHit {
		t.Errorf("outcome = %s, want HIT", batch.evals[0].Outcome)
	}
	if !batch.backfill {
		t.Error("single horizon should backfill the prediction summary")
	}
	if batch.source != "binance" {
		t.Errorf("price source = %q, want binance", batch.source)
	}
}

func TestRunSkipsNotYetDue(t *testing.T) {
	now := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	store := &fakeStore{
		pending: map[int][]model.Prediction{
			60: {prediction(1, now.Add(-30*time.Minute), model.DirectionBull, 100)},
		},
		snap: &model.Snapshot{CapturedAt: now, Symbol: "BTC", Price: 105},
	}

	e := New(store, Options{HorizonsMin: []int{60}})
	e.Run(now)

	if len(store.saved) != 0 {
		t.Fatalf("batches saved = %d, want 0 for a prediction younger than its horizon", len(store.saved))
	}
}

func TestRunEmptyWindowStaysPending(t *testing.T) {
	now := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	store := &fakeStore{
		pending: map[int][]model.Prediction{
			60: {prediction(1, now.Add(-2*time.Hour), model.DirectionBull, 100)},
		},
	}

	e := New(store, Options{HorizonsMin: []int{60}})
	e.Run(now)
	if len(store.saved) != 0 {
		t.Fatalf("batches saved = %d, want 0 with no snapshot in window", len(store.saved))
	}

	// A later run with a snapshot available grades it exactly once.
	store.snap = &model.Snapshot{CapturedAt: now, Symbol: "BTC", Price: 95}
	e.Run(now.Add(10 * time.Minute))
	e.Run(now.Add(20 * time.Minute))

	total := 0
	for _, b := range store.saved {
		total += len(b.evals)
	}
	if total != 1 {
		t.Fatalf("evals saved across reruns = %d, want exactly 1", total)
	}
	if store.saved[0].evals[0].Outcome != model.OutcomeMiss {
		t.Errorf("outcome = %s, want MISS", store.saved[0].evals[0].Outcome)
	}
}

func TestRunHorizonsAreIndependent(t *testing.T) {
	now := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	p := prediction(1, now.Add(-2*time.Hour), model.DirectionBull, 100)
	store := &fakeStore{
		pending: map[int][]model.Prediction{
			15:   {p},
			60:   {p},
			1440: {p}, // due in another 22 hours
		},
		snap: &model.Snapshot{CapturedAt: now.Add(-time.Hour), Symbol: "BTC", Price: 110},
	}

	e := New(store, Options{HorizonsMin: []int{1440, 15, 60}})
	e.Run(now)

	if len(store.saved) != 2 {
		t.Fatalf("batches saved = %d, want one each for 15m and 60m", len(store.saved))
	}

	// Horizons were sorted ascending, so the 15m batch is first and is the
	// only one allowed to backfill the prediction row.
	if store.saved[0].evals[0].HorizonMin != 15 || !store.saved[0].backfill {
		t.Errorf("first batch = horizon %d backfill %v, want 15/true",
			store.saved[0].evals[0].HorizonMin, store.saved[0].backfill)
	}
	if store.saved[1].evals[0].HorizonMin != 60 || store.saved[1].backfill {
		t.Errorf("second batch = horizon %d backfill %v, want 60/false",
			store.saved[1].evals[0].HorizonMin, store.saved[1].backfill)
	}
	if len(store.pending[1440]) != 1 {
		t.Error("undue 24h horizon should remain pending")
	}
}

func TestRunSnapshotLookupFailureIsolated(t *testing.T) {
	now := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	store := &fakeStore{
		pending: map[int][]model.Prediction{
			60: {prediction(1, now.Add(-2*time.Hour), model.DirectionBull, 100)},
		},
		snapErr: errors.New("connection reset"),
	}

	e := New(store, Options{HorizonsMin: []int{60}})
	e.Run(now) // must not panic or save anything

	if len(store.saved) != 0 {
		t.Fatalf("batches saved = %d, want 0 on lookup failure", len(store.saved))
	}
}
