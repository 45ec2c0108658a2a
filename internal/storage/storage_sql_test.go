package storage

import (
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/rs/zerolog"

	"github.com/ryzm/terminal/internal/model"
)

func newMockDB(t *testing.T) (*DB, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return &DB{DB: db, logger: zerolog.Nop()}, mock
}

func TestRecordSnapshotTruncatesAndIgnoresDuplicates(t *testing.T) {
	db, mock := newMockDB(t)

	loc := time.FixedZone("KST", 9*3600)
	capturedAt := time.Date(2026, 1, 1, 21, 0, 0, 123456789, loc)
	wantAt := capturedAt.UTC().Truncate(time.Second)

	snap := model.Snapshot{CapturedAt: capturedAt, Symbol: "BTC", Price: 65000.5, Source: "binance"}

	// First write inserts, the identical second one hits DO NOTHING.
	mock.ExpectExec(`INSERT INTO price_snapshots .* ON CONFLICT \(captured_at, symbol\) DO NOTHING`).
		WithArgs(wantAt, "BTC", 65000.5, "binance").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(`INSERT INTO price_snapshots .* ON CONFLICT \(captured_at, symbol\) DO NOTHING`).
		WithArgs(wantAt, "BTC", 65000.5, "binance").
		WillReturnResult(sqlmock.NewResult(0, 0))

	if err := db.RecordSnapshot(snap); err != nil {
		t.Fatalf("first RecordSnapshot: %v", err)
	}
	if err := db.RecordSnapshot(snap); err != nil {
		t.Fatalf("duplicate RecordSnapshot: %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Error(err)
	}
}

func TestNearestSnapshotEmptyWindow(t *testing.T) {
	db, mock := newMockDB(t)

	mock.ExpectQuery(`SELECT captured_at, symbol, price, source\s+FROM price_snapshots`).
		WillReturnRows(sqlmock.NewRows([]string{"captured_at", "symbol", "price", "source"}))

	snap, err := db.NearestSnapshot("BTC", time.Now(), 10*time.Minute)
	if err != nil {
		t.Fatalf("NearestSnapshot: %v", err)
	}
	if snap != nil {
		t.Errorf("snapshot = %+v, want nil for an empty window", snap)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Error(err)
	}
}

func TestSaveEvaluationsSingleTransactionWithBackfill(t *testing.T) {
	db, mock := newMockDB(t)

	now := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	evals := []model.Evaluation{
		{PredictionID: 1, HorizonMin: 15, PriceAfter: 105, Outcome: model.OutcomeHit, ReturnPct: 5, EvaluatedAt: now},
		{PredictionID: 2, HorizonMin: 15, PriceAfter: 95, Outcome: model.OutcomeMiss, ReturnPct: -5, EvaluatedAt: now},
	}

	mock.ExpectBegin()
	for _, e := range evals {
		mock.ExpectExec(`INSERT INTO prediction_evals .* ON CONFLICT \(prediction_id, horizon_min\)`).
			WithArgs(e.PredictionID, e.HorizonMin, e.PriceAfter, string(e.Outcome), e.ReturnPct, e.EvaluatedAt.UTC()).
			WillReturnResult(sqlmock.NewResult(0, 1))
		mock.ExpectExec(`UPDATE predictions`).
			WithArgs(e.ReturnPct, e.EvaluatedAt.UTC(), "binance", e.PredictionID).
			WillReturnResult(sqlmock.NewResult(0, 1))
	}
	mock.ExpectCommit()

	if err := db.SaveEvaluations(evals, true, "binance"); err != nil {
		t.Fatalf("SaveEvaluations: %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Error(err)
	}
}

func TestSaveEvaluationsNoBackfillForLongerHorizons(t *testing.T) {
	db, mock := newMockDB(t)

	now := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	evals := []model.Evaluation{
		{PredictionID: 1, HorizonMin: 1440, PriceAfter: 105, Outcome: model.OutcomeHit, ReturnPct: 5, EvaluatedAt: now},
	}

	mock.ExpectBegin()
	mock.ExpectExec(`INSERT INTO prediction_evals`).
		WithArgs(int64(1), 1440, 105.0, "HIT", 5.0, now).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	if err := db.SaveEvaluations(evals, false, "binance"); err != nil {
		t.Fatalf("SaveEvaluations: %v", err)
	}
	// No UPDATE predictions statement may have run.
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Error(err)
	}
}

func TestSaveEvaluationsRollsBackOnFailure(t *testing.T) {
	db, mock := newMockDB(t)

	now := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	evals := []model.Evaluation{
		{PredictionID: 1, HorizonMin: 60, PriceAfter: 105, Outcome: model.OutcomeHit, ReturnPct: 5, EvaluatedAt: now},
	}

	mock.ExpectBegin()
	mock.ExpectExec(`INSERT INTO prediction_evals`).
		WillReturnError(errors.New("deadlock detected"))
	mock.ExpectRollback()

	if err := db.SaveEvaluations(evals, false, "binance"); err == nil {
		t.Fatal("want error when the insert fails")
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Error(err)
	}
}

func TestSaveEvaluationsEmptyBatchTouchesNothing(t *testing.T) {
	db, mock := newMockDB(t)

	if err := db.SaveEvaluations(nil, true, "binance"); err != nil {
		t.Fatalf("SaveEvaluations(nil): %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Error(err)
	}
}
