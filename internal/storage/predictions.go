package storage

import (
	"database/sql"
	"time"

	"github.com/ryzm/terminal/internal/model"
)

// SavePrediction persists one collaborator-emitted forecast and returns
// its assigned id. The record is read-only afterwards except for the
// evaluator's shortest-horizon backfill.
func (db *DB) SavePrediction(p *model.Prediction) (int64, error) {
	var id int64
	err := db.QueryRow(`
		INSERT INTO predictions (created_at, symbol, base_price, direction, confidence, consensus_score)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id
	`, p.CreatedAt.UTC(), p.Symbol, p.BasePrice, string(p.Direction), string(p.Confidence), p.ConsensusScore).Scan(&id)
	if err != nil {
		return 0, err
	}
	return id, nil
}

// UnevaluatedPredictions selects predictions due at the given horizon that
// have no evaluation row for it yet, oldest first, capped at limit.
func (db *DB) UnevaluatedPredictions(horizonMin int, cutoff time.Time, limit int) ([]model.Prediction, error) {
	rows, err := db.Query(`
		SELECT p.id, p.created_at, p.symbol, p.base_price, p.direction, p.confidence, p.consensus_score
		FROM predictions p
		LEFT JOIN prediction_evals e
		  ON e.prediction_id = p.id AND e.horizon_min = $1
		WHERE e.prediction_id IS NULL
		  AND p.base_price > 0
		  AND p.created_at <= $2
		ORDER BY p.id ASC
		LIMIT $3
	`, horizonMin, cutoff.UTC(), limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []model.Prediction
	for rows.Next() {
		var p model.Prediction
		var direction, confidence string
		if err := rows.Scan(&p.ID, &p.CreatedAt, &p.Symbol, &p.BasePrice, &direction, &confidence, &p.ConsensusScore); err != nil {
			return nil, err
		}
		p.Direction = model.Direction(direction)
		p.Confidence = model.Confidence(confidence)
		out = append(out, p)
	}
	return out, rows.Err()
}

// SaveEvaluations upserts one tick's grades in a single transaction to
// limit lock contention. When backfillSummary is set (shortest horizon),
// each graded prediction row also gets its return_pct/evaluated_at summary
// for single-horizon consumers.
func (db *DB) SaveEvaluations(evals []model.Evaluation, backfillSummary bool, priceSource string) error {
	if len(evals) == 0 {
		return nil
	}

	tx, err := db.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	for _, e := range evals {
		_, err := tx.Exec(`
			INSERT INTO prediction_evals (prediction_id, horizon_min, price_after, outcome, return_pct, evaluated_at)
			VALUES ($1, $2, $3, $4, $5, $6)
			ON CONFLICT (prediction_id, horizon_min)
			DO UPDATE SET
				price_after = EXCLUDED.price_after,
				outcome = EXCLUDED.outcome,
				return_pct = EXCLUDED.return_pct,
				evaluated_at = EXCLUDED.evaluated_at
		`, e.PredictionID, e.HorizonMin, e.PriceAfter, string(e.Outcome), e.ReturnPct, e.EvaluatedAt.UTC())
		if err != nil {
			return err
		}

		if backfillSummary {
			_, err = tx.Exec(`
				UPDATE predictions
				SET return_pct = $1, evaluated_at = $2, price_source = $3
				WHERE id = $4
			`, e.ReturnPct, e.EvaluatedAt.UTC(), priceSource, e.PredictionID)
			if err != nil {
				return err
			}
		}
	}

	return tx.Commit()
}

// AccuracySummary aggregates grades for one horizon. EXCLUDED rows count
// toward coverage's denominator but never toward accuracy.
func (db *DB) AccuracySummary(horizonMin int) (*model.AccuracySummary, error) {
	var (
		total, evaluated, hits int
		avgReturn              sql.NullFloat64
	)
	err := db.QueryRow(`
		SELECT
			COUNT(*),
			COUNT(*) FILTER (WHERE outcome <> 'EXCLUDED'),
			COUNT(*) FILTER (WHERE outcome = 'HIT'),
			AVG(return_pct) FILTER (WHERE outcome <> 'EXCLUDED')
		FROM prediction_evals
		WHERE horizon_min = $1
	`, horizonMin).Scan(&total, &evaluated, &hits, &avgReturn)
	if err != nil {
		return nil, err
	}

	summary := summarize(horizonMin, total, evaluated, hits)
	if avgReturn.Valid {
		summary.AvgReturnPct = &avgReturn.Float64
	}
	return summary, nil
}

// summarize derives the percentage view of one horizon's grade counts.
// EXCLUDED rows are total minus evaluated: they dilute coverage but never
// touch accuracy.
func summarize(horizonMin, total, evaluated, hits int) *model.AccuracySummary {
	summary := &model.AccuracySummary{
		HorizonMin: horizonMin,
		Total:      total,
		Evaluated:  evaluated,
		Hits:       hits,
	}
	if evaluated > 0 {
		accuracy := float64(hits) / float64(evaluated) * 100
		summary.AccuracyPct = &accuracy
	}
	if total > 0 {
		coverage := float64(evaluated) / float64(total) * 100
		summary.CoveragePct = &coverage
	}
	return summary
}

// RecentPredictions returns the newest predictions with their backfilled
// shortest-horizon summary, newest first.
func (db *DB) RecentPredictions(limit int) ([]model.Prediction, error) {
	rows, err := db.Query(`
		SELECT id, created_at, symbol, base_price, direction, confidence, consensus_score,
		       return_pct, evaluated_at, price_source
		FROM predictions
		ORDER BY id DESC
		LIMIT $1
	`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []model.Prediction
	for rows.Next() {
		var (
			p           model.Prediction
			direction   string
			confidence  string
			returnPct   sql.NullFloat64
			evaluatedAt sql.NullTime
		)
		err := rows.Scan(&p.ID, &p.CreatedAt, &p.Symbol, &p.BasePrice, &direction, &confidence,
			&p.ConsensusScore, &returnPct, &evaluatedAt, &p.PriceSource)
		if err != nil {
			return nil, err
		}
		p.Direction = model.Direction(direction)
		p.Confidence = model.Confidence(confidence)
		if returnPct.Valid {
			p.ReturnPct = &returnPct.Float64
		}
		if evaluatedAt.Valid {
			p.EvaluatedAt = &evaluatedAt.Time
		}
		out = append(out, p)
	}
	return out, rows.Err()
}
