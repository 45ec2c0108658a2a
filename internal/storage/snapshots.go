package storage

import (
	"time"

	"github.com/ryzm/terminal/internal/model"
)

// RecordSnapshot appends one price sample. Timestamps are truncated to
// whole seconds; writing the same (captured_at, symbol) twice is a no-op.
func (db *DB) RecordSnapshot(snap model.Snapshot) error {
	_, err := db.Exec(`
		INSERT INTO price_snapshots (captured_at, symbol, price, source)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (captured_at, symbol) DO NOTHING
	`, snap.CapturedAt.UTC().Truncate(time.Second), snap.Symbol, snap.Price, snap.Source)

	return err
}

// NearestSnapshot returns the sample closest to target within ±window, or
// (nil, nil) when the window holds no candidate. An empty window is the
// expected "no match yet" case, not an error.
func (db *DB) NearestSnapshot(symbol string, target time.Time, window time.Duration) (*model.Snapshot, error) {
	rows, err := db.Query(`
		SELECT captured_at, symbol, price, source
		FROM price_snapshots
		WHERE symbol = $1 AND captured_at BETWEEN $2 AND $3
	`, symbol, target.Add(-window).UTC(), target.Add(window).UTC())
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var candidates []model.Snapshot
	for rows.Next() {
		var s model.Snapshot
		if err := rows.Scan(&s.CapturedAt, &s.Symbol, &s.Price, &s.Source); err != nil {
			return nil, err
		}
		candidates = append(candidates, s)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	return pickNearest(candidates, target), nil
}

// pickNearest selects the candidate with minimal absolute distance to
// target. Ties break by distance only: the first of the equally distant
// candidates wins regardless of insertion order.
func pickNearest(candidates []model.Snapshot, target time.Time) *model.Snapshot {
	if len(candidates) == 0 {
		return nil
	}
	best := 0
	bestDist := absDuration(candidates[0].CapturedAt.Sub(target))
	for i := 1; i < len(candidates); i++ {
		if d := absDuration(candidates[i].CapturedAt.Sub(target)); d < bestDist {
			best, bestDist = i, d
		}
	}
	return &candidates[best]
}

func absDuration(d time.Duration) time.Duration {
	if d < 0 {
		return -d
	}
	return d
}
