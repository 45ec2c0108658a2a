package storage

import (
	"database/sql"
	"time"

	"github.com/ryzm/terminal/internal/model"
)

// CreateAlert stores a new price threshold and returns its id.
func (db *DB) CreateAlert(symbol string, targetPrice float64, direction string) (int64, error) {
	var id int64
	err := db.QueryRow(`
		INSERT INTO price_alerts (symbol, target_price, direction)
		VALUES ($1, $2, $3)
		RETURNING id
	`, symbol, targetPrice, direction).Scan(&id)
	if err != nil {
		return 0, err
	}
	return id, nil
}

// ActiveAlerts returns all alerts that have not fired yet.
func (db *DB) ActiveAlerts() ([]model.Alert, error) {
	rows, err := db.Query(`
		SELECT id, symbol, target_price, direction, triggered, triggered_at, created_at
		FROM price_alerts
		WHERE triggered = FALSE
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []model.Alert
	for rows.Next() {
		var (
			a           model.Alert
			triggeredAt sql.NullTime
		)
		if err := rows.Scan(&a.ID, &a.Symbol, &a.TargetPrice, &a.Direction, &a.Triggered, &triggeredAt, &a.CreatedAt); err != nil {
			return nil, err
		}
		if triggeredAt.Valid {
			a.TriggeredAt = &triggeredAt.Time
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

// MarkAlertTriggered flips one alert to triggered.
func (db *DB) MarkAlertTriggered(id int64, at time.Time) error {
	_, err := db.Exec(`
		UPDATE price_alerts
		SET triggered = TRUE, triggered_at = $1
		WHERE id = $2
	`, at.UTC(), id)

	return err
}
