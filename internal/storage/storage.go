package storage

import (
	"database/sql"
	"fmt"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// DB represents a database connection
type DB struct {
	*sql.DB
	logger zerolog.Logger
}

// ConnectionParams holds PostgreSQL connection parameters
type ConnectionParams struct {
	Host     string
	Port     string
	User     string
	Password string
	DBName   string
	SSLMode  string
}

// New creates a new database connection
func New(params ConnectionParams) (*DB, error) {
	// Create PostgreSQL connection string
	connStr := fmt.Sprintf(
		"host=%s port=%s user=%s password=%s dbname=%s sslmode=%s",
		params.Host, params.Port, params.User, params.Password, params.DBName, params.SSLMode,
	)

	db, err := sql.Open("postgres", connStr)
	if err != nil {
		return nil, err
	}

	// Check connection
	if err := db.Ping(); err != nil {
		return nil, err
	}

	// Create tables if they don't exist
	if err := createTables(db); err != nil {
		return nil, err
	}

	return &DB{
		DB:     db,
		logger: log.With().Str("component", "storage").Logger(),
	}, nil
}

// createTables creates the necessary tables if they don't exist
func createTables(db *sql.DB) error {
	// Append-only ground-truth price samples; one row per (captured_at, symbol).
	_, err := db.Exec(`
		CREATE TABLE IF NOT EXISTS price_snapshots (
			captured_at TIMESTAMPTZ NOT NULL,
			symbol TEXT NOT NULL,
			price DOUBLE PRECISION NOT NULL,
			source TEXT NOT NULL DEFAULT '',
			PRIMARY KEY (captured_at, symbol)
		)
	`)
	if err != nil {
		return err
	}

	_, err = db.Exec(`
		CREATE TABLE IF NOT EXISTS predictions (
			id BIGSERIAL PRIMARY KEY,
			created_at TIMESTAMPTZ NOT NULL,
			symbol TEXT NOT NULL,
			base_price DOUBLE PRECISION NOT NULL,
			direction TEXT NOT NULL,
			confidence TEXT NOT NULL,
			consensus_score INT NOT NULL DEFAULT 0,
			return_pct DOUBLE PRECISION,
			evaluated_at TIMESTAMPTZ,
			price_source TEXT NOT NULL DEFAULT ''
		)
	`)
	if err != nil {
		return err
	}

	_, err = db.Exec(`
		CREATE TABLE IF NOT EXISTS prediction_evals (
			prediction_id BIGINT NOT NULL REFERENCES predictions(id),
			horizon_min INT NOT NULL,
			price_after DOUBLE PRECISION NOT NULL,
			outcome TEXT NOT NULL,
			return_pct DOUBLE PRECISION NOT NULL,
			evaluated_at TIMESTAMPTZ NOT NULL,
			PRIMARY KEY (prediction_id, horizon_min)
		)
	`)
	if err != nil {
		return err
	}

	_, err = db.Exec(`
		CREATE TABLE IF NOT EXISTS price_alerts (
			id BIGSERIAL PRIMARY KEY,
			symbol TEXT NOT NULL,
			target_price DOUBLE PRECISION NOT NULL,
			direction TEXT NOT NULL,
			triggered BOOLEAN NOT NULL DEFAULT FALSE,
			triggered_at TIMESTAMPTZ,
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		)
	`)

	return err
}
