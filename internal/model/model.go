package model

import (
	"time"
)

// Direction is a committed directional forecast.
type Direction string

const (
	DirectionBull    Direction = "BULL"
	DirectionBear    Direction = "BEAR"
	DirectionNeutral Direction = "NEUTRAL"
)

// Confidence level attached to a prediction by the analysis collaborator.
type Confidence string

const (
	ConfidenceHigh Confidence = "HIGH"
	ConfidenceMed  Confidence = "MED"
	ConfidenceLow  Confidence = "LOW"
)

// Outcome is the terminal grade of a (prediction, horizon) pair.
// EXCLUDED marks NEUTRAL abstentions: recorded, never scored.
type Outcome string

const (
	OutcomeHit      Outcome = "HIT"
	OutcomeMiss     Outcome = "MISS"
	OutcomeExcluded Outcome = "EXCLUDED"
)

// Prediction is one directional forecast emitted by the analysis
// collaborator. Written once; the evaluator only appends grades and the
// shortest-horizon backfill fields.
type Prediction struct {
	ID             int64
	CreatedAt      time.Time
	Symbol         string
	BasePrice      float64
	Direction      Direction
	Confidence     Confidence
	ConsensusScore int

	// Shortest-horizon backfill for single-horizon consumers.
	ReturnPct   *float64
	EvaluatedAt *time.Time
	PriceSource string
}

// Snapshot is an immutable price sample, the ground truth for grading.
type Snapshot struct {
	CapturedAt time.Time
	Symbol     string
	Price      float64
	Source     string
}

// Evaluation grades one prediction at one horizon.
type Evaluation struct {
	PredictionID int64
	HorizonMin   int
	PriceAfter   float64
	Outcome      Outcome
	ReturnPct    float64
	EvaluatedAt  time.Time
}

// AccuracySummary aggregates grades for one horizon. Percentages are nil
// when nothing has been evaluated yet.
type AccuracySummary struct {
	HorizonMin   int
	Total        int
	Evaluated    int
	Hits         int
	AccuracyPct  *float64
	CoveragePct  *float64
	AvgReturnPct *float64
}

// Alert is a user-created price threshold.
type Alert struct {
	ID          int64
	Symbol      string
	TargetPrice float64
	Direction   string // "above" or "below"
	Triggered   bool
	TriggeredAt *time.Time
	CreatedAt   time.Time
}

// AlertEvent is one fired threshold alert.
type AlertEvent struct {
	Alert        Alert
	CurrentPrice float64
	FiredAt      time.Time
}
