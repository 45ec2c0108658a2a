package analyze

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/ryzm/terminal/internal/market"
	"github.com/ryzm/terminal/internal/model"
)

// CandleSource supplies recent closes and volumes, oldest first.
type CandleSource interface {
	Candles(ctx context.Context, symbol, interval string, limit int) (closes, volumes []float64, err error)
}

// Engine is the consensus analysis collaborator. It votes three signals
// (RSI regime, EMA cross, volume spike) on hourly candles and commits a
// direction only when at least two agree.
type Engine struct {
	source   CandleSource
	symbol   string
	interval string
	limit    int
	logger   zerolog.Logger
}

// New creates an Engine reading candles for the given symbol pair.
func New(source CandleSource, symbol string) *Engine {
	return &Engine{
		source:   source,
		symbol:   symbol,
		interval: "1h",
		limit:    100,
		logger:   log.With().Str("component", "analyze").Logger(),
	}
}

// Analyze produces one directional prediction from current candle data.
// Base price is the latest close; the scheduler overrides it from quotes
// only when left zero.
func (e *Engine) Analyze(ctx context.Context, _ model.Quotes) (*model.Prediction, error) {
	closes, volumes, err := e.source.Candles(ctx, e.symbol+"USDT", e.interval, e.limit)
	if err != nil {
		return nil, fmt.Errorf("fetching candles for %s: %w", e.symbol, err)
	}
	if len(closes) < 51 {
		return nil, fmt.Errorf("insufficient candle history for %s: %d rows", e.symbol, len(closes))
	}

	rsi := market.RSI(closes, 14)
	ema20 := market.EMA(closes, 20)
	ema50 := market.EMA(closes, 50)
	volSpike := market.VolSpike(volumes, 20)
	last := closes[len(closes)-1]

	bulls, bears := 0, 0

	switch {
	case rsi < 30:
		bulls++
	case rsi > 70:
		bears++
	}

	if ema20 > ema50 {
		bulls++
	} else if ema20 < ema50 {
		bears++
	}

	// A volume spike confirms whichever way the last candle moved.
	if volSpike > 200 && len(closes) >= 2 {
		if last > closes[len(closes)-2] {
			bulls++
		} else {
			bears++
		}
	}

	direction := model.DirectionNeutral
	score := 0
	switch {
	case bulls >= 2 && bulls > bears:
		direction = model.DirectionBull
		score = bulls
	case bears >= 2 && bears > bulls:
		direction = model.DirectionBear
		score = bears
	}

	confidence := model.ConfidenceLow
	switch score {
	case 2:
		confidence = model.ConfidenceMed
	case 3:
		confidence = model.ConfidenceHigh
	}

	e.logger.Info().
		Str("symbol", e.symbol).
		Float64("rsi", rsi).
		Float64("ema20", ema20).
		Float64("ema50", ema50).
		Float64("vol_spike", volSpike).
		Str("direction", string(direction)).
		Int("score", score).
		Msg("Consensus computed")

	return &model.Prediction{
		Symbol:         e.symbol,
		BasePrice:      last,
		Direction:      direction,
		Confidence:     confidence,
		ConsensusScore: score,
		PriceSource:    "binance",
	}, nil
}
