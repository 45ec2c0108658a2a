package analyze

import (
	"context"
	"errors"
	"testing"

	"github.com/ryzm/terminal/internal/model"
)

type fakeCandles struct {
	closes  []float64
	volumes []float64
	err     error
	symbol  string
}

func (f *fakeCandles) Candles(ctx context.Context, symbol, interval string, limit int) ([]float64, []float64, error) {
	f.symbol = symbol
	if f.err != nil {
		return nil, nil, f.err
	}
	return f.closes, f.volumes, nil
}

func flatVolumes(n int) []float64 {
	out := make([]float64, n)
	for i := range out {
		out[i] = 1000
	}
	return out
}

func fallingCloses(n int) []float64 {
	out := make([]float64, n)
	for i := range out {
		out[i] = 200 - float64(i)
	}
	return out
}

func risingCloses(n int) []float64 {
	out := make([]float64, n)
	for i := range out {
		out[i] = 100 + float64(i)
	}
	return out
}

func TestAnalyzeBearishConsensus(t *testing.T) {
	// A long monotonic fall: EMA20 < EMA50 votes bear, and RSI pinned at 0
	// from pure losses votes bull (oversold), so add a volume spike on a
	// falling candle to break toward bear 2:1.
	src := &fakeCandles{closes: fallingCloses(100), volumes: flatVolumes(100)}
	src.volumes[len(src.volumes)-1] = 5000

	p, err := New(src, "BTC").Analyze(context.Background(), nil)
	if err != nil {
		t.Fatalf("Analyze: %v", err)
	}
	if p.Direction != model.DirectionBear {
		t.Errorf("direction = %s, want BEAR", p.Direction)
	}
	if p.ConsensusScore < 2 {
		t.Errorf("consensus score = %d, want >= 2", p.ConsensusScore)
	}
	if p.BasePrice != src.closes[len(src.closes)-1] {
		t.Errorf("base price = %v, want last close %v", p.BasePrice, src.closes[len(src.closes)-1])
	}
	if src.symbol != "BTCUSDT" {
		t.Errorf("requested symbol = %q, want BTCUSDT", src.symbol)
	}
}

func TestAnalyzeNeutralWithoutConsensus(t *testing.T) {
	// Rising trend: EMA cross votes bull, but RSI saturates overbought and
	// votes bear. One vote each, no spike, so no commitment.
	src := &fakeCandles{closes: risingCloses(100), volumes: flatVolumes(100)}

	p, err := New(src, "BTC").Analyze(context.Background(), nil)
	if err != nil {
		t.Fatalf("Analyze: %v", err)
	}
	if p.Direction != model.DirectionNeutral {
		t.Errorf("direction = %s, want NEUTRAL on a split vote", p.Direction)
	}
	if p.ConsensusScore != 0 {
		t.Errorf("consensus score = %d, want 0", p.ConsensusScore)
	}
	if p.Confidence != model.ConfidenceLow {
		t.Errorf("confidence = %s, want LOW", p.Confidence)
	}
}

func TestAnalyzeInsufficientHistory(t *testing.T) {
	src := &fakeCandles{closes: risingCloses(30), volumes: flatVolumes(30)}
	if _, err := New(src, "BTC").Analyze(context.Background(), nil); err == nil {
		t.Fatal("want error on short candle history")
	}
}

func TestAnalyzeFetchError(t *testing.T) {
	src := &fakeCandles{err: errors.New("rate limited")}
	if _, err := New(src, "BTC").Analyze(context.Background(), nil); err == nil {
		t.Fatal("want error when candle fetch fails")
	}
}
