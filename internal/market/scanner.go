package market

import (
	"context"
	"sort"
	"strings"

	"github.com/ryzm/terminal/internal/model"
)

var scannerCoins = []string{
	"BTCUSDT", "ETHUSDT", "SOLUSDT", "BNBUSDT", "XRPUSDT",
	"ADAUSDT", "DOGEUSDT", "AVAXUSDT", "LINKUSDT", "DOTUSDT",
}

var multiTFIntervals = []string{"1h", "4h", "1d", "1w"}

// Scanner runs the RSI/volume opportunity scan over the target coins.
// A single coin's kline failure skips that coin only.
func (c *Client) Scanner(ctx context.Context) (model.SeriesValue, error) {
	var hits model.ScannerHits
	for _, symbol := range scannerCoins {
		ks, err := c.klines(ctx, binanceSpotURL, symbol, "15m", 30)
		if err != nil || len(ks) == 0 {
			continue
		}
		cl := closes(ks)
		vl := volumes(ks)

		rsi := RSI(cl, 14)
		spike := VolSpike(vl, 20)
		changePct := 0.0
		if cl[0] > 0 {
			changePct = (cl[len(cl)-1] - cl[0]) / cl[0] * 100
		}

		coin := strings.TrimSuffix(symbol, "USDT")
		var signal string
		switch {
		case rsi > 70 && spike > 200:
			signal = "PUMP_ALERT"
		case rsi < 30 && spike > 150:
			signal = "OVERSOLD_BOUNCE"
		case spike > 300:
			signal = "VOL_SPIKE"
		default:
			continue
		}
		hits = append(hits, model.ScannerHit{
			Symbol:    coin,
			Price:     cl[len(cl)-1],
			ChangePct: changePct,
			RSI:       rsi,
			VolSpike:  spike,
			Signal:    signal,
		})
	}

	sort.SliceStable(hits, func(i, j int) bool {
		return scannerPriority(hits[i].Signal) < scannerPriority(hits[j].Signal)
	})
	return hits, nil
}

func scannerPriority(signal string) int {
	switch signal {
	case "PUMP_ALERT":
		return 1
	case "OVERSOLD_BOUNCE":
		return 2
	case "VOL_SPIKE":
		return 3
	}
	return 99
}

// MultiTimeframe computes the RSI + MA-cross read of BTC on each tracked
// timeframe. Per-timeframe failures degrade to an N/A row.
func (c *Client) MultiTimeframe(ctx context.Context) (model.SeriesValue, error) {
	mtf := model.MultiTimeframe{
		Symbol:     "BTC/USDT",
		Timeframes: make(map[string]model.TimeframeSignal, len(multiTFIntervals)),
	}

	for _, interval := range multiTFIntervals {
		ks, err := c.klines(ctx, binanceSpotURL, "BTCUSDT", interval, 100)
		if err != nil || len(ks) == 0 {
			c.logger.Warn().Err(err).Str("interval", interval).Msg("Multi-TF kline fetch failed")
			mtf.Timeframes[interval] = model.TimeframeSignal{RSI: 50, Signal: "N/A", Trend: "N/A"}
			continue
		}
		cl := closes(ks)

		rsi := RSI(cl, 14)
		ema20 := EMA(cl, 20)
		ema50 := EMA(cl, 50)

		var signal, trend string
		switch {
		case rsi > 70 && ema20 < ema50:
			signal, trend = "SELL", "OVERBOUGHT"
		case rsi < 30 && ema20 > ema50:
			signal, trend = "BUY", "OVERSOLD"
		case ema20 > ema50 && rsi > 50:
			signal, trend = "BUY", "BULLISH"
		case ema20 < ema50 && rsi < 50:
			signal, trend = "SELL", "BEARISH"
		default:
			signal, trend = "HOLD", "NEUTRAL"
		}

		mtf.Timeframes[interval] = model.TimeframeSignal{
			RSI:    rsi,
			EMA20:  ema20,
			EMA50:  ema50,
			Price:  cl[len(cl)-1],
			Signal: signal,
			Trend:  trend,
		}
	}

	return mtf, nil
}
