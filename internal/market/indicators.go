package market

// RSI computes Wilder's RSI over closing prices.
func RSI(closes []float64, period int) float64 {
	if len(closes) < period+1 {
		return 50.0 // Default value if not enough data
	}

	var gains, losses float64
	// Calculate initial averages
	for i := 1; i <= period; i++ {
		change := closes[i] - closes[i-1]
		if change > 0 {
			gains += change
		} else {
			losses -= change
		}
	}

	avgGain := gains / float64(period)
	avgLoss := losses / float64(period)

	// Wilder smoothing for the rest of the data
	for i := period + 1; i < len(closes); i++ {
		change := closes[i] - closes[i-1]
		if change > 0 {
			avgGain = (avgGain*float64(period-1) + change) / float64(period)
			avgLoss = (avgLoss * float64(period-1)) / float64(period)
		} else {
			avgGain = (avgGain * float64(period-1)) / float64(period)
			avgLoss = (avgLoss*float64(period-1) - change) / float64(period)
		}
	}

	if avgLoss == 0 {
		return 100.0
	}

	rs := avgGain / avgLoss
	return 100.0 - (100.0 / (1.0 + rs))
}

// EMA computes an exponential moving average seeded with the SMA
// of the first period values.
func EMA(prices []float64, period int) float64 {
	if len(prices) == 0 {
		return 0
	}
	if len(prices) < period {
		return prices[len(prices)-1] // Return last price if not enough data
	}

	var sum float64
	for i := 0; i < period; i++ {
		sum += prices[i]
	}
	ema := sum / float64(period)

	multiplier := 2.0 / float64(period+1)
	for i := period; i < len(prices); i++ {
		ema = (prices[i]-ema)*multiplier + ema
	}

	return ema
}

// VolSpike returns current volume as a percentage of the trailing
// average, e.g. 300 means 3x the recent norm.
func VolSpike(volumes []float64, period int) float64 {
	if len(volumes) < period {
		return 0
	}
	var sum float64
	for _, v := range volumes[len(volumes)-period : len(volumes)-1] {
		sum += v
	}
	avg := sum / float64(period-1)
	if avg == 0 {
		return 0
	}
	return volumes[len(volumes)-1] / avg * 100
}
