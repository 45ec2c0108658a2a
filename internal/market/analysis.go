package market

import (
	"context"
	"fmt"
	"math"
	"time"

	"github.com/ryzm/terminal/internal/gateway"
	"github.com/ryzm/terminal/internal/model"
)

// Regime classifies the market phase from CoinGecko global dominance and
// 24h market-cap flow.
func (c *Client) Regime(ctx context.Context) (model.SeriesValue, error) {
	var out struct {
		Data struct {
			MarketCapPercentage map[string]float64 `json:"market_cap_percentage"`
			TotalMarketCap      map[string]float64 `json:"total_market_cap"`
			McapChange24h       float64            `json:"market_cap_change_percentage_24h_usd"`
		} `json:"data"`
	}
	if _, err := c.gw.GetJSON(ctx, gateway.Request{URL: coingeckoURL + "/api/v3/global", Timeout: 10 * time.Second}, &out); err != nil {
		return nil, err
	}

	btcDom := out.Data.MarketCapPercentage["btc"]
	usdtDom := out.Data.MarketCapPercentage["usdt"]
	altDom := 100 - btcDom - usdtDom
	regime, label := classifyRegime(btcDom, usdtDom, altDom, out.Data.McapChange24h)

	return model.Regime{
		Regime:         regime,
		Label:          label,
		BTCDom:         btcDom,
		ETHDom:         out.Data.MarketCapPercentage["eth"],
		USDTDom:        usdtDom,
		AltDom:         altDom,
		TotalMarketCap: out.Data.TotalMarketCap["usd"],
		McapChange24h:  out.Data.McapChange24h,
	}, nil
}

// classifyRegime maps dominance and flow onto one of five market phases.
func classifyRegime(btcDom, usdtDom, altDom, mcapChange float64) (string, string) {
	switch {
	case btcDom > 55 && mcapChange > 0:
		return "BTC_SEASON", "Bitcoin Dominance"
	case btcDom < 45 && altDom > 40:
		return "ALT_SEASON", "Altcoin Season"
	case usdtDom > 8 && mcapChange < -2:
		return "RISK_OFF", "Risk-Off / Bear"
	case mcapChange > 3:
		return "FULL_BULL", "Full Bull Market"
	}
	return "ROTATION", "Sector Rotation"
}

var corrAssets = []string{"BTC", "ETH", "SOL", "GOLD", "NASDAQ"}

// Correlation builds the 30-day daily-return correlation matrix across
// crypto majors, gold and the NASDAQ. An asset whose history fails to
// load gets nil cells instead of failing the series.
func (c *Client) Correlation(ctx context.Context) (model.SeriesValue, error) {
	prices := map[string][]float64{}

	for name, coinID := range map[string]string{"BTC": "bitcoin", "ETH": "ethereum", "SOL": "solana"} {
		series, err := c.coingeckoHistory(ctx, coinID, 30)
		if err != nil {
			c.logger.Warn().Err(err).Str("coin", coinID).Msg("Correlation history fetch failed")
			continue
		}
		prices[name] = series
	}
	for name, symbol := range map[string]string{"GOLD": "GC=F", "NASDAQ": "^IXIC"} {
		closes, err := c.yahooChart(ctx, symbol, "1mo", "1d")
		if err != nil {
			c.logger.Warn().Err(err).Str("symbol", symbol).Msg("Correlation chart fetch failed")
			continue
		}
		prices[name] = closes
	}

	matrix := make(map[string]map[string]*float64, len(corrAssets))
	returns := map[string][]float64{}
	for _, asset := range corrAssets {
		returns[asset] = dailyReturns(prices[asset])
	}
	for _, a := range corrAssets {
		matrix[a] = make(map[string]*float64, len(corrAssets))
		for _, b := range corrAssets {
			matrix[a][b] = pearson(returns[a], returns[b])
		}
	}

	return model.CorrelationMatrix{Assets: corrAssets, Matrix: matrix}, nil
}

// coingeckoHistory fetches daily close prices for the last `days` days.
func (c *Client) coingeckoHistory(ctx context.Context, coinID string, days int) ([]float64, error) {
	var out struct {
		Prices [][]float64 `json:"prices"`
	}
	reqURL := fmt.Sprintf("%s/api/v3/coins/%s/market_chart?vs_currency=usd&days=%d&interval=daily",
		coingeckoURL, coinID, days)
	if _, err := c.gw.GetJSON(ctx, gateway.Request{URL: reqURL, Timeout: 10 * time.Second}, &out); err != nil {
		return nil, err
	}
	series := make([]float64, 0, len(out.Prices))
	for _, point := range out.Prices {
		if len(point) == 2 {
			series = append(series, point[1])
		}
	}
	return series, nil
}

// dailyReturns converts a price series into simple day-over-day returns.
func dailyReturns(prices []float64) []float64 {
	if len(prices) < 2 {
		return nil
	}
	out := make([]float64, 0, len(prices)-1)
	for i := 1; i < len(prices); i++ {
		if prices[i-1] == 0 {
			out = append(out, 0)
			continue
		}
		out = append(out, (prices[i]-prices[i-1])/prices[i-1])
	}
	return out
}

// pearson correlates two return series over their overlapping prefix.
// Returns nil with fewer than 5 overlapping points; a flat series
// correlates as 0.
func pearson(a, b []float64) *float64 {
	n := len(a)
	if len(b) < n {
		n = len(b)
	}
	if n < 5 {
		return nil
	}
	a, b = a[:n], b[:n]

	var meanA, meanB float64
	for i := 0; i < n; i++ {
		meanA += a[i]
		meanB += b[i]
	}
	meanA /= float64(n)
	meanB /= float64(n)

	var cov, varA, varB float64
	for i := 0; i < n; i++ {
		da, db := a[i]-meanA, b[i]-meanB
		cov += da * db
		varA += da * da
		varB += db * db
	}
	if varA == 0 || varB == 0 {
		zero := 0.0
		return &zero
	}
	r := cov / (math.Sqrt(varA) * math.Sqrt(varB))
	return &r
}
