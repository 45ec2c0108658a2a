package market

import (
	"context"
	"fmt"
	"net/url"
	"time"

	"github.com/ryzm/terminal/internal/gateway"
	"github.com/ryzm/terminal/internal/model"
)

const yahooFinanceURL = "https://query1.finance.yahoo.com"

var (
	binanceQuoteMap = map[string]string{
		"BTCUSDT": "BTC", "ETHUSDT": "ETH", "SOLUSDT": "SOL",
	}
	coingeckoQuoteMap = map[string]string{
		"BTC": "bitcoin", "ETH": "ethereum", "SOL": "solana",
	}
	macroTickers = []struct {
		yahoo    string
		name     string
		fallback float64
	}{
		{"^VIX", "VIX", 18.5},
		{"DX-Y.NYB", "DXY", 104.0},
		{"GC=F", "GOLD", 2650.0},
		{"SI=F", "SILVER", 31.0},
	}
)

type binanceTicker struct {
	Symbol             string  `json:"symbol"`
	LastPrice          float64 `json:"lastPrice,string"`
	PriceChangePercent float64 `json:"priceChangePercent,string"`
	HighPrice          float64 `json:"highPrice,string"`
	LowPrice           float64 `json:"lowPrice,string"`
	Volume             float64 `json:"volume,string"`
}

// Quotes fetches the headline crypto + macro quote board.
// Crypto comes from Binance 24h tickers with a CoinGecko fallback; macro
// rows come from Yahoo Finance and the exchange-rate API.
func (c *Client) Quotes(ctx context.Context) (model.SeriesValue, error) {
	quotes := model.Quotes{}

	symbols := `["BTCUSDT","ETHUSDT","SOLUSDT"]`
	reqURL := fmt.Sprintf("%s/api/v3/ticker/24hr?symbols=%s", binanceSpotURL, url.QueryEscape(symbols))
	var tickers []binanceTicker
	if _, err := c.gw.GetJSON(ctx, gateway.Request{URL: reqURL, Timeout: 8 * time.Second}, &tickers); err != nil {
		c.logger.Warn().Err(err).Msg("Binance tickers failed, trying CoinGecko")
	} else {
		for _, t := range tickers {
			name, ok := binanceQuoteMap[t.Symbol]
			if !ok {
				continue
			}
			quotes[name] = model.Quote{
				Symbol:    name,
				Price:     t.LastPrice,
				ChangePct: t.PriceChangePercent,
				High:      t.HighPrice,
				Low:       t.LowPrice,
				Volume:    t.Volume,
			}
		}
	}

	// Fill any crypto symbol Binance did not deliver.
	for name, coinID := range coingeckoQuoteMap {
		if _, ok := quotes[name]; ok {
			continue
		}
		price, change, err := c.coingeckoPrice(ctx, coinID)
		if err != nil {
			c.logger.Warn().Err(err).Str("coin", coinID).Msg("CoinGecko fallback failed")
			quotes[name] = model.Quote{Symbol: name, Estimated: true}
			continue
		}
		quotes[name] = model.Quote{Symbol: name, Price: price, ChangePct: change}
	}

	if fx, err := c.forexRates(ctx); err == nil {
		if fx.JPY > 0 {
			quotes["USD/JPY"] = model.Quote{Symbol: "USD/JPY", Price: fx.JPY}
		}
		if fx.KRW > 0 {
			quotes["USD/KRW"] = model.Quote{Symbol: "USD/KRW", Price: fx.KRW}
		}
	}

	for _, m := range macroTickers {
		closes, err := c.yahooChart(ctx, m.yahoo, "5d", "1d")
		if err != nil || len(closes) == 0 {
			quotes[m.name] = model.Quote{Symbol: m.name, Price: m.fallback, Estimated: true}
			continue
		}
		price := closes[len(closes)-1]
		changePct := 0.0
		if len(closes) >= 2 && closes[len(closes)-2] > 0 {
			prev := closes[len(closes)-2]
			changePct = (price - prev) / prev * 100
		}
		quotes[m.name] = model.Quote{Symbol: m.name, Price: price, ChangePct: changePct}
	}

	return quotes, nil
}

// coingeckoPrice fetches one coin's USD price and 24h change.
func (c *Client) coingeckoPrice(ctx context.Context, coinID string) (float64, float64, error) {
	var out map[string]struct {
		USD       float64 `json:"usd"`
		USDChange float64 `json:"usd_24h_change"`
	}
	reqURL := fmt.Sprintf("%s/api/v3/simple/price?ids=%s&vs_currencies=usd&include_24hr_change=true", coingeckoURL, coinID)
	if _, err := c.gw.GetJSON(ctx, gateway.Request{URL: reqURL, Timeout: 5 * time.Second}, &out); err != nil {
		return 0, 0, err
	}
	entry, ok := out[coinID]
	if !ok {
		return 0, 0, fmt.Errorf("coin %s missing from response", coinID)
	}
	return entry.USD, entry.USDChange, nil
}

// forexRates fetches the USD crosses.
func (c *Client) forexRates(ctx context.Context) (model.ForexRates, error) {
	var out struct {
		Rates map[string]float64 `json:"rates"`
	}
	reqURL := exchangeRateURL + "/v4/latest/USD"
	if _, err := c.gw.GetJSON(ctx, gateway.Request{URL: reqURL, Timeout: 5 * time.Second}, &out); err != nil {
		return model.ForexRates{}, err
	}
	return model.ForexRates{JPY: out.Rates["JPY"], KRW: out.Rates["KRW"]}, nil
}

// Forex is the standalone forex series fetch.
func (c *Client) Forex(ctx context.Context) (model.SeriesValue, error) {
	return c.forexRates(ctx)
}

// yahooChart fetches closing prices from the Yahoo Finance v8 chart API.
func (c *Client) yahooChart(ctx context.Context, symbol, rng, interval string) ([]float64, error) {
	var out struct {
		Chart struct {
			Result []struct {
				Indicators struct {
					Quote []struct {
						Close []*float64 `json:"close"`
					} `json:"quote"`
				} `json:"indicators"`
			} `json:"result"`
		} `json:"chart"`
	}
	reqURL := fmt.Sprintf("%s/v8/finance/chart/%s?range=%s&interval=%s",
		yahooFinanceURL, url.PathEscape(symbol), rng, interval)
	req := gateway.Request{URL: reqURL, Timeout: 10 * time.Second, Headers: yahooHeaders}
	if _, err := c.gw.GetJSON(ctx, req, &out); err != nil {
		return nil, err
	}
	if len(out.Chart.Result) == 0 || len(out.Chart.Result[0].Indicators.Quote) == 0 {
		return nil, fmt.Errorf("empty chart for %s", symbol)
	}
	var closes []float64
	for _, v := range out.Chart.Result[0].Indicators.Quote[0].Close {
		if v != nil {
			closes = append(closes, *v)
		}
	}
	return closes, nil
}

// Heatmap fetches the top-20 coins with 1h/24h/7d changes plus BTC
// dominance and total market cap from the CoinGecko global endpoint.
func (c *Client) Heatmap(ctx context.Context) (model.SeriesValue, error) {
	var coins []struct {
		Symbol    string  `json:"symbol"`
		Name      string  `json:"name"`
		Price     float64 `json:"current_price"`
		Change1h  float64 `json:"price_change_percentage_1h_in_currency"`
		Change24h float64 `json:"price_change_percentage_24h"`
		Change7d  float64 `json:"price_change_percentage_7d_in_currency"`
		MarketCap float64 `json:"market_cap"`
		Volume    float64 `json:"total_volume"`
	}
	reqURL := coingeckoURL + "/api/v3/coins/markets" +
		"?vs_currency=usd&order=market_cap_desc&per_page=20&page=1" +
		"&sparkline=false&price_change_percentage=1h_in_currency,24h,7d"
	if _, err := c.gw.GetJSON(ctx, gateway.Request{URL: reqURL, Timeout: 10 * time.Second}, &coins); err != nil {
		return nil, err
	}

	hm := model.Heatmap{}
	for i, coin := range coins {
		hm.Coins = append(hm.Coins, model.HeatmapCoin{
			Symbol:    coin.Symbol,
			Name:      coin.Name,
			Price:     coin.Price,
			Change1h:  coin.Change1h,
			Change24h: coin.Change24h,
			Change7d:  coin.Change7d,
			MarketCap: coin.MarketCap,
			Volume:    coin.Volume,
			Rank:      i + 1,
		})
	}

	var global struct {
		Data struct {
			MarketCapPercentage map[string]float64 `json:"market_cap_percentage"`
			TotalMarketCap      map[string]float64 `json:"total_market_cap"`
		} `json:"data"`
	}
	if _, err := c.gw.GetJSON(ctx, gateway.Request{URL: coingeckoURL + "/api/v3/global", Timeout: 8 * time.Second}, &global); err != nil {
		c.logger.Warn().Err(err).Msg("CoinGecko global failed, heatmap without dominance")
	} else {
		hm.BTCDominance = global.Data.MarketCapPercentage["btc"]
		hm.TotalMarketCap = global.Data.TotalMarketCap["usd"]
	}

	return hm, nil
}
