package market

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/ryzm/terminal/internal/gateway"
)

// Upstream API bases. All calls go through the resilience gateway, so each
// host gets its own backoff bookkeeping.
const (
	binanceSpotURL    = "https://api.binance.com"
	binanceFuturesURL = "https://fapi.binance.com"
	coingeckoURL      = "https://api.coingecko.com"
	alternativeMeURL  = "https://api.alternative.me"
	upbitURL          = "https://api.upbit.com"
	exchangeRateURL   = "https://api.exchangerate-api.com"
	mempoolSpaceURL   = "https://mempool.space"
	blockchainInfoURL = "https://blockchain.info"
)

var yahooHeaders = map[string]string{
	"User-Agent": "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36",
}

// Client bundles the per-series fetch functions over the gateway.
type Client struct {
	gw     *gateway.Gateway
	logger zerolog.Logger
}

// NewClient creates a market data client
func NewClient(gw *gateway.Gateway) *Client {
	return &Client{
		gw:     gw,
		logger: log.With().Str("component", "market_client").Logger(),
	}
}

// SpotPrice fetches the current futures mark of one USDT pair; used by the
// scheduler's snapshot side-task.
func (c *Client) SpotPrice(ctx context.Context, symbol string) (float64, error) {
	var out struct {
		Price float64 `json:"price,string"`
	}
	url := fmt.Sprintf("%s/fapi/v1/ticker/price?symbol=%sUSDT", binanceFuturesURL, symbol)
	if _, err := c.gw.GetJSON(ctx, gateway.Request{URL: url, Timeout: 5 * time.Second}, &out); err != nil {
		return 0, err
	}
	if out.Price <= 0 {
		return 0, fmt.Errorf("non-positive price for %s", symbol)
	}
	return out.Price, nil
}

// Candles fetches spot candle closes and volumes for one symbol/interval,
// oldest first. Used by the analysis engine.
func (c *Client) Candles(ctx context.Context, symbol, interval string, limit int) ([]float64, []float64, error) {
	ks, err := c.klines(ctx, binanceSpotURL, symbol, interval, limit)
	if err != nil {
		return nil, nil, err
	}
	return closes(ks), volumes(ks), nil
}

// kline is one positional Binance kline row.
type kline struct {
	OpenTime int64
	High     float64
	Low      float64
	Close    float64
	Volume   float64
}

// klines fetches candle rows for one symbol/interval. Binance returns
// positional arrays with string-encoded numbers.
func (c *Client) klines(ctx context.Context, base, symbol, interval string, limit int) ([]kline, error) {
	var raw [][]any
	url := fmt.Sprintf("%s/api/v3/klines?symbol=%s&interval=%s&limit=%d", base, symbol, interval, limit)
	if _, err := c.gw.GetJSON(ctx, gateway.Request{URL: url, Timeout: 8 * time.Second}, &raw); err != nil {
		return nil, err
	}

	out := make([]kline, 0, len(raw))
	for _, row := range raw {
		if len(row) < 6 {
			continue
		}
		k := kline{}
		if ot, ok := row[0].(float64); ok {
			k.OpenTime = int64(ot)
		}
		k.High = klineField(row[2])
		k.Low = klineField(row[3])
		k.Close = klineField(row[4])
		k.Volume = klineField(row[5])
		out = append(out, k)
	}
	return out, nil
}

func klineField(v any) float64 {
	s, ok := v.(string)
	if !ok {
		return 0
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0
	}
	return f
}

func closes(ks []kline) []float64 {
	out := make([]float64, len(ks))
	for i, k := range ks {
		out[i] = k.Close
	}
	return out
}

func volumes(ks []kline) []float64 {
	out := make([]float64, len(ks))
	for i, k := range ks {
		out[i] = k.Volume
	}
	return out
}
