package market

import (
	"context"
	"fmt"
	"time"

	"github.com/ryzm/terminal/internal/gateway"
	"github.com/ryzm/terminal/internal/model"
)

// FearGreed fetches the alternative.me Fear & Greed index with 30 days of
// history and derived averages.
func (c *Client) FearGreed(ctx context.Context) (model.SeriesValue, error) {
	var out struct {
		Data []struct {
			Value          int    `json:"value,string"`
			Classification string `json:"value_classification"`
			Timestamp      int64  `json:"timestamp,string"`
		} `json:"data"`
	}
	reqURL := alternativeMeURL + "/fng/?limit=30"
	if _, err := c.gw.GetJSON(ctx, gateway.Request{URL: reqURL, Timeout: 10 * time.Second}, &out); err != nil {
		return nil, err
	}
	if len(out.Data) == 0 {
		return nil, fmt.Errorf("no fear/greed data in response")
	}

	latest := out.Data[0]
	fg := model.FearGreed{
		Score:     latest.Value,
		Label:     latest.Classification,
		PrevScore: latest.Value,
		Min30d:    latest.Value,
		Max30d:    latest.Value,
	}
	if len(out.Data) > 1 {
		fg.PrevScore = out.Data[1].Value
	}
	fg.Delta = fg.Score - fg.PrevScore

	// History arrives newest first; stored oldest first.
	for i := len(out.Data) - 1; i >= 0; i-- {
		fg.History = append(fg.History, model.FearGreedPoint{
			Timestamp: out.Data[i].Timestamp,
			Value:     out.Data[i].Value,
		})
	}

	avg := func(n int) float64 {
		if n > len(out.Data) {
			n = len(out.Data)
		}
		sum := 0
		for _, d := range out.Data[:n] {
			sum += d.Value
		}
		return float64(sum) / float64(n)
	}
	fg.Avg7d = avg(7)
	fg.Avg14d = avg(14)
	fg.Avg30d = avg(30)

	for _, d := range out.Data {
		if d.Value < fg.Min30d {
			fg.Min30d = d.Value
		}
		if d.Value > fg.Max30d {
			fg.Max30d = d.Value
		}
	}

	return fg, nil
}

// Kimchi computes the Upbit/Binance BTC premium via the USD/KRW rate.
func (c *Client) Kimchi(ctx context.Context) (model.SeriesValue, error) {
	var upbit []struct {
		TradePrice float64 `json:"trade_price"`
	}
	reqURL := upbitURL + "/v1/ticker?markets=KRW-BTC"
	if _, err := c.gw.GetJSON(ctx, gateway.Request{URL: reqURL, Timeout: 10 * time.Second}, &upbit); err != nil {
		return nil, err
	}
	if len(upbit) == 0 {
		return nil, fmt.Errorf("empty response from Upbit")
	}

	var binance struct {
		Price float64 `json:"price,string"`
	}
	reqURL = binanceSpotURL + "/api/v3/ticker/price?symbol=BTCUSDT"
	if _, err := c.gw.GetJSON(ctx, gateway.Request{URL: reqURL, Timeout: 10 * time.Second}, &binance); err != nil {
		return nil, err
	}

	fx, err := c.forexRates(ctx)
	if err != nil {
		return nil, err
	}
	if fx.KRW <= 0 || binance.Price <= 0 {
		return nil, fmt.Errorf("missing KRW rate or BTC price for premium")
	}

	binanceKRW := binance.Price * fx.KRW
	return model.KimchiPremium{
		PremiumPct:   (upbit[0].TradePrice - binanceKRW) / binanceKRW * 100,
		UpbitPrice:   upbit[0].TradePrice,
		BinancePrice: binance.Price,
		USDKRW:       fx.KRW,
	}, nil
}
