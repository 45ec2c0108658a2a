package market

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/ryzm/terminal/internal/gateway"
	"github.com/ryzm/terminal/internal/model"
)

var perpSymbols = []string{"BTCUSDT", "ETHUSDT", "SOLUSDT"}

type premiumIndex struct {
	Symbol          string  `json:"symbol"`
	MarkPrice       float64 `json:"markPrice,string"`
	LastFundingRate float64 `json:"lastFundingRate,string"`
	NextFundingTime int64   `json:"nextFundingTime"`
}

func (c *Client) premiumIndex(ctx context.Context, symbol string) (*premiumIndex, error) {
	var out premiumIndex
	reqURL := fmt.Sprintf("%s/fapi/v1/premiumIndex?symbol=%s", binanceFuturesURL, symbol)
	if _, err := c.gw.GetJSON(ctx, gateway.Request{URL: reqURL, Timeout: 5 * time.Second}, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// FundingRates fetches the latest perp funding rate per tracked symbol.
func (c *Client) FundingRates(ctx context.Context) (model.SeriesValue, error) {
	var rates model.FundingRates
	for _, symbol := range perpSymbols {
		pi, err := c.premiumIndex(ctx, symbol)
		if err != nil {
			return nil, err
		}
		rates = append(rates, model.FundingRate{
			Symbol: symbol[:len(symbol)-4],
			Rate:   pi.LastFundingRate * 100,
			At:     time.UnixMilli(pi.NextFundingTime).UTC(),
		})
	}
	return rates, nil
}

// LongShort fetches the Binance top-trader long/short account ratio.
func (c *Client) LongShort(ctx context.Context) (model.SeriesValue, error) {
	var out []struct {
		LongAccount    float64 `json:"longAccount,string"`
		ShortAccount   float64 `json:"shortAccount,string"`
		LongShortRatio float64 `json:"longShortRatio,string"`
	}
	reqURL := binanceFuturesURL + "/futures/data/topLongShortAccountRatio?symbol=BTCUSDT&period=1d&limit=1"
	if _, err := c.gw.GetJSON(ctx, gateway.Request{URL: reqURL, Timeout: 5 * time.Second}, &out); err != nil {
		return nil, err
	}
	if len(out) == 0 {
		return nil, fmt.Errorf("empty long/short response")
	}
	return model.LongShortRatio{
		Symbol:   "BTC",
		LongPct:  out[0].LongAccount,
		ShortPct: out[0].ShortAccount,
		Ratio:    out[0].LongShortRatio,
	}, nil
}

// OpenInterest fetches open interest plus mark price per tracked perp.
// One symbol's failure does not drop the rest.
func (c *Client) OpenInterest(ctx context.Context) (model.SeriesValue, error) {
	var set model.OpenInterestSet
	for _, symbol := range perpSymbols {
		var oi struct {
			OpenInterest float64 `json:"openInterest,string"`
		}
		reqURL := fmt.Sprintf("%s/fapi/v1/openInterest?symbol=%s", binanceFuturesURL, symbol)
		if _, err := c.gw.GetJSON(ctx, gateway.Request{URL: reqURL, Timeout: 5 * time.Second}, &oi); err != nil {
			c.logger.Warn().Err(err).Str("symbol", symbol).Msg("Open interest fetch failed")
			continue
		}
		pi, err := c.premiumIndex(ctx, symbol)
		if err != nil {
			c.logger.Warn().Err(err).Str("symbol", symbol).Msg("Premium index fetch failed")
			continue
		}
		set = append(set, model.OpenInterestEntry{
			Symbol:       symbol[:len(symbol)-4],
			OpenInterest: oi.OpenInterest,
			MarkPrice:    pi.MarkPrice,
			FundingRate:  pi.LastFundingRate,
		})
	}
	if len(set) == 0 {
		return nil, fmt.Errorf("no open interest data for any symbol")
	}
	return set, nil
}

// WhaleTrades scans recent aggregated futures trades for prints of at
// least $100k notional; a rough liquidation proxy.
func (c *Client) WhaleTrades(ctx context.Context) (model.SeriesValue, error) {
	const minNotional = 100_000

	var trades model.WhaleTrades
	for _, symbol := range []string{"BTCUSDT", "ETHUSDT"} {
		var out []struct {
			Price        float64 `json:"p,string"`
			Quantity     float64 `json:"q,string"`
			Time         int64   `json:"T"`
			BuyerIsMaker bool    `json:"m"`
		}
		reqURL := fmt.Sprintf("%s/fapi/v1/aggTrades?symbol=%s&limit=80", binanceFuturesURL, symbol)
		if _, err := c.gw.GetJSON(ctx, gateway.Request{URL: reqURL, Timeout: 5 * time.Second}, &out); err != nil {
			return nil, err
		}
		for _, t := range out {
			notional := t.Price * t.Quantity
			if notional < minNotional {
				continue
			}
			side := "BUY"
			if t.BuyerIsMaker {
				side = "SELL"
			}
			trades = append(trades, model.WhaleTrade{
				Symbol:   symbol[:len(symbol)-4],
				Side:     side,
				Price:    t.Price,
				Quantity: t.Quantity,
				Notional: notional,
				At:       time.UnixMilli(t.Time).UTC(),
			})
		}
	}

	sort.Slice(trades, func(i, j int) bool { return trades[i].At.After(trades[j].At) })
	if len(trades) > 12 {
		trades = trades[:12]
	}
	return trades, nil
}

// LiqZones estimates liquidation clusters from price, open interest and
// funding at standard leverage tiers.
func (c *Client) LiqZones(ctx context.Context) (model.SeriesValue, error) {
	var price struct {
		Price float64 `json:"price,string"`
	}
	reqURL := binanceFuturesURL + "/fapi/v1/ticker/price?symbol=BTCUSDT"
	if _, err := c.gw.GetJSON(ctx, gateway.Request{URL: reqURL, Timeout: 5 * time.Second}, &price); err != nil {
		return nil, err
	}

	var oi struct {
		OpenInterest float64 `json:"openInterest,string"`
	}
	reqURL = binanceFuturesURL + "/fapi/v1/openInterest?symbol=BTCUSDT"
	if _, err := c.gw.GetJSON(ctx, gateway.Request{URL: reqURL, Timeout: 5 * time.Second}, &oi); err != nil {
		return nil, err
	}

	var funding []struct {
		FundingRate float64 `json:"fundingRate,string"`
	}
	reqURL = binanceFuturesURL + "/fapi/v1/fundingRate?symbol=BTCUSDT&limit=1"
	if _, err := c.gw.GetJSON(ctx, gateway.Request{URL: reqURL, Timeout: 5 * time.Second}, &funding); err != nil {
		return nil, err
	}
	rate := 0.0
	if len(funding) > 0 {
		rate = funding[0].FundingRate
	}

	zones := model.LiquidationZones{
		Price:        price.Price,
		OpenInterest: oi.OpenInterest,
		FundingRate:  rate,
	}
	for _, lev := range []int{5, 10, 25, 50, 100} {
		intensity := oi.OpenInterest * price.Price * (0.3 / float64(lev))
		zones.Zones = append(zones.Zones,
			model.LiqZone{Price: price.Price * (1 - 1/float64(lev)), Side: "LONG", Intensity: intensity},
			model.LiqZone{Price: price.Price * (1 + 1/float64(lev)), Side: "SHORT", Intensity: intensity},
		)
	}
	return zones, nil
}

// WhaleWallets scans unconfirmed blockchain.info transactions for BTC
// transfers of at least 10 BTC, largest first, capped at 8. Outputs with
// spend history or exchange-tagged addresses are marked EXCHANGE.
func (c *Client) WhaleWallets(ctx context.Context) (model.SeriesValue, error) {
	var out struct {
		Txs []struct {
			Hash string `json:"hash"`
			Time int64  `json:"time"`
			Out  []struct {
				Value             int64  `json:"value"`
				Addr              string `json:"addr"`
				SpendingOutpoints []any  `json:"spending_outpoints"`
			} `json:"out"`
		} `json:"txs"`
	}
	reqURL := blockchainInfoURL + "/unconfirmed-transactions?format=json"
	if _, err := c.gw.GetJSON(ctx, gateway.Request{URL: reqURL, Timeout: 10 * time.Second}, &out); err != nil {
		return nil, err
	}

	btcPrice, err := c.SpotPrice(ctx, "BTC")
	if err != nil {
		c.logger.Warn().Err(err).Msg("BTC price unavailable for whale wallets, USD omitted")
		btcPrice = 0
	}

	var transfers model.WhaleTransfers
	for _, tx := range out.Txs {
		var totalSats int64
		exchange := false
		for _, o := range tx.Out {
			totalSats += o.Value
			if strings.Contains(strings.ToLower(o.Addr), "exchange") || len(o.SpendingOutpoints) > 0 {
				exchange = true
			}
		}
		btc := float64(totalSats) / 1e8
		if btc < 10 {
			continue
		}
		kind := "WALLET"
		if exchange {
			kind = "EXCHANGE"
		}
		hash := tx.Hash
		if len(hash) > 12 {
			hash = hash[:12]
		}
		transfers = append(transfers, model.WhaleTransfer{
			Hash: hash,
			BTC:  btc,
			USD:  btc * btcPrice,
			Kind: kind,
			At:   time.Unix(tx.Time, 0).UTC(),
		})
		if len(transfers) >= 8 {
			break
		}
	}

	sort.Slice(transfers, func(i, j int) bool { return transfers[i].BTC > transfers[j].BTC })
	return transfers, nil
}

// Hashrate fetches the 3-day average network hashrate in EH/s.
func (c *Client) Hashrate(ctx context.Context) (model.SeriesValue, error) {
	var out struct {
		Hashrates []struct {
			Timestamp   int64   `json:"timestamp"`
			AvgHashrate float64 `json:"avgHashrate"`
		} `json:"hashrates"`
	}
	reqURL := mempoolSpaceURL + "/api/v1/mining/hashrate/3d"
	if _, err := c.gw.GetJSON(ctx, gateway.Request{URL: reqURL, Timeout: 5 * time.Second}, &out); err != nil {
		return nil, err
	}
	if len(out.Hashrates) == 0 {
		return nil, fmt.Errorf("no hashrate data in response")
	}
	latest := out.Hashrates[len(out.Hashrates)-1]
	return model.Hashrate{
		AvgEHs: latest.AvgHashrate / 1e18,
		At:     time.Unix(latest.Timestamp, 0).UTC(),
	}, nil
}

// MempoolFees fetches the recommended BTC fee tiers.
func (c *Client) MempoolFees(ctx context.Context) (model.SeriesValue, error) {
	var out struct {
		FastestFee  int `json:"fastestFee"`
		HalfHourFee int `json:"halfHourFee"`
		HourFee     int `json:"hourFee"`
		EconomyFee  int `json:"economyFee"`
	}
	reqURL := mempoolSpaceURL + "/api/v1/fees/recommended"
	if _, err := c.gw.GetJSON(ctx, gateway.Request{URL: reqURL, Timeout: 5 * time.Second}, &out); err != nil {
		return nil, err
	}
	return model.MempoolFees{
		Fastest:  out.FastestFee,
		HalfHour: out.HalfHourFee,
		Hour:     out.HourFee,
		Economy:  out.EconomyFee,
	}, nil
}
