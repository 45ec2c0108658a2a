package model

import "time"

// SeriesValue is the closed set of payload types a cached series may hold.
// Each series gets a concrete type so consumers keep static shape
// guarantees instead of digging through map[string]any.
type SeriesValue interface {
	seriesValue()
}

// Cache series keys, one per independently-TTLed data series.
const (
	SeriesQuotes       = "quotes"
	SeriesFearGreed    = "fear_greed"
	SeriesKimchi       = "kimchi"
	SeriesFundingRates = "funding_rates"
	SeriesLongShort    = "long_short_ratio"
	SeriesOpenInterest = "open_interest"
	SeriesWhaleTrades  = "whale_trades"
	SeriesLiqZones     = "liq_zones"
	SeriesHeatmap      = "heatmap"
	SeriesMultiTF      = "multi_tf"
	SeriesScanner      = "scanner"
	SeriesMempoolFees  = "mempool_fees"
	SeriesForex        = "forex"
	SeriesNews         = "news"
	SeriesRegime       = "regime"
	SeriesCorrelation  = "correlation"
	SeriesWhaleWallets = "whale_wallets"
	SeriesHashrate     = "hashrate"
)

// Quote is one instrument in the quotes series.
type Quote struct {
	Symbol    string
	Price     float64
	ChangePct float64
	High      float64
	Low       float64
	Volume    float64
	Estimated bool
}

// Quotes maps symbol to its latest quote.
type Quotes map[string]Quote

func (Quotes) seriesValue() {}

// FearGreedPoint is one day of the index history.
type FearGreedPoint struct {
	Timestamp int64
	Value     int
}

// FearGreed is the crowd sentiment index with 30-day context.
type FearGreed struct {
	Score     int
	Label     string
	Delta     int
	PrevScore int
	Avg7d     float64
	Avg14d    float64
	Avg30d    float64
	Min30d    int
	Max30d    int
	History   []FearGreedPoint
	Estimated bool
}

func (FearGreed) seriesValue() {}

// KimchiPremium compares the Upbit KRW price against the Binance USD price.
type KimchiPremium struct {
	PremiumPct   float64
	UpbitPrice   float64
	BinancePrice float64
	USDKRW       float64
	Estimated    bool
}

func (KimchiPremium) seriesValue() {}

// FundingRate is the latest perp funding rate for one symbol.
type FundingRate struct {
	Symbol string
	Rate   float64
	At     time.Time
}

// FundingRates is the funding-rate series payload.
type FundingRates []FundingRate

func (FundingRates) seriesValue() {}

// LongShortRatio is the global account long/short split for one symbol.
type LongShortRatio struct {
	Symbol   string
	LongPct  float64
	ShortPct float64
	Ratio    float64
}

func (LongShortRatio) seriesValue() {}

// OpenInterestEntry carries open interest plus the premium-index view of
// one perp symbol.
type OpenInterestEntry struct {
	Symbol       string
	OpenInterest float64
	MarkPrice    float64
	FundingRate  float64
}

// OpenInterestSet is the open-interest series payload.
type OpenInterestSet []OpenInterestEntry

func (OpenInterestSet) seriesValue() {}

// WhaleTrade is one large aggregated futures trade.
type WhaleTrade struct {
	Symbol   string
	Side     string // "BUY" or "SELL"
	Price    float64
	Quantity float64
	Notional float64
	At       time.Time
}

// WhaleTrades is the whale-trades series payload, largest first.
type WhaleTrades []WhaleTrade

func (WhaleTrades) seriesValue() {}

// LiqZone is one estimated liquidation cluster.
type LiqZone struct {
	Price     float64
	Side      string // "LONG" or "SHORT"
	Intensity float64
}

// LiquidationZones is the composite liquidation-zone estimate.
type LiquidationZones struct {
	Price        float64
	OpenInterest float64
	FundingRate  float64
	Zones        []LiqZone
}

func (LiquidationZones) seriesValue() {}

// HeatmapCoin is one row of the market-cap heatmap.
type HeatmapCoin struct {
	Symbol    string
	Name      string
	Price     float64
	Change1h  float64
	Change24h float64
	Change7d  float64
	MarketCap float64
	Volume    float64
	Rank      int
}

// Heatmap is the top-coins heatmap with global aggregates.
type Heatmap struct {
	Coins          []HeatmapCoin
	BTCDominance   float64
	TotalMarketCap float64
}

func (Heatmap) seriesValue() {}

// TimeframeSignal is the RSI + MA-cross read for one timeframe.
type TimeframeSignal struct {
	RSI    float64
	EMA20  float64
	EMA50  float64
	Price  float64
	Signal string
	Trend  string
}

// MultiTimeframe is the per-timeframe signal set for one symbol.
type MultiTimeframe struct {
	Symbol     string
	Timeframes map[string]TimeframeSignal
}

func (MultiTimeframe) seriesValue() {}

// ScannerHit is one momentum-scanner opportunity.
type ScannerHit struct {
	Symbol    string
	Price     float64
	ChangePct float64
	RSI       float64
	VolSpike  float64
	Signal    string
}

// ScannerHits is the scanner series payload.
type ScannerHits []ScannerHit

func (ScannerHits) seriesValue() {}

// MempoolFees is the recommended BTC fee tiers in sat/vB.
type MempoolFees struct {
	Fastest  int
	HalfHour int
	Hour     int
	Economy  int
}

func (MempoolFees) seriesValue() {}

// ForexRates carries the USD crosses the dashboard tracks.
type ForexRates struct {
	JPY float64
	KRW float64
}

func (ForexRates) seriesValue() {}

// NewsItem is one headline with its sentiment tag.
type NewsItem struct {
	Title       string
	Source      string
	Link        string
	PublishedAt time.Time
	Sentiment   string // "BULLISH", "BEARISH" or "NEUTRAL"
}

// NewsItems is the news series payload, newest first.
type NewsItems []NewsItem

func (NewsItems) seriesValue() {}

// Regime classifies the market phase from dominance and market-cap flow.
type Regime struct {
	Regime         string // e.g. "BTC_SEASON", "ALT_SEASON", "RISK_OFF"
	Label          string
	BTCDom         float64
	ETHDom         float64
	USDTDom        float64
	AltDom         float64
	TotalMarketCap float64
	McapChange24h  float64
}

func (Regime) seriesValue() {}

// CorrelationMatrix holds pairwise 30-day return correlations. A nil cell
// means too little overlapping history to correlate.
type CorrelationMatrix struct {
	Assets []string
	Matrix map[string]map[string]*float64
}

func (CorrelationMatrix) seriesValue() {}

// WhaleTransfer is one large unconfirmed BTC transaction.
type WhaleTransfer struct {
	Hash string
	BTC  float64
	USD  float64
	Kind string // "EXCHANGE" or "WALLET"
	At   time.Time
}

// WhaleTransfers is the whale-wallets series payload, largest first.
type WhaleTransfers []WhaleTransfer

func (WhaleTransfers) seriesValue() {}

// Hashrate is the network hashrate estimate in EH/s.
type Hashrate struct {
	AvgEHs float64
	At     time.Time
}

func (Hashrate) seriesValue() {}
