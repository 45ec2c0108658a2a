package main

import (
	"os"
	"os/signal"
	"syscall"
	"time"

	_ "github.com/lib/pq"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/ryzm/terminal/internal/alerts"
	"github.com/ryzm/terminal/internal/analyze"
	"github.com/ryzm/terminal/internal/cache"
	"github.com/ryzm/terminal/internal/config"
	"github.com/ryzm/terminal/internal/evaluator"
	"github.com/ryzm/terminal/internal/gateway"
	"github.com/ryzm/terminal/internal/market"
	"github.com/ryzm/terminal/internal/model"
	"github.com/ryzm/terminal/internal/notify"
	"github.com/ryzm/terminal/internal/ratelimit"
	"github.com/ryzm/terminal/internal/scheduler"
	"github.com/ryzm/terminal/internal/storage"
)

func main() {
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339})

	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("Loading configuration failed")
	}

	level, err := zerolog.ParseLevel(cfg.LogLevel)
	if err != nil {
		level = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(level)

	db, err := storage.New(storage.ConnectionParams{
		Host:     cfg.DBHost,
		Port:     cfg.DBPort,
		User:     cfg.DBUser,
		Password: cfg.DBPassword,
		DBName:   cfg.DBName,
		SSLMode:  cfg.DBSSLMode,
	})
	if err != nil {
		log.Fatal().Err(err).Msg("Connecting to database failed")
	}
	defer db.Close()

	gw := gateway.New(gateway.Options{
		Timeout:        cfg.RequestTimeout,
		RequestsPerSec: cfg.RequestsPerSec,
		BackoffBase:    cfg.BackoffBase,
		BackoffCap:     cfg.BackoffCap,
		BanCooldown:    cfg.BanCooldown,
	})
	client := market.NewClient(gw)

	var notifier alerts.Notifier
	if cfg.TelegramBotToken != "" && cfg.TelegramChatID != 0 {
		tg, err := notify.NewTelegram(cfg.TelegramBotToken, cfg.TelegramChatID)
		if err != nil {
			log.Error().Err(err).Msg("Telegram notifier unavailable, alerts log only")
		} else {
			notifier = tg
		}
	}

	grader := evaluator.New(db, evaluator.Options{
		HorizonsMin: cfg.EvalHorizonsMin,
		Window:      cfg.EvalWindow,
		BatchSize:   cfg.EvalBatchSize,
		PriceSource: cfg.SnapshotSource,
	})
	checker := alerts.New(db, notifier)
	limiter := ratelimit.New(cfg.RequestsPerSec, time.Second, cfg.RateLimitIdleTTL)
	engine := analyze.New(client, cfg.SnapshotSymbol)

	sched := scheduler.New(scheduler.Options{
		Cache:  cache.New(),
		Series: seriesCatalog(client, cfg),

		Store:    db,
		Prices:   client,
		Grader:   grader,
		Alerts:   checker,
		Limiter:  limiter,
		Analyzer: engine,

		TickInterval:     cfg.TickInterval,
		AnalysisInterval: cfg.AnalysisInterval,
		GCEvery:          cfg.RateLimitGCEvery,
		SnapshotSymbol:   cfg.SnapshotSymbol,
		SnapshotSource:   cfg.SnapshotSource,
	})
	if err := sched.Start(); err != nil {
		log.Fatal().Err(err).Msg("Starting scheduler failed")
	}

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	<-stop

	log.Info().Msg("Shutting down")
	sched.Stop()
}

// seriesCatalog binds every data series to its fetch and TTL class. The
// slice order is the per-tick refresh order, quotes first so downstream
// side-tasks see this tick's prices.
func seriesCatalog(client *market.Client, cfg *config.Config) []scheduler.Series {
	return []scheduler.Series{
		{Key: model.SeriesQuotes, TTL: cfg.QuotesTTL, Fetch: client.Quotes},
		{Key: model.SeriesScanner, TTL: cfg.QuotesTTL, Fetch: client.Scanner},
		{Key: model.SeriesWhaleTrades, TTL: cfg.FastTTL, Fetch: client.WhaleTrades},
		{Key: model.SeriesWhaleWallets, TTL: cfg.FastTTL, Fetch: client.WhaleWallets},
		{Key: model.SeriesLiqZones, TTL: cfg.FastTTL, Fetch: client.LiqZones},
		{Key: model.SeriesFearGreed, TTL: cfg.SentimentTTL, Fetch: client.FearGreed},
		{Key: model.SeriesKimchi, TTL: cfg.SentimentTTL, Fetch: client.Kimchi},
		{Key: model.SeriesFundingRates, TTL: cfg.SentimentTTL, Fetch: client.FundingRates},
		{Key: model.SeriesLongShort, TTL: cfg.SentimentTTL, Fetch: client.LongShort},
		{Key: model.SeriesOpenInterest, TTL: cfg.SentimentTTL, Fetch: client.OpenInterest},
		{Key: model.SeriesMultiTF, TTL: cfg.SentimentTTL, Fetch: client.MultiTimeframe},
		{Key: model.SeriesMempoolFees, TTL: cfg.SentimentTTL, Fetch: client.MempoolFees},
		{Key: model.SeriesNews, TTL: cfg.SentimentTTL, Fetch: client.News},
		{Key: model.SeriesRegime, TTL: cfg.SentimentTTL, Fetch: client.Regime},
		{Key: model.SeriesHeatmap, TTL: cfg.HeavyTTL, Fetch: client.Heatmap},
		{Key: model.SeriesCorrelation, TTL: cfg.HeavyTTL, Fetch: client.Correlation},
		{Key: model.SeriesHashrate, TTL: cfg.HeavyTTL, Fetch: client.Hashrate},
		{Key: model.SeriesForex, TTL: cfg.HeavyTTL, Fetch: client.Forex},
	}
}
