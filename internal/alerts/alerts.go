package alerts

import (
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/ryzm/terminal/internal/model"
)

// Store is the persistence surface the checker needs.
type Store interface {
	ActiveAlerts() ([]model.Alert, error)
	MarkAlertTriggered(id int64, at time.Time) error
}

// Notifier receives fired alert events. Implementations must tolerate
// being called from the scheduler loop.
type Notifier interface {
	AlertFired(event model.AlertEvent) error
}

// Checker compares active price thresholds against the freshest quotes.
type Checker struct {
	store    Store
	notifier Notifier
	logger   zerolog.Logger
}

// New creates a Checker. notifier may be nil.
func New(store Store, notifier Notifier) *Checker {
	return &Checker{
		store:    store,
		notifier: notifier,
		logger:   log.With().Str("component", "alerts").Logger(),
	}
}

// Check fires every active alert whose threshold the given quotes cross
// and returns the fired events. Alerts whose symbol has no quote are left
// untouched; per-alert failures never abort the sweep.
func (c *Checker) Check(quotes model.Quotes, now time.Time) []model.AlertEvent {
	active, err := c.store.ActiveAlerts()
	if err != nil {
		c.logger.Error().Err(err).Msg("Loading active alerts failed")
		return nil
	}

	var fired []model.AlertEvent
	for _, alert := range active {
		quote, ok := quotes[strings.ToUpper(alert.Symbol)]
		if !ok || quote.Price == 0 {
			continue
		}

		hit := false
		switch alert.Direction {
		case "above":
			hit = quote.Price >= alert.TargetPrice
		case "below":
			hit = quote.Price <= alert.TargetPrice
		}
		if !hit {
			continue
		}

		if err := c.store.MarkAlertTriggered(alert.ID, now); err != nil {
			c.logger.Error().Err(err).Int64("alert_id", alert.ID).Msg("Marking alert triggered failed")
			continue
		}

		event := model.AlertEvent{Alert: alert, CurrentPrice: quote.Price, FiredAt: now}
		fired = append(fired, event)
		c.logger.Info().
			Int64("alert_id", alert.ID).
			Str("symbol", alert.Symbol).
			Str("direction", alert.Direction).
			Float64("target", alert.TargetPrice).
			Float64("current", quote.Price).
			Msg("Alert triggered")

		if c.notifier != nil {
			if err := c.notifier.AlertFired(event); err != nil {
				c.logger.Error().Err(err).Int64("alert_id", alert.ID).Msg("Alert notification failed")
			}
		}
	}
	return fired
}
