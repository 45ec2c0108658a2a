package market

import (
	"context"
	"sort"
	"strings"
	"time"

	"github.com/mmcdole/gofeed"

	"github.com/ryzm/terminal/internal/gateway"
	"github.com/ryzm/terminal/internal/model"
)

var rssFeeds = []struct {
	name string
	url  string
}{
	{"CoinDesk", "https://www.coindesk.com/arc/outboundfeeds/rss/"},
	{"CoinTelegraph", "https://cointelegraph.com/rss"},
	{"The Block", "https://www.theblock.co/rss.xml"},
	{"Decrypt", "https://decrypt.co/feed"},
}

// Two-pass headline classification: decisive phrases first, then a word
// vote. Phrases beat words because "drops investigation" must not read as
// bearish "drop".
var (
	bullPhrases = []string{
		"etf approved", "rate cut", "drops investigation", "ends probe",
		"institutional buy", "all-time high", "mass adoption", "clears regulation",
	}
	bearPhrases = []string{
		"files lawsuit", "under investigation", "exchange hack", "rug pull",
		"ponzi scheme", "market crash", "bank run", "rate hike",
	}
	bullWords = []string{
		"surge", "soar", "rally", "bullish", "breakout", "highs", "record",
		"jump", "gain", "boom", "moon", "buy", "upgrade", "approval",
		"adopt", "institutional", "accumul", "pump",
	}
	bearWords = []string{
		"crash", "plunge", "bearish", "dump", "sell", "liquidat", "hack",
		"ban", "fraud", "collapse", "fear", "warning", "drop",
		"decline", "sue", "regulation", "ponzi",
	}
)

// classifyHeadline tags one headline BULLISH, BEARISH or NEUTRAL.
func classifyHeadline(title string) string {
	t := strings.ToLower(title)

	for _, p := range bullPhrases {
		if strings.Contains(t, p) {
			return "BULLISH"
		}
	}
	for _, p := range bearPhrases {
		if strings.Contains(t, p) {
			return "BEARISH"
		}
	}

	bullScore, bearScore := 0, 0
	for _, w := range bullWords {
		if strings.Contains(t, w) {
			bullScore++
		}
	}
	for _, w := range bearWords {
		if strings.Contains(t, w) {
			bearScore++
		}
	}
	switch {
	case bullScore > bearScore:
		return "BULLISH"
	case bearScore > bullScore:
		return "BEARISH"
	}
	return "NEUTRAL"
}

// News aggregates RSS headlines with sentiment tags, newest first, capped
// at 15. Feeds go through the gateway so each outlet gets its own backoff
// state; one dead feed never drops the rest.
func (c *Client) News(ctx context.Context) (model.SeriesValue, error) {
	parser := gofeed.NewParser()

	var items model.NewsItems
	for _, feed := range rssFeeds {
		resp, err := c.gw.Do(ctx, gateway.Request{URL: feed.url, Timeout: 10 * time.Second})
		if err != nil {
			c.logger.Warn().Err(err).Str("feed", feed.name).Msg("News feed fetch failed")
			continue
		}
		parsed, err := parser.Parse(resp.Body)
		resp.Body.Close()
		if err != nil {
			c.logger.Warn().Err(err).Str("feed", feed.name).Msg("News feed parse failed")
			continue
		}

		entries := parsed.Items
		if len(entries) > 5 {
			entries = entries[:5]
		}
		for _, entry := range entries {
			var published time.Time
			if entry.PublishedParsed != nil {
				published = entry.PublishedParsed.UTC()
			} else if entry.UpdatedParsed != nil {
				published = entry.UpdatedParsed.UTC()
			}
			items = append(items, model.NewsItem{
				Title:       entry.Title,
				Source:      feed.name,
				Link:        entry.Link,
				PublishedAt: published,
				Sentiment:   classifyHeadline(entry.Title),
			})
		}
	}

	sort.SliceStable(items, func(i, j int) bool {
		return items[i].PublishedAt.After(items[j].PublishedAt)
	})
	if len(items) > 15 {
		items = items[:15]
	}
	return items, nil
}
