// Package processor consumes scrape results from processor_q, persists
// them to the catalogue, and offers newly discovered outbound links back
// into the catalogue as placeholders.
package processor

import (
	"context"
	"crypto/md5" //nolint:gosec
	"encoding/hex"
	"log/slog"
	"strings"

	"github.com/redis/go-redis/v9"

	"github.com/elodkocsis/tenebra/internal/blacklist"
	"github.com/elodkocsis/tenebra/internal/catalogue"
	"github.com/elodkocsis/tenebra/internal/queue"
)

// seenKeyPrefix namespaces the per-link dedup cache in the shared Redis
// instance. Keys set here have no TTL: once a link is known offered, it
// stays known for the processor's lifetime.
const seenKeyPrefix = "seen:"

var quoteStripper = strings.NewReplacer(`"`, "", "'", "", "`", "")

// Processor saves a scraped page and offers its extracted links back onto
// the catalogue for future scheduling. Every terminal state ACKs; loss is
// bounded by the scheduler's due-query replaying the URL.
type Processor struct {
	store     *catalogue.Store
	blacklist *blacklist.Blacklist
	seen      *redis.Client
	logger    *slog.Logger
}

// New wires a Processor. seen may be nil, disabling the per-link dedup
// cache and falling back to a store round-trip for every link.
func New(store *catalogue.Store, bl *blacklist.Blacklist, seen *redis.Client, logger *slog.Logger) *Processor {
	return &Processor{store: store, blacklist: bl, seen: seen, logger: logger}
}

// Handle implements queue.Handler: it's registered against processor_q.
func (p *Processor) Handle(ctx context.Context, body []byte) queue.AckDisposition {
	result, err := queue.DecodeScrapeResult(body)
	if err != nil {
		p.logger.Warn("processing failed, dropping", "error", err)
		return queue.Ack
	}

	if p.blacklist.IsBlocked(result.URL) {
		p.logger.Info("blacklisted url dropped silently", "url", result.URL)
		return queue.Ack
	}

	data := catalogue.ScrapedData{
		PageTitle:   result.PageTitle,
		PageContent: result.PageContent,
		MetaTags:    toCatalogueMetaTags(result.MetaTags),
	}

	if err := p.save(ctx, result.URL, data); err != nil {
		p.logger.Warn("save failed, url remains due for retry", "url", result.URL, "error", err)
		return queue.Ack
	}

	p.offerLinks(ctx, result.URL, result.Links)

	return queue.Ack
}

func (p *Processor) save(ctx context.Context, url string, data catalogue.ScrapedData) error {
	_, exists, err := p.store.GetByURL(ctx, url)
	if err != nil {
		return err
	}
	if exists {
		return p.store.UpdateScraped(ctx, url, data)
	}
	return p.store.InsertScraped(ctx, url, data)
}

// offerLinks inserts a placeholder row for every non-blacklisted, not-yet-
// known outbound link, logging and skipping individual failures rather
// than aborting the batch.
func (p *Processor) offerLinks(ctx context.Context, parentURL string, links []string) {
	for _, raw := range links {
		link := quoteStripper.Replace(raw)

		if p.blacklist.IsBlocked(link) {
			continue
		}

		if p.alreadySeen(ctx, link) {
			continue
		}

		if err := p.store.InsertPlaceholder(ctx, link, parentURL); err != nil {
			p.logger.Warn("insert_placeholder failed, link will be re-offered on next source re-scrape", "link", link, "error", err)
			continue
		}

		p.markSeen(ctx, link)
	}
}

// alreadySeen consults the dedup cache only; a cache miss always falls
// through to InsertPlaceholder's own ON CONFLICT DO NOTHING, so a cold or
// unavailable cache never changes correctness, only throughput.
func (p *Processor) alreadySeen(ctx context.Context, link string) bool {
	if p.seen == nil {
		return false
	}
	n, err := p.seen.Exists(ctx, seenKey(link)).Result()
	if err != nil {
		p.logger.Warn("seen-cache lookup failed, falling back to store check", "error", err)
		return false
	}
	return n > 0
}

func (p *Processor) markSeen(ctx context.Context, link string) {
	if p.seen == nil {
		return
	}
	if err := p.seen.Set(ctx, seenKey(link), "1", 0).Err(); err != nil {
		p.logger.Warn("seen-cache write failed", "error", err)
	}
}

func seenKey(link string) string {
	sum := md5.Sum([]byte(link)) //nolint:gosec
	return seenKeyPrefix + hex.EncodeToString(sum[:])
}

func toCatalogueMetaTags(tags []queue.MetaTag) []catalogue.MetaTag {
	if tags == nil {
		return nil
	}
	out := make([]catalogue.MetaTag, len(tags))
	for i, t := range tags {
		out[i] = catalogue.MetaTag{Key: t.Key, Value: t.Value}
	}
	return out
}
