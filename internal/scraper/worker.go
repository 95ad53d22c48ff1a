package scraper

import (
	"context"
	"log/slog"

	"github.com/elodkocsis/tenebra/internal/catalogue"
	"github.com/elodkocsis/tenebra/internal/queue"
)

// scrapeResult is the processor_q wire shape, kept local to avoid a
// scraper -> processor package dependency; json tags match queue.ScrapeResult.
type scrapeResult struct {
	URL         string              `json:"url"`
	PageTitle   *string             `json:"page_title"`
	PageContent *string             `json:"page_content"`
	MetaTags    []catalogue.MetaTag `json:"meta_tags"`
	Links       []string            `json:"links"`
}

// Archiver persists a raw HTML snapshot next to the catalogue row. It is
// never consulted for correctness, only called best-effort after a
// successful extraction.
type Archiver interface {
	Store(ctx context.Context, pageURL string, body []byte) error
}

// Publisher is the subset of queue.Client the worker needs to hand a
// scrape result to the Processor, accepted as an interface so Handle is
// testable without a broker.
type Publisher interface {
	PublishJSON(ctx context.Context, queueName string, v any) bool
}

// Worker consumes worker_q, fetches each URL through Tor, extracts its
// content, and republishes the result to processor_q.
type Worker struct {
	fetcher    *Fetcher
	publisher  Publisher
	controller *TorController
	archiver   Archiver
	logger     *slog.Logger
}

// NewWorker wires a Worker from its collaborators. controller and archiver
// may both be nil, disabling identity rotation and raw snapshot storage
// respectively without changing any other behavior.
func NewWorker(fetcher *Fetcher, publisher Publisher, controller *TorController, archiver Archiver, logger *slog.Logger) *Worker {
	return &Worker{fetcher: fetcher, publisher: publisher, controller: controller, archiver: archiver, logger: logger}
}

// Handle implements queue.Handler: it's registered against worker_q.
func (w *Worker) Handle(ctx context.Context, body []byte) queue.AckDisposition {
	rawURL := string(body)

	pageBody, err := w.fetcher.Fetch(ctx, rawURL)
	if err != nil {
		w.logger.Warn("fetch failed, dropping", "url", rawURL, "error", err)
		if w.controller != nil {
			w.controller.RequestNewIdentity(ctx)
		}
		return queue.Drop
	}

	result, err := Extract(rawURL, pageBody)
	if err != nil {
		w.logger.Warn("extraction failed, dropping", "url", rawURL, "error", err)
		return queue.Drop
	}

	if w.archiver != nil {
		if err := w.archiver.Store(ctx, rawURL, pageBody); err != nil {
			w.logger.Warn("archiving raw snapshot failed, page is still saved without it", "url", rawURL, "error", err)
		}
	}

	payload := scrapeResult{
		URL:         rawURL,
		PageTitle:   result.PageTitle,
		PageContent: result.PageContent,
		MetaTags:    result.MetaTags,
		Links:       result.Links,
	}

	if !w.publisher.PublishJSON(ctx, queue.ProcessorQueue, payload) {
		w.logger.Warn("publish to processor queue failed, will be redelivered", "url", rawURL)
		return queue.Requeue
	}

	return queue.Ack
}
