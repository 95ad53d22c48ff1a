// Package analyzer implements the topic-model manager: a background
// trainer that periodically retrains from the catalogue's trainable pages
// and hot-swaps the live model under concurrent query traffic, without a
// query ever observing a torn or mid-swap handle.
package analyzer

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/elodkocsis/tenebra/internal/catalogue"
)

// Status is the model manager's process-wide lifecycle state.
type Status int

const (
	SettingUp Status = iota
	Ready
	Updating
)

func (s Status) String() string {
	switch s {
	case SettingUp:
		return "setting_up"
	case Ready:
		return "ready"
	case Updating:
		return "updating"
	default:
		return "unknown"
	}
}

const (
	retrainPeriod = 24 * time.Hour
	drainPoll     = 50 * time.Millisecond
	stablePoll    = 50 * time.Millisecond

	minResults = 1
	maxResults = 1000
)

// PageView is the mapped view record the RPC surface returns per result:
// title falls back to the URL, description is the "description" meta tag
// or empty.
type PageView struct {
	URL         string
	Title       string
	Description string
}

// TrainableLister is the subset of catalogue.Store the trainer needs.
type TrainableLister interface {
	ListTrainable(ctx context.Context) ([]catalogue.Page, error)
}

// URLSearcher is the subset of catalogue.Store the query path needs to
// turn ranked URLs back into page rows.
type URLSearcher interface {
	SearchByURLs(ctx context.Context, urls map[string]struct{}) ([]catalogue.Page, error)
}

// Manager is the process-wide model manager singleton: status_mu and
// inflight_mu are genuinely separate locks so swap bookkeeping never
// contends with query accounting. Retrain cadence is driven by a single
// ticker-fed supervisor goroutine for the manager's whole lifetime, not a
// chain of self-rescheduling timers.
type Manager struct {
	store  TrainableLister
	search URLSearcher
	logger *slog.Logger

	modelDir  string
	modelFile string
	threads   int

	statusMu sync.Mutex
	status   Status

	// model is swapped with an atomic store rather than guarded by
	// status_mu: the protocol already guarantees no query reads it
	// outside a READY window, this just gives that guarantee a real
	// memory-safe handle instead of relying on single-writer discipline.
	model atomic.Pointer[Model]

	inflightMu sync.Mutex
	inflight   int

	ticker *time.Ticker
	stopCh chan struct{}
	wg     sync.WaitGroup
}

// New constructs a Manager; call Start to run its startup sequence. threads
// bounds how many goroutines a retrain cycle spreads its per-document
// vectorization work across.
func New(store TrainableLister, search URLSearcher, modelDir, modelFile string, threads int, logger *slog.Logger) *Manager {
	return &Manager{store: store, search: search, modelDir: modelDir, modelFile: modelFile, threads: threads, logger: logger}
}

// Start attempts to load a persisted model, then launches the single
// supervisor goroutine that trains immediately if there's no usable model,
// and retrains every retrain period thereafter.
func (m *Manager) Start(ctx context.Context) {
	loaded, err := Load(m.modelDir, m.modelFile)
	if err != nil {
		m.logger.Info("no usable model on disk, starting in setting_up", "error", err)
		m.setStatus(SettingUp)
	} else {
		loaded.Index()
		m.model.Store(loaded)
		m.setStatus(Ready)
		m.logger.Info("model loaded from disk")
	}

	m.ticker = time.NewTicker(retrainPeriod)
	m.stopCh = make(chan struct{})

	m.wg.Add(1)
	go m.supervise(ctx)
}

// supervise is the single long-lived goroutine that owns every retrain
// cycle: one immediate run if startup left the manager SETTING_UP, then
// one run per tick until told to stop.
func (m *Manager) supervise(ctx context.Context) {
	defer m.wg.Done()

	if m.Status() == SettingUp {
		m.runTrainer(ctx)
	}

	for {
		select {
		case <-ctx.Done():
			return
		case <-m.stopCh:
			return
		case <-m.ticker.C:
			m.runTrainer(ctx)
		}
	}
}

// Stop cancels the retrain ticker and joins the supervisor goroutine so a
// save-to-disk already underway finishes before the process exits.
func (m *Manager) Stop() {
	if m.ticker != nil {
		m.ticker.Stop()
	}
	if m.stopCh != nil {
		close(m.stopCh)
	}
	m.wg.Wait()
}

// Status returns the current lifecycle state.
func (m *Manager) Status() Status {
	m.statusMu.Lock()
	defer m.statusMu.Unlock()
	return m.status
}

func (m *Manager) setStatus(s Status) {
	m.statusMu.Lock()
	m.status = s
	m.statusMu.Unlock()
}

// GetPages implements the RPC surface's get_pages(query, n): it clamps n,
// waits for a stable (non-updating) status, runs the model query outside
// all locks, and maps results back to page rows. ok is false while the
// manager is still setting up, in which case callers should render
// "indexing, try later", and also when ctx is cancelled while waiting out
// an update.
func (m *Manager) GetPages(ctx context.Context, query string, n int) (results []PageView, ok bool) {
	if n < minResults {
		n = minResults
	}
	if n > maxResults {
		n = maxResults
	}

	for {
		status := m.Status()
		if status == Updating {
			select {
			case <-ctx.Done():
				return nil, false
			case <-time.After(stablePoll):
			}
			continue
		}
		if status == SettingUp {
			return nil, false
		}
		break // Ready
	}

	m.incInflight()
	mdl := m.model.Load()
	var urls []string
	if mdl != nil {
		urls = mdl.Query(query, n)
	}
	m.decInflight()

	return m.toPageViews(ctx, urls), true
}

func (m *Manager) toPageViews(ctx context.Context, urls []string) []PageView {
	if len(urls) == 0 {
		return nil
	}

	set := make(map[string]struct{}, len(urls))
	for _, u := range urls {
		set[u] = struct{}{}
	}

	pages, err := m.search.SearchByURLs(ctx, set)
	if err != nil {
		m.logger.Warn("search_by_urls failed for query results", "error", err)
		return nil
	}

	byURL := make(map[string]catalogue.Page, len(pages))
	for _, p := range pages {
		byURL[p.URL] = p
	}

	views := make([]PageView, 0, len(urls))
	for _, u := range urls {
		p, ok := byURL[u]
		if !ok {
			continue
		}
		views = append(views, PageView{URL: p.URL, Title: p.Title(), Description: p.Description()})
	}
	return views
}

func (m *Manager) incInflight() {
	m.inflightMu.Lock()
	m.inflight++
	m.inflightMu.Unlock()
}

func (m *Manager) decInflight() {
	m.inflightMu.Lock()
	m.inflight--
	m.inflightMu.Unlock()
}

// drain blocks until no query holds a reference to the pre-swap model,
// polling inflight_mu non-blockingly so a query that's mid-increment
// never deadlocks the trainer.
func (m *Manager) drain() {
	for {
		if m.inflightMu.TryLock() {
			n := m.inflight
			m.inflightMu.Unlock()
			if n == 0 {
				return
			}
		}
		time.Sleep(drainPoll)
	}
}

// runTrainer executes one retrain cycle: train, swap under the UPDATING
// gate with a drain in between, save-then-index in that strict order.
func (m *Manager) runTrainer(ctx context.Context) {
	pages, err := m.store.ListTrainable(ctx)
	if err != nil {
		m.logger.Warn("listing trainable pages failed, skipping retrain cycle", "error", err)
		return
	}

	newModel, err := Train(pages, m.threads)
	if err != nil {
		m.logger.Warn("training failed, skipping swap", "error", err)
		return
	}
	if newModel == nil {
		m.logger.Info("empty trainable corpus, skipping swap")
		return
	}

	m.setStatus(Updating)
	m.drain()

	m.model.Store(newModel)

	if err := Save(newModel, m.modelDir, m.modelFile); err != nil {
		m.logger.Warn("saving model failed, swap proceeds in memory anyway", "error", err)
	}

	// Indexing must happen strictly after save: the on-disk format is
	// only ever read back without an index attached.
	newModel.Index()

	m.setStatus(Ready)
}
