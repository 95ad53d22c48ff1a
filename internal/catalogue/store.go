package catalogue

import (
	"context"
	"crypto/rand"
	"encoding/json"
	"fmt"
	"math/big"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// StoreError wraps any connection or constraint fault surfaced by the
// catalogue. The adapter never retries internally; callers decide the
// ACK/requeue policy.
type StoreError struct {
	Op  string
	Err error
}

func (e *StoreError) Error() string { return fmt.Sprintf("catalogue: %s: %v", e.Op, e.Err) }
func (e *StoreError) Unwrap() error { return e.Err }

// ScrapedData is the subset of a scrape result the catalogue persists;
// the message bus's link list is the Processor's concern, not the
// catalogue's.
type ScrapedData struct {
	PageTitle   *string
	PageContent *string
	MetaTags    []MetaTag
}

// Store provides transactional access to the pages table.
type Store struct {
	pool *pgxpool.Pool
}

func New(pool *pgxpool.Pool) *Store {
	return &Store{pool: pool}
}

// withTx runs fn inside a transaction that commits on a nil return and
// rolls back otherwise.
func (s *Store) withTx(ctx context.Context, op string, fn func(tx pgx.Tx) error) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return &StoreError{Op: op, Err: err}
	}
	defer func() { _ = tx.Rollback(ctx) }()

	if err := fn(tx); err != nil {
		if se, ok := err.(*StoreError); ok {
			return se
		}
		return &StoreError{Op: op, Err: err}
	}

	if err := tx.Commit(ctx); err != nil {
		return &StoreError{Op: op, Err: err}
	}
	return nil
}

// ListDue returns every URL that is new or whose date_accessed is older
// than accessDayDifference days, permuted into random order so that
// publishing the result doesn't hammer a single domain in sequence.
func (s *Store) ListDue(ctx context.Context, accessDayDifference int) ([]string, error) {
	var urls []string
	err := s.withTx(ctx, "list_due", func(tx pgx.Tx) error {
		rows, err := tx.Query(ctx,
			`SELECT url FROM pages
			 WHERE new_url = TRUE
			    OR (date_accessed IS NOT NULL AND date_accessed < NOW() - ($1 || ' days')::interval)
			 ORDER BY date_added ASC`,
			accessDayDifference)
		if err != nil {
			return err
		}
		defer rows.Close()

		for rows.Next() {
			var u string
			if err := rows.Scan(&u); err != nil {
				return err
			}
			urls = append(urls, u)
		}
		return rows.Err()
	})
	if err != nil {
		return nil, err
	}

	shuffle(urls)
	return urls, nil
}

// shuffle performs an in-place Fisher-Yates permutation using a
// cryptographically sourced shuffle so that the Scheduler's dispatch
// order doesn't correlate with any database-internal ordering.
func shuffle(urls []string) {
	for i := len(urls) - 1; i > 0; i-- {
		jBig, err := rand.Int(rand.Reader, big.NewInt(int64(i+1)))
		if err != nil {
			continue
		}
		j := int(jBig.Int64())
		urls[i], urls[j] = urls[j], urls[i]
	}
}

// ListTrainable returns every scraped page with a non-empty title and
// content, the corpus the Analyzer trains on.
func (s *Store) ListTrainable(ctx context.Context) ([]Page, error) {
	var pages []Page
	err := s.withTx(ctx, "list_trainable", func(tx pgx.Tx) error {
		rows, err := tx.Query(ctx,
			`SELECT url, date_accessed, page_title, page_content, meta_tags, parent_url, new_url, date_added
			 FROM pages
			 WHERE new_url = FALSE AND page_title <> '' AND page_content <> ''`)
		if err != nil {
			return err
		}
		defer rows.Close()

		for rows.Next() {
			p, err := scanPage(rows)
			if err != nil {
				return err
			}
			pages = append(pages, p)
		}
		return rows.Err()
	})
	return pages, err
}

// GetByURL returns the row for url, or (Page{}, false, nil) if absent.
func (s *Store) GetByURL(ctx context.Context, url string) (Page, bool, error) {
	var page Page
	var found bool
	err := s.withTx(ctx, "get_by_url", func(tx pgx.Tx) error {
		row := tx.QueryRow(ctx,
			`SELECT url, date_accessed, page_title, page_content, meta_tags, parent_url, new_url, date_added
			 FROM pages WHERE url = $1`, url)
		p, err := scanPageRow(row)
		if err == pgx.ErrNoRows {
			return nil
		}
		if err != nil {
			return err
		}
		page = p
		found = true
		return nil
	})
	return page, found, err
}

// GetAllURLs returns the set of every URL currently in the catalogue.
func (s *Store) GetAllURLs(ctx context.Context) (map[string]struct{}, error) {
	urls := make(map[string]struct{})
	err := s.withTx(ctx, "get_all_urls", func(tx pgx.Tx) error {
		rows, err := tx.Query(ctx, `SELECT url FROM pages`)
		if err != nil {
			return err
		}
		defer rows.Close()

		for rows.Next() {
			var u string
			if err := rows.Scan(&u); err != nil {
				return err
			}
			urls[u] = struct{}{}
		}
		return rows.Err()
	})
	return urls, err
}

// SearchByURLs returns the rows for the given URLs, in unspecified order
// (the Analyzer re-sorts them to the model's ranking).
func (s *Store) SearchByURLs(ctx context.Context, urls map[string]struct{}) ([]Page, error) {
	if len(urls) == 0 {
		return nil, nil
	}

	list := make([]string, 0, len(urls))
	for u := range urls {
		list = append(list, u)
	}

	var pages []Page
	err := s.withTx(ctx, "search_by_urls", func(tx pgx.Tx) error {
		rows, err := tx.Query(ctx,
			`SELECT url, date_accessed, page_title, page_content, meta_tags, parent_url, new_url, date_added
			 FROM pages WHERE url = ANY($1)`, list)
		if err != nil {
			return err
		}
		defer rows.Close()

		for rows.Next() {
			p, err := scanPage(rows)
			if err != nil {
				return err
			}
			pages = append(pages, p)
		}
		return rows.Err()
	})
	return pages, err
}

// UpdateScraped upgrades an existing row to scraped state. new_url flips
// to false and date_accessed is stamped with wall-clock processing time.
func (s *Store) UpdateScraped(ctx context.Context, url string, data ScrapedData) error {
	return s.withTx(ctx, "update_scraped", func(tx pgx.Tx) error {
		metaJSON, err := json.Marshal(data.MetaTags)
		if err != nil {
			return err
		}
		ct, err := tx.Exec(ctx,
			`UPDATE pages SET page_title = $2, page_content = $3, meta_tags = $4,
			 date_accessed = NOW(), new_url = FALSE WHERE url = $1`,
			url, data.PageTitle, data.PageContent, metaJSON)
		if err != nil {
			return err
		}
		if ct.RowsAffected() == 0 {
			return fmt.Errorf("no row for url %q", url)
		}
		return nil
	})
}

// InsertPlaceholder records a discovered link as a not-yet-scraped row.
func (s *Store) InsertPlaceholder(ctx context.Context, url string, parentURL string) error {
	return s.withTx(ctx, "insert_placeholder", func(tx pgx.Tx) error {
		_, err := tx.Exec(ctx,
			`INSERT INTO pages (url, parent_url, new_url, date_added)
			 VALUES ($1, $2, TRUE, NOW())
			 ON CONFLICT (url) DO NOTHING`,
			url, parentURL)
		return err
	})
}

// InsertScraped inserts a fully-populated row for a URL that arrived on
// processor_q without ever having a placeholder row: a rare out-of-order
// delivery, but a legitimate one.
func (s *Store) InsertScraped(ctx context.Context, url string, data ScrapedData) error {
	return s.withTx(ctx, "insert_scraped", func(tx pgx.Tx) error {
		metaJSON, err := json.Marshal(data.MetaTags)
		if err != nil {
			return err
		}
		_, err = tx.Exec(ctx,
			`INSERT INTO pages (url, page_title, page_content, meta_tags, new_url, date_accessed, date_added)
			 VALUES ($1, $2, $3, $4, FALSE, NOW(), NOW())
			 ON CONFLICT (url) DO UPDATE SET
			   page_title = EXCLUDED.page_title,
			   page_content = EXCLUDED.page_content,
			   meta_tags = EXCLUDED.meta_tags,
			   new_url = FALSE,
			   date_accessed = NOW()`,
			url, data.PageTitle, data.PageContent, metaJSON)
		return err
	})
}

type scannable interface {
	Scan(dest ...any) error
}

func scanPage(rows pgx.Rows) (Page, error) {
	return scanPageRow(rows)
}

func scanPageRow(row scannable) (Page, error) {
	var p Page
	var metaJSON []byte
	if err := row.Scan(&p.URL, &p.DateAccessed, &p.PageTitle, &p.PageContent, &metaJSON, &p.ParentURL, &p.NewURL, &p.DateAdded); err != nil {
		return Page{}, err
	}
	if len(metaJSON) > 0 {
		if err := json.Unmarshal(metaJSON, &p.MetaTags); err != nil {
			return Page{}, err
		}
	}
	return p, nil
}
