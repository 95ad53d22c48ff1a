// Package catalogue provides typed access to the pages table: the crawl
// target catalogue that the Scheduler, Processor, and Analyzer all read
// and write through. It owns every invariant in the data model: a
// placeholder row is upgraded in place when its URL is scraped, a scraped
// row never reverts to new_url, and url is immutable once inserted.
package catalogue

import "time"

// MetaTag is one {key, value} pair scraped from a page's <meta> tags.
type MetaTag struct {
	Key   string `json:"key"`
	Value string `json:"value"`
}

// Page is a row of the pages table.
type Page struct {
	URL           string
	DateAccessed  *time.Time
	PageTitle     *string
	PageContent   *string
	MetaTags      []MetaTag
	ParentURL     *string
	NewURL        bool
	DateAdded     time.Time
}

// Title returns PageTitle if non-empty, else falls back to URL.
func (p Page) Title() string {
	if p.PageTitle != nil && *p.PageTitle != "" {
		return *p.PageTitle
	}
	return p.URL
}

// Description returns the value of the meta tag whose key is "description",
// or "" if none is present.
func (p Page) Description() string {
	for _, tag := range p.MetaTags {
		if tag.Key == "description" {
			return tag.Value
		}
	}
	return ""
}
