package queue

import "encoding/json"

// ScrapeResult is the wire format for a processor_q message: UTF-8 JSON
// with the title/body/meta-tags/links a Scraper worker found.
type ScrapeResult struct {
	URL         string    `json:"url"`
	PageTitle   *string   `json:"page_title"`
	PageContent *string   `json:"page_content"`
	MetaTags    []MetaTag `json:"meta_tags"`
	Links       []string  `json:"links"`
}

// MetaTag mirrors catalogue.MetaTag on the wire; kept distinct so the
// queue package has no dependency on catalogue, only the reverse.
type MetaTag struct {
	Key   string `json:"key"`
	Value string `json:"value"`
}

// RequiredFields lists the JSON keys that must be present (though possibly
// null) on an incoming processor_q message.
var RequiredFields = []string{"url", "page_title", "page_content", "meta_tags", "links"}

// DecodeScrapeResult parses body and checks that every required key in
// RequiredFields is present (key presence, not non-nullness — a null
// title/body is a legitimate page). Returns an error if the body isn't
// valid JSON or a required key is missing.
func DecodeScrapeResult(body []byte) (ScrapeResult, error) {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(body, &raw); err != nil {
		return ScrapeResult{}, err
	}

	for _, field := range RequiredFields {
		if _, ok := raw[field]; !ok {
			return ScrapeResult{}, &MissingFieldError{Field: field}
		}
	}

	var result ScrapeResult
	if err := json.Unmarshal(body, &result); err != nil {
		return ScrapeResult{}, err
	}
	return result, nil
}

// MissingFieldError reports a required processor_q field absent from an
// incoming message.
type MissingFieldError struct {
	Field string
}

func (e *MissingFieldError) Error() string {
	return "missing required field: " + e.Field
}
