package scraper

import (
	"fmt"
	"net/url"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/PuerkitoBio/purell"

	"github.com/elodkocsis/tenebra/internal/catalogue"
)

const normalizationFlags = purell.FlagLowercaseScheme |
	purell.FlagLowercaseHost |
	purell.FlagUppercaseEscapes |
	purell.FlagRemoveDefaultPort |
	purell.FlagRemoveTrailingSlash |
	purell.FlagRemoveDotSegments |
	purell.FlagRemoveDuplicateSlashes |
	purell.FlagRemoveFragment |
	purell.FlagSortQuery

// Result is what the extractor hands back on a successful parse: the
// page's title, text content, meta tags, and the outbound .onion links it
// found.
type Result struct {
	PageTitle   *string
	PageContent *string
	MetaTags    []catalogue.MetaTag
	Links       []string
}

// ExtractError distinguishes a malformed base URL from a parse/extraction
// fault, both of which the worker treats as an ACK-drop.
type ExtractError struct {
	Kind string // "InvalidURL" or "ScrapingFailed"
	Err  error
}

func (e *ExtractError) Error() string { return fmt.Sprintf("%s: %v", e.Kind, e.Err) }
func (e *ExtractError) Unwrap() error { return e.Err }

// Extract parses body (HTML bytes fetched from pageURL) and produces a
// Result: page title, visible text, meta tags, and normalized outbound
// .onion links.
func Extract(pageURL string, body []byte) (Result, error) {
	base, err := url.Parse(pageURL)
	if err != nil {
		return Result{}, &ExtractError{Kind: "InvalidURL", Err: err}
	}

	doc, err := goquery.NewDocumentFromReader(strings.NewReader(string(body)))
	if err != nil {
		return Result{}, &ExtractError{Kind: "ScrapingFailed", Err: err}
	}

	return Result{
		PageTitle:   extractTitle(doc),
		PageContent: extractContent(doc),
		MetaTags:    extractMetaTags(doc),
		Links:       extractOnionLinks(doc, base),
	}, nil
}

func extractTitle(doc *goquery.Document) *string {
	title := strings.TrimSpace(doc.Find("title").First().Text())
	if title == "" {
		return nil
	}
	return &title
}

func extractContent(doc *goquery.Document) *string {
	doc.Find("script, style, noscript, iframe").Remove()

	var sb strings.Builder
	doc.Find("body").Each(func(_ int, s *goquery.Selection) {
		sb.WriteString(strings.TrimSpace(s.Text()))
	})

	content := sb.String()
	if content == "" {
		return nil
	}
	return &content
}

func extractMetaTags(doc *goquery.Document) []catalogue.MetaTag {
	var tags []catalogue.MetaTag
	doc.Find("meta").Each(func(_ int, s *goquery.Selection) {
		name, hasName := s.Attr("name")
		content, hasContent := s.Attr("content")
		if !hasName || !hasContent {
			return
		}
		tags = append(tags, catalogue.MetaTag{Key: name, Value: content})
	})
	return tags
}

// extractOnionLinks resolves every anchor href against base, normalizes it,
// and keeps only absolute .onion URLs, per the fixed onion-only invariant.
func extractOnionLinks(doc *goquery.Document, base *url.URL) []string {
	seen := make(map[string]struct{})
	var links []string

	doc.Find("a[href]").Each(func(_ int, s *goquery.Selection) {
		href, exists := s.Attr("href")
		if !exists || href == "" {
			return
		}

		href = strings.TrimSpace(href)
		if href == "" || strings.HasPrefix(href, "#") ||
			strings.HasPrefix(href, "javascript:") || strings.HasPrefix(href, "mailto:") {
			return
		}

		parsed, err := url.Parse(href)
		if err != nil {
			return
		}

		resolved := base.ResolveReference(parsed)
		if resolved.Scheme != "http" && resolved.Scheme != "https" {
			return
		}
		if !strings.HasSuffix(strings.ToLower(resolved.Hostname()), ".onion") {
			return
		}

		normalized := purell.NormalizeURL(resolved, normalizationFlags)
		if _, dup := seen[normalized]; dup {
			return
		}
		seen[normalized] = struct{}{}
		links = append(links, normalized)
	})

	return links
}
