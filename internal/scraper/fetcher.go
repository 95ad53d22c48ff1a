package scraper

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"
)

const (
	maxBodyBytes = 10 * 1024 * 1024
	fetchTimeout = 60 * time.Second
	maxRedirects = 5
	userAgent    = "tenebra-scraper/1"
	acceptHeader = "text/html,application/xhtml+xml"
)

// Fetcher retrieves page bodies through a single Tor HTTP proxy, the only
// egress path .onion hosts are reachable through.
type Fetcher struct {
	client *http.Client
}

// NewFetcher builds a Fetcher that routes every request through proxyAddr
// (a host:port HTTP proxy, normally Tor's local listener).
func NewFetcher(proxyAddr string) (*Fetcher, error) {
	proxyURL, err := url.Parse("http://" + proxyAddr)
	if err != nil {
		return nil, fmt.Errorf("parsing proxy address %q: %w", proxyAddr, err)
	}

	transport := &http.Transport{
		Proxy:                 http.ProxyURL(proxyURL),
		TLSHandshakeTimeout:   15 * time.Second,
		ResponseHeaderTimeout: 30 * time.Second,
	}

	checkRedirect := func(_ *http.Request, via []*http.Request) error {
		if len(via) >= maxRedirects {
			return fmt.Errorf("stopped after %d redirects", maxRedirects)
		}
		return nil
	}

	return &Fetcher{client: &http.Client{Transport: transport, Timeout: fetchTimeout, CheckRedirect: checkRedirect}}, nil
}

// Fetch retrieves rawURL's body, bounded to maxBodyBytes.
func (f *Fetcher) Fetch(ctx context.Context, rawURL string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, &ExtractError{Kind: "InvalidURL", Err: err}
	}
	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("Accept", acceptHeader)

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, &ExtractError{Kind: "ScrapingFailed", Err: err}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return nil, &ExtractError{Kind: "ScrapingFailed", Err: fmt.Errorf("reading body: %w", err)}
	}

	return body, nil
}
