// Package nse implements the option-chain fetcher against the NSE
// public API.
package nse

import (
	"context"
	"crypto/tls"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"nseoptions/internal/chain"
	apperrors "nseoptions/internal/errors"
	"nseoptions/internal/logging"
)

// DefaultHeaders mimic a desktop browser. NSE rejects requests that
// look like scripts.
var DefaultHeaders = map[string]string{
	"accept-language": "en-US,en;q=0.9,en-IN;q=0.8",
	"user-agent":      "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/111.0.0.0 Safari/537.36",
}

// Default URL pieces. The stock path serves equity derivatives, the
// index path the index chains.
const (
	DefaultBaseURL = "https://www.nseindia.com"
	IndexPath      = "/api/option-chain-indices"
	StockPath      = "/api/option-chain-equities"
	primePath      = "/option-chain"
)

// Config holds the fetcher configuration.
type Config struct {
	BaseURL  string
	Path     string            // API path, e.g. IndexPath
	URI      string            // full URL override; "{symbol}" is substituted
	Headers  map[string]string // merged over DefaultHeaders
	Timeout  time.Duration     // per-request connect/read timeout
	Insecure bool              // skip TLS certificate verification
}

// Client fetches option-chain payloads. It primes the NSE session
// cookie with a plain page GET before the first API call, the same
// dance a browser performs.
type Client struct {
	http    *http.Client
	cfg     Config
	headers map[string]string
	logger  zerolog.Logger

	mu     sync.Mutex
	primed bool
}

// NewClient creates a new NSE API client.
func NewClient(cfg Config, logger zerolog.Logger) (*Client, error) {
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	if cfg.Path == "" {
		cfg.Path = IndexPath
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 10 * time.Second
	}

	jar, err := cookiejar.New(nil)
	if err != nil {
		return nil, apperrors.Wrap(err, "creating cookie jar")
	}

	transport, ok := http.DefaultTransport.(*http.Transport)
	if !ok {
		transport = &http.Transport{}
	} else {
		transport = transport.Clone()
	}
	if cfg.Insecure {
		transport.TLSClientConfig = &tls.Config{InsecureSkipVerify: true}
	}

	headers := make(map[string]string, len(DefaultHeaders)+len(cfg.Headers))
	for k, v := range DefaultHeaders {
		headers[k] = v
	}
	for k, v := range cfg.Headers {
		headers[strings.ToLower(k)] = v
	}

	return &Client{
		http: &http.Client{
			Jar:       jar,
			Timeout:   cfg.Timeout,
			Transport: transport,
		},
		cfg:     cfg,
		headers: headers,
		logger:  logger,
	}, nil
}

// OptionChain fetches and decodes the option-chain payload for a
// symbol. Failures are typed: transport and non-2xx problems surface
// as NetworkError, undecodable or shapeless bodies as ParseError.
func (c *Client) OptionChain(ctx context.Context, symbol string) (*chain.Payload, error) {
	if err := c.prime(ctx); err != nil {
		return nil, err
	}

	reqURL := c.requestURL(symbol)
	start := time.Now()
	body, status, err := c.get(ctx, reqURL)
	logging.LogFetch(c.logger, symbol, reqURL, status, time.Since(start), err)
	if err != nil {
		if status == http.StatusUnauthorized || status == http.StatusForbidden {
			// Session cookie went stale; reprime on the next attempt.
			c.mu.Lock()
			c.primed = false
			c.mu.Unlock()
		}
		return nil, err
	}

	var payload chain.Payload
	if err := json.Unmarshal(body, &payload); err != nil {
		return nil, apperrors.NewParseError(reqURL, err)
	}
	if payload.Records.Data == nil {
		return nil, apperrors.NewParseError(reqURL, apperrors.ErrNoData)
	}
	return &payload, nil
}

// ExpiryDates returns the expiry dates NSE lists for a symbol, in the
// server's order (nearest first).
func (c *Client) ExpiryDates(ctx context.Context, symbol string) ([]string, error) {
	payload, err := c.OptionChain(ctx, symbol)
	if err != nil {
		return nil, err
	}
	return payload.Records.ExpiryDates, nil
}

// prime performs the cookie-establishing page GET once per session.
func (c *Client) prime(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.primed {
		return nil
	}

	primeURL := c.cfg.BaseURL + primePath
	if _, _, err := c.get(ctx, primeURL); err != nil {
		return err
	}
	c.primed = true
	return nil
}

func (c *Client) get(ctx context.Context, reqURL string) ([]byte, int, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return nil, 0, apperrors.NewNetworkError(reqURL, 0, err)
	}
	for k, v := range c.headers {
		// The transport negotiates compression itself; a manual
		// Accept-Encoding would disable transparent gunzip.
		if strings.EqualFold(k, "accept-encoding") {
			continue
		}
		req.Header.Set(k, v)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, 0, apperrors.NewNetworkError(reqURL, 0, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, resp.StatusCode, apperrors.NewNetworkError(reqURL, resp.StatusCode, err)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, resp.StatusCode, apperrors.NewNetworkError(reqURL, resp.StatusCode, nil)
	}
	return body, resp.StatusCode, nil
}

// requestURL builds the API URL for a symbol. A configured URI
// overrides the base+path construction entirely.
func (c *Client) requestURL(symbol string) string {
	if c.cfg.URI != "" {
		return strings.ReplaceAll(c.cfg.URI, "{symbol}", url.QueryEscape(symbol))
	}
	return fmt.Sprintf("%s%s?symbol=%s", c.cfg.BaseURL, c.cfg.Path, url.QueryEscape(symbol))
}
