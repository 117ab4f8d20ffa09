// Copyright (c) 2025 BVK Chaitanya

// Package coinmarketcap implements a price fetcher over the CoinMarketCap
// latest quotes api.
package coinmarketcap

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"math"
	"net/http"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/bvk/pricebot/quote"
	"github.com/tidwall/gjson"
	"golang.org/x/time/rate"
)

const quotesPath = "/v1/cryptocurrency/quotes/latest"

// maxBodySize limits the response size read from the server.
const maxBodySize = 1 << 20

// HTTPClient describes an HTTP client.
//
//go:generate mockgen -package=coinmarketcap -destination=mock_http_client_test.go -source=client.go HTTPClient
type HTTPClient interface {
	Do(req *http.Request) (*http.Response, error)
}

// Client fetches latest prices of crypto currencies converted into a single
// quote currency.
type Client struct {
	baseURL    string
	httpClient HTTPClient
	header     http.Header
	currency   string
	limiter    *rate.Limiter
}

var _ quote.Fetcher = &Client{}

// New creates a client that authenticates with the given api key and
// converts all prices into the currency.
func New(key, currency string, options ...Option) (*Client, error) {
	currency = strings.ToUpper(strings.TrimSpace(currency))
	if currency == "" {
		return nil, fmt.Errorf("quote currency cannot be empty: %w", os.ErrInvalid)
	}
	c := &Client{
		baseURL:    DefaultBaseURL,
		httpClient: &http.Client{Timeout: 10 * time.Second},
		header:     http.Header{},
		currency:   currency,
		limiter:    rate.NewLimiter(rate.Inf, 1),
	}
	c.header.Set("Accepts", "application/json")
	if key != "" {
		c.header.Set("X-CMC_PRO_API_KEY", key)
	}
	for _, option := range options {
		option(c)
	}
	c.baseURL = strings.TrimSuffix(c.baseURL, "/")
	return c, nil
}

// Currency returns the quote currency of all prices returned by the client.
func (c *Client) Currency() string {
	return c.currency
}

// Fetch returns the latest price of the symbol in the client's quote
// currency. Errors wrap one of quote.ErrSymbolNotFound, quote.ErrRateLimited
// or quote.ErrTransport.
func (c *Client) Fetch(ctx context.Context, symbol string) (float64, error) {
	price, err := c.fetch(ctx, symbol)
	if err != nil {
		slog.Warn("could not fetch the current price", "symbol", symbol, "currency", c.currency, "err", err)
		return 0, err
	}
	slog.Info("the current price", "symbol", symbol, "currency", c.currency, "price", price)
	return price, nil
}

func (c *Client) fetch(ctx context.Context, symbol string) (float64, error) {
	query := url.Values{}
	query.Set("symbol", symbol)
	query.Set("convert", c.currency)

	addr := fmt.Sprintf("%s%s?%s", c.baseURL, quotesPath, query.Encode())
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, addr, http.NoBody)
	if err != nil {
		return 0, fmt.Errorf("creating request: %v: %w", err, quote.ErrTransport)
	}
	req.Header = c.header.Clone()

	if err := c.limiter.Wait(ctx); err != nil {
		return 0, fmt.Errorf("waiting for the rate limiter: %v: %w", err, quote.ErrTransport)
	}

	at := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return 0, fmt.Errorf("performing request: %v: %w", err, quote.ErrTransport)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodySize))
	if err != nil {
		return 0, fmt.Errorf("reading response body: %v: %w", err, quote.ErrTransport)
	}
	slog.Debug("coinmarketcap GET", "symbol", symbol, "status", resp.StatusCode, "latency", time.Since(at))

	if err := checkStatus(resp.StatusCode, body); err != nil {
		return 0, err
	}
	return parsePrice(body, symbol, c.currency)
}

// checkStatus maps http and api status codes to fetch errors.
func checkStatus(code int, body []byte) error {
	status := gjson.GetBytes(body, "status")
	errorCode := status.Get("error_code").Int()
	errorMessage := status.Get("error_message").String()

	switch {
	case code == http.StatusTooManyRequests:
		return fmt.Errorf("http status %d: %s: %w", code, errorMessage, quote.ErrRateLimited)
	case errorCode >= 1008 && errorCode <= 1011:
		return fmt.Errorf("api error %d: %s: %w", errorCode, errorMessage, quote.ErrRateLimited)
	case code == http.StatusBadRequest && strings.Contains(strings.ToLower(errorMessage), "symbol"):
		return fmt.Errorf("api error %d: %s: %w", errorCode, errorMessage, quote.ErrSymbolNotFound)
	case code < 200 || code >= 300:
		return fmt.Errorf("http status %d: %s: %w", code, errorMessage, quote.ErrTransport)
	}
	return nil
}

// parsePrice extracts data.<symbol>.quote.<currency>.price from a quotes
// response. Keys are compared case-insensitively while iterating, so user
// input never becomes part of a gjson path.
func parsePrice(body []byte, symbol, currency string) (float64, error) {
	if !gjson.ValidBytes(body) {
		return 0, fmt.Errorf("response is not valid json: %w", quote.ErrTransport)
	}
	data := gjson.GetBytes(body, "data")
	if !data.Exists() {
		return 0, fmt.Errorf("response has no data field: %w", quote.ErrTransport)
	}
	if !data.IsObject() {
		return 0, fmt.Errorf("no data for %q: %w", symbol, quote.ErrSymbolNotFound)
	}

	entry, ok := lookupKey(data, symbol)
	if !ok {
		return 0, fmt.Errorf("no data for %q: %w", symbol, quote.ErrSymbolNotFound)
	}
	// Newer api versions return a list of coins sharing the symbol.
	if entry.IsArray() {
		items := entry.Array()
		if len(items) == 0 {
			return 0, fmt.Errorf("no data for %q: %w", symbol, quote.ErrSymbolNotFound)
		}
		entry = items[0]
	}

	q, ok := lookupKey(entry.Get("quote"), currency)
	if !ok {
		return 0, fmt.Errorf("no %s quote for %q: %w", currency, symbol, quote.ErrSymbolNotFound)
	}
	price := q.Get("price")
	if price.Type != gjson.Number {
		return 0, fmt.Errorf("price of %q is not a number (%s): %w", symbol, price.Raw, quote.ErrTransport)
	}
	v := price.Float()
	if math.IsNaN(v) || math.IsInf(v, 0) || v < 0 {
		return 0, fmt.Errorf("price of %q is out of range (%v): %w", symbol, v, quote.ErrTransport)
	}
	return v, nil
}

func lookupKey(obj gjson.Result, key string) (gjson.Result, bool) {
	var result gjson.Result
	found := false
	if !obj.IsObject() {
		return result, false
	}
	obj.ForEach(func(k, v gjson.Result) bool {
		if strings.EqualFold(k.String(), key) {
			result, found = v, true
			return false
		}
		return true
	})
	return result, found
}
