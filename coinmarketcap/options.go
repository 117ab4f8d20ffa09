// Copyright (c) 2025 BVK Chaitanya

package coinmarketcap

import (
	"net/http"
	"time"

	"golang.org/x/time/rate"
)

// DefaultBaseURL is the production endpoint of the CoinMarketCap pro api.
const DefaultBaseURL = "https://pro-api.coinmarketcap.com"

// Option configures a Client.
type Option func(*Client)

// WithBaseURL overrides the api endpoint. Mostly useful for tests.
func WithBaseURL(baseURL string) Option {
	return func(c *Client) {
		c.baseURL = baseURL
	}
}

// WithHTTPClient sets the HTTP client used for all requests.
func WithHTTPClient(httpClient HTTPClient) Option {
	return func(c *Client) {
		c.httpClient = httpClient
	}
}

// WithHeader adds extra headers to every request.
func WithHeader(header http.Header) Option {
	return func(c *Client) {
		for key, values := range header {
			for _, value := range values {
				c.header.Add(key, value)
			}
		}
	}
}

// WithRateLimit spaces outgoing requests so that at most perMinute requests
// are issued per minute. Zero or negative disables the limiter.
func WithRateLimit(perMinute int) Option {
	return func(c *Client) {
		if perMinute <= 0 {
			c.limiter = rate.NewLimiter(rate.Inf, 1)
			return
		}
		c.limiter = rate.NewLimiter(rate.Every(time.Minute/time.Duration(perMinute)), 1)
	}
}
