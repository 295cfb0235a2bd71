package pulse

import (
	"net/http"
	"time"

	"golang.org/x/time/rate"
)

const (
	// DefaultURL is the provider's public API.
	DefaultURL = "https://api.runpulse.com"

	// DefaultMaxRetries is how many extra attempts a failed poll gets.
	DefaultMaxRetries = 2

	// DefaultRetryDelay is the fixed pause between poll attempts.
	DefaultRetryDelay = 3 * time.Second

	// DefaultTimeout bounds a single submit request.
	DefaultTimeout = 120 * time.Second
)

type Option func(*Client)

func WithClient(client *http.Client) Option {
	return func(c *Client) {
		c.client = client
	}
}

func WithToken(token string) Option {
	return func(c *Client) {
		c.token = token
	}
}

// WithLimiter throttles every upstream request through l.
func WithLimiter(l *rate.Limiter) Option {
	return func(c *Client) {
		c.limiter = l
	}
}

// WithRetry sets the poll retry policy. Negative values are ignored.
func WithRetry(maxRetries int, delay time.Duration) Option {
	return func(c *Client) {
		if maxRetries >= 0 {
			c.maxRetries = maxRetries
		}
		if delay >= 0 {
			c.retryDelay = delay
		}
	}
}

// WithTimeout bounds each submit request. Zero disables the bound.
func WithTimeout(timeout time.Duration) Option {
	return func(c *Client) {
		c.timeout = timeout
	}
}

// DefaultSchema builds the provider schema declaration for fields, all typed
// as strings.
func DefaultSchema(fields []string) map[string]string {
	if len(fields) == 0 {
		return nil
	}
	schema := make(map[string]string, len(fields))
	for _, field := range fields {
		schema[field] = "string"
	}
	return schema
}
