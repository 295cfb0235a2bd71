// Package classify identifies the type of a document through a Nyckel
// classification function.
package classify

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/rs/zerolog"
	"golang.org/x/time/rate"

	"docdash/internal/logger"
)

const (
	DefaultURL      = "https://www.nyckel.com"
	DefaultFunction = "document-types-identifier"
)

var (
	ErrMissingURL    = errors.New("URL is required")
	ErrMissingAPIKey = errors.New("NYCKEL_API_KEY is not configured")
)

// Result is the label Nyckel assigned to a document.
type Result struct {
	DocumentType string  `json:"documentType"`
	Confidence   float64 `json:"confidence"`
}

// APIError is a non-2xx answer from Nyckel.
type APIError struct {
	StatusCode int
	Status     string
	Details    string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("Nyckel API error: %s. Details: %s", e.Status, e.Details)
}

type Client struct {
	client  *http.Client
	limiter *rate.Limiter
	log     zerolog.Logger

	url      string
	token    string
	function string
}

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

func WithURL(url string) Option {
	return func(c *Client) {
		c.url = strings.TrimRight(url, "/")
	}
}

func WithLimiter(l *rate.Limiter) Option {
	return func(c *Client) {
		c.limiter = l
	}
}

func New(function string, options ...Option) *Client {
	if function == "" {
		function = DefaultFunction
	}

	c := &Client{
		client: http.DefaultClient,
		log:    logger.WithComponent("classify"),

		url:      DefaultURL,
		function: function,
	}

	for _, option := range options {
		option(c)
	}

	return c
}

type invokeRequest struct {
	Data        string `json:"data"`
	ContentType string `json:"contentType"`
}

type invokeResponse struct {
	LabelName  string  `json:"labelName"`
	Confidence float64 `json:"confidence"`
}

// Classify sends the document at fileURL to the classification function.
func (c *Client) Classify(ctx context.Context, fileURL string) (*Result, error) {
	if strings.TrimSpace(fileURL) == "" {
		return nil, ErrMissingURL
	}
	if c.token == "" {
		return nil, ErrMissingAPIKey
	}

	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return nil, err
		}
	}

	data, _ := json.Marshal(invokeRequest{
		Data:        encodeURI(fileURL),
		ContentType: "URL",
	})

	endpoint := c.url + "/v1/functions/" + c.function + "/invoke"

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(data))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.token)

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		details, _ := io.ReadAll(resp.Body)
		return nil, &APIError{
			StatusCode: resp.StatusCode,
			Status:     http.StatusText(resp.StatusCode),
			Details:    string(details),
		}
	}

	var result invokeResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, fmt.Errorf("decode classification response: %w", err)
	}

	c.log.Debug().
		Str("label", result.LabelName).
		Float64("confidence", result.Confidence).
		Msg("Document classified")

	return &Result{
		DocumentType: result.LabelName,
		Confidence:   result.Confidence,
	}, nil
}

// encodeURI percent-encodes s the way a browser encodes a full URI: reserved
// delimiters stay intact, everything else outside the unreserved set is escaped.
func encodeURI(s string) string {
	const keep = ";,/?:@&=+$#-_.!~*'()"

	var b strings.Builder
	for i := 0; i < len(s); i++ {
		ch := s[i]
		switch {
		case 'a' <= ch && ch <= 'z', 'A' <= ch && ch <= 'Z', '0' <= ch && ch <= '9':
			b.WriteByte(ch)
		case strings.IndexByte(keep, ch) >= 0:
			b.WriteByte(ch)
		default:
			fmt.Fprintf(&b, "%%%02X", ch)
		}
	}
	return b.String()
}
