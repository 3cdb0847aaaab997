package fetch

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	"serpgrab/pkg/errors"
	"serpgrab/pkg/logger"
)

// DefaultUserAgent matches a desktop Chrome so image CDNs serve full assets
const DefaultUserAgent = "Mozilla/5.0 (X11; Linux x86_64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/122.0.0.0 Safari/537.36"

// Opener opens a remote resource for streaming
type Opener interface {
	Open(ctx context.Context, url string) (io.ReadCloser, error)
}

// Client fetches remote image references
type Client struct {
	httpClient *http.Client
	headers    map[string]string
	logger     logger.Logger
}

// NewClient creates a new fetch client
func NewClient(timeout time.Duration, userAgent string, log logger.Logger) *Client {
	if log == nil {
		log = logger.GetLogger()
	}
	if userAgent == "" {
		userAgent = DefaultUserAgent
	}

	return &Client{
		httpClient: &http.Client{
			Timeout: timeout,
		},
		headers: map[string]string{
			"User-Agent":      userAgent,
			"Accept":          "image/avif,image/webp,image/apng,image/*,*/*;q=0.8",
			"Accept-Language": "en-US,en;q=0.9",
			"Sec-Fetch-Dest":  "image",
			"Sec-Fetch-Mode":  "no-cors",
		},
		logger: log,
	}
}

// Open issues a GET for url and returns the body when the status is 200.
// Any other status, or a network failure, is a transport error. The caller
// closes the returned body.
func (c *Client) Open(ctx context.Context, url string) (io.ReadCloser, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, errors.Transport(0, err, "failed to create request")
	}
	for key, value := range c.headers {
		req.Header.Set(key, value)
	}

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	duration := time.Since(start)

	if err != nil {
		c.logger.DebugWithFields("HTTP request failed", map[string]interface{}{
			"url":      url,
			"error":    err.Error(),
			"duration": duration,
		})
		return nil, errors.Transport(0, err, "network error")
	}

	c.logger.DebugWithFields("HTTP request completed", map[string]interface{}{
		"url":      url,
		"status":   resp.StatusCode,
		"duration": duration,
	})

	if resp.StatusCode != http.StatusOK {
		// Drain a little so the connection can be reused
		io.CopyN(io.Discard, resp.Body, 4096)
		resp.Body.Close()
		return nil, errors.Transport(resp.StatusCode, nil, fmt.Sprintf("unexpected status code: %d", resp.StatusCode))
	}

	return resp.Body, nil
}
