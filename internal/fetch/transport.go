package fetch

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	"fortio.org/safecast"
)

const (
	DefaultTimeout   = 15 * time.Second
	DefaultMaxBytes  = 16 << 20
	DefaultUserAgent = "memeful"
)

// Transport retrieves the raw bytes behind a URL.
type Transport interface {
	Fetch(ctx context.Context, url string) ([]byte, error)
}

// TransportFunc adapts a function to Transport.
type TransportFunc func(ctx context.Context, url string) ([]byte, error)

func (f TransportFunc) Fetch(ctx context.Context, url string) ([]byte, error) {
	return f(ctx, url)
}

// HTTPTransport fetches over net/http with a size cap.
type HTTPTransport struct {
	Client    *http.Client
	MaxBytes  int64
	UserAgent string
}

// NewHTTPTransport builds a transport; zero values fall back to defaults.
func NewHTTPTransport(timeout time.Duration, maxBytes int64, userAgent string) *HTTPTransport {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	if maxBytes <= 0 {
		maxBytes = DefaultMaxBytes
	}
	if userAgent == "" {
		userAgent = DefaultUserAgent
	}
	return &HTTPTransport{
		Client:    &http.Client{Timeout: timeout},
		MaxBytes:  maxBytes,
		UserAgent: userAgent,
	}
}

func (t *HTTPTransport) Fetch(ctx context.Context, url string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, http.NoBody)
	if err != nil {
		return nil, err
	}
	if t.UserAgent != "" {
		req.Header.Set("User-Agent", t.UserAgent)
	}
	client := t.Client
	if client == nil {
		client = http.DefaultClient
	}
	resp, err := client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, &StatusError{Code: resp.StatusCode, Status: resp.Status}
	}

	limit := t.MaxBytes
	if limit <= 0 {
		limit = DefaultMaxBytes
	}
	if resp.ContentLength > limit {
		return nil, fmt.Errorf("%w: %d bytes", ErrTooLarge, resp.ContentLength)
	}
	data, err := io.ReadAll(io.LimitReader(resp.Body, limit+1))
	if err != nil {
		return nil, err
	}
	n, err := safecast.Conv[int64](len(data))
	if err != nil {
		return nil, err
	}
	if n > limit {
		return nil, fmt.Errorf("%w: more than %d bytes", ErrTooLarge, limit)
	}
	return data, nil
}
