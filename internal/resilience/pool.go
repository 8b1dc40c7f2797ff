package resilience

import (
	"bytes"
	"context"
	"log/slog"
	"net/http"
	"time"
)

// HTTPPool is a shared HTTP client with pooled connections and retry,
// used by every external collaborator adapter.
type HTTPPool struct {
	client *http.Client
	retry  RetryConfig
}

// NewHTTPPool creates a pooled HTTP client
func NewHTTPPool(maxIdle, maxPerHost int, idleTimeout time.Duration) *HTTPPool {
	transport := &http.Transport{
		MaxIdleConns:          maxIdle,
		MaxConnsPerHost:       maxPerHost,
		MaxIdleConnsPerHost:   maxIdle / 2,
		IdleConnTimeout:       idleTimeout,
		TLSHandshakeTimeout:   10 * time.Second,
		ResponseHeaderTimeout: 30 * time.Second,
		ExpectContinueTimeout: 1 * time.Second,
	}

	return &HTTPPool{
		client: &http.Client{
			Transport: transport,
			Timeout:   30 * time.Second,
		},
		retry: DefaultRetryConfig(),
	}
}

// DoRequest executes an HTTP request with retry. A nil body sends an
// empty request; the body is re-materialized per attempt.
func (p *HTTPPool) DoRequest(ctx context.Context, method, url string, headers map[string]string, body []byte) (*http.Response, error) {
	return RetryHTTP(ctx, p.retry, func() (*http.Response, error) {
		var req *http.Request
		var err error

		if body != nil {
			req, err = http.NewRequestWithContext(ctx, method, url, bytes.NewReader(body))
		} else {
			req, err = http.NewRequestWithContext(ctx, method, url, nil)
		}
		if err != nil {
			return nil, err
		}

		for key, value := range headers {
			req.Header.Set(key, value)
		}

		start := time.Now()
		resp, err := p.client.Do(req)
		duration := time.Since(start)

		if err != nil {
			slog.Warn("Request failed", "url", url, "error", err, "duration_ms", duration.Milliseconds())
			return nil, err
		}

		slog.Debug("Request completed", "url", url, "status", resp.StatusCode, "duration_ms", duration.Milliseconds())
		return resp, nil
	})
}

// Close releases idle connections
func (p *HTTPPool) Close() error {
	if transport, ok := p.client.Transport.(*http.Transport); ok {
		transport.CloseIdleConnections()
	}
	return nil
}
