package services

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

// Relayer delivers a raw update body to a command endpoint.
type Relayer interface {
	Relay(ctx context.Context, endpoint string, body []byte) error
}

// HTTPRelay POSTs update bodies as JSON with a bounded timeout. No retries
// are attempted; a failed delivery is reported to the caller only.
type HTTPRelay struct {
	Client  *http.Client
	Timeout time.Duration
}

// NewHTTPRelay builds an HTTPRelay whose requests give up after timeout.
func NewHTTPRelay(timeout time.Duration) *HTTPRelay {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &HTTPRelay{
		Client:  &http.Client{Timeout: timeout, Transport: otelhttp.NewTransport(http.DefaultTransport)},
		Timeout: timeout,
	}
}

// Relay implements Relayer. Any non-2xx status is an error.
func (r *HTTPRelay) Relay(ctx context.Context, endpoint string, body []byte) error {
	client := r.Client
	if client == nil {
		client = http.DefaultClient
	}
	if r.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, r.Timeout)
		defer cancel()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 64<<10))

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return fmt.Errorf("POST %s: unexpected status %d", endpoint, resp.StatusCode)
	}
	return nil
}
