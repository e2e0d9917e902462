package bureau

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"time"
)

const (
	// DialTimeout is the connection timeout.
	DialTimeout = 10 * time.Second
	// TLSHandshakeTimeout is the TLS negotiation timeout.
	TLSHandshakeTimeout = 10 * time.Second
	// ResponseHeaderTimeout is time to wait for response headers.
	ResponseHeaderTimeout = 15 * time.Second

	// maxResponseBytes caps how much of a report body we read.
	maxResponseBytes = 4 << 20 // 4 MB
)

// NewHTTPTransport creates an http.Client tuned for bureau API calls.
// The overall per-fetch timeout comes from the caller's context, not the
// client, so the aggregator stays in control of deadlines.
func NewHTTPTransport() *http.Client {
	return &http.Client{
		Transport: &http.Transport{
			DialContext: (&net.Dialer{
				Timeout:   DialTimeout,
				KeepAlive: 30 * time.Second,
			}).DialContext,
			TLSHandshakeTimeout:   TLSHandshakeTimeout,
			ResponseHeaderTimeout: ResponseHeaderTimeout,
			MaxIdleConns:          100,
			MaxIdleConnsPerHost:   10,
			IdleConnTimeout:       90 * time.Second,
		},
		// Don't follow redirects - security measure
		CheckRedirect: func(req *http.Request, via []*http.Request) error {
			return http.ErrUseLastResponse
		},
	}
}

// HTTPClient is a Client for sources exposing a JSON-over-HTTP report API
// (TransUnion, XDS, ClearScore and similar all follow this shape). One
// configured instance per source; endpoint and API key are configuration
// inputs resolved at startup.
type HTTPClient struct {
	source   string
	endpoint string
	apiKey   string
	client   *http.Client
}

// NewHTTPClient creates a client for one configured source.
// httpClient may be shared between sources; nil uses NewHTTPTransport().
func NewHTTPClient(source, endpoint, apiKey string, httpClient *http.Client) *HTTPClient {
	if httpClient == nil {
		httpClient = NewHTTPTransport()
	}
	return &HTTPClient{
		source:   source,
		endpoint: endpoint,
		apiKey:   apiKey,
		client:   httpClient,
	}
}

// Source returns the configured source name.
func (c *HTTPClient) Source() string {
	return c.source
}

// fetchRequest is the wire request common to the supported report APIs.
type fetchRequest struct {
	IDNumber string `json:"id_number"`
	UserRef  string `json:"user_ref"`
}

// fetchResponse is the wire envelope; Report is kept raw and opaque.
type fetchResponse struct {
	Status string          `json:"status"`
	Report json.RawMessage `json:"report"`
}

// FetchReport implements Client.
func (c *HTTPClient) FetchReport(ctx context.Context, userRef, idNumber string) ([]byte, error) {
	body, err := json.Marshal(fetchRequest{IDNumber: idNumber, UserRef: userRef})
	if err != nil {
		return nil, fmt.Errorf("encode request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	req.Header.Set("User-Agent", "Credport/1.0")

	resp, err := c.client.Do(req)
	if err != nil {
		if ctxErr(ctx, err) {
			return nil, ErrTimeout
		}
		return nil, fmt.Errorf("%w: %v", ErrMalformedResponse, err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		drain(resp.Body)
		return nil, ErrAuthFailure
	case resp.StatusCode == http.StatusTooManyRequests:
		drain(resp.Body)
		return nil, ErrRateLimited
	case resp.StatusCode < 200 || resp.StatusCode >= 300:
		drain(resp.Body)
		return nil, fmt.Errorf("%w: HTTP %d", ErrMalformedResponse, resp.StatusCode)
	}

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		if ctxErr(ctx, err) {
			return nil, ErrTimeout
		}
		return nil, fmt.Errorf("%w: %v", ErrMalformedResponse, err)
	}

	var envelope fetchResponse
	if err := json.Unmarshal(raw, &envelope); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedResponse, err)
	}
	if envelope.Status != "success" || len(envelope.Report) == 0 {
		return nil, fmt.Errorf("%w: status %q", ErrMalformedResponse, envelope.Status)
	}

	return envelope.Report, nil
}

// ctxErr reports whether err is due to the caller's deadline or cancellation.
func ctxErr(ctx context.Context, err error) bool {
	return ctx.Err() != nil ||
		errors.Is(err, context.DeadlineExceeded) ||
		errors.Is(err, context.Canceled)
}

// drain discards a capped amount of body to allow connection reuse.
func drain(body io.Reader) {
	io.Copy(io.Discard, io.LimitReader(body, 1024))
}
