package connection

import (
	"context"
	"crypto/tls"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/yndnr/meshkv/internal/server/httpserver/handler"
)

// DefaultHTTPAddr is the default HTTP listener address.
const DefaultHTTPAddr = "127.0.0.1:8080"

// HTTPClient talks to the server's REST API.
type HTTPClient struct {
	baseURL string
	client  *http.Client
}

// HTTPOption configures an HTTPClient.
type HTTPOption func(*httpOptions)

type httpOptions struct {
	tls *tls.Config
}

// WithTLS uses cfg for HTTPS and makes https:// the default scheme.
func WithTLS(cfg *tls.Config) HTTPOption {
	return func(o *httpOptions) {
		o.tls = cfg
	}
}

// NewHTTPClient creates a new HTTP client. A bare host:port gets http://,
// or https:// with WithTLS.
func NewHTTPClient(server string, opts ...HTTPOption) *HTTPClient {
	var o httpOptions
	for _, opt := range opts {
		opt(&o)
	}

	baseURL := strings.TrimRight(server, "/")
	if !strings.HasPrefix(baseURL, "http://") && !strings.HasPrefix(baseURL, "https://") {
		scheme := "http://"
		if o.tls != nil {
			scheme = "https://"
		}
		baseURL = scheme + baseURL
	}

	client := &http.Client{Timeout: 30 * time.Second}
	if o.tls != nil {
		transport := http.DefaultTransport.(*http.Transport).Clone()
		transport.TLSClientConfig = o.tls
		client.Transport = transport
	}
	return &HTTPClient{baseURL: baseURL, client: client}
}

// BaseURL returns the base URL of the client.
func (c *HTTPClient) BaseURL() string {
	return c.baseURL
}

// Get performs a GET request.
func (c *HTTPClient) Get(ctx context.Context, path string) (*http.Response, error) {
	return c.do(ctx, http.MethodGet, path, "", nil)
}

// Post performs a POST request with a raw body.
func (c *HTTPClient) Post(ctx context.Context, path, contentType string, body io.Reader) (*http.Response, error) {
	return c.do(ctx, http.MethodPost, path, contentType, body)
}

func (c *HTTPClient) do(ctx context.Context, method, path, contentType string, body io.Reader) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	req.Header.Set("User-Agent", "meshkv-cli")
	return c.client.Do(req)
}

// Info fetches GET /v1/info.
func (c *HTTPClient) Info(ctx context.Context) (*handler.InfoResponse, error) {
	resp, err := c.Get(ctx, "/v1/info")
	if err != nil {
		return nil, err
	}
	var info handler.InfoResponse
	if err := ParseResponse(resp, &info); err != nil {
		return nil, err
	}
	return &info, nil
}

// Publish sends message to channel and returns the receiver count.
func (c *HTTPClient) Publish(ctx context.Context, channel, message string) (*handler.PublishResponse, error) {
	path := "/v1/pubsub/publish/" + url.PathEscape(channel)
	resp, err := c.Post(ctx, path, "text/plain", strings.NewReader(message))
	if err != nil {
		return nil, err
	}
	var out handler.PublishResponse
	if err := ParseResponse(resp, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// ParseResponse decodes the API envelope and unmarshals its data into
// target. Non-OK envelopes become "[CODE] message" errors.
func ParseResponse(resp *http.Response, target any) error {
	defer resp.Body.Close()

	var env struct {
		Code    string          `json:"code"`
		Message string          `json:"message"`
		Data    json.RawMessage `json:"data"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&env); err != nil {
		if resp.StatusCode >= 400 {
			return fmt.Errorf("request failed with status %d", resp.StatusCode)
		}
		return fmt.Errorf("parse response: %w", err)
	}
	if resp.StatusCode >= 400 || env.Code != "OK" {
		return fmt.Errorf("[%s] %s", env.Code, env.Message)
	}
	if target != nil && len(env.Data) > 0 {
		if err := json.Unmarshal(env.Data, target); err != nil {
			return fmt.Errorf("parse response data: %w", err)
		}
	}
	return nil
}
