package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/http/cookiejar"
	"strings"
	"time"

	"github.com/poku-e/ecopack/internal/logger"
)

const moduleName = "API"

// maxBodyBytes caps how much of a response body is buffered for decoding.
const maxBodyBytes = 32 << 20

// Client issues requests against one upstream base URL. Every request shares
// the client's cookie jar so the upstream session survives between calls.
type Client struct {
	baseURL string
	http    *http.Client
	log     logger.Logger
}

type Option func(*Client)

// WithHTTPClient uses a copy of hc for every request. hc itself is left
// untouched; a copy without a Jar gets the client's own jar, so clients built
// from the same hc keep separate upstream sessions.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		cp := *hc
		if cp.Jar == nil {
			cp.Jar = c.http.Jar
		}
		c.http = &cp
	}
}

func WithLogger(l logger.Logger) Option {
	return func(c *Client) { c.log = l }
}

// New builds a client for baseURL. There is no overall request timeout and
// no retry: callers own perceived latency.
func New(baseURL string, opts ...Option) (*Client, error) {
	jar, err := cookiejar.New(nil)
	if err != nil {
		return nil, fmt.Errorf("cookie jar: %w", err)
	}
	c := &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    &http.Client{Transport: newTransport(), Jar: jar},
		log:     logger.NewNop(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

func newTransport() *http.Transport {
	return &http.Transport{
		Proxy:               http.ProxyFromEnvironment,
		MaxIdleConns:        100,
		MaxIdleConnsPerHost: 10,
		IdleConnTimeout:     90 * time.Second,
		DialContext: (&net.Dialer{
			Timeout:   10 * time.Second,
			KeepAlive: 60 * time.Second,
		}).DialContext,
		TLSHandshakeTimeout: 10 * time.Second,
	}
}

// BaseURL is the resolved upstream origin, without a trailing slash.
func (c *Client) BaseURL() string { return c.baseURL }

// URL joins path onto the base URL.
func (c *Client) URL(path string) string {
	if !strings.HasPrefix(path, "/") {
		path = "/" + path
	}
	return c.baseURL + path
}

func (c *Client) Get(ctx context.Context, path string) (*http.Response, error) {
	return c.Do(ctx, http.MethodGet, path, nil, nil)
}

// Post sends body as JSON. A nil body sends an empty request body.
func (c *Client) Post(ctx context.Context, path string, body any) (*http.Response, error) {
	var r io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("encode %s body: %w", path, err)
		}
		r = bytes.NewReader(b)
	}
	return c.Do(ctx, http.MethodPost, path, r, nil)
}

// Do issues one request. headers override the defaults, including the JSON
// content type. A transport failure is returned as *TransportError.
func (c *Client) Do(ctx context.Context, method, path string, body io.Reader, headers map[string]string) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, method, c.URL(path), body)
	if err != nil {
		return nil, fmt.Errorf("build request %s %s: %w", method, path, err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json, */*;q=0.8")
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		c.log.Error(moduleName, "API request failed", map[string]interface{}{
			"method": method,
			"path":   path,
			"error":  err.Error(),
		})
		return nil, &TransportError{Method: method, Path: path, Err: err}
	}
	c.log.Debug(moduleName, "API response", map[string]interface{}{
		"method": method,
		"path":   path,
		"status": resp.StatusCode,
	})
	return resp, nil
}

// ReadBody drains and closes the response body.
func ReadBody(resp *http.Response) ([]byte, error) {
	defer resp.Body.Close()
	b, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return nil, fmt.Errorf("read body: %w", err)
	}
	return b, nil
}

// DecodeJSON reads resp, checks it against the named schema and decodes it
// into out. A schema mismatch is only logged; the upstream contract is loose
// and the typed decode applies the documented defaults.
func (c *Client) DecodeJSON(resp *http.Response, schema SchemaName, out any) error {
	b, err := ReadBody(resp)
	if err != nil {
		return err
	}
	return c.DecodeBytes(b, schema, out)
}

// DecodeBytes is DecodeJSON for an already buffered body.
func (c *Client) DecodeBytes(b []byte, schema SchemaName, out any) error {
	if err := Validate(schema, b); err != nil {
		c.log.Warn(moduleName, "response does not match schema", map[string]interface{}{
			"schema": string(schema),
			"error":  err.Error(),
		})
	}
	if err := json.Unmarshal(b, out); err != nil {
		return fmt.Errorf("decode %s: %w", schema, err)
	}
	return nil
}
