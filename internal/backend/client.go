// Package backend talks to the web application's REST API.
package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/matheus3301/tradechat/internal/metrics"
	"go.uber.org/zap"
)

// StatusError is returned for non-2xx responses.
type StatusError struct {
	Method string
	Path   string
	Code   int
	Body   string
}

func (e *StatusError) Error() string {
	if e.Body != "" {
		return fmt.Sprintf("%s %s: HTTP %d: %s", e.Method, e.Path, e.Code, e.Body)
	}
	return fmt.Sprintf("%s %s: HTTP %d", e.Method, e.Path, e.Code)
}

// IsNotFound reports whether err is a 404 from the backend.
func IsNotFound(err error) bool {
	var se *StatusError
	return errors.As(err, &se) && se.Code == http.StatusNotFound
}

// Options configures a Client.
type Options struct {
	BaseURL       string
	CookieName    string
	SessionCookie string
	Timeout       time.Duration
	Logger        *zap.Logger
}

// Client is an HTTP client bound to one API origin. The session cookie is
// only ever sent to that origin.
type Client struct {
	base   *url.URL
	http   *http.Client
	logger *zap.Logger
}

// New builds a client for opts.BaseURL.
func New(opts Options) (*Client, error) {
	base, err := url.Parse(strings.TrimRight(opts.BaseURL, "/"))
	if err != nil {
		return nil, fmt.Errorf("parse api base: %w", err)
	}
	if base.Scheme == "" || base.Host == "" {
		return nil, fmt.Errorf("api base %q must be an absolute URL", opts.BaseURL)
	}

	jar, err := cookiejar.New(nil)
	if err != nil {
		return nil, fmt.Errorf("cookie jar: %w", err)
	}
	if opts.SessionCookie != "" {
		name := opts.CookieName
		if name == "" {
			name = ".AspNetCore.Cookies"
		}
		jar.SetCookies(base, []*http.Cookie{{Name: name, Value: opts.SessionCookie, Path: "/"}})
	}

	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	return &Client{
		base:   base,
		logger: logger,
		http: &http.Client{
			Jar:       jar,
			Timeout:   timeout,
			Transport: &credentialsTransport{origin: origin(base), next: http.DefaultTransport},
		},
	}, nil
}

// HTTPClient exposes the underlying client for requests to other origins,
// such as media downloads. Those never carry the session.
func (c *Client) HTTPClient() *http.Client {
	return c.http
}

// BaseURL returns the API origin.
func (c *Client) BaseURL() *url.URL {
	u := *c.base
	return &u
}

// GetJSON issues a GET for path with query and decodes the response into out.
func (c *Client) GetJSON(ctx context.Context, path string, query url.Values, out any) error {
	return c.do(ctx, http.MethodGet, path, query, nil, out)
}

// SendJSON issues a request with a JSON body (nil for none) and decodes the
// response into out when out is non-nil.
func (c *Client) SendJSON(ctx context.Context, method, path string, body, out any) error {
	return c.do(ctx, method, path, nil, body, out)
}

func (c *Client) do(ctx context.Context, method, path string, query url.Values, body, out any) error {
	u := c.base.JoinPath(path)
	if len(query) > 0 {
		u.RawQuery = query.Encode()
	}

	var rdr io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encode %s %s: %w", method, path, err)
		}
		rdr = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, u.String(), rdr)
	if err != nil {
		return fmt.Errorf("build %s %s: %w", method, path, err)
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	start := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		metrics.BackendLatency.WithLabelValues(method, "error").Observe(time.Since(start).Seconds())
		return fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer func() { _ = resp.Body.Close() }()
	metrics.BackendLatency.WithLabelValues(method, strconv.Itoa(resp.StatusCode)).Observe(time.Since(start).Seconds())

	c.logger.Debug("backend request",
		zap.String("method", method),
		zap.String("path", path),
		zap.Int("status", resp.StatusCode),
		zap.Duration("took", time.Since(start)),
	)

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return &StatusError{Method: method, Path: path, Code: resp.StatusCode, Body: strings.TrimSpace(string(msg))}
	}
	if out == nil || resp.StatusCode == http.StatusNoContent {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode %s %s: %w", method, path, err)
	}
	return nil
}

// credentialsTransport strips credentials from requests that leave the API
// origin. The cookie jar matches on host only, so a third-party service on
// the same host but another port would otherwise receive the session.
type credentialsTransport struct {
	origin string
	next   http.RoundTripper
}

func (t *credentialsTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	if origin(req.URL) != t.origin && (req.Header.Get("Cookie") != "" || req.Header.Get("Authorization") != "") {
		req = req.Clone(req.Context())
		req.Header.Del("Cookie")
		req.Header.Del("Authorization")
	}
	return t.next.RoundTrip(req)
}

func origin(u *url.URL) string {
	port := u.Port()
	if port == "" {
		switch u.Scheme {
		case "https", "wss":
			port = "443"
		case "http", "ws":
			port = "80"
		}
	}
	scheme := u.Scheme
	switch scheme {
	case "wss":
		scheme = "https"
	case "ws":
		scheme = "http"
	}
	return scheme + "://" + strings.ToLower(u.Hostname()) + ":" + port
}

// SameOrigin reports whether u belongs to the API origin.
func (c *Client) SameOrigin(u *url.URL) bool {
	return origin(u) == origin(c.base)
}

// Cookies returns the session cookies for the API origin, for handshakes that
// bypass the HTTP client (the push socket).
func (c *Client) Cookies() []*http.Cookie {
	return c.http.Jar.Cookies(c.base)
}
