// Package canvas is a small client for the learning-management REST API.
//
// Endpoints are relative to the course (`courses/<course>/<endpoint>`) unless they
// start with a slash, in which case they are relative to the API root.
package canvas

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"regexp"
	"strconv"
	"strings"
	"time"

	"golang.org/x/oauth2"
)

// Data is a JSON object exactly as the API returned it.
type Data map[string]any

// APIError is returned for any response that carries an "errors" field or a
// non-2xx status.
type APIError struct {
	Status   int
	Endpoint string
	Errors   any
}

func (e *APIError) Error() string {
	return fmt.Sprintf("canvas: %s: status %d: errors in remote data: %v", e.Endpoint, e.Status, e.Errors)
}

// Client talks to the remote API.
type Client struct {
	baseURL string
	perPage int
	http    *http.Client
	logger  *slog.Logger
}

// ClientOption configures a Client.
type ClientOption func(*Client)

// WithHTTPClient replaces the default http.Client. The client is copied,
// so later options never modify hc. The access token is still attached
// through an oauth2 transport wrapped around its transport.
func WithHTTPClient(hc *http.Client) ClientOption {
	return func(c *Client) {
		cp := *hc
		c.http = &cp
	}
}

// WithPerPage sets the page size requested from paginated endpoints.
func WithPerPage(n int) ClientOption {
	return func(c *Client) {
		if n > 0 {
			c.perPage = n
		}
	}
}

// WithTimeout sets the timeout of the underlying http.Client.
func WithTimeout(d time.Duration) ClientOption {
	return func(c *Client) {
		cp := *c.http
		cp.Timeout = d
		c.http = &cp
	}
}

// WithLogger sets the logger used for request tracing.
func WithLogger(l *slog.Logger) ClientOption {
	return func(c *Client) { c.logger = l }
}

// NewClient creates a client for the API served at baseURL.
func NewClient(baseURL, token string, opts ...ClientOption) *Client {
	c := &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		perPage: 100,
		http:    &http.Client{Timeout: 30 * time.Second},
		logger:  slog.Default(),
	}
	for _, opt := range opts {
		opt(c)
	}
	if token != "" {
		cp := *c.http
		cp.Transport = &oauth2.Transport{
			Source: oauth2.StaticTokenSource(&oauth2.Token{AccessToken: token, TokenType: "Bearer"}),
			Base:   c.http.Transport,
		}
		c.http = &cp
	}
	return c
}

// Get fetches a single object.
func (c *Client) Get(ctx context.Context, course, endpoint string, params url.Values) (Data, error) {
	raw, _, err := c.do(ctx, http.MethodGet, c.endpointURL(course, endpoint, params), endpoint, nil)
	if err != nil {
		return nil, err
	}
	return decodeObject(endpoint, raw)
}

// List fetches every page of a collection endpoint.
func (c *Client) List(ctx context.Context, course, endpoint string, params url.Values) ([]Data, error) {
	q := url.Values{}
	for k, v := range params {
		q[k] = v
	}
	q.Set("per_page", strconv.Itoa(c.perPage))

	var out []Data
	next := c.endpointURL(course, endpoint, q)
	for next != "" {
		raw, header, err := c.do(ctx, http.MethodGet, next, endpoint, nil)
		if err != nil {
			return nil, err
		}
		page, err := decodeList(endpoint, raw)
		if err != nil {
			return nil, err
		}
		out = append(out, page...)
		next = nextLink(header.Get("Link"))
	}
	return out, nil
}

// Post creates an object from a form payload.
func (c *Client) Post(ctx context.Context, course, endpoint string, form url.Values) (Data, error) {
	raw, _, err := c.do(ctx, http.MethodPost, c.endpointURL(course, endpoint, nil), endpoint, form)
	if err != nil {
		return nil, err
	}
	return decodeObject(endpoint, raw)
}

// Put updates an object from a form payload.
func (c *Client) Put(ctx context.Context, course, endpoint string, form url.Values) (Data, error) {
	raw, _, err := c.do(ctx, http.MethodPut, c.endpointURL(course, endpoint, nil), endpoint, form)
	if err != nil {
		return nil, err
	}
	return decodeObject(endpoint, raw)
}

func (c *Client) endpointURL(course, endpoint string, params url.Values) string {
	var u string
	if strings.HasPrefix(endpoint, "/") {
		u = c.baseURL + "/api/v1" + endpoint
	} else {
		u = c.baseURL + "/api/v1/courses/" + url.PathEscape(course) + "/" + endpoint
	}
	if len(params) > 0 {
		u += "?" + params.Encode()
	}
	return u
}

func (c *Client) do(ctx context.Context, method, target, endpoint string, form url.Values) ([]byte, http.Header, error) {
	var body io.Reader
	if form != nil {
		body = strings.NewReader(form.Encode())
	}
	req, err := http.NewRequestWithContext(ctx, method, target, body)
	if err != nil {
		return nil, nil, fmt.Errorf("canvas: build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if form != nil {
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	}

	c.logger.Debug("canvas: request", slog.String("method", method), slog.String("url", target))

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, nil, fmt.Errorf("canvas: %s %s: %w", method, endpoint, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, nil, fmt.Errorf("canvas: read body: %w", err)
	}
	if resp.StatusCode >= 400 {
		apiErr := &APIError{Status: resp.StatusCode, Endpoint: endpoint, Errors: strings.TrimSpace(string(raw))}
		var obj Data
		if unmarshal(raw, &obj) == nil {
			if errs, ok := obj["errors"]; ok {
				apiErr.Errors = errs
			}
		}
		return nil, nil, apiErr
	}
	return raw, resp.Header, nil
}

func decodeObject(endpoint string, raw []byte) (Data, error) {
	var obj Data
	if err := unmarshal(raw, &obj); err != nil {
		return nil, fmt.Errorf("canvas: decode %s: %w", endpoint, err)
	}
	if errs, ok := obj["errors"]; ok {
		return nil, &APIError{Status: http.StatusOK, Endpoint: endpoint, Errors: errs}
	}
	return obj, nil
}

func decodeList(endpoint string, raw []byte) ([]Data, error) {
	trimmed := strings.TrimSpace(string(raw))
	if strings.HasPrefix(trimmed, "{") {
		// An object where a list was expected is always an error payload.
		obj, err := decodeObject(endpoint, raw)
		if err != nil {
			return nil, err
		}
		return nil, &APIError{Status: http.StatusOK, Endpoint: endpoint, Errors: obj}
	}
	var list []Data
	if err := unmarshal(raw, &list); err != nil {
		return nil, fmt.Errorf("canvas: decode %s: %w", endpoint, err)
	}
	return list, nil
}

func unmarshal(raw []byte, v any) error {
	dec := json.NewDecoder(strings.NewReader(string(raw)))
	dec.UseNumber()
	return dec.Decode(v)
}

var linkRe = regexp.MustCompile(`<([^>]+)>\s*;\s*rel="([^"]+)"`)

// nextLink extracts the rel="next" target from a Link header.
func nextLink(header string) string {
	for _, m := range linkRe.FindAllStringSubmatch(header, -1) {
		if m[2] == "next" {
			return m[1]
		}
	}
	return ""
}
