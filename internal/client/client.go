// Package client talks to the admin REST API on behalf of the command line tool.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"github.com/sirupsen/logrus"

	applog "parkadmin/app/internal/log"
)

const defaultTimeout = 30 * time.Second

// APIError is an error response from the server.
type APIError struct {
	Status  int      `json:"status"`
	Message string   `json:"message"`
	Errors  []string `json:"errors,omitempty"`
}

func (e *APIError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("server returned %d", e.Status)
	}
	return fmt.Sprintf("server returned %d: %s", e.Status, e.Message)
}

// UserMessage is the server-provided text.
func (e *APIError) UserMessage() string { return e.Message }

// Client is a small REST client for the /api/v1 collections.
type Client struct {
	baseURL *url.URL
	http    *http.Client
	token   string
	logger  *logrus.Entry
}

// Option customises a Client.
type Option func(*Client)

// WithToken sends the token as a bearer credential.
func WithToken(token string) Option {
	return func(c *Client) { c.token = strings.TrimSpace(token) }
}

// WithHTTPClient replaces the default HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		if hc != nil {
			c.http = hc
		}
	}
}

// WithLogger logs each request at debug level.
func WithLogger(logger *logrus.Logger) Option {
	return func(c *Client) {
		if logger != nil {
			c.logger = applog.Component(logger, "client")
		}
	}
}

// New builds a client for the API rooted at baseURL, e.g. http://localhost:8080/api/v1.
func New(baseURL string, opts ...Option) (*Client, error) {
	parsed, err := url.Parse(strings.TrimRight(strings.TrimSpace(baseURL), "/"))
	if err != nil {
		return nil, eris.Wrapf(err, "invalid API base URL: %s", baseURL)
	}
	if parsed.Scheme != "http" && parsed.Scheme != "https" {
		return nil, eris.Errorf("API base URL must be http or https: %s", baseURL)
	}

	c := &Client{
		baseURL: parsed,
		http:    &http.Client{Timeout: defaultTimeout},
	}
	for _, opt := range opts {
		opt(c)
	}

	return c, nil
}

// Page is one window of a list request.
type Page struct {
	Records []Record
	Total   int
}

// List fetches a window of resource. Total comes from X-Total-Count and falls back to the
// number of records returned.
func (c *Client) List(ctx context.Context, resource string, query url.Values) (Page, error) {
	var records []Record
	header, err := c.do(ctx, http.MethodGet, resource, query, nil, &records)
	if err != nil {
		return Page{}, err
	}

	page := Page{Records: records, Total: len(records)}
	if raw := header.Get("X-Total-Count"); raw != "" {
		if total, convErr := strconv.Atoi(raw); convErr == nil {
			page.Total = total
		}
	}
	return page, nil
}

// LatestSeq returns the highest seq of resource. It reports false for an empty collection.
func (c *Client) LatestSeq(ctx context.Context, resource string) (int64, bool, error) {
	query := url.Values{}
	query.Set("_sort", "seq")
	query.Set("_order", "desc")
	query.Set("_start", "0")
	query.Set("_end", "1")

	page, err := c.List(ctx, resource, query)
	if err != nil {
		return 0, false, eris.Wrapf(err, "reading latest %s seq", resource)
	}
	if len(page.Records) == 0 {
		return 0, false, nil
	}
	return page.Records[0].Seq, true, nil
}

// NextSeq asks the server which seq the next create will most likely receive.
func (c *Client) NextSeq(ctx context.Context, resource string) (int64, error) {
	var body struct {
		Seq int64 `json:"seq"`
	}
	if _, err := c.do(ctx, http.MethodGet, resource+"/next-seq", nil, nil, &body); err != nil {
		return 0, err
	}
	return body.Seq, nil
}

// DeleteResult is the server's report of a batch delete.
type DeleteResult struct {
	Message  string   `json:"message"`
	Deleted  []string `json:"deleted"`
	Missing  []string `json:"missing"`
	Warnings []string `json:"warnings"`
}

// DeleteMany removes every id with a single request.
func (c *Client) DeleteMany(ctx context.Context, resource string, ids []string) (DeleteResult, error) {
	if len(ids) == 0 {
		return DeleteResult{}, eris.New("no ids to delete")
	}

	escaped := make([]string, len(ids))
	for i, id := range ids {
		escaped[i] = url.PathEscape(strings.TrimSpace(id))
	}

	var result DeleteResult
	if _, err := c.do(ctx, http.MethodDelete, resource+"/"+strings.Join(escaped, ","), nil, nil, &result); err != nil {
		return DeleteResult{}, err
	}
	return result, nil
}

func (c *Client) do(ctx context.Context, method, path string, query url.Values, body any, dest any) (http.Header, error) {
	endpoint := c.baseURL.String() + "/" + strings.TrimLeft(path, "/")
	if len(query) > 0 {
		endpoint += "?" + query.Encode()
	}

	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return nil, eris.Wrap(err, "encoding request body")
		}
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, endpoint, reader)
	if err != nil {
		return nil, eris.Wrapf(err, "building %s %s", method, path)
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	start := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, eris.Wrapf(err, "%s %s", method, path)
	}
	defer resp.Body.Close()

	if c.logger != nil {
		c.logger.WithFields(logrus.Fields{
			"method":      method,
			"path":        path,
			"status":      resp.StatusCode,
			"duration_ms": float64(time.Since(start).Microseconds()) / 1000,
		}).Debug("api request")
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, eris.Wrapf(err, "reading %s %s response", method, path)
	}

	if resp.StatusCode >= 400 {
		apiErr := &APIError{Status: resp.StatusCode}
		if jsonErr := json.Unmarshal(data, apiErr); jsonErr != nil || apiErr.Message == "" {
			apiErr.Message = strings.TrimSpace(string(data))
		}
		apiErr.Status = resp.StatusCode
		return resp.Header, apiErr
	}

	if dest != nil && len(data) > 0 {
		if err := json.Unmarshal(data, dest); err != nil {
			return nil, eris.Wrapf(err, "decoding %s %s response", method, path)
		}
	}

	return resp.Header, nil
}
