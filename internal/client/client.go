// Package client talks to a bedrockmate server over HTTP and implements the
// polling side of the job protocol.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"bedrockmate/internal/bookmarks"
	"bedrockmate/internal/jobs"
	"bedrockmate/internal/queue"
	"bedrockmate/internal/worlds"
)

const DefaultServer = "http://localhost:8000"

var (
	ErrNotFound    = errors.New("not found")
	ErrBadRequest  = errors.New("bad request")
	ErrRateLimited = errors.New("rate limited")
	ErrUnavailable = errors.New("service unavailable")
)

// APIError is a non-2xx response. It unwraps to one of the sentinels above
// when the status code maps to one.
type APIError struct {
	Status int
	Detail string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("server returned %d: %s", e.Status, e.Detail)
}

func (e *APIError) Unwrap() error {
	switch e.Status {
	case http.StatusNotFound:
		return ErrNotFound
	case http.StatusBadRequest:
		return ErrBadRequest
	case http.StatusTooManyRequests:
		return ErrRateLimited
	case http.StatusServiceUnavailable:
		return ErrUnavailable
	}
	return nil
}

type Client struct {
	baseURL string
	http    *http.Client
}

type Option func(*Client)

func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.http = hc }
}

func New(baseURL string, opts ...Option) *Client {
	if baseURL == "" {
		baseURL = DefaultServer
	}
	c := &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    &http.Client{Timeout: 30 * time.Second},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// SubmitRequest is the body of POST /api/jobs.
type SubmitRequest struct {
	WorldID    string          `json:"world_id"`
	JobType    jobs.Type       `json:"job_type"`
	Parameters json.RawMessage `json:"parameters,omitempty"`
}

func (c *Client) Health(ctx context.Context) (map[string]string, error) {
	var out map[string]string
	if err := c.do(ctx, http.MethodGet, "/api/health", nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *Client) Stats(ctx context.Context) (*queue.Stats, error) {
	var out queue.Stats
	if err := c.do(ctx, http.MethodGet, "/api/stats", nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) JobTypes(ctx context.Context) (map[jobs.Type]jobs.Info, error) {
	var out map[jobs.Type]jobs.Info
	if err := c.do(ctx, http.MethodGet, "/api/jobs/types", nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *Client) SubmitJob(ctx context.Context, req SubmitRequest) (*jobs.Job, error) {
	var out jobs.Job
	if err := c.do(ctx, http.MethodPost, "/api/jobs", req, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) GetJob(ctx context.Context, id string) (*jobs.Job, error) {
	var out jobs.Job
	if err := c.do(ctx, http.MethodGet, "/api/jobs/"+url.PathEscape(id), nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) ListJobs(ctx context.Context, worldID string, status jobs.Status) ([]*jobs.Job, error) {
	q := url.Values{}
	if worldID != "" {
		q.Set("world_id", worldID)
	}
	if status != "" {
		q.Set("status", string(status))
	}
	path := "/api/jobs"
	if len(q) > 0 {
		path += "?" + q.Encode()
	}
	var out []*jobs.Job
	if err := c.do(ctx, http.MethodGet, path, nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *Client) DeleteJob(ctx context.Context, id string) error {
	return c.do(ctx, http.MethodDelete, "/api/jobs/"+url.PathEscape(id), nil, nil)
}

// WaitForJob polls the server until the job is terminal.
func (c *Client) WaitForJob(ctx context.Context, id string, interval time.Duration, observe func(*jobs.Job)) (*jobs.Job, error) {
	return WaitForJob(ctx, c, id, interval, observe)
}

func (c *Client) CreateWorld(ctx context.Context, in worlds.Input) (*worlds.World, error) {
	var out worlds.World
	if err := c.do(ctx, http.MethodPost, "/api/seeds", in, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) ListWorlds(ctx context.Context) ([]*worlds.World, error) {
	var out []*worlds.World
	if err := c.do(ctx, http.MethodGet, "/api/seeds", nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *Client) GetWorld(ctx context.Context, id string) (*worlds.World, error) {
	var out worlds.World
	if err := c.do(ctx, http.MethodGet, "/api/seeds/"+url.PathEscape(id), nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// ActiveWorld returns nil without error when no world is active.
func (c *Client) ActiveWorld(ctx context.Context) (*worlds.World, error) {
	var out *worlds.World
	if err := c.do(ctx, http.MethodGet, "/api/seeds/active", nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *Client) UpdateWorld(ctx context.Context, id string, p worlds.Patch) (*worlds.World, error) {
	var out worlds.World
	if err := c.do(ctx, http.MethodPut, "/api/seeds/"+url.PathEscape(id), p, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) ActivateWorld(ctx context.Context, id string) error {
	return c.do(ctx, http.MethodPost, "/api/seeds/"+url.PathEscape(id)+"/activate", nil, nil)
}

func (c *Client) DeleteWorld(ctx context.Context, id string) error {
	return c.do(ctx, http.MethodDelete, "/api/seeds/"+url.PathEscape(id), nil, nil)
}

func (c *Client) CreateBookmark(ctx context.Context, in bookmarks.Input) (*bookmarks.Bookmark, error) {
	var out bookmarks.Bookmark
	if err := c.do(ctx, http.MethodPost, "/api/bookmarks", in, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) ListBookmarks(ctx context.Context, worldID string) ([]*bookmarks.Bookmark, error) {
	var out []*bookmarks.Bookmark
	path := "/api/bookmarks?" + url.Values{"world_id": {worldID}}.Encode()
	if err := c.do(ctx, http.MethodGet, path, nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *Client) GetBookmark(ctx context.Context, id string) (*bookmarks.Bookmark, error) {
	var out bookmarks.Bookmark
	if err := c.do(ctx, http.MethodGet, "/api/bookmarks/"+url.PathEscape(id), nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) UpdateBookmark(ctx context.Context, id string, p bookmarks.Patch) (*bookmarks.Bookmark, error) {
	var out bookmarks.Bookmark
	if err := c.do(ctx, http.MethodPut, "/api/bookmarks/"+url.PathEscape(id), p, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) DeleteBookmark(ctx context.Context, id string) error {
	return c.do(ctx, http.MethodDelete, "/api/bookmarks/"+url.PathEscape(id), nil, nil)
}

func (c *Client) do(ctx context.Context, method, path string, body, out any) error {
	var rd io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to encode request: %w", err)
		}
		rd = bytes.NewReader(b)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, rd)
	if err != nil {
		return err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("request %s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		apiErr := &APIError{Status: resp.StatusCode}
		var e struct {
			Detail string `json:"detail"`
		}
		data, _ := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
		if json.Unmarshal(data, &e) == nil && e.Detail != "" {
			apiErr.Detail = e.Detail
		} else {
			apiErr.Detail = strings.TrimSpace(string(data))
		}
		return apiErr
	}

	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	return nil
}
