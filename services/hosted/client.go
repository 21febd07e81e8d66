// Package hostedapi implements the session.Backend contract against the
// hosted Taskora backend: auth endpoints under /auth/v1 and row-level
// table access under /rest/v1. All upstream failures are translated to
// typed *core.Error values at this boundary; upstream wording never
// leaks into the session layer.
package hostedapi

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/url"
	"sync"
	"time"

	"github.com/pkg/errors"

	"github.com/taskora/taskora-go/core"
	"github.com/taskora/taskora-go/core/session"
)

type Client struct {
	baseURL string
	apiKey  string
	http    *http.Client
	log     core.Logger

	mu        sync.Mutex
	session   *session.Session
	listeners map[int]func(session.AuthChange)
	order     []int
	nextID    int
	refresh   *time.Timer
}

var _ session.Backend = (*Client)(nil)

func NewClient(conf *core.Config, log core.Logger) *Client {
	return &Client{
		baseURL:   conf.Hosted.BaseURL,
		apiKey:    conf.Hosted.APIKey,
		http:      &http.Client{Timeout: 30 * time.Second},
		log:       log,
		listeners: make(map[int]func(session.AuthChange)),
	}
}

// AccessToken returns the current session's bearer token, or "" when
// signed out. The realtime channel connects with it.
func (c *Client) AccessToken() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.session == nil {
		return ""
	}
	return c.session.AccessToken
}

// Close stops the refresh timer. It does not sign out.
func (c *Client) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.refresh != nil {
		c.refresh.Stop()
		c.refresh = nil
	}
}

func (c *Client) do(ctx context.Context, method, path string, query url.Values, header http.Header, body, out interface{}) error {
	var reqBody io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return errors.Wrap(err, "encoding request body")
		}
		reqBody = bytes.NewReader(data)
	}

	u := c.baseURL + path
	if len(query) > 0 {
		u += "?" + query.Encode()
	}
	req, err := http.NewRequestWithContext(ctx, method, u, reqBody)
	if err != nil {
		return errors.Wrap(err, "building request")
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("apikey", c.apiKey)
	if token := c.AccessToken(); token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	} else if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}
	for k, vs := range header {
		for _, v := range vs {
			req.Header.Add(k, v)
		}
	}

	res, err := c.http.Do(req)
	if err != nil {
		return core.NewTransportError("backend unreachable", err)
	}
	defer func() { _ = res.Body.Close() }()

	data, err := io.ReadAll(res.Body)
	if err != nil {
		return core.NewTransportError("reading backend response", err)
	}
	if res.StatusCode >= http.StatusBadRequest {
		return mapError(res.StatusCode, data)
	}
	if out != nil && len(data) > 0 {
		if err := json.Unmarshal(data, out); err != nil {
			return errors.Wrapf(err, "decoding %s %s response", method, path)
		}
	}
	return nil
}
