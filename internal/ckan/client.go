// Package ckan is a small client for the CKAN action API.
//
// Every action is a JSON POST to /api/3/action/<name>. Responses use the
// envelope {"success": bool, "result": ..., "error": {"__type": ..., ...}};
// failures are returned as *Error so callers can match on the error kind.
package ckan

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

const defaultTimeout = 60 * time.Second

// Client calls CKAN actions. It is safe for concurrent use.
type Client struct {
	baseURL string
	apiKey  string
	http    *http.Client
}

// Option configures a Client.
type Option func(*Client)

// WithAPIKey sets the token sent when the context carries none.
func WithAPIKey(key string) Option {
	return func(c *Client) { c.apiKey = key }
}

// WithHTTPClient replaces the underlying HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.http = hc }
}

// WithTimeout sets the per-call timeout of the default HTTP client.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) {
		if d > 0 {
			c.http = &http.Client{Timeout: d}
		}
	}
}

// New creates a client for the CKAN site at baseURL.
func New(baseURL string, opts ...Option) *Client {
	c := &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    &http.Client{Timeout: defaultTimeout},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

type tokenKey struct{}

// WithToken returns a context whose action calls authenticate with token
// instead of the client's API key.
func WithToken(ctx context.Context, token string) context.Context {
	return context.WithValue(ctx, tokenKey{}, token)
}

func tokenFrom(ctx context.Context) string {
	if v, ok := ctx.Value(tokenKey{}).(string); ok {
		return v
	}
	return ""
}

type envelope struct {
	Success bool                       `json:"success"`
	Result  json.RawMessage            `json:"result"`
	Error   map[string]json.RawMessage `json:"error"`
}

// Call invokes action with params and decodes the result into out, which
// may be nil. Numbers in the result decode as json.Number when out holds
// interface values.
func (c *Client) Call(ctx context.Context, action string, params, out any) error {
	body, err := json.Marshal(params)
	if err != nil {
		return fmt.Errorf("%s: encode params: %w", action, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/api/3/action/"+action, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("%s: %w", action, err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	if token := tokenFrom(ctx); token != "" {
		req.Header.Set("Authorization", token)
	} else if c.apiKey != "" {
		req.Header.Set("Authorization", c.apiKey)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%s: %w", action, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("%s: read response: %w", action, err)
	}

	var env envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return fmt.Errorf("%s: unexpected response (HTTP %d): %w", action, resp.StatusCode, err)
	}
	if !env.Success {
		return newError(action, resp.StatusCode, env.Error)
	}
	if out == nil || len(env.Result) == 0 {
		return nil
	}

	dec := json.NewDecoder(bytes.NewReader(env.Result))
	dec.UseNumber()
	if err := dec.Decode(out); err != nil {
		return fmt.Errorf("%s: decode result: %w", action, err)
	}
	return nil
}

func newError(action string, status int, fields map[string]json.RawMessage) *Error {
	e := &Error{Action: action, Status: status, Details: make(map[string]json.RawMessage)}
	for k, v := range fields {
		switch k {
		case "__type":
			_ = json.Unmarshal(v, &e.Type)
		case "message":
			if json.Unmarshal(v, &e.Message) != nil {
				e.Message = string(v)
			}
		default:
			e.Details[k] = v
		}
	}
	if e.Type == "" {
		e.Type = typeForStatus(status)
	}
	return e
}

func typeForStatus(status int) string {
	switch status {
	case http.StatusNotFound:
		return TypeNotFound
	case http.StatusForbidden, http.StatusUnauthorized:
		return TypeNotAuthorized
	case http.StatusConflict:
		return TypeValidation
	default:
		return fmt.Sprintf("HTTP %d", status)
	}
}
