// Package gateway is the portal's HTTP client for the school-management backend.
package gateway

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/pkg/errors"
	"github.com/sendgrid/rest"

	"github.com/trezcool/masomo-portal/core"
)

// TokenSource yields the bearer token to attach to a request; "" sends none.
type TokenSource interface {
	Token() (string, error)
}

// APIError is a non-2xx backend response.
type APIError struct {
	Status  int
	Message string
}

func (err *APIError) Error() string {
	return fmt.Sprintf("backend responded %d: %s", err.Status, err.Message)
}

func (err *APIError) UserMessage() string { return err.Message }

// Is lets a 401 match core.ErrAuthExpired.
func (err *APIError) Is(target error) bool {
	return target == core.ErrAuthExpired && err.Status == http.StatusUnauthorized
}

// Options are per-request extras.
type Options struct {
	Query map[string]string
	Body  interface{}
}

// Client sends requests to the backend. It is safe for concurrent use.
type Client struct {
	baseURL string
	rest    *rest.Client
	tokens  TokenSource
	logger  core.Logger
}

func New(baseURL string, timeout time.Duration, logger core.Logger) *Client {
	if logger == nil {
		logger = core.NopLogger()
	}
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		rest:    &rest.Client{HTTPClient: &http.Client{Timeout: timeout}},
		logger:  logger,
	}
}

// WithTokens returns a copy of c that authenticates its requests with tokens.
func (c *Client) WithTokens(tokens TokenSource) *Client {
	cp := *c
	cp.tokens = tokens
	return &cp
}

func (c *Client) Get(ctx context.Context, path string, opts *Options, out interface{}) error {
	return c.do(ctx, rest.Get, path, opts, out)
}

func (c *Client) Post(ctx context.Context, path string, opts *Options, out interface{}) error {
	return c.do(ctx, rest.Post, path, opts, out)
}

func (c *Client) Patch(ctx context.Context, path string, opts *Options, out interface{}) error {
	return c.do(ctx, rest.Patch, path, opts, out)
}

func (c *Client) do(ctx context.Context, method rest.Method, path string, opts *Options, out interface{}) error {
	req := rest.Request{
		Method:  method,
		BaseURL: c.baseURL + "/" + strings.TrimLeft(path, "/"),
		Headers: map[string]string{
			"Accept": "application/json",
		},
	}
	if opts != nil {
		req.QueryParams = opts.Query
		if opts.Body != nil {
			body, err := json.Marshal(opts.Body)
			if err != nil {
				return errors.Wrap(err, "encoding request body")
			}
			req.Body = body
			req.Headers["Content-Type"] = "application/json"
		}
	}
	if c.tokens != nil {
		token, err := c.tokens.Token()
		if err != nil {
			return errors.Wrap(err, "reading token")
		}
		if token != "" {
			req.Headers["Authorization"] = "Bearer " + token
		}
	}

	res, err := c.rest.SendWithContext(ctx, req)
	if err != nil {
		c.logger.Warn(fmt.Sprintf("gateway: %s %s", method, path), err)
		return core.NewRequestError(core.ErrNetwork, "Could not reach the server. Please try again.", err)
	}
	if res.StatusCode >= http.StatusBadRequest {
		return &APIError{Status: res.StatusCode, Message: errorMessage(res)}
	}
	if out == nil || strings.TrimSpace(res.Body) == "" {
		return nil
	}
	if err := json.Unmarshal([]byte(res.Body), out); err != nil {
		return errors.Wrapf(err, "decoding %s %s response", method, path)
	}
	return nil
}

// errorMessage extracts the human-readable message from an error payload.
func errorMessage(res *rest.Response) string {
	var payload struct {
		Message string `json:"message"`
		Error   string `json:"error"`
	}
	if err := json.Unmarshal([]byte(res.Body), &payload); err == nil {
		if payload.Message != "" {
			return payload.Message
		}
		if payload.Error != "" {
			return payload.Error
		}
	}
	return http.StatusText(res.StatusCode)
}
