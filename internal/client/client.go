// Package client talks to the flowchart store over its HTTP API.
//
// Calls go through a circuit breaker. They are never retried: a failed
// append or position update is reported to the caller and that's it.
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

	"flowchart/internal/config"
	"flowchart/internal/domain"

	"github.com/sony/gobreaker"
	"go.uber.org/zap"
)

// API paths
const (
	PathFlowcharts   = "/flowcharts"
	PathAppend       = "/flowcharts/append"
	PathNodePosition = "/flowcharts/node-position"
	PathLogin        = "/login"
)

// maxErrorBody caps how much of an error response is kept
const maxErrorBody = 512

var (
	// ErrUnauthorized is wrapped by errors for 401 responses
	ErrUnauthorized = errors.New("unauthorized")
	// ErrUnavailable is returned while the circuit breaker rejects calls
	ErrUnavailable = errors.New("store unavailable")
)

// StatusError is a non-2xx response from the store
type StatusError struct {
	Op         string
	StatusCode int
	Message    string
}

func (e *StatusError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("%s: store returned %d", e.Op, e.StatusCode)
	}
	return fmt.Sprintf("%s: store returned %d: %s", e.Op, e.StatusCode, e.Message)
}

// Unwrap lets errors.Is(err, ErrUnauthorized) match 401 responses
func (e *StatusError) Unwrap() error {
	if e.StatusCode == http.StatusUnauthorized {
		return ErrUnauthorized
	}
	return nil
}

// TokenSource supplies the bearer token for flowchart calls.
// An empty token means no Authorization header.
type TokenSource interface {
	Token() string
}

// StaticToken is a fixed token
type StaticToken string

// Token implements TokenSource
func (t StaticToken) Token() string { return string(t) }

// Client is a flowchart store client
type Client struct {
	baseURL string
	http    *http.Client
	breaker *gobreaker.CircuitBreaker
	tokens  TokenSource
	logger  *zap.Logger
}

// Option configures a Client
type Option func(*Client)

// WithHTTPClient replaces the underlying HTTP client
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.http = hc }
}

// WithTokenSource sets where bearer tokens come from
func WithTokenSource(ts TokenSource) Option {
	return func(c *Client) { c.tokens = ts }
}

// WithLogger sets the logger
func WithLogger(logger *zap.Logger) Option {
	return func(c *Client) { c.logger = logger }
}

// New creates a client for the store described by cfg
func New(cfg config.StoreConfig, opts ...Option) *Client {
	c := &Client{
		baseURL: strings.TrimRight(cfg.URL, "/"),
		http:    &http.Client{Timeout: cfg.Timeout.Duration()},
		tokens:  StaticToken(""),
		logger:  zap.NewNop(),
	}
	for _, opt := range opts {
		opt(c)
	}
	c.breaker = newBreaker("flowchart-store", cfg.Breaker, c.logger)
	return c
}

func newBreaker(name string, cfg config.BreakerConfig, logger *zap.Logger) *gobreaker.CircuitBreaker {
	return gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        name,
		MaxRequests: cfg.MaxRequests,
		Interval:    cfg.Interval.Duration(),
		Timeout:     cfg.Timeout.Duration(),
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			if counts.Requests < cfg.MinRequests {
				return false
			}
			failureRatio := float64(counts.TotalFailures) / float64(counts.Requests)
			return failureRatio >= cfg.FailureThreshold
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logger.Info("Circuit breaker state changed",
				zap.String("breaker", name),
				zap.String("from", from.String()),
				zap.String("to", to.String()),
			)
		},
		// Client errors say nothing about store health
		IsSuccessful: func(err error) bool {
			var se *StatusError
			if errors.As(err, &se) {
				return se.StatusCode < http.StatusInternalServerError
			}
			return err == nil || errors.Is(err, context.Canceled)
		},
	})
}

// BreakerState reports the circuit breaker state
func (c *Client) BreakerState() gobreaker.State {
	return c.breaker.State()
}

// wireFlowchart is one list element with nodes left raw so that string
// encoded node data is decoded with useful error context
type wireFlowchart struct {
	Flowchart domain.Flowchart `json:"flowchart"`
	Nodes     []json.RawMessage `json:"nodes"`
	Edges     []domain.Edge     `json:"edges"`
}

// ListFlowcharts fetches every flowchart with its nodes and edges
func (c *Client) ListFlowcharts(ctx context.Context) ([]domain.FlowchartGraph, error) {
	var wire []wireFlowchart
	if err := c.do(ctx, "list flowcharts", http.MethodGet, PathFlowcharts, nil, &wire, true); err != nil {
		return nil, err
	}

	out := make([]domain.FlowchartGraph, 0, len(wire))
	for _, wf := range wire {
		nodes, err := domain.DecodeNodes(wf.Nodes)
		if err != nil {
			return nil, fmt.Errorf("list flowcharts: flowchart %s: %w", wf.Flowchart.ID, err)
		}
		edges := wf.Edges
		if edges == nil {
			edges = []domain.Edge{}
		}
		out = append(out, domain.FlowchartGraph{Flowchart: wf.Flowchart, Nodes: nodes, Edges: edges})
	}
	return out, nil
}

// Append sends one append payload
func (c *Client) Append(ctx context.Context, payload domain.AppendPayload) error {
	return c.do(ctx, "append", http.MethodPost, PathAppend, payload, nil, true)
}

// UpdateNodePosition persists the position of one node
func (c *Client) UpdateNodePosition(ctx context.Context, upd domain.PositionUpdate) error {
	return c.do(ctx, "update node position", http.MethodPatch, PathNodePosition, upd, nil, true)
}

func flowchartPath(id string) string {
	return PathFlowcharts + "/" + url.PathEscape(id)
}

// SaveFlowchart creates a flowchart or updates its title and description
func (c *Client) SaveFlowchart(ctx context.Context, f domain.Flowchart) error {
	return c.do(ctx, "save flowchart", http.MethodPut, flowchartPath(f.ID), f, nil, true)
}

// DeleteFlowchart removes a flowchart with its nodes and edges
func (c *Client) DeleteFlowchart(ctx context.Context, id string) error {
	return c.do(ctx, "delete flowchart", http.MethodDelete, flowchartPath(id), nil, nil, true)
}

// Credentials is the login request body
type Credentials struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type loginResponse struct {
	Token string `json:"token"`
}

// Login exchanges credentials for a token
func (c *Client) Login(ctx context.Context, email, password string) (string, error) {
	var resp loginResponse
	if err := c.do(ctx, "login", http.MethodPost, PathLogin, Credentials{Email: email, Password: password}, &resp, false); err != nil {
		return "", err
	}
	if resp.Token == "" {
		return "", fmt.Errorf("login: store returned no token")
	}
	return resp.Token, nil
}

// do runs one request through the breaker and decodes a JSON response into
// out when out is non-nil
func (c *Client) do(ctx context.Context, op, method, path string, body, out any, auth bool) error {
	var payload []byte
	if body != nil {
		var err error
		payload, err = json.Marshal(body)
		if err != nil {
			return fmt.Errorf("%s: encode request: %w", op, err)
		}
	}

	_, err := c.breaker.Execute(func() (any, error) {
		return nil, c.roundTrip(ctx, op, method, path, payload, out, auth)
	})
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		return fmt.Errorf("%s: %w: %v", op, ErrUnavailable, err)
	}
	if err != nil {
		c.logger.Debug("Store request failed",
			zap.String("op", op),
			zap.String("method", method),
			zap.String("path", path),
			zap.Error(err),
		)
	}
	return err
}

func (c *Client) roundTrip(ctx context.Context, op, method, path string, payload []byte, out any, auth bool) error {
	var reader io.Reader
	if payload != nil {
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return fmt.Errorf("%s: build request: %w", op, err)
	}
	req.Header.Set("Accept", "application/json")
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if auth {
		if token := c.tokens.Token(); token != "" {
			req.Header.Set("Authorization", "Bearer "+token)
		}
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return &StatusError{Op: op, StatusCode: resp.StatusCode, Message: errorMessage(resp.Body)}
	}

	if out == nil {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("%s: decode response: %w", op, err)
	}
	return nil
}

// errorMessage extracts {"error": "..."} bodies, falling back to raw text
func errorMessage(r io.Reader) string {
	data, _ := io.ReadAll(io.LimitReader(r, maxErrorBody))

	var body struct {
		Error   string `json:"error"`
		Details string `json:"details"`
	}
	if json.Unmarshal(data, &body) == nil && body.Error != "" {
		if body.Details != "" {
			return body.Error + ": " + body.Details
		}
		return body.Error
	}
	return strings.TrimSpace(string(data))
}
