// Package api issues JSON requests against the Pat server and normalizes
// its {success, data, error} response envelope into typed results.
package api

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/rs/zerolog"
	"github.com/timothywashburn/pat-client/internal/config"
)

// Request describes a single call against the API. Token is optional; when
// set it is sent as a bearer credential.
type Request struct {
	Method string
	Path   string
	Body   any
	Token  string
}

type envelope struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data"`
	Error   string          `json:"error"`
}

// Client issues requests against a configured base URL.
type Client struct {
	baseURL    string
	httpClient *http.Client
	log        zerolog.Logger
}

// Option defines a function type to modify the Client instance.
type Option func(*Client)

// WithHTTPClient overrides the underlying HTTP client (primarily for testing).
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		c.httpClient = hc
	}
}

func New(cfg config.APIConfig, log zerolog.Logger, options ...Option) (*Client, error) {
	if cfg == nil {
		return nil, errors.New("[api.New] config is required")
	}

	client := &Client{
		baseURL:    cfg.GetAPIURL(),
		httpClient: &http.Client{Timeout: cfg.GetRequestTimeout()},
		log:        log,
	}

	for _, opt := range options {
		opt(client)
	}

	return client, nil
}

// Do executes the request and returns the envelope's data payload. A non-200
// status or success=false is reported as a *ServerError carrying the server
// message; transport failures as *NetworkError; an undecodable envelope as
// ErrInvalidResponse.
func (c *Client) Do(ctx context.Context, req Request) (json.RawMessage, error) {
	var bodyReader io.Reader
	if req.Body != nil {
		encoded, err := json.Marshal(req.Body)
		if err != nil {
			return nil, errors.Wrap(err, "[Client.Do] json.Marshal")
		}
		bodyReader = bytes.NewReader(encoded)
	}

	httpReq, err := http.NewRequestWithContext(ctx, req.Method, c.baseURL+req.Path, bodyReader)
	if err != nil {
		return nil, errors.Wrap(err, "[Client.Do] http.NewRequestWithContext")
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("X-Request-ID", uuid.New().String())
	if req.Token != "" {
		httpReq.Header.Set("Authorization", "Bearer "+req.Token)
	}

	c.log.Debug().Str("method", req.Method).Str("path", req.Path).Msg("api request")

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, &NetworkError{Err: err}
	}
	defer func() { _ = resp.Body.Close() }()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &NetworkError{Err: err}
	}

	var env envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return nil, ErrInvalidResponse
	}

	if resp.StatusCode != http.StatusOK || !env.Success {
		c.log.Debug().Int("status", resp.StatusCode).Str("path", req.Path).
			Str("error", env.Error).Msg("api request failed")
		return nil, &ServerError{Message: env.Error}
	}

	return env.Data, nil
}

// Validator allows decoded payloads to check their own required fields.
type Validator interface {
	Validate() error
}

// Decode unmarshals an envelope data payload into T, failing with
// ErrInvalidResponse on a malformed payload or a required-field mismatch.
func Decode[T any](raw json.RawMessage) (T, error) {
	var out T
	if len(raw) == 0 {
		return out, ErrInvalidResponse
	}
	if err := json.Unmarshal(raw, &out); err != nil {
		return out, ErrInvalidResponse
	}
	if v, ok := any(&out).(Validator); ok {
		if err := v.Validate(); err != nil {
			return out, ErrInvalidResponse
		}
	}
	return out, nil
}
