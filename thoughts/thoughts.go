// Package thoughts is a thin typed wrapper around the thought endpoints.
package thoughts

import (
	"context"
	"fmt"
	"net/http"

	"github.com/pkg/errors"
	"github.com/rs/zerolog"
	"github.com/timothywashburn/pat-client/api"
)

const thoughtsPath = "/api/thoughts"

type TokenSource interface {
	AccessToken() string
}

type Thought struct {
	ID      string `json:"id"`
	Content string `json:"content"`
}

func (t *Thought) Validate() error {
	if t.ID == "" || t.Content == "" {
		return errors.New("[Thought.Validate] id and content are required")
	}
	return nil
}

type listPayload struct {
	Thoughts []Thought `json:"thoughts"`
}

type singlePayload struct {
	Thought Thought `json:"thought"`
}

func (p *singlePayload) Validate() error {
	return p.Thought.Validate()
}

type Client struct {
	api    *api.Client
	tokens TokenSource
	log    zerolog.Logger
}

func NewClient(apiClient *api.Client, tokens TokenSource, log zerolog.Logger) (*Client, error) {
	if apiClient == nil {
		return nil, errors.New("[thoughts.NewClient] api client is required")
	}
	if tokens == nil {
		return nil, errors.New("[thoughts.NewClient] token source is required")
	}
	return &Client{api: apiClient, tokens: tokens, log: log}, nil
}

func (c *Client) List(ctx context.Context) ([]Thought, error) {
	accessToken := c.tokens.AccessToken()
	if accessToken == "" {
		return nil, api.ErrNoSession
	}

	data, err := c.api.Do(ctx, api.Request{Method: http.MethodGet, Path: thoughtsPath, Token: accessToken})
	if err != nil {
		return nil, errors.Wrap(err, "[Client.List]")
	}
	payload, err := api.Decode[listPayload](data)
	if err != nil {
		return nil, errors.Wrap(err, "[Client.List] decode")
	}
	return payload.Thoughts, nil
}

func (c *Client) Create(ctx context.Context, content string) (*Thought, error) {
	accessToken := c.tokens.AccessToken()
	if accessToken == "" {
		return nil, api.ErrNoSession
	}

	data, err := c.api.Do(ctx, api.Request{
		Method: http.MethodPost,
		Path:   thoughtsPath,
		Body:   map[string]string{"content": content},
		Token:  accessToken,
	})
	if err != nil {
		return nil, errors.Wrap(err, "[Client.Create]")
	}
	payload, err := api.Decode[singlePayload](data)
	if err != nil {
		return nil, errors.Wrap(err, "[Client.Create] decode")
	}
	return &payload.Thought, nil
}

func (c *Client) Update(ctx context.Context, id, content string) error {
	accessToken := c.tokens.AccessToken()
	if accessToken == "" {
		return api.ErrNoSession
	}

	_, err := c.api.Do(ctx, api.Request{
		Method: http.MethodPut,
		Path:   fmt.Sprintf("%s/%s", thoughtsPath, id),
		Body:   map[string]string{"content": content},
		Token:  accessToken,
	})
	if err != nil {
		return errors.Wrap(err, "[Client.Update]")
	}
	return nil
}

func (c *Client) Delete(ctx context.Context, id string) error {
	accessToken := c.tokens.AccessToken()
	if accessToken == "" {
		return api.ErrNoSession
	}

	_, err := c.api.Do(ctx, api.Request{
		Method: http.MethodDelete,
		Path:   fmt.Sprintf("%s/%s", thoughtsPath, id),
		Token:  accessToken,
	})
	if err != nil {
		return errors.Wrap(err, "[Client.Delete]")
	}
	return nil
}
