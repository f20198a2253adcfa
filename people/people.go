// Package people is a thin typed wrapper around the people endpoints.
package people

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/rs/zerolog"
	"github.com/timothywashburn/pat-client/api"
)

const peoplePath = "/api/people"

type TokenSource interface {
	AccessToken() string
}

// Property is a free-form key/value attached to a person.
type Property struct {
	ID    string `json:"id"`
	Key   string `json:"key"`
	Value string `json:"value"`
}

// NewProperty assigns a client-generated id, matching how the original
// client creates properties offline before syncing.
func NewProperty(key, value string) Property {
	return Property{ID: uuid.New().String(), Key: key, Value: value}
}

// Note is a timestamped note attached to a person.
type Note struct {
	ID        string    `json:"id"`
	Content   string    `json:"content"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

func NewNote(content string) Note {
	now := time.Now()
	return Note{ID: uuid.New().String(), Content: content, CreatedAt: now, UpdatedAt: now}
}

type Person struct {
	ID         string     `json:"id"`
	Name       string     `json:"name"`
	Properties []Property `json:"properties"`
	Notes      []Note     `json:"notes"`
}

func (p *Person) Validate() error {
	if p.ID == "" || p.Name == "" {
		return errors.New("[Person.Validate] id and name are required")
	}
	return nil
}

type listPayload struct {
	People []Person `json:"people"`
}

type singlePayload struct {
	Person Person `json:"person"`
}

func (p *singlePayload) Validate() error {
	return p.Person.Validate()
}

// NewPerson is the creation/update request body.
type NewPerson struct {
	Name       string     `json:"name"`
	Properties []Property `json:"properties,omitempty"`
	Notes      []Note     `json:"notes,omitempty"`
}

type Client struct {
	api    *api.Client
	tokens TokenSource
	log    zerolog.Logger
}

func NewClient(apiClient *api.Client, tokens TokenSource, log zerolog.Logger) (*Client, error) {
	if apiClient == nil {
		return nil, errors.New("[people.NewClient] api client is required")
	}
	if tokens == nil {
		return nil, errors.New("[people.NewClient] token source is required")
	}
	return &Client{api: apiClient, tokens: tokens, log: log}, nil
}

func (c *Client) List(ctx context.Context) ([]Person, error) {
	accessToken := c.tokens.AccessToken()
	if accessToken == "" {
		return nil, api.ErrNoSession
	}

	data, err := c.api.Do(ctx, api.Request{Method: http.MethodGet, Path: peoplePath, Token: accessToken})
	if err != nil {
		return nil, errors.Wrap(err, "[Client.List]")
	}
	payload, err := api.Decode[listPayload](data)
	if err != nil {
		return nil, errors.Wrap(err, "[Client.List] decode")
	}
	return payload.People, nil
}

func (c *Client) Create(ctx context.Context, person NewPerson) (*Person, error) {
	accessToken := c.tokens.AccessToken()
	if accessToken == "" {
		return nil, api.ErrNoSession
	}

	data, err := c.api.Do(ctx, api.Request{
		Method: http.MethodPost,
		Path:   peoplePath,
		Body:   person,
		Token:  accessToken,
	})
	if err != nil {
		return nil, errors.Wrap(err, "[Client.Create]")
	}
	payload, err := api.Decode[singlePayload](data)
	if err != nil {
		return nil, errors.Wrap(err, "[Client.Create] decode")
	}
	return &payload.Person, nil
}

func (c *Client) Update(ctx context.Context, id string, person NewPerson) (*Person, error) {
	accessToken := c.tokens.AccessToken()
	if accessToken == "" {
		return nil, api.ErrNoSession
	}

	data, err := c.api.Do(ctx, api.Request{
		Method: http.MethodPut,
		Path:   fmt.Sprintf("%s/%s", peoplePath, id),
		Body:   person,
		Token:  accessToken,
	})
	if err != nil {
		return nil, errors.Wrap(err, "[Client.Update]")
	}
	payload, err := api.Decode[singlePayload](data)
	if err != nil {
		return nil, errors.Wrap(err, "[Client.Update] decode")
	}
	return &payload.Person, nil
}

func (c *Client) Delete(ctx context.Context, id string) error {
	accessToken := c.tokens.AccessToken()
	if accessToken == "" {
		return api.ErrNoSession
	}

	_, err := c.api.Do(ctx, api.Request{
		Method: http.MethodDelete,
		Path:   fmt.Sprintf("%s/%s", peoplePath, id),
		Token:  accessToken,
	})
	if err != nil {
		return errors.Wrap(err, "[Client.Delete]")
	}
	return nil
}
