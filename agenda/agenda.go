// Package agenda is a thin typed wrapper around the task endpoints.
package agenda

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/pkg/errors"
	"github.com/rs/zerolog"
	"github.com/timothywashburn/pat-client/api"
	"github.com/timothywashburn/pat-client/internal/utils"
)

const tasksPath = "/api/tasks"

// TokenSource supplies the access token for authenticated calls.
type TokenSource interface {
	AccessToken() string
}

// Task is a single agenda item.
type Task struct {
	ID        string     `json:"id"`
	Name      string     `json:"name"`
	DueDate   *time.Time `json:"dueDate,omitempty"`
	Notes     string     `json:"notes,omitempty"`
	Completed bool       `json:"completed"`
}

func (t *Task) Validate() error {
	if t.ID == "" || t.Name == "" {
		return errors.New("[Task.Validate] id and name are required")
	}
	return nil
}

// Due returns the due date, or the zero time when none is set.
func (t *Task) Due() time.Time {
	return utils.Value(t.DueDate)
}

type listPayload struct {
	Tasks []Task `json:"tasks"`
}

type singlePayload struct {
	Task Task `json:"task"`
}

func (p *singlePayload) Validate() error {
	return p.Task.Validate()
}

// NewTask is the creation request body.
type NewTask struct {
	Name    string     `json:"name"`
	DueDate *time.Time `json:"dueDate,omitempty"`
	Notes   string     `json:"notes,omitempty"`
}

// DueOn sets the due date and returns the request for chaining.
func (n NewTask) DueOn(due time.Time) NewTask {
	n.DueDate = utils.Ptr(due)
	return n
}

// Client issues agenda calls against the API.
type Client struct {
	api    *api.Client
	tokens TokenSource
	log    zerolog.Logger
}

func NewClient(apiClient *api.Client, tokens TokenSource, log zerolog.Logger) (*Client, error) {
	if apiClient == nil {
		return nil, errors.New("[agenda.NewClient] api client is required")
	}
	if tokens == nil {
		return nil, errors.New("[agenda.NewClient] token source is required")
	}
	return &Client{api: apiClient, tokens: tokens, log: log}, nil
}

func (c *Client) List(ctx context.Context) ([]Task, error) {
	accessToken := c.tokens.AccessToken()
	if accessToken == "" {
		return nil, api.ErrNoSession
	}

	data, err := c.api.Do(ctx, api.Request{Method: http.MethodGet, Path: tasksPath, Token: accessToken})
	if err != nil {
		return nil, errors.Wrap(err, "[Client.List]")
	}
	payload, err := api.Decode[listPayload](data)
	if err != nil {
		return nil, errors.Wrap(err, "[Client.List] decode")
	}
	return payload.Tasks, nil
}

func (c *Client) Create(ctx context.Context, task NewTask) (*Task, error) {
	accessToken := c.tokens.AccessToken()
	if accessToken == "" {
		return nil, api.ErrNoSession
	}

	data, err := c.api.Do(ctx, api.Request{
		Method: http.MethodPost,
		Path:   tasksPath,
		Body:   task,
		Token:  accessToken,
	})
	if err != nil {
		return nil, errors.Wrap(err, "[Client.Create]")
	}
	payload, err := api.Decode[singlePayload](data)
	if err != nil {
		return nil, errors.Wrap(err, "[Client.Create] decode")
	}
	return &payload.Task, nil
}

// Update replaces the mutable fields of a task.
func (c *Client) Update(ctx context.Context, id string, task NewTask, completed bool) (*Task, error) {
	accessToken := c.tokens.AccessToken()
	if accessToken == "" {
		return nil, api.ErrNoSession
	}

	body := struct {
		NewTask
		Completed bool `json:"completed"`
	}{NewTask: task, Completed: completed}

	data, err := c.api.Do(ctx, api.Request{
		Method: http.MethodPut,
		Path:   fmt.Sprintf("%s/%s", tasksPath, id),
		Body:   body,
		Token:  accessToken,
	})
	if err != nil {
		return nil, errors.Wrap(err, "[Client.Update]")
	}
	payload, err := api.Decode[singlePayload](data)
	if err != nil {
		return nil, errors.Wrap(err, "[Client.Update] decode")
	}
	return &payload.Task, nil
}

func (c *Client) Delete(ctx context.Context, id string) error {
	accessToken := c.tokens.AccessToken()
	if accessToken == "" {
		return api.ErrNoSession
	}

	_, err := c.api.Do(ctx, api.Request{
		Method: http.MethodDelete,
		Path:   fmt.Sprintf("%s/%s", tasksPath, id),
		Token:  accessToken,
	})
	if err != nil {
		return errors.Wrap(err, "[Client.Delete]")
	}
	return nil
}
