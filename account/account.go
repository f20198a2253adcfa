// Package account wraps the user config endpoints (panel settings and the
// rest of the per-account configuration blob).
package account

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/pkg/errors"
	"github.com/rs/zerolog"
	"github.com/timothywashburn/pat-client/api"
)

const configPath = "/api/account/config"

type TokenSource interface {
	AccessToken() string
}

// PanelSetting controls whether a panel is shown in the app.
type PanelSetting struct {
	Panel   string `json:"panel"`
	Visible bool   `json:"visible"`
}

type configPayload struct {
	User json.RawMessage `json:"user"`
}

func (p *configPayload) Validate() error {
	if len(p.User) == 0 {
		return errors.New("[configPayload.Validate] user config is required")
	}
	return nil
}

type Client struct {
	api    *api.Client
	tokens TokenSource
	log    zerolog.Logger
}

func NewClient(apiClient *api.Client, tokens TokenSource, log zerolog.Logger) (*Client, error) {
	if apiClient == nil {
		return nil, errors.New("[account.NewClient] api client is required")
	}
	if tokens == nil {
		return nil, errors.New("[account.NewClient] token source is required")
	}
	return &Client{api: apiClient, tokens: tokens, log: log}, nil
}

// GetConfig fetches the raw per-account configuration blob. The schema is
// server-owned; callers pick out the sections they understand.
func (c *Client) GetConfig(ctx context.Context) (map[string]any, error) {
	accessToken := c.tokens.AccessToken()
	if accessToken == "" {
		return nil, api.ErrNoSession
	}

	data, err := c.api.Do(ctx, api.Request{Method: http.MethodGet, Path: configPath, Token: accessToken})
	if err != nil {
		return nil, errors.Wrap(err, "[Client.GetConfig]")
	}
	payload, err := api.Decode[configPayload](data)
	if err != nil {
		return nil, errors.Wrap(err, "[Client.GetConfig] decode")
	}

	var config map[string]any
	if err := json.Unmarshal(payload.User, &config); err != nil {
		return nil, api.ErrInvalidResponse
	}
	return config, nil
}

// UpdatePanels replaces the panel visibility settings.
func (c *Client) UpdatePanels(ctx context.Context, panels []PanelSetting) error {
	accessToken := c.tokens.AccessToken()
	if accessToken == "" {
		return api.ErrNoSession
	}

	body := map[string]any{
		"iosApp": map[string]any{"panels": panels},
	}
	_, err := c.api.Do(ctx, api.Request{
		Method: http.MethodPut,
		Path:   configPath,
		Body:   body,
		Token:  accessToken,
	})
	if err != nil {
		return errors.Wrap(err, "[Client.UpdatePanels]")
	}
	return nil
}
