package token

import "github.com/pkg/errors"

// Credentials is the opaque bearer token pair issued by the server. The
// client never parses token contents; expiry is discovered only through a
// refresh failure.
type Credentials struct {
	AccessToken  string `json:"accessToken"`
	RefreshToken string `json:"refreshToken"`
}

func (c *Credentials) Validate() error {
	if c.AccessToken == "" || c.RefreshToken == "" {
		return errors.New("[Credentials.Validate] both token fields are required")
	}
	return nil
}

// Profile is the cached user profile stored alongside the credentials.
type Profile struct {
	ID            string `json:"id"`
	Email         string `json:"email"`
	Name          string `json:"name"`
	EmailVerified bool   `json:"isEmailVerified"`
}

func (p *Profile) Validate() error {
	if p.ID == "" || p.Email == "" {
		return errors.New("[Profile.Validate] id and email are required")
	}
	return nil
}
