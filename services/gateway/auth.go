package gateway

import (
	"context"
	"net/http"

	"github.com/pkg/errors"

	"github.com/trezcool/masomo-portal/core"
	"github.com/trezcool/masomo-portal/core/session"
	"github.com/trezcool/masomo-portal/core/user"
)

var _ session.Authenticator = (*Client)(nil)

type (
	wireUser struct {
		ID     string `json:"id"`
		Name   string `json:"name"`
		Email  string `json:"email"`
		Role   string `json:"role"`
		Campus string `json:"campus"`
	}

	loginRequest struct {
		Email    string `json:"email"`
		Password string `json:"password"`
	}

	loginResponse struct {
		User  wireUser `json:"user"`
		Token string   `json:"token"`
	}

	meResponse struct {
		User wireUser `json:"user"`
	}
)

func (wu wireUser) user() (user.User, error) {
	role, err := user.ParseRole(wu.Role)
	if err != nil {
		return user.User{}, err
	}
	return user.User{ID: wu.ID, Name: wu.Name, Email: wu.Email, Role: role, Campus: wu.Campus}, nil
}

// Login implements session.Authenticator: POST /auth/login.
func (c *Client) Login(ctx context.Context, email, password string) (user.User, string, error) {
	var res loginResponse
	err := c.WithTokens(nil).Post(ctx, "/auth/login", &Options{Body: loginRequest{Email: email, Password: password}}, &res)
	if err != nil {
		var apiErr *APIError
		if errors.As(err, &apiErr) {
			switch apiErr.Status {
			case http.StatusBadRequest, http.StatusUnauthorized, http.StatusForbidden, http.StatusNotFound, http.StatusUnprocessableEntity:
				return user.User{}, "", core.NewRequestError(core.ErrInvalidCredentials, apiErr.Message, apiErr)
			}
		}
		return user.User{}, "", errors.Wrap(err, "logging in")
	}
	if res.Token == "" {
		return user.User{}, "", errors.New("login response carries no token")
	}
	usr, err := res.User.user()
	if err != nil {
		msg := "Your account role (" + res.User.Role + ") cannot use this portal."
		return user.User{}, "", core.NewRequestError(core.ErrInvalidCredentials, msg, err)
	}
	return usr, res.Token, nil
}

// Me implements session.Authenticator: GET /auth/me with token as bearer.
func (c *Client) Me(ctx context.Context, token string) (user.User, error) {
	var res meResponse
	if err := c.WithTokens(session.NewMemoryTokens(token)).Get(ctx, "/auth/me", nil, &res); err != nil {
		if errors.Is(err, core.ErrAuthExpired) {
			return user.User{}, core.NewRequestError(core.ErrAuthExpired, "Your session has expired. Please sign in again.", err)
		}
		return user.User{}, errors.Wrap(err, "fetching profile")
	}
	usr, err := res.User.user()
	if err != nil {
		// a role this portal does not know cannot be given a session
		return user.User{}, core.NewRequestError(core.ErrAuthExpired, "", err)
	}
	return usr, nil
}

// RequestPasswordReset asks the backend to email a reset link. POST /auth/forgot-password.
func (c *Client) RequestPasswordReset(ctx context.Context, email string) error {
	err := c.WithTokens(nil).Post(ctx, "/auth/forgot-password", &Options{Body: map[string]string{"email": email}}, nil)
	return errors.Wrap(err, "requesting password reset")
}
