package apiclient

import (
	"context"
	"net/http"

	"github.com/Bernard-Murphy/dbay-public/internal/domain"
)

type LoginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type RegisterRequest struct {
	Username    string `json:"username"`
	DisplayName string `json:"display_name"`
	Email       string `json:"email"`
	Password    string `json:"password"`
	Bio         string `json:"bio"`
	AvatarURL   string `json:"avatar_url,omitempty"`
}

// AuthResponse is returned by login and registration.
type AuthResponse struct {
	Token string      `json:"token"`
	User  domain.User `json:"user"`
}

type UpdateProfileRequest struct {
	DisplayName *string `json:"display_name,omitempty"`
	AvatarURL   *string `json:"avatar_url,omitempty"`
	Bio         *string `json:"bio,omitempty"`
}

type PasswordResetRequest struct {
	Username string `json:"username,omitempty"`
	Email    string `json:"email"`
}

func (c *Client) Login(ctx context.Context, req LoginRequest) (*AuthResponse, error) {
	var out AuthResponse
	if err := c.post(ctx, ServiceUser, "login", "/user/login/", req, &out); err != nil {
		return nil, err
	}
	if out.Token == "" {
		return nil, &Error{Service: ServiceUser, Op: "login", Status: http.StatusUnauthorized, Message: "Invalid credentials"}
	}
	return &out, nil
}

func (c *Client) Register(ctx context.Context, req RegisterRequest) (*AuthResponse, error) {
	var out AuthResponse
	if err := c.post(ctx, ServiceUser, "register", "/user/register/", req, &out); err != nil {
		return nil, err
	}
	if out.Token == "" {
		return nil, &Error{Service: ServiceUser, Op: "register", Message: "registration returned no token"}
	}
	return &out, nil
}

func (c *Client) Me(ctx context.Context) (*domain.User, error) {
	var out domain.User
	if err := c.get(ctx, ServiceUser, "me", "/user/users/me/", nil, &out); err != nil {
		return nil, err
	}
	if out.ID == "" {
		return nil, &Error{Service: ServiceUser, Op: "me", Status: http.StatusUnauthorized, Message: "no user in response"}
	}
	return &out, nil
}

// GetUser fetches the public profile of another user.
func (c *Client) GetUser(ctx context.Context, id domain.ID) (*domain.User, error) {
	var out domain.User
	if err := c.get(ctx, ServiceUser, "get_user", pathf("/user/users/%s/", id), nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) UpdateProfile(ctx context.Context, req UpdateProfileRequest) (*domain.User, error) {
	var out domain.User
	if err := c.do(ctx, ServiceUser, "update_profile", http.MethodPatch, "/user/users/me/", nil, req, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) RequestPasswordReset(ctx context.Context, req PasswordResetRequest) error {
	return c.post(ctx, ServiceUser, "password_reset", "/user/password-reset/", req, nil)
}
