// Package identity signs visitors in against the user service or Cognito.
package identity

import (
	"context"
	"errors"

	"github.com/Bernard-Murphy/dbay-public/internal/apiclient"
	"github.com/Bernard-Murphy/dbay-public/internal/domain"
	"github.com/Bernard-Murphy/dbay-public/internal/platform/logger"
	"go.uber.org/zap"
)

var ErrInvalidCredentials = errors.New("invalid credentials")

// Result is a successful sign-in or registration.
type Result struct {
	User        domain.User
	Token       string
	AccessToken string
	Demo        bool
}

// Provider authenticates users. Register always goes through the user
// service; only sign-in and sign-out differ between providers.
type Provider interface {
	SignIn(ctx context.Context, username, password string) (*Result, error)
	Register(ctx context.Context, req apiclient.RegisterRequest) (*Result, error)
	SignOut(ctx context.Context, sess *domain.Session) error
	Name() string
}

// UserService is the part of the API client the providers need.
type UserService interface {
	Login(ctx context.Context, req apiclient.LoginRequest) (*apiclient.AuthResponse, error)
	Register(ctx context.Context, req apiclient.RegisterRequest) (*apiclient.AuthResponse, error)
}

// DevProvider uses the user service's dev login and header-based identity.
type DevProvider struct {
	users  UserService
	logger *logger.Logger
}

func NewDevProvider(users UserService, log *logger.Logger) *DevProvider {
	return &DevProvider{users: users, logger: log.Named("identity.dev")}
}

func (p *DevProvider) Name() string { return "dev" }

func (p *DevProvider) SignIn(ctx context.Context, username, password string) (*Result, error) {
	resp, err := p.users.Login(ctx, apiclient.LoginRequest{Username: username, Password: password})
	if err != nil {
		if errors.Is(err, apiclient.ErrUnauthorized) {
			return nil, ErrInvalidCredentials
		}
		return nil, err
	}
	user := resp.User
	if user.Username == "" {
		user.Username = username
	}
	if user.ID == "" {
		return nil, errors.New("login response carried no user id")
	}
	return &Result{User: user, Token: resp.Token}, nil
}

func (p *DevProvider) Register(ctx context.Context, req apiclient.RegisterRequest) (*Result, error) {
	return register(ctx, p.users, req)
}

func (p *DevProvider) SignOut(context.Context, *domain.Session) error { return nil }

func register(ctx context.Context, users UserService, req apiclient.RegisterRequest) (*Result, error) {
	resp, err := users.Register(ctx, req)
	if err != nil {
		return nil, err
	}
	user := resp.User
	if user.Username == "" {
		user.Username = req.Username
	}
	if user.DisplayName == "" {
		user.DisplayName = req.DisplayName
	}
	if user.ID == "" {
		return nil, errors.New("registration response carried no user id")
	}
	return &Result{User: user, Token: resp.Token}, nil
}

// DemoFallback wraps a provider and fabricates a local session when the
// backend cannot be reached. It exists for offline demos only and is never
// enabled unless configured explicitly.
type DemoFallback struct {
	Provider
	logger *logger.Logger
}

func WithDemoFallback(p Provider, log *logger.Logger) *DemoFallback {
	return &DemoFallback{Provider: p, logger: log.Named("identity.demo")}
}

func (d *DemoFallback) SignIn(ctx context.Context, username, password string) (*Result, error) {
	res, err := d.Provider.SignIn(ctx, username, password)
	if err == nil || errors.Is(err, ErrInvalidCredentials) {
		return res, err
	}
	d.logger.Warn("sign-in failed, issuing demo session", zap.String("username", username), zap.Error(err))
	return demoResult(username, ""), nil
}

func (d *DemoFallback) Register(ctx context.Context, req apiclient.RegisterRequest) (*Result, error) {
	res, err := d.Provider.Register(ctx, req)
	if err == nil {
		return res, nil
	}
	d.logger.Warn("registration failed, issuing demo session", zap.String("username", req.Username), zap.Error(err))
	return demoResult(req.Username, req.DisplayName), nil
}

func demoResult(username, displayName string) *Result {
	return &Result{
		User:  domain.User{ID: "demo-id", Username: username, DisplayName: displayName},
		Token: "demo-token",
		Demo:  true,
	}
}
