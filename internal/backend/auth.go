package backend

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"

	"go.uber.org/zap"

	"github.com/jobmatch/jobmatch/internal/apierr"
	"github.com/jobmatch/jobmatch/internal/session"
)

// Login exchanges username and password for a token pair and activates the session.
func (c *Client) Login(ctx context.Context, username, password string) (*Tokens, error) {
	username = strings.TrimSpace(username)
	if username == "" {
		return nil, &apierr.ValidationError{Field: "username", Reason: "is required"}
	}
	if password == "" {
		return nil, &apierr.ValidationError{Field: "password", Reason: "is required"}
	}

	form := url.Values{}
	form.Set("username", username)
	form.Set("password", password)

	var tokens Tokens
	if err := c.postForm(ctx, loginPath, form, &tokens); err != nil {
		return nil, fmt.Errorf("login: %w", err)
	}

	if err := c.session.Login(ctx, session.Credential{
		AccessToken:  tokens.AccessToken,
		RefreshToken: tokens.RefreshToken,
	}); err != nil {
		return nil, fmt.Errorf("login: %w", err)
	}

	c.logger.Info("logged in", zap.String("username", username))
	return &tokens, nil
}

// Logout forgets the stored credential. The backend keeps no server-side session.
func (c *Client) Logout(ctx context.Context) error {
	return c.session.Logout(ctx)
}

// Register creates a new account.
func (c *Client) Register(ctx context.Context, email, fullName, password string) (*Registration, error) {
	switch {
	case strings.TrimSpace(email) == "":
		return nil, &apierr.ValidationError{Field: "email", Reason: "is required"}
	case strings.TrimSpace(fullName) == "":
		return nil, &apierr.ValidationError{Field: "full_name", Reason: "is required"}
	case password == "":
		return nil, &apierr.ValidationError{Field: "password", Reason: "is required"}
	}

	payload := map[string]string{
		"email":     strings.TrimSpace(email),
		"full_name": strings.TrimSpace(fullName),
		"password":  password,
	}

	var reg Registration
	if err := c.postJSON(ctx, registerPath, payload, false, &reg); err != nil {
		return nil, fmt.Errorf("register: %w", err)
	}

	return &reg, nil
}

// RefreshToken implements session.Refresher.
func (c *Client) RefreshToken(ctx context.Context, refreshToken string) (session.Credential, error) {
	payload := map[string]string{"refresh_token": refreshToken}

	var tokens Tokens
	if err := c.postJSON(ctx, refreshPath, payload, false, &tokens); err != nil {
		return session.Credential{}, err
	}

	if tokens.AccessToken == "" {
		return session.Credential{}, errors.New("refresh response has no access token")
	}

	return session.Credential{
		AccessToken:  tokens.AccessToken,
		RefreshToken: tokens.RefreshToken,
	}, nil
}

// Me returns the profile of the logged in user.
func (c *Client) Me(ctx context.Context) (*User, error) {
	var user User
	if err := c.getJSON(ctx, mePath, nil, &user); err != nil {
		return nil, fmt.Errorf("get current user: %w", err)
	}

	return &user, nil
}
