package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	authkit "github.com/vantagecms/authkit"
)

const (
	// DefaultLoginPath is an exported constant or variable used by the backend client.
	DefaultLoginPath = "/auth/login"
	// DefaultRenewPath is an exported constant or variable used by the backend client.
	DefaultRenewPath = "/auth/refresh"
	// DefaultLogoutPath is an exported constant or variable used by the backend client.
	DefaultLogoutPath = "/auth/logout"
)

const maxResponseBody = 1 << 20

// Config defines a public type used by authkit APIs.
//
// Config instances are intended to be configured during initialization and then treated as immutable unless documented otherwise.
type Config struct {
	// BaseURL is the backend origin, e.g. "https://api.vantage.example".
	// Required.
	BaseURL string
	// HTTPClient is the transport used for all calls. Defaults to a client
	// with a 30s timeout.
	HTTPClient *http.Client
	// LoginPath, RenewPath, and LogoutPath override the endpoint paths.
	LoginPath  string
	RenewPath  string
	LogoutPath string
}

// Client defines a public type used by authkit APIs.
//
// Client instances are intended to be configured during initialization and then treated as immutable unless documented otherwise.
type Client struct {
	base       *url.URL
	httpClient *http.Client
	loginPath  string
	renewPath  string
	logoutPath string
}

// New describes the new operation and its observable behavior.
//
// New may return an error when input validation, dependency calls, or security checks fail.
// New does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func New(cfg Config) (*Client, error) {
	if cfg.BaseURL == "" {
		return nil, errors.New("BaseURL required")
	}
	base, err := url.Parse(cfg.BaseURL)
	if err != nil {
		return nil, fmt.Errorf("invalid BaseURL: %w", err)
	}
	if base.Scheme == "" || base.Host == "" {
		return nil, errors.New("BaseURL must be absolute")
	}

	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 30 * time.Second}
	}

	c := &Client{
		base:       base,
		httpClient: httpClient,
		loginPath:  cfg.LoginPath,
		renewPath:  cfg.RenewPath,
		logoutPath: cfg.LogoutPath,
	}
	if c.loginPath == "" {
		c.loginPath = DefaultLoginPath
	}
	if c.renewPath == "" {
		c.renewPath = DefaultRenewPath
	}
	if c.logoutPath == "" {
		c.logoutPath = DefaultLogoutPath
	}

	return c, nil
}

// AuthExemptPaths returns the endpoint paths whose own 401 responses must not
// be interpreted as "the current session expired". Feed this into the request
// pipeline's exempt set.
func (c *Client) AuthExemptPaths() []string {
	return []string{c.loginPath, c.renewPath, c.logoutPath}
}

type userBody struct {
	ID    string `json:"id"`
	Email string `json:"email"`
	Name  string `json:"name,omitempty"`
}

type grantBody struct {
	User         userBody `json:"user"`
	AccessToken  string   `json:"access_token"`
	RefreshToken string   `json:"refresh_token"`
	Permissions  []string `json:"permissions,omitempty"`
}

type loginBody struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type renewBody struct {
	RefreshToken string `json:"refresh_token"`
}

// Login describes the login operation and its observable behavior.
//
// Login may return an error when input validation, dependency calls, or security checks fail.
// Login does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (c *Client) Login(ctx context.Context, email, password string) (*authkit.Grant, error) {
	if strings.TrimSpace(email) == "" || password == "" {
		return nil, authkit.ErrInvalidCredentials
	}

	resp, err := c.post(ctx, c.loginPath, "", loginBody{Email: email, Password: password})
	if err != nil {
		return nil, errors.Join(authkit.ErrTransient, err)
	}
	defer drain(resp)

	switch {
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		return nil, authkit.ErrInvalidCredentials
	case resp.StatusCode < 200 || resp.StatusCode > 299:
		return nil, errors.Join(authkit.ErrTransient, fmt.Errorf("login: unexpected status %d", resp.StatusCode))
	}

	return decodeGrant(resp)
}

// Renew describes the renew operation and its observable behavior.
//
// Renew may return an error when input validation, dependency calls, or security checks fail.
// Renew does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (c *Client) Renew(ctx context.Context, refreshToken string) (*authkit.Grant, error) {
	if refreshToken == "" {
		return nil, authkit.ErrNoRefreshToken
	}

	resp, err := c.post(ctx, c.renewPath, "", renewBody{RefreshToken: refreshToken})
	if err != nil {
		return nil, errors.Join(authkit.ErrTransient, err)
	}
	defer drain(resp)

	switch {
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		return nil, authkit.ErrAuthRejected
	case resp.StatusCode < 200 || resp.StatusCode > 299:
		return nil, errors.Join(authkit.ErrTransient, fmt.Errorf("renew: unexpected status %d", resp.StatusCode))
	}

	return decodeGrant(resp)
}

// Logout describes the logout operation and its observable behavior.
//
// Logout may return an error when input validation, dependency calls, or security checks fail.
// Logout does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (c *Client) Logout(ctx context.Context, accessToken string) error {
	resp, err := c.post(ctx, c.logoutPath, accessToken, struct{}{})
	if err != nil {
		return errors.Join(authkit.ErrTransient, err)
	}
	defer drain(resp)

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return errors.Join(authkit.ErrTransient, fmt.Errorf("logout: unexpected status %d", resp.StatusCode))
	}
	return nil
}

func (c *Client) post(ctx context.Context, path, bearer string, body any) (*http.Response, error) {
	payload, err := json.Marshal(body)
	if err != nil {
		return nil, err
	}

	target := c.base.JoinPath(path)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, target.String(), bytes.NewReader(payload))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	if bearer != "" {
		req.Header.Set("Authorization", "Bearer "+bearer)
	}

	return c.httpClient.Do(req)
}

func decodeGrant(resp *http.Response) (*authkit.Grant, error) {
	var body grantBody
	if err := json.NewDecoder(io.LimitReader(resp.Body, maxResponseBody)).Decode(&body); err != nil {
		return nil, errors.Join(authkit.ErrTransient, fmt.Errorf("decode grant: %w", err))
	}
	if body.AccessToken == "" || body.RefreshToken == "" {
		return nil, errors.Join(authkit.ErrTransient, errors.New("grant missing token pair"))
	}

	return &authkit.Grant{
		User: authkit.User{
			ID:    body.User.ID,
			Email: body.User.Email,
			Name:  body.User.Name,
		},
		AccessToken:  body.AccessToken,
		RefreshToken: body.RefreshToken,
		Permissions:  body.Permissions,
	}, nil
}

func drain(resp *http.Response) {
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, maxResponseBody))
	_ = resp.Body.Close()
}
