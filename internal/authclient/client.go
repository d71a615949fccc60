// Package authclient talks to the storefront auth backend over JSON/HTTP.
package authclient

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/tidwall/gjson"

	"storefront/internal/models"
)

const requestIDHeader = "X-Request-Id"

// APIError is a non-2xx answer from the backend. Message is the server's
// own text when the body carried one.
type APIError struct {
	Status  int
	Message string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("auth backend returned %d: %s", e.Status, e.Message)
}

// AuthResponse is the body of every successful login/register call.
type AuthResponse struct {
	Token string      `json:"token"`
	User  models.User `json:"user"`
}

type Client struct {
	baseURL    string
	httpClient *http.Client
	log        zerolog.Logger
}

func New(baseURL string, timeout time.Duration, log zerolog.Logger) *Client {
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	return &Client{
		baseURL: strings.TrimSuffix(baseURL, "/"),
		httpClient: &http.Client{
			Timeout: timeout,
		},
		log: log.With().Str("component", "authclient").Logger(),
	}
}

type passwordRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
	Name     string `json:"name,omitempty"`
}

type googleRequest struct {
	Email    string `json:"email"`
	Name     string `json:"name"`
	GoogleID string `json:"googleId"`
	Picture  string `json:"picture,omitempty"`
}

func (c *Client) Login(ctx context.Context, email, password string) (AuthResponse, error) {
	return c.authenticate(ctx, "/api/auth/login", passwordRequest{Email: email, Password: password})
}

// Register creates an account. An empty name falls back to the local part
// of the email address.
func (c *Client) Register(ctx context.Context, email, password, name string) (AuthResponse, error) {
	if name == "" {
		name, _, _ = strings.Cut(email, "@")
	}
	return c.authenticate(ctx, "/api/auth/register", passwordRequest{Email: email, Password: password, Name: name})
}

func (c *Client) GoogleLogin(ctx context.Context, profile GoogleProfile) (AuthResponse, error) {
	return c.authenticate(ctx, "/api/auth/google-login", profile.request())
}

func (c *Client) GoogleRegister(ctx context.Context, profile GoogleProfile) (AuthResponse, error) {
	return c.authenticate(ctx, "/api/auth/google-register", profile.request())
}

// Me returns the account behind token.
func (c *Client) Me(ctx context.Context, token string) (models.User, error) {
	resp, err := c.doRequest(ctx, http.MethodGet, "/api/auth/me", token, nil)
	if err != nil {
		return models.User{}, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return models.User{}, fmt.Errorf("read response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return models.User{}, parseError(resp.StatusCode, body)
	}

	var out struct {
		User models.User `json:"user"`
	}
	if err := json.Unmarshal(body, &out); err != nil {
		return models.User{}, fmt.Errorf("decode response: %w", err)
	}
	return out.User, nil
}

func (c *Client) authenticate(ctx context.Context, path string, payload any) (AuthResponse, error) {
	resp, err := c.doRequest(ctx, http.MethodPost, path, "", payload)
	if err != nil {
		return AuthResponse{}, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return AuthResponse{}, fmt.Errorf("read response: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return AuthResponse{}, parseError(resp.StatusCode, body)
	}

	var out AuthResponse
	if err := json.Unmarshal(body, &out); err != nil {
		return AuthResponse{}, fmt.Errorf("decode response: %w", err)
	}
	if out.Token == "" || out.User.ID == "" {
		return AuthResponse{}, fmt.Errorf("incomplete auth response from %s", path)
	}
	return out, nil
}

func (c *Client) doRequest(ctx context.Context, method, path, token string, payload any) (*http.Response, error) {
	var body io.Reader
	if payload != nil {
		raw, err := json.Marshal(payload)
		if err != nil {
			return nil, fmt.Errorf("encode request: %w", err)
		}
		body = bytes.NewReader(raw)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	requestID := uuid.NewString()
	req.Header.Set(requestIDHeader, requestID)

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%s %s: %w", method, path, err)
	}

	c.log.Debug().
		Str("method", method).
		Str("path", path).
		Int("status", resp.StatusCode).
		Dur("latency", time.Since(start)).
		Str("request_id", requestID).
		Msg("auth request")

	return resp, nil
}

func parseError(status int, body []byte) *APIError {
	msg := ""
	if gjson.ValidBytes(body) {
		for _, field := range []string{"message", "error"} {
			if v := gjson.GetBytes(body, field); v.Exists() && v.String() != "" {
				msg = v.String()
				break
			}
		}
	}
	if msg == "" {
		msg = http.StatusText(status)
	}
	return &APIError{Status: status, Message: msg}
}
