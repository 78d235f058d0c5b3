// Package gateway provides an HTTP client for the remote auth boundary.
package gateway

import (
	"bytes"
	"context"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/ggurbet/onchainsurveys/core"
	"github.com/ggurbet/onchainsurveys/ports"
)

const (
	RegisterPath = "/api/users/register"
	LoginPath    = "/api/users/login"
	LogoutPath   = "/api/users/logout"
	MePath       = "/api/me"
)

// RegisterBody is the wire form of a register call. The challenge travels in the email
// field: for returning users it is the timestamped challenge, not an address.
type RegisterBody struct {
	PublicAddress string `json:"publicAddress"`
	Email         string `json:"email"`
	Signature     string `json:"signature,omitempty"`
}

// LoginBody is the wire form of a known-key login.
type LoginBody struct {
	ActivePublicKey string `json:"activePublicKey"`
}

// MeResponse is returned by GET /api/me.
type MeResponse struct {
	UserID    string `json:"userId"`
	PublicKey string `json:"publicKey"`
}

// Client talks to the auth server.
type Client struct {
	baseURL    string
	httpClient *http.Client
}

// NewClient creates an auth gateway client.
func NewClient(baseURL string, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{
			Timeout: timeout,
		},
	}
}

var _ ports.AuthGateway = (*Client)(nil)

// RegisterOrAuthenticate exchanges a verified challenge for a session token.
func (c *Client) RegisterOrAuthenticate(ctx context.Context, req ports.RegisterRequest) (core.RegistrationResult, error) {
	body := RegisterBody{
		PublicAddress: req.PublicKeyHex,
		Email:         req.Message,
	}
	if len(req.Signature) > 0 {
		body.Signature = hex.EncodeToString(req.Signature)
	}

	var result core.RegistrationResult
	if err := c.post(ctx, RegisterPath, body, &result); err != nil {
		return core.RegistrationResult{}, err
	}
	return result, nil
}

// LoginWithKnownKey exchanges a previously registered key for a session token.
func (c *Client) LoginWithKnownKey(ctx context.Context, publicKeyHex string) (core.LoginResult, error) {
	var result core.LoginResult
	if err := c.post(ctx, LoginPath, LoginBody{ActivePublicKey: publicKeyHex}, &result); err != nil {
		return core.LoginResult{}, err
	}
	return result, nil
}

// Logout revokes token on the server.
func (c *Client) Logout(ctx context.Context, token string) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+LogoutPath, nil)
	if err != nil {
		return fmt.Errorf("building logout request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+token)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("POST %s: %w", LogoutPath, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return c.parseError(resp)
	}
	return nil
}

// Me returns the identity behind token.
func (c *Client) Me(ctx context.Context, token string) (*MeResponse, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+MePath, nil)
	if err != nil {
		return nil, fmt.Errorf("building me request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+token)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("GET %s: %w", MePath, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, c.parseError(resp)
	}

	var result MeResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, fmt.Errorf("decoding me response: %w", err)
	}
	return &result, nil
}

// post sends body and decodes the success-flagged answer. Rejections with a JSON body are
// returned as results; only transport failures and undecodable answers are errors.
func (c *Client) post(ctx context.Context, path string, body, out any) error {
	payload, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("encoding %s request: %w", path, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("building %s request: %w", path, err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("POST %s: %w", path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= http.StatusInternalServerError {
		return c.parseError(resp)
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decoding %s response (status %d): %w", path, resp.StatusCode, err)
	}
	return nil
}

func (c *Client) parseError(resp *http.Response) error {
	body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))

	var errResp struct {
		Error   string `json:"error"`
		Message string `json:"message"`
	}
	if json.Unmarshal(body, &errResp) == nil {
		if errResp.Error != "" {
			return fmt.Errorf("auth server error (%d): %s", resp.StatusCode, errResp.Error)
		}
		if errResp.Message != "" {
			return fmt.Errorf("auth server error (%d): %s", resp.StatusCode, errResp.Message)
		}
	}
	return fmt.Errorf("auth server error (%d): %s", resp.StatusCode, strings.TrimSpace(string(body)))
}
