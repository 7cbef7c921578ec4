// ABOUTME: HTTP client for the media server's authentication API
// ABOUTME: Implements login and the fetch-current-user probe with typed failures

package remote

import (
	"bytes"
	"context"
	"crypto/tls"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"time"

	"github.com/bloomapp/bloom/internal/models"
)

const (
	clientName    = "Bloom"
	clientVersion = "1.0.0"
)

// LoginResult is the outcome of a successful authentication.
type LoginResult struct {
	AccessToken string
	UserID      string
	Username    string
}

// User is the subset of the server's user record the session core needs.
type User struct {
	ID   string `json:"Id"`
	Name string `json:"Name"`
}

// AuthClient is the remote collaborator consumed by the session manager. The
// manager only interprets success, HTTP status and connection failures; wire
// details stay here.
type AuthClient interface {
	Login(ctx context.Context, serverURL, username, password string) (*LoginResult, error)
	FetchUser(ctx context.Context, serverURL, token, userID string) (*User, int, error)
}

// DeviceSource provides the identity presented in the authorization header.
// Read per request so a rotated device id takes effect immediately.
type DeviceSource interface {
	Identity() models.DeviceIdentity
}

// Client talks to a Bloom/Jellyfin-style media server.
type Client struct {
	device     DeviceSource
	httpClient *http.Client
}

// New creates a client. TLS verification can be disabled with
// BLOOM_SKIP_SSL_VALIDATION=true; BLOOM_ALL_PROXY routes requests through an
// SSH SOCKS5 proxy.
func New(device DeviceSource) *Client {
	tlsConfig := &tls.Config{}
	if os.Getenv("BLOOM_SKIP_SSL_VALIDATION") == "true" {
		tlsConfig.InsecureSkipVerify = true
	}

	transport := &http.Transport{
		TLSClientConfig:     tlsConfig,
		TLSHandshakeTimeout: 30 * time.Second,
	}

	if allProxy := os.Getenv("BLOOM_ALL_PROXY"); allProxy != "" {
		dialer, err := newSOCKS5Dialer(allProxy)
		if err != nil {
			slog.Warn("Ignoring BLOOM_ALL_PROXY", "error", err)
		} else {
			transport.DialContext = dialer.DialContext
		}
	}

	return &Client{
		device: device,
		httpClient: &http.Client{
			Timeout:   30 * time.Second,
			Transport: transport,
		},
	}
}

// SetHTTPClient allows overriding the HTTP client (useful for testing)
func (c *Client) SetHTTPClient(client *http.Client) {
	c.httpClient = client
}

// authHeader builds the MediaBrowser identity header the server requires on
// every authentication-related request.
func (c *Client) authHeader() string {
	identity := c.device.Identity()
	return fmt.Sprintf("MediaBrowser Client=%q, Device=%q, DeviceId=%q, Version=%q",
		clientName, identity.Name, identity.ID, clientVersion)
}

type authenticateRequest struct {
	Username string `json:"Username"`
	Pw       string `json:"Pw"`
}

type authenticateResponse struct {
	User        User   `json:"User"`
	AccessToken string `json:"AccessToken"`
	ServerID    string `json:"ServerId"`
}

// Login authenticates with username and password. A non-OK status comes back
// as *StatusError; unreachable servers come back wrapping ErrConnection.
func (c *Client) Login(ctx context.Context, serverURL, username, password string) (*LoginResult, error) {
	body, err := json.Marshal(authenticateRequest{Username: username, Pw: password})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal login request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, serverURL+"/Users/AuthenticateByName", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", c.authHeader())

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, c.handleRequestError(ctx, serverURL, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, &StatusError{Code: resp.StatusCode}
	}

	var auth authenticateResponse
	if err := json.NewDecoder(resp.Body).Decode(&auth); err != nil {
		return nil, fmt.Errorf("invalid response from server: %w", err)
	}
	if auth.AccessToken == "" || auth.User.ID == "" {
		return nil, fmt.Errorf("server response missing token or user id")
	}

	return &LoginResult{
		AccessToken: auth.AccessToken,
		UserID:      auth.User.ID,
		Username:    auth.User.Name,
	}, nil
}

// FetchUser performs the lightweight "who am I" probe. The returned status
// is meaningful whenever err is nil; callers treat anything but 200 as an
// invalid token and feed 401 into the expiry state machine.
func (c *Client) FetchUser(ctx context.Context, serverURL, token, userID string) (*User, int, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, serverURL+"/Users/"+userID, nil)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Authorization", c.authHeader())
	req.Header.Set("X-Emby-Token", token)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, 0, c.handleRequestError(ctx, serverURL, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, resp.StatusCode, nil
	}

	var user User
	if err := json.NewDecoder(resp.Body).Decode(&user); err != nil {
		return nil, resp.StatusCode, fmt.Errorf("invalid response from server: %w", err)
	}
	return &user, resp.StatusCode, nil
}

// handleRequestError converts transport failures to user-facing errors,
// marking reachability problems with ErrConnection.
func (c *Client) handleRequestError(ctx context.Context, serverURL string, err error) error {
	if ctx.Err() == context.Canceled {
		return fmt.Errorf("request canceled")
	}
	if ctx.Err() == context.DeadlineExceeded {
		return fmt.Errorf("%w: request timed out", ErrConnection)
	}
	return fmt.Errorf("%w: cannot reach server at %s: %v", ErrConnection, serverURL, err)
}
