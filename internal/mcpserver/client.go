package mcpserver

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"
)

// Config holds the configuration for connecting to the Continuum service.
type Config struct {
	APIURL      string // Base URL, e.g. "http://localhost:8080"
	AdminSecret string // Optional; required only for the flag_user tool
}

// ContinuumClient is a pure HTTP client for the Continuum API.
type ContinuumClient struct {
	cfg        Config
	httpClient *http.Client
}

// NewContinuumClient creates a new client for the Continuum service.
func NewContinuumClient(cfg Config) *ContinuumClient {
	return &ContinuumClient{
		cfg: cfg,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

// apiError represents an error response from the service.
type apiError struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}

// doRequest makes an HTTP request to the service and returns the response body.
func (c *ContinuumClient) doRequest(ctx context.Context, method, path string, query url.Values, body any, admin bool) (json.RawMessage, error) {
	u, err := url.Parse(c.cfg.APIURL + path)
	if err != nil {
		return nil, fmt.Errorf("invalid URL: %w", err)
	}
	if query != nil {
		u.RawQuery = query.Encode()
	}

	var reqBody io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("marshal request body: %w", err)
		}
		reqBody = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, u.String(), reqBody)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}

	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if admin {
		req.Header.Set("X-Admin-Secret", c.cfg.AdminSecret)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}

	if resp.StatusCode >= 400 {
		var apiErr apiError
		if json.Unmarshal(respBody, &apiErr) == nil && apiErr.Message != "" {
			return nil, fmt.Errorf("API error (%d): %s", resp.StatusCode, apiErr.Message)
		}
		return nil, fmt.Errorf("API error (%d): %s", resp.StatusCode, string(respBody))
	}

	return json.RawMessage(respBody), nil
}

// Authenticate evaluates one behavioral sample for a user.
func (c *ContinuumClient) Authenticate(ctx context.Context, body map[string]any) (json.RawMessage, error) {
	return c.doRequest(ctx, http.MethodPost, "/v1/authenticate", nil, body, false)
}

// Enroll creates a behavioral profile from an explicit sample batch.
func (c *ContinuumClient) Enroll(ctx context.Context, body map[string]any) (json.RawMessage, error) {
	return c.doRequest(ctx, http.MethodPost, "/v1/enroll", nil, body, false)
}

// GetAssessments returns the audit trail for a user, most recent first.
func (c *ContinuumClient) GetAssessments(ctx context.Context, userID string, limit int) (json.RawMessage, error) {
	q := url.Values{}
	if limit > 0 {
		q.Set("limit", strconv.Itoa(limit))
	}
	path := "/v1/users/" + url.PathEscape(userID) + "/assessments"
	return c.doRequest(ctx, http.MethodGet, path, q, nil, false)
}

// GetProfile returns a user's profile summary (no raw vectors).
func (c *ContinuumClient) GetProfile(ctx context.Context, userID string) (json.RawMessage, error) {
	path := "/v1/users/" + url.PathEscape(userID) + "/profile"
	return c.doRequest(ctx, http.MethodGet, path, nil, nil, false)
}

// GetStats returns service-wide statistics.
func (c *ContinuumClient) GetStats(ctx context.Context) (json.RawMessage, error) {
	return c.doRequest(ctx, http.MethodGet, "/v1/stats", nil, nil, false)
}

// FlagUser marks a user as confirmed fraudulent in the session graph.
// Requires the admin secret.
func (c *ContinuumClient) FlagUser(ctx context.Context, userID string) (json.RawMessage, error) {
	path := "/v1/admin/users/" + url.PathEscape(userID) + "/flag"
	return c.doRequest(ctx, http.MethodPost, path, nil, nil, true)
}
