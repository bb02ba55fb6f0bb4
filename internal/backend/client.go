// Package backend is a client for the stats REST API that owns groups,
// donations and token verification.
package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/singleflight"

	"github.com/blikh/co2-dashboard/internal/group"
	"github.com/blikh/co2-dashboard/internal/metrics"
	"github.com/blikh/co2-dashboard/internal/session"
)

// ErrUnauthorized is matched by StatusErrors for 401 and 403 responses.
var ErrUnauthorized = errors.New("backend: unauthorized")

// StatusError is returned for non-2xx responses.
type StatusError struct {
	Endpoint string
	Code     int
	Body     string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("backend: %s: status %d, body: %s", e.Endpoint, e.Code, e.Body)
}

func (e *StatusError) Is(target error) bool {
	return target == ErrUnauthorized && (e.Code == http.StatusUnauthorized || e.Code == http.StatusForbidden)
}

const maxErrorBody = 512

// Client talks to the backend API on behalf of a signed-in user.
type Client struct {
	baseURL string
	client  *http.Client
	logger  *slog.Logger

	verifies singleflight.Group
}

// NewClient creates a client for the API rooted at baseURL.
func NewClient(baseURL string, timeout time.Duration, logger *slog.Logger) *Client {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		client:  &http.Client{Timeout: timeout},
		logger:  logger,
	}
}

// BaseURL returns the API root.
func (c *Client) BaseURL() string {
	return c.baseURL
}

type verifyResponse struct {
	UserTelegramID flexString `json:"userTelegramId"`
	UserID         flexString `json:"userId"`
	UserName       flexString `json:"userName"`
	UserNick       flexString `json:"userNick"`
	JWT            flexString `json:"jwt"`
}

// Verify exchanges token for the identity it was issued to via
// GET /verify-jwt. Concurrent calls for the same token share one request.
func (c *Client) Verify(ctx context.Context, token string) (session.Identity, error) {
	ch := c.verifies.DoChan(token, func() (any, error) {
		// Detached so one caller going away does not fail the others;
		// the http.Client timeout still bounds the call.
		var resp verifyResponse
		err := c.get(context.WithoutCancel(ctx), "verify", "/verify-jwt", token, &resp)
		return resp, err
	})

	select {
	case <-ctx.Done():
		return session.Identity{}, ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return session.Identity{}, res.Err
		}
		resp := res.Val.(verifyResponse)
		return session.Identity{
			TelegramID: string(resp.UserTelegramID),
			UserID:     string(resp.UserID),
			UserName:   string(resp.UserName),
			UserNick:   string(resp.UserNick),
			JWT:        string(resp.JWT),
		}, nil
	}
}

// ListGroups returns the groups visible to the token's user via GET /groups.
// Both a bare array and an object with a "groups" field are accepted.
func (c *Client) ListGroups(ctx context.Context, token string) ([]group.Group, error) {
	var raw json.RawMessage
	if err := c.get(ctx, "groups", "/groups", token, &raw); err != nil {
		return nil, err
	}

	raw = bytes.TrimSpace(raw)
	if len(raw) > 0 && raw[0] == '{' {
		var wrapped struct {
			Groups []group.Group `json:"groups"`
		}
		if err := json.Unmarshal(raw, &wrapped); err != nil {
			return nil, fmt.Errorf("backend: groups: parsing response: %w", err)
		}
		return wrapped.Groups, nil
	}

	var groups []group.Group
	if err := json.Unmarshal(raw, &groups); err != nil {
		return nil, fmt.Errorf("backend: groups: parsing response: %w", err)
	}
	return groups, nil
}

// GetGroup fetches one group via GET /groups/{id}.
func (c *Client) GetGroup(ctx context.Context, token, groupID string) (group.Group, error) {
	var g group.Group
	if err := c.get(ctx, "group", "/groups/"+url.PathEscape(groupID), token, &g); err != nil {
		return group.Group{}, err
	}
	return g, nil
}

func (c *Client) get(ctx context.Context, endpoint, path, token string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return fmt.Errorf("backend: %s: creating request: %w", endpoint, err)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("X-Request-ID", uuid.NewString())
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	start := time.Now()
	resp, err := c.client.Do(req)
	metrics.BackendRequestDuration.WithLabelValues(endpoint).Observe(time.Since(start).Seconds())
	if err != nil {
		metrics.BackendRequests.WithLabelValues(endpoint, "error").Inc()
		return fmt.Errorf("backend: %s: %w", endpoint, err)
	}
	defer resp.Body.Close()
	metrics.BackendRequests.WithLabelValues(endpoint, strconv.Itoa(resp.StatusCode)).Inc()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		c.logger.Debug("backend: request rejected",
			"endpoint", endpoint, "status", resp.StatusCode, "request_id", req.Header.Get("X-Request-ID"))
		return &StatusError{Endpoint: endpoint, Code: resp.StatusCode, Body: strings.TrimSpace(string(body))}
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("backend: %s: parsing response: %w", endpoint, err)
	}
	return nil
}

// flexString decodes a JSON string or number into a string. Telegram ids
// arrive as numbers from some backend versions.
type flexString string

func (f *flexString) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if bytes.Equal(data, []byte("null")) {
		*f = ""
		return nil
	}
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*f = flexString(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return err
	}
	*f = flexString(n.String())
	return nil
}
