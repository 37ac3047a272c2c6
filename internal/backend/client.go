package backend

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

	"github.com/marcus/pinmap/internal/models"
)

// Sentinel errors for the failure classes the store cares about.
var (
	// ErrUnreachable wraps transport failures (DNS, refused, timeout).
	ErrUnreachable = errors.New("backend unreachable")
	ErrNotFound    = errors.New("not found")
	// ErrCoordinatesRequired marks a server rejection of a payload's geometry.
	// Replaying the same payload can never succeed.
	ErrCoordinatesRequired = errors.New("coordinates are required")
	// ErrRejected is returned for a 2xx response whose envelope says success=false.
	ErrRejected = errors.New("backend reported failure")
)

// DefaultTimeout bounds a single request when the caller doesn't set one.
const DefaultTimeout = 10 * time.Second

// Client is an HTTP client for the locations API.
type Client struct {
	BaseURL string
	HTTP    *http.Client
}

// New creates a client for baseURL (without the /api suffix).
func New(baseURL string, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &Client{
		BaseURL: strings.TrimRight(baseURL, "/"),
		HTTP:    &http.Client{Timeout: timeout},
	}
}

// LocationBody is the request body for create and update. It carries only
// the fields the API accepts; ids and timestamps are server-owned.
type LocationBody struct {
	Name        string            `json:"name"`
	Category    models.Category   `json:"category"`
	Description string            `json:"description"`
	Address     string            `json:"address"`
	Coordinates models.GeoPoint   `json:"coordinates"`
	Properties  map[string]string `json:"properties,omitempty"`
}

// BodyFor extracts the API body from a location.
func BodyFor(l models.Location) LocationBody {
	return LocationBody{
		Name:        l.Name,
		Category:    l.Category,
		Description: l.Description,
		Address:     l.Address,
		Coordinates: l.Coordinates,
		Properties:  l.Properties,
	}
}

// envelope is the response wrapper used by every API route.
type envelope struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data,omitempty"`
	Error   string          `json:"error,omitempty"`
}

// HealthResponse is the body of GET /health.
type HealthResponse struct {
	Status string `json:"status"`
}

// Health probes the liveness endpoint. Any 2xx means available.
func (c *Client) Health(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.BaseURL+"/health", nil)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	resp, err := c.HTTP.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrUnreachable, err)
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, resp.Body)

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return &APIError{Status: resp.StatusCode, Message: "health check failed"}
	}
	return nil
}

// ListLocations fetches every location from the server.
func (c *Client) ListLocations(ctx context.Context) ([]models.Location, error) {
	var locs []models.Location
	if err := c.do(ctx, http.MethodGet, "/api/locations", nil, &locs); err != nil {
		return nil, err
	}
	return locs, nil
}

// CreateLocation creates a location and returns the server's copy (with its id).
func (c *Client) CreateLocation(ctx context.Context, body LocationBody) (*models.Location, error) {
	var loc models.Location
	if err := c.do(ctx, http.MethodPost, "/api/locations", body, &loc); err != nil {
		return nil, err
	}
	if loc.ID == "" {
		return nil, fmt.Errorf("%w: create response missing id", ErrRejected)
	}
	return &loc, nil
}

// UpdateLocation replaces the server's copy of a location.
func (c *Client) UpdateLocation(ctx context.Context, id string, body LocationBody) (*models.Location, error) {
	var loc models.Location
	if err := c.do(ctx, http.MethodPut, "/api/locations/"+url.PathEscape(id), body, &loc); err != nil {
		return nil, err
	}
	return &loc, nil
}

// DeleteLocation deletes a location on the server.
func (c *Client) DeleteLocation(ctx context.Context, id string) error {
	return c.do(ctx, http.MethodDelete, "/api/locations/"+url.PathEscape(id), nil, nil)
}

// APIError is a non-success HTTP response.
type APIError struct {
	Status  int
	Message string
}

func (e *APIError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("HTTP %d: %s", e.Status, e.Message)
	}
	return fmt.Sprintf("HTTP %d", e.Status)
}

// Is lets errors.Is match the sentinel classes an APIError falls into.
func (e *APIError) Is(target error) bool {
	switch target {
	case ErrNotFound:
		return e.Status == http.StatusNotFound
	case ErrCoordinatesRequired:
		return e.Status >= 400 && e.Status < 500 &&
			strings.Contains(strings.ToLower(e.Message), "coordinates are required")
	}
	return false
}

func (c *Client) do(ctx context.Context, method, path string, body, result any) error {
	var bodyReader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("marshal request: %w", err)
		}
		bodyReader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.BaseURL+path, bodyReader)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.HTTP.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrUnreachable, err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("%w: read response: %v", ErrUnreachable, err)
	}

	var env envelope
	decodeErr := json.Unmarshal(respBody, &env)

	if resp.StatusCode >= 300 {
		msg := strings.TrimSpace(string(respBody))
		if decodeErr == nil && env.Error != "" {
			msg = env.Error
		}
		return &APIError{Status: resp.StatusCode, Message: msg}
	}

	if len(bytes.TrimSpace(respBody)) == 0 && result == nil {
		return nil // 204 on delete
	}
	if decodeErr != nil {
		return fmt.Errorf("unmarshal response: %w", decodeErr)
	}
	if !env.Success {
		if env.Error != "" {
			return fmt.Errorf("%w: %s", ErrRejected, env.Error)
		}
		return ErrRejected
	}

	if result != nil && len(env.Data) > 0 && string(env.Data) != "null" {
		if err := json.Unmarshal(env.Data, result); err != nil {
			return fmt.Errorf("unmarshal data: %w", err)
		}
	}
	return nil
}
