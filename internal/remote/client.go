// Package remote is the HTTP client for the racksum server's site and
// configuration API.
package remote

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"racksum/internal/catalog"
	"racksum/internal/models"
)

// ErrNotFound is returned for 404 responses
var ErrNotFound = errors.New("not found")

// APIError is a non-2xx response from the server
type APIError struct {
	StatusCode int    `json:"-"`
	Message    string `json:"error"`
	Details    string `json:"details,omitempty"`
}

func (e *APIError) Error() string {
	msg := e.Message
	if msg == "" {
		msg = http.StatusText(e.StatusCode)
	}
	if e.Details != "" {
		return fmt.Sprintf("server error %d: %s: %s", e.StatusCode, msg, e.Details)
	}
	return fmt.Sprintf("server error %d: %s", e.StatusCode, msg)
}

// Is makes errors.Is(err, ErrNotFound) hold for 404 responses
func (e *APIError) Is(target error) bool {
	return target == ErrNotFound && e.StatusCode == http.StatusNotFound
}

// HealthResponse is the body of GET /api/health
type HealthResponse struct {
	Status   string `json:"status"`
	Database string `json:"database"`
}

// Client talks to a racksum server
type Client struct {
	baseURL    string
	httpClient *http.Client
}

// New creates a client for the server at baseURL
func New(baseURL string, timeout time.Duration) *Client {
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

// BaseURL returns the server address
func (c *Client) BaseURL() string {
	return c.baseURL
}

// Health calls GET /api/health
func (c *Client) Health(ctx context.Context) (*HealthResponse, error) {
	var health HealthResponse
	if err := c.do(ctx, http.MethodGet, "/api/health", nil, &health); err != nil {
		return nil, err
	}
	return &health, nil
}

// ListSites calls GET /api/sites
func (c *Client) ListSites(ctx context.Context) ([]models.Site, error) {
	var sites []models.Site
	err := c.do(ctx, http.MethodGet, "/api/sites", nil, &sites)
	return sites, err
}

// GetSite calls GET /api/sites/{id}
func (c *Client) GetSite(ctx context.Context, id int64) (*models.Site, error) {
	var site models.Site
	if err := c.do(ctx, http.MethodGet, sitePath(id), nil, &site); err != nil {
		return nil, err
	}
	return &site, nil
}

// CreateSite calls POST /api/sites
func (c *Client) CreateSite(ctx context.Context, name, description string) (*models.Site, error) {
	body := map[string]string{"name": name, "description": description}
	var site models.Site
	if err := c.do(ctx, http.MethodPost, "/api/sites", body, &site); err != nil {
		return nil, err
	}
	return &site, nil
}

// UpdateSite calls PUT /api/sites/{id}
func (c *Client) UpdateSite(ctx context.Context, id int64, name, description string) error {
	body := map[string]string{"name": name, "description": description}
	return c.do(ctx, http.MethodPut, sitePath(id), body, nil)
}

// DeleteSite calls DELETE /api/sites/{id}
func (c *Client) DeleteSite(ctx context.Context, id int64) error {
	return c.do(ctx, http.MethodDelete, sitePath(id), nil, nil)
}

// ListConfigurations calls GET /api/sites/{id}/racks
func (c *Client) ListConfigurations(ctx context.Context, siteID int64) ([]models.SavedConfiguration, error) {
	var configs []models.SavedConfiguration
	err := c.do(ctx, http.MethodGet, sitePath(siteID)+"/racks", nil, &configs)
	return configs, err
}

// GetConfiguration calls GET /api/sites/{id}/racks/{name}
func (c *Client) GetConfiguration(ctx context.Context, siteID int64, name string) (*models.SavedConfiguration, error) {
	var saved models.SavedConfiguration
	if err := c.do(ctx, http.MethodGet, sitePath(siteID)+"/racks/"+url.PathEscape(name), nil, &saved); err != nil {
		return nil, err
	}
	return &saved, nil
}

// UpsertConfiguration calls POST /api/sites/{id}/racks
func (c *Client) UpsertConfiguration(ctx context.Context, siteID int64, req models.SaveConfigurationRequest) (*models.SaveConfigurationResponse, error) {
	var resp models.SaveConfigurationResponse
	if err := c.do(ctx, http.MethodPost, sitePath(siteID)+"/racks", req, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// SaveConfiguration stores data under (siteID, name) on the server
func (c *Client) SaveConfiguration(ctx context.Context, siteID int64, name string, data json.RawMessage, description string) error {
	_, err := c.UpsertConfiguration(ctx, siteID, models.SaveConfigurationRequest{
		Name:        name,
		ConfigData:  data,
		Description: description,
	})
	return err
}

// DeleteConfiguration calls DELETE /api/racks/{id}
func (c *Client) DeleteConfiguration(ctx context.Context, id int64) error {
	return c.do(ctx, http.MethodDelete, "/api/racks/"+strconv.FormatInt(id, 10), nil, nil)
}

// ListAllConfigurations calls GET /api/racks
func (c *Client) ListAllConfigurations(ctx context.Context) ([]models.SavedConfiguration, error) {
	var configs []models.SavedConfiguration
	err := c.do(ctx, http.MethodGet, "/api/racks", nil, &configs)
	return configs, err
}

// Catalog calls GET /api/devices
func (c *Client) Catalog(ctx context.Context) (*catalog.Catalog, error) {
	var cat catalog.Catalog
	if err := c.do(ctx, http.MethodGet, "/api/devices", nil, &cat); err != nil {
		return nil, err
	}
	return &cat, nil
}

func sitePath(id int64) string {
	return "/api/sites/" + strconv.FormatInt(id, 10)
}

func (c *Client) do(ctx context.Context, method, path string, in, out any) error {
	var body io.Reader
	if in != nil {
		data, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("failed to marshal request: %w", err)
		}
		body = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return c.handleRequestError(ctx, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return handleErrorResponse(resp)
	}
	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("invalid response from server: %w", err)
	}
	return nil
}

// handleRequestError keeps context errors matchable and names the server otherwise
func (c *Client) handleRequestError(ctx context.Context, err error) error {
	if ctxErr := ctx.Err(); ctxErr != nil {
		return fmt.Errorf("request to %s: %w", c.baseURL, ctxErr)
	}
	return fmt.Errorf("cannot connect to server at %s: %w", c.baseURL, err)
}

func handleErrorResponse(resp *http.Response) error {
	apiErr := &APIError{StatusCode: resp.StatusCode}
	data, err := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
	if err == nil && len(data) > 0 {
		if json.Unmarshal(data, apiErr) != nil {
			apiErr.Message = strings.TrimSpace(string(data))
		}
	}
	return apiErr
}
