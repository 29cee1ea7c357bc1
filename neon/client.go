// Package neon drives Neon branchable Postgres databases: a thin client for
// the control-plane HTTP API and a session backend that switches connections
// between branches.
package neon

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/branchbench/branchbench/session"
)

const (
	DefaultBaseURL  = "https://console.neon.tech/api/v2/"
	DefaultRoleName = "neondb_owner"
	DefaultTimeout  = 60 * time.Second
)

// Config configures a control-plane client.
type Config struct {
	// BaseURL of the API, defaults to DefaultBaseURL
	BaseURL string
	// APIKey used as bearer token
	APIKey string
	// RoleName used in connection URIs, defaults to DefaultRoleName
	RoleName string
	// HTTPClient defaults to a client with DefaultTimeout
	HTTPClient *http.Client
}

// Client talks to the Neon control-plane API.
type Client struct {
	logger   zerolog.Logger
	baseURL  string
	apiKey   string
	roleName string
	http     *http.Client
}

// NewClient creates a client from cfg.
func NewClient(logger zerolog.Logger, cfg Config) *Client {
	c := &Client{
		logger:   logger,
		baseURL:  cfg.BaseURL,
		apiKey:   cfg.APIKey,
		roleName: cfg.RoleName,
		http:     cfg.HTTPClient,
	}
	if c.baseURL == "" {
		c.baseURL = DefaultBaseURL
	}
	if c.roleName == "" {
		c.roleName = DefaultRoleName
	}
	if c.http == nil {
		c.http = &http.Client{Timeout: DefaultTimeout}
	}
	return c
}

// Branch is a branch as reported by the control plane.
type Branch struct {
	ID       string `json:"id"`
	Name     string `json:"name"`
	ParentID string `json:"parent_id,omitempty"`
}

// Project is a Neon project.
type Project struct {
	ID   string `json:"id"`
	Name string `json:"name"`
	// DefaultBranch is set by CreateProject
	DefaultBranch *Branch `json:"-"`
	// ConnectionURI of the default database, set by CreateProject
	ConnectionURI string `json:"-"`
}

// APIError is returned for responses with a non-success status code.
type APIError struct {
	Method     string
	Path       string
	StatusCode int
	Body       string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("%s %s returned %d: %s", e.Method, e.Path, e.StatusCode, e.Body)
}

// Unwrap makes errors.Is(err, session.ErrExternalAPI) true for API errors.
func (e *APIError) Unwrap() error {
	return session.ErrExternalAPI
}

func (c *Client) do(ctx context.Context, method, path string, query url.Values, body, out any) error {
	endpoint := strings.TrimRight(c.baseURL, "/") + "/" + path
	if len(query) > 0 {
		endpoint += "?" + query.Encode()
	}

	var reqBody io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to marshal request: %w", err)
		}
		reqBody = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, endpoint, reqBody)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	req.Header.Set("Accept", "application/json")
	req.Header.Set("Content-Type", "application/json")

	start := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %s %s: %w", session.ErrExternalAPI, method, path, err)
	}
	defer resp.Body.Close()

	c.logger.Debug().
		Str("method", method).
		Str("path", path).
		Int("status", resp.StatusCode).
		Dur("took", time.Since(start)).
		Msg("Neon API request")

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("%w: failed to read response of %s %s: %w", session.ErrExternalAPI, method, path, err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return &APIError{
			Method:     method,
			Path:       path,
			StatusCode: resp.StatusCode,
			Body:       strings.TrimSpace(string(data)),
		}
	}

	if out != nil && len(data) > 0 {
		if err := json.Unmarshal(data, out); err != nil {
			return fmt.Errorf("failed to decode response of %s %s: %w", method, path, err)
		}
	}
	return nil
}

// CreateProject creates a project with the given Postgres major version.
func (c *Client) CreateProject(ctx context.Context, name string, pgVersion int) (*Project, error) {
	req := map[string]any{
		"project": map[string]any{"pg_version": pgVersion, "name": name},
	}
	var resp struct {
		Project        Project `json:"project"`
		Branch         *Branch `json:"branch"`
		ConnectionURIs []struct {
			ConnectionURI string `json:"connection_uri"`
		} `json:"connection_uris"`
	}
	if err := c.do(ctx, http.MethodPost, "projects", nil, req, &resp); err != nil {
		return nil, err
	}

	project := resp.Project
	project.DefaultBranch = resp.Branch
	if len(resp.ConnectionURIs) > 0 {
		project.ConnectionURI = resp.ConnectionURIs[0].ConnectionURI
	}
	return &project, nil
}

// DeleteProject deletes a project and all of its branches.
func (c *Client) DeleteProject(ctx context.Context, projectID string) error {
	return c.do(ctx, http.MethodDelete, "projects/"+url.PathEscape(projectID), nil, nil, nil)
}

// CreateBranch creates a branch with a read-write endpoint. An empty parentID
// branches from the project's default branch.
func (c *Client) CreateBranch(ctx context.Context, projectID, name, parentID string) (*Branch, error) {
	type branchRequest struct {
		Name     string `json:"name"`
		ParentID string `json:"parent_id,omitempty"`
	}
	req := struct {
		Endpoints []map[string]string `json:"endpoints"`
		Branch    branchRequest       `json:"branch"`
	}{
		Endpoints: []map[string]string{{"type": "read_write"}},
		Branch:    branchRequest{Name: name, ParentID: parentID},
	}
	var resp struct {
		Branch Branch `json:"branch"`
	}
	path := "projects/" + url.PathEscape(projectID) + "/branches"
	if err := c.do(ctx, http.MethodPost, path, nil, req, &resp); err != nil {
		return nil, err
	}
	if resp.Branch.ID == "" {
		return nil, fmt.Errorf("%w: branch creation returned no id", session.ErrExternalAPI)
	}
	return &resp.Branch, nil
}

// ListBranches returns all branches of a project.
func (c *Client) ListBranches(ctx context.Context, projectID string) ([]Branch, error) {
	var resp struct {
		Branches []Branch `json:"branches"`
	}
	path := "projects/" + url.PathEscape(projectID) + "/branches"
	if err := c.do(ctx, http.MethodGet, path, nil, nil, &resp); err != nil {
		return nil, err
	}
	return resp.Branches, nil
}

// DeleteBranch deletes a branch by id.
func (c *Client) DeleteBranch(ctx context.Context, projectID, branchID string) error {
	path := "projects/" + url.PathEscape(projectID) + "/branches/" + url.PathEscape(branchID)
	return c.do(ctx, http.MethodDelete, path, nil, nil, nil)
}

// ConnectionURI returns the connection string for database on a branch.
func (c *Client) ConnectionURI(ctx context.Context, projectID, branchID, database string) (string, error) {
	query := url.Values{}
	query.Set("branch_id", branchID)
	query.Set("database_name", database)
	query.Set("role_name", c.roleName)

	var resp struct {
		URI string `json:"uri"`
	}
	path := "projects/" + url.PathEscape(projectID) + "/connection_uri"
	if err := c.do(ctx, http.MethodGet, path, query, nil, &resp); err != nil {
		return "", err
	}
	if resp.URI == "" {
		return "", fmt.Errorf("%w: no connection uri for branch %s", session.ErrExternalAPI, branchID)
	}
	return resp.URI, nil
}

// DeleteDatabase deletes database from a single branch.
func (c *Client) DeleteDatabase(ctx context.Context, projectID, branchID, database string) error {
	path := "projects/" + url.PathEscape(projectID) + "/branches/" + url.PathEscape(branchID) + "/databases/" + url.PathEscape(database)
	return c.do(ctx, http.MethodDelete, path, nil, nil, nil)
}
