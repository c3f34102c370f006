package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/Rrens/projecthub/internal/domain"
)

// ErrUnauthorized is returned when the server rejects the credentials
var ErrUnauthorized = errors.New("unauthorized")

// APIError is an application error reported by the server
type APIError struct {
	Status  int
	Message string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("api error (%d): %s", e.Status, e.Message)
}

// ProjectAPI is the persistence surface the cache reads and writes through
type ProjectAPI interface {
	ListProjects(ctx context.Context) ([]domain.Project, error)
	CreateProject(ctx context.Context, input domain.ProjectCreate) (*domain.Project, error)
	UpdateProject(ctx context.Context, id uuid.UUID, input domain.ProjectUpdate) (*domain.Project, error)
	DeleteProject(ctx context.Context, id uuid.UUID) error
}

type envelope struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data"`
	Message json.RawMessage `json:"message"`
}

// APIClient makes REST calls to the projecthub API
type APIClient struct {
	baseURL string
	creds   CredentialStore
	client  *http.Client
}

// NewAPIClient creates a client targeting baseURL (e.g. "http://127.0.0.1:8080")
func NewAPIClient(baseURL string, creds CredentialStore) *APIClient {
	return &APIClient{
		baseURL: strings.TrimRight(baseURL, "/"),
		creds:   creds,
		client:  &http.Client{Timeout: 15 * time.Second},
	}
}

// Login signs in and stores the issued tokens
func (c *APIClient) Login(ctx context.Context, email, password string) (*domain.TokenPair, error) {
	var pair domain.TokenPair
	body := domain.UserLogin{Email: email, Password: password}
	if err := c.do(ctx, http.MethodPost, "/api/v1/auth/login", body, &pair); err != nil {
		return nil, err
	}

	creds := Credentials{AccessToken: pair.AccessToken, RefreshToken: pair.RefreshToken}
	if pair.User != nil {
		creds.UserID = pair.User.ID
	}
	c.creds.Set(creds)
	return &pair, nil
}

func (c *APIClient) ListProjects(ctx context.Context) ([]domain.Project, error) {
	var projects []domain.Project
	if err := c.do(ctx, http.MethodGet, "/api/v1/projects", nil, &projects); err != nil {
		return nil, err
	}
	return projects, nil
}

func (c *APIClient) CreateProject(ctx context.Context, input domain.ProjectCreate) (*domain.Project, error) {
	var project domain.Project
	if err := c.do(ctx, http.MethodPost, "/api/v1/projects", input, &project); err != nil {
		return nil, err
	}
	return &project, nil
}

func (c *APIClient) UpdateProject(ctx context.Context, id uuid.UUID, input domain.ProjectUpdate) (*domain.Project, error) {
	var project domain.Project
	if err := c.do(ctx, http.MethodPut, "/api/v1/projects/"+id.String(), input, &project); err != nil {
		return nil, err
	}
	return &project, nil
}

func (c *APIClient) DeleteProject(ctx context.Context, id uuid.UUID) error {
	return c.do(ctx, http.MethodDelete, "/api/v1/projects/"+id.String(), nil, nil)
}

func (c *APIClient) do(ctx context.Context, method, path string, body, out any) error {
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			return fmt.Errorf("failed to encode request: %w", err)
		}
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, &buf)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token := c.creds.Token(); token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusUnauthorized {
		return ErrUnauthorized
	}
	if resp.StatusCode == http.StatusNoContent {
		return nil
	}

	var env envelope
	if err := json.NewDecoder(resp.Body).Decode(&env); err != nil {
		if resp.StatusCode >= 300 {
			return &APIError{Status: resp.StatusCode, Message: http.StatusText(resp.StatusCode)}
		}
		return fmt.Errorf("%s %s: failed to decode response: %w", method, path, err)
	}

	if resp.StatusCode >= 300 || !env.Success {
		return &APIError{Status: resp.StatusCode, Message: messageText(env.Message)}
	}

	if out == nil || len(env.Data) == 0 {
		return nil
	}
	if err := json.Unmarshal(env.Data, out); err != nil {
		return fmt.Errorf("%s %s: failed to decode data: %w", method, path, err)
	}
	return nil
}

// messageText flattens a string or field map message
func messageText(raw json.RawMessage) string {
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s
	}
	return string(raw)
}
