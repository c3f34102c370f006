package client

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Rrens/projecthub/internal/domain"
)

func writeEnvelope(w http.ResponseWriter, status int, success bool, data, message any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]any{"success": success, "data": data, "message": message})
}

func TestAPIClient_ListProjectsSendsBearer(t *testing.T) {
	p := project("alpha")
	var gotAuth string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		assert.Equal(t, "/api/v1/projects", r.URL.Path)
		writeEnvelope(w, http.StatusOK, true, []domain.Project{p}, nil)
	}))
	defer srv.Close()

	c := NewAPIClient(srv.URL+"/", NewMemoryCredentials("abc"))
	projects, err := c.ListProjects(context.Background())

	require.NoError(t, err)
	assert.Equal(t, "Bearer abc", gotAuth)
	require.Len(t, projects, 1)
	assert.Equal(t, p.ID, projects[0].ID)
	assert.Equal(t, "alpha", projects[0].Name)
}

func TestAPIClient_Errors(t *testing.T) {
	tests := []struct {
		name    string
		status  int
		message any
		check   func(t *testing.T, err error)
	}{
		{
			name:   "unauthorized",
			status: http.StatusUnauthorized,
			check: func(t *testing.T, err error) {
				assert.ErrorIs(t, err, ErrUnauthorized)
			},
		},
		{
			name:    "forbidden",
			status:  http.StatusForbidden,
			message: "Access denied to this project",
			check: func(t *testing.T, err error) {
				var apiErr *APIError
				require.True(t, errors.As(err, &apiErr))
				assert.Equal(t, http.StatusForbidden, apiErr.Status)
				assert.Equal(t, "Access denied to this project", apiErr.Message)
			},
		},
		{
			name:    "validation",
			status:  http.StatusBadRequest,
			message: map[string]string{"name": "required"},
			check: func(t *testing.T, err error) {
				var apiErr *APIError
				require.True(t, errors.As(err, &apiErr))
				assert.Contains(t, apiErr.Message, "required")
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				writeEnvelope(w, tt.status, false, nil, tt.message)
			}))
			defer srv.Close()

			c := NewAPIClient(srv.URL, NewMemoryCredentials("abc"))
			_, err := c.CreateProject(context.Background(), domain.ProjectCreate{Name: "x"})
			tt.check(t, err)
		})
	}
}

func TestAPIClient_DeleteNoContent(t *testing.T) {
	id := uuid.New()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodDelete, r.Method)
		assert.Equal(t, "/api/v1/projects/"+id.String(), r.URL.Path)
		w.WriteHeader(http.StatusNoContent)
	}))
	defer srv.Close()

	c := NewAPIClient(srv.URL, NewMemoryCredentials("abc"))
	assert.NoError(t, c.DeleteProject(context.Background(), id))
}

func TestAPIClient_LoginStoresCredentials(t *testing.T) {
	user := &domain.User{ID: uuid.New(), Email: "a@example.com"}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var body domain.UserLogin
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "a@example.com", body.Email)
		assert.Empty(t, r.Header.Get("Authorization"))
		writeEnvelope(w, http.StatusOK, true, domain.TokenPair{
			AccessToken:  "access",
			RefreshToken: "refresh",
			User:         user,
		}, nil)
	}))
	defer srv.Close()

	creds := NewMemoryCredentials("")
	c := NewAPIClient(srv.URL, creds)
	pair, err := c.Login(context.Background(), "a@example.com", "secret123")

	require.NoError(t, err)
	assert.Equal(t, "access", pair.AccessToken)
	assert.Equal(t, Credentials{AccessToken: "access", RefreshToken: "refresh", UserID: user.ID}, creds.Get())
}
