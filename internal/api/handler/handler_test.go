package handler_test

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/Rrens/projecthub/internal/api/handler"
	"github.com/Rrens/projecthub/internal/api/middleware"
	"github.com/Rrens/projecthub/internal/domain"
	"github.com/Rrens/projecthub/internal/service"
)

type mockProjectService struct {
	mock.Mock
}

func (m *mockProjectService) Create(ctx context.Context, userID uuid.UUID, input domain.ProjectCreate) (*domain.Project, error) {
	args := m.Called(ctx, userID, input)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Project), args.Error(1)
}

func (m *mockProjectService) Get(ctx context.Context, userID, projectID uuid.UUID) (*domain.Project, error) {
	args := m.Called(ctx, userID, projectID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Project), args.Error(1)
}

func (m *mockProjectService) List(ctx context.Context, userID uuid.UUID) ([]domain.Project, error) {
	args := m.Called(ctx, userID)
	return args.Get(0).([]domain.Project), args.Error(1)
}

func (m *mockProjectService) Update(ctx context.Context, userID, projectID uuid.UUID, input domain.ProjectUpdate) (*domain.Project, error) {
	args := m.Called(ctx, userID, projectID, input)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Project), args.Error(1)
}

func (m *mockProjectService) Delete(ctx context.Context, userID, projectID uuid.UUID) error {
	args := m.Called(ctx, userID, projectID)
	return args.Error(0)
}

// withUser stands in for the auth middleware
func withUser(userID uuid.UUID) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			next.ServeHTTP(w, r.WithContext(middleware.WithUserID(r.Context(), userID)))
		})
	}
}

func projectRouter(userID uuid.UUID, svc handler.ProjectService) http.Handler {
	h := handler.NewProjectHandler(svc)
	r := chi.NewRouter()
	r.Use(withUser(userID))
	r.Get("/projects", h.List)
	r.Post("/projects", h.Create)
	r.Route("/projects/{projectID}", func(r chi.Router) {
		r.Use(middleware.ProjectContext)
		r.Get("/", h.Get)
		r.Put("/", h.Update)
		r.Delete("/", h.Delete)
	})
	return r
}

type envelope struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data"`
	Message json.RawMessage `json:"message"`
}

func do(t *testing.T, h http.Handler, method, path string, body any) (*httptest.ResponseRecorder, envelope) {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	var env envelope
	if rec.Body.Len() > 0 {
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &env))
	}
	return rec, env
}

func TestHealthCheck(t *testing.T) {
	rec, env := do(t, http.HandlerFunc(handler.HealthCheck), http.MethodGet, "/api/v1/health", nil)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, env.Success)
	assert.JSONEq(t, `{"status":"ok"}`, string(env.Data))
}

type failingPinger struct{}

func (failingPinger) Ping(context.Context) error { return assert.AnError }

func TestReadyCheck(t *testing.T) {
	rec, env := do(t, handler.ReadyCheck(map[string]handler.Pinger{"database": failingPinger{}}), http.MethodGet, "/api/v1/ready", nil)

	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.False(t, env.Success)
	assert.JSONEq(t, `"database not ready"`, string(env.Message))
}

func TestProjectHandler_Create(t *testing.T) {
	userID := uuid.New()

	t.Run("created", func(t *testing.T) {
		svc := new(mockProjectService)
		input := domain.ProjectCreate{Name: "Website"}
		svc.On("Create", mock.Anything, userID, input).Return(&domain.Project{ID: uuid.New(), Name: "Website"}, nil)

		rec, env := do(t, projectRouter(userID, svc), http.MethodPost, "/projects", input)
		assert.Equal(t, http.StatusCreated, rec.Code)
		assert.True(t, env.Success)

		var project domain.Project
		require.NoError(t, json.Unmarshal(env.Data, &project))
		assert.Equal(t, "Website", project.Name)
	})

	t.Run("validation errors are per field", func(t *testing.T) {
		svc := new(mockProjectService)

		rec, env := do(t, projectRouter(userID, svc), http.MethodPost, "/projects", map[string]string{"status": "bogus"})
		assert.Equal(t, http.StatusBadRequest, rec.Code)

		var fields map[string]string
		require.NoError(t, json.Unmarshal(env.Message, &fields))
		assert.Equal(t, "field is required", fields["Name"])
		assert.Contains(t, fields["Status"], "must be one of")
		svc.AssertNotCalled(t, "Create", mock.Anything, mock.Anything, mock.Anything)
	})
}

func TestProjectHandler_ErrorMapping(t *testing.T) {
	userID := uuid.New()
	projectID := uuid.New()

	tests := []struct {
		name    string
		err     error
		status  int
		message string
	}{
		{"access denied", service.ErrAccessDenied, http.StatusForbidden, handler.AccessDeniedMessage},
		{"not found", service.ErrNotFound, http.StatusNotFound, "not found"},
		{"internal", assert.AnError, http.StatusInternalServerError, "internal server error"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := new(mockProjectService)
			svc.On("Get", mock.Anything, userID, projectID).Return(nil, tt.err)

			rec, env := do(t, projectRouter(userID, svc), http.MethodGet, "/projects/"+projectID.String(), nil)
			assert.Equal(t, tt.status, rec.Code)
			assert.False(t, env.Success)

			var message string
			require.NoError(t, json.Unmarshal(env.Message, &message))
			assert.Equal(t, tt.message, message)
		})
	}
}

func TestProjectHandler_InvalidProjectID(t *testing.T) {
	svc := new(mockProjectService)

	rec, _ := do(t, projectRouter(uuid.New(), svc), http.MethodGet, "/projects/not-a-uuid", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestProjectHandler_Delete(t *testing.T) {
	userID := uuid.New()
	projectID := uuid.New()
	svc := new(mockProjectService)
	svc.On("Delete", mock.Anything, userID, projectID).Return(nil)

	rec, env := do(t, projectRouter(userID, svc), http.MethodDelete, "/projects/"+projectID.String(), nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, env.Success)
	svc.AssertExpectations(t)
}
