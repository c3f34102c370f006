package client

import (
	"context"
	"sync"
	"sync/atomic"

	"github.com/google/uuid"

	"github.com/Rrens/projecthub/internal/domain"
)

// fakeAPI is an in-memory ProjectAPI. When gate is set, ListProjects
// snapshots the server list and then waits for one value on gate.
type fakeAPI struct {
	mu       sync.Mutex
	projects []domain.Project
	listErr  error
	writeErr error
	gate     chan struct{}

	listCalls atomic.Int32
}

func (f *fakeAPI) ListProjects(ctx context.Context) ([]domain.Project, error) {
	f.listCalls.Add(1)

	f.mu.Lock()
	snapshot := append([]domain.Project(nil), f.projects...)
	err := f.listErr
	gate := f.gate
	f.mu.Unlock()

	if gate != nil {
		select {
		case <-gate:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if err != nil {
		return nil, err
	}
	return snapshot, nil
}

func (f *fakeAPI) CreateProject(_ context.Context, input domain.ProjectCreate) (*domain.Project, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.writeErr != nil {
		return nil, f.writeErr
	}
	p := domain.Project{ID: uuid.New(), Name: input.Name, Status: domain.ProjectStatusActive}
	f.projects = append([]domain.Project{p}, f.projects...)
	return &p, nil
}

func (f *fakeAPI) UpdateProject(_ context.Context, id uuid.UUID, input domain.ProjectUpdate) (*domain.Project, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.writeErr != nil {
		return nil, f.writeErr
	}
	for i := range f.projects {
		if f.projects[i].ID == id {
			input.Apply(&f.projects[i])
			p := f.projects[i]
			return &p, nil
		}
	}
	return nil, &APIError{Status: 404, Message: "not found"}
}

func (f *fakeAPI) DeleteProject(_ context.Context, id uuid.UUID) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.writeErr != nil {
		return f.writeErr
	}
	for i := range f.projects {
		if f.projects[i].ID == id {
			f.projects = append(f.projects[:i], f.projects[i+1:]...)
			return nil
		}
	}
	return &APIError{Status: 404, Message: "not found"}
}

func (f *fakeAPI) set(projects ...domain.Project) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.projects = projects
}

func (f *fakeAPI) snapshot() []domain.Project {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]domain.Project(nil), f.projects...)
}

func project(name string) domain.Project {
	return domain.Project{ID: uuid.New(), Name: name, Status: domain.ProjectStatusActive}
}

func names(projects []domain.Project) []string {
	out := make([]string, len(projects))
	for i, p := range projects {
		out[i] = p.Name
	}
	return out
}
