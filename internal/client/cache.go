package client

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog"

	"github.com/Rrens/projecthub/internal/domain"
	"github.com/Rrens/projecthub/internal/logging"
)

const (
	// StaleAfter is how long a fetched list is served without refetching
	StaleAfter = 5 * time.Minute
	// StaleCheckInterval is how often Run recomputes staleness
	StaleCheckInterval = 60 * time.Second

	maxLoadAttempts = 3
)

// ErrLoadSuperseded is returned when local writes kept overtaking a fetch.
// The list is left stale so the next Load fetches again.
var ErrLoadSuperseded = errors.New("project list changed during load")

// CacheOptions configures a ProjectCache
type CacheOptions struct {
	Clock clockwork.Clock
	// OnAuthFailure runs after credentials are purged on a 401
	OnAuthFailure func()
}

type loadCall struct {
	done  chan struct{}
	err   error
	dirty bool
}

// ProjectCache holds the signed-in user's project list. Reads are served from
// memory while fresh; writes go through the API and are applied locally.
type ProjectCache struct {
	api           ProjectAPI
	creds         CredentialStore
	clock         clockwork.Clock
	onAuthFailure func()
	logger        zerolog.Logger

	mu          sync.Mutex
	projects    []domain.Project
	lastFetched *time.Time
	loading     *loadCall
	seq         uint64
	staleSeen   bool

	listenerMu sync.Mutex
	listeners  map[int]func()
	nextID     int
}

// NewProjectCache creates an empty cache
func NewProjectCache(api ProjectAPI, creds CredentialStore, opts CacheOptions) *ProjectCache {
	if opts.Clock == nil {
		opts.Clock = clockwork.NewRealClock()
	}
	return &ProjectCache{
		api:           api,
		creds:         creds,
		clock:         opts.Clock,
		onAuthFailure: opts.OnAuthFailure,
		logger:        logging.WithComponent("project_cache"),
		staleSeen:     true,
		listeners:     make(map[int]func()),
	}
}

// Projects returns a copy of the cached list in display order
func (c *ProjectCache) Projects() []domain.Project {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]domain.Project(nil), c.projects...)
}

// Get returns the cached project with id
func (c *ProjectCache) Get(id uuid.UUID) (domain.Project, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if i := c.indexLocked(id); i >= 0 {
		return c.projects[i], true
	}
	return domain.Project{}, false
}

// LastFetched returns when the list was last written, or nil if never
func (c *ProjectCache) LastFetched() *time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.lastFetched == nil {
		return nil
	}
	t := *c.lastFetched
	return &t
}

// IsStale reports whether the list is older than StaleAfter or was never fetched
func (c *ProjectCache) IsStale() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.staleLocked()
}

// Loading reports whether a fetch is in flight
func (c *ProjectCache) Loading() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.loading != nil
}

func (c *ProjectCache) staleLocked() bool {
	if c.lastFetched == nil {
		return true
	}
	return c.clock.Since(*c.lastFetched) > StaleAfter
}

// Load fetches the project list unless the cache can serve it. Without a
// credential it does nothing. Callers arriving during a fetch share its
// result; a forced call during a fetch schedules one more fetch after it.
func (c *ProjectCache) Load(ctx context.Context, force bool) error {
	if c.creds.Token() == "" {
		return nil
	}

	c.mu.Lock()
	if call := c.loading; call != nil {
		if force {
			call.dirty = true
		}
		c.mu.Unlock()
		select {
		case <-call.done:
			return call.err
		case <-ctx.Done():
			return ctx.Err()
		}
	}

	if !force && len(c.projects) > 0 && !c.staleLocked() {
		c.mu.Unlock()
		return nil
	}

	call := &loadCall{done: make(chan struct{})}
	c.loading = call
	c.mu.Unlock()

	err := c.fetch(ctx, call)
	call.err = err
	close(call.done)

	if errors.Is(err, ErrUnauthorized) {
		c.authFailed()
	}
	if err == nil {
		c.notify()
	}
	return err
}

// fetch repeats the request until neither a forced load nor a local write
// overtook it. Forced loads always get another fetch; local writes give up
// after maxLoadAttempts and leave the list stale. c.loading is cleared under
// the lock that applies the result.
func (c *ProjectCache) fetch(ctx context.Context, call *loadCall) error {
	superseded := 0
	for {
		c.mu.Lock()
		start := c.seq
		call.dirty = false
		c.mu.Unlock()

		projects, err := c.api.ListProjects(ctx)

		c.mu.Lock()
		switch {
		case err != nil:
		case call.dirty:
			c.mu.Unlock()
			continue
		case c.seq != start:
			superseded++
			if superseded < maxLoadAttempts {
				c.mu.Unlock()
				continue
			}
			c.lastFetched = nil
			err = ErrLoadSuperseded
			c.logger.Warn().Int("attempts", superseded).Msg("project list kept changing during load, marked stale")
		default:
			c.projects = projects
			c.stampLocked()
		}
		c.loading = nil
		c.mu.Unlock()
		return err
	}
}

// Create creates a project and prepends it
func (c *ProjectCache) Create(ctx context.Context, input domain.ProjectCreate) (*domain.Project, error) {
	project, err := c.api.CreateProject(ctx, input)
	if err != nil {
		return nil, c.writeFailed(err)
	}

	c.mu.Lock()
	c.projects = append([]domain.Project{*project}, c.projects...)
	c.stampLocked()
	c.mu.Unlock()

	c.notify()
	return project, nil
}

// Update updates a project and replaces it in place
func (c *ProjectCache) Update(ctx context.Context, id uuid.UUID, input domain.ProjectUpdate) (*domain.Project, error) {
	project, err := c.api.UpdateProject(ctx, id, input)
	if err != nil {
		return nil, c.writeFailed(err)
	}

	c.mu.Lock()
	if i := c.indexLocked(id); i >= 0 {
		c.projects[i] = *project
	}
	c.stampLocked()
	c.mu.Unlock()

	c.notify()
	return project, nil
}

// Delete deletes a project and removes it
func (c *ProjectCache) Delete(ctx context.Context, id uuid.UUID) error {
	if err := c.api.DeleteProject(ctx, id); err != nil {
		return c.writeFailed(err)
	}

	c.mu.Lock()
	c.removeLocked(id)
	c.stampLocked()
	c.mu.Unlock()

	c.notify()
	return nil
}

// ApplyUpsert writes a project received from the server without a fetch.
// It replaces an existing entry in place or prepends a new one and reports
// whether the project was already cached.
func (c *ProjectCache) ApplyUpsert(project domain.Project) bool {
	c.mu.Lock()
	i := c.indexLocked(project.ID)
	if i >= 0 {
		c.projects[i] = project
	} else {
		c.projects = append([]domain.Project{project}, c.projects...)
	}
	c.seq++
	c.mu.Unlock()

	c.notify()
	return i >= 0
}

// ApplyRemove drops a project deleted on the server and reports whether it
// was cached
func (c *ProjectCache) ApplyRemove(id uuid.UUID) bool {
	c.mu.Lock()
	removed := c.removeLocked(id)
	c.seq++
	c.mu.Unlock()

	if removed {
		c.notify()
	}
	return removed
}

// Clear empties the cache, as on logout
func (c *ProjectCache) Clear() {
	c.mu.Lock()
	c.projects = nil
	c.lastFetched = nil
	c.seq++
	c.mu.Unlock()

	c.notify()
}

// OnChange registers fn to run after the list or its staleness changes.
// The returned func unregisters it.
func (c *ProjectCache) OnChange(fn func()) func() {
	c.listenerMu.Lock()
	id := c.nextID
	c.nextID++
	c.listeners[id] = fn
	c.listenerMu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			c.listenerMu.Lock()
			delete(c.listeners, id)
			c.listenerMu.Unlock()
		})
	}
}

// Run recomputes staleness every StaleCheckInterval and notifies listeners
// when it flips. It blocks until ctx is done.
func (c *ProjectCache) Run(ctx context.Context) {
	ticker := c.clock.NewTicker(StaleCheckInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.Chan():
			c.mu.Lock()
			stale := c.staleLocked()
			flipped := stale != c.staleSeen
			c.staleSeen = stale
			c.mu.Unlock()

			if flipped {
				c.logger.Debug().Bool("stale", stale).Msg("staleness changed")
				c.notify()
			}
		}
	}
}

func (c *ProjectCache) stampLocked() {
	now := c.clock.Now()
	c.lastFetched = &now
	c.seq++
	c.staleSeen = false
}

func (c *ProjectCache) indexLocked(id uuid.UUID) int {
	for i := range c.projects {
		if c.projects[i].ID == id {
			return i
		}
	}
	return -1
}

func (c *ProjectCache) removeLocked(id uuid.UUID) bool {
	i := c.indexLocked(id)
	if i < 0 {
		return false
	}
	c.projects = append(c.projects[:i], c.projects[i+1:]...)
	return true
}

func (c *ProjectCache) writeFailed(err error) error {
	if errors.Is(err, ErrUnauthorized) {
		c.authFailed()
	}
	return err
}

// authFailed purges credentials and hands control to the login flow
func (c *ProjectCache) authFailed() {
	c.creds.Clear()
	c.logger.Warn().Msg("credentials rejected, signing out")
	if c.onAuthFailure != nil {
		c.onAuthFailure()
	}
}

func (c *ProjectCache) notify() {
	c.listenerMu.Lock()
	fns := make([]func(), 0, len(c.listeners))
	for _, fn := range c.listeners {
		fns = append(fns, fn)
	}
	c.listenerMu.Unlock()

	for _, fn := range fns {
		fn()
	}
}
