package client

import (
	"context"
	"errors"
	"sync"

	"github.com/rs/zerolog"

	"github.com/Rrens/projecthub/internal/domain"
	"github.com/Rrens/projecthub/internal/logging"
)

// Policy selects how the reconciler applies events to the cache
type Policy int

const (
	// PolicyReload refetches the project list on every event
	PolicyReload Policy = iota
	// PolicyPatch applies project events carrying the full entity in place
	// and refetches for everything else
	PolicyPatch
)

// EventSource is the subset of SubscriptionManager the reconciler listens to
type EventSource interface {
	OnProjectUpdate(fn func(ProjectUpdate)) func()
	OnTaskUpdate(fn func(TaskUpdate)) func()
	OnMilestoneUpdate(fn func(MilestoneUpdate)) func()
	OnMemberUpdate(fn func(MemberUpdate)) func()
	OnFileUpdate(fn func(FileUpdate)) func()
	OnResync(fn func(Resync)) func()
}

// Reconciler keeps a ProjectCache converged with server events. Reloads run
// on a single worker, so a burst of events costs at most one queued fetch.
type Reconciler struct {
	cache  *ProjectCache
	source EventSource
	policy Policy
	logger zerolog.Logger

	reload chan struct{}

	mu       sync.Mutex
	versions map[string]int64
	lastErr  error
	unsubs   []func()
	cancel   context.CancelFunc
	done     chan struct{}
}

// NewReconciler creates a reconciler; call Start to subscribe
func NewReconciler(cache *ProjectCache, source EventSource, policy Policy) *Reconciler {
	return &Reconciler{
		cache:    cache,
		source:   source,
		policy:   policy,
		logger:   logging.WithComponent("reconciler"),
		reload:   make(chan struct{}, 1),
		versions: make(map[string]int64),
	}
}

// Start subscribes to every event category and runs the reload worker until
// Stop is called or ctx is done
func (r *Reconciler) Start(ctx context.Context) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.cancel != nil {
		return
	}

	ctx, cancel := context.WithCancel(ctx)
	r.cancel = cancel
	r.done = make(chan struct{})

	r.unsubs = []func(){
		r.source.OnProjectUpdate(r.onProject),
		r.source.OnTaskUpdate(func(e TaskUpdate) { r.onSubresource(e.Task.ProjectID.String(), e.Version) }),
		r.source.OnMilestoneUpdate(func(e MilestoneUpdate) { r.onSubresource(e.Milestone.ProjectID.String(), e.Version) }),
		r.source.OnMemberUpdate(func(e MemberUpdate) { r.onSubresource(e.Member.ProjectID.String(), e.Version) }),
		r.source.OnFileUpdate(func(e FileUpdate) { r.onSubresource(e.File.ProjectID.String(), e.Version) }),
		r.source.OnResync(r.onResync),
	}

	go r.worker(ctx, r.done)
}

// Stop unsubscribes and waits for the worker to exit
func (r *Reconciler) Stop() {
	r.mu.Lock()
	cancel, done, unsubs := r.cancel, r.done, r.unsubs
	r.cancel, r.unsubs = nil, nil
	r.mu.Unlock()

	for _, unsub := range unsubs {
		unsub()
	}
	if cancel != nil {
		cancel()
		<-done
	}
}

// LastError returns the error of the most recent reload, if it failed
func (r *Reconciler) LastError() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.lastErr
}

func (r *Reconciler) onProject(e ProjectUpdate) {
	r.observe(e.Project.ID.String(), e.Version)

	if r.policy != PolicyPatch {
		r.requestReload()
		return
	}

	switch e.Action {
	case domain.ActionCreated:
		r.cache.ApplyUpsert(e.Project)
	case domain.ActionUpdated:
		if !r.cache.ApplyUpsert(e.Project) {
			r.requestReload()
		}
	case domain.ActionDeleted:
		r.cache.ApplyRemove(e.Project.ID)
	default:
		r.requestReload()
	}
}

func (r *Reconciler) onSubresource(projectID string, version int64) {
	r.observe(projectID, version)
	r.requestReload()
}

// onResync reloads when the room's version moved while we were not listening
func (r *Reconciler) onResync(e Resync) {
	r.mu.Lock()
	last, seen := r.versions[e.ProjectID]
	r.versions[e.ProjectID] = e.Version
	r.mu.Unlock()

	if seen && last == e.Version {
		return
	}
	r.logger.Debug().Str("project_id", e.ProjectID).Int64("version", e.Version).Msg("resync")
	r.requestReload()
}

func (r *Reconciler) observe(projectID string, version int64) {
	if version == 0 {
		return
	}
	r.mu.Lock()
	if version > r.versions[projectID] {
		r.versions[projectID] = version
	}
	r.mu.Unlock()
}

func (r *Reconciler) requestReload() {
	select {
	case r.reload <- struct{}{}:
	default:
	}
}

func (r *Reconciler) worker(ctx context.Context, done chan struct{}) {
	defer close(done)
	for {
		select {
		case <-ctx.Done():
			return
		case <-r.reload:
			err := r.cache.Load(ctx, true)
			if err != nil && ctx.Err() == nil {
				r.logger.Warn().Err(err).Msg("reload failed")
			}
			if errors.Is(err, ErrLoadSuperseded) {
				r.requestReload()
			}
			r.mu.Lock()
			r.lastErr = err
			r.mu.Unlock()
		}
	}
}
