package client

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"github.com/Rrens/projecthub/internal/domain"
	"github.com/Rrens/projecthub/internal/logging"
	"github.com/Rrens/projecthub/internal/realtime"
)

const (
	reconnectBaseDelay = 1 * time.Second
	reconnectMaxDelay  = 30 * time.Second
	writeTimeout       = 10 * time.Second
)

// State is the connection state of a SubscriptionManager
type State string

const (
	StateDisconnected State = "disconnected"
	StateConnecting   State = "connecting"
	StateConnected    State = "connected"
	StateErrored      State = "errored"
)

// ProjectUpdate is a received project:update event
type ProjectUpdate struct {
	Action  domain.EventAction
	Project domain.Project
	Version int64
}

// TaskUpdate is a received task event
type TaskUpdate struct {
	Action  domain.EventAction
	Task    domain.Task
	Version int64
}

// MilestoneUpdate is a received milestone event
type MilestoneUpdate struct {
	Action    domain.EventAction
	Milestone domain.Milestone
	Version   int64
}

// MemberUpdate is a received member:added or member:removed event
type MemberUpdate struct {
	Action  domain.EventAction
	Member  domain.Member
	Version int64
}

// FileUpdate is a received file:uploaded or file:deleted event
type FileUpdate struct {
	Action  domain.EventAction
	File    domain.File
	Version int64
}

// Resync reports a confirmed room join and the project's current version
type Resync struct {
	ProjectID string
	Version   int64
}

// SubscriptionOptions configures a SubscriptionManager
type SubscriptionOptions struct {
	// URL of the websocket endpoint, e.g. "ws://127.0.0.1:8080/ws"
	URL         string
	Credentials CredentialStore
	Dialer      *websocket.Dialer
	MinBackoff  time.Duration
	MaxBackoff  time.Duration
}

// SubscriptionManager keeps one websocket connection to the server, joined
// to at most one project room, and fans received events out to handlers.
type SubscriptionManager struct {
	url        string
	creds      CredentialStore
	dialer     *websocket.Dialer
	minBackoff time.Duration
	maxBackoff time.Duration
	logger     zerolog.Logger

	mu      sync.Mutex
	conn    *websocket.Conn
	state   State
	project string
	cancel  context.CancelFunc
	done    chan struct{}

	writeMu sync.Mutex

	stateHandlers     handlers[func(State)]
	projectHandlers   handlers[func(ProjectUpdate)]
	taskHandlers      handlers[func(TaskUpdate)]
	milestoneHandlers handlers[func(MilestoneUpdate)]
	memberHandlers    handlers[func(MemberUpdate)]
	fileHandlers      handlers[func(FileUpdate)]
	resyncHandlers    handlers[func(Resync)]
	errorHandlers     handlers[func(string)]
}

// NewSubscriptionManager creates a disconnected manager
func NewSubscriptionManager(opts SubscriptionOptions) *SubscriptionManager {
	if opts.Dialer == nil {
		opts.Dialer = websocket.DefaultDialer
	}
	if opts.MinBackoff <= 0 {
		opts.MinBackoff = reconnectBaseDelay
	}
	if opts.MaxBackoff < opts.MinBackoff {
		opts.MaxBackoff = max(reconnectMaxDelay, opts.MinBackoff)
	}
	return &SubscriptionManager{
		url:        opts.URL,
		creds:      opts.Credentials,
		dialer:     opts.Dialer,
		minBackoff: opts.MinBackoff,
		maxBackoff: opts.MaxBackoff,
		logger:     logging.WithComponent("subscription"),
		state:      StateDisconnected,
	}
}

// Connect starts the connection loop in the background. It reconnects with
// exponential backoff until Close is called or ctx is done.
func (m *SubscriptionManager) Connect(ctx context.Context) {
	m.mu.Lock()
	if m.cancel != nil {
		m.mu.Unlock()
		return
	}
	ctx, cancel := context.WithCancel(ctx)
	m.cancel = cancel
	m.done = make(chan struct{})
	done := m.done
	m.mu.Unlock()

	go func() {
		defer close(done)
		m.run(ctx)
	}()
}

// Close stops the connection loop and waits for it to exit
func (m *SubscriptionManager) Close() {
	m.mu.Lock()
	cancel, done := m.cancel, m.done
	m.cancel = nil
	m.mu.Unlock()

	if cancel == nil {
		return
	}
	cancel()
	<-done
}

// State returns the current connection state
func (m *SubscriptionManager) State() State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

// CurrentProject returns the project room the manager is joined to, or ""
func (m *SubscriptionManager) CurrentProject() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.project
}

// JoinProject makes projectID the single active room, leaving the previous
// one. While disconnected the room is remembered and joined on connect.
func (m *SubscriptionManager) JoinProject(projectID string) {
	m.mu.Lock()
	previous := m.project
	m.project = projectID
	m.mu.Unlock()

	if previous != "" && previous != projectID {
		m.send(realtime.MsgLeaveProject, previous)
	}
	m.send(realtime.MsgJoinProject, projectID)
}

// LeaveProject leaves projectID if it is the active room
func (m *SubscriptionManager) LeaveProject(projectID string) {
	m.mu.Lock()
	if m.project != projectID {
		m.mu.Unlock()
		return
	}
	m.project = ""
	m.mu.Unlock()

	m.send(realtime.MsgLeaveProject, projectID)
}

// OnStateChange registers fn for connection state transitions
func (m *SubscriptionManager) OnStateChange(fn func(State)) func() {
	return m.stateHandlers.add(fn)
}

// OnProjectUpdate registers fn for project:update events of the active room
func (m *SubscriptionManager) OnProjectUpdate(fn func(ProjectUpdate)) func() {
	return m.projectHandlers.add(fn)
}

// OnTaskUpdate registers fn for task events of the active project
func (m *SubscriptionManager) OnTaskUpdate(fn func(TaskUpdate)) func() {
	return m.taskHandlers.add(fn)
}

// OnMilestoneUpdate registers fn for milestone events of the active project
func (m *SubscriptionManager) OnMilestoneUpdate(fn func(MilestoneUpdate)) func() {
	return m.milestoneHandlers.add(fn)
}

// OnMemberUpdate registers fn for member events of the active project
func (m *SubscriptionManager) OnMemberUpdate(fn func(MemberUpdate)) func() {
	return m.memberHandlers.add(fn)
}

// OnFileUpdate registers fn for file events of the active project
func (m *SubscriptionManager) OnFileUpdate(fn func(FileUpdate)) func() {
	return m.fileHandlers.add(fn)
}

// OnResync registers fn for confirmed joins of the active room
func (m *SubscriptionManager) OnResync(fn func(Resync)) func() {
	return m.resyncHandlers.add(fn)
}

// OnServerError registers fn for error messages sent by the server
func (m *SubscriptionManager) OnServerError(fn func(string)) func() {
	return m.errorHandlers.add(fn)
}

func (m *SubscriptionManager) run(ctx context.Context) {
	backoff := m.minBackoff
	for {
		if ctx.Err() != nil {
			m.setState(StateDisconnected)
			return
		}

		m.setState(StateConnecting)
		conn, err := m.dial(ctx)
		if err != nil {
			m.logger.Warn().Err(err).Dur("retry_in", backoff).Msg("dial failed")
			m.setState(StateErrored)
			if !sleepCtx(ctx, backoff) {
				m.setState(StateDisconnected)
				return
			}
			backoff = min(backoff*2, m.maxBackoff)
			continue
		}
		backoff = m.minBackoff

		m.mu.Lock()
		m.conn = conn
		room := m.project
		m.mu.Unlock()

		m.setState(StateConnected)
		if room != "" {
			m.send(realtime.MsgJoinProject, room)
		}

		err = m.readLoop(ctx, conn)

		m.mu.Lock()
		if m.conn == conn {
			m.conn = nil
		}
		m.mu.Unlock()
		conn.Close()

		if ctx.Err() != nil {
			m.setState(StateDisconnected)
			return
		}
		m.logger.Info().Err(err).Msg("connection lost")
		m.setState(StateDisconnected)
		if !sleepCtx(ctx, backoff) {
			return
		}
	}
}

func (m *SubscriptionManager) dial(ctx context.Context) (*websocket.Conn, error) {
	header := http.Header{}
	if m.creds != nil {
		if token := m.creds.Token(); token != "" {
			header.Set("Authorization", "Bearer "+token)
		}
	}

	conn, resp, err := m.dialer.DialContext(ctx, m.url, header)
	if err != nil {
		if resp != nil && resp.StatusCode == http.StatusUnauthorized {
			return nil, ErrUnauthorized
		}
		return nil, err
	}
	return conn, nil
}

func (m *SubscriptionManager) readLoop(ctx context.Context, conn *websocket.Conn) error {
	stop := make(chan struct{})
	defer close(stop)
	go func() {
		select {
		case <-ctx.Done():
			conn.Close()
		case <-stop:
		}
	}()

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			return err
		}

		var msg realtime.Message
		if err := json.Unmarshal(data, &msg); err != nil {
			m.logger.Debug().Err(err).Msg("ignoring malformed message")
			continue
		}
		m.dispatch(msg)
	}
}

func (m *SubscriptionManager) dispatch(msg realtime.Message) {
	action := actionOf(msg.Type)

	switch {
	case msg.Type == realtime.MsgProjectUpdate:
		if !m.forCurrentProject(msg) {
			// late delivery from a room we already left
			return
		}
		var p domain.ProjectEvent
		if err := msg.DecodePayload(&p); err != nil {
			m.logger.Debug().Err(err).Msg("bad project update")
			return
		}
		update := ProjectUpdate{Action: p.Action, Project: p.Project, Version: msg.Version}
		for _, fn := range m.projectHandlers.snapshot() {
			fn(update)
		}

	case msg.Type == realtime.MsgRoomJoined:
		var p realtime.RoomJoinedPayload
		if err := msg.DecodePayload(&p); err != nil || p.ProjectID != m.CurrentProject() {
			return
		}
		for _, fn := range m.resyncHandlers.snapshot() {
			fn(Resync{ProjectID: p.ProjectID, Version: p.Version})
		}

	case msg.Type == realtime.MsgError:
		var p realtime.ErrorPayload
		if err := msg.DecodePayload(&p); err != nil {
			return
		}
		m.logger.Warn().Str("message", p.Message).Msg("server rejected request")
		for _, fn := range m.errorHandlers.snapshot() {
			fn(p.Message)
		}

	case !m.forCurrentProject(msg):
		// sub-resource event of another project under global broadcast

	case strings.HasPrefix(msg.Type, string(domain.CategoryTask)+":"):
		var t domain.Task
		if msg.DecodePayload(&t) == nil {
			for _, fn := range m.taskHandlers.snapshot() {
				fn(TaskUpdate{Action: action, Task: t, Version: msg.Version})
			}
		}

	case strings.HasPrefix(msg.Type, string(domain.CategoryMilestone)+":"):
		var ms domain.Milestone
		if msg.DecodePayload(&ms) == nil {
			for _, fn := range m.milestoneHandlers.snapshot() {
				fn(MilestoneUpdate{Action: action, Milestone: ms, Version: msg.Version})
			}
		}

	case strings.HasPrefix(msg.Type, string(domain.CategoryMember)+":"):
		var mb domain.Member
		if msg.DecodePayload(&mb) == nil {
			for _, fn := range m.memberHandlers.snapshot() {
				fn(MemberUpdate{Action: action, Member: mb, Version: msg.Version})
			}
		}

	case strings.HasPrefix(msg.Type, string(domain.CategoryFile)+":"):
		var f domain.File
		if msg.DecodePayload(&f) == nil {
			for _, fn := range m.fileHandlers.snapshot() {
				fn(FileUpdate{Action: action, File: f, Version: msg.Version})
			}
		}
	}
}

func (m *SubscriptionManager) forCurrentProject(msg realtime.Message) bool {
	return msg.ProjectID != "" && msg.ProjectID == m.CurrentProject()
}

func (m *SubscriptionManager) send(msgType, projectID string) {
	m.mu.Lock()
	conn := m.conn
	m.mu.Unlock()
	if conn == nil {
		return
	}

	msg, err := realtime.NewMessage(msgType, realtime.RoomPayload{ProjectID: projectID})
	if err != nil {
		return
	}

	m.writeMu.Lock()
	defer m.writeMu.Unlock()
	conn.SetWriteDeadline(time.Now().Add(writeTimeout))
	if err := conn.WriteJSON(msg); err != nil && !errors.Is(err, websocket.ErrCloseSent) {
		m.logger.Debug().Err(err).Str("type", msgType).Msg("write failed")
	}
}

func (m *SubscriptionManager) setState(state State) {
	m.mu.Lock()
	if m.state == state {
		m.mu.Unlock()
		return
	}
	m.state = state
	m.mu.Unlock()

	for _, fn := range m.stateHandlers.snapshot() {
		fn(state)
	}
}

func actionOf(msgType string) domain.EventAction {
	_, action, _ := strings.Cut(msgType, ":")
	return domain.EventAction(action)
}

func sleepCtx(ctx context.Context, d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}

// handlers is a set of callbacks registered on a manager
type handlers[F any] struct {
	mu     sync.Mutex
	nextID int
	fns    map[int]F
}

func (h *handlers[F]) add(fn F) func() {
	h.mu.Lock()
	if h.fns == nil {
		h.fns = make(map[int]F)
	}
	id := h.nextID
	h.nextID++
	h.fns[id] = fn
	h.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			h.mu.Lock()
			delete(h.fns, id)
			h.mu.Unlock()
		})
	}
}

func (h *handlers[F]) snapshot() []F {
	h.mu.Lock()
	defer h.mu.Unlock()
	out := make([]F, 0, len(h.fns))
	for _, fn := range h.fns {
		out = append(out, fn)
	}
	return out
}
