package realtime

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"github.com/Rrens/projecthub/internal/logging"
	"github.com/Rrens/projecthub/internal/security"
)

const maxMessageSize = 4096

// TokenValidator validates bearer tokens presented on connect
type TokenValidator interface {
	ValidateAccessToken(token string) (*security.Claims, error)
}

// RoomAuthorizer decides whether a user may join a project room
type RoomAuthorizer interface {
	IsMember(ctx context.Context, projectID, userID uuid.UUID) (bool, error)
}

// ServerOptions configures the websocket endpoint
type ServerOptions struct {
	SendBuffer     int
	PingInterval   time.Duration
	PongTimeout    time.Duration
	WriteTimeout   time.Duration
	AllowedOrigins []string
}

// Server upgrades HTTP requests to websocket sessions and handles the
// join_project and leave_project requests they send
type Server struct {
	broker     *Broker
	dispatcher *Dispatcher
	tokens     TokenValidator
	authz      RoomAuthorizer
	opts       ServerOptions
	upgrader   websocket.Upgrader
	logger     zerolog.Logger
}

// NewServer creates the websocket endpoint. authz may be nil to allow every join.
func NewServer(broker *Broker, dispatcher *Dispatcher, tokens TokenValidator, authz RoomAuthorizer, opts ServerOptions) *Server {
	if opts.PingInterval <= 0 {
		opts.PingInterval = 30 * time.Second
	}
	if opts.PongTimeout <= opts.PingInterval {
		opts.PongTimeout = 2 * opts.PingInterval
	}
	if opts.WriteTimeout <= 0 {
		opts.WriteTimeout = 10 * time.Second
	}

	s := &Server{
		broker:     broker,
		dispatcher: dispatcher,
		tokens:     tokens,
		authz:      authz,
		opts:       opts,
		logger:     logging.WithComponent("realtime"),
	}
	s.upgrader = websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin:     s.checkOrigin,
	}
	return s
}

func (s *Server) checkOrigin(r *http.Request) bool {
	origin := r.Header.Get("Origin")
	if origin == "" {
		return true
	}
	for _, allowed := range s.opts.AllowedOrigins {
		if allowed == "*" || allowed == origin {
			return true
		}
	}
	return false
}

func bearerToken(r *http.Request) string {
	if header := r.Header.Get("Authorization"); header != "" {
		parts := strings.SplitN(header, " ", 2)
		if len(parts) == 2 && strings.EqualFold(parts[0], "bearer") {
			return parts[1]
		}
		return ""
	}
	return r.URL.Query().Get("token")
}

// ServeHTTP authenticates, upgrades and serves one session until it disconnects
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	token := bearerToken(r)
	if token == "" {
		http.Error(w, "missing credentials", http.StatusUnauthorized)
		return
	}

	claims, err := s.tokens.ValidateAccessToken(token)
	if err != nil {
		http.Error(w, "invalid or expired token", http.StatusUnauthorized)
		return
	}

	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Warn().Err(err).Msg("websocket upgrade failed")
		return
	}

	session := NewSession(claims.UserID, s.opts.SendBuffer)
	s.broker.Register(session)

	logger := s.logger.With().Str("session_id", session.ID).Str("user_id", claims.UserID.String()).Logger()
	logger.Info().Str("remote_addr", r.RemoteAddr).Msg("session connected")

	go s.writePump(conn, session)
	s.readLoop(r.Context(), conn, session, logger)

	s.broker.Unregister(session)
	logger.Info().Msg("session disconnected")
}

func (s *Server) readLoop(ctx context.Context, conn *websocket.Conn, session *Session, logger zerolog.Logger) {
	conn.SetReadLimit(maxMessageSize)
	conn.SetReadDeadline(time.Now().Add(s.opts.PongTimeout))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(s.opts.PongTimeout))
	})

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				logger.Debug().Err(err).Msg("read error")
			}
			return
		}

		var msg Message
		if err := json.Unmarshal(data, &msg); err != nil {
			s.sendError(session, "malformed message")
			continue
		}

		s.handle(ctx, session, msg, logger)
	}
}

func (s *Server) handle(ctx context.Context, session *Session, msg Message, logger zerolog.Logger) {
	switch msg.Type {
	case MsgJoinProject:
		var p RoomPayload
		if err := msg.DecodePayload(&p); err != nil {
			s.sendError(session, "invalid join_project payload")
			return
		}
		s.join(ctx, session, p.ProjectID, logger)

	case MsgLeaveProject:
		var p RoomPayload
		if err := msg.DecodePayload(&p); err != nil {
			s.sendError(session, "invalid leave_project payload")
			return
		}
		s.broker.Leave(session, p.ProjectID)
		reply, _ := NewMessage(MsgRoomLeft, RoomPayload{ProjectID: p.ProjectID})
		s.broker.Send(session, reply)
		logger.Debug().Str("project_id", p.ProjectID).Msg("left project room")

	default:
		s.sendError(session, "unknown message type: "+msg.Type)
	}
}

func (s *Server) join(ctx context.Context, session *Session, room string, logger zerolog.Logger) {
	projectID, err := uuid.Parse(room)
	if err != nil {
		s.sendError(session, "invalid project id")
		return
	}

	if s.authz != nil {
		ok, err := s.authz.IsMember(ctx, projectID, session.UserID)
		if err != nil {
			logger.Error().Err(err).Str("project_id", room).Msg("membership check failed")
			s.sendError(session, "failed to join project")
			return
		}
		if !ok {
			s.sendError(session, "Access denied to this project")
			return
		}
	}

	s.broker.Join(session, room)

	var version int64
	if s.dispatcher != nil {
		version = s.dispatcher.CurrentVersion(ctx, room)
	}
	reply, _ := NewMessage(MsgRoomJoined, RoomJoinedPayload{ProjectID: room, Version: version})
	s.broker.Send(session, reply)
	logger.Debug().Str("project_id", room).Int64("version", version).Msg("joined project room")
}

func (s *Server) sendError(session *Session, message string) {
	msg, _ := NewMessage(MsgError, ErrorPayload{Message: message})
	s.broker.Send(session, msg)
}

// writePump drains the session queue onto the connection and keeps it alive
// with pings. It closes the connection when the queue is closed or a write fails.
func (s *Server) writePump(conn *websocket.Conn, session *Session) {
	ticker := time.NewTicker(s.opts.PingInterval)
	defer func() {
		ticker.Stop()
		conn.Close()
	}()

	for {
		select {
		case data, ok := <-session.Outbound():
			conn.SetWriteDeadline(time.Now().Add(s.opts.WriteTimeout))
			if !ok {
				conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
				return
			}
			if err := conn.WriteMessage(websocket.TextMessage, data); err != nil {
				s.broker.Unregister(session)
				return
			}
		case <-ticker.C:
			conn.SetWriteDeadline(time.Now().Add(s.opts.WriteTimeout))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				s.broker.Unregister(session)
				return
			}
		}
	}
}
