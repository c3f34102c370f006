package realtime

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Rrens/projecthub/internal/domain"
	"github.com/Rrens/projecthub/internal/security"
)

type allowList map[uuid.UUID]bool

func (a allowList) IsMember(_ context.Context, projectID, _ uuid.UUID) (bool, error) {
	return a[projectID], nil
}

type testServer struct {
	*httptest.Server
	broker     *Broker
	dispatcher *Dispatcher
	jwt        *security.JWTManager
}

func newTestServer(t *testing.T, authz RoomAuthorizer) *testServer {
	t.Helper()
	broker := NewBroker(nil)
	dispatcher := NewDispatcher(broker, DispatcherOptions{ScopeSubresources: true, Versions: &memVersions{}})
	jwt := security.NewJWTManager("test-secret-key-with-32-chars!!", time.Minute, time.Hour)

	srv := httptest.NewServer(NewServer(broker, dispatcher, jwt, authz, ServerOptions{SendBuffer: 16}))
	t.Cleanup(srv.Close)
	return &testServer{Server: srv, broker: broker, dispatcher: dispatcher, jwt: jwt}
}

func (ts *testServer) dial(t *testing.T) *websocket.Conn {
	t.Helper()
	token, err := ts.jwt.GenerateAccessToken(uuid.New(), "a@example.com")
	require.NoError(t, err)

	url := "ws" + strings.TrimPrefix(ts.URL, "http") + "?token=" + token
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	return conn
}

func send(t *testing.T, conn *websocket.Conn, msgType, projectID string) {
	t.Helper()
	msg, err := NewMessage(msgType, RoomPayload{ProjectID: projectID})
	require.NoError(t, err)
	require.NoError(t, conn.WriteJSON(msg))
}

func receive(t *testing.T, conn *websocket.Conn) Message {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	var msg Message
	require.NoError(t, conn.ReadJSON(&msg))
	return msg
}

func TestServer_RejectsMissingToken(t *testing.T) {
	ts := newTestServer(t, nil)

	resp, err := http.Get(ts.URL)
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	url := "ws" + strings.TrimPrefix(ts.URL, "http") + "?token=bogus"
	_, resp, err = websocket.DefaultDialer.Dial(url, nil)
	require.Error(t, err)
	require.NotNil(t, resp)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}

func TestServer_JoinAndReceive(t *testing.T) {
	projectID := uuid.New()
	ts := newTestServer(t, allowList{projectID: true})
	conn := ts.dial(t)

	send(t, conn, MsgJoinProject, projectID.String())
	joined := receive(t, conn)
	require.Equal(t, MsgRoomJoined, joined.Type)

	var ack RoomJoinedPayload
	require.NoError(t, joined.DecodePayload(&ack))
	assert.Equal(t, projectID.String(), ack.ProjectID)
	assert.Equal(t, int64(0), ack.Version)

	ts.dispatcher.Emit(context.Background(), domain.NewTaskEvent(domain.ActionCreated, domain.Task{ID: uuid.New(), ProjectID: projectID, Title: "x"}))

	event := receive(t, conn)
	assert.Equal(t, MsgTaskCreated, event.Type)
	assert.Equal(t, projectID.String(), event.ProjectID)
	assert.Equal(t, int64(1), event.Version)

	send(t, conn, MsgLeaveProject, projectID.String())
	assert.Equal(t, MsgRoomLeft, receive(t, conn).Type)
	assert.Eventually(t, func() bool {
		return ts.broker.SubscriberCount(projectID.String()) == 0
	}, time.Second, 10*time.Millisecond)
}

func TestServer_JoinDenied(t *testing.T) {
	projectID := uuid.New()
	ts := newTestServer(t, allowList{})
	conn := ts.dial(t)

	send(t, conn, MsgJoinProject, projectID.String())
	msg := receive(t, conn)
	require.Equal(t, MsgError, msg.Type)

	var payload ErrorPayload
	require.NoError(t, msg.DecodePayload(&payload))
	assert.Equal(t, "Access denied to this project", payload.Message)
	assert.Equal(t, 0, ts.broker.SubscriberCount(projectID.String()))
}

func TestServer_BadRequests(t *testing.T) {
	ts := newTestServer(t, nil)
	conn := ts.dial(t)

	require.NoError(t, conn.WriteMessage(websocket.TextMessage, []byte("not json")))
	assert.Equal(t, MsgError, receive(t, conn).Type)

	send(t, conn, MsgJoinProject, "not-a-uuid")
	assert.Equal(t, MsgError, receive(t, conn).Type)

	send(t, conn, "dance", "")
	assert.Equal(t, MsgError, receive(t, conn).Type)
}

func TestServer_DisconnectUnregisters(t *testing.T) {
	ts := newTestServer(t, nil)
	conn := ts.dial(t)

	assert.Eventually(t, func() bool { return ts.broker.SessionCount() == 1 }, time.Second, 10*time.Millisecond)
	conn.Close()
	assert.Eventually(t, func() bool { return ts.broker.SessionCount() == 0 }, 2*time.Second, 10*time.Millisecond)
}
