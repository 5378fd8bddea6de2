package observer

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"idlecraft.ai/internal/observerproto"
	"idlecraft.ai/internal/sim/agent"
)

func newTestServer(t *testing.T) (*Hub, *httptest.Server) {
	t.Helper()
	hub := NewHub()
	s := NewServer(hub, func() observerproto.BootstrapResponse {
		return observerproto.BootstrapResponse{SessionID: "s1", Tick: 7,
			Nodes: []observerproto.NodeInfo{{ID: "bank", Type: "bank"}}}
	}, nil)
	mux := http.NewServeMux()
	mux.HandleFunc("/observer/bootstrap", s.BootstrapHandler())
	mux.HandleFunc("/observer/ws", s.WSHandler())
	return hub, httptest.NewServer(mux)
}

func dial(t *testing.T, srv *httptest.Server) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/observer/ws"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	return conn
}

func waitSessions(t *testing.T, hub *Hub, n int) {
	t.Helper()
	require.Eventually(t, func() bool { return hub.Sessions() == n }, 2*time.Second, 5*time.Millisecond)
}

func TestBootstrap(t *testing.T) {
	_, srv := newTestServer(t)
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/observer/bootstrap")
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var b observerproto.BootstrapResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&b))
	assert.Equal(t, observerproto.Version, b.ProtocolVersion)
	assert.Equal(t, "s1", b.SessionID)
	assert.Len(t, b.Nodes, 1)

	post, err := http.Post(srv.URL+"/observer/bootstrap", "application/json", nil)
	require.NoError(t, err)
	post.Body.Close()
	assert.Equal(t, http.StatusMethodNotAllowed, post.StatusCode)
}

func TestStreamsStateFrames(t *testing.T) {
	defer goleak.VerifyNone(t, goleak.IgnoreCurrent())
	hub, srv := newTestServer(t)
	defer srv.Close()

	conn := dial(t, srv)
	defer conn.Close()
	require.NoError(t, conn.WriteJSON(observerproto.SubscribeMsg{Type: "SUBSCRIBE", ProtocolVersion: observerproto.Version}))
	waitSessions(t, hub, 1)

	frame, err := json.Marshal(observerproto.NewStateMsg(agent.View{Tick: 3, Phase: "moving", TargetNode: "tree"}))
	require.NoError(t, err)
	hub.Publish(3, frame)

	_ = conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	var msg observerproto.StateMsg
	require.NoError(t, conn.ReadJSON(&msg))
	assert.Equal(t, "STATE", msg.Type)
	assert.Equal(t, uint64(3), msg.Tick)
	assert.Equal(t, "tree", msg.Agent.TargetNode)

	require.NoError(t, conn.Close())
	waitSessions(t, hub, 0)
}

func TestRejectsMissingSubscribe(t *testing.T) {
	defer goleak.VerifyNone(t, goleak.IgnoreCurrent())
	hub, srv := newTestServer(t)
	defer srv.Close()

	conn := dial(t, srv)
	defer conn.Close()
	require.NoError(t, conn.WriteMessage(websocket.TextMessage, []byte(`{"type":"HELLO"}`)))

	_ = conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, _, err := conn.ReadMessage()
	var ce *websocket.CloseError
	require.ErrorAs(t, err, &ce)
	assert.Equal(t, websocket.ClosePolicyViolation, ce.Code)
	assert.Zero(t, hub.Sessions())
}

func TestHubCloseEndsSessions(t *testing.T) {
	defer goleak.VerifyNone(t, goleak.IgnoreCurrent())
	hub, srv := newTestServer(t)
	defer srv.Close()

	conn := dial(t, srv)
	defer conn.Close()
	require.NoError(t, conn.WriteJSON(observerproto.SubscribeMsg{Type: "SUBSCRIBE", ProtocolVersion: observerproto.Version}))
	waitSessions(t, hub, 1)

	hub.Close()
	_ = conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, _, err := conn.ReadMessage()
	assert.Error(t, err)
}

func TestIsLoopbackRemote(t *testing.T) {
	assert.True(t, isLoopbackRemote("127.0.0.1:5000"))
	assert.True(t, isLoopbackRemote("[::1]:5000"))
	assert.False(t, isLoopbackRemote("10.0.0.3:5000"))
	assert.False(t, isLoopbackRemote("garbage"))
}
