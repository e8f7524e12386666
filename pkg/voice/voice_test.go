package voice

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testUpgrader = websocket.Upgrader{
	CheckOrigin: func(*http.Request) bool { return true },
}

type voiceServer struct {
	t        *testing.T
	srv      *httptest.Server
	conns    chan *websocket.Conn
	received chan envelope
}

func newVoiceServer(t *testing.T) *voiceServer {
	t.Helper()
	vs := &voiceServer{
		t:        t,
		conns:    make(chan *websocket.Conn, 4),
		received: make(chan envelope, 64),
	}
	vs.srv = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ws, err := testUpgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		vs.conns <- ws
		for {
			var env envelope
			if err := ws.ReadJSON(&env); err != nil {
				return
			}
			vs.received <- env
		}
	}))
	t.Cleanup(vs.srv.Close)
	return vs
}

func (vs *voiceServer) endpoint() string {
	return "ws" + strings.TrimPrefix(vs.srv.URL, "http")
}

func (vs *voiceServer) accept() (*websocket.Conn, envelope) {
	vs.t.Helper()
	var ws *websocket.Conn
	select {
	case ws = <-vs.conns:
	case <-time.After(2 * time.Second):
		vs.t.Fatal("no connection arrived")
	}
	select {
	case env := <-vs.received:
		return ws, env
	case <-time.After(2 * time.Second):
		vs.t.Fatal("no identify frame arrived")
	}
	return nil, envelope{}
}

func (vs *voiceServer) send(ws *websocket.Conn, op int, payload interface{}) {
	vs.t.Helper()
	raw, err := json.Marshal(payload)
	require.NoError(vs.t, err)
	require.NoError(vs.t, ws.WriteJSON(envelope{Op: op, Data: raw}))
}

func testParams(endpoint string) LoginParams {
	return LoginParams{
		Endpoint:  endpoint,
		ServerID:  "g1",
		UserID:    "u1",
		SessionID: "sess-1",
		Token:     "vtok",
	}
}

func TestLoginIdentifies(t *testing.T) {
	vs := newVoiceServer(t)
	c := NewConn()
	defer c.Disconnect()

	require.NoError(t, c.Login(context.Background(), testParams(vs.endpoint())))

	_, identify := vs.accept()
	assert.Equal(t, opIdentify, identify.Op)
	var payload map[string]string
	require.NoError(t, json.Unmarshal(identify.Data, &payload))
	assert.Equal(t, "g1", payload["server_id"])
	assert.Equal(t, "u1", payload["user_id"])
	assert.Equal(t, "sess-1", payload["session_id"])
	assert.Equal(t, "vtok", payload["token"])
}

func TestLoginTwiceFails(t *testing.T) {
	vs := newVoiceServer(t)
	c := NewConn()
	defer c.Disconnect()

	require.NoError(t, c.Login(context.Background(), testParams(vs.endpoint())))
	err := c.Login(context.Background(), testParams(vs.endpoint()))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "already connected")
}

func TestReadyRaisesConnectedAndHeartbeats(t *testing.T) {
	vs := newVoiceServer(t)
	c := NewConn()
	defer c.Disconnect()

	require.NoError(t, c.Login(context.Background(), testParams(vs.endpoint())))
	ws, _ := vs.accept()

	vs.send(ws, opReady, map[string]interface{}{"heartbeat_interval": 30})

	select {
	case update := <-c.StateChanges():
		assert.True(t, update.Connected)
	case <-time.After(2 * time.Second):
		t.Fatal("connected notification never arrived")
	}

	deadline := time.After(2 * time.Second)
	for {
		select {
		case env := <-vs.received:
			if env.Op == opHeartbeat {
				return
			}
		case <-deadline:
			t.Fatal("no heartbeat arrived")
		}
	}
}

func TestSpeakingUpdatesFlow(t *testing.T) {
	vs := newVoiceServer(t)
	c := NewConn()
	defer c.Disconnect()

	require.NoError(t, c.Login(context.Background(), testParams(vs.endpoint())))
	ws, _ := vs.accept()

	vs.send(ws, opSpeaking, SpeakingUpdate{UserID: "u2", Speaking: true})
	vs.send(ws, opSpeaking, SpeakingUpdate{UserID: "u2", Speaking: false})

	select {
	case update := <-c.Speaking():
		assert.Equal(t, "u2", update.UserID)
		assert.True(t, update.Speaking)
	case <-time.After(2 * time.Second):
		t.Fatal("speaking update never arrived")
	}
	select {
	case update := <-c.Speaking():
		assert.False(t, update.Speaking)
	case <-time.After(2 * time.Second):
		t.Fatal("second speaking update never arrived")
	}
}

func TestUnexpectedDropIsReported(t *testing.T) {
	vs := newVoiceServer(t)
	c := NewConn()

	require.NoError(t, c.Login(context.Background(), testParams(vs.endpoint())))
	ws, _ := vs.accept()

	ws.Close()

	select {
	case update := <-c.StateChanges():
		assert.False(t, update.Connected)
		assert.True(t, update.WasUnexpected)
		assert.Error(t, update.Err)
	case <-time.After(2 * time.Second):
		t.Fatal("drop notification never arrived")
	}

	// The transport accepts a fresh login afterwards.
	require.NoError(t, c.Login(context.Background(), testParams(vs.endpoint())))
	defer c.Disconnect()
	vs.accept()
}

func TestRequestedDisconnectIsClean(t *testing.T) {
	vs := newVoiceServer(t)
	c := NewConn()

	require.NoError(t, c.Login(context.Background(), testParams(vs.endpoint())))
	vs.accept()

	require.NoError(t, c.Disconnect())
	require.NoError(t, c.Disconnect())

	select {
	case update := <-c.StateChanges():
		assert.False(t, update.Connected)
		assert.False(t, update.WasUnexpected)
	case <-time.After(2 * time.Second):
		t.Fatal("close notification never arrived")
	}
}
