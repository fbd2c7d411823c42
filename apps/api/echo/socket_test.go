package echoapi

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alumnet/alumnet/core"
	"github.com/alumnet/alumnet/core/realtime"
	"github.com/alumnet/alumnet/core/user"
)

const socketWait = 2 * time.Second

func dialSocket(t *testing.T, srv *httptest.Server, token string) (*websocket.Conn, *http.Response, error) {
	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/v1/ws"
	if token != "" {
		url += "?token=" + token
	}
	ws, resp, err := websocket.DefaultDialer.Dial(url, nil)
	if err == nil {
		t.Cleanup(func() { _ = ws.Close() })
	}
	return ws, resp, err
}

func sendFrame(t *testing.T, ws *websocket.Conn, event string, args ...interface{}) {
	frame, err := realtime.NewFrame(event, args...)
	require.NoError(t, err)
	require.NoError(t, ws.WriteJSON(frame))
}

func readFrame(t *testing.T, ws *websocket.Conn, dst interface{}) string {
	require.NoError(t, ws.SetReadDeadline(time.Now().Add(socketWait)))
	var frame realtime.Frame
	require.NoError(t, ws.ReadJSON(&frame))
	require.NoError(t, frame.Arg(0, dst))
	return frame.Event
}

func (app *testApp) connectUser(t *testing.T, srv *httptest.Server, usr user.User) *websocket.Conn {
	ws, _, err := dialSocket(t, srv, app.getToken(t, usr))
	require.NoError(t, err)
	sendFrame(t, ws, realtime.EventAddUser, usr.ID)
	require.Eventually(t, func() bool {
		return len(app.hub.Registry().UserConnections(usr.ID)) > 0
	}, socketWait, 10*time.Millisecond)
	return ws
}

func Test_socketApi_auth(t *testing.T) {
	app := setup(t)
	srv := httptest.NewServer(app)
	defer srv.Close()

	tests := []struct {
		name  string
		token string
	}{
		{"no token", ""},
		{"bad token", "lol"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, resp, err := dialSocket(t, srv, tt.token)
			require.Error(t, err)
			require.NotNil(t, resp)
			assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
		})
	}
}

func Test_socketApi_directMessages(t *testing.T) {
	app := setup(t)
	srv := httptest.NewServer(app)
	defer srv.Close()

	alice := app.createUser(t, "Alice", "aliceuser", "alice@test.cd")
	bob := app.createUser(t, "Bob", "bobuser", "bob@test.cd")
	aliceWS := app.connectUser(t, srv, alice)
	bobWS := app.connectUser(t, srv, bob)

	t.Run("deliver", func(t *testing.T) {
		sendFrame(t, bobWS, realtime.EventSendMsg, realtime.DirectMessage{To: alice.ID, Msg: "hi alice"})

		var got realtime.Received
		assert.Equal(t, realtime.EventMsgReceive, readFrame(t, aliceWS, &got))
		assert.Equal(t, realtime.Received{From: bob.ID, Msg: "hi alice"}, got)
	})

	t.Run("cannot impersonate", func(t *testing.T) {
		sendFrame(t, bobWS, realtime.EventSendMsg, realtime.DirectMessage{To: bob.ID, From: alice.ID, Msg: "it's me"})

		var got realtime.FrameError
		assert.Equal(t, realtime.EventError, readFrame(t, bobWS, &got))
		assert.Equal(t, realtime.FrameError{Event: realtime.EventSendMsg, Error: realtime.ErrForbiddenUser.Error()}, got)
	})

	t.Run("cannot register as somebody else", func(t *testing.T) {
		sendFrame(t, bobWS, realtime.EventAddUser, alice.ID)

		var got realtime.FrameError
		assert.Equal(t, realtime.EventError, readFrame(t, bobWS, &got))
		assert.Equal(t, realtime.ErrForbiddenUser.Error(), got.Error)
		assert.Len(t, app.hub.Registry().UserConnections(alice.ID), 1)
	})

	t.Run("malformed frame", func(t *testing.T) {
		require.NoError(t, bobWS.WriteMessage(websocket.TextMessage, []byte("lol")))

		var got realtime.FrameError
		assert.Equal(t, realtime.EventError, readFrame(t, bobWS, &got))
		assert.Equal(t, malformedFrameMsg, got.Error)
	})

	t.Run("unknown event", func(t *testing.T) {
		sendFrame(t, bobWS, "lol")

		var got realtime.FrameError
		assert.Equal(t, realtime.EventError, readFrame(t, bobWS, &got))
		assert.Equal(t, realtime.FrameError{Event: "lol", Error: realtime.ErrUnknownEvent.Error()}, got)
	})

	t.Run("online", func(t *testing.T) {
		req, rec := newAuthRequest(http.MethodGet, "/v1/online", app.getToken(t, alice))
		app.ServeHTTP(rec, req)
		require.Equal(t, http.StatusOK, rec.Code)

		var resp OnlineResponse
		unmarshal(t, rec, &resp)
		assert.ElementsMatch(t, []string{alice.ID, bob.ID}, resp.Users)
	})

	t.Run("disconnect", func(t *testing.T) {
		sendFrame(t, aliceWS, realtime.EventDisconnect)
		require.Eventually(t, func() bool {
			return len(app.hub.Registry().UserConnections(alice.ID)) == 0
		}, socketWait, 10*time.Millisecond)
		assert.Equal(t, []string{bob.ID}, app.hub.Registry().OnlineUsers())
	})
}

func Test_socketApi_groupMessages(t *testing.T) {
	app := setup(t)
	srv := httptest.NewServer(app)
	defer srv.Close()

	alice := app.createUser(t, "Alice", "aliceuser", "alice@test.cd")
	bob := app.createUser(t, "Bob", "bobuser", "bob@test.cd")
	carl := app.createUser(t, "Carl", "carluser", "carl@test.cd")
	aliceWS := app.connectUser(t, srv, alice)
	bobWS := app.connectUser(t, srv, bob)
	carlWS := app.connectUser(t, srv, carl)

	groupID := core.NewID()
	for _, ws := range []*websocket.Conn{aliceWS, bobWS} {
		sendFrame(t, ws, realtime.EventJoinGroup, groupID)
	}
	require.Eventually(t, func() bool {
		return len(app.hub.Registry().GroupConnections(groupID)) == 2
	}, socketWait, 10*time.Millisecond)

	sendFrame(t, aliceWS, realtime.EventSendGroupMsg, realtime.GroupMessage{GroupID: groupID, Msg: "hello class"})

	var got realtime.Received
	for _, ws := range []*websocket.Conn{aliceWS, bobWS} {
		assert.Equal(t, realtime.EventGroupMsgReceive, readFrame(t, ws, &got))
		assert.Equal(t, realtime.Received{From: alice.ID, Msg: "hello class"}, got)
	}

	// non-members do not get the group message: the next frame they read is a direct one
	for _, tc := range []struct {
		ws  *websocket.Conn
		usr user.User
	}{{carlWS, carl}} {
		sendFrame(t, bobWS, realtime.EventSendMsg, realtime.DirectMessage{To: tc.usr.ID, Msg: "direct"})
		assert.Equal(t, realtime.EventMsgReceive, readFrame(t, tc.ws, &got))
		assert.Equal(t, realtime.Received{From: bob.ID, Msg: "direct"}, got)
	}

	// leaving stops delivery
	sendFrame(t, bobWS, realtime.EventLeaveGroup, groupID)
	require.Eventually(t, func() bool {
		return len(app.hub.Registry().GroupConnections(groupID)) == 1
	}, socketWait, 10*time.Millisecond)
}
