package realtime

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	logsvc "github.com/alumnet/alumnet/services/logger"
)

func frame(t *testing.T, event string, args ...interface{}) Frame {
	f, err := NewFrame(event, args...)
	require.NoError(t, err)
	return f
}

func lastError(t *testing.T, c *fakeConn) FrameError {
	recv := c.received()
	require.NotEmpty(t, recv)
	last := recv[len(recv)-1]
	require.Equal(t, EventError, last.event)
	return last.payload.(FrameError)
}

func TestHub_Handle(t *testing.T) {
	hub := NewHub(NewRegistry(), logsvc.NewTestLogger())
	reg := hub.Registry()

	alice1, alice2, bob := newFakeConn("a1"), newFakeConn("a2"), newFakeConn("b1")
	aliceC1 := Client{Conn: alice1, UserID: "alice"}
	aliceC2 := Client{Conn: alice2, UserID: "alice"}
	bobC := Client{Conn: bob, UserID: "bob"}

	hub.Handle(aliceC1, frame(t, EventAddUser, "alice"))
	hub.Handle(aliceC2, frame(t, EventAddUser, "alice"))
	hub.Handle(bobC, frame(t, EventAddUser, "bob"))
	assert.Equal(t, []ConnID{"a1", "a2"}, reg.UserConnections("alice"))

	t.Run("direct message reaches every device", func(t *testing.T) {
		hub.Handle(bobC, frame(t, EventSendMsg, DirectMessage{To: "alice", From: "bob", Msg: "hello"}))
		for _, c := range []*fakeConn{alice1, alice2} {
			recv := c.received()
			require.Len(t, recv, 1)
			assert.Equal(t, EventMsgReceive, recv[0].event)
			assert.Equal(t, Received{From: "bob", Msg: "hello"}, recv[0].payload)
		}
		assert.Empty(t, bob.received())
	})

	t.Run("group message reaches every member connection", func(t *testing.T) {
		hub.Handle(aliceC1, frame(t, EventJoinGroup, "g1", "alice"))
		hub.Handle(aliceC2, frame(t, EventJoinGroup, "g1", "alice"))
		hub.Handle(bobC, frame(t, EventJoinGroup, "g1", "bob"))

		hub.Handle(aliceC1, frame(t, EventSendGroupMsg, GroupMessage{GroupID: "g1", From: "alice", Msg: "all"}))
		require.Len(t, alice1.received(), 2)
		assert.Equal(t, EventGroupMsgReceive, alice1.received()[1].event)
		assert.Equal(t, Received{From: "alice", Msg: "all"}, alice1.received()[1].payload)
		require.Len(t, alice2.received(), 2)
		assert.Equal(t, EventGroupMsgReceive, alice2.received()[1].event)
		require.Len(t, bob.received(), 1)
		assert.Equal(t, Received{From: "alice", Msg: "all"}, bob.received()[0].payload)
	})

	t.Run("leave group", func(t *testing.T) {
		hub.Handle(bobC, frame(t, EventLeaveGroup, "g1"))
		assert.Equal(t, []ConnID{"a1", "a2"}, reg.GroupConnections("g1"))
	})

	t.Run("impersonation is rejected", func(t *testing.T) {
		hub.Handle(bobC, frame(t, EventAddUser, "alice"))
		assert.Equal(t, ErrForbiddenUser.Error(), lastError(t, bob).Error)
		assert.Equal(t, []ConnID{"b1"}, reg.UserConnections("bob"))

		hub.Handle(bobC, frame(t, EventSendMsg, DirectMessage{To: "alice", From: "carol", Msg: "x"}))
		assert.Equal(t, EventSendMsg, lastError(t, bob).Event)
	})

	t.Run("admin may register anyone", func(t *testing.T) {
		admin := newFakeConn("adm")
		hub.Handle(Client{Conn: admin, UserID: "root", IsAdmin: true}, frame(t, EventAddUser, "carol"))
		assert.Equal(t, []ConnID{"adm"}, reg.UserConnections("carol"))
	})

	t.Run("malformed frames are reported", func(t *testing.T) {
		tests := []Frame{
			{Event: EventAddUser},
			{Event: EventSendMsg, Args: []json.RawMessage{json.RawMessage(`{"to":"alice"}`)}},
			{Event: EventSendGroupMsg, Args: []json.RawMessage{json.RawMessage(`"nope"`)}},
			{Event: "unknown"},
		}
		for _, f := range tests {
			before := len(bob.received())
			hub.Handle(bobC, f)
			require.Len(t, bob.received(), before+1)
			assert.Equal(t, f.Event, lastError(t, bob).Event)
		}
	})

	t.Run("disconnect", func(t *testing.T) {
		hub.Handle(aliceC1, Frame{Event: EventDisconnect})
		assert.Equal(t, []ConnID{"a2"}, reg.UserConnections("alice"))
		assert.Equal(t, []ConnID{"a2"}, reg.GroupConnections("g1"))

		hub.Disconnect(aliceC2)
		assert.Empty(t, reg.UserConnections("alice"))
		assert.Empty(t, reg.GroupConnections("g1"))
	})
}
