package realtime

import (
	"fmt"

	"github.com/pkg/errors"

	"github.com/alumnet/alumnet/core"
)

// Client is a connection together with the identity it authenticated as.
type Client struct {
	Conn    Conn
	UserID  string
	IsAdmin bool
}

func (c Client) mayActAs(userID string) bool {
	return c.IsAdmin || userID == c.UserID
}

// Hub dispatches inbound frames against a Registry.
type Hub struct {
	registry *Registry
	logger   core.Logger
}

func NewHub(registry *Registry, logger core.Logger) *Hub {
	return &Hub{registry: registry, logger: logger}
}

func (h *Hub) Registry() *Registry { return h.registry }

// Handle applies one inbound frame. Malformed frames are reported to the client with an error event.
func (h *Hub) Handle(client Client, frame Frame) {
	if err := h.dispatch(client, frame); err != nil {
		h.logger.Warn(fmt.Sprintf("realtime: dropping %q frame from %s: %v", frame.Event, client.Conn.ID(), err))
		_ = client.Conn.Send(EventError, FrameError{Event: frame.Event, Error: errors.Cause(err).Error()})
	}
}

func (h *Hub) dispatch(client Client, frame Frame) error {
	switch frame.Event {
	case EventAddUser:
		return h.addUser(client, frame)
	case EventSendMsg:
		return h.sendMsg(client, frame)
	case EventJoinGroup:
		return h.joinGroup(client, frame)
	case EventSendGroupMsg:
		return h.sendGroupMsg(client, frame)
	case EventLeaveGroup:
		return h.leaveGroup(client, frame)
	case EventDisconnect:
		h.Disconnect(client)
		return nil
	default:
		return ErrUnknownEvent
	}
}

// Disconnect removes every trace of the client connection.
func (h *Hub) Disconnect(client Client) {
	h.registry.Disconnect(client.Conn)
}

func (h *Hub) addUser(client Client, frame Frame) error {
	var userID string
	if err := frame.Arg(0, &userID); err != nil {
		return err
	}
	if userID = core.CleanString(userID); userID == "" {
		return ErrMissingArgs
	}
	if !client.mayActAs(userID) {
		return ErrForbiddenUser
	}
	h.registry.Register(userID, client.Conn)
	return nil
}

func (h *Hub) sendMsg(client Client, frame Frame) error {
	var msg DirectMessage
	if err := frame.Arg(0, &msg); err != nil {
		return err
	}
	if msg.From == "" {
		msg.From = client.UserID
	}
	if msg.To == "" || msg.Msg == "" {
		return ErrMissingArgs
	}
	if !client.mayActAs(msg.From) {
		return ErrForbiddenUser
	}
	h.registry.RouteToUser(msg.To, EventMsgReceive, Received{From: msg.From, Msg: msg.Msg})
	return nil
}

func (h *Hub) joinGroup(client Client, frame Frame) error {
	var groupID string
	if err := frame.Arg(0, &groupID); err != nil {
		return err
	}
	if groupID == "" {
		return ErrMissingArgs
	}
	// the second argument names the joining user
	if len(frame.Args) > 1 {
		var userID string
		if err := frame.Arg(1, &userID); err != nil {
			return err
		}
		if userID != "" && !client.mayActAs(userID) {
			return ErrForbiddenUser
		}
	}
	h.registry.Join(groupID, client.Conn)
	return nil
}

func (h *Hub) sendGroupMsg(client Client, frame Frame) error {
	var msg GroupMessage
	if err := frame.Arg(0, &msg); err != nil {
		return err
	}
	if msg.From == "" {
		msg.From = client.UserID
	}
	if msg.GroupID == "" || msg.Msg == "" {
		return ErrMissingArgs
	}
	if !client.mayActAs(msg.From) {
		return ErrForbiddenUser
	}
	h.registry.RouteToGroup(msg.GroupID, EventGroupMsgReceive, Received{From: msg.From, Msg: msg.Msg})
	return nil
}

func (h *Hub) leaveGroup(client Client, frame Frame) error {
	var groupID string
	if err := frame.Arg(0, &groupID); err != nil {
		return err
	}
	h.registry.Leave(groupID, client.Conn)
	return nil
}
