package realtime

import (
	"encoding/json"

	"github.com/pkg/errors"
)

// inbound events
const (
	EventAddUser      = "add-user"
	EventSendMsg      = "send-msg"
	EventJoinGroup    = "join-group"
	EventSendGroupMsg = "send-group-msg"
	EventLeaveGroup   = "leave-group"
	EventDisconnect   = "disconnect"
)

// outbound events
const (
	EventMsgReceive      = "msg-receive"
	EventGroupMsgReceive = "group-msg-receive"
	EventError           = "error"
)

var (
	ErrUnknownEvent  = errors.New("unknown event")
	ErrMissingArgs   = errors.New("missing arguments")
	ErrForbiddenUser = errors.New("cannot act on behalf of another user")
)

// Frame is the wire format of every socket message.
type Frame struct {
	Event string            `json:"event"`
	Args  []json.RawMessage `json:"args"`
}

// NewFrame encodes args into a Frame.
func NewFrame(event string, args ...interface{}) (Frame, error) {
	frame := Frame{Event: event, Args: make([]json.RawMessage, 0, len(args))}
	for _, arg := range args {
		raw, err := json.Marshal(arg)
		if err != nil {
			return Frame{}, errors.Wrapf(err, "encoding %s argument", event)
		}
		frame.Args = append(frame.Args, raw)
	}
	return frame, nil
}

// Arg decodes the i-th argument into dst.
func (f Frame) Arg(i int, dst interface{}) error {
	if i >= len(f.Args) {
		return ErrMissingArgs
	}
	if err := json.Unmarshal(f.Args[i], dst); err != nil {
		return errors.Wrapf(err, "decoding %s argument %d", f.Event, i)
	}
	return nil
}

type (
	DirectMessage struct {
		To   string `json:"to"`
		From string `json:"from"`
		Msg  string `json:"msg"`
	}

	GroupMessage struct {
		GroupID string `json:"groupId"`
		From    string `json:"from"`
		Msg     string `json:"msg"`
	}

	// Received is the payload of msg-receive and group-msg-receive.
	Received struct {
		From string `json:"from"`
		Msg  string `json:"msg"`
	}

	// FrameError is the payload of the error event.
	FrameError struct {
		Event string `json:"event"`
		Error string `json:"error"`
	}
)
