// Package message stores the direct messages exchanged between two users.
package message

import (
	"context"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/pkg/errors"

	"github.com/alumnet/alumnet/core"
)

var ErrSelfMessage = errors.New("you cannot message yourself")

type Message struct {
	ID        string    `json:"id"`
	FromID    string    `json:"from"`
	ToID      string    `json:"to"`
	Text      string    `json:"message"`
	CreatedAt time.Time `json:"created_at"`
}

type NewMessage struct {
	To   string `json:"to" validate:"required,uuid"`
	Text string `json:"msg" validate:"required,max=5000"`
}

func (nm *NewMessage) Validate(validate *validator.Validate) error {
	nm.To = core.CleanString(nm.To, true /* lower */)
	nm.Text = core.CleanString(nm.Text)
	return validate.Struct(nm)
}

// ProjectedMessage is a Message as seen by one side of the conversation.
type ProjectedMessage struct {
	FromSelf  bool      `json:"from_self"`
	Message   string    `json:"message"`
	CreatedAt time.Time `json:"created_at"`
}

type (
	Repository interface {
		CreateMessage(ctx context.Context, msg Message) (Message, error)
		// QueryConversation returns the messages exchanged between userA and userB, oldest first.
		QueryConversation(ctx context.Context, userA, userB string) ([]Message, error)
	}

	Service interface {
		Add(ctx context.Context, fromID string, nm NewMessage) (Message, error)
		Conversation(ctx context.Context, viewerID, otherID string) ([]ProjectedMessage, error)
	}

	service struct {
		repo Repository
	}
)

var _ Service = (*service)(nil)

func NewService(repo Repository) Service {
	return &service{repo: repo}
}

func (svc *service) Add(ctx context.Context, fromID string, nm NewMessage) (Message, error) {
	if fromID == nm.To {
		return Message{}, core.NewFieldValidationError("to", ErrSelfMessage)
	}
	return svc.repo.CreateMessage(ctx, Message{
		FromID:    fromID,
		ToID:      nm.To,
		Text:      nm.Text,
		CreatedAt: time.Now().UTC(),
	})
}

func (svc *service) Conversation(ctx context.Context, viewerID, otherID string) ([]ProjectedMessage, error) {
	msgs, err := svc.repo.QueryConversation(ctx, viewerID, otherID)
	if err != nil {
		return nil, errors.Wrap(err, "querying conversation")
	}
	projected := make([]ProjectedMessage, 0, len(msgs))
	for _, msg := range msgs {
		projected = append(projected, ProjectedMessage{
			FromSelf:  msg.FromID == viewerID,
			Message:   msg.Text,
			CreatedAt: msg.CreatedAt,
		})
	}
	return projected, nil
}
