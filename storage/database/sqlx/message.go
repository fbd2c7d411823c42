package sqlxrepos

import (
	"context"
	"time"

	"github.com/pkg/errors"

	"github.com/alumnet/alumnet/core"
	"github.com/alumnet/alumnet/core/message"
)

type dbMessage struct {
	ID        string    `db:"id"`
	FromID    string    `db:"from_id"`
	ToID      string    `db:"to_id"`
	Text      string    `db:"text"`
	CreatedAt time.Time `db:"created_at"`
}

type messageRepository struct {
	db core.DB
}

var _ message.Repository = (*messageRepository)(nil)

func NewMessageRepository(db core.DB) message.Repository {
	return &messageRepository{db: db}
}

func (repo *messageRepository) CreateMessage(ctx context.Context, msg message.Message) (message.Message, error) {
	msg.ID = core.NewID()
	q := "INSERT INTO messages (id, from_id, to_id, text, created_at) VALUES (:id, :from_id, :to_id, :text, :created_at)"
	row := dbMessage{ID: msg.ID, FromID: msg.FromID, ToID: msg.ToID, Text: msg.Text, CreatedAt: msg.CreatedAt}
	if _, err := repo.db.NamedExecContext(ctx, q, row); err != nil {
		return message.Message{}, errors.Wrap(err, "inserting message")
	}
	return msg, nil
}

func (repo *messageRepository) QueryConversation(ctx context.Context, userA, userB string) ([]message.Message, error) {
	var rows []dbMessage
	q := `SELECT id, from_id, to_id, text, created_at FROM messages
		WHERE (from_id::text = $1 AND to_id::text = $2) OR (from_id::text = $2 AND to_id::text = $1)
		ORDER BY created_at`
	if err := repo.db.SelectContext(ctx, &rows, q, userA, userB); err != nil {
		return nil, errors.Wrap(err, "selecting messages")
	}
	msgs := make([]message.Message, 0, len(rows))
	for _, row := range rows {
		msgs = append(msgs, message.Message{
			ID:        row.ID,
			FromID:    row.FromID,
			ToID:      row.ToID,
			Text:      row.Text,
			CreatedAt: row.CreatedAt.UTC(),
		})
	}
	return msgs, nil
}
