package inmemdb

import (
	"context"

	"github.com/alumnet/alumnet/core"
	"github.com/alumnet/alumnet/core/message"
)

type messageRepository struct {
	db *DB
}

var _ message.Repository = (*messageRepository)(nil)

func NewMessageRepository(db *DB) message.Repository {
	return &messageRepository{db: db}
}

func (repo *messageRepository) CreateMessage(ctx context.Context, msg message.Message) (message.Message, error) {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	msg.ID = core.NewID()
	repo.db.messages = append(repo.db.messages, msg)
	return msg, nil
}

func (repo *messageRepository) QueryConversation(ctx context.Context, userA, userB string) ([]message.Message, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	msgs := make([]message.Message, 0)
	for _, msg := range repo.db.messages {
		if (msg.FromID == userA && msg.ToID == userB) || (msg.FromID == userB && msg.ToID == userA) {
			msgs = append(msgs, msg)
		}
	}
	sortSlice(msgs, core.DBOrdering{Field: "created_at", Ascending: true}, func(i, j int) bool {
		return msgs[i].CreatedAt.Before(msgs[j].CreatedAt)
	})
	return msgs, nil
}
