package sqlxrepos

import (
	"context"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"github.com/pkg/errors"
	"github.com/volatiletech/null/v8"

	"github.com/alumnet/alumnet/core"
	"github.com/alumnet/alumnet/core/group"
)

var groupOrderingFields = []string{"created_at", "name"}

const groupSelect = `SELECT g.id, g.name, g.created_by, g.image, g.image_public_id, g.created_at, g.updated_at,
	COALESCE(array_agg(m.user_id::text ORDER BY m.joined_at) FILTER (WHERE m.user_id IS NOT NULL), '{}') AS members
	FROM groups g LEFT JOIN group_members m ON m.group_id = g.id`

type dbGroup struct {
	ID            string         `db:"id"`
	Name          string         `db:"name"`
	CreatedBy     string         `db:"created_by"`
	Image         string         `db:"image"`
	ImagePublicID null.String    `db:"image_public_id"`
	Members       pq.StringArray `db:"members"`
	CreatedAt     time.Time      `db:"created_at"`
	UpdatedAt     time.Time      `db:"updated_at"`
}

func (g dbGroup) toGroup() group.Group {
	members := []string(g.Members)
	if members == nil {
		members = []string{}
	}
	return group.Group{
		ID:            g.ID,
		Name:          g.Name,
		CreatedBy:     g.CreatedBy,
		Members:       members,
		Image:         g.Image,
		ImagePublicID: g.ImagePublicID.String,
		CreatedAt:     g.CreatedAt.UTC(),
		UpdatedAt:     g.UpdatedAt.UTC(),
	}
}

type groupRepository struct {
	db core.DB
}

var _ group.Repository = (*groupRepository)(nil)

func NewGroupRepository(db core.DB) group.Repository {
	return &groupRepository{db: db}
}

func (repo *groupRepository) CreateGroup(ctx context.Context, grp group.Group) (group.Group, error) {
	grp.ID = core.NewID()
	err := core.InTx(ctx, repo.db, func(tx *sqlx.Tx) error {
		q := `INSERT INTO groups (id, name, created_by, image, image_public_id, created_at, updated_at)
			VALUES ($1, $2, $3, $4, $5, $6, $7)`
		if _, err := tx.ExecContext(ctx, q, grp.ID, grp.Name, grp.CreatedBy, grp.Image,
			nullString(grp.ImagePublicID), grp.CreatedAt, grp.UpdatedAt); err != nil {
			return errors.Wrap(err, "inserting group")
		}
		for _, userID := range grp.Members {
			if err := addMember(ctx, tx, grp.ID, userID); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return group.Group{}, err
	}
	return repo.GetGroupByID(ctx, grp.ID)
}

func (repo *groupRepository) QueryGroups(ctx context.Context, ordering []core.DBOrdering) ([]group.Group, error) {
	var rows []dbGroup
	q := groupSelect + " GROUP BY g.id ORDER BY " + core.OrderByClause(prefixOrdering("g", ordering), prefixFields("g", groupOrderingFields), "g.created_at DESC")
	if err := repo.db.SelectContext(ctx, &rows, q); err != nil {
		return nil, errors.Wrap(err, "selecting groups")
	}
	groups := make([]group.Group, 0, len(rows))
	for _, row := range rows {
		groups = append(groups, row.toGroup())
	}
	return groups, nil
}

func (repo *groupRepository) GetGroupByID(ctx context.Context, id string) (group.Group, error) {
	var row dbGroup
	q := groupSelect + " WHERE g.id::text = $1 GROUP BY g.id"
	if err := repo.db.GetContext(ctx, &row, q, id); err != nil {
		return group.Group{}, notFound(err, group.ErrNotFound)
	}
	return row.toGroup(), nil
}

// UpdateGroup leaves membership alone.
func (repo *groupRepository) UpdateGroup(ctx context.Context, grp group.Group) (group.Group, error) {
	q := "UPDATE groups SET name = $1, image = $2, image_public_id = $3, updated_at = $4 WHERE id::text = $5"
	if err := execOne(ctx, repo.db, group.ErrNotFound, q, grp.Name, grp.Image, nullString(grp.ImagePublicID),
		grp.UpdatedAt, grp.ID); err != nil {
		return group.Group{}, err
	}
	return repo.GetGroupByID(ctx, grp.ID)
}

func (repo *groupRepository) DeleteGroup(ctx context.Context, id string) error {
	return execOne(ctx, repo.db, group.ErrNotFound, "DELETE FROM groups WHERE id::text = $1", id)
}

func addMember(ctx context.Context, db core.DBExecutor, groupID, userID string) error {
	q := "INSERT INTO group_members (group_id, user_id, joined_at) VALUES ($1, $2, $3) ON CONFLICT DO NOTHING"
	_, err := db.ExecContext(ctx, q, groupID, userID, time.Now().UTC())
	return errors.Wrap(err, "inserting group member")
}

func (repo *groupRepository) AddMember(ctx context.Context, groupID, userID string) error {
	if _, err := repo.GetGroupByID(ctx, groupID); err != nil {
		return err
	}
	return addMember(ctx, repo.db, groupID, userID)
}

func (repo *groupRepository) RemoveMember(ctx context.Context, groupID, userID string) error {
	if _, err := repo.GetGroupByID(ctx, groupID); err != nil {
		return err
	}
	_, err := repo.db.ExecContext(ctx, "DELETE FROM group_members WHERE group_id = $1 AND user_id = $2", groupID, userID)
	return errors.Wrap(err, "deleting group member")
}

func (repo *groupRepository) CreateMessage(ctx context.Context, msg group.Message) (group.Message, error) {
	if _, err := repo.GetGroupByID(ctx, msg.GroupID); err != nil {
		return group.Message{}, err
	}
	msg.ID = core.NewID()
	q := "INSERT INTO group_messages (id, group_id, sender_id, text, created_at) VALUES ($1, $2, $3, $4, $5)"
	if _, err := repo.db.ExecContext(ctx, q, msg.ID, msg.GroupID, msg.SenderID, msg.Text, msg.CreatedAt); err != nil {
		return group.Message{}, errors.Wrap(err, "inserting group message")
	}
	return msg, nil
}

func (repo *groupRepository) QueryMessages(ctx context.Context, groupID string) ([]group.Message, error) {
	var rows []struct {
		ID        string    `db:"id"`
		GroupID   string    `db:"group_id"`
		SenderID  string    `db:"sender_id"`
		Text      string    `db:"text"`
		CreatedAt time.Time `db:"created_at"`
	}
	q := "SELECT id, group_id, sender_id, text, created_at FROM group_messages WHERE group_id::text = $1 ORDER BY created_at"
	if err := repo.db.SelectContext(ctx, &rows, q, groupID); err != nil {
		return nil, errors.Wrap(err, "selecting group messages")
	}
	msgs := make([]group.Message, 0, len(rows))
	for _, row := range rows {
		msgs = append(msgs, group.Message{
			ID:        row.ID,
			GroupID:   row.GroupID,
			SenderID:  row.SenderID,
			Text:      row.Text,
			CreatedAt: row.CreatedAt.UTC(),
		})
	}
	return msgs, nil
}

func prefixFields(alias string, fields []string) []string {
	prefixed := make([]string, len(fields))
	for i, fld := range fields {
		prefixed[i] = alias + "." + fld
	}
	return prefixed
}

func prefixOrdering(alias string, ordering []core.DBOrdering) []core.DBOrdering {
	prefixed := make([]core.DBOrdering, len(ordering))
	for i, ord := range ordering {
		prefixed[i] = core.DBOrdering{Field: alias + "." + ord.Field, Ascending: ord.Ascending}
	}
	return prefixed
}
