package sqlxrepos

import (
	"context"
	"time"

	"github.com/lib/pq"
	"github.com/pkg/errors"

	"github.com/alumnet/alumnet/core"
)

// target kinds of the reactions and bookmarks tables
const (
	kindPost  = "post"
	kindJob   = "job"
	kindEvent = "event"
)

type dbReactions struct {
	Likes    pq.StringArray `db:"likes"`
	Dislikes pq.StringArray `db:"dislikes"`
}

func (r dbReactions) toReactions() core.Reactions {
	return core.Reactions{Likes: r.Likes, Dislikes: r.Dislikes}.Copy()
}

// reactionColumns selects the likes and dislikes of the row whose id is idCol, oldest first.
func reactionColumns(kind, idCol string) string {
	agg := func(reaction core.Reaction) string {
		return "COALESCE((SELECT array_agg(r.user_id::text ORDER BY r.created_at) FROM reactions r" +
			" WHERE r.target_kind = '" + kind + "' AND r.target_id = " + idCol +
			" AND r.reaction = '" + string(reaction) + "'), '{}')"
	}
	return agg(core.ReactionLike) + " AS likes, " + agg(core.ReactionDislike) + " AS dislikes"
}

func setReaction(ctx context.Context, db core.DBExecutor, kind, targetID, userID string, r core.Reaction) error {
	q := `INSERT INTO reactions (target_kind, target_id, user_id, reaction, created_at) VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (target_kind, target_id, user_id) DO UPDATE SET reaction = EXCLUDED.reaction, created_at = EXCLUDED.created_at`
	_, err := db.ExecContext(ctx, q, kind, targetID, userID, string(r), time.Now().UTC())
	return errors.Wrap(err, "upserting reaction")
}

func addBookmark(ctx context.Context, db core.DBExecutor, kind, targetID, userID string) error {
	q := `INSERT INTO bookmarks (target_kind, target_id, user_id, created_at) VALUES ($1, $2, $3, $4)
		ON CONFLICT DO NOTHING`
	_, err := db.ExecContext(ctx, q, kind, targetID, userID, time.Now().UTC())
	return errors.Wrap(err, "inserting bookmark")
}

// bookmarkJoin restricts a select on kind aliased as alias to what the user of the first argument saved.
func bookmarkJoin(kind, alias string) string {
	return " JOIN bookmarks b ON b.target_kind = '" + kind + "' AND b.target_id = " + alias + ".id WHERE b.user_id::text = $1" +
		" ORDER BY b.created_at DESC"
}

// dropTargetRows removes the reactions and bookmarks pointing at a deleted row.
func dropTargetRows(ctx context.Context, db core.DBExecutor, kind, targetID string) error {
	if _, err := db.ExecContext(ctx, "DELETE FROM reactions WHERE target_kind = $1 AND target_id::text = $2", kind, targetID); err != nil {
		return errors.Wrap(err, "deleting reactions")
	}
	_, err := db.ExecContext(ctx, "DELETE FROM bookmarks WHERE target_kind = $1 AND target_id::text = $2", kind, targetID)
	return errors.Wrap(err, "deleting bookmarks")
}
