package sqlxrepos

import (
	"context"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"

	"github.com/alumnet/alumnet/core"
	"github.com/alumnet/alumnet/core/post"
)

var postOrderingFields = []string{"created_at", "updated_at"}

var postSelect = `SELECT p.id, p.created_by, p.description, p.photo, p.photo_public_id, p.created_at, p.updated_at, ` +
	reactionColumns(kindPost, "p.id") + ` FROM posts p`

type dbPost struct {
	ID            string    `db:"id"`
	CreatedBy     string    `db:"created_by"`
	Description   string    `db:"description"`
	Photo         string    `db:"photo"`
	PhotoPublicID string    `db:"photo_public_id"`
	CreatedAt     time.Time `db:"created_at"`
	UpdatedAt     time.Time `db:"updated_at"`
	dbReactions
}

func (p dbPost) toPost() post.Post {
	return post.Post{
		ID:            p.ID,
		CreatedBy:     p.CreatedBy,
		Description:   p.Description,
		Photo:         p.Photo,
		PhotoPublicID: p.PhotoPublicID,
		Reactions:     p.toReactions(),
		CreatedAt:     p.CreatedAt.UTC(),
		UpdatedAt:     p.UpdatedAt.UTC(),
	}
}

type postRepository struct {
	db core.DB
}

var _ post.Repository = (*postRepository)(nil)

func NewPostRepository(db core.DB) post.Repository {
	return &postRepository{db: db}
}

func (repo *postRepository) selectPosts(ctx context.Context, q string, args ...interface{}) ([]post.Post, error) {
	var rows []dbPost
	if err := repo.db.SelectContext(ctx, &rows, q, args...); err != nil {
		return nil, errors.Wrap(err, "selecting posts")
	}
	posts := make([]post.Post, 0, len(rows))
	for _, row := range rows {
		posts = append(posts, row.toPost())
	}
	return posts, nil
}

func (repo *postRepository) CreatePost(ctx context.Context, p post.Post) (post.Post, error) {
	p.ID = core.NewID()
	q := `INSERT INTO posts (id, created_by, description, photo, photo_public_id, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`
	if _, err := repo.db.ExecContext(ctx, q, p.ID, p.CreatedBy, p.Description, p.Photo, p.PhotoPublicID,
		p.CreatedAt, p.UpdatedAt); err != nil {
		return post.Post{}, errors.Wrap(err, "inserting post")
	}
	return repo.GetPostByID(ctx, p.ID)
}

func (repo *postRepository) QueryPosts(ctx context.Context, filter *post.QueryFilter, ordering []core.DBOrdering) ([]post.Post, error) {
	var args []interface{}
	q := postSelect
	if filter != nil && filter.CreatedBy != "" {
		q += " WHERE p.created_by::text = $1"
		args = append(args, filter.CreatedBy)
	}
	q += " ORDER BY " + core.OrderByClause(prefixOrdering("p", ordering), prefixFields("p", postOrderingFields), "p.created_at DESC")
	return repo.selectPosts(ctx, q, args...)
}

func (repo *postRepository) GetPostByID(ctx context.Context, id string) (post.Post, error) {
	var row dbPost
	if err := repo.db.GetContext(ctx, &row, postSelect+" WHERE p.id::text = $1", id); err != nil {
		return post.Post{}, notFound(err, post.ErrNotFound)
	}
	return row.toPost(), nil
}

func (repo *postRepository) UpdatePost(ctx context.Context, p post.Post) (post.Post, error) {
	q := `UPDATE posts SET description = $1, photo = $2, photo_public_id = $3, updated_at = $4 WHERE id::text = $5`
	if err := execOne(ctx, repo.db, post.ErrNotFound, q, p.Description, p.Photo, p.PhotoPublicID, p.UpdatedAt, p.ID); err != nil {
		return post.Post{}, err
	}
	return repo.GetPostByID(ctx, p.ID)
}

func (repo *postRepository) DeletePost(ctx context.Context, id string) error {
	return core.InTx(ctx, repo.db, func(tx *sqlx.Tx) error {
		if err := execOne(ctx, tx, post.ErrNotFound, "DELETE FROM posts WHERE id::text = $1", id); err != nil {
			return err
		}
		return dropTargetRows(ctx, tx, kindPost, id)
	})
}

func (repo *postRepository) SetReaction(ctx context.Context, postID, userID string, r core.Reaction) error {
	if _, err := repo.GetPostByID(ctx, postID); err != nil {
		return err
	}
	return setReaction(ctx, repo.db, kindPost, postID, userID, r)
}

func (repo *postRepository) SavePost(ctx context.Context, postID, userID string) error {
	if _, err := repo.GetPostByID(ctx, postID); err != nil {
		return err
	}
	return addBookmark(ctx, repo.db, kindPost, postID, userID)
}

func (repo *postRepository) QuerySavedPosts(ctx context.Context, userID string) ([]post.Post, error) {
	return repo.selectPosts(ctx, postSelect+bookmarkJoin(kindPost, "p"), userID)
}
