package inmemdb

import (
	"context"

	"github.com/alumnet/alumnet/core"
	"github.com/alumnet/alumnet/core/post"
)

var postOrderingFields = []string{"created_at", "updated_at"}

type postRepository struct {
	db *DB
}

var _ post.Repository = (*postRepository)(nil)

func NewPostRepository(db *DB) post.Repository {
	return &postRepository{db: db}
}

func copyPost(p post.Post) post.Post {
	p.Reactions = p.Reactions.Copy()
	return p
}

func (repo *postRepository) CreatePost(ctx context.Context, p post.Post) (post.Post, error) {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	p.ID = core.NewID()
	p = copyPost(p)
	repo.db.posts[p.ID] = p
	return copyPost(p), nil
}

func (repo *postRepository) QueryPosts(ctx context.Context, filter *post.QueryFilter, ordering []core.DBOrdering) ([]post.Post, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	posts := make([]post.Post, 0, len(repo.db.posts))
	for _, p := range repo.db.posts {
		if filter != nil && filter.CreatedBy != "" && p.CreatedBy != filter.CreatedBy {
			continue
		}
		posts = append(posts, copyPost(p))
	}
	ord := orderBy(ordering, postOrderingFields, core.DBOrdering{Field: "created_at"})
	sortSlice(posts, ord, func(i, j int) bool {
		if ord.Field == "updated_at" {
			return posts[i].UpdatedAt.Before(posts[j].UpdatedAt)
		}
		return posts[i].CreatedAt.Before(posts[j].CreatedAt)
	})
	return posts, nil
}

func (repo *postRepository) GetPostByID(ctx context.Context, id string) (post.Post, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	if p, ok := repo.db.posts[id]; ok {
		return copyPost(p), nil
	}
	return post.Post{}, post.ErrNotFound
}

func (repo *postRepository) UpdatePost(ctx context.Context, p post.Post) (post.Post, error) {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	orig, ok := repo.db.posts[p.ID]
	if !ok {
		return post.Post{}, post.ErrNotFound
	}
	p.CreatedBy = orig.CreatedBy
	p.CreatedAt = orig.CreatedAt
	p.Reactions = orig.Reactions.Copy()
	repo.db.posts[p.ID] = p
	return copyPost(p), nil
}

func (repo *postRepository) DeletePost(ctx context.Context, id string) error {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	if _, ok := repo.db.posts[id]; !ok {
		return post.ErrNotFound
	}
	delete(repo.db.posts, id)
	repo.db.dropBookmarks(kindPost, id)
	return nil
}

func (repo *postRepository) SetReaction(ctx context.Context, postID, userID string, r core.Reaction) error {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	p, ok := repo.db.posts[postID]
	if !ok {
		return post.ErrNotFound
	}
	p.Reactions = p.Reactions.Copy()
	p.Reactions.Apply(userID, r)
	repo.db.posts[postID] = p
	return nil
}

func (repo *postRepository) SavePost(ctx context.Context, postID, userID string) error {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	if _, ok := repo.db.posts[postID]; !ok {
		return post.ErrNotFound
	}
	repo.db.addBookmark(kindPost, postID, userID)
	return nil
}

func (repo *postRepository) QuerySavedPosts(ctx context.Context, userID string) ([]post.Post, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	posts := []post.Post{}
	for _, id := range repo.db.savedIDs(kindPost, userID) {
		if p, ok := repo.db.posts[id]; ok {
			posts = append(posts, copyPost(p))
		}
	}
	return posts, nil
}
