// Package post is the alumni feed: short posts with a photo that members like, dislike and save.
package post

import (
	"context"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/pkg/errors"

	"github.com/alumnet/alumnet/core"
)

var (
	// errors
	ErrNotFound  = errors.New("post not found")
	ErrForbidden = errors.New("you do not have permission to manage this post")
)

type Post struct {
	ID            string `json:"id"`
	CreatedBy     string `json:"created_by"`
	Description   string `json:"description"`
	Photo         string `json:"photo"`
	PhotoPublicID string `json:"-"`
	core.Reactions
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// NewPost contains information needed to create a new Post. The photo comes separately.
type NewPost struct {
	Description string `json:"description" form:"description" validate:"required,max=5000"`
}

func (np *NewPost) Validate(validate *validator.Validate) error {
	np.Description = core.CleanString(np.Description)
	return validate.Struct(np)
}

// UpdatePost defines what information may be provided to modify an existing Post.
type UpdatePost struct {
	Description string `json:"description" form:"description" validate:"required,max=5000"`
}

func (up *UpdatePost) Validate(orig Post, validate *validator.Validate) error {
	if up.Description = core.CleanString(up.Description); up.Description == "" {
		up.Description = orig.Description
	}
	return validate.Struct(up)
}

type QueryFilter struct {
	CreatedBy string `query:"created_by"`
}

type (
	Repository interface {
		CreatePost(ctx context.Context, p Post) (Post, error)
		QueryPosts(ctx context.Context, filter *QueryFilter, ordering []core.DBOrdering) ([]Post, error)
		GetPostByID(ctx context.Context, id string) (Post, error)
		UpdatePost(ctx context.Context, p Post) (Post, error)
		DeletePost(ctx context.Context, id string) error
		SetReaction(ctx context.Context, postID, userID string, r core.Reaction) error
		SavePost(ctx context.Context, postID, userID string) error
		QuerySavedPosts(ctx context.Context, userID string) ([]Post, error)
	}

	Service interface {
		Create(ctx context.Context, creatorID string, np NewPost, photo core.ImageFile) (Post, error)
		Query(ctx context.Context, filter *QueryFilter, ordering []core.DBOrdering) ([]Post, error)
		GetByID(ctx context.Context, id string) (Post, error)
		Update(ctx context.Context, p Post, up UpdatePost, photo *core.ImageFile) (Post, error)
		Delete(ctx context.Context, p Post) error
		React(ctx context.Context, p Post, userID string, r core.Reaction) (Post, error)
		Save(ctx context.Context, p Post, userID string) error
		Saved(ctx context.Context, userID string) ([]Post, error)
	}

	service struct {
		repo   Repository
		images core.ImageUploader
	}
)

var _ Service = (*service)(nil)

func NewService(repo Repository, images core.ImageUploader) Service {
	return &service{repo: repo, images: images}
}

// CanManage reports whether the user may update or delete p.
func CanManage(p Post, userID string, isAdmin bool) bool {
	return isAdmin || p.CreatedBy == userID
}

func (svc *service) Create(ctx context.Context, creatorID string, np NewPost, photo core.ImageFile) (Post, error) {
	img, err := svc.images.Upload(ctx, photo.File, photo.Filename)
	if err != nil {
		return Post{}, errors.Wrap(err, "uploading post photo")
	}
	now := time.Now().UTC()
	return svc.repo.CreatePost(ctx, Post{
		CreatedBy:     creatorID,
		Description:   np.Description,
		Photo:         img.URL,
		PhotoPublicID: img.PublicID,
		Reactions:     core.Reactions{}.Copy(),
		CreatedAt:     now,
		UpdatedAt:     now,
	})
}

func (svc *service) Query(ctx context.Context, filter *QueryFilter, ordering []core.DBOrdering) ([]Post, error) {
	return svc.repo.QueryPosts(ctx, filter, ordering)
}

func (svc *service) GetByID(ctx context.Context, id string) (Post, error) {
	return svc.repo.GetPostByID(ctx, id)
}

// Update replaces the photo too when one is given; the previous one is then destroyed.
func (svc *service) Update(ctx context.Context, p Post, up UpdatePost, photo *core.ImageFile) (Post, error) {
	oldPublicID := ""
	if photo != nil {
		img, err := svc.images.Upload(ctx, photo.File, photo.Filename)
		if err != nil {
			return Post{}, errors.Wrap(err, "uploading post photo")
		}
		oldPublicID = p.PhotoPublicID
		p.Photo, p.PhotoPublicID = img.URL, img.PublicID
	}
	p.Description = up.Description
	p.UpdatedAt = time.Now().UTC()

	p, err := svc.repo.UpdatePost(ctx, p)
	if err != nil {
		return Post{}, err
	}
	if oldPublicID != "" {
		_ = svc.images.Destroy(ctx, oldPublicID)
	}
	return p, nil
}

func (svc *service) Delete(ctx context.Context, p Post) error {
	if err := svc.repo.DeletePost(ctx, p.ID); err != nil {
		return err
	}
	if p.PhotoPublicID != "" {
		_ = svc.images.Destroy(ctx, p.PhotoPublicID)
	}
	return nil
}

func (svc *service) React(ctx context.Context, p Post, userID string, r core.Reaction) (Post, error) {
	if err := svc.repo.SetReaction(ctx, p.ID, userID, r); err != nil {
		return Post{}, errors.Wrap(err, "setting reaction")
	}
	return svc.repo.GetPostByID(ctx, p.ID)
}

func (svc *service) Save(ctx context.Context, p Post, userID string) error {
	return svc.repo.SavePost(ctx, p.ID, userID)
}

func (svc *service) Saved(ctx context.Context, userID string) ([]Post, error) {
	return svc.repo.QuerySavedPosts(ctx, userID)
}
