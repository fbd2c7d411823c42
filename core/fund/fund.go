// Package fund manages the institution funds users contribute to.
package fund

import (
	"context"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/pkg/errors"
	"github.com/shopspring/decimal"

	"github.com/alumnet/alumnet/core"
)

var ErrNotFound = errors.New("fund not found")

type Fund struct {
	ID            string          `json:"id"`
	Title         string          `json:"title"`
	Description   string          `json:"description"`
	Image         string          `json:"image"`
	ImagePublicID string          `json:"-"`
	CurrentAmount decimal.Decimal `json:"current_amount"`
	CreatedBy     string          `json:"created_by"`
	CreatedAt     time.Time       `json:"created_at"`
	UpdatedAt     time.Time       `json:"updated_at"`
}

type NewFund struct {
	Title       string `json:"title" form:"title" validate:"required,max=255"`
	Description string `json:"description" form:"description" validate:"required"`
}

func (nf *NewFund) Validate(validate *validator.Validate) error {
	nf.Title = core.CleanString(nf.Title)
	nf.Description = core.CleanString(nf.Description)
	return validate.Struct(nf)
}

type (
	Repository interface {
		CreateFund(ctx context.Context, fnd Fund) (Fund, error)
		QueryFunds(ctx context.Context, ordering []core.DBOrdering) ([]Fund, error)
		GetFundByID(ctx context.Context, id string) (Fund, error)
	}

	Service interface {
		Create(ctx context.Context, creatorID string, nf NewFund, img *core.ImageFile) (Fund, error)
		Query(ctx context.Context, ordering []core.DBOrdering) ([]Fund, error)
		GetByID(ctx context.Context, id string) (Fund, error)
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

func (svc *service) Create(ctx context.Context, creatorID string, nf NewFund, img *core.ImageFile) (Fund, error) {
	now := time.Now().UTC()
	fnd := Fund{
		Title:         nf.Title,
		Description:   nf.Description,
		CurrentAmount: decimal.Zero,
		CreatedBy:     creatorID,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	if img != nil {
		uploaded, err := svc.images.Upload(ctx, img.File, img.Filename)
		if err != nil {
			return Fund{}, errors.Wrap(err, "uploading fund image")
		}
		fnd.Image = uploaded.URL
		fnd.ImagePublicID = uploaded.PublicID
	}
	return svc.repo.CreateFund(ctx, fnd)
}

func (svc *service) Query(ctx context.Context, ordering []core.DBOrdering) ([]Fund, error) {
	return svc.repo.QueryFunds(ctx, ordering)
}

func (svc *service) GetByID(ctx context.Context, id string) (Fund, error) {
	return svc.repo.GetFundByID(ctx, id)
}
