package sqlxrepos

import (
	"context"
	"time"

	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
	"github.com/volatiletech/null/v8"

	"github.com/alumnet/alumnet/core"
	"github.com/alumnet/alumnet/core/fund"
)

var fundOrderingFields = []string{"created_at", "title", "current_amount"}

const fundColumns = "id, title, description, image, image_public_id, current_amount, created_by, created_at, updated_at"

type dbFund struct {
	ID            string          `db:"id"`
	Title         string          `db:"title"`
	Description   string          `db:"description"`
	Image         string          `db:"image"`
	ImagePublicID null.String     `db:"image_public_id"`
	CurrentAmount decimal.Decimal `db:"current_amount"`
	CreatedBy     string          `db:"created_by"`
	CreatedAt     time.Time       `db:"created_at"`
	UpdatedAt     time.Time       `db:"updated_at"`
}

func (f dbFund) toFund() fund.Fund {
	return fund.Fund{
		ID:            f.ID,
		Title:         f.Title,
		Description:   f.Description,
		Image:         f.Image,
		ImagePublicID: f.ImagePublicID.String,
		CurrentAmount: f.CurrentAmount,
		CreatedBy:     f.CreatedBy,
		CreatedAt:     f.CreatedAt.UTC(),
		UpdatedAt:     f.UpdatedAt.UTC(),
	}
}

type fundRepository struct {
	db core.DB
}

var _ fund.Repository = (*fundRepository)(nil)

func NewFundRepository(db core.DB) fund.Repository {
	return &fundRepository{db: db}
}

func (repo *fundRepository) CreateFund(ctx context.Context, fnd fund.Fund) (fund.Fund, error) {
	fnd.ID = core.NewID()
	row := dbFund{
		ID:            fnd.ID,
		Title:         fnd.Title,
		Description:   fnd.Description,
		Image:         fnd.Image,
		ImagePublicID: nullString(fnd.ImagePublicID),
		CurrentAmount: decimal.Zero,
		CreatedBy:     fnd.CreatedBy,
		CreatedAt:     fnd.CreatedAt,
		UpdatedAt:     fnd.UpdatedAt,
	}
	q := `INSERT INTO funds (` + fundColumns + `) VALUES (:id, :title, :description, :image, :image_public_id,
		:current_amount, :created_by, :created_at, :updated_at)`
	if _, err := repo.db.NamedExecContext(ctx, q, row); err != nil {
		return fund.Fund{}, errors.Wrap(err, "inserting fund")
	}
	return row.toFund(), nil
}

func (repo *fundRepository) QueryFunds(ctx context.Context, ordering []core.DBOrdering) ([]fund.Fund, error) {
	var rows []dbFund
	q := "SELECT " + fundColumns + " FROM funds ORDER BY " + core.OrderByClause(ordering, fundOrderingFields, "created_at DESC")
	if err := repo.db.SelectContext(ctx, &rows, q); err != nil {
		return nil, errors.Wrap(err, "selecting funds")
	}
	funds := make([]fund.Fund, 0, len(rows))
	for _, row := range rows {
		funds = append(funds, row.toFund())
	}
	return funds, nil
}

func (repo *fundRepository) GetFundByID(ctx context.Context, id string) (fund.Fund, error) {
	var row dbFund
	if err := repo.db.GetContext(ctx, &row, "SELECT "+fundColumns+" FROM funds WHERE id::text = $1", id); err != nil {
		return fund.Fund{}, notFound(err, fund.ErrNotFound)
	}
	return row.toFund(), nil
}
