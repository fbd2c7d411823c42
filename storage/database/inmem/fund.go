package inmemdb

import (
	"context"

	"github.com/alumnet/alumnet/core"
	"github.com/alumnet/alumnet/core/fund"
)

var fundOrderingFields = []string{"created_at", "title", "current_amount"}

type fundRepository struct {
	db *DB
}

var _ fund.Repository = (*fundRepository)(nil)

func NewFundRepository(db *DB) fund.Repository {
	return &fundRepository{db: db}
}

func (repo *fundRepository) CreateFund(ctx context.Context, fnd fund.Fund) (fund.Fund, error) {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	fnd.ID = core.NewID()
	repo.db.funds[fnd.ID] = fnd
	return fnd, nil
}

func (repo *fundRepository) QueryFunds(ctx context.Context, ordering []core.DBOrdering) ([]fund.Fund, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	funds := make([]fund.Fund, 0, len(repo.db.funds))
	for _, fnd := range repo.db.funds {
		funds = append(funds, fnd)
	}
	ord := orderBy(ordering, fundOrderingFields, core.DBOrdering{Field: "created_at"})
	sortSlice(funds, ord, func(i, j int) bool {
		switch ord.Field {
		case "title":
			return funds[i].Title < funds[j].Title
		case "current_amount":
			return funds[i].CurrentAmount.LessThan(funds[j].CurrentAmount)
		default:
			return funds[i].CreatedAt.Before(funds[j].CreatedAt)
		}
	})
	return funds, nil
}

func (repo *fundRepository) GetFundByID(ctx context.Context, id string) (fund.Fund, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	if fnd, ok := repo.db.funds[id]; ok {
		return fnd, nil
	}
	return fund.Fund{}, fund.ErrNotFound
}
