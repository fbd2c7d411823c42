package inmemdb

import (
	"context"
	"sort"

	"github.com/shopspring/decimal"

	"github.com/alumnet/alumnet/core"
	"github.com/alumnet/alumnet/core/payment"
)

type paymentRepository struct {
	db *DB
}

var _ payment.Repository = (*paymentRepository)(nil)

func NewPaymentRepository(db *DB) payment.Repository {
	return &paymentRepository{db: db}
}

func (repo *paymentRepository) CreatePayment(ctx context.Context, p payment.Payment, v payment.Verification) (payment.Verification, error) {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	if _, ok := repo.db.payments[p.PaymentID]; ok {
		return repo.db.verifications[p.PaymentID], payment.ErrPaymentExists
	}
	p.ID = core.NewID()
	repo.db.payments[p.PaymentID] = p
	repo.db.verifications[v.PaymentID] = v
	return v, nil
}

func (repo *paymentRepository) GetVerification(ctx context.Context, paymentID string) (payment.Verification, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	if v, ok := repo.db.verifications[paymentID]; ok {
		return v, nil
	}
	return payment.Verification{}, payment.ErrVerificationNotFound
}

func (repo *paymentRepository) SaveVerification(ctx context.Context, v payment.Verification, from payment.State) error {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	stored, ok := repo.db.verifications[v.PaymentID]
	if !ok {
		return payment.ErrVerificationNotFound
	}
	if stored.LastStep != from || !v.LastStep.NotBefore(from) {
		return payment.ErrVerificationOutOfStep
	}
	repo.db.verifications[v.PaymentID] = v
	return nil
}

func (repo *paymentRepository) RecordLedgerEntry(ctx context.Context, v payment.Verification, entry payment.LedgerEntry) (payment.Verification, error) {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	for _, e := range repo.db.ledger {
		if e.Kind == entry.Kind && e.TransactionID == entry.TransactionID {
			return payment.Verification{}, payment.ErrDuplicateLedgerEntry
		}
	}
	stored, ok := repo.db.verifications[v.PaymentID]
	if !ok {
		return payment.Verification{}, payment.ErrVerificationNotFound
	}
	if stored.LastStep != payment.StateInvoiceCreated {
		return payment.Verification{}, payment.ErrVerificationOutOfStep
	}

	repo.db.ledger = append(repo.db.ledger, entry)
	v.LedgerID = entry.ID
	v.State = payment.StateLedgerRecorded
	v.LastStep = payment.StateLedgerRecorded
	v.FailureReason = ""
	v.UpdatedAt = entry.CreatedAt
	repo.db.verifications[v.PaymentID] = v
	return v, nil
}

func (repo *paymentRepository) ApplyBalance(ctx context.Context, v payment.Verification) (payment.Verification, error) {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	stored, ok := repo.db.verifications[v.PaymentID]
	if !ok {
		return payment.Verification{}, payment.ErrVerificationNotFound
	}
	if stored.LastStep != payment.StateLedgerRecorded {
		return payment.Verification{}, payment.ErrVerificationOutOfStep
	}

	switch v.Kind {
	case payment.KindDonation:
		prj, ok := repo.db.projects[v.TargetID]
		if !ok {
			return payment.Verification{}, payment.ErrVerificationOutOfStep
		}
		prj.DonatedAmount = prj.DonatedAmount.Add(v.Amount)
		repo.db.projects[prj.ID] = prj
	case payment.KindFunding:
		fnd, ok := repo.db.funds[v.TargetID]
		if !ok {
			return payment.Verification{}, payment.ErrVerificationOutOfStep
		}
		fnd.CurrentAmount = fnd.CurrentAmount.Add(v.Amount)
		repo.db.funds[fnd.ID] = fnd
	}

	v.State = payment.StateBalanceUpdated
	v.LastStep = payment.StateBalanceUpdated
	v.FailureReason = ""
	repo.db.verifications[v.PaymentID] = v
	return v, nil
}

func (repo *paymentRepository) TargetExists(ctx context.Context, kind payment.Kind, id string) (bool, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	var ok bool
	switch kind {
	case payment.KindDonation:
		_, ok = repo.db.projects[id]
	case payment.KindFunding:
		_, ok = repo.db.funds[id]
	}
	return ok, nil
}

// LedgerEntries returns the recorded entries of kind, in insertion order.
func (db *DB) LedgerEntries(kind payment.Kind) []payment.LedgerEntry {
	db.mutex.RLock()
	defer db.mutex.RUnlock()

	entries := make([]payment.LedgerEntry, 0)
	for _, e := range db.ledger {
		if e.Kind == kind {
			entries = append(entries, e)
		}
	}
	return entries
}

func (repo *paymentRepository) QueryPayerTotals(ctx context.Context, kind payment.Kind, targetID string) ([]payment.PayerTotal, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	totals := make(map[string]*payment.PayerTotal)
	for _, e := range repo.db.ledger {
		if e.Kind != kind || e.TargetID != targetID {
			continue
		}
		t, ok := totals[e.PayerID]
		if !ok {
			t = &payment.PayerTotal{PayerID: e.PayerID, Total: decimal.Zero}
			totals[e.PayerID] = t
		}
		t.Total = t.Total.Add(e.Amount)
		t.Count++
	}

	res := make([]payment.PayerTotal, 0, len(totals))
	for _, t := range totals {
		res = append(res, *t)
	}
	sort.Slice(res, func(i, j int) bool {
		if !res[i].Total.Equal(res[j].Total) {
			return res[i].Total.GreaterThan(res[j].Total)
		}
		return res[i].PayerID < res[j].PayerID
	})
	return res, nil
}

func (repo *paymentRepository) QueryTargetTotals(ctx context.Context, kind payment.Kind, payerID string) ([]payment.TargetTotal, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	totals := make(map[string]*payment.TargetTotal)
	for _, e := range repo.db.ledger {
		if e.Kind != kind || e.PayerID != payerID {
			continue
		}
		t, ok := totals[e.TargetID]
		if !ok {
			t = &payment.TargetTotal{TargetID: e.TargetID, Total: decimal.Zero}
			totals[e.TargetID] = t
		}
		t.Total = t.Total.Add(e.Amount)
		t.Count++
	}

	res := make([]payment.TargetTotal, 0, len(totals))
	for _, t := range totals {
		res = append(res, *t)
	}
	sort.Slice(res, func(i, j int) bool {
		if !res[i].Total.Equal(res[j].Total) {
			return res[i].Total.GreaterThan(res[j].Total)
		}
		return res[i].TargetID < res[j].TargetID
	})
	return res, nil
}
