package sqlxrepos

import (
	"context"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
	"github.com/volatiletech/null/v8"

	"github.com/alumnet/alumnet/core"
	"github.com/alumnet/alumnet/core/payment"
)

const verificationColumns = `payment_id, order_id, kind, target_id, payer_id, amount, state, last_step, customer_id,
	item_id, invoice_id, invoice_url, ledger_id, failure_reason, created_at, updated_at`

type dbVerification struct {
	PaymentID     string          `db:"payment_id"`
	OrderID       string          `db:"order_id"`
	Kind          string          `db:"kind"`
	TargetID      string          `db:"target_id"`
	PayerID       string          `db:"payer_id"`
	Amount        decimal.Decimal `db:"amount"`
	State         string          `db:"state"`
	LastStep      string          `db:"last_step"`
	CustomerID    null.String     `db:"customer_id"`
	ItemID        null.String     `db:"item_id"`
	InvoiceID     null.String     `db:"invoice_id"`
	InvoiceURL    null.String     `db:"invoice_url"`
	LedgerID      null.String     `db:"ledger_id"`
	FailureReason null.String     `db:"failure_reason"`
	CreatedAt     time.Time       `db:"created_at"`
	UpdatedAt     time.Time       `db:"updated_at"`
}

func toDBVerification(v payment.Verification) dbVerification {
	return dbVerification{
		PaymentID:     v.PaymentID,
		OrderID:       v.OrderID,
		Kind:          string(v.Kind),
		TargetID:      v.TargetID,
		PayerID:       v.PayerID,
		Amount:        v.Amount,
		State:         string(v.State),
		LastStep:      string(v.LastStep),
		CustomerID:    nullString(v.CustomerID),
		ItemID:        nullString(v.ItemID),
		InvoiceID:     nullString(v.InvoiceID),
		InvoiceURL:    nullString(v.InvoiceURL),
		LedgerID:      nullString(v.LedgerID),
		FailureReason: nullString(v.FailureReason),
		CreatedAt:     v.CreatedAt,
		UpdatedAt:     v.UpdatedAt,
	}
}

func (v dbVerification) toVerification() payment.Verification {
	return payment.Verification{
		PaymentID:     v.PaymentID,
		OrderID:       v.OrderID,
		Kind:          payment.Kind(v.Kind),
		TargetID:      v.TargetID,
		PayerID:       v.PayerID,
		Amount:        v.Amount,
		State:         payment.State(v.State),
		LastStep:      payment.State(v.LastStep),
		CustomerID:    v.CustomerID.String,
		ItemID:        v.ItemID.String,
		InvoiceID:     v.InvoiceID.String,
		InvoiceURL:    v.InvoiceURL.String,
		LedgerID:      v.LedgerID.String,
		FailureReason: v.FailureReason.String,
		CreatedAt:     v.CreatedAt.UTC(),
		UpdatedAt:     v.UpdatedAt.UTC(),
	}
}

// targetTable returns the table and balance column credited by kind.
func targetTable(kind payment.Kind) (string, string) {
	if kind == payment.KindDonation {
		return "projects", "donated_amount"
	}
	return "funds", "current_amount"
}

type paymentRepository struct {
	db core.DB
}

var _ payment.Repository = (*paymentRepository)(nil)

func NewPaymentRepository(db core.DB) payment.Repository {
	return &paymentRepository{db: db}
}

func (repo *paymentRepository) CreatePayment(ctx context.Context, p payment.Payment, v payment.Verification) (payment.Verification, error) {
	p.ID = core.NewID()
	var exists bool
	err := core.InTx(ctx, repo.db, func(tx *sqlx.Tx) error {
		q := `INSERT INTO payments (id, order_id, payment_id, signature, created_at) VALUES ($1, $2, $3, $4, $5)
			ON CONFLICT (payment_id) DO NOTHING`
		res, err := tx.ExecContext(ctx, q, p.ID, p.OrderID, p.PaymentID, p.Signature, p.CreatedAt)
		if err != nil {
			return errors.Wrap(err, "inserting payment")
		}
		if n, err := res.RowsAffected(); err != nil {
			return err
		} else if n == 0 {
			exists = true
			return nil
		}

		q = `INSERT INTO payment_verifications (` + verificationColumns + `) VALUES (:payment_id, :order_id, :kind,
			:target_id, :payer_id, :amount, :state, :last_step, :customer_id, :item_id, :invoice_id, :invoice_url,
			:ledger_id, :failure_reason, :created_at, :updated_at)`
		_, err = tx.NamedExecContext(ctx, q, toDBVerification(v))
		return errors.Wrap(err, "inserting payment verification")
	})
	if err != nil {
		return payment.Verification{}, err
	}
	if exists {
		stored, err := repo.GetVerification(ctx, p.PaymentID)
		if err != nil {
			return payment.Verification{}, err
		}
		return stored, payment.ErrPaymentExists
	}
	return v, nil
}

func (repo *paymentRepository) GetVerification(ctx context.Context, paymentID string) (payment.Verification, error) {
	var row dbVerification
	q := "SELECT " + verificationColumns + " FROM payment_verifications WHERE payment_id = $1"
	if err := repo.db.GetContext(ctx, &row, q, paymentID); err != nil {
		return payment.Verification{}, notFound(err, payment.ErrVerificationNotFound)
	}
	return row.toVerification(), nil
}

func (repo *paymentRepository) SaveVerification(ctx context.Context, v payment.Verification, from payment.State) error {
	if !v.LastStep.NotBefore(from) {
		return payment.ErrVerificationOutOfStep
	}
	d := toDBVerification(v)
	q := `UPDATE payment_verifications SET state = $1, last_step = $2, customer_id = $3, item_id = $4,
		invoice_id = $5, invoice_url = $6, ledger_id = $7, failure_reason = $8, updated_at = $9
		WHERE payment_id = $10 AND last_step = $11`
	err := execOne(ctx, repo.db, payment.ErrVerificationOutOfStep, q, d.State, d.LastStep, d.CustomerID, d.ItemID,
		d.InvoiceID, d.InvoiceURL, d.LedgerID, d.FailureReason, d.UpdatedAt, d.PaymentID, string(from))
	if err != nil && err != payment.ErrVerificationOutOfStep {
		return errors.Wrap(err, "updating payment verification")
	}
	return err
}

func (repo *paymentRepository) RecordLedgerEntry(ctx context.Context, v payment.Verification, entry payment.LedgerEntry) (payment.Verification, error) {
	v.LedgerID = entry.ID
	v.State = payment.StateLedgerRecorded
	v.LastStep = payment.StateLedgerRecorded
	v.FailureReason = ""
	v.UpdatedAt = entry.CreatedAt

	err := core.InTx(ctx, repo.db, func(tx *sqlx.Tx) error {
		q := `INSERT INTO ledger_entries (id, kind, target_id, payer_id, transaction_id, invoice_id, invoice_url,
			amount, created_at) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`
		if _, err := tx.ExecContext(ctx, q, entry.ID, string(entry.Kind), entry.TargetID, entry.PayerID,
			entry.TransactionID, entry.InvoiceID, entry.InvoiceURL, entry.Amount, entry.CreatedAt); err != nil {
			if uniqueViolationOn(err, "ledger_entries_kind_transaction_key") {
				return payment.ErrDuplicateLedgerEntry
			}
			return errors.Wrap(err, "inserting ledger entry")
		}

		q = `UPDATE payment_verifications SET state = $1, last_step = $1, ledger_id = $2, failure_reason = NULL,
			updated_at = $3 WHERE payment_id = $4 AND last_step = $5`
		return execOne(ctx, tx, payment.ErrVerificationOutOfStep, q, string(payment.StateLedgerRecorded),
			entry.ID, entry.CreatedAt, v.PaymentID, string(payment.StateInvoiceCreated))
	})
	if err != nil {
		return payment.Verification{}, err
	}
	return v, nil
}

func (repo *paymentRepository) ApplyBalance(ctx context.Context, v payment.Verification) (payment.Verification, error) {
	v.State = payment.StateBalanceUpdated
	v.LastStep = payment.StateBalanceUpdated
	v.FailureReason = ""
	v.UpdatedAt = time.Now().UTC()

	table, column := targetTable(v.Kind)
	err := core.InTx(ctx, repo.db, func(tx *sqlx.Tx) error {
		q := `UPDATE payment_verifications SET state = $1, last_step = $1, failure_reason = NULL, updated_at = $2
			WHERE payment_id = $3 AND last_step = $4`
		if err := execOne(ctx, tx, payment.ErrVerificationOutOfStep, q, string(payment.StateBalanceUpdated),
			v.UpdatedAt, v.PaymentID, string(payment.StateLedgerRecorded)); err != nil {
			return err
		}

		q = "UPDATE " + table + " SET " + column + " = " + column + " + $1 WHERE id::text = $2"
		return execOne(ctx, tx, payment.ErrVerificationOutOfStep, q, v.Amount, v.TargetID)
	})
	if err != nil {
		return payment.Verification{}, err
	}
	return v, nil
}

func (repo *paymentRepository) TargetExists(ctx context.Context, kind payment.Kind, id string) (bool, error) {
	table, _ := targetTable(kind)
	var exists bool
	q := "SELECT EXISTS (SELECT 1 FROM " + table + " WHERE id::text = $1)"
	if err := repo.db.GetContext(ctx, &exists, q, id); err != nil {
		return false, errors.Wrap(err, "checking target")
	}
	return exists, nil
}

func (repo *paymentRepository) QueryPayerTotals(ctx context.Context, kind payment.Kind, targetID string) ([]payment.PayerTotal, error) {
	totals := make([]payment.PayerTotal, 0)
	q := `SELECT payer_id::text AS payer_id, SUM(amount) AS total, COUNT(*) AS count FROM ledger_entries
		WHERE kind = $1 AND target_id::text = $2 GROUP BY payer_id ORDER BY total DESC, payer_id`
	if err := repo.db.SelectContext(ctx, &totals, q, string(kind), targetID); err != nil {
		return nil, errors.Wrap(err, "selecting payer totals")
	}
	return totals, nil
}

func (repo *paymentRepository) QueryTargetTotals(ctx context.Context, kind payment.Kind, payerID string) ([]payment.TargetTotal, error) {
	totals := make([]payment.TargetTotal, 0)
	q := `SELECT target_id::text AS target_id, SUM(amount) AS total, COUNT(*) AS count FROM ledger_entries
		WHERE kind = $1 AND payer_id::text = $2 GROUP BY target_id ORDER BY total DESC, target_id`
	if err := repo.db.SelectContext(ctx, &totals, q, string(kind), payerID); err != nil {
		return nil, errors.Wrap(err, "selecting target totals")
	}
	return totals, nil
}
