// Package payment verifies gateway payments and credits projects and funds.
//
// A verification walks PENDING → SIGNATURE_CHECKED → PAYMENT_PERSISTED → CUSTOMER_RESOLVED → ITEM_CREATED →
// INVOICE_CREATED → LEDGER_RECORDED → BALANCE_UPDATED. Every completed step is stored on the verification row,
// so posting the same payment again resumes where the previous attempt stopped.
package payment

import (
	"context"
	"fmt"
	"time"

	"github.com/pkg/errors"

	"github.com/alumnet/alumnet/core"
	"github.com/alumnet/alumnet/core/user"
)

var (
	// errors
	ErrInvalidSignature      = errors.New("invalid signature")
	ErrVerificationNotFound  = errors.New("payment verification not found")
	ErrVerificationMismatch  = errors.New("payment already verified with different details")
	ErrPaymentExists         = errors.New("payment already recorded")
	ErrDuplicateLedgerEntry  = errors.New("ledger entry already recorded for this transaction")
	ErrVerificationOutOfStep = errors.New("payment verification is not at the expected step")
)

type (
	Repository interface {
		// CreatePayment writes the payment record and its verification row in one transaction.
		// When the payment id is already recorded it returns the stored verification with ErrPaymentExists.
		CreatePayment(ctx context.Context, p Payment, v Verification) (Verification, error)
		GetVerification(ctx context.Context, paymentID string) (Verification, error)
		// SaveVerification stores v only if the stored row is still at step from and v.LastStep does not go
		// back. Otherwise it fails with ErrVerificationOutOfStep.
		SaveVerification(ctx context.Context, v Verification, from State) error
		// RecordLedgerEntry inserts entry and moves v to LEDGER_RECORDED in one transaction.
		// A second entry for the same kind and transaction id fails with ErrDuplicateLedgerEntry.
		RecordLedgerEntry(ctx context.Context, v Verification, entry LedgerEntry) (Verification, error)
		// ApplyBalance increments the target balance by v.Amount and moves v to BALANCE_UPDATED in one
		// transaction, only if v is still LEDGER_RECORDED. Otherwise it fails with ErrVerificationOutOfStep.
		ApplyBalance(ctx context.Context, v Verification) (Verification, error)
		TargetExists(ctx context.Context, kind Kind, id string) (bool, error)
		QueryPayerTotals(ctx context.Context, kind Kind, targetID string) ([]PayerTotal, error)
		QueryTargetTotals(ctx context.Context, kind Kind, payerID string) ([]TargetTotal, error)
	}

	Service interface {
		KeyID() string
		Checkout(ctx context.Context, c Checkout) (Order, error)
		Verify(ctx context.Context, kind Kind, vp VerifyPayment) (Result, error)
		GetVerification(ctx context.Context, paymentID string) (Verification, error)
		PayerTotals(ctx context.Context, kind Kind, targetID string) ([]PayerTotal, error)
		TargetTotals(ctx context.Context, kind Kind, payerID string) ([]TargetTotal, error)
	}

	service struct {
		repo     Repository
		gateway  Gateway
		users    user.Service
		logger   core.Logger
		secret   string
		currency string
		nowFunc  func() time.Time
	}
)

var _ Service = (*service)(nil)

func NewService(repo Repository, gateway Gateway, users user.Service, logger core.Logger, conf *core.Config) Service {
	return &service{
		repo:     repo,
		gateway:  gateway,
		users:    users,
		logger:   logger,
		secret:   conf.Razorpay.KeySecret,
		currency: conf.Razorpay.Currency,
		nowFunc:  time.Now,
	}
}

func (svc *service) KeyID() string {
	return svc.gateway.KeyID()
}

func (svc *service) Checkout(ctx context.Context, c Checkout) (Order, error) {
	order, err := svc.gateway.CreateOrder(ctx, NewOrder{Amount: ToSubunit(c.Amount), Currency: svc.currency})
	if err != nil {
		return Order{}, errors.Wrap(err, "creating order")
	}
	return order, nil
}

// Verify runs (or resumes) the verification of vp, which must already be validated.
func (svc *service) Verify(ctx context.Context, kind Kind, vp VerifyPayment) (Result, error) {
	if !VerifySignature(svc.secret, vp.OrderID, vp.PaymentID, vp.Signature) {
		return Result{State: StateRejected}, ErrInvalidSignature
	}

	targetID := vp.targetID(kind)
	exists, err := svc.repo.TargetExists(ctx, kind, targetID)
	if err != nil {
		return Result{State: StateSignatureChecked}, errors.Wrap(err, "checking payment target")
	}
	if !exists {
		return Result{State: StateSignatureChecked}, kind.errTargetNotFound()
	}
	payer, err := svc.users.GetByID(ctx, vp.UserID)
	if err != nil {
		return Result{State: StateSignatureChecked}, err
	}

	now := svc.nowFunc().UTC()
	v := Verification{
		PaymentID: vp.PaymentID,
		OrderID:   vp.OrderID,
		Kind:      kind,
		TargetID:  targetID,
		PayerID:   payer.ID,
		Amount:    vp.Amount,
		State:     StatePaymentPersisted,
		LastStep:  StatePaymentPersisted,
		CreatedAt: now,
		UpdatedAt: now,
	}
	pmt := Payment{
		OrderID:   vp.OrderID,
		PaymentID: vp.PaymentID,
		Signature: vp.Signature,
		CreatedAt: now,
	}
	if v, err = svc.repo.CreatePayment(ctx, pmt, v); err != nil {
		if errors.Cause(err) != ErrPaymentExists {
			return Result{State: StateFailed}, errors.Wrap(err, "persisting payment")
		}
		if !v.matches(kind, vp) {
			return Result{State: v.State}, core.NewValidationError(ErrVerificationMismatch)
		}
	}
	return svc.resume(ctx, v, payer)
}

// resume executes the steps following v.LastStep until BALANCE_UPDATED or the first failure.
func (svc *service) resume(ctx context.Context, v Verification, payer user.User) (Result, error) {
	for {
		var err error
		switch v.LastStep {
		case StateBalanceUpdated:
			return Result{
				Success:    true,
				Message:    v.Kind.successMessage(),
				LedgerID:   v.LedgerID,
				InvoiceURL: v.InvoiceURL,
				Amount:     v.Amount,
				State:      StateBalanceUpdated,
			}, nil
		case StatePaymentPersisted:
			err = svc.resolveCustomer(ctx, &v, payer)
		case StateCustomerResolved:
			err = svc.createItem(ctx, &v)
		case StateItemCreated:
			err = svc.createInvoice(ctx, &v)
		case StateInvoiceCreated:
			err = svc.recordLedgerEntry(ctx, &v)
		case StateLedgerRecorded:
			err = svc.applyBalance(ctx, &v)
		default:
			err = errors.Errorf("unexpected verification step %q", v.LastStep)
		}
		if err != nil {
			svc.fail(ctx, v, err)
			return Result{State: StateFailed}, err
		}
	}
}

func (svc *service) resolveCustomer(ctx context.Context, v *Verification, payer user.User) error {
	var (
		cust Customer
		err  error
	)
	if payer.CustomerID != "" {
		if cust, err = svc.gateway.FetchCustomer(ctx, payer.CustomerID); err != nil {
			return errors.Wrap(err, "fetching customer")
		}
	} else {
		cust, err = svc.gateway.CreateCustomer(ctx, NewCustomer{
			Name:         payer.Name(),
			Email:        payer.Email,
			Contact:      payer.Phone,
			FailExisting: "1",
		})
		if err != nil {
			return errors.Wrap(err, "creating customer")
		}
		if err = svc.users.SetCustomerID(ctx, payer.ID, cust.ID); err != nil {
			return errors.Wrap(err, "storing customer id")
		}
	}
	v.CustomerID = cust.ID
	return svc.save(ctx, v, StateCustomerResolved)
}

func (svc *service) createItem(ctx context.Context, v *Verification) error {
	item, err := svc.gateway.CreateItem(ctx, NewItem{
		Name:        v.Kind.itemName(),
		Description: v.Kind.itemDescription(),
		Amount:      ToSubunit(v.Amount),
		Currency:    svc.currency,
	})
	if err != nil {
		return errors.Wrap(err, "creating item")
	}
	v.ItemID = item.ID
	return svc.save(ctx, v, StateItemCreated)
}

func (svc *service) createInvoice(ctx context.Context, v *Verification) error {
	inv, err := svc.gateway.CreateInvoice(ctx, NewInvoice{
		Type:       "invoice",
		Date:       svc.nowFunc().Unix(),
		CustomerID: v.CustomerID,
		LineItems:  []LineItem{{ItemID: v.ItemID}},
	})
	if err != nil {
		return errors.Wrap(err, "creating invoice")
	}
	v.InvoiceID = inv.ID
	v.InvoiceURL = inv.ShortURL
	return svc.save(ctx, v, StateInvoiceCreated)
}

func (svc *service) recordLedgerEntry(ctx context.Context, v *Verification) error {
	entry := LedgerEntry{
		ID:            core.NewID(),
		Kind:          v.Kind,
		TargetID:      v.TargetID,
		PayerID:       v.PayerID,
		TransactionID: v.PaymentID,
		InvoiceID:     v.InvoiceID,
		InvoiceURL:    v.InvoiceURL,
		Amount:        v.Amount,
		CreatedAt:     svc.nowFunc().UTC(),
	}
	recorded, err := svc.repo.RecordLedgerEntry(ctx, *v, entry)
	switch errors.Cause(err) {
	case nil:
		*v = recorded
		return nil
	case ErrDuplicateLedgerEntry, ErrVerificationOutOfStep:
		// a concurrent attempt got there first
		return svc.reload(ctx, v)
	default:
		return errors.Wrap(err, "recording ledger entry")
	}
}

func (svc *service) applyBalance(ctx context.Context, v *Verification) error {
	applied, err := svc.repo.ApplyBalance(ctx, *v)
	switch errors.Cause(err) {
	case nil:
		*v = applied
		return nil
	case ErrVerificationOutOfStep:
		return svc.reload(ctx, v)
	default:
		return errors.Wrap(err, "updating balance")
	}
}

// reload refreshes v, failing if the stored row did not move past v.LastStep.
func (svc *service) reload(ctx context.Context, v *Verification) error {
	stored, err := svc.repo.GetVerification(ctx, v.PaymentID)
	if err != nil {
		return errors.Wrap(err, "reloading verification")
	}
	if stored.LastStep == v.LastStep {
		return ErrVerificationOutOfStep
	}
	*v = stored
	return nil
}

// save moves v from its current step to step. When a concurrent attempt already moved the stored row on,
// v is replaced by the stored row and the loop continues from there.
func (svc *service) save(ctx context.Context, v *Verification, step State) error {
	prev := *v
	v.advance(step)
	err := svc.repo.SaveVerification(ctx, *v, prev.LastStep)
	switch errors.Cause(err) {
	case nil:
		return nil
	case ErrVerificationOutOfStep:
		*v = prev
		return svc.reload(ctx, v)
	default:
		*v = prev
		return errors.Wrapf(err, "saving verification at %s", step)
	}
}

// fail stores the failure on the verification, keeping LastStep so a retry resumes from there.
// Nothing is written when a concurrent attempt moved the row past LastStep.
func (svc *service) fail(ctx context.Context, v Verification, cause error) {
	v.State = StateFailed
	v.FailureReason = cause.Error()
	v.UpdatedAt = svc.nowFunc().UTC()
	err := svc.repo.SaveVerification(ctx, v, v.LastStep)
	if err != nil && errors.Cause(err) != ErrVerificationOutOfStep {
		svc.logger.Error(fmt.Sprintf("payment.fail(%s): %v", v.PaymentID, err), err)
	}
	svc.logger.Warn(fmt.Sprintf("payment verification %s failed after %s: %v", v.PaymentID, v.LastStep, cause))
}

func (svc *service) GetVerification(ctx context.Context, paymentID string) (Verification, error) {
	return svc.repo.GetVerification(ctx, paymentID)
}

func (svc *service) PayerTotals(ctx context.Context, kind Kind, targetID string) ([]PayerTotal, error) {
	return svc.repo.QueryPayerTotals(ctx, kind, targetID)
}

func (svc *service) TargetTotals(ctx context.Context, kind Kind, payerID string) ([]TargetTotal, error) {
	return svc.repo.QueryTargetTotals(ctx, kind, payerID)
}
