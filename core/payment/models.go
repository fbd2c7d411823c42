package payment

import (
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/pkg/errors"
	"github.com/shopspring/decimal"

	"github.com/alumnet/alumnet/core"
	"github.com/alumnet/alumnet/core/fund"
	"github.com/alumnet/alumnet/core/project"
)

// Kind is what a verified payment credits.
type Kind string

const (
	KindDonation Kind = "donation" // credits a project
	KindFunding  Kind = "funding"  // credits a fund
)

func (k Kind) Valid() bool { return k == KindDonation || k == KindFunding }

func (k Kind) itemName() string {
	if k == KindDonation {
		return "Donation"
	}
	return "Fund Contribution"
}

func (k Kind) itemDescription() string {
	if k == KindDonation {
		return "Donation to project"
	}
	return "Contribution to fund"
}

func (k Kind) successMessage() string {
	if k == KindDonation {
		return "Payment verified and donation added successfully!"
	}
	return "Payment verified and funding added successfully!"
}

func (k Kind) targetField() string {
	if k == KindDonation {
		return "project_id"
	}
	return "fund_id"
}

func (k Kind) errTargetNotFound() error {
	if k == KindDonation {
		return project.ErrNotFound
	}
	return fund.ErrNotFound
}

// State of a payment verification.
type State string

const (
	StatePending          State = "PENDING"
	StateSignatureChecked State = "SIGNATURE_CHECKED"
	StatePaymentPersisted State = "PAYMENT_PERSISTED"
	StateCustomerResolved State = "CUSTOMER_RESOLVED"
	StateItemCreated      State = "ITEM_CREATED"
	StateInvoiceCreated   State = "INVOICE_CREATED"
	StateLedgerRecorded   State = "LEDGER_RECORDED"
	StateBalanceUpdated   State = "BALANCE_UPDATED"
	StateRejected         State = "REJECTED"
	StateFailed           State = "FAILED"
)

// steps ranks the persisted verification steps in execution order.
var steps = map[State]int{
	StatePaymentPersisted: 1,
	StateCustomerResolved: 2,
	StateItemCreated:      3,
	StateInvoiceCreated:   4,
	StateLedgerRecorded:   5,
	StateBalanceUpdated:   6,
}

// NotBefore reports whether s is prev or a later step. Unknown states are never in order.
func (s State) NotBefore(prev State) bool {
	rs, ok := steps[s]
	if !ok {
		return false
	}
	rp, ok := steps[prev]
	return ok && rs >= rp
}

// Payment is the evidence of a gateway payment. Never mutated once written.
type Payment struct {
	ID        string    `json:"id"`
	OrderID   string    `json:"order_id"`
	PaymentID string    `json:"payment_id"`
	Signature string    `json:"signature"`
	CreatedAt time.Time `json:"created_at"`
}

// Verification tracks the progress of one payment through the verification steps.
// LastStep is the last completed step; a FAILED verification resumes right after it.
type Verification struct {
	PaymentID     string          `json:"payment_id"`
	OrderID       string          `json:"order_id"`
	Kind          Kind            `json:"kind"`
	TargetID      string          `json:"target_id"`
	PayerID       string          `json:"payer_id"`
	Amount        decimal.Decimal `json:"amount"`
	State         State           `json:"state"`
	LastStep      State           `json:"last_step"`
	CustomerID    string          `json:"customer_id"`
	ItemID        string          `json:"item_id"`
	InvoiceID     string          `json:"invoice_id"`
	InvoiceURL    string          `json:"invoice_url"`
	LedgerID      string          `json:"ledger_id"`
	FailureReason string          `json:"failure_reason"`
	CreatedAt     time.Time       `json:"created_at"`
	UpdatedAt     time.Time       `json:"updated_at"`
}

func (v *Verification) advance(step State) {
	v.State = step
	v.LastStep = step
	v.FailureReason = ""
	v.UpdatedAt = time.Now().UTC()
}

// matches reports whether a retried request describes the same payment.
func (v Verification) matches(kind Kind, vp VerifyPayment) bool {
	return v.Kind == kind &&
		v.OrderID == vp.OrderID &&
		v.TargetID == vp.targetID(kind) &&
		v.PayerID == vp.UserID &&
		v.Amount.Equal(vp.Amount)
}

// LedgerEntry is a donation to a project or a contribution to a fund. Unique on (Kind, TransactionID).
type LedgerEntry struct {
	ID            string          `json:"id"`
	Kind          Kind            `json:"kind"`
	TargetID      string          `json:"target_id"`
	PayerID       string          `json:"payer_id"`
	TransactionID string          `json:"transaction_id"`
	InvoiceID     string          `json:"invoice_id"`
	InvoiceURL    string          `json:"invoice_url"`
	Amount        decimal.Decimal `json:"amount"`
	CreatedAt     time.Time       `json:"created_at"`
}

type Checkout struct {
	Amount decimal.Decimal `json:"amount" validate:"required,gt=0"`
}

func (c Checkout) Validate(validate *validator.Validate) error { return validate.Struct(c) }

// VerifyPayment is the payload posted by the client once the hosted checkout completes.
type VerifyPayment struct {
	OrderID   string          `json:"razorpay_order_id" validate:"required,max=64"`
	PaymentID string          `json:"razorpay_payment_id" validate:"required,max=64"`
	Signature string          `json:"razorpay_signature" validate:"max=128"`
	Amount    decimal.Decimal `json:"amount" validate:"required,gt=0"`
	ProjectID string          `json:"project_id" validate:"omitempty,uuid"`
	FundID    string          `json:"fund_id" validate:"omitempty,uuid"`
	UserID    string          `json:"user_id" validate:"required,uuid"`
}

var errTargetRequired = errors.New("this field is required")

func (vp *VerifyPayment) Validate(kind Kind, validate *validator.Validate) error {
	vp.OrderID = core.CleanString(vp.OrderID)
	vp.PaymentID = core.CleanString(vp.PaymentID)
	vp.Signature = core.CleanString(vp.Signature)
	vp.UserID = core.CleanString(vp.UserID, true /* lower */)
	vp.ProjectID = core.CleanString(vp.ProjectID, true /* lower */)
	vp.FundID = core.CleanString(vp.FundID, true /* lower */)

	if err := validate.Struct(vp); err != nil {
		return err
	}
	if vp.targetID(kind) == "" {
		return core.NewFieldValidationError(kind.targetField(), errTargetRequired)
	}
	return nil
}

func (vp VerifyPayment) targetID(kind Kind) string {
	if kind == KindDonation {
		return vp.ProjectID
	}
	return vp.FundID
}

// Result is returned by a verification that reached BALANCE_UPDATED.
type Result struct {
	Success    bool            `json:"success"`
	Message    string          `json:"message"`
	LedgerID   string          `json:"ledger_id"`
	InvoiceURL string          `json:"invoice_url"`
	Amount     decimal.Decimal `json:"amount"`
	State      State           `json:"state"`
}

// PayerTotal sums the ledger entries of one payer for a target.
type PayerTotal struct {
	PayerID string          `json:"user_id" db:"payer_id"`
	Total   decimal.Decimal `json:"total" db:"total"`
	Count   int             `json:"count" db:"count"`
}

// TargetTotal sums the ledger entries of a payer for one target.
type TargetTotal struct {
	TargetID string          `json:"target_id" db:"target_id"`
	Total    decimal.Decimal `json:"total" db:"total"`
	Count    int             `json:"count" db:"count"`
}
