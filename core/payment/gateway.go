package payment

import (
	"context"

	"github.com/shopspring/decimal"
)

type (
	// Order is the gateway's order descriptor, handed to the hosted checkout.
	Order struct {
		ID         string `json:"id"`
		Entity     string `json:"entity"`
		Amount     int64  `json:"amount"`
		AmountPaid int64  `json:"amount_paid"`
		AmountDue  int64  `json:"amount_due"`
		Currency   string `json:"currency"`
		Receipt    string `json:"receipt"`
		Status     string `json:"status"`
		Attempts   int    `json:"attempts"`
		CreatedAt  int64  `json:"created_at"`
	}

	NewOrder struct {
		Amount   int64  `json:"amount"` // in the currency subunit
		Currency string `json:"currency"`
		Receipt  string `json:"receipt,omitempty"`
	}

	Customer struct {
		ID      string `json:"id"`
		Name    string `json:"name"`
		Email   string `json:"email"`
		Contact string `json:"contact"`
	}

	NewCustomer struct {
		Name         string `json:"name"`
		Email        string `json:"email,omitempty"`
		Contact      string `json:"contact,omitempty"`
		FailExisting string `json:"fail_existing"`
	}

	Item struct {
		ID       string `json:"id"`
		Name     string `json:"name"`
		Amount   int64  `json:"amount"`
		Currency string `json:"currency"`
	}

	NewItem struct {
		Name        string `json:"name"`
		Description string `json:"description"`
		Amount      int64  `json:"amount"`
		Currency    string `json:"currency"`
	}

	Invoice struct {
		ID         string `json:"id"`
		ShortURL   string `json:"short_url"`
		Status     string `json:"status"`
		CustomerID string `json:"customer_id"`
	}

	LineItem struct {
		ItemID string `json:"item_id"`
	}

	NewInvoice struct {
		Type       string     `json:"type"`
		Date       int64      `json:"date"`
		CustomerID string     `json:"customer_id"`
		LineItems  []LineItem `json:"line_items"`
	}

	// Gateway is the payment provider's REST API.
	Gateway interface {
		KeyID() string
		CreateOrder(ctx context.Context, order NewOrder) (Order, error)
		FetchCustomer(ctx context.Context, id string) (Customer, error)
		CreateCustomer(ctx context.Context, cust NewCustomer) (Customer, error)
		CreateItem(ctx context.Context, item NewItem) (Item, error)
		CreateInvoice(ctx context.Context, inv NewInvoice) (Invoice, error)
	}
)

// ToSubunit converts an amount to the currency subunit (paise for INR).
func ToSubunit(amount decimal.Decimal) int64 {
	return amount.Shift(2).Round(0).IntPart()
}
