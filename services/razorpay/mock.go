package razorpay

import (
	"context"
	"fmt"
	"sync"

	"github.com/alumnet/alumnet/core/payment"
)

// GatewayMock is an in-memory payment.Gateway for tests and offline development.
type GatewayMock struct {
	mu      sync.Mutex
	keyID   string
	seq     int
	Calls   map[string]int
	Orders  []payment.NewOrder
	Items   []payment.NewItem
	Invoices []payment.NewInvoice
}

var _ payment.Gateway = (*GatewayMock)(nil)

func NewGatewayMock(keyID string) *GatewayMock {
	return &GatewayMock{keyID: keyID, Calls: make(map[string]int)}
}

func (g *GatewayMock) next(method, prefix string) string {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.seq++
	g.Calls[method]++
	return fmt.Sprintf("%s_%d", prefix, g.seq)
}

func (g *GatewayMock) KeyID() string { return g.keyID }

func (g *GatewayMock) CreateOrder(ctx context.Context, order payment.NewOrder) (payment.Order, error) {
	id := g.next("CreateOrder", "order")
	g.mu.Lock()
	g.Orders = append(g.Orders, order)
	g.mu.Unlock()
	return payment.Order{
		ID:        id,
		Entity:    "order",
		Amount:    order.Amount,
		AmountDue: order.Amount,
		Currency:  order.Currency,
		Receipt:   order.Receipt,
		Status:    "created",
	}, nil
}

func (g *GatewayMock) FetchCustomer(ctx context.Context, id string) (payment.Customer, error) {
	g.next("FetchCustomer", "cust")
	return payment.Customer{ID: id}, nil
}

func (g *GatewayMock) CreateCustomer(ctx context.Context, cust payment.NewCustomer) (payment.Customer, error) {
	id := g.next("CreateCustomer", "cust")
	return payment.Customer{ID: id, Name: cust.Name, Email: cust.Email, Contact: cust.Contact}, nil
}

func (g *GatewayMock) CreateItem(ctx context.Context, item payment.NewItem) (payment.Item, error) {
	id := g.next("CreateItem", "item")
	g.mu.Lock()
	g.Items = append(g.Items, item)
	g.mu.Unlock()
	return payment.Item{ID: id, Name: item.Name, Amount: item.Amount, Currency: item.Currency}, nil
}

func (g *GatewayMock) CreateInvoice(ctx context.Context, inv payment.NewInvoice) (payment.Invoice, error) {
	id := g.next("CreateInvoice", "inv")
	g.mu.Lock()
	g.Invoices = append(g.Invoices, inv)
	g.mu.Unlock()
	return payment.Invoice{ID: id, ShortURL: "https://rzp.io/i/" + id, Status: "issued", CustomerID: inv.CustomerID}, nil
}

// CallCount returns how many times method was called.
func (g *GatewayMock) CallCount(method string) int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.Calls[method]
}
