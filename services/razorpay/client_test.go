package razorpay

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alumnet/alumnet/core"
	"github.com/alumnet/alumnet/core/payment"
	logsvc "github.com/alumnet/alumnet/services/logger"
)

type recorded struct {
	method string
	path   string
	auth   string
	body   map[string]interface{}
}

func newTestClient(t *testing.T, handler func(w http.ResponseWriter, r *http.Request)) (payment.Gateway, *[]recorded) {
	var reqs []recorded
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		rec := recorded{method: r.Method, path: r.URL.Path, auth: r.Header.Get("Authorization")}
		data, _ := io.ReadAll(r.Body)
		if len(data) > 0 {
			require.NoError(t, json.Unmarshal(data, &rec.body))
		}
		reqs = append(reqs, rec)
		w.Header().Set("Content-Type", "application/json")
		handler(w, r)
	}))
	t.Cleanup(srv.Close)

	conf := core.NewTestConfig()
	conf.Razorpay.BaseURL = srv.URL
	return NewClient(logsvc.NewTestLogger(), conf), &reqs
}

func TestClient_Requests(t *testing.T) {
	gw, reqs := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/v1/orders":
			_, _ = io.WriteString(w, `{"id":"order_1","entity":"order","amount":50000,"currency":"INR","status":"created"}`)
		case "/v1/customers":
			_, _ = io.WriteString(w, `{"id":"cust_new","name":"Jane Doe","email":"jane@example.com"}`)
		case "/v1/customers/cust_1":
			_, _ = io.WriteString(w, `{"id":"cust_1","name":"Jane Doe"}`)
		case "/v1/items":
			_, _ = io.WriteString(w, `{"id":"item_1","name":"Donation","amount":50000,"currency":"INR"}`)
		case "/v1/invoices":
			_, _ = io.WriteString(w, `{"id":"inv_1","short_url":"https://rzp.io/i/abc","status":"issued"}`)
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	})
	ctx := context.Background()
	wantAuth := "Basic " + base64.StdEncoding.EncodeToString([]byte("rzp_test_key:rzp_test_secret"))

	assert.Equal(t, "rzp_test_key", gw.KeyID())

	order, err := gw.CreateOrder(ctx, payment.NewOrder{Amount: 50000, Currency: "INR"})
	require.NoError(t, err)
	assert.Equal(t, payment.Order{ID: "order_1", Entity: "order", Amount: 50000, Currency: "INR", Status: "created"}, order)

	cust, err := gw.CreateCustomer(ctx, payment.NewCustomer{Name: "Jane Doe", Email: "jane@example.com", FailExisting: "1"})
	require.NoError(t, err)
	assert.Equal(t, "cust_new", cust.ID)

	cust, err = gw.FetchCustomer(ctx, "cust_1")
	require.NoError(t, err)
	assert.Equal(t, "cust_1", cust.ID)

	item, err := gw.CreateItem(ctx, payment.NewItem{Name: "Donation", Description: "Donation to project", Amount: 50000, Currency: "INR"})
	require.NoError(t, err)
	assert.Equal(t, "item_1", item.ID)

	inv, err := gw.CreateInvoice(ctx, payment.NewInvoice{
		Type:       "invoice",
		Date:       1700000000,
		CustomerID: "cust_1",
		LineItems:  []payment.LineItem{{ItemID: "item_1"}},
	})
	require.NoError(t, err)
	assert.Equal(t, "https://rzp.io/i/abc", inv.ShortURL)

	require.Len(t, *reqs, 5)
	for _, req := range *reqs {
		assert.Equal(t, wantAuth, req.auth)
	}
	assert.Equal(t, map[string]interface{}{"amount": float64(50000), "currency": "INR"}, (*reqs)[0].body)
	assert.Equal(t, "1", (*reqs)[1].body["fail_existing"])
	assert.Equal(t, http.MethodGet, (*reqs)[2].method)
	assert.Nil(t, (*reqs)[2].body)
	assert.Equal(t, []interface{}{map[string]interface{}{"item_id": "item_1"}}, (*reqs)[4].body["line_items"])
	assert.Equal(t, "cust_1", (*reqs)[4].body["customer_id"])
}

func TestClient_APIError(t *testing.T) {
	gw, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		_, _ = io.WriteString(w, `{"error":{"code":"BAD_REQUEST_ERROR","description":"Customer already exists for the merchant"}}`)
	})

	_, err := gw.CreateCustomer(context.Background(), payment.NewCustomer{Name: "Jane", FailExisting: "1"})
	require.Error(t, err)
	var apiErr *APIError
	require.True(t, errors.As(err, &apiErr))
	assert.Equal(t, http.StatusBadRequest, apiErr.StatusCode)
	assert.Equal(t, "BAD_REQUEST_ERROR", apiErr.Code)
	assert.Equal(t, "Customer already exists for the merchant", apiErr.Description)
}
