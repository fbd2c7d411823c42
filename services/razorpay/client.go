// Package razorpay is a client of the Razorpay REST API.
package razorpay

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"github.com/pkg/errors"
	"github.com/sendgrid/rest"

	"github.com/alumnet/alumnet/core"
	"github.com/alumnet/alumnet/core/payment"
)

const defaultBaseURL = "https://api.razorpay.com"

// APIError is a non 2xx answer of the API.
type APIError struct {
	StatusCode  int
	Code        string `json:"code"`
	Description string `json:"description"`
}

func (e *APIError) Error() string {
	return fmt.Sprintf("razorpay: %d %s: %s", e.StatusCode, e.Code, e.Description)
}

type client struct {
	keyID   string
	auth    string
	baseURL string
	logger  core.Logger
}

var _ payment.Gateway = (*client)(nil)

func NewClient(logger core.Logger, conf *core.Config) payment.Gateway {
	baseURL := conf.Razorpay.BaseURL
	if baseURL == "" {
		baseURL = defaultBaseURL
	}
	creds := conf.Razorpay.KeyID + ":" + conf.Razorpay.KeySecret
	return &client{
		keyID:   conf.Razorpay.KeyID,
		auth:    "Basic " + base64.StdEncoding.EncodeToString([]byte(creds)),
		baseURL: strings.TrimRight(baseURL, "/"),
		logger:  logger,
	}
}

func (c *client) KeyID() string { return c.keyID }

func (c *client) CreateOrder(ctx context.Context, order payment.NewOrder) (payment.Order, error) {
	var res payment.Order
	err := c.do(ctx, rest.Post, "/v1/orders", order, &res)
	return res, err
}

func (c *client) FetchCustomer(ctx context.Context, id string) (payment.Customer, error) {
	var res payment.Customer
	err := c.do(ctx, rest.Get, "/v1/customers/"+id, nil, &res)
	return res, err
}

func (c *client) CreateCustomer(ctx context.Context, cust payment.NewCustomer) (payment.Customer, error) {
	var res payment.Customer
	err := c.do(ctx, rest.Post, "/v1/customers", cust, &res)
	return res, err
}

func (c *client) CreateItem(ctx context.Context, item payment.NewItem) (payment.Item, error) {
	var res payment.Item
	err := c.do(ctx, rest.Post, "/v1/items", item, &res)
	return res, err
}

func (c *client) CreateInvoice(ctx context.Context, inv payment.NewInvoice) (payment.Invoice, error) {
	var res payment.Invoice
	err := c.do(ctx, rest.Post, "/v1/invoices", inv, &res)
	return res, err
}

func (c *client) do(ctx context.Context, method rest.Method, endpoint string, body, dst interface{}) error {
	req := rest.Request{
		Method:  method,
		BaseURL: c.baseURL + endpoint,
		Headers: map[string]string{
			"Authorization": c.auth,
			"Accept":        "application/json",
		},
	}
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return errors.Wrapf(err, "encoding %s %s", method, endpoint)
		}
		req.Body = data
		req.Headers["Content-Type"] = "application/json"
	}

	res, err := rest.SendWithContext(ctx, req)
	if err != nil {
		return errors.Wrapf(err, "%s %s", method, endpoint)
	}
	if res.StatusCode >= http.StatusBadRequest {
		apiErr := &APIError{StatusCode: res.StatusCode}
		var payload struct {
			Error *APIError `json:"error"`
		}
		payload.Error = apiErr
		_ = json.Unmarshal([]byte(res.Body), &payload)
		c.logger.Warn(fmt.Sprintf("razorpay: %s %s: %v", method, endpoint, apiErr))
		return errors.WithStack(apiErr)
	}
	if err = json.Unmarshal([]byte(res.Body), dst); err != nil {
		return errors.Wrapf(err, "decoding %s %s", method, endpoint)
	}
	return nil
}
