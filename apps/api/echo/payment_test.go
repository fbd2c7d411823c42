package echoapi

import (
	"context"
	"net/http"
	"strings"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alumnet/alumnet/core/fund"
	"github.com/alumnet/alumnet/core/payment"
	"github.com/alumnet/alumnet/core/project"
	"github.com/alumnet/alumnet/core/user"
)

func (app *testApp) createProject(t *testing.T, owner user.User, topic string) project.Project {
	prj, err := project.NewService(app.repos.Projects).Create(context.Background(), owner.ID, project.NewProject{
		Topic:       topic,
		Description: "Campus project",
		ProjectType: project.ProjectTypes[0],
		Department:  project.Departments[0],
		Phase:       "initial",
	})
	require.NoError(t, err)
	return prj
}

func (app *testApp) createFund(t *testing.T, owner user.User, title string) fund.Fund {
	fnd, err := fund.NewService(app.repos.Funds, app.images).Create(context.Background(), owner.ID, fund.NewFund{Title: title, Description: "For students"}, nil)
	require.NoError(t, err)
	return fnd
}

func (app *testApp) verifyRequest(paymentID string, amount int64, payer user.User) payment.VerifyPayment {
	orderID := "order_" + paymentID
	return payment.VerifyPayment{
		OrderID:   orderID,
		PaymentID: paymentID,
		Signature: payment.Sign(app.conf.Razorpay.KeySecret, orderID, paymentID),
		Amount:    decimal.NewFromInt(amount),
		UserID:    payer.ID,
	}
}

func Test_paymentApi_key(t *testing.T) {
	app := setup(t)

	runHTTPTests(t, app, []httpTest{
		{name: "donations", method: http.MethodGet, path: "/v1/donations/key", wantCode: http.StatusOK, wantData: marchallObj(t, KeyResponse{Key: "rzp_test_key"})},
		{name: "fundings", method: http.MethodGet, path: "/v1/fundings/key", wantCode: http.StatusOK, wantData: marchallObj(t, KeyResponse{Key: "rzp_test_key"})},
	})
}

func Test_paymentApi_checkout(t *testing.T) {
	app := setup(t)
	usr := app.createUser(t, "Alum", "alumnus", "alum@test.cd")

	tests := []httpTest{
		{name: "auth required", body: []byte(`{"amount": 500}`), wantCode: http.StatusUnauthorized, wantData: marchallObj(t, errMissingToken)},
		{name: "amount required", token: app.getToken(t, usr), body: []byte(`{}`), wantCode: http.StatusBadRequest},
		{name: "negative amount", token: app.getToken(t, usr), body: []byte(`{"amount": -5}`), wantCode: http.StatusBadRequest},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req, rec := newAuthRequest(http.MethodPost, "/v1/donations/checkout", tt.token, tt.body)
			app.ServeHTTP(rec, req)
			checkCodeAndData(t, tt, rec)
		})
	}

	t.Run("success", func(t *testing.T) {
		req, rec := newAuthRequest(http.MethodPost, "/v1/fundings/checkout", app.getToken(t, usr), []byte(`{"amount": 500}`))
		app.ServeHTTP(rec, req)
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

		var resp CheckoutResponse
		unmarshal(t, rec, &resp)
		assert.True(t, resp.Success)
		assert.True(t, strings.HasPrefix(resp.Order.ID, "order_"))
		assert.Equal(t, 1, app.gateway.CallCount("CreateOrder"))
	})
}

func Test_paymentApi_verifyDonation(t *testing.T) {
	app := setup(t)
	payer := app.createUser(t, "Payer", "payeruser", "payer@test.cd")
	other := app.createUser(t, "Other", "otheruser", "other@test.cd")
	admin := app.createUser(t, "Admin", "adminuser", "admin@test.cd", user.RoleAdmin)
	prj := app.createProject(t, payer, "Solar campus")
	token := app.getToken(t, payer)

	valid := app.verifyRequest("pay_1", 500, payer)
	valid.ProjectID = prj.ID

	badSig := valid
	badSig.Signature = payment.Sign(app.conf.Razorpay.KeySecret, valid.OrderID, "pay_2")
	noSig := valid
	noSig.Signature = ""
	noTarget := valid
	noTarget.ProjectID = ""
	unknownTarget := valid
	unknownTarget.ProjectID = "4b0d9d4e-3e63-4b8e-9f3a-2f7b5e0b1c11"
	fundOnly := valid
	fundOnly.ProjectID, fundOnly.FundID = "", prj.ID

	tests := []httpTest{
		{name: "auth required", body: marchallObj(t, valid), wantCode: http.StatusUnauthorized},
		{name: "invalid signature", token: token, body: marchallObj(t, badSig), wantCode: http.StatusBadRequest, wantData: marchallObj(t, httpErr{Error: "invalid signature"})},
		{name: "empty signature", token: token, body: marchallObj(t, noSig), wantCode: http.StatusBadRequest, wantData: marchallObj(t, httpErr{Error: "invalid signature"})},
		{
			name: "project required", token: token, body: marchallObj(t, noTarget), wantCode: http.StatusBadRequest,
			wantData: marchallObj(t, map[string]string{"project_id": "this field is required"}),
		},
		{
			name: "fund id is not a project id", token: token, body: marchallObj(t, fundOnly), wantCode: http.StatusBadRequest,
			wantData: marchallObj(t, map[string]string{"project_id": "this field is required"}),
		},
		{name: "unknown project", token: token, body: marchallObj(t, unknownTarget), wantCode: http.StatusNotFound, wantData: marchallObj(t, httpErr{Error: project.ErrNotFound.Error()})},
		{name: "cannot pay as somebody else", token: app.getToken(t, other), body: marchallObj(t, valid), wantCode: http.StatusForbidden},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req, rec := newAuthRequest(http.MethodPost, "/v1/donations/verify", tt.token, tt.body)
			app.ServeHTTP(rec, req)
			checkCodeAndData(t, tt, rec)
		})
	}
	assert.Zero(t, app.gateway.CallCount("CreateInvoice"))

	var first payment.Result
	t.Run("success", func(t *testing.T) {
		req, rec := newAuthRequest(http.MethodPost, "/v1/donations/verify", token, marchallObj(t, valid))
		app.ServeHTTP(rec, req)
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

		unmarshal(t, rec, &first)
		assert.True(t, first.Success)
		assert.Equal(t, payment.StateBalanceUpdated, first.State)
		assert.NotEmpty(t, first.LedgerID)
		assert.True(t, strings.HasPrefix(first.InvoiceURL, "https://rzp.io/i/"))
		assert.True(t, first.Amount.Equal(decimal.NewFromInt(500)))
	})

	t.Run("retry is idempotent", func(t *testing.T) {
		req, rec := newAuthRequest(http.MethodPost, "/v1/donations/verify", token, marchallObj(t, valid))
		app.ServeHTTP(rec, req)
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

		var again payment.Result
		unmarshal(t, rec, &again)
		assert.Equal(t, first.LedgerID, again.LedgerID)
		assert.Equal(t, 1, app.gateway.CallCount("CreateInvoice"))
	})

	t.Run("retry with different amount", func(t *testing.T) {
		changed := valid
		changed.Amount = decimal.NewFromInt(5000)
		req, rec := newAuthRequest(http.MethodPost, "/v1/donations/verify", token, marchallObj(t, changed))
		app.ServeHTTP(rec, req)
		assert.Equal(t, http.StatusBadRequest, rec.Code, rec.Body.String())
	})

	got, err := app.repos.Projects.GetProjectByID(context.Background(), prj.ID)
	require.NoError(t, err)
	assert.True(t, got.DonatedAmount.Equal(decimal.NewFromInt(500)), got.DonatedAmount.String())
	assert.Len(t, app.db.LedgerEntries(payment.KindDonation), 1)

	runHTTPTests(t, app, []httpTest{
		{name: "verification: admin required", method: http.MethodGet, path: "/v1/donations/verifications/pay_1", token: token, wantCode: http.StatusForbidden},
		{name: "verification: wrong kind", method: http.MethodGet, path: "/v1/fundings/verifications/pay_1", token: app.getToken(t, admin), wantCode: http.StatusNotFound},
		{name: "verification: unknown", method: http.MethodGet, path: "/v1/donations/verifications/lol", token: app.getToken(t, admin), wantCode: http.StatusNotFound},
		{name: "verification", method: http.MethodGet, path: "/v1/donations/verifications/pay_1", token: app.getToken(t, admin), wantCode: http.StatusOK},
		{
			name: "project donations", method: http.MethodGet, path: "/v1/projects/" + prj.ID + "/donations", token: token, wantCode: http.StatusOK,
			wantData: marchallList(t, payment.PayerTotal{PayerID: payer.ID, Total: decimal.NewFromInt(500), Count: 1}),
		},
		{
			name: "user donations", method: http.MethodGet, path: "/v1/users/" + payer.ID + "/donations", token: token, wantCode: http.StatusOK,
			wantData: marchallList(t, payment.TargetTotal{TargetID: prj.ID, Total: decimal.NewFromInt(500), Count: 1}),
		},
	})
}

func Test_paymentApi_verifyFunding(t *testing.T) {
	app := setup(t)
	payer := app.createUser(t, "Payer", "payeruser", "payer@test.cd")
	admin := app.createUser(t, "Admin", "adminuser", "admin@test.cd", user.RoleAdmin)
	fnd := app.createFund(t, admin, "Scholarships")

	first := app.verifyRequest("pay_1", 300, payer)
	first.FundID = fnd.ID
	second := app.verifyRequest("pay_2", 200, payer)
	second.FundID = fnd.ID

	// admins may verify on behalf of the payer
	for _, tc := range []struct {
		token string
		vp    payment.VerifyPayment
	}{
		{app.getToken(t, payer), first},
		{app.getToken(t, admin), second},
	} {
		req, rec := newAuthRequest(http.MethodPost, "/v1/fundings/verify", tc.token, marchallObj(t, tc.vp))
		app.ServeHTTP(rec, req)
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	}

	got, err := app.repos.Funds.GetFundByID(context.Background(), fnd.ID)
	require.NoError(t, err)
	assert.True(t, got.CurrentAmount.Equal(decimal.NewFromInt(500)), got.CurrentAmount.String())

	runHTTPTests(t, app, []httpTest{
		{
			name: "fund fundings", method: http.MethodGet, path: "/v1/funds/" + fnd.ID + "/fundings", token: app.getToken(t, payer), wantCode: http.StatusOK,
			wantData: marchallList(t, payment.PayerTotal{PayerID: payer.ID, Total: decimal.NewFromInt(500), Count: 2}),
		},
		{
			name: "user fundings", method: http.MethodGet, path: "/v1/users/" + payer.ID + "/fundings", token: app.getToken(t, payer), wantCode: http.StatusOK,
			wantData: marchallList(t, payment.TargetTotal{TargetID: fnd.ID, Total: decimal.NewFromInt(500), Count: 2}),
		},
		{name: "user donations (none)", method: http.MethodGet, path: "/v1/users/" + payer.ID + "/donations", token: app.getToken(t, payer), wantCode: http.StatusOK, wantData: marchallList(t)},
	})
}
