package echoapi

import (
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alumnet/alumnet/core/fund"
	"github.com/alumnet/alumnet/core/user"
)

func Test_fundApi(t *testing.T) {
	app := setup(t)
	usr := app.createUser(t, "Alum", "alumnus", "alum@test.cd")
	admin := app.createUser(t, "Admin", "adminuser", "admin@test.cd", user.RoleAdmin)
	fields := map[string]string{"title": "Scholarships", "description": "For students"}

	t.Run("admin required", func(t *testing.T) {
		req, rec := newMultipartRequest(t, http.MethodPost, "/v1/funds", app.getToken(t, usr), fields, "")
		app.ServeHTTP(rec, req)
		assert.Equal(t, http.StatusForbidden, rec.Code)
	})
	t.Run("title required", func(t *testing.T) {
		req, rec := newMultipartRequest(t, http.MethodPost, "/v1/funds", app.getToken(t, admin), map[string]string{"description": "lol"}, "")
		app.ServeHTTP(rec, req)
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})

	var fnd fund.Fund
	t.Run("create", func(t *testing.T) {
		req, rec := newMultipartRequest(t, http.MethodPost, "/v1/funds", app.getToken(t, admin), fields, "fund.jpg")
		app.ServeHTTP(rec, req)
		require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

		unmarshal(t, rec, &fnd)
		assert.Equal(t, "Scholarships", fnd.Title)
		assert.Equal(t, admin.ID, fnd.CreatedBy)
		assert.NotEmpty(t, fnd.Image)
		assert.True(t, fnd.CurrentAmount.IsZero())
	})

	runHTTPTests(t, app, []httpTest{
		{name: "auth required", method: http.MethodGet, path: "/v1/funds", wantCode: http.StatusUnauthorized},
		{name: "list", method: http.MethodGet, path: "/v1/funds", token: app.getToken(t, usr), wantCode: http.StatusOK, wantData: marchallList(t, fnd)},
		{name: "retrieve", method: http.MethodGet, path: "/v1/funds/" + fnd.ID, token: app.getToken(t, usr), wantCode: http.StatusOK, wantData: marchallObj(t, fnd)},
		{name: "not found", method: http.MethodGet, path: "/v1/funds/lol", token: app.getToken(t, usr), wantCode: http.StatusNotFound},
		{name: "fundings (none)", method: http.MethodGet, path: "/v1/funds/" + fnd.ID + "/fundings", token: app.getToken(t, usr), wantCode: http.StatusOK, wantData: marchallList(t)},
	})
}
