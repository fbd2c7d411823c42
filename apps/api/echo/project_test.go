package echoapi

import (
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alumnet/alumnet/core/project"
	"github.com/alumnet/alumnet/core/user"
)

func Test_projectApi_create(t *testing.T) {
	app := setup(t)
	usr := app.createUser(t, "Stu", "student1", "stu@test.cd")

	valid := project.NewProject{
		Topic:        "  Solar campus ",
		Description:  "Solar panels on every roof",
		ProjectType:  project.ProjectTypes[0],
		Department:   project.Departments[0],
		Phase:        "initial",
		Technologies: []string{"Go", " Postgres "},
	}
	badType := valid
	badType.ProjectType = "lol"
	badPhase := valid
	badPhase.Phase = "done"
	tooManyTechs := valid
	tooManyTechs.Technologies = []string{"a", "b", "c", "d", "e", "f", "g", "h"}

	tests := []httpTest{
		{name: "auth required", body: marchallObj(t, valid), wantCode: http.StatusUnauthorized},
		{name: "invalid type", token: app.getToken(t, usr), body: marchallObj(t, badType), wantCode: http.StatusBadRequest},
		{name: "invalid phase", token: app.getToken(t, usr), body: marchallObj(t, badPhase), wantCode: http.StatusBadRequest},
		{name: "too many technologies", token: app.getToken(t, usr), body: marchallObj(t, tooManyTechs), wantCode: http.StatusBadRequest},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req, rec := newAuthRequest(http.MethodPost, "/v1/projects", tt.token, tt.body)
			app.ServeHTTP(rec, req)
			checkCodeAndData(t, tt, rec)
		})
	}

	t.Run("success", func(t *testing.T) {
		req, rec := newAuthRequest(http.MethodPost, "/v1/projects", app.getToken(t, usr), marchallObj(t, valid))
		app.ServeHTTP(rec, req)
		require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

		var prj project.Project
		unmarshal(t, rec, &prj)
		assert.Equal(t, "Solar campus", prj.Topic)
		assert.Equal(t, usr.ID, prj.CreatedBy)
		assert.Equal(t, []string{"Go", "Postgres"}, prj.Technologies)
		assert.True(t, prj.DonatedAmount.IsZero())
	})
}

func Test_projectApi_manage(t *testing.T) {
	app := setup(t)
	owner := app.createUser(t, "Owner", "owneruser", "owner@test.cd")
	other := app.createUser(t, "Other", "otheruser", "other@test.cd")
	admin := app.createUser(t, "Admin", "adminuser", "admin@test.cd", user.RoleAdmin)
	prj := app.createProject(t, owner, "Solar campus")
	other1 := app.createProject(t, other, "Rain water")
	path := "/v1/projects/" + prj.ID

	tests := []httpTest{
		{name: "list", method: http.MethodGet, path: "/v1/projects", token: app.getToken(t, other), wantCode: http.StatusOK, wantData: marchallList(t, prj, other1)},
		{name: "filter by creator", method: http.MethodGet, path: "/v1/projects?created_by=" + other.ID, token: app.getToken(t, other), wantCode: http.StatusOK, wantData: marchallList(t, other1)},
		{name: "types", method: http.MethodGet, path: "/v1/projects/types", token: app.getToken(t, other), wantCode: http.StatusOK, wantData: marchallObj(t, project.ProjectTypes)},
		{name: "departments", method: http.MethodGet, path: "/v1/projects/departments", token: app.getToken(t, other), wantCode: http.StatusOK, wantData: marchallObj(t, project.Departments)},
		{name: "not found", method: http.MethodGet, path: "/v1/projects/lol", token: app.getToken(t, other), wantCode: http.StatusNotFound},
		{name: "retrieve", method: http.MethodGet, path: path, token: app.getToken(t, other), wantCode: http.StatusOK, wantData: marchallObj(t, prj)},
		{
			name: "update: not the owner", method: http.MethodPut, path: path, token: app.getToken(t, other),
			body: []byte(`{"topic": "lol"}`), wantCode: http.StatusForbidden, wantData: marchallObj(t, httpErr{Error: project.ErrForbidden.Error()}),
		},
		{name: "update: owner", method: http.MethodPut, path: path, token: app.getToken(t, owner), body: []byte(`{"phase": "intermediate"}`), wantCode: http.StatusOK},
		{name: "join as contributor", method: http.MethodPost, path: path + "/contributors", token: app.getToken(t, other), wantCode: http.StatusOK},
		{name: "delete: admin", method: http.MethodDelete, path: "/v1/projects/" + other1.ID, token: app.getToken(t, admin), wantCode: http.StatusNoContent},
		{name: "deleted", method: http.MethodGet, path: "/v1/projects/" + other1.ID, token: app.getToken(t, admin), wantCode: http.StatusNotFound},
		{name: "donations (none)", method: http.MethodGet, path: path + "/donations", token: app.getToken(t, other), wantCode: http.StatusOK, wantData: marchallList(t)},
	}
	runHTTPTests(t, app, tests)

	req, rec := newAuthRequest(http.MethodGet, path, app.getToken(t, owner))
	app.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)

	var got project.Project
	unmarshal(t, rec, &got)
	assert.Equal(t, "intermediate", got.Phase)
	assert.Equal(t, "Solar campus", got.Topic)
	assert.Equal(t, []string{other.ID}, got.Contributors)

	req, rec = newAuthRequest(http.MethodDelete, path+"/contributors", app.getToken(t, other))
	app.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)
	unmarshal(t, rec, &got)
	assert.Empty(t, got.Contributors)
}
