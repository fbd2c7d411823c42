package echoapi

import (
	"context"
	"net/http"
	"net/url"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alumnet/alumnet/core/testutil"
	"github.com/alumnet/alumnet/core/user"
)

func Test_userApi_signup(t *testing.T) {
	app := setup(t)
	app.createUser(t, "Taken", "takenuser", "taken@test.cd")

	body := func(uname, email, pwd, confirm string, roles ...string) []byte {
		return marchallObj(t, user.NewUser{
			FirstName:       "New",
			LastName:        "Grad",
			Username:        uname,
			Email:           email,
			Password:        pwd,
			PasswordConfirm: confirm,
			Roles:           roles,
		})
	}

	tests := []httpTest{
		{name: "passwords mismatch", body: body("newgrad", "new@test.cd", "Pwd-Alum-2024", "lol"), wantCode: http.StatusBadRequest},
		{name: "invalid email", body: body("newgrad", "new@lol", "Pwd-Alum-2024", "Pwd-Alum-2024"), wantCode: http.StatusBadRequest},
		{
			name: "username taken", body: body("takenuser", "new@test.cd", "Pwd-Alum-2024", "Pwd-Alum-2024"),
			wantCode: http.StatusBadRequest, wantData: marchallObj(t, map[string]string{"username": user.ErrUsernameExists.Error()}),
		},
		{
			name: "email taken", body: body("newgrad", "TAKEN@test.cd", "Pwd-Alum-2024", "Pwd-Alum-2024"),
			wantCode: http.StatusBadRequest, wantData: marchallObj(t, map[string]string{"email": user.ErrEmailExists.Error()}),
		},
		{
			name: "cannot grant admin", body: body("newgrad", "new@test.cd", "Pwd-Alum-2024", "Pwd-Alum-2024", user.RoleAdmin),
			wantCode: http.StatusBadRequest, wantData: marchallObj(t, map[string]string{"roles": errNoPermsToSetRoles.Error()}),
		},
		{name: "success", body: body("newgrad", "new@test.cd", "Pwd-Alum-2024", "Pwd-Alum-2024", user.RoleAlumni), wantCode: http.StatusCreated},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req, rec := newRequest(http.MethodPost, "/v1/users/signup", tt.body)
			app.ServeHTTP(rec, req)
			checkCodeAndData(t, tt, rec)
		})
	}

	usr, err := app.repos.Users.GetUserByEmail(context.Background(), "new@test.cd")
	require.NoError(t, err)
	assert.Equal(t, "newgrad", usr.Username)
	assert.Equal(t, []string{user.RoleAlumni}, usr.Roles)
	assert.NoError(t, usr.CheckPassword("Pwd-Alum-2024"))
}

func Test_userApi_login(t *testing.T) {
	app := setup(t)
	usr := app.createUser(t, "Alum", "alumnus", "alum@test.cd")
	testutil.CreateUser(t, app.repos.Users, "Gone", "goneuser", "gone@test.cd", "Pwd-Alum-2024", nil, false)

	body := func(uname, pwd string) []byte {
		return marchallObj(t, LoginRequest{Username: uname, Password: pwd})
	}

	tests := []httpTest{
		{name: "missing fields", body: body("", ""), wantCode: http.StatusBadRequest},
		{name: "unknown user", body: body("lol", "Pwd-Alum-2024"), wantCode: http.StatusBadRequest, wantData: marchallObj(t, httpErr{Error: "authentication failed"})},
		{name: "wrong password", body: body("alumnus", "lol"), wantCode: http.StatusBadRequest, wantData: marchallObj(t, httpErr{Error: "authentication failed"})},
		{name: "deactivated", body: body("goneuser", "Pwd-Alum-2024"), wantCode: http.StatusForbidden, wantData: marchallObj(t, httpErr{Error: "account deactivated"})},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req, rec := newRequest(http.MethodPost, "/v1/users/login", tt.body)
			app.ServeHTTP(rec, req)
			checkCodeAndData(t, tt, rec)
		})
	}

	t.Run("success by email", func(t *testing.T) {
		req, rec := newRequest(http.MethodPost, "/v1/users/login", body("ALUM@test.cd", "Pwd-Alum-2024"))
		app.ServeHTTP(rec, req)
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

		var resp LoginResponse
		unmarshal(t, rec, &resp)
		require.NotNil(t, resp.User)
		assert.Equal(t, usr.ID, resp.User.ID)

		claims, err := parseToken(app.conf, resp.Token)
		require.NoError(t, err)
		assert.Equal(t, usr.ID, claims.Subject)
		assert.Equal(t, usr.Username, claims.Username)

		var cookie *http.Cookie
		for _, c := range rec.Result().Cookies() {
			if c.Name == tokenCookieName {
				cookie = c
			}
		}
		require.NotNil(t, cookie)
		assert.Equal(t, resp.Token, cookie.Value)
		assert.True(t, cookie.HttpOnly)

		// the cookie alone authenticates
		req, rec = newRequest(http.MethodGet, "/v1/users/"+usr.ID)
		req.AddCookie(cookie)
		app.ServeHTTP(rec, req)
		assert.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

		loggedIn, err := app.repos.Users.GetUserByID(context.Background(), usr.ID)
		require.NoError(t, err)
		assert.False(t, loggedIn.LastLogin.IsZero())
	})
}

func Test_userApi_logout(t *testing.T) {
	app := setup(t)

	req, rec := newRequest(http.MethodPost, "/v1/users/logout")
	app.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)

	cookies := rec.Result().Cookies()
	require.Len(t, cookies, 1)
	assert.Equal(t, tokenCookieName, cookies[0].Name)
	assert.Equal(t, "", cookies[0].Value)
	assert.True(t, cookies[0].MaxAge < 0)
}

func Test_userApi_refreshToken(t *testing.T) {
	app := setup(t)
	usr := app.createUser(t, "Alum", "alumnus", "alum@test.cd")

	expired := GetUserClaims(app.conf, usr, time.Now().Add(-2*app.conf.Server.JWTRefreshExpirationDelta).Unix())
	expiredToken, err := GenerateToken(app.conf, expired)
	require.NoError(t, err)

	tests := []httpTest{
		{name: "auth required", wantCode: http.StatusUnauthorized, wantData: marchallObj(t, errMissingToken)},
		{name: "refresh expired", token: expiredToken, wantCode: http.StatusForbidden, wantData: marchallObj(t, httpErr{Error: "refresh has expired"})},
		{name: "success", token: app.getToken(t, usr), wantCode: http.StatusOK},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req, rec := newAuthRequest(http.MethodPost, "/v1/users/token-refresh", tt.token)
			app.ServeHTTP(rec, req)
			checkCodeAndData(t, tt, rec)
		})
	}
}

func Test_userApi_query(t *testing.T) {
	app := setup(t)

	now := time.Now()
	awe := testutil.CreateUser(t, app.repos.Users, "Awe", "aweuser", "awe@test.cd", "", nil, true, now.Add(1*time.Hour))
	king := testutil.CreateUser(t, app.repos.Users, "King", "kinguser", "king@test.cd", "", []string{user.RoleAlumni}, true, now.Add(2*time.Hour))
	prof := testutil.CreateUser(t, app.repos.Users, "Prof", "profuser", "prof@test.cd", "", []string{user.RoleFaculty}, true, now.Add(3*time.Hour))
	naughty := testutil.CreateUser(t, app.repos.Users, "N Dog", "ndoguser", "ndog@test.cd", "", nil, false, now.Add(4*time.Hour))

	path := func(search, ordering string, isActive string, roles ...string) string {
		v := make(url.Values)
		if search != "" {
			v.Add("search", search)
		}
		if ordering != "" {
			v.Add("ordering", ordering)
		}
		if isActive != "" {
			v.Add("is_active", isActive)
		}
		for _, r := range roles {
			v.Add("role", r)
		}
		return "/v1/users?" + v.Encode()
	}
	token := app.getToken(t, awe)

	tests := []httpTest{
		{name: "auth required", path: "/v1/users", wantCode: http.StatusUnauthorized, wantData: marchallObj(t, errMissingToken)},
		{name: "get all", path: "/v1/users", token: token, wantCode: http.StatusOK, wantData: marchallList(t, awe, king, prof, naughty)},
		{name: "search (unknown)", path: path("lol", "", ""), token: token, wantCode: http.StatusOK, wantData: marchallList(t)},
		{name: "search=KING", path: path("KING", "", ""), token: token, wantCode: http.StatusOK, wantData: marchallList(t, king)},
		{
			name: "role=alumni,faculty", path: path("", "", "", user.RoleAlumni, user.RoleFaculty),
			token: token, wantCode: http.StatusOK, wantData: marchallList(t, king, prof),
		},
		{name: "is_active=false", path: path("", "", "false"), token: token, wantCode: http.StatusOK, wantData: marchallList(t, naughty)},
		{name: "order by -created_at", path: path("", "-created_at", ""), token: token, wantCode: http.StatusOK, wantData: marchallList(t, naughty, prof, king, awe)},
		{name: "order by username", path: path("", "username", "true"), token: token, wantCode: http.StatusOK, wantData: marchallList(t, awe, king, prof)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req, rec := newAuthRequest(http.MethodGet, tt.path, tt.token)
			app.ServeHTTP(rec, req)
			checkCodeAndData(t, tt, rec)
		})
	}
}

func Test_userApi_update(t *testing.T) {
	app := setup(t)
	usr := app.createUser(t, "Alum", "alumnus", "alum@test.cd")
	other := app.createUser(t, "Other", "otheruser", "other@test.cd")
	admin := app.createUser(t, "Admin", "adminuser", "admin@test.cd", user.RoleAdmin)

	bio := "Class of 2019"
	yes := true

	tests := []httpTest{
		{name: "auth required", path: "/v1/users/" + usr.ID, wantCode: http.StatusUnauthorized, wantData: marchallObj(t, errMissingToken)},
		{name: "not found", path: "/v1/users/lol", token: app.getToken(t, usr), wantCode: http.StatusNotFound, wantData: marchallObj(t, httpErr{Error: "not found"})},
		{
			name: "cannot update others", path: "/v1/users/" + usr.ID, token: app.getToken(t, other),
			body: marchallObj(t, user.UpdateUser{Bio: &bio}), wantCode: http.StatusForbidden, wantData: marchallObj(t, httpErr{Error: "permission denied"}),
		},
		{
			name: "cannot change own roles", path: "/v1/users/" + usr.ID, token: app.getToken(t, usr),
			body: marchallObj(t, user.UpdateUser{Roles: []string{user.RoleFaculty}}), wantCode: http.StatusForbidden,
		},
		{
			name: "username taken", path: "/v1/users/" + usr.ID, token: app.getToken(t, usr),
			body: marchallObj(t, user.UpdateUser{Username: "otheruser"}), wantCode: http.StatusBadRequest,
			wantData: marchallObj(t, map[string]string{"username": user.ErrUsernameExists.Error()}),
		},
		{
			name: "self update", path: "/v1/users/" + usr.ID, token: app.getToken(t, usr),
			body: marchallObj(t, user.UpdateUser{Bio: &bio, LastName: "Grad"}), wantCode: http.StatusOK,
		},
		{
			name: "admin sets roles", path: "/v1/users/" + other.ID, token: app.getToken(t, admin),
			body: marchallObj(t, user.UpdateUser{Roles: []string{user.RoleFaculty}, IsActive: &yes}), wantCode: http.StatusOK,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req, rec := newAuthRequest(http.MethodPut, tt.path, tt.token, tt.body)
			app.ServeHTTP(rec, req)
			checkCodeAndData(t, tt, rec)
		})
	}

	got, err := app.repos.Users.GetUserByID(context.Background(), usr.ID)
	require.NoError(t, err)
	assert.Equal(t, bio, got.Bio)
	assert.Equal(t, "Grad", got.LastName)

	got, err = app.repos.Users.GetUserByID(context.Background(), other.ID)
	require.NoError(t, err)
	assert.Equal(t, []string{user.RoleFaculty}, got.Roles)
}

func Test_userApi_setPhoto(t *testing.T) {
	app := setup(t)
	usr := app.createUser(t, "Alum", "alumnus", "alum@test.cd")
	other := app.createUser(t, "Other", "otheruser", "other@test.cd")
	path := "/v1/users/" + usr.ID + "/photo"

	t.Run("cannot set others photo", func(t *testing.T) {
		req, rec := newMultipartRequest(t, http.MethodPut, path, app.getToken(t, other), nil, "me.png")
		app.ServeHTTP(rec, req)
		assert.Equal(t, http.StatusForbidden, rec.Code)
	})
	t.Run("image required", func(t *testing.T) {
		req, rec := newMultipartRequest(t, http.MethodPut, path, app.getToken(t, usr), nil, "")
		app.ServeHTTP(rec, req)
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})
	t.Run("success", func(t *testing.T) {
		req, rec := newMultipartRequest(t, http.MethodPut, path, app.getToken(t, usr), nil, "me.png")
		app.ServeHTTP(rec, req)
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

		var got user.User
		unmarshal(t, rec, &got)
		assert.NotEmpty(t, got.ProfilePhoto)
		assert.Len(t, app.images.Uploaded, 1)
	})
}

func Test_userApi_destroy(t *testing.T) {
	app := setup(t)
	usr := app.createUser(t, "Alum", "alumnus", "alum@test.cd")
	admin := app.createUser(t, "Admin", "adminuser", "admin@test.cd", user.RoleAdmin)

	tests := []httpTest{
		{name: "admin required", path: "/v1/users/" + usr.ID, token: app.getToken(t, usr), wantCode: http.StatusForbidden},
		{name: "cannot delete self", path: "/v1/users/" + admin.ID, token: app.getToken(t, admin), wantCode: http.StatusForbidden},
		{name: "success", path: "/v1/users/" + usr.ID, token: app.getToken(t, admin), wantCode: http.StatusNoContent},
		{name: "already deleted", path: "/v1/users/" + usr.ID, token: app.getToken(t, admin), wantCode: http.StatusNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req, rec := newAuthRequest(http.MethodDelete, tt.path, tt.token)
			app.ServeHTTP(rec, req)
			checkCodeAndData(t, tt, rec)
		})
	}
}

func Test_userApi_follow(t *testing.T) {
	app := setup(t)
	usr := app.createUser(t, "Alum", "alumnus", "alum@test.cd")
	mentor := app.createUser(t, "Mentor", "mentoruser", "mentor@test.cd", user.RoleFaculty)
	token := app.getToken(t, usr)

	tests := []httpTest{
		{name: "cannot follow self", method: http.MethodPost, path: "/v1/users/" + usr.ID + "/follow", token: token, wantCode: http.StatusBadRequest, wantData: marchallObj(t, httpErr{Error: user.ErrSelfFollow.Error()})},
		{name: "unknown user", method: http.MethodPost, path: "/v1/users/lol/follow", token: token, wantCode: http.StatusNotFound},
		{name: "follow", method: http.MethodPost, path: "/v1/users/" + mentor.ID + "/follow", token: token, wantCode: http.StatusOK},
		{name: "follow again", method: http.MethodPost, path: "/v1/users/" + mentor.ID + "/follow", token: token, wantCode: http.StatusOK},
		{name: "followers", method: http.MethodGet, path: "/v1/users/" + mentor.ID + "/followers", token: token, wantCode: http.StatusOK, wantData: marchallList(t, usr)},
		{name: "following", method: http.MethodGet, path: "/v1/users/" + usr.ID + "/following", token: token, wantCode: http.StatusOK, wantData: marchallList(t, mentor)},
		{name: "unfollow", method: http.MethodDelete, path: "/v1/users/" + mentor.ID + "/follow", token: token, wantCode: http.StatusNoContent},
		{name: "followers (empty)", method: http.MethodGet, path: "/v1/users/" + mentor.ID + "/followers", token: token, wantCode: http.StatusOK, wantData: marchallList(t)},
	}
	runHTTPTests(t, app, tests)
}

func Test_userApi_passwordReset(t *testing.T) {
	app := setup(t)
	usr := app.createUser(t, "Alum", "alumnus", "alum@test.cd")

	t.Run("unknown email does not leak", func(t *testing.T) {
		req, rec := newRequest(http.MethodPost, "/v1/users/password-reset", marchallObj(t, EmailRequest{Email: "lol@test.cd"}))
		app.ServeHTTP(rec, req)
		assert.Equal(t, http.StatusOK, rec.Code)
		assert.Empty(t, app.mailSvc.SentMessages())
	})

	t.Run("reset & confirm", func(t *testing.T) {
		req, rec := newRequest(http.MethodPost, "/v1/users/password-reset", marchallObj(t, EmailRequest{Email: usr.Email}))
		app.ServeHTTP(rec, req)
		require.Equal(t, http.StatusOK, rec.Code)
		require.Len(t, app.mailSvc.SentMessages(), 1)

		mock, ok := app.usrSvc.(interface{ MakePasswordResetToken(user.User) string })
		require.True(t, ok)
		data := user.ResetUserPassword{
			UID:             usr.ID,
			Token:           mock.MakePasswordResetToken(usr),
			Password:        "N3w-Pwd-Alum",
			PasswordConfirm: "N3w-Pwd-Alum",
		}
		req, rec = newRequest(http.MethodPost, "/v1/users/password-reset-confirm", marchallObj(t, data))
		app.ServeHTTP(rec, req)
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

		got, err := app.repos.Users.GetUserByID(context.Background(), usr.ID)
		require.NoError(t, err)
		assert.NoError(t, got.CheckPassword("N3w-Pwd-Alum"))
	})
}

func Test_userApi_otp(t *testing.T) {
	app := setup(t)
	usr := app.createUser(t, "Alum", "alumnus", "alum@test.cd")

	tests := []httpTest{
		{name: "send: invalid email", method: http.MethodPost, path: "/v1/otp/send", body: marchallObj(t, EmailRequest{Email: "lol"}), wantCode: http.StatusBadRequest},
		{name: "send", method: http.MethodPost, path: "/v1/otp/send", body: marchallObj(t, EmailRequest{Email: usr.Email}), wantCode: http.StatusOK},
		{name: "verify: malformed code", method: http.MethodPost, path: "/v1/otp/verify", body: marchallObj(t, OTPRequest{Email: usr.Email, Code: "12ab"}), wantCode: http.StatusBadRequest},
		{name: "verify: wrong code", method: http.MethodPost, path: "/v1/otp/verify", body: marchallObj(t, OTPRequest{Email: "lol@test.cd", Code: "123456"}), wantCode: http.StatusBadRequest},
	}
	runHTTPTests(t, app, tests)
	assert.Len(t, app.mailSvc.SentMessages(), 1)
}

func Test_userApi_queryRoles(t *testing.T) {
	app := setup(t)
	usr := app.createUser(t, "Alum", "alumnus", "alum@test.cd")

	runHTTPTests(t, app, []httpTest{
		{name: "roles", method: http.MethodGet, path: "/v1/users/roles", token: app.getToken(t, usr), wantCode: http.StatusOK, wantData: marchallObj(t, user.Roles)},
	})
}
