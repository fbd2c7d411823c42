package echoapi

import (
	"bytes"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"reflect"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alumnet/alumnet/core"
	"github.com/alumnet/alumnet/core/event"
	"github.com/alumnet/alumnet/core/fund"
	"github.com/alumnet/alumnet/core/group"
	"github.com/alumnet/alumnet/core/job"
	"github.com/alumnet/alumnet/core/message"
	"github.com/alumnet/alumnet/core/payment"
	"github.com/alumnet/alumnet/core/post"
	"github.com/alumnet/alumnet/core/project"
	"github.com/alumnet/alumnet/core/realtime"
	"github.com/alumnet/alumnet/core/testutil"
	"github.com/alumnet/alumnet/core/user"
	appfs "github.com/alumnet/alumnet/fs"
	emailsvc "github.com/alumnet/alumnet/services/email"
	"github.com/alumnet/alumnet/services/imagehost"
	logsvc "github.com/alumnet/alumnet/services/logger"
	"github.com/alumnet/alumnet/services/razorpay"
	inmemdb "github.com/alumnet/alumnet/storage/database/inmem"
)

var errMissingToken = httpErr{Error: "missing or malformed jwt"}

type testApp struct {
	Server
	conf    *core.Config
	db      *inmemdb.DB
	repos   inmemdb.Repositories
	usrSvc  user.Service
	mailSvc *emailsvc.ConsoleServiceMock
	images  *imagehost.UploaderMock
	gateway *razorpay.GatewayMock
	hub     *realtime.Hub
}

func setup(t *testing.T) *testApp {
	conf := core.NewTestConfig()
	logger := logsvc.NewTestLogger()
	core.ParseEmailTemplates(appfs.Templates, appfs.EmailTemplatesDir, false, logger)

	// set up DB & repos
	db := inmemdb.NewDB()
	repos := inmemdb.NewRepositories(db)

	// set up services
	mailSvc := emailsvc.NewConsoleServiceMock(logger, conf)
	images := imagehost.NewUploaderMock()
	gateway := razorpay.NewGatewayMock(conf.Razorpay.KeyID)
	usrSvc := user.NewServiceMock(repos.Users, mailSvc, images, conf)
	hub := realtime.NewHub(realtime.NewRegistry(), logger)
	validate, translator := testutil.NewValidator()

	// set up server
	app := NewServer(ServerDeps{
		Conf:       conf,
		Logger:     logger,
		Validate:   validate,
		Translator: translator,
		UserSvc:    usrSvc,
		GroupSvc:   group.NewService(repos.Groups, images),
		MessageSvc: message.NewService(repos.Messages),
		ProjectSvc: project.NewService(repos.Projects),
		FundSvc:    fund.NewService(repos.Funds, images),
		PaymentSvc: payment.NewService(repos.Payments, gateway, usrSvc, logger, conf),
		PostSvc:    post.NewService(repos.Posts, images),
		JobSvc:     job.NewService(repos.Jobs, images),
		EventSvc:   event.NewService(repos.Events, images),
		Hub:        hub,
	})

	return &testApp{
		Server:  app,
		conf:    conf,
		db:      db,
		repos:   repos,
		usrSvc:  usrSvc,
		mailSvc: mailSvc,
		images:  images,
		gateway: gateway,
		hub:     hub,
	}
}

func (app *testApp) createUser(t *testing.T, firstName, uname, email string, roles ...string) user.User {
	return testutil.CreateUser(t, app.repos.Users, firstName, uname, email, "Pwd-Alum-2024", roles, true)
}

type httpErr struct {
	Error string `json:"error"`
}

type httpTest struct {
	name     string
	method   string
	path     string
	body     []byte
	token    string
	wantCode int
	wantData []byte
	extra    interface{}
}

func newAuthRequest(method, path, token string, data ...[]byte) (*http.Request, *httptest.ResponseRecorder) {
	var body bytes.Buffer
	if len(data) > 0 {
		body.Write(data[0])
	}
	req := httptest.NewRequest(method, path, &body)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	return req, rec
}

func newRequest(method, path string, data ...[]byte) (*http.Request, *httptest.ResponseRecorder) {
	return newAuthRequest(method, path, "", data...)
}

// newMultipartRequest posts fields and an optional image file as multipart/form-data.
func newMultipartRequest(t *testing.T, method, path, token string, fields map[string]string, filename string) (*http.Request, *httptest.ResponseRecorder) {
	var body bytes.Buffer
	w := multipart.NewWriter(&body)
	for k, v := range fields {
		require.NoError(t, w.WriteField(k, v))
	}
	if filename != "" {
		part, err := w.CreateFormFile(imageField, filename)
		require.NoError(t, err)
		_, err = part.Write([]byte("\x89PNG fake image"))
		require.NoError(t, err)
	}
	require.NoError(t, w.Close())

	req := httptest.NewRequest(method, path, &body)
	req.Header.Set("Content-Type", w.FormDataContentType())
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	return req, httptest.NewRecorder()
}

func (app *testApp) getToken(t *testing.T, usr user.User) string {
	token, err := GenerateToken(app.conf, GetUserClaims(app.conf, usr))
	if err != nil {
		t.Fatalf("getToken() failed: %v", err)
	}
	return token
}

func marchallObj(t *testing.T, obj interface{}) []byte {
	data, err := json.Marshal(obj)
	if err != nil {
		t.Fatalf("marchallObj() failed: %v", err)
	}
	return data
}

func marchallList(t *testing.T, objs ...interface{}) []byte {
	if objs == nil {
		objs = []interface{}{}
	}
	data, err := json.Marshal(objs)
	if err != nil {
		t.Fatalf("marchallList() failed: %v", err)
	}
	return data
}

func unmarshal(t *testing.T, rec *httptest.ResponseRecorder, dst interface{}) {
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), dst), rec.Body.String())
}

func jsonBytesEqual(b1, b2 []byte) (bool, error) {
	var j1, j2 interface{}
	if err := json.Unmarshal(b1, &j1); err != nil {
		return false, err
	}
	if err := json.Unmarshal(b2, &j2); err != nil {
		return false, err
	}
	return reflect.DeepEqual(j1, j2), nil
}

func checkCodeAndData(t *testing.T, tt httpTest, rec *httptest.ResponseRecorder) {
	assert.Equal(t, tt.wantCode, rec.Code, "code; body %s", rec.Body.String())
	if tt.wantData == nil {
		return
	}
	ok, err := jsonBytesEqual(rec.Body.Bytes(), tt.wantData)
	if err != nil {
		t.Errorf("jsonBytesEqual() failed to compare; err %v", err)
	}
	if !ok {
		t.Errorf("failed! data = %v; wantData %v", rec.Body.String(), string(tt.wantData))
	}
}

func runHTTPTests(t *testing.T, app *testApp, tests []httpTest) {
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req, rec := newAuthRequest(tt.method, tt.path, tt.token, tt.body)
			app.ServeHTTP(rec, req)
			checkCodeAndData(t, tt, rec)
		})
	}
}
