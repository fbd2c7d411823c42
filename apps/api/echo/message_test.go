package echoapi

import (
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alumnet/alumnet/core/message"
)

func Test_messageApi(t *testing.T) {
	app := setup(t)
	alice := app.createUser(t, "Alice", "aliceuser", "alice@test.cd")
	bob := app.createUser(t, "Bob", "bobuser", "bob@test.cd")
	unknownID := "4b0d9d4e-3e63-4b8e-9f3a-2f7b5e0b1c11"

	tests := []httpTest{
		{name: "auth required", method: http.MethodPost, path: "/v1/messages", body: marchallObj(t, message.NewMessage{To: bob.ID, Text: "hi"}), wantCode: http.StatusUnauthorized},
		{name: "text required", method: http.MethodPost, path: "/v1/messages", token: app.getToken(t, alice), body: marchallObj(t, message.NewMessage{To: bob.ID}), wantCode: http.StatusBadRequest},
		{name: "unknown recipient", method: http.MethodPost, path: "/v1/messages", token: app.getToken(t, alice), body: marchallObj(t, message.NewMessage{To: unknownID, Text: "hi"}), wantCode: http.StatusNotFound},
		{
			name: "cannot message self", method: http.MethodPost, path: "/v1/messages", token: app.getToken(t, alice),
			body: marchallObj(t, message.NewMessage{To: alice.ID, Text: "hi"}), wantCode: http.StatusBadRequest,
			wantData: marchallObj(t, map[string]string{"to": message.ErrSelfMessage.Error()}),
		},
		{name: "alice writes", method: http.MethodPost, path: "/v1/messages", token: app.getToken(t, alice), body: marchallObj(t, message.NewMessage{To: bob.ID, Text: "hi bob"}), wantCode: http.StatusCreated},
		{name: "bob replies", method: http.MethodPost, path: "/v1/messages", token: app.getToken(t, bob), body: marchallObj(t, message.NewMessage{To: alice.ID, Text: "hey alice"}), wantCode: http.StatusCreated},
		{name: "no conversation", method: http.MethodGet, path: "/v1/messages/" + unknownID, token: app.getToken(t, alice), wantCode: http.StatusOK, wantData: marchallList(t)},
	}
	runHTTPTests(t, app, tests)

	req, rec := newAuthRequest(http.MethodGet, "/v1/messages/"+alice.ID, app.getToken(t, bob))
	app.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)

	var msgs []message.ProjectedMessage
	unmarshal(t, rec, &msgs)
	require.Len(t, msgs, 2)
	assert.Equal(t, "hi bob", msgs[0].Message)
	assert.False(t, msgs[0].FromSelf)
	assert.Equal(t, "hey alice", msgs[1].Message)
	assert.True(t, msgs[1].FromSelf)
}
