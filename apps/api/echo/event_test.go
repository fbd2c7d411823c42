package echoapi

import (
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alumnet/alumnet/core/event"
	"github.com/alumnet/alumnet/core/user"
)

func eventFields(date string) map[string]string {
	return map[string]string{
		"title":             "Careers in data",
		"type":              "webinar",
		"mode":              "online",
		"link":              "https://meet.test/careers",
		"description":       "Alumni share how they got into data",
		"coordinator":       "Jane Doe",
		"coordinator_phone": "0991234567",
		"tags":              "career, data",
		"eligibility":       "Everyone",
		"speaker":           "John Doe",
		"organized_by":      "Alumni office",
		"date":              date,
		"time":              "18:30",
	}
}

func (app *testApp) createEvent(t *testing.T, owner user.User, date string) event.Event {
	req, rec := newMultipartRequest(t, http.MethodPost, "/v1/events", app.getToken(t, owner), eventFields(date), "webinar.png")
	app.ServeHTTP(rec, req)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	var e event.Event
	unmarshal(t, rec, &e)
	return e
}

func Test_eventApi_create(t *testing.T) {
	app := setup(t)
	student := app.createUser(t, "Stu", "student1", "stu@test.cd", user.RoleStudent)
	alum := app.createUser(t, "Alum", "alumnus", "alum@test.cd", user.RoleAlumni)

	with := func(key, value string) map[string]string {
		fields := eventFields("2030-05-01")
		fields[key] = value
		return fields
	}

	tests := []struct {
		name     string
		usr      user.User
		fields   map[string]string
		filename string
		wantCode int
	}{
		{"students cannot post", student, eventFields("2030-05-01"), "webinar.png", http.StatusForbidden},
		{"invalid type", alum, with("type", "party"), "webinar.png", http.StatusBadRequest},
		{"invalid mode", alum, with("mode", "hybrid"), "webinar.png", http.StatusBadRequest},
		{"invalid phone", alum, with("coordinator_phone", "12345"), "webinar.png", http.StatusBadRequest},
		{"invalid reminder", alum, with("reminder", "2 days before"), "webinar.png", http.StatusBadRequest},
		{"invalid date", alum, with("date", "01/05/2030"), "webinar.png", http.StatusBadRequest},
		{"tags required", alum, with("tags", ""), "webinar.png", http.StatusBadRequest},
		{"photo required", alum, eventFields("2030-05-01"), "", http.StatusBadRequest},
		{"success", alum, with("reminder", "1 hour before"), "webinar.png", http.StatusCreated},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			req, rec := newMultipartRequest(t, http.MethodPost, "/v1/events", app.getToken(t, tc.usr), tc.fields, tc.filename)
			app.ServeHTTP(rec, req)
			require.Equal(t, tc.wantCode, rec.Code, rec.Body.String())
			if tc.wantCode != http.StatusCreated {
				return
			}

			var e event.Event
			unmarshal(t, rec, &e)
			assert.Equal(t, alum.ID, e.CreatedBy)
			assert.Equal(t, time.Date(2030, 5, 1, 18, 30, 0, 0, time.UTC), e.StartsAt)
			assert.Equal(t, []string{"career", "data"}, e.Tags)
			assert.Equal(t, "1 hour before", e.Reminder)
			assert.Empty(t, e.RegisteredUsers)
		})
	}
}

func Test_eventApi_manage(t *testing.T) {
	app := setup(t)
	owner := app.createUser(t, "Owner", "owneruser", "owner@test.cd", user.RoleAlumni)
	other := app.createUser(t, "Other", "otheruser", "other@test.cd")
	upcoming := app.createEvent(t, owner, "2030-05-01")
	past := app.createEvent(t, owner, "2001-05-01")
	path := "/v1/events/" + upcoming.ID

	runHTTPTests(t, app, []httpTest{
		{name: "types", method: http.MethodGet, path: "/v1/events/types", token: app.getToken(t, other), wantCode: http.StatusOK, wantData: marchallObj(t, event.Types)},
		{name: "reminders", method: http.MethodGet, path: "/v1/events/reminders", token: app.getToken(t, other), wantCode: http.StatusOK, wantData: marchallObj(t, event.Reminders)},
		{name: "list by start", method: http.MethodGet, path: "/v1/events", token: app.getToken(t, other), wantCode: http.StatusOK, wantData: marchallList(t, past, upcoming)},
		{name: "upcoming", method: http.MethodGet, path: "/v1/events?upcoming=true", token: app.getToken(t, other), wantCode: http.StatusOK, wantData: marchallList(t, upcoming)},
		{name: "not found", method: http.MethodGet, path: "/v1/events/lol", token: app.getToken(t, other), wantCode: http.StatusNotFound},
		{
			name: "update: not the owner", method: http.MethodPut, path: path, token: app.getToken(t, other),
			body: []byte(`{"title": "lol"}`), wantCode: http.StatusForbidden, wantData: marchallObj(t, httpErr{Error: event.ErrForbidden.Error()}),
		},
		{name: "registered (none)", method: http.MethodGet, path: "/v1/events/registered", token: app.getToken(t, other), wantCode: http.StatusOK, wantData: marchallList(t)},
		{name: "register", method: http.MethodPost, path: path + "/register", token: app.getToken(t, other), wantCode: http.StatusOK},
		{
			name: "register twice", method: http.MethodPost, path: path + "/register", token: app.getToken(t, other),
			wantCode: http.StatusBadRequest, wantData: marchallObj(t, httpErr{Error: event.ErrAlreadyRegistered.Error()}),
		},
		{name: "dislike", method: http.MethodPost, path: path + "/reactions", token: app.getToken(t, other), body: []byte(`{"reaction": "dislike"}`), wantCode: http.StatusOK},
	})

	t.Run("update keeps registrations", func(t *testing.T) {
		req, rec := newAuthRequest(http.MethodPut, path, app.getToken(t, owner), []byte(`{"time": "09:00", "mode": "offline", "venue": "Main hall"}`))
		app.ServeHTTP(rec, req)
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

		var got event.Event
		unmarshal(t, rec, &got)
		assert.Equal(t, time.Date(2030, 5, 1, 9, 0, 0, 0, time.UTC), got.StartsAt)
		assert.Equal(t, "offline", got.Mode)
		assert.Equal(t, "Main hall", got.Venue)
		assert.Equal(t, upcoming.Title, got.Title)
		assert.Equal(t, []string{other.ID}, got.RegisteredUsers)
		assert.Equal(t, []string{other.ID}, got.Dislikes)
		assert.True(t, got.IsRegistered(other.ID))
	})

	t.Run("registered", func(t *testing.T) {
		req, rec := newAuthRequest(http.MethodGet, "/v1/events/registered", app.getToken(t, other))
		app.ServeHTTP(rec, req)
		require.Equal(t, http.StatusOK, rec.Code)

		var events []event.Event
		unmarshal(t, rec, &events)
		require.Len(t, events, 1)
		assert.Equal(t, upcoming.ID, events[0].ID)
	})

	t.Run("delete", func(t *testing.T) {
		req, rec := newAuthRequest(http.MethodDelete, path, app.getToken(t, owner))
		app.ServeHTTP(rec, req)
		require.Equal(t, http.StatusNoContent, rec.Code)
		assert.Contains(t, app.images.Destroyed, "test/webinar_1")
	})
}
