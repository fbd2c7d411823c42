package event_test

import (
	"bytes"
	"context"
	"testing"
	"time"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alumnet/alumnet/core"
	"github.com/alumnet/alumnet/core/event"
	"github.com/alumnet/alumnet/core/testutil"
	"github.com/alumnet/alumnet/services/imagehost"
	inmemdb "github.com/alumnet/alumnet/storage/database/inmem"
)

func validEvent() event.NewEvent {
	return event.NewEvent{
		Title:            "Careers in data",
		Type:             "Seminar",
		Mode:             "offline",
		Venue:            "Main hall",
		Description:      "Alumni share how they got into data",
		Coordinator:      "Jane Doe",
		CoordinatorPhone: "0991234567",
		Tags:             []string{"career", " data "},
		Eligibility:      "Everyone",
		Speaker:          "John Doe",
		OrganizedBy:      "Alumni office",
		Schedule:         event.Schedule{Date: "2030-05-01", Time: "18:30"},
	}
}

func TestNewEvent_Validate(t *testing.T) {
	validate, _ := testutil.NewValidator()

	tests := []struct {
		name    string
		modify  func(ne *event.NewEvent)
		wantErr bool
	}{
		{"valid", func(ne *event.NewEvent) {}, false},
		{"bad link", func(ne *event.NewEvent) { ne.Link = "lol" }, true},
		{"no time", func(ne *event.NewEvent) { ne.Time = "" }, true},
		{"bad time", func(ne *event.NewEvent) { ne.Time = "25:00" }, true},
		{"bad reminder", func(ne *event.NewEvent) { ne.Reminder = "tomorrow" }, true},
		{"phone with letters", func(ne *event.NewEvent) { ne.CoordinatorPhone = "099123456a" }, true},
		{"too many tags", func(ne *event.NewEvent) {
			ne.Tags = nil
			for i := 0; i < 21; i++ {
				ne.Tags = append(ne.Tags, string(rune('a'+i)))
			}
		}, true},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			ne := validEvent()
			tc.modify(&ne)
			err := ne.Validate(validate)
			if tc.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, "seminar", ne.Type)
			assert.Equal(t, []string{"career", "data"}, ne.Tags)
			assert.Equal(t, event.Reminders[0], ne.Reminder)
			assert.Equal(t, time.Date(2030, 5, 1, 18, 30, 0, 0, time.UTC), ne.StartsAt)
		})
	}
}

func TestService(t *testing.T) {
	ctx := context.Background()
	validate, _ := testutil.NewValidator()
	db := inmemdb.NewDB()
	repos := inmemdb.NewRepositories(db)
	images := imagehost.NewUploaderMock()
	svc := event.NewService(repos.Events, images)

	owner := testutil.CreateUser(t, repos.Users, "Owner", "owneruser", "owner@test.cd", "Pwd-Alum-2024", nil, true)
	guest := testutil.CreateUser(t, repos.Users, "Guest", "guestuser", "guest@test.cd", "Pwd-Alum-2024", nil, true)

	ne := validEvent()
	require.NoError(t, ne.Validate(validate))
	e, err := svc.Create(ctx, owner.ID, ne, core.ImageFile{File: bytes.NewBufferString("img"), Filename: "talk.png"})
	require.NoError(t, err)
	assert.Equal(t, "https://images.test/test/talk_1.png", e.Photo)

	e, err = svc.Register(ctx, e, guest.ID)
	require.NoError(t, err)
	assert.Equal(t, []string{guest.ID}, e.RegisteredUsers)

	_, err = svc.Register(ctx, e, guest.ID)
	var vErr *core.ValidationError
	require.True(t, errors.As(err, &vErr), "got %v", err)
	assert.Equal(t, event.ErrAlreadyRegistered, vErr.Err)

	ue := event.UpdateEvent{}
	require.NoError(t, ue.Validate(e, validate))
	updated, err := svc.Update(ctx, e, ue, &core.ImageFile{File: bytes.NewBufferString("img"), Filename: "hall.jpg"})
	require.NoError(t, err)
	assert.Equal(t, e.StartsAt, updated.StartsAt)
	assert.Equal(t, e.Tags, updated.Tags)
	assert.Equal(t, []string{guest.ID}, updated.RegisteredUsers)
	assert.Equal(t, []string{"test/talk_1"}, images.Destroyed)

	registered, err := svc.Registered(ctx, guest.ID)
	require.NoError(t, err)
	require.Len(t, registered, 1)

	require.NoError(t, svc.Delete(ctx, updated))
	_, err = svc.GetByID(ctx, e.ID)
	assert.Equal(t, event.ErrNotFound, errors.Cause(err))
	assert.Equal(t, []string{"test/talk_1", "test/hall_2"}, images.Destroyed)
}
