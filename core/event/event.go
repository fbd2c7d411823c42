// Package event holds the workshops, seminars and other events members register for.
package event

import (
	"context"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/pkg/errors"

	"github.com/alumnet/alumnet/core"
)

const (
	dateLayout = "2006-01-02"
	timeLayout = "15:04"
)

var (
	Types     = []string{"workshop", "seminar", "conference", "webinar", "training"}
	Modes     = []string{"online", "offline"}
	Reminders = []string{"15 minutes before", "30 minutes before", "1 hour before"}

	// errors
	ErrNotFound          = errors.New("event not found")
	ErrForbidden         = errors.New("you do not have permission to manage this event")
	ErrAlreadyRegistered = errors.New("you are already registered for this event")
	errInvalidSchedule   = errors.New("date must be YYYY-MM-DD and time HH:MM")
	errInvalidReminder   = errors.New("reminder must be one of: 15 minutes before, 30 minutes before, 1 hour before")
)

type Event struct {
	ID               string    `json:"id"`
	CreatedBy        string    `json:"created_by"`
	Title            string    `json:"title"`
	Photo            string    `json:"photo"`
	PhotoPublicID    string    `json:"-"`
	Type             string    `json:"type"`
	Mode             string    `json:"mode"`
	Venue            string    `json:"venue"`
	Link             string    `json:"link"`
	StartsAt         time.Time `json:"starts_at"`
	Description      string    `json:"description"`
	Coordinator      string    `json:"coordinator"`
	CoordinatorPhone string    `json:"coordinator_phone"`
	Tags             []string  `json:"tags"`
	Eligibility      string    `json:"eligibility"`
	Speaker          string    `json:"speaker"`
	OrganizedBy      string    `json:"organized_by"`
	Reminder         string    `json:"reminder"`
	RegisteredUsers  []string  `json:"registered_users"`
	core.Reactions
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// IsRegistered reports whether the user registered for e.
func (e Event) IsRegistered(userID string) bool {
	return core.ContainsString(e.RegisteredUsers, userID)
}

// Schedule is the date and time of an event as posted by clients, read in UTC.
type Schedule struct {
	Date string `json:"date" form:"date"`
	Time string `json:"time" form:"time"`
}

func (s Schedule) parse() (time.Time, error) {
	t, err := time.Parse(dateLayout+" "+timeLayout, core.CleanString(s.Date)+" "+core.CleanString(s.Time))
	if err != nil {
		return time.Time{}, core.NewFieldValidationError("date", errInvalidSchedule)
	}
	return t.UTC(), nil
}

// NewEvent contains information needed to create a new Event. The photo comes separately.
type NewEvent struct {
	Title            string   `json:"title" form:"title" validate:"required,max=255"`
	Type             string   `json:"type" form:"type" validate:"required,oneof=workshop seminar conference webinar training"`
	Mode             string   `json:"mode" form:"mode" validate:"required,oneof=online offline"`
	Venue            string   `json:"venue" form:"venue" validate:"max=255"`
	Link             string   `json:"link" form:"link" validate:"omitempty,url"`
	Description      string   `json:"description" form:"description" validate:"required"`
	Coordinator      string   `json:"coordinator" form:"coordinator" validate:"required,max=150"`
	CoordinatorPhone string   `json:"coordinator_phone" form:"coordinator_phone" validate:"required,len=10,numeric"`
	Tags             []string `json:"tags" form:"tags" validate:"min=1,max=20,dive,max=64"`
	Eligibility      string   `json:"eligibility" form:"eligibility" validate:"required,max=255"`
	Speaker          string   `json:"speaker" form:"speaker" validate:"required,max=150"`
	OrganizedBy      string   `json:"organized_by" form:"organized_by" validate:"required,max=150"`
	Reminder         string   `json:"reminder" form:"reminder"`
	Schedule
	StartsAt time.Time `json:"-" form:"-"`
}

func (ne *NewEvent) Validate(validate *validator.Validate) error {
	ne.Title = core.CleanString(ne.Title)
	ne.Type = core.CleanString(ne.Type, true)
	ne.Mode = core.CleanString(ne.Mode, true)
	ne.Venue = core.CleanString(ne.Venue)
	ne.Link = core.CleanString(ne.Link)
	ne.Description = core.CleanString(ne.Description)
	ne.Coordinator = core.CleanString(ne.Coordinator)
	ne.CoordinatorPhone = core.CleanString(ne.CoordinatorPhone)
	ne.Tags = core.CleanList(ne.Tags)
	ne.Eligibility = core.CleanString(ne.Eligibility)
	ne.Speaker = core.CleanString(ne.Speaker)
	ne.OrganizedBy = core.CleanString(ne.OrganizedBy)
	if ne.Reminder = core.CleanString(ne.Reminder); ne.Reminder == "" {
		ne.Reminder = Reminders[0]
	}
	if err := validate.Struct(ne); err != nil {
		return err
	}
	if !core.ContainsString(Reminders, ne.Reminder) {
		return core.NewFieldValidationError("reminder", errInvalidReminder)
	}
	startsAt, err := ne.Schedule.parse()
	if err != nil {
		return err
	}
	ne.StartsAt = startsAt
	return nil
}

// UpdateEvent defines what information may be provided to modify an existing Event.
// Empty fields keep their current value.
type UpdateEvent struct {
	NewEvent
}

func (ue *UpdateEvent) Validate(orig Event, validate *validator.Validate) error {
	ne := &ue.NewEvent
	ne.Title = orDefault(core.CleanString(ne.Title), orig.Title)
	ne.Type = orDefault(core.CleanString(ne.Type, true), orig.Type)
	ne.Mode = orDefault(core.CleanString(ne.Mode, true), orig.Mode)
	ne.Venue = orDefault(core.CleanString(ne.Venue), orig.Venue)
	ne.Link = orDefault(core.CleanString(ne.Link), orig.Link)
	ne.Description = orDefault(core.CleanString(ne.Description), orig.Description)
	ne.Coordinator = orDefault(core.CleanString(ne.Coordinator), orig.Coordinator)
	ne.CoordinatorPhone = orDefault(core.CleanString(ne.CoordinatorPhone), orig.CoordinatorPhone)
	if ne.Tags = core.CleanList(ne.Tags); len(ne.Tags) == 0 {
		ne.Tags = orig.Tags
	}
	ne.Eligibility = orDefault(core.CleanString(ne.Eligibility), orig.Eligibility)
	ne.Speaker = orDefault(core.CleanString(ne.Speaker), orig.Speaker)
	ne.OrganizedBy = orDefault(core.CleanString(ne.OrganizedBy), orig.OrganizedBy)
	ne.Reminder = orDefault(core.CleanString(ne.Reminder), orig.Reminder)
	ne.Date = orDefault(core.CleanString(ne.Date), orig.StartsAt.Format(dateLayout))
	ne.Time = orDefault(core.CleanString(ne.Time), orig.StartsAt.Format(timeLayout))
	return ne.Validate(validate)
}

type QueryFilter struct {
	CreatedBy string `query:"created_by"`
	Type      string `query:"type"`
	// Upcoming keeps the events that have not started yet.
	Upcoming bool `query:"upcoming"`
}

func orDefault(s, def string) string {
	if s == "" {
		return def
	}
	return s
}

type (
	Repository interface {
		CreateEvent(ctx context.Context, e Event) (Event, error)
		QueryEvents(ctx context.Context, filter *QueryFilter, now time.Time, ordering []core.DBOrdering) ([]Event, error)
		GetEventByID(ctx context.Context, id string) (Event, error)
		// UpdateEvent never touches the registrations nor the reactions.
		UpdateEvent(ctx context.Context, e Event) (Event, error)
		DeleteEvent(ctx context.Context, id string) error
		SetReaction(ctx context.Context, eventID, userID string, r core.Reaction) error
		// AddRegistration fails with ErrAlreadyRegistered when the user is already registered.
		AddRegistration(ctx context.Context, eventID, userID string, at time.Time) error
		QueryRegisteredEvents(ctx context.Context, userID string) ([]Event, error)
	}

	Service interface {
		Create(ctx context.Context, creatorID string, ne NewEvent, photo core.ImageFile) (Event, error)
		Query(ctx context.Context, filter *QueryFilter, ordering []core.DBOrdering) ([]Event, error)
		GetByID(ctx context.Context, id string) (Event, error)
		Update(ctx context.Context, e Event, ue UpdateEvent, photo *core.ImageFile) (Event, error)
		Delete(ctx context.Context, e Event) error
		React(ctx context.Context, e Event, userID string, r core.Reaction) (Event, error)
		Register(ctx context.Context, e Event, userID string) (Event, error)
		Registered(ctx context.Context, userID string) ([]Event, error)
	}

	service struct {
		repo    Repository
		images  core.ImageUploader
		nowFunc func() time.Time
	}
)

var _ Service = (*service)(nil)

func NewService(repo Repository, images core.ImageUploader) Service {
	return &service{repo: repo, images: images, nowFunc: time.Now}
}

// CanManage reports whether the user may update or delete e.
func CanManage(e Event, userID string, isAdmin bool) bool {
	return isAdmin || e.CreatedBy == userID
}

func (svc *service) Create(ctx context.Context, creatorID string, ne NewEvent, photo core.ImageFile) (Event, error) {
	img, err := svc.images.Upload(ctx, photo.File, photo.Filename)
	if err != nil {
		return Event{}, errors.Wrap(err, "uploading event photo")
	}
	now := svc.nowFunc().UTC()
	e := Event{
		CreatedBy:       creatorID,
		Photo:           img.URL,
		PhotoPublicID:   img.PublicID,
		RegisteredUsers: []string{},
		Reactions:       core.Reactions{}.Copy(),
		CreatedAt:       now,
	}
	e.apply(ne, now)
	return svc.repo.CreateEvent(ctx, e)
}

func (e *Event) apply(ne NewEvent, now time.Time) {
	e.Title = ne.Title
	e.Type = ne.Type
	e.Mode = ne.Mode
	e.Venue = ne.Venue
	e.Link = ne.Link
	e.StartsAt = ne.StartsAt
	e.Description = ne.Description
	e.Coordinator = ne.Coordinator
	e.CoordinatorPhone = ne.CoordinatorPhone
	e.Tags = ne.Tags
	e.Eligibility = ne.Eligibility
	e.Speaker = ne.Speaker
	e.OrganizedBy = ne.OrganizedBy
	e.Reminder = ne.Reminder
	e.UpdatedAt = now
}

func (svc *service) Query(ctx context.Context, filter *QueryFilter, ordering []core.DBOrdering) ([]Event, error) {
	return svc.repo.QueryEvents(ctx, filter, svc.nowFunc().UTC(), ordering)
}

func (svc *service) GetByID(ctx context.Context, id string) (Event, error) {
	return svc.repo.GetEventByID(ctx, id)
}

// Update replaces the photo too when one is given; the previous one is then destroyed.
func (svc *service) Update(ctx context.Context, e Event, ue UpdateEvent, photo *core.ImageFile) (Event, error) {
	oldPublicID := ""
	if photo != nil {
		img, err := svc.images.Upload(ctx, photo.File, photo.Filename)
		if err != nil {
			return Event{}, errors.Wrap(err, "uploading event photo")
		}
		oldPublicID = e.PhotoPublicID
		e.Photo, e.PhotoPublicID = img.URL, img.PublicID
	}
	e.apply(ue.NewEvent, svc.nowFunc().UTC())

	e, err := svc.repo.UpdateEvent(ctx, e)
	if err != nil {
		return Event{}, err
	}
	if oldPublicID != "" {
		_ = svc.images.Destroy(ctx, oldPublicID)
	}
	return e, nil
}

func (svc *service) Delete(ctx context.Context, e Event) error {
	if err := svc.repo.DeleteEvent(ctx, e.ID); err != nil {
		return err
	}
	if e.PhotoPublicID != "" {
		_ = svc.images.Destroy(ctx, e.PhotoPublicID)
	}
	return nil
}

func (svc *service) React(ctx context.Context, e Event, userID string, r core.Reaction) (Event, error) {
	if err := svc.repo.SetReaction(ctx, e.ID, userID, r); err != nil {
		return Event{}, errors.Wrap(err, "setting reaction")
	}
	return svc.repo.GetEventByID(ctx, e.ID)
}

func (svc *service) Register(ctx context.Context, e Event, userID string) (Event, error) {
	if err := svc.repo.AddRegistration(ctx, e.ID, userID, svc.nowFunc().UTC()); err != nil {
		if errors.Cause(err) == ErrAlreadyRegistered {
			return Event{}, core.NewValidationError(ErrAlreadyRegistered)
		}
		return Event{}, errors.Wrap(err, "adding event registration")
	}
	return svc.repo.GetEventByID(ctx, e.ID)
}

func (svc *service) Registered(ctx context.Context, userID string) ([]Event, error) {
	return svc.repo.QueryRegisteredEvents(ctx, userID)
}
