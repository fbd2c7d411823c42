package sqlxrepos

import (
	"context"
	"strconv"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"github.com/pkg/errors"

	"github.com/alumnet/alumnet/core"
	"github.com/alumnet/alumnet/core/event"
)

var eventOrderingFields = []string{"starts_at", "created_at", "title"}

var eventSelect = `SELECT e.id, e.created_by, e.title, e.photo, e.photo_public_id, e.event_type, e.mode, e.venue, e.link,
	e.starts_at, e.description, e.coordinator, e.coordinator_phone, e.tags, e.eligibility, e.speaker, e.organized_by,
	e.reminder, e.created_at, e.updated_at,
	COALESCE((SELECT array_agg(er.user_id::text ORDER BY er.registered_at) FROM event_registrations er
		WHERE er.event_id = e.id), '{}') AS registered_users, ` +
	reactionColumns(kindEvent, "e.id") + ` FROM events e`

type dbEvent struct {
	ID               string         `db:"id"`
	CreatedBy        string         `db:"created_by"`
	Title            string         `db:"title"`
	Photo            string         `db:"photo"`
	PhotoPublicID    string         `db:"photo_public_id"`
	EventType        string         `db:"event_type"`
	Mode             string         `db:"mode"`
	Venue            string         `db:"venue"`
	Link             string         `db:"link"`
	StartsAt         time.Time      `db:"starts_at"`
	Description      string         `db:"description"`
	Coordinator      string         `db:"coordinator"`
	CoordinatorPhone string         `db:"coordinator_phone"`
	Tags             pq.StringArray `db:"tags"`
	Eligibility      string         `db:"eligibility"`
	Speaker          string         `db:"speaker"`
	OrganizedBy      string         `db:"organized_by"`
	Reminder         string         `db:"reminder"`
	RegisteredUsers  pq.StringArray `db:"registered_users"`
	CreatedAt        time.Time      `db:"created_at"`
	UpdatedAt        time.Time      `db:"updated_at"`
	dbReactions
}

func (e dbEvent) toEvent() event.Event {
	return event.Event{
		ID:               e.ID,
		CreatedBy:        e.CreatedBy,
		Title:            e.Title,
		Photo:            e.Photo,
		PhotoPublicID:    e.PhotoPublicID,
		Type:             e.EventType,
		Mode:             e.Mode,
		Venue:            e.Venue,
		Link:             e.Link,
		StartsAt:         e.StartsAt.UTC(),
		Description:      e.Description,
		Coordinator:      e.Coordinator,
		CoordinatorPhone: e.CoordinatorPhone,
		Tags:             nonNil(e.Tags),
		Eligibility:      e.Eligibility,
		Speaker:          e.Speaker,
		OrganizedBy:      e.OrganizedBy,
		Reminder:         e.Reminder,
		RegisteredUsers:  nonNil(e.RegisteredUsers),
		Reactions:        e.toReactions(),
		CreatedAt:        e.CreatedAt.UTC(),
		UpdatedAt:        e.UpdatedAt.UTC(),
	}
}

type eventRepository struct {
	db core.DB
}

var _ event.Repository = (*eventRepository)(nil)

func NewEventRepository(db core.DB) event.Repository {
	return &eventRepository{db: db}
}

func (repo *eventRepository) selectEvents(ctx context.Context, q string, args ...interface{}) ([]event.Event, error) {
	var rows []dbEvent
	if err := repo.db.SelectContext(ctx, &rows, q, args...); err != nil {
		return nil, errors.Wrap(err, "selecting events")
	}
	events := make([]event.Event, 0, len(rows))
	for _, row := range rows {
		events = append(events, row.toEvent())
	}
	return events, nil
}

func (repo *eventRepository) CreateEvent(ctx context.Context, e event.Event) (event.Event, error) {
	e.ID = core.NewID()
	q := `INSERT INTO events (id, created_by, title, photo, photo_public_id, event_type, mode, venue, link, starts_at,
		description, coordinator, coordinator_phone, tags, eligibility, speaker, organized_by, reminder, created_at,
		updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18, $19, $20)`
	if _, err := repo.db.ExecContext(ctx, q, e.ID, e.CreatedBy, e.Title, e.Photo, e.PhotoPublicID, e.Type, e.Mode,
		e.Venue, e.Link, e.StartsAt, e.Description, e.Coordinator, e.CoordinatorPhone, pq.Array(nonNil(e.Tags)),
		e.Eligibility, e.Speaker, e.OrganizedBy, e.Reminder, e.CreatedAt, e.UpdatedAt); err != nil {
		return event.Event{}, errors.Wrap(err, "inserting event")
	}
	return repo.GetEventByID(ctx, e.ID)
}

func (repo *eventRepository) QueryEvents(ctx context.Context, filter *event.QueryFilter, now time.Time, ordering []core.DBOrdering) ([]event.Event, error) {
	var (
		args  []interface{}
		conds []string
	)
	if filter != nil {
		if filter.CreatedBy != "" {
			args = append(args, filter.CreatedBy)
			conds = append(conds, "e.created_by::text = $"+strconv.Itoa(len(args)))
		}
		if filter.Type != "" {
			args = append(args, filter.Type)
			conds = append(conds, "e.event_type = $"+strconv.Itoa(len(args)))
		}
		if filter.Upcoming {
			args = append(args, now)
			conds = append(conds, "e.starts_at >= $"+strconv.Itoa(len(args)))
		}
	}
	q := eventSelect + where(conds) + " ORDER BY " +
		core.OrderByClause(prefixOrdering("e", ordering), prefixFields("e", eventOrderingFields), "e.starts_at ASC")
	return repo.selectEvents(ctx, q, args...)
}

func (repo *eventRepository) GetEventByID(ctx context.Context, id string) (event.Event, error) {
	var row dbEvent
	if err := repo.db.GetContext(ctx, &row, eventSelect+" WHERE e.id::text = $1", id); err != nil {
		return event.Event{}, notFound(err, event.ErrNotFound)
	}
	return row.toEvent(), nil
}

func (repo *eventRepository) UpdateEvent(ctx context.Context, e event.Event) (event.Event, error) {
	q := `UPDATE events SET title = $1, photo = $2, photo_public_id = $3, event_type = $4, mode = $5, venue = $6,
		link = $7, starts_at = $8, description = $9, coordinator = $10, coordinator_phone = $11, tags = $12,
		eligibility = $13, speaker = $14, organized_by = $15, reminder = $16, updated_at = $17 WHERE id::text = $18`
	if err := execOne(ctx, repo.db, event.ErrNotFound, q, e.Title, e.Photo, e.PhotoPublicID, e.Type, e.Mode, e.Venue,
		e.Link, e.StartsAt, e.Description, e.Coordinator, e.CoordinatorPhone, pq.Array(nonNil(e.Tags)), e.Eligibility,
		e.Speaker, e.OrganizedBy, e.Reminder, e.UpdatedAt, e.ID); err != nil {
		return event.Event{}, err
	}
	return repo.GetEventByID(ctx, e.ID)
}

func (repo *eventRepository) DeleteEvent(ctx context.Context, id string) error {
	return core.InTx(ctx, repo.db, func(tx *sqlx.Tx) error {
		if err := execOne(ctx, tx, event.ErrNotFound, "DELETE FROM events WHERE id::text = $1", id); err != nil {
			return err
		}
		return dropTargetRows(ctx, tx, kindEvent, id)
	})
}

func (repo *eventRepository) SetReaction(ctx context.Context, eventID, userID string, r core.Reaction) error {
	if _, err := repo.GetEventByID(ctx, eventID); err != nil {
		return err
	}
	return setReaction(ctx, repo.db, kindEvent, eventID, userID, r)
}

func (repo *eventRepository) AddRegistration(ctx context.Context, eventID, userID string, at time.Time) error {
	if _, err := repo.GetEventByID(ctx, eventID); err != nil {
		return err
	}
	q := "INSERT INTO event_registrations (event_id, user_id, registered_at) VALUES ($1, $2, $3)"
	if _, err := repo.db.ExecContext(ctx, q, eventID, userID, at); err != nil {
		if uniqueViolationOn(err, "event_registrations_pkey") {
			return event.ErrAlreadyRegistered
		}
		return errors.Wrap(err, "inserting event registration")
	}
	return nil
}

func (repo *eventRepository) QueryRegisteredEvents(ctx context.Context, userID string) ([]event.Event, error) {
	q := eventSelect + " WHERE EXISTS (SELECT 1 FROM event_registrations er WHERE er.event_id = e.id" +
		" AND er.user_id::text = $1) ORDER BY e.starts_at"
	return repo.selectEvents(ctx, q, userID)
}
