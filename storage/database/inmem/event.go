package inmemdb

import (
	"context"
	"time"

	"github.com/alumnet/alumnet/core"
	"github.com/alumnet/alumnet/core/event"
)

var eventOrderingFields = []string{"starts_at", "created_at", "title"}

type eventRepository struct {
	db *DB
}

var _ event.Repository = (*eventRepository)(nil)

func NewEventRepository(db *DB) event.Repository {
	return &eventRepository{db: db}
}

func copyEvent(e event.Event) event.Event {
	e.Tags = nonNilStrings(copyStrings(e.Tags))
	e.RegisteredUsers = nonNilStrings(copyStrings(e.RegisteredUsers))
	e.Reactions = e.Reactions.Copy()
	return e
}

func (repo *eventRepository) CreateEvent(ctx context.Context, e event.Event) (event.Event, error) {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	e.ID = core.NewID()
	e = copyEvent(e)
	repo.db.events[e.ID] = e
	return copyEvent(e), nil
}

func (repo *eventRepository) QueryEvents(ctx context.Context, filter *event.QueryFilter, now time.Time, ordering []core.DBOrdering) ([]event.Event, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	events := make([]event.Event, 0, len(repo.db.events))
	for _, e := range repo.db.events {
		if filter != nil {
			if filter.CreatedBy != "" && e.CreatedBy != filter.CreatedBy {
				continue
			}
			if filter.Type != "" && e.Type != filter.Type {
				continue
			}
			if filter.Upcoming && e.StartsAt.Before(now) {
				continue
			}
		}
		events = append(events, copyEvent(e))
	}
	ord := orderBy(ordering, eventOrderingFields, core.DBOrdering{Field: "starts_at", Ascending: true})
	sortSlice(events, ord, func(i, j int) bool {
		switch ord.Field {
		case "created_at":
			return events[i].CreatedAt.Before(events[j].CreatedAt)
		case "title":
			return events[i].Title < events[j].Title
		default:
			return events[i].StartsAt.Before(events[j].StartsAt)
		}
	})
	return events, nil
}

func (repo *eventRepository) GetEventByID(ctx context.Context, id string) (event.Event, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	if e, ok := repo.db.events[id]; ok {
		return copyEvent(e), nil
	}
	return event.Event{}, event.ErrNotFound
}

func (repo *eventRepository) UpdateEvent(ctx context.Context, e event.Event) (event.Event, error) {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	orig, ok := repo.db.events[e.ID]
	if !ok {
		return event.Event{}, event.ErrNotFound
	}
	e.CreatedBy = orig.CreatedBy
	e.CreatedAt = orig.CreatedAt
	e.RegisteredUsers = orig.RegisteredUsers
	e.Reactions = orig.Reactions
	e = copyEvent(e)
	repo.db.events[e.ID] = e
	return copyEvent(e), nil
}

func (repo *eventRepository) DeleteEvent(ctx context.Context, id string) error {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	if _, ok := repo.db.events[id]; !ok {
		return event.ErrNotFound
	}
	delete(repo.db.events, id)
	return nil
}

func (repo *eventRepository) SetReaction(ctx context.Context, eventID, userID string, r core.Reaction) error {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	e, ok := repo.db.events[eventID]
	if !ok {
		return event.ErrNotFound
	}
	e.Reactions = e.Reactions.Copy()
	e.Reactions.Apply(userID, r)
	repo.db.events[eventID] = e
	return nil
}

func (repo *eventRepository) AddRegistration(ctx context.Context, eventID, userID string, at time.Time) error {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	e, ok := repo.db.events[eventID]
	if !ok {
		return event.ErrNotFound
	}
	if core.ContainsString(e.RegisteredUsers, userID) {
		return event.ErrAlreadyRegistered
	}
	e.RegisteredUsers = append(copyStrings(e.RegisteredUsers), userID)
	repo.db.events[eventID] = e
	return nil
}

func (repo *eventRepository) QueryRegisteredEvents(ctx context.Context, userID string) ([]event.Event, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	events := []event.Event{}
	for _, e := range repo.db.events {
		if core.ContainsString(e.RegisteredUsers, userID) {
			events = append(events, copyEvent(e))
		}
	}
	sortSlice(events, core.DBOrdering{Field: "starts_at", Ascending: true}, func(i, j int) bool {
		return events[i].StartsAt.Before(events[j].StartsAt)
	})
	return events, nil
}
