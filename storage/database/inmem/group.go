package inmemdb

import (
	"context"

	"github.com/alumnet/alumnet/core"
	"github.com/alumnet/alumnet/core/group"
)

var groupOrderingFields = []string{"created_at", "name"}

type groupRepository struct {
	db *DB
}

var _ group.Repository = (*groupRepository)(nil)

func NewGroupRepository(db *DB) group.Repository {
	return &groupRepository{db: db}
}

func copyGroup(grp group.Group) group.Group {
	grp.Members = copyStrings(grp.Members)
	if grp.Members == nil {
		grp.Members = []string{}
	}
	return grp
}

func (repo *groupRepository) CreateGroup(ctx context.Context, grp group.Group) (group.Group, error) {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	grp.ID = core.NewID()
	grp = copyGroup(grp)
	repo.db.groups[grp.ID] = grp
	return copyGroup(grp), nil
}

func (repo *groupRepository) QueryGroups(ctx context.Context, ordering []core.DBOrdering) ([]group.Group, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	groups := make([]group.Group, 0, len(repo.db.groups))
	for _, grp := range repo.db.groups {
		groups = append(groups, copyGroup(grp))
	}
	ord := orderBy(ordering, groupOrderingFields, core.DBOrdering{Field: "created_at"})
	sortSlice(groups, ord, func(i, j int) bool {
		if ord.Field == "name" {
			return groups[i].Name < groups[j].Name
		}
		return groups[i].CreatedAt.Before(groups[j].CreatedAt)
	})
	return groups, nil
}

func (repo *groupRepository) GetGroupByID(ctx context.Context, id string) (group.Group, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	if grp, ok := repo.db.groups[id]; ok {
		return copyGroup(grp), nil
	}
	return group.Group{}, group.ErrNotFound
}

func (repo *groupRepository) UpdateGroup(ctx context.Context, grp group.Group) (group.Group, error) {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	orig, ok := repo.db.groups[grp.ID]
	if !ok {
		return group.Group{}, group.ErrNotFound
	}
	// membership is only written by AddMember / RemoveMember
	orig.Name = grp.Name
	orig.Image = grp.Image
	orig.ImagePublicID = grp.ImagePublicID
	orig.UpdatedAt = grp.UpdatedAt
	repo.db.groups[grp.ID] = orig
	return copyGroup(orig), nil
}

func (repo *groupRepository) DeleteGroup(ctx context.Context, id string) error {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	if _, ok := repo.db.groups[id]; !ok {
		return group.ErrNotFound
	}
	delete(repo.db.groups, id)
	msgs := repo.db.groupMessages[:0]
	for _, msg := range repo.db.groupMessages {
		if msg.GroupID != id {
			msgs = append(msgs, msg)
		}
	}
	repo.db.groupMessages = msgs
	return nil
}

func (repo *groupRepository) AddMember(ctx context.Context, groupID, userID string) error {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	grp, ok := repo.db.groups[groupID]
	if !ok {
		return group.ErrNotFound
	}
	if !grp.HasMember(userID) {
		grp.Members = append(copyStrings(grp.Members), userID)
		repo.db.groups[groupID] = grp
	}
	return nil
}

func (repo *groupRepository) RemoveMember(ctx context.Context, groupID, userID string) error {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	grp, ok := repo.db.groups[groupID]
	if !ok {
		return group.ErrNotFound
	}
	members := make([]string, 0, len(grp.Members))
	for _, id := range grp.Members {
		if id != userID {
			members = append(members, id)
		}
	}
	grp.Members = members
	repo.db.groups[groupID] = grp
	return nil
}

func (repo *groupRepository) CreateMessage(ctx context.Context, msg group.Message) (group.Message, error) {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	if _, ok := repo.db.groups[msg.GroupID]; !ok {
		return group.Message{}, group.ErrNotFound
	}
	msg.ID = core.NewID()
	repo.db.groupMessages = append(repo.db.groupMessages, msg)
	return msg, nil
}

func (repo *groupRepository) QueryMessages(ctx context.Context, groupID string) ([]group.Message, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	msgs := make([]group.Message, 0)
	for _, msg := range repo.db.groupMessages {
		if msg.GroupID == groupID {
			msgs = append(msgs, msg)
		}
	}
	sortSlice(msgs, core.DBOrdering{Field: "created_at", Ascending: true}, func(i, j int) bool {
		return msgs[i].CreatedAt.Before(msgs[j].CreatedAt)
	})
	return msgs, nil
}
