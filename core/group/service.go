package group

import (
	"context"
	"time"

	"github.com/pkg/errors"

	"github.com/alumnet/alumnet/core"
)

var (
	// errors
	ErrNotFound  = errors.New("group not found")
	ErrForbidden = errors.New("you do not have permission to manage this group")
	ErrNotMember = errors.New("you are not a member of this group")
)

type (
	Repository interface {
		CreateGroup(ctx context.Context, grp Group) (Group, error)
		QueryGroups(ctx context.Context, ordering []core.DBOrdering) ([]Group, error)
		GetGroupByID(ctx context.Context, id string) (Group, error)
		UpdateGroup(ctx context.Context, grp Group) (Group, error)
		DeleteGroup(ctx context.Context, id string) error
		// AddMember and RemoveMember are no-ops when nothing changes.
		AddMember(ctx context.Context, groupID, userID string) error
		RemoveMember(ctx context.Context, groupID, userID string) error
		CreateMessage(ctx context.Context, msg Message) (Message, error)
		// QueryMessages returns the messages of a group, oldest first.
		QueryMessages(ctx context.Context, groupID string) ([]Message, error)
	}

	Service interface {
		Create(ctx context.Context, creatorID string, ng NewGroup, img *core.ImageFile) (Group, error)
		Query(ctx context.Context, ordering []core.DBOrdering) ([]Group, error)
		GetByID(ctx context.Context, id string) (Group, error)
		Update(ctx context.Context, grp Group, ug UpdateGroup, img *core.ImageFile) (Group, error)
		Delete(ctx context.Context, grp Group) error
		AddMember(ctx context.Context, grp Group, userID string) (Group, error)
		RemoveMember(ctx context.Context, grp Group, userID string) (Group, error)
		AddMessage(ctx context.Context, grp Group, senderID string, nm NewMessage) (Message, error)
		Messages(ctx context.Context, grp Group, viewerID string) ([]ProjectedMessage, error)
	}

	service struct {
		repo   Repository
		images core.ImageUploader
	}
)

var _ Service = (*service)(nil)

func NewService(repo Repository, images core.ImageUploader) Service {
	return &service{repo: repo, images: images}
}

// CanManage reports whether the user may update or delete grp.
func CanManage(grp Group, userID string, isAdmin bool) bool {
	return isAdmin || grp.CreatedBy == userID
}

func (svc *service) Create(ctx context.Context, creatorID string, ng NewGroup, img *core.ImageFile) (Group, error) {
	now := time.Now().UTC()
	grp := Group{
		Name:      ng.Name,
		CreatedBy: creatorID,
		Members:   []string{creatorID},
		CreatedAt: now,
		UpdatedAt: now,
	}
	for _, id := range ng.Members {
		if !grp.HasMember(id) {
			grp.Members = append(grp.Members, id)
		}
	}
	if img != nil {
		uploaded, err := svc.images.Upload(ctx, img.File, img.Filename)
		if err != nil {
			return Group{}, errors.Wrap(err, "uploading group image")
		}
		grp.Image = uploaded.URL
		grp.ImagePublicID = uploaded.PublicID
	}
	return svc.repo.CreateGroup(ctx, grp)
}

func (svc *service) Query(ctx context.Context, ordering []core.DBOrdering) ([]Group, error) {
	return svc.repo.QueryGroups(ctx, ordering)
}

func (svc *service) GetByID(ctx context.Context, id string) (Group, error) {
	return svc.repo.GetGroupByID(ctx, id)
}

func (svc *service) Update(ctx context.Context, grp Group, ug UpdateGroup, img *core.ImageFile) (Group, error) {
	oldPublicID := ""
	grp.Name = ug.Name
	if img != nil {
		uploaded, err := svc.images.Upload(ctx, img.File, img.Filename)
		if err != nil {
			return Group{}, errors.Wrap(err, "uploading group image")
		}
		oldPublicID = grp.ImagePublicID
		grp.Image = uploaded.URL
		grp.ImagePublicID = uploaded.PublicID
	}
	grp.UpdatedAt = time.Now().UTC()

	grp, err := svc.repo.UpdateGroup(ctx, grp)
	if err != nil {
		return Group{}, errors.Wrap(err, "updating group")
	}
	if oldPublicID != "" {
		if err = svc.images.Destroy(ctx, oldPublicID); err != nil {
			return Group{}, errors.Wrap(err, "destroying previous group image")
		}
	}
	return grp, nil
}

func (svc *service) Delete(ctx context.Context, grp Group) error {
	if err := svc.repo.DeleteGroup(ctx, grp.ID); err != nil {
		return errors.Wrap(err, "deleting group")
	}
	if grp.ImagePublicID != "" {
		if err := svc.images.Destroy(ctx, grp.ImagePublicID); err != nil {
			return errors.Wrap(err, "destroying group image")
		}
	}
	return nil
}

func (svc *service) AddMember(ctx context.Context, grp Group, userID string) (Group, error) {
	if err := svc.repo.AddMember(ctx, grp.ID, userID); err != nil {
		return Group{}, errors.Wrap(err, "adding group member")
	}
	return svc.repo.GetGroupByID(ctx, grp.ID)
}

func (svc *service) RemoveMember(ctx context.Context, grp Group, userID string) (Group, error) {
	if err := svc.repo.RemoveMember(ctx, grp.ID, userID); err != nil {
		return Group{}, errors.Wrap(err, "removing group member")
	}
	return svc.repo.GetGroupByID(ctx, grp.ID)
}

func (svc *service) AddMessage(ctx context.Context, grp Group, senderID string, nm NewMessage) (Message, error) {
	if !grp.HasMember(senderID) {
		return Message{}, ErrNotMember
	}
	return svc.repo.CreateMessage(ctx, Message{
		GroupID:   grp.ID,
		SenderID:  senderID,
		Text:      nm.Text,
		CreatedAt: time.Now().UTC(),
	})
}

func (svc *service) Messages(ctx context.Context, grp Group, viewerID string) ([]ProjectedMessage, error) {
	msgs, err := svc.repo.QueryMessages(ctx, grp.ID)
	if err != nil {
		return nil, errors.Wrap(err, "querying group messages")
	}
	projected := make([]ProjectedMessage, 0, len(msgs))
	for _, msg := range msgs {
		projected = append(projected, ProjectedMessage{
			FromSelf:  msg.SenderID == viewerID,
			Message:   msg.Text,
			SenderID:  msg.SenderID,
			CreatedAt: msg.CreatedAt,
		})
	}
	return projected, nil
}
