package group

import (
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/alumnet/alumnet/core"
)

type Group struct {
	ID            string    `json:"id"`
	Name          string    `json:"name"`
	CreatedBy     string    `json:"created_by"`
	Members       []string  `json:"members"`
	Image         string    `json:"image"`
	ImagePublicID string    `json:"-"`
	CreatedAt     time.Time `json:"created_at"`
	UpdatedAt     time.Time `json:"updated_at"`
}

func (g Group) HasMember(userID string) bool {
	return core.ContainsString(g.Members, userID)
}

// NewGroup contains information needed to create a new Group.
type NewGroup struct {
	Name    string   `json:"name" form:"name" validate:"required,max=150"`
	Members []string `json:"members" form:"members" validate:"omitempty,dive,uuid"`
}

func (ng *NewGroup) Validate(validate *validator.Validate) error {
	ng.Name = core.CleanString(ng.Name)
	return validate.Struct(ng)
}

// UpdateGroup defines what information may be provided to modify an existing Group.
type UpdateGroup struct {
	Name string `json:"name" form:"name" validate:"omitempty,max=150"`
}

func (ug *UpdateGroup) Validate(orig Group, validate *validator.Validate) error {
	if name := core.CleanString(ug.Name); name != "" {
		ug.Name = name
	} else {
		ug.Name = orig.Name
	}
	return validate.Struct(ug)
}

type Message struct {
	ID        string    `json:"id"`
	GroupID   string    `json:"group_id"`
	SenderID  string    `json:"sender_id"`
	Text      string    `json:"text"`
	CreatedAt time.Time `json:"created_at"`
}

type NewMessage struct {
	Text string `json:"message" validate:"required,max=5000"`
}

func (nm *NewMessage) Validate(validate *validator.Validate) error {
	nm.Text = core.CleanString(nm.Text)
	return validate.Struct(nm)
}

// ProjectedMessage is a Message as seen by one of the group members.
type ProjectedMessage struct {
	FromSelf  bool      `json:"from_self"`
	Message   string    `json:"message"`
	SenderID  string    `json:"sender_id"`
	CreatedAt time.Time `json:"created_at"`
}
