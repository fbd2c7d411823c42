package core

import "github.com/pkg/errors"

var ErrInvalidReaction = errors.New("reaction must be like or dislike")

// Reaction is a user's like or dislike of a post, a job or an event.
type Reaction string

const (
	ReactionLike    Reaction = "like"
	ReactionDislike Reaction = "dislike"
)

func ParseReaction(s string) (Reaction, error) {
	switch r := Reaction(s); r {
	case ReactionLike, ReactionDislike:
		return r, nil
	}
	return "", NewValidationError(ErrInvalidReaction)
}

// Reactions lists who liked and who disliked an item. A user is in at most one of the lists.
type Reactions struct {
	Likes    []string `json:"likes"`
	Dislikes []string `json:"dislikes"`
}

// Apply records the reaction of userID, dropping any opposite one.
func (r *Reactions) Apply(userID string, reaction Reaction) {
	r.Likes = removeString(r.Likes, userID)
	r.Dislikes = removeString(r.Dislikes, userID)
	if reaction == ReactionLike {
		r.Likes = append(r.Likes, userID)
	} else {
		r.Dislikes = append(r.Dislikes, userID)
	}
}

// Copy returns r with its own backing arrays, never nil.
func (r Reactions) Copy() Reactions {
	return Reactions{
		Likes:    append(make([]string, 0, len(r.Likes)), r.Likes...),
		Dislikes: append(make([]string, 0, len(r.Dislikes)), r.Dislikes...),
	}
}

func removeString(list []string, s string) []string {
	kept := make([]string, 0, len(list))
	for _, item := range list {
		if item != s {
			kept = append(kept, item)
		}
	}
	return kept
}
