package core

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestReactions_Apply(t *testing.T) {
	var r Reactions
	r.Apply("u1", ReactionLike)
	r.Apply("u2", ReactionDislike)
	assert.Equal(t, []string{"u1"}, r.Likes)
	assert.Equal(t, []string{"u2"}, r.Dislikes)

	// switching sides moves the user, reacting twice keeps one entry
	r.Apply("u1", ReactionDislike)
	r.Apply("u1", ReactionDislike)
	assert.Empty(t, r.Likes)
	assert.Equal(t, []string{"u2", "u1"}, r.Dislikes)

	cp := r.Copy()
	cp.Apply("u3", ReactionLike)
	assert.Empty(t, r.Likes)
}

func TestParseReaction(t *testing.T) {
	for _, s := range []string{"like", "dislike"} {
		r, err := ParseReaction(s)
		assert.NoError(t, err)
		assert.Equal(t, Reaction(s), r)
	}
	_, err := ParseReaction("love")
	assert.Error(t, err)
}

func TestCleanList(t *testing.T) {
	tests := []struct {
		name  string
		items []string
		want  []string
	}{
		{"nil", nil, []string{}},
		{"json array", []string{" Go ", "SQL", "go", "Go"}, []string{"Go", "SQL", "go"}},
		{"form value", []string{"Go, SQL,,  Docker "}, []string{"Go", "SQL", "Docker"}},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, CleanList(tc.items))
		})
	}
}
