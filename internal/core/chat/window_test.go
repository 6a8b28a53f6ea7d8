package chat

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWindow(t *testing.T) {
	base := time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)
	msgs := []Message{
		{ID: "c", CreatedAt: base.Add(2 * time.Minute)},
		{ID: "a", CreatedAt: base},
		{ID: "b", CreatedAt: base.Add(time.Minute)},
		{ID: "d", CreatedAt: base.Add(2 * time.Minute)},
	}

	tests := []struct {
		name  string
		limit int
		want  []string
	}{
		{name: "no limit", limit: 0, want: []string{"a", "b", "c", "d"}},
		{name: "limit keeps newest", limit: 2, want: []string{"c", "d"}},
		{name: "limit above size", limit: 25, want: []string{"a", "b", "c", "d"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Window(msgs, Query{Limit: tt.limit})
			ids := make([]string, len(got))
			for i, m := range got {
				ids[i] = m.ID
			}
			assert.Equal(t, tt.want, ids)
		})
	}

	assert.Equal(t, "c", msgs[0].ID, "input must not be reordered")
}

func TestWindow_EmptyIsNonNil(t *testing.T) {
	got := Window(nil, DefaultQuery())
	require.NotNil(t, got)
	assert.Empty(t, got)
}

func TestNextTimestamp(t *testing.T) {
	last := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

	assert.Equal(t, last.Add(time.Second), NextTimestamp(last, last.Add(time.Second)))
	assert.Equal(t, last.Add(time.Nanosecond), NextTimestamp(last, last))
	assert.Equal(t, last.Add(time.Nanosecond), NextTimestamp(last, last.Add(-time.Hour)))
}

func TestMessage_Avatar(t *testing.T) {
	assert.Equal(t, DefaultAvatarURL, Message{}.Avatar())
	assert.Equal(t, "https://x/y.png", Message{AvatarURL: "https://x/y.png"}.Avatar())
}

func TestDraft_Validate(t *testing.T) {
	assert.ErrorIs(t, Draft{Text: "   ", AuthorID: "u1"}.Validate(), ErrEmptyText)
	assert.ErrorIs(t, Draft{Text: "hi"}.Validate(), ErrNoAuthor)
	assert.NoError(t, Draft{Text: "hi", AuthorID: "u1"}.Validate())
}
