package feed

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/hay-kot/blindchat/internal/core/chat"
	"github.com/hay-kot/blindchat/internal/core/identity"
)

func TestRender(t *testing.T) {
	messages := []chat.Message{
		{ID: "m1", AuthorID: "u1", AvatarURL: "https://example.com/u1.png"},
		{ID: "m2", AuthorID: "u2"},
		{ID: "m3", AuthorID: ""},
	}

	tests := []struct {
		name     string
		id       identity.Identity
		signedIn bool
		want     []bool
	}{
		{name: "signed in", id: identity.Identity{ID: "u1"}, signedIn: true, want: []bool{true, false, false}},
		{name: "signed out", want: []bool{false, false, false}},
		{name: "stale identity while signed out", id: identity.Identity{ID: "u1"}, want: []bool{false, false, false}},
		{name: "empty id", signedIn: true, want: []bool{false, false, false}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var rows []Row
			assert.NotPanics(t, func() { rows = Render(messages, tt.id, tt.signedIn) })

			got := make([]bool, len(rows))
			for i, r := range rows {
				got[i] = r.Mine
			}
			assert.Equal(t, tt.want, got)
		})
	}

	rows := Render(messages, identity.Identity{}, false)
	assert.Equal(t, "https://example.com/u1.png", rows[0].Avatar)
	assert.Equal(t, chat.DefaultAvatarURL, rows[1].Avatar)
}

func TestView_PendingRow(t *testing.T) {
	v := View{Rows: Render([]chat.Message{{ID: "m1", Text: "hi"}}, identity.Identity{}, false)}

	_, ok := v.PendingRow()
	assert.False(t, ok)

	v.PendingDelete = "m1"
	row, ok := v.PendingRow()
	assert.True(t, ok)
	assert.Equal(t, "hi", row.Text)
}
