package feed

import (
	"github.com/hay-kot/blindchat/internal/core/chat"
	"github.com/hay-kot/blindchat/internal/core/identity"
)

// Row is a message prepared for display.
type Row struct {
	chat.Message
	Mine   bool
	Avatar string
}

// View is a snapshot of everything the presentation layer draws.
type View struct {
	SignedIn bool
	Identity identity.Identity
	// Loaded is false until the first snapshot of the current subscription.
	Loaded bool
	Rows   []Row

	Draft     string
	CanSubmit bool
	Sending   bool
	Typing    bool

	// Notice is a transient, dismissible failure of a send or delete.
	Notice *Error
	// Banner is a persistent subscription failure.
	Banner *Error

	PendingDelete string

	// ScrollSeq increases every time the view should scroll to the newest
	// message.
	ScrollSeq uint64
}

// Render decides authorship for each message against the given identity. With
// no identity every message belongs to someone else.
func Render(messages []chat.Message, id identity.Identity, signedIn bool) []Row {
	rows := make([]Row, len(messages))
	for i, m := range messages {
		rows[i] = Row{
			Message: m,
			Mine:    signedIn && id.Valid() && m.AuthorID == id.ID,
			Avatar:  m.Avatar(),
		}
	}
	return rows
}

// PendingRow returns the row awaiting delete confirmation, if any.
func (v View) PendingRow() (Row, bool) {
	if v.PendingDelete == "" {
		return Row{}, false
	}
	for _, r := range v.Rows {
		if r.ID == v.PendingDelete {
			return r, true
		}
	}
	return Row{}, false
}
