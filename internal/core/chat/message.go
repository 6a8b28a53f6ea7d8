// Package chat defines the message domain types and the store contract.
package chat

import (
	"errors"
	"strings"
	"time"
)

// DefaultAvatarURL is shown for messages whose author has no avatar.
const DefaultAvatarURL = "https://api.adorable.io/avatars/23/abott@adorable.png"

var (
	ErrEmptyText = errors.New("message text is empty")
	ErrNoAuthor  = errors.New("message author is required")
)

// Message is a single record in a conversation. ID and CreatedAt are assigned
// by the store when the message is appended; nothing about a message changes
// after that.
type Message struct {
	ID        string    `json:"id"`
	AuthorID  string    `json:"author_id"`
	AvatarURL string    `json:"avatar_url,omitempty"`
	Text      string    `json:"text"`
	CreatedAt time.Time `json:"created_at"`
}

// Avatar returns the author's avatar URL, falling back to DefaultAvatarURL.
func (m Message) Avatar() string {
	if m.AvatarURL == "" {
		return DefaultAvatarURL
	}
	return m.AvatarURL
}

// Draft is the input to Store.Append.
type Draft struct {
	Text      string
	AuthorID  string
	AvatarURL string
}

// Validate checks the draft can be appended.
func (d Draft) Validate() error {
	if strings.TrimSpace(d.Text) == "" {
		return ErrEmptyText
	}
	if d.AuthorID == "" {
		return ErrNoAuthor
	}
	return nil
}

// Message builds the stored record for the draft.
func (d Draft) Message(id string, createdAt time.Time) Message {
	return Message{
		ID:        id,
		AuthorID:  d.AuthorID,
		AvatarURL: d.AvatarURL,
		Text:      d.Text,
		CreatedAt: createdAt,
	}
}
