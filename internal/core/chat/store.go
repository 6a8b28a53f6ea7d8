package chat

import (
	"context"
	"errors"
)

// DefaultLimit is the number of most recent messages a feed shows.
const DefaultLimit = 25

// ErrNotFound is returned when a message does not exist.
var ErrNotFound = errors.New("message not found")

// Query selects the most recent Limit messages ordered by creation time,
// oldest first.
type Query struct {
	Limit int
}

// DefaultQuery returns the feed query used by the conversation view.
func DefaultQuery() Query {
	return Query{Limit: DefaultLimit}
}

// SnapshotHandler receives the complete result of a live query every time it
// changes. A non-nil err ends the subscription; no further calls follow it.
type SnapshotHandler func(messages []Message, err error)

// Subscription is a live query. Unsubscribe stops further deliveries and is
// safe to call more than once; a delivery already under way may still finish.
type Subscription interface {
	Unsubscribe()
}

// Store defines the operations of a message collection.
type Store interface {
	// Subscribe delivers the current result of q to fn, then a new full
	// result every time the collection changes. Deliveries never overlap.
	Subscribe(ctx context.Context, q Query, fn SnapshotHandler) (Subscription, error)

	// Append stores a new message. The store assigns the ID and creation time.
	Append(ctx context.Context, draft Draft) (Message, error)

	// Delete removes a message by ID. Returns ErrNotFound if it does not exist.
	Delete(ctx context.Context, id string) error
}
