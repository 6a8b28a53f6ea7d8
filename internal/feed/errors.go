package feed

import (
	"errors"
	"fmt"
)

// Kind classifies controller failures.
type Kind int

const (
	// ValidationError is a request the controller refused locally. It never
	// reaches the store and is not shown as a notice.
	ValidationError Kind = iota + 1
	// WriteError is a failed append.
	WriteError
	// DeleteError is a failed delete.
	DeleteError
	// SubscriptionError is a failed feed subscription. No further updates
	// arrive until the feed is resubscribed.
	SubscriptionError
)

func (k Kind) String() string {
	switch k {
	case ValidationError:
		return "validation error"
	case WriteError:
		return "write error"
	case DeleteError:
		return "delete error"
	case SubscriptionError:
		return "subscription error"
	default:
		return fmt.Sprintf("Kind(%d)", int(k))
	}
}

var (
	ErrEmptyMessage    = errors.New("message is empty")
	ErrSignedOut       = errors.New("not signed in")
	ErrSendInFlight    = errors.New("a message is already being sent")
	ErrNotAuthor       = errors.New("only the author can delete a message")
	ErrNoPendingDelete = errors.New("no delete awaiting confirmation")
)

// Error is a classified controller failure. It wraps the underlying cause.
type Error struct {
	Kind Kind
	Err  error
}

func (e *Error) Error() string {
	return e.Kind.String() + ": " + e.Err.Error()
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Message is a short human readable description for notices and banners.
func (e *Error) Message() string {
	switch e.Kind {
	case WriteError:
		return "Message not sent: " + e.Err.Error()
	case DeleteError:
		return "Message not deleted: " + e.Err.Error()
	case SubscriptionError:
		return "Live feed disconnected: " + e.Err.Error()
	default:
		return e.Err.Error()
	}
}

// KindOf returns the Kind of err if it is, or wraps, an *Error.
func KindOf(err error) (Kind, bool) {
	var fe *Error
	if errors.As(err, &fe) {
		return fe.Kind, true
	}
	return 0, false
}

func invalid(err error) error {
	return &Error{Kind: ValidationError, Err: err}
}
