package chat

import (
	"slices"
	"time"
)

// Window orders messages by creation time (ties broken by ID) and keeps the
// last q.Limit of them. The input slice is not modified.
func Window(messages []Message, q Query) []Message {
	out := slices.Clone(messages)
	slices.SortStableFunc(out, compareMessages)

	if q.Limit > 0 && len(out) > q.Limit {
		out = out[len(out)-q.Limit:]
	}
	if out == nil {
		out = []Message{}
	}
	return out
}

func compareMessages(a, b Message) int {
	if c := a.CreatedAt.Compare(b.CreatedAt); c != 0 {
		return c
	}
	switch {
	case a.ID < b.ID:
		return -1
	case a.ID > b.ID:
		return 1
	default:
		return 0
	}
}

// NextTimestamp returns now, or a nanosecond after last when the clock has not
// moved past it. Stores use it so creation times are strictly increasing.
func NextTimestamp(last, now time.Time) time.Time {
	if !now.After(last) {
		return last.Add(time.Nanosecond)
	}
	return now
}
