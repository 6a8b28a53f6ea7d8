package badgerstore

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hay-kot/blindchat/internal/core/chat"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	store, err := OpenInMemory("messages", zerolog.Nop())
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })
	return store
}

type snapshots struct {
	mu  sync.Mutex
	got [][]chat.Message
}

func (s *snapshots) handle(msgs []chat.Message, err error) {
	if err != nil {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.got = append(s.got, msgs)
}

func (s *snapshots) last() ([]chat.Message, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.got) == 0 {
		return nil, false
	}
	return s.got[len(s.got)-1], true
}

func TestStore_AppendAndLast(t *testing.T) {
	req := require.New(t)
	store := newTestStore(t)
	ctx := context.Background()

	for i := 1; i <= 30; i++ {
		_, err := store.Append(ctx, chat.Draft{Text: fmt.Sprintf("message %d", i), AuthorID: "u1"})
		req.NoError(err)
	}

	msgs, err := store.Last(chat.DefaultQuery())
	req.NoError(err)
	req.Len(msgs, chat.DefaultLimit)
	req.Equal("message 6", msgs[0].Text)
	req.Equal("message 30", msgs[len(msgs)-1].Text)

	for i := 1; i < len(msgs); i++ {
		req.True(msgs[i].CreatedAt.After(msgs[i-1].CreatedAt))
	}
}

func TestStore_StrictlyIncreasingWithFrozenClock(t *testing.T) {
	req := require.New(t)
	clock := clockwork.NewFakeClockAt(time.Date(2024, 5, 1, 9, 0, 0, 0, time.UTC))
	store := newTestStore(t).WithClock(clock)
	ctx := context.Background()

	a, err := store.Append(ctx, chat.Draft{Text: "a", AuthorID: "u1"})
	req.NoError(err)
	b, err := store.Append(ctx, chat.Draft{Text: "b", AuthorID: "u1"})
	req.NoError(err)

	req.True(b.CreatedAt.After(a.CreatedAt))

	msgs, err := store.Last(chat.DefaultQuery())
	req.NoError(err)
	req.Equal([]string{"a", "b"}, []string{msgs[0].Text, msgs[1].Text})
}

func TestStore_Delete(t *testing.T) {
	req := require.New(t)
	store := newTestStore(t)
	ctx := context.Background()

	keep, err := store.Append(ctx, chat.Draft{Text: "keep", AuthorID: "u1"})
	req.NoError(err)
	drop, err := store.Append(ctx, chat.Draft{Text: "drop", AuthorID: "u1"})
	req.NoError(err)

	req.NoError(store.Delete(ctx, drop.ID))
	req.ErrorIs(store.Delete(ctx, drop.ID), chat.ErrNotFound)

	msgs, err := store.Last(chat.DefaultQuery())
	req.NoError(err)
	req.Len(msgs, 1)
	req.Equal(keep.ID, msgs[0].ID)
}

func TestStore_Subscribe(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	rec := &snapshots{}

	sub, err := store.Subscribe(ctx, chat.Query{Limit: 2}, rec.handle)
	require.NoError(t, err)
	defer sub.Unsubscribe()

	require.Eventually(t, func() bool {
		_, ok := rec.last()
		return ok
	}, 2*time.Second, 10*time.Millisecond)

	// Give the badger subscriber a moment to register before writing.
	time.Sleep(50 * time.Millisecond)

	msg, err := store.Append(ctx, chat.Draft{Text: "hi", AuthorID: "u1"})
	require.NoError(t, err)

	require.Eventually(t, func() bool {
		last, _ := rec.last()
		return len(last) == 1 && last[0].ID == msg.ID
	}, 2*time.Second, 10*time.Millisecond)

	require.NoError(t, store.Delete(ctx, msg.ID))

	require.Eventually(t, func() bool {
		last, _ := rec.last()
		return len(last) == 0
	}, 2*time.Second, 10*time.Millisecond)

	assert.NotPanics(t, sub.Unsubscribe)
}
