package feed

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/hay-kot/blindchat/internal/core/chat"
	"github.com/hay-kot/blindchat/internal/core/identity"
)

// mockSubscription records unsubscribe calls.
type mockSubscription struct {
	mu           sync.Mutex
	query        chat.Query
	fn           chat.SnapshotHandler
	unsubscribed int
}

func (s *mockSubscription) Unsubscribe() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.unsubscribed++
}

func (s *mockSubscription) unsubscribes() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.unsubscribed
}

// mockStore implements chat.Store. Snapshots are pushed by the test.
type mockStore struct {
	mu           sync.Mutex
	subs         []*mockSubscription
	appends      []chat.Draft
	deletes      []string
	subscribeErr error
	appendErr    error
	deleteErr    error
	// gate, when set, holds appends until it is closed.
	gate chan struct{}
	next int
}

func newMockStore() *mockStore {
	return &mockStore{}
}

func (m *mockStore) Subscribe(_ context.Context, q chat.Query, fn chat.SnapshotHandler) (chat.Subscription, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.subscribeErr != nil {
		return nil, m.subscribeErr
	}
	sub := &mockSubscription{query: q, fn: fn}
	m.subs = append(m.subs, sub)
	return sub, nil
}

func (m *mockStore) Append(_ context.Context, draft chat.Draft) (chat.Message, error) {
	m.mu.Lock()
	m.appends = append(m.appends, draft)
	gate := m.gate
	m.mu.Unlock()

	if gate != nil {
		<-gate
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if m.appendErr != nil {
		return chat.Message{}, m.appendErr
	}
	m.next++
	return draft.Message(fmt.Sprintf("m%d", m.next), time.Now()), nil
}

func (m *mockStore) Delete(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.deletes = append(m.deletes, id)
	return m.deleteErr
}

func (m *mockStore) subscriptions() []*mockSubscription {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]*mockSubscription(nil), m.subs...)
}

func (m *mockStore) latest() *mockSubscription {
	subs := m.subscriptions()
	if len(subs) == 0 {
		return nil
	}
	return subs[len(subs)-1]
}

// push delivers a snapshot on the latest subscription.
func (m *mockStore) push(msgs ...chat.Message) {
	m.latest().fn(msgs, nil)
}

func (m *mockStore) fail(err error) {
	m.latest().fn(nil, err)
}

func (m *mockStore) appended() []chat.Draft {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]chat.Draft(nil), m.appends...)
}

func (m *mockStore) deleted() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.deletes...)
}

// mockProvider implements identity.Provider with synchronous notifications.
type mockProvider struct {
	mu       sync.Mutex
	current  identity.Identity
	ok       bool
	watchers map[int]identity.ChangeFunc
	next     int
}

func newMockProvider() *mockProvider {
	return &mockProvider{watchers: make(map[int]identity.ChangeFunc)}
}

func (m *mockProvider) Current() (identity.Identity, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.current, m.ok
}

func (m *mockProvider) Watch(fn identity.ChangeFunc) func() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.next++
	id := m.next
	m.watchers[id] = fn
	return func() {
		m.mu.Lock()
		defer m.mu.Unlock()
		delete(m.watchers, id)
	}
}

func (m *mockProvider) RequestSignIn(context.Context)  {}
func (m *mockProvider) RequestSignOut(context.Context) {}

func (m *mockProvider) set(id identity.Identity, ok bool) {
	m.mu.Lock()
	m.current, m.ok = id, ok
	fns := make([]identity.ChangeFunc, 0, len(m.watchers))
	for _, fn := range m.watchers {
		fns = append(fns, fn)
	}
	m.mu.Unlock()

	for _, fn := range fns {
		fn(id, ok)
	}
}

func (m *mockProvider) signIn(id identity.Identity) { m.set(id, true) }
func (m *mockProvider) signOut()                    { m.set(identity.Identity{}, false) }

func (m *mockProvider) watching() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.watchers)
}
