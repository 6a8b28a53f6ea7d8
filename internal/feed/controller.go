// Package feed turns a live message subscription, the signed-in identity and
// local input into the state of one conversation view.
package feed

import (
	"context"
	"errors"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog"

	"github.com/hay-kot/blindchat/internal/core/chat"
	"github.com/hay-kot/blindchat/internal/core/identity"
)

// Options configures a Controller.
type Options struct {
	// Limit is the number of most recent messages shown.
	Limit int
	// TypingTimeout is how long the typing indicator outlives the last keystroke.
	TypingTimeout time.Duration
	// ConfirmDelete makes RequestDelete wait for ConfirmDelete.
	ConfirmDelete bool
	Resubscribe   ResubscribePolicy
	Clock         clockwork.Clock
	Logger        zerolog.Logger
}

// DefaultOptions returns the options used by the chat view.
func DefaultOptions() Options {
	return Options{
		Limit:         chat.DefaultLimit,
		TypingTimeout: 3 * time.Second,
		ConfirmDelete: true,
		Resubscribe:   DefaultResubscribePolicy(),
		Clock:         clockwork.NewRealClock(),
		Logger:        zerolog.Nop(),
	}
}

// Controller owns the state of a conversation view. All exported methods are
// safe to call from any goroutine; store and provider callbacks are applied
// under the same lock, so the view only ever moves between consistent states.
type Controller struct {
	store chat.Store
	ids   identity.Provider
	opts  Options
	log   zerolog.Logger

	typing  *TypingTracker
	changes chan struct{}
	wg      sync.WaitGroup

	mu       sync.Mutex
	ctx      context.Context
	cancel   context.CancelFunc
	started  bool
	closed   bool
	unwatch  func()
	identity identity.Identity
	signedIn bool

	// active is true while a subscription is wanted. gen identifies the
	// current subscription; callbacks carrying an older gen are dropped.
	active bool
	gen    uint64
	sub    chat.Subscription
	retry  backoff.BackOff
	timer  clockwork.Timer

	messages      []chat.Message
	loaded        bool
	draft         string
	sending       bool
	notice        *Error
	banner        *Error
	pendingDelete string
	scrollSeq     uint64
}

// New creates a controller. Nothing happens until Start.
func New(store chat.Store, ids identity.Provider, opts Options) *Controller {
	defaults := DefaultOptions()
	if opts.Limit <= 0 {
		opts.Limit = defaults.Limit
	}
	if opts.TypingTimeout <= 0 {
		opts.TypingTimeout = defaults.TypingTimeout
	}
	if opts.Clock == nil {
		opts.Clock = defaults.Clock
	}

	c := &Controller{
		store:   store,
		ids:     ids,
		opts:    opts,
		log:     opts.Logger.With().Str("component", "feed").Logger(),
		changes: make(chan struct{}, 1),
		retry:   opts.Resubscribe.newBackOff(),
	}
	c.typing = NewTypingTracker(opts.Clock, opts.TypingTimeout, c.notify)
	return c
}

// Changes receives a value after any state change. Notifications coalesce;
// read State after each one.
func (c *Controller) Changes() <-chan struct{} {
	return c.changes
}

func (c *Controller) notify() {
	select {
	case c.changes <- struct{}{}:
	default:
	}
}

// Start watches the identity provider and activates the feed whenever a user
// is signed in. Subscriptions live until ctx is cancelled or Close is called.
func (c *Controller) Start(ctx context.Context) {
	c.mu.Lock()
	if c.started || c.closed {
		c.mu.Unlock()
		return
	}
	c.started = true
	c.ctx, c.cancel = context.WithCancel(ctx)
	c.mu.Unlock()

	unwatch := c.ids.Watch(c.onIdentity)

	c.mu.Lock()
	c.unwatch = unwatch
	c.mu.Unlock()

	c.onIdentity(c.ids.Current())
}

// Close releases the subscription and stops watching the provider. It is safe
// to call more than once.
func (c *Controller) Close() {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	c.closed = true
	sub := c.deactivateLocked()
	unwatch := c.unwatch
	cancel := c.cancel
	c.mu.Unlock()

	if sub != nil {
		sub.Unsubscribe()
	}
	if unwatch != nil {
		unwatch()
	}
	if cancel != nil {
		cancel()
	}
	c.notify()
}

// Wait blocks until every issued append and delete has completed.
func (c *Controller) Wait() {
	c.wg.Wait()
}

func (c *Controller) onIdentity(id identity.Identity, ok bool) {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}

	if ok && c.active && c.identity.ID == id.ID {
		c.identity = id
		c.mu.Unlock()
		c.notify()
		return
	}

	old := c.deactivateLocked()
	c.identity, c.signedIn = identity.Identity{}, false

	var gen uint64
	if ok {
		c.identity, c.signedIn = id, true
		c.active = true
		gen = c.gen
		c.log.Debug().Str("user", id.ID).Msg("feed activated")
	} else {
		c.log.Debug().Msg("feed deactivated")
	}
	ctx := c.ctx
	c.mu.Unlock()

	if old != nil {
		old.Unsubscribe()
	}
	c.notify()

	if ok {
		c.subscribe(ctx, gen)
	}
}

// deactivateLocked invalidates the current subscription and clears the
// state derived from it. The caller must unsubscribe the returned
// subscription after releasing the lock.
func (c *Controller) deactivateLocked() chat.Subscription {
	c.gen++
	c.active = false
	c.stopRetryLocked()
	c.retry.Reset()
	c.typing.Reset()

	sub := c.sub
	c.sub = nil
	c.messages = nil
	c.loaded = false
	c.banner = nil
	c.pendingDelete = ""
	return sub
}

func (c *Controller) subscribe(ctx context.Context, gen uint64) {
	q := chat.Query{Limit: c.opts.Limit}
	sub, err := c.store.Subscribe(ctx, q, func(msgs []chat.Message, err error) {
		c.onSnapshot(gen, msgs, err)
	})

	c.mu.Lock()
	if c.closed || gen != c.gen {
		c.mu.Unlock()
		if sub != nil {
			sub.Unsubscribe()
		}
		return
	}
	if err != nil {
		c.failLocked(gen, err)
		c.mu.Unlock()
		c.notify()
		return
	}
	c.sub = sub
	c.mu.Unlock()
}

func (c *Controller) onSnapshot(gen uint64, msgs []chat.Message, err error) {
	c.mu.Lock()
	if c.closed || gen != c.gen {
		c.mu.Unlock()
		return
	}

	if err != nil {
		c.failLocked(gen, err)
		c.mu.Unlock()
		c.notify()
		return
	}

	c.messages = slices.Clone(msgs)
	c.loaded = true
	c.banner = nil
	c.retry.Reset()
	if c.pendingDelete != "" && !slices.ContainsFunc(c.messages, func(m chat.Message) bool {
		return m.ID == c.pendingDelete
	}) {
		c.pendingDelete = ""
	}
	c.scrollSeq++
	c.mu.Unlock()

	c.notify()
}

// failLocked records a subscription failure and, when the policy allows,
// schedules a retry. The last known messages stay visible.
func (c *Controller) failLocked(gen uint64, err error) {
	c.log.Warn().Err(err).Msg("feed subscription failed")
	c.banner = &Error{Kind: SubscriptionError, Err: err}

	next := c.retry.NextBackOff()
	if next == backoff.Stop {
		return
	}

	c.stopRetryLocked()
	c.log.Debug().Dur("in", next).Msg("scheduling resubscribe")
	c.timer = c.opts.Clock.AfterFunc(next, func() { c.resubscribe(gen) })
}

func (c *Controller) stopRetryLocked() {
	if c.timer != nil {
		c.timer.Stop()
		c.timer = nil
	}
}

// Resubscribe replaces the current subscription with a new one.
func (c *Controller) Resubscribe() error {
	c.mu.Lock()
	if !c.active {
		c.mu.Unlock()
		return invalid(ErrSignedOut)
	}
	c.stopRetryLocked()
	c.retry.Reset()
	gen := c.gen
	c.mu.Unlock()

	c.resubscribe(gen)
	return nil
}

func (c *Controller) resubscribe(gen uint64) {
	c.mu.Lock()
	if c.closed || !c.active || gen != c.gen {
		c.mu.Unlock()
		return
	}
	c.timer = nil
	old := c.sub
	c.sub = nil
	c.gen++
	next := c.gen
	ctx := c.ctx
	c.mu.Unlock()

	if old != nil {
		old.Unsubscribe()
	}
	c.log.Info().Msg("resubscribing feed")
	c.subscribe(ctx, next)
}

// SetDraft replaces the composition buffer. Any text counts as a keystroke
// for the typing indicator; clearing the buffer ends it.
func (c *Controller) SetDraft(text string) {
	c.mu.Lock()
	c.draft = text
	c.mu.Unlock()

	if text == "" {
		c.typing.Reset()
	} else {
		c.typing.Keystroke()
	}
	c.notify()
}

// Submit sends the composition buffer as the current identity. Refusals are
// returned as ValidationError; the outcome of the append shows up in State.
func (c *Controller) Submit(ctx context.Context) error {
	c.mu.Lock()
	switch {
	case strings.TrimSpace(c.draft) == "":
		c.mu.Unlock()
		return invalid(ErrEmptyMessage)
	case !c.signedIn:
		c.mu.Unlock()
		return invalid(ErrSignedOut)
	case c.sending:
		c.mu.Unlock()
		return invalid(ErrSendInFlight)
	}

	draft := chat.Draft{
		Text:      c.draft,
		AuthorID:  c.identity.ID,
		AvatarURL: c.identity.AvatarURL,
	}
	c.sending = true
	c.notice = nil
	c.typing.Reset()
	c.wg.Add(1)
	c.mu.Unlock()

	c.notify()
	go c.send(ctx, draft)
	return nil
}

func (c *Controller) send(ctx context.Context, draft chat.Draft) {
	defer c.wg.Done()

	msg, err := c.store.Append(ctx, draft)

	c.mu.Lock()
	c.sending = false
	if err != nil {
		c.log.Warn().Err(err).Msg("send failed")
		c.notice = &Error{Kind: WriteError, Err: err}
	} else {
		c.log.Debug().Str("id", msg.ID).Msg("message sent")
		c.draft = ""
		c.scrollSeq++
	}
	c.mu.Unlock()

	if err == nil {
		c.typing.Reset()
	}
	c.notify()
}

// RequestDelete starts deleting one of the current user's messages. With
// confirmation enabled the message becomes the pending delete; otherwise the
// delete is issued immediately.
func (c *Controller) RequestDelete(ctx context.Context, id string) error {
	c.mu.Lock()
	if !c.signedIn {
		c.mu.Unlock()
		return invalid(ErrSignedOut)
	}

	idx := slices.IndexFunc(c.messages, func(m chat.Message) bool { return m.ID == id })
	if idx < 0 || c.messages[idx].AuthorID != c.identity.ID {
		c.mu.Unlock()
		return invalid(ErrNotAuthor)
	}

	if c.opts.ConfirmDelete {
		c.pendingDelete = id
		c.mu.Unlock()
		c.notify()
		return nil
	}

	c.issueDeleteLocked(ctx, id)
	c.mu.Unlock()
	return nil
}

// ConfirmDelete issues the pending delete.
func (c *Controller) ConfirmDelete(ctx context.Context) error {
	c.mu.Lock()
	id := c.pendingDelete
	if id == "" {
		c.mu.Unlock()
		return invalid(ErrNoPendingDelete)
	}
	c.pendingDelete = ""
	c.issueDeleteLocked(ctx, id)
	c.mu.Unlock()

	c.notify()
	return nil
}

// CancelDelete drops the pending delete.
func (c *Controller) CancelDelete() {
	c.mu.Lock()
	c.pendingDelete = ""
	c.mu.Unlock()
	c.notify()
}

// issueDeleteLocked deletes in the background. The list is not touched; the
// message disappears when the store delivers the next snapshot.
func (c *Controller) issueDeleteLocked(ctx context.Context, id string) {
	c.wg.Add(1)
	go func() {
		defer c.wg.Done()

		err := c.store.Delete(ctx, id)
		if errors.Is(err, chat.ErrNotFound) {
			c.log.Debug().Str("id", id).Msg("message already deleted")
			return
		}
		if err != nil {
			c.log.Warn().Err(err).Str("id", id).Msg("delete failed")
			c.mu.Lock()
			c.notice = &Error{Kind: DeleteError, Err: err}
			c.mu.Unlock()
			c.notify()
		}
	}()
}

// DismissNotice clears the transient notice.
func (c *Controller) DismissNotice() {
	c.mu.Lock()
	c.notice = nil
	c.mu.Unlock()
	c.notify()
}

// State returns the current view.
func (c *Controller) State() View {
	c.mu.Lock()
	defer c.mu.Unlock()

	return View{
		SignedIn:      c.signedIn,
		Identity:      c.identity,
		Loaded:        c.loaded,
		Rows:          Render(c.messages, c.identity, c.signedIn),
		Draft:         c.draft,
		CanSubmit:     c.signedIn && !c.sending && strings.TrimSpace(c.draft) != "",
		Sending:       c.sending,
		Typing:        c.typing.Active(),
		Notice:        c.notice,
		Banner:        c.banner,
		PendingDelete: c.pendingDelete,
		ScrollSeq:     c.scrollSeq,
	}
}
