// Package live turns change notifications into serialized snapshot
// deliveries for chat.Store implementations.
package live

import (
	"context"

	"github.com/hay-kot/blindchat/internal/core/chat"
)

// LoadFunc loads the current result of a query.
type LoadFunc func(ctx context.Context) ([]chat.Message, error)

// Pump reloads and delivers a snapshot each time it is triggered. Triggers
// that arrive while a load is running collapse into a single reload, so a
// burst of changes costs at most one extra delivery. Deliveries run on a
// single goroutine and never overlap.
type Pump struct {
	load    LoadFunc
	handler chat.SnapshotHandler
	kick    chan struct{}
	failc   chan error
	ctx     context.Context
	cancel  context.CancelFunc
	done    chan struct{}
}

// Start runs a pump until ctx is cancelled, Unsubscribe is called, or a load
// fails. It does not load anything until the first Trigger.
func Start(ctx context.Context, load LoadFunc, handler chat.SnapshotHandler) *Pump {
	ctx, cancel := context.WithCancel(ctx)
	p := &Pump{
		load:    load,
		handler: handler,
		kick:    make(chan struct{}, 1),
		failc:   make(chan error, 1),
		ctx:     ctx,
		cancel:  cancel,
		done:    make(chan struct{}),
	}
	go p.run()
	return p
}

// Trigger schedules a reload.
func (p *Pump) Trigger() {
	select {
	case p.kick <- struct{}{}:
	default:
	}
}

// Fail delivers err to the handler and ends the subscription.
func (p *Pump) Fail(err error) {
	select {
	case p.failc <- err:
	default:
	}
}

// Unsubscribe stops the pump. It is safe to call more than once.
func (p *Pump) Unsubscribe() {
	p.cancel()
}

// Done is closed when the pump goroutine exits.
func (p *Pump) Done() <-chan struct{} {
	return p.done
}

func (p *Pump) run() {
	defer close(p.done)
	defer p.cancel()

	for {
		select {
		case <-p.ctx.Done():
			return
		case err := <-p.failc:
			p.deliver(nil, err)
			return
		case <-p.kick:
			msgs, err := p.load(p.ctx)
			if p.ctx.Err() != nil {
				return
			}
			p.deliver(msgs, err)
			if err != nil {
				return
			}
		}
	}
}

func (p *Pump) deliver(msgs []chat.Message, err error) {
	if p.ctx.Err() != nil {
		return
	}
	p.handler(msgs, err)
}
