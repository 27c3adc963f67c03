package session

import (
	"encoding/json"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rendercast/rendercast-go/pkg/wire"
)

// ResponseFunc receives a command outcome: a payload or an error, never both.
type ResponseFunc func(payload json.RawMessage, err error)

// Command is one entry of the correlation table or the pending queue.
type Command struct {
	id           int
	uri          string
	payload      any
	subscription bool
	respond      ResponseFunc

	sentAt time.Time
	timer  *time.Timer

	once     sync.Once
	finished atomic.Bool
}

func newCommand(uri string, payload any, subscription bool, cb ResponseFunc) *Command {
	return &Command{
		uri:          uri,
		payload:      payload,
		subscription: subscription,
		respond:      cb,
	}
}

// ID returns the id assigned when the command was sent, 0 while queued.
func (c *Command) ID() int { return c.id }

// URI returns the command URI.
func (c *Command) URI() string { return c.uri }

// IsSubscription reports whether the command stays armed after a response.
func (c *Command) IsSubscription() bool { return c.subscription }

func (c *Command) request() wire.Request {
	typ := wire.TypeRequest
	if c.subscription {
		typ = wire.TypeSubscribe
	}
	return wire.Request{
		Type:    typ,
		ID:      wire.MessageID(c.id),
		URI:     c.uri,
		Payload: c.payload,
	}
}

// deliver hands a payload or an error to the callback. One-shot commands
// resolve once. Subscriptions receive every payload until their first
// error, which is final.
func (c *Command) deliver(payload json.RawMessage, err error) {
	if !c.subscription {
		c.once.Do(func() {
			c.stopTimer()
			if c.respond != nil {
				c.respond(payload, err)
			}
		})
		return
	}

	if err != nil {
		if !c.finished.CompareAndSwap(false, true) {
			return
		}
	} else if c.finished.Load() {
		return
	}
	if c.respond != nil {
		c.respond(payload, err)
	}
}

// cancel stops further deliveries without invoking the callback.
func (c *Command) cancel() {
	c.stopTimer()
	c.finished.Store(true)
	c.once.Do(func() {})
}

func (c *Command) stopTimer() {
	if c.timer != nil {
		c.timer.Stop()
	}
}

// Subscription is a handle to an armed subscription.
type Subscription struct {
	s   *Session
	cmd *Command
}

// Unsubscribe removes the subscription and tells the device to stop
// sending updates. It is safe to call more than once.
func (sub *Subscription) Unsubscribe() error {
	if sub == nil || sub.s == nil {
		return nil
	}
	return sub.s.unsubscribe(sub.cmd)
}

// Command returns the underlying command.
func (sub *Subscription) Command() *Command {
	return sub.cmd
}
