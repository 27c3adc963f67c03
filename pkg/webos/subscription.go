package webos

import (
	"context"
	"encoding/json"
	"errors"
	"sync"

	"github.com/rendercast/rendercast-go/pkg/capability"
	"github.com/rendercast/rendercast-go/pkg/session"
)

// subscription is the caller's handle to a subscription that outlives
// individual connections. The session ends every subscription with
// ErrConnectionLost when its connection goes away; the service then re-arms
// it on the next registration until Unsubscribe is called.
type subscription struct {
	s       *Service
	uri     string
	payload any
	cb      session.ResponseFunc

	mu     sync.Mutex
	epoch  uint64
	armed  bool
	closed bool
	cur    *session.Subscription
}

var _ capability.Subscription = (*subscription)(nil)

// subscribe registers a subscription with the service and arms it on the
// current session.
func (s *Service) subscribe(ctx context.Context, uri string, payload any, cb session.ResponseFunc) (*subscription, error) {
	sub := &subscription{s: s, uri: uri, payload: payload, cb: cb}
	s.mu.Lock()
	s.subs[sub] = struct{}{}
	s.mu.Unlock()
	if err := sub.arm(ctx); err != nil {
		s.forget(sub)
		return nil, err
	}
	return sub, nil
}

// rearm re-issues every live subscription that lost its connection.
func (s *Service) rearm() {
	s.mu.Lock()
	subs := make([]*subscription, 0, len(s.subs))
	for sub := range s.subs {
		subs = append(subs, sub)
	}
	s.mu.Unlock()

	for _, sub := range subs {
		if !sub.needsArming() {
			continue
		}
		if err := sub.arm(context.Background()); err != nil {
			s.Logger().Debug("webos: re-subscribe failed", "uri", sub.uri, "error", err)
		}
	}
}

func (s *Service) forget(sub *subscription) {
	s.mu.Lock()
	delete(s.subs, sub)
	s.mu.Unlock()
}

func (sub *subscription) needsArming() bool {
	sub.mu.Lock()
	defer sub.mu.Unlock()
	return !sub.closed && !sub.armed
}

func (sub *subscription) arm(ctx context.Context) error {
	sess, err := sub.s.session()
	if err != nil {
		return err
	}

	sub.mu.Lock()
	if sub.closed {
		sub.mu.Unlock()
		return nil
	}
	sub.epoch++
	epoch := sub.epoch
	sub.armed = true
	sub.mu.Unlock()

	cur, err := sess.Subscribe(ctx, sub.uri, sub.payload, func(p json.RawMessage, err error) {
		sub.deliver(epoch, p, err)
	})

	sub.mu.Lock()
	if sub.epoch != epoch {
		sub.mu.Unlock()
		return err
	}
	if err != nil {
		sub.armed = false
		sub.mu.Unlock()
		return err
	}
	if sub.closed {
		// Unsubscribe ran while the request was being issued.
		sub.mu.Unlock()
		return cur.Unsubscribe()
	}
	sub.cur = cur
	sub.mu.Unlock()
	return nil
}

// deliver forwards one update. A lost connection leaves the subscription
// registered for re-arming; any other error is final.
func (sub *subscription) deliver(epoch uint64, p json.RawMessage, err error) {
	sub.mu.Lock()
	if sub.closed || sub.epoch != epoch {
		sub.mu.Unlock()
		return
	}
	final := false
	if err != nil {
		sub.armed = false
		if !errors.Is(err, session.ErrConnectionLost) {
			sub.closed = true
			final = true
		}
	}
	sub.mu.Unlock()

	if final {
		sub.s.forget(sub)
	}
	if sub.cb != nil {
		sub.cb(p, err)
	}
}

// Unsubscribe stops delivery and tells the device to stop sending updates.
// It is safe to call more than once.
func (sub *subscription) Unsubscribe() error {
	sub.mu.Lock()
	if sub.closed {
		sub.mu.Unlock()
		return nil
	}
	sub.closed = true
	cur := sub.cur
	sub.cur = nil
	sub.mu.Unlock()

	sub.s.forget(sub)
	return cur.Unsubscribe()
}
