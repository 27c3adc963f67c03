package session

import (
	"encoding/json"
	"net"
	"strconv"
	"time"

	"github.com/rendercast/rendercast-go/pkg/log"
	"github.com/rendercast/rendercast-go/pkg/wire"
)

// Protocol log helpers. All of them are no-ops without a protocol logger.
// Only logInbound takes s.mu; the others may run with the lock held.

func (s *Session) event(dir log.Direction, layer log.Layer, cat log.Category) log.Event {
	id, _ := s.connID.Load().(string)
	return log.Event{
		Timestamp:    time.Now(),
		ConnectionID: id,
		Direction:    dir,
		Layer:        layer,
		Category:     cat,
		LocalRole:    log.RoleController,
		RemoteAddr:   net.JoinHostPort(s.cfg.Host, strconv.Itoa(s.cfg.port())),
		DeviceID:     s.cfg.DeviceID,
		ServiceID:    s.cfg.ServiceID,
	}
}

func (s *Session) logOutbound(req wire.Request) {
	if s.plog == nil {
		return
	}
	ev := s.event(log.DirectionOut, log.LayerWire, log.CategoryMessage)
	ev.Message = &log.MessageEvent{
		Type:         log.ParseMessageType(string(req.Type)),
		MessageID:    int(req.ID),
		URI:          req.Name(),
		Subscription: req.Type == wire.TypeSubscribe,
		Payload:      toAny(req.Payload),
	}
	s.plog.Log(ev)
}

// logInbound is called from the reader goroutine before dispatch, so a
// response still finds its command in the table.
func (s *Session) logInbound(msg *wire.Message) {
	if s.plog == nil {
		return
	}
	me := &log.MessageEvent{
		Type:      log.ParseMessageType(string(msg.Type)),
		MessageID: int(msg.ID),
		ErrorText: msg.Error,
	}
	if len(msg.Payload) > 0 {
		var v any
		if json.Unmarshal(msg.Payload, &v) == nil {
			me.Payload = v
		}
	}
	if msg.HasID() {
		s.mu.Lock()
		cmd := s.commands[int(msg.ID)]
		s.mu.Unlock()
		if cmd != nil {
			me.URI = cmd.uri
			me.Subscription = cmd.subscription
			latency := time.Since(cmd.sentAt)
			me.Latency = &latency
		}
	}

	ev := s.event(log.DirectionIn, log.LayerWire, log.CategoryMessage)
	ev.Message = me
	s.plog.Log(ev)
}

func (s *Session) logFrame(data []byte) {
	if s.plog == nil {
		return
	}
	ev := s.event(log.DirectionIn, log.LayerTransport, log.CategoryMessage)
	ev.Frame = log.NewFrameEvent(data)
	s.plog.Log(ev)
}

func (s *Session) logState(entity log.StateEntity, old, new, reason string) {
	if s.plog == nil {
		return
	}
	ev := s.event(log.DirectionIn, log.LayerService, log.CategoryState)
	ev.StateChange = &log.StateChangeEvent{
		Entity:   entity,
		OldState: old,
		NewState: new,
		Reason:   reason,
	}
	s.plog.Log(ev)
}

func (s *Session) logControl(dir log.Direction, t log.ControlMsgType, code *int) {
	if s.plog == nil {
		return
	}
	ev := s.event(dir, log.LayerTransport, log.CategoryControl)
	ev.ControlMsg = &log.ControlMsgEvent{Type: t, CloseCode: code}
	s.plog.Log(ev)
}

func (s *Session) logError(layer log.Layer, msg, context string) {
	if s.plog == nil {
		return
	}
	ev := s.event(log.DirectionIn, layer, log.CategoryError)
	ev.Error = &log.ErrorEventData{
		Layer:   layer,
		Message: msg,
		Context: context,
	}
	s.plog.Log(ev)
}

// toAny converts a request payload to plain maps and slices so the CBOR
// log does not depend on the payload's Go type.
func toAny(payload any) any {
	if payload == nil {
		return nil
	}
	data, err := json.Marshal(payload)
	if err != nil {
		return nil
	}
	var v any
	if json.Unmarshal(data, &v) != nil {
		return nil
	}
	return v
}
