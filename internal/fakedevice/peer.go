package fakedevice

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"

	"github.com/rendercast/rendercast-go/pkg/wire"
)

const uriSetPin = "ssap://pairing/setPin"

type envelope struct {
	Type    wire.MessageType `json:"type"`
	ID      wire.MessageID   `json:"id,omitempty"`
	Payload any              `json:"payload,omitempty"`
	Error   string           `json:"error,omitempty"`
}

// peer is one control socket.
type peer struct {
	d    *Device
	conn *websocket.Conn

	writeMu sync.Mutex

	mu         sync.Mutex
	registered bool
	pendingReg wire.MessageID
	subs       map[wire.MessageID]string
}

func newPeer(d *Device, conn *websocket.Conn) *peer {
	return &peer{d: d, conn: conn, subs: make(map[wire.MessageID]string)}
}

func (p *peer) serve(ctx context.Context) {
	defer p.conn.CloseNow()
	for {
		_, data, err := p.conn.Read(ctx)
		if err != nil {
			p.d.logger.Debug("fakedevice: socket closed", "error", err)
			return
		}
		var req Request
		if err := json.Unmarshal(data, &req); err != nil {
			p.d.logger.Debug("fakedevice: bad request", "error", err)
			continue
		}
		p.handle(req)
	}
}

func (p *peer) handle(req Request) {
	switch req.Type {
	case wire.TypeRegister:
		p.handleRegister(req)
		return
	case wire.TypeUnsubscribe:
		p.d.record(req)
		p.mu.Lock()
		delete(p.subs, req.ID)
		p.mu.Unlock()
		return
	}

	h, silent := p.d.record(req)
	if req.URI == uriSetPin {
		p.handlePin(req)
		return
	}
	if !p.isRegistered() {
		p.send(envelope{Type: wire.TypeError, ID: req.ID, Error: "401 insufficient permissions"})
		return
	}
	if silent {
		return
	}
	if h == nil {
		p.send(envelope{Type: wire.TypeError, ID: req.ID, Error: "404 no such service or method"})
		return
	}

	if req.Type == wire.TypeSubscribe {
		p.mu.Lock()
		p.subs[req.ID] = req.URI
		p.mu.Unlock()
	}
	payload, errText := h(req)
	if errText != "" {
		p.mu.Lock()
		delete(p.subs, req.ID)
		p.mu.Unlock()
		p.send(envelope{Type: wire.TypeError, ID: req.ID, Error: errText})
		return
	}
	p.send(envelope{Type: wire.TypeResponse, ID: req.ID, Payload: payload})
}

func (p *peer) handleRegister(req Request) {
	p.d.record(req)
	opts := p.d.opts

	var reg wire.RegisterPayload
	_ = json.Unmarshal(req.Payload, &reg)

	switch {
	case opts.DenyPairing:
		p.send(envelope{Type: wire.TypeError, ID: req.ID, Error: "403 User denied access"})
	case !opts.RequirePairing || (reg.ClientKey == opts.ClientKey && !reg.ForcePairing):
		p.completeRegistration(req.ID)
	default:
		p.mu.Lock()
		p.pendingReg = req.ID
		p.mu.Unlock()
		p.send(envelope{
			Type:    wire.TypeResponse,
			ID:      req.ID,
			Payload: wire.PairingPayload{PairingType: opts.PairingType, ReturnValue: true},
		})
	}
}

func (p *peer) handlePin(req Request) {
	var pin wire.PinPayload
	_ = json.Unmarshal(req.Payload, &pin)

	p.mu.Lock()
	waiting := p.pendingReg != 0
	p.mu.Unlock()

	if !waiting || pin.PIN != p.d.opts.PIN {
		p.send(envelope{Type: wire.TypeError, ID: req.ID, Error: "400 invalid pin"})
		return
	}
	p.send(envelope{Type: wire.TypeResponse, ID: req.ID, Payload: wire.ReturnValue{ReturnValue: true}})
	p.approve()
}

func (p *peer) approve() {
	p.mu.Lock()
	id := p.pendingReg
	p.pendingReg = 0
	p.mu.Unlock()
	if id != 0 {
		p.completeRegistration(id)
	}
}

func (p *peer) reject(errText string) {
	p.mu.Lock()
	id := p.pendingReg
	p.pendingReg = 0
	p.mu.Unlock()
	if id != 0 {
		p.send(envelope{Type: wire.TypeError, ID: id, Error: errText})
	}
}

func (p *peer) completeRegistration(id wire.MessageID) {
	p.mu.Lock()
	p.registered = true
	p.mu.Unlock()
	p.send(envelope{
		Type:    wire.TypeRegistered,
		ID:      id,
		Payload: wire.RegisteredPayload{ClientKey: p.d.opts.ClientKey},
	})
}

func (p *peer) isRegistered() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.registered
}

func (p *peer) subscriptions(uri string) []wire.MessageID {
	p.mu.Lock()
	defer p.mu.Unlock()
	var ids []wire.MessageID
	for id, u := range p.subs {
		if u == uri {
			ids = append(ids, id)
		}
	}
	return ids
}

func (p *peer) send(env envelope) {
	p.writeMu.Lock()
	defer p.writeMu.Unlock()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := wsjson.Write(ctx, p.conn, env); err != nil {
		p.d.logger.Debug("fakedevice: write failed", "error", err)
	}
}
