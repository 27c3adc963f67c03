// Package fakedevice provides an in-process TV for tests and demo mode.
//
// A Device speaks the second-screen control protocol over WebSocket, serves
// a UPnP description document and answers SSDP searches. Its behavior can be
// scripted per URI.
package fakedevice

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"
	"sync"

	"github.com/coder/websocket"
	"github.com/google/uuid"

	"github.com/rendercast/rendercast-go/pkg/wire"
)

// Defaults for Options.
const (
	DefaultServiceType  = "urn:lge-com:service:webos-second-screen:1"
	DefaultFriendlyName = "Fake TV"
	DefaultModelName    = "FAKE-TV"
)

// Options configures a fake device.
type Options struct {
	FriendlyName string
	UUID         string
	ModelName    string
	ModelNumber  string

	// ServiceType is announced over SSDP and listed in the description.
	ServiceType string

	// RequirePairing holds registration until Approve or a correct PIN.
	// A register carrying the issued client key is accepted immediately.
	RequirePairing bool

	// PairingType is reported in the prompt response ("PROMPT" when empty).
	PairingType string

	// PIN is the code accepted by ssap://pairing/setPin.
	PIN string

	// DenyPairing answers every register with a 403 error.
	DenyPairing bool

	// ClientKey is issued on registration. Generated when empty.
	ClientKey string

	// Apps are reported by listApps.
	Apps []string

	// Volume is the initial volume (0..100).
	Volume int

	// Logger is the optional logger for debug output.
	// If nil, logging is disabled.
	Logger *slog.Logger
}

// Request is a request received by the device.
type Request struct {
	Type    wire.MessageType `json:"type"`
	ID      wire.MessageID   `json:"id,omitempty"`
	URI     string           `json:"uri,omitempty"`
	Payload json.RawMessage  `json:"payload,omitempty"`
}

// Handler answers a request. A non-empty errText produces an error envelope.
type Handler func(req Request) (payload any, errText string)

// Device is a fake TV.
type Device struct {
	opts   Options
	logger *slog.Logger

	mu         sync.Mutex
	volume     int
	muted      bool
	foreground string
	conns      map[*peer]struct{}
	requests   []Request
	handlers   map[string]Handler
	silent     map[string]bool
	nextSessID int

	srv *server
}

// New creates a fake device.
func New(opts Options) *Device {
	if opts.UUID == "" {
		opts.UUID = uuid.New().String()
	}
	if opts.FriendlyName == "" {
		opts.FriendlyName = DefaultFriendlyName
	}
	if opts.ModelName == "" {
		opts.ModelName = DefaultModelName
	}
	if opts.ServiceType == "" {
		opts.ServiceType = DefaultServiceType
	}
	if opts.PairingType == "" {
		opts.PairingType = wire.PairingTypePrompt
	}
	if opts.ClientKey == "" {
		opts.ClientKey = uuid.New().String()
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	d := &Device{
		opts:     opts,
		logger:   logger,
		volume:   opts.Volume,
		conns:    make(map[*peer]struct{}),
		handlers: make(map[string]Handler),
		silent:   make(map[string]bool),
	}
	d.installDefaultHandlers()
	return d
}

// UUID returns the device UUID.
func (d *Device) UUID() string { return d.opts.UUID }

// ClientKey returns the key issued on registration.
func (d *Device) ClientKey() string { return d.opts.ClientKey }

// FriendlyName returns the advertised name.
func (d *Device) FriendlyName() string { return d.opts.FriendlyName }

// ServiceType returns the advertised SSDP service type.
func (d *Device) ServiceType() string { return d.opts.ServiceType }

// Handler returns the HTTP handler serving the control socket at "/" and
// the description document at DescriptionPath.
func (d *Device) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc(DescriptionPath, d.serveDescription)
	mux.HandleFunc("/", d.serveSocket)
	return mux
}

// SetHandler overrides the answer for uri.
func (d *Device) SetHandler(uri string, h Handler) {
	d.mu.Lock()
	d.handlers[uri] = h
	d.mu.Unlock()
}

// Silence makes the device swallow requests for uri without answering.
func (d *Device) Silence(uri string) {
	d.mu.Lock()
	d.silent[uri] = true
	d.mu.Unlock()
}

// Requests returns every request received so far.
func (d *Device) Requests() []Request {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]Request(nil), d.requests...)
}

// RequestsFor returns the requests addressed to uri.
func (d *Device) RequestsFor(uri string) []Request {
	var out []Request
	for _, r := range d.Requests() {
		if r.URI == uri {
			out = append(out, r)
		}
	}
	return out
}

// Volume returns the current volume.
func (d *Device) Volume() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.volume
}

// Muted returns the mute state.
func (d *Device) Muted() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.muted
}

// Foreground returns the id of the last launched app.
func (d *Device) Foreground() string {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.foreground
}

// Connections returns the number of open control sockets.
func (d *Device) Connections() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.conns)
}

// SetVolume changes the volume as if the user pressed the remote and pushes
// the new status to subscribers.
func (d *Device) SetVolume(v int) {
	d.mu.Lock()
	d.volume = clamp(v)
	d.mu.Unlock()
	d.pushAudioStatus()
}

// Approve accepts every registration waiting on a prompt.
func (d *Device) Approve() {
	for _, p := range d.peers() {
		p.approve()
	}
}

// Reject refuses every registration waiting on a prompt.
func (d *Device) Reject() {
	for _, p := range d.peers() {
		p.reject("403 User denied access")
	}
}

// Notify sends an unsolicited message to every registered client.
func (d *Device) Notify(payload any) {
	for _, p := range d.peers() {
		if p.isRegistered() {
			p.send(envelope{Type: wire.TypeResponse, Payload: payload})
		}
	}
}

// DropConnections closes every control socket without a close handshake.
func (d *Device) DropConnections() {
	for _, p := range d.peers() {
		p.conn.CloseNow()
	}
}

func (d *Device) peers() []*peer {
	d.mu.Lock()
	defer d.mu.Unlock()
	out := make([]*peer, 0, len(d.conns))
	for p := range d.conns {
		out = append(out, p)
	}
	return out
}

func (d *Device) record(req Request) (h Handler, silent bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.requests = append(d.requests, req)
	return d.handlers[req.URI], d.silent[req.URI]
}

func (d *Device) newSessionID() string {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.nextSessID++
	return "session-" + strconv.Itoa(d.nextSessID)
}

func (d *Device) addPeer(p *peer) {
	d.mu.Lock()
	d.conns[p] = struct{}{}
	d.mu.Unlock()
}

func (d *Device) removePeer(p *peer) {
	d.mu.Lock()
	delete(d.conns, p)
	d.mu.Unlock()
}

func (d *Device) serveSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{InsecureSkipVerify: true})
	if err != nil {
		d.logger.Debug("fakedevice: accept failed", "error", err)
		return
	}
	p := newPeer(d, conn)
	d.addPeer(p)
	defer d.removePeer(p)
	p.serve(r.Context())
}

func clamp(v int) int {
	switch {
	case v < 0:
		return 0
	case v > 100:
		return 100
	default:
		return v
	}
}
