// Package servicetest provides an in-memory DeviceService for tests of
// packages that consume services.
package servicetest

import (
	"context"
	"sync"

	"github.com/rendercast/rendercast-go/pkg/capability"
	"github.com/rendercast/rendercast-go/pkg/record"
	"github.com/rendercast/rendercast-go/pkg/service"
)

// Fake is a connectable service whose connect outcome is scripted.
// It implements every capability interface and records the calls made.
type Fake struct {
	*service.Base

	mu        sync.Mutex
	calls     []string
	commands  []service.Command
	volume    float32
	muted     bool
	connectFn func(f *Fake) error
}

var _ service.DeviceService = (*Fake)(nil)

// Options configures a Fake.
type Options struct {
	ServiceID    string
	UUID         string
	IPAddress    string
	FriendlyName string

	Capabilities []string

	// Priorities registers the fake as the implementation of each tag.
	Priorities map[capability.Tag]capability.Priority

	// Connect scripts the connect outcome. Nil reports success synchronously.
	Connect func(f *Fake) error
}

// New creates a fake service.
func New(opts Options) *Fake {
	desc := record.ServiceDescription{
		ServiceID:    opts.ServiceID,
		UUID:         opts.UUID,
		IPAddress:    opts.IPAddress,
		FriendlyName: opts.FriendlyName,
	}
	return newFake(desc, nil, opts)
}

// Factory returns a service.Factory building fakes with opts. The
// description and config come from the caller.
func Factory(opts Options, created chan<- *Fake) service.Factory {
	return func(desc record.ServiceDescription, cfg *record.ServiceConfig) (service.DeviceService, error) {
		f := newFake(desc, cfg, opts)
		if created != nil {
			created <- f
		}
		return f, nil
	}
}

func newFake(desc record.ServiceDescription, cfg *record.ServiceConfig, opts Options) *Fake {
	f := &Fake{
		Base: service.NewBase(service.BaseConfig{
			Description: desc,
			Config:      cfg,
			Connectable: true,
		}),
		connectFn: opts.Connect,
	}
	f.Bind(f)
	f.AddCapabilities(opts.Capabilities...)
	for tag, prio := range opts.Priorities {
		_ = f.RegisterAPI(tag, f, prio)
	}
	return f
}

// Connect implements service.DeviceService.
func (f *Fake) Connect(context.Context) error {
	f.record("Connect")
	if f.State() != service.StateDisconnected {
		return nil
	}
	f.SetState(service.StateConnecting)
	if f.connectFn != nil {
		return f.connectFn(f)
	}
	f.NotifyConnected()
	return nil
}

// Disconnect implements service.DeviceService.
func (f *Fake) Disconnect() error {
	f.record("Disconnect")
	return f.Base.Disconnect()
}

// SendCommand records the command and answers with an empty payload.
func (f *Fake) SendCommand(_ context.Context, cmd service.Command, cb service.ResponseFunc) error {
	f.mu.Lock()
	f.commands = append(f.commands, cmd)
	f.mu.Unlock()
	if cb != nil {
		cb([]byte(`{"returnValue":true}`), nil)
	}
	return nil
}

// SendPairingKey implements service.DeviceService.
func (f *Fake) SendPairingKey(key string) error {
	f.record("SendPairingKey:" + key)
	f.Config().SetPairingKey(key)
	return nil
}

// Calls returns the recorded method calls in order.
func (f *Fake) Calls() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.calls...)
}

// Commands returns the commands passed to SendCommand.
func (f *Fake) Commands() []service.Command {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]service.Command(nil), f.commands...)
}

func (f *Fake) record(call string) {
	f.mu.Lock()
	f.calls = append(f.calls, call)
	f.mu.Unlock()
}

// Launcher

func (f *Fake) LaunchApp(_ context.Context, appID string, _ map[string]any) (*capability.LaunchSession, error) {
	f.record("LaunchApp:" + appID)
	return &capability.LaunchSession{AppID: appID, Type: capability.SessionTypeApp, Service: f}, nil
}

func (f *Fake) LaunchBrowser(_ context.Context, url string) (*capability.LaunchSession, error) {
	f.record("LaunchBrowser:" + url)
	return &capability.LaunchSession{AppID: "browser", Type: capability.SessionTypeApp, Service: f}, nil
}

func (f *Fake) CloseApp(_ context.Context, s *capability.LaunchSession) error {
	f.record("CloseApp:" + s.AppID)
	return nil
}

func (f *Fake) Apps(context.Context) ([]capability.AppInfo, error) {
	f.record("Apps")
	return nil, nil
}

// CloseLaunchSession implements capability.Closer.
func (f *Fake) CloseLaunchSession(ctx context.Context, s *capability.LaunchSession) error {
	return f.CloseApp(ctx, s)
}

// MediaPlayer

func (f *Fake) PlayMedia(_ context.Context, m capability.MediaInfo) (*capability.LaunchSession, error) {
	f.record("PlayMedia:" + m.URL)
	return &capability.LaunchSession{Type: capability.SessionTypeMedia, Service: f}, nil
}

func (f *Fake) DisplayImage(_ context.Context, m capability.MediaInfo) (*capability.LaunchSession, error) {
	f.record("DisplayImage:" + m.URL)
	return &capability.LaunchSession{Type: capability.SessionTypeMedia, Service: f}, nil
}

func (f *Fake) CloseMedia(context.Context, *capability.LaunchSession) error {
	f.record("CloseMedia")
	return nil
}

// MediaControl

func (f *Fake) Play(context.Context) error  { f.record("Play"); return nil }
func (f *Fake) Pause(context.Context) error { f.record("Pause"); return nil }
func (f *Fake) Stop(context.Context) error  { f.record("Stop"); return nil }

// VolumeControl

func (f *Fake) VolumeUp(context.Context) error   { f.record("VolumeUp"); return nil }
func (f *Fake) VolumeDown(context.Context) error { f.record("VolumeDown"); return nil }

func (f *Fake) SetVolume(_ context.Context, v float32) error {
	f.record("SetVolume")
	f.mu.Lock()
	f.volume = v
	f.mu.Unlock()
	return nil
}

func (f *Fake) Volume(context.Context) (float32, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.volume, nil
}

func (f *Fake) SetMute(_ context.Context, muted bool) error {
	f.record("SetMute")
	f.mu.Lock()
	f.muted = muted
	f.mu.Unlock()
	return nil
}

func (f *Fake) Mute(context.Context) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.muted, nil
}

func (f *Fake) SubscribeVolume(func(capability.VolumeStatus, error)) (capability.Subscription, error) {
	f.record("SubscribeVolume")
	return nopSubscription{}, nil
}

// KeyControl, PowerControl, ToastControl, TVControl

func (f *Fake) SendKey(_ context.Context, k capability.Key) error {
	f.record("SendKey:" + k.String())
	return nil
}

func (f *Fake) PowerOff(context.Context) error { f.record("PowerOff"); return nil }

func (f *Fake) ShowToast(_ context.Context, msg string) error {
	f.record("ShowToast:" + msg)
	return nil
}

func (f *Fake) ChannelUp(context.Context) error   { f.record("ChannelUp"); return nil }
func (f *Fake) ChannelDown(context.Context) error { f.record("ChannelDown"); return nil }

type nopSubscription struct{}

func (nopSubscription) Unsubscribe() error { return nil }
