package capability

import (
	"context"
	"encoding/json"
)

// Subscription is a long-lived listener registration on a device.
type Subscription interface {
	// Unsubscribe stops delivery. It is safe to call more than once.
	Unsubscribe() error
}

// Launcher starts and stops applications.
type Launcher interface {
	LaunchApp(ctx context.Context, appID string, params map[string]any) (*LaunchSession, error)
	LaunchBrowser(ctx context.Context, url string) (*LaunchSession, error)
	CloseApp(ctx context.Context, session *LaunchSession) error
	Apps(ctx context.Context) ([]AppInfo, error)
}

// AppInfo describes an installed application.
type AppInfo struct {
	ID   string `json:"id"`
	Name string `json:"title"`
}

// MediaInfo describes media to render.
type MediaInfo struct {
	URL         string `json:"url"`
	MimeType    string `json:"mimeType"`
	Title       string `json:"title,omitempty"`
	Description string `json:"description,omitempty"`
	IconURL     string `json:"iconSrc,omitempty"`
	Loop        bool   `json:"loop,omitempty"`
}

// MediaPlayer renders media URLs on the device.
type MediaPlayer interface {
	PlayMedia(ctx context.Context, media MediaInfo) (*LaunchSession, error)
	DisplayImage(ctx context.Context, media MediaInfo) (*LaunchSession, error)
	CloseMedia(ctx context.Context, session *LaunchSession) error
}

// MediaControl controls the active playback.
type MediaControl interface {
	Play(ctx context.Context) error
	Pause(ctx context.Context) error
	Stop(ctx context.Context) error
}

// VolumeStatus is the device volume state, Volume in [0,1].
type VolumeStatus struct {
	Volume float32
	Muted  bool
}

// VolumeControl reads and changes the device volume.
type VolumeControl interface {
	VolumeUp(ctx context.Context) error
	VolumeDown(ctx context.Context) error
	SetVolume(ctx context.Context, volume float32) error
	Volume(ctx context.Context) (float32, error)
	SetMute(ctx context.Context, muted bool) error
	Mute(ctx context.Context) (bool, error)
	SubscribeVolume(fn func(VolumeStatus, error)) (Subscription, error)
}

// Key is a remote-control key.
type Key uint8

const (
	KeyEnter Key = iota + 1
	KeyDelete
)

// String returns the key name.
func (k Key) String() string {
	switch k {
	case KeyEnter:
		return "ENTER"
	case KeyDelete:
		return "DELETE"
	default:
		return "UNKNOWN"
	}
}

// KeyControl sends key presses.
type KeyControl interface {
	SendKey(ctx context.Context, key Key) error
}

// PowerControl switches the device off.
type PowerControl interface {
	PowerOff(ctx context.Context) error
}

// ToastControl shows short on-screen messages.
type ToastControl interface {
	ShowToast(ctx context.Context, message string) error
}

// TVControl changes broadcast channels.
type TVControl interface {
	ChannelUp(ctx context.Context) error
	ChannelDown(ctx context.Context) error
}

// SessionType determines how a launch session is closed.
type SessionType uint8

const (
	SessionTypeUnknown SessionType = iota
	SessionTypeApp
	SessionTypeExternalInputPicker
	SessionTypeMedia
	SessionTypeWebApp
)

// String returns the session type name.
func (t SessionType) String() string {
	switch t {
	case SessionTypeApp:
		return "APP"
	case SessionTypeExternalInputPicker:
		return "EXTERNAL_INPUT_PICKER"
	case SessionTypeMedia:
		return "MEDIA"
	case SessionTypeWebApp:
		return "WEB_APP"
	default:
		return "UNKNOWN"
	}
}

// Closer closes launch sessions created by a service.
type Closer interface {
	CloseLaunchSession(ctx context.Context, session *LaunchSession) error
}

// LaunchSession is a handle to something running on the device.
type LaunchSession struct {
	AppID     string
	AppName   string
	SessionID string
	Type      SessionType
	RawData   json.RawMessage

	// Service is the service that created the session.
	Service Closer
}

// Close closes the session through the service that created it.
func (s *LaunchSession) Close(ctx context.Context) error {
	if s == nil || s.Service == nil {
		return ErrNotSupported
	}
	return s.Service.CloseLaunchSession(ctx, s)
}
