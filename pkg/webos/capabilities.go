package webos

import (
	"context"
	"encoding/json"
	"math"

	"github.com/rendercast/rendercast-go/pkg/capability"
)

type launchPayload struct {
	ID        string         `json:"id"`
	Target    string         `json:"target,omitempty"`
	ContentID string         `json:"contentId,omitempty"`
	Params    map[string]any `json:"params,omitempty"`
}

type closePayload struct {
	ID        string `json:"id,omitempty"`
	SessionID string `json:"sessionId,omitempty"`
}

type launchReply struct {
	ID        string `json:"id"`
	SessionID string `json:"sessionId"`
}

type volumePayload struct {
	Volume int `json:"volume"`
}

type mutePayload struct {
	Mute bool `json:"mute"`
}

type toastPayload struct {
	Message string `json:"message"`
}

type mediaPayload struct {
	Target      string `json:"target"`
	MimeType    string `json:"mimeType,omitempty"`
	Title       string `json:"title,omitempty"`
	Description string `json:"description,omitempty"`
	IconSrc     string `json:"iconSrc,omitempty"`
	Loop        bool   `json:"loop,omitempty"`
}

// audioStatus is the getVolume/getStatus reply. Older firmware nests the
// values in volumeStatus.
type audioStatus struct {
	Volume       *int  `json:"volume"`
	Muted        *bool `json:"muted"`
	Mute         *bool `json:"mute"`
	VolumeStatus *struct {
		Volume     int  `json:"volume"`
		MuteStatus bool `json:"muteStatus"`
	} `json:"volumeStatus"`
}

func (a audioStatus) status() capability.VolumeStatus {
	var st capability.VolumeStatus
	switch {
	case a.Volume != nil:
		st.Volume = float32(*a.Volume) / 100
	case a.VolumeStatus != nil:
		st.Volume = float32(a.VolumeStatus.Volume) / 100
	}
	switch {
	case a.Muted != nil:
		st.Muted = *a.Muted
	case a.Mute != nil:
		st.Muted = *a.Mute
	case a.VolumeStatus != nil:
		st.Muted = a.VolumeStatus.MuteStatus
	}
	return st
}

// volumeLevel maps [0,1] onto the device's 0..100 scale.
func volumeLevel(v float32) int {
	n := int(math.Round(float64(v) * 100))
	return max(0, min(100, n))
}

// Launcher

// LaunchApp starts appID with optional launch parameters.
func (s *Service) LaunchApp(ctx context.Context, appID string, params map[string]any) (*capability.LaunchSession, error) {
	return s.launch(ctx, launchPayload{ID: appID, Params: params}, capability.SessionTypeApp)
}

// LaunchBrowser opens url in the web browser app.
func (s *Service) LaunchBrowser(ctx context.Context, url string) (*capability.LaunchSession, error) {
	return s.launch(ctx, launchPayload{ID: AppBrowser, Target: url}, capability.SessionTypeWebApp)
}

// LaunchYouTube starts the YouTube app, optionally on a video.
func (s *Service) LaunchYouTube(ctx context.Context, videoID string) (*capability.LaunchSession, error) {
	return s.launch(ctx, launchPayload{ID: AppYouTube, ContentID: videoID}, capability.SessionTypeApp)
}

func (s *Service) launch(ctx context.Context, p launchPayload, typ capability.SessionType) (*capability.LaunchSession, error) {
	var raw json.RawMessage
	if err := s.request(ctx, uriLaunch, p, &raw); err != nil {
		return nil, err
	}
	var r launchReply
	_ = json.Unmarshal(raw, &r)
	if r.ID == "" {
		r.ID = p.ID
	}
	return &capability.LaunchSession{
		AppID:     r.ID,
		SessionID: r.SessionID,
		Type:      typ,
		RawData:   raw,
		Service:   s,
	}, nil
}

// CloseApp closes the app behind ls.
func (s *Service) CloseApp(ctx context.Context, ls *capability.LaunchSession) error {
	if ls == nil {
		return capability.ErrNotSupported
	}
	return s.request(ctx, uriClose, closePayload{ID: ls.AppID, SessionID: ls.SessionID}, nil)
}

// Apps lists the installed applications.
func (s *Service) Apps(ctx context.Context) ([]capability.AppInfo, error) {
	var reply struct {
		Apps []capability.AppInfo `json:"apps"`
	}
	if err := s.request(ctx, uriListApps, nil, &reply); err != nil {
		return nil, err
	}
	return reply.Apps, nil
}

// CloseLaunchSession closes ls according to its type.
func (s *Service) CloseLaunchSession(ctx context.Context, ls *capability.LaunchSession) error {
	if ls == nil {
		return capability.ErrNotSupported
	}
	switch ls.Type {
	case capability.SessionTypeApp, capability.SessionTypeWebApp, capability.SessionTypeExternalInputPicker:
		return s.CloseApp(ctx, ls)
	case capability.SessionTypeMedia:
		return s.CloseMedia(ctx, ls)
	default:
		return capability.ErrNotSupported
	}
}

// MediaPlayer

// PlayMedia opens a video or audio URL in the media viewer.
func (s *Service) PlayMedia(ctx context.Context, m capability.MediaInfo) (*capability.LaunchSession, error) {
	return s.openMedia(ctx, m)
}

// DisplayImage shows an image URL in the media viewer.
func (s *Service) DisplayImage(ctx context.Context, m capability.MediaInfo) (*capability.LaunchSession, error) {
	return s.openMedia(ctx, m)
}

func (s *Service) openMedia(ctx context.Context, m capability.MediaInfo) (*capability.LaunchSession, error) {
	p := mediaPayload{
		Target:      m.URL,
		MimeType:    m.MimeType,
		Title:       m.Title,
		Description: m.Description,
		IconSrc:     m.IconURL,
		Loop:        m.Loop,
	}
	var raw json.RawMessage
	if err := s.request(ctx, uriMediaOpen, p, &raw); err != nil {
		return nil, err
	}
	var r launchReply
	_ = json.Unmarshal(raw, &r)
	return &capability.LaunchSession{
		AppID:     r.ID,
		SessionID: r.SessionID,
		Type:      capability.SessionTypeMedia,
		RawData:   raw,
		Service:   s,
	}, nil
}

// CloseMedia closes the media viewer session behind ls.
func (s *Service) CloseMedia(ctx context.Context, ls *capability.LaunchSession) error {
	if ls == nil {
		return capability.ErrNotSupported
	}
	return s.request(ctx, uriMediaClose, closePayload{ID: ls.AppID, SessionID: ls.SessionID}, nil)
}

// MediaControl

// Play resumes playback.
func (s *Service) Play(ctx context.Context) error { return s.request(ctx, uriPlay, nil, nil) }

// Pause pauses playback.
func (s *Service) Pause(ctx context.Context) error { return s.request(ctx, uriPause, nil, nil) }

// Stop stops playback.
func (s *Service) Stop(ctx context.Context) error { return s.request(ctx, uriStop, nil, nil) }

// VolumeControl

// VolumeUp raises the volume one step.
func (s *Service) VolumeUp(ctx context.Context) error { return s.request(ctx, uriVolumeUp, nil, nil) }

// VolumeDown lowers the volume one step.
func (s *Service) VolumeDown(ctx context.Context) error { return s.request(ctx, uriVolumeDown, nil, nil) }

// SetVolume sets the volume; volume is clamped to [0,1].
func (s *Service) SetVolume(ctx context.Context, volume float32) error {
	return s.request(ctx, uriSetVolume, volumePayload{Volume: volumeLevel(volume)}, nil)
}

// Volume returns the current volume in [0,1].
func (s *Service) Volume(ctx context.Context) (float32, error) {
	var a audioStatus
	if err := s.request(ctx, uriGetVolume, nil, &a); err != nil {
		return 0, err
	}
	return a.status().Volume, nil
}

// SetMute mutes or unmutes the audio output.
func (s *Service) SetMute(ctx context.Context, muted bool) error {
	return s.request(ctx, uriSetMute, mutePayload{Mute: muted}, nil)
}

// Mute reports whether the audio output is muted.
func (s *Service) Mute(ctx context.Context) (bool, error) {
	var a audioStatus
	if err := s.request(ctx, uriGetVolume, nil, &a); err != nil {
		return false, err
	}
	return a.status().Muted, nil
}

// SubscribeVolume delivers every audio status change until Unsubscribe.
// A lost connection is reported as an error wrapping
// session.ErrConnectionLost; updates resume once the service is registered
// again. Any other error ends the subscription.
func (s *Service) SubscribeVolume(fn func(capability.VolumeStatus, error)) (capability.Subscription, error) {
	sub, err := s.subscribe(context.Background(), uriGetAudioStatus, nil, func(p json.RawMessage, err error) {
		if err != nil {
			fn(capability.VolumeStatus{}, err)
			return
		}
		var a audioStatus
		if err := decodeReply(uriGetAudioStatus, p, &a); err != nil {
			fn(capability.VolumeStatus{}, err)
			return
		}
		fn(a.status(), nil)
	})
	if err != nil {
		return nil, err
	}
	return sub, nil
}

// KeyControl

// SendKey sends a virtual keyboard key.
func (s *Service) SendKey(ctx context.Context, key capability.Key) error {
	switch key {
	case capability.KeyEnter:
		return s.request(ctx, uriSendEnter, nil, nil)
	case capability.KeyDelete:
		return s.request(ctx, uriDeleteCharacters, map[string]int{"count": 1}, nil)
	default:
		return capability.ErrNotSupported
	}
}

// PowerControl

// PowerOff turns the device off.
func (s *Service) PowerOff(ctx context.Context) error { return s.request(ctx, uriTurnOff, nil, nil) }

// ToastControl

// ShowToast shows a short notification on screen.
func (s *Service) ShowToast(ctx context.Context, message string) error {
	return s.request(ctx, uriToast, toastPayload{Message: message}, nil)
}

// TVControl

// ChannelUp switches to the next channel.
func (s *Service) ChannelUp(ctx context.Context) error { return s.request(ctx, uriChannelUp, nil, nil) }

// ChannelDown switches to the previous channel.
func (s *Service) ChannelDown(ctx context.Context) error { return s.request(ctx, uriChannelDown, nil, nil) }
