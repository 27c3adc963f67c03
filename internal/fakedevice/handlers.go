package fakedevice

import (
	"encoding/json"

	"github.com/rendercast/rendercast-go/pkg/wire"
)

// URIs answered by default.
const (
	URIGetVolume      = "ssap://audio/getVolume"
	URISetVolume      = "ssap://audio/setVolume"
	URIVolumeUp       = "ssap://audio/volumeUp"
	URIVolumeDown     = "ssap://audio/volumeDown"
	URISetMute        = "ssap://audio/setMute"
	URIGetAudioStatus = "ssap://audio/getStatus"
	URIPlay           = "ssap://media.controls/play"
	URIPause          = "ssap://media.controls/pause"
	URIStop           = "ssap://media.controls/stop"
	URILaunch         = "ssap://system.launcher/launch"
	URIClose          = "ssap://system.launcher/close"
	URIToast          = "ssap://system.notifications/createToast"
	URITurnOff        = "ssap://system/turnOff"
	URISendEnter      = "ssap://com.webos.service.ime/sendEnterKey"
	URIChannelUp      = "ssap://tv/channelUp"
	URIChannelDown    = "ssap://tv/channelDown"
	URIMediaOpen      = "ssap://media.viewer/open"
	URIMediaClose     = "ssap://media.viewer/close"
	URIListApps       = "ssap://com.webos.applicationManager/listApps"
)

var okReply = wire.ReturnValue{ReturnValue: true}

func (d *Device) installDefaultHandlers() {
	okHandler := func(Request) (any, string) { return okReply, "" }

	d.handlers[URIGetVolume] = func(Request) (any, string) { return d.audioStatus(), "" }
	d.handlers[URIGetAudioStatus] = d.handlers[URIGetVolume]

	d.handlers[URISetVolume] = func(req Request) (any, string) {
		var p struct {
			Volume *int `json:"volume"`
		}
		if err := json.Unmarshal(req.Payload, &p); err != nil || p.Volume == nil {
			return nil, "400 volume missing"
		}
		d.SetVolume(*p.Volume)
		return okReply, ""
	}
	d.handlers[URIVolumeUp] = func(Request) (any, string) {
		d.SetVolume(d.Volume() + 1)
		return okReply, ""
	}
	d.handlers[URIVolumeDown] = func(Request) (any, string) {
		d.SetVolume(d.Volume() - 1)
		return okReply, ""
	}
	d.handlers[URISetMute] = func(req Request) (any, string) {
		var p struct {
			Mute bool `json:"mute"`
		}
		if err := json.Unmarshal(req.Payload, &p); err != nil {
			return nil, "400 mute missing"
		}
		d.mu.Lock()
		d.muted = p.Mute
		d.mu.Unlock()
		d.pushAudioStatus()
		return okReply, ""
	}

	d.handlers[URILaunch] = func(req Request) (any, string) {
		var p struct {
			ID string `json:"id"`
		}
		if err := json.Unmarshal(req.Payload, &p); err != nil || p.ID == "" {
			return nil, "400 app id missing"
		}
		d.mu.Lock()
		d.foreground = p.ID
		d.mu.Unlock()
		return map[string]any{"returnValue": true, "id": p.ID, "sessionId": d.newSessionID()}, ""
	}
	d.handlers[URIMediaOpen] = func(Request) (any, string) {
		return map[string]any{"returnValue": true, "id": "com.webos.app.mediadiscovery", "sessionId": d.newSessionID()}, ""
	}
	d.handlers[URIToast] = func(Request) (any, string) {
		return map[string]any{"returnValue": true, "toastId": d.newSessionID()}, ""
	}
	d.handlers[URIListApps] = func(Request) (any, string) {
		apps := make([]map[string]any, 0, len(d.opts.Apps))
		for _, id := range d.opts.Apps {
			apps = append(apps, map[string]any{"id": id, "title": id})
		}
		return map[string]any{"returnValue": true, "apps": apps}, ""
	}

	for _, uri := range []string{
		URIPlay, URIPause, URIStop, URIClose, URITurnOff,
		URISendEnter, URIChannelUp, URIChannelDown, URIMediaClose,
	} {
		d.handlers[uri] = okHandler
	}
}

func (d *Device) audioStatus() map[string]any {
	d.mu.Lock()
	defer d.mu.Unlock()
	return map[string]any{"returnValue": true, "volume": d.volume, "muted": d.muted}
}

func (d *Device) pushAudioStatus() {
	status := d.audioStatus()
	for _, p := range d.peers() {
		for _, id := range p.subscriptions(URIGetAudioStatus) {
			p.send(envelope{Type: wire.TypeResponse, ID: id, Payload: status})
		}
	}
}
