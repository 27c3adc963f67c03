package webos

// Command URIs.
const (
	uriGetVolume      = "ssap://audio/getVolume"
	uriSetVolume      = "ssap://audio/setVolume"
	uriVolumeUp       = "ssap://audio/volumeUp"
	uriVolumeDown     = "ssap://audio/volumeDown"
	uriSetMute        = "ssap://audio/setMute"
	uriGetAudioStatus = "ssap://audio/getStatus"

	uriPlay  = "ssap://media.controls/play"
	uriPause = "ssap://media.controls/pause"
	uriStop  = "ssap://media.controls/stop"

	uriLaunch   = "ssap://system.launcher/launch"
	uriClose    = "ssap://system.launcher/close"
	uriListApps = "ssap://com.webos.applicationManager/listApps"

	uriMediaOpen  = "ssap://media.viewer/open"
	uriMediaClose = "ssap://media.viewer/close"

	uriToast   = "ssap://system.notifications/createToast"
	uriTurnOff = "ssap://system/turnOff"

	uriSendEnter        = "ssap://com.webos.service.ime/sendEnterKey"
	uriDeleteCharacters = "ssap://com.webos.service.ime/deleteCharacters"

	uriChannelUp   = "ssap://tv/channelUp"
	uriChannelDown = "ssap://tv/channelDown"
)

// Well-known app ids.
const (
	AppBrowser = "com.webos.app.browser"
	AppYouTube = "youtube.leanback.v4"
	AppNetflix = "netflix"
)
