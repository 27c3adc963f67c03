// Package session implements the persistent control session used by
// WebSocket TV services.
//
// A Session owns one WebSocket connection to a device and moves through
//
//	Initial -> Connecting -> Registering -> Registered
//	Registered/Registering -> Disconnecting -> Initial
//
// On connect it pins the device certificate (trust on first use), sends a
// register envelope carrying the permission manifest and any stored client
// key, and waits for the device to accept. The device may ask the user to
// approve the pairing first; the session reports this through
// Listener.OnPairingRequired and keeps waiting.
//
// Commands get a per-connection id starting at 1 and are matched against
// responses through a correlation table. Commands issued before the session
// is registered are queued and flushed in order once registration
// completes. A transport loss fails every pending command and subscription
// exactly once with ErrConnectionLost; subscriptions are not re-sent.
//
// Listener callbacks and response callbacks run on the reader goroutine.
// They must not block.
package session
