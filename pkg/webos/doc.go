// Package webos implements the second-screen WebSocket service of smart TVs.
//
// A Service embeds service.Base and drives a session.Session. Capability
// calls are synchronous wrappers around session commands: they block until
// the device answers or ctx ends. Commands issued before the session is
// registered are queued and sent once the user has approved the pairing.
//
// Basic usage:
//
//	svc, err := webos.New(desc, cfg, webos.DefaultOptions())
//	svc.SetListener(listener)
//	svc.Connect(ctx)
//	...
//	err = svc.SetVolume(ctx, 0.25)
//
// With Options.AutoReconnect set, a connection that is lost after
// registration is re-established with backoff. Authorization and
// certificate failures are never retried. Live subscriptions are issued
// again each time the session registers.
package webos
