// Package service defines the contract every protocol-specific device
// service implements, and a Base that concrete services embed.
//
// # DeviceService
//
// A DeviceService is one protocol endpoint of a physical device (the webOS
// second-screen socket, a cast receiver, ...). It announces a set of
// capability names and registers a typed implementation per capability tag:
//
//	b := service.NewBase(service.BaseConfig{
//		Description: desc,
//		Config:      cfg,
//		Connectable: true,
//	})
//	b.AddCapabilities(capability.VolumeControlSet, capability.VolumeControlGet)
//	b.RegisterAPI(capability.TagVolumeControl, volume, capability.PriorityHigh)
//
// Capability sets are mutable at runtime. Every change reaches the Listener
// as an added/removed delta, never as a full replacement.
//
// # Listener
//
// Lifecycle events (connected, failed, disconnected, pairing required,
// capabilities updated) are reported to a single Listener, normally the
// owning device. Services invoke the listener from their own goroutines;
// the listener must not block.
package service
