// Package capability defines the capability vocabulary shared by device
// services and devices.
//
// A capability is a dotted name such as "VolumeControl.Set". Services
// announce a set of them and callers query with exact names or with a
// trailing wildcard segment ("VolumeControl.Any").
//
// Each capability interface (Launcher, MediaPlayer, VolumeControl, ...) has
// a Tag. Services register their implementation per tag in a Registry
// together with a Priority, and a device resolves a tag to the attached
// service with the highest priority.
package capability
