// Package discovery turns device announcements into a live set of
// connectable devices.
//
// # Providers
//
// A Provider listens for one announcement protocol and reports service
// records through ProviderListener callbacks. Each provider is scoped by
// Filters: a Filter names the protocol (ServiceID) and the search target
// announced on the wire (an SSDP ST/NT or a DNS-SD service type).
//
// The SSDP provider lives in package ssdp. MDNSProvider browses DNS-SD
// service types over multicast DNS; instances seen on several interfaces
// are merged into one record keyed by instance name.
//
// Records a provider has not re-confirmed within RescanInterval times
// RescanAttempts are evicted and reported as removed exactly once.
//
// # Manager
//
// Manager folds provider records into device.ConnectableDevice values. One
// physical device announces one service record per protocol; records are
// grouped by service UUID first and by address plus friendly name second.
// Each record is turned into a service by the factory registered for its
// ServiceID with RegisterDeviceService.
//
// Devices are surfaced to listeners only when they match the capability
// filters set with SetCapabilityFilters. Credentials from the device store
// are merged into newly created services, and ready devices are written
// back to the store.
package discovery
