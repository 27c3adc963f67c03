// Package ssdp implements a discovery.Provider on top of SSDP.
//
// The provider multicasts M-SEARCH requests for every filter target on a
// fixed interval, listens for unicast search responses, and listens on the
// SSDP group for NOTIFY announcements. A new UUID is held as pending while
// its description document is fetched; the record is reported as added
// only once the fetch succeeds and the description lists every service
// the filter requires.
//
// Records are re-confirmed by later responses and announcements. A record
// not seen for RescanInterval × RescanAttempts is evicted at the start of
// the next search cycle and reported as removed exactly once; an
// announcement after that starts a new record.
package ssdp
