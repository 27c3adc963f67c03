// Package record holds the value types that describe discovered endpoints
// and the credentials stored for them.
//
// A ServiceDescription is produced by a discovery provider for every
// endpoint it sees. A ServiceConfig carries what a protocol learned while
// pairing (client key, pinned certificate) and is persisted through the
// device store so that a later connection can skip pairing.
package record
