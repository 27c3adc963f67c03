// Package cert provides certificate handling for control sessions.
//
// Media devices serve self-signed certificates, so chain validation is
// replaced by trust-on-first-use pinning: the first certificate a device
// presents is stored in its service config and every later handshake must
// present exactly the same certificate.
package cert
