// Package connection provides reconnect management for control sessions.
//
// This package handles:
//   - Exponential backoff for reconnection attempts
//   - Jitter so devices on one network are not retried in lockstep
//   - Connection state tracking
//   - Automatic reconnection on connection loss
//
// # Reconnection Strategy
//
// When a connection is lost, the manager retries with exponential backoff:
//
//  1. Initial delay: 1 second
//  2. Exponential increase: 2s, 4s, 8s, 16s, 32s
//  3. Maximum delay: 60 seconds
//  4. Reset to 1s on successful reconnection
//
// # Permanent Failures
//
// Errors classified by Config.Permanent stop retrying immediately. Control
// sessions use this for rejected pairings and certificate mismatches, which
// need user action rather than another attempt.
package connection
