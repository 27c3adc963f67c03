// Package wire defines the JSON envelopes exchanged over a control session.
//
// Outbound requests are typed structs serialized at the boundary:
//
//	{"type":"request","id":7,"uri":"ssap://audio/setVolume","payload":{"volume":50}}
//
// Inbound envelopes are decoded into Message:
//
//	{"type":"response","id":7,"payload":{"returnValue":true}}
//	{"type":"error","id":7,"error":"401 insufficient permissions"}
//	{"type":"registered","id":1,"payload":{"client-key":"..."}}
//
// Push messages without an id are delivered as unsolicited messages.
package wire
