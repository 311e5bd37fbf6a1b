// Package client contains the client-side building blocks of gophgroups.
//
// # Overview
//
// The package provides:
//  1. GRPCTransport, which turns every dial into a fresh Connect stream on a
//     shared gRPC connection.
//  2. AuthClient, a password session with the authentication service
//     covering the directory operations, capability tokens and group keys.
//  3. MessageClient, a host session with a message service that attaches the
//     capability token to every operation and encrypts message bodies with
//     the group keys.
//  4. GroupKeyMap, every key version of every group the user belongs to.
//
// # Error Handling
//
// Server refusals surface as *protocol.SignalError and can be matched with
// errors.Is against &protocol.SignalError{Signal: ...}. Transport outages are
// reported as ErrUnavailable.
package client
