// Package api defines the core protocol types for the greetings server.
//
// This package provides the input model for a greeting request, the
// server-push event types carried on a greeting stream, the history record
// written after each stream, structured error types, and stream ID
// generation.
//
// The package has zero external dependencies (Go standard library only) and
// performs no I/O.
//
// Core types:
//   - [GreetingRequest]: decoded, validated input for one greeting stream
//   - [Title]: closed enumeration of honorifics with fixed display strings
//   - [Fields]: raw named field values as supplied by a client
//   - [StreamEvent]: one server-sent signal patch
//   - [GreetingRecord]: history entry for a finished stream
//   - [DecodeError], [APIError]: input rejection and transport error envelope
package api
