// Package greeting implements the incremental greeting responder.
//
// A Responder builds the greeting for one decoded request as an ordered list
// of fragments, then reveals it one fragment at a time: a reset snapshot with
// an empty message, followed by every prefix of the fragment list from empty
// to complete, pausing the requested delay after each prefix. The Responder
// implements transport.GreetingStreamer. Recording finished streams in a
// history store is optional (nil-safe).
package greeting
