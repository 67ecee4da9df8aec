// Package storage provides utilities shared across history store
// implementations, including sentinel errors and tenant context helpers.
//
// Store implementations (memory, postgres) implement the
// transport.HistoryStore interface defined in pkg/transport/handler.go.
// This package contains only shared types and helpers, not the interface
// itself.
package storage
