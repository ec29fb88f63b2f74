// doc.go — Package documentation for foundational cross-cutting types.

// Package types provides the foundational, zero-dependency types for the network tracker.
//
// This package contains the type definitions shared by multiple packages:
//   - The normalized request/response record produced by both transport drivers
//   - The wire event handed to the host's send primitive
//   - Queue bookkeeping types used by the host
//
// Design Principle: Zero Dependencies
// This package imports only the Go standard library. It is safe to import from
// any other package without creating circular dependencies.
//
// Architecture Layer: Foundation
//
//	Layer 1: types (zero deps) ← YOU ARE HERE
//	Layer 2: Domain packages (network, redaction, buffers, metrics)
//	Layer 3: Host wiring (host, config)
//	Layer 4: Entry points (cmd/nettrack)
package types
