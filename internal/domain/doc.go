// Package domain contains the core domain entities and value objects for dashsync.
//
// This package represents the innermost layer of the Clean Architecture. It has
// no dependencies on infrastructure concerns (HTTP, WebSocket, file system,
// logging) and contains only pure business logic.
//
// # Entities
//
//   - [SyncEvent]: One message from the live channel (type tag plus payload)
//   - [UpdatePayload]: The decoded body of a resource-updated event
//   - [ConnectionState]: Live-channel health (Disconnected, Connected, DegradedPolling)
//   - [ResourceMeta]: Per-resource staleness summary for view layers
//
// # Design Principles
//
// Domain entities are:
//   - Immutable after construction (where practical)
//   - Free of infrastructure dependencies
//   - Focused on business rules and invariants
//   - Testable without mocks or external systems
package domain
