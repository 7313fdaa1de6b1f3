// Package domain contains the core domain entities and value objects for keeval.
//
// This package represents the innermost layer of the Clean Architecture. It has
// no dependencies on infrastructure concerns (HTTP, file system, logging) and
// contains only pure business logic.
//
// # Entities
//
//   - [Value]: a closed tagged union of number, text, boolean, record and list
//   - [Record]: a single journal entry, either a set or a delete
//
// # Design Principles
//
// Domain entities are:
//   - Immutable after construction
//   - Free of infrastructure dependencies
//   - Validated at the boundary ([Value.Validate], [ValidKey])
//   - Testable without mocks or external systems
package domain
