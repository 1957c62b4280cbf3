// Package repository defines the data access interface of the reference
// flowchart store.
//
// # Repository Interface
//
// The Repository interface covers flowcharts with their nodes and edges,
// node positions, bulk seed imports and login users.
//
// # SQLite Implementation
//
// The sqlite subpackage implements Repository on SQLite (modernc.org/sqlite,
// no cgo). It handles:
//
// - Arrival order of nodes, which the append planner relies on
// - Transactional appends and imports
// - Cascade deletes of nodes and edges with their flowchart
//
// # Testing
//
// The sqlite repository is tested against in-memory databases.
package repository
