// Package service implements business logic for the reference flowchart
// store.
//
// This package sits between the HTTP handlers and the repository layer,
// implementing validation, error mapping and event publishing.
//
// # Services
//
// FlowchartService lists flowcharts, applies appends and node position
// updates, and imports seed files via codec importers.
//
// AuthService checks passwords (bcrypt) and issues and verifies the bearer
// tokens (HS256 JWT) that guard the flowchart routes.
//
// # Event System
//
// Writes publish events on an EventBus so that connected clients are told
// about changes through Server-Sent Events.
package service
