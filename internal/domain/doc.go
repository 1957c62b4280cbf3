// Package domain defines the flowchart types shared by the client core and
// the reference store.
//
// # Core Types
//
// Flowchart is the identity and display metadata of one chart.
//
// Node is a step with a kind, a label and a 2-D position. On the wire its
// data field may arrive either as an object or as a JSON string holding an
// object; decoding always yields an object.
//
// Edge is a labeled directed transition, conventionally identified as
// "<source>-<target>". Endpoints are not checked at construction.
//
// Graph is the read-only view of one flowchart used for a single render and
// interaction cycle: first node, last node and lookup by id.
//
// Snapshot groups the graphs of one fetch under a version number.
//
// # Mutations
//
// AppendRequest, AppendPayload and PositionUpdate describe the transient
// requests the client proposes to the store. The store owns the data.
package domain
