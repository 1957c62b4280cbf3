// Package handler implements the HTTP layer of the reference flowchart store.
//
// The store serves the contract the flowchart client consumes:
//
//	GET   /flowcharts                 list every flowchart with nodes and edges
//	POST  /flowcharts/append          append nodes and edges to one flowchart
//	PATCH /flowcharts/node-position   persist one node position
//	POST  /login                      exchange credentials for a bearer token
//
// plus flowchart management for the CLI
//
//	GET    /flowcharts/{id}           one flowchart with nodes and edges
//	PUT    /flowcharts/{id}           create or retitle a flowchart
//	DELETE /flowcharts/{id}           remove a flowchart and its graph
//
// and the operational endpoints /health, /metrics and the /events SSE stream.
//
// # Node data
//
// Node data is sent as a JSON-encoded string inside each node object, the
// shape existing clients of the store already parse.
//
// # Response Format
//
// Mutations answer with a small status object. Errors return JSON with the
// {error, details} structure and a status code derived from the service
// error: 400 validation, 401 credentials or token, 404 unknown flowchart or
// node, 409 duplicate node or edge id.
//
// # Authentication
//
// When auth is required the /flowcharts routes demand an HS256 bearer token
// issued by /login.
package handler
