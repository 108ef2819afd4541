// Package handler implements the HTTP API of the topology editor.
//
// Routes use the method and wildcard patterns of net/http.ServeMux. Nodes
// are addressed by their integer id, connections by layer and endpoint
// pair:
//
//	GET    /api/layers/{layer}/graph
//	POST   /api/nodes
//	DELETE /api/layers/{layer}/connections/{a}/{b}
//	POST   /api/commands/{name}
//
// Errors are returned as JSON {error, details}. Typed domain errors map to
// status codes: not found to 404, validation and parse failures to 400,
// conflicts to 409, anything else to 500.
//
// The /events endpoint streams store events as Server-Sent Events so every
// open view redraws after a change.
package handler
