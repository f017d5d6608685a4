// Package handler provides the HTTP API over document repositories.
//
// # Routes
//
//	GET    /v1/collections/{collection}/documents        ?filter=&skip=&limit=&order=&select=
//	POST   /v1/collections/{collection}/documents
//	GET    /v1/collections/{collection}/documents/{id}
//	HEAD   /v1/collections/{collection}/documents/{id}
//	PATCH  /v1/collections/{collection}/documents/{id}
//	DELETE /v1/collections/{collection}/documents/{id}
//	GET    /v1/collections/{collection}/documents/{id}/state
//	GET    /v1/collections/{collection}/states           ?filter=&skip=&limit=&order=
//	GET    /health
//
// filter is the JSON form accepted by docstore.ParseFilter, order is a comma
// separated list of field paths ("-" prefix for descending) and select lists
// projected paths as "path" or "path:alias". skip counts documents; list
// responses report next_skip, which pages /states correctly even when some
// documents have no decodable state.
//
// # Response Format
//
// Handlers use standardized response functions:
//
//   - WriteData: Single resource with optional HATEOAS links
//   - WriteCollection: Paginated list of resources
//   - WriteJSON: Raw JSON response
//   - WriteError: RFC 9457 Problem Details error response
//
// Repository guard failures become 404 and 409 responses carrying the guard
// message; MapError covers the remaining store errors.
package handler
