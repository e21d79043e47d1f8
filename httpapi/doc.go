// Package httpapi exposes ingestion and retrieval over HTTP.
//
// Every route under /v1 requires an HS256 bearer token. The token's sub
// claim is the owner of everything the request reads or writes; a body
// owner_id that names anyone else is rejected.
//
// Error bodies have the shape {"error": code, "debug": detail}. Both fields
// pass through the credential scrubber before they are written.
package httpapi
